package http_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/atinyakov/vultsync/internal/models"
	handler "github.com/atinyakov/vultsync/internal/server/handler/http"
)

type fakeUserService struct {
	InitUserFunc   func(ctx context.Context, alias string, secrets models.UserSecrets) error
	ImportUserFunc func(ctx context.Context, alias string) (models.UserSecrets, error)
}

func (f *fakeUserService) InitUser(ctx context.Context, alias string, secrets models.UserSecrets) error {
	return f.InitUserFunc(ctx, alias, secrets)
}
func (f *fakeUserService) ImportUser(ctx context.Context, alias string) (models.UserSecrets, error) {
	return f.ImportUserFunc(ctx, alias)
}

func TestUserHandler_Init(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
		wantBody string
	}{
		{name: "created", body: `{"salt":"s","hash":"h"}`, wantCode: http.StatusOK, wantBody: `{"status":"success"}` + "\n"},
		{name: "existing", body: `{"salt":"s"}`, err: models.ErrExistingUser, wantCode: http.StatusConflict, wantBody: `{"status":"existing"}` + "\n"},
		{name: "failure", body: `{"salt":"s"}`, err: errors.New("boom"), wantCode: http.StatusInternalServerError, wantBody: `{"status":"failed"}` + "\n"},
		{name: "missing salt", body: `{"hash":"h"}`, wantCode: http.StatusBadRequest, wantBody: "invalid request\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeUserService{
				InitUserFunc: func(context.Context, string, models.UserSecrets) error { return tt.err },
			}
			h := &handler.UserHandler{UserService: svc, Log: zap.NewNop()}
			w := httptest.NewRecorder()

			h.Init(w, httptest.NewRequest(http.MethodPost, "/user/init", strings.NewReader(tt.body)))

			if w.Code != tt.wantCode {
				t.Errorf("status = %d; want %d", w.Code, tt.wantCode)
			}
			if w.Body.String() != tt.wantBody {
				t.Errorf("body = %q; want %q", w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestUserHandler_Import(t *testing.T) {
	tests := []struct {
		name     string
		secrets  models.UserSecrets
		err      error
		wantCode int
		wantBody string
	}{
		{
			name:     "initialised",
			secrets:  models.UserSecrets{Salt: "s", Hash: "h"},
			wantCode: http.StatusOK,
			wantBody: `{"status":"success","salt":"s","hash":"h"}` + "\n",
		},
		{
			name:     "uninitialised",
			err:      models.ErrUninitializedUser,
			wantCode: http.StatusConflict,
			wantBody: `{"status":"uninitialized","salt":null,"hash":null}` + "\n",
		},
		{
			name:     "failure",
			err:      errors.New("boom"),
			wantCode: http.StatusInternalServerError,
			wantBody: `{"status":"failed"}` + "\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeUserService{
				ImportUserFunc: func(context.Context, string) (models.UserSecrets, error) { return tt.secrets, tt.err },
			}
			h := &handler.UserHandler{UserService: svc, Log: zap.NewNop()}
			w := httptest.NewRecorder()

			h.Import(w, httptest.NewRequest(http.MethodGet, "/user/import", nil))

			if w.Code != tt.wantCode {
				t.Errorf("status = %d; want %d", w.Code, tt.wantCode)
			}
			if w.Body.String() != tt.wantBody {
				t.Errorf("body = %q; want %q", w.Body.String(), tt.wantBody)
			}
		})
	}
}
