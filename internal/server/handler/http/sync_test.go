package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/atinyakov/vultsync/internal/models"
	handler "github.com/atinyakov/vultsync/internal/server/handler/http"
)

// fakeSyncService records calls and returns preconfigured results.
type fakeSyncService struct {
	called        bool
	receivedAlias string
	receivedReq   models.SyncRequest
	receivedCreds []models.Credential

	result  *models.SyncResponse
	stateID string
	err     error
}

func (f *fakeSyncService) Sync(_ context.Context, alias string, req models.SyncRequest) (*models.SyncResponse, error) {
	f.called = true
	f.receivedAlias = alias
	f.receivedReq = req
	return f.result, f.err
}

func (f *fakeSyncService) InitUpload(_ context.Context, alias string, credentials []models.Credential) (string, error) {
	f.called = true
	f.receivedAlias = alias
	f.receivedCreds = credentials
	return f.stateID, f.err
}

func TestSyncHandler_BadJSON(t *testing.T) {
	fake := &fakeSyncService{}
	h := &handler.SyncHandler{SyncService: fake, Log: zap.NewNop()}
	req := httptest.NewRequest(http.MethodPost, "/sync", bytes.NewBufferString("not-a-json"))
	w := httptest.NewRecorder()

	h.Sync(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d; want %d", w.Code, http.StatusBadRequest)
	}
	if body := w.Body.String(); body != "invalid body\n" {
		t.Errorf("body = %q; want %q", body, "invalid body\n")
	}
	if fake.called {
		t.Error("service must not be called on a bad body")
	}
}

func TestSyncHandler_UnknownMutationTag(t *testing.T) {
	h := &handler.SyncHandler{SyncService: &fakeSyncService{}, Log: zap.NewNop()}
	body := `{"state_id":"S0","mutations":[{"Rename":{"id":"a"}}]}`
	w := httptest.NewRecorder()

	h.Sync(w, httptest.NewRequest(http.MethodPost, "/sync", strings.NewReader(body)))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d; want %d", w.Code, http.StatusBadRequest)
	}
}

func TestSyncHandler_ServiceErrorIsNotLeaked(t *testing.T) {
	fake := &fakeSyncService{err: errors.New("pq: relation cache does not exist")}
	h := &handler.SyncHandler{SyncService: fake, Log: zap.NewNop()}
	req := httptest.NewRequest(http.MethodPost, "/sync", strings.NewReader(`{"state_id":"S0","mutations":[]}`))
	w := httptest.NewRecorder()

	h.Sync(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d; want %d", w.Code, http.StatusInternalServerError)
	}
	if body := w.Body.String(); body != "{\"status\":\"failed\"}\n" {
		t.Errorf("body = %q; want generic failure", body)
	}
}

func TestSyncHandler_Success(t *testing.T) {
	fake := &fakeSyncService{result: &models.SyncResponse{
		Status:    models.StatusSuccess,
		StateID:   "S2",
		Mutations: []models.Mutation{models.Delete("x")},
		IDChanges: []models.IDChange{{Old: "r", New: "r2"}},
	}}
	h := &handler.SyncHandler{SyncService: fake, Log: zap.NewNop()}

	body := `{"state_id":"S1","mutations":[{"Add":{"credential":{"id":"r","value":"v"}}}]}`
	req := httptest.NewRequest(http.MethodPost, "/sync", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Sync(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q; want application/json", ct)
	}
	wantReq := models.SyncRequest{
		StateID:   "S1",
		Mutations: []models.Mutation{models.Add(models.Credential{ID: "r", Value: "v"})},
	}
	if !reflect.DeepEqual(fake.receivedReq, wantReq) {
		t.Errorf("service received %+v; want %+v", fake.receivedReq, wantReq)
	}

	var got map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if got["state_id"] != "S2" || got["status"] != "success" {
		t.Errorf("response = %v", got)
	}
	if got["store"] != nil {
		t.Errorf("store = %v; want null", got["store"])
	}
	changes, _ := got["id_changes"].([]any)
	if len(changes) != 1 || !reflect.DeepEqual(changes[0], []any{"r", "r2"}) {
		t.Errorf("id_changes = %v; want [[r r2]]", got["id_changes"])
	}
}

func TestInitUploadHandler(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		fake     *fakeSyncService
		wantCode int
		wantBody string
	}{
		{
			name:     "success",
			body:     `[{"id":"a","value":"1"}]`,
			fake:     &fakeSyncService{stateID: "S0"},
			wantCode: http.StatusOK,
			wantBody: `{"status":"success","state_id":"S0"}` + "\n",
		},
		{
			name:     "existing",
			body:     `[]`,
			fake:     &fakeSyncService{err: models.ErrExistingUser},
			wantCode: http.StatusConflict,
			wantBody: `{"status":"existing"}` + "\n",
		},
		{
			name:     "failure",
			body:     `[]`,
			fake:     &fakeSyncService{err: errors.New("disk full")},
			wantCode: http.StatusInternalServerError,
			wantBody: `{"status":"failed"}` + "\n",
		},
		{
			name:     "bad body",
			body:     `{"id":"a"}`,
			fake:     &fakeSyncService{},
			wantCode: http.StatusBadRequest,
			wantBody: "invalid body\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &handler.SyncHandler{SyncService: tt.fake, Log: zap.NewNop()}
			w := httptest.NewRecorder()

			h.InitUpload(w, httptest.NewRequest(http.MethodPost, "/init/upload", strings.NewReader(tt.body)))

			if w.Code != tt.wantCode {
				t.Errorf("status = %d; want %d", w.Code, tt.wantCode)
			}
			if w.Body.String() != tt.wantBody {
				t.Errorf("body = %q; want %q", w.Body.String(), tt.wantBody)
			}
		})
	}
}
