package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/vultsync/internal/middleware"
	"github.com/atinyakov/vultsync/internal/models"
)

// UserService defines the salt bookkeeping operations
// required by the UserHandler.
type UserService interface {
	// InitUser stores the secrets of alias once; later calls fail with models.ErrExistingUser.
	InitUser(ctx context.Context, alias string, secrets models.UserSecrets) error
	// ImportUser returns the secrets of alias, or models.ErrUninitializedUser.
	ImportUser(ctx context.Context, alias string) (models.UserSecrets, error)
}

// UserHandler handles HTTP requests for the key derivation salt and
// verification hash shared by a user's clients.
type UserHandler struct {
	UserService UserService
	Log         *zap.Logger
}

// Init handles POST /user/init requests.
// It expects a JSON body with non-empty "salt".
func (h *UserHandler) Init(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	alias := middleware.GetAliasFromContext(ctx)

	var req models.UserSecrets
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Salt == "" {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	err := h.UserService.InitUser(ctx, alias, req)
	switch {
	case errors.Is(err, models.ErrExistingUser):
		writeJSON(w, http.StatusConflict, statusResponse{Status: models.StatusExisting})
	case err != nil:
		writeFailed(ctx, w, h.Log, "user init failed", alias, err)
	default:
		writeJSON(w, http.StatusOK, statusResponse{Status: models.StatusSuccess})
	}
}

// Import handles GET /user/import requests.
func (h *UserHandler) Import(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	alias := middleware.GetAliasFromContext(ctx)

	secrets, err := h.UserService.ImportUser(ctx, alias)
	switch {
	case errors.Is(err, models.ErrUninitializedUser):
		writeJSON(w, http.StatusConflict, models.UserImportResponse{Status: models.StatusUninitialized})
	case err != nil:
		writeFailed(ctx, w, h.Log, "user import failed", alias, err)
	default:
		writeJSON(w, http.StatusOK, models.UserImportResponse{
			Status: models.StatusSuccess,
			Salt:   &secrets.Salt,
			Hash:   &secrets.Hash,
		})
	}
}
