// Package http provides the HTTP routing and JSON handlers of the sync server.
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

// SyncService defines the synchronization operations
// required by the SyncHandler.
type SyncService interface {
	// Sync runs one sync round for the user alias.
	Sync(ctx context.Context, alias string, req models.SyncRequest) (*models.SyncResponse, error)
	// InitUpload imports credentials into an empty store and returns the
	// initial state id, or models.ErrExistingUser.
	InitUpload(ctx context.Context, alias string, credentials []models.Credential) (string, error)
}

// SyncHandler handles HTTP requests for credential synchronization.
type SyncHandler struct {
	SyncService SyncService
	Log         *zap.Logger
}

// Sync handles POST /sync requests.
// It decodes a JSON body with "state_id" and "mutations",
// runs a sync round and writes the resulting SyncResponse.
func (h *SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	alias := middleware.GetAliasFromContext(ctx)

	var req models.SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	resp, err := h.SyncService.Sync(ctx, alias, req)
	if err != nil {
		writeFailed(ctx, w, h.Log, "sync round failed", alias, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// InitUpload handles POST /init/upload requests.
// The body is the full list of credentials of a user whose store is empty.
func (h *SyncHandler) InitUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	alias := middleware.GetAliasFromContext(ctx)

	var credentials []models.Credential
	if err := json.NewDecoder(r.Body).Decode(&credentials); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	stateID, err := h.SyncService.InitUpload(ctx, alias, credentials)
	switch {
	case errors.Is(err, models.ErrExistingUser):
		writeJSON(w, http.StatusConflict, models.InitUploadResponse{Status: models.StatusExisting})
	case err != nil:
		writeFailed(ctx, w, h.Log, "initial upload failed", alias, err)
	default:
		writeJSON(w, http.StatusOK, models.InitUploadResponse{Status: models.StatusSuccess, StateID: stateID})
	}
}
