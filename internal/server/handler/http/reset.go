package http

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/vultsync/internal/middleware"
	"github.com/atinyakov/vultsync/internal/models"
)

// ResetService removes everything stored for a user.
type ResetService interface {
	Reset(ctx context.Context, alias string) error
}

// ResetHandler serves the test-only reset endpoint.
type ResetHandler struct {
	ResetService ResetService
	Log          *zap.Logger
}

// Reset handles POST /test/reset requests.
func (h *ResetHandler) Reset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	alias := middleware.GetAliasFromContext(ctx)
	if err := h.ResetService.Reset(ctx, alias); err != nil {
		writeFailed(ctx, w, h.Log, "reset failed", alias, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: models.StatusSuccess})
}
