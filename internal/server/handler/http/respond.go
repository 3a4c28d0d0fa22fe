package http

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/vultsync/internal/middleware"
	"github.com/atinyakov/vultsync/internal/models"
)

type statusResponse struct {
	Status string `json:"status"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeFailed logs err under the request id of ctx and answers with a generic
// failure status.
func writeFailed(ctx context.Context, w http.ResponseWriter, log *zap.Logger, msg, alias string, err error) {
	log.Error(msg,
		zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
		zap.String("alias", alias),
		zap.Error(err),
	)
	writeJSON(w, http.StatusInternalServerError, statusResponse{Status: models.StatusFailed})
}
