package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/atinyakov/vultsync/internal/middleware"
)

// Handlers groups the endpoint handlers mounted by NewRouter. Reset is
// optional; the test routes are mounted only when it is set.
type Handlers struct {
	Sync  *SyncHandler
	User  *UserHandler
	Reset *ResetHandler
}

// NewRouter constructs and returns an HTTP handler that serves
// the sync API.
//
// Routes:
//
//	GET  /debug/ready   → liveness probe
//	GET  /metrics       → Prometheus exposition of gatherer
//	POST /sync          → SyncHandler.Sync
//	POST /init/upload   → SyncHandler.InitUpload
//	POST /user/init     → UserHandler.Init
//	GET  /user/import   → UserHandler.Import
//	POST /test/reset    → ResetHandler.Reset (only when h.Reset is set)
//
// Every route but the first two requires an Authentication header naming
// a configured user key.
func NewRouter(h Handlers, users middleware.AliasResolver, gatherer prometheus.Gatherer, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	// Log each request and its metadata
	r.Use(middleware.WithRequestLogging(logger))

	r.Get("/debug/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		// Only allow requests with Content-Type: application/json
		r.Use(chiMiddleware.AllowContentType("application/json"))
		r.Use(middleware.KeyAuth(users))

		r.Post("/sync", h.Sync.Sync)
		r.Post("/init/upload", h.Sync.InitUpload)
		r.Post("/user/init", h.User.Init)
		r.Get("/user/import", h.User.Import)

		if h.Reset != nil {
			r.Post("/test/reset", h.Reset.Reset)
		}
	})

	return r
}
