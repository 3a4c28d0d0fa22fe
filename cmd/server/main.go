// Package main initializes and starts the credential sync server,
// setting up configuration, logging, storage, repositories,
// services, handlers, and optional TLS.
package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/atinyakov/vultsync/internal/config"
	"github.com/atinyakov/vultsync/internal/db"
	"github.com/atinyakov/vultsync/internal/logger"
	"github.com/atinyakov/vultsync/internal/metrics"
	"github.com/atinyakov/vultsync/internal/repository"
	"github.com/atinyakov/vultsync/internal/server/handler/http"
	"github.com/atinyakov/vultsync/internal/service"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

type cacheRepository interface {
	service.MutationCache
	db.CachePruner
}

// backend bundles the repositories of one storage driver.
type backend struct {
	store service.CredentialStore
	cache cacheRepository
	users service.UserRepository
	close func() error
}

func openBackend(options *config.Options) (*backend, error) {
	switch options.Driver {
	case config.DriverPostgres:
		conn, err := db.InitPostgres(options.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		return &backend{
			store: repository.NewPostgresStoreRepository(conn),
			cache: repository.NewPostgresCacheRepository(conn),
			users: repository.NewPostgresUserRepository(conn),
			close: conn.Close,
		}, nil
	case config.DriverSQLite:
		pool, err := repository.NewSQLitePool(options.DataDir, options.HandleCache)
		if err != nil {
			return nil, err
		}
		return &backend{
			store: repository.NewSQLiteStoreRepository(pool),
			cache: repository.NewSQLiteCacheRepository(pool),
			users: repository.NewSQLiteUserRepository(pool),
			close: pool.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown driver %q", options.Driver)
}

func main() {
	// Parse command-line, config file and environment configuration.
	options := config.Parse()

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storage, err := openBackend(options)
	if err != nil {
		zapLogger.Fatal("cannot init storage", zap.String("driver", options.Driver), zap.Error(err))
	}
	defer func() { _ = storage.close() }()

	// Keep only the newest cache_count batches of every user.
	db.StartCachePruner(ctx, storage.cache, options.Aliases(),
		options.PruneInterval,
		options.CacheCount,
		zapLogger,
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(metrics.Collectors()...)
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Initialize business-logic services.
	syncService := service.NewSyncService(storage.store, storage.cache, zapLogger)
	userService := service.NewUserService(storage.users, zapLogger)

	handlers := http.Handlers{
		Sync: &http.SyncHandler{SyncService: syncService, Log: zapLogger},
		User: &http.UserHandler{UserService: userService, Log: zapLogger},
	}
	if options.EnableTestRoutes {
		zapLogger.Warn("test routes enabled")
		resetService := service.NewResetService(storage.store, storage.cache, storage.users, zapLogger)
		handlers.Reset = &http.ResetHandler{ResetService: resetService, Log: zapLogger}
	}

	// Build the router with middleware and routes.
	router := http.NewRouter(handlers, options, registry, zapLogger)

	server := &nethttp.Server{
		Addr:              options.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zapLogger.Error("failed to shut down server", zap.Error(err))
		}
	}()

	if options.TLSCert != "" && options.TLSKey != "" {
		zapLogger.Info("starting HTTPS server", zap.String("addr", options.Port), zap.String("driver", options.Driver))
		err = server.ListenAndServeTLS(options.TLSCert, options.TLSKey)
	} else {
		zapLogger.Info("starting HTTP server", zap.String("addr", options.Port), zap.String("driver", options.Driver))
		err = server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		zapLogger.Fatal("server stopped", zap.Error(err))
	}
	zapLogger.Info("server stopped")
}
