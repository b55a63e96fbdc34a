// Package main initializes and starts the LinkKeeper sync server,
// setting up configuration, logging, database connections, repositories,
// services and handlers.
package main

import (
	"cmp"
	"context"
	"fmt"
	"time"

	nethttp "net/http"

	"github.com/atinyakov/LinkKeeper/internal/config"
	"github.com/atinyakov/LinkKeeper/internal/db"
	"github.com/atinyakov/LinkKeeper/internal/logger"
	"github.com/atinyakov/LinkKeeper/internal/repository"
	"github.com/atinyakov/LinkKeeper/internal/server/handler/http"
	"github.com/atinyakov/LinkKeeper/internal/service"
	"go.uber.org/zap"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	// Parse command-line and environment configuration.
	options := config.Parse()
	addr := options.Port
	dbName := options.DatabaseDSN

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init("Info"); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	// Initialize PostgreSQL connection.
	postgressDB, err := db.InitPostgres(dbName)
	if err != nil {
		zapLogger.Fatal("cannot init database", zap.Error(err))
	}

	// Prune old sync-history rows in the background.
	db.StartHistoryCleaner(context.Background(), postgressDB,
		time.Hour,       // interval
		30*24*time.Hour, // retention: 30 days
		zapLogger,
	)

	// Initialize repositories for authentication and synchronization.
	authRepo := repository.NewPostgresAuthRepository(postgressDB)
	syncRepo := repository.NewPostgresSyncRepository(postgressDB)

	// Initialize business-logic services.
	authService := service.NewAuthService(authRepo)
	syncService := service.NewSyncService(syncRepo)

	// Create HTTP handlers for auth and sync endpoints.
	authHandler := &http.AuthHandler{Checker: syncService}
	syncHandler := &http.SyncHandler{SyncService: syncService}

	// Build the router with middleware and routes.
	router := http.NewRouter(authHandler, syncHandler, authService, zapLogger)

	server := &nethttp.Server{
		Addr:    addr,
		Handler: router,
	}

	zapLogger.Info("starting HTTP server", zap.String("addr", addr))
	if err := server.ListenAndServe(); err != nil {
		zapLogger.Fatal("failed to start HTTP server", zap.Error(err))
	}
}
