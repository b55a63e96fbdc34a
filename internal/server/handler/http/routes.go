// Package http provides HTTP routing and middleware configuration for
// the LinkKeeper sync service.
package http

import (
	"net/http"

	"github.com/atinyakov/LinkKeeper/internal/middleware"
	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter constructs and returns an HTTP handler that serves the
// LinkKeeper sync API. It applies JSON content-type enforcement,
// request logging and bearer-token authentication, and mounts the
// pull, push and auth-refresh endpoints under /api.
//
// Routes:
//
//	POST /api/pull          → syncHandler.Pull
//	POST /api/push          → syncHandler.Push
//	GET  /api/history       → syncHandler.History
//	POST /api/auth/refresh  → authHandler.Refresh
func NewRouter(
	authHandler *AuthHandler,
	syncHandler *SyncHandler,
	resolver middleware.SessionResolver,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Only allow requests with Content-Type: application/json
	r.Use(chiMiddleware.AllowContentType("application/json"))

	// Log each request and its metadata
	r.Use(middleware.WithRequestLogging(logger))
	// Resolve the bearer token to a user and role
	r.Use(middleware.TokenAuth(resolver))

	// Mount API routes
	r.Route("/api", func(r chi.Router) {
		r.Post("/pull", syncHandler.Pull)
		r.Post("/push", syncHandler.Push)
		r.Get("/history", syncHandler.History)
		r.Post("/auth/refresh", authHandler.Refresh)
	})

	return r
}
