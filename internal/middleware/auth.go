// Package middleware provides HTTP middlewares for authentication and
// logging.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/atinyakov/LinkKeeper/internal/models"
)

type ctxKey string

const (
	userKey ctxKey = "user"
	roleKey ctxKey = "role"
)

// SessionResolver maps a bearer token to its user and role.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (string, models.Role, error)
}

// TokenAuth enforces bearer-token authentication.
//
// The token is resolved to a user and role which are stored in the
// request context for downstream handlers. Requests without a valid
// token are rejected with 401.
func TokenAuth(resolver SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if token == "" || token == r.Header.Get("Authorization") {
				http.Error(w, "no bearer token provided", http.StatusUnauthorized)
				return
			}

			userID, role, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), userID, role)))
		})
	}
}

// WithSession returns a context carrying the authenticated user and
// role.
func WithSession(ctx context.Context, userID string, role models.Role) context.Context {
	ctx = context.WithValue(ctx, userKey, userID)
	return context.WithValue(ctx, roleKey, role)
}

// GetUserIDFromContext extracts the authenticated user ID from the
// request context. Returns an empty string if not found.
func GetUserIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(userKey).(string); ok {
		return s
	}
	return ""
}

// GetRoleFromContext extracts the session role from the request
// context. Returns RoleUser if not found.
func GetRoleFromContext(ctx context.Context) models.Role {
	if r, ok := ctx.Value(roleKey).(models.Role); ok {
		return r
	}
	return models.RoleUser
}
