package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/atinyakov/LinkKeeper/internal/middleware"
	"github.com/atinyakov/LinkKeeper/internal/models"
)

// ProtectionChecker reports whether a user's stored document carries
// passphrase-protected content.
type ProtectionChecker interface {
	Protected(ctx context.Context, userID string) (bool, error)
}

// AuthHandler handles sync-authentication requests.
type AuthHandler struct {
	Checker ProtectionChecker
}

// Refresh handles POST /api/auth/refresh. It reports the session role
// and whether the stored document is passphrase protected, so that the
// client can prompt for the passphrase before its first decrypt.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	protected, err := h.Checker.Protected(ctx, middleware.GetUserIDFromContext(ctx))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	status := models.AuthStatus{
		Role:      middleware.GetRoleFromContext(ctx),
		Protected: protected,
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(status)
}
