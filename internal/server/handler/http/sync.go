// Package http provides HTTP handlers for document synchronization.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/atinyakov/LinkKeeper/internal/middleware"
	"github.com/atinyakov/LinkKeeper/internal/models"
	"github.com/atinyakov/LinkKeeper/internal/service"
)

// SyncService defines the interface for synchronization operations
// required by the SyncHandler.
type SyncService interface {
	// Pull returns the user's stored document, or nil when none exists.
	Pull(ctx context.Context, userID string) (*models.SyncDocument, error)
	// Push validates and stores a client write, returning the
	// server-assigned metadata or service.ErrVersionConflict.
	Push(ctx context.Context, userID string, req service.PushRequest) (models.SyncMeta, error)
	// History returns the most recent recorded writes, newest first.
	History(ctx context.Context, userID string, limit int) ([]service.HistoryEntry, error)
}

// SyncHandler handles HTTP requests for document synchronization.
type SyncHandler struct {
	SyncService SyncService
}

// Pull handles POST /api/pull requests. It returns the stored document
// wrapped in {"data": ...}; data is null when the user has never
// pushed.
func (h *SyncHandler) Pull(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserIDFromContext(ctx)

	doc, err := h.SyncService.Pull(ctx, userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"data": doc})
}

// Push handles POST /api/push requests.
//
// Only admin sessions may push. A stale non-forced write is answered
// with 409; the client raises a user-facing conflict from it.
func (h *SyncHandler) Push(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserIDFromContext(ctx)

	if middleware.GetRoleFromContext(ctx) != models.RoleAdmin {
		http.Error(w, "push requires admin role", http.StatusForbidden)
		return
	}

	var req struct {
		Payload     *models.SyncPayload `json:"payload"`
		BaseVersion int64               `json:"baseVersion"`
		DeviceID    string              `json:"deviceId"`
		Force       bool                `json:"force"`
		Kind        string              `json:"kind"`
		SkipHistory bool                `json:"skipHistory"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	meta, err := h.SyncService.Push(ctx, userID, service.PushRequest{
		Payload:     req.Payload,
		BaseVersion: req.BaseVersion,
		DeviceID:    req.DeviceID,
		Kind:        req.Kind,
		Force:       req.Force,
		SkipHistory: req.SkipHistory,
	})
	if errors.Is(err, service.ErrVersionConflict) {
		http.Error(w, "document version conflict", http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"accepted": true, "meta": meta})
}

// History handles GET /api/history requests. The optional limit query
// parameter caps the number of entries; the service clamps it.
func (h *SyncHandler) History(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserIDFromContext(ctx)

	var limit int
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := h.SyncService.History(ctx, userID, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []service.HistoryEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"history": entries})
}
