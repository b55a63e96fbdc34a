// Package service provides business-logic services for sync
// authentication and document synchronization, delegating persistence
// to repository interfaces.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atinyakov/LinkKeeper/internal/models"
)

// ErrVersionConflict is returned when a non-forced push targets a stale
// document version. The client resolves this with the user, never the
// server.
var ErrVersionConflict = errors.New("service: document version conflict")

// HistoryEntry is one recorded sync write.
type HistoryEntry struct {
	Version   int64  `json:"version"`
	DeviceID  string `json:"deviceId"`
	Kind      string `json:"kind"`
	Forced    bool   `json:"forced"`
	CreatedAt int64  `json:"createdAt"`
}

// SyncRepository defines the persistence operations needed by the
// SyncService.
type SyncRepository interface {
	// GetDocument returns the stored document for the user, or nil when
	// the user has never pushed.
	GetDocument(ctx context.Context, userID string) (*models.SyncDocument, error)
	// SaveDocument inserts or replaces the user's document.
	SaveDocument(ctx context.Context, userID string, doc *models.SyncDocument) error
	// AddHistory appends a sync-history record.
	AddHistory(ctx context.Context, userID string, entry HistoryEntry) error
	// GetHistory returns the most recent history entries, newest first.
	GetHistory(ctx context.Context, userID string, limit int) ([]HistoryEntry, error)
}

// PushRequest is a client write with its concurrency-control inputs.
type PushRequest struct {
	Payload     *models.SyncPayload
	BaseVersion int64
	DeviceID    string
	Kind        string
	Force       bool
	SkipHistory bool
}

// SyncService implements document synchronization with server-assigned
// monotonic versions.
type SyncService struct {
	repo SyncRepository
	now  func() time.Time
}

// NewSyncService constructs a SyncService with the provided repository.
func NewSyncService(repo SyncRepository) *SyncService {
	return &SyncService{repo: repo, now: time.Now}
}

// Pull returns the user's stored document, or nil when none exists.
func (s *SyncService) Pull(ctx context.Context, userID string) (*models.SyncDocument, error) {
	return s.repo.GetDocument(ctx, userID)
}

// Push validates the write against the current version, assigns the
// next version and stores the document.
//
// A non-forced push whose base version does not match the stored
// version returns ErrVersionConflict and changes nothing. History is
// recorded unless the client asked to skip it (batched telemetry);
// history failure never fails an accepted write.
func (s *SyncService) Push(ctx context.Context, userID string, req PushRequest) (models.SyncMeta, error) {
	if req.Payload == nil || !req.Payload.Usable() {
		return models.SyncMeta{}, fmt.Errorf("push: payload must carry links and categories")
	}

	current, err := s.repo.GetDocument(ctx, userID)
	if err != nil {
		return models.SyncMeta{}, fmt.Errorf("load current document: %w", err)
	}
	var currentVersion int64
	if current != nil {
		currentVersion = current.Meta.Version
	}

	if !req.Force && req.BaseVersion != currentVersion {
		return models.SyncMeta{}, ErrVersionConflict
	}

	meta := models.SyncMeta{
		UpdatedAt: s.now().UnixMilli(),
		DeviceID:  req.DeviceID,
		Version:   currentVersion + 1,
	}
	doc := &models.SyncDocument{SyncPayload: *req.Payload, Meta: meta}
	if err := s.repo.SaveDocument(ctx, userID, doc); err != nil {
		return models.SyncMeta{}, fmt.Errorf("save document: %w", err)
	}

	if !req.SkipHistory {
		entry := HistoryEntry{
			Version:   meta.Version,
			DeviceID:  req.DeviceID,
			Kind:      req.Kind,
			Forced:    req.Force,
			CreatedAt: meta.UpdatedAt,
		}
		// Best effort: the write is already durable.
		_ = s.repo.AddHistory(ctx, userID, entry)
	}

	return meta, nil
}

// History limits.
const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// History returns the user's most recent recorded sync writes, newest
// first. A non-positive limit falls back to the default; oversized
// limits are clamped.
func (s *SyncService) History(ctx context.Context, userID string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	entries, err := s.repo.GetHistory(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return entries, nil
}

// Protected reports whether the user's stored document carries
// passphrase-protected content.
func (s *SyncService) Protected(ctx context.Context, userID string) (bool, error) {
	doc, err := s.repo.GetDocument(ctx, userID)
	if err != nil {
		return false, err
	}
	if doc == nil {
		return false, nil
	}
	return doc.EncryptedSensitiveConfig != "" || doc.PrivateVault != nil, nil
}
