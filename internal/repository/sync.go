// Package repository provides persistence implementations for the sync
// services using a PostgreSQL database.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/atinyakov/LinkKeeper/internal/models"
	"github.com/atinyakov/LinkKeeper/internal/service"
)

// PostgresSyncRepository implements document storage against a
// PostgreSQL database. The payload is stored as a JSON blob; version
// and provenance are lifted into columns for cheap checks.
type PostgresSyncRepository struct {
	// DB is the database handle for executing queries and transactions.
	DB *sql.DB
}

// NewPostgresSyncRepository creates a new PostgresSyncRepository using
// the provided *sql.DB.
func NewPostgresSyncRepository(db *sql.DB) *PostgresSyncRepository {
	return &PostgresSyncRepository{DB: db}
}

// GetDocument returns the stored document for a user, or nil when the
// user has never pushed.
func (r *PostgresSyncRepository) GetDocument(ctx context.Context, userID string) (*models.SyncDocument, error) {
	var (
		raw       []byte
		version   int64
		updatedAt int64
		deviceID  string
	)
	err := r.DB.QueryRowContext(ctx, `
		SELECT payload, version, updated_at, device_id FROM documents WHERE user_login = $1
	`, userID).Scan(&raw, &version, &updatedAt, &deviceID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetDocument failed: %w", err)
	}

	var payload models.SyncPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode stored payload: %w", err)
	}
	return &models.SyncDocument{
		SyncPayload: payload,
		Meta:        models.SyncMeta{UpdatedAt: updatedAt, DeviceID: deviceID, Version: version},
	}, nil
}

// SaveDocument inserts or replaces the user's document.
func (r *PostgresSyncRepository) SaveDocument(ctx context.Context, userID string, doc *models.SyncDocument) error {
	raw, err := json.Marshal(&doc.SyncPayload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	_, err = r.DB.ExecContext(ctx, `
		INSERT INTO documents (user_login, payload, version, updated_at, device_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_login) DO UPDATE SET
			payload = EXCLUDED.payload,
			version = EXCLUDED.version,
			updated_at = EXCLUDED.updated_at,
			device_id = EXCLUDED.device_id
	`, userID, raw, doc.Meta.Version, doc.Meta.UpdatedAt, doc.Meta.DeviceID)
	if err != nil {
		return fmt.Errorf("SaveDocument failed: %w", err)
	}
	return nil
}

// AddHistory appends a sync-history record.
func (r *PostgresSyncRepository) AddHistory(ctx context.Context, userID string, entry service.HistoryEntry) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO sync_history (user_login, version, device_id, kind, forced, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, userID, entry.Version, entry.DeviceID, entry.Kind, entry.Forced, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("AddHistory failed: %w", err)
	}
	return nil
}

// GetHistory returns the most recent history entries for a user, newest
// first.
func (r *PostgresSyncRepository) GetHistory(ctx context.Context, userID string, limit int) ([]service.HistoryEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT version, device_id, kind, forced, created_at FROM sync_history
		WHERE user_login = $1 ORDER BY created_at DESC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("GetHistory failed: %w", err)
	}
	defer rows.Close()

	var entries []service.HistoryEntry
	for rows.Next() {
		var e service.HistoryEntry
		if err := rows.Scan(&e.Version, &e.DeviceID, &e.Kind, &e.Forced, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
