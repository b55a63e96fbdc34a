// Package syncer implements the client-driven synchronization core of
// the bookmark dashboard: change classification, debounced push
// scheduling, bootstrap reconciliation, version-conflict handling and
// page-hide flushing. Transport and local persistence are collaborators
// behind the Backend and LocalState interfaces.
package syncer

import (
	"context"

	"github.com/atinyakov/LinkKeeper/internal/models"
)

// PushKind tags a push as background or user-initiated for history and
// error-reporting purposes.
type PushKind string

const (
	// PushAuto is a scheduler-initiated background push.
	PushAuto PushKind = "auto"
	// PushManual is an explicit user-initiated push.
	PushManual PushKind = "manual"
)

// PushOptions carries delivery hints for a single push.
type PushOptions struct {
	// SkipHistory suppresses the sync-history record. Set only on
	// batched telemetry pushes so click counters don't spam the log.
	SkipHistory bool `json:"skipHistory,omitempty"`
	// Keepalive asks the transport to degrade delivery so the request
	// survives the page being torn down.
	Keepalive bool `json:"keepalive,omitempty"`
}

// Backend is the remote half of the sync protocol. Implementations own
// the wire format; the engine treats every call as an opaque async step.
type Backend interface {
	// PullFromCloud fetches the current remote document, or nil when no
	// remote data exists yet.
	PullFromCloud(ctx context.Context) (*models.SyncDocument, error)
	// PushToCloud writes the payload. force bypasses the server version
	// check. The returned bool reports whether the write was accepted.
	PushToCloud(ctx context.Context, payload *models.SyncPayload, force bool, kind PushKind, opts PushOptions) (bool, error)
	// RefreshSyncAuth re-validates the session and returns its role.
	RefreshSyncAuth(ctx context.Context) (models.AuthStatus, error)
}

// LocalState is the on-device half: the dashboard's CRUD store and the
// apply side of the protocol (vault decryption, UI state writes).
type LocalState interface {
	// GetLocalSyncMeta returns the stored sync metadata, or nil when the
	// device has never synced.
	GetLocalSyncMeta() *models.SyncMeta
	// BuildLocalSyncPayload serializes current in-memory state into a
	// payload. It never includes the encrypted sensitive field; the
	// engine attaches that lazily when a push actually fires.
	BuildLocalSyncPayload() *models.SyncPayload
	// ApplyCloudData writes a remote document into local state. Absent
	// optional fields leave the corresponding local values untouched.
	ApplyCloudData(doc *models.SyncDocument, role models.Role)
}
