package syncer

import (
	"context"

	"go.uber.org/zap"

	"github.com/atinyakov/LinkKeeper/internal/models"
	"github.com/atinyakov/LinkKeeper/internal/signature"
)

// Bootstrap runs the one-time startup reconciliation after local data
// has finished loading: refresh auth, pull the remote snapshot, then
// apply it, raise a conflict, or seed the signature baselines.
//
// Transport failures are swallowed; the engine is marked ready
// regardless of outcome so a sync failure never blocks the host
// application. Subsequent calls are no-ops.
func (e *Engine) Bootstrap(ctx context.Context) {
	e.mu.Lock()
	if e.bootstrapped || e.closed {
		e.mu.Unlock()
		return
	}
	e.bootstrapped = true
	e.mu.Unlock()

	// Initial sync completes even when every step below fails.
	defer func() {
		e.mu.Lock()
		e.ready = true
		e.mu.Unlock()
	}()

	auth, err := e.backend.RefreshSyncAuth(ctx)
	if err != nil {
		e.log.Warn("auth refresh failed, continuing local-only", zap.Error(err))
		return
	}
	e.mu.Lock()
	e.role = auth.Role
	e.mu.Unlock()
	if auth.Role != models.RoleAdmin && e.clearAdminSession != nil {
		e.clearAdminSession()
	}

	var localVersion int64
	meta := e.local.GetLocalSyncMeta()
	if meta != nil && meta.Version > 0 {
		localVersion = meta.Version
	}

	remote, err := e.backend.PullFromCloud(ctx)
	if err != nil {
		e.log.Warn("bootstrap pull failed, continuing local-only", zap.Error(err))
		return
	}
	if remote == nil || !remote.SyncPayload.Usable() {
		// No remote data yet. The baseline stays unset; the first
		// business edit seeds the cloud document.
		return
	}

	e.reconcile(remote, meta, localVersion, auth.Role)
}

// ManualPull re-runs the pull half of the reconciliation on user
// request, pre-empting any pending debounce.
func (e *Engine) ManualPull(ctx context.Context) {
	e.notifier.NoteUserAction()

	e.mu.Lock()
	if e.closed || !e.ready || e.conflict != nil {
		e.mu.Unlock()
		return
	}
	role := e.role
	e.mu.Unlock()

	e.timers.CancelAll()
	e.mu.Lock()
	e.pendingTelemetry = nil
	e.mu.Unlock()

	remote, err := e.backend.PullFromCloud(ctx)
	if err != nil {
		e.notifier.Report(err)
		return
	}
	if remote == nil || !remote.SyncPayload.Usable() {
		return
	}

	var localVersion int64
	meta := e.local.GetLocalSyncMeta()
	if meta != nil && meta.Version > 0 {
		localVersion = meta.Version
	}
	e.reconcile(remote, meta, localVersion, role)
}

// reconcile decides apply / conflict / baseline for a pulled document
// against the local version.
func (e *Engine) reconcile(remote *models.SyncDocument, meta *models.SyncMeta, localVersion int64, role models.Role) {
	// A non-admin receives the remote state read-only. It never pushes,
	// so no baseline is needed.
	if role != models.RoleAdmin {
		e.local.ApplyCloudData(remote, role)
		return
	}

	// First sync ever: the remote document wins outright and both
	// baselines seed from its payload.
	if localVersion == 0 {
		if pair, err := signature.Build(&remote.SyncPayload); err == nil {
			e.mu.Lock()
			e.baseline = pair
			e.baselined = true
			e.mu.Unlock()
		} else {
			e.log.Error("signature computation failed", zap.Error(err))
		}
		e.local.ApplyCloudData(remote, role)
		e.log.Info("initial sync applied remote data",
			zap.Int64("remoteVersion", remote.Meta.Version))
		return
	}

	if remote.Meta.Version != localVersion {
		e.raiseConflict(remote, meta)
		return
	}

	// Versions equal: baseline from the freshly built local payload,
	// not the remote one, so intentionally excluded fields (the
	// plaintext API key) cannot cause an immediate spurious push.
	e.mu.Lock()
	payload := e.local.BuildLocalSyncPayload()
	if pair, err := signature.Build(payload); err == nil {
		e.baseline = pair
		e.baselined = true
	} else {
		e.log.Error("signature computation failed", zap.Error(err))
	}
	e.mu.Unlock()
}
