package syncer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/atinyakov/LinkKeeper/internal/models"
	"github.com/atinyakov/LinkKeeper/internal/signature"
)

// raiseConflict captures both sides of a version mismatch and parks the
// engine until the user chooses. The local side is the current
// in-memory state re-serialized at detection time, carrying the stored
// local meta and a freshly computed encrypted sensitive field; the
// baselines are deliberately not touched yet.
func (e *Engine) raiseConflict(remote *models.SyncDocument, meta *models.SyncMeta) {
	e.timers.CancelAll()

	e.mu.Lock()
	payload := e.local.BuildLocalSyncPayload()
	e.attachSensitiveLocked(payload)
	e.pendingTelemetry = nil

	var localMeta models.SyncMeta
	if meta != nil {
		localMeta = *meta
	}
	conflict := &models.SyncConflict{
		LocalData:  models.SyncDocument{SyncPayload: *payload, Meta: localMeta},
		RemoteData: *remote,
	}
	e.conflict = conflict
	e.mu.Unlock()

	e.log.Info("sync conflict detected",
		zap.Int64("localVersion", localMeta.Version),
		zap.Int64("remoteVersion", remote.Meta.Version))

	if e.onConflict != nil {
		e.onConflict(conflict)
	}
}

// ResolveConflict applies the user's choice for the open conflict.
//
// KeepRemote re-baselines from the remote payload and applies it
// locally. KeepLocal re-baselines from the captured local payload and
// pushes it as a forced, history-recording user write; if that push
// fails the conflict stays open so resolution can be retried. Both
// branches first cancel every pending timer: whatever was queued was
// scheduled against a stale baseline.
func (e *Engine) ResolveConflict(ctx context.Context, choice models.ConflictChoice) error {
	e.notifier.NoteUserAction()
	e.timers.CancelAll()

	e.mu.Lock()
	conflict := e.conflict
	if conflict == nil {
		e.mu.Unlock()
		return ErrNoConflict
	}
	e.pendingTelemetry = nil
	role := e.role

	switch choice {
	case models.KeepRemote:
		payload := conflict.RemoteData.SyncPayload
		if pair, err := signature.Build(&payload); err == nil {
			e.baseline = pair
			e.baselined = true
		} else {
			e.log.Error("signature computation failed", zap.Error(err))
		}
		remote := conflict.RemoteData
		e.conflict = nil
		e.mu.Unlock()

		e.local.ApplyCloudData(&remote, role)
		e.log.Info("conflict resolved with remote data",
			zap.Int64("version", remote.Meta.Version))
		return nil

	case models.KeepLocal:
		payload := conflict.LocalData.SyncPayload
		if pair, err := signature.Build(&payload); err == nil {
			e.baseline = pair
			e.baselined = true
		} else {
			e.log.Error("signature computation failed", zap.Error(err))
		}
		e.mu.Unlock()

		if !e.push(ctx, &payload, true, PushManual, PushOptions{}) {
			// Conflict stays open; resolution can be retried.
			return nil
		}

		e.mu.Lock()
		e.conflict = nil
		e.mu.Unlock()
		e.log.Info("conflict resolved with local data")
		return nil

	default:
		e.mu.Unlock()
		return fmt.Errorf("syncer: unknown conflict choice %q", choice)
	}
}
