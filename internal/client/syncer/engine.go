package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/LinkKeeper/internal/models"
	"github.com/atinyakov/LinkKeeper/internal/secure"
	"github.com/atinyakov/LinkKeeper/internal/signature"
)

// ErrPushRejected is reported when the backend refuses a push without a
// transport error (for example a server-side version check).
var ErrPushRejected = errors.New("syncer: push rejected by backend")

// ErrNoConflict is returned by ResolveConflict when no conflict is open.
var ErrNoConflict = errors.New("syncer: no open conflict")

// Default scheduling parameters. The short debounce coalesces bursts of
// edits; the long debounce batches high-frequency click telemetry.
const (
	DefaultShortDebounce = 2 * time.Second
	DefaultLongDebounce  = 30 * time.Second
	DefaultErrorCooldown = 30 * time.Second
	DefaultActionWindow  = 5 * time.Second
)

// Options configures an Engine. Backend and Local are required.
type Options struct {
	Backend Backend
	Local   LocalState
	Logger  *zap.Logger

	// ShortDebounce delays pushes after business edits.
	ShortDebounce time.Duration
	// LongDebounce batches telemetry-only changes.
	LongDebounce time.Duration
	// ErrorCooldown deduplicates background transport errors.
	ErrorCooldown time.Duration
	// ActionWindow is how long after a user action errors bypass the cooldown.
	ActionWindow time.Duration

	// OnError receives deduplicated transport failures.
	OnError func(error)
	// OnEncryptWarning receives non-fatal field-encryption failures.
	OnEncryptWarning func(error)
	// OnConflict fires when a version conflict is detected.
	OnConflict func(*models.SyncConflict)
	// ClearAdminSession is invoked when auth refresh demotes the session.
	ClearAdminSession func()

	// Seal overrides the encryption primitive. Defaults to secure.Encrypt.
	Seal secure.Sealer
}

// Engine owns the session-scoped sync state: signature baselines, the
// single-slot encryption cache, the open conflict and both debounce
// timers. Construct one Engine per application session.
//
// The engine assumes the cooperative single-writer model of the host
// application: state-change notifications, manual operations and timer
// expiries are serialized through an internal mutex, and every timer is
// cancellable by class, so the cancel-before-arm discipline keeps the
// business and telemetry paths mutually exclusive.
type Engine struct {
	backend Backend
	local   LocalState
	log     *zap.Logger

	timers   *timerRegistry
	notifier *errorNotifier
	short    time.Duration
	long     time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	onConflict        func(*models.SyncConflict)
	onEncryptWarning  func(error)
	clearAdminSession func()
	seal              secure.Sealer

	mu           sync.Mutex
	role         models.Role
	ready        bool
	bootstrapped bool
	reauthing    bool
	closed       bool

	baseline  models.SignaturePair
	baselined bool

	conflict *models.SyncConflict

	password   string
	fieldCache secure.FieldCache

	pendingTelemetry *models.SyncPayload
}

// NewEngine constructs an Engine. The engine starts with role "user"
// and schedules nothing until Bootstrap has run.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Backend == nil {
		return nil, fmt.Errorf("syncer: Backend is required")
	}
	if opts.Local == nil {
		return nil, fmt.Errorf("syncer: Local is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.ShortDebounce <= 0 {
		opts.ShortDebounce = DefaultShortDebounce
	}
	if opts.LongDebounce <= 0 {
		opts.LongDebounce = DefaultLongDebounce
	}
	if opts.ErrorCooldown <= 0 {
		opts.ErrorCooldown = DefaultErrorCooldown
	}
	if opts.ActionWindow <= 0 {
		opts.ActionWindow = DefaultActionWindow
	}
	if opts.Seal == nil {
		opts.Seal = secure.Encrypt
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		backend:           opts.Backend,
		local:             opts.Local,
		log:               opts.Logger,
		timers:            newTimerRegistry(),
		notifier:          newErrorNotifier(opts.ErrorCooldown, opts.ActionWindow, opts.OnError, opts.Logger),
		short:             opts.ShortDebounce,
		long:              opts.LongDebounce,
		ctx:               ctx,
		cancel:            cancel,
		onConflict:        opts.OnConflict,
		onEncryptWarning:  opts.OnEncryptWarning,
		clearAdminSession: opts.ClearAdminSession,
		seal:              opts.Seal,
		role:              models.RoleUser,
	}, nil
}

// Close cancels pending timers and in-flight pushes. The engine
// schedules nothing afterwards.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.pendingTelemetry = nil
	e.mu.Unlock()

	e.timers.CancelAll()
	e.cancel()
}

// Role returns the current session role.
func (e *Engine) Role() models.Role {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.role
}

// Ready reports whether the initial bootstrap has completed.
func (e *Engine) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ready
}

// Conflict returns the open conflict, or nil.
func (e *Engine) Conflict() *models.SyncConflict {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conflict
}

// Baseline returns the current baseline signatures. Zero values before
// the first baseline is seeded.
func (e *Engine) Baseline() models.SignaturePair {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.baseline
}

// SetRole updates the session role. Demotion cancels pending timers:
// a non-admin never pushes.
func (e *Engine) SetRole(role models.Role) {
	e.mu.Lock()
	e.role = role
	e.mu.Unlock()
	if role != models.RoleAdmin {
		e.timers.CancelAll()
	}
}

// SetPassword records the sync passphrase without scheduling anything.
// Use NotifyPasswordChanged when the passphrase changes mid-session.
func (e *Engine) SetPassword(password string) {
	e.mu.Lock()
	e.password = password
	e.mu.Unlock()
}

// BeginReauth suspends change classification while the user re-enters
// the sync passphrase.
func (e *Engine) BeginReauth() {
	e.mu.Lock()
	e.reauthing = true
	e.mu.Unlock()
}

// EndReauth resumes change classification.
func (e *Engine) EndReauth() {
	e.mu.Lock()
	e.reauthing = false
	e.mu.Unlock()
}

// canScheduleLocked gates the classifier: post-bootstrap, admin, no open
// conflict, not mid reauth. Callers hold e.mu.
func (e *Engine) canScheduleLocked() bool {
	return e.ready && !e.closed && !e.reauthing &&
		e.role == models.RoleAdmin && e.conflict == nil
}

// NotifyChange classifies the current local state against the baseline
// signatures and schedules a push accordingly.
//
// No drift is a no-op. Business drift re-baselines both signatures
// immediately, cancels any pending telemetry batch and arms the short
// debounce. Telemetry-only drift advances only the full baseline,
// stashes the payload and (re)arms the long debounce without touching
// the short timer or the sync history.
//
// An unset baseline compares unequal to everything: on a fresh account
// with no remote document yet the first edit takes the business path
// and seeds the cloud copy.
func (e *Engine) NotifyChange() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.canScheduleLocked() {
		return
	}

	payload := e.local.BuildLocalSyncPayload()
	pair, err := signature.Build(payload)
	if err != nil {
		e.log.Error("signature computation failed", zap.Error(err))
		return
	}

	if e.baselined && pair.Full == e.baseline.Full {
		return
	}

	if !e.baselined || pair.Business != e.baseline.Business {
		// Optimistic re-baseline: retrying a failed push is the
		// transport's responsibility, not re-diffing.
		e.baseline = pair
		e.baselined = true
		e.timers.Cancel(classTelemetry)
		e.pendingTelemetry = nil
		e.timers.Arm(classBusiness, e.short, e.fireBusiness)
		e.log.Debug("business change scheduled")
		return
	}

	e.baseline.Full = pair.Full
	e.pendingTelemetry = payload
	e.timers.Arm(classTelemetry, e.long, e.fireTelemetry)
	e.log.Debug("telemetry change batched")
}

// NotifyPasswordChanged records the new sync passphrase and routes a
// re-encryption push through the short-debounce path, so stale
// ciphertext is never left remotely. The business/full comparison is
// untouched: ciphertext never participates in signatures.
func (e *Engine) NotifyPasswordChanged(password string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.password = password
	if !e.canScheduleLocked() {
		return
	}

	e.timers.Cancel(classTelemetry)
	e.pendingTelemetry = nil
	e.timers.Arm(classBusiness, e.short, e.fireBusiness)
}

// PageHide flushes both pending timers best-effort with a keepalive
// hint so the transport can degrade delivery to a last-gasp budget.
func (e *Engine) PageHide() {
	e.timers.Flush(classBusiness)
	e.timers.Flush(classTelemetry)
}

// fireBusiness delivers a scheduled business push. The payload is
// rebuilt from live state at fire time so edits landing inside the
// debounce window ride along in a single push; any telemetry batch
// still pending is subsumed by it.
func (e *Engine) fireBusiness(keepalive bool) {
	e.mu.Lock()
	if e.closed || e.role != models.RoleAdmin || e.conflict != nil {
		e.mu.Unlock()
		return
	}

	payload := e.local.BuildLocalSyncPayload()
	if pair, err := signature.Build(payload); err == nil {
		e.baseline = pair
		e.baselined = true
	} else {
		e.log.Error("signature computation failed", zap.Error(err))
	}

	e.timers.Cancel(classTelemetry)
	e.pendingTelemetry = nil
	e.attachSensitiveLocked(payload)
	ctx := e.ctx
	e.mu.Unlock()

	e.push(ctx, payload, false, PushAuto, PushOptions{Keepalive: keepalive})
}

// fireTelemetry delivers the stashed telemetry batch. It skips history
// recording: click counters must not spam the sync log.
func (e *Engine) fireTelemetry(keepalive bool) {
	e.mu.Lock()
	payload := e.pendingTelemetry
	e.pendingTelemetry = nil
	if payload == nil || e.closed || e.role != models.RoleAdmin || e.conflict != nil {
		e.mu.Unlock()
		return
	}
	e.attachSensitiveLocked(payload)
	ctx := e.ctx
	e.mu.Unlock()

	e.push(ctx, payload, false, PushAuto, PushOptions{SkipHistory: true, Keepalive: keepalive})
}

// attachSensitiveLocked folds the encrypted sensitive field into an
// outgoing payload and redacts the plaintext key. Encryption failure is
// non-fatal: the field is omitted and a warning surfaced. Callers hold
// e.mu.
func (e *Engine) attachSensitiveLocked(p *models.SyncPayload) {
	var plaintext string
	if p.AIConfig != nil {
		plaintext = p.AIConfig.APIKey
	}

	ct, err := secure.EncryptField(e.seal, e.password, plaintext, &e.fieldCache)
	switch {
	case err != nil:
		e.log.Warn("sensitive field encryption failed, field omitted", zap.Error(err))
		if e.onEncryptWarning != nil {
			e.onEncryptWarning(err)
		}
	case ct != "":
		p.EncryptedSensitiveConfig = ct
	}

	if p.AIConfig != nil && p.AIConfig.APIKey != "" {
		redacted := *p.AIConfig
		redacted.APIKey = ""
		p.AIConfig = &redacted
	}
}

// push invokes the backend and routes failures to the error callback.
// Nothing escapes the scheduler boundary uncaught; keepalive deliveries
// are fire-and-forget and surface no error at all.
//
// A non-forced push the server rejects on its version check is not an
// error: the remote document moved underneath us, so the rejection is
// turned into an open conflict via handleRejectedPush.
func (e *Engine) push(ctx context.Context, payload *models.SyncPayload, force bool, kind PushKind, opts PushOptions) bool {
	ok, err := e.backend.PushToCloud(ctx, payload, force, kind, opts)
	if err == nil && !ok {
		if !force && !opts.Keepalive {
			e.handleRejectedPush(ctx)
			return false
		}
		err = ErrPushRejected
	}
	if err != nil {
		if opts.Keepalive {
			e.log.Debug("keepalive push failed", zap.Error(err))
		} else {
			e.notifier.Report(fmt.Errorf("push to cloud: %w", err))
		}
		return false
	}
	e.log.Debug("push delivered",
		zap.String("kind", string(kind)),
		zap.Bool("force", force),
		zap.Bool("skipHistory", opts.SkipHistory))
	return true
}

// handleRejectedPush pulls the document that won the version race and
// parks the engine on a two-sided conflict. When the pull itself fails
// or comes back empty there is nothing to show the user, so the
// rejection degrades to the plain error path.
func (e *Engine) handleRejectedPush(ctx context.Context) {
	remote, err := e.backend.PullFromCloud(ctx)
	if err == nil && (remote == nil || !remote.SyncPayload.Usable()) {
		err = ErrPushRejected
	}
	if err != nil {
		e.notifier.Report(fmt.Errorf("push to cloud: %w", err))
		return
	}
	e.raiseConflict(remote, e.local.GetLocalSyncMeta())
}

// ManualSync cancels both pending timers and pushes the current state
// immediately as a history-recording user write.
func (e *Engine) ManualSync(ctx context.Context) {
	e.notifier.NoteUserAction()

	e.mu.Lock()
	if e.closed || !e.ready || e.role != models.RoleAdmin || e.conflict != nil {
		e.mu.Unlock()
		return
	}
	e.timers.CancelAll()
	e.pendingTelemetry = nil

	payload := e.local.BuildLocalSyncPayload()
	if pair, err := signature.Build(payload); err == nil {
		e.baseline = pair
		e.baselined = true
	}
	e.attachSensitiveLocked(payload)
	e.mu.Unlock()

	e.push(ctx, payload, false, PushManual, PushOptions{})
}

// RestoreBackup replaces local state with the given payload and pushes
// it as a forced user write, pre-empting any pending debounce.
func (e *Engine) RestoreBackup(ctx context.Context, payload *models.SyncPayload) {
	e.notifier.NoteUserAction()

	e.mu.Lock()
	if e.closed || !e.ready || e.role != models.RoleAdmin {
		e.mu.Unlock()
		return
	}
	e.timers.CancelAll()
	e.pendingTelemetry = nil

	var meta models.SyncMeta
	if m := e.local.GetLocalSyncMeta(); m != nil {
		meta = *m
	}
	role := e.role
	e.mu.Unlock()

	e.local.ApplyCloudData(&models.SyncDocument{SyncPayload: *payload, Meta: meta}, role)

	e.mu.Lock()
	fresh := e.local.BuildLocalSyncPayload()
	if pair, err := signature.Build(fresh); err == nil {
		e.baseline = pair
		e.baselined = true
	}
	e.attachSensitiveLocked(fresh)
	e.mu.Unlock()

	e.push(ctx, fresh, true, PushManual, PushOptions{})
}
