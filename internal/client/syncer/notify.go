package syncer

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// errorNotifier routes transport failures to the host application.
//
// Background failures are deduplicated by a cooldown so a flapping
// network doesn't produce an error toast per retry. Failures landing
// shortly after an explicit user action bypass the cooldown: the user
// just asked for a sync and deserves an immediate, unconditional answer.
type errorNotifier struct {
	mu         sync.Mutex
	limiter    *rate.Limiter
	window     time.Duration
	lastAction time.Time

	onError func(error)
	now     func() time.Time
	log     *zap.Logger
}

func newErrorNotifier(cooldown, actionWindow time.Duration, onError func(error), log *zap.Logger) *errorNotifier {
	if onError == nil {
		onError = func(error) {}
	}
	return &errorNotifier{
		limiter: rate.NewLimiter(rate.Every(cooldown), 1),
		window:  actionWindow,
		onError: onError,
		now:     time.Now,
		log:     log,
	}
}

// NoteUserAction opens the unconditional reporting window.
func (n *errorNotifier) NoteUserAction() {
	n.mu.Lock()
	n.lastAction = n.now()
	n.mu.Unlock()
}

// Report surfaces a transport failure, subject to the cooldown unless
// inside the post-user-action window.
func (n *errorNotifier) Report(err error) {
	if err == nil {
		return
	}
	n.log.Warn("sync error", zap.Error(err))

	n.mu.Lock()
	recent := n.now().Sub(n.lastAction) <= n.window
	n.mu.Unlock()

	if recent || n.limiter.Allow() {
		n.onError(err)
	}
}
