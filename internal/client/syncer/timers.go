package syncer

import (
	"sync"
	"time"
)

// timerClass separates the two debounce channels. Exactly one timer per
// class can be pending at any instant; arming replaces the previous one.
type timerClass int

const (
	// classBusiness is the short-debounce channel for content edits.
	classBusiness timerClass = iota
	// classTelemetry is the long-debounce channel batching click counters.
	classTelemetry
)

func (c timerClass) String() string {
	switch c {
	case classBusiness:
		return "business"
	case classTelemetry:
		return "telemetry"
	default:
		return "unknown"
	}
}

// pendingTimer is one armed debounce entry.
type pendingTimer struct {
	timer *time.Timer
	fn    func(keepalive bool)
}

// timerRegistry is a small cancellable debounce registry keyed by
// class. Arming a class always replaces its previous pending timer, so
// the newest schedule request wins.
type timerRegistry struct {
	mu      sync.Mutex
	pending map[timerClass]*pendingTimer
}

func newTimerRegistry() *timerRegistry {
	return &timerRegistry{pending: make(map[timerClass]*pendingTimer)}
}

// Arm schedules fn to run after delay, replacing any pending timer of
// the same class. fn receives keepalive=false on normal expiry.
func (r *timerRegistry) Arm(class timerClass, delay time.Duration, fn func(keepalive bool)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.pending[class]; ok {
		prev.timer.Stop()
	}

	entry := &pendingTimer{fn: fn}
	entry.timer = time.AfterFunc(delay, func() {
		r.mu.Lock()
		current, ok := r.pending[class]
		if !ok || current != entry {
			// Cancelled or replaced between expiry and lock acquisition.
			r.mu.Unlock()
			return
		}
		delete(r.pending, class)
		r.mu.Unlock()

		fn(false)
	})
	r.pending[class] = entry
}

// Cancel stops and removes the pending timer of a class, if any.
// It reports whether a timer was pending.
func (r *timerRegistry) Cancel(class timerClass) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.pending[class]
	if !ok {
		return false
	}
	entry.timer.Stop()
	delete(r.pending, class)
	return true
}

// CancelAll stops every pending timer.
func (r *timerRegistry) CancelAll() {
	r.Cancel(classBusiness)
	r.Cancel(classTelemetry)
}

// Flush cancels the pending timer of a class and runs its callback
// immediately with keepalive=true. It reports whether anything ran.
func (r *timerRegistry) Flush(class timerClass) bool {
	r.mu.Lock()
	entry, ok := r.pending[class]
	if ok {
		entry.timer.Stop()
		delete(r.pending, class)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	entry.fn(true)
	return true
}

// Armed reports whether a timer of the class is pending.
func (r *timerRegistry) Armed(class timerClass) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pending[class]
	return ok
}
