package syncer

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestTimerRegistry_ArmReplacesPending(t *testing.T) {
	r := newTimerRegistry()
	var first, second atomic.Int32

	r.Arm(classBusiness, 20*time.Millisecond, func(bool) { first.Add(1) })
	r.Arm(classBusiness, 20*time.Millisecond, func(bool) { second.Add(1) })

	time.Sleep(100 * time.Millisecond)
	if first.Load() != 0 {
		t.Fatalf("replaced timer still fired")
	}
	if second.Load() != 1 {
		t.Fatalf("second timer fired %d times; want 1", second.Load())
	}
}

func TestTimerRegistry_ClassesAreIndependent(t *testing.T) {
	r := newTimerRegistry()
	var business, telemetry atomic.Int32

	r.Arm(classBusiness, 10*time.Millisecond, func(bool) { business.Add(1) })
	r.Arm(classTelemetry, 10*time.Millisecond, func(bool) { telemetry.Add(1) })

	time.Sleep(100 * time.Millisecond)
	if business.Load() != 1 || telemetry.Load() != 1 {
		t.Fatalf("fires = %d/%d; want 1/1", business.Load(), telemetry.Load())
	}
}

func TestTimerRegistry_Cancel(t *testing.T) {
	r := newTimerRegistry()
	var fired atomic.Int32

	r.Arm(classBusiness, 20*time.Millisecond, func(bool) { fired.Add(1) })
	if !r.Cancel(classBusiness) {
		t.Fatalf("Cancel reported nothing pending")
	}
	if r.Cancel(classBusiness) {
		t.Fatalf("second Cancel reported a pending timer")
	}

	time.Sleep(100 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatalf("cancelled timer fired")
	}
}

func TestTimerRegistry_FlushRunsImmediatelyWithKeepalive(t *testing.T) {
	r := newTimerRegistry()
	var gotKeepalive atomic.Bool
	var fires atomic.Int32

	r.Arm(classBusiness, time.Hour, func(keepalive bool) {
		gotKeepalive.Store(keepalive)
		fires.Add(1)
	})

	if !r.Flush(classBusiness) {
		t.Fatalf("Flush reported nothing pending")
	}
	if fires.Load() != 1 {
		t.Fatalf("flush did not run the callback synchronously")
	}
	if !gotKeepalive.Load() {
		t.Fatalf("flushed callback did not receive keepalive=true")
	}
	if r.Armed(classBusiness) {
		t.Fatalf("timer still armed after flush")
	}
	if r.Flush(classBusiness) {
		t.Fatalf("second Flush reported a pending timer")
	}
}

func TestTimerRegistry_NormalExpiryNotKeepalive(t *testing.T) {
	r := newTimerRegistry()
	done := make(chan bool, 1)

	r.Arm(classTelemetry, 5*time.Millisecond, func(keepalive bool) { done <- keepalive })

	select {
	case keepalive := <-done:
		if keepalive {
			t.Fatalf("normal expiry reported keepalive=true")
		}
	case <-time.After(time.Second):
		t.Fatalf("timer never fired")
	}
	if r.Armed(classTelemetry) {
		t.Fatalf("timer still registered after expiry")
	}
}

func TestErrorNotifier_CooldownDeduplicates(t *testing.T) {
	var reported atomic.Int32
	n := newErrorNotifier(time.Hour, time.Millisecond, func(error) { reported.Add(1) }, zap.NewNop())

	errBoom := errors.New("boom")
	n.Report(errBoom)
	n.Report(errBoom)
	n.Report(errBoom)

	if reported.Load() != 1 {
		t.Fatalf("reported = %d within cooldown; want 1", reported.Load())
	}
}

func TestErrorNotifier_UserActionBypassesCooldown(t *testing.T) {
	var reported atomic.Int32
	n := newErrorNotifier(time.Hour, time.Minute, func(error) { reported.Add(1) }, zap.NewNop())

	errBoom := errors.New("boom")
	n.Report(errBoom)
	n.NoteUserAction()
	n.Report(errBoom)
	n.Report(errBoom)

	if reported.Load() != 3 {
		t.Fatalf("reported = %d; want 3 inside the action window", reported.Load())
	}
}

func TestErrorNotifier_NilErrorIgnored(t *testing.T) {
	var reported atomic.Int32
	n := newErrorNotifier(time.Millisecond, time.Minute, func(error) { reported.Add(1) }, zap.NewNop())

	n.NoteUserAction()
	n.Report(nil)
	if reported.Load() != 0 {
		t.Fatalf("nil error reported")
	}
}
