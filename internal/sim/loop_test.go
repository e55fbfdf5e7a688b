package sim

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestImmediateDriverCallsUpdateRepeatedly(t *testing.T) {
	d := NewImmediateDriver()
	var calls int64
	d.Start(func(dt float64) { atomic.AddInt64(&calls, 1) })
	time.Sleep(10 * time.Millisecond)
	d.Stop()

	if atomic.LoadInt64(&calls) == 0 {
		t.Fatal("expected at least one update call")
	}
}

func TestTimedDriverRespectsDelay(t *testing.T) {
	d := NewTimedDriver(2 * time.Millisecond)
	var calls int64
	d.Start(func(dt float64) { atomic.AddInt64(&calls, 1) })
	time.Sleep(25 * time.Millisecond)
	d.Stop()

	got := atomic.LoadInt64(&calls)
	if got < 3 || got > 20 {
		t.Fatalf("calls = %d, expected roughly 10 over 25ms at 2ms delay", got)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	d := NewImmediateDriver()
	d.Start(func(float64) {})
	d.Stop()
	d.Stop() // must not panic
}

func TestFramePulseDriverOnlyFiresOnPulse(t *testing.T) {
	d := NewFramePulseDriver()
	var calls int
	d.Start(func(float64) { calls++ })

	d.Pulse()
	d.Pulse()
	time.Sleep(5 * time.Millisecond) // no goroutine should fire on its own
	if calls != 2 {
		t.Fatalf("calls = %d, want exactly 2 (one per Pulse)", calls)
	}

	d.Stop()
	d.Pulse()
	if calls != 2 {
		t.Fatal("Pulse after Stop should be a no-op")
	}
}
