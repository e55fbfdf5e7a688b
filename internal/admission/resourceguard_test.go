package admission

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestGuard(reject, pause float64) *ResourceGuard {
	return &ResourceGuard{
		cfg:  Config{CPURejectThreshold: reject, CPUPauseThreshold: pause},
		log:  zerolog.Nop(),
		stop: make(chan struct{}),
	}
}

func TestAllowConnectionThresholds(t *testing.T) {
	g := newTestGuard(80, 90)
	g.setCPU(50)
	if !g.AllowConnection() {
		t.Fatal("expected connections allowed at 50% CPU")
	}
	g.setCPU(85)
	if g.AllowConnection() {
		t.Fatal("expected connections rejected at 85% CPU with 80% threshold")
	}
}

func TestAllowConnectionDisabledThreshold(t *testing.T) {
	g := newTestGuard(0, 0)
	g.setCPU(99)
	if !g.AllowConnection() {
		t.Fatal("zero threshold should disable rejection")
	}
}

func TestShouldPauseJournal(t *testing.T) {
	g := newTestGuard(80, 90)
	g.setCPU(85)
	if g.ShouldPauseJournal() {
		t.Fatal("should not pause below pause threshold")
	}
	g.setCPU(95)
	if !g.ShouldPauseJournal() {
		t.Fatal("should pause above pause threshold")
	}
}

func TestStopIsSafe(t *testing.T) {
	g := New(Config{SampleInterval: time.Millisecond}, zerolog.Nop())
	time.Sleep(3 * time.Millisecond)
	g.Stop()
}

type recordingPauseTarget struct {
	calls []bool
}

func (r *recordingPauseTarget) Pause(paused bool) { r.calls = append(r.calls, paused) }

func TestNotifyPauseTargetReflectsThreshold(t *testing.T) {
	g := newTestGuard(80, 90)
	target := &recordingPauseTarget{}
	g.SetPauseTarget(target)

	g.setCPU(50)
	g.notifyPauseTarget()
	g.setCPU(95)
	g.notifyPauseTarget()

	if len(target.calls) != 2 {
		t.Fatalf("got %d calls, want 2", len(target.calls))
	}
	if target.calls[0] != false || target.calls[1] != true {
		t.Fatalf("calls = %v, want [false true]", target.calls)
	}
}
