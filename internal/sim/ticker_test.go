package sim

import (
	"testing"
)

// TestTickerCatchUp covers scenario S5.
func TestTickerCatchUp(t *testing.T) {
	ticker := NewFixedTicker(60)
	var fired []uint32
	ticker.OnTick(func(evt TickEvent) { fired = append(fired, evt.Tick) })

	ticker.Tick(0.1)

	if len(fired) != 6 {
		t.Fatalf("fired %d ticks, want 6", len(fired))
	}
	for i, tick := range fired {
		if tick != uint32(i+1) {
			t.Fatalf("fired[%d] = %d, want %d", i, tick, i+1)
		}
	}
	if alpha := ticker.Alpha(); alpha < 0 || alpha >= 1 {
		t.Fatalf("alpha = %f, want in [0,1)", alpha)
	}
}

func TestTickerSpiralGuardCapsCatchup(t *testing.T) {
	ticker := NewFixedTicker(60)
	count := 0
	ticker.OnTick(func(TickEvent) { count++ })

	ticker.Tick(10.0) // a huge pause

	if count != maxCatchupIntervals {
		t.Fatalf("fired %d ticks, want capped at %d", count, maxCatchupIntervals)
	}
}

func TestTickerAlphaAlwaysInRange(t *testing.T) {
	ticker := NewFixedTicker(30)
	for i := 0; i < 200; i++ {
		ticker.Tick(0.003)
		if a := ticker.Alpha(); a < 0 || a >= 1 {
			t.Fatalf("alpha out of range: %f", a)
		}
	}
}

func TestTickerPhaseOrdering(t *testing.T) {
	ticker := NewFixedTicker(60)
	var order []string
	ticker.OnPreTick(func(TickEvent) { order = append(order, "pre") })
	ticker.OnTick(func(TickEvent) { order = append(order, "tick") })
	ticker.OnPostTick(func(TickEvent) { order = append(order, "post") })

	ticker.Tick(ticker.Interval())

	want := []string{"pre", "tick", "post"}
	if len(order) != 3 {
		t.Fatalf("order = %v, want len 3", order)
	}
	for i, phase := range want {
		if order[i] != phase {
			t.Fatalf("order[%d] = %s, want %s", i, order[i], phase)
		}
	}
}

func TestUnsubscribeRemovesHandler(t *testing.T) {
	ticker := NewFixedTicker(60)
	calls := 0
	unsub := ticker.OnTick(func(TickEvent) { calls++ })
	unsub()

	ticker.Tick(ticker.Interval())
	if calls != 0 {
		t.Fatalf("calls = %d, want 0 after unsubscribe", calls)
	}
}
