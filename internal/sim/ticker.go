// Package sim implements the fixed-rate simulation ticker and the
// pluggable loop drivers that pump it.
package sim

import "sync"

// TickEvent is the payload delivered to pre-tick/tick/post-tick
// handlers.
type TickEvent struct {
	Tick      uint32
	DeltaTime float64 // seconds, always exactly the ticker's fixed interval
}

// Handler is a tick-phase callback. OnPreTick, OnTick and OnPostTick
// each return an unsubscribe closure, the same multi-handler pattern ServerNetwork uses for
// onConnection/onDisconnection.
type Handler func(TickEvent)

// maxCatchupIntervals bounds how many ticks a single Tick() call can
// fire after a long pause, guarding against a spiral of death where a
// slow tick handler causes ever more catch-up work on the next call.
// Must stay comfortably above the largest legitimate single-call
// catch-up (six ticks, from a 0.1s pause at a 60Hz rate) or normal
// catch-up gets clipped along with true spirals.
const maxCatchupIntervals = 10

// FixedTicker is a deterministic accumulator: real elapsed time feeds
// in via Tick(dt), and whenever enough time has accumulated it fires
// pre-tick, tick, and post-tick in sequence, once per whole interval,
// advancing TickCount monotonically. The leftover fractional interval
// is exposed as Alpha for renderer interpolation.
type FixedTicker struct {
	rate        int
	interval    float64 // seconds
	accumulator float64
	tickCount   uint32

	mu        sync.Mutex
	preTick   []Handler
	tick      []Handler
	postTick  []Handler
	unsubSeq  int
	preTickM  map[int]int
	tickM     map[int]int
	postTickM map[int]int
}

// NewFixedTicker builds a ticker for the given rate in ticks per second.
func NewFixedTicker(rate int) *FixedTicker {
	if rate <= 0 {
		rate = 60
	}
	return &FixedTicker{
		rate:      rate,
		interval:  1.0 / float64(rate),
		preTickM:  make(map[int]int),
		tickM:     make(map[int]int),
		postTickM: make(map[int]int),
	}
}

// Rate returns ticks per second.
func (t *FixedTicker) Rate() int { return t.rate }

// Interval returns the fixed interval in seconds (1/rate).
func (t *FixedTicker) Interval() float64 { return t.interval }

// TickCount returns the number of tick events fired so far.
func (t *FixedTicker) TickCount() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tickCount
}

// Alpha returns the fractional progress toward the next tick, in
// [0, 1), for renderer interpolation between the last completed tick
// and the next one.
func (t *FixedTicker) Alpha() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.accumulator / t.interval
}

func registerHandler(handlers *[]Handler, ids *map[int]int, seq *int, h Handler) func() {
	id := *seq
	*seq++
	*handlers = append(*handlers, h)
	(*ids)[id] = len(*handlers) - 1
	return func() {
		idx, ok := (*ids)[id]
		if !ok {
			return
		}
		*handlers = append((*handlers)[:idx], (*handlers)[idx+1:]...)
		delete(*ids, id)
		for otherID, otherIdx := range *ids {
			if otherIdx > idx {
				(*ids)[otherID] = otherIdx - 1
			}
		}
	}
}

// OnPreTick registers a handler fired just before the tick body, with
// the tick number and delta time that the upcoming tick will use.
func (t *FixedTicker) OnPreTick(h Handler) func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	return registerHandler(&t.preTick, &t.preTickM, &t.unsubSeq, h)
}

// OnTick registers a handler fired during the tick body.
func (t *FixedTicker) OnTick(h Handler) func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	return registerHandler(&t.tick, &t.tickM, &t.unsubSeq, h)
}

// OnPostTick registers a handler fired just after the tick body.
func (t *FixedTicker) OnPostTick(h Handler) func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	return registerHandler(&t.postTick, &t.postTickM, &t.unsubSeq, h)
}

// Tick advances the accumulator by dtSeconds of real time and fires as
// many whole pre-tick/tick/post-tick cycles as have accumulated. The
// accumulator is capped at maxCatchupIntervals*interval first, so a
// long pause (a breakpoint, a suspended process) never causes an
// unbounded burst of catch-up ticks in one call.
func (t *FixedTicker) Tick(dtSeconds float64) {
	t.mu.Lock()
	t.accumulator += dtSeconds
	if ceiling := float64(maxCatchupIntervals) * t.interval; t.accumulator > ceiling {
		t.accumulator = ceiling
	}

	for t.accumulator >= t.interval {
		next := t.tickCount + 1
		evt := TickEvent{Tick: next, DeltaTime: t.interval}

		pre := append([]Handler(nil), t.preTick...)
		body := append([]Handler(nil), t.tick...)
		post := append([]Handler(nil), t.postTick...)
		t.mu.Unlock()

		for _, h := range pre {
			h(evt)
		}
		for _, h := range body {
			h(evt)
		}
		for _, h := range post {
			h(evt)
		}

		t.mu.Lock()
		t.tickCount = next
		t.accumulator -= t.interval
	}
	t.mu.Unlock()
}
