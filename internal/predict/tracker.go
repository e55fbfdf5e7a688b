// Package predict implements the client-side prediction bookkeeping:
// IntentTracker records unconfirmed intents by tick, and Reconciliator
// drives the load-state/drop/replay cycle against them.
package predict

import (
	"sort"
	"sync"

	"github.com/odin-gg/netcore/internal/codec"
)

// TrackedIntent pairs a tick with the intent submitted for it.
type TrackedIntent struct {
	Tick   uint32
	Intent codec.Record
}

// Tracker is an ordered tick→intent map. Ticks are monotonic; a second
// Track call for a tick already present overwrites rather than
// duplicates, since a later intent for the same tick supersedes the
// earlier one.
type Tracker struct {
	mu      sync.Mutex
	byTick  map[uint32]codec.Record
	order   []uint32
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{byTick: make(map[uint32]codec.Record)}
}

// Track records intent for tick.
func (tr *Tracker) Track(tick uint32, intent codec.Record) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if _, exists := tr.byTick[tick]; !exists {
		tr.order = append(tr.order, tick)
	}
	tr.byTick[tick] = intent
}

// DropUpTo removes every tracked intent with tick <= cutoff and returns
// the remainder sorted ascending by tick. Idempotent: calling it again
// with the same or a lower cutoff after ticks have already been dropped
// returns the same (now possibly empty of further drops) remainder.
func (tr *Tracker) DropUpTo(cutoff uint32) []TrackedIntent {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	remaining := tr.order[:0:0]
	for _, tick := range tr.order {
		if tick <= cutoff {
			delete(tr.byTick, tick)
			continue
		}
		remaining = append(remaining, tick)
	}
	tr.order = remaining

	sort.Slice(tr.order, func(i, j int) bool { return tr.order[i] < tr.order[j] })

	out := make([]TrackedIntent, len(tr.order))
	for i, tick := range tr.order {
		out[i] = TrackedIntent{Tick: tick, Intent: tr.byTick[tick]}
	}
	return out
}

// Len returns the number of currently tracked intents.
func (tr *Tracker) Len() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return len(tr.order)
}
