package predict

import "github.com/odin-gg/netcore/internal/codec"

// ServerState is the authoritative state payload carried by a snapshot
// driving reconciliation. It is intentionally just a Record: the
// simulation layer defines its own fields.
type ServerState = codec.Record

// LoadStateFunc overwrites local predicted fields from the authoritative
// server view.
type LoadStateFunc func(state ServerState)

// ReplayFunc re-applies each remaining intent, in tick order, to the
// simulation starting from the authoritative baseline LoadStateFunc just
// installed.
type ReplayFunc func(remaining []TrackedIntent)

// Reconciliator performs the three-step reconciliation cycle: load the
// authoritative state, drop confirmed intents, replay the rest.
type Reconciliator struct {
	tracker  *Tracker
	onLoad   LoadStateFunc
	onReplay ReplayFunc
}

// NewReconciliator binds a Tracker and the two caller-supplied callbacks
// that apply state and replay intents onto the simulation.
func NewReconciliator(tracker *Tracker, onLoad LoadStateFunc, onReplay ReplayFunc) *Reconciliator {
	return &Reconciliator{tracker: tracker, onLoad: onLoad, onReplay: onReplay}
}

// TrackIntent records an intent the caller predicted locally and has not
// yet seen acknowledged by the server.
func (r *Reconciliator) TrackIntent(tick uint32, intent codec.Record) {
	r.tracker.Track(tick, intent)
}

// OnSnapshot runs the reconciliation cycle for a snapshot acknowledging
// up through tick: load state, drop everything at or before tick, replay
// what's left.
func (r *Reconciliator) OnSnapshot(tick uint32, state ServerState) {
	r.onLoad(state)
	remaining := r.tracker.DropUpTo(tick)
	r.onReplay(remaining)
}
