package predict

import (
	"reflect"
	"testing"

	"github.com/odin-gg/netcore/internal/codec"
)

func TestTrackerDropUpToOrdersAscending(t *testing.T) {
	tr := NewTracker()
	tr.Track(10, codec.Record{"n": 10})
	tr.Track(13, codec.Record{"n": 13})
	tr.Track(11, codec.Record{"n": 11})
	tr.Track(12, codec.Record{"n": 12})

	remaining := tr.DropUpTo(11)
	if len(remaining) != 2 {
		t.Fatalf("len(remaining) = %d, want 2", len(remaining))
	}
	if remaining[0].Tick != 12 || remaining[1].Tick != 13 {
		t.Fatalf("unexpected order: %+v", remaining)
	}
}

func TestTrackerDropUpToIdempotent(t *testing.T) {
	tr := NewTracker()
	tr.Track(1, codec.Record{})
	tr.Track(2, codec.Record{})

	first := tr.DropUpTo(1)
	second := tr.DropUpTo(1)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("DropUpTo(1) twice should be idempotent: %+v vs %+v", first, second)
	}
}

// TestReconciliation covers scenario S3.
func TestReconciliation(t *testing.T) {
	tr := NewTracker()
	tr.Track(10, codec.Record{"dx": float32(1)})
	tr.Track(11, codec.Record{"dx": float32(1)})
	tr.Track(12, codec.Record{"dx": float32(1)})
	tr.Track(13, codec.Record{"dx": float32(1)})

	var loaded ServerState
	var replayed []TrackedIntent
	loadCalls, replayCalls := 0, 0

	r := NewReconciliator(tr,
		func(state ServerState) { loaded = state; loadCalls++ },
		func(remaining []TrackedIntent) { replayed = remaining; replayCalls++ },
	)

	r.OnSnapshot(11, ServerState{"x": 5, "y": 5})

	if loadCalls != 1 || replayCalls != 1 {
		t.Fatalf("loadCalls=%d replayCalls=%d, want 1,1", loadCalls, replayCalls)
	}
	if loaded["x"] != 5 {
		t.Fatalf("loaded state = %+v", loaded)
	}
	if len(replayed) != 2 || replayed[0].Tick != 12 || replayed[1].Tick != 13 {
		t.Fatalf("replayed = %+v, want ticks 12,13", replayed)
	}
}
