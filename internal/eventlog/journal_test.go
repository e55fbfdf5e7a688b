package eventlog

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/odin-gg/netcore/internal/codec"
)

func newTestJournal(bufSize int) *Journal {
	return &Journal{
		topic:   "test",
		log:     zerolog.Nop(),
		records: make(chan Record, bufSize),
		done:    make(chan struct{}),
	}
}

func TestRecordStampsArrivalSeq(t *testing.T) {
	j := newTestJournal(4)
	j.Record("p1", 10, codec.Record{"dx": float32(1)})
	j.Record("p1", 11, codec.Record{"dx": float32(2)})

	first := <-j.records
	second := <-j.records
	if first.ArrivalSeq != 1 || second.ArrivalSeq != 2 {
		t.Fatalf("arrival seqs = %d, %d, want 1, 2", first.ArrivalSeq, second.ArrivalSeq)
	}
	if first.PeerID != "p1" || first.ServerTick != 10 {
		t.Fatalf("unexpected record: %+v", first)
	}
}

func TestRecordDropsWhenBufferFull(t *testing.T) {
	j := newTestJournal(1)
	j.Record("p1", 1, codec.Record{})
	j.Record("p1", 2, codec.Record{}) // buffer full, should drop

	if got := j.Dropped(); got != 1 {
		t.Fatalf("Dropped() = %d, want 1", got)
	}
}

func TestRecordDropsWhenPaused(t *testing.T) {
	j := newTestJournal(4)
	j.Pause(true)
	j.Record("p1", 1, codec.Record{})

	if got := j.Dropped(); got != 1 {
		t.Fatalf("Dropped() = %d, want 1", got)
	}
	select {
	case <-j.records:
		t.Fatal("expected no record enqueued while paused")
	default:
	}
}
