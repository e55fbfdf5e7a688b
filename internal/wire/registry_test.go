package wire

import (
	"errors"
	"testing"

	"github.com/odin-gg/netcore/internal/codec"
)

func moveIntentSchema() *codec.Schema {
	return codec.NewSchema(
		codec.F("kind", codec.U8()),
		codec.F("tick", codec.U32()),
		codec.F("dx", codec.F32()),
		codec.F("dy", codec.F32()),
	)
}

func TestIntentRoundTrip(t *testing.T) {
	reg := NewIntentRegistry()
	if err := reg.Register(1, moveIntentSchema()); err != nil {
		t.Fatalf("Register: %v", err)
	}

	in := codec.Record{"kind": uint8(1), "tick": uint32(42), "dx": float32(1.5), "dy": float32(-2.0)}
	encoded, err := reg.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(encoded) != 1+4+4+4 {
		t.Fatalf("len(encoded) = %d, want 13", len(encoded))
	}
	if encoded[0] != 1 {
		t.Fatalf("encoded[0] = %d, want kind 1", encoded[0])
	}

	out, err := reg.Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out["kind"] != uint8(1) || out["tick"] != uint32(42) {
		t.Fatalf("unexpected decode: %+v", out)
	}
}

func TestIntentDuplicateRegistrationFails(t *testing.T) {
	reg := NewIntentRegistry()
	if err := reg.Register(1, moveIntentSchema()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register(1, moveIntentSchema()); !errors.Is(err, ErrDuplicateRegistration) {
		t.Fatalf("err = %v, want ErrDuplicateRegistration", err)
	}
}

func TestIntentUnknownKindFails(t *testing.T) {
	reg := NewIntentRegistry()
	if _, err := reg.Decode([]byte{9, 0, 0, 0, 0}); !errors.Is(err, ErrUnknownID) {
		t.Fatalf("err = %v, want ErrUnknownID", err)
	}
}

func playerUpdatesSchema() *codec.Schema {
	return codec.NewSchema(codec.F("score", codec.U32()))
}

func TestSnapshotEncodeDecode(t *testing.T) {
	reg := NewSnapshotRegistry()
	typeID, err := reg.Register("players", playerUpdatesSchema())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if typeID != 0 {
		t.Fatalf("typeID = %d, want 0 (first registration)", typeID)
	}

	snap := Snapshot{Tick: 11, Updates: codec.Record{"score": uint32(100)}}
	encoded, err := reg.Encode("players", snap)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := reg.Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.Type != "players" {
		t.Fatalf("Type = %q, want players", decoded.Type)
	}
	if decoded.Snapshot.Tick != 11 {
		t.Fatalf("Tick = %d, want 11", decoded.Snapshot.Tick)
	}
	if decoded.Snapshot.Updates["score"] != uint32(100) {
		t.Fatalf("score = %v, want 100", decoded.Snapshot.Updates["score"])
	}
}

func TestSnapshotRegistrationOrderAssignsSequentialIDs(t *testing.T) {
	reg := NewSnapshotRegistry()
	id1, _ := reg.Register("players", playerUpdatesSchema())
	id2, _ := reg.Register("world", playerUpdatesSchema())
	if id1 != 0 || id2 != 1 {
		t.Fatalf("ids = %d,%d want 0,1", id1, id2)
	}
}

func TestSnapshotDuplicateNameFails(t *testing.T) {
	reg := NewSnapshotRegistry()
	reg.Register("players", playerUpdatesSchema())
	if _, err := reg.Register("players", playerUpdatesSchema()); !errors.Is(err, ErrDuplicateRegistration) {
		t.Fatalf("err = %v, want ErrDuplicateRegistration", err)
	}
}

func TestRpcEncodeDecode(t *testing.T) {
	reg := NewRpcRegistry()
	schema := codec.NewSchema(codec.F("msg", codec.String(32)))
	methodID, err := reg.Register("chat", schema)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if methodID != 0 {
		t.Fatalf("methodID = %d, want 0", methodID)
	}

	encoded, err := reg.Encode("chat", codec.Record{"msg": "hello"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := reg.Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.Method != "chat" || decoded.Payload["msg"] != "hello" {
		t.Fatalf("unexpected decode: %+v", decoded)
	}
}

func TestMessageWrapperPoolWrapRelease(t *testing.T) {
	p := NewMessageWrapperPool(256)
	payload := make([]byte, 10)
	buf := p.Wrap(TypeSnapshot, payload)
	if len(buf) != 11 {
		t.Fatalf("len(buf) = %d, want 11", len(buf))
	}
	if buf[0] != byte(TypeSnapshot) {
		t.Fatalf("buf[0] = %d, want %d", buf[0], TypeSnapshot)
	}
	if cap(buf) != 256 {
		t.Fatalf("cap(buf) = %d, want 256 (one size class)", cap(buf))
	}

	p.Release(buf)

	// A second Wrap of the same size class should reuse the released
	// backing array.
	buf2 := p.Wrap(TypeSnapshot, payload)
	if &buf2[:cap(buf2)][0] != &buf[:cap(buf)][0] {
		t.Fatalf("expected buffer reuse across release/wrap")
	}
}

func TestMessageWrapperPoolDropsNonClassBuffers(t *testing.T) {
	p := NewMessageWrapperPool(256)
	odd := make([]byte, 10) // cap not a multiple of 256
	p.Release(odd)          // must not panic; silently dropped
}
