package codec

import "testing"

func TestPooledEncoderReusesBuffer(t *testing.T) {
	s := moveSchema()
	enc := NewPooledEncoder(s)

	buf1, err := enc.Encode(Record{"kind": uint8(1), "tick": uint32(1), "dx": float32(0), "dy": float32(0)})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	backing := &buf1[0]
	enc.Release(buf1)

	buf2, err := enc.Encode(Record{"kind": uint8(2), "tick": uint32(2), "dx": float32(0), "dy": float32(0)})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if &buf2[0] != backing {
		t.Fatalf("expected buffer reuse after release")
	}
	enc.Release(buf2)
}

func TestPooledDecoderBorrowAndRelease(t *testing.T) {
	s := moveSchema()
	enc := NewPooledEncoder(s)
	dec := NewPooledDecoder(s)

	encoded, _ := enc.Encode(Record{"kind": uint8(7), "tick": uint32(9), "dx": float32(1), "dy": float32(2)})
	rec, err := dec.Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if rec["kind"] != uint8(7) || rec["tick"] != uint32(9) {
		t.Fatalf("unexpected record: %+v", rec)
	}
	dec.Release(rec)

	// A fresh decode into the recycled record must carry the new values,
	// not the previous borrower's (kind 7 before, kind 1 now).
	encoded2, _ := enc.Encode(Record{"kind": uint8(1), "tick": uint32(0), "dx": float32(0), "dy": float32(0)})
	rec2, err := dec.Decode(encoded2)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if rec2["kind"] != uint8(1) {
		t.Fatalf("unexpected record: %+v", rec2)
	}
}
