package codec

import (
	"errors"
	"testing"
)

func moveSchema() *Schema {
	return NewSchema(
		F("kind", U8()),
		F("tick", U32()),
		F("dx", F32()),
		F("dy", F32()),
	)
}

func TestSchemaSize(t *testing.T) {
	s := moveSchema()
	want := 1 + 4 + 4 + 4
	if got := s.Size(); got != want {
		t.Fatalf("Size() = %d, want %d", got, want)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	s := moveSchema()
	in := Record{"kind": uint8(1), "tick": uint32(42), "dx": float32(1.5), "dy": float32(-2.0)}

	encoded, err := s.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(encoded) != s.Size() {
		t.Fatalf("len(encoded) = %d, want %d", len(encoded), s.Size())
	}

	out, err := s.DecodeNew(encoded)
	if err != nil {
		t.Fatalf("DecodeNew: %v", err)
	}
	for _, name := range s.FieldNames() {
		if out[name] != in[name] {
			t.Errorf("field %q = %v, want %v", name, out[name], in[name])
		}
	}
}

func TestDecodeRejectsShortBuffer(t *testing.T) {
	s := moveSchema()
	short := make([]byte, s.Size()-1)
	if _, err := s.DecodeNew(short); !errors.Is(err, ErrBufferTooSmall) {
		t.Fatalf("err = %v, want ErrBufferTooSmall", err)
	}
}

func TestStringFieldFixedSizeAndPadding(t *testing.T) {
	s := NewSchema(F("name", String(8)))
	in := Record{"name": "hi"}

	encoded, err := s.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(encoded) != 2+8 {
		t.Fatalf("len(encoded) = %d, want %d", len(encoded), 2+8)
	}

	out, err := s.DecodeNew(encoded)
	if err != nil {
		t.Fatalf("DecodeNew: %v", err)
	}
	if out["name"] != "hi" {
		t.Fatalf("name = %q, want %q", out["name"], "hi")
	}
}

func TestStringFieldOverflowFails(t *testing.T) {
	s := NewSchema(F("name", String(4)))
	_, err := s.Encode(Record{"name": "too long"})
	if !errors.Is(err, ErrStringOverflow) {
		t.Fatalf("err = %v, want ErrStringOverflow", err)
	}
}

func TestEncodeIntoZeroCopy(t *testing.T) {
	s := moveSchema()
	buf := make([]byte, s.Size()+10)
	in := Record{"kind": uint8(1), "tick": uint32(1), "dx": float32(0), "dy": float32(0)}

	end, err := s.EncodeInto(in, buf, 5)
	if err != nil {
		t.Fatalf("EncodeInto: %v", err)
	}
	if end != 5+s.Size() {
		t.Fatalf("end = %d, want %d", end, 5+s.Size())
	}
}

func TestCalculateSizeIsValueIndependent(t *testing.T) {
	s := NewSchema(F("name", String(16)))
	if got := s.CalculateSize(Record{"name": "a"}); got != s.Size() {
		t.Fatalf("CalculateSize short = %d, want %d", got, s.Size())
	}
	if got := s.CalculateSize(Record{"name": "aaaaaaaaaaaaaaaa"}); got != s.Size() {
		t.Fatalf("CalculateSize long = %d, want %d", got, s.Size())
	}
}

func TestLittleEndianVariant(t *testing.T) {
	s := NewSchema(F("id", U16LE()))
	encoded, err := s.Encode(Record{"id": uint16(0x0102)})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if encoded[0] != 0x02 || encoded[1] != 0x01 {
		t.Fatalf("encoded = %v, want little-endian 0x0102", encoded)
	}
}

func TestVec2AndRGBARoundTrip(t *testing.T) {
	s := NewSchema(F("pos", Vec2Field()), F("color", RGBAField()))
	in := Record{"pos": Vec2{X: 1.5, Y: -2.5}, "color": RGBA{R: 10, G: 20, B: 30, A: 255}}

	encoded, err := s.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := s.DecodeNew(encoded)
	if err != nil {
		t.Fatalf("DecodeNew: %v", err)
	}
	if out["pos"] != in["pos"] || out["color"] != in["color"] {
		t.Fatalf("round trip mismatch: got %+v, want %+v", out, in)
	}
}
