package codec

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Value is the runtime type a Field reads into and writes out of. Schemas
// are map[string]Value records rather than generated structs — the wire
// format is schema-driven at runtime (registries assign IDs at
// registration time, not compile time), so there is no struct to
// generate code against until an embedder chooses to build one on top.
type Value = any

// Record is a decoded or to-be-encoded schema instance: field name to
// value, in no particular map order (the Schema's own field order is
// what defines the wire layout, never map iteration order).
type Record = map[string]Value

// Field is the schema-driven binary descriptor for a single value: a
// fixed byte size, a write, a read, and a zero value. Endianness is part
// of the Field, never "whatever the platform is" — every constructor
// below is explicit about it.
type Field interface {
	// Size returns the fixed number of bytes this field occupies on the
	// wire. It never depends on the value being encoded (a String field's
	// Size is its configured max, regardless of the actual string length).
	Size() int

	// WriteInto writes v into buf at offset and returns offset+Size().
	// It returns ErrStringOverflow if v doesn't fit (string fields only).
	WriteInto(buf []byte, offset int, v Value) (int, error)

	// ReadFrom reads a value out of buf at offset and returns it along
	// with offset+Size(). Callers are responsible for ensuring
	// len(buf) >= offset+Size() first; Schema.Decode does this once for
	// every field up front rather than per-field.
	ReadFrom(buf []byte, offset int) (Value, int)

	// Nil returns the zero value for this field's type, used to seed
	// pooled records before they are filled in by ReadFrom.
	Nil() Value
}

// Vec2 is a 2D float32 vector, a built-in composite field type.
type Vec2 struct{ X, Y float32 }

// Vec3 is a 3D float32 vector.
type Vec3 struct{ X, Y, Z float32 }

// RGBA is a packed 8-bit-per-channel color.
type RGBA struct{ R, G, B, A uint8 }

func order(littleEndian bool) binary.ByteOrder {
	if littleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

type u8Field struct{}

func (u8Field) Size() int { return 1 }
func (u8Field) WriteInto(buf []byte, off int, v Value) (int, error) {
	buf[off] = v.(uint8)
	return off + 1, nil
}
func (u8Field) ReadFrom(buf []byte, off int) (Value, int) { return buf[off], off + 1 }
func (u8Field) Nil() Value                                { return uint8(0) }

type i8Field struct{}

func (i8Field) Size() int { return 1 }
func (i8Field) WriteInto(buf []byte, off int, v Value) (int, error) {
	buf[off] = byte(v.(int8))
	return off + 1, nil
}
func (i8Field) ReadFrom(buf []byte, off int) (Value, int) { return int8(buf[off]), off + 1 }
func (i8Field) Nil() Value                                { return int8(0) }

type boolField struct{}

func (boolField) Size() int { return 1 }
func (boolField) WriteInto(buf []byte, off int, v Value) (int, error) {
	if v.(bool) {
		buf[off] = 1
	} else {
		buf[off] = 0
	}
	return off + 1, nil
}
func (boolField) ReadFrom(buf []byte, off int) (Value, int) { return buf[off] != 0, off + 1 }
func (boolField) Nil() Value                                { return false }

type u16Field struct{ le bool }

func (f u16Field) Size() int { return 2 }
func (f u16Field) WriteInto(buf []byte, off int, v Value) (int, error) {
	order(f.le).PutUint16(buf[off:], v.(uint16))
	return off + 2, nil
}
func (f u16Field) ReadFrom(buf []byte, off int) (Value, int) {
	return order(f.le).Uint16(buf[off:]), off + 2
}
func (u16Field) Nil() Value { return uint16(0) }

type i16Field struct{ le bool }

func (f i16Field) Size() int { return 2 }
func (f i16Field) WriteInto(buf []byte, off int, v Value) (int, error) {
	order(f.le).PutUint16(buf[off:], uint16(v.(int16)))
	return off + 2, nil
}
func (f i16Field) ReadFrom(buf []byte, off int) (Value, int) {
	return int16(order(f.le).Uint16(buf[off:])), off + 2
}
func (i16Field) Nil() Value { return int16(0) }

type u32Field struct{ le bool }

func (f u32Field) Size() int { return 4 }
func (f u32Field) WriteInto(buf []byte, off int, v Value) (int, error) {
	order(f.le).PutUint32(buf[off:], v.(uint32))
	return off + 4, nil
}
func (f u32Field) ReadFrom(buf []byte, off int) (Value, int) {
	return order(f.le).Uint32(buf[off:]), off + 4
}
func (u32Field) Nil() Value { return uint32(0) }

type i32Field struct{ le bool }

func (f i32Field) Size() int { return 4 }
func (f i32Field) WriteInto(buf []byte, off int, v Value) (int, error) {
	order(f.le).PutUint32(buf[off:], uint32(v.(int32)))
	return off + 4, nil
}
func (f i32Field) ReadFrom(buf []byte, off int) (Value, int) {
	return int32(order(f.le).Uint32(buf[off:])), off + 4
}
func (i32Field) Nil() Value { return int32(0) }

type f32Field struct{ le bool }

func (f f32Field) Size() int { return 4 }
func (f f32Field) WriteInto(buf []byte, off int, v Value) (int, error) {
	order(f.le).PutUint32(buf[off:], math.Float32bits(v.(float32)))
	return off + 4, nil
}
func (f f32Field) ReadFrom(buf []byte, off int) (Value, int) {
	return math.Float32frombits(order(f.le).Uint32(buf[off:])), off + 4
}
func (f32Field) Nil() Value { return float32(0) }

type f64Field struct{ le bool }

func (f f64Field) Size() int { return 8 }
func (f f64Field) WriteInto(buf []byte, off int, v Value) (int, error) {
	order(f.le).PutUint64(buf[off:], math.Float64bits(v.(float64)))
	return off + 8, nil
}
func (f f64Field) ReadFrom(buf []byte, off int) (Value, int) {
	return math.Float64frombits(order(f.le).Uint64(buf[off:])), off + 8
}
func (f64Field) Nil() Value { return float64(0) }

// stringField is a length-prefixed UTF-8 string with a fixed maximum
// byte budget: [u16 length][utf8 bytes][zero padding to maxBytes]. Its
// Size() is always 2+maxBytes, independent of the actual string length,
// which keeps Schema's total size value-independent even though string
// contents vary: strings always reserve their max.
type stringField struct {
	maxBytes int
	le       bool
}

func (f stringField) Size() int { return 2 + f.maxBytes }

func (f stringField) WriteInto(buf []byte, off int, v Value) (int, error) {
	s := v.(string)
	raw := []byte(s)
	if len(raw) > f.maxBytes {
		return off, fmt.Errorf("%w: %d bytes exceeds max %d", ErrStringOverflow, len(raw), f.maxBytes)
	}
	order(f.le).PutUint16(buf[off:], uint16(len(raw)))
	body := buf[off+2 : off+2+f.maxBytes]
	n := copy(body, raw)
	for i := n; i < len(body); i++ {
		body[i] = 0
	}
	return off + f.Size(), nil
}

func (f stringField) ReadFrom(buf []byte, off int) (Value, int) {
	n := int(order(f.le).Uint16(buf[off:]))
	if n > f.maxBytes {
		n = f.maxBytes // defensive: never read past the reserved body on a corrupt length
	}
	body := buf[off+2 : off+2+n]
	s := string(body)
	return s, off + f.Size()
}

func (stringField) Nil() Value { return "" }

type vec2Field struct{ le bool }

func (f vec2Field) Size() int { return 8 }
func (f vec2Field) WriteInto(buf []byte, off int, v Value) (int, error) {
	vec := v.(Vec2)
	order(f.le).PutUint32(buf[off:], math.Float32bits(vec.X))
	order(f.le).PutUint32(buf[off+4:], math.Float32bits(vec.Y))
	return off + 8, nil
}
func (f vec2Field) ReadFrom(buf []byte, off int) (Value, int) {
	x := math.Float32frombits(order(f.le).Uint32(buf[off:]))
	y := math.Float32frombits(order(f.le).Uint32(buf[off+4:]))
	return Vec2{X: x, Y: y}, off + 8
}
func (vec2Field) Nil() Value { return Vec2{} }

type vec3Field struct{ le bool }

func (f vec3Field) Size() int { return 12 }
func (f vec3Field) WriteInto(buf []byte, off int, v Value) (int, error) {
	vec := v.(Vec3)
	order(f.le).PutUint32(buf[off:], math.Float32bits(vec.X))
	order(f.le).PutUint32(buf[off+4:], math.Float32bits(vec.Y))
	order(f.le).PutUint32(buf[off+8:], math.Float32bits(vec.Z))
	return off + 12, nil
}
func (f vec3Field) ReadFrom(buf []byte, off int) (Value, int) {
	x := math.Float32frombits(order(f.le).Uint32(buf[off:]))
	y := math.Float32frombits(order(f.le).Uint32(buf[off+4:]))
	z := math.Float32frombits(order(f.le).Uint32(buf[off+8:]))
	return Vec3{X: x, Y: y, Z: z}, off + 12
}
func (vec3Field) Nil() Value { return Vec3{} }

type rgbaField struct{}

func (rgbaField) Size() int { return 4 }
func (rgbaField) WriteInto(buf []byte, off int, v Value) (int, error) {
	c := v.(RGBA)
	buf[off], buf[off+1], buf[off+2], buf[off+3] = c.R, c.G, c.B, c.A
	return off + 4, nil
}
func (rgbaField) ReadFrom(buf []byte, off int) (Value, int) {
	return RGBA{R: buf[off], G: buf[off+1], B: buf[off+2], A: buf[off+3]}, off + 4
}
func (rgbaField) Nil() Value { return RGBA{} }

// Built-in field constructors. Unsuffixed multi-byte numeric fields are
// big-endian by default; LE variants exist for the few
// wire locations (type tags, dispatch IDs) that are little-endian by
// contract.
func U8() Field  { return u8Field{} }
func I8() Field  { return i8Field{} }
func Bool() Field { return boolField{} }

func U16() Field   { return u16Field{le: false} }
func U16LE() Field { return u16Field{le: true} }
func I16() Field   { return i16Field{le: false} }
func I16LE() Field { return i16Field{le: true} }

func U32() Field   { return u32Field{le: false} }
func U32LE() Field { return u32Field{le: true} }
func I32() Field   { return i32Field{le: false} }
func I32LE() Field { return i32Field{le: true} }

func F32() Field   { return f32Field{le: false} }
func F32LE() Field { return f32Field{le: true} }
func F64() Field   { return f64Field{le: false} }
func F64LE() Field { return f64Field{le: true} }

func String(maxBytes int) Field   { return stringField{maxBytes: maxBytes, le: false} }
func StringLE(maxBytes int) Field { return stringField{maxBytes: maxBytes, le: true} }

func Vec2Field() Field { return vec2Field{le: false} }
func Vec3Field() Field { return vec3Field{le: false} }
func RGBAField() Field { return rgbaField{} }
