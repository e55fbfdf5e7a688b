package codec

import "fmt"

// namedField pairs a field name with its descriptor. Schema keeps these
// in a slice, not a map, because iteration order defines the wire
// layout and must be stable.
type namedField struct {
	name  string
	field Field
}

// Schema is an ordered field-name-to-Field mapping. Total byte size is
// computed once at construction and cached, since it never depends on
// the values being encoded (every field reserves its fixed/maximum
// width up front).
type Schema struct {
	fields    []namedField
	totalSize int
	index     map[string]int
}

// FieldSpec is one (name, field) entry passed to NewSchema.
type FieldSpec struct {
	Name  string
	Field Field
}

// NewSchema builds a Schema from an ordered list of (name, field) pairs.
// Field order here becomes wire order; callers that need the "kind: u8
// must come first" intent invariant simply list it first.
func NewSchema(fields ...FieldSpec) *Schema {
	s := &Schema{
		fields: make([]namedField, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for i, f := range fields {
		s.fields[i] = namedField{name: f.Name, field: f.Field}
		s.index[f.Name] = i
		s.totalSize += f.Field.Size()
	}
	return s
}

// F is shorthand for constructing a NewSchema field-list entry:
//
//	codec.NewSchema(codec.F("kind", codec.U8()), codec.F("dx", codec.F32()))
func F(name string, field Field) FieldSpec {
	return FieldSpec{Name: name, Field: field}
}

// Size returns the schema's cached total wire size in bytes.
func (s *Schema) Size() int { return s.totalSize }

// FieldNames returns the schema's fields in wire order.
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.name
	}
	return names
}

// CalculateSize returns the exact number of bytes Encode/EncodeInto will
// need for the given record. Because every field's width is
// value-independent, this is always equal to Size() — the
// method exists so callers can allocate once without caring whether a
// future field kind breaks that invariant.
func (s *Schema) CalculateSize(_ Record) int { return s.totalSize }

// Encode allocates a fresh buffer sized to Size() and writes every field
// of record into it in schema order.
func (s *Schema) Encode(record Record) ([]byte, error) {
	buf := make([]byte, s.totalSize)
	if _, err := s.EncodeInto(record, buf, 0); err != nil {
		return nil, err
	}
	return buf, nil
}

// EncodeInto is the zero-copy path: it writes record's fields directly
// into buf starting at offset and returns the offset immediately past
// the last field written. buf must have at least offset+Size() bytes of
// capacity from offset.
func (s *Schema) EncodeInto(record Record, buf []byte, offset int) (int, error) {
	off := offset
	for _, nf := range s.fields {
		v, ok := record[nf.name]
		if !ok {
			v = nf.field.Nil()
		}
		next, err := nf.field.WriteInto(buf, off, v)
		if err != nil {
			return offset, fmt.Errorf("codec: field %q: %w", nf.name, err)
		}
		off = next
	}
	return off, nil
}

// Decode reads bytes into target, which is filled with one entry per
// schema field. It fails with ErrBufferTooSmall if bytes is shorter than
// Size(); target's prior contents for schema fields are overwritten,
// other keys are left untouched.
func (s *Schema) Decode(data []byte, target Record) (Record, error) {
	if len(data) < s.totalSize {
		return nil, fmt.Errorf("%w: have %d need %d", ErrBufferTooSmall, len(data), s.totalSize)
	}
	if target == nil {
		target = make(Record, len(s.fields))
	}
	off := 0
	for _, nf := range s.fields {
		v, next := nf.field.ReadFrom(data, off)
		target[nf.name] = v
		off = next
	}
	return target, nil
}

// DecodeNew is Decode into a freshly allocated Record, for callers that
// don't have a pooled target handy (tests, one-off decodes).
func (s *Schema) DecodeNew(data []byte) (Record, error) {
	return s.Decode(data, make(Record, len(s.fields)))
}
