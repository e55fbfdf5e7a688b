package wire

import (
	"fmt"

	"github.com/odin-gg/netcore/internal/codec"
)

// intentSlot holds everything the registry needs to encode/decode one
// registered intent kind. Slots are addressed by kind directly in a
// dense array per the design note on precomputing id→codec lookups
// instead of doing a map probe on every decode.
type intentSlot struct {
	schema  *codec.Schema
	encoder *codec.PooledEncoder
	decoder *codec.PooledDecoder
}

// IntentRegistry maps numeric intent kinds (a "kind: u8" leading byte)
// to their wire schemas. Registration order has no bearing here (the
// kind is supplied explicitly, unlike Snapshot/Rpc which assign IDs
// sequentially), but duplicate kinds are still rejected at setup time.
type IntentRegistry struct {
	slots [256]*intentSlot
}

// NewIntentRegistry returns an empty registry.
func NewIntentRegistry() *IntentRegistry {
	return &IntentRegistry{}
}

// Register associates kind with schema. By convention schema's first
// field is a u8 named "kind" so a receiver can dispatch by reading one
// byte. Register does not check the schema, and Encode writes only the
// schema's own fields, so byte 0 of an encoded intent is the kind only
// when the schema lists that field first.
func (r *IntentRegistry) Register(kind uint8, schema *codec.Schema) error {
	if r.slots[kind] != nil {
		return fmt.Errorf("%w: intent kind %d", ErrDuplicateRegistration, kind)
	}
	r.slots[kind] = &intentSlot{
		schema:  schema,
		encoder: codec.NewPooledEncoder(schema),
		decoder: codec.NewPooledDecoder(schema),
	}
	return nil
}

func (r *IntentRegistry) slotFor(kind uint8) (*intentSlot, error) {
	slot := r.slots[kind]
	if slot == nil {
		return nil, fmt.Errorf("%w: intent kind %d", ErrUnknownID, kind)
	}
	return slot, nil
}

// Encode looks up the codec registered for intent["kind"] and encodes
// the record, allocating a fresh buffer.
func (r *IntentRegistry) Encode(intent codec.Record) ([]byte, error) {
	kind, ok := intent["kind"].(uint8)
	if !ok {
		return nil, fmt.Errorf("%w: intent missing kind field", ErrNotRegistered)
	}
	slot := r.slots[kind]
	if slot == nil {
		return nil, fmt.Errorf("%w: intent kind %d", ErrNotRegistered, kind)
	}
	return slot.schema.Encode(intent)
}

// EncodePooled is Encode's zero-allocation sibling: the returned buffer
// is borrowed from the per-kind pool and must be released with
// ReleaseEncoded once the caller is done with it (after a send, or
// after copying into a private buffer for queueing).
func (r *IntentRegistry) EncodePooled(intent codec.Record) ([]byte, error) {
	kind, ok := intent["kind"].(uint8)
	if !ok {
		return nil, fmt.Errorf("%w: intent missing kind field", ErrNotRegistered)
	}
	slot := r.slots[kind]
	if slot == nil {
		return nil, fmt.Errorf("%w: intent kind %d", ErrNotRegistered, kind)
	}
	return slot.encoder.Encode(intent)
}

// ReleaseEncoded returns a buffer obtained from EncodePooled for the
// given kind back to its pool.
func (r *IntentRegistry) ReleaseEncoded(kind uint8, buf []byte) {
	if slot := r.slots[kind]; slot != nil {
		slot.encoder.Release(buf)
	}
}

// Decode reads byte 0 of data as the intent kind and dispatches to the
// matching schema, allocating a fresh Record.
func (r *IntentRegistry) Decode(data []byte) (codec.Record, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty intent body", ErrUnknownID)
	}
	slot, err := r.slotFor(data[0])
	if err != nil {
		return nil, err
	}
	return slot.schema.DecodeNew(data)
}

// DecodePooled is Decode's zero-allocation sibling: the returned Record
// is borrowed and must be released with ReleaseDecoded.
func (r *IntentRegistry) DecodePooled(data []byte) (codec.Record, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty intent body", ErrUnknownID)
	}
	slot, err := r.slotFor(data[0])
	if err != nil {
		return nil, err
	}
	return slot.decoder.Decode(data)
}

// ReleaseDecoded returns a Record obtained from DecodePooled for the
// given kind back to its pool.
func (r *IntentRegistry) ReleaseDecoded(kind uint8, rec codec.Record) {
	if slot := r.slots[kind]; slot != nil {
		slot.decoder.Release(rec)
	}
}

// Kind reads the dispatch kind out of an encoded intent body's leading
// byte, without a full schema decode — used by ServerNetwork's ingress
// path to pick the validator and handler sets for the intent.
func Kind(intentBody []byte) (uint8, bool) {
	if len(intentBody) == 0 {
		return 0, false
	}
	return intentBody[0], true
}
