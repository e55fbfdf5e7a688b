package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/odin-gg/netcore/internal/codec"
)

// Snapshot is the server-authoritative state delta carried by the
// SNAPSHOT channel: a tick (meaning fixed per-channel; see the open
// question on whether it is a server tick or a per-type sequence
// number) plus the registered update schema's fields.
type Snapshot struct {
	Tick    uint32
	Updates codec.Record
}

// DecodedSnapshot is what SnapshotRegistry.Decode hands back: the
// registered type name the typeId resolved to, plus the snapshot body.
type DecodedSnapshot struct {
	Type     string
	Snapshot Snapshot
}

type snapshotSlot struct {
	name    string
	schema  *codec.Schema
	encoder *codec.PooledEncoder
	decoder *codec.PooledDecoder
}

// SnapshotRegistry assigns sequential uint8 type IDs to named snapshot
// schemas in registration order. IDs are only stable within one
// process — they are not a cross-process wire contract unless both
// sides register in the same order, which callers must guarantee
// themselves (e.g. a shared registration function linked into both
// client and server binaries).
type SnapshotRegistry struct {
	byName map[string]uint8
	slots  []*snapshotSlot // index = typeId
}

// NewSnapshotRegistry returns an empty registry.
func NewSnapshotRegistry() *SnapshotRegistry {
	return &SnapshotRegistry{byName: make(map[string]uint8)}
}

// Register assigns the next sequential typeId to name and returns it.
func (r *SnapshotRegistry) Register(name string, schema *codec.Schema) (uint8, error) {
	if _, exists := r.byName[name]; exists {
		return 0, fmt.Errorf("%w: snapshot type %q", ErrDuplicateRegistration, name)
	}
	if len(r.slots) >= 256 {
		return 0, fmt.Errorf("wire: snapshot registry exhausted 256 type ids")
	}
	typeID := uint8(len(r.slots))
	r.slots = append(r.slots, &snapshotSlot{
		name:    name,
		schema:  schema,
		encoder: codec.NewPooledEncoder(schema),
		decoder: codec.NewPooledDecoder(schema),
	})
	r.byName[name] = typeID
	return typeID, nil
}

func (r *SnapshotRegistry) slotByName(name string) (uint8, *snapshotSlot, error) {
	id, ok := r.byName[name]
	if !ok {
		return 0, nil, fmt.Errorf("%w: snapshot type %q", ErrNotRegistered, name)
	}
	return id, r.slots[id], nil
}

// Encode builds [typeId][tick u32 LE][schema-encoded updates].
func (r *SnapshotRegistry) Encode(name string, snap Snapshot) ([]byte, error) {
	typeID, slot, err := r.slotByName(name)
	if err != nil {
		return nil, err
	}
	body, err := slot.schema.Encode(snap.Updates)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 1+4+len(body))
	out[0] = typeID
	binary.LittleEndian.PutUint32(out[1:5], snap.Tick)
	copy(out[5:], body)
	return out, nil
}

// Decode reads the leading typeId and tick, then decodes the remaining
// bytes with the registered schema, allocating a fresh Record.
func (r *SnapshotRegistry) Decode(data []byte) (DecodedSnapshot, error) {
	if len(data) < 5 {
		return DecodedSnapshot{}, fmt.Errorf("%w: snapshot header truncated", ErrUnknownID)
	}
	typeID := data[0]
	if int(typeID) >= len(r.slots) || r.slots[typeID] == nil {
		return DecodedSnapshot{}, fmt.Errorf("%w: snapshot type id %d", ErrUnknownID, typeID)
	}
	slot := r.slots[typeID]
	tick := binary.LittleEndian.Uint32(data[1:5])
	updates, err := slot.schema.DecodeNew(data[5:])
	if err != nil {
		return DecodedSnapshot{}, err
	}
	return DecodedSnapshot{Type: slot.name, Snapshot: Snapshot{Tick: tick, Updates: updates}}, nil
}

// DecodePooled is Decode's zero-allocation sibling. The returned
// Updates record is borrowed; release it with ReleaseUpdates.
func (r *SnapshotRegistry) DecodePooled(data []byte) (DecodedSnapshot, error) {
	if len(data) < 5 {
		return DecodedSnapshot{}, fmt.Errorf("%w: snapshot header truncated", ErrUnknownID)
	}
	typeID := data[0]
	if int(typeID) >= len(r.slots) || r.slots[typeID] == nil {
		return DecodedSnapshot{}, fmt.Errorf("%w: snapshot type id %d", ErrUnknownID, typeID)
	}
	slot := r.slots[typeID]
	tick := binary.LittleEndian.Uint32(data[1:5])
	updates, err := slot.decoder.Decode(data[5:])
	if err != nil {
		return DecodedSnapshot{}, err
	}
	return DecodedSnapshot{Type: slot.name, Snapshot: Snapshot{Tick: tick, Updates: updates}}, nil
}

// ReleaseUpdates returns a Record obtained from DecodePooled for the
// named snapshot type back to its pool. Handlers must not retain the
// updates record past this call.
func (r *SnapshotRegistry) ReleaseUpdates(name string, rec codec.Record) {
	if id, ok := r.byName[name]; ok {
		r.slots[id].decoder.Release(rec)
	}
}

// TypeID returns the numeric type id assigned to name, if registered.
func (r *SnapshotRegistry) TypeID(name string) (uint8, bool) {
	id, ok := r.byName[name]
	return id, ok
}
