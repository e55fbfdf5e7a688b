package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/odin-gg/netcore/internal/codec"
)

// DecodedRpc is what RpcRegistry.Decode hands back: the method name the
// methodId resolved to, plus the decoded payload.
type DecodedRpc struct {
	Method  string
	Payload codec.Record
}

type rpcSlot struct {
	method  string
	schema  *codec.Schema
	encoder *codec.PooledEncoder
	decoder *codec.PooledDecoder
}

// RpcRegistry is the same register-in-order, dense-dispatch pattern as
// SnapshotRegistry, widened to a uint16 methodId namespace for RPC's
// larger surface.
type RpcRegistry struct {
	byName map[string]uint16
	slots  []*rpcSlot // index = methodId
}

// NewRpcRegistry returns an empty registry.
func NewRpcRegistry() *RpcRegistry {
	return &RpcRegistry{byName: make(map[string]uint16)}
}

// Register assigns the next sequential methodId to method.
func (r *RpcRegistry) Register(method string, schema *codec.Schema) (uint16, error) {
	if _, exists := r.byName[method]; exists {
		return 0, fmt.Errorf("%w: rpc method %q", ErrDuplicateRegistration, method)
	}
	if len(r.slots) >= 1<<16 {
		return 0, fmt.Errorf("wire: rpc registry exhausted 65536 method ids")
	}
	methodID := uint16(len(r.slots))
	r.slots = append(r.slots, &rpcSlot{
		method:  method,
		schema:  schema,
		encoder: codec.NewPooledEncoder(schema),
		decoder: codec.NewPooledDecoder(schema),
	})
	r.byName[method] = methodID
	return methodID, nil
}

func (r *RpcRegistry) slotByName(method string) (uint16, *rpcSlot, error) {
	id, ok := r.byName[method]
	if !ok {
		return 0, nil, fmt.Errorf("%w: rpc method %q", ErrNotRegistered, method)
	}
	return id, r.slots[id], nil
}

// Encode builds [methodId u16 LE][schema-encoded payload].
func (r *RpcRegistry) Encode(method string, payload codec.Record) ([]byte, error) {
	methodID, slot, err := r.slotByName(method)
	if err != nil {
		return nil, err
	}
	body, err := slot.schema.Encode(payload)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 2+len(body))
	binary.LittleEndian.PutUint16(out[0:2], methodID)
	copy(out[2:], body)
	return out, nil
}

// Decode reads the leading methodId, then decodes the remaining bytes
// with the registered schema, allocating a fresh Record.
func (r *RpcRegistry) Decode(data []byte) (DecodedRpc, error) {
	if len(data) < 2 {
		return DecodedRpc{}, fmt.Errorf("%w: rpc header truncated", ErrUnknownID)
	}
	methodID := binary.LittleEndian.Uint16(data[0:2])
	if int(methodID) >= len(r.slots) || r.slots[methodID] == nil {
		return DecodedRpc{}, fmt.Errorf("%w: rpc method id %d", ErrUnknownID, methodID)
	}
	slot := r.slots[methodID]
	payload, err := slot.schema.DecodeNew(data[2:])
	if err != nil {
		return DecodedRpc{}, err
	}
	return DecodedRpc{Method: slot.method, Payload: payload}, nil
}

// DecodePooled is Decode's zero-allocation sibling; release the payload
// with ReleasePayload once the caller is done with it.
func (r *RpcRegistry) DecodePooled(data []byte) (DecodedRpc, error) {
	if len(data) < 2 {
		return DecodedRpc{}, fmt.Errorf("%w: rpc header truncated", ErrUnknownID)
	}
	methodID := binary.LittleEndian.Uint16(data[0:2])
	if int(methodID) >= len(r.slots) || r.slots[methodID] == nil {
		return DecodedRpc{}, fmt.Errorf("%w: rpc method id %d", ErrUnknownID, methodID)
	}
	slot := r.slots[methodID]
	payload, err := slot.decoder.Decode(data[2:])
	if err != nil {
		return DecodedRpc{}, err
	}
	return DecodedRpc{Method: slot.method, Payload: payload}, nil
}

// ReleasePayload returns a Record obtained from DecodePooled for the
// named method back to its pool.
func (r *RpcRegistry) ReleasePayload(method string, rec codec.Record) {
	if id, ok := r.byName[method]; ok {
		r.slots[id].decoder.Release(rec)
	}
}

// MethodID returns the numeric id assigned to method, if registered.
func (r *RpcRegistry) MethodID(method string) (uint16, bool) {
	id, ok := r.byName[method]
	return id, ok
}
