package codec

import "github.com/odin-gg/netcore/internal/pool"

// PooledEncoder reuses encode buffers across calls instead of allocating
// a fresh []byte per message, the same size-classed-buffer idea applied
// elsewhere in this module to websocket frames, built on a plain
// pool.Pool so buffers are never evicted behind the caller's back.
type PooledEncoder struct {
	schema *Schema
	bufs   *pool.Pool[[]byte]
}

// NewPooledEncoder builds an encoder whose acquired buffers are always at
// least schema.Size() bytes.
func NewPooledEncoder(schema *Schema) *PooledEncoder {
	size := schema.Size()
	return &PooledEncoder{
		schema: schema,
		bufs: pool.New(func() []byte {
			return make([]byte, size)
		}, func(b []byte) {
			// reset handled by EncodeInto overwriting every byte it owns;
			// nothing to clear here.
		}),
	}
}

// Encode acquires a pooled buffer, writes record into it, and returns
// the written sub-range. The caller must call Release with the same
// slice once it is done with the bytes (after a successful send, or
// after copying them into a private buffer for a queued send), per the
// one-owner-at-a-time rule every pooled buffer in this module follows.
func (e *PooledEncoder) Encode(record Record) ([]byte, error) {
	buf := e.bufs.Acquire()
	if cap(buf) < e.schema.Size() {
		buf = make([]byte, e.schema.Size())
	}
	buf = buf[:e.schema.Size()]
	if _, err := e.schema.EncodeInto(record, buf, 0); err != nil {
		e.bufs.Release(buf)
		return nil, err
	}
	return buf, nil
}

// Release returns a buffer acquired via Encode back to the pool. buf
// must not be used again after this call.
func (e *PooledEncoder) Release(buf []byte) {
	e.bufs.Release(buf[:cap(buf)])
}

// PooledDecoder reuses decoded Record instances across calls. Handlers
// receiving a record from Decode are borrowing it: they must either
// consume primitive fields immediately or deep-copy before retaining a
// reference past the current tick/handler invocation.
type PooledDecoder struct {
	schema  *Schema
	records *pool.Pool[Record]
}

// NewPooledDecoder builds a decoder backed by a pool of Record maps
// pre-sized to the schema's field count.
func NewPooledDecoder(schema *Schema) *PooledDecoder {
	n := len(schema.fields)
	return &PooledDecoder{
		schema: schema,
		records: pool.New(func() Record {
			return make(Record, n)
		}, func(r Record) {
			for k := range r {
				delete(r, k)
			}
		}),
	}
}

// Decode acquires a pooled Record, fills it from data, and returns it.
// The caller is responsible for calling Release once finished borrowing
// the record.
func (d *PooledDecoder) Decode(data []byte) (Record, error) {
	rec := d.records.Acquire()
	if _, err := d.schema.Decode(data, rec); err != nil {
		d.records.Release(rec)
		return nil, err
	}
	return rec, nil
}

// Release returns a record acquired via Decode back to the pool.
func (d *PooledDecoder) Release(rec Record) {
	d.records.Release(rec)
}
