package wire

import "github.com/odin-gg/netcore/internal/pool"

// defaultSizeClass is the default bucket width, in bytes.
const defaultSizeClass = 256

// MessageWrapperPool hands out reusable buffers for the
// "[type-byte | payload]" framing every outgoing message gets wrapped
// in. Buffers are pooled per size class (a multiple of sizeClass) —
// small/medium/large buckets rather than one pool per exact size —
// backed by pool.Pool so eviction is explicit rather than GC-driven.
type MessageWrapperPool struct {
	sizeClass int
	byClasses map[int]*pool.Pool[[]byte]
}

// NewMessageWrapperPool creates a pool with the given size class. A
// sizeClass <= 0 falls back to defaultSizeClass.
func NewMessageWrapperPool(sizeClass int) *MessageWrapperPool {
	if sizeClass <= 0 {
		sizeClass = defaultSizeClass
	}
	return &MessageWrapperPool{
		sizeClass: sizeClass,
		byClasses: make(map[int]*pool.Pool[[]byte]),
	}
}

func (p *MessageWrapperPool) poolFor(classes int) *pool.Pool[[]byte] {
	bp, ok := p.byClasses[classes]
	if !ok {
		bucketCap := classes * p.sizeClass
		bp = pool.New(func() []byte {
			return make([]byte, bucketCap)
		}, nil)
		p.byClasses[classes] = bp
	}
	return bp
}

// Wrap acquires a buffer sized to the smallest size-class multiple that
// fits 1+len(payload) bytes, writes msgType at byte 0 and payload
// starting at byte 1, and returns the exact-length sub-range (the
// buffer's capacity remains the full bucket size so Release can
// recognize it).
func (p *MessageWrapperPool) Wrap(msgType MessageType, payload []byte) []byte {
	total := 1 + len(payload)
	classes := (total + p.sizeClass - 1) / p.sizeClass
	if classes == 0 {
		classes = 1
	}
	bucket := p.poolFor(classes)
	buf := bucket.Acquire()
	buf = buf[:total]
	buf[0] = byte(msgType)
	copy(buf[1:], payload)
	return buf
}

// Release returns a buffer acquired from Wrap back to its size-class
// pool. Buffers whose capacity is not a sizeClass multiple (e.g. a
// caller-constructed slice never obtained from Wrap) are silently
// dropped for the garbage collector to reclaim,
func (p *MessageWrapperPool) Release(buf []byte) {
	c := cap(buf)
	if c == 0 || c%p.sizeClass != 0 {
		return
	}
	classes := c / p.sizeClass
	bucket := p.poolFor(classes)
	bucket.Release(buf[:c])
}

// SizeClass returns the configured bucket width.
func (p *MessageWrapperPool) SizeClass() int { return p.sizeClass }
