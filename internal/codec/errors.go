package codec

import "errors"

// Sentinel errors for the codec's error kinds. Callers should
// use errors.Is rather than comparing strings, since wrapped variants
// carry field/schema context via fmt.Errorf("...: %w", ...).
var (
	// ErrBufferTooSmall is returned by Decode/DecodeNew when the source
	// buffer has fewer bytes than the schema's cached total size.
	ErrBufferTooSmall = errors.New("codec: buffer smaller than schema size")

	// ErrStringOverflow is returned by Encode/EncodeInto when a string
	// field's value exceeds its configured maxBytes. This is treated as
	// a caller bug, not a runtime condition to recover from.
	ErrStringOverflow = errors.New("codec: string exceeds field max bytes")
)
