package server

import "errors"

var (
	// ErrPeerNotFound is returned when an operation names a peer ID the
	// server has no live Peer for.
	ErrPeerNotFound = errors.New("server: peer not found")
	// ErrSnapshotNotRegistered is returned by SendSnapshotToPeer when the
	// peer's SnapshotRegistry has no entry for the requested type.
	ErrSnapshotNotRegistered = errors.New("server: snapshot type not registered for peer")
	// ErrMessageTooLarge names the oversized-frame condition. The ingress
	// path does not return it: a frame over MaxMessageSize is logged and
	// dropped.
	ErrMessageTooLarge = errors.New("server: message exceeds max size")
)
