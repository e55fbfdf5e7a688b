// Package transport defines the byte-oriented capability ServerNetwork
// and ClientNetwork consume. The core never speaks WebSocket, UDP, or
// QUIC directly — concrete adapters (see transport/wsreference) live
// outside the core and satisfy these interfaces.
package transport

import "context"

// SendResult is the outcome of an asynchronous Send. A transport that
// sends synchronously can return an already-resolved result.
type SendResult struct {
	Err error
}

// Transport is the minimal capability consumed by one connected peer (or
// the client's single server connection): send bytes, observe incoming
// bytes/close/error, and close.
type Transport interface {
	// Send writes one framed message. It may return before the bytes are
	// actually on the wire; the returned channel receives exactly one
	// SendResult when the write completes or fails. Implementations that
	// are purely synchronous may return a channel that is already closed
	// with a value.
	Send(data []byte) <-chan SendResult

	// OnMessage registers a handler invoked once per received frame.
	// Only one handler is supported; registering again replaces it.
	OnMessage(handler func(data []byte))
	// OnClose registers a handler invoked exactly once when the
	// transport closes, whether initiated locally or remotely.
	OnClose(handler func())
	// OnError registers a handler invoked on transport-level errors that
	// do not themselves close the connection.
	OnError(handler func(err error))
	// OnOpen registers a handler invoked once the transport is ready to
	// send. Transports that are open immediately on construction may
	// invoke it synchronously from within OnOpen itself.
	OnOpen(handler func())

	// Close closes the transport. Idempotent: closing an already-closed
	// transport is a no-op.
	Close() error
}

// ServerTransport is the server-side factory/registry surface: it owns
// accepting new peer connections and exposes a get/enumerate surface
// over the resulting per-peer Transports, each identified by an opaque
// peer ID the server transport itself generates.
type ServerTransport interface {
	// OnAccept registers the callback invoked for each newly accepted
	// peer connection, with the server-generated peer ID, the peer's
	// Transport, and the remote address (used by admission gates).
	OnAccept(handler func(peerID string, t Transport, remoteAddr string))

	// Peer looks up a previously accepted peer's Transport by ID.
	Peer(peerID string) (Transport, bool)
	// PeerIDs enumerates currently connected peer IDs.
	PeerIDs() []string

	// ListenAndServe blocks, accepting connections until ctx is
	// cancelled or an unrecoverable error occurs.
	ListenAndServe(ctx context.Context) error
	// Shutdown stops accepting new connections and closes all peers.
	Shutdown(ctx context.Context) error
}
