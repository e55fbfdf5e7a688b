// Package wire implements the message framing and the three dispatch
// registries (Intent, Snapshot, RPC) described in and §4.4: a
// leading type byte selects a registry, and within a registry a second
// numeric key selects a user schema.
package wire

import "errors"

var (
	// ErrUnknownID is returned when a message references an intent kind,
	// snapshot type ID, or RPC method ID that was never registered.
	ErrUnknownID = errors.New("wire: unknown dispatch id")

	// ErrDuplicateRegistration is returned when Register is called twice
	// for the same kind/name. This is a setup-time error: the caller's
	// registration sequence is inconsistent and the program cannot reach
	// a well-defined state, so it is fatal rather than logged-and-dropped.
	ErrDuplicateRegistration = errors.New("wire: duplicate registration")

	// ErrNotRegistered is returned when encoding or sending references a
	// kind/name/peer that has no matching registry entry.
	ErrNotRegistered = errors.New("wire: not registered")
)
