// Package ratelimit implements the two rate-limiting strategies this
// module needs: a fixed-window per-second counter for peer/client
// message ingress caps, and a token-bucket connection admission gate
// for the coarser "don't let this IP flood us with new connections"
// concern.
package ratelimit

import "time"

// Window is a fixed-window counter: exactly the algorithm specified for
// per-peer and client-global message rate limiting. A window with
// limit <= 0 disables the check (Allow always returns true).
type Window struct {
	limit       int
	windowStart int64 // unix seconds, floor-aligned
	count       int
}

// NewWindow returns a window enforcing limit messages per second.
// limit <= 0 disables the check.
func NewWindow(limit int) *Window {
	return &Window{limit: limit}
}

// Allow reports whether a message arriving at now may proceed, resetting
// the window if now has crossed into a new second and incrementing the
// counter on success. Not safe for concurrent use — callers serialize
// access the same way they serialize all other per-peer state.
func (w *Window) Allow(now time.Time) bool {
	if w.limit <= 0 {
		return true
	}
	start := now.Unix()
	if start != w.windowStart {
		w.windowStart = start
		w.count = 0
	}
	if w.count >= w.limit {
		return false
	}
	w.count++
	return true
}

// Limit returns the configured per-second cap (0 means disabled).
func (w *Window) Limit() int { return w.limit }
