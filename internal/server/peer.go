package server

import (
	"sync"
	"time"

	"github.com/odin-gg/netcore/internal/ratelimit"
	"github.com/odin-gg/netcore/internal/transport"
	"github.com/odin-gg/netcore/internal/wire"
)

// Peer is one connected peer's server-owned state, created on accept and
// destroyed on disconnect. All mutable fields are guarded by mu;
// ServerNetwork never reaches into a Peer's fields without holding it.
type Peer struct {
	ID          string
	Transport   transport.Transport
	ConnectedAt time.Time
	RemoteAddr  string

	mu                      sync.Mutex
	Metadata                map[string]any
	snapshots               *wire.SnapshotRegistry
	lastSentTick            uint32
	lastProcessedClientTick uint32
	lastMessageReceived     time.Time
	queue                   *sendQueue
	isBackpressured         bool
	ingressLimit            *ratelimit.Window
}

func newPeer(id string, t transport.Transport, remoteAddr string, snapshots *wire.SnapshotRegistry, maxQueueSize, maxMessagesPerSecond int) *Peer {
	now := time.Now()
	return &Peer{
		ID:                  id,
		Transport:           t,
		ConnectedAt:         now,
		RemoteAddr:          remoteAddr,
		Metadata:            make(map[string]any),
		snapshots:           snapshots,
		lastMessageReceived: now,
		queue:               newSendQueue(maxQueueSize),
		ingressLimit:        ratelimit.NewWindow(maxMessagesPerSecond),
	}
}

// Snapshots returns the peer's own SnapshotRegistry, used when a
// deployment needs genuinely divergent per-peer interest management.
func (p *Peer) Snapshots() *wire.SnapshotRegistry {
	return p.snapshots
}

// LastSentTick returns the last snapshot tick sent to this peer.
func (p *Peer) LastSentTick() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSentTick
}

// LastProcessedClientTick returns the last client tick this peer has
// acknowledged via an intent the server processed.
func (p *Peer) LastProcessedClientTick() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastProcessedClientTick
}

// QueueDepth returns the number of messages currently queued for this
// peer.
func (p *Peer) QueueDepth() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.len()
}

// IsBackpressured reports the peer's current backpressure flag.
func (p *Peer) IsBackpressured() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isBackpressured
}

func (p *Peer) touchReceived(now time.Time) {
	p.mu.Lock()
	p.lastMessageReceived = now
	p.mu.Unlock()
}

func (p *Peer) secondsSinceLastMessage(now time.Time) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return now.Sub(p.lastMessageReceived)
}
