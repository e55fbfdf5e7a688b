// Package server implements the server-side peer manager: per-peer
// state, intent/RPC dispatch, snapshot broadcast with interest
// management, priority-queued backpressure, and heartbeats.
package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/odin-gg/netcore/internal/codec"
	"github.com/odin-gg/netcore/internal/metrics"
	"github.com/odin-gg/netcore/internal/transport"
	"github.com/odin-gg/netcore/internal/wire"
)

// IntentHandler processes one decoded intent from a peer.
type IntentHandler func(peerID string, intent codec.Record)

// IntentValidator gates delivery of a decoded intent to its handlers.
type IntentValidator func(peerID string, intent codec.Record) bool

// RpcHandler processes one decoded RPC payload from a peer.
type RpcHandler func(peerID string, payload codec.Record)

// ConnectionHandler observes a newly accepted peer.
type ConnectionHandler func(peerID string)

// DisconnectionHandler observes a peer's removal.
type DisconnectionHandler func(peerID string)

// ConnectionGate is an admission check run before a peer's Peer state is
// created, keyed by remote address.
type ConnectionGate interface {
	Allow(remoteAddr string) bool
}

// ResourceGate is a second, independent admission check based on
// process-wide resource pressure rather than the connecting address.
type ResourceGate interface {
	AllowConnection() bool
}

// IntentJournal receives every intent that clears rate limiting and
// validation and carries a uint32 "tick" field. Network passes that
// client-supplied tick as serverTick; it keeps no server tick of its own.
// Record must not block; a full journal drops records.
type IntentJournal interface {
	Record(peerID string, serverTick uint32, intent codec.Record)
}

// Relay republishes already-sent snapshot bytes on a side channel for
// cross-instance observability. It never becomes a second
// source of truth.
type Relay interface {
	PublishSnapshot(typeName string, tick uint32, encoded []byte)
}

// Config holds ServerNetwork's tunables.
type Config struct {
	MaxMessageSize       int
	MaxMessagesPerSecond int
	MaxSendQueueSize     int
	HeartbeatInterval    time.Duration
	HeartbeatTimeout     time.Duration
	EnableBufferPooling  bool
	Debug                bool
	// FlushBatchSize bounds how many queued messages a single successful
	// flush drains per peer per call.
	FlushBatchSize int
}

// DefaultConfig returns reasonable production defaults.
func DefaultConfig() Config {
	return Config{
		MaxMessageSize:       65536,
		MaxMessagesPerSecond: 100,
		MaxSendQueueSize:     100,
		HeartbeatInterval:    30 * time.Second,
		HeartbeatTimeout:     60 * time.Second,
		EnableBufferPooling:  true,
		FlushBatchSize:       10,
	}
}

// SnapshotFactory builds a fresh per-peer SnapshotRegistry on connect.
// The common case returns one shared, interned instance across peers;
// divergent fog-of-war deployments may return a genuinely distinct
// registry per peer.
type SnapshotFactory func(peerID string) *wire.SnapshotRegistry

// Network is the server-side peer manager.
type Network struct {
	cfg Config
	log zerolog.Logger

	transport    transport.ServerTransport
	intents      *wire.IntentRegistry
	rpcs         *wire.RpcRegistry
	snapshotFor  SnapshotFactory
	wrapperPool  *wire.MessageWrapperPool

	connGate     ConnectionGate
	resourceGate ResourceGate
	journal      IntentJournal
	relay        Relay
	metrics      *metrics.Registry

	mu    sync.RWMutex
	peers map[string]*Peer

	intentHandlers   map[uint8]*handlerSet[IntentHandler]
	intentValidators map[uint8]*handlerSet[IntentValidator]
	rpcHandlers      map[string]*handlerSet[RpcHandler]
	onConnect        *handlerSet[ConnectionHandler]
	onDisconnect     *handlerSet[DisconnectionHandler]

	handlersMu sync.Mutex

	stopHeartbeat chan struct{}
}

// New builds a Network over the given transport and wire registries.
// Optional collaborators (gates, journal, relay, metrics) are wired
// afterward via the Set* methods; all are nil-safe.
func New(st transport.ServerTransport, intents *wire.IntentRegistry, rpcs *wire.RpcRegistry, snapshotFor SnapshotFactory, cfg Config, log zerolog.Logger) *Network {
	if cfg.FlushBatchSize <= 0 {
		cfg.FlushBatchSize = 10
	}
	return &Network{
		cfg:              cfg,
		log:              log.With().Str("component", "server_network").Logger(),
		transport:        st,
		intents:          intents,
		rpcs:             rpcs,
		snapshotFor:      snapshotFor,
		wrapperPool:      wire.NewMessageWrapperPool(256),
		peers:            make(map[string]*Peer),
		intentHandlers:   make(map[uint8]*handlerSet[IntentHandler]),
		intentValidators: make(map[uint8]*handlerSet[IntentValidator]),
		rpcHandlers:      make(map[string]*handlerSet[RpcHandler]),
		onConnect:        newHandlerSet[ConnectionHandler](),
		onDisconnect:     newHandlerSet[DisconnectionHandler](),
		stopHeartbeat:    make(chan struct{}),
	}
}

func (n *Network) SetConnectionGate(g ConnectionGate)   { n.connGate = g }
func (n *Network) SetResourceGate(g ResourceGate)       { n.resourceGate = g }
func (n *Network) SetJournal(j IntentJournal)           { n.journal = j }
func (n *Network) SetRelay(r Relay)                     { n.relay = r }
func (n *Network) SetMetrics(m *metrics.Registry)       { n.metrics = m }

// OnIntent registers a handler for a given intent kind. validator, if
// non-nil, gates delivery: a false return drops the intent silently
// (logged), no further action.
func (n *Network) OnIntent(kind uint8, handler IntentHandler, validator IntentValidator) func() {
	n.handlersMu.Lock()
	set, ok := n.intentHandlers[kind]
	if !ok {
		set = newHandlerSet[IntentHandler]()
		n.intentHandlers[kind] = set
	}
	var unsubValidator func()
	if validator != nil {
		vset, ok := n.intentValidators[kind]
		if !ok {
			vset = newHandlerSet[IntentValidator]()
			n.intentValidators[kind] = vset
		}
		unsubValidator = vset.add(validator)
	}
	n.handlersMu.Unlock()

	unsub := set.add(handler)
	return func() {
		unsub()
		if unsubValidator != nil {
			unsubValidator()
		}
	}
}

// OnRpc registers a handler for a given RPC method name.
func (n *Network) OnRpc(method string, handler RpcHandler) func() {
	n.handlersMu.Lock()
	set, ok := n.rpcHandlers[method]
	if !ok {
		set = newHandlerSet[RpcHandler]()
		n.rpcHandlers[method] = set
	}
	n.handlersMu.Unlock()
	return set.add(handler)
}

// OnConnection registers a handler invoked once per newly accepted peer.
func (n *Network) OnConnection(h ConnectionHandler) func() { return n.onConnect.add(h) }

// OnDisconnection registers a handler invoked once per peer removal.
func (n *Network) OnDisconnection(h DisconnectionHandler) func() { return n.onDisconnect.add(h) }

// Start wires the accept callback, starts the heartbeat loop, and blocks
// serving connections until ctx is cancelled.
func (n *Network) Start(ctx context.Context) error {
	n.transport.OnAccept(n.handleAccept)
	go n.heartbeatLoop()
	err := n.transport.ListenAndServe(ctx)
	close(n.stopHeartbeat)
	return err
}

// Shutdown stops accepting new connections and disconnects all peers.
func (n *Network) Shutdown(ctx context.Context) error {
	return n.transport.Shutdown(ctx)
}

func (n *Network) handleAccept(peerID string, t transport.Transport, remoteAddr string) {
	if n.connGate != nil && !n.connGate.Allow(remoteAddr) {
		n.log.Debug().Str("remote_addr", remoteAddr).Msg("connection rejected by connection gate")
		if n.metrics != nil {
			n.metrics.ConnectionsRejected.WithLabelValues("connection_rate").Inc()
		}
		t.Close()
		return
	}
	if n.resourceGate != nil && !n.resourceGate.AllowConnection() {
		n.log.Warn().Str("remote_addr", remoteAddr).Msg("connection rejected by resource gate")
		if n.metrics != nil {
			n.metrics.ConnectionsRejected.WithLabelValues("resource").Inc()
		}
		t.Close()
		return
	}

	snapshots := n.snapshotFor(peerID)
	peer := newPeer(peerID, t, remoteAddr, snapshots, n.cfg.MaxSendQueueSize, n.cfg.MaxMessagesPerSecond)

	n.mu.Lock()
	n.peers[peerID] = peer
	n.mu.Unlock()

	if n.metrics != nil {
		n.metrics.PeersTotal.Inc()
		n.metrics.PeersConnected.Inc()
	}

	t.OnMessage(func(data []byte) { n.handleMessage(peer, data) })
	t.OnClose(func() { n.disconnect(peer) })

	for _, h := range n.onConnect.snapshot() {
		n.safeCall(func() { h(peerID) })
	}
}

func (n *Network) safeCall(f func()) {
	defer func() {
		if r := recover(); r != nil {
			n.log.Error().Interface("panic", r).Msg("recovered handler panic")
		}
	}()
	f()
}

func (n *Network) handleMessage(peer *Peer, data []byte) {
	now := time.Now()
	peer.touchReceived(now)
	if n.metrics != nil {
		n.metrics.BytesReceived.Add(float64(len(data)))
	}

	if len(data) == 0 {
		n.log.Debug().Str("peer_id", peer.ID).Msg("dropping empty message")
		return
	}
	if n.cfg.MaxMessageSize > 0 && len(data) > n.cfg.MaxMessageSize {
		n.log.Warn().Str("peer_id", peer.ID).Int("size", len(data)).Msg("dropping oversized message")
		return
	}

	switch wire.MessageType(data[0]) {
	case wire.TypeIntent:
		n.handleIntent(peer, data[1:], now)
	case wire.TypeCustom:
		n.handleRpc(peer, data[1:])
	case wire.TypeHeartbeat:
		// timestamp already updated above
	default:
		n.log.Debug().Str("peer_id", peer.ID).Uint8("type", data[0]).Msg("dropping unknown message type")
	}
}

func (n *Network) handleIntent(peer *Peer, body []byte, now time.Time) {
	peer.mu.Lock()
	allowed := peer.ingressLimit.Allow(now)
	peer.mu.Unlock()
	if !allowed {
		if n.metrics != nil {
			n.metrics.IntentsRateLimited.Inc()
		}
		n.log.Debug().Str("peer_id", peer.ID).Msg("intent dropped: rate limited")
		return
	}

	kind, ok := wire.Kind(body)
	if !ok {
		n.log.Debug().Str("peer_id", peer.ID).Msg("intent dropped: empty body")
		return
	}

	intent, err := n.intents.Decode(body)
	if err != nil {
		if n.metrics != nil {
			n.metrics.CodecErrors.WithLabelValues("intent_decode").Inc()
		}
		n.log.Debug().Err(err).Str("peer_id", peer.ID).Msg("intent decode failed")
		return
	}

	n.handlersMu.Lock()
	vset := n.intentValidators[kind]
	hset := n.intentHandlers[kind]
	n.handlersMu.Unlock()

	if vset != nil {
		for _, v := range vset.snapshot() {
			if !v(peer.ID, intent) {
				n.log.Debug().Str("peer_id", peer.ID).Uint8("kind", kind).Msg("intent rejected by validator")
				return
			}
		}
	}

	if tick, ok := intent["tick"].(uint32); ok {
		peer.mu.Lock()
		peer.lastProcessedClientTick = tick
		peer.mu.Unlock()
		if n.journal != nil {
			n.journal.Record(peer.ID, tick, intent)
		}
	}

	if n.metrics != nil {
		n.metrics.IntentsReceived.Inc()
	}

	if hset != nil {
		for _, h := range hset.snapshot() {
			n.safeCall(func() { h(peer.ID, intent) })
		}
	}
}

func (n *Network) handleRpc(peer *Peer, body []byte) {
	decoded, err := n.rpcs.Decode(body)
	if err != nil {
		if n.metrics != nil {
			n.metrics.CodecErrors.WithLabelValues("rpc_decode").Inc()
		}
		n.log.Debug().Err(err).Str("peer_id", peer.ID).Msg("rpc decode failed")
		return
	}
	if n.metrics != nil {
		n.metrics.RpcReceived.Inc()
	}

	n.handlersMu.Lock()
	hset := n.rpcHandlers[decoded.Method]
	n.handlersMu.Unlock()
	if hset == nil {
		return
	}
	for _, h := range hset.snapshot() {
		n.safeCall(func() { h(peer.ID, decoded.Payload) })
	}
}

// Peer looks up a connected peer by ID.
func (n *Network) Peer(peerID string) (*Peer, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	p, ok := n.peers[peerID]
	return p, ok
}

// PeerIDs enumerates connected peer IDs.
func (n *Network) PeerIDs() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	ids := make([]string, 0, len(n.peers))
	for id := range n.peers {
		ids = append(ids, id)
	}
	return ids
}

// SendSnapshotToPeer encodes and sends (or queues, under backpressure)
// a snapshot to one peer.
func (n *Network) SendSnapshotToPeer(peerID, typeName string, snap wire.Snapshot, priority Priority) error {
	peer, ok := n.Peer(peerID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPeerNotFound, peerID)
	}
	if _, ok := peer.snapshots.TypeID(typeName); !ok {
		return fmt.Errorf("%w: %s for peer %s", ErrSnapshotNotRegistered, typeName, peerID)
	}

	encoded, err := peer.snapshots.Encode(typeName, snap)
	if err != nil {
		if n.metrics != nil {
			n.metrics.CodecErrors.WithLabelValues("snapshot_encode").Inc()
		}
		return err
	}
	wrapped := n.wrapperPool.Wrap(wire.TypeSnapshot, encoded)

	if n.relay != nil {
		n.relay.PublishSnapshot(typeName, snap.Tick, encoded)
	}

	n.deliver(peer, wrapped, priority)

	peer.mu.Lock()
	peer.lastSentTick = snap.Tick
	peer.mu.Unlock()

	return nil
}

// BroadcastSnapshot sends the same snapshot to every peer passing
// filter (nil means every peer).
func (n *Network) BroadcastSnapshot(typeName string, snap wire.Snapshot, filter func(peerID string) bool, priority Priority) {
	for _, peerID := range n.PeerIDs() {
		if filter != nil && !filter(peerID) {
			continue
		}
		if err := n.SendSnapshotToPeer(peerID, typeName, snap, priority); err != nil {
			n.log.Debug().Err(err).Str("peer_id", peerID).Msg("broadcast send failed")
		}
	}
}

// BroadcastSnapshotWithCustomization is the interest-management hook:
// customize produces a per-peer view of base before it is sent.
func (n *Network) BroadcastSnapshotWithCustomization(typeName string, base wire.Snapshot, customize func(peerID string, base wire.Snapshot) wire.Snapshot, priority Priority) {
	for _, peerID := range n.PeerIDs() {
		snap := base
		if customize != nil {
			snap = customize(peerID, base)
		}
		if err := n.SendSnapshotToPeer(peerID, typeName, snap, priority); err != nil {
			n.log.Debug().Err(err).Str("peer_id", peerID).Msg("broadcast send failed")
		}
	}
}

func (n *Network) deliver(peer *Peer, wrapped []byte, priority Priority) {
	peer.mu.Lock()
	backpressured := peer.isBackpressured
	queueDepth := peer.queue.len()
	peer.mu.Unlock()

	if backpressured || queueDepth > 0 {
		cp := make([]byte, len(wrapped))
		copy(cp, wrapped)
		peer.mu.Lock()
		peer.queue.push(queuedMessage{data: cp, priority: priority, enqueuedAt: time.Now()})
		peer.mu.Unlock()
		n.wrapperPool.Release(wrapped)
		if n.metrics != nil {
			n.metrics.SendQueueDepth.Inc()
		}
		return
	}

	n.sendNow(peer, wrapped)
}

func (n *Network) sendNow(peer *Peer, wrapped []byte) {
	result := <-peer.Transport.Send(wrapped)
	if result.Err != nil {
		peer.mu.Lock()
		peer.isBackpressured = true
		peer.mu.Unlock()
		n.wrapperPool.Release(wrapped)
		n.log.Debug().Str("peer_id", peer.ID).Err(result.Err).Msg("transport send failed, marking backpressured")
		return
	}
	n.wrapperPool.Release(wrapped)
	if n.metrics != nil {
		n.metrics.SnapshotsSent.Inc()
		n.metrics.BytesSent.Add(float64(len(wrapped)))
	}
	n.flush(peer)
}

// flush pops up to FlushBatchSize queued messages in priority-then-FIFO
// order after a successful send, stopping early if backpressure
// reasserts.
func (n *Network) flush(peer *Peer) {
	peer.mu.Lock()
	peer.isBackpressured = false
	peer.mu.Unlock()

	for i := 0; i < n.cfg.FlushBatchSize; i++ {
		peer.mu.Lock()
		msg, ok := peer.queue.popFront()
		peer.mu.Unlock()
		if !ok {
			return
		}
		if n.metrics != nil {
			n.metrics.SendQueueDepth.Dec()
		}

		result := <-peer.Transport.Send(msg.data)
		if result.Err != nil {
			peer.mu.Lock()
			peer.isBackpressured = true
			peer.queue.push(msg)
			peer.mu.Unlock()
			if n.metrics != nil {
				n.metrics.SendQueueDepth.Inc()
			}
			return
		}
		if n.metrics != nil {
			n.metrics.SnapshotsSent.Inc()
			n.metrics.BytesSent.Add(float64(len(msg.data)))
		}
	}
}

func (n *Network) heartbeatLoop() {
	if n.cfg.HeartbeatInterval <= 0 {
		return
	}
	ticker := time.NewTicker(n.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			n.runHeartbeat()
		case <-n.stopHeartbeat:
			return
		}
	}
}

func (n *Network) runHeartbeat() {
	now := time.Now()
	for _, peerID := range n.PeerIDs() {
		peer, ok := n.Peer(peerID)
		if !ok {
			continue
		}
		if n.cfg.HeartbeatTimeout > 0 && peer.secondsSinceLastMessage(now) > n.cfg.HeartbeatTimeout {
			n.log.Info().Str("peer_id", peerID).Msg("heartbeat timeout, closing peer")
			peer.Transport.Close()
			continue
		}
		wrapped := n.wrapperPool.Wrap(wire.TypeHeartbeat, nil)
		n.deliver(peer, wrapped, PriorityLow)
	}
}

func (n *Network) disconnect(peer *Peer) {
	n.mu.Lock()
	_, existed := n.peers[peer.ID]
	delete(n.peers, peer.ID)
	n.mu.Unlock()
	if !existed {
		return
	}

	if n.metrics != nil {
		n.metrics.PeersConnected.Dec()
		n.metrics.PeerDisconnects.WithLabelValues("closed").Inc()
	}

	for _, h := range n.onDisconnect.snapshot() {
		n.safeCall(func() { h(peer.ID) })
	}
}
