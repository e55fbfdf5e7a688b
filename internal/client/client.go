// Package client implements the client-side network manager: intent
// sending with change-detection, snapshot/RPC receipt, heartbeat
// watchdog, and optional artificial lag simulation.
package client

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/odin-gg/netcore/internal/codec"
	"github.com/odin-gg/netcore/internal/ratelimit"
	"github.com/odin-gg/netcore/internal/transport"
	"github.com/odin-gg/netcore/internal/wire"
)

// SnapshotHandler processes a decoded snapshot update.
type SnapshotHandler func(snap wire.Snapshot)

// RpcHandler processes a decoded RPC payload.
type RpcHandler func(payload codec.Record)

// Comparator decides whether a newly built intent differs meaningfully
// from the last one sent of the same kind. The default ignores "tick".
type Comparator func(last, next codec.Record) bool

// LagSimulation configures an artificial receive delay. A fixed delay
// sets Min == Max.
type LagSimulation struct {
	Min time.Duration
	Max time.Duration
}

// Config holds ClientNetwork's tunables.
type Config struct {
	MaxMessagesPerSecond int
	HeartbeatInterval    time.Duration
	HeartbeatTimeout     time.Duration
	Lag                  *LagSimulation
}

// Network is the client-side network manager: a single peer connection
// plus the change-detection, heartbeat, and lag-simulation bookkeeping
// around it.
type Network struct {
	cfg Config
	log zerolog.Logger

	t       transport.Transport
	intents *wire.IntentRegistry
	rpcs    *wire.RpcRegistry

	mu              sync.Mutex
	connected       bool
	lastSent        map[uint8]codec.Record
	egressLimit     *ratelimit.Window
	lastMessageSeen time.Time

	snapshotHandlersMu sync.Mutex
	snapshotHandlers   map[string][]SnapshotHandler
	rpcHandlersMu      sync.Mutex
	rpcHandlers        map[string][]RpcHandler

	snapshots *wire.SnapshotRegistry

	stopHeartbeat chan struct{}
}

// New builds a ClientNetwork over t. snapshots is the client's own
// SnapshotRegistry, owned for the lifetime of the connection.
func New(t transport.Transport, intents *wire.IntentRegistry, rpcs *wire.RpcRegistry, snapshots *wire.SnapshotRegistry, cfg Config, log zerolog.Logger) *Network {
	n := &Network{
		cfg:              cfg,
		log:              log.With().Str("component", "client_network").Logger(),
		t:                t,
		intents:          intents,
		rpcs:             rpcs,
		snapshots:        snapshots,
		lastSent:         make(map[uint8]codec.Record),
		egressLimit:      ratelimit.NewWindow(cfg.MaxMessagesPerSecond),
		snapshotHandlers: make(map[string][]SnapshotHandler),
		rpcHandlers:      make(map[string][]RpcHandler),
		stopHeartbeat:    make(chan struct{}),
	}

	t.OnOpen(func() {
		n.mu.Lock()
		n.connected = true
		n.lastMessageSeen = time.Now()
		n.mu.Unlock()
	})
	t.OnClose(func() {
		n.mu.Lock()
		n.connected = false
		n.mu.Unlock()
	})
	t.OnMessage(n.handleMessage)

	// A transport with no OnOpen semantics (synchronous construction) is
	// already open by the time New returns.
	n.mu.Lock()
	if !n.connected {
		n.connected = true
		n.lastMessageSeen = time.Now()
	}
	n.mu.Unlock()

	go n.heartbeatLoop()
	return n
}

// IsConnected reports whether the transport is currently open.
func (n *Network) IsConnected() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.connected
}

// OnSnapshot registers a handler for a named snapshot type.
func (n *Network) OnSnapshot(typeName string, h SnapshotHandler) {
	n.snapshotHandlersMu.Lock()
	defer n.snapshotHandlersMu.Unlock()
	n.snapshotHandlers[typeName] = append(n.snapshotHandlers[typeName], h)
}

// OnRpc registers a handler for a named RPC method.
func (n *Network) OnRpc(method string, h RpcHandler) {
	n.rpcHandlersMu.Lock()
	defer n.rpcHandlersMu.Unlock()
	n.rpcHandlers[method] = append(n.rpcHandlers[method], h)
}

// SendIntent encodes and sends intent if the client is connected and
// under its rate limit, then records it for future change-detection.
func (n *Network) SendIntent(intent codec.Record) error {
	n.mu.Lock()
	if !n.connected {
		n.mu.Unlock()
		return nil
	}
	if !n.egressLimit.Allow(time.Now()) {
		n.mu.Unlock()
		n.log.Debug().Msg("intent dropped: client rate limit exceeded")
		return nil
	}
	n.mu.Unlock()

	body, err := n.intents.Encode(intent)
	if err != nil {
		return fmt.Errorf("client: encode intent: %w", err)
	}
	framed := make([]byte, 1+len(body))
	framed[0] = byte(wire.TypeIntent)
	copy(framed[1:], body)

	result := <-n.t.Send(framed)
	if result.Err != nil {
		return fmt.Errorf("client: send intent: %w", result.Err)
	}

	kind, _ := intent["kind"].(uint8)
	clone := make(codec.Record, len(intent))
	for k, v := range intent {
		clone[k] = v
	}
	n.mu.Lock()
	n.lastSent[kind] = clone
	n.mu.Unlock()
	return nil
}

// HasIntentChanged reports whether intent differs from the last intent
// of the same kind sent via SendIntent. With compare == nil, the default
// comparator ignores the "tick" field.
func (n *Network) HasIntentChanged(intent codec.Record, compare Comparator) bool {
	kind, _ := intent["kind"].(uint8)
	n.mu.Lock()
	last, ok := n.lastSent[kind]
	n.mu.Unlock()
	if !ok {
		return true
	}
	if compare != nil {
		return compare(last, intent)
	}
	return defaultCompare(last, intent)
}

func defaultCompare(last, next codec.Record) bool {
	if len(last) != len(next) {
		return true
	}
	for k, v := range next {
		if k == "tick" {
			continue
		}
		if last[k] != v {
			return true
		}
	}
	return false
}

func (n *Network) handleMessage(data []byte) {
	n.mu.Lock()
	n.lastMessageSeen = time.Now()
	n.mu.Unlock()

	if len(data) == 0 {
		return
	}

	deliver := func() { n.dispatch(data) }
	if n.cfg.Lag != nil {
		cp := make([]byte, len(data))
		copy(cp, data)
		delay := n.lagDelay()
		time.AfterFunc(delay, func() { n.dispatch(cp) })
		return
	}
	deliver()
}

func (n *Network) lagDelay() time.Duration {
	lag := n.cfg.Lag
	if lag.Min >= lag.Max {
		return lag.Min
	}
	span := lag.Max - lag.Min
	return lag.Min + time.Duration(rand.Int63n(int64(span)))
}

func (n *Network) dispatch(data []byte) {
	switch wire.MessageType(data[0]) {
	case wire.TypeSnapshot:
		n.handleSnapshot(data[1:])
	case wire.TypeCustom:
		n.handleRpc(data[1:])
	case wire.TypeHeartbeat:
		// watchdog timestamp already updated
	}
}

func (n *Network) handleSnapshot(body []byte) {
	decoded, err := n.snapshots.DecodePooled(body)
	if err != nil {
		n.log.Debug().Err(err).Msg("snapshot decode failed")
		return
	}

	n.snapshotHandlersMu.Lock()
	handlers := append([]SnapshotHandler(nil), n.snapshotHandlers[decoded.Type]...)
	n.snapshotHandlersMu.Unlock()

	for _, h := range handlers {
		h(decoded.Snapshot)
	}
	n.snapshots.ReleaseUpdates(decoded.Type, decoded.Snapshot.Updates)
}

func (n *Network) handleRpc(body []byte) {
	decoded, err := n.rpcs.DecodePooled(body)
	if err != nil {
		n.log.Debug().Err(err).Msg("rpc decode failed")
		return
	}

	n.rpcHandlersMu.Lock()
	handlers := append([]RpcHandler(nil), n.rpcHandlers[decoded.Method]...)
	n.rpcHandlersMu.Unlock()

	for _, h := range handlers {
		h(decoded.Payload)
	}
	n.rpcs.ReleasePayload(decoded.Method, decoded.Payload)
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
	n.mu.Lock()
	elapsed := time.Since(n.lastMessageSeen)
	n.mu.Unlock()

	if n.cfg.HeartbeatTimeout > 0 && elapsed > n.cfg.HeartbeatTimeout {
		n.log.Info().Msg("heartbeat timeout, disconnecting")
		n.t.Close()
		return
	}
	framed := []byte{byte(wire.TypeHeartbeat)}
	<-n.t.Send(framed)
}

// Close stops the heartbeat loop and closes the transport.
func (n *Network) Close() error {
	close(n.stopHeartbeat)
	return n.t.Close()
}
