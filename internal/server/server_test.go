package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/odin-gg/netcore/internal/codec"
	"github.com/odin-gg/netcore/internal/transport"
	"github.com/odin-gg/netcore/internal/wire"
)

// fakeConn is an in-memory transport.Transport that records every send
// and lets a test push inbound bytes directly.
type fakeConn struct {
	mu      sync.Mutex
	sent    [][]byte
	closed  bool
	onMsg   func([]byte)
	onClose func()
	failNextSend bool
}

func (c *fakeConn) Send(data []byte) <-chan transport.SendResult {
	ch := make(chan transport.SendResult, 1)
	c.mu.Lock()
	if c.failNextSend {
		c.failNextSend = false
		c.mu.Unlock()
		ch <- transport.SendResult{Err: errSendFailed}
		close(ch)
		return ch
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	c.sent = append(c.sent, cp)
	c.mu.Unlock()
	ch <- transport.SendResult{}
	close(ch)
	return ch
}

func (c *fakeConn) OnMessage(h func([]byte)) { c.onMsg = h }
func (c *fakeConn) OnClose(h func())         { c.onClose = h }
func (c *fakeConn) OnError(func(error))      {}
func (c *fakeConn) OnOpen(h func())          { h() }
func (c *fakeConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	onClose := c.onClose
	c.mu.Unlock()
	if onClose != nil {
		onClose()
	}
	return nil
}

func (c *fakeConn) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func (c *fakeConn) lastSent() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent[len(c.sent)-1]
}

var errSendFailed = fakeErr("send failed")

type fakeErr string

func (e fakeErr) Error() string { return string(e) }

type fakeServerTransport struct {
	onAccept func(peerID string, t transport.Transport, remoteAddr string)
	peers    map[string]*fakeConn
}

func newFakeServerTransport() *fakeServerTransport {
	return &fakeServerTransport{peers: make(map[string]*fakeConn)}
}

func (f *fakeServerTransport) OnAccept(h func(peerID string, t transport.Transport, remoteAddr string)) {
	f.onAccept = h
}
func (f *fakeServerTransport) Peer(peerID string) (transport.Transport, bool) {
	c, ok := f.peers[peerID]
	return c, ok
}
func (f *fakeServerTransport) PeerIDs() []string {
	ids := make([]string, 0, len(f.peers))
	for id := range f.peers {
		ids = append(ids, id)
	}
	return ids
}
func (f *fakeServerTransport) ListenAndServe(ctx context.Context) error { <-ctx.Done(); return nil }
func (f *fakeServerTransport) Shutdown(ctx context.Context) error      { return nil }

func (f *fakeServerTransport) accept(peerID, remoteAddr string) *fakeConn {
	c := &fakeConn{}
	f.peers[peerID] = c
	f.onAccept(peerID, c, remoteAddr)
	return c
}

func moveSchema() *codec.Schema {
	return codec.NewSchema(
		codec.F("kind", codec.U8()),
		codec.F("tick", codec.U32()),
		codec.F("dx", codec.F32()),
		codec.F("dy", codec.F32()),
	)
}

func playersSchema() *codec.Schema {
	return codec.NewSchema(codec.F("score", codec.U32()))
}

func newTestNetwork(t *testing.T) (*Network, *fakeServerTransport) {
	t.Helper()
	ft := newFakeServerTransport()
	intents := wire.NewIntentRegistry()
	if err := intents.Register(1, moveSchema()); err != nil {
		t.Fatal(err)
	}
	rpcs := wire.NewRpcRegistry()

	snapshots := wire.NewSnapshotRegistry()
	if _, err := snapshots.Register("players", playersSchema()); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	cfg.HeartbeatInterval = 0 // disable background heartbeat ticker in tests
	n := New(ft, intents, rpcs, func(string) *wire.SnapshotRegistry { return snapshots }, cfg, zerolog.Nop())
	return n, ft
}

// TestIntentRoundTrip covers scenario S1.
func TestIntentRoundTrip(t *testing.T) {
	n, ft := newTestNetwork(t)

	received := make(chan codec.Record, 1)
	n.OnIntent(1, func(peerID string, intent codec.Record) {
		received <- intent
	}, nil)

	conn := ft.accept("p1", "10.0.0.1:1234")

	body, err := n.intents.Encode(codec.Record{"kind": uint8(1), "tick": uint32(42), "dx": float32(1.5), "dy": float32(-2.0)})
	if err != nil {
		t.Fatal(err)
	}
	framed := append([]byte{0x01}, body...)
	conn.onMsg(framed)

	select {
	case intent := <-received:
		if intent["tick"] != uint32(42) {
			t.Fatalf("tick = %v, want 42", intent["tick"])
		}
	case <-time.After(time.Second):
		t.Fatal("handler never fired")
	}
}

// TestSnapshotInterestManagement covers scenario S2.
func TestSnapshotInterestManagement(t *testing.T) {
	n, ft := newTestNetwork(t)
	c1 := ft.accept("p1", "10.0.0.1:1")
	c2 := ft.accept("p2", "10.0.0.2:1")

	base := wire.Snapshot{Tick: 1, Updates: codec.Record{"score": uint32(100)}}
	n.BroadcastSnapshotWithCustomization("players", base, func(peerID string, base wire.Snapshot) wire.Snapshot {
		mult := uint32(2)
		if peerID == "p2" {
			mult = 3
		}
		score := base.Updates["score"].(uint32) * mult
		return wire.Snapshot{Tick: base.Tick, Updates: codec.Record{"score": score}}
	}, PriorityNormal)

	snapshots := wire.NewSnapshotRegistry()
	snapshots.Register("players", playersSchema())

	decode := func(conn *fakeConn) uint32 {
		if conn.sentCount() == 0 {
			t.Fatal("expected a send")
		}
		decoded, err := snapshots.Decode(conn.lastSent()[1:])
		if err != nil {
			t.Fatal(err)
		}
		return decoded.Snapshot.Updates["score"].(uint32)
	}

	if got := decode(c1); got != 200 {
		t.Fatalf("p1 score = %d, want 200", got)
	}
	if got := decode(c2); got != 300 {
		t.Fatalf("p2 score = %d, want 300", got)
	}
}

func TestHeartbeatTimeoutClosesPeer(t *testing.T) {
	n, ft := newTestNetwork(t)
	n.cfg.HeartbeatTimeout = 10 * time.Millisecond

	var disconnected string
	var wg sync.WaitGroup
	wg.Add(1)
	n.OnDisconnection(func(peerID string) {
		disconnected = peerID
		wg.Done()
	})

	conn := ft.accept("p1", "10.0.0.1:1")
	time.Sleep(20 * time.Millisecond)
	n.runHeartbeat()

	wg.Wait()
	if disconnected != "p1" {
		t.Fatalf("disconnected = %q, want p1", disconnected)
	}
	if !conn.closed {
		t.Fatal("expected transport closed")
	}
}

func TestSendSnapshotToPeerQueuesWhenBackpressured(t *testing.T) {
	n, ft := newTestNetwork(t)
	conn := ft.accept("p1", "10.0.0.1:1")
	conn.failNextSend = true

	snap := wire.Snapshot{Tick: 1, Updates: codec.Record{"score": uint32(1)}}
	if err := n.SendSnapshotToPeer("p1", "players", snap, PriorityNormal); err != nil {
		t.Fatal(err)
	}
	peer, _ := n.Peer("p1")
	if !peer.IsBackpressured() {
		t.Fatal("expected peer backpressured after failed send")
	}

	if err := n.SendSnapshotToPeer("p1", "players", snap, PriorityNormal); err != nil {
		t.Fatal(err)
	}
	if peer.QueueDepth() != 1 {
		t.Fatalf("queue depth = %d, want 1 (second send queued while backpressured)", peer.QueueDepth())
	}
}

func TestSendSnapshotToPeerUpdatesLastSentTick(t *testing.T) {
	n, ft := newTestNetwork(t)
	ft.accept("p1", "10.0.0.1:1")
	peer, _ := n.Peer("p1")

	if got := peer.LastSentTick(); got != 0 {
		t.Fatalf("LastSentTick = %d before any send, want 0", got)
	}

	snap := wire.Snapshot{Tick: 7, Updates: codec.Record{"score": uint32(1)}}
	if err := n.SendSnapshotToPeer("p1", "players", snap, PriorityNormal); err != nil {
		t.Fatal(err)
	}
	if got := peer.LastSentTick(); got != 7 {
		t.Fatalf("LastSentTick = %d, want 7", got)
	}
}
