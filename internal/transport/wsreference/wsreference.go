// Package wsreference is a reference Transport/ServerTransport adapter
// built on gobwas/ws. The core's wire protocol and component set never
// assume WebSocket specifically, so this package exists only to prove
// the transport.Transport/ServerTransport interfaces are implementable
// end to end, following the same read-pump/write-pump/HTTP-upgrade
// pattern as any gobwas/ws server. Production deployments are expected
// to bring their own adapter (UDP, QUIC, a game-specific SDK).
package wsreference

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/rs/zerolog"

	"github.com/odin-gg/netcore/internal/transport"
)

// Conn adapts one gobwas/ws connection to transport.Transport. The same
// type serves both ends of the socket: isClient picks the correct frame
// masking direction for Send and the correct read helper for readLoop.
type Conn struct {
	conn     net.Conn
	log      zerolog.Logger
	isClient bool

	mu      sync.Mutex
	closed  bool
	onOpen  func()
	onMsg   func([]byte)
	onClose func()
	onError func(error)

	writeMu sync.Mutex
}

func newConn(c net.Conn, log zerolog.Logger) *Conn {
	return &Conn{conn: c, log: log}
}

// Dial opens a client-side connection to a wsreference.Server at addr.
func Dial(ctx context.Context, addr string, log zerolog.Logger) (*Conn, error) {
	conn, _, _, err := ws.DefaultDialer.Dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	c := &Conn{conn: conn, log: log.With().Str("component", "wsreference").Logger(), isClient: true}
	go c.readLoop()
	return c, nil
}

// Send writes one frame as a binary WebSocket message. gobwas writes are
// synchronous, so the returned channel is always pre-resolved.
func (c *Conn) Send(data []byte) <-chan transport.SendResult {
	ch := make(chan transport.SendResult, 1)
	c.writeMu.Lock()
	var err error
	if c.isClient {
		err = wsutil.WriteClientMessage(c.conn, ws.OpBinary, data)
	} else {
		err = wsutil.WriteServerMessage(c.conn, ws.OpBinary, data)
	}
	c.writeMu.Unlock()
	ch <- transport.SendResult{Err: err}
	close(ch)
	return ch
}

func (c *Conn) OnMessage(h func(data []byte)) { c.mu.Lock(); c.onMsg = h; c.mu.Unlock() }
func (c *Conn) OnClose(h func())              { c.mu.Lock(); c.onClose = h; c.mu.Unlock() }
func (c *Conn) OnError(h func(err error))     { c.mu.Lock(); c.onError = h; c.mu.Unlock() }

func (c *Conn) OnOpen(h func()) {
	c.mu.Lock()
	c.onOpen = h
	c.mu.Unlock()
	h()
}

// Close closes the underlying TCP connection. Idempotent.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	onClose := c.onClose
	c.mu.Unlock()
	err := c.conn.Close()
	if onClose != nil {
		onClose()
	}
	return err
}

// readLoop pumps incoming frames until error, dispatching them to the
// registered OnMessage handler, then runs Close on exit: one goroutine
// per connection, every read error treated as a close trigger.
func (c *Conn) readLoop() {
	for {
		var msg []byte
		var op ws.OpCode
		var err error
		if c.isClient {
			msg, op, err = wsutil.ReadServerData(c.conn)
		} else {
			msg, op, err = wsutil.ReadClientData(c.conn)
		}
		if err != nil {
			c.mu.Lock()
			onErr := c.onError
			c.mu.Unlock()
			if onErr != nil && !c.isClosed() {
				onErr(err)
			}
			c.Close()
			return
		}
		switch op {
		case ws.OpClose:
			c.Close()
			return
		case ws.OpBinary, ws.OpText:
			c.mu.Lock()
			onMsg := c.onMsg
			c.mu.Unlock()
			if onMsg != nil {
				onMsg(msg)
			}
		}
	}
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Server is a ServerTransport built on net/http + gobwas/ws.UpgradeHTTP.
type Server struct {
	addr string
	log  zerolog.Logger

	httpServer *http.Server

	mu      sync.RWMutex
	peers   map[string]*Conn
	onAccept func(peerID string, t transport.Transport, remoteAddr string)
}

// New returns a Server listening on addr once ListenAndServe is called.
func New(addr string, log zerolog.Logger) *Server {
	return &Server{
		addr:  addr,
		log:   log.With().Str("component", "wsreference").Logger(),
		peers: make(map[string]*Conn),
	}
}

func (s *Server) OnAccept(handler func(peerID string, t transport.Transport, remoteAddr string)) {
	s.mu.Lock()
	s.onAccept = handler
	s.mu.Unlock()
}

func (s *Server) Peer(peerID string) (transport.Transport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.peers[peerID]
	return c, ok
}

func (s *Server) PeerIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.peers))
	for id := range s.peers {
		ids = append(ids, id)
	}
	return ids
}

func newPeerID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	remoteAddr := r.RemoteAddr
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		s.log.Warn().Err(err).Str("remote_addr", remoteAddr).Msg("websocket upgrade failed")
		return
	}

	peerID := newPeerID()
	c := newConn(conn, s.log)

	s.mu.Lock()
	s.peers[peerID] = c
	onAccept := s.onAccept
	s.mu.Unlock()

	removePeer := func() {
		s.mu.Lock()
		delete(s.peers, peerID)
		s.mu.Unlock()
	}
	c.OnClose(removePeer)

	if onAccept != nil {
		onAccept(peerID, c, remoteAddr)
	}
	// onAccept may have registered its own close handler in place of
	// removePeer; run both on close.
	c.mu.Lock()
	accepted := c.onClose
	c.onClose = func() {
		removePeer()
		if accepted != nil {
			accepted()
		}
	}
	closed := c.closed
	c.mu.Unlock()
	if closed {
		removePeer()
		return
	}
	go c.readLoop()
}

// ListenAndServe starts the HTTP server and blocks until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleUpgrade)
	s.httpServer = &http.Server{Addr: s.addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- s.httpServer.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// Shutdown stops accepting connections and closes every connected peer.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	peers := make([]*Conn, 0, len(s.peers))
	for _, c := range s.peers {
		peers = append(peers, c)
	}
	s.mu.Unlock()
	for _, c := range peers {
		c.Close()
	}
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
