// Package cluster provides an optional cross-instance relay for
// deployments that shard connected peers across multiple server
// processes. It republishes already-sent snapshot bytes onto a NATS
// subject for out-of-process observers; it never becomes a second
// owner of peer state.
package cluster

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Config configures the NATS connection and subject prefix used to
// namespace relayed snapshot types.
type Config struct {
	URL           string
	SubjectPrefix string
}

// Relay republishes broadcast snapshot bytes on a per-type NATS
// subject. It satisfies the server package's Relay interface
// structurally: PublishSnapshot(typeName string, tick uint32, encoded
// []byte).
type Relay struct {
	conn   *nats.Conn
	prefix string
	log    zerolog.Logger
}

// Connect dials NATS with indefinite reconnect, suitable for a
// long-lived server process that should ride out broker restarts.
func Connect(cfg Config, log zerolog.Logger) (*Relay, error) {
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = "netcore.snapshot"
	}
	conn, err := nats.Connect(cfg.URL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("relay disconnected from nats")
		}),
		nats.ReconnectHandler(func(*nats.Conn) {
			log.Info().Msg("relay reconnected to nats")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("cluster: connect nats: %w", err)
	}
	return &Relay{conn: conn, prefix: cfg.SubjectPrefix, log: log.With().Str("component", "relay").Logger()}, nil
}

// PublishSnapshot republishes already-encoded snapshot bytes on
// "<prefix>.<typeName>". It never blocks the caller on network I/O
// beyond NATS's buffered client-side queue, and a failed publish is
// logged, not propagated: the relay is a side channel, not a second
// delivery path peers depend on.
func (r *Relay) PublishSnapshot(typeName string, tick uint32, encoded []byte) {
	subject := snapshotSubject(r.prefix, typeName)
	if err := r.conn.Publish(subject, encoded); err != nil {
		r.log.Warn().Err(err).Str("subject", subject).Uint32("tick", tick).Msg("relay publish failed")
	}
}

// PublishRpc republishes an RPC payload for methods that opt in to
// cross-instance visibility.
func (r *Relay) PublishRpc(method string, encoded []byte) {
	subject := rpcSubject(r.prefix, method)
	if err := r.conn.Publish(subject, encoded); err != nil {
		r.log.Warn().Err(err).Str("subject", subject).Msg("relay rpc publish failed")
	}
}

// Subscribe attaches a handler to every message published under
// "<prefix>.<typeName>", for observer processes on the other side of
// the bus (spectator dashboards, replay recorders).
func (r *Relay) Subscribe(typeName string, handler func(data []byte)) (*nats.Subscription, error) {
	subject := snapshotSubject(r.prefix, typeName)
	sub, err := r.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("cluster: subscribe %s: %w", subject, err)
	}
	return sub, nil
}

func snapshotSubject(prefix, typeName string) string { return prefix + "." + typeName }

func rpcSubject(prefix, method string) string { return prefix + ".rpc." + method }

// Close closes the underlying NATS connection without draining it.
func (r *Relay) Close() {
	r.conn.Close()
}
