// Package eventlog implements a deterministic intent journal: every
// intent that clears rate-limiting and validation is stamped with an
// arrival sequence and appended asynchronously to a Kafka topic via
// franz-go, producing a total order suitable for offline replay. It is
// fire-and-forget from the hot path: a full buffer drops the record and
// increments a counter rather than blocking intent dispatch.
package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/odin-gg/netcore/internal/codec"
)

// Record is the journaled representation of one accepted intent.
type Record struct {
	ServerTick uint32       `json:"server_tick"`
	PeerID     string       `json:"peer_id"`
	ArrivalSeq uint64       `json:"arrival_seq"`
	Intent     codec.Record `json:"intent"`
	RecordedAt int64        `json:"recorded_at_unix_nano"`
}

// Config configures the Kafka producer and the journal's bounded
// internal buffer.
type Config struct {
	Brokers    []string
	Topic      string
	BufferSize int
}

// Journal appends Records to a Kafka topic off the hot path. It
// satisfies the server package's IntentJournal interface structurally:
// Record(peerID string, serverTick uint32, intent codec.Record).
type Journal struct {
	client *kgo.Client
	topic  string
	log    zerolog.Logger

	arrivalSeq atomic.Uint64
	dropped    atomic.Uint64

	records chan Record
	paused  atomic.Bool

	done chan struct{}
}

// Open creates a Kafka producer client and starts the journal's
// background writer goroutine.
func Open(cfg Config, log zerolog.Logger) (*Journal, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("eventlog: at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("eventlog: topic is required")
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 4096
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ProducerLinger(5*time.Millisecond),
		kgo.RecordRetries(3),
	)
	if err != nil {
		return nil, fmt.Errorf("eventlog: create kafka client: %w", err)
	}

	j := &Journal{
		client:  client,
		topic:   cfg.Topic,
		log:     log.With().Str("component", "journal").Logger(),
		records: make(chan Record, cfg.BufferSize),
		done:    make(chan struct{}),
	}
	go j.writeLoop()
	return j, nil
}

// Pause stops the journal from accepting new records; already-queued
// records still drain. Intended to be driven by an admission.ResourceGuard
// under CPU pressure.
func (j *Journal) Pause(paused bool) { j.paused.Store(paused) }

// Record stamps an accepted intent with (serverTick, peerID, arrivalSeq)
// and enqueues it. Never blocks: a full buffer or a paused journal drops
// the record and increments Dropped.
func (j *Journal) Record(peerID string, serverTick uint32, intent codec.Record) {
	if j.paused.Load() {
		j.dropped.Add(1)
		return
	}
	rec := Record{
		ServerTick: serverTick,
		PeerID:     peerID,
		ArrivalSeq: j.arrivalSeq.Add(1),
		Intent:     intent,
		RecordedAt: time.Now().UnixNano(),
	}
	select {
	case j.records <- rec:
	default:
		j.dropped.Add(1)
	}
}

// Dropped returns the number of records dropped due to a full buffer or
// a paused journal.
func (j *Journal) Dropped() uint64 { return j.dropped.Load() }

func (j *Journal) writeLoop() {
	defer close(j.done)
	for rec := range j.records {
		payload, err := json.Marshal(rec)
		if err != nil {
			j.log.Warn().Err(err).Msg("journal marshal failed")
			continue
		}
		kr := &kgo.Record{Topic: j.topic, Key: []byte(rec.PeerID), Value: payload}
		j.client.Produce(context.Background(), kr, func(_ *kgo.Record, err error) {
			if err != nil {
				j.log.Warn().Err(err).Msg("journal produce failed")
			}
		})
	}
}

// Close stops accepting records, drains the buffer, flushes the
// producer, and closes the client.
func (j *Journal) Close(ctx context.Context) error {
	close(j.records)
	select {
	case <-j.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := j.client.Flush(ctx); err != nil {
		return fmt.Errorf("eventlog: flush: %w", err)
	}
	j.client.Close()
	return nil
}
