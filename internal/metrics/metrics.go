// Package metrics registers and exposes the Prometheus series every
// other package in this module increments — peers, queue depth, codec
// failures, tick timing, and reconciliation activity.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is a bound set of the module's counters/gauges/histograms.
// Construct one per process with New and pass it down instead of relying
// on package-level globals, so tests can use an isolated registry.
type Registry struct {
	reg *prometheus.Registry

	PeersConnected    prometheus.Gauge
	PeersTotal        prometheus.Counter
	PeerDisconnects   *prometheus.CounterVec
	ConnectionsRejected *prometheus.CounterVec

	IntentsReceived   prometheus.Counter
	IntentsRateLimited prometheus.Counter
	IntentsDropped    *prometheus.CounterVec
	RpcReceived       prometheus.Counter

	SnapshotsSent     prometheus.Counter
	BytesSent         prometheus.Counter
	BytesReceived     prometheus.Counter

	SendQueueDepth    prometheus.Gauge
	SendQueueDropped  prometheus.Counter
	Backpressured     prometheus.Gauge

	TickDuration      prometheus.Histogram
	TicksFired        prometheus.Counter

	ReconciliationReplays prometheus.Histogram

	CodecErrors       *prometheus.CounterVec

	JournalEnqueued   prometheus.Counter
	JournalDropped    prometheus.Counter
}

// New registers every series against a fresh prometheus.Registry.
func New() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		PeersConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "netcore_peers_connected",
			Help: "Current number of connected peers.",
		}),
		PeersTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netcore_peers_total",
			Help: "Total peers accepted since process start.",
		}),
		PeerDisconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netcore_peer_disconnects_total",
			Help: "Peer disconnects by reason.",
		}, []string{"reason"}),
		ConnectionsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netcore_connections_rejected_total",
			Help: "Connections rejected before peer state was created, by gate.",
		}, []string{"gate"}),
		IntentsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netcore_intents_received_total",
			Help: "Intents decoded and dispatched to handlers.",
		}),
		IntentsRateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netcore_intents_rate_limited_total",
			Help: "Intents dropped by per-peer rate limiting.",
		}),
		IntentsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netcore_intents_dropped_total",
			Help: "Intents dropped, by reason.",
		}, []string{"reason"}),
		RpcReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netcore_rpc_received_total",
			Help: "RPC messages decoded and dispatched.",
		}),
		SnapshotsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netcore_snapshots_sent_total",
			Help: "Snapshots handed to a transport send or queue.",
		}),
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netcore_bytes_sent_total",
			Help: "Wire bytes sent to peers.",
		}),
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netcore_bytes_received_total",
			Help: "Wire bytes received from peers.",
		}),
		SendQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "netcore_send_queue_depth",
			Help: "Sum of all peers' outbound queue depth.",
		}),
		SendQueueDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netcore_send_queue_dropped_total",
			Help: "Messages dropped due to send-queue overflow.",
		}),
		Backpressured: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "netcore_peers_backpressured",
			Help: "Current number of backpressured peers.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "netcore_tick_duration_seconds",
			Help:    "Wall time spent running one tick's pre/tick/post handlers.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
		TicksFired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netcore_ticks_fired_total",
			Help: "Tick events fired by the simulation ticker.",
		}),
		ReconciliationReplays: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "netcore_reconciliation_replay_count",
			Help:    "Number of intents replayed per reconciliation.",
			Buckets: prometheus.LinearBuckets(0, 2, 10),
		}),
		CodecErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netcore_codec_errors_total",
			Help: "Decode/encode failures, by kind.",
		}, []string{"kind"}),
		JournalEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netcore_journal_enqueued_total",
			Help: "Intent records accepted onto the journal's write channel.",
		}),
		JournalDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netcore_journal_dropped_total",
			Help: "Intent records dropped because the journal's write channel was full.",
		}),
	}

	reg.MustRegister(
		r.PeersConnected, r.PeersTotal, r.PeerDisconnects, r.ConnectionsRejected,
		r.IntentsReceived, r.IntentsRateLimited, r.IntentsDropped, r.RpcReceived,
		r.SnapshotsSent, r.BytesSent, r.BytesReceived,
		r.SendQueueDepth, r.SendQueueDropped, r.Backpressured,
		r.TickDuration, r.TicksFired, r.ReconciliationReplays,
		r.CodecErrors, r.JournalEnqueued, r.JournalDropped,
	)
	return r
}

// Handler returns the /metrics HTTP handler for this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
