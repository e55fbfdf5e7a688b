// Command server wires the netcore building blocks into a runnable
// game server: config, logging, metrics, admission control, the
// websocket reference transport, ServerNetwork, and the fixed-rate
// simulation ticker. Optional NATS relay and Kafka journal components
// activate only when their env vars are set.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/odin-gg/netcore/internal/admission"
	"github.com/odin-gg/netcore/internal/cluster"
	"github.com/odin-gg/netcore/internal/codec"
	"github.com/odin-gg/netcore/internal/config"
	"github.com/odin-gg/netcore/internal/eventlog"
	"github.com/odin-gg/netcore/internal/logging"
	"github.com/odin-gg/netcore/internal/metrics"
	"github.com/odin-gg/netcore/internal/ratelimit"
	"github.com/odin-gg/netcore/internal/server"
	"github.com/odin-gg/netcore/internal/sim"
	"github.com/odin-gg/netcore/internal/transport/wsreference"
	"github.com/odin-gg/netcore/internal/wire"
)

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func moveIntentSchema() *codec.Schema {
	return codec.NewSchema(
		codec.F("kind", codec.U8()),
		codec.F("tick", codec.U32()),
		codec.F("dx", codec.F32()),
		codec.F("dy", codec.F32()),
	)
}

func playersSnapshotSchema() *codec.Schema {
	return codec.NewSchema(
		codec.F("id", codec.U32()),
		codec.F("x", codec.F32()),
		codec.F("y", codec.F32()),
	)
}

func main() {
	bootLog := log.New(os.Stdout, "[netcore] ", log.LstdFlags)

	maxProcs := runtime.GOMAXPROCS(0)
	bootLog.Printf("GOMAXPROCS: %d (via automaxprocs)", maxProcs)

	cfg, err := config.Load(nil)
	if err != nil {
		bootLog.Fatalf("config: %v", err)
	}

	logger := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "netcore-server"})
	cfg.Log(logger)

	reg := metrics.New()
	guard := admission.New(admission.Config{
		SampleInterval:     cfg.MetricsInterval,
		CPURejectThreshold: cfg.CPURejectThreshold,
		CPUPauseThreshold:  cfg.CPUPauseThreshold,
	}, logger)
	defer guard.Stop()

	connLimiter := ratelimit.NewConnectionLimiter(ratelimit.ConnectionLimiterConfig{
		IPBurst:     cfg.ConnIPBurst,
		IPRate:      cfg.ConnIPRate,
		IPTTL:       cfg.ConnIPTTL,
		GlobalBurst: cfg.ConnGlobalBurst,
		GlobalRate:  cfg.ConnGlobalRate,
		Logger:      logger,
	})
	defer connLimiter.Stop()

	var relay *cluster.Relay
	if cfg.NATSURL != "" {
		relay, err = cluster.Connect(cluster.Config{URL: cfg.NATSURL}, logger)
		if err != nil {
			logger.Error().Err(err).Msg("failed to connect relay, continuing without it")
			relay = nil
		} else {
			defer relay.Close()
		}
	}

	var journal *eventlog.Journal
	if cfg.KafkaBrokers != "" {
		journal, err = eventlog.Open(eventlog.Config{
			Brokers: splitCSV(cfg.KafkaBrokers),
			Topic:   cfg.KafkaTopic,
		}, logger)
		if err != nil {
			logger.Error().Err(err).Msg("failed to open journal, continuing without it")
			journal = nil
		} else {
			guard.SetPauseTarget(journal)
		}
	}

	intents := wire.NewIntentRegistry()
	if err := intents.Register(1, moveIntentSchema()); err != nil {
		logger.Fatal().Err(err).Msg("failed to register move intent")
	}

	snapshots := wire.NewSnapshotRegistry()
	if _, err := snapshots.Register("players", playersSnapshotSchema()); err != nil {
		logger.Fatal().Err(err).Msg("failed to register players snapshot")
	}

	rpcs := wire.NewRpcRegistry()

	wsTransport := wsreference.New(cfg.Addr, logger)

	netCfg := server.DefaultConfig()
	netCfg.MaxMessageSize = cfg.MaxMessageSize
	netCfg.MaxMessagesPerSecond = cfg.MaxMessagesPerSecond
	netCfg.MaxSendQueueSize = cfg.MaxSendQueueSize
	netCfg.HeartbeatInterval = cfg.HeartbeatInterval
	netCfg.HeartbeatTimeout = cfg.HeartbeatTimeout
	netCfg.EnableBufferPooling = cfg.EnableBufferPooling
	netCfg.Debug = cfg.Debug

	snapshotFor := func(string) *wire.SnapshotRegistry { return snapshots }

	netw := server.New(wsTransport, intents, rpcs, snapshotFor, netCfg, logger)
	netw.SetConnectionGate(connGateFunc(func(remoteAddr string) bool {
		ip := remoteAddr
		if idx := strings.LastIndex(remoteAddr, ":"); idx != -1 {
			ip = remoteAddr[:idx]
		}
		return connLimiter.Allow(ip)
	}))
	netw.SetResourceGate(guard)
	netw.SetMetrics(reg)
	if relay != nil {
		netw.SetRelay(relay)
	}
	if journal != nil {
		netw.SetJournal(journal)
	}

	ticker := sim.NewFixedTicker(cfg.TickRate)
	driver := sim.NewTimedDriver(time.Duration(ticker.Interval() * float64(time.Second)))
	driver.Start(func(dt float64) {
		ticker.Tick(dt)
	})
	defer driver.Stop()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", reg.Handler())
	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server failed")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := netw.Start(ctx); err != nil {
			logger.Error().Err(err).Msg("server network stopped")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := netw.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
	if journal != nil {
		if err := journal.Close(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("journal close error")
		}
	}
	_ = metricsSrv.Shutdown(shutdownCtx)
}

type connGateFunc func(remoteAddr string) bool

func (f connGateFunc) Allow(remoteAddr string) bool { return f(remoteAddr) }
