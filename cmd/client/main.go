// Command client is a minimal netcore client: it dials a server over
// the websocket reference transport, drives client-side prediction
// through internal/predict, and sends move intents on a fixed tick.
// It exists to prove the client-side stack end to end, not as a game.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/odin-gg/netcore/internal/client"
	"github.com/odin-gg/netcore/internal/codec"
	"github.com/odin-gg/netcore/internal/config"
	"github.com/odin-gg/netcore/internal/logging"
	"github.com/odin-gg/netcore/internal/predict"
	"github.com/odin-gg/netcore/internal/sim"
	"github.com/odin-gg/netcore/internal/transport/wsreference"
	"github.com/odin-gg/netcore/internal/wire"
)

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

// localState is touched by both the ticker goroutine (predicting
// movement) and the transport's read goroutine (reconciling snapshots),
// so every access goes through mu.
type localState struct {
	mu   sync.Mutex
	x, y float32
}

func (s *localState) applyDelta(dx, dy float32) {
	s.mu.Lock()
	s.x += dx
	s.y += dy
	s.mu.Unlock()
}

func (s *localState) setAuthoritative(x, y float32) {
	s.mu.Lock()
	s.x, s.y = x, y
	s.mu.Unlock()
}

func main() {
	bootLog := log.New(os.Stdout, "[netcore-client] ", log.LstdFlags)

	cfg, err := config.LoadClient(nil)
	if err != nil {
		bootLog.Fatalf("config: %v", err)
	}

	logger := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "netcore-client"})

	intents := wire.NewIntentRegistry()
	if err := intents.Register(1, moveIntentSchema()); err != nil {
		logger.Fatal().Err(err).Msg("failed to register move intent")
	}
	snapshots := wire.NewSnapshotRegistry()
	if _, err := snapshots.Register("players", playersSnapshotSchema()); err != nil {
		logger.Fatal().Err(err).Msg("failed to register players snapshot")
	}
	rpcs := wire.NewRpcRegistry()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, err := wsreference.Dial(ctx, cfg.ServerAddr, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to dial server")
	}

	netCfg := client.Config{
		MaxMessagesPerSecond: cfg.MaxMessagesPerSecond,
		HeartbeatInterval:    cfg.HeartbeatInterval,
		HeartbeatTimeout:     cfg.HeartbeatTimeout,
	}
	if cfg.LagSimulationMaxMs > 0 {
		netCfg.Lag = &client.LagSimulation{
			Min: time.Duration(cfg.LagSimulationMinMs) * time.Millisecond,
			Max: time.Duration(cfg.LagSimulationMaxMs) * time.Millisecond,
		}
	}

	netw := client.New(conn, intents, rpcs, snapshots, netCfg, logger)
	defer netw.Close()

	state := &localState{}
	tracker := predict.NewTracker()
	reconciliator := predict.NewReconciliator(tracker,
		func(authoritative predict.ServerState) {
			x, _ := authoritative["x"].(float32)
			y, _ := authoritative["y"].(float32)
			state.setAuthoritative(x, y)
		},
		func(remaining []predict.TrackedIntent) {
			for _, ti := range remaining {
				dx, _ := ti.Intent["dx"].(float32)
				dy, _ := ti.Intent["dy"].(float32)
				state.applyDelta(dx, dy)
			}
		},
	)

	netw.OnSnapshot("players", func(snap wire.Snapshot) {
		reconciliator.OnSnapshot(snap.Tick, snap.Updates)
	})

	ticker := sim.NewFixedTicker(60)
	driver := sim.NewTimedDriver(time.Duration(ticker.Interval() * float64(time.Second)))
	driver.Start(func(dt float64) {
		ticker.Tick(dt)
	})
	defer driver.Stop()

	ticker.OnTick(func(evt sim.TickEvent) {
		intent := codec.Record{"kind": uint8(1), "tick": evt.Tick, "dx": float32(1), "dy": float32(0)}
		if netw.HasIntentChanged(intent, nil) {
			if err := netw.SendIntent(intent); err != nil {
				logger.Warn().Err(err).Msg("send intent failed")
				return
			}
			reconciliator.TrackIntent(evt.Tick, intent)
			state.applyDelta(1, 0)
		}
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("shutting down")
}
