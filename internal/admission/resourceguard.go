// Package admission implements the resource gate that sits in front of
// the server's peer-accept path: a periodic CPU sample that refuses new
// connections under load without touching any already-connected peer.
package admission

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
)

// Config configures the guard's sampling cadence and thresholds, both
// expressed as a percentage of available CPU.
type Config struct {
	SampleInterval     time.Duration
	CPURejectThreshold float64
	CPUPauseThreshold  float64
}

// PauseTarget receives the guard's pause decision on every sample. The
// intent journal satisfies this so the guard can stop its writer under
// CPU pressure without the admission package importing eventlog.
type PauseTarget interface {
	Pause(paused bool)
}

// ResourceGuard samples CPU usage on a fixed interval and exposes two
// independent decisions: whether new connections should be accepted,
// and whether the optional intent journal writer should pause.
// Existing peers are never affected by either decision.
type ResourceGuard struct {
	cfg Config
	log zerolog.Logger

	currentCPU atomic.Uint64 // float64 bits, via math.Float64bits

	pauseTarget atomic.Pointer[PauseTarget]

	stop chan struct{}
}

// New builds a ResourceGuard and starts its sampling loop.
func New(cfg Config, log zerolog.Logger) *ResourceGuard {
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = 15 * time.Second
	}
	g := &ResourceGuard{
		cfg:  cfg,
		log:  log.With().Str("component", "resource_guard").Logger(),
		stop: make(chan struct{}),
	}
	go g.sampleLoop()
	return g
}

func (g *ResourceGuard) sampleLoop() {
	g.sample()
	ticker := time.NewTicker(g.cfg.SampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			g.sample()
		case <-g.stop:
			return
		}
	}
}

func (g *ResourceGuard) sample() {
	percents, err := cpu.Percent(0, false)
	if err != nil || len(percents) == 0 {
		g.log.Warn().Err(err).Msg("cpu sample failed")
		return
	}
	g.setCPU(percents[0])
	g.notifyPauseTarget()
}

func (g *ResourceGuard) notifyPauseTarget() {
	if target := g.pauseTarget.Load(); target != nil {
		(*target).Pause(g.ShouldPauseJournal())
	}
}

// SetPauseTarget registers the journal (or any PauseTarget) to receive
// pause/resume calls as CPU pressure crosses CPUPauseThreshold.
func (g *ResourceGuard) SetPauseTarget(t PauseTarget) {
	g.pauseTarget.Store(&t)
}

func (g *ResourceGuard) setCPU(pct float64) {
	g.currentCPU.Store(math.Float64bits(pct))
}

// CurrentCPU returns the most recently sampled CPU percentage.
func (g *ResourceGuard) CurrentCPU() float64 {
	return math.Float64frombits(g.currentCPU.Load())
}

// AllowConnection implements server.ResourceGate: false above
// CPURejectThreshold.
func (g *ResourceGuard) AllowConnection() bool {
	return g.cfg.CPURejectThreshold <= 0 || g.CurrentCPU() < g.cfg.CPURejectThreshold
}

// ShouldPauseJournal reports whether the optional intent journal should
// stop writing until CPU pressure subsides.
func (g *ResourceGuard) ShouldPauseJournal() bool {
	return g.cfg.CPUPauseThreshold > 0 && g.CurrentCPU() >= g.cfg.CPUPauseThreshold
}

// Stop halts the sampling loop.
func (g *ResourceGuard) Stop() { close(g.stop) }

// Run blocks sampling until ctx is cancelled, for callers that prefer to
// drive the guard from their own lifecycle context rather than Stop.
func (g *ResourceGuard) Run(ctx context.Context) {
	<-ctx.Done()
	g.Stop()
}
