package ratelimit

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ConnectionLimiterConfig configures ConnectionLimiter's two gates.
type ConnectionLimiterConfig struct {
	IPBurst     int
	IPRate      float64
	IPTTL       time.Duration
	GlobalBurst int
	GlobalRate  float64
	Logger      zerolog.Logger
}

type ipEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// ConnectionLimiter is the admission-time counterpart to Window: a
// two-level token bucket (global, then per remote IP) that gates new
// connections before a PeerState is ever created. Stale per-IP buckets
// are swept on a TTL so long-lived servers don't leak memory on churn.
type ConnectionLimiter struct {
	mu     sync.Mutex
	ips    map[string]*ipEntry
	ipBurst int
	ipRate  float64
	ipTTL   time.Duration

	global *rate.Limiter

	logger zerolog.Logger

	stop chan struct{}
}

// NewConnectionLimiter builds a limiter and starts its background
// cleanup sweep. Call Stop when the server shuts down.
func NewConnectionLimiter(cfg ConnectionLimiterConfig) *ConnectionLimiter {
	if cfg.IPBurst <= 0 {
		cfg.IPBurst = 10
	}
	if cfg.IPRate <= 0 {
		cfg.IPRate = 1.0
	}
	if cfg.IPTTL <= 0 {
		cfg.IPTTL = 5 * time.Minute
	}
	if cfg.GlobalBurst <= 0 {
		cfg.GlobalBurst = 300
	}
	if cfg.GlobalRate <= 0 {
		cfg.GlobalRate = 50.0
	}

	cl := &ConnectionLimiter{
		ips:     make(map[string]*ipEntry),
		ipBurst: cfg.IPBurst,
		ipRate:  cfg.IPRate,
		ipTTL:   cfg.IPTTL,
		global:  rate.NewLimiter(rate.Limit(cfg.GlobalRate), cfg.GlobalBurst),
		logger:  cfg.Logger.With().Str("component", "connection_limiter").Logger(),
		stop:    make(chan struct{}),
	}
	go cl.cleanupLoop()
	return cl
}

// Allow reports whether a new connection from ip may proceed. It checks
// the global bucket first (cheap, no map lookup) before the per-IP one.
func (cl *ConnectionLimiter) Allow(ip string) bool {
	if !cl.global.Allow() {
		cl.logger.Debug().Str("ip", ip).Msg("connection rejected: global rate exceeded")
		return false
	}
	if !cl.ipLimiter(ip).Allow() {
		cl.logger.Debug().Str("ip", ip).Msg("connection rejected: per-ip rate exceeded")
		return false
	}
	return true
}

func (cl *ConnectionLimiter) ipLimiter(ip string) *rate.Limiter {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	entry, ok := cl.ips[ip]
	if ok {
		entry.lastAccess = time.Now()
		return entry.limiter
	}
	entry = &ipEntry{limiter: rate.NewLimiter(rate.Limit(cl.ipRate), cl.ipBurst), lastAccess: time.Now()}
	cl.ips[ip] = entry
	return entry.limiter
}

func (cl *ConnectionLimiter) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			cl.sweep()
		case <-cl.stop:
			return
		}
	}
}

func (cl *ConnectionLimiter) sweep() {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	now := time.Now()
	for ip, entry := range cl.ips {
		if now.Sub(entry.lastAccess) > cl.ipTTL {
			delete(cl.ips, ip)
		}
	}
}

// Stop halts the cleanup goroutine. Calling it more than once panics on
// a closed channel; callers own a single shutdown.
func (cl *ConnectionLimiter) Stop() {
	close(cl.stop)
}

// TrackedIPs returns how many per-IP buckets currently exist, for tests
// and diagnostics.
func (cl *ConnectionLimiter) TrackedIPs() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return len(cl.ips)
}
