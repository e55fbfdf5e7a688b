package ratelimit

import (
	"testing"
	"time"
)

func TestWindowAllowsUpToLimit(t *testing.T) {
	w := NewWindow(3)
	now := time.Unix(1000, 0)
	for i := 0; i < 3; i++ {
		if !w.Allow(now) {
			t.Fatalf("message %d should be allowed", i)
		}
	}
	if w.Allow(now) {
		t.Fatal("4th message in same window should be rejected")
	}
}

func TestWindowResetsOnNewSecond(t *testing.T) {
	w := NewWindow(1)
	t0 := time.Unix(1000, 0)
	if !w.Allow(t0) {
		t.Fatal("first message should be allowed")
	}
	if w.Allow(t0) {
		t.Fatal("second message in same window should be rejected")
	}
	t1 := time.Unix(1001, 0)
	if !w.Allow(t1) {
		t.Fatal("message in new window should be allowed")
	}
}

func TestWindowZeroLimitDisablesCheck(t *testing.T) {
	w := NewWindow(0)
	now := time.Unix(1000, 0)
	for i := 0; i < 1000; i++ {
		if !w.Allow(now) {
			t.Fatalf("limit=0 must never reject, failed at %d", i)
		}
	}
}

func TestConnectionLimiterPerIPExhaustion(t *testing.T) {
	cl := NewConnectionLimiter(ConnectionLimiterConfig{
		IPBurst: 2, IPRate: 0.001, GlobalBurst: 100, GlobalRate: 1000,
	})
	defer cl.Stop()

	if !cl.Allow("1.2.3.4") || !cl.Allow("1.2.3.4") {
		t.Fatal("burst connections should be allowed")
	}
	if cl.Allow("1.2.3.4") {
		t.Fatal("exceeding per-ip burst should be rejected")
	}
	if !cl.Allow("5.6.7.8") {
		t.Fatal("a different IP should have its own bucket")
	}
}
