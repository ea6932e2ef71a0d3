package mempool

import (
	"testing"
	"time"
)

func TestFreeRelayLimiterIsFromMeAlwaysAllowed(t *testing.T) {
	t0 := time.Unix(0, 0)
	f := NewFreeRelayLimiter(0, t0)
	if !f.Allow(1_000_000, true, t0) {
		t.Errorf("Allow rejected an isFromMe transaction despite a zero free-relay limit")
	}
}

func TestFreeRelayLimiterDisabledByZeroLimit(t *testing.T) {
	t0 := time.Unix(0, 0)
	f := NewFreeRelayLimiter(0, t0)
	if f.Allow(1, false, t0) {
		t.Errorf("Allow accepted a non-exempt transaction under a zero free-relay limit")
	}
}

func TestFreeRelayLimiterBlocksOnceLimitReached(t *testing.T) {
	t0 := time.Unix(0, 0)
	f := NewFreeRelayLimiter(1, t0) // 10,000 bytes/minute
	if !f.Allow(9999, false, t0) {
		t.Fatalf("Allow rejected a transaction within the limit")
	}
	if f.Allow(2, false, t0) {
		t.Errorf("Allow accepted a transaction that would push the counter over the limit")
	}
}

func TestFreeRelayLimiterDecaysOverTime(t *testing.T) {
	t0 := time.Unix(0, 0)
	f := NewFreeRelayLimiter(1, t0)
	if !f.Allow(9999, false, t0) {
		t.Fatalf("Allow rejected a transaction within the limit")
	}
	if f.Allow(2, false, t0) {
		t.Fatalf("test setup: Allow should be blocked immediately after filling the counter")
	}

	later := t0.Add(4000 * time.Second)
	if !f.Allow(2, false, later) {
		t.Errorf("Allow still blocked a small transaction long after the counter should have decayed")
	}
}
