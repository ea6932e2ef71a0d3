package connmgr

import (
	"net"
	"testing"
	"time"

	"github.com/junaeth-project/qposd/addrmgr"
	"github.com/junaeth-project/qposd/netaddr"
)

func newTestManager(t *testing.T) *ConnManager {
	t.Helper()
	am := addrmgr.New()
	cm := New(&Config{
		TargetOutbound: 1,
		AddrManager:    am,
	})
	t.Cleanup(cm.Stop)
	return cm
}

func TestNewDefaultsNowToTimeNow(t *testing.T) {
	cm := newTestManager(t)
	if cm.cfg.Now == nil {
		t.Fatalf("New left cfg.Now nil")
	}
	before := time.Now()
	got := cm.cfg.Now()
	if got.Before(before.Add(-time.Second)) || got.After(time.Now().Add(time.Second)) {
		t.Errorf("cfg.Now() = %v, want close to %v", got, before)
	}
}

func TestConnectedIncrementsActiveAndClearsBackoff(t *testing.T) {
	cm := newTestManager(t)
	addr := netaddr.NewService(net.IPv4(8, 8, 8, 8), 8333)
	cm.retries[addr.String()] = retryDuration

	cm.Connected(addr)

	if cm.NumActive() != 1 {
		t.Errorf("NumActive = %d, want 1", cm.NumActive())
	}
	if _, stillBackingOff := cm.retries[addr.String()]; stillBackingOff {
		t.Errorf("retries still holds %s after Connected", addr)
	}
}

func TestDisconnectedDecrementsActive(t *testing.T) {
	cm := newTestManager(t)
	addr := netaddr.NewService(net.IPv4(8, 8, 4, 4), 8333)
	cm.Connected(addr)
	cm.Disconnected()
	if cm.NumActive() != 0 {
		t.Errorf("NumActive = %d after Connected+Disconnected, want 0", cm.NumActive())
	}
}

func TestBackOffDoublesUpToMax(t *testing.T) {
	cm := newTestManager(t)
	key := "203.0.113.1:8333"

	cm.backOff(key)
	if got := cm.retries[key]; got != retryDuration {
		t.Errorf("first backOff = %v, want %v", got, retryDuration)
	}
	cm.backOff(key)
	if got := cm.retries[key]; got != retryDuration*2 {
		t.Errorf("second backOff = %v, want %v", got, retryDuration*2)
	}

	for i := 0; i < 20; i++ {
		cm.backOff(key)
	}
	if got := cm.retries[key]; got != maxRetryDuration {
		t.Errorf("backOff after many failures = %v, want capped at %v", got, maxRetryDuration)
	}
}

func TestBackingOffReportsActiveBackoffEntries(t *testing.T) {
	cm := newTestManager(t)
	key := "203.0.113.2:8333"
	if cm.backingOff(key) {
		t.Fatalf("backingOff reported true before any backoff was recorded")
	}
	cm.backOff(key)
	if !cm.backingOff(key) {
		t.Errorf("backingOff reported false immediately after backOff recorded one")
	}
}
