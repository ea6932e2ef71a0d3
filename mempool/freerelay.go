package mempool

import (
	"math"
	"sync"
	"time"
)

// freeRelayDecayPerSecond is the fraction of the accumulated free-relay
// byte counter that decays every second: the counter approaches zero with
// a roughly ten-minute half-life, matching the teacher's "1 - 1/600 per
// second" exponential decay.
const freeRelayDecayPerSecond = 1.0 / 600.0

// DefaultLimitFreeRelay is the "-limitfreerelay" default, in units of
// 1000 bytes per minute of free (no-fee-required) relay traffic this
// node will forward, per spec.md §4.9.
const DefaultLimitFreeRelay = 15

// FreeRelayLimiter throttles how many free (below the minimum relay fee)
// transaction bytes this node will accept per minute, so a flood of
// fee-less transactions can't be used to exhaust bandwidth and memory.
// Grounded on the teacher's CTxMemPool::m_dFreeCount decay counter.
type FreeRelayLimiter struct {
	mtx sync.Mutex

	limitBytesPerMinute float64
	count               float64
	lastUpdate          time.Time
}

// NewFreeRelayLimiter returns a limiter whose decaying byte counter may
// reach at most limitFreeRelay * 10 * 1000 bytes, per the "-limitfreerelay"
// command-line argument's semantics (0 disables free relay entirely).
func NewFreeRelayLimiter(limitFreeRelay int, now time.Time) *FreeRelayLimiter {
	return &FreeRelayLimiter{
		limitBytesPerMinute: float64(limitFreeRelay) * 10 * 1000,
		lastUpdate:          now,
	}
}

// Allow decays the counter for the time elapsed since the last call, then
// reports whether size additional free-relay bytes fit under the limit —
// and if so, accounts for them. isFromMe transactions (originated by this
// node's own wallet) are always allowed and never metered, matching the
// teacher's IsFromMe exemption.
func (f *FreeRelayLimiter) Allow(size int, isFromMe bool, now time.Time) bool {
	if isFromMe {
		return true
	}

	f.mtx.Lock()
	defer f.mtx.Unlock()

	elapsed := now.Sub(f.lastUpdate).Seconds()
	if elapsed > 0 {
		f.count *= math.Pow(1-freeRelayDecayPerSecond, elapsed)
		f.lastUpdate = now
	}

	if f.count+float64(size) >= f.limitBytesPerMinute {
		return false
	}
	f.count += float64(size)
	return true
}
