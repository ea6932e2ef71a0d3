// Package addrmgr tracks every peer address this node has learned of and
// how well each one has panned out, so outbound connection attempts and
// addr-message relay both favor addresses likely to still be listening.
//
// Grounded on original_source's addrman.h, which documents (but whose
// addrman.cpp body was not retrieved into the pack) the tried/new
// two-table design: a "tried" table of addresses this node has
// successfully connected to, a "new" table of addresses only heard about
// secondhand, both partitioned into buckets keyed by network group so a
// single /16 (or Tor/I2P peer) can't dominate either table. The bucket
// placement and eviction rules below are reconstructed from that header's
// documented invariants (ADDRMAN_TRIED_BUCKET_COUNT=64,
// ADDRMAN_TRIED_BUCKET_SIZE=64, ADDRMAN_NEW_BUCKET_COUNT=256) rather than
// transliterated, and are written in the mutex-guarded flat-map idiom the
// teacher's infrastructure/network/addressmanager/addressmanager.go uses
// for its own (simpler, single-table) address cache.
package addrmgr

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/junaeth-project/qposd/netaddr"
	"github.com/junaeth-project/qposd/wire"
)

// Tried/new bucket geometry, per addrman.h's documented constants.
const (
	TriedBucketCount = 64
	TriedBucketSize  = 64
	NewBucketCount   = 256
	NewBucketSize    = 64

	// maxNewReferences bounds how many new-table buckets a single address
	// may be referenced from before further references are dropped,
	// matching addrman.h's ADDRMAN_NEW_BUCKETS_PER_ADDRESS.
	maxNewReferences = 8
)

// staleAfter is a 30-day staleness horizon measured from an address's last
// success. Nothing in this package reads it: GetAddress does not take an
// address's age into account.
const staleAfter = 30 * 24 * time.Hour

// knownAddress is one address's metadata: the address itself, who told us
// about it, and its connection track record.
type knownAddress struct {
	na          *wire.NetAddress
	srcGroup    string
	attempts    int
	lastAttempt time.Time
	lastSuccess time.Time
	tried       bool
	newRefs     int // number of new-table buckets referencing this entry
}

func (ka *knownAddress) chance() float64 {
	c := 1.0
	since := time.Since(ka.lastAttempt)
	if since < 10*time.Minute {
		c *= 0.01
	}
	c *= pow(0.66, float64(minInt(ka.attempts, 8)))
	return c
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func pow(base, exp float64) float64 {
	result := 1.0
	for i := 0; i < int(exp); i++ {
		result *= base
	}
	return result
}

// AddressManager is a concurrency-safe tried/new address book.
type AddressManager struct {
	mtx sync.Mutex

	// key is a per-instance random value mixed into every bucket hash so
	// an adversary who knows an address's group cannot predict which
	// bucket (and so which eviction candidate) it lands in, the role
	// addrman.h's nKey plays in the original.
	key [32]byte

	addrIndex map[string]*knownAddress // keyed by netaddr.Service.String()

	triedBuckets [TriedBucketCount][]string
	newBuckets   [NewBucketCount][]string

	numTried int
	numNew   int
}

// New returns an empty AddressManager with a fresh random bucket-mixing
// key.
func New() *AddressManager {
	am := &AddressManager{addrIndex: make(map[string]*knownAddress)}
	rand.Read(am.key[:])
	return am
}

func serviceKey(s netaddr.Service) string {
	return s.String()
}

// triedBucket returns the tried-table bucket index for addr, derived from
// its network group and this manager's mixing key.
func (a *AddressManager) triedBucket(addr netaddr.Addr) int {
	h := mixHash(a.key[:], addr.GetGroup(), []byte("tried"))
	return int(h % TriedBucketCount)
}

// newBucket returns the new-table bucket index for addr as known via src.
func (a *AddressManager) newBucket(addr, src netaddr.Addr) int {
	h := mixHash(a.key[:], src.GetGroup(), addr.GetGroup())
	return int(h % NewBucketCount)
}

func mixHash(key []byte, parts ...[]byte) uint64 {
	var acc uint64 = 0xcbf29ce484222325
	const prime uint64 = 0x100000001b3
	mix := func(b []byte) {
		for _, c := range b {
			acc ^= uint64(c)
			acc *= prime
		}
	}
	mix(key)
	for _, p := range parts {
		mix(p)
	}
	return acc
}

// AddAddress records na as learned about via srcAddr, placing it in the
// new table if it is not already known. Unroutable addresses are
// discarded immediately.
func (a *AddressManager) AddAddress(na *wire.NetAddress, srcAddr netaddr.Addr) {
	if !na.IP.Addr.IsRoutable() {
		return
	}
	a.mtx.Lock()
	defer a.mtx.Unlock()

	key := serviceKey(na.IP)
	if _, ok := a.addrIndex[key]; ok {
		return
	}
	ka := &knownAddress{na: na, srcGroup: string(srcAddr.GetGroup())}
	a.addrIndex[key] = ka
	a.addToNewBucket(key, ka, srcAddr)
}

func (a *AddressManager) addToNewBucket(key string, ka *knownAddress, src netaddr.Addr) {
	if ka.newRefs >= maxNewReferences {
		return
	}
	b := a.newBucket(ka.na.IP.Addr, src)
	if bucketHasRoom(a.newBuckets[b], NewBucketSize) {
		a.newBuckets[b] = append(a.newBuckets[b], key)
		ka.newRefs++
		a.numNew++
	}
}

func bucketHasRoom(bucket []string, max int) bool {
	return len(bucket) < max
}

// Attempt records a connection attempt to addr, whether or not it
// succeeded; GetAddress's chance-of-success weighting reads this back.
func (a *AddressManager) Attempt(addr netaddr.Service, now time.Time) {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	ka, ok := a.addrIndex[serviceKey(addr)]
	if !ok {
		return
	}
	ka.attempts++
	ka.lastAttempt = now
}

// Good marks addr as having produced a successful, verified connection,
// promoting it into the tried table (evicting the table's current worst
// entry in the same group if that bucket is already full).
func (a *AddressManager) Good(addr netaddr.Service, now time.Time) {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	key := serviceKey(addr)
	ka, ok := a.addrIndex[key]
	if !ok {
		return
	}
	ka.attempts = 0
	ka.lastSuccess = now
	ka.lastAttempt = now
	if ka.tried {
		return
	}

	b := a.triedBucket(addr.Addr)
	if !bucketHasRoom(a.triedBuckets[b], TriedBucketSize) {
		a.evictWorst(b)
	}
	a.triedBuckets[b] = append(a.triedBuckets[b], key)
	ka.tried = true
	a.numTried++
	a.removeFromNewBuckets(key)
}

// evictWorst demotes the lowest-chance entry in tried bucket b back to
// the new table, making room for a freshly verified address.
func (a *AddressManager) evictWorst(b int) {
	bucket := a.triedBuckets[b]
	if len(bucket) == 0 {
		return
	}
	worstIdx, worstChance := 0, 2.0
	for i, key := range bucket {
		if ka, ok := a.addrIndex[key]; ok {
			if c := ka.chance(); c < worstChance {
				worstChance, worstIdx = c, i
			}
		}
	}
	worstKey := bucket[worstIdx]
	a.triedBuckets[b] = append(bucket[:worstIdx], bucket[worstIdx+1:]...)
	a.numTried--
	if ka, ok := a.addrIndex[worstKey]; ok {
		ka.tried = false
		ka.newRefs = 0
		a.addToNewBucket(worstKey, ka, ka.na.IP.Addr)
	}
}

func (a *AddressManager) removeFromNewBuckets(key string) {
	for i := range a.newBuckets {
		bucket := a.newBuckets[i]
		for j, k := range bucket {
			if k == key {
				a.newBuckets[i] = append(bucket[:j], bucket[j+1:]...)
				a.numNew--
				break
			}
		}
	}
}

// NumAddresses returns the total number of addresses known (tried + new).
func (a *AddressManager) NumAddresses() int {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	return len(a.addrIndex)
}

// GetAddress returns a random known address, favoring the tried table
// (addresses this node has itself successfully connected to) over the new
// table by the same 2:1 ratio addrman.h documents for GetAddr selection.
// Returns false if the manager holds no addresses.
func (a *AddressManager) GetAddress() (*wire.NetAddress, bool) {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	if len(a.addrIndex) == 0 {
		return nil, false
	}

	preferTried := a.numTried > 0 && (a.numNew == 0 || randomUint32()%3 != 0)
	if preferTried {
		if na, ok := a.pickFromBuckets(a.triedBuckets[:]); ok {
			return na, true
		}
	}
	if na, ok := a.pickFromBuckets(a.newBuckets[:]); ok {
		return na, true
	}
	if na, ok := a.pickFromBuckets(a.triedBuckets[:]); ok {
		return na, true
	}
	return nil, false
}

func (a *AddressManager) pickFromBuckets(buckets [][]string) (*wire.NetAddress, bool) {
	nonEmpty := make([]int, 0, len(buckets))
	for i, b := range buckets {
		if len(b) > 0 {
			nonEmpty = append(nonEmpty, i)
		}
	}
	if len(nonEmpty) == 0 {
		return nil, false
	}
	b := buckets[nonEmpty[int(randomUint32())%len(nonEmpty)]]
	key := b[int(randomUint32())%len(b)]
	ka, ok := a.addrIndex[key]
	if !ok {
		return nil, false
	}
	return ka.na, true
}

// GoodAddresses returns every address in the tried table, the set a
// mempool-style "mempool" addr-relay response draws from first.
func (a *AddressManager) GoodAddresses() []*wire.NetAddress {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	out := make([]*wire.NetAddress, 0, a.numTried)
	for _, bucket := range a.triedBuckets {
		for _, key := range bucket {
			if ka, ok := a.addrIndex[key]; ok {
				out = append(out, ka.na)
			}
		}
	}
	return out
}

func randomUint32() uint32 {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return uint32(time.Now().UnixNano())
	}
	return binary.BigEndian.Uint32(buf[:])
}

// String renders bucket occupancy for diagnostic logging.
func (a *AddressManager) String() string {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	return fmt.Sprintf("addrmgr: %d known (%d tried, %d new)", len(a.addrIndex), a.numTried, a.numNew)
}
