package qpos

import (
	"fmt"
	"sort"
	"strings"

	"github.com/junaeth-project/qposd/chainhash"
	"github.com/junaeth-project/qposd/crypto"
)

// TargetSlotTime is the default number of seconds allotted to each slot.
// original_source's QPConstants.hpp (chain-wide block-time constant) was
// not present in the retrieved sources, so this is carried as a Registry
// field rather than a hardcoded package constant — a network using a
// different target time constructs its Registry with that value instead.
const TargetSlotTime = 60

// DefaultMaxPrevMisses bounds how many of a staker's previous window's
// slots it may miss before ShouldBeDisqualified trips, absent a sourced
// GetStakerMaxMisses() formula.
const DefaultMaxPrevMisses = RecentBlocksWindow / 4

// Snapshot is a point-in-time capture of registry state taken at a block
// height, retained so a reorg below that height can restore the exact
// staker/queue state rather than replaying every intervening block.
type Snapshot struct {
	Height  int32
	Stakers map[uint32]*Staker
	Queue   *Queue
	NextID  uint32
}

// Registry owns every registered Staker, the alias index, the active
// Queue, and the balance ledger a CLAIM operation draws against. It is
// the qPoS analogue of a UTXO set: a block's qPoS operations are applied
// to it in order, and a snapshot is retained per height so reorgs can
// roll the registry back without replaying the whole chain.
type Registry struct {
	stakers map[uint32]*Staker
	aliases map[string]uint32
	nextID  uint32

	queue      *Queue
	slotTime   uint32
	maxMisses  uint32

	balances map[string]int64 // keyed by SerializeCompressed pubkey

	snapshots map[int32]*Snapshot
	history   []int32 // heights with a retained snapshot, ascending
}

// NewRegistry builds an empty registry using slotTime seconds per slot.
func NewRegistry(slotTime uint32) *Registry {
	if slotTime == 0 {
		slotTime = TargetSlotTime
	}
	return &Registry{
		stakers:   make(map[uint32]*Staker),
		aliases:   make(map[string]uint32),
		slotTime:  slotTime,
		maxMisses: DefaultMaxPrevMisses,
		balances:  make(map[string]int64),
		snapshots: make(map[int32]*Snapshot),
	}
}

// GetStaker returns the staker registered under id, if any.
func (r *Registry) GetStaker(id uint32) (*Staker, bool) {
	s, ok := r.stakers[id]
	return s, ok
}

// GetStakerByAlias looks up a staker by its case-insensitive alias.
func (r *Registry) GetStakerByAlias(alias string) (*Staker, bool) {
	id, ok := r.aliases[strings.ToLower(alias)]
	if !ok {
		return nil, false
	}
	return r.GetStaker(id)
}

// Count returns the number of registered stakers, qualified or not.
func (r *Registry) Count() int {
	return len(r.stakers)
}

// Purchase registers a new staker for owner, returning its assigned ID.
// A triple-key purchase (TX_PURCHASE3) overwrites Delegate/Controller on
// the returned staker afterward.
func (r *Registry) Purchase(owner *crypto.PublicKey, price int64, txid chainhash.Hash, vout uint32, blockHash chainhash.Hash) *Staker {
	id := r.nextID
	r.nextID++
	s := NewStaker(id, owner)
	s.PurchasePrice = price
	s.CreationTxID = txid
	s.CreationVout = vout
	s.CreationBlockHash = blockHash
	r.stakers[id] = s
	return s
}

// SetAlias renames staker id, rejecting a collision with an existing
// alias (case-insensitively).
func (r *Registry) SetAlias(id uint32, alias string) error {
	s, ok := r.GetStaker(id)
	if !ok {
		return fmt.Errorf("qpos: no such staker %d", id)
	}
	key := strings.ToLower(alias)
	if existing, taken := r.aliases[key]; taken && existing != id {
		return fmt.Errorf("qpos: alias %q already registered to staker %d", alias, existing)
	}
	if s.Alias != "" {
		delete(r.aliases, strings.ToLower(s.Alias))
	}
	if !s.SetAlias(alias) {
		return fmt.Errorf("qpos: invalid alias %q", alias)
	}
	r.aliases[key] = id
	return nil
}

// Balance returns the claimable balance held against pubkey.
func (r *Registry) Balance(pubkey *crypto.PublicKey) int64 {
	return r.balances[string(pubkey.SerializeCompressed())]
}

// Credit adds amount to pubkey's claimable balance, used when a staker's
// reward or delegate payout is not immediately spendable but accrues for
// a later CLAIM operation.
func (r *Registry) Credit(pubkey *crypto.PublicKey, amount int64) {
	r.balances[string(pubkey.SerializeCompressed())] += amount
}

// Claim withdraws amount from pubkey's balance, failing if insufficient.
func (r *Registry) Claim(pubkey *crypto.PublicKey, amount int64) error {
	key := string(pubkey.SerializeCompressed())
	if r.balances[key] < amount {
		return fmt.Errorf("qpos: insufficient balance")
	}
	r.balances[key] -= amount
	return nil
}

// Queue returns the registry's active Queue, or nil if one has not been
// built yet (e.g. before the first qualified staker registers).
func (r *Registry) Queue() *Queue {
	return r.queue
}

// qualifiedIDs returns every enabled, qualified staker ID, sorted for a
// deterministic base ordering before weighting.
func (r *Registry) qualifiedIDs() []uint32 {
	ids := make([]uint32, 0, len(r.stakers))
	for id, s := range r.stakers {
		if s.IsEnabled() && s.IsQualified() {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// BuildQueue deterministically orders every qualified staker into a new
// Queue starting at slotTime0, the order obtained by shuffling the
// qualified-ID set with a Fisher-Yates pass keyed on seedHash — the block
// hash at the queue boundary — per spec.md §4.7: "the registry
// deterministically shuffles the currently qualified staker IDs using a
// seed derived from the block hash at the queue boundary, producing the
// next queue." qualifiedIDs() is sorted ascending before shuffling so the
// input to the shuffle, and therefore the result, is a pure function of
// registry state and seedHash alone — every full node computing a new
// queue from the same qualified-staker set and the same boundary block
// derives the identical permutation.
func (r *Registry) BuildQueue(slotTime0 uint32, seedHash chainhash.Hash) *Queue {
	ordered := shuffleQueueOrder(r.qualifiedIDs(), seedHash)
	r.queue = NewQueue(slotTime0, ordered, r.slotTime)
	for _, id := range ordered {
		r.stakers[id].SawBlock()
	}
	return r.queue
}

// AdvanceSlot moves the active queue to its next slot, rolling a fresh
// queue from current registry state if the round has ended. seedHash is
// the block hash at the queue boundary, threaded into BuildQueue's
// shuffle when a new queue must be rolled; it is unused when the current
// queue merely advances to its next slot. Returns the staker ID now on
// duty.
func (r *Registry) AdvanceSlot(now uint32, seedHash chainhash.Hash) uint32 {
	if r.queue == nil || r.queue.IsEmpty() {
		r.BuildQueue(now, seedHash)
		return r.queue.CurrentID()
	}
	if !r.queue.IncrementSlot() {
		r.BuildQueue(r.queue.MaxTime()+1, seedHash)
	}
	return r.queue.CurrentID()
}

// RecordProduction applies a successful block production by stakerID,
// crediting its (and its delegate's) reward, then evaluates whether it
// should now be disqualified.
func (r *Registry) RecordProduction(stakerID uint32, blockReward int64, blockHash chainhash.Hash) error {
	s, ok := r.GetStaker(stakerID)
	if !ok {
		return fmt.Errorf("qpos: no such staker %d", stakerID)
	}
	prevDidProduce := s.DidProduceMostRecentBlock()
	reward, delegateReward := s.ProducedBlock(blockReward, prevDidProduce)
	s.MostRecentBlockHash = blockHash
	r.Credit(s.PubkeyOwner, reward)
	if delegateReward > 0 {
		r.Credit(s.PubkeyDelegate, delegateReward)
	}
	if s.ShouldBeDisqualified(r.maxMisses) {
		s.Disqualify()
	}
	return nil
}

// RecordMiss applies a missed assigned slot, evaluating disqualification
// exactly as RecordProduction does.
func (r *Registry) RecordMiss(stakerID uint32) error {
	s, ok := r.GetStaker(stakerID)
	if !ok {
		return fmt.Errorf("qpos: no such staker %d", stakerID)
	}
	prevDidProduce := s.DidProduceMostRecentBlock()
	s.MissedBlock(prevDidProduce)
	if s.ShouldBeDisqualified(r.maxMisses) {
		s.Disqualify()
	}
	return nil
}

// Snapshot captures the registry's full state at height, retaining it for
// later restoration by Rollback. Callers take a snapshot once per
// connected block, immediately before applying that block's qPoS
// operations, matching the copy-on-validate discipline used throughout
// the registry.
func (r *Registry) Snapshot(height int32) {
	stakers := make(map[uint32]*Staker, len(r.stakers))
	for id, s := range r.stakers {
		stakers[id] = s.Clone()
	}
	var q *Queue
	if r.queue != nil {
		q = r.queue.Clone()
	}
	r.snapshots[height] = &Snapshot{Height: height, Stakers: stakers, Queue: q, NextID: r.nextID}
	r.history = append(r.history, height)
}

// Rollback restores the registry to the most recent retained snapshot at
// or below height, discarding every snapshot above it. Used when a reorg
// disconnects blocks back to a common ancestor.
func (r *Registry) Rollback(height int32) error {
	var target int32 = -1
	for _, h := range r.history {
		if h <= height && h > target {
			target = h
		}
	}
	snap, ok := r.snapshots[target]
	if !ok {
		return fmt.Errorf("qpos: no snapshot at or below height %d", height)
	}
	r.stakers = make(map[uint32]*Staker, len(snap.Stakers))
	r.aliases = make(map[string]uint32, len(snap.Stakers))
	for id, s := range snap.Stakers {
		clone := s.Clone()
		r.stakers[id] = clone
		if clone.Alias != "" {
			r.aliases[strings.ToLower(clone.Alias)] = id
		}
	}
	if snap.Queue != nil {
		r.queue = snap.Queue.Clone()
	} else {
		r.queue = nil
	}
	r.nextID = snap.NextID

	kept := r.history[:0]
	for _, h := range r.history {
		if h <= target {
			kept = append(kept, h)
		} else {
			delete(r.snapshots, h)
		}
	}
	r.history = kept
	return nil
}

// PruneSnapshots discards every retained snapshot at or below height,
// bounding memory growth once a height is deep enough that a reorg past
// it is no longer possible.
func (r *Registry) PruneSnapshots(height int32) {
	kept := r.history[:0]
	for _, h := range r.history {
		if h <= height {
			delete(r.snapshots, h)
			continue
		}
		kept = append(kept, h)
	}
	r.history = kept
}
