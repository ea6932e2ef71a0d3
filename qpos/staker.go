package qpos

import (
	"github.com/junaeth-project/qposd/chainhash"
	"github.com/junaeth-project/qposd/codec"
	"github.com/junaeth-project/qposd/crypto"
)

// RecentBlocksWindow is the width, in blocks, of a staker's rolling
// production/miss history bitset.
const RecentBlocksWindow = 1024

// NoobBlocks is the number of blocks a newly registered staker is given
// before its production rate counts toward disqualification.
const NoobBlocks = 100

// Staker is a single registered block producer: its authority keys,
// production history, and qualification state. Instances are owned by a
// Registry; callers mutate a Staker only through the registry's public
// mutators, never by holding a pointer across a registry snapshot/replay.
type Staker struct {
	ID         uint32
	Alias      string
	PubkeyOwner      *crypto.PublicKey
	PubkeyDelegate   *crypto.PublicKey
	PubkeyController *crypto.PublicKey

	CreationBlockHash chainhash.Hash
	CreationTxID      chainhash.Hash
	CreationVout      uint32
	PurchasePrice     int64

	RecentBlocks     *codec.Bitset
	PrevRecentBlocks *codec.Bitset

	BlocksProduced    uint32
	BlocksMissed      uint32
	BlocksDocked      uint32
	BlocksAssigned    uint32
	BlocksSeen        uint32
	PrevBlocksMissed  uint32
	PcmDelegatePayout uint32

	MostRecentBlockHash chainhash.Hash
	HeightDisabled      int32 // -1 means never disabled
	Qualified           bool
	TotalEarned         int64

	Meta map[string]string
}

// NewStaker creates a freshly purchased Staker with all three authority
// keys set to the purchasing owner key, matching QPStaker's single-key
// purchase constructor; a triple-key purchase overwrites Delegate and
// Controller afterward.
func NewStaker(id uint32, owner *crypto.PublicKey) *Staker {
	s := &Staker{
		ID:               id,
		PubkeyOwner:      owner,
		PubkeyDelegate:   owner,
		PubkeyController: owner,
	}
	s.Reset()
	return s
}

// Reset restores a Staker to its just-created state: every recent-blocks
// bit set (so a new staker is never immediately flagged for having missed
// its history), all counters zeroed, and qualified.
func (s *Staker) Reset() {
	s.RecentBlocks = codec.NewBitset(RecentBlocksWindow)
	s.PrevRecentBlocks = codec.NewBitset(RecentBlocksWindow)
	for i := 0; i < RecentBlocksWindow; i++ {
		s.RecentBlocks.Set(i, true)
		s.PrevRecentBlocks.Set(i, true)
	}
	s.BlocksProduced = 0
	s.BlocksMissed = 0
	s.BlocksDocked = 0
	s.BlocksAssigned = 0
	s.BlocksSeen = 0
	s.PrevBlocksMissed = 0
	s.PcmDelegatePayout = 0
	s.HeightDisabled = -1
	s.Qualified = true
	s.TotalEarned = 0
	s.Alias = ""
	s.Meta = nil
}

// GetRecentBlocksProduced returns how many of the last RecentBlocksWindow
// assigned slots this staker produced a block for.
func (s *Staker) GetRecentBlocksProduced() uint32 {
	return uint32(s.RecentBlocks.CountSet())
}

// GetPrevRecentBlocksProduced is GetRecentBlocksProduced for the window
// before the current one, preserved across the rollover so a
// disqualification decision can look one window back.
func (s *Staker) GetPrevRecentBlocksProduced() uint32 {
	return uint32(s.PrevRecentBlocks.CountSet())
}

// GetRecentBlocksMissed returns the number of misses in the current
// recent-blocks window, capped at the window's width minus however many
// it produced (the original's `min(nBlocksMissed, m)` guard against
// counter drift past what the bitset alone could represent).
func (s *Staker) GetRecentBlocksMissed() uint32 {
	m := uint32(RecentBlocksWindow) - s.GetRecentBlocksProduced()
	if s.BlocksMissed < m {
		return s.BlocksMissed
	}
	return m
}

// GetPrevRecentBlocksMissed is GetRecentBlocksMissed for the previous
// window.
func (s *Staker) GetPrevRecentBlocksMissed() uint32 {
	m := uint32(RecentBlocksWindow) - s.GetPrevRecentBlocksProduced()
	if s.PrevBlocksMissed < m {
		return s.PrevBlocksMissed
	}
	return m
}

// GetNetBlocks is BlocksProduced less any blocks docked (e.g. for a
// disputed or since-orphaned production), floored at zero.
func (s *Staker) GetNetBlocks() uint32 {
	if s.BlocksDocked >= s.BlocksProduced {
		return 0
	}
	return s.BlocksProduced - s.BlocksDocked
}

// DidProduceMostRecentBlock reports whether bit 0 of RecentBlocks (the
// most recently assigned slot) is set.
func (s *Staker) DidProduceMostRecentBlock() bool {
	return s.RecentBlocks.Get(0)
}

// DidMissMostRecentBlock is the complement of DidProduceMostRecentBlock.
func (s *Staker) DidMissMostRecentBlock() bool {
	return !s.DidProduceMostRecentBlock()
}

// Weight is the integer square root of this staker's net production plus
// seniority squared, so that both a longer-tenured staker and a more
// productive one score proportionally higher, with diminishing returns
// from either axis alone. Queue order itself is a pure block-hash-seeded
// shuffle (spec.md §4.7) and does not consult Weight; it is exposed for
// out-of-core consumers (e.g. a future chain-trust or RPC weighting) the
// way original_source's QPStaker::GetWeight is, without being
// consensus-critical itself.
func (s *Staker) Weight(seniority uint32) uint32 {
	net := s.GetNetBlocks()
	if net == 0 {
		return seniority
	}
	return uisqrt(net + seniority*seniority)
}

// IsEnabled reports whether the staker is both qualified and not manually
// disabled.
func (s *Staker) IsEnabled() bool {
	return s.Qualified && s.HeightDisabled < 0
}

// IsDisabled is the complement of IsEnabled.
func (s *Staker) IsDisabled() bool {
	return s.HeightDisabled >= 0 || !s.Qualified
}

// IsQualified reports whether the staker currently belongs in the queue.
func (s *Staker) IsQualified() bool {
	return s.Qualified
}

// ShouldBeDisqualified reports whether the staker has missed too many
// recent blocks to remain in the queue: either the previous window's miss
// count alone exceeds the allowed maximum, or (once past its probation
// period) it is producing no net blocks or missing more than half of its
// recent window.
func (s *Staker) ShouldBeDisqualified(prevRecentBlocksMissedMax uint32) bool {
	if s.GetPrevRecentBlocksMissed() > prevRecentBlocksMissedMax {
		return true
	}
	if s.BlocksSeen <= NoobBlocks {
		return false
	}
	return s.GetNetBlocks() == 0 || s.GetRecentBlocksMissed() > RecentBlocksWindow/2
}

// ProducedBlock records a successful block production: shifts a 1 into
// the recent-blocks history, increments the produced counter, and
// computes this staker's (and, if it delegated payout, its delegate's)
// share of the block reward.
func (s *Staker) ProducedBlock(blockReward int64, prevDidProduce bool) (reward, delegateReward int64) {
	s.RecentBlocks.ShiftInsertMSB(true)
	s.BlocksProduced++
	s.UpdatePrevRecentBlocks(prevDidProduce)

	delegateReward = blockReward * int64(s.PcmDelegatePayout) / 100000
	reward = blockReward - delegateReward
	s.TotalEarned += reward
	return reward, delegateReward
}

// MissedBlock records a missed assigned slot: shifts a 0 into the
// recent-blocks history and increments the missed counter.
func (s *Staker) MissedBlock(prevDidProduce bool) {
	s.RecentBlocks.ShiftInsertMSB(false)
	s.BlocksMissed++
	s.UpdatePrevRecentBlocks(prevDidProduce)
}

// SawBlock records that a slot was assigned to this staker regardless of
// whether it produced, the counter ShouldBeDisqualified's probation check
// reads.
func (s *Staker) SawBlock() {
	s.BlocksSeen++
	s.BlocksAssigned++
}

// UpdatePrevRecentBlocks rolls the previous-window bitset and miss
// counter forward by one slot, carried alongside every produced/missed
// update so the previous window always trails the current one by exactly
// RecentBlocksWindow slots.
func (s *Staker) UpdatePrevRecentBlocks(prevDidProduce bool) {
	s.PrevRecentBlocks.ShiftInsertMSB(prevDidProduce)
	if !prevDidProduce {
		s.PrevBlocksMissed++
	}
}

// SetDelegatePayout sets the delegate's percentage (in parts-per-100000)
// of each block reward, rejecting anything above 100%.
func (s *Staker) SetDelegatePayout(pcm uint32) bool {
	if pcm > 100000 {
		return false
	}
	s.PcmDelegatePayout = pcm
	return true
}

// Enable clears a manual disable, re-admitting the staker to the queue on
// its next snapshot.
func (s *Staker) Enable() bool {
	if s.HeightDisabled < 0 {
		return false
	}
	s.HeightDisabled = -1
	return true
}

// Disable manually removes the staker from consideration as of the given
// height.
func (s *Staker) Disable(height int32) {
	s.HeightDisabled = height
}

// Disqualify marks the staker unqualified, the automatic counterpart to
// Disable driven by ShouldBeDisqualified rather than a CLAIM/SETSTATE
// transaction.
func (s *Staker) Disqualify() {
	s.Qualified = false
}

// SetAlias renames the staker, storing alias as given; the registry
// lowercases it only for its alias index, where it also checks for
// collisions.
func (s *Staker) SetAlias(alias string) bool {
	if alias == "" {
		return false
	}
	s.Alias = alias
	return true
}

// HasMeta reports whether key is present in the staker's free-form
// metadata map.
func (s *Staker) HasMeta(key string) bool {
	_, ok := s.Meta[key]
	return ok
}

// GetMeta returns the value stored under key, if any.
func (s *Staker) GetMeta(key string) (string, bool) {
	v, ok := s.Meta[key]
	return v, ok
}

// SetMeta stores value under key, allocating the metadata map on first
// use.
func (s *Staker) SetMeta(key, value string) {
	if s.Meta == nil {
		s.Meta = make(map[string]string)
	}
	s.Meta[key] = value
}

// Clone returns a deep copy of the staker, used by Registry.Snapshot and
// Registry.Rollback so a retained snapshot shares no state with the live
// registry.
func (s *Staker) Clone() *Staker {
	clone := *s
	clone.RecentBlocks = s.RecentBlocks.Clone()
	clone.PrevRecentBlocks = s.PrevRecentBlocks.Clone()
	if s.Meta != nil {
		clone.Meta = make(map[string]string, len(s.Meta))
		for k, v := range s.Meta {
			clone.Meta[k] = v
		}
	}
	return &clone
}
