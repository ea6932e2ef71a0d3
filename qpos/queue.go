package qpos

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/junaeth-project/qposd/chainhash"
)

// SlotStatus classifies a queue slot relative to the queue's current
// position: already produced (or missed), currently open, or not yet
// reached.
type SlotStatus int

const (
	SlotPast SlotStatus = iota
	SlotCurrent
	SlotFuture
)

func (s SlotStatus) String() string {
	switch s {
	case SlotPast:
		return "past"
	case SlotCurrent:
		return "current"
	default:
		return "future"
	}
}

// Queue is a single round's slot assignment: a permutation of qualified
// staker IDs, one per fixed-width time slot starting at SlotTime0.
type Queue struct {
	CurrentSlot uint32
	SlotTime0   uint32
	StakerIDs   []uint32
	BlockStats  []byte

	targetTime uint32
}

// NewQueue builds a Queue starting at slotTime0 with the given staker
// order, using targetTime seconds per slot.
func NewQueue(slotTime0 uint32, stakerIDs []uint32, targetTime uint32) *Queue {
	return &Queue{SlotTime0: slotTime0, StakerIDs: stakerIDs, targetTime: targetTime}
}

// Reset rewinds the queue to its first slot without changing its staker
// order. Nothing in this module calls it.
func (q *Queue) Reset() {
	q.CurrentSlot = 0
}

// Size returns the number of slots (equivalently, qualified stakers) in
// the queue.
func (q *Queue) Size() uint32 {
	return uint32(len(q.StakerIDs))
}

// IsEmpty reports whether the queue has no stakers, meaning no block can
// be produced this round.
func (q *Queue) IsEmpty() bool {
	return len(q.StakerIDs) == 0
}

// IDForSlot returns the staker ID assigned to slot, or false if slot is
// out of range.
func (q *Queue) IDForSlot(slot uint32) (uint32, bool) {
	if slot >= uint32(len(q.StakerIDs)) {
		return 0, false
	}
	return q.StakerIDs[slot], true
}

// SlotForID returns the slot assigned to staker id, or false if it is not
// in this queue.
func (q *Queue) SlotForID(id uint32) (uint32, bool) {
	for slot, sid := range q.StakerIDs {
		if sid == id {
			return uint32(slot), true
		}
	}
	return 0, false
}

// WindowForSlot returns the time window during which slot's staker is
// expected to produce its block.
func (q *Queue) WindowForSlot(slot uint32) (Window, bool) {
	if slot >= uint32(len(q.StakerIDs)) {
		return Window{}, false
	}
	start := q.SlotTime0 + q.targetTime*slot
	return Window{Start: start, End: start + q.targetTime - 1}, true
}

// WindowForID returns WindowForSlot for the slot assigned to id.
func (q *Queue) WindowForID(id uint32) (Window, bool) {
	slot, ok := q.SlotForID(id)
	if !ok {
		return Window{}, false
	}
	return q.WindowForSlot(slot)
}

// MinTime and MaxTime bound the queue's full round: the opening of its
// first slot and the close of its last.
func (q *Queue) MinTime() uint32 { return q.SlotTime0 }

func (q *Queue) MaxTime() uint32 {
	return q.SlotTime0 + q.targetTime*uint32(len(q.StakerIDs)) - 1
}

// SlotStartTime returns the opening time of slot.
func (q *Queue) SlotStartTime(slot uint32) (uint32, bool) {
	if slot >= uint32(len(q.StakerIDs)) {
		return 0, false
	}
	return q.SlotTime0 + q.targetTime*slot, true
}

// SlotForTime returns the slot whose window contains t.
func (q *Queue) SlotForTime(t uint32) (uint32, error) {
	if t < q.SlotTime0 {
		return 0, fmt.Errorf("qpos: time %d predates queue start %d", t, q.SlotTime0)
	}
	if t > q.MaxTime() {
		return 0, fmt.Errorf("qpos: time %d is past queue end %d", t, q.MaxTime())
	}
	return (t - q.SlotTime0) / q.targetTime, nil
}

// CurrentSlotWindow returns the window of the slot the queue is currently
// on.
func (q *Queue) CurrentSlotWindow() Window {
	w, _ := q.WindowForSlot(q.CurrentSlot)
	return w
}

// TimeIsInCurrentSlotWindow reports whether t falls within the current
// slot's window.
func (q *Queue) TimeIsInCurrentSlotWindow(t uint32) bool {
	return q.CurrentSlotWindow().Contains(t)
}

// CurrentID returns the staker ID assigned to the current slot.
func (q *Queue) CurrentID() uint32 {
	return q.StakerIDs[q.CurrentSlot]
}

// LastID returns the staker ID assigned to the queue's final slot.
func (q *Queue) LastID() uint32 {
	return q.StakerIDs[len(q.StakerIDs)-1]
}

// IsOnLastSlot reports whether the queue has advanced to its final slot.
func (q *Queue) IsOnLastSlot() bool {
	return q.CurrentSlot == uint32(len(q.StakerIDs))-1
}

// IncrementSlot advances the queue to the next slot, returning false (and
// leaving CurrentSlot unchanged) if already on the last slot — the
// registry must roll a fresh Queue for the next round in that case.
func (q *Queue) IncrementSlot() bool {
	if q.CurrentSlot+1 >= uint32(len(q.StakerIDs)) {
		return false
	}
	q.CurrentSlot++
	return true
}

// String renders the queue's slot assignment for logging.
func (q *Queue) String() string {
	return fmt.Sprintf("Queue: start=%d current_slot=%d slots=%v", q.SlotTime0, q.CurrentSlot, q.StakerIDs)
}

// Clone returns a deep copy, used by the registry's copy-on-validate
// discipline.
func (q *Queue) Clone() *Queue {
	clone := *q
	clone.StakerIDs = append([]uint32(nil), q.StakerIDs...)
	clone.BlockStats = append([]byte(nil), q.BlockStats...)
	return &clone
}

// shuffleQueueOrder returns a permutation of ids, deterministically
// shuffled by a Fisher-Yates pass keyed on seedHash — the block hash at
// the queue boundary, per spec.md §4.7 ("the registry deterministically
// shuffles the currently qualified staker IDs using a seed derived from
// the block hash at the queue boundary"). Every full node computing a new
// queue from the same qualified-staker set and the same boundary block
// hash derives the identical permutation.
func shuffleQueueOrder(ids []uint32, seedHash chainhash.Hash) []uint32 {
	shuffled := append([]uint32(nil), ids...)
	var counter uint32
	for i := len(shuffled) - 1; i > 0; i-- {
		j := queueShuffleDraw(seedHash, counter, uint32(i)+1)
		counter++
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return shuffled
}

// queueShuffleDraw derives the next pseudorandom index in [0, n) from
// SHA-256(seedHash || counter), the keystream shuffleQueueOrder's
// Fisher-Yates pass draws its swap indices from.
func queueShuffleDraw(seedHash chainhash.Hash, counter, n uint32) uint32 {
	var buf [chainhash.HashSize + 4]byte
	copy(buf[:chainhash.HashSize], seedHash[:])
	binary.BigEndian.PutUint32(buf[chainhash.HashSize:], counter)
	digest := sha256.Sum256(buf[:])
	return binary.BigEndian.Uint32(digest[:4]) % n
}
