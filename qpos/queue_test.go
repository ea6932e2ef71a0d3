package qpos

import (
	"testing"

	"github.com/junaeth-project/qposd/chainhash"
)

func TestQueueWindowsAreContiguousAndNonOverlapping(t *testing.T) {
	q := NewQueue(1000000, []uint32{5, 7, 9}, 5)

	w0, ok := q.WindowForSlot(0)
	if !ok {
		t.Fatalf("WindowForSlot(0) not found")
	}
	if w0.Start != 1000000 || w0.End != 1000004 {
		t.Errorf("slot 0 window = [%d,%d], want [1000000,1000004]", w0.Start, w0.End)
	}

	w1, ok := q.WindowForSlot(1)
	if !ok {
		t.Fatalf("WindowForSlot(1) not found")
	}
	if w1.Start != w0.End+1 {
		t.Errorf("slot 1 should start immediately after slot 0 ends: got %d, want %d", w1.Start, w0.End+1)
	}
}

func TestSlotForTimeAndIDForSlot(t *testing.T) {
	q := NewQueue(1000000, []uint32{5, 7, 9}, 5)

	slot, err := q.SlotForTime(1000007)
	if err != nil {
		t.Fatalf("SlotForTime: %v", err)
	}
	if slot != 1 {
		t.Errorf("SlotForTime(1000007) = %d, want 1", slot)
	}
	id, ok := q.IDForSlot(slot)
	if !ok || id != 7 {
		t.Errorf("IDForSlot(1) = (%d, %v), want (7, true)", id, ok)
	}
}

func TestSlotForTimeOutOfRange(t *testing.T) {
	q := NewQueue(1000000, []uint32{5, 7, 9}, 5)
	if _, err := q.SlotForTime(999999); err == nil {
		t.Errorf("SlotForTime before queue start should error")
	}
	if _, err := q.SlotForTime(q.MaxTime() + 1); err == nil {
		t.Errorf("SlotForTime past queue end should error")
	}
}

func TestIncrementSlotStopsAtLastSlot(t *testing.T) {
	q := NewQueue(0, []uint32{1, 2}, 5)
	if !q.IncrementSlot() {
		t.Fatalf("IncrementSlot from slot 0 should succeed")
	}
	if q.CurrentSlot != 1 {
		t.Errorf("CurrentSlot = %d, want 1", q.CurrentSlot)
	}
	if q.IncrementSlot() {
		t.Errorf("IncrementSlot from the last slot should return false")
	}
	if q.CurrentSlot != 1 {
		t.Errorf("CurrentSlot changed despite IncrementSlot failing: got %d", q.CurrentSlot)
	}
}

func TestSlotForIDAndWindowForID(t *testing.T) {
	q := NewQueue(0, []uint32{1, 2, 3}, 5)
	slot, ok := q.SlotForID(2)
	if !ok || slot != 1 {
		t.Fatalf("SlotForID(2) = (%d, %v), want (1, true)", slot, ok)
	}
	w, ok := q.WindowForID(2)
	if !ok {
		t.Fatalf("WindowForID(2) not found")
	}
	want, _ := q.WindowForSlot(1)
	if w != want {
		t.Errorf("WindowForID(2) = %v, want %v", w, want)
	}
	if _, ok := q.SlotForID(999); ok {
		t.Errorf("SlotForID should fail for an ID not in the queue")
	}
}

func TestShuffleQueueOrderIsDeterministicPerSeed(t *testing.T) {
	ids := []uint32{1, 2, 3, 4, 5, 6, 7, 8}
	seed := chainhash.Hash{0xaa, 0xbb, 0xcc}

	a := shuffleQueueOrder(ids, seed)
	b := shuffleQueueOrder(ids, seed)
	if len(a) != len(b) {
		t.Fatalf("shuffle lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed produced different orderings at index %d: %d vs %d", i, a[i], b[i])
		}
	}

	seen := make(map[uint32]bool, len(ids))
	for _, id := range a {
		seen[id] = true
	}
	for _, id := range ids {
		if !seen[id] {
			t.Errorf("shuffled order is missing staker %d", id)
		}
	}
}

func TestShuffleQueueOrderVariesWithSeed(t *testing.T) {
	ids := []uint32{1, 2, 3, 4, 5, 6, 7, 8}
	a := shuffleQueueOrder(ids, chainhash.Hash{1})
	b := shuffleQueueOrder(ids, chainhash.Hash{2})

	identical := true
	for i := range a {
		if a[i] != b[i] {
			identical = false
			break
		}
	}
	if identical {
		t.Errorf("different seed hashes produced the identical permutation")
	}
}

func TestQueueCloneIsIndependent(t *testing.T) {
	q := NewQueue(0, []uint32{1, 2, 3}, 5)
	clone := q.Clone()
	clone.IncrementSlot()
	clone.StakerIDs[0] = 99

	if q.CurrentSlot != 0 {
		t.Errorf("mutating clone's slot affected the original")
	}
	if q.StakerIDs[0] != 1 {
		t.Errorf("mutating clone's staker IDs affected the original")
	}
}
