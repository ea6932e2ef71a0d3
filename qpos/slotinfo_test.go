package qpos

import (
	"testing"

	"github.com/junaeth-project/qposd/chainhash"
)

func TestWindowContainsIsInclusiveOfBothEndpoints(t *testing.T) {
	w := Window{Start: 100, End: 110}
	for _, tc := range []struct {
		t    uint32
		want bool
	}{
		{99, false},
		{100, true},
		{105, true},
		{110, true},
		{111, false},
	} {
		if got := w.Contains(tc.t); got != tc.want {
			t.Errorf("Window{100,110}.Contains(%d) = %v, want %v", tc.t, got, tc.want)
		}
	}
}

func TestNewSlotInfoStartsPendingAndUnresolved(t *testing.T) {
	si := NewSlotInfo(7, 3, Window{Start: 0, End: 5})
	if si.Result != SlotResultPending {
		t.Errorf("Result = %v, want SlotResultPending", si.Result)
	}
	if si.IsResolved() {
		t.Errorf("IsResolved = true for a freshly built slot")
	}
	if si.Slot != 7 || si.StakerID != 3 {
		t.Errorf("SlotInfo = %+v, want Slot=7 StakerID=3", si)
	}
}

func TestMarkProducedResolvesSlotWithHash(t *testing.T) {
	si := NewSlotInfo(1, 1, Window{})
	hash := chainhash.Hash{0x01, 0x02}

	si.MarkProduced(42, hash)

	if !si.IsResolved() {
		t.Fatalf("IsResolved = false after MarkProduced")
	}
	if si.Result != SlotResultProduced {
		t.Errorf("Result = %v, want SlotResultProduced", si.Result)
	}
	if si.Time != 42 {
		t.Errorf("Time = %d, want 42", si.Time)
	}
	if si.BlockHash != hash {
		t.Errorf("BlockHash = %s, want %s", si.BlockHash, hash)
	}
}

func TestMarkMissedResolvesSlotWithoutHash(t *testing.T) {
	si := NewSlotInfo(1, 1, Window{})

	si.MarkMissed(99)

	if !si.IsResolved() {
		t.Fatalf("IsResolved = false after MarkMissed")
	}
	if si.Result != SlotResultMissed {
		t.Errorf("Result = %v, want SlotResultMissed", si.Result)
	}
	if si.BlockHash != (chainhash.Hash{}) {
		t.Errorf("BlockHash = %s, want zero hash for a missed slot", si.BlockHash)
	}
}

func TestSlotResultStringMatchesEachConstant(t *testing.T) {
	cases := map[SlotResult]string{
		SlotResultPending:  "pending",
		SlotResultProduced: "produced",
		SlotResultMissed:   "missed",
	}
	for result, want := range cases {
		if got := result.String(); got != want {
			t.Errorf("SlotResult(%d).String() = %q, want %q", result, got, want)
		}
	}
}
