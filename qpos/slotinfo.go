package qpos

import "github.com/junaeth-project/qposd/chainhash"

// SlotResult classifies how a slot was actually resolved once its window
// has closed, distinct from SlotStatus which only tracks position
// relative to "now".
type SlotResult int

const (
	SlotResultPending SlotResult = iota
	SlotResultProduced
	SlotResultMissed
)

func (r SlotResult) String() string {
	switch r {
	case SlotResultProduced:
		return "produced"
	case SlotResultMissed:
		return "missed"
	default:
		return "pending"
	}
}

// SlotInfo is a single record of one slot's assignment and outcome. The
// Registry does not keep SlotInfo records, and the production and miss
// bookkeeping in Registry.RecordProduction/RecordMiss does not read them.
type SlotInfo struct {
	Time     int64
	Slot     uint32
	StakerID uint32
	Window   Window
	Result   SlotResult
	BlockHash chainhash.Hash
}

// NewSlotInfo builds a pending record for the given slot assignment.
func NewSlotInfo(slot uint32, stakerID uint32, window Window) *SlotInfo {
	return &SlotInfo{Slot: slot, StakerID: stakerID, Window: window, Result: SlotResultPending}
}

// MarkProduced resolves the slot as produced at the given time with the
// given block hash.
func (si *SlotInfo) MarkProduced(t int64, hash chainhash.Hash) {
	si.Time = t
	si.Result = SlotResultProduced
	si.BlockHash = hash
}

// MarkMissed resolves the slot as missed once its window has closed
// without a valid block.
func (si *SlotInfo) MarkMissed(t int64) {
	si.Time = t
	si.Result = SlotResultMissed
}

// IsResolved reports whether the slot's outcome has been determined.
func (si *SlotInfo) IsResolved() bool {
	return si.Result != SlotResultPending
}
