// Package qpos implements the staker registry and slot-scheduling state
// machine: the set of registered block producers, their per-staker
// production statistics, the deterministic queue that assigns each time
// slot to exactly one staker, and the snapshot/replay discipline that lets
// a reorganization restore this state deterministically.
//
// Grounded on original_source/src/qpos/{QPStaker,QPQueue,QPWindow,
// QPSlotInfo}.{hpp,cpp}.
package qpos

// Window is a closed time range, in seconds since the chain epoch,
// during which a single slot's scheduled staker is expected to produce
// its block.
type Window struct {
	Start uint32
	End   uint32
}

// Contains reports whether t falls within the window, inclusive of both
// endpoints (matching the original's start <= t <= end check).
func (w Window) Contains(t uint32) bool {
	return w.Start <= t && t <= w.End
}
