// Package locks provides a shutdown-aware wait group used by every
// long-running loop (minters, the message handler, the address manager) to
// report "I am still doing work" so the process can wait for a clean drain
// before exiting on fShutdown.
package locks

import (
	"sync"
	"sync/atomic"
)

// WaitGroup is a sync.WaitGroup variant whose Done panics when called more
// times than Add. It has no method for polling the outstanding count; Wait
// is the only way to observe it, and Wait blocks.
type WaitGroup struct {
	counter  int64
	waitCond *sync.Cond
}

// NewWaitGroup returns a ready-to-use WaitGroup.
func NewWaitGroup() *WaitGroup {
	return &WaitGroup{waitCond: sync.NewCond(&sync.Mutex{})}
}

// Add marks one more unit of outstanding work.
func (wg *WaitGroup) Add() {
	atomic.AddInt64(&wg.counter, 1)
}

// Done marks one unit of outstanding work as finished.
func (wg *WaitGroup) Done() {
	counter := atomic.AddInt64(&wg.counter, -1)
	if counter < 0 {
		panic("locks: Done called more times than Add")
	}
	if counter == 0 {
		wg.waitCond.Broadcast()
	}
}

// Wait blocks until every outstanding unit of work has called Done.
func (wg *WaitGroup) Wait() {
	wg.waitCond.L.Lock()
	defer wg.waitCond.L.Unlock()
	for atomic.LoadInt64(&wg.counter) != 0 {
		wg.waitCond.Wait()
	}
}
