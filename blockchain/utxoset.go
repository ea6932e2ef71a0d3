package blockchain

import (
	"github.com/junaeth-project/qposd/wire"
)

// UTXOEntry records one unspent output: its value/script plus the data
// ConnectInputs needs to enforce the coinbase-maturity rule.
type UTXOEntry struct {
	Output      wire.TxOut
	BlockHeight int32
	IsCoinBase  bool
	Spent       bool
}

// UTXOSet is the in-memory spendable-output set ConnectBlock/DisconnectBlock
// mutate in lockstep with the chain tip. It is the narrow stand-in this
// core keeps for the UTXO slice of the out-of-scope CTxDB (spec.md §1):
// ConnectInputs only ever needs "is this outpoint unspent, and if so by
// whom/when was it created", which this set answers without needing the
// full indexed transaction store.
type UTXOSet struct {
	entries map[wire.OutPoint]*UTXOEntry
}

// NewUTXOSet returns an empty set.
func NewUTXOSet() *UTXOSet {
	return &UTXOSet{entries: make(map[wire.OutPoint]*UTXOEntry)}
}

// Lookup returns the entry for op, if unspent.
func (s *UTXOSet) Lookup(op wire.OutPoint) (*UTXOEntry, bool) {
	e, ok := s.entries[op]
	if !ok || e.Spent {
		return nil, false
	}
	return e, true
}

// AddOutputs registers every output of tx (mined at height, possibly as a
// coinbase) as newly unspent.
func (s *UTXOSet) AddOutputs(tx *wire.Transaction, height int32) {
	hash := tx.TxHash()
	for i, out := range tx.TxOut {
		op := wire.OutPoint{Hash: hash, Index: uint32(i)}
		s.entries[op] = &UTXOEntry{
			Output:      *out,
			BlockHeight: height,
			IsCoinBase:  tx.IsCoinBase(),
		}
	}
}

// SpendInput marks op spent, returning the entry that was spent so a
// disconnect can restore it. Returns false if op is unknown or already
// spent.
func (s *UTXOSet) SpendInput(op wire.OutPoint) (*UTXOEntry, bool) {
	e, ok := s.Lookup(op)
	if !ok {
		return nil, false
	}
	e.Spent = true
	return e, true
}

// Unspend restores a previously spent entry, used by DisconnectBlock to
// undo ConnectInputs in reverse order.
func (s *UTXOSet) Unspend(op wire.OutPoint, e *UTXOEntry) {
	clone := *e
	clone.Spent = false
	s.entries[op] = &clone
}

// RemoveOutputs deletes every output tx created, the inverse of
// AddOutputs, used when disconnecting the block that created them.
func (s *UTXOSet) RemoveOutputs(tx *wire.Transaction) {
	hash := tx.TxHash()
	for i := range tx.TxOut {
		delete(s.entries, wire.OutPoint{Hash: hash, Index: uint32(i)})
	}
}
