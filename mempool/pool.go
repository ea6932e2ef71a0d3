// Package mempool holds every transaction this node has accepted but not
// yet seen confirmed in a block: the pending-transaction pool, the orphan
// transaction/block pools, and the free-relay rate limiter.
//
// Grounded on the teacher's mempool package shape (one pool guarded by a
// single mutex, conflict/orphan bookkeeping as side maps keyed off the
// pool's primary tx-by-hash map) adapted to the qPoS-specific conflict
// classes spec.md §3's MemPool row and §8's testable properties describe:
// alias registrations and claims need their own dedup maps alongside the
// ordinary spent-outpoint one.
package mempool

import (
	"sync"

	"github.com/junaeth-project/qposd/blockchain"
	"github.com/junaeth-project/qposd/chainhash"
	"github.com/junaeth-project/qposd/txscript"
	"github.com/junaeth-project/qposd/wire"
)

// TxPool is the set of transactions this node is willing to relay and
// include in a block it produces. Every exported method is safe for
// concurrent use.
type TxPool struct {
	mtx sync.RWMutex

	pool         map[chainhash.Hash]*wire.Transaction
	outpoints    map[wire.OutPoint]chainhash.Hash // spender, keyed by the outpoint it spends
	aliasPending map[string]chainhash.Hash        // canonical alias -> registering tx
	claimPending map[string]chainhash.Hash        // claimant pubkey bytes -> claiming tx
}

// New returns an empty pool.
func New() *TxPool {
	return &TxPool{
		pool:         make(map[chainhash.Hash]*wire.Transaction),
		outpoints:    make(map[wire.OutPoint]chainhash.Hash),
		aliasPending: make(map[string]chainhash.Hash),
		claimPending: make(map[string]chainhash.Hash),
	}
}

// Has reports whether hash is already pooled.
func (p *TxPool) Has(hash chainhash.Hash) bool {
	p.mtx.RLock()
	defer p.mtx.RUnlock()
	_, ok := p.pool[hash]
	return ok
}

// Get returns the pooled transaction for hash, if any.
func (p *TxPool) Get(hash chainhash.Hash) (*wire.Transaction, bool) {
	p.mtx.RLock()
	defer p.mtx.RUnlock()
	tx, ok := p.pool[hash]
	return tx, ok
}

// Count returns the number of pooled transactions.
func (p *TxPool) Count() int {
	p.mtx.RLock()
	defer p.mtx.RUnlock()
	return len(p.pool)
}

// errConflict classifies why MaybeAccept rejected a transaction without a
// DoS-scored rule violation — spec.md §8 scenario 3 requires a duplicate
// claim be rejected "not DoS-scored", unlike a RuleError from
// blockchain.CheckTransaction.
type errConflict string

func (e errConflict) Error() string { return string(e) }

// MaybeAccept runs tx through blockchain.CheckTransaction and the pool's
// own conflict rules (spec.md §3's MemPool invariants: no two pending
// transactions share a spent outpoint, a pending alias, or a pending
// claimant), pooling it only if every check passes.
func (p *TxPool) MaybeAccept(tx *wire.Transaction) error {
	if err := blockchain.CheckTransaction(tx); err != nil {
		return err
	}

	hash := tx.TxHash()

	p.mtx.Lock()
	defer p.mtx.Unlock()

	if _, dup := p.pool[hash]; dup {
		return errConflict("mempool: transaction already pooled")
	}
	for _, in := range tx.TxIn {
		if spender, taken := p.outpoints[in.PreviousOutPoint]; taken && spender != hash {
			return errConflict("mempool: outpoint already spent by a pooled transaction")
		}
	}

	var alias string
	var claimant string
	for _, out := range tx.TxOut {
		sol, err := txscript.Solve(out.PkScript)
		if err != nil {
			continue
		}
		switch sol.Class {
		case txscript.Purchase1Ty, txscript.Purchase3Ty:
			if sol.Op.Alias != "" {
				alias = sol.Op.Alias
				if _, taken := p.aliasPending[alias]; taken {
					return errConflict("mempool: alias already registered by a pooled transaction")
				}
			}
		case txscript.ClaimTy:
			claimant = string(sol.Op.Pubkey)
			if _, taken := p.claimPending[claimant]; taken {
				return errConflict("mempool: pubkey already has a pending claim")
			}
		}
	}

	p.pool[hash] = tx
	for _, in := range tx.TxIn {
		p.outpoints[in.PreviousOutPoint] = hash
	}
	if alias != "" {
		p.aliasPending[alias] = hash
	}
	if claimant != "" {
		p.claimPending[claimant] = hash
	}
	return nil
}

// Remove evicts hash from the pool (and every side index it populated),
// used both when a transaction is mined into a block and when it conflicts
// with one that was.
func (p *TxPool) Remove(hash chainhash.Hash) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	p.removeLocked(hash)
}

func (p *TxPool) removeLocked(hash chainhash.Hash) {
	tx, ok := p.pool[hash]
	if !ok {
		return
	}
	delete(p.pool, hash)
	for _, in := range tx.TxIn {
		if p.outpoints[in.PreviousOutPoint] == hash {
			delete(p.outpoints, in.PreviousOutPoint)
		}
	}
	for alias, h := range p.aliasPending {
		if h == hash {
			delete(p.aliasPending, alias)
		}
	}
	for claimant, h := range p.claimPending {
		if h == hash {
			delete(p.claimPending, claimant)
		}
	}
}

// RemoveConflicts removes every pooled transaction that spends one of
// block's inputs but was not itself included in block — the standard
// "this output is now spent elsewhere" eviction a newly connected block
// triggers.
func (p *TxPool) RemoveConflicts(block *wire.Block) {
	mined := make(map[chainhash.Hash]struct{}, len(block.Transactions))
	for _, tx := range block.Transactions {
		mined[tx.TxHash()] = struct{}{}
	}

	p.mtx.Lock()
	defer p.mtx.Unlock()
	for _, tx := range block.Transactions {
		for _, in := range tx.TxIn {
			if spender, taken := p.outpoints[in.PreviousOutPoint]; taken {
				if _, wasMined := mined[spender]; !wasMined {
					p.removeLocked(spender)
				}
			}
		}
	}
	for _, tx := range block.Transactions {
		delete(p.pool, tx.TxHash())
	}
}

// ResurrectTransactions re-pools every transaction from a disconnected
// block (except its coinbase), used by Reorganize when it unwinds the old
// branch — spec.md §4.5 describes this as part of Reorganize's disconnect
// step.
func (p *TxPool) ResurrectTransactions(block *wire.Block) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	for i, tx := range block.Transactions {
		if i == 0 && tx.IsCoinBase() {
			continue
		}
		hash := tx.TxHash()
		if _, dup := p.pool[hash]; dup {
			continue
		}
		clone := tx.Copy()
		p.pool[hash] = clone
		for _, in := range clone.TxIn {
			p.outpoints[in.PreviousOutPoint] = hash
		}
	}
}
