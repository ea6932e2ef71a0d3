package mempool

import (
	"testing"

	"github.com/junaeth-project/qposd/chainhash"
	"github.com/junaeth-project/qposd/wire"
)

func simpleTx(seed byte, value int64) *wire.Transaction {
	tx := wire.NewTransaction()
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Hash: chainhash.Hash{seed}, Index: 0}})
	tx.AddTxOut(&wire.TxOut{Value: value, PkScript: []byte{0x6a}})
	return tx
}

func TestMaybeAcceptPoolsAndRejectsDuplicate(t *testing.T) {
	p := New()
	tx := simpleTx(1, 1000)

	if err := p.MaybeAccept(tx); err != nil {
		t.Fatalf("MaybeAccept: %v", err)
	}
	if !p.Has(tx.TxHash()) {
		t.Fatalf("pool does not contain the accepted transaction")
	}
	if p.Count() != 1 {
		t.Fatalf("Count = %d, want 1", p.Count())
	}

	if err := p.MaybeAccept(tx); err == nil {
		t.Errorf("MaybeAccept accepted the same transaction twice")
	}
}

func TestMaybeAcceptRejectsConflictingOutpoint(t *testing.T) {
	p := New()
	shared := wire.OutPoint{Hash: chainhash.Hash{9}, Index: 0}

	tx1 := wire.NewTransaction()
	tx1.AddTxIn(&wire.TxIn{PreviousOutPoint: shared})
	tx1.AddTxOut(&wire.TxOut{Value: 1000, PkScript: []byte{0x6a}})

	tx2 := wire.NewTransaction()
	tx2.AddTxIn(&wire.TxIn{PreviousOutPoint: shared})
	tx2.AddTxOut(&wire.TxOut{Value: 500, PkScript: []byte{0x6a, 0x01}})

	if err := p.MaybeAccept(tx1); err != nil {
		t.Fatalf("MaybeAccept(tx1): %v", err)
	}
	if err := p.MaybeAccept(tx2); err == nil {
		t.Errorf("MaybeAccept accepted a transaction spending an already-pooled outpoint")
	}
}

func TestRemoveEvictsFromAllIndexes(t *testing.T) {
	p := New()
	tx := simpleTx(2, 1000)
	if err := p.MaybeAccept(tx); err != nil {
		t.Fatalf("MaybeAccept: %v", err)
	}
	p.Remove(tx.TxHash())
	if p.Has(tx.TxHash()) {
		t.Errorf("Has = true after Remove")
	}
	if p.Count() != 0 {
		t.Errorf("Count = %d after Remove, want 0", p.Count())
	}

	// The outpoint should now be free for a second transaction to spend.
	tx2 := wire.NewTransaction()
	tx2.AddTxIn(&wire.TxIn{PreviousOutPoint: tx.TxIn[0].PreviousOutPoint})
	tx2.AddTxOut(&wire.TxOut{Value: 1, PkScript: []byte{0x6a}})
	if err := p.MaybeAccept(tx2); err != nil {
		t.Errorf("MaybeAccept after Remove freed the outpoint but was still rejected: %v", err)
	}
}

func TestRemoveConflictsEvictsNonMinedSpenders(t *testing.T) {
	p := New()
	shared := wire.OutPoint{Hash: chainhash.Hash{3}, Index: 0}

	conflicting := wire.NewTransaction()
	conflicting.AddTxIn(&wire.TxIn{PreviousOutPoint: shared})
	conflicting.AddTxOut(&wire.TxOut{Value: 1, PkScript: []byte{0x6a}})
	if err := p.MaybeAccept(conflicting); err != nil {
		t.Fatalf("MaybeAccept: %v", err)
	}

	mined := wire.NewTransaction()
	mined.AddTxIn(&wire.TxIn{PreviousOutPoint: shared})
	mined.AddTxOut(&wire.TxOut{Value: 2, PkScript: []byte{0x6a, 0x02}})

	block := &wire.Block{Transactions: []*wire.Transaction{mined}}
	p.RemoveConflicts(block)

	if p.Has(conflicting.TxHash()) {
		t.Errorf("RemoveConflicts left a transaction in the pool that double-spent a mined input")
	}
}

func TestResurrectTransactionsSkipsCoinbase(t *testing.T) {
	p := New()
	coinbase := wire.NewTransaction()
	coinbase.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Hash: chainhash.ZeroHash, Index: 0xffffffff}})
	coinbase.AddTxOut(&wire.TxOut{Value: 1, PkScript: []byte{0x6a}})

	ordinary := simpleTx(4, 500)

	block := &wire.Block{Transactions: []*wire.Transaction{coinbase, ordinary}}
	p.ResurrectTransactions(block)

	if p.Has(coinbase.TxHash()) {
		t.Errorf("ResurrectTransactions repooled a coinbase transaction")
	}
	if !p.Has(ordinary.TxHash()) {
		t.Errorf("ResurrectTransactions did not repool an ordinary disconnected transaction")
	}
}
