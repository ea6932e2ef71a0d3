package blockchain

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/junaeth-project/qposd/chainhash"
	"github.com/junaeth-project/qposd/config"
	"github.com/junaeth-project/qposd/wire"
)

// mapBlockSource is an in-memory BlockSource keyed by block hash, enough
// to satisfy Reorganize's collaborator contract in tests.
type mapBlockSource map[chainhash.Hash]*wire.Block

func (m mapBlockSource) Block(bi *BlockIndex) (*wire.Block, error) {
	blk, ok := m[bi.Hash]
	if !ok {
		return nil, fmt.Errorf("no block body for %s", bi.Hash)
	}
	return blk, nil
}

// coinbaseBlock builds a single-transaction pre-qPoS block carrying a
// unique coinbase output, distinguished from sibling blocks at the same
// height by nonce.
func coinbaseBlock(prev chainhash.Hash, height int32, nonce uint64, reward int64) *wire.Block {
	coinbase := wire.NewTransaction()
	coinbase.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: chainhash.ZeroHash, Index: 0xffffffff},
		SignatureScript:  []byte{0x01, 0x02},
	})
	coinbase.AddTxOut(&wire.TxOut{Value: reward, PkScript: []byte{0x6a}})
	block := &wire.Block{
		Header:       wire.BlockHeader{PrevBlock: prev, Height: height, Nonce: nonce},
		Transactions: []*wire.Transaction{coinbase},
	}
	block.Header.MerkleRoot = block.MerkleRoot()
	return block
}

// chainFixture wires a Chain with a connected genesis and an active
// single-block branch (oldTip), ready for a Reorganize test to challenge
// with a longer/heavier branch.
func chainFixture(t *testing.T) (c *Chain, oldTip *BlockIndex, src mapBlockSource) {
	t.Helper()
	c = NewChain(&config.Params{
		Forks:             config.ForkTable{{config.ForkGenesis, 0}},
		QPTargetSlotTime:  5,
		BlocksPerSnapshot: 1000,
	})
	genesis := coinbaseBlock(chainhash.ZeroHash, 0, 0, 50*Coin)
	gi := c.Index.AddGenesis(genesis.Header)
	if err := ConnectBlock(c.Index, gi, genesis, c.UTXO, c.Registry, config.ForkGenesis); err != nil {
		t.Fatalf("ConnectBlock(genesis): %v", err)
	}
	c.Index.SetTip(gi)

	oldBlock := coinbaseBlock(gi.Hash, 1, 1, 50*Coin)
	oi, err := c.Index.Add(oldBlock.Header, ProofOfWork, 0, big.NewInt(1))
	if err != nil {
		t.Fatalf("Add(old branch): %v", err)
	}
	if err := ConnectBlock(c.Index, oi, oldBlock, c.UTXO, c.Registry, config.ForkGenesis); err != nil {
		t.Fatalf("ConnectBlock(old branch): %v", err)
	}
	c.Index.SetNext(gi, oi)
	c.Index.SetTip(oi)

	src = mapBlockSource{genesis.BlockHash(): genesis, oldBlock.BlockHash(): oldBlock}
	return c, oi, src
}

func TestReorganizeSwitchesToHeavierBranch(t *testing.T) {
	c, oldTip, src := chainFixture(t)
	genesisHash := c.Index.Prev(oldTip).Hash

	newB1 := coinbaseBlock(genesisHash, 1, 2, 50*Coin)
	b1i, err := c.Index.Add(newB1.Header, ProofOfWork, 0, big.NewInt(1))
	if err != nil {
		t.Fatalf("Add(newB1): %v", err)
	}
	newB2 := coinbaseBlock(newB1.BlockHash(), 2, 1, 50*Coin)
	b2i, err := c.Index.Add(newB2.Header, ProofOfWork, 0, big.NewInt(1))
	if err != nil {
		t.Fatalf("Add(newB2): %v", err)
	}
	src[newB1.BlockHash()] = newB1
	src[newB2.BlockHash()] = newB2

	if b2i.ChainTrust.Cmp(oldTip.ChainTrust) <= 0 {
		t.Fatalf("test fixture bug: new branch trust %s must exceed old tip trust %s", b2i.ChainTrust, oldTip.ChainTrust)
	}

	if err := c.Reorganize(b2i, newB2, src); err != nil {
		t.Fatalf("Reorganize: %v", err)
	}

	if c.Index.Tip().Hash != b2i.Hash {
		t.Fatalf("tip after reorg = %s, want %s", c.Index.Tip().Hash, b2i.Hash)
	}
	if !c.Index.IsOnMainChain(b1i) || !c.Index.IsOnMainChain(b2i) {
		t.Errorf("new branch blocks are not reported on the main chain after reorg")
	}
	if c.Index.IsOnMainChain(oldTip) {
		t.Errorf("old branch tip is still reported on the main chain after reorg")
	}

	oldCoinbaseOut := wire.OutPoint{Hash: src[oldTip.Hash].Transactions[0].TxHash(), Index: 0}
	if _, ok := c.UTXO.Lookup(oldCoinbaseOut); ok {
		t.Errorf("old branch's coinbase output is still spendable after its block was disconnected")
	}
	newCoinbaseOut := wire.OutPoint{Hash: newB2.Transactions[0].TxHash(), Index: 0}
	if _, ok := c.UTXO.Lookup(newCoinbaseOut); !ok {
		t.Errorf("new branch's coinbase output is not spendable after reorg connected it")
	}
}

func TestReorganizeRestoresOldBranchOnReconnectFailure(t *testing.T) {
	c, oldTip, src := chainFixture(t)
	genesisHash := c.Index.Prev(oldTip).Hash

	newB1 := coinbaseBlock(genesisHash, 1, 3, 50*Coin)
	b1i, err := c.Index.Add(newB1.Header, ProofOfWork, 0, big.NewInt(1))
	if err != nil {
		t.Fatalf("Add(newB1): %v", err)
	}

	// newB2 spends an outpoint that was never created, so ConnectBlock
	// fails inside ConnectInputs during the reconnect pass.
	badTx := wire.NewTransaction()
	badTx.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Hash: chainhash.Hash{0x99}, Index: 0}})
	badTx.AddTxOut(&wire.TxOut{Value: 1000, PkScript: []byte{0x6a}})
	newB2 := &wire.Block{
		Header:       wire.BlockHeader{PrevBlock: newB1.BlockHash(), Height: 2, Nonce: 4},
		Transactions: []*wire.Transaction{badTx},
	}
	newB2.Header.MerkleRoot = newB2.MerkleRoot()
	b2i, err := c.Index.Add(newB2.Header, ProofOfWork, 0, big.NewInt(1))
	if err != nil {
		t.Fatalf("Add(newB2): %v", err)
	}
	src[newB1.BlockHash()] = newB1
	src[newB2.BlockHash()] = newB2
	_ = b1i

	if err := c.Reorganize(b2i, newB2, src); err == nil {
		t.Fatalf("Reorganize succeeded despite an unspendable input on the new branch")
	}

	if c.Index.Tip().Hash != oldTip.Hash {
		t.Errorf("tip after failed reorg = %s, want original tip %s", c.Index.Tip().Hash, oldTip.Hash)
	}
	restoredOut := wire.OutPoint{Hash: src[oldTip.Hash].Transactions[0].TxHash(), Index: 0}
	if _, ok := c.UTXO.Lookup(restoredOut); !ok {
		t.Errorf("old branch's coinbase output was not restored after a failed reorg")
	}
}
