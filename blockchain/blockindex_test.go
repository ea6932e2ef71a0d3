package blockchain

import (
	"math/big"
	"testing"

	"github.com/junaeth-project/qposd/wire"
)

func buildChain(t *testing.T, idx *Index, genesis *BlockIndex, n int) []*BlockIndex {
	t.Helper()
	chain := []*BlockIndex{genesis}
	prev := genesis
	for i := 0; i < n; i++ {
		h := wire.BlockHeader{PrevBlock: prev.Hash, Height: prev.Height + 1, Nonce: uint64(i) + 1}
		bi, err := idx.Add(h, ProofOfQPoS, uint32(i), big.NewInt(1))
		if err != nil {
			t.Fatalf("Add block %d: %v", i, err)
		}
		idx.SetNext(prev, bi)
		idx.SetTip(bi)
		chain = append(chain, bi)
		prev = bi
	}
	return chain
}

func TestIndexAddRejectsUnknownPrev(t *testing.T) {
	idx := NewIndex()
	_, err := idx.Add(wire.BlockHeader{Nonce: 1}, ProofOfQPoS, 0, big.NewInt(1))
	if err == nil {
		t.Errorf("Add accepted a header whose prev block is unknown")
	}
}

func TestIndexAddAccumulatesHeightAndTrust(t *testing.T) {
	idx := NewIndex()
	genesis := idx.AddGenesis(wire.BlockHeader{})
	chain := buildChain(t, idx, genesis, 3)

	tip := chain[3]
	if tip.Height != 3 {
		t.Errorf("Height = %d, want 3", tip.Height)
	}
	if tip.ChainTrust.Cmp(big.NewInt(3)) != 0 {
		t.Errorf("ChainTrust = %s, want 3", tip.ChainTrust)
	}
}

func TestIndexPrevNextAndTip(t *testing.T) {
	idx := NewIndex()
	genesis := idx.AddGenesis(wire.BlockHeader{})
	chain := buildChain(t, idx, genesis, 2)

	if idx.Tip().Hash != chain[2].Hash {
		t.Errorf("Tip = %s, want %s", idx.Tip().Hash, chain[2].Hash)
	}
	if idx.Prev(chain[1]).Hash != genesis.Hash {
		t.Errorf("Prev(chain[1]) = %s, want genesis", idx.Prev(chain[1]).Hash)
	}
	if idx.Next(genesis).Hash != chain[1].Hash {
		t.Errorf("Next(genesis) = %s, want chain[1]", idx.Next(genesis).Hash)
	}
	if idx.Prev(genesis) != nil {
		t.Errorf("Prev(genesis) should be nil")
	}
	if idx.Next(chain[2]) != nil {
		t.Errorf("Next(tip) should be nil")
	}
}

func TestIndexAncestorWalksToHeight(t *testing.T) {
	idx := NewIndex()
	genesis := idx.AddGenesis(wire.BlockHeader{})
	chain := buildChain(t, idx, genesis, 5)

	got := idx.Ancestor(chain[5], 2)
	if got == nil || got.Hash != chain[2].Hash {
		t.Errorf("Ancestor(tip, 2) = %v, want chain[2]", got)
	}
}

func TestIndexFindForkCommonAncestor(t *testing.T) {
	idx := NewIndex()
	genesis := idx.AddGenesis(wire.BlockHeader{})
	common := buildChain(t, idx, genesis, 2)

	// Branch A continues from the common tip.
	branchA := buildChain(t, idx, common[2], 2)

	// Branch B forks directly off common[2] too, with a header that
	// produces a distinct hash (different nonce).
	h := wire.BlockHeader{PrevBlock: common[2].Hash, Height: common[2].Height + 1, Nonce: 999}
	bB, err := idx.Add(h, ProofOfQPoS, 77, big.NewInt(1))
	if err != nil {
		t.Fatalf("Add branch B: %v", err)
	}

	fork := idx.FindFork(branchA[2], bB)
	if fork == nil || fork.Hash != common[2].Hash {
		t.Errorf("FindFork = %v, want common[2] = %s", fork, common[2].Hash)
	}
}

func TestIndexIsOnMainChain(t *testing.T) {
	idx := NewIndex()
	genesis := idx.AddGenesis(wire.BlockHeader{})
	chain := buildChain(t, idx, genesis, 2)

	if !idx.IsOnMainChain(genesis) {
		t.Errorf("genesis should be on the main chain")
	}
	if !idx.IsOnMainChain(chain[2]) {
		t.Errorf("the tip should be on the main chain")
	}

	// A side block added but never linked in via SetNext/SetTip is not
	// part of the main chain.
	h := wire.BlockHeader{PrevBlock: genesis.Hash, Height: 1, Nonce: 999}
	side, err := idx.Add(h, ProofOfQPoS, 1, big.NewInt(1))
	if err != nil {
		t.Fatalf("Add side block: %v", err)
	}
	if idx.IsOnMainChain(side) {
		t.Errorf("an unlinked side block should not be reported on the main chain")
	}
}
