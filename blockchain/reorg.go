package blockchain

import (
	"github.com/junaeth-project/qposd/wire"
)

// BlockSource resolves a known block's full body by its BlockIndex entry,
// the narrow collaborator contract Reorganize needs to replay blocks that
// are not the one just received (txdb satisfies this in the running
// node; tests can supply an in-memory map).
type BlockSource interface {
	Block(bi *BlockIndex) (*wire.Block, error)
}

// Reorganize switches the active chain from its current tip onto the
// chain ending at newTip, whose header is carried by newBlock (the
// triggering block; every other block on the new branch is fetched
// through src). It disconnects down to the fork point, rolls the
// registry back to that height, then reconnects the new branch block by
// block, replaying the registry forward. If any reconnect step fails, the
// blocks that did reconnect are disconnected again and the original
// branch is restored, so the caller's chain state is never left without a
// valid, connected tip — matching the "ShouldRollback" design note
// spec.md §7 flags for this exact failure mode.
//
// Grounded on the teacher's blockdag reorganize flow of disconnect-then-
// reconnect around a fork point, adapted from its multi-tip selected-
// parent-chain bookkeeping to linear disconnect/reconnect lists.
func (c *Chain) Reorganize(newTip *BlockIndex, newBlock *wire.Block, src BlockSource) error {
	oldTip := c.Index.Tip()
	fork := c.Index.FindFork(oldTip, newTip)
	if fork == nil {
		return ruleErr(ErrBadBlockHeight, 20, "no common ancestor between current tip and new chain")
	}

	var disconnectList []*BlockIndex
	for b := oldTip; b != nil && b.Hash != fork.Hash; b = c.Index.Prev(b) {
		disconnectList = append(disconnectList, b)
	}

	var connectList []*BlockIndex
	for b := newTip; b != nil && b.Hash != fork.Hash; b = c.Index.Prev(b) {
		connectList = append(connectList, b)
	}
	for i, j := 0, len(connectList)-1; i < j; i, j = i+1, j-1 {
		connectList[i], connectList[j] = connectList[j], connectList[i]
	}

	blocks := make(map[*BlockIndex]*wire.Block, len(disconnectList)+len(connectList))
	spent := make(map[*BlockIndex][][]*UTXOEntry, len(disconnectList))

	// Disconnect the old branch down to the fork point, deepest block
	// first, recording each block's body and spent-output set so a failed
	// reconnect below can restore this branch exactly.
	for _, bi := range disconnectList {
		blk, err := src.Block(bi)
		if err != nil {
			return err
		}
		blocks[bi] = blk
		sp, err := collectSpent(c.UTXO, blk)
		if err != nil {
			return err
		}
		if err := DisconnectBlock(bi, blk, c.UTXO, c.Registry, sp); err != nil {
			return err
		}
		spent[bi] = sp
	}

	// Reconnect the new branch, shallowest block first.
	var reconnected []*BlockIndex
	for _, bi := range connectList {
		blk := newBlock
		if bi.Hash != newTip.Hash {
			var err error
			blk, err = src.Block(bi)
			if err != nil {
				c.restoreOldBranch(disconnectList, reconnected, blocks, spent)
				return err
			}
		}
		blocks[bi] = blk
		connectFork := c.Params.Forks.GetFork(bi.Height)
		if err := ConnectBlock(c.Index, bi, blk, c.UTXO, c.Registry, connectFork); err != nil {
			c.restoreOldBranch(disconnectList, reconnected, blocks, spent)
			return err
		}
		reconnected = append(reconnected, bi)
	}

	relinkChain(c.Index, fork, disconnectList, connectList, newTip)
	return nil
}

// restoreOldBranch undoes a partial reconnect (deepest reconnected block
// first) and replays the original branch forward from the fork point, so
// a failed Reorganize leaves the chain exactly as it found it.
func (c *Chain) restoreOldBranch(disconnectList, reconnected []*BlockIndex, blocks map[*BlockIndex]*wire.Block, spent map[*BlockIndex][][]*UTXOEntry) {
	for i := len(reconnected) - 1; i >= 0; i-- {
		bi := reconnected[i]
		blk := blocks[bi]
		sp, err := collectSpent(c.UTXO, blk)
		if err != nil {
			continue
		}
		_ = DisconnectBlock(bi, blk, c.UTXO, c.Registry, sp)
	}
	for i := len(disconnectList) - 1; i >= 0; i-- {
		bi := disconnectList[i]
		blk := blocks[bi]
		fork := c.Params.Forks.GetFork(bi.Height)
		_ = ConnectBlock(c.Index, bi, blk, c.UTXO, c.Registry, fork)
		_ = spent[bi]
	}
	oldTip := disconnectList[0]
	var fork *BlockIndex
	if len(disconnectList) > 0 {
		fork = c.Index.Prev(disconnectList[len(disconnectList)-1])
	}
	relinkChain(c.Index, fork, nil, reverseOf(disconnectList), oldTip)
}

// relinkChain rewires next-pointers along the old branch's teardown and
// the new branch's buildup, then moves the tip.
func relinkChain(idx *Index, fork *BlockIndex, disconnectList, connectList []*BlockIndex, tip *BlockIndex) {
	for i := len(disconnectList) - 1; i >= 0; i-- {
		var next *BlockIndex
		if i > 0 {
			next = disconnectList[i-1]
		}
		idx.SetNext(disconnectList[i], next)
	}
	prev := fork
	for _, bi := range connectList {
		idx.SetNext(prev, bi)
		prev = bi
	}
	idx.SetTip(tip)
}

func reverseOf(in []*BlockIndex) []*BlockIndex {
	out := make([]*BlockIndex, len(in))
	for i, bi := range in {
		out[len(in)-1-i] = bi
	}
	return out
}

// collectSpent recomputes, for each non-coinbase input in blk, the UTXO
// entry DisconnectBlock will need to restore — looked up before
// DisconnectBlock removes blk's own outputs, since an input may spend an
// output created earlier in the same block.
func collectSpent(utxo *UTXOSet, blk *wire.Block) ([][]*UTXOEntry, error) {
	spentTx := make([][]*UTXOEntry, len(blk.Transactions))
	for i, tx := range blk.Transactions {
		if i == 0 && tx.IsCoinBase() {
			continue
		}
		entries := make([]*UTXOEntry, len(tx.TxIn))
		for j, in := range tx.TxIn {
			if e, ok := utxo.Lookup(in.PreviousOutPoint); ok {
				entries[j] = e
			}
		}
		spentTx[i] = entries
	}
	return spentTx, nil
}
