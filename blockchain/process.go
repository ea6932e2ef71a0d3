package blockchain

import (
	"github.com/junaeth-project/qposd/config"
	"github.com/junaeth-project/qposd/qpos"
	"github.com/junaeth-project/qposd/wire"
)

// Chain bundles the mutable consensus state ProcessBlock threads through:
// the block-index arena, the UTXO set, and the staker registry. A single
// Chain instance exists per running node.
type Chain struct {
	Index    *Index
	UTXO     *UTXOSet
	Registry *qpos.Registry
	Params   *config.Params

	// Blocks resolves block bodies that are not the one currently being
	// processed, needed only when a reorg must replay more than one
	// block on either branch. Set once by the node during startup; nil
	// is only valid for chains that will never see a reorg (e.g. tests
	// that only ever extend the tip).
	Blocks BlockSource
}

// NewChain returns an empty Chain for the given network parameters.
func NewChain(params *config.Params) *Chain {
	return &Chain{
		Index:    NewIndex(),
		UTXO:     NewUTXOSet(),
		Registry: qpos.NewRegistry(params.QPTargetSlotTime),
		Params:   params,
	}
}

// ProcessBlock is the single entry point new blocks (mined locally or
// received from a peer) pass through: it performs every context-free and
// context-dependent check, and if the block extends (or overtakes) the
// current best chain, connects it and updates the tip. Grounded on the
// teacher's blockdag/process.go:ProcessBlock, narrowed from its
// DAG/GHOSTDAG selected-parent bookkeeping to the single-predecessor,
// chain-trust-compared case spec.md's linear chain requires.
//
// Returns isMainChain=true if block became (or remained part of) the best
// chain, isOrphan=true if its predecessor is not yet known (the caller
// should hold it in the orphan pool and request the parent), or a
// *RuleError describing why it was rejected outright.
func (c *Chain) ProcessBlock(block *wire.Block, now uint32) (isMainChain, isOrphan bool, err error) {
	hash := block.BlockHash()
	if _, known := c.Index.Lookup(hash); known {
		return false, false, ruleErr(ErrDuplicateBlock, 0, "block %s is already known", hash)
	}

	if _, ok := c.Index.Lookup(block.Header.PrevBlock); !ok && block.Header.Height != 0 {
		return false, true, nil
	}

	fork := c.Params.Forks.GetFork(block.Header.Height)
	if err := CheckBlockSanity(block, fork); err != nil {
		return false, false, err
	}

	var proof ProofType
	switch {
	case fork >= config.ForkQPOS:
		proof = ProofOfQPoS
	default:
		proof = ProofOfWork
	}

	if block.Header.Height == 0 {
		bi := c.Index.AddGenesis(block.Header)
		fork := c.Params.Forks.GetFork(0)
		if err := ConnectBlock(c.Index, bi, block, c.UTXO, c.Registry, fork); err != nil {
			return false, false, err
		}
		return true, false, nil
	}

	if proof == ProofOfQPoS {
		if err := CheckQPoSSlot(&block.Header, c.Registry, now); err != nil {
			return false, false, err
		}
	}
	trust := BlockTrust(&block.Header, proof)
	bi, addErr := c.Index.Add(block.Header, proof, block.Header.StakerID, trust)
	if addErr != nil {
		return false, false, addErr
	}

	tip := c.Index.Tip()
	if tip == nil || bi.ChainTrust.Cmp(tip.ChainTrust) > 0 {
		return c.activate(bi, block)
	}
	return false, false, nil
}

// activate connects block (whose BlockIndex entry bi already exists) onto
// the active chain, reorganizing first if bi's predecessor is not the
// current tip.
func (c *Chain) activate(bi *BlockIndex, block *wire.Block) (bool, bool, error) {
	tip := c.Index.Tip()
	if tip != nil && bi.Header.PrevBlock != tip.Hash {
		if c.Blocks == nil {
			return false, false, ruleErr(ErrBadBlockHeight, 0, "block %s requires a reorg but no block source is configured", bi.Hash)
		}
		if err := c.Reorganize(bi, block, c.Blocks); err != nil {
			return false, false, err
		}
		return true, false, nil
	}

	fork := c.Params.Forks.GetFork(bi.Height)
	if err := ConnectBlock(c.Index, bi, block, c.UTXO, c.Registry, fork); err != nil {
		return false, false, err
	}
	c.Index.SetNext(tip, bi)
	c.Index.SetTip(bi)
	if bi.Height%c.Params.BlocksPerSnapshot == 0 {
		c.Registry.PruneSnapshots(bi.Height - c.Params.BlocksPerSnapshot)
	}
	return true, false, nil
}
