// Package blockchain implements block acceptance, connection,
// disconnection and chain reorganization: CheckBlock, AcceptBlock,
// ConnectBlock, DisconnectBlock, Reorganize, and the BlockIndex arena that
// backs them.
//
// Grounded on the teacher's blockdag package (checkBlockSanity /
// checkConnectToPastUTXO pipeline shape, a file-backed index of known
// blocks) with its GHOSTDAG/blue-score parent-set selection rule replaced
// by the single-parent, chain-trust-ordered linear chain and qPoS
// slot/signature validation spec.md §4.4 and §9 describe: prev/next become
// stable-index fields in an arena (per spec.md §9's "Cyclic references in
// BlockIndex" design note) instead of pointer back-references, since index
// entries are never freed.
package blockchain

import (
	"math/big"

	"github.com/junaeth-project/qposd/chainhash"
	"github.com/junaeth-project/qposd/wire"
)

// ProofType identifies which consensus mechanism produced a block.
type ProofType int

const (
	ProofOfWork ProofType = iota
	ProofOfStake
	ProofOfQPoS
)

// noIndex marks an absent prev/next link in the arena.
const noIndex = -1

// BlockIndex is the in-memory spine entry for one known block (spec.md
// §3). prev/next are stable arena indices rather than pointers so the
// arena can be a plain growable slice: entries are appended on accept and
// never freed, and next is mutated in place during a reorg.
type BlockIndex struct {
	Hash   chainhash.Hash
	Header wire.BlockHeader

	prevIdx int32
	nextIdx int32

	Height      int32
	ChainTrust  *big.Int
	ProofType   ProofType
	StakerID    uint32
	MoneySupply int64
	Mint        int64

	// FileNum/Offset locate the block's serialized bytes on disk
	// (txdb's narrow contract); the Block itself is not retained here.
	FileNum uint32
	Offset  uint32
}

// Index is the process-wide arena of every known BlockIndex, addressed by
// hash and by stable position. It owns the main-chain linkage (walking
// nextIdx from genesis visits exactly the active best chain) and the
// chain-trust ordering used to pick a new tip.
type Index struct {
	byHash  map[chainhash.Hash]int32
	entries []*BlockIndex
	tip     int32
}

// NewIndex returns an empty arena.
func NewIndex() *Index {
	return &Index{byHash: make(map[chainhash.Hash]int32), tip: noIndex}
}

// Lookup returns the BlockIndex for hash, if known.
func (idx *Index) Lookup(hash chainhash.Hash) (*BlockIndex, bool) {
	i, ok := idx.byHash[hash]
	if !ok {
		return nil, false
	}
	return idx.entries[i], true
}

// Tip returns the current best-chain tip, or nil if the arena is empty.
func (idx *Index) Tip() *BlockIndex {
	if idx.tip == noIndex {
		return nil
	}
	return idx.entries[idx.tip]
}

// Prev returns bi's predecessor, or nil at genesis.
func (idx *Index) Prev(bi *BlockIndex) *BlockIndex {
	if bi.prevIdx == noIndex {
		return nil
	}
	return idx.entries[bi.prevIdx]
}

// Next returns bi's main-chain successor, or nil if bi is the tip or is
// not (currently) on the main chain.
func (idx *Index) Next(bi *BlockIndex) *BlockIndex {
	if bi.nextIdx == noIndex {
		return nil
	}
	return idx.entries[bi.nextIdx]
}

// IsOnMainChain reports whether bi is reachable by walking next-pointers
// from genesis, i.e. is part of the currently active best chain.
func (idx *Index) IsOnMainChain(bi *BlockIndex) bool {
	if bi.Height == 0 {
		return idx.tip != noIndex
	}
	return bi.nextIdx != noIndex || idx.tip == idx.posOf(bi)
}

func (idx *Index) posOf(bi *BlockIndex) int32 {
	return idx.byHash[bi.Hash]
}

// AddGenesis registers the genesis block, the only entry with no prev.
func (idx *Index) AddGenesis(header wire.BlockHeader) *BlockIndex {
	hash := header.BlockHash()
	bi := &BlockIndex{
		Hash:       hash,
		Header:     header,
		prevIdx:    noIndex,
		nextIdx:    noIndex,
		Height:     0,
		ChainTrust: big.NewInt(0),
		ProofType:  ProofOfQPoS,
	}
	pos := int32(len(idx.entries))
	idx.entries = append(idx.entries, bi)
	idx.byHash[hash] = pos
	idx.tip = pos
	return bi
}

// Add registers a new BlockIndex entry for header, whose prev must already
// be known. It does not mutate chain linkage (next pointers) or the tip;
// that happens only when the block is connected onto the active chain
// (see Chain.activate and relinkChain).
func (idx *Index) Add(header wire.BlockHeader, proof ProofType, stakerID uint32, trust *big.Int) (*BlockIndex, error) {
	prevPos, ok := idx.byHash[header.PrevBlock]
	if !ok {
		return nil, errUnknownPrev
	}
	prev := idx.entries[prevPos]
	bi := &BlockIndex{
		Hash:       header.BlockHash(),
		Header:     header,
		prevIdx:    prevPos,
		nextIdx:    noIndex,
		Height:     prev.Height + 1,
		ChainTrust: new(big.Int).Add(prev.ChainTrust, trust),
		ProofType:  proof,
		StakerID:   stakerID,
	}
	pos := int32(len(idx.entries))
	idx.entries = append(idx.entries, bi)
	idx.byHash[bi.Hash] = pos
	return bi, nil
}

// SetNext sets bi's main-chain successor link, called when reorg logic
// relinks the active chain.
func (idx *Index) SetNext(bi, next *BlockIndex) {
	if next == nil {
		bi.nextIdx = noIndex
		return
	}
	bi.nextIdx = idx.posOf(next)
}

// SetTip updates the arena's notion of the active chain tip.
func (idx *Index) SetTip(bi *BlockIndex) {
	idx.tip = idx.posOf(bi)
}

// Ancestor returns bi's ancestor at height h (h <= bi.Height), walking
// prev-links.
func (idx *Index) Ancestor(bi *BlockIndex, h int32) *BlockIndex {
	for bi != nil && bi.Height > h {
		bi = idx.Prev(bi)
	}
	return bi
}

// FindFork returns the highest common ancestor of a and b.
func (idx *Index) FindFork(a, b *BlockIndex) *BlockIndex {
	for a.Height > b.Height {
		a = idx.Prev(a)
	}
	for b.Height > a.Height {
		b = idx.Prev(b)
	}
	for a.Hash != b.Hash {
		a = idx.Prev(a)
		b = idx.Prev(b)
		if a == nil || b == nil {
			return nil
		}
	}
	return a
}
