package mempool

import (
	"sync"
	"time"

	"github.com/junaeth-project/qposd/chainhash"
	"github.com/junaeth-project/qposd/wire"
)

// MaxOrphanTxs bounds the orphan transaction pool; the oldest entry is
// evicted to make room once it fills, matching the teacher's
// mempool/policy.go eviction behavior.
const MaxOrphanTxs = 1000

// orphanTx is a pooled transaction whose inputs are not (yet) all known,
// tagged with when it arrived so the oldest can be evicted first.
type orphanTx struct {
	tx       *wire.Transaction
	arrived  time.Time
}

// OrphanTxPool holds transactions received before the outputs they spend
// are known, most commonly because the spending transaction raced ahead
// of its parent over the network.
type OrphanTxPool struct {
	mtx sync.Mutex

	byHash    map[chainhash.Hash]*orphanTx
	byOutpoint map[wire.OutPoint][]chainhash.Hash // unknown outpoint -> orphans waiting on it
	order     []chainhash.Hash                    // arrival order, oldest first
}

// NewOrphanTxPool returns an empty orphan transaction pool.
func NewOrphanTxPool() *OrphanTxPool {
	return &OrphanTxPool{
		byHash:     make(map[chainhash.Hash]*orphanTx),
		byOutpoint: make(map[wire.OutPoint][]chainhash.Hash),
	}
}

// Add pools tx as an orphan, evicting the oldest orphan first if the pool
// is full.
func (o *OrphanTxPool) Add(tx *wire.Transaction) {
	o.mtx.Lock()
	defer o.mtx.Unlock()

	hash := tx.TxHash()
	if _, dup := o.byHash[hash]; dup {
		return
	}
	if len(o.byHash) >= MaxOrphanTxs {
		o.removeLocked(o.order[0])
	}

	o.byHash[hash] = &orphanTx{tx: tx, arrived: time.Now()}
	o.order = append(o.order, hash)
	for _, in := range tx.TxIn {
		o.byOutpoint[in.PreviousOutPoint] = append(o.byOutpoint[in.PreviousOutPoint], hash)
	}
}

func (o *OrphanTxPool) removeLocked(hash chainhash.Hash) {
	ot, ok := o.byHash[hash]
	if !ok {
		return
	}
	delete(o.byHash, hash)
	for i, h := range o.order {
		if h == hash {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
	for _, in := range ot.tx.TxIn {
		waiting := o.byOutpoint[in.PreviousOutPoint]
		for i, h := range waiting {
			if h == hash {
				waiting = append(waiting[:i], waiting[i+1:]...)
				break
			}
		}
		if len(waiting) == 0 {
			delete(o.byOutpoint, in.PreviousOutPoint)
		} else {
			o.byOutpoint[in.PreviousOutPoint] = waiting
		}
	}
}

// Remove evicts hash from the orphan pool.
func (o *OrphanTxPool) Remove(hash chainhash.Hash) {
	o.mtx.Lock()
	defer o.mtx.Unlock()
	o.removeLocked(hash)
}

// Count returns the number of pooled orphan transactions.
func (o *OrphanTxPool) Count() int {
	o.mtx.Lock()
	defer o.mtx.Unlock()
	return len(o.byHash)
}

// OrphansSpending returns every orphan transaction currently waiting on
// outpoint, used when a new transaction or block output makes that
// outpoint known so the waiting orphans can be retried.
func (o *OrphanTxPool) OrphansSpending(outpoint wire.OutPoint) []*wire.Transaction {
	o.mtx.Lock()
	defer o.mtx.Unlock()
	hashes := o.byOutpoint[outpoint]
	out := make([]*wire.Transaction, 0, len(hashes))
	for _, h := range hashes {
		if ot, ok := o.byHash[h]; ok {
			out = append(out, ot.tx)
		}
	}
	return out
}

// MaxOrphanBlocksPerPeer is the threshold spec.md §4.9's block receipt
// path bans a peer at: more than twice this many orphan blocks
// outstanding from one peer.
const MaxOrphanBlocksPerPeer = 750

// OrphanBlockPool holds blocks received before their predecessor is
// known, keyed by both their own hash and the (unknown) predecessor hash
// they are waiting on, so a newly connected predecessor can pull its
// children back out for recursive processing (spec.md §8 scenario 2).
type OrphanBlockPool struct {
	mtx sync.Mutex

	byHash     map[chainhash.Hash]*wire.Block
	byPrevHash map[chainhash.Hash][]chainhash.Hash
	perPeer    map[string]int
}

// NewOrphanBlockPool returns an empty orphan block pool.
func NewOrphanBlockPool() *OrphanBlockPool {
	return &OrphanBlockPool{
		byHash:     make(map[chainhash.Hash]*wire.Block),
		byPrevHash: make(map[chainhash.Hash][]chainhash.Hash),
		perPeer:    make(map[string]int),
	}
}

// Add pools block as an orphan received from peerID, reporting whether
// peerID has now exceeded 2*MaxOrphanBlocksPerPeer and should be banned.
func (o *OrphanBlockPool) Add(block *wire.Block, peerID string) (shouldBan bool) {
	o.mtx.Lock()
	defer o.mtx.Unlock()

	hash := block.BlockHash()
	if _, dup := o.byHash[hash]; dup {
		return false
	}
	o.byHash[hash] = block
	prev := block.Header.PrevBlock
	o.byPrevHash[prev] = append(o.byPrevHash[prev], hash)
	o.perPeer[peerID]++
	return o.perPeer[peerID] > 2*MaxOrphanBlocksPerPeer
}

// Children returns every orphan block waiting on prevHash, removing them
// from the pool — the caller is expected to process each recursively.
func (o *OrphanBlockPool) Children(prevHash chainhash.Hash) []*wire.Block {
	o.mtx.Lock()
	defer o.mtx.Unlock()

	hashes := o.byPrevHash[prevHash]
	delete(o.byPrevHash, prevHash)
	out := make([]*wire.Block, 0, len(hashes))
	for _, h := range hashes {
		if b, ok := o.byHash[h]; ok {
			out = append(out, b)
			delete(o.byHash, h)
		}
	}
	return out
}

// Count returns the number of pooled orphan blocks.
func (o *OrphanBlockPool) Count() int {
	o.mtx.Lock()
	defer o.mtx.Unlock()
	return len(o.byHash)
}
