package node

import (
	"time"

	"github.com/junaeth-project/qposd/peer"
	"github.com/junaeth-project/qposd/wire"
)

// messageListeners returns the peer.MessageListeners every Peer this node
// constructs (inbound or outbound) shares, routing each wire message to
// the chain, mempool, or address manager it concerns.
func (n *Node) messageListeners() peer.MessageListeners {
	return peer.MessageListeners{
		OnVersion: n.onVersion,
		OnAddr:    n.onAddr,
		OnInv:     n.onInv,
		OnGetData: n.onGetData,
		OnTx:      n.onTx,
		OnBlock:   n.onBlock,
	}
}

// onVersion records the peer's self-reported address with the address
// manager once the handshake completes, the same moment the teacher's
// protocol flow first learns a peer's advertised listening address.
func (n *Node) onVersion(p *peer.Peer, msg *wire.MsgVersion) {
	src := asNetAddr(p.Addr())
	n.addrManager.AddAddress(&msg.AddrMe, src)
}

// onAddr folds every address a peer relays into the address manager.
func (n *Node) onAddr(p *peer.Peer, msg *wire.MsgAddr) {
	src := asNetAddr(p.Addr())
	for _, na := range msg.AddrList {
		n.addrManager.AddAddress(na, src)
	}
}

// onInv requests the body of any announced item this node doesn't
// already have, the inv/getdata exchange spec.md §4.9 describes.
func (n *Node) onInv(p *peer.Peer, msg *wire.MsgInv) {
	getData := &wire.MsgGetData{}
	for _, iv := range msg.InvList {
		switch iv.Type {
		case wire.InvTypeTx:
			if n.txPool.Has(iv.Hash) || p.IsDuplicateAsk(iv.Hash) {
				continue
			}
		case wire.InvTypeBlock:
			if _, known := n.chain.Index.Lookup(iv.Hash); known {
				continue
			}
		default:
			continue
		}
		if err := getData.AddInvVect(iv); err != nil {
			break
		}
	}
	if len(getData.InvList) > 0 {
		p.QueueMessage(getData)
	}
}

// onGetData serves whatever blocks and transactions the requester asked
// for out of the disk store and the mempool.
func (n *Node) onGetData(p *peer.Peer, msg *wire.MsgGetData) {
	for _, iv := range msg.InvList {
		switch iv.Type {
		case wire.InvTypeTx:
			if tx, ok := n.txPool.Get(iv.Hash); ok {
				p.QueueMessage(&wire.MsgTx{Tx: tx})
				continue
			}
		case wire.InvTypeBlock:
			if block, ok, err := n.db.GetBlockByHash(iv.Hash); err == nil && ok {
				p.QueueMessage(&wire.MsgBlock{Header: block.Header, Transactions: block.Transactions})
				continue
			}
		}
		notFound := wire.NewMsgNotFound()
		notFound.AddInvVect(iv)
		p.QueueMessage(notFound)
	}
}

// onTx pools an incoming transaction, relaying it onward and retrying any
// orphans it unblocks. Any transaction MaybeAccept rejects, whatever the
// reason, is parked in the orphan pool; MaybeAccept does not look up a
// transaction's inputs, so a missing input is not told apart from other
// rejections.
func (n *Node) onTx(p *peer.Peer, msg *wire.MsgTx) {
	tx := msg.Tx
	if err := n.txPool.MaybeAccept(tx); err != nil {
		log.Debugf("rejected tx from %s: %v", p.Addr(), err)
		n.orphanTxs.Add(tx)
		return
	}
	n.relay(&wire.MsgInv{InvList: []*wire.InvVect{wire.NewInvVect(wire.InvTypeTx, tx.TxHash())}}, p)
	n.retryOrphanTxs(tx)
}

func (n *Node) retryOrphanTxs(tx *wire.Transaction) {
	hash := tx.TxHash()
	for i := range tx.TxOut {
		out := wire.OutPoint{Hash: hash, Index: uint32(i)}
		for _, orphan := range n.orphanTxs.OrphansSpending(out) {
			if err := n.txPool.MaybeAccept(orphan); err == nil {
				n.orphanTxs.Remove(orphan.TxHash())
				n.relay(&wire.MsgTx{Tx: orphan}, nil)
			}
		}
	}
}

// onBlock feeds an incoming block through the chain, persisting it,
// relaying it, and pulling in any orphan children it unblocks. An unknown
// predecessor parks the block in the orphan pool instead.
func (n *Node) onBlock(p *peer.Peer, msg *wire.MsgBlock, _ []byte) {
	block := &wire.Block{Header: msg.Header, Transactions: msg.Transactions}
	n.acceptBlock(block, p.Addr())
}

func (n *Node) acceptBlock(block *wire.Block, fromPeer string) {
	hash := block.BlockHash()
	isMainChain, isOrphan, err := n.chain.ProcessBlock(block, uint32(time.Now().Unix()))
	if err != nil {
		log.Debugf("rejected block %s from %s: %v", hash, fromPeer, err)
		return
	}
	if isOrphan {
		if shouldBan := n.orphanBlocks.Add(block, fromPeer); shouldBan {
			log.Warnf("peer %s exceeded the orphan block limit", fromPeer)
			n.peersMtx.Lock()
			p, ok := n.peers[fromPeer]
			n.peersMtx.Unlock()
			if ok {
				p.AddBanScore(peer.BanScoreDisconnect, "too many orphan blocks")
			}
		}
		return
	}
	if !isMainChain {
		return
	}

	if bi, ok := n.chain.Index.Lookup(hash); ok {
		if err := n.db.PutBlock(block, bi.Height); err != nil {
			log.Errorf("failed to persist block %s: %v", hash, err)
		}
		if bi.Height%n.params.BlocksPerSnapshot == 0 {
			if err := n.db.PutRegistrySnapshot(bi.Height, n.chain.Registry); err != nil {
				log.Errorf("failed to persist registry snapshot at %d: %v", bi.Height, err)
			}
		}
	}

	n.txPool.RemoveConflicts(block)
	n.relay(&wire.MsgInv{InvList: []*wire.InvVect{wire.NewInvVect(wire.InvTypeBlock, hash)}}, nil)

	for _, child := range n.orphanBlocks.Children(hash) {
		n.acceptBlock(child, fromPeer)
	}
}
