package wire

import (
	"bytes"
	"fmt"
	"io"

	"github.com/junaeth-project/qposd/chainhash"
	"github.com/junaeth-project/qposd/codec"
)

// MaxBlockSize is the absolute consensus ceiling on a serialized block,
// spec.md §3's MAX_BLOCK_SIZE.
const MaxBlockSize = 4_000_000

// MaxTxPerBlock bounds the vtx count a wire-level decode will accept before
// even attempting the more expensive consensus checks.
const MaxTxPerBlock = MaxBlockSize / 60

// BlockHeader is the fixed-size portion of a Block that is hashed to
// produce its identity and that a light client can verify without the
// transaction list.
//
// qPoS blocks populate StakerID and leave Bits/Nonce at zero (no PoW);
// pre-ForkQPOS replayed blocks populate Bits/Nonce and leave StakerID zero.
// Height and BlockSig are qPoS-specific fields absent from the classic
// Bitcoin-lineage header spec.md still requires (§3: "height" is part of
// every Block's key fields, and qPoS blocks carry a delegate-key
// signature rather than a coinbase to prove authorship).
type BlockHeader struct {
	Version    int32
	PrevBlock  chainhash.Hash
	MerkleRoot chainhash.Hash
	Timestamp  uint32
	Bits       uint32
	Height     int32
	StakerID   uint32
	Nonce      uint64
	BlockSig   []byte
}

func (h *BlockHeader) serialize(w io.Writer) error {
	if err := codec.WriteVarInt(w, uint64(uint32(h.Version))); err != nil {
		return err
	}
	if _, err := w.Write(h.PrevBlock[:]); err != nil {
		return err
	}
	if _, err := w.Write(h.MerkleRoot[:]); err != nil {
		return err
	}
	if err := codec.WriteVarInt(w, uint64(h.Timestamp)); err != nil {
		return err
	}
	if err := codec.WriteVarInt(w, uint64(h.Bits)); err != nil {
		return err
	}
	if err := codec.WriteVarInt(w, uint64(uint32(h.Height))); err != nil {
		return err
	}
	if err := codec.WriteVarInt(w, uint64(h.StakerID)); err != nil {
		return err
	}
	if err := codec.WriteVarInt(w, h.Nonce); err != nil {
		return err
	}
	return codec.WriteVarBytes(w, h.BlockSig)
}

func (h *BlockHeader) deserialize(r io.Reader) error {
	ver, err := codec.ReadVarInt(r)
	if err != nil {
		return err
	}
	h.Version = int32(uint32(ver))
	if _, err := io.ReadFull(r, h.PrevBlock[:]); err != nil {
		return err
	}
	if _, err := io.ReadFull(r, h.MerkleRoot[:]); err != nil {
		return err
	}
	ts, err := codec.ReadVarInt(r)
	if err != nil {
		return err
	}
	h.Timestamp = uint32(ts)
	bits, err := codec.ReadVarInt(r)
	if err != nil {
		return err
	}
	h.Bits = uint32(bits)
	height, err := codec.ReadVarInt(r)
	if err != nil {
		return err
	}
	h.Height = int32(uint32(height))
	stakerID, err := codec.ReadVarInt(r)
	if err != nil {
		return err
	}
	h.StakerID = uint32(stakerID)
	nonce, err := codec.ReadVarInt(r)
	if err != nil {
		return err
	}
	h.Nonce = nonce
	sig, err := codec.ReadVarBytes(r, 256, "blockSig")
	if err != nil {
		return err
	}
	h.BlockSig = sig
	return nil
}

// BlockHash returns the SHA-256d identity hash of the header.
func (h *BlockHeader) BlockHash() chainhash.Hash {
	var buf bytes.Buffer
	_ = h.serialize(&buf)
	return chainhash.DoubleHashH(buf.Bytes())
}

// Block is a full block: a header plus its transaction batch.
type Block struct {
	Header       BlockHeader
	Transactions []*Transaction
}

// BlockHash returns the header's identity hash.
func (b *Block) BlockHash() chainhash.Hash {
	return b.Header.BlockHash()
}

// Serialize encodes the full block.
func (b *Block) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	if err := b.Header.serialize(&buf); err != nil {
		return nil, err
	}
	if err := codec.WriteVarInt(&buf, uint64(len(b.Transactions))); err != nil {
		return nil, err
	}
	for _, tx := range b.Transactions {
		if err := tx.btcEncode(&buf); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// DeserializeBlock decodes a Block from b.
func DeserializeBlock(raw []byte) (*Block, error) {
	r := bytes.NewReader(raw)
	blk := &Block{}
	if err := blk.Header.deserialize(r); err != nil {
		return nil, err
	}
	n, err := codec.ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	if n > MaxTxPerBlock {
		return nil, fmt.Errorf("wire: block declares %d transactions, exceeds %d", n, MaxTxPerBlock)
	}
	blk.Transactions = make([]*Transaction, n)
	for i := range blk.Transactions {
		tx, err := readTransaction(r)
		if err != nil {
			return nil, err
		}
		blk.Transactions[i] = tx
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("wire: %d trailing bytes after block", r.Len())
	}
	return blk, nil
}

// SerializeSize returns the serialized byte length of the block.
func (b *Block) SerializeSize() int {
	raw, _ := b.Serialize()
	return len(raw)
}

// BuildMerkleTree returns the merkle root of txHashes using the classic
// Bitcoin-lineage duplicate-last-node-if-odd algorithm.
func BuildMerkleTree(txHashes []chainhash.Hash) chainhash.Hash {
	if len(txHashes) == 0 {
		return chainhash.ZeroHash
	}
	level := make([]chainhash.Hash, len(txHashes))
	copy(level, txHashes)
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([]chainhash.Hash, len(level)/2)
		for i := range next {
			var buf [64]byte
			copy(buf[:32], level[2*i][:])
			copy(buf[32:], level[2*i+1][:])
			next[i] = chainhash.DoubleHashH(buf[:])
		}
		level = next
	}
	return level[0]
}

// MerkleRoot returns the merkle root of the block's transaction list.
func (b *Block) MerkleRoot() chainhash.Hash {
	hashes := make([]chainhash.Hash, len(b.Transactions))
	for i, tx := range b.Transactions {
		hashes[i] = tx.TxHash()
	}
	return BuildMerkleTree(hashes)
}
