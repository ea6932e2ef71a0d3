package txdb

import (
	"testing"

	"github.com/junaeth-project/qposd/blockchain"
	"github.com/junaeth-project/qposd/chainhash"
	"github.com/junaeth-project/qposd/crypto"
	"github.com/junaeth-project/qposd/qpos"
	"github.com/junaeth-project/qposd/wire"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleBlockAt(height int32, nonce uint64) *wire.Block {
	tx := wire.NewTransaction()
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Hash: chainhash.ZeroHash, Index: 0xffffffff}})
	tx.AddTxOut(&wire.TxOut{Value: 1000, PkScript: []byte{0x6a}})
	block := &wire.Block{
		Header:       wire.BlockHeader{Height: height, Nonce: nonce},
		Transactions: []*wire.Transaction{tx},
	}
	block.Header.MerkleRoot = block.MerkleRoot()
	return block
}

func newBlockIndexStub(t *testing.T, block *wire.Block) *blockchain.BlockIndex {
	t.Helper()
	return &blockchain.BlockIndex{Hash: block.BlockHash(), Header: block.Header, Height: block.Header.Height}
}

func TestPutBlockThenGetBlockByHashRoundTrips(t *testing.T) {
	db := openTestDB(t)
	block := sampleBlockAt(0, 1)

	if err := db.PutBlock(block, 0); err != nil {
		t.Fatalf("PutBlock: %v", err)
	}

	got, ok, err := db.GetBlockByHash(block.BlockHash())
	if err != nil {
		t.Fatalf("GetBlockByHash: %v", err)
	}
	if !ok {
		t.Fatalf("GetBlockByHash did not find a block that was just stored")
	}
	if got.BlockHash() != block.BlockHash() {
		t.Errorf("round-tripped block hash = %s, want %s", got.BlockHash(), block.BlockHash())
	}
}

func TestGetBlockByHashMissingReturnsFalse(t *testing.T) {
	db := openTestDB(t)
	_, ok, err := db.GetBlockByHash(chainhash.Hash{0xaa})
	if err != nil {
		t.Fatalf("GetBlockByHash: %v", err)
	}
	if ok {
		t.Errorf("GetBlockByHash reported success for a hash never stored")
	}
}

func TestPutBlockIndexesHeightAndTip(t *testing.T) {
	db := openTestDB(t)
	b0 := sampleBlockAt(0, 1)
	b1 := sampleBlockAt(1, 2)

	if err := db.PutBlock(b0, 0); err != nil {
		t.Fatalf("PutBlock(0): %v", err)
	}
	if err := db.PutBlock(b1, 1); err != nil {
		t.Fatalf("PutBlock(1): %v", err)
	}

	hash, ok, err := db.HashAtHeight(1)
	if err != nil {
		t.Fatalf("HashAtHeight: %v", err)
	}
	if !ok || hash != b1.BlockHash() {
		t.Errorf("HashAtHeight(1) = (%s, %v), want (%s, true)", hash, ok, b1.BlockHash())
	}

	height, ok, err := db.TipHeight()
	if err != nil {
		t.Fatalf("TipHeight: %v", err)
	}
	if !ok || height != 1 {
		t.Errorf("TipHeight = (%d, %v), want (1, true)", height, ok)
	}
}

func TestTipHeightOnEmptyStoreReturnsFalse(t *testing.T) {
	db := openTestDB(t)
	if _, ok, err := db.TipHeight(); err != nil || ok {
		t.Errorf("TipHeight on an empty store = (_, %v, %v), want (_, false, nil)", ok, err)
	}
}

func TestBlockImplementsBlockSourceForReorgReplay(t *testing.T) {
	db := openTestDB(t)
	block := sampleBlockAt(5, 9)
	if err := db.PutBlock(block, 5); err != nil {
		t.Fatalf("PutBlock: %v", err)
	}

	idx := newBlockIndexStub(t, block)
	got, err := db.Block(idx)
	if err != nil {
		t.Fatalf("Block: %v", err)
	}
	if got.BlockHash() != block.BlockHash() {
		t.Errorf("Block returned hash %s, want %s", got.BlockHash(), block.BlockHash())
	}
}

func TestPutRegistrySnapshotThenLoadRestoresState(t *testing.T) {
	db := openTestDB(t)
	registry := qpos.NewRegistry(5)
	owner, _ := crypto.GenerateKey()
	staker := registry.Purchase(owner.PubKey(), 12345, chainhash.Hash{}, 0, chainhash.Hash{})

	if err := db.PutRegistrySnapshot(10, registry); err != nil {
		t.Fatalf("PutRegistrySnapshot: %v", err)
	}

	restored := qpos.NewRegistry(5)
	ok, err := db.LoadRegistrySnapshot(10, restored)
	if err != nil {
		t.Fatalf("LoadRegistrySnapshot: %v", err)
	}
	if !ok {
		t.Fatalf("LoadRegistrySnapshot did not find a snapshot that was just stored")
	}
	got, ok := restored.GetStaker(staker.ID)
	if !ok || got.PurchasePrice != 12345 {
		t.Errorf("restored staker = %+v, want PurchasePrice 12345", got)
	}
}

func TestLoadRegistrySnapshotMissingReturnsFalse(t *testing.T) {
	db := openTestDB(t)
	registry := qpos.NewRegistry(5)
	ok, err := db.LoadRegistrySnapshot(999, registry)
	if err != nil {
		t.Fatalf("LoadRegistrySnapshot: %v", err)
	}
	if ok {
		t.Errorf("LoadRegistrySnapshot reported success for a height never snapshotted")
	}
}

func TestLatestRegistrySnapshotHeightFindsNearestAtOrBelow(t *testing.T) {
	db := openTestDB(t)
	registry := qpos.NewRegistry(5)
	for _, h := range []int32{10, 20, 30} {
		if err := db.PutRegistrySnapshot(h, registry); err != nil {
			t.Fatalf("PutRegistrySnapshot(%d): %v", h, err)
		}
	}

	h, ok, err := db.LatestRegistrySnapshotHeight(25)
	if err != nil {
		t.Fatalf("LatestRegistrySnapshotHeight: %v", err)
	}
	if !ok || h != 20 {
		t.Errorf("LatestRegistrySnapshotHeight(25) = (%d, %v), want (20, true)", h, ok)
	}

	h, ok, err = db.LatestRegistrySnapshotHeight(5)
	if err != nil {
		t.Fatalf("LatestRegistrySnapshotHeight: %v", err)
	}
	if ok {
		t.Errorf("LatestRegistrySnapshotHeight(5) = (%d, true), want no snapshot at or below 5", h)
	}
}
