// Package txdb is the node's narrow disk-backed collaborator: it stores
// full block bodies keyed by hash, a height-to-hash index over the main
// chain, and periodic registry snapshots, so a restarted node can resume
// without replaying the chain from the network. It deliberately knows
// nothing about validation — that stays in blockchain and qpos — mirroring
// the teacher's database package split between the block store (ffldb)
// and the DAG/UTXO logic built on top of it.
package txdb

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"

	"github.com/junaeth-project/qposd/blockchain"
	"github.com/junaeth-project/qposd/chainhash"
	"github.com/junaeth-project/qposd/qpos"
	"github.com/junaeth-project/qposd/wire"
)

// Key prefixes partition the single LevelDB keyspace by record type, the
// same single-namespace-with-prefix convention the teacher's ffldb block
// store uses for its metadata buckets.
const (
	prefixBlock    = 'b' // prefixBlock + hash -> serialized wire.Block
	prefixHeight   = 'h' // prefixHeight + height(BE u32) -> hash
	prefixSnapshot = 'r' // prefixSnapshot + height(BE u32) -> registry snapshot
	prefixTip      = 't' // prefixTip -> height(BE u32) of the last indexed height
)

// DB is a thin LevelDB handle providing the block and registry-snapshot
// storage the node needs across restarts.
type DB struct {
	ldb *leveldb.DB
}

// Open opens (creating if necessary) the LevelDB store rooted at path.
func Open(path string) (*DB, error) {
	ldb, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "txdb: open %s", path)
	}
	return &DB{ldb: ldb}, nil
}

// Close releases the underlying LevelDB handle.
func (db *DB) Close() error {
	return db.ldb.Close()
}

func blockKey(hash chainhash.Hash) []byte {
	key := make([]byte, 1+chainhash.HashSize)
	key[0] = prefixBlock
	copy(key[1:], hash[:])
	return key
}

func heightKey(height int32) []byte {
	key := make([]byte, 5)
	key[0] = prefixHeight
	binary.BigEndian.PutUint32(key[1:], uint32(height))
	return key
}

func snapshotKey(height int32) []byte {
	key := make([]byte, 5)
	key[0] = prefixSnapshot
	binary.BigEndian.PutUint32(key[1:], uint32(height))
	return key
}

// PutBlock stores block's full serialized body and indexes its hash at
// height on the main chain, in a single atomic batch.
func (db *DB) PutBlock(block *wire.Block, height int32) error {
	raw, err := block.Serialize()
	if err != nil {
		return errors.Wrap(err, "txdb: serialize block")
	}
	hash := block.BlockHash()

	batch := new(leveldb.Batch)
	batch.Put(blockKey(hash), raw)
	batch.Put(heightKey(height), hash[:])
	batch.Put([]byte{prefixTip}, heightKey(height)[1:])
	return db.ldb.Write(batch, nil)
}

// GetBlockByHash returns the stored block for hash, or (nil, false) if it
// is not known to this store.
func (db *DB) GetBlockByHash(hash chainhash.Hash) (*wire.Block, bool, error) {
	raw, err := db.ldb.Get(blockKey(hash), nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	blk, err := wire.DeserializeBlock(raw)
	if err != nil {
		return nil, false, errors.Wrapf(err, "txdb: corrupt block record for %s", hash)
	}
	return blk, true, nil
}

// HashAtHeight returns the main-chain block hash stored at height.
func (db *DB) HashAtHeight(height int32) (chainhash.Hash, bool, error) {
	raw, err := db.ldb.Get(heightKey(height), nil)
	if err == leveldb.ErrNotFound {
		return chainhash.Hash{}, false, nil
	}
	if err != nil {
		return chainhash.Hash{}, false, err
	}
	var hash chainhash.Hash
	copy(hash[:], raw)
	return hash, true, nil
}

// TipHeight returns the highest height PutBlock has indexed, or (0, false)
// if the store is empty.
func (db *DB) TipHeight() (int32, bool, error) {
	raw, err := db.ldb.Get([]byte{prefixTip}, nil)
	if err == leveldb.ErrNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return int32(binary.BigEndian.Uint32(raw)), true, nil
}

// Block implements blockchain.BlockSource, resolving a BlockIndex entry to
// its full body for reorg replay.
func (db *DB) Block(bi *blockchain.BlockIndex) (*wire.Block, error) {
	blk, ok, err := db.GetBlockByHash(bi.Hash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("txdb: no stored block for %s", bi.Hash)
	}
	return blk, nil
}

var _ blockchain.BlockSource = (*DB)(nil)

// PutRegistrySnapshot persists registry's current state under height, the
// disk-backed counterpart to Registry.Snapshot's in-memory retention. The
// node's startup path does not read these snapshots back; it replays every
// stored block.
func (db *DB) PutRegistrySnapshot(height int32, registry *qpos.Registry) error {
	raw, err := registry.MarshalBinary()
	if err != nil {
		return errors.Wrapf(err, "txdb: marshal registry snapshot at height %d", height)
	}
	return db.ldb.Put(snapshotKey(height), raw, nil)
}

// LoadRegistrySnapshot restores the registry snapshot stored at height
// into registry, replacing its current state. Returns false if no
// snapshot was stored at that exact height.
func (db *DB) LoadRegistrySnapshot(height int32, registry *qpos.Registry) (bool, error) {
	raw, err := db.ldb.Get(snapshotKey(height), nil)
	if err == leveldb.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := registry.UnmarshalBinary(raw); err != nil {
		return false, errors.Wrapf(err, "txdb: corrupt registry snapshot at height %d", height)
	}
	return true, nil
}

// LatestRegistrySnapshotHeight returns the height of the nearest stored
// registry snapshot at or below height, scanning the stored snapshots in
// ascending order. Nothing in the node's startup path calls it.
func (db *DB) LatestRegistrySnapshotHeight(height int32) (int32, bool, error) {
	iter := db.ldb.NewIterator(nil, nil)
	defer iter.Release()

	best := int32(-1)
	for iter.Seek([]byte{prefixSnapshot}); iter.Valid(); iter.Next() {
		key := iter.Key()
		if len(key) != 5 || key[0] != prefixSnapshot {
			break
		}
		h := int32(binary.BigEndian.Uint32(key[1:]))
		if h > height {
			break
		}
		best = h
	}
	if err := iter.Error(); err != nil {
		return 0, false, err
	}
	if best < 0 {
		return 0, false, nil
	}
	return best, true, nil
}
