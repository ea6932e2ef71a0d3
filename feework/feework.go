package feework

import (
	"encoding/binary"
	"math/big"

	"github.com/junaeth-project/qposd/chainhash"
	"github.com/junaeth-project/qposd/codec"
)

// Argon2d tuning constants, fixed by consensus: every validator must run
// the identical cost parameters or a feework hash recomputed locally will
// disagree with the one the transaction author claimed.
const (
	TCost       = 1
	Parallelism = 1
	WorkLen     = 8
	HashLen     = 8
)

// MaxMCost bounds the memory cost (in KiB) a feework transaction may
// declare; above this a transaction is rejected outright rather than
// forcing every validating node to allocate unbounded memory per tx.
const MaxMCost = 1 << 20

// Status is the result of checking a Feework record.
type Status int

const (
	StatusUnchecked Status = iota - 1
	StatusOK
	StatusNone
	StatusEmpty
	StatusCoinbase
	StatusCoinstake
	StatusInsoluble
	StatusMisplaced
	StatusBadVersion
	StatusMissing
	StatusBlockUnknown
	StatusBlockTooDeep
	StatusLowMCost
	StatusHighMCost
	StatusNoHeight
	StatusNoLimit
	StatusNoMCost
	StatusNoHash
	StatusNoWork
	StatusInsufficient
)

func (s Status) String() string {
	switch s {
	case StatusUnchecked:
		return "unchecked"
	case StatusOK:
		return "ok"
	case StatusNone:
		return "tx_has_no_feework"
	case StatusEmpty:
		return "tx_has_empty_vout"
	case StatusCoinbase:
		return "tx_is_coinbase"
	case StatusCoinstake:
		return "tx_is_coinstake"
	case StatusInsoluble:
		return "tx_has_insoluble_script"
	case StatusMisplaced:
		return "tx_has_misplaced_feework"
	case StatusBadVersion:
		return "tx_has_bad_version"
	case StatusMissing:
		return "tx_missing_feework"
	case StatusBlockUnknown:
		return "unknown_block"
	case StatusBlockTooDeep:
		return "block_too_deep"
	case StatusLowMCost:
		return "low_memory_cost"
	case StatusHighMCost:
		return "high_memory_cost"
	case StatusNoHeight:
		return "no_height"
	case StatusNoLimit:
		return "no_limit"
	case StatusNoMCost:
		return "no_memory_cost"
	case StatusNoHash:
		return "no_hash"
	case StatusNoWork:
		return "no_work"
	case StatusInsufficient:
		return "insufficient_work"
	default:
		return "unknown"
	}
}

// Feework is the decoded proof-of-work record a qPoS-tagged TX_FEEWORK
// output carries.
type Feework struct {
	Height    int32
	BlockHash *chainhash.Hash
	Bytes     uint64
	MCost     uint32
	Limit     uint64
	Work      uint64
	Hash      uint64
	Status    Status
}

// New returns a zeroed, unchecked Feework record.
func New() *Feework {
	return &Feework{Height: -1, Status: StatusUnchecked}
}

func (f *Feework) IsUnchecked() bool    { return f.Status == StatusUnchecked }
func (f *Feework) IsChecked() bool      { return f.Status != StatusUnchecked }
func (f *Feework) IsOK() bool           { return f.Status == StatusOK }
func (f *Feework) HasNone() bool        { return f.Status == StatusNone }
func (f *Feework) IsMissing() bool      { return f.Status == StatusMissing }
func (f *Feework) IsValid() bool        { return f.Status == StatusOK || f.Status == StatusNone }
func (f *Feework) IsBadVersion() bool   { return f.Status == StatusBadVersion }
func (f *Feework) IsInsufficient() bool { return f.Status == StatusInsufficient }

// ExtractFeework decodes the fixed height(4)/mcost(4)/work(8) prefix a
// TX_FEEWORK push carries. A short payload leaves fields at their zero
// value, mirroring the original's fail-soft IncrementN guards.
func (f *Feework) ExtractFeework(payload []byte) {
	if len(payload) < 4 {
		return
	}
	f.Height = int32(binary.BigEndian.Uint32(payload[0:4]))
	if len(payload) < 8 {
		return
	}
	f.MCost = binary.BigEndian.Uint32(payload[4:8])
	if len(payload) < 16 {
		return
	}
	f.Work = binary.BigEndian.Uint64(payload[8:16])
}

// ComputeHash runs Argon2d over data (the serialized transaction, with the
// feework output's work field zeroed) using work as the salt/nonce, and
// records the low 8 bytes of the digest as f.Hash. If MCost exceeds
// MaxMCost the transaction is charged the maximum possible limit instead
// of running the hash, the same DoS guard the original applies to
// attacker-chosen memory costs.
func (f *Feework) ComputeHash(data []byte, buf *Buffer, absoluteLimit uint64) error {
	if f.MCost > MaxMCost {
		f.Hash = absoluteLimit
		return nil
	}
	var workBuf [WorkLen]byte
	binary.BigEndian.PutUint64(workBuf[:], f.Work)

	digest, err := buf.Hash(data, workBuf[:], f.MCost)
	if err != nil {
		return err
	}
	f.Hash = binary.BigEndian.Uint64(digest[:HashLen])
	f.Bytes = uint64(len(data))
	return nil
}

// Check validates the Feework record against the minimum memory cost the
// caller's context requires (a network-wide floor, typically rising with
// mempool pressure), leaving f.Status at its first non-OK verdict and
// reporting whether the record is acceptable.
func (f *Feework) Check(minMCost uint32) bool {
	if f.Status != StatusUnchecked {
		return f.Status == StatusOK
	}
	switch {
	case f.MCost < minMCost:
		f.Status = StatusLowMCost
	case f.MCost > MaxMCost:
		f.Status = StatusHighMCost
	case f.Height < 0:
		f.Status = StatusNoHeight
	case f.Work == 0:
		f.Status = StatusNoWork
	case f.Hash == 0:
		f.Status = StatusNoHash
	case f.Limit == 0:
		f.Status = StatusNoLimit
	case f.MCost == 0:
		f.Status = StatusNoMCost
	case f.Limit < f.Hash:
		f.Status = StatusInsufficient
	default:
		f.Status = StatusOK
	}
	return f.Status == StatusOK
}

// GetDiff converts a valid Feework record into its equivalent money fee,
// scaled by how far under the limit the computed hash landed and how much
// memory the sender spent. Uses big.Int for the intermediate product the
// way the original reaches for a 128-bit integer, since limit*minFee can
// exceed 64 bits before the division brings it back down.
func GetDiff(f *Feework, feeworkLimit, mcostMin, minTxFee uint64) int64 {
	if f.MCost == 0 || f.Limit == 0 || f.Work == 0 || f.Hash == 0 {
		return 0
	}
	limit := new(big.Int).SetUint64(feeworkLimit)
	minFee := new(big.Int).SetUint64(minTxFee)
	hash := new(big.Int).SetUint64(f.Hash)

	diff := new(big.Int).Mul(limit, minFee)
	diff.Div(diff, hash)
	diff.Mul(diff, big.NewInt(int64(f.MCost)))
	diff.Div(diff, new(big.Int).SetUint64(mcostMin))

	maxDiff := big.NewInt(int64(^uint64(0) >> 1))
	if diff.Cmp(maxDiff) > 0 {
		return int64(minTxFee)
	}
	return diff.Int64()
}

// Script re-encodes the feework record as the push payload a TX_FEEWORK
// output carries: height(4) ‖ mcost(4) ‖ work(8), big-endian.
func (f *Feework) Script() []byte {
	out := make([]byte, 0, 16)
	out = append(out, codec.BigNum32(uint32(f.Height)).Bytes()...)
	out = append(out, codec.BigNum32(f.MCost).Bytes()...)
	out = append(out, codec.BigNum64(f.Work).Bytes()...)
	return out
}
