package blockchain

import (
	"math/big"

	"github.com/junaeth-project/qposd/wire"
)

// oneLsh256 is 2^256, the numerator of the work-from-target formula below.
var oneLsh256 = new(big.Int).Lsh(big.NewInt(1), 256)

// CompactToBig expands a block header's compact "bits" encoding into its
// full target, the classic Bitcoin-lineage nBits format the teacher's own
// checkProofOfWork path consumes before ForkQPOS retires proof-of-work.
func CompactToBig(bits uint32) *big.Int {
	mantissa := bits & 0x007fffff
	exponent := uint(bits >> 24)

	var bn *big.Int
	if exponent <= 3 {
		mantissa >>= 8 * (3 - exponent)
		bn = big.NewInt(int64(mantissa))
	} else {
		bn = big.NewInt(int64(mantissa))
		bn.Lsh(bn, 8*(exponent-3))
	}
	if bits&0x00800000 != 0 {
		bn = bn.Neg(bn)
	}
	return bn
}

// CalcWork returns the amount of "work" a block with the given bits
// represents: 2^256 divided by (target+1), so a lower target (harder
// difficulty) contributes proportionally more chain trust. qPoS blocks
// carry no PoW target and use FixedQPoSTrust instead (see BlockTrust).
func CalcWork(bits uint32) *big.Int {
	target := CompactToBig(bits)
	if target.Sign() <= 0 {
		return big.NewInt(0)
	}
	denominator := new(big.Int).Add(target, big.NewInt(1))
	return new(big.Int).Div(oneLsh256, denominator)
}

// FixedQPoSTrust is the chain-trust contribution of a single qPoS block:
// since slot production is deterministic rather than competitive, every
// qPoS block counts identically and the heaviest chain is simply the
// longest one, matching the classic proof-of-stake convention spec.md §9
// carries forward unchanged.
var FixedQPoSTrust = big.NewInt(1)

// BlockTrust returns header's chain-trust contribution for the given
// proof type.
func BlockTrust(header *wire.BlockHeader, proof ProofType) *big.Int {
	if proof == ProofOfQPoS {
		return new(big.Int).Set(FixedQPoSTrust)
	}
	return CalcWork(header.Bits)
}
