// Package crypto collects the hash and signature primitives the consensus
// core depends on: SHA-256, SHA-256d, SHA-1, SHA3-256, RIPEMD-160, Hash160,
// and secp256k1 ECDSA (see ecdsa.go).
package crypto

import (
	"crypto/sha1"
	"crypto/sha256"

	"github.com/junaeth-project/qposd/chainhash"
)

// Sha256 returns the single SHA-256 digest of b.
func Sha256(b []byte) [32]byte {
	return sha256.Sum256(b)
}

// Sha256d returns SHA-256(SHA-256(b)), the double hash used for block and
// transaction identity.
func Sha256d(b []byte) [32]byte {
	first := sha256.Sum256(b)
	return sha256.Sum256(first[:])
}

// Sha1Sum returns the SHA-1 digest of b, kept only for validating replayed
// pre-qPoS chains that used SHA-1 in legacy checkpoint hashing.
func Sha1Sum(b []byte) [sha1.Size]byte {
	return sha1.Sum(b)
}

// Sha3_256 returns the SHA3-256 digest of b, used by the Tor v3 / I2P
// address checksum.
func Sha3_256(b []byte) [32]byte {
	return chainhash.Sha3_256(b)
}

// Hash160 returns RIPEMD-160(SHA-256(b)), the standard pay-to-pubkey-hash
// digest.
func Hash160(b []byte) chainhash.Hash160 {
	return chainhash.CalcHash160(b)
}
