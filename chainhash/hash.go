// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chainhash provides the fixed-width hash and integer types used as
// block, transaction and staker identities throughout the core.
package chainhash

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/ripemd160"
	"golang.org/x/crypto/sha3"
)

// HashSize is the number of bytes in a double-SHA-256 identity hash.
const HashSize = 32

// MaxHashStringSize is the maximum length of a Hash string.
const MaxHashStringSize = HashSize * 2

// ErrHashStrSize describes an error raised when a hex hash string is too
// long.
var ErrHashStrSize = fmt.Errorf("max hash string length is %v bytes", MaxHashStringSize)

// Hash is a 32-byte double-SHA-256 identity hash, stored and displayed in
// the same reversed-byte-order convention the teacher's daghash/chainhash
// types use.
type Hash [HashSize]byte

// ZeroHash is the Hash value of all zero bytes, used for the null outpoint
// and the genesis block's previous-hash field.
var ZeroHash Hash

// String returns the Hash as a hex string, with the bytes reversed so the
// string matches the display convention used by block explorers.
func (h Hash) String() string {
	for i := 0; i < HashSize/2; i++ {
		h[i], h[HashSize-1-i] = h[HashSize-1-i], h[i]
	}
	return hex.EncodeToString(h[:])
}

// CloneBytes returns a copy of the bytes backing the hash.
func (h *Hash) CloneBytes() []byte {
	newHash := make([]byte, HashSize)
	copy(newHash, h[:])
	return newHash
}

// SetBytes sets the bytes backing the hash to the supplied slice.
func (h *Hash) SetBytes(newHash []byte) error {
	if len(newHash) != HashSize {
		return fmt.Errorf("invalid hash length of %v, want %v", len(newHash), HashSize)
	}
	copy(h[:], newHash)
	return nil
}

// IsEqual returns whether h equals target. Two nil pointers are equal; a
// nil and a non-nil pointer are not, even when the non-nil one holds the
// zero hash.
func (h *Hash) IsEqual(target *Hash) bool {
	if h == nil && target == nil {
		return true
	}
	if h == nil || target == nil {
		return false
	}
	return *h == *target
}

// NewHash returns a new Hash from a byte slice.
func NewHash(newHash []byte) (*Hash, error) {
	var sh Hash
	if err := sh.SetBytes(newHash); err != nil {
		return nil, err
	}
	return &sh, nil
}

// NewHashFromStr creates a Hash from a reversed-byte-order hex string.
func NewHashFromStr(hash string) (*Hash, error) {
	ret := new(Hash)
	if err := Decode(ret, hash); err != nil {
		return nil, err
	}
	return ret, nil
}

// Decode decodes the reversed-byte-order hex string encoding of a Hash into
// dst.
func Decode(dst *Hash, src string) error {
	if len(src) > MaxHashStringSize {
		return ErrHashStrSize
	}

	var srcBytes []byte
	if len(src)%2 == 0 {
		srcBytes = []byte(src)
	} else {
		srcBytes = make([]byte, 1+len(src))
		srcBytes[0] = '0'
		copy(srcBytes[1:], src)
	}

	var reversedHash Hash
	_, err := hex.Decode(reversedHash[HashSize-hex.DecodedLen(len(srcBytes)):], srcBytes)
	if err != nil {
		return err
	}

	for i, b := range reversedHash[:HashSize/2] {
		dst[i], dst[HashSize-1-i] = reversedHash[HashSize-1-i], b
	}
	return nil
}

// HashB calculates SHA-256(b) and returns the resulting bytes.
func HashB(b []byte) []byte {
	sum := sha256.Sum256(b)
	return sum[:]
}

// HashH calculates SHA-256(b) and returns the resulting bytes as a Hash.
func HashH(b []byte) Hash {
	return Hash(sha256.Sum256(b))
}

// DoubleHashB calculates SHA-256(SHA-256(b)), the block/transaction identity
// hash used throughout the core.
func DoubleHashB(b []byte) []byte {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return second[:]
}

// DoubleHashH calculates SHA-256(SHA-256(b)) and returns it as a Hash.
func DoubleHashH(b []byte) Hash {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return Hash(second)
}

// HashSize160 is the number of bytes in a RIPEMD-160∘SHA-256 (Hash160)
// digest, used as pubkey/script identity for addresses.
const HashSize160 = 20

// Hash160 is a 20-byte RIPEMD-160(SHA-256(b)) digest.
type Hash160 [HashSize160]byte

// String returns the Hash160 as a plain (non-reversed) hex string.
func (h Hash160) String() string {
	return hex.EncodeToString(h[:])
}

// CalcHash160 computes RIPEMD-160(SHA-256(b)), the standard pay-to-pubkey-hash
// digest.
func CalcHash160(b []byte) Hash160 {
	sha := sha256.Sum256(b)
	ripe := ripemd160.New()
	ripe.Write(sha[:])
	var out Hash160
	copy(out[:], ripe.Sum(nil))
	return out
}

// Sha1 computes the SHA-1 digest of b, retained for legacy pre-qPoS
// compatibility paths only; never used by qPoS-era consensus rules.
func Sha1(b []byte) [sha1.Size]byte {
	return sha1.Sum(b)
}

// Sha3_256 computes the SHA3-256 digest of b, used by the Tor v3 / I2P
// address checksum.
func Sha3_256(b []byte) [32]byte {
	return sha3.Sum256(b)
}
