package crypto

import (
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// PrivateKey wraps a secp256k1 private key.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// PublicKey wraps a secp256k1 public key.
type PublicKey struct {
	key *secp256k1.PublicKey
}

// GenerateKey creates a new random secp256k1 private key, the owner/manager/
// delegate/controller key material a staker purchase or set-key transaction
// carries.
func GenerateKey() (*PrivateKey, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key: key}, nil
}

// PrivKeyFromBytes parses a 32-byte scalar into a PrivateKey.
func PrivKeyFromBytes(b []byte) *PrivateKey {
	return &PrivateKey{key: secp256k1.PrivKeyFromBytes(b)}
}

// Serialize returns the raw 32-byte scalar.
func (p *PrivateKey) Serialize() []byte {
	return p.key.Serialize()
}

// PubKey returns the public key corresponding to p.
func (p *PrivateKey) PubKey() *PublicKey {
	return &PublicKey{key: p.key.PubKey()}
}

// Sign produces a DER-encoded ECDSA signature over hash.
func (p *PrivateKey) Sign(hash []byte) ([]byte, error) {
	sig := ecdsa.Sign(p.key, hash)
	return sig.Serialize(), nil
}

// SignCompact produces the 65-byte recoverable compact signature
// (recovery-id byte ‖ 32-byte r ‖ 32-byte s) used by block signatures, where
// a verifier must recover the delegate pubkey without it being attached.
func (p *PrivateKey) SignCompact(hash []byte) ([]byte, error) {
	return ecdsa.SignCompact(p.key, hash, true), nil
}

// ParsePubKey parses a compressed (33-byte) or uncompressed (65-byte)
// public key.
func ParsePubKey(b []byte) (*PublicKey, error) {
	key, err := secp256k1.ParsePubKey(b)
	if err != nil {
		return nil, err
	}
	return &PublicKey{key: key}, nil
}

// SerializeCompressed returns the 33-byte compressed encoding, the form
// every qPoS script template embeds.
func (p *PublicKey) SerializeCompressed() []byte {
	return p.key.SerializeCompressed()
}

// Equals reports whether two public keys are the same point.
func (p *PublicKey) Equals(other *PublicKey) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.key.IsEqual(other.key)
}

// Verify checks a DER-encoded ECDSA signature over hash against pubKey.
func Verify(pubKey *PublicKey, hash []byte, sig []byte) bool {
	parsed, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return false
	}
	return parsed.Verify(hash, pubKey.key)
}

// RecoverCompact recovers the public key and compression flag from a
// 65-byte compact signature over hash, used to authenticate a block
// signature against the scheduled staker's delegate key without shipping
// the pubkey on the wire.
func RecoverCompact(sig, hash []byte) (*PublicKey, bool, error) {
	pub, wasCompressed, err := ecdsa.RecoverCompact(sig, hash)
	if err != nil {
		return nil, false, err
	}
	return &PublicKey{key: pub}, wasCompressed, nil
}
