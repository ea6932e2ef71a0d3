package crypto

import (
	"bytes"
	"testing"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	priv, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	pub := priv.PubKey()

	hash := Sha256d([]byte("a staker owner-key authenticated message"))
	sig, err := priv.Sign(hash[:])
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !Verify(pub, hash[:], sig) {
		t.Errorf("Verify: valid signature rejected")
	}

	other, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey (other): %v", err)
	}
	if Verify(other.PubKey(), hash[:], sig) {
		t.Errorf("Verify: signature accepted under the wrong public key")
	}
}

func TestCompactSignatureRecoversPubKey(t *testing.T) {
	priv, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	pub := priv.PubKey()

	hash := Sha256d([]byte("block signature preimage"))
	sig, err := priv.SignCompact(hash[:])
	if err != nil {
		t.Fatalf("SignCompact: %v", err)
	}
	if len(sig) != 65 {
		t.Fatalf("SignCompact: len = %d, want 65", len(sig))
	}

	recovered, _, err := RecoverCompact(sig, hash[:])
	if err != nil {
		t.Fatalf("RecoverCompact: %v", err)
	}
	if !recovered.Equals(pub) {
		t.Errorf("RecoverCompact: recovered key does not match signer")
	}
}

func TestPubKeySerializeCompressedRoundTrip(t *testing.T) {
	priv, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	pub := priv.PubKey()
	b := pub.SerializeCompressed()
	if len(b) != 33 {
		t.Fatalf("SerializeCompressed: len = %d, want 33", len(b))
	}

	parsed, err := ParsePubKey(b)
	if err != nil {
		t.Fatalf("ParsePubKey: %v", err)
	}
	if !parsed.Equals(pub) {
		t.Errorf("ParsePubKey(SerializeCompressed()) does not round-trip")
	}
}

func TestHashHelpers(t *testing.T) {
	data := []byte("stealth")
	first := Sha256(data)
	second := Sha256(first[:])
	if Sha256d(data) != second {
		t.Errorf("Sha256d does not match Sha256(Sha256(data))")
	}

	h160 := Hash160(data)
	if len(h160) != 20 {
		t.Fatalf("Hash160 length = %d, want 20", len(h160))
	}

	if Sha3_256(data) == ([32]byte{}) {
		t.Errorf("Sha3_256 returned the zero digest")
	}

	if bytes.Equal(Sha256(data)[:], Sha3_256(data)[:]) {
		t.Errorf("Sha256 and Sha3_256 should not collide on the same input")
	}
}
