package chainhash

import (
	"bytes"
	"testing"
)

func TestDoubleHashMatchesTwoSingleHashes(t *testing.T) {
	data := []byte("stealth qpos")
	first := HashB(data)
	second := HashB(first)
	if !bytes.Equal(second, DoubleHashB(data)) {
		t.Errorf("DoubleHashB does not match HashB(HashB(data))")
	}
	if DoubleHashH(data) != Hash(DoubleHashH(data)) {
		t.Errorf("DoubleHashH inconsistent with itself")
	}
}

func TestHashStringRoundTrip(t *testing.T) {
	var h Hash
	h[0] = 0xaa
	h[HashSize-1] = 0xbb

	s := h.String()
	got, err := NewHashFromStr(s)
	if err != nil {
		t.Fatalf("NewHashFromStr: %v", err)
	}
	if !got.IsEqual(&h) {
		t.Errorf("round trip through String/NewHashFromStr: got %s, want %s", got, h.String())
	}
}

func TestHashSetBytesRejectsWrongLength(t *testing.T) {
	var h Hash
	if err := h.SetBytes(make([]byte, HashSize-1)); err == nil {
		t.Errorf("SetBytes accepted a short slice")
	}
	if err := h.SetBytes(make([]byte, HashSize)); err != nil {
		t.Errorf("SetBytes rejected a correctly sized slice: %v", err)
	}
}

func TestIsEqualNilHandling(t *testing.T) {
	var a, b *Hash
	if !a.IsEqual(b) {
		t.Errorf("two nil hashes should be equal")
	}
	h := new(Hash)
	if h.IsEqual(nil) {
		t.Errorf("a non-nil hash should not equal nil")
	}
}

func TestHash160IsTwentyBytes(t *testing.T) {
	h := CalcHash160([]byte("pubkey bytes"))
	if len(h) != HashSize160 {
		t.Fatalf("Hash160 length = %d, want %d", len(h), HashSize160)
	}
	// Deterministic: same input always yields same digest.
	if CalcHash160([]byte("pubkey bytes")) != h {
		t.Errorf("CalcHash160 not deterministic")
	}
}

func TestZeroHashIsAllZero(t *testing.T) {
	for _, b := range ZeroHash {
		if b != 0 {
			t.Fatalf("ZeroHash has a non-zero byte")
		}
	}
}
