package codec

import (
	"bytes"
	"io"
	"testing"
)

func TestVarIntRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 0xfc, 0xfd, 0xfe, 0xffff, 0x10000, 0xfffffffe,
		0x100000000, 0xffffffffffffffff}
	for _, v := range values {
		var buf bytes.Buffer
		if err := WriteVarInt(&buf, v); err != nil {
			t.Fatalf("WriteVarInt(%d): %v", v, err)
		}
		if got := buf.Len(); got != VarIntSerializeSize(v) {
			t.Errorf("VarIntSerializeSize(%d) = %d, wrote %d bytes", v, got, buf.Len())
		}
		got, err := ReadVarInt(&buf)
		if err != nil {
			t.Fatalf("ReadVarInt(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("round trip %d: got %d", v, got)
		}
	}
}

func TestVarIntNonCanonicalRejected(t *testing.T) {
	// 0xfd followed by a u16 that could have fit in a single byte.
	buf := bytes.NewBuffer([]byte{0xfd, 0x0a, 0x00})
	if _, err := ReadVarInt(buf); err != ErrNonCanonicalVarInt {
		t.Errorf("ReadVarInt non-canonical: err = %v, want %v", err, ErrNonCanonicalVarInt)
	}

	buf = bytes.NewBuffer([]byte{0xfe, 0x0a, 0x00, 0x00, 0x00})
	if _, err := ReadVarInt(buf); err != ErrNonCanonicalVarInt {
		t.Errorf("ReadVarInt non-canonical (u32): err = %v, want %v", err, ErrNonCanonicalVarInt)
	}
}

func TestVarBytesAndVarString(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteVarString(&buf, "stealth"); err != nil {
		t.Fatalf("WriteVarString: %v", err)
	}
	got, err := ReadVarString(&buf, 100)
	if err != nil {
		t.Fatalf("ReadVarString: %v", err)
	}
	if got != "stealth" {
		t.Errorf("round trip = %q, want %q", got, "stealth")
	}
}

func TestVarBytesRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteVarBytes(&buf, make([]byte, 100)); err != nil {
		t.Fatalf("WriteVarBytes: %v", err)
	}
	if _, err := ReadVarBytes(&buf, 10, "field"); err == nil {
		t.Errorf("ReadVarBytes: expected error for length exceeding max")
	}
}

func TestWriteReadVector(t *testing.T) {
	items := []uint32{1, 2, 3, 42}
	var buf bytes.Buffer
	if err := WriteVector(&buf, items, func(w io.Writer, v uint32) error {
		return WriteVarInt(w, uint64(v))
	}); err != nil {
		t.Fatalf("WriteVector: %v", err)
	}
	got, err := ReadVector(&buf, 100, func(r io.Reader) (uint32, error) {
		v, err := ReadVarInt(r)
		return uint32(v), err
	})
	if err != nil {
		t.Fatalf("ReadVector: %v", err)
	}
	if len(got) != len(items) {
		t.Fatalf("len = %d, want %d", len(got), len(items))
	}
	for i, v := range items {
		if got[i] != v {
			t.Errorf("item %d = %d, want %d", i, got[i], v)
		}
	}
}

func TestWriteReadMap(t *testing.T) {
	m := map[uint32]string{1: "a", 2: "b", 3: "c"}
	keys := []uint32{1, 2, 3}
	var buf bytes.Buffer
	err := WriteMap(&buf, keys, m,
		func(w io.Writer, k uint32) error { return WriteVarInt(w, uint64(k)) },
		func(w io.Writer, v string) error { return WriteVarString(w, v) },
	)
	if err != nil {
		t.Fatalf("WriteMap: %v", err)
	}
	got, err := ReadMap(&buf, 100,
		func(r io.Reader) (uint32, error) { v, err := ReadVarInt(r); return uint32(v), err },
		func(r io.Reader) (string, error) { return ReadVarString(r, 100) },
	)
	if err != nil {
		t.Fatalf("ReadMap: %v", err)
	}
	if len(got) != len(m) {
		t.Fatalf("len = %d, want %d", len(got), len(m))
	}
	for k, v := range m {
		if got[k] != v {
			t.Errorf("key %d = %q, want %q", k, got[k], v)
		}
	}
}

func TestBitsetShiftInsertAndCount(t *testing.T) {
	b := NewBitset(8)
	for i := 0; i < 8; i++ {
		b.Set(i, true)
	}
	if b.CountSet() != 8 {
		t.Fatalf("CountSet = %d, want 8", b.CountSet())
	}

	b.ShiftInsertMSB(false)
	if b.Get(0) {
		t.Errorf("bit 0 after ShiftInsertMSB(false) = true, want false")
	}
	if b.CountSet() != 7 {
		t.Errorf("CountSet after one miss = %d, want 7", b.CountSet())
	}

	clone := b.Clone()
	clone.Set(0, true)
	if b.Get(0) {
		t.Errorf("Clone: mutating clone affected original")
	}
}

func TestBitsetSerializationRoundTrip(t *testing.T) {
	b := NewBitset(20)
	b.Set(0, true)
	b.Set(5, true)
	b.Set(19, true)

	var buf bytes.Buffer
	if err := WriteBitset(&buf, b); err != nil {
		t.Fatalf("WriteBitset: %v", err)
	}
	got, err := ReadBitset(&buf)
	if err != nil {
		t.Fatalf("ReadBitset: %v", err)
	}
	if got.Len() != b.Len() {
		t.Fatalf("Len = %d, want %d", got.Len(), b.Len())
	}
	for i := 0; i < b.Len(); i++ {
		if got.Get(i) != b.Get(i) {
			t.Errorf("bit %d = %v, want %v", i, got.Get(i), b.Get(i))
		}
	}
}

func TestBigNumRoundTrip(t *testing.T) {
	if got, ok := BigNum32FromBytes(BigNum32(0xdeadbeef).Bytes()); !ok || got != 0xdeadbeef {
		t.Errorf("BigNum32 round trip: got %x, ok=%v", got, ok)
	}
	if got, ok := BigNum64FromBytes(BigNum64(0x0102030405060708).Bytes()); !ok || got != 0x0102030405060708 {
		t.Errorf("BigNum64 round trip: got %x, ok=%v", got, ok)
	}
	if got, ok := BigNum16FromBytes(BigNum16(0xabcd).Bytes()); !ok || got != 0xabcd {
		t.Errorf("BigNum16 round trip: got %x, ok=%v", got, ok)
	}
	// Wrong length must be rejected.
	if _, ok := BigNum32FromBytes([]byte{1, 2, 3}); ok {
		t.Errorf("BigNum32FromBytes accepted a 3-byte slice")
	}
}

func TestBigNum32BytesAreBigEndian(t *testing.T) {
	b := BigNum32(1).Bytes()
	want := []byte{0x00, 0x00, 0x00, 0x01}
	if !bytes.Equal(b, want) {
		t.Errorf("BigNum32(1).Bytes() = %x, want %x", b, want)
	}
}
