package codec

import "encoding/binary"

// BigNum16, BigNum32 and BigNum64 are the portable big-endian numeric
// containers used to embed fixed-width integers inside opaque script-push
// payloads (qPoS transaction templates push these directly as script data,
// where byte order must be unambiguous across platforms).
//
// Grounded on original_source/src/primitives/vchnum.{hpp,cpp}: the original
// stores numbers big-endian inside a push so that lexicographic byte
// comparison of two pushes matches numeric comparison of the encoded value.

// BigNum16 encodes/decodes a uint16 in 2 big-endian bytes.
type BigNum16 uint16

// Bytes returns the 2-byte big-endian encoding.
func (n BigNum16) Bytes() []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, uint16(n))
	return b
}

// BigNum16FromBytes decodes a 2-byte big-endian encoding.
func BigNum16FromBytes(b []byte) (BigNum16, bool) {
	if len(b) != 2 {
		return 0, false
	}
	return BigNum16(binary.BigEndian.Uint16(b)), true
}

// BigNum32 encodes/decodes a uint32 in 4 big-endian bytes.
type BigNum32 uint32

// Bytes returns the 4-byte big-endian encoding.
func (n BigNum32) Bytes() []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(n))
	return b
}

// BigNum32FromBytes decodes a 4-byte big-endian encoding.
func BigNum32FromBytes(b []byte) (BigNum32, bool) {
	if len(b) != 4 {
		return 0, false
	}
	return BigNum32(binary.BigEndian.Uint32(b)), true
}

// BigNum64 encodes/decodes a uint64 in 8 big-endian bytes.
type BigNum64 uint64

// Bytes returns the 8-byte big-endian encoding.
func (n BigNum64) Bytes() []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(n))
	return b
}

// BigNum64FromBytes decodes an 8-byte big-endian encoding.
func BigNum64FromBytes(b []byte) (BigNum64, bool) {
	if len(b) != 8 {
		return 0, false
	}
	return BigNum64(binary.BigEndian.Uint64(b)), true
}
