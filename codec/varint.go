// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package codec implements the deterministic, length-prefixed wire codec
// shared by every serializable entity in the core: compact-size varints,
// and the vector/map/pair/bitset composite encodings built on top of them.
package codec

import (
	"encoding/binary"
	"fmt"
	"io"
)

// ErrNonCanonicalVarInt is returned when a compact-size integer was encoded
// using more bytes than necessary for its value.
var ErrNonCanonicalVarInt = fmt.Errorf("non-canonical varint encoding")

// MaxVarIntPayload is the maximum number of bytes a VarInt may occupy on the
// wire, including its discriminant byte.
const MaxVarIntPayload = 9

// WriteVarInt serializes val to w using the compact-size encoding: a single
// byte if val < 0xfd, otherwise a tag byte (0xfd/0xfe/0xff) followed by a
// little-endian u16/u32/u64.
func WriteVarInt(w io.Writer, val uint64) error {
	var buf [9]byte
	switch {
	case val < 0xfd:
		buf[0] = byte(val)
		_, err := w.Write(buf[:1])
		return err
	case val <= 0xffff:
		buf[0] = 0xfd
		binary.LittleEndian.PutUint16(buf[1:3], uint16(val))
		_, err := w.Write(buf[:3])
		return err
	case val <= 0xffffffff:
		buf[0] = 0xfe
		binary.LittleEndian.PutUint32(buf[1:5], uint32(val))
		_, err := w.Write(buf[:5])
		return err
	default:
		buf[0] = 0xff
		binary.LittleEndian.PutUint64(buf[1:9], val)
		_, err := w.Write(buf[:9])
		return err
	}
}

// ReadVarInt deserializes a compact-size integer from r, rejecting
// non-canonical encodings (a value that could have fit in fewer bytes).
func ReadVarInt(r io.Reader) (uint64, error) {
	var tag [1]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		return 0, err
	}

	switch tag[0] {
	case 0xff:
		var b [8]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, err
		}
		v := binary.LittleEndian.Uint64(b[:])
		if v < 0x100000000 {
			return 0, ErrNonCanonicalVarInt
		}
		return v, nil
	case 0xfe:
		var b [4]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, err
		}
		v := uint64(binary.LittleEndian.Uint32(b[:]))
		if v < 0x10000 {
			return 0, ErrNonCanonicalVarInt
		}
		return v, nil
	case 0xfd:
		var b [2]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, err
		}
		v := uint64(binary.LittleEndian.Uint16(b[:]))
		if v < 0xfd {
			return 0, ErrNonCanonicalVarInt
		}
		return v, nil
	default:
		return uint64(tag[0]), nil
	}
}

// VarIntSerializeSize returns the number of bytes it would take to serialize
// val as a VarInt.
func VarIntSerializeSize(val uint64) int {
	switch {
	case val < 0xfd:
		return 1
	case val <= 0xffff:
		return 3
	case val <= 0xffffffff:
		return 5
	default:
		return 9
	}
}

// WriteVarBytes writes a length-prefixed byte slice: a VarInt byte count
// followed by the raw bytes.
func WriteVarBytes(w io.Writer, b []byte) error {
	if err := WriteVarInt(w, uint64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// ReadVarBytes reads a length-prefixed byte slice, rejecting a declared
// length beyond maxAllowed (a DoS guard against hostile peers).
func ReadVarBytes(r io.Reader, maxAllowed uint64, fieldName string) ([]byte, error) {
	count, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	if count > maxAllowed {
		return nil, fmt.Errorf("%s length of %d exceeds max of %d", fieldName, count, maxAllowed)
	}
	b := make([]byte, count)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

// WriteVarString writes a length-prefixed UTF-8 string.
func WriteVarString(w io.Writer, s string) error {
	return WriteVarBytes(w, []byte(s))
}

// ReadVarString reads a length-prefixed UTF-8 string.
func ReadVarString(r io.Reader, maxAllowed uint64) (string, error) {
	b, err := ReadVarBytes(r, maxAllowed, "varstring")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
