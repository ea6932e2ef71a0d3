package txscript

import (
	"bytes"

	"github.com/junaeth-project/qposd/chainhash"
)

// txLike is the minimal surface CalcSignatureHash needs from a
// transaction, kept as an interface here rather than importing the wire
// package directly to avoid a wire<->txscript import cycle (wire depends
// on txscript for nothing today, but qpos transaction checks sit between
// the two and this keeps the dependency edge one-directional).
type txLike interface {
	SigHashPreimage(inputIndex int, prevPkScript []byte) ([]byte, error)
}

// CalcSignatureHash returns the SHA-256d digest a single-input qPoS
// transaction (PURCHASE/SET*/CLAIM/ordinary spend) signs and a verifier
// recomputes: the classic SIGHASH_ALL preimage with every input's script
// blanked except inputIndex's, which is replaced with prevPkScript.
//
// The teacher's own script interpreter (engine.go) was dropped as
// unadaptable (see DESIGN.md); qPoS signature checks never need general
// script evaluation; only this single legacy sighash shape, used to
// authenticate the one-input special transactions spec.md §4.3 describes.
func CalcSignatureHash(tx txLike, inputIndex int, prevPkScript []byte) (chainhash.Hash, error) {
	preimage, err := tx.SigHashPreimage(inputIndex, prevPkScript)
	if err != nil {
		return chainhash.Hash{}, err
	}
	return chainhash.DoubleHashH(preimage), nil
}

// ExtractSigAndPubKey parses a classic pay-to-pubkey-hash style signature
// script, `<sig> <pubkey>`, the only scriptSig shape the qPoS special
// transaction family and ordinary P2PKH spends use.
func ExtractSigAndPubKey(sigScript []byte) (sig, pubkey []byte, ok bool) {
	r := bytes.NewReader(sigScript)
	sig, ok = readPush(r)
	if !ok {
		return nil, nil, false
	}
	pubkey, ok = readPush(r)
	if !ok {
		return nil, nil, false
	}
	if r.Len() != 0 {
		return nil, nil, false
	}
	return sig, pubkey, true
}

func readPush(r *bytes.Reader) ([]byte, bool) {
	opByte, err := r.ReadByte()
	if err != nil {
		return nil, false
	}
	switch {
	case opByte >= 1 && opByte <= 75:
		b := make([]byte, opByte)
		if _, err := r.Read(b); err != nil {
			return nil, false
		}
		return b, true
	case opByte == 0x4c: // OP_PUSHDATA1
		n, err := r.ReadByte()
		if err != nil {
			return nil, false
		}
		b := make([]byte, n)
		if _, err := r.Read(b); err != nil {
			return nil, false
		}
		return b, true
	default:
		return nil, false
	}
}

// BuildSigScript assembles a `<sig> <pubkey>` signature script.
func BuildSigScript(sig, pubkey []byte) []byte {
	var buf bytes.Buffer
	writePush(&buf, sig)
	writePush(&buf, pubkey)
	return buf.Bytes()
}

func writePush(buf *bytes.Buffer, data []byte) {
	n := len(data)
	switch {
	case n <= 75:
		buf.WriteByte(byte(n))
	case n <= 255:
		buf.WriteByte(0x4c)
		buf.WriteByte(byte(n))
	default: // OP_PUSHDATA2: a little-endian uint16 length follows the opcode
		buf.WriteByte(0x4d)
		var lenBuf [2]byte
		lenBuf[0] = byte(n)
		lenBuf[1] = byte(n >> 8)
		buf.Write(lenBuf[:])
	}
	buf.Write(data)
}
