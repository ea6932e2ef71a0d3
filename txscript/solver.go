// Package txscript classifies output scripts into the closed set of
// templates the core recognizes, and extracts the payload each template
// carries — a public key, a hash, or (for the qPoS-specific templates) a
// serialized staker operation.
//
// Grounded on EXCCoin-exccd/txscript/stdscript/scriptv0.go's
// Extract*/DetermineScriptTypeV0 pattern: a handful of small, strict
// byte-shape matchers rather than a general parser, built on top of a real
// published script-opcode package instead of a hand-rolled opcode table.
package txscript

import (
	"bytes"
	"fmt"
	"io"

	"github.com/decred/dcrd/txscript/v4"

	"github.com/junaeth-project/qposd/codec"
)

// ScriptClass identifies a recognized output script template.
type ScriptClass int

const (
	NonStandardTy ScriptClass = iota
	PubKeyTy
	PubKeyHashTy
	ScriptHashTy
	MultiSigTy
	NullDataTy
	Purchase1Ty
	Purchase3Ty
	SetOwnerTy
	SetDelegateTy
	SetControllerTy
	EnableTy
	DisableTy
	ClaimTy
	FeeworkTy
)

func (c ScriptClass) String() string {
	switch c {
	case PubKeyTy:
		return "pubkey"
	case PubKeyHashTy:
		return "pubkeyhash"
	case ScriptHashTy:
		return "scripthash"
	case MultiSigTy:
		return "multisig"
	case NullDataTy:
		return "nulldata"
	case Purchase1Ty:
		return "purchase1"
	case Purchase3Ty:
		return "purchase3"
	case SetOwnerTy:
		return "setowner"
	case SetDelegateTy:
		return "setdelegate"
	case SetControllerTy:
		return "setcontroller"
	case EnableTy:
		return "enable"
	case DisableTy:
		return "disable"
	case ClaimTy:
		return "claim"
	case FeeworkTy:
		return "feework"
	default:
		return "nonstandard"
	}
}

// qposTag is the one-byte discriminant embedded right after OP_RETURN in
// every qPoS-specific output template, distinguishing the nine operation
// payloads from an ordinary provably-prunable data output.
type qposTag byte

const (
	tagPurchase1 qposTag = iota + 1
	tagPurchase3
	tagSetOwner
	tagSetDelegate
	tagSetController
	tagEnable
	tagDisable
	tagClaim
	tagFeework
)

// PubKeyHashSize and ScriptHashSize are the widths of a Hash160 digest.
const (
	PubKeyHashSize = 20
	ScriptHashSize = 20
	CompressedPubKeySize = 33
)

// MaxDataCarrierSize is the maximum number of bytes a TX_NULL_DATA push may
// carry to be considered standard.
const MaxDataCarrierSize = 256

// StakerOp is the decoded payload of any qPoS-specific template.
type StakerOp struct {
	Class       ScriptClass
	Alias       string
	Owner       []byte
	Delegate    []byte
	Controller  []byte
	PayoutPCM   uint32
	StakerID    uint32
	Pubkey      []byte
	ClaimValue  uint64
}

// Solutions is the result of a successful Solve: either a single extracted
// payload (pubkey or hash) for the standard templates, or a decoded
// StakerOp for the qPoS-specific ones.
type Solutions struct {
	Class    ScriptClass
	PushData [][]byte
	Op       *StakerOp
}

// Solve classifies script and extracts its payload. It returns
// NonStandardTy with a nil payload if script matches no recognized
// template.
func Solve(script []byte) (Solutions, error) {
	if op, class, ok := matchQPoS(script); ok {
		return Solutions{Class: class, Op: op}, nil
	}
	if pk := extractPubKey(script); pk != nil {
		return Solutions{Class: PubKeyTy, PushData: [][]byte{pk}}, nil
	}
	if h := extractPubKeyHash(script); h != nil {
		return Solutions{Class: PubKeyHashTy, PushData: [][]byte{h}}, nil
	}
	if h := extractScriptHash(script); h != nil {
		return Solutions{Class: ScriptHashTy, PushData: [][]byte{h}}, nil
	}
	if pubkeys, nRequired, ok := extractMultisig(script); ok {
		sol := Solutions{Class: MultiSigTy, PushData: pubkeys}
		sol.Op = &StakerOp{StakerID: uint32(nRequired)} // reuse field to carry m, read by caller as multisig.Required()
		return sol, nil
	}
	if data, ok := extractNullData(script); ok {
		return Solutions{Class: NullDataTy, PushData: [][]byte{data}}, nil
	}
	return Solutions{Class: NonStandardTy}, nil
}

// Required returns the multisig m-of-n threshold packed into Op.StakerID by
// extractMultisig; only meaningful when Class == MultiSigTy.
func (s Solutions) Required() uint32 {
	if s.Op == nil {
		return 0
	}
	return s.Op.StakerID
}

// SigOpCount returns the number of signature operations script carries,
// mirroring the classic GetSigOpCount convention: one for a bare
// pay-to-pubkey or pay-to-pubkey-hash script, the declared n-of-m count for
// a bare multisig script, and zero for every other recognized or
// unrecognized template — none of the qPoS-specific OP_RETURN templates or
// a script-hash redeem carry a CHECKSIG of their own at this layer.
func SigOpCount(script []byte) int {
	sol, err := Solve(script)
	if err != nil {
		return 0
	}
	switch sol.Class {
	case PubKeyTy, PubKeyHashTy:
		return 1
	case MultiSigTy:
		return len(sol.PushData)
	default:
		return 0
	}
}

// extractPubKey matches OP_DATA_33 <pubkey> OP_CHECKSIG.
func extractPubKey(script []byte) []byte {
	if len(script) == 35 &&
		script[0] == txscript.OP_DATA_33 &&
		script[34] == txscript.OP_CHECKSIG &&
		(script[1] == 0x02 || script[1] == 0x03) {
		return script[1:34]
	}
	return nil
}

// extractPubKeyHash matches
// OP_DUP OP_HASH160 OP_DATA_20 <hash> OP_EQUALVERIFY OP_CHECKSIG.
func extractPubKeyHash(script []byte) []byte {
	if len(script) == 25 &&
		script[0] == txscript.OP_DUP &&
		script[1] == txscript.OP_HASH160 &&
		script[2] == txscript.OP_DATA_20 &&
		script[23] == txscript.OP_EQUALVERIFY &&
		script[24] == txscript.OP_CHECKSIG {
		return script[3:23]
	}
	return nil
}

// extractScriptHash matches OP_HASH160 OP_DATA_20 <hash> OP_EQUAL.
func extractScriptHash(script []byte) []byte {
	if len(script) == 23 &&
		script[0] == txscript.OP_HASH160 &&
		script[1] == txscript.OP_DATA_20 &&
		script[22] == txscript.OP_EQUAL {
		return script[2:22]
	}
	return nil
}

// extractMultisig matches OP_m <pubkey>... OP_n OP_CHECKMULTISIG, 1<=m<=n<=16.
func extractMultisig(script []byte) ([][]byte, int, bool) {
	if len(script) < 3 {
		return nil, 0, false
	}
	if script[len(script)-1] != txscript.OP_CHECKMULTISIG {
		return nil, 0, false
	}
	m, ok := smallIntValue(script[0])
	if !ok || m < 1 || m > 16 {
		return nil, 0, false
	}
	n, ok := smallIntValue(script[len(script)-2])
	if !ok || n < m || n > 16 {
		return nil, 0, false
	}

	pos := 1
	pubkeys := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		if pos >= len(script) || script[pos] != txscript.OP_DATA_33 {
			return nil, 0, false
		}
		if pos+34 > len(script) {
			return nil, 0, false
		}
		pubkeys = append(pubkeys, script[pos+1:pos+34])
		pos += 34
	}
	if pos != len(script)-2 {
		return nil, 0, false
	}
	return pubkeys, m, true
}

func smallIntValue(op byte) (int, bool) {
	if op == txscript.OP_0 {
		return 0, true
	}
	if op >= txscript.OP_1 && op <= txscript.OP_16 {
		return int(op-txscript.OP_1) + 1, true
	}
	return 0, false
}

// extractNullData matches OP_RETURN [<=MaxDataCarrierSize byte push]. A
// qPoS-tagged OP_RETURN is handled separately by matchQPoS and never
// reaches here.
func extractNullData(script []byte) ([]byte, bool) {
	if len(script) < 1 || script[0] != txscript.OP_RETURN {
		return nil, false
	}
	if len(script) == 1 {
		return []byte{}, true
	}
	data, ok := readSimplePush(script[1:])
	if !ok || len(data) > MaxDataCarrierSize {
		return nil, false
	}
	return data, true
}

// readSimplePush reads a single canonical data push (OP_DATA_1..75 or
// OP_PUSHDATA1/2/4) from the front of b, returning the pushed bytes iff the
// push consumes exactly all of b.
func readSimplePush(b []byte) ([]byte, bool) {
	if len(b) == 0 {
		return nil, false
	}
	op := b[0]
	switch {
	case op >= 1 && op <= 75:
		n := int(op)
		if len(b) != 1+n {
			return nil, false
		}
		return b[1 : 1+n], true
	case op == txscript.OP_PUSHDATA1:
		if len(b) < 2 {
			return nil, false
		}
		n := int(b[1])
		if len(b) != 2+n {
			return nil, false
		}
		return b[2 : 2+n], true
	case op == txscript.OP_PUSHDATA2:
		if len(b) < 3 {
			return nil, false
		}
		n := int(b[1]) | int(b[2])<<8
		if len(b) != 3+n {
			return nil, false
		}
		return b[3 : 3+n], true
	default:
		return nil, false
	}
}

// matchQPoS recognizes OP_RETURN OP_DATA_1 <tag> <payload push> and decodes
// the payload per §4.2's fixed layout for the matched tag.
func matchQPoS(script []byte) (*StakerOp, ScriptClass, bool) {
	if len(script) < 3 || script[0] != txscript.OP_RETURN || script[1] != txscript.OP_DATA_1 {
		return nil, NonStandardTy, false
	}
	tag := qposTag(script[2])
	payload, ok := readSimplePush(script[3:])
	if !ok {
		return nil, NonStandardTy, false
	}
	r := bytes.NewReader(payload)
	switch tag {
	case tagPurchase1:
		op, err := decodePurchase(r, false)
		if err != nil {
			return nil, NonStandardTy, false
		}
		return op, Purchase1Ty, true
	case tagPurchase3:
		op, err := decodePurchase(r, true)
		if err != nil {
			return nil, NonStandardTy, false
		}
		return op, Purchase3Ty, true
	case tagSetOwner, tagSetDelegate, tagSetController:
		class := SetOwnerTy
		if tag == tagSetDelegate {
			class = SetDelegateTy
		} else if tag == tagSetController {
			class = SetControllerTy
		}
		op, err := decodeSetKey(r, tag == tagSetDelegate)
		if err != nil {
			return nil, NonStandardTy, false
		}
		op.Class = class
		return op, class, true
	case tagEnable, tagDisable:
		class := EnableTy
		if tag == tagDisable {
			class = DisableTy
		}
		id, err := readU32(r)
		if err != nil {
			return nil, NonStandardTy, false
		}
		return &StakerOp{Class: class, StakerID: id}, class, true
	case tagClaim:
		op, err := decodeClaim(r)
		if err != nil {
			return nil, NonStandardTy, false
		}
		return op, ClaimTy, true
	case tagFeework:
		return &StakerOp{Class: FeeworkTy}, FeeworkTy, true
	default:
		return nil, NonStandardTy, false
	}
}

func decodePurchase(r *bytes.Reader, triple bool) (*StakerOp, error) {
	alias, err := codec.ReadVarString(r, 256)
	if err != nil {
		return nil, err
	}
	owner, err := readFixed(r, CompressedPubKeySize)
	if err != nil {
		return nil, err
	}
	op := &StakerOp{Alias: alias, Owner: owner}
	if triple {
		op.Delegate, err = readFixed(r, CompressedPubKeySize)
		if err != nil {
			return nil, err
		}
		op.Controller, err = readFixed(r, CompressedPubKeySize)
		if err != nil {
			return nil, err
		}
	}
	pcm, err := readU32(r)
	if err != nil {
		return nil, err
	}
	op.PayoutPCM = pcm
	if r.Len() != 0 {
		return nil, fmt.Errorf("txscript: trailing bytes in purchase payload")
	}
	return op, nil
}

func decodeSetKey(r *bytes.Reader, withPCM bool) (*StakerOp, error) {
	id, err := readU32(r)
	if err != nil {
		return nil, err
	}
	pubkey, err := readFixed(r, CompressedPubKeySize)
	if err != nil {
		return nil, err
	}
	op := &StakerOp{StakerID: id, Pubkey: pubkey}
	if withPCM {
		pcm, err := readU32(r)
		if err != nil {
			return nil, err
		}
		op.PayoutPCM = pcm
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("txscript: trailing bytes in set-key payload")
	}
	return op, nil
}

func decodeClaim(r *bytes.Reader) (*StakerOp, error) {
	pubkey, err := readFixed(r, CompressedPubKeySize)
	if err != nil {
		return nil, err
	}
	value, err := readU64(r)
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("txscript: trailing bytes in claim payload")
	}
	return &StakerOp{Pubkey: pubkey, ClaimValue: value}, nil
}

func readFixed(r *bytes.Reader, n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func readU32(r *bytes.Reader) (uint32, error) {
	raw := make([]byte, 4)
	if _, err := io.ReadFull(r, raw); err != nil {
		return 0, err
	}
	v, _ := codec.BigNum32FromBytes(raw)
	return uint32(v), nil
}

func readU64(r *bytes.Reader) (uint64, error) {
	raw := make([]byte, 8)
	if _, err := io.ReadFull(r, raw); err != nil {
		return 0, err
	}
	v, _ := codec.BigNum64FromBytes(raw)
	return uint64(v), nil
}
