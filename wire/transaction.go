// Package wire implements the network wire protocol: message framing
// (magic/command/checksum), the NetAddress record, and the Transaction and
// Block types every other package validates and connects.
//
// Grounded on the teacher's wire package (ReadElement/WriteElement-style
// codec, one file per message) adapted from its length-prefixed kaspad
// framing back to the classic magic+command+checksum header spec.md §6
// and §4.9 describe, since the teacher's own copy of this package had
// already migrated past that point.
package wire

import (
	"bytes"
	"fmt"
	"io"

	"github.com/junaeth-project/qposd/chainhash"
	"github.com/junaeth-project/qposd/codec"
)

// MaxTxInPerMessage and MaxTxOutPerMessage bound how many inputs/outputs a
// single transaction may declare on the wire before it is rejected as
// malformed, independent of the consensus MAX_BLOCK_SIZE check.
const (
	MaxTxInPerMessage  = 1_000_000
	MaxTxOutPerMessage = 1_000_000
)

// MaxSignatureScriptSize and MaxPkScriptSize bound a single script push so
// a hostile peer cannot force an unbounded per-field allocation.
const (
	MaxSignatureScriptSize = 10_000
	MaxPkScriptSize        = 10_000
)

// MaxTxInSequenceNum is the sequence value that disables a locktime check
// on an individual input.
const MaxTxInSequenceNum uint32 = 0xffffffff

// OutPoint identifies a specific output of a specific previous transaction.
type OutPoint struct {
	Hash  chainhash.Hash
	Index uint32
}

// String renders hash:index.
func (o OutPoint) String() string {
	return fmt.Sprintf("%s:%d", o.Hash, o.Index)
}

func (o *OutPoint) serialize(w io.Writer) error {
	if _, err := w.Write(o.Hash[:]); err != nil {
		return err
	}
	return codec.WriteVarInt(w, uint64(o.Index))
}

func (o *OutPoint) deserialize(r io.Reader) error {
	if _, err := io.ReadFull(r, o.Hash[:]); err != nil {
		return err
	}
	idx, err := codec.ReadVarInt(r)
	if err != nil {
		return err
	}
	o.Index = uint32(idx)
	return nil
}

// TxIn is a single transaction input: a reference to a previous output plus
// the script that satisfies it.
type TxIn struct {
	PreviousOutPoint OutPoint
	SignatureScript  []byte
	Sequence         uint32
}

func (ti *TxIn) serialize(w io.Writer) error {
	if err := ti.PreviousOutPoint.serialize(w); err != nil {
		return err
	}
	if err := codec.WriteVarBytes(w, ti.SignatureScript); err != nil {
		return err
	}
	return codec.WriteVarInt(w, uint64(ti.Sequence))
}

func (ti *TxIn) deserialize(r io.Reader) error {
	if err := ti.PreviousOutPoint.deserialize(r); err != nil {
		return err
	}
	sig, err := codec.ReadVarBytes(r, MaxSignatureScriptSize, "signatureScript")
	if err != nil {
		return err
	}
	ti.SignatureScript = sig
	seq, err := codec.ReadVarInt(r)
	if err != nil {
		return err
	}
	ti.Sequence = uint32(seq)
	return nil
}

// TxOut is a single transaction output: a value and the script that locks
// it (which, for qPoS-family scripts, also carries an opaque staker
// operation payload — see txscript.Solve).
type TxOut struct {
	Value    int64
	PkScript []byte
}

func (to *TxOut) serialize(w io.Writer) error {
	if err := codec.WriteVarInt(w, uint64(to.Value)); err != nil {
		return err
	}
	return codec.WriteVarBytes(w, to.PkScript)
}

func (to *TxOut) deserialize(r io.Reader) error {
	val, err := codec.ReadVarInt(r)
	if err != nil {
		return err
	}
	to.Value = int64(val)
	script, err := codec.ReadVarBytes(r, MaxPkScriptSize, "pkScript")
	if err != nil {
		return err
	}
	to.PkScript = script
	return nil
}

// Transaction is a qPoS ledger state transition: it spends prior outputs
// and creates new ones, and may additionally carry one special qPoS
// operation (purchase/set-key/set-state/claim) encoded into a TxOut's
// script per txscript's template set.
type Transaction struct {
	Version  int32
	TxIn     []*TxIn
	TxOut    []*TxOut
	LockTime uint64

	// Time is populated only for pre-ForkQPOS transactions that carry
	// the legacy PPCoin-style nTime field; qPoS transactions leave it
	// zero. Serialize always writes it, as a trailing varint.
	Time uint32
}

// NewTransaction returns an empty Transaction ready to have inputs/outputs
// appended.
func NewTransaction() *Transaction {
	return &Transaction{Version: 1}
}

// AddTxIn appends ti to the transaction's input list.
func (tx *Transaction) AddTxIn(ti *TxIn) {
	tx.TxIn = append(tx.TxIn, ti)
}

// AddTxOut appends to to the transaction's output list.
func (tx *Transaction) AddTxOut(to *TxOut) {
	tx.TxOut = append(tx.TxOut, to)
}

// IsCoinBase reports whether tx is a coinbase: exactly one input, whose
// previous outpoint is the null hash/max index. qPoS blocks carry no
// coinbase; this only ever matches pre-ForkQPOS replayed transactions.
func (tx *Transaction) IsCoinBase() bool {
	if len(tx.TxIn) != 1 {
		return false
	}
	prev := tx.TxIn[0].PreviousOutPoint
	return prev.Hash == chainhash.ZeroHash && prev.Index == 0xffffffff
}

// Serialize encodes tx in the canonical wire format.
func (tx *Transaction) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	if err := tx.btcEncode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (tx *Transaction) btcEncode(w io.Writer) error {
	if err := codec.WriteVarInt(w, uint64(uint32(tx.Version))); err != nil {
		return err
	}
	if err := codec.WriteVarInt(w, uint64(len(tx.TxIn))); err != nil {
		return err
	}
	for _, ti := range tx.TxIn {
		if err := ti.serialize(w); err != nil {
			return err
		}
	}
	if err := codec.WriteVarInt(w, uint64(len(tx.TxOut))); err != nil {
		return err
	}
	for _, to := range tx.TxOut {
		if err := to.serialize(w); err != nil {
			return err
		}
	}
	if err := codec.WriteVarInt(w, tx.LockTime); err != nil {
		return err
	}
	return codec.WriteVarInt(w, uint64(tx.Time))
}

// DeserializeTransaction decodes a Transaction from b, which must contain exactly the
// serialized transaction and nothing more.
func DeserializeTransaction(b []byte) (*Transaction, error) {
	r := bytes.NewReader(b)
	tx, err := readTransaction(r)
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("wire: %d trailing bytes after transaction", r.Len())
	}
	return tx, nil
}

func readTransaction(r io.Reader) (*Transaction, error) {
	tx := &Transaction{}
	ver, err := codec.ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	tx.Version = int32(uint32(ver))

	nIn, err := codec.ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	if nIn > MaxTxInPerMessage {
		return nil, fmt.Errorf("wire: too many transaction inputs (%d)", nIn)
	}
	tx.TxIn = make([]*TxIn, nIn)
	for i := range tx.TxIn {
		ti := &TxIn{}
		if err := ti.deserialize(r); err != nil {
			return nil, err
		}
		tx.TxIn[i] = ti
	}

	nOut, err := codec.ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	if nOut > MaxTxOutPerMessage {
		return nil, fmt.Errorf("wire: too many transaction outputs (%d)", nOut)
	}
	tx.TxOut = make([]*TxOut, nOut)
	for i := range tx.TxOut {
		to := &TxOut{}
		if err := to.deserialize(r); err != nil {
			return nil, err
		}
		tx.TxOut[i] = to
	}

	lockTime, err := codec.ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	tx.LockTime = lockTime

	t, err := codec.ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	tx.Time = uint32(t)
	return tx, nil
}

// TxHash returns the SHA-256d identity hash of the serialized transaction
// as used for its outpoints and mempool key.
func (tx *Transaction) TxHash() chainhash.Hash {
	b, err := tx.Serialize()
	if err != nil {
		// Serialize only fails if the underlying writer fails; a
		// bytes.Buffer never does.
		panic(err)
	}
	return chainhash.DoubleHashH(b)
}

// SerializeSize returns the number of bytes Serialize produces, measured
// by serializing tx — used by the fee-size scaling formula.
func (tx *Transaction) SerializeSize() int {
	b, _ := tx.Serialize()
	return len(b)
}

// SigHashPreimage returns the classic SIGHASH_ALL preimage for signing or
// verifying input inputIndex: every other input's SignatureScript is
// blanked, and inputIndex's is replaced with prevPkScript, the script of
// the output it spends.
func (tx *Transaction) SigHashPreimage(inputIndex int, prevPkScript []byte) ([]byte, error) {
	if inputIndex < 0 || inputIndex >= len(tx.TxIn) {
		return nil, fmt.Errorf("wire: input index %d out of range", inputIndex)
	}
	clone := tx.Copy()
	for i, ti := range clone.TxIn {
		if i == inputIndex {
			ti.SignatureScript = prevPkScript
		} else {
			ti.SignatureScript = nil
		}
	}
	var buf bytes.Buffer
	if err := clone.btcEncode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Copy returns a deep copy of tx, used when a transaction is resurrected
// from a disconnected block into the mempool so later mutation of the
// block's in-memory copy cannot alias the pooled one.
func (tx *Transaction) Copy() *Transaction {
	clone := &Transaction{
		Version:  tx.Version,
		LockTime: tx.LockTime,
		Time:     tx.Time,
	}
	clone.TxIn = make([]*TxIn, len(tx.TxIn))
	for i, ti := range tx.TxIn {
		cp := *ti
		cp.SignatureScript = append([]byte(nil), ti.SignatureScript...)
		clone.TxIn[i] = &cp
	}
	clone.TxOut = make([]*TxOut, len(tx.TxOut))
	for i, to := range tx.TxOut {
		cp := *to
		cp.PkScript = append([]byte(nil), to.PkScript...)
		clone.TxOut[i] = &cp
	}
	return clone
}
