package wire

import (
	"bytes"
	"io"
)

// MsgTx carries a single transaction for relay (spec.md §4.9).
type MsgTx struct {
	Tx *Transaction
}

func (m *MsgTx) Command() string              { return CmdTx }
func (m *MsgTx) MaxPayloadLength(int32) uint32 { return MaxBlockSize }

func (m *MsgTx) BtcEncode(w *bytes.Buffer, _ int32) error {
	return m.Tx.btcEncode(w)
}

func (m *MsgTx) BtcDecode(r io.Reader, _ int32) error {
	tx, err := readTransaction(r)
	if err != nil {
		return err
	}
	m.Tx = tx
	return nil
}

// TxID returns the wrapped transaction's identity hash.
func (m *MsgTx) TxID() string {
	h := m.Tx.TxHash()
	return h.String()
}
