package wire

import (
	"bytes"
	"fmt"
	"io"

	"github.com/junaeth-project/qposd/codec"
)

// MsgBlock carries a full block for relay (spec.md §4.9).
type MsgBlock struct {
	Header       BlockHeader
	Transactions []*Transaction
}

func (m *MsgBlock) Command() string              { return CmdBlock }
func (m *MsgBlock) MaxPayloadLength(int32) uint32 { return MaxBlockSize }

func (m *MsgBlock) BtcEncode(w *bytes.Buffer, _ int32) error {
	if err := m.Header.serialize(w); err != nil {
		return err
	}
	if err := codec.WriteVarInt(w, uint64(len(m.Transactions))); err != nil {
		return err
	}
	for _, tx := range m.Transactions {
		if err := tx.btcEncode(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *MsgBlock) BtcDecode(r io.Reader, _ int32) error {
	if err := m.Header.deserialize(r); err != nil {
		return err
	}
	n, err := codec.ReadVarInt(r)
	if err != nil {
		return err
	}
	if n > MaxTxPerBlock {
		return fmt.Errorf("wire: block declares %d transactions, exceeds %d", n, MaxTxPerBlock)
	}
	m.Transactions = make([]*Transaction, n)
	for i := range m.Transactions {
		tx, err := readTransaction(r)
		if err != nil {
			return err
		}
		m.Transactions[i] = tx
	}
	return nil
}

// Block converts the wire message into the core Block type.
func (m *MsgBlock) Block() *Block {
	return &Block{Header: m.Header, Transactions: m.Transactions}
}

// BlockHash returns the header's identity hash.
func (m *MsgBlock) BlockHash() string {
	h := m.Header.BlockHash()
	return h.String()
}

// MsgFromBlock wraps a Block as a MsgBlock for relay.
func MsgFromBlock(b *Block) *MsgBlock {
	return &MsgBlock{Header: b.Header, Transactions: b.Transactions}
}
