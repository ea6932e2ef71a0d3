package wire

import (
	"bytes"
	"fmt"
	"io"

	"github.com/junaeth-project/qposd/chainhash"
	"github.com/junaeth-project/qposd/codec"
)

// InvType identifies what an inventory vector refers to.
type InvType uint32

const (
	InvTypeError InvType = iota
	InvTypeTx
	InvTypeBlock
)

func (t InvType) String() string {
	switch t {
	case InvTypeTx:
		return "MSG_TX"
	case InvTypeBlock:
		return "MSG_BLOCK"
	default:
		return "ERROR"
	}
}

// InvVect is a single inventory vector: a type and the hash it identifies.
type InvVect struct {
	Type InvType
	Hash chainhash.Hash
}

// NewInvVect returns a new InvVect.
func NewInvVect(typ InvType, hash chainhash.Hash) *InvVect {
	return &InvVect{Type: typ, Hash: hash}
}

// MaxInvPerMsg is spec.md §4.9's MAX_INV_SZ.
const MaxInvPerMsg = 50000

func writeInvVectVector(w *bytes.Buffer, list []*InvVect) error {
	if len(list) > MaxInvPerMsg {
		return fmt.Errorf("wire: %d inventory vectors exceeds max of %d", len(list), MaxInvPerMsg)
	}
	if err := codec.WriteVarInt(w, uint64(len(list))); err != nil {
		return err
	}
	for _, iv := range list {
		if err := codec.WriteVarInt(w, uint64(iv.Type)); err != nil {
			return err
		}
		if _, err := w.Write(iv.Hash[:]); err != nil {
			return err
		}
	}
	return nil
}

func readInvVectVector(r io.Reader) ([]*InvVect, error) {
	n, err := codec.ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	if n > MaxInvPerMsg {
		return nil, fmt.Errorf("wire: %d inventory vectors exceeds max of %d", n, MaxInvPerMsg)
	}
	out := make([]*InvVect, n)
	for i := range out {
		typ, err := codec.ReadVarInt(r)
		if err != nil {
			return nil, err
		}
		iv := &InvVect{Type: InvType(typ)}
		if _, err := io.ReadFull(r, iv.Hash[:]); err != nil {
			return nil, err
		}
		out[i] = iv
	}
	return out, nil
}

// MsgInv announces up to MaxInvPerMsg items the sender has available.
type MsgInv struct {
	InvList  []*InvVect
	notFound bool // true when this struct backs a "notfound" message
}

func (m *MsgInv) Command() string {
	if m.notFound {
		return CmdNotFound
	}
	return CmdInv
}
func (m *MsgInv) MaxPayloadLength(int32) uint32 { return 9 + MaxInvPerMsg*36 }

func (m *MsgInv) BtcEncode(w *bytes.Buffer, _ int32) error {
	return writeInvVectVector(w, m.InvList)
}

func (m *MsgInv) BtcDecode(r io.Reader, _ int32) error {
	list, err := readInvVectVector(r)
	if err != nil {
		return err
	}
	m.InvList = list
	return nil
}

// AddInvVect appends iv to the message, rejecting the add past MaxInvPerMsg.
func (m *MsgInv) AddInvVect(iv *InvVect) error {
	if len(m.InvList)+1 > MaxInvPerMsg {
		return fmt.Errorf("wire: too many inventory vectors")
	}
	m.InvList = append(m.InvList, iv)
	return nil
}

// NewMsgNotFound returns an empty "notfound" message, the MsgInv variant
// sent in reply to a getdata request for an item the peer no longer has.
func NewMsgNotFound() *MsgInv {
	return &MsgInv{notFound: true}
}

// MsgGetData requests the full contents of up to MaxInvPerMsg inventory
// items previously announced via inv.
type MsgGetData struct {
	InvList []*InvVect
}

func (m *MsgGetData) Command() string              { return CmdGetData }
func (m *MsgGetData) MaxPayloadLength(int32) uint32 { return 9 + MaxInvPerMsg*36 }

func (m *MsgGetData) BtcEncode(w *bytes.Buffer, _ int32) error {
	return writeInvVectVector(w, m.InvList)
}

func (m *MsgGetData) BtcDecode(r io.Reader, _ int32) error {
	list, err := readInvVectVector(r)
	if err != nil {
		return err
	}
	m.InvList = list
	return nil
}

// AddInvVect appends iv to the message, rejecting the add past MaxInvPerMsg.
func (m *MsgGetData) AddInvVect(iv *InvVect) error {
	if len(m.InvList)+1 > MaxInvPerMsg {
		return fmt.Errorf("wire: too many inventory vectors")
	}
	m.InvList = append(m.InvList, iv)
	return nil
}
