package wire

import (
	"bytes"
	"fmt"
	"io"

	"github.com/junaeth-project/qposd/chainhash"
	"github.com/junaeth-project/qposd/codec"
)

// MsgGetHeaders requests headers-only following a block locator, used by a
// peer catching up without pulling full block bodies.
type MsgGetHeaders struct {
	BlockLocatorHashes []chainhash.Hash
	HashStop           chainhash.Hash
}

func (m *MsgGetHeaders) Command() string              { return CmdGetHeaders }
func (m *MsgGetHeaders) MaxPayloadLength(int32) uint32 { return 9 + MaxBlockLocatorsPerMsg*32 + 32 }

func (m *MsgGetHeaders) BtcEncode(w *bytes.Buffer, _ int32) error {
	if err := writeBlockLocator(w, m.BlockLocatorHashes); err != nil {
		return err
	}
	_, err := w.Write(m.HashStop[:])
	return err
}

func (m *MsgGetHeaders) BtcDecode(r io.Reader, _ int32) error {
	locator, err := readBlockLocator(r)
	if err != nil {
		return err
	}
	m.BlockLocatorHashes = locator
	if _, err := io.ReadFull(r, m.HashStop[:]); err != nil {
		return err
	}
	return nil
}

// MaxHeadersPerMsg bounds how many headers a single MsgHeaders may carry.
const MaxHeadersPerMsg = 2000

// MsgHeaders answers a getheaders request with up to MaxHeadersPerMsg
// block headers.
type MsgHeaders struct {
	Headers []*BlockHeader
}

func (m *MsgHeaders) Command() string              { return CmdHeaders }
func (m *MsgHeaders) MaxPayloadLength(int32) uint32 { return 9 + MaxHeadersPerMsg*300 }

func (m *MsgHeaders) BtcEncode(w *bytes.Buffer, _ int32) error {
	if len(m.Headers) > MaxHeadersPerMsg {
		return fmt.Errorf("wire: %d headers exceeds max of %d", len(m.Headers), MaxHeadersPerMsg)
	}
	if err := codec.WriteVarInt(w, uint64(len(m.Headers))); err != nil {
		return err
	}
	for _, h := range m.Headers {
		if err := h.serialize(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *MsgHeaders) BtcDecode(r io.Reader, _ int32) error {
	n, err := codec.ReadVarInt(r)
	if err != nil {
		return err
	}
	if n > MaxHeadersPerMsg {
		return fmt.Errorf("wire: %d headers exceeds max of %d", n, MaxHeadersPerMsg)
	}
	m.Headers = make([]*BlockHeader, n)
	for i := range m.Headers {
		h := &BlockHeader{}
		if err := h.deserialize(r); err != nil {
			return err
		}
		m.Headers[i] = h
	}
	return nil
}

// AddBlockHeader appends h, rejecting the add past MaxHeadersPerMsg.
func (m *MsgHeaders) AddBlockHeader(h *BlockHeader) error {
	if len(m.Headers)+1 > MaxHeadersPerMsg {
		return fmt.Errorf("wire: too many headers")
	}
	m.Headers = append(m.Headers, h)
	return nil
}
