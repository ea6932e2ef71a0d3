package wire

import (
	"bytes"
	"fmt"
	"io"

	"github.com/junaeth-project/qposd/chainhash"
	"github.com/junaeth-project/qposd/codec"
)

// MaxBlockLocatorsPerMsg bounds a block locator's hash list.
const MaxBlockLocatorsPerMsg = 500

func writeBlockLocator(w *bytes.Buffer, locator []chainhash.Hash) error {
	if len(locator) > MaxBlockLocatorsPerMsg {
		return fmt.Errorf("wire: block locator of %d hashes exceeds max of %d", len(locator), MaxBlockLocatorsPerMsg)
	}
	if err := codec.WriteVarInt(w, uint64(len(locator))); err != nil {
		return err
	}
	for _, h := range locator {
		if _, err := w.Write(h[:]); err != nil {
			return err
		}
	}
	return nil
}

func readBlockLocator(r io.Reader) ([]chainhash.Hash, error) {
	n, err := codec.ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	if n > MaxBlockLocatorsPerMsg {
		return nil, fmt.Errorf("wire: block locator of %d hashes exceeds max of %d", n, MaxBlockLocatorsPerMsg)
	}
	out := make([]chainhash.Hash, n)
	for i := range out {
		if _, err := io.ReadFull(r, out[i][:]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// MsgGetBlocks requests an inv of block hashes following the most recent
// hash in BlockLocatorHashes that the receiver recognizes, up to HashStop
// (or the end of its best chain if HashStop is the zero hash). The node
// does not send one when it receives an orphan block.
type MsgGetBlocks struct {
	BlockLocatorHashes []chainhash.Hash
	HashStop           chainhash.Hash
}

func (m *MsgGetBlocks) Command() string              { return CmdGetBlocks }
func (m *MsgGetBlocks) MaxPayloadLength(int32) uint32 { return 9 + MaxBlockLocatorsPerMsg*32 + 32 }

func (m *MsgGetBlocks) BtcEncode(w *bytes.Buffer, _ int32) error {
	if err := writeBlockLocator(w, m.BlockLocatorHashes); err != nil {
		return err
	}
	_, err := w.Write(m.HashStop[:])
	return err
}

func (m *MsgGetBlocks) BtcDecode(r io.Reader, _ int32) error {
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

// NewMsgGetBlocks returns a MsgGetBlocks requesting everything after
// locator up to hashStop.
func NewMsgGetBlocks(hashStop chainhash.Hash, locator []chainhash.Hash) *MsgGetBlocks {
	return &MsgGetBlocks{BlockLocatorHashes: locator, HashStop: hashStop}
}
