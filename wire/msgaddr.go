package wire

import (
	"bytes"
	"errors"
	"io"
)

// MsgAddr relays up to MaxAddrPerMsg known peer addresses (spec.md §4.9).
type MsgAddr struct {
	AddrList []*NetAddress
}

func (m *MsgAddr) Command() string              { return CmdAddr }
func (m *MsgAddr) MaxPayloadLength(int32) uint32 { return 3 + MaxAddrPerMsg*(4+8+netaddrWireSize) }

// netaddrWireSize is the extended 64-byte address form plus its 2-byte
// port; MaxPayloadLength adds the timestamp/services prefix separately.
const netaddrWireSize = 64 + 2

func (m *MsgAddr) BtcEncode(w *bytes.Buffer, peerVersion int32) error {
	return writeNetAddressVector(w, m.AddrList, peerVersion)
}

func (m *MsgAddr) BtcDecode(r io.Reader, peerVersion int32) error {
	addrs, err := readNetAddressVector(r, peerVersion)
	if err != nil {
		return err
	}
	m.AddrList = addrs
	return nil
}

// AddAddress appends na to the message, rejecting the add if it would
// exceed MaxAddrPerMsg.
func (m *MsgAddr) AddAddress(na *NetAddress) error {
	if len(m.AddrList)+1 > MaxAddrPerMsg {
		return errTooManyAddresses
	}
	m.AddrList = append(m.AddrList, na)
	return nil
}

var errTooManyAddresses = errors.New("wire: too many addresses in MsgAddr")
