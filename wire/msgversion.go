package wire

import (
	"bytes"
	"io"

	"github.com/junaeth-project/qposd/codec"
)

// ProtocolVersion is the version this implementation speaks.
const ProtocolVersion int32 = netAddrIP64ProtocolVersion

// netAddrIP64ProtocolVersion carries the same value as netaddr.IP64Version
// (64200). The two are separate constants and no test checks that they
// agree.
const netAddrIP64ProtocolVersion = 64200

// MinPeerProtoVersion is the lowest protocol version the node will keep a
// connection open with (spec.md §4.9).
const MinPeerProtoVersion int32 = 60000

// MsgVersion implements the version handshake message (spec.md §4.9): the
// first message an inbound peer must send.
type MsgVersion struct {
	ProtocolVersion int32
	Services        ServiceFlag
	Timestamp       int64
	AddrMe          NetAddress
	AddrFrom        NetAddress
	Nonce           uint64
	UserAgent       string
	StartHeight     int32
}

// Command implements Message.
func (m *MsgVersion) Command() string { return CmdVersion }

// MaxPayloadLength implements Message.
func (m *MsgVersion) MaxPayloadLength(int32) uint32 { return 1000 }

// BtcEncode implements Message.
func (m *MsgVersion) BtcEncode(w *bytes.Buffer, peerVersion int32) error {
	if err := codec.WriteVarInt(w, uint64(uint32(m.ProtocolVersion))); err != nil {
		return err
	}
	if err := codec.WriteVarInt(w, uint64(m.Services)); err != nil {
		return err
	}
	if err := codec.WriteVarInt(w, uint64(m.Timestamp)); err != nil {
		return err
	}
	if err := m.AddrMe.serialize(w, peerVersion); err != nil {
		return err
	}
	if err := m.AddrFrom.serialize(w, peerVersion); err != nil {
		return err
	}
	if err := codec.WriteVarInt(w, m.Nonce); err != nil {
		return err
	}
	if err := codec.WriteVarString(w, m.UserAgent); err != nil {
		return err
	}
	return codec.WriteVarInt(w, uint64(uint32(m.StartHeight)))
}

// BtcDecode implements Message.
func (m *MsgVersion) BtcDecode(r io.Reader, peerVersion int32) error {
	pv, err := codec.ReadVarInt(r)
	if err != nil {
		return err
	}
	m.ProtocolVersion = int32(uint32(pv))
	svc, err := codec.ReadVarInt(r)
	if err != nil {
		return err
	}
	m.Services = ServiceFlag(svc)
	ts, err := codec.ReadVarInt(r)
	if err != nil {
		return err
	}
	m.Timestamp = int64(ts)
	addrMe, err := deserializeNetAddress(r, m.ProtocolVersion)
	if err != nil {
		return err
	}
	m.AddrMe = *addrMe
	addrFrom, err := deserializeNetAddress(r, m.ProtocolVersion)
	if err != nil {
		return err
	}
	m.AddrFrom = *addrFrom
	nonce, err := codec.ReadVarInt(r)
	if err != nil {
		return err
	}
	m.Nonce = nonce
	ua, err := codec.ReadVarString(r, 256)
	if err != nil {
		return err
	}
	m.UserAgent = ua
	height, err := codec.ReadVarInt(r)
	if err != nil {
		return err
	}
	m.StartHeight = int32(uint32(height))
	return nil
}

// NewMsgVersion builds an outbound version message for a self-connection
// nonce detection scheme: the sender remembers nonce and, if it later sees
// the same nonce arrive back on a different connection, recognizes that as
// a connection to itself.
func NewMsgVersion(me, you NetAddress, nonce uint64, startHeight int32) *MsgVersion {
	return &MsgVersion{
		ProtocolVersion: ProtocolVersion,
		Timestamp:       0,
		AddrMe:          me,
		AddrFrom:        you,
		Nonce:           nonce,
		UserAgent:       "/qposd:0.1.0/",
		StartHeight:     startHeight,
	}
}
