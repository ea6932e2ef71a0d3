package wire

import (
	"bytes"
	"io"

	"github.com/junaeth-project/qposd/codec"
)

// MsgVerAck acknowledges a version message; it carries no payload.
type MsgVerAck struct{}

func (m *MsgVerAck) Command() string                         { return CmdVerAck }
func (m *MsgVerAck) MaxPayloadLength(int32) uint32            { return 0 }
func (m *MsgVerAck) BtcEncode(*bytes.Buffer, int32) error     { return nil }
func (m *MsgVerAck) BtcDecode(io.Reader, int32) error         { return nil }

// MsgMemPool requests the receiving peer's mempool transaction inventory;
// it carries no payload.
type MsgMemPool struct{}

func (m *MsgMemPool) Command() string                     { return CmdMemPool }
func (m *MsgMemPool) MaxPayloadLength(int32) uint32        { return 0 }
func (m *MsgMemPool) BtcEncode(*bytes.Buffer, int32) error { return nil }
func (m *MsgMemPool) BtcDecode(io.Reader, int32) error     { return nil }

// MsgPing carries a nonce the receiver must echo back in a pong, used to
// measure latency and detect a dead connection.
type MsgPing struct {
	Nonce uint64
}

func (m *MsgPing) Command() string              { return CmdPing }
func (m *MsgPing) MaxPayloadLength(int32) uint32 { return 8 }

func (m *MsgPing) BtcEncode(w *bytes.Buffer, _ int32) error {
	return codec.WriteVarInt(w, m.Nonce)
}

func (m *MsgPing) BtcDecode(r io.Reader, _ int32) error {
	n, err := codec.ReadVarInt(r)
	if err != nil {
		return err
	}
	m.Nonce = n
	return nil
}

// MsgPong echoes the nonce from the MsgPing that prompted it.
type MsgPong struct {
	Nonce uint64
}

func (m *MsgPong) Command() string              { return CmdPong }
func (m *MsgPong) MaxPayloadLength(int32) uint32 { return 8 }

func (m *MsgPong) BtcEncode(w *bytes.Buffer, _ int32) error {
	return codec.WriteVarInt(w, m.Nonce)
}

func (m *MsgPong) BtcDecode(r io.Reader, _ int32) error {
	n, err := codec.ReadVarInt(r)
	if err != nil {
		return err
	}
	m.Nonce = n
	return nil
}

// MsgAlert is the legacy master-signed network alert (spec.md §6): an
// opaque payload and signature. This package only encodes and decodes it;
// the peer hands a received one to its OnAlert listener, and nothing here
// verifies the signature.
type MsgAlert struct {
	Payload   []byte
	Signature []byte
}

func (m *MsgAlert) Command() string              { return CmdAlert }
func (m *MsgAlert) MaxPayloadLength(int32) uint32 { return 8192 }

func (m *MsgAlert) BtcEncode(w *bytes.Buffer, _ int32) error {
	if err := codec.WriteVarBytes(w, m.Payload); err != nil {
		return err
	}
	return codec.WriteVarBytes(w, m.Signature)
}

func (m *MsgAlert) BtcDecode(r io.Reader, _ int32) error {
	payload, err := codec.ReadVarBytes(r, 4096, "alertPayload")
	if err != nil {
		return err
	}
	m.Payload = payload
	sig, err := codec.ReadVarBytes(r, 256, "alertSignature")
	if err != nil {
		return err
	}
	m.Signature = sig
	return nil
}

// MsgCheckpoint is a master-signed sync-checkpoint (spec.md §6). This
// package only encodes and decodes it; the peer hands a received one to its
// OnCheckpoint listener, and neither the fork height nor the
// -nosynccheckpoints flag is checked.
type MsgCheckpoint struct {
	Height    int32
	Hash      [32]byte
	Signature []byte
}

func (m *MsgCheckpoint) Command() string              { return CmdCheckpoint }
func (m *MsgCheckpoint) MaxPayloadLength(int32) uint32 { return 256 }

func (m *MsgCheckpoint) BtcEncode(w *bytes.Buffer, _ int32) error {
	if err := codec.WriteVarInt(w, uint64(uint32(m.Height))); err != nil {
		return err
	}
	if _, err := w.Write(m.Hash[:]); err != nil {
		return err
	}
	return codec.WriteVarBytes(w, m.Signature)
}

func (m *MsgCheckpoint) BtcDecode(r io.Reader, _ int32) error {
	h, err := codec.ReadVarInt(r)
	if err != nil {
		return err
	}
	m.Height = int32(uint32(h))
	if _, err := io.ReadFull(r, m.Hash[:]); err != nil {
		return err
	}
	sig, err := codec.ReadVarBytes(r, 256, "checkpointSignature")
	if err != nil {
		return err
	}
	m.Signature = sig
	return nil
}

// RejectCode classifies why a message was rejected.
type RejectCode uint8

const (
	RejectMalformed RejectCode = 0x01
	RejectInvalid   RejectCode = 0x10
	RejectObsolete  RejectCode = 0x11
	RejectDuplicate RejectCode = 0x12
)

// MsgReject notifies a peer that one of its messages was rejected and why;
// sent as a courtesy, never required for correctness.
type MsgReject struct {
	Cmd    string
	Code   RejectCode
	Reason string
	Hash   [32]byte
}

func (m *MsgReject) Command() string              { return CmdReject }
func (m *MsgReject) MaxPayloadLength(int32) uint32 { return 1024 }

func (m *MsgReject) BtcEncode(w *bytes.Buffer, _ int32) error {
	if err := codec.WriteVarString(w, m.Cmd); err != nil {
		return err
	}
	if err := w.WriteByte(byte(m.Code)); err != nil {
		return err
	}
	if err := codec.WriteVarString(w, m.Reason); err != nil {
		return err
	}
	if m.Cmd == CmdBlock || m.Cmd == CmdTx {
		if _, err := w.Write(m.Hash[:]); err != nil {
			return err
		}
	}
	return nil
}

func (m *MsgReject) BtcDecode(r io.Reader, _ int32) error {
	cmd, err := codec.ReadVarString(r, CommandSize)
	if err != nil {
		return err
	}
	m.Cmd = cmd
	var codeBuf [1]byte
	if _, err := io.ReadFull(r, codeBuf[:]); err != nil {
		return err
	}
	m.Code = RejectCode(codeBuf[0])
	reason, err := codec.ReadVarString(r, 250)
	if err != nil {
		return err
	}
	m.Reason = reason
	if m.Cmd == CmdBlock || m.Cmd == CmdTx {
		if _, err := io.ReadFull(r, m.Hash[:]); err != nil {
			return err
		}
	}
	return nil
}
