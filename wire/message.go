package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/junaeth-project/qposd/chainhash"
)

// CommandSize is the fixed width of a message command in the header.
const CommandSize = 12

// MaxMessagePayload bounds a single message's payload regardless of any
// more specific per-message limit, guarding against a peer claiming an
// enormous length and then trickling bytes.
const MaxMessagePayload = 32 * 1024 * 1024

// Command values, exactly spec.md §4.9's message set (plus the implicit
// "headers" response to getheaders).
const (
	CmdVersion    = "version"
	CmdVerAck     = "verack"
	CmdAddr       = "addr"
	CmdInv        = "inv"
	CmdGetData    = "getdata"
	CmdNotFound   = "notfound"
	CmdGetBlocks  = "getblocks"
	CmdTx         = "tx"
	CmdBlock      = "block"
	CmdGetHeaders = "getheaders"
	CmdHeaders    = "headers"
	CmdMemPool    = "mempool"
	CmdPing       = "ping"
	CmdPong       = "pong"
	CmdAlert      = "alert"
	CmdCheckpoint = "checkpoint"
	CmdReject     = "reject"
)

// Message is implemented by every concrete message type; Command identifies
// which one for framing, and BtcEncode/BtcDecode (de)serialize the payload
// given the negotiated peer protocol version.
type Message interface {
	Command() string
	BtcEncode(w *bytes.Buffer, peerVersion int32) error
	BtcDecode(r io.Reader, peerVersion int32) error
	MaxPayloadLength(peerVersion int32) uint32
}

// MessageHeader is the fixed 24-byte preamble spec.md §4.9/§6 describes:
// 4-byte network magic, 12-byte null-padded ASCII command, 4-byte
// little-endian payload length, 4-byte checksum (first 4 bytes of
// SHA-256d over the payload).
type MessageHeader struct {
	Magic    [4]byte
	Command  string
	Length   uint32
	Checksum [4]byte
}

const messageHeaderSize = 4 + CommandSize + 4 + 4

func makeEmptyMessage(command string) (Message, error) {
	switch command {
	case CmdVersion:
		return &MsgVersion{}, nil
	case CmdVerAck:
		return &MsgVerAck{}, nil
	case CmdAddr:
		return &MsgAddr{}, nil
	case CmdInv:
		return &MsgInv{}, nil
	case CmdGetData:
		return &MsgGetData{}, nil
	case CmdNotFound:
		return &MsgInv{notFound: true}, nil
	case CmdGetBlocks:
		return &MsgGetBlocks{}, nil
	case CmdTx:
		return &MsgTx{}, nil
	case CmdBlock:
		return &MsgBlock{}, nil
	case CmdGetHeaders:
		return &MsgGetHeaders{}, nil
	case CmdHeaders:
		return &MsgHeaders{}, nil
	case CmdMemPool:
		return &MsgMemPool{}, nil
	case CmdPing:
		return &MsgPing{}, nil
	case CmdPong:
		return &MsgPong{}, nil
	case CmdAlert:
		return &MsgAlert{}, nil
	case CmdCheckpoint:
		return &MsgCheckpoint{}, nil
	case CmdReject:
		return &MsgReject{}, nil
	default:
		return nil, fmt.Errorf("wire: unhandled command %q", command)
	}
}

// WriteMessage serializes msg onto w framed with the given network magic,
// computing its length and checksum.
func WriteMessage(w io.Writer, msg Message, peerVersion int32, magic [4]byte) error {
	var payload bytes.Buffer
	if err := msg.BtcEncode(&payload, peerVersion); err != nil {
		return err
	}
	if uint32(payload.Len()) > MaxMessagePayload {
		return fmt.Errorf("wire: message payload of %d bytes exceeds max of %d", payload.Len(), MaxMessagePayload)
	}

	var header bytes.Buffer
	header.Write(magic[:])
	var cmdBuf [CommandSize]byte
	copy(cmdBuf[:], msg.Command())
	header.Write(cmdBuf[:])

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(payload.Len()))
	header.Write(lenBuf[:])

	checksum := chainhash.DoubleHashB(payload.Bytes())
	header.Write(checksum[:4])

	if _, err := w.Write(header.Bytes()); err != nil {
		return err
	}
	_, err := w.Write(payload.Bytes())
	return err
}

// ReadMessage reads and decodes one message from r, verifying the magic
// and checksum. A mismatched magic or an over-long declared length is
// rejected before any payload byte is read, matching spec.md §7's ban-
// scored protocol-violation handling (the caller applies the ban score;
// this function only reports the failure).
func ReadMessage(r io.Reader, peerVersion int32, magic [4]byte) (Message, []byte, error) {
	var hdr [messageHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, nil, err
	}
	var gotMagic [4]byte
	copy(gotMagic[:], hdr[:4])
	if gotMagic != magic {
		return nil, nil, fmt.Errorf("wire: unexpected network magic %x, want %x", gotMagic, magic)
	}
	command := commandFromBytes(hdr[4 : 4+CommandSize])
	length := binary.LittleEndian.Uint32(hdr[16:20])
	if length > MaxMessagePayload {
		return nil, nil, fmt.Errorf("wire: declared payload length %d exceeds max %d", length, MaxMessagePayload)
	}
	var wantChecksum [4]byte
	copy(wantChecksum[:], hdr[20:24])

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, nil, err
	}
	checksum := chainhash.DoubleHashB(payload)
	var gotChecksum [4]byte
	copy(gotChecksum[:], checksum[:4])
	if gotChecksum != wantChecksum {
		return nil, nil, fmt.Errorf("wire: checksum mismatch for command %q", command)
	}

	msg, err := makeEmptyMessage(command)
	if err != nil {
		return nil, payload, err
	}
	if uint32(len(payload)) > msg.MaxPayloadLength(peerVersion) {
		return nil, payload, fmt.Errorf("wire: %q payload of %d bytes exceeds max of %d", command, len(payload), msg.MaxPayloadLength(peerVersion))
	}
	if err := msg.BtcDecode(bytes.NewReader(payload), peerVersion); err != nil {
		return nil, payload, err
	}
	return msg, payload, nil
}

func commandFromBytes(b []byte) string {
	n := bytes.IndexByte(b, 0)
	if n < 0 {
		n = len(b)
	}
	return string(b[:n])
}
