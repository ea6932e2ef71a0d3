package peer

import (
	"fmt"
	"strings"

	"github.com/junaeth-project/qposd/logger"
	"github.com/junaeth-project/qposd/wire"
)

var log = logger.GetLogger("PEER")

// logClosure defers building an expensive-to-format string until the log
// level that would print it is actually enabled.
type logClosure func() string

func (c logClosure) String() string { return c() }

func newLogClosure(c func() string) logClosure { return logClosure(c) }

// sanitizeString strips any character outside a small safe set and caps
// the result length, used before logging peer-supplied free-text fields
// (user agent, reject reason) that might otherwise pollute a log file.
func sanitizeString(str string, maxLength uint) string {
	const safeChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXY" +
		"Z01234567890 .,;_/:?@"
	str = strings.Map(func(r rune) rune {
		if strings.ContainsRune(safeChars, r) {
			return r
		}
		return -1
	}, str)
	if maxLength > 0 && uint(len(str)) > maxLength {
		str = str[:maxLength] + "..."
	}
	return str
}

// messageSummary returns a short human-readable description of msg for
// debug logging. Not every message type needs one.
func messageSummary(msg wire.Message) string {
	switch msg := msg.(type) {
	case *wire.MsgVersion:
		return fmt.Sprintf("agent %s, pver %d, height %d",
			sanitizeString(msg.UserAgent, 256), msg.ProtocolVersion, msg.StartHeight)
	case *wire.MsgAddr:
		return fmt.Sprintf("%d addr", len(msg.AddrList))
	case *wire.MsgTx:
		return fmt.Sprintf("hash %s, %d in, %d out", msg.TxID(), len(msg.Tx.TxIn), len(msg.Tx.TxOut))
	case *wire.MsgBlock:
		return fmt.Sprintf("hash %s, height %d, %d tx", msg.BlockHash(), msg.Header.Height, len(msg.Transactions))
	case *wire.MsgInv:
		return fmt.Sprintf("%d items", len(msg.InvList))
	case *wire.MsgGetData:
		return fmt.Sprintf("%d items", len(msg.InvList))
	case *wire.MsgGetBlocks:
		return fmt.Sprintf("stop %s", msg.HashStop)
	case *wire.MsgGetHeaders:
		return fmt.Sprintf("stop %s", msg.HashStop)
	case *wire.MsgHeaders:
		return fmt.Sprintf("%d headers", len(msg.Headers))
	case *wire.MsgReject:
		return fmt.Sprintf("cmd %s, code %v, reason %s",
			sanitizeString(msg.Cmd, wire.CommandSize), msg.Code, sanitizeString(msg.Reason, 250))
	}
	return ""
}
