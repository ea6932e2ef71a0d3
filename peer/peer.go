// Package peer implements one wire-protocol connection: the version
// handshake, inbound/outbound message pumps, misbehavior scoring, and
// duplicate-request suppression spec.md §4.9 describes for a node's
// connections to the rest of the network.
//
// Grounded on the teacher's peer package shape (Config/MessageListeners/
// Peer, NewInboundPeer/NewOutboundPeer, AssociateConnection) as shown by
// peer/example_test.go — the teacher's own peer.go was not retrieved into
// the pack, so the handshake/ban-score/dispatch bodies below are written
// fresh in that shape against original_source's net_processing.cpp
// (ProcessMessage, Misbehaving, mapAlreadyAskedFor) for the qPoS message
// set spec.md §4.9 and §6 define.
package peer

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/junaeth-project/qposd/chainhash"
	"github.com/junaeth-project/qposd/config"
	"github.com/junaeth-project/qposd/wire"
)

// BanScoreDisconnect is the misbehavior score at which AddBanScore
// disconnects a peer, matching original_source's
// DEFAULT_BANSCORE_THRESHOLD. The peer's address is not recorded in any
// ban list, so nothing stops it from connecting again.
const BanScoreDisconnect = 100

// NegotiateTimeout bounds how long AssociateConnection waits for the
// version/verack handshake to complete before giving up on a peer.
const NegotiateTimeout = 30 * time.Second

// idleTimeout disconnects a peer that sends nothing (not even a ping) for
// this long.
const idleTimeout = 5 * time.Minute

// outputBufferSize is the depth of a peer's outbound message queue.
const outputBufferSize = 50

// MessageListeners holds the optional callbacks ProcessMessage invokes for
// each message type it dispatches. A nil listener is simply skipped.
type MessageListeners struct {
	OnVersion    func(p *Peer, msg *wire.MsgVersion)
	OnVerAck     func(p *Peer, msg *wire.MsgVerAck)
	OnAddr       func(p *Peer, msg *wire.MsgAddr)
	OnInv        func(p *Peer, msg *wire.MsgInv)
	OnGetData    func(p *Peer, msg *wire.MsgGetData)
	OnNotFound   func(p *Peer, msg *wire.MsgInv)
	OnGetBlocks  func(p *Peer, msg *wire.MsgGetBlocks)
	OnTx         func(p *Peer, msg *wire.MsgTx)
	OnBlock      func(p *Peer, msg *wire.MsgBlock, buf []byte)
	OnGetHeaders func(p *Peer, msg *wire.MsgGetHeaders)
	OnHeaders    func(p *Peer, msg *wire.MsgHeaders)
	OnMemPool    func(p *Peer, msg *wire.MsgMemPool)
	OnPing       func(p *Peer, msg *wire.MsgPing)
	OnPong       func(p *Peer, msg *wire.MsgPong)
	OnAlert      func(p *Peer, msg *wire.MsgAlert)
	OnCheckpoint func(p *Peer, msg *wire.MsgCheckpoint)
	OnReject     func(p *Peer, msg *wire.MsgReject)
}

// Config holds the values needed to construct and negotiate a Peer: how
// this node presents itself, the network it speaks, and the callbacks
// driving whatever sits above the wire (the node's message router).
type Config struct {
	UserAgentName    string
	UserAgentVersion string
	Params           *config.Params
	Services         wire.ServiceFlag
	Listeners        MessageListeners

	// BestHeight returns this node's current best block height, sent in
	// the version message's StartHeight field.
	BestHeight func() int32

	// NewestBlock returns the node's current tip hash, used to answer a
	// peer's getblocks/getheaders request that supplies no locator.
	NewestBlock func() (chainhash.Hash, int32, error)
}

// Peer represents one connection to a remote node, inbound or outbound.
// Every exported method is safe for concurrent use.
type Peer struct {
	cfg  Config
	conn net.Conn

	inbound bool
	addr    string

	connected  int32 // atomic bool
	disconnect int32 // atomic bool

	protocolVersion int32
	services        wire.ServiceFlag
	userAgent       string
	startHeight     int32

	banScore int32

	outputQueue chan wire.Message
	quit        chan struct{}
	wg          sync.WaitGroup

	mtxAsked       sync.Mutex
	alreadyAskedFor map[chainhash.Hash]struct{}
}

// NewOutboundPeer returns a Peer for the outbound address addr. It does not
// dial: the caller establishes the connection and hands it to
// AssociateConnection (mirroring the teacher's split between peer construction and connection
// association, which lets callers control dial timing/retry themselves).
func NewOutboundPeer(cfg *Config, addr string) (*Peer, error) {
	return newPeer(cfg, addr, false), nil
}

// NewInboundPeer returns a Peer for an already-accepted inbound
// connection's remote address.
func NewInboundPeer(cfg *Config) *Peer {
	return newPeer(cfg, "", true)
}

func newPeer(cfg *Config, addr string, inbound bool) *Peer {
	return &Peer{
		cfg:             *cfg,
		addr:            addr,
		inbound:         inbound,
		outputQueue:     make(chan wire.Message, outputBufferSize),
		quit:            make(chan struct{}),
		alreadyAskedFor: make(map[chainhash.Hash]struct{}),
	}
}

// Addr returns the peer's network address string.
func (p *Peer) Addr() string { return p.addr }

// Inbound reports whether this connection was accepted rather than dialed.
func (p *Peer) Inbound() bool { return p.inbound }

// ProtocolVersion returns the negotiated protocol version, valid only
// after the handshake completes.
func (p *Peer) ProtocolVersion() int32 { return atomic.LoadInt32(&p.protocolVersion) }

// UserAgent returns the peer's advertised user agent string.
func (p *Peer) UserAgent() string { return p.userAgent }

// BanScore returns the peer's current misbehavior score.
func (p *Peer) BanScore() int32 { return atomic.LoadInt32(&p.banScore) }

// IsDuplicateAsk reports whether hash has already been requested from this
// peer via getdata/getblocks and suppresses asking again, the
// mapAlreadyAskedFor idiom original_source's net_processing.cpp uses to
// avoid re-requesting an in-flight inventory item from the same peer.
func (p *Peer) IsDuplicateAsk(hash chainhash.Hash) bool {
	p.mtxAsked.Lock()
	defer p.mtxAsked.Unlock()
	_, dup := p.alreadyAskedFor[hash]
	if !dup {
		p.alreadyAskedFor[hash] = struct{}{}
	}
	return dup
}

// ForgetAsk clears hash from the duplicate-ask set once it has been
// fulfilled (or the peer disconnected), so a later legitimate re-request
// is not suppressed.
func (p *Peer) ForgetAsk(hash chainhash.Hash) {
	p.mtxAsked.Lock()
	defer p.mtxAsked.Unlock()
	delete(p.alreadyAskedFor, hash)
}

// AddBanScore increases the peer's misbehavior score by delta and, if the
// new total reaches BanScoreDisconnect, disconnects the peer. Mirrors
// original_source's Misbehaving(), collapsed to a single score rather than
// separate per-offense counters since qPoS's consensus surface is smaller
// than the original's.
func (p *Peer) AddBanScore(delta int32, reason string) {
	newScore := atomic.AddInt32(&p.banScore, delta)
	log.Debugf("peer %s: ban score now %d (+%d: %s)", p.addr, newScore, delta, reason)
	if newScore >= BanScoreDisconnect {
		log.Warnf("peer %s misbehaving, disconnecting: %s", p.addr, reason)
		p.Disconnect()
	}
}

// AssociateConnection takes ownership of an already-established connection
// and performs the version/verack handshake, then starts the read/write
// pumps. It returns once the handshake completes or NegotiateTimeout
// elapses.
func (p *Peer) AssociateConnection(conn net.Conn) error {
	p.conn = conn
	atomic.StoreInt32(&p.connected, 1)
	if p.addr == "" {
		p.addr = conn.RemoteAddr().String()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- p.negotiate() }()

	select {
	case err := <-errCh:
		if err != nil {
			p.conn.Close()
			return err
		}
	case <-time.After(NegotiateTimeout):
		p.conn.Close()
		return fmt.Errorf("peer %s: handshake timed out", p.addr)
	}

	p.wg.Add(2)
	go p.inHandler()
	go p.outHandler()
	return nil
}

func (p *Peer) negotiate() error {
	me := wire.NetAddress{Services: p.cfg.Services}
	you := wire.NetAddress{}
	nonce := selfConnNonce()

	startHeight := int32(0)
	if p.cfg.BestHeight != nil {
		startHeight = p.cfg.BestHeight()
	}

	localVersion := wire.NewMsgVersion(me, you, nonce, startHeight)
	localVersion.UserAgent = fmt.Sprintf("/%s:%s/", p.cfg.UserAgentName, p.cfg.UserAgentVersion)
	localVersion.Services = p.cfg.Services

	if !p.inbound {
		if err := p.writeVersion(localVersion); err != nil {
			return err
		}
	}

	remoteVersion, err := p.readVersion()
	if err != nil {
		return err
	}
	if remoteVersion.ProtocolVersion < wire.MinPeerProtoVersion {
		return fmt.Errorf("peer %s: protocol version %d is below minimum %d",
			p.addr, remoteVersion.ProtocolVersion, wire.MinPeerProtoVersion)
	}
	if remoteVersion.Nonce == nonce {
		return fmt.Errorf("peer %s: detected connection to self", p.addr)
	}

	p.protocolVersion = remoteVersion.ProtocolVersion
	p.services = remoteVersion.Services
	p.userAgent = sanitizeString(remoteVersion.UserAgent, 256)
	p.startHeight = remoteVersion.StartHeight

	if p.inbound {
		if err := p.writeVersion(localVersion); err != nil {
			return err
		}
	}
	if err := p.writeMessage(&wire.MsgVerAck{}); err != nil {
		return err
	}
	if err := p.readVerAck(); err != nil {
		return err
	}
	if p.cfg.Listeners.OnVersion != nil {
		p.cfg.Listeners.OnVersion(p, remoteVersion)
	}
	return nil
}

func (p *Peer) readVersion() (*wire.MsgVersion, error) {
	msg, _, err := wire.ReadMessage(p.conn, wire.ProtocolVersion, p.cfg.Params.Net)
	if err != nil {
		return nil, err
	}
	v, ok := msg.(*wire.MsgVersion)
	if !ok {
		return nil, fmt.Errorf("peer %s: expected version, got %s", p.addr, msg.Command())
	}
	return v, nil
}

func (p *Peer) readVerAck() error {
	msg, _, err := wire.ReadMessage(p.conn, p.protocolVersion, p.cfg.Params.Net)
	if err != nil {
		return err
	}
	if _, ok := msg.(*wire.MsgVerAck); !ok {
		return fmt.Errorf("peer %s: expected verack, got %s", p.addr, msg.Command())
	}
	if p.cfg.Listeners.OnVerAck != nil {
		p.cfg.Listeners.OnVerAck(p, msg.(*wire.MsgVerAck))
	}
	return nil
}

// QueueMessage enqueues msg for delivery to the peer, dropping it silently
// if the peer is disconnecting and the queue is already unreachable.
func (p *Peer) QueueMessage(msg wire.Message) {
	if atomic.LoadInt32(&p.disconnect) != 0 {
		return
	}
	select {
	case p.outputQueue <- msg:
	case <-p.quit:
	}
}

func (p *Peer) writeMessage(msg wire.Message) error {
	log.Tracef("peer %s: sending %s %s", p.addr, msg.Command(), newLogClosure(func() string { return messageSummary(msg) }))
	return wire.WriteMessage(p.conn, msg, p.protocolVersion, p.cfg.Params.Net)
}

// writeVersion sends the version message itself, always encoded at this
// node's own protocol version rather than the (not yet negotiated, or
// irrelevant) peer version writeMessage otherwise uses.
func (p *Peer) writeVersion(msg *wire.MsgVersion) error {
	log.Tracef("peer %s: sending version %s", p.addr, newLogClosure(func() string { return messageSummary(msg) }))
	return wire.WriteMessage(p.conn, msg, wire.ProtocolVersion, p.cfg.Params.Net)
}

func (p *Peer) outHandler() {
	defer p.wg.Done()
	pingTicker := time.NewTicker(2 * time.Minute)
	defer pingTicker.Stop()
	for {
		select {
		case msg := <-p.outputQueue:
			if err := p.writeMessage(msg); err != nil {
				log.Errorf("peer %s: write error: %v", p.addr, err)
				p.Disconnect()
				return
			}
		case <-pingTicker.C:
			p.QueueMessage(&wire.MsgPing{Nonce: selfConnNonce()})
		case <-p.quit:
			return
		}
	}
}

func (p *Peer) inHandler() {
	defer p.wg.Done()
	idleTimer := time.AfterFunc(idleTimeout, func() {
		log.Warnf("peer %s: no message in %s, disconnecting", p.addr, idleTimeout)
		p.Disconnect()
	})
	defer idleTimer.Stop()

	for atomic.LoadInt32(&p.disconnect) == 0 {
		msg, buf, err := wire.ReadMessage(p.conn, p.protocolVersion, p.cfg.Params.Net)
		idleTimer.Reset(idleTimeout)
		if err != nil {
			if err != io.EOF {
				log.Debugf("peer %s: read error: %v", p.addr, err)
			}
			p.Disconnect()
			return
		}
		log.Tracef("peer %s: received %s %s", p.addr, msg.Command(), newLogClosure(func() string { return messageSummary(msg) }))
		p.ProcessMessage(msg, buf)
	}
}

// ProcessMessage dispatches a decoded message to the matching listener
// callback. Exported so a test (or a node wiring up a mock transport) can
// feed messages in directly without a live socket.
func (p *Peer) ProcessMessage(msg wire.Message, buf []byte) {
	l := p.cfg.Listeners
	switch m := msg.(type) {
	case *wire.MsgVersion:
		p.AddBanScore(1, "unexpected second version message")
	case *wire.MsgVerAck:
		if l.OnVerAck != nil {
			l.OnVerAck(p, m)
		}
	case *wire.MsgAddr:
		if len(m.AddrList) > wire.MaxAddrPerMsg {
			p.AddBanScore(20, "oversized addr message")
			return
		}
		if l.OnAddr != nil {
			l.OnAddr(p, m)
		}
	case *wire.MsgInv:
		if l.OnInv != nil {
			l.OnInv(p, m)
		}
	case *wire.MsgGetData:
		if l.OnGetData != nil {
			l.OnGetData(p, m)
		}
	case *wire.MsgNotFound:
		if l.OnNotFound != nil {
			l.OnNotFound(p, m)
		}
	case *wire.MsgGetBlocks:
		if l.OnGetBlocks != nil {
			l.OnGetBlocks(p, m)
		}
	case *wire.MsgTx:
		if l.OnTx != nil {
			l.OnTx(p, m)
		}
	case *wire.MsgBlock:
		if l.OnBlock != nil {
			l.OnBlock(p, m, buf)
		}
	case *wire.MsgGetHeaders:
		if l.OnGetHeaders != nil {
			l.OnGetHeaders(p, m)
		}
	case *wire.MsgHeaders:
		if l.OnHeaders != nil {
			l.OnHeaders(p, m)
		}
	case *wire.MsgMemPool:
		if l.OnMemPool != nil {
			l.OnMemPool(p, m)
		}
	case *wire.MsgPing:
		p.QueueMessage(&wire.MsgPong{Nonce: m.Nonce})
		if l.OnPing != nil {
			l.OnPing(p, m)
		}
	case *wire.MsgPong:
		if l.OnPong != nil {
			l.OnPong(p, m)
		}
	case *wire.MsgAlert:
		if l.OnAlert != nil {
			l.OnAlert(p, m)
		}
	case *wire.MsgCheckpoint:
		if l.OnCheckpoint != nil {
			l.OnCheckpoint(p, m)
		}
	case *wire.MsgReject:
		if l.OnReject != nil {
			l.OnReject(p, m)
		}
	default:
		log.Debugf("peer %s: unhandled command %s", p.addr, msg.Command())
	}
}

// Disconnect closes the connection and stops the read/write pumps, safe to
// call multiple times or concurrently.
func (p *Peer) Disconnect() {
	if !atomic.CompareAndSwapInt32(&p.disconnect, 0, 1) {
		return
	}
	close(p.quit)
	if p.conn != nil {
		p.conn.Close()
	}
}

// WaitForDisconnect blocks until the peer's read/write pumps have both
// exited.
func (p *Peer) WaitForDisconnect() {
	p.wg.Wait()
}

// selfConnNonce returns a random nonce for self-connection detection.
func selfConnNonce() uint64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return uint64(time.Now().UnixNano())
	}
	return binary.BigEndian.Uint64(buf[:])
}
