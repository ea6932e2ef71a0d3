// Package connmgr owns outbound connection establishment: maintaining a
// target number of live outbound peers, retrying a failed dial with
// exponential backoff, and seeding the address manager from DNS when it
// runs dry. No full ConnManager type was retrieved from the teacher
// (connmgr/seed.go was the only file the pack carries), so the dial/retry
// loop below is written fresh in the shape peer/peer.go's handshake code
// already establishes for this module: a Config of callbacks, one
// goroutine per concern, shutdown coordinated through util/locks.
package connmgr

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/junaeth-project/qposd/addrmgr"
	"github.com/junaeth-project/qposd/config"
	"github.com/junaeth-project/qposd/netaddr"
	"github.com/junaeth-project/qposd/util/locks"
	"github.com/junaeth-project/qposd/wire"
)

// maxRetryDuration caps the exponential backoff applied between repeated
// failed dials to the same address.
const maxRetryDuration = 5 * time.Minute

// retryDuration is the initial backoff after a first failed dial.
const retryDuration = 5 * time.Second

// Config holds everything the connection manager needs to establish and
// report on outbound connections; the caller (the node package) supplies
// the address source and the peer-construction callback so connmgr itself
// stays ignorant of the wire-protocol handshake.
type Config struct {
	// TargetOutbound is the number of outbound connections the manager
	// tries to keep alive at all times.
	TargetOutbound int

	// AddrManager supplies candidate outbound addresses and records
	// connection outcomes against them.
	AddrManager *addrmgr.AddressManager

	// Dial opens a TCP connection to addr.
	Dial func(addr string) (net.Conn, error)

	// OnConnect is invoked once a dial succeeds and the caller should
	// begin the peer handshake on conn. Returning an error indicates the
	// handshake failed and the connection should be treated as a failed
	// attempt for backoff purposes.
	OnConnect func(conn net.Conn, addr string) error

	// Now returns the current time, overridable by tests.
	Now func() time.Time
}

// ConnManager drives outbound connection establishment toward
// cfg.TargetOutbound, retrying failed addresses with backoff and pulling
// fresh candidates from the address manager as needed.
type ConnManager struct {
	cfg Config

	mtx     sync.Mutex
	retries map[string]time.Duration

	active int32 // atomic count of live outbound connections

	quit    chan struct{}
	stopped int32
	wg      *locks.WaitGroup
}

// New returns a ConnManager using cfg. Start must be called to begin
// connecting.
func New(cfg *Config) *ConnManager {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &ConnManager{
		cfg:     *cfg,
		retries: make(map[string]time.Duration),
		quit:    make(chan struct{}),
		wg:      locks.NewWaitGroup(),
	}
}

// Start launches the background goroutine that keeps outbound connection
// count at the configured target.
func (cm *ConnManager) Start() {
	cm.wg.Add()
	spawn(cm.connectHandler)
}

// Stop signals the connection manager to halt and waits for its goroutine
// to exit.
func (cm *ConnManager) Stop() {
	if !atomic.CompareAndSwapInt32(&cm.stopped, 0, 1) {
		return
	}
	close(cm.quit)
	cm.wg.Wait()
}

// NumActive reports the current number of live outbound connections this
// manager has established.
func (cm *ConnManager) NumActive() int32 {
	return atomic.LoadInt32(&cm.active)
}

// Connected reports a successful, now-handshaked outbound connection to
// addr, clearing any accumulated backoff and crediting the address
// manager.
func (cm *ConnManager) Connected(addr netaddr.Service) {
	cm.mtx.Lock()
	delete(cm.retries, addr.String())
	cm.mtx.Unlock()
	cm.cfg.AddrManager.Good(addr, cm.cfg.Now())
	atomic.AddInt32(&cm.active, 1)
}

// Disconnected records that a previously established outbound connection
// to addr has ended.
func (cm *ConnManager) Disconnected() {
	atomic.AddInt32(&cm.active, -1)
}

func (cm *ConnManager) connectHandler() {
	defer cm.wg.Done()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			cm.maintainOutbound()
		case <-cm.quit:
			return
		}
	}
}

func (cm *ConnManager) maintainOutbound() {
	needed := cm.cfg.TargetOutbound - int(cm.NumActive())
	for i := 0; i < needed; i++ {
		na, ok := cm.cfg.AddrManager.GetAddress()
		if !ok {
			return
		}
		addr := na.IP
		if cm.backingOff(addr.String()) {
			continue
		}
		cm.tryConnect(addr)
	}
}

func (cm *ConnManager) backingOff(key string) bool {
	cm.mtx.Lock()
	defer cm.mtx.Unlock()
	_, ok := cm.retries[key]
	return ok
}

func (cm *ConnManager) tryConnect(addr netaddr.Service) {
	cm.cfg.AddrManager.Attempt(addr, cm.cfg.Now())
	conn, err := cm.cfg.Dial(addr.String())
	if err != nil {
		log.Debugf("outbound dial to %s failed: %v", addr, err)
		cm.backOff(addr.String())
		return
	}
	if err := cm.cfg.OnConnect(conn, addr.String()); err != nil {
		log.Debugf("handshake with %s failed: %v", addr, err)
		conn.Close()
		cm.backOff(addr.String())
		return
	}
	cm.Connected(addr)
}

func (cm *ConnManager) backOff(key string) {
	cm.mtx.Lock()
	defer cm.mtx.Unlock()
	next := cm.retries[key]
	if next == 0 {
		next = retryDuration
	} else {
		next *= 2
		if next > maxRetryDuration {
			next = maxRetryDuration
		}
	}
	cm.retries[key] = next
	delay := next
	spawn(func() {
		select {
		case <-time.After(delay):
		case <-cm.quit:
			return
		}
		cm.mtx.Lock()
		delete(cm.retries, key)
		cm.mtx.Unlock()
	})
}

// SeedAddresses triggers DNS seeding through cfg.AddrManager. The node
// calls it once, at startup, when the address manager holds no addresses;
// nothing calls it again if the manager later runs dry.
func (cm *ConnManager) SeedAddresses(params *config.Params, reqServices wire.ServiceFlag) {
	SeedFromDNS(params, reqServices, net.LookupIP, func(addrs []*wire.NetAddress) {
		for _, na := range addrs {
			cm.cfg.AddrManager.AddAddress(na, na.IP.Addr)
		}
	})
}
