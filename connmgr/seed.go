package connmgr

import (
	mrand "math/rand"
	"net"
	"strconv"
	"time"

	"github.com/junaeth-project/qposd/config"
	"github.com/junaeth-project/qposd/wire"
)

// Seconds-in-N-days constants used to pick a random last-seen time for a
// freshly seeded address, matching the teacher's seed.go idiom of
// backdating DNS-seeded addresses rather than claiming they were just
// seen.
const (
	secondsIn3Days int32 = 24 * 60 * 60 * 3
	secondsIn4Days int32 = 24 * 60 * 60 * 4
)

// OnSeed is invoked with the addresses a DNS seed lookup returned.
type OnSeed func(addrs []*wire.NetAddress)

// LookupFunc is the signature of the DNS lookup function, normally
// net.LookupIP, abstracted so tests can substitute a fake resolver.
type LookupFunc func(string) ([]net.IP, error)

// SeedFromDNS queries every DNS seed configured for params, feeding
// whatever addresses each seed resolves to into seedFn. Each seed is
// queried concurrently; SeedFromDNS itself returns immediately.
func SeedFromDNS(params *config.Params, reqServices wire.ServiceFlag, lookupFn LookupFunc, seedFn OnSeed) {
	for _, dnsseed := range params.DNSSeeds {
		host := dnsseed
		spawn(func() {
			randSource := mrand.New(mrand.NewSource(time.Now().UnixNano()))

			seedPeers, err := lookupFn(host)
			if err != nil {
				log.Infof("DNS discovery failed on seed %s: %v", host, err)
				return
			}
			if len(seedPeers) == 0 {
				return
			}
			log.Infof("%d addresses found from DNS seed %s", len(seedPeers), host)

			intPort, err := strconv.Atoi(params.DefaultPort)
			if err != nil {
				log.Errorf("bad default port %q for %s: %v", params.DefaultPort, params.Name, err)
				return
			}

			addresses := make([]*wire.NetAddress, len(seedPeers))
			for i, peer := range seedPeers {
				when := time.Now().Add(-1 * time.Second *
					time.Duration(secondsIn3Days+randSource.Int31n(secondsIn4Days)))
				addresses[i] = wire.NewNetAddressTimestamp(when, reqServices, peer, uint16(intPort))
			}
			seedFn(addresses)
		})
	}
}
