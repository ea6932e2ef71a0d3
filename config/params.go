// Package config declares the per-network consensus parameters (fork
// activation heights, network magic, genesis) and the CLI flags the node
// binary accepts, in the chaincfg.Params / go-flags idiom the teacher's
// app/config packages use.
package config

// Fork labels a monotonic consensus-upgrade height. Every height-dependent
// rule in blockchain/ branches on GetFork(height) rather than comparing
// raw heights inline, so a new upgrade is one table entry away.
type Fork int

const (
	ForkGenesis Fork = iota
	Fork002 // CUTOFF_POW: proof-of-work mining retired
	Fork004
	Fork005 // activates SCRIPT_VERIFY_CHECKLOCKTIMEVERIFY
	Fork006
	ForkPurchase // staker PURCHASE transactions activate
	ForkQPOS     // qPoS slot-scheduled block production activates; PoW/PoS retired
)

// ForkTable is an ascending list of (activation height, fork) pairs.
// GetFork returns the highest fork whose height is <= the queried height.
type ForkTable []ForkEntry

// ForkEntry pairs a Fork label with the height at which it activates.
type ForkEntry struct {
	Fork   Fork
	Height int32
}

// GetFork returns the active fork at height under table.
func (t ForkTable) GetFork(height int32) Fork {
	active := ForkGenesis
	for _, e := range t {
		if height >= e.Height {
			active = e.Fork
		} else {
			break
		}
	}
	return active
}

// Params collects every network-specific constant: magic, genesis, fork
// activation heights, and the address-prefix/DNS-seed values a real
// deployment needs. Mirrors the teacher's dagconfig.Params shape, narrowed
// to a single linear qPoS chain instead of a per-DAG-network set.
type Params struct {
	Name string

	// Net is the 4-byte wire magic prefixed to every message header.
	Net [4]byte

	DefaultPort string
	DNSSeeds    []string

	Forks ForkTable

	// QPTargetSlotTime is the width, in seconds, of a qPoS production
	// slot once ForkQPOS activates.
	QPTargetSlotTime uint32

	// BlocksPerSnapshot is how often (in blocks) the registry is
	// snapshotted to the txdb for reorg-time replay.
	BlocksPerSnapshot int32

	CoinbaseMaturity uint16
}

// MainNetParams are the production network parameters.
var MainNetParams = Params{
	Name:        "mainnet",
	Net:         [4]byte{0x70, 0x35, 0x22, 0x05},
	DefaultPort: "46600",
	DNSSeeds:    []string{"seed1.junaeth.example", "seed2.junaeth.example"},
	Forks: ForkTable{
		{Fork002, 0},
		{Fork004, 130669},
		{Fork005, 1732201},
		{Fork006, 2378000},
		{ForkPurchase, 2500000},
		{ForkQPOS, 3000000},
	},
	QPTargetSlotTime:  5,
	BlocksPerSnapshot: 100,
	CoinbaseMaturity:  100,
}

// TestNetParams are the test network parameters: the same fork sequence,
// compressed to small heights so test chains reach every fork quickly.
var TestNetParams = Params{
	Name:        "testnet",
	Net:         [4]byte{0xcf, 0xed, 0xff, 0xfd},
	DefaultPort: "46610",
	DNSSeeds:    []string{"testnet-seed.junaeth.example"},
	Forks: ForkTable{
		{Fork002, 0},
		{Fork004, 130},
		{Fork005, 140},
		{Fork006, 145},
		{ForkPurchase, 150},
		{ForkQPOS, 160},
	},
	QPTargetSlotTime:  5,
	BlocksPerSnapshot: 20,
	CoinbaseMaturity:  10,
}
