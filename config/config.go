package config

import (
	"fmt"
	"path/filepath"

	flags "github.com/jessevdk/go-flags"
)

// MaxBlockSizeGen is the consensus-maximum generated block size; -blockmaxsize
// defaults to half of it, matching the teacher's mempool policy default.
const MaxBlockSizeGen = 1_000_000

// Config holds every CLI flag the core consults, struct-tag driven the way
// the teacher's app/config package parses os.Args with go-flags.
type Config struct {
	DataDir string `long:"datadir" description:"Directory to store data"`
	LogDir  string `long:"logdir" description:"Directory to log output"`

	TestNet bool `long:"testnet" description:"Use the test network"`

	LimitFreeRelay int64 `long:"limitfreerelay" default:"15" description:"Limit free transaction relay to this many thousand bytes per minute"`

	BlockMaxSize      uint32 `long:"blockmaxsize" description:"Maximum size, in bytes, a generated block may be"`
	BlockMinSize      uint32 `long:"blockminsize" default:"0" description:"Minimum size, in bytes, a generated block must be"`
	BlockPrioritySize uint32 `long:"blockprioritysize" default:"27000" description:"Size, in bytes, of high-priority/low-fee transaction space in a generated block"`

	MinTxFee int64 `long:"mintxfee" description:"Minimum fee, in satoshi-equivalent XST, a transaction must pay to be relayed or mined"`

	QuitOnBootstrap     bool `long:"quitonbootstrap" description:"Exit after completing the bootstrap import"`
	NoSyncCheckpoints   bool `long:"nosynccheckpoints" default:"true" description:"Disable sync-checkpoint enforcement"`
	PermitDirtyBootstrap bool `long:"permitdirtybootstrap" description:"Allow a bootstrap import to proceed despite a dirty shutdown marker"`
	RollbackStale       bool `long:"rollbackstale" description:"Roll back and reconsider the rejected tip when the registry flags it as stale (default true on testnet)"`

	DebugLevel string `long:"debuglevel" default:"info" description:"Logging level: trace, debug, info, warn, error, critical, off"`
}

// Params returns the network Params selected by the TestNet flag.
func (c *Config) Params() *Params {
	if c.TestNet {
		return &TestNetParams
	}
	return &MainNetParams
}

// Load parses args (typically os.Args[1:]) into a Config, applying the
// network-appropriate defaults for flags whose default depends on
// -testnet (BlockMaxSize, RollbackStale) after the generic go-flags
// defaults have been applied.
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}
	if cfg.BlockMaxSize == 0 {
		cfg.BlockMaxSize = MaxBlockSizeGen / 2
	}
	if cfg.TestNet {
		cfg.RollbackStale = true
	}
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir()
	}
	if cfg.LogDir == "" {
		cfg.LogDir = filepath.Join(cfg.DataDir, "logs")
	}
	return cfg, nil
}

func defaultDataDir() string {
	return filepath.Join(".", "qposd-data")
}

// LogFile returns the path -logdir/qposd.log the logger rotator writes to.
func (c *Config) LogFile() string {
	return filepath.Join(c.LogDir, "qposd.log")
}

// String renders the config for diagnostic logging at startup.
func (c *Config) String() string {
	return fmt.Sprintf("datadir=%s testnet=%t limitfreerelay=%d blockmaxsize=%d",
		c.DataDir, c.TestNet, c.LimitFreeRelay, c.BlockMaxSize)
}
