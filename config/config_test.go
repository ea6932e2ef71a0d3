package config

import (
	"path/filepath"
	"testing"
)

func TestLoadAppliesBlockMaxSizeDefault(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BlockMaxSize != MaxBlockSizeGen/2 {
		t.Errorf("BlockMaxSize = %d, want %d", cfg.BlockMaxSize, MaxBlockSizeGen/2)
	}
}

func TestLoadLeavesExplicitBlockMaxSizeAlone(t *testing.T) {
	cfg, err := Load([]string{"--blockmaxsize=12345"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BlockMaxSize != 12345 {
		t.Errorf("BlockMaxSize = %d, want 12345", cfg.BlockMaxSize)
	}
}

func TestLoadDefaultsLimitFreeRelay(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LimitFreeRelay != 15 {
		t.Errorf("LimitFreeRelay = %d, want 15", cfg.LimitFreeRelay)
	}
}

func TestLoadTestnetForcesRollbackStale(t *testing.T) {
	cfg, err := Load([]string{"--testnet"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.TestNet || !cfg.RollbackStale {
		t.Errorf("cfg = %+v, want TestNet=true RollbackStale=true", cfg)
	}
	if cfg.Params() != &TestNetParams {
		t.Errorf("Params() did not return &TestNetParams under -testnet")
	}
}

func TestLoadMainnetParamsByDefault(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RollbackStale {
		t.Errorf("RollbackStale = true without -testnet, want false")
	}
	if cfg.Params() != &MainNetParams {
		t.Errorf("Params() did not return &MainNetParams by default")
	}
}

func TestLoadDerivesLogDirAndLogFileFromDataDir(t *testing.T) {
	cfg, err := Load([]string{"--datadir=/tmp/qposd-test"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	wantLogDir := filepath.Join("/tmp/qposd-test", "logs")
	if cfg.LogDir != wantLogDir {
		t.Errorf("LogDir = %s, want %s", cfg.LogDir, wantLogDir)
	}
	wantLogFile := filepath.Join(wantLogDir, "qposd.log")
	if cfg.LogFile() != wantLogFile {
		t.Errorf("LogFile() = %s, want %s", cfg.LogFile(), wantLogFile)
	}
}
