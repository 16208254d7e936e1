package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8765 {
		t.Errorf("Port = %d, want 8765", cfg.Server.Port)
	}
	if cfg.Engine.BalanceThresholdUSD != 2 {
		t.Errorf("BalanceThresholdUSD = %v, want 2", cfg.Engine.BalanceThresholdUSD)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("engine:\n  max_trade_age_sec: 120\nserver:\n  port: 9000\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Engine.MaxTradeAgeSec != 120 {
		t.Errorf("MaxTradeAgeSec = %d, want 120", cfg.Engine.MaxTradeAgeSec)
	}
	// Untouched keys keep their defaults.
	if cfg.Engine.MaxPriceDrift != 0.20 {
		t.Errorf("MaxPriceDrift = %v, want 0.20", cfg.Engine.MaxPriceDrift)
	}
	if cfg.Chain.USDCAddress == "" {
		t.Error("USDCAddress default missing")
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("engine: [not a map"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load() error = nil, want parse error")
	}
}
