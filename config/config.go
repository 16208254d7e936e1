package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ServerConfig controls HTTP/WebSocket server behavior.
type ServerConfig struct {
	Port              int `yaml:"port"`
	ReadTimeoutMS     int `yaml:"read_timeout_ms"`
	WriteTimeoutMS    int `yaml:"write_timeout_ms"`
	ShutdownTimeoutMS int `yaml:"shutdown_timeout_ms"`
}

// EngineConfig holds the copy-trade gate thresholds and breaker cadences.
type EngineConfig struct {
	MaxTradeAgeSec      int     `yaml:"max_trade_age_sec"`
	MidpointFloor       float64 `yaml:"midpoint_floor"`
	MidpointCeiling     float64 `yaml:"midpoint_ceiling"`
	MaxPriceDrift       float64 `yaml:"max_price_drift"`
	MinOrderUSD         float64 `yaml:"min_order_usd"`
	BalancePollSec      int     `yaml:"balance_poll_sec"`
	RecoveryPollSec     int     `yaml:"recovery_poll_sec"`
	BalanceThresholdUSD float64 `yaml:"balance_threshold_usd"`
}

// ChainConfig points at the Polygon RPC endpoints used by the balance oracle.
type ChainConfig struct {
	RPCURL         string `yaml:"rpc_url"`
	RPCFallbackURL string `yaml:"rpc_fallback_url"`
	USDCAddress    string `yaml:"usdc_address"`
}

// ClobConfig points at the exchange.
type ClobConfig struct {
	BaseURL string `yaml:"base_url"`
}

// Config aggregates all app configuration knobs.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Engine EngineConfig `yaml:"engine"`
	Chain  ChainConfig  `yaml:"chain"`
	Clob   ClobConfig   `yaml:"clob"`
}

// Load reads configuration from disk, falling back to defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	configPath := path
	if configPath == "" {
		configPath = filepath.Join("config", "default.yaml")
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("config: unable to read %s: %w", configPath, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: unable to parse %s: %w", configPath, err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns baseline configuration values.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:              8765,
			ReadTimeoutMS:     10000,
			WriteTimeoutMS:    10000,
			ShutdownTimeoutMS: 5000,
		},
		Engine: EngineConfig{
			MaxTradeAgeSec:      60,
			MidpointFloor:       0.03,
			MidpointCeiling:     0.97,
			MaxPriceDrift:       0.20,
			MinOrderUSD:         1,
			BalancePollSec:      30,
			RecoveryPollSec:     60,
			BalanceThresholdUSD: 2,
		},
		Chain: ChainConfig{
			RPCURL:         "https://polygon-rpc.com",
			RPCFallbackURL: "https://polygon-bor-rpc.publicnode.com",
			USDCAddress:    "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174",
		},
		Clob: ClobConfig{
			BaseURL: "https://clob.polymarket.com",
		},
	}
}

func (c *Config) applyDefaults() {
	def := Default()

	if c.Server.Port == 0 {
		c.Server.Port = def.Server.Port
	}
	if c.Server.ReadTimeoutMS == 0 {
		c.Server.ReadTimeoutMS = def.Server.ReadTimeoutMS
	}
	if c.Server.WriteTimeoutMS == 0 {
		c.Server.WriteTimeoutMS = def.Server.WriteTimeoutMS
	}
	if c.Server.ShutdownTimeoutMS == 0 {
		c.Server.ShutdownTimeoutMS = def.Server.ShutdownTimeoutMS
	}

	if c.Engine.MaxTradeAgeSec == 0 {
		c.Engine.MaxTradeAgeSec = def.Engine.MaxTradeAgeSec
	}
	if c.Engine.MidpointFloor == 0 {
		c.Engine.MidpointFloor = def.Engine.MidpointFloor
	}
	if c.Engine.MidpointCeiling == 0 {
		c.Engine.MidpointCeiling = def.Engine.MidpointCeiling
	}
	if c.Engine.MaxPriceDrift == 0 {
		c.Engine.MaxPriceDrift = def.Engine.MaxPriceDrift
	}
	if c.Engine.MinOrderUSD == 0 {
		c.Engine.MinOrderUSD = def.Engine.MinOrderUSD
	}
	if c.Engine.BalancePollSec == 0 {
		c.Engine.BalancePollSec = def.Engine.BalancePollSec
	}
	if c.Engine.RecoveryPollSec == 0 {
		c.Engine.RecoveryPollSec = def.Engine.RecoveryPollSec
	}
	if c.Engine.BalanceThresholdUSD == 0 {
		c.Engine.BalanceThresholdUSD = def.Engine.BalanceThresholdUSD
	}

	if c.Chain.RPCURL == "" {
		c.Chain.RPCURL = def.Chain.RPCURL
	}
	if c.Chain.RPCFallbackURL == "" {
		c.Chain.RPCFallbackURL = def.Chain.RPCFallbackURL
	}
	if c.Chain.USDCAddress == "" {
		c.Chain.USDCAddress = def.Chain.USDCAddress
	}

	if c.Clob.BaseURL == "" {
		c.Clob.BaseURL = def.Clob.BaseURL
	}
}
