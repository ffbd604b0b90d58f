// Package config loads and validates the gridpot service configuration.
// All game constants are fixed here once; bad constants are rejected at
// startup, never at call time.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// GameConfig holds the immutable game constants.
type GameConfig struct {
	Width             int    `json:"width"`
	Height            int    `json:"height"`
	InitialPrice      uint64 `json:"initial_price"` // smallest currency unit
	PriceNumerator    uint64 `json:"price_numerator"`
	PriceDenominator  uint64 `json:"price_denominator"`
	OwnerPct          uint64 `json:"owner_pct"`
	PoolPct           uint64 `json:"pool_pct"`
	OperatorPct       uint64 `json:"operator_pct"`
	InactivitySeconds int64  `json:"inactivity_seconds"`
	Operator          string `json:"operator"` // address receiving the fee
}

// Window returns the inactivity window as a duration.
func (g GameConfig) Window() time.Duration {
	return time.Duration(g.InactivitySeconds) * time.Second
}

// GenesisConfig describes the initial account balances on a fresh DB.
type GenesisConfig struct {
	Alloc map[string]uint64 `json:"alloc"` // address → initial balance
}

// TLSConfig points at PEM files for serving RPC over TLS. CACert is
// optional; when set, clients must present a certificate signed by it.
type TLSConfig struct {
	CACert     string `json:"ca_cert"`
	ServerCert string `json:"server_cert"`
	ServerKey  string `json:"server_key"`
}

// Config holds all service configuration.
type Config struct {
	DataDir      string        `json:"data_dir"`
	RPCPort      int           `json:"rpc_port"`
	RPCAuthToken string        `json:"rpc_auth_token"` // empty → no auth
	SweepSeconds int64         `json:"sweep_seconds"`  // cycle sweeper poll interval
	TLS          *TLSConfig    `json:"tls,omitempty"`
	Game         GameConfig    `json:"game"`
	Genesis      GenesisConfig `json:"genesis"`
}

// DefaultConfig returns a single-node development configuration: a 32x32
// grid, 10% escalation, the canonical 84/15/1 split, and a 24-hour
// inactivity window.
func DefaultConfig() *Config {
	return &Config{
		DataDir:      "./data",
		RPCPort:      8790,
		SweepSeconds: 5,
		Game: GameConfig{
			Width:             32,
			Height:            32,
			InitialPrice:      100,
			PriceNumerator:    110,
			PriceDenominator:  100,
			OwnerPct:          84,
			PoolPct:           15,
			OperatorPct:       1,
			InactivitySeconds: 86_400,
		},
		Genesis: GenesisConfig{Alloc: map[string]uint64{}},
	}
}

// Validate rejects configurations that would violate ledger invariants.
func (c *Config) Validate() error {
	g := c.Game
	if g.Width <= 0 || g.Height <= 0 {
		return fmt.Errorf("grid %dx%d: dimensions must be positive", g.Width, g.Height)
	}
	if g.InitialPrice == 0 {
		return fmt.Errorf("initial_price must be > 0")
	}
	if g.PriceDenominator == 0 || g.PriceNumerator <= g.PriceDenominator {
		return fmt.Errorf("price multiplier %d/%d must be > 1", g.PriceNumerator, g.PriceDenominator)
	}
	if sum := g.OwnerPct + g.PoolPct + g.OperatorPct; sum != 100 {
		return fmt.Errorf("split %d/%d/%d sums to %d, must be exactly 100",
			g.OwnerPct, g.PoolPct, g.OperatorPct, sum)
	}
	if g.InactivitySeconds <= 0 {
		return fmt.Errorf("inactivity_seconds must be > 0")
	}
	if g.Operator == "" {
		return fmt.Errorf("game.operator address is required")
	}
	if c.SweepSeconds <= 0 {
		return fmt.Errorf("sweep_seconds must be > 0")
	}
	return nil
}

// Load reads a JSON config file from path, applies it over the defaults,
// and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to path as formatted JSON.
func Save(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
