package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// PoolConfig seeds the interest-rate curve applied when the pool is first
// initialised.
type PoolConfig struct {
	Admin                 string `toml:"Admin"`
	BaseBps               uint64 `toml:"BaseBps"`
	OptimalUtilizationBps uint64 `toml:"OptimalUtilizationBps"`
	Slope1Bps             uint64 `toml:"Slope1Bps"`
	Slope2Bps             uint64 `toml:"Slope2Bps"`
}

// AssetConfig registers a collateral asset on a source chain at startup.
type AssetConfig struct {
	ChainID                    uint64 `toml:"ChainID"`
	Name                       string `toml:"Name"`
	Decimals                   uint8  `toml:"Decimals"`
	CollateralizationFactorBps uint64 `toml:"CollateralizationFactorBps"`
}

// OracleConfig bounds how old a price quote may be before it is refused.
type OracleConfig struct {
	MaxQuoteAgeMillis uint64 `toml:"MaxQuoteAgeMillis"`
}

// LogConfig controls optional rotated file output alongside stdout.
type LogConfig struct {
	FilePath   string `toml:"FilePath"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

type Config struct {
	RPCAddress         string        `toml:"RPCAddress"`
	DataDir            string        `toml:"DataDir"`
	Environment        string        `toml:"Environment"`
	RateLimitPerMinute float64       `toml:"RateLimitPerMinute"`
	RateLimitBurst     int           `toml:"RateLimitBurst"`
	Pool               PoolConfig    `toml:"Pool"`
	Oracle             OracleConfig  `toml:"Oracle"`
	Log                LogConfig     `toml:"Log"`
	SupportedChains    []uint64      `toml:"SupportedChains"`
	Assets             []AssetConfig `toml:"Assets"`
}

// Load reads the configuration from the given path, writing a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = ":8080"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./crosslend-data"
	}
	if strings.TrimSpace(c.Environment) == "" {
		c.Environment = "local"
	}
	if c.Oracle.MaxQuoteAgeMillis == 0 {
		c.Oracle.MaxQuoteAgeMillis = 60_000
	}
	if c.SupportedChains == nil {
		c.SupportedChains = []uint64{}
	}
	if c.Assets == nil {
		c.Assets = []AssetConfig{}
	}
}

// Validate rejects configurations that the engines would refuse at startup.
func (c *Config) Validate() error {
	if c.Pool.BaseBps > 10_000 {
		return fmt.Errorf("config: pool base rate %d exceeds 10000 bps", c.Pool.BaseBps)
	}
	if c.Pool.OptimalUtilizationBps > 10_000 {
		return fmt.Errorf("config: pool kink %d exceeds 10000 bps", c.Pool.OptimalUtilizationBps)
	}
	chains := make(map[uint64]struct{}, len(c.SupportedChains))
	for _, id := range c.SupportedChains {
		chains[id] = struct{}{}
	}
	for _, asset := range c.Assets {
		if strings.TrimSpace(asset.Name) == "" {
			return fmt.Errorf("config: asset on chain %d has no name", asset.ChainID)
		}
		if asset.CollateralizationFactorBps > 10_000 {
			return fmt.Errorf("config: asset %s factor %d exceeds 10000 bps", asset.Name, asset.CollateralizationFactorBps)
		}
		if _, ok := chains[asset.ChainID]; !ok {
			return fmt.Errorf("config: asset %s references unsupported chain %d", asset.Name, asset.ChainID)
		}
	}
	return nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:         ":8080",
		DataDir:            "./crosslend-data",
		Environment:        "local",
		RateLimitPerMinute: 600,
		RateLimitBurst:     20,
		Pool: PoolConfig{
			BaseBps:               200,
			OptimalUtilizationBps: 8000,
			Slope1Bps:             400,
			Slope2Bps:             6000,
		},
		Oracle:          OracleConfig{MaxQuoteAgeMillis: 60_000},
		SupportedChains: []uint64{},
		Assets:          []AssetConfig{},
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
