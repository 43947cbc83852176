package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.RPCAddress)
	require.Equal(t, uint64(60_000), cfg.Oracle.MaxQuoteAgeMillis)
	require.FileExists(t, path)

	// Reloading the written file round-trips.
	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.Pool, reloaded.Pool)
	require.Equal(t, cfg.RateLimitPerMinute, reloaded.RateLimitPerMinute)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
RPCAddress = ""

[Pool]
BaseBps = 500
OptimalUtilizationBps = 8000
Slope1Bps = 400
Slope2Bps = 6000
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.RPCAddress)
	require.Equal(t, "local", cfg.Environment)
	require.Equal(t, uint64(60_000), cfg.Oracle.MaxQuoteAgeMillis)
	require.NotNil(t, cfg.SupportedChains)
}

func TestValidateRejectsBadCurve(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[Pool]
BaseBps = 20000
`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestValidateRejectsAssetOnUnknownChain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
SupportedChains = [7]

[[Assets]]
ChainID = 9
Name = "WSOL"
Decimals = 9
CollateralizationFactorBps = 8000
`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestValidateRejectsOverScaleFactor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
SupportedChains = [7]

[[Assets]]
ChainID = 7
Name = "WSOL"
Decimals = 9
CollateralizationFactorBps = 10001
`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
