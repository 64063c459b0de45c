package config

import (
	"encoding/json"
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir string, name string, cfg AppConfig) {
	t.Helper()

	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path.Join(dir, name), data, 0o600))
}

func minimalConfig() AppConfig {
	return AppConfig{
		Relayer: RelayerConfig{PrivateKey: "0xabc"},
		Ambs:    map[string]AmbConfig{"mock": {IncentivesAddress: "0x01"}},
		Chains:  []ChainConfig{{ChainID: 1, RPC: "http://localhost:8545"}},
	}
}

func TestLoadReadsConfigForNodeEnv(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.staging.json", minimalConfig())

	t.Setenv("NODE_ENV", "staging")
	t.Setenv("USE_DOCKER", "")

	cfg, err := Load("", dir)
	require.NoError(t, err)
	require.Equal(t, "0xabc", cfg.Relayer.PrivateKey)
	require.Len(t, cfg.Chains, 1)
}

func TestLoadDefaultsToPlainConfigJSONWithoutNodeEnv(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.json", minimalConfig())

	t.Setenv("NODE_ENV", "")

	cfg, err := Load("", dir)
	require.NoError(t, err)
	require.Equal(t, uint64(1), cfg.Chains[0].ChainID)
}

func TestLoadRejectsMissingPrivateKey(t *testing.T) {
	dir := t.TempDir()
	cfg := minimalConfig()
	cfg.Relayer.PrivateKey = ""
	writeConfig(t, dir, "config.json", cfg)

	t.Setenv("NODE_ENV", "")

	_, err := Load("", dir)
	require.ErrorContains(t, err, "privateKey")
}

func TestLoadRejectsDuplicateChainIDs(t *testing.T) {
	dir := t.TempDir()
	cfg := minimalConfig()
	cfg.Chains = append(cfg.Chains, ChainConfig{ChainID: 1, RPC: "http://localhost:9999"})
	writeConfig(t, dir, "config.json", cfg)

	t.Setenv("NODE_ENV", "")

	_, err := Load("", dir)
	require.ErrorContains(t, err, "duplicate")
}

func TestLoadSetsDockerDbsPathWhenUnset(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.json", minimalConfig())

	t.Setenv("NODE_ENV", "")
	t.Setenv("USE_DOCKER", "1")

	cfg, err := Load("", dir)
	require.NoError(t, err)
	require.Equal(t, "/data/", cfg.Relayer.DbsPath)
}

func TestAmbForPrefersChainOverride(t *testing.T) {
	cfg := AppConfig{
		Ambs: map[string]AmbConfig{"mock": {IncentivesAddress: "0xglobal"}},
	}
	chain := ChainConfig{
		Ambs: map[string]AmbConfig{"mock": {IncentivesAddress: "0xoverride"}},
	}

	resolved, ok := cfg.AmbFor(chain, "mock")
	require.True(t, ok)
	require.Equal(t, "0xoverride", resolved.IncentivesAddress)
}

func TestAmbForFallsBackToGlobal(t *testing.T) {
	cfg := AppConfig{
		Ambs: map[string]AmbConfig{"mock": {IncentivesAddress: "0xglobal"}},
	}

	resolved, ok := cfg.AmbFor(ChainConfig{}, "mock")
	require.True(t, ok)
	require.Equal(t, "0xglobal", resolved.IncentivesAddress)
}

func TestGetterForFallsBackToRelayerDefaults(t *testing.T) {
	cfg := AppConfig{Relayer: RelayerConfig{Getter: GetterDefaults{MaxBlocks: 500}}}

	require.Equal(t, uint64(500), cfg.GetterFor(ChainConfig{}).MaxBlocks)

	override := GetterDefaults{MaxBlocks: 10}
	require.Equal(t, uint64(10), cfg.GetterFor(ChainConfig{Getter: &override}).MaxBlocks)
}
