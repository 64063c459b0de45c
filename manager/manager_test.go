package manager

import (
	"path"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/ambridge-relay/relayer/config"
	"github.com/ambridge-relay/relayer/store"
)

const dummyPrivateKey = "be76389107961dfb648c971b1397decc46359492bd0d795c19e7c70afdeab7a9"

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	dir := t.TempDir()

	s, err := store.New(path.Join(dir, "relayer.db"), hclog.NewNullLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

func baseConfig() config.AppConfig {
	return config.AppConfig{
		Relayer: config.RelayerConfig{PrivateKey: dummyPrivateKey},
		Ambs: map[string]config.AmbConfig{
			"mock": {IncentivesAddress: "0x0000000000000000000000000000000000000001", SigningKeyHex: dummyPrivateKey},
		},
		Chains: []config.ChainConfig{
			{ChainID: 1, RPC: "http://127.0.0.1:1"},
		},
	}
}

func TestNewBuildsOneWorkerSetPerChain(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()

	m, err := New(&cfg, newTestStore(t), hclog.NewNullLogger())
	require.NoError(t, err)
	require.Len(t, m.workers, 1)
	require.Equal(t, uint64(1), m.workers[0].chainID)
	require.Contains(t, m.workers[0].collectors, "mock")
}

func TestNewBuildsLayerZeroCollectorWhenConfigured(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	cfg.Ambs["layerzero"] = config.AmbConfig{
		IncentivesAddress: "0x0000000000000000000000000000000000000001",
		EndpointAddress:   "0x0000000000000000000000000000000000000002",
	}

	m, err := New(&cfg, newTestStore(t), hclog.NewNullLogger())
	require.NoError(t, err)
	require.Contains(t, m.workers[0].collectors, "mock")
	require.Contains(t, m.workers[0].collectors, "layerzero")
}

func TestNewFailsWithoutAnyAmbIncentivesAddress(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	cfg.Ambs["mock"] = config.AmbConfig{}

	_, err := New(&cfg, newTestStore(t), hclog.NewNullLogger())
	require.ErrorContains(t, err, "incentivesAddress")
}

func TestNewFailsOnInvalidPrivateKey(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	cfg.Relayer.PrivateKey = "not-hex"

	_, err := New(&cfg, newTestStore(t), hclog.NewNullLogger())
	require.Error(t, err)
}

