package clirelayer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateFlagsRequiresConfigOrConfigDir(t *testing.T) {
	t.Parallel()

	rp := &runParams{}
	require.Error(t, rp.validateFlags())

	rp = &runParams{config: "config.json"}
	require.NoError(t, rp.validateFlags())

	rp = &runParams{configDir: "."}
	require.NoError(t, rp.validateFlags())
}

func TestValidateFlagsRejectsBothSecretSources(t *testing.T) {
	t.Parallel()

	rp := &runParams{configDir: ".", insecureLocalSecrets: true, secretsConfig: "secrets.json"}
	require.Error(t, rp.validateFlags())
}

func TestUsesSecretsManager(t *testing.T) {
	t.Parallel()

	require.False(t, (&runParams{configDir: "."}).usesSecretsManager())
	require.True(t, (&runParams{insecureLocalSecrets: true}).usesSecretsManager())
	require.True(t, (&runParams{secretsConfig: "secrets.json"}).usesSecretsManager())
}
