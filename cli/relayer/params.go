package clirelayer

import (
	"fmt"

	"github.com/spf13/cobra"
)

const (
	configFlag         = "config"
	configDirFlag      = "config-dir"
	secretsConfigFlag  = "secrets-config"
	dataDirFlag        = "data-dir"
	insecureSecretsFlag = "insecure-local-secrets"

	configFlagDesc    = "path to a specific config json file, overriding config-dir/NODE_ENV resolution"
	configDirFlagDesc = "directory to resolve config.<NODE_ENV>.json from"
	secretsConfigFlagDesc = "path to a secrets manager config, used to resolve the relayer private key instead of relayer.privateKey"
	dataDirFlagDesc       = "data directory backing a local secrets manager, used with --" + insecureSecretsFlag
	insecureSecretsFlagDesc = "allow resolving the relayer private key from a local, unencrypted secrets store under --" + dataDirFlag

	defaultConfigDir = "."
)

type runParams struct {
	config    string
	configDir string

	secretsConfig        string
	dataDir              string
	insecureLocalSecrets bool
}

func (rp *runParams) validateFlags() error {
	if rp.config == "" && rp.configDir == "" {
		return fmt.Errorf("one of --%s or --%s is required", configFlag, configDirFlag)
	}

	if rp.insecureLocalSecrets && rp.secretsConfig != "" {
		return fmt.Errorf("--%s and --%s are mutually exclusive", insecureSecretsFlag, secretsConfigFlag)
	}

	return nil
}

// usesSecretsManager reports whether the relayer private key should be
// resolved through a secrets manager instead of relayer.privateKey.
func (rp *runParams) usesSecretsManager() bool {
	return rp.secretsConfig != "" || rp.insecureLocalSecrets
}

func (rp *runParams) setFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&rp.config, configFlag, "", configFlagDesc)
	cmd.Flags().StringVar(&rp.configDir, configDirFlag, defaultConfigDir, configDirFlagDesc)
	cmd.Flags().StringVar(&rp.secretsConfig, secretsConfigFlag, "", secretsConfigFlagDesc)
	cmd.Flags().StringVar(&rp.dataDir, dataDirFlag, "", dataDirFlagDesc)
	cmd.Flags().BoolVar(&rp.insecureLocalSecrets, insecureSecretsFlag, false, insecureSecretsFlagDesc)
}
