// Package clisecrets provides the generate-key command: it creates (or
// reuses) the relayer's signing key inside a secrets manager, the
// counterpart to run-relayer's --secrets-config/--insecure-local-secrets
// flags.
package clisecrets

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ambridge-relay/relayer/common"
	"github.com/ambridge-relay/relayer/eth"
)

const chainKey = "relayer"

type genKeyParams struct {
	secretsConfig string
	dataDir       string
	insecure      bool
	force         bool
}

func (p *genKeyParams) setFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.secretsConfig, "secrets-config", "", "path to a secrets manager config")
	cmd.Flags().StringVar(&p.dataDir, "data-dir", "", "data directory backing a local secrets manager, used with --insecure-local-secrets")
	cmd.Flags().BoolVar(&p.insecure, "insecure-local-secrets", false, "store the generated key in a local, unencrypted secrets store under --data-dir")
	cmd.Flags().BoolVar(&p.force, "force", false, "regenerate the key even if one already exists")
}

func GetGenerateKeyCommand() *cobra.Command {
	params := &genKeyParams{}

	cmd := &cobra.Command{
		Use:   "generate-key",
		Short: "generates (or reuses) the relayer's signing key in a secrets manager",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerateKey(cmd, params)
		},
	}

	params.setFlags(cmd)

	return cmd
}

func runGenerateKey(cmd *cobra.Command, params *genKeyParams) error {
	if params.secretsConfig == "" && !params.insecure {
		return fmt.Errorf("one of --secrets-config or --insecure-local-secrets is required")
	}

	secretsManager, err := common.GetSecretsManager(params.dataDir, params.secretsConfig, params.insecure)
	if err != nil {
		return fmt.Errorf("could not resolve secrets manager: %w", err)
	}

	wallet, err := eth.CreateAndSaveWalletPrivateKey(secretsManager, chainKey, params.force)
	if err != nil {
		return fmt.Errorf("could not create relayer key: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "relayer address: %s\n", wallet.GetAddressHex())

	return nil
}
