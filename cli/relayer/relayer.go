package clirelayer

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/ambridge-relay/relayer/common"
	"github.com/ambridge-relay/relayer/config"
	"github.com/ambridge-relay/relayer/eth"
	"github.com/ambridge-relay/relayer/manager"
	"github.com/ambridge-relay/relayer/store"
)

const secretsManagerChainKey = "relayer"

var runParamsData = &runParams{}

func GetRunRelayerCommand() *cobra.Command {
	runCmd := &cobra.Command{
		Use:     "run-relayer",
		Short:   "runs relayer component",
		PreRunE: runPreRun,
		RunE:    runCommand,
	}

	runParamsData.setFlags(runCmd)

	return runCmd
}

func runPreRun(_ *cobra.Command, _ []string) error {
	return runParamsData.validateFlags()
}

func runCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(runParamsData.config, runParamsData.configDir)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "relayer",
		Level:  hclog.LevelFromString(cfg.Relayer.LogLevel),
		Output: cmd.ErrOrStderr(),
	})

	dbsPath := cfg.Relayer.DbsPath
	if dbsPath == "" {
		dbsPath = "."
	}

	st, err := store.New(filepath.Join(dbsPath, "relayer.db"), logger.Named("store"))
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	var mgr *manager.Manager

	if runParamsData.usesSecretsManager() {
		secretsManager, err := common.GetSecretsManager(
			runParamsData.dataDir, runParamsData.secretsConfig, runParamsData.insecureLocalSecrets,
		)
		if err != nil {
			return fmt.Errorf("failed to resolve secrets manager: %w", err)
		}

		txWallet, err := eth.GetWalletPrivateKey(secretsManager, secretsManagerChainKey)
		if err != nil {
			return fmt.Errorf("failed to load relayer private key from secrets manager: %w", err)
		}

		mgr, err = manager.NewWithWallet(cfg, txWallet, st, logger)
		if err != nil {
			return fmt.Errorf("failed to build relayer: %w", err)
		}
	} else {
		mgr, err = manager.New(cfg, st, logger)
		if err != nil {
			return fmt.Errorf("failed to build relayer: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- mgr.Run(ctx) }()

	signalChannel := make(chan os.Signal, 1)
	signal.Notify(signalChannel, os.Interrupt, syscall.SIGTERM)

	select {
	case <-signalChannel:
		logger.Info("shutdown signal received")
		cancel()

		return <-runErr
	case err := <-runErr:
		return err
	}
}
