// Package manager wires one Store and, per configured chain, a Monitor,
// Getter, one Collector per enabled AMB, a Wallet and a Submitter into a
// running relayer, the way relayer_manager.go wires one Relayer per
// configured chain in the teacher.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/hashicorp/go-hclog"

	"github.com/ambridge-relay/relayer/api"
	"github.com/ambridge-relay/relayer/collector"
	"github.com/ambridge-relay/relayer/config"
	"github.com/ambridge-relay/relayer/contracts"
	"github.com/ambridge-relay/relayer/core"
	"github.com/ambridge-relay/relayer/eth"
	ethtxhelper "github.com/ambridge-relay/relayer/eth/txhelper"
	"github.com/ambridge-relay/relayer/getter"
	"github.com/ambridge-relay/relayer/monitor"
	"github.com/ambridge-relay/relayer/submitter"
	"github.com/ambridge-relay/relayer/telemetry"
	"github.com/ambridge-relay/relayer/wallet"
)

// chainWorkers is everything Run spawns for one configured chain.
type chainWorkers struct {
	chainID   uint64
	monitor   *monitor.Monitor
	getter    *getter.Getter
	collectors map[string]collector.Collector
	wallet    *wallet.Wallet
	submitter *submitter.Submitter
}

// Manager owns the Store and every chain's worker set, and drives them
// all from a single ctx until it is cancelled or a worker returns a
// fatal error.
type Manager struct {
	store     core.Store
	logger    hclog.Logger
	workers   []chainWorkers
	api       *api.Server
	telemetry *telemetry.Telemetry
}

// New dials an ethclient and constructs every worker for every chain in
// cfg, returning a Manager ready for Run. The private key in
// cfg.Relayer.PrivateKey signs every chain's outgoing transactions.
func New(cfg *config.AppConfig, store core.Store, logger hclog.Logger) (*Manager, error) {
	txWallet, err := ethtxhelper.NewEthTxWallet(cfg.Relayer.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("manager: invalid relayer private key: %w", err)
	}

	return NewWithWallet(cfg, txWallet, store, logger)
}

// NewWithWallet is New with the signing wallet supplied by the caller
// instead of derived from cfg.Relayer.PrivateKey, for callers that resolve
// the key through a secrets manager instead of the plaintext config field.
func NewWithWallet(
	cfg *config.AppConfig, txWallet *ethtxhelper.EthTxWallet, store core.Store, logger hclog.Logger,
) (*Manager, error) {
	m := &Manager{
		store:     store,
		logger:    logger,
		api:       api.New(api.Config{Addr: cfg.Api.Addr}, store, logger.Named("api")),
		telemetry: telemetry.New(telemetry.Config{PrometheusAddr: cfg.Telemetry.PrometheusAddr}, logger.Named("telemetry")),
	}

	for _, chainCfg := range cfg.Chains {
		chainLogger := logger.Named(fmt.Sprintf("chain-%d", chainCfg.ChainID))

		workers, err := newChainWorkers(cfg, chainCfg, txWallet, store, chainLogger)
		if err != nil {
			return nil, fmt.Errorf("manager: chain %d: %w", chainCfg.ChainID, err)
		}

		m.workers = append(m.workers, *workers)
	}

	return m, nil
}

func newChainWorkers(
	cfg *config.AppConfig, chainCfg config.ChainConfig,
	txWallet *ethtxhelper.EthTxWallet, store core.Store, logger hclog.Logger,
) (*chainWorkers, error) {
	client, err := ethclient.Dial(chainCfg.RPC)
	if err != nil {
		return nil, fmt.Errorf("could not dial rpc %q: %w", chainCfg.RPC, err)
	}

	escrow, err := contracts.NewEscrow()
	if err != nil {
		return nil, err
	}

	getterDefaults := cfg.GetterFor(chainCfg)

	incentivesAddress, err := primaryIncentivesAddress(cfg, chainCfg)
	if err != nil {
		return nil, err
	}

	mon := monitor.New(chainCfg.ChainID, client, getterDefaults.ProcessingInterval, logger.Named("monitor"))

	chainGetter := getter.New(getter.Config{
		ChainID:            chainCfg.ChainID,
		IncentivesAddress:  incentivesAddress,
		MaxBlocks:          getterDefaults.MaxBlocks,
		ProcessingInterval: getterDefaults.ProcessingInterval,
		RetryInterval:      getterDefaults.RetryInterval,
		StartingBlock:      getterDefaults.StartingBlock,
		StoppingBlock:      getterDefaults.StoppingBlock,
	}, client, escrow, store, logger.Named("getter"))

	collectors, err := buildCollectors(cfg, chainCfg, getterDefaults, client, store, logger)
	if err != nil {
		return nil, err
	}

	submitterDefaults := cfg.SubmitterFor(chainCfg)

	helperOpts := []ethtxhelper.TxRelayerOption{
		ethtxhelper.WithClient(client),
		ethtxhelper.WithDynamicTx(submitterDefaults.IsDynamic),
	}

	if submitterDefaults.ReceiptWaitTime > 0 {
		helperOpts = append(helperOpts, ethtxhelper.WithReceiptWaitTime(submitterDefaults.ReceiptWaitTime))
	}

	if submitterDefaults.ReceiptMaxRetries > 0 {
		helperOpts = append(helperOpts, ethtxhelper.WithNumRetries(submitterDefaults.ReceiptMaxRetries))
	}

	helper := eth.NewEthHelperWrapperWithWallet(txWallet, logger.Named("txhelper"), helperOpts...)

	chainWallet := wallet.New(wallet.Config{
		ChainID:                        chainCfg.ChainID,
		IsDynamic:                      submitterDefaults.IsDynamic,
		MaxPendingTransactions:         submitterDefaults.MaxPendingTransactions,
		MaxTries:                       submitterDefaults.MaxTries,
		MaxFeePerGas:                   submitterDefaults.MaxFeePerGas,
		MaxPriorityFeeAdjustmentFactor: submitterDefaults.MaxPriorityFeeAdjustmentFactor,
		MaxAllowedPriorityFeePerGas:    submitterDefaults.MaxAllowedPriorityFeePerGas,
		GasPriceAdjustmentFactor:       submitterDefaults.GasPriceAdjustmentFactor,
		MaxAllowedGasPrice:             submitterDefaults.MaxAllowedGasPrice,
		PriorityAdjustmentFactor:       submitterDefaults.PriorityAdjustmentFactor,
		LowBalanceWarning:              submitterDefaults.LowBalanceWarning,
	}, client, txWallet, helper, logger.Named("wallet"))

	chainSubmitter := submitter.New(submitter.Config{
		ChainID:                chainCfg.ChainID,
		IncentivesAddress:      incentivesAddress,
		EvaluationDeadline:     submitterDefaults.NewOrdersDelay,
		RetryInterval:          submitterDefaults.RetryInterval,
		MaxTries:               submitterDefaults.MaxTries,
		MaxPendingTransactions: submitterDefaults.MaxPendingTransactions,
		GasLimitBuffer:         submitterDefaults.GasLimitBuffer,
	}, client, escrow, store, chainWallet.Requests(), logger.Named("submitter"))

	return &chainWorkers{
		chainID:    chainCfg.ChainID,
		monitor:    mon,
		getter:     chainGetter,
		collectors: collectors,
		wallet:     chainWallet,
		submitter:  chainSubmitter,
	}, nil
}

// primaryIncentivesAddress resolves the escrow address used by the Getter
// and Submitter for a chain: the incentivesAddress of an enabled AMB that
// has one, taken in map iteration order (no particular AMB is preferred),
// since spec §6 requires every enabled AMB to share one escrow per chain.
func primaryIncentivesAddress(cfg *config.AppConfig, chainCfg config.ChainConfig) (common.Address, error) {
	for amb := range cfg.Ambs {
		ambCfg, ok := cfg.AmbFor(chainCfg, amb)
		if ok && ambCfg.IncentivesAddress != "" {
			return common.HexToAddress(ambCfg.IncentivesAddress), nil
		}
	}

	return common.Address{}, fmt.Errorf("no enabled amb carries an incentivesAddress")
}

func buildCollectors(
	cfg *config.AppConfig, chainCfg config.ChainConfig, getterDefaults config.GetterDefaults,
	client *ethclient.Client, store core.Store, logger hclog.Logger,
) (map[string]collector.Collector, error) {
	collectors := make(map[string]collector.Collector, len(cfg.Ambs))

	for name := range cfg.Ambs {
		ambCfg, ok := cfg.AmbFor(chainCfg, name)
		if !ok {
			continue
		}

		c, err := newCollector(collector.Kind(name), ambCfg, chainCfg, getterDefaults, client, store, logger.Named("collector."+name))
		if err != nil {
			return nil, fmt.Errorf("amb %q: %w", name, err)
		}

		collectors[name] = c
	}

	return collectors, nil
}

func newCollector(
	kind collector.Kind, ambCfg config.AmbConfig, chainCfg config.ChainConfig, getterDefaults config.GetterDefaults,
	client *ethclient.Client, store core.Store, logger hclog.Logger,
) (collector.Collector, error) {
	switch kind {
	case collector.KindMock:
		return collector.New(kind, collector.MockConfig{
			ChainID:            chainCfg.ChainID,
			IncentivesAddress:  common.HexToAddress(ambCfg.IncentivesAddress),
			SigningKeyHex:      ambCfg.SigningKeyHex,
			MaxBlocks:          getterDefaults.MaxBlocks,
			ProcessingInterval: getterDefaults.ProcessingInterval,
			RetryInterval:      getterDefaults.RetryInterval,
			StartingBlock:      getterDefaults.StartingBlock,
			StoppingBlock:      getterDefaults.StoppingBlock,
		}, client, store, logger)
	case collector.KindLayerZero:
		return collector.New(kind, collector.LayerZeroConfig{
			ChainID:            chainCfg.ChainID,
			EndpointAddress:    common.HexToAddress(ambCfg.EndpointAddress),
			IncentivesAddress:  common.HexToAddress(ambCfg.IncentivesAddress),
			MaxBlocks:          getterDefaults.MaxBlocks,
			ProcessingInterval: getterDefaults.ProcessingInterval,
			RetryInterval:      getterDefaults.RetryInterval,
			StartingBlock:      getterDefaults.StartingBlock,
			StoppingBlock:      getterDefaults.StoppingBlock,
		}, client, store, logger)
	default:
		return nil, fmt.Errorf("unknown amb kind %q", kind)
	}
}

// Run starts every chain's workers and blocks until ctx is done or any
// worker returns a non-nil error, in which case ctx is cancelled for the
// rest and the first error is returned.
func (m *Manager) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := m.telemetry.Start(); err != nil {
		return fmt.Errorf("manager: telemetry: %w", err)
	}
	defer m.telemetry.Close(context.Background()) //nolint:errcheck

	if err := m.api.Start(); err != nil {
		return fmt.Errorf("manager: api: %w", err)
	}
	defer m.api.Close(context.Background()) //nolint:errcheck

	errCh := make(chan error, 1)

	var wg sync.WaitGroup

	report := func(err error) {
		if err == nil || errors.Is(err, context.Canceled) {
			return
		}

		select {
		case errCh <- err:
			cancel()
		default:
		}
	}

	for _, w := range m.workers {
		w := w

		monitorCh := w.monitor.Subscribe(runCtx)

		wg.Add(1)
		go func() { defer wg.Done(); report(w.monitor.Run(runCtx)) }()

		wg.Add(1)
		go func() { defer wg.Done(); report(w.getter.Run(runCtx, monitorCh)) }()

		for name, c := range w.collectors {
			name, c := name, c

			ambMonitorCh := w.monitor.Subscribe(runCtx)

			wg.Add(1)
			go func() {
				defer wg.Done()

				if err := c.Run(runCtx, ambMonitorCh); err != nil {
					report(fmt.Errorf("collector %q: %w", name, err))
				}
			}()
		}

		wg.Add(1)
		go func() { defer wg.Done(); report(w.wallet.Run(runCtx)) }()

		wg.Add(1)
		go func() { defer wg.Done(); report(w.submitter.Run(runCtx)) }()
	}

	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
		return ctx.Err()
	}
}
