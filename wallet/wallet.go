// Package wallet runs the per-chain singleton that funnels every outgoing
// transaction for a chain through a single goroutine, so nonces are
// assigned in a single total order, and carries each transaction through
// confirmation, repricing and (if repricing is exhausted) cancellation.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"

	apexCommon "github.com/ambridge-relay/relayer/common"
	"github.com/ambridge-relay/relayer/core"
	"github.com/ambridge-relay/relayer/eth"
	ethtxhelper "github.com/ambridge-relay/relayer/eth/txhelper"
	"github.com/ambridge-relay/relayer/telemetry"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/hashicorp/go-hclog"
)

const defaultGasLimit = uint64(500_000)

// defaultPriorityAdjustmentFactor is 110, i.e. 1.1x, per spec §4.4.
const defaultPriorityAdjustmentFactor = uint64(110)

var ErrWalletStalled = errors.New("wallet: stalled after a failed cancellation, no new orders accepted")

// Config holds the per-chain gas pricing policy and backpressure limits.
// Percentages follow common.MulPercentage's convention: 110 means 1.10x.
type Config struct {
	ChainID uint64
	IsDynamic bool

	MaxPendingTransactions int
	MaxTries                int

	MaxFeePerGas                   *big.Int
	MaxPriorityFeeAdjustmentFactor  uint64
	MaxAllowedPriorityFeePerGas     *big.Int
	GasPriceAdjustmentFactor        uint64
	MaxAllowedGasPrice              *big.Int
	PriorityAdjustmentFactor        uint64

	LowBalanceWarning *big.Int
}

func (c Config) maxPriorityFeeAdjustmentFactorOrDefault() uint64 {
	if c.MaxPriorityFeeAdjustmentFactor == 0 {
		return 100
	}

	return c.MaxPriorityFeeAdjustmentFactor
}

func (c Config) gasPriceAdjustmentFactorOrDefault() uint64 {
	if c.GasPriceAdjustmentFactor == 0 {
		return 100
	}

	return c.GasPriceAdjustmentFactor
}

func (c Config) priorityAdjustmentFactorOrDefault() uint64 {
	if c.PriorityAdjustmentFactor == 0 {
		return defaultPriorityAdjustmentFactor
	}

	return c.PriorityAdjustmentFactor
}

// Wallet is the single-goroutine transaction funnel for one chain.
type Wallet struct {
	cfg      Config
	client   *ethclient.Client
	txWallet *ethtxhelper.EthTxWallet
	helper   *eth.EthHelperWrapper
	nonces   ethtxhelper.NonceStrategy
	logger   hclog.Logger

	requests chan core.WalletRequest
	pending  chan struct{}

	balanceMu       sync.Mutex
	balanceEstimate *big.Int

	stalled atomic.Bool
}

// New creates a Wallet. helper must have been constructed with
// eth.NewEthHelperWrapperWithWallet(txWallet, ...) so its internal wallet
// matches txWallet.
func New(
	cfg Config, client *ethclient.Client, txWallet *ethtxhelper.EthTxWallet,
	helper *eth.EthHelperWrapper, logger hclog.Logger,
) *Wallet {
	if cfg.MaxPendingTransactions <= 0 {
		cfg.MaxPendingTransactions = 1
	}

	return &Wallet{
		cfg:      cfg,
		client:   client,
		txWallet: txWallet,
		helper:   helper,
		nonces:   ethtxhelper.NonceStrategyFactory(ethtxhelper.NonceInMemoryStrategy),
		logger:   logger,
		requests: make(chan core.WalletRequest),
		pending:  make(chan struct{}, cfg.MaxPendingTransactions),
	}
}

// Requests returns the send side of the Wallet's request port.
func (w *Wallet) Requests() chan<- core.WalletRequest {
	return w.requests
}

// Run processes requests until ctx is done. Queued → Simulated happens
// synchronously in this loop so nonce assignment stays single-ordered;
// Signed+Sent → Pending → Confirmed|TimedOut→Repriced|Cancelled|Failed
// runs in a per-request goroutine, bounded by cfg.MaxPendingTransactions.
func (w *Wallet) Run(ctx context.Context) error {
	if err := w.refreshBalanceEstimate(ctx); err != nil {
		w.logger.Warn("wallet: could not fetch initial balance", "chainId", w.cfg.ChainID, "err", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-w.requests:
			w.handle(ctx, req)
		}
	}
}

func (w *Wallet) handle(ctx context.Context, req core.WalletRequest) {
	if w.stalled.Load() {
		req.Response <- core.WalletResponse{SubmissionError: ErrWalletStalled, Metadata: req.Metadata}

		return
	}

	if err := w.simulate(ctx, req.TransactionRequest); err != nil {
		req.Response <- core.WalletResponse{SubmissionError: fmt.Errorf("wallet: simulation failed: %w", err), Metadata: req.Metadata}

		return
	}

	select {
	case w.pending <- struct{}{}:
	case <-ctx.Done():
		req.Response <- core.WalletResponse{SubmissionError: ctx.Err(), Metadata: req.Metadata}

		return
	}

	addr := w.txWallet.GetAddress()

	nonce, err := w.nonces.GetNextNonce(ctx, w.client, addr)
	if err != nil {
		<-w.pending
		req.Response <- core.WalletResponse{SubmissionError: fmt.Errorf("wallet: could not assign nonce: %w", err), Metadata: req.Metadata}

		return
	}

	go w.submitAndConfirm(ctx, req, addr, nonce)
}

// simulate runs a static call against the pending transaction to catch an
// immediate revert (e.g. a competing relayer already delivered) before a
// nonce is spent on it.
func (w *Wallet) simulate(ctx context.Context, txReq core.TransactionRequest) error {
	to := txReq.To

	_, err := w.client.CallContract(ctx, ethereum.CallMsg{
		From:  w.txWallet.GetAddress(),
		To:    &to,
		Value: txReq.Value.Big(),
		Data:  txReq.Data,
	}, nil)

	return err
}

func (w *Wallet) submitAndConfirm(ctx context.Context, req core.WalletRequest, addr common.Address, nonce uint64) {
	defer func() { <-w.pending }()

	chainID, err := w.client.ChainID(ctx)
	if err != nil {
		w.nonces.UpdateNonce(addr, nonce, false)
		req.Response <- core.WalletResponse{SubmissionError: fmt.Errorf("wallet: could not fetch chain id: %w", err), Metadata: req.Metadata}

		return
	}

	txOpts, err := w.buildTxOpts(ctx, nonce, req.TransactionRequest)
	if err != nil {
		w.nonces.UpdateNonce(addr, nonce, false)
		req.Response <- core.WalletResponse{SubmissionError: fmt.Errorf("wallet: could not price transaction: %w", err), Metadata: req.Metadata}

		return
	}

	maxTries := w.cfg.MaxTries
	if maxTries <= 0 {
		maxTries = 1
	}

	var (
		receipt      *types.Receipt
		confirmedTx  *types.Transaction
		confirmedErr error
	)

	for attempt := 0; attempt < maxTries; attempt++ {
		if attempt > 0 {
			w.reprice(txOpts)

			w.logger.Warn("wallet: transaction timed out, repricing and resubmitting",
				"chainId", w.cfg.ChainID, "nonce", nonce, "attempt", attempt)
		}

		var sentTx *types.Transaction

		receipt, confirmedErr = w.helper.SendTx(ctx, *txOpts, w.capturingSendTxHandler(chainID, req.TransactionRequest, &sentTx))
		if confirmedErr == nil {
			confirmedTx = sentTx

			break
		}

		if !ethtxhelper.IsRetryableEthError(confirmedErr) {
			w.logger.Warn("wallet: transaction failed with a non-retryable error, skipping remaining repricing attempts",
				"chainId", w.cfg.ChainID, "nonce", nonce, "err", confirmedErr)

			break
		}
	}

	if confirmedErr == nil {
		w.nonces.UpdateNonce(addr, nonce, true)
		w.recordConfirmed(receipt)

		req.Response <- core.WalletResponse{Tx: confirmedTx, TxReceipt: receipt, Metadata: req.Metadata}

		return
	}

	w.logger.Warn("wallet: repricing exhausted, attempting cancellation",
		"chainId", w.cfg.ChainID, "nonce", nonce, "err", confirmedErr)

	if cancelErr := w.cancel(ctx, chainID, txOpts); cancelErr != nil {
		w.stalled.Store(true)
		w.nonces.UpdateNonce(addr, nonce, false)
		telemetry.UpdateWalletStalled(w.cfg.ChainID)

		w.logger.Error("wallet: cancellation failed, wallet is stalled",
			"chainId", w.cfg.ChainID, "nonce", nonce, "err", cancelErr)

		req.Response <- core.WalletResponse{ConfirmationError: ErrWalletStalled, Metadata: req.Metadata}

		return
	}

	w.nonces.UpdateNonce(addr, nonce, true)

	req.Response <- core.WalletResponse{ConfirmationError: confirmedErr, Metadata: req.Metadata}
}

// cancel submits a zero-value self-transfer at txOpts.Nonce with gas
// parameters repriced above the stuck transaction's, freeing the nonce.
func (w *Wallet) cancel(ctx context.Context, chainID *big.Int, stuckOpts *bind.TransactOpts) error {
	cancelOpts := &bind.TransactOpts{
		Nonce:     stuckOpts.Nonce,
		GasLimit:  21000,
		GasPrice:  stuckOpts.GasPrice,
		GasFeeCap: stuckOpts.GasFeeCap,
		GasTipCap: stuckOpts.GasTipCap,
		Value:     big.NewInt(0),
	}

	w.reprice(cancelOpts)

	selfTransfer := core.TransactionRequest{To: w.txWallet.GetAddress(), GasLimit: 21000}

	_, err := w.helper.SendTx(ctx, *cancelOpts, w.sendTxHandler(chainID, selfTransfer))

	return err
}

func (w *Wallet) sendTxHandler(chainID *big.Int, txReq core.TransactionRequest) ethtxhelper.SendTxFunc {
	return w.capturingSendTxHandler(chainID, txReq, nil)
}

// capturingSendTxHandler builds, signs and sends the transaction exactly
// like sendTxHandler, additionally stashing the signed transaction in out
// (if non-nil) so the caller can report it back on success.
func (w *Wallet) capturingSendTxHandler(
	chainID *big.Int, txReq core.TransactionRequest, out **types.Transaction,
) ethtxhelper.SendTxFunc {
	return func(txOpts *bind.TransactOpts) (*types.Transaction, error) {
		var tx *types.Transaction

		if w.cfg.IsDynamic {
			tx = ethtxhelper.TxOpts2DynamicFeeTx(txReq.To.Hex(), chainID, txReq.Data, txOpts)
		} else {
			tx = ethtxhelper.TxOpts2LegacyTx(txReq.To.Hex(), txReq.Data, txOpts)
		}

		signedTx, err := w.txWallet.SignTx(chainID, tx)
		if err != nil {
			return nil, fmt.Errorf("wallet: could not sign transaction: %w", err)
		}

		if err := w.client.SendTransaction(txOpts.Context, signedTx); err != nil {
			return nil, fmt.Errorf("wallet: could not send transaction: %w", err)
		}

		if out != nil {
			*out = signedTx
		}

		return signedTx, nil
	}
}

func (w *Wallet) buildTxOpts(ctx context.Context, nonce uint64, txReq core.TransactionRequest) (*bind.TransactOpts, error) {
	gasLimit := txReq.GasLimit
	if gasLimit == 0 {
		gasLimit = defaultGasLimit
	}

	txOpts := &bind.TransactOpts{
		Nonce:    new(big.Int).SetUint64(nonce),
		Value:    txReq.Value.Big(),
		GasLimit: gasLimit,
	}

	if w.cfg.IsDynamic {
		tipCap, err := w.client.SuggestGasTipCap(ctx)
		if err != nil {
			return nil, fmt.Errorf("could not suggest gas tip cap: %w", err)
		}

		tipCap = apexCommon.MulPercentage(tipCap, w.cfg.maxPriorityFeeAdjustmentFactorOrDefault())

		if w.cfg.MaxAllowedPriorityFeePerGas != nil && tipCap.Cmp(w.cfg.MaxAllowedPriorityFeePerGas) > 0 {
			tipCap = w.cfg.MaxAllowedPriorityFeePerGas
		}

		feeCap := w.cfg.MaxFeePerGas
		if feeCap == nil {
			hs, err := w.client.FeeHistory(ctx, 1, nil, nil)
			if err != nil {
				return nil, fmt.Errorf("could not fetch fee history: %w", err)
			}

			feeCap = new(big.Int).Add(hs.BaseFee[len(hs.BaseFee)-1], tipCap)
		}

		txOpts.GasTipCap = tipCap
		txOpts.GasFeeCap = feeCap
	} else {
		gasPrice, err := w.client.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("could not suggest gas price: %w", err)
		}

		gasPrice = apexCommon.MulPercentage(gasPrice, w.cfg.gasPriceAdjustmentFactorOrDefault())

		if w.cfg.MaxAllowedGasPrice != nil && gasPrice.Cmp(w.cfg.MaxAllowedGasPrice) > 0 {
			gasPrice = w.cfg.MaxAllowedGasPrice
		}

		txOpts.GasPrice = gasPrice
	}

	return txOpts, nil
}

// reprice scales txOpts' gas parameters by cfg.PriorityAdjustmentFactor
// in place, clamped by the configured maximums.
func (w *Wallet) reprice(txOpts *bind.TransactOpts) {
	factor := w.cfg.priorityAdjustmentFactorOrDefault()

	if w.cfg.IsDynamic {
		txOpts.GasTipCap = apexCommon.MulPercentage(txOpts.GasTipCap, factor)
		txOpts.GasFeeCap = apexCommon.MulPercentage(txOpts.GasFeeCap, factor)

		if w.cfg.MaxAllowedPriorityFeePerGas != nil && txOpts.GasTipCap.Cmp(w.cfg.MaxAllowedPriorityFeePerGas) > 0 {
			txOpts.GasTipCap = w.cfg.MaxAllowedPriorityFeePerGas
		}
	} else {
		txOpts.GasPrice = apexCommon.MulPercentage(txOpts.GasPrice, factor)

		if w.cfg.MaxAllowedGasPrice != nil && txOpts.GasPrice.Cmp(w.cfg.MaxAllowedGasPrice) > 0 {
			txOpts.GasPrice = w.cfg.MaxAllowedGasPrice
		}
	}
}

func (w *Wallet) refreshBalanceEstimate(ctx context.Context) error {
	balance, err := w.client.BalanceAt(ctx, w.txWallet.GetAddress(), nil)
	if err != nil {
		return err
	}

	w.balanceMu.Lock()
	w.balanceEstimate = balance
	w.balanceMu.Unlock()

	return nil
}

func (w *Wallet) recordConfirmed(receipt *types.Receipt) {
	if receipt == nil || receipt.EffectiveGasPrice == nil {
		return
	}

	cost := new(big.Int).Mul(new(big.Int).SetUint64(receipt.GasUsed), receipt.EffectiveGasPrice)

	w.balanceMu.Lock()
	defer w.balanceMu.Unlock()

	if w.balanceEstimate == nil {
		return
	}

	w.balanceEstimate = new(big.Int).Sub(w.balanceEstimate, cost)

	weiBalance, _ := new(big.Float).SetInt(w.balanceEstimate).Float32()
	telemetry.UpdateWalletBalanceEstimate(w.cfg.ChainID, weiBalance)

	if w.cfg.LowBalanceWarning != nil && w.balanceEstimate.Cmp(w.cfg.LowBalanceWarning) < 0 {
		w.logger.Warn("wallet: balance estimate below low balance warning threshold",
			"chainId", w.cfg.ChainID, "balance", w.balanceEstimate.String(), "threshold", w.cfg.LowBalanceWarning.String())
	}
}

// BalanceEstimate returns the Wallet's locally tracked balance estimate.
func (w *Wallet) BalanceEstimate() *big.Int {
	w.balanceMu.Lock()
	defer w.balanceMu.Unlock()

	if w.balanceEstimate == nil {
		return nil
	}

	return new(big.Int).Set(w.balanceEstimate)
}
