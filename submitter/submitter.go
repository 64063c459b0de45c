// Package submitter runs the per-chain pipeline that turns a delivered
// AmbPayload into a confirmed on-chain transaction: three chained
// ProcessingQueue stages (evaluate, submit, confirm) driven by a
// dispatcher that consumes the Store's submit-<chainId> channel and
// talks to the chain's Wallet over its request port.
package submitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/hashicorp/go-hclog"

	"github.com/ambridge-relay/relayer/bigint"
	"github.com/ambridge-relay/relayer/contracts"
	"github.com/ambridge-relay/relayer/core"
	"github.com/ambridge-relay/relayer/eth"
	"github.com/ambridge-relay/relayer/evaluator"
	"github.com/ambridge-relay/relayer/queue"
	"github.com/ambridge-relay/relayer/store"
	"github.com/ambridge-relay/relayer/telemetry"
	"github.com/ambridge-relay/relayer/wallet"
)

// Config parametrizes one chain's Submitter.
type Config struct {
	ChainID           uint64
	IncentivesAddress common.Address

	EvaluationDeadline time.Duration
	RetryInterval       time.Duration
	MaxTries            int

	MaxPendingTransactions int

	// GasLimitBuffer is keyed by AMB name, with "default" as fallback, per
	// spec §6's submitter.gasLimitBuffer config shape. It is added to the
	// simulation's gas estimate; the per-AMB adaptive eth.GasLimitHolder,
	// raised after each failed submission, then acts as a floor on that sum.
	GasLimitBuffer map[string]uint64
}

func (c Config) gasLimitBufferFor(amb string) uint64 {
	if buf, ok := c.GasLimitBuffer[amb]; ok {
		return buf
	}

	return c.GasLimitBuffer["default"]
}

// submitResult is what the SubmitQueue hands to the ConfirmQueue.
type submitResult struct {
	order   core.SubmitOrder
	tx      *types.Transaction
	receipt *types.Receipt
}

// Submitter drives one chain's evaluation → submission → confirmation
// pipeline.
type Submitter struct {
	cfg    Config
	client *ethclient.Client
	escrow *contracts.Escrow
	store  core.Store
	wallet chan<- core.WalletRequest
	logger hclog.Logger

	evalQueue    *queue.ProcessingQueue[core.EvalOrder, core.SubmitOrder]
	submitQueue  *queue.ProcessingQueue[core.SubmitOrder, submitResult]
	confirmQueue *queue.ProcessingQueue[submitResult, struct{}]

	gasLimitMu      sync.Mutex
	gasLimitHolders map[string]*eth.GasLimitHolder

	fatal chan error
}

func New(
	cfg Config, client *ethclient.Client, escrow *contracts.Escrow,
	store core.Store, walletRequests chan<- core.WalletRequest, logger hclog.Logger,
) *Submitter {
	if cfg.MaxPendingTransactions <= 0 {
		cfg.MaxPendingTransactions = 1
	}

	s := &Submitter{
		cfg:             cfg,
		client:          client,
		escrow:          escrow,
		store:           store,
		wallet:          walletRequests,
		logger:          logger,
		gasLimitHolders: make(map[string]*eth.GasLimitHolder),
		fatal:           make(chan error, 1),
	}

	s.evalQueue = queue.NewProcessingQueue[core.EvalOrder, core.SubmitOrder](
		cfg.MaxTries, cfg.RetryInterval, nil, s.handleEval, s.handleEvalFailure, s.onEvalCompletion, logger,
	)
	s.submitQueue = queue.NewProcessingQueue[core.SubmitOrder, submitResult](
		cfg.MaxTries, cfg.RetryInterval, func(o core.SubmitOrder) string { return o.Key() },
		s.handleSubmit, s.handleSubmitFailure, s.onSubmitCompletion, logger,
	)
	s.confirmQueue = queue.NewProcessingQueue[submitResult, struct{}](
		cfg.MaxTries, cfg.RetryInterval, nil, s.handleConfirm, s.handleConfirmFailure, s.onConfirmCompletion, logger,
	)

	return s
}

// Run drives the dispatcher and all three queue workers until ctx is done
// or a fatal condition (a stalled Wallet) is reported.
func (s *Submitter) Run(ctx context.Context) error {
	dispatchErr := make(chan error, 1)

	go func() {
		dispatchErr <- s.store.Subscribe(ctx, store.SubmitChannel(s.cfg.ChainID), s.dispatch)
	}()

	go s.evalQueue.Run()

	for i := 0; i < s.cfg.MaxPendingTransactions; i++ {
		go s.submitQueue.Run()
	}

	go s.confirmQueue.Run()

	defer s.evalQueue.Stop()
	defer s.submitQueue.Stop()
	defer s.confirmQueue.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-dispatchErr:
		return err
	case err := <-s.fatal:
		return err
	}
}

func (s *Submitter) dispatch(payload []byte) {
	var ambPayload core.AmbPayload
	if err := json.Unmarshal(payload, &ambPayload); err != nil {
		s.logger.Error("submitter: could not decode amb payload", "chainId", s.cfg.ChainID, "err", err)

		return
	}

	s.evalQueue.Add(core.EvalOrder{
		Order: core.Order{
			Amb:               ambPayload.Amb,
			MessageIdentifier: ambPayload.MessageIdentifier,
			Message:           ambPayload.Message,
			MessageCtx:        ambPayload.MessageCtx,
		},
		Priority:           ambPayload.Priority,
		EvaluationDeadline: time.Now().Add(s.cfg.EvaluationDeadline).Unix(),
	})
}

func (s *Submitter) handleEval(order core.EvalOrder, retryCount int) (core.SubmitOrder, bool, error) {
	var zero core.SubmitOrder

	bounty, found, err := s.store.GetBounty(order.MessageIdentifier)
	if err != nil {
		return zero, false, fmt.Errorf("submitter: could not look up bounty %s: %w", order.MessageIdentifier, err)
	}

	if !found {
		return zero, false, fmt.Errorf("submitter: bounty %s not yet known", order.MessageIdentifier)
	}

	data, err := s.escrow.PackProcessPacket(order.MessageCtx, order.Message, bounty.RefundGasTo)
	if err != nil {
		return zero, false, fmt.Errorf("submitter: could not pack processPacket call: %w", err)
	}

	gasEstimate, err := s.client.EstimateGas(context.Background(), ethereum.CallMsg{
		To:   &s.cfg.IncentivesAddress,
		Data: data,
	})
	if err != nil {
		s.logger.Info("submitter: simulation failed, dropping order", "messageIdentifier", order.MessageIdentifier, "err", err)

		return zero, false, nil
	}

	priority := order.Priority > 0

	approved := evaluator.ShouldRelay(*bounty, gasEstimate, priority, evaluator.FeeData{})

	telemetry.UpdateSubmitterOrdersEvaluated(s.cfg.ChainID, approved)

	if !approved {
		s.logger.Debug("submitter: bounty underfunded, dropping order", "messageIdentifier", order.MessageIdentifier)

		return zero, false, nil
	}

	gasLimit := gasEstimate + s.cfg.gasLimitBufferFor(order.Amb)
	if floor := s.currentGasLimit(order.Amb); floor > gasLimit {
		gasLimit = floor
	}

	submitOrder := core.SubmitOrder{
		Order:      order.Order,
		IsDelivery: true,
		Priority:   order.Priority,
		TransactionRequest: core.TransactionRequest{
			To:       s.cfg.IncentivesAddress,
			Data:     data,
			GasLimit: gasLimit,
		},
	}

	return submitOrder, true, nil
}

func (s *Submitter) handleEvalFailure(order core.EvalOrder, retryCount int, err error) bool {
	return time.Now().Unix() < order.EvaluationDeadline
}

func (s *Submitter) onEvalCompletion(order core.EvalOrder, success bool, result core.SubmitOrder, retryCount int) {
	if success {
		s.submitQueue.Add(result)
	}
}

func (s *Submitter) handleSubmit(order core.SubmitOrder, retryCount int) (submitResult, bool, error) {
	var zero submitResult

	if retryCount > 0 || order.RequeueCount > 0 {
		to := order.TransactionRequest.To

		_, err := s.client.CallContract(context.Background(), ethereum.CallMsg{
			To:   &to,
			Data: order.TransactionRequest.Data,
		}, nil)
		if err != nil {
			s.logger.Info("submitter: simulation collided, dropping order",
				"messageIdentifier", order.MessageIdentifier, "err", err)

			return zero, false, nil
		}
	}

	resp := make(chan core.WalletResponse, 1)
	req := core.WalletRequest{
		TransactionRequest: order.TransactionRequest,
		Metadata:           order.MessageIdentifier.Hex(),
		Response:           resp,
	}

	select {
	case s.wallet <- req:
	case <-time.After(s.cfg.RetryInterval):
		return zero, false, fmt.Errorf("submitter: wallet request port busy for %s", order.MessageIdentifier)
	}

	walletResp := <-resp

	if errors.Is(walletResp.ConfirmationError, wallet.ErrWalletStalled) || errors.Is(walletResp.SubmissionError, wallet.ErrWalletStalled) {
		select {
		case s.fatal <- wallet.ErrWalletStalled:
		default:
		}

		return zero, false, wallet.ErrWalletStalled
	}

	if walletResp.SubmissionError != nil {
		return zero, false, walletResp.SubmissionError
	}

	if walletResp.ConfirmationError != nil {
		return zero, false, walletResp.ConfirmationError
	}

	return submitResult{order: order, tx: walletResp.Tx, receipt: walletResp.TxReceipt}, true, nil
}

func (s *Submitter) handleSubmitFailure(order core.SubmitOrder, retryCount int, err error) bool {
	if errors.Is(err, wallet.ErrWalletStalled) {
		return false
	}

	s.updateGasLimit(order.Amb, err)

	return true
}

func (s *Submitter) onSubmitCompletion(order core.SubmitOrder, success bool, result submitResult, retryCount int) {
	if success {
		s.confirmQueue.Add(result)
	}
}

func (s *Submitter) handleConfirm(result submitResult, retryCount int) (struct{}, bool, error) {
	if result.order.IsDelivery && result.receipt != nil && result.receipt.EffectiveGasPrice != nil {
		cost := new(big.Int).Mul(new(big.Int).SetUint64(result.receipt.GasUsed), result.receipt.EffectiveGasPrice)

		if err := s.store.RegisterDeliveryCost(result.order.MessageIdentifier, bigint.New(cost)); err != nil {
			return struct{}{}, false, fmt.Errorf("submitter: could not register delivery cost: %w", err)
		}

		weiCost, _ := new(big.Float).SetInt(cost).Float32()
		telemetry.UpdateSubmitterDeliveryCost(s.cfg.ChainID, weiCost)
	}

	return struct{}{}, true, nil
}

func (s *Submitter) handleConfirmFailure(result submitResult, retryCount int, err error) bool {
	return retryCount+1 < s.cfg.MaxTries
}

func (s *Submitter) onConfirmCompletion(result submitResult, success bool, _ struct{}, retryCount int) {
	if !success {
		s.logger.Error("submitter: could not record delivery cost", "messageIdentifier", result.order.MessageIdentifier)
	}
}

func (s *Submitter) gasLimitHolderFor(amb string) *eth.GasLimitHolder {
	if holder, ok := s.gasLimitHolders[amb]; ok {
		return holder
	}

	holder := eth.NewGasLimitHolder(defaultMinGasLimit, defaultMaxGasLimit, defaultGasLimitSteps)
	s.gasLimitHolders[amb] = &holder

	return &holder
}

// currentGasLimit and updateGasLimit serialize every access to the
// per-AMB eth.GasLimitHolder: handleEval reads it from the EvalQueue's
// single goroutine while handleSubmitFailure writes it from however many
// SubmitQueue workers are running concurrently.
func (s *Submitter) currentGasLimit(amb string) uint64 {
	s.gasLimitMu.Lock()
	defer s.gasLimitMu.Unlock()

	return s.gasLimitHolderFor(amb).GetGasLimit()
}

func (s *Submitter) updateGasLimit(amb string, err error) {
	s.gasLimitMu.Lock()
	defer s.gasLimitMu.Unlock()

	s.gasLimitHolderFor(amb).Update(err)
}

const (
	defaultMinGasLimit  = uint64(200_000)
	defaultMaxGasLimit  = uint64(2_000_000)
	defaultGasLimitSteps = uint64(5)
)
