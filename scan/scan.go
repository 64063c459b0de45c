// Package scan holds the block-window log-scanning loop shared by the
// Getter and every Collector: wait for the chain Monitor's first tip,
// then repeatedly filter a bounded [fromBlock, toBlock] window and hand
// each matching log to a caller-supplied handler, one window of at most
// maxBlocks+1 blocks (toBlock = fromBlock+maxBlocks) per tick, with
// infinite retry on transport error. The teacher's
// oracle_eth/chain and oracle_cardano/chain packages each hand-roll a
// near-identical loop per chain type; this factors the loop out once.
package scan

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/hashicorp/go-hclog"
	"github.com/sethvargo/go-retry"

	"github.com/ambridge-relay/relayer/core"
)

// Config parametrizes a single scan loop.
type Config struct {
	Address          common.Address
	Topics           [][]common.Hash
	MaxBlocks        uint64
	ProcessingInterval time.Duration
	RetryInterval      time.Duration
	StartingBlock      *uint64
	StoppingBlock      *uint64
}

// HandleLogFn processes a single matched log. A non-nil error is logged
// with the log's block and transaction hash and the loop moves on to the
// next log; a handler error never stops the scan.
type HandleLogFn func(log types.Log) error

// Run executes the scan loop until ctx is done or (when StoppingBlock is
// set) the window reaches it. Handler errors do not end it.
func Run(
	ctx context.Context, client *ethclient.Client, monitorCh <-chan core.MonitorStatus,
	cfg Config, handle HandleLogFn, logger hclog.Logger,
) error {
	tip, err := waitForFirstTip(ctx, monitorCh)
	if err != nil {
		return err
	}

	fromBlock := tip
	if cfg.StartingBlock != nil {
		fromBlock = *cfg.StartingBlock
	}

	currentTip := tip

	ticker := time.NewTicker(cfg.ProcessingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case status := <-monitorCh:
			currentTip = status.BlockNumber

			continue
		case <-ticker.C:
		}

		toBlock, ok := nextWindow(fromBlock, currentTip, cfg.MaxBlocks, cfg.StoppingBlock)
		if !ok {
			continue
		}

		logs, err := filterLogsWithRetry(ctx, client, cfg, fromBlock, toBlock, logger)
		if err != nil {
			return err
		}

		for _, log := range logs {
			if err := handle(log); err != nil {
				logger.Error("scan: handler failed for log", "block", log.BlockNumber, "tx", log.TxHash, "err", err)
			}
		}

		fromBlock = toBlock + 1

		if cfg.StoppingBlock != nil && toBlock >= *cfg.StoppingBlock {
			return nil
		}
	}
}

func waitForFirstTip(ctx context.Context, monitorCh <-chan core.MonitorStatus) (uint64, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case status := <-monitorCh:
		return status.BlockNumber, nil
	}
}

// nextWindow computes the next scan window's upper bound per spec's
// toBlock = min(currentTip, fromBlock+maxBlocks, stoppingBlock). ok is false
// when fromBlock is still ahead of currentTip, meaning there is nothing new
// to scan yet.
func nextWindow(fromBlock, currentTip, maxBlocks uint64, stoppingBlock *uint64) (toBlock uint64, ok bool) {
	toBlock = min(currentTip, fromBlock+maxBlocks)
	if stoppingBlock != nil && *stoppingBlock < toBlock {
		toBlock = *stoppingBlock
	}

	if toBlock < fromBlock {
		return 0, false
	}

	return toBlock, true
}

// filterLogsWithRetry retries FilterLogs indefinitely, spaced by
// cfg.RetryInterval, per spec §4.5 step 4's "infinite retry on transport
// error".
func filterLogsWithRetry(
	ctx context.Context, client *ethclient.Client, cfg Config, fromBlock, toBlock uint64, logger hclog.Logger,
) ([]types.Log, error) {
	backoff := retry.NewConstant(cfg.RetryInterval)

	var logs []types.Log

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		query := ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(fromBlock),
			ToBlock:   new(big.Int).SetUint64(toBlock),
			Addresses: []common.Address{cfg.Address},
			Topics:    cfg.Topics,
		}

		got, err := client.FilterLogs(ctx, query)
		if err != nil {
			logger.Warn("scan: getLogs failed, retrying", "fromBlock", fromBlock, "toBlock", toBlock, "err", err)

			return retry.RetryableError(err)
		}

		logs = got

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan: getLogs exhausted for window [%d,%d]: %w", fromBlock, toBlock, err)
	}

	return logs, nil
}
