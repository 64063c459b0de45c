// Package monitor broadcasts each chain's observed block height to every
// registered listener, so scanners never poll the RPC for the tip
// themselves.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/ambridge-relay/relayer/common"
	"github.com/ambridge-relay/relayer/core"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/hashicorp/go-hclog"
	"github.com/sethvargo/go-retry"
)

// Monitor polls a single chain's RPC for its latest block height and
// fans the result out to every subscriber registered via Subscribe.
type Monitor struct {
	chainID      uint64
	client       *ethclient.Client
	pollInterval time.Duration
	logger       hclog.Logger

	listenersMu sync.Mutex
	listeners   []*common.SafeCh[core.MonitorStatus]

	lastBlock uint64
}

// New creates a Monitor for chainID, polling client every pollInterval.
func New(chainID uint64, client *ethclient.Client, pollInterval time.Duration, logger hclog.Logger) *Monitor {
	return &Monitor{
		chainID:      chainID,
		client:       client,
		pollInterval: pollInterval,
		logger:       logger,
	}
}

// Subscribe registers a new listener and returns the channel it should read
// MonitorStatus updates from. The channel is closed when ctx is done.
func (m *Monitor) Subscribe(ctx context.Context) <-chan core.MonitorStatus {
	ch := common.MakeSafeCh[core.MonitorStatus](8)

	m.listenersMu.Lock()
	m.listeners = append(m.listeners, ch)
	m.listenersMu.Unlock()

	go func() {
		<-ctx.Done()
		ch.Close() //nolint:errcheck
	}()

	return ch.ReadCh()
}

// Run polls until ctx is done, broadcasting whenever the observed tip
// advances. Transient RPC errors are retried indefinitely, spaced by
// pollInterval, per spec §4.9 ("infinite retry on transport error").
func (m *Monitor) Run(ctx context.Context) error {
	backoff := retry.NewConstant(m.pollInterval)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.pollInterval):
		}

		var blockNumber uint64

		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			bn, err := m.client.BlockNumber(ctx)
			if err != nil {
				m.logger.Warn("monitor: block number fetch failed, retrying", "chainId", m.chainID, "err", err)

				return retry.RetryableError(err)
			}

			blockNumber = bn

			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			continue
		}

		if blockNumber <= m.lastBlock {
			continue
		}

		m.lastBlock = blockNumber
		m.broadcast(core.MonitorStatus{ChainID: m.chainID, BlockNumber: blockNumber})
	}
}

func (m *Monitor) broadcast(status core.MonitorStatus) {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()

	for _, ch := range m.listeners {
		if err := ch.Write(status); err != nil {
			m.logger.Debug("monitor: dropped status for closed listener", "chainId", m.chainID, "err", err)
		}
	}
}
