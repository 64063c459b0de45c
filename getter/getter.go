// Package getter runs the per-chain loop that scans the incentive-escrow
// contract for its four bounty lifecycle events and folds them into the
// Store.
package getter

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/hashicorp/go-hclog"

	"github.com/ambridge-relay/relayer/bigint"
	"github.com/ambridge-relay/relayer/contracts"
	"github.com/ambridge-relay/relayer/core"
	"github.com/ambridge-relay/relayer/scan"
	"github.com/ambridge-relay/relayer/telemetry"
)

// Config parametrizes one chain's Getter.
type Config struct {
	ChainID           uint64
	IncentivesAddress common.Address
	MaxBlocks         uint64
	ProcessingInterval time.Duration
	RetryInterval      time.Duration
	StartingBlock      *uint64
	StoppingBlock      *uint64
}

// Getter scans one chain's incentive-escrow contract and registers every
// bounty lifecycle event it observes with the Store.
type Getter struct {
	cfg    Config
	client *ethclient.Client
	escrow *contracts.Escrow
	store  core.Store
	logger hclog.Logger
}

func New(cfg Config, client *ethclient.Client, escrow *contracts.Escrow, store core.Store, logger hclog.Logger) *Getter {
	return &Getter{cfg: cfg, client: client, escrow: escrow, store: store, logger: logger}
}

// Run scans until ctx is done or (when cfg.StoppingBlock is set) the
// configured stopping block is reached.
func (g *Getter) Run(ctx context.Context, monitorCh <-chan core.MonitorStatus) error {
	scanCfg := scan.Config{
		Address:            g.cfg.IncentivesAddress,
		Topics:             [][]common.Hash{g.escrow.Topics()},
		MaxBlocks:          g.cfg.MaxBlocks,
		ProcessingInterval: g.cfg.ProcessingInterval,
		RetryInterval:      g.cfg.RetryInterval,
		StartingBlock:      g.cfg.StartingBlock,
		StoppingBlock:      g.cfg.StoppingBlock,
	}

	return scan.Run(ctx, g.client, monitorCh, scanCfg, g.handleLog, g.logger)
}

func (g *Getter) handleLog(log types.Log) error {
	if len(log.Topics) == 0 {
		return fmt.Errorf("getter: log with no topics at block %d", log.BlockNumber)
	}

	var err error

	switch log.Topics[0] {
	case g.escrow.Topics()[0]:
		err = g.handleBountyPlaced(log)
	case g.escrow.Topics()[1]:
		err = g.handleMessageDelivered(log)
	case g.escrow.Topics()[2]:
		err = g.handleBountyClaimed(log)
	case g.escrow.Topics()[3]:
		err = g.handleBountyIncreased(log)
	default:
		return fmt.Errorf("getter: unrecognized event topic %s at block %d", log.Topics[0], log.BlockNumber)
	}

	if err == nil {
		telemetry.UpdateGetterEventsProcessed(g.cfg.ChainID, 1)
	}

	return err
}

func (g *Getter) handleBountyPlaced(log types.Log) error {
	event, err := g.escrow.DecodeBountyPlaced(log)
	if err != nil {
		return fmt.Errorf("getter: could not decode BountyPlaced: %w", err)
	}

	return g.store.RegisterBountyPlaced(core.Bounty{
		MessageIdentifier: event.MessageIdentifier,
		FromChainID:       g.cfg.ChainID,
		ToChainID:         event.ToChainID,
		RefundGasTo:       event.RefundGasTo,
		SourceAddress:     event.SourceAddress,
		MaxGasDelivery:     bigint.New(event.MaxGasDelivery),
		MaxGasAck:          bigint.New(event.MaxGasAck),
		PriceOfDeliveryGas: bigint.New(event.PriceOfDeliveryGas),
		PriceOfAckGas:      bigint.New(event.PriceOfAckGas),
		TargetDelta:        bigint.New(event.TargetDelta),
	})
}

func (g *Getter) handleMessageDelivered(log types.Log) error {
	event, err := g.escrow.DecodeMessageDelivered(log)
	if err != nil {
		return fmt.Errorf("getter: could not decode MessageDelivered: %w", err)
	}

	return g.store.RegisterMessageDelivered(core.Bounty{
		MessageIdentifier: event.MessageIdentifier,
		ToChainID:         event.ToChainID,
		ExecTransactionHash: log.TxHash,
	})
}

func (g *Getter) handleBountyClaimed(log types.Log) error {
	event, err := g.escrow.DecodeBountyClaimed(log)
	if err != nil {
		return fmt.Errorf("getter: could not decode BountyClaimed: %w", err)
	}

	return g.store.RegisterBountyClaimed(core.Bounty{
		MessageIdentifier: event.MessageIdentifier,
		AckTransactionHash: log.TxHash,
	})
}

func (g *Getter) handleBountyIncreased(log types.Log) error {
	event, err := g.escrow.DecodeBountyIncreased(log)
	if err != nil {
		return fmt.Errorf("getter: could not decode BountyIncreased: %w", err)
	}

	return g.store.RegisterBountyIncreased(event.MessageIdentifier, bigint.New(event.PriceOfDeliveryGas), bigint.New(event.PriceOfAckGas))
}
