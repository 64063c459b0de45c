package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/hashicorp/go-hclog"

	"github.com/ambridge-relay/relayer/contracts"
	"github.com/ambridge-relay/relayer/core"
	"github.com/ambridge-relay/relayer/scan"
	"github.com/ambridge-relay/relayer/telemetry"
)

// AmbNameMock is the bridge tag this collector writes onto every AmbMessage
// and AmbPayload it produces.
const AmbNameMock = "mock"

// MockConfig parametrizes one chain's Mock collector.
type MockConfig struct {
	ChainID           uint64
	IncentivesAddress common.Address
	SigningKeyHex     string
	MaxBlocks         uint64
	ProcessingInterval time.Duration
	RetryInterval      time.Duration
	StartingBlock      *uint64
	StoppingBlock      *uint64
}

// Mock is the reference collector for the signed-message bridge: it
// observes the escrow's own Message event and attaches a locally-produced
// ECDSA signature as the proof, rather than relying on an external bridge.
type Mock struct {
	cfg    MockConfig
	client *ethclient.Client
	escrow *contracts.Escrow
	store  core.Store
	logger hclog.Logger
}

func NewMock(cfg MockConfig, client *ethclient.Client, escrow *contracts.Escrow, store core.Store, logger hclog.Logger) *Mock {
	return &Mock{cfg: cfg, client: client, escrow: escrow, store: store, logger: logger}
}

func (m *Mock) Run(ctx context.Context, monitorCh <-chan core.MonitorStatus) error {
	scanCfg := scan.Config{
		Address:            m.cfg.IncentivesAddress,
		Topics:             [][]common.Hash{{m.escrow.MessageTopic()}},
		MaxBlocks:          m.cfg.MaxBlocks,
		ProcessingInterval: m.cfg.ProcessingInterval,
		RetryInterval:      m.cfg.RetryInterval,
		StartingBlock:      m.cfg.StartingBlock,
		StoppingBlock:      m.cfg.StoppingBlock,
	}

	return scan.Run(ctx, m.client, monitorCh, scanCfg, m.handleLog, m.logger)
}

func (m *Mock) handleLog(log types.Log) error {
	event, err := m.escrow.DecodeMessage(log)
	if err != nil {
		return fmt.Errorf("mock collector: could not decode Message: %w", err)
	}

	messageID := event.DestinationIdentifier

	bounty, found, err := m.store.GetBounty(messageID)
	if err != nil {
		return fmt.Errorf("mock collector: could not look up bounty %s: %w", messageID, err)
	}

	if !found || bounty.ToChainID == 0 {
		return fmt.Errorf("mock collector: destination chain unknown for message %s, skipping", messageID)
	}

	if err := m.store.RegisterDestinationAddress(messageID, event.Recipient.Hex()); err != nil {
		return fmt.Errorf("mock collector: could not register destination address: %w", err)
	}

	amb := core.AmbMessage{
		MessageIdentifier: messageID,
		Amb:               AmbNameMock,
		SourceChain:       m.cfg.ChainID,
		DestinationChain:  bounty.ToChainID,
		SourceEscrow:      m.cfg.IncentivesAddress,
		Payload:           event.Message,
		SourceBlockNumber: log.BlockNumber,
		SourceBlockHash:   log.BlockHash,
	}

	if err := m.store.SetAmb(amb); err != nil {
		return fmt.Errorf("mock collector: could not store amb message: %w", err)
	}

	messageCtx, err := contracts.SignMockMessage(m.cfg.SigningKeyHex, m.cfg.IncentivesAddress, event.Message)
	if err != nil {
		return fmt.Errorf("mock collector: could not sign message: %w", err)
	}

	if err := m.store.SubmitProof(bounty.ToChainID, core.AmbPayload{
		MessageIdentifier:  messageID,
		Amb:                AmbNameMock,
		DestinationChainID: bounty.ToChainID,
		Message:            event.Message,
		MessageCtx:         messageCtx,
	}); err != nil {
		return err
	}

	telemetry.UpdateCollectorPayloadsSubmitted(m.cfg.ChainID, AmbNameMock, 1)

	return nil
}
