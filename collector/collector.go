// Package collector runs the per-AMB tasks that watch a source chain for
// application messages, attach whatever proof their bridge requires, and
// publish delivery-ready AmbPayloads. Every collector obeys the same
// contract (emit AmbMessages via Store.SetAmb, publish via
// Store.SubmitProof); the core runtime never special-cases a bridge, the
// same way the teacher's relayer.GetChainSpecificOperations hides each
// chain type's implementation behind one core.ChainOperations interface.
package collector

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/hashicorp/go-hclog"

	"github.com/ambridge-relay/relayer/contracts"
	"github.com/ambridge-relay/relayer/core"
)

// Kind is the closed set of AMBs this relayer knows how to collect for,
// selected at startup from config.
type Kind string

const (
	KindMock      Kind = "mock"
	KindLayerZero Kind = "layerzero"
)

// Collector scans one chain for one AMB's messages until ctx is done.
type Collector interface {
	Run(ctx context.Context, monitorCh <-chan core.MonitorStatus) error
}

// New builds the Collector for kind, the same switch-on-config-string
// dispatch the teacher's GetChainSpecificOperations uses to pick a chain
// type. cfg must be the MockConfig or LayerZeroConfig matching kind.
func New(
	kind Kind, cfg any, client *ethclient.Client, store core.Store, logger hclog.Logger,
) (Collector, error) {
	switch Kind(strings.ToLower(string(kind))) {
	case KindMock:
		mockCfg, ok := cfg.(MockConfig)
		if !ok {
			return nil, fmt.Errorf("collector: mock collector requires a MockConfig, got %T", cfg)
		}

		escrow, err := contracts.NewEscrow()
		if err != nil {
			return nil, fmt.Errorf("collector: %w", err)
		}

		return NewMock(mockCfg, client, escrow, store, logger), nil
	case KindLayerZero:
		lzCfg, ok := cfg.(LayerZeroConfig)
		if !ok {
			return nil, fmt.Errorf("collector: layerzero collector requires a LayerZeroConfig, got %T", cfg)
		}

		endpoint, err := contracts.NewLayerZeroEndpoint()
		if err != nil {
			return nil, fmt.Errorf("collector: %w", err)
		}

		escrow, err := contracts.NewEscrow()
		if err != nil {
			return nil, fmt.Errorf("collector: %w", err)
		}

		return NewLayerZero(lzCfg, client, endpoint, escrow, store, logger), nil
	default:
		return nil, fmt.Errorf("collector: unknown amb kind %q", kind)
	}
}
