package wallet

import (
	"context"
	"math/big"
	"testing"

	"github.com/ambridge-relay/relayer/core"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"
)

func TestConfigFactorDefaults(t *testing.T) {
	t.Parallel()

	var cfg Config

	require.Equal(t, uint64(100), cfg.maxPriorityFeeAdjustmentFactorOrDefault())
	require.Equal(t, uint64(100), cfg.gasPriceAdjustmentFactorOrDefault())
	require.Equal(t, defaultPriorityAdjustmentFactor, cfg.priorityAdjustmentFactorOrDefault())

	cfg.MaxPriorityFeeAdjustmentFactor = 150
	cfg.GasPriceAdjustmentFactor = 120
	cfg.PriorityAdjustmentFactor = 200

	require.Equal(t, uint64(150), cfg.maxPriorityFeeAdjustmentFactorOrDefault())
	require.Equal(t, uint64(120), cfg.gasPriceAdjustmentFactorOrDefault())
	require.Equal(t, uint64(200), cfg.priorityAdjustmentFactorOrDefault())
}

func newTestWallet(cfg Config) *Wallet {
	return &Wallet{
		cfg:      cfg,
		logger:   hclog.NewNullLogger(),
		requests: make(chan core.WalletRequest),
		pending:  make(chan struct{}, max(1, cfg.MaxPendingTransactions)),
	}
}

func TestRepriceDynamicClampsAtMaxAllowed(t *testing.T) {
	t.Parallel()

	w := newTestWallet(Config{
		IsDynamic:                   true,
		PriorityAdjustmentFactor:    110,
		MaxAllowedPriorityFeePerGas: big.NewInt(100),
	})

	txOpts := &bind.TransactOpts{
		GasTipCap: big.NewInt(95),
		GasFeeCap: big.NewInt(200),
	}

	w.reprice(txOpts)

	require.Equal(t, 0, txOpts.GasTipCap.Cmp(big.NewInt(100)))
	require.Equal(t, 0, txOpts.GasFeeCap.Cmp(big.NewInt(220)))
}

func TestRepriceLegacyClampsAtMaxAllowed(t *testing.T) {
	t.Parallel()

	w := newTestWallet(Config{
		IsDynamic:         false,
		PriorityAdjustmentFactor: 110,
		MaxAllowedGasPrice:       big.NewInt(50),
	})

	txOpts := &bind.TransactOpts{GasPrice: big.NewInt(48)}

	w.reprice(txOpts)

	require.Equal(t, 0, txOpts.GasPrice.Cmp(big.NewInt(50)))
}

func TestRepriceLegacyWithoutClamp(t *testing.T) {
	t.Parallel()

	w := newTestWallet(Config{IsDynamic: false, PriorityAdjustmentFactor: 150})

	txOpts := &bind.TransactOpts{GasPrice: big.NewInt(100)}

	w.reprice(txOpts)

	require.Equal(t, 0, txOpts.GasPrice.Cmp(big.NewInt(150)))
}

func TestNewDefaultsPendingCapacityToOne(t *testing.T) {
	t.Parallel()

	w := New(Config{ChainID: 1}, nil, nil, nil, hclog.NewNullLogger())

	require.Equal(t, 1, cap(w.pending))
}

func TestHandleShortCircuitsWhenStalled(t *testing.T) {
	t.Parallel()

	w := newTestWallet(Config{ChainID: 1})
	w.stalled.Store(true)

	resp := make(chan core.WalletResponse, 1)

	w.handle(context.Background(), core.WalletRequest{Metadata: "m", Response: resp})

	got := <-resp
	require.ErrorIs(t, got.SubmissionError, ErrWalletStalled)
	require.Equal(t, "m", got.Metadata)
}
