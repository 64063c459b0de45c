package scan

import (
	"context"
	"testing"

	"github.com/ambridge-relay/relayer/core"
	"github.com/stretchr/testify/require"
)

func TestWaitForFirstTipReturnsFirstStatus(t *testing.T) {
	t.Parallel()

	ch := make(chan core.MonitorStatus, 1)
	ch <- core.MonitorStatus{ChainID: 1, BlockNumber: 42}

	tip, err := waitForFirstTip(context.Background(), ch)
	require.NoError(t, err)
	require.Equal(t, uint64(42), tip)
}

func TestWaitForFirstTipRespectsCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := waitForFirstTip(ctx, make(chan core.MonitorStatus))
	require.ErrorIs(t, err, context.Canceled)
}

func TestNextWindowMatchesSpecSequence(t *testing.T) {
	t.Parallel()

	expected := [][2]uint64{
		{100, 150}, {151, 201}, {202, 252}, {253, 303},
		{304, 354}, {355, 405}, {406, 456}, {457, 500},
	}

	fromBlock := uint64(100)
	const currentTip, maxBlocks = uint64(500), uint64(50)

	var windows [][2]uint64

	for fromBlock <= currentTip {
		toBlock, ok := nextWindow(fromBlock, currentTip, maxBlocks, nil)
		require.True(t, ok)

		windows = append(windows, [2]uint64{fromBlock, toBlock})
		fromBlock = toBlock + 1
	}

	require.Equal(t, expected, windows)
}

func TestNextWindowNotOkWhenFromBlockAheadOfTip(t *testing.T) {
	t.Parallel()

	_, ok := nextWindow(501, 500, 50, nil)
	require.False(t, ok)
}

func TestNextWindowRespectsStoppingBlock(t *testing.T) {
	t.Parallel()

	stoppingBlock := uint64(120)

	toBlock, ok := nextWindow(100, 500, 50, &stoppingBlock)
	require.True(t, ok)
	require.Equal(t, stoppingBlock, toBlock)
}

