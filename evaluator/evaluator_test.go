package evaluator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ambridge-relay/relayer/bigint"
	"github.com/ambridge-relay/relayer/core"
)

func TestShouldRelayApprovesWhenRewardCoversCost(t *testing.T) {
	t.Parallel()

	bounty := core.Bounty{
		MaxGasDelivery:     bigint.NewFromUint64(100),
		PriceOfDeliveryGas: bigint.NewFromUint64(5),
	}

	require.True(t, ShouldRelay(bounty, 80, false, FeeData{}))
}

func TestShouldRelayRejectsWhenGasEstimateExceedsMax(t *testing.T) {
	t.Parallel()

	bounty := core.Bounty{
		MaxGasDelivery:     bigint.NewFromUint64(100),
		PriceOfDeliveryGas: bigint.NewFromUint64(5),
	}

	require.False(t, ShouldRelay(bounty, 101, false, FeeData{}))
}

func TestShouldRelayBypassesCostCheckForPriorityOrders(t *testing.T) {
	t.Parallel()

	bounty := core.Bounty{
		MaxGasDelivery:     bigint.NewFromUint64(10),
		PriceOfDeliveryGas: bigint.NewFromUint64(1),
	}

	require.True(t, ShouldRelay(bounty, 1_000_000, true, FeeData{}))
}

func TestShouldRelayDoesNotMutateBountyFields(t *testing.T) {
	t.Parallel()

	bounty := core.Bounty{
		MaxGasDelivery:     bigint.NewFromUint64(100),
		PriceOfDeliveryGas: bigint.NewFromUint64(5),
	}

	ShouldRelay(bounty, 80, false, FeeData{})

	require.Equal(t, 0, bounty.MaxGasDelivery.Cmp(bigint.NewFromUint64(100)))
	require.Equal(t, 0, bounty.PriceOfDeliveryGas.Cmp(bigint.NewFromUint64(5)))
}
