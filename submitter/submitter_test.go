package submitter

import (
	"encoding/json"
	"os"
	"path"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/ambridge-relay/relayer/bigint"
	"github.com/ambridge-relay/relayer/contracts"
	"github.com/ambridge-relay/relayer/core"
	"github.com/ambridge-relay/relayer/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	testDir, err := os.MkdirTemp("", "submitter-test")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(testDir) })

	s, err := store.New(path.Join(testDir, "relayer.db"), hclog.NewNullLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

func newTestSubmitter(t *testing.T, s core.Store, cfg Config) *Submitter {
	t.Helper()

	escrow, err := contracts.NewEscrow()
	require.NoError(t, err)

	walletRequests := make(chan core.WalletRequest, 1)

	return New(cfg, nil, escrow, s, walletRequests, hclog.NewNullLogger())
}

func TestGasLimitBufferForFallsBackToDefault(t *testing.T) {
	t.Parallel()

	cfg := Config{GasLimitBuffer: map[string]uint64{"default": 10_000, "mock": 20_000}}

	require.Equal(t, uint64(20_000), cfg.gasLimitBufferFor("mock"))
	require.Equal(t, uint64(10_000), cfg.gasLimitBufferFor("layerzero"))
}

func TestHandleEvalFailureRetriesUntilDeadline(t *testing.T) {
	t.Parallel()

	s := newTestSubmitter(t, newTestStore(t), Config{MaxTries: 5})

	order := core.EvalOrder{EvaluationDeadline: time.Now().Add(time.Hour).Unix()}
	require.True(t, s.handleEvalFailure(order, 0, nil))

	order.EvaluationDeadline = time.Now().Add(-time.Hour).Unix()
	require.False(t, s.handleEvalFailure(order, 0, nil))
}

func TestHandleConfirmFailureRespectsMaxTries(t *testing.T) {
	t.Parallel()

	s := newTestSubmitter(t, newTestStore(t), Config{MaxTries: 3})

	require.True(t, s.handleConfirmFailure(submitResult{}, 0, nil))
	require.True(t, s.handleConfirmFailure(submitResult{}, 1, nil))
	require.False(t, s.handleConfirmFailure(submitResult{}, 2, nil))
}

func TestCurrentGasLimitEscalatesOnFailureAndResetsOnSuccess(t *testing.T) {
	t.Parallel()

	s := newTestSubmitter(t, newTestStore(t), Config{})

	base := s.currentGasLimit("mock")

	s.updateGasLimit("mock", require.AnError)
	escalated := s.currentGasLimit("mock")
	require.Greater(t, escalated, base)

	s.updateGasLimit("mock", nil)
	require.Equal(t, base, s.currentGasLimit("mock"))
}

func TestOnSubmitCompletionDrivesConfirmQueueAndRegistersDeliveryCost(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	s := newTestSubmitter(t, st, Config{MaxTries: 1, RetryInterval: time.Millisecond})

	messageID := core.MessageIdentifier(common.HexToHash("0x01"))
	require.NoError(t, st.RegisterBountyPlaced(core.Bounty{MessageIdentifier: messageID}))

	go s.confirmQueue.Run()
	defer s.confirmQueue.Stop()

	order := core.SubmitOrder{
		Order:      core.Order{MessageIdentifier: messageID},
		IsDelivery: true,
	}

	result := submitResult{
		order: order,
		receipt: &types.Receipt{
			GasUsed:           21000,
			EffectiveGasPrice: bigint.NewFromUint64(7).Big(),
		},
	}

	s.onSubmitCompletion(order, true, result, 0)

	require.Eventually(t, func() bool {
		bounty, found, err := st.GetBounty(messageID)

		return err == nil && found && !bounty.DeliveryGasCost.IsZero()
	}, time.Second, 10*time.Millisecond)

	bounty, _, err := st.GetBounty(messageID)
	require.NoError(t, err)
	require.Equal(t, 0, bounty.DeliveryGasCost.Cmp(bigint.NewFromUint64(21000*7)))
}

func TestOnSubmitCompletionDoesNothingOnFailure(t *testing.T) {
	t.Parallel()

	s := newTestSubmitter(t, newTestStore(t), Config{})

	go s.confirmQueue.Run()
	defer s.confirmQueue.Stop()

	s.onSubmitCompletion(core.SubmitOrder{}, false, submitResult{}, 0)
}

func TestDispatchIgnoresMalformedPayloadWithoutPanicking(t *testing.T) {
	t.Parallel()

	s := newTestSubmitter(t, newTestStore(t), Config{})

	require.NotPanics(t, func() { s.dispatch([]byte("not json")) })
}

func TestDispatchEnqueuesValidPayload(t *testing.T) {
	t.Parallel()

	s := newTestSubmitter(t, newTestStore(t), Config{EvaluationDeadline: time.Minute})

	payload := core.AmbPayload{
		MessageIdentifier:  core.MessageIdentifier(common.HexToHash("0x02")),
		Amb:                "mock",
		DestinationChainID: 7,
		Message:            []byte("hello"),
	}

	data, err := json.Marshal(payload)
	require.NoError(t, err)

	require.NotPanics(t, func() { s.dispatch(data) })
}
