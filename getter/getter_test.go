package getter

import (
	"math/big"
	"os"
	"path"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
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

	testDir, err := os.MkdirTemp("", "getter-test")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(testDir) })

	s, err := store.New(path.Join(testDir, "relayer.db"), hclog.NewNullLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}

	return typ
}

func TestHandleBountyPlacedRegistersBounty(t *testing.T) {
	t.Parallel()

	escrow, err := contracts.NewEscrow()
	require.NoError(t, err)

	s := newTestStore(t)
	g := New(Config{ChainID: 1}, nil, escrow, s, hclog.NewNullLogger())

	messageID := common.HexToHash("0x01")
	refundGasTo := common.HexToAddress("0x02")
	sourceAddress := common.HexToAddress("0x03")

	nonIndexed := abi.Arguments{
		{Type: mustType("uint64")},
		{Type: mustType("address")},
		{Type: mustType("uint256")},
		{Type: mustType("uint256")},
		{Type: mustType("uint256")},
		{Type: mustType("uint256")},
		{Type: mustType("uint256")},
		{Type: mustType("address")},
	}

	data, err := nonIndexed.Pack(
		uint64(2), refundGasTo, big.NewInt(1000), big.NewInt(2000),
		big.NewInt(10), big.NewInt(20), big.NewInt(5), sourceAddress,
	)
	require.NoError(t, err)

	log := types.Log{
		Topics:      []common.Hash{escrow.Topics()[0], messageID},
		Data:        data,
		BlockNumber: 100,
	}

	require.NoError(t, g.handleLog(log))

	got, found, err := s.GetBounty(core.MessageIdentifier(messageID))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, core.BountyPlaced, got.Status)
	require.Equal(t, uint64(1), got.FromChainID)
	require.Equal(t, uint64(2), got.ToChainID)
	require.Equal(t, refundGasTo, got.RefundGasTo)
	require.Equal(t, sourceAddress, got.SourceAddress)
	require.Equal(t, 0, got.PriceOfDeliveryGas.Cmp(bigint.NewFromUint64(10)))
}

func TestHandleBountyClaimedMarksFinalised(t *testing.T) {
	t.Parallel()

	escrow, err := contracts.NewEscrow()
	require.NoError(t, err)

	s := newTestStore(t)
	g := New(Config{ChainID: 1}, nil, escrow, s, hclog.NewNullLogger())

	messageID := common.HexToHash("0x04")

	require.NoError(t, s.RegisterBountyPlaced(core.Bounty{MessageIdentifier: core.MessageIdentifier(messageID)}))

	log := types.Log{
		Topics:    []common.Hash{escrow.Topics()[2], messageID},
		TxHash:    common.HexToHash("0xaa"),
		BlockNumber: 101,
	}

	require.NoError(t, g.handleLog(log))

	got, found, err := s.GetBounty(core.MessageIdentifier(messageID))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, core.BountyClaimed, got.Status)
	require.True(t, got.Finalised)
	require.Equal(t, common.HexToHash("0xaa"), got.AckTransactionHash)
}

func TestHandleLogRejectsUnrecognizedTopic(t *testing.T) {
	t.Parallel()

	escrow, err := contracts.NewEscrow()
	require.NoError(t, err)

	s := newTestStore(t)
	g := New(Config{ChainID: 1}, nil, escrow, s, hclog.NewNullLogger())

	log := types.Log{Topics: []common.Hash{common.HexToHash("0xdead")}}

	require.Error(t, g.handleLog(log))
}
