package collector

import (
	"os"
	"path"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/ambridge-relay/relayer/contracts"
	"github.com/ambridge-relay/relayer/core"
	"github.com/ambridge-relay/relayer/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	testDir, err := os.MkdirTemp("", "collector-test")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(testDir) })

	s, err := store.New(path.Join(testDir, "relayer.db"), hclog.NewNullLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

func mustABIType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}

	return typ
}

func newTestMock(t *testing.T, s core.Store, incentivesAddress common.Address, signingKey string) *Mock {
	t.Helper()

	escrow, err := contracts.NewEscrow()
	require.NoError(t, err)

	cfg := MockConfig{ChainID: 1, IncentivesAddress: incentivesAddress, SigningKeyHex: signingKey}

	return NewMock(cfg, nil, escrow, s, hclog.NewNullLogger())
}

func messageLog(t *testing.T, escrow *contracts.Escrow, messageID common.Hash, recipient common.Address, message []byte) types.Log {
	t.Helper()

	args := abi.Arguments{
		{Type: mustABIType("bytes32")},
		{Type: mustABIType("address")},
		{Type: mustABIType("bytes")},
	}

	data, err := args.Pack(messageID, recipient, message)
	require.NoError(t, err)

	return types.Log{
		Topics: []common.Hash{escrow.MessageTopic()},
		Data:   data,
	}
}

func TestMockHandleLogSignsAndSubmitsProof(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	incentivesAddress := common.HexToAddress("0xaa")
	signingKey, err := crypto.GenerateKey()
	require.NoError(t, err)

	signingKeyHex := common.Bytes2Hex(crypto.FromECDSA(signingKey))

	m := newTestMock(t, s, incentivesAddress, signingKeyHex)

	messageID := core.MessageIdentifier(common.HexToHash("0x01"))

	require.NoError(t, s.RegisterBountyPlaced(core.Bounty{
		MessageIdentifier: messageID,
		ToChainID:         9,
	}))

	recipient := common.HexToAddress("0x02")
	message := []byte("payload")

	log := messageLog(t, m.escrow, messageID, recipient, message)

	require.NoError(t, m.handleLog(log))

	amb, found, err := s.GetAmb(messageID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, AmbNameMock, amb.Amb)
	require.Equal(t, uint64(9), amb.DestinationChain)
	require.Equal(t, message, amb.Payload)

	bounty, _, err := s.GetBounty(messageID)
	require.NoError(t, err)
	require.Equal(t, recipient, bounty.DestinationAddress)
}

func TestMockHandleLogSkipsWhenBountyUnknown(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	incentivesAddress := common.HexToAddress("0xaa")
	signingKey, err := crypto.GenerateKey()
	require.NoError(t, err)

	m := newTestMock(t, s, incentivesAddress, common.Bytes2Hex(crypto.FromECDSA(signingKey)))

	messageID := common.HexToHash("0x05")
	log := messageLog(t, m.escrow, messageID, common.HexToAddress("0x02"), []byte("payload"))

	require.Error(t, m.handleLog(log))

	_, found, err := s.GetAmb(core.MessageIdentifier(messageID))
	require.NoError(t, err)
	require.False(t, found)
}
