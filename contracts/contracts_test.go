package contracts

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func TestEscrowABIParses(t *testing.T) {
	t.Parallel()

	e, err := NewEscrow()
	require.NoError(t, err)
	require.NotNil(t, e)
}

func TestLayerZeroEndpointABIParses(t *testing.T) {
	t.Parallel()

	le, err := NewLayerZeroEndpoint()
	require.NoError(t, err)
	require.NotNil(t, le)
}

func TestTopicsAreDistinct(t *testing.T) {
	t.Parallel()

	e, err := NewEscrow()
	require.NoError(t, err)

	topics := e.Topics()
	require.Len(t, topics, 4)

	seen := map[common.Hash]bool{}
	for _, topic := range topics {
		require.NotEqual(t, common.Hash{}, topic)
		require.False(t, seen[topic], "duplicate topic %s", topic)
		seen[topic] = true
	}

	require.NotEqual(t, common.Hash{}, e.MessageTopic())
	require.False(t, seen[e.MessageTopic()])
}

func TestPacketSentTopicIsNonZero(t *testing.T) {
	t.Parallel()

	le, err := NewLayerZeroEndpoint()
	require.NoError(t, err)

	require.NotEqual(t, common.Hash{}, le.PacketSentTopic())
}

func TestDecodeBountyPlaced(t *testing.T) {
	t.Parallel()

	e, err := NewEscrow()
	require.NoError(t, err)

	messageID := common.HexToHash("0xaa")
	refundGasTo := common.HexToAddress("0xbb")
	sourceAddress := common.HexToAddress("0xcc")

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
		uint64(7),
		refundGasTo,
		big.NewInt(1000),
		big.NewInt(2000),
		big.NewInt(3),
		big.NewInt(4),
		big.NewInt(5),
		sourceAddress,
	)
	require.NoError(t, err)

	log := types.Log{
		Topics: []common.Hash{e.abi.Events["BountyPlaced"].ID, messageID},
		Data:   data,
	}

	out, err := e.DecodeBountyPlaced(log)
	require.NoError(t, err)
	require.Equal(t, messageID, out.MessageIdentifier)
	require.Equal(t, uint64(7), out.ToChainID)
	require.Equal(t, refundGasTo, out.RefundGasTo)
	require.Equal(t, sourceAddress, out.SourceAddress)
	require.Equal(t, 0, out.MaxGasDelivery.Cmp(big.NewInt(1000)))
	require.Equal(t, 0, out.TargetDelta.Cmp(big.NewInt(5)))
}

func TestDecodeBountyClaimed(t *testing.T) {
	t.Parallel()

	e, err := NewEscrow()
	require.NoError(t, err)

	messageID := common.HexToHash("0xdd")

	log := types.Log{
		Topics: []common.Hash{e.abi.Events["BountyClaimed"].ID, messageID},
	}

	out, err := e.DecodeBountyClaimed(log)
	require.NoError(t, err)
	require.Equal(t, messageID, out.MessageIdentifier)
}

func TestPackProcessPacketRoundTrips(t *testing.T) {
	t.Parallel()

	e, err := NewEscrow()
	require.NoError(t, err)

	messageCtx := []byte{0x01, 0x02, 0x03}
	message := []byte("hello world")
	refundGasTo := common.HexToAddress("0xee")

	packed, err := e.PackProcessPacket(messageCtx, message, refundGasTo)
	require.NoError(t, err)
	require.True(t, len(packed) > 4)

	args, err := e.abi.Methods["processPacket"].Inputs.Unpack(packed[4:])
	require.NoError(t, err)
	require.Equal(t, messageCtx, args[0])
	require.Equal(t, message, args[1])
	require.Equal(t, refundGasTo, args[2])
}

func TestSignMockMessageRoundTrips(t *testing.T) {
	t.Parallel()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	privateKeyHex := common.Bytes2Hex(crypto.FromECDSA(key))
	incentivesAddress := common.HexToAddress("0xff")
	message := []byte("relay me")

	encoded, err := SignMockMessage(privateKeyHex, incentivesAddress, message)
	require.NoError(t, err)

	args := abi.Arguments{
		{Type: mustType("uint8")},
		{Type: mustType("uint256")},
		{Type: mustType("uint256")},
	}

	decoded, err := args.Unpack(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, 3)

	v := decoded[0].(uint8)
	r := decoded[1].(*big.Int)
	s := decoded[2].(*big.Int)

	require.True(t, v == 27 || v == 28)

	// Independently reconstruct the signed digest as a 32-byte left-padded
	// address concatenated with message, the Solidity
	// abi.encodePacked(bytes32(uint256(uint160(addr))), message) shape, rather
	// than calling back into the same helper the implementation uses to pad.
	var addressBytes32 [32]byte
	copy(addressBytes32[32-len(incentivesAddress):], incentivesAddress.Bytes())

	preimage := append(addressBytes32[:], message...)
	digest := crypto.Keccak256(preimage)

	sig := make([]byte, 65)
	r.FillBytes(sig[:32])
	s.FillBytes(sig[32:64])
	sig[64] = v - 27

	pub, err := crypto.SigToPub(digest, sig)
	require.NoError(t, err)
	require.Equal(t, crypto.PubkeyToAddress(key.PublicKey), crypto.PubkeyToAddress(*pub))
}

func TestSignMockMessageRejectsInvalidKey(t *testing.T) {
	t.Parallel()

	_, err := SignMockMessage("not-a-key", common.HexToAddress("0x01"), []byte("x"))
	require.Error(t, err)
}
