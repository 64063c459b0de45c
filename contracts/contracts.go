// Package contracts holds the small inline ABI the relayer needs for the
// incentivized-escrow contract, the Mock bridge's source event, and the
// LayerZero V2 endpoint's PacketSent event — and the log-decoding helpers
// built on top of it. It deliberately does not pull in full abigen-generated
// bindings: the relayer only ever reads six event shapes and writes one
// function, so a hand-written ABI plus go-ethereum/accounts/abi's
// UnpackIntoInterface and ParseTopics (the same primitives
// bind.BoundContract.UnpackLog calls internally) is enough.
package contracts

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// EscrowABIJSON is the incentivized-escrow contract's ABI, restricted to the
// four bounty lifecycle events, the processPacket delivery/ack function, and
// the Mock bridge's Message event.
const EscrowABIJSON = `[
	{"anonymous":false,"name":"BountyPlaced","type":"event","inputs":[
		{"indexed":true,"name":"messageIdentifier","type":"bytes32"},
		{"indexed":false,"name":"toChainId","type":"uint64"},
		{"indexed":false,"name":"refundGasTo","type":"address"},
		{"indexed":false,"name":"maxGasDelivery","type":"uint256"},
		{"indexed":false,"name":"maxGasAck","type":"uint256"},
		{"indexed":false,"name":"priceOfDeliveryGas","type":"uint256"},
		{"indexed":false,"name":"priceOfAckGas","type":"uint256"},
		{"indexed":false,"name":"targetDelta","type":"uint256"},
		{"indexed":false,"name":"sourceAddress","type":"address"}
	]},
	{"anonymous":false,"name":"MessageDelivered","type":"event","inputs":[
		{"indexed":true,"name":"messageIdentifier","type":"bytes32"},
		{"indexed":false,"name":"toChainId","type":"uint64"}
	]},
	{"anonymous":false,"name":"BountyClaimed","type":"event","inputs":[
		{"indexed":true,"name":"messageIdentifier","type":"bytes32"}
	]},
	{"anonymous":false,"name":"BountyIncreased","type":"event","inputs":[
		{"indexed":true,"name":"messageIdentifier","type":"bytes32"},
		{"indexed":false,"name":"priceOfDeliveryGas","type":"uint256"},
		{"indexed":false,"name":"priceOfAckGas","type":"uint256"}
	]},
	{"anonymous":false,"name":"Message","type":"event","inputs":[
		{"indexed":false,"name":"destinationIdentifier","type":"bytes32"},
		{"indexed":false,"name":"recipient","type":"address"},
		{"indexed":false,"name":"message","type":"bytes"}
	]},
	{"name":"processPacket","type":"function","stateMutability":"nonpayable","inputs":[
		{"name":"messageCtx","type":"bytes"},
		{"name":"message","type":"bytes"},
		{"name":"refundGasTo","type":"address"}
	],"outputs":[]}
]`

// LayerZeroEndpointABIJSON is restricted to the PacketSent event the
// LayerZero sniffer collector watches.
const LayerZeroEndpointABIJSON = `[
	{"anonymous":false,"name":"PacketSent","type":"event","inputs":[
		{"indexed":false,"name":"encodedPacket","type":"bytes"},
		{"indexed":false,"name":"options","type":"bytes"},
		{"indexed":false,"name":"sendLibrary","type":"address"}
	]}
]`

// Escrow wraps the parsed escrow ABI for event decoding and call-data packing.
type Escrow struct {
	abi abi.ABI
}

// LayerZeroEndpoint wraps the parsed LayerZero endpoint ABI.
type LayerZeroEndpoint struct {
	abi abi.ABI
}

func NewEscrow() (*Escrow, error) {
	parsed, err := abi.JSON(strings.NewReader(EscrowABIJSON))
	if err != nil {
		return nil, fmt.Errorf("contracts: could not parse escrow ABI: %w", err)
	}

	return &Escrow{abi: parsed}, nil
}

func NewLayerZeroEndpoint() (*LayerZeroEndpoint, error) {
	parsed, err := abi.JSON(strings.NewReader(LayerZeroEndpointABIJSON))
	if err != nil {
		return nil, fmt.Errorf("contracts: could not parse LayerZero endpoint ABI: %w", err)
	}

	return &LayerZeroEndpoint{abi: parsed}, nil
}

// Topics returns the four bounty lifecycle event topic hashes, in the order
// the Getter's getLogs call filters on.
func (e *Escrow) Topics() []common.Hash {
	return []common.Hash{
		e.abi.Events["BountyPlaced"].ID,
		e.abi.Events["MessageDelivered"].ID,
		e.abi.Events["BountyClaimed"].ID,
		e.abi.Events["BountyIncreased"].ID,
	}
}

// MessageTopic returns the Mock bridge's Message event topic hash.
func (e *Escrow) MessageTopic() common.Hash {
	return e.abi.Events["Message"].ID
}

// PacketSentTopic returns the LayerZero PacketSent event topic hash.
func (e *LayerZeroEndpoint) PacketSentTopic() common.Hash {
	return e.abi.Events["PacketSent"].ID
}

type BountyPlacedEvent struct {
	MessageIdentifier  common.Hash
	ToChainID          uint64 `abi:"toChainId"`
	RefundGasTo        common.Address
	MaxGasDelivery     *big.Int
	MaxGasAck          *big.Int
	PriceOfDeliveryGas *big.Int
	PriceOfAckGas      *big.Int
	TargetDelta        *big.Int
	SourceAddress      common.Address
}

type MessageDeliveredEvent struct {
	MessageIdentifier common.Hash
	ToChainID         uint64 `abi:"toChainId"`
}

type BountyClaimedEvent struct {
	MessageIdentifier common.Hash
}

type BountyIncreasedEvent struct {
	MessageIdentifier  common.Hash
	PriceOfDeliveryGas *big.Int
	PriceOfAckGas      *big.Int
}

type MessageEvent struct {
	DestinationIdentifier common.Hash
	Recipient             common.Address
	Message               []byte
}

type PacketSentEvent struct {
	EncodedPacket []byte
	Options       []byte
	SendLibrary   common.Address
}

// unpackLog unpacks a log's non-indexed data into out, then parses its
// indexed arguments out of log.Topics[1:] into the matching out fields —
// the same two-step process bind.BoundContract.UnpackLog performs for
// abigen-generated filterers.
func unpackLog(parsed abi.ABI, out any, name string, log types.Log) error {
	if len(log.Data) > 0 {
		if err := parsed.UnpackIntoInterface(out, name, log.Data); err != nil {
			return err
		}
	}

	var indexed abi.Arguments

	for _, arg := range parsed.Events[name].Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}

	return abi.ParseTopics(out, indexed, log.Topics[1:])
}

// DecodeBountyPlaced unpacks a BountyPlaced log. The event is declared with
// messageIdentifier indexed, so it is decoded from log.Topics rather than
// log.Data.
func (e *Escrow) DecodeBountyPlaced(log types.Log) (*BountyPlacedEvent, error) {
	var out BountyPlacedEvent
	if err := unpackLog(e.abi, &out, "BountyPlaced", log); err != nil {
		return nil, err
	}

	return &out, nil
}

func (e *Escrow) DecodeMessageDelivered(log types.Log) (*MessageDeliveredEvent, error) {
	var out MessageDeliveredEvent
	if err := unpackLog(e.abi, &out, "MessageDelivered", log); err != nil {
		return nil, err
	}

	return &out, nil
}

func (e *Escrow) DecodeBountyClaimed(log types.Log) (*BountyClaimedEvent, error) {
	var out BountyClaimedEvent
	if err := unpackLog(e.abi, &out, "BountyClaimed", log); err != nil {
		return nil, err
	}

	return &out, nil
}

func (e *Escrow) DecodeBountyIncreased(log types.Log) (*BountyIncreasedEvent, error) {
	var out BountyIncreasedEvent
	if err := unpackLog(e.abi, &out, "BountyIncreased", log); err != nil {
		return nil, err
	}

	return &out, nil
}

func (e *Escrow) DecodeMessage(log types.Log) (*MessageEvent, error) {
	var out MessageEvent
	if err := unpackLog(e.abi, &out, "Message", log); err != nil {
		return nil, err
	}

	return &out, nil
}

func (le *LayerZeroEndpoint) DecodePacketSent(log types.Log) (*PacketSentEvent, error) {
	var out PacketSentEvent
	if err := unpackLog(le.abi, &out, "PacketSent", log); err != nil {
		return nil, err
	}

	return &out, nil
}

// PackProcessPacket builds the call data for processPacket(messageCtx,
// message, refundGasTo) — the sole write the relayer performs.
func (e *Escrow) PackProcessPacket(messageCtx, message []byte, refundGasTo common.Address) ([]byte, error) {
	return e.abi.Pack("processPacket", messageCtx, message, refundGasTo)
}

// SignMockMessage signs keccak256(concat(incentivesAddressBytes32, message))
// with privateKeyHex and ABI-encodes the resulting (v, r, s) tuple, matching
// the Mock collector's messageCtx contract. incentivesAddress is left-padded
// to 32 bytes, the same encoding a Solidity verifier gets from
// abi.encodePacked(bytes32(uint256(uint160(addr))), message).
func SignMockMessage(privateKeyHex string, incentivesAddress common.Address, message []byte) ([]byte, error) {
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("contracts: invalid mock signing key: %w", err)
	}

	addressBytes32 := common.LeftPadBytes(incentivesAddress.Bytes(), 32)
	digest := crypto.Keccak256(append(addressBytes32, message...))

	sig, err := crypto.Sign(digest, key)
	if err != nil {
		return nil, fmt.Errorf("contracts: could not sign mock message: %w", err)
	}

	v := uint8(sig[64]) + 27
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])

	args := abi.Arguments{
		{Type: mustType("uint8")},
		{Type: mustType("uint256")},
		{Type: mustType("uint256")},
	}

	return args.Pack(v, r, s)
}

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}

	return typ
}
