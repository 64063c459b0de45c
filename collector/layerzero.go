package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/hashicorp/go-hclog"

	"github.com/ambridge-relay/relayer/contracts"
	"github.com/ambridge-relay/relayer/core"
	"github.com/ambridge-relay/relayer/scan"
)

// AmbNameLayerZero is the bridge tag this collector writes onto every
// AmbMessage it produces.
const AmbNameLayerZero = "layerzero"

const (
	garpMessageIdentifierOffset = 1
	garpSenderOffset            = 33
	garpDestinationOffset       = 53
	garpAddressLength           = 20
	garpMinimumLength           = garpDestinationOffset + garpAddressLength
)

// LayerZeroConfig parametrizes one chain's LayerZero sniffer collector.
type LayerZeroConfig struct {
	ChainID           uint64
	EndpointAddress   common.Address
	IncentivesAddress common.Address
	MaxBlocks          uint64
	ProcessingInterval time.Duration
	RetryInterval      time.Duration
	StartingBlock      *uint64
	StoppingBlock      *uint64
}

// LayerZero sniffs the LayerZero V2 endpoint for packets sent by the
// incentivized escrow, recovers the application message it carries, and
// parks it under a payload-hash index awaiting a peer attestation.
//
// The packet's sender is matched against cfg.IncentivesAddress via the
// unpacked packet tuple rather than via the event's indexed topics: the
// real LayerZero V2 EndpointV2.PacketSent event declares all three of its
// fields non-indexed, so there is no topics[1] to filter on — only the
// address FilterLogs is called against, which scan.Config.Address already
// restricts to cfg.EndpointAddress.
type LayerZero struct {
	cfg      LayerZeroConfig
	client   *ethclient.Client
	endpoint *contracts.LayerZeroEndpoint
	escrow   *contracts.Escrow
	store    core.Store
	logger   hclog.Logger

	packetArgs abi.Arguments
	hashArgs   abi.Arguments
}

func NewLayerZero(
	cfg LayerZeroConfig, client *ethclient.Client, endpoint *contracts.LayerZeroEndpoint,
	escrow *contracts.Escrow, store core.Store, logger hclog.Logger,
) *LayerZero {
	return &LayerZero{
		cfg:      cfg,
		client:   client,
		endpoint: endpoint,
		escrow:   escrow,
		store:    store,
		logger:   logger,
		packetArgs: abi.Arguments{
			{Name: "nonce", Type: mustAbiType("uint64")},
			{Name: "srcEid", Type: mustAbiType("uint32")},
			{Name: "sender", Type: mustAbiType("address")},
			{Name: "dstEid", Type: mustAbiType("uint32")},
			{Name: "receiver", Type: mustAbiType("address")},
			{Name: "guid", Type: mustAbiType("bytes32")},
			{Name: "message", Type: mustAbiType("bytes")},
		},
		hashArgs: abi.Arguments{
			{Name: "guid", Type: mustAbiType("bytes32")},
			{Name: "message", Type: mustAbiType("bytes")},
		},
	}
}

func (lz *LayerZero) Run(ctx context.Context, monitorCh <-chan core.MonitorStatus) error {
	scanCfg := scan.Config{
		Address:            lz.cfg.EndpointAddress,
		Topics:             [][]common.Hash{{lz.endpoint.PacketSentTopic()}},
		MaxBlocks:          lz.cfg.MaxBlocks,
		ProcessingInterval: lz.cfg.ProcessingInterval,
		RetryInterval:      lz.cfg.RetryInterval,
		StartingBlock:      lz.cfg.StartingBlock,
		StoppingBlock:      lz.cfg.StoppingBlock,
	}

	return scan.Run(ctx, lz.client, monitorCh, scanCfg, lz.handleLog, lz.logger)
}

type layerZeroPacket struct {
	Nonce    uint64
	SrcEid   uint32
	Sender   common.Address
	DstEid   uint32
	Receiver common.Address
	Guid     common.Hash
	Message  []byte
}

func (lz *LayerZero) handleLog(log types.Log) error {
	event, err := lz.endpoint.DecodePacketSent(log)
	if err != nil {
		return fmt.Errorf("layerzero collector: could not decode PacketSent: %w", err)
	}

	packet, err := lz.unpackPacket(event.EncodedPacket)
	if err != nil {
		return fmt.Errorf("layerzero collector: could not unpack encoded packet: %w", err)
	}

	if packet.Sender != lz.cfg.IncentivesAddress {
		return nil
	}

	garp, err := decodeGarpMessage(packet.Message)
	if err != nil {
		return fmt.Errorf("layerzero collector: could not decode GARP message: %w", err)
	}

	payloadHash, err := lz.payloadHash(packet.Guid, packet.Message)
	if err != nil {
		return fmt.Errorf("layerzero collector: could not compute payload hash: %w", err)
	}

	amb := core.AmbMessage{
		MessageIdentifier: garp.MessageIdentifier,
		Amb:               AmbNameLayerZero,
		SourceChain:       lz.cfg.ChainID,
		DestinationChain:  uint64(packet.DstEid),
		SourceEscrow:      lz.cfg.IncentivesAddress,
		Payload:           garp.Payload,
		SourceBlockNumber: log.BlockNumber,
		SourceBlockHash:   log.BlockHash,
	}

	if err := lz.store.SetAmb(amb); err != nil {
		return fmt.Errorf("layerzero collector: could not store amb message: %w", err)
	}

	secondary := amb
	secondary.Status = core.AmbAttestationPending

	if err := lz.store.SetPayloadLayerZeroAmb(payloadHash, secondary); err != nil {
		return fmt.Errorf("layerzero collector: could not store payload-hash index: %w", err)
	}

	return nil
}

func (lz *LayerZero) unpackPacket(encoded []byte) (*layerZeroPacket, error) {
	values, err := lz.packetArgs.Unpack(encoded)
	if err != nil {
		return nil, err
	}

	var out layerZeroPacket
	if err := lz.packetArgs.Copy(&out, values); err != nil {
		return nil, err
	}

	return &out, nil
}

func (lz *LayerZero) payloadHash(guid common.Hash, message []byte) (common.Hash, error) {
	encoded, err := lz.hashArgs.Pack(guid, message)
	if err != nil {
		return common.Hash{}, err
	}

	return common.BytesToHash(crypto.Keccak256(encoded)), nil
}

// garpMessage is the application-level envelope carried inside a LayerZero
// packet's Message field, per the GARP framing byte layout: byte 0 is a
// context flag, followed by a 32-byte messageIdentifier, a 20-byte sender
// address, a 20-byte destination address, and the remaining payload bytes.
type garpMessage struct {
	Context           byte
	MessageIdentifier common.Hash
	Sender            common.Address
	Destination       common.Address
	Payload           []byte
}

func decodeGarpMessage(raw []byte) (*garpMessage, error) {
	if len(raw) < garpMinimumLength {
		return nil, fmt.Errorf("garp message too short: %d bytes", len(raw))
	}

	return &garpMessage{
		Context:           raw[0],
		MessageIdentifier: common.BytesToHash(raw[garpMessageIdentifierOffset:garpSenderOffset]),
		Sender:            common.BytesToAddress(raw[garpSenderOffset:garpDestinationOffset]),
		Destination:       common.BytesToAddress(raw[garpDestinationOffset:garpMinimumLength]),
		Payload:           raw[garpMinimumLength:],
	}, nil
}

func mustAbiType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}

	return typ
}
