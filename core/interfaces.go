package core

import (
	"context"

	"github.com/ambridge-relay/relayer/bigint"
	"github.com/ethereum/go-ethereum/common"
)

// MonitorStatus is broadcast by the Monitor to every registered listener
// whenever a chain's observed tip advances.
type MonitorStatus struct {
	ChainID     uint64 `json:"chainId"`
	BlockNumber uint64 `json:"blockNumber"`
}

// KeyChangeNotification is published on channel "key" for every Store
// set/del, carrying the affected key and the action taken.
type KeyChangeNotification struct {
	Key    string `json:"key"`
	Action string `json:"action"` // "set" | "del"
}

const (
	KeyActionSet = "set"
	KeyActionDel = "del"
)

// Store is the facade every worker shares state and messages through. It is
// the sole cross-worker integration point other than the dedicated
// Submitter<->Wallet and Monitor<->consumer ports.
type Store interface {
	Get(key string, out any) (bool, error)
	Set(key string, value any) error
	Del(key string) error
	Scan(prefix string, fn func(key string, value []byte) error) error
	Publish(channel string, payload any) error
	Subscribe(ctx context.Context, channel string, handler func(payload []byte)) error
	Close() error

	RegisterBountyPlaced(b Bounty) error
	RegisterMessageDelivered(b Bounty) error
	RegisterBountyClaimed(b Bounty) error
	RegisterBountyIncreased(messageIdentifier MessageIdentifier, priceOfDeliveryGas, priceOfAckGas bigint.Int) error
	RegisterDestinationAddress(messageIdentifier MessageIdentifier, destinationAddress string) error
	RegisterDeliveryCost(messageIdentifier MessageIdentifier, cost bigint.Int) error
	GetBounty(messageIdentifier MessageIdentifier) (*Bounty, bool, error)
	ScanBountiesByTransactionHash(txHash common.Hash, fn func(Bounty) error) error

	SetAmb(amb AmbMessage) error
	SetPayloadLayerZeroAmb(payloadHash MessageIdentifier, amb AmbMessage) error
	GetAmb(messageIdentifier MessageIdentifier) (*AmbMessage, bool, error)
	GetAmbByLayerZeroPayloadHash(payloadHash MessageIdentifier) (*AmbMessage, bool, error)
	ResolveLayerZeroAttestation(payloadHash MessageIdentifier, proof []byte) error

	SubmitProof(destinationChainID uint64, payload AmbPayload) error
}
