// Package core holds the domain types shared by the Store, Getter,
// Collector, Evaluator, Submitter and Wallet: the entities that flow through
// the key/value store and the inter-worker queues.
package core

import (
	"github.com/ambridge-relay/relayer/bigint"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// BountyStatus is a monotonically-advancing enum: a Bounty's status for a
// given MessageIdentifier never decreases.
type BountyStatus int

const (
	BountyPlaced BountyStatus = iota
	MessageDelivered
	BountyClaimed
)

func (s BountyStatus) String() string {
	switch s {
	case BountyPlaced:
		return "BountyPlaced"
	case MessageDelivered:
		return "MessageDelivered"
	case BountyClaimed:
		return "BountyClaimed"
	default:
		return "Unknown"
	}
}

// MessageIdentifier is the 32-byte opaque identifier chosen by the escrow
// contract; it is the primary key joining all per-message state.
type MessageIdentifier = common.Hash

// Bounty is the per-message bounty record held in the Store under midfix
// "bounty". Amounts are arbitrary-precision integers coded as decimal
// strings (bigint.Int), never float64.
type Bounty struct {
	MessageIdentifier MessageIdentifier `json:"messageIdentifier"`
	FromChainID       uint64            `json:"fromChainId"`
	ToChainID         uint64            `json:"toChainId,omitempty"`

	MaxGasDelivery     bigint.Int `json:"maxGasDelivery"`
	MaxGasAck          bigint.Int `json:"maxGasAck"`
	PriceOfDeliveryGas bigint.Int `json:"priceOfDeliveryGas"`
	PriceOfAckGas      bigint.Int `json:"priceOfAckGas"`
	TargetDelta        bigint.Int `json:"targetDelta"`
	DeliveryGasCost    bigint.Int `json:"deliveryGasCost,omitempty"`

	RefundGasTo         common.Address `json:"refundGasTo"`
	SourceAddress       common.Address `json:"sourceAddress"`
	DestinationAddress  common.Address `json:"destinationAddress,omitempty"`

	Status    BountyStatus `json:"status"`
	Finalised bool         `json:"finalised"`

	SubmitTransactionHash common.Hash `json:"submitTransactionHash,omitempty"`
	ExecTransactionHash   common.Hash `json:"execTransactionHash,omitempty"`
	AckTransactionHash    common.Hash `json:"ackTransactionHash,omitempty"`
}

// Merge folds incoming into the on-disk record b, taking the field-wise
// maximum of Status and the monotonic price fields, and preserving every
// non-zero field of whichever side already has it set. Merge never loses
// information that was already on disk; it is the sole way Bounty records
// are updated (see Store.RegisterBountyPlaced et al).
func (b Bounty) Merge(incoming Bounty) Bounty {
	merged := b

	if merged.FromChainID == 0 {
		merged.FromChainID = incoming.FromChainID
	}

	if incoming.Status > merged.Status {
		merged.Status = incoming.Status
	}

	merged.PriceOfDeliveryGas = bigint.Max(merged.PriceOfDeliveryGas, incoming.PriceOfDeliveryGas)
	merged.PriceOfAckGas = bigint.Max(merged.PriceOfAckGas, incoming.PriceOfAckGas)

	if merged.MaxGasDelivery.IsZero() {
		merged.MaxGasDelivery = incoming.MaxGasDelivery
	}

	if merged.MaxGasAck.IsZero() {
		merged.MaxGasAck = incoming.MaxGasAck
	}

	if merged.TargetDelta.IsZero() {
		merged.TargetDelta = incoming.TargetDelta
	}

	if merged.DeliveryGasCost.IsZero() {
		merged.DeliveryGasCost = incoming.DeliveryGasCost
	}

	if merged.ToChainID == 0 {
		merged.ToChainID = incoming.ToChainID
	}

	if (merged.DestinationAddress == common.Address{}) {
		merged.DestinationAddress = incoming.DestinationAddress
	}

	if (merged.RefundGasTo == common.Address{}) {
		merged.RefundGasTo = incoming.RefundGasTo
	}

	if (merged.SourceAddress == common.Address{}) {
		merged.SourceAddress = incoming.SourceAddress
	}

	if (merged.SubmitTransactionHash == common.Hash{}) {
		merged.SubmitTransactionHash = incoming.SubmitTransactionHash
	}

	if (merged.ExecTransactionHash == common.Hash{}) {
		merged.ExecTransactionHash = incoming.ExecTransactionHash
	}

	if (merged.AckTransactionHash == common.Hash{}) {
		merged.AckTransactionHash = incoming.AckTransactionHash
	}

	merged.Finalised = merged.Finalised || incoming.Finalised

	return merged
}

// AmbMessageStatus distinguishes a LayerZero secondary payload-hash record
// still waiting on its peer attestation from one that has been resolved
// and is ready to submit. It is meaningless for primary AmbMessage records,
// which are always ready the moment they are written.
type AmbMessageStatus int

const (
	AmbAttestationPending AmbMessageStatus = iota
	AmbAttestationResolved
)

// AmbMessage is the raw cross-chain message as observed at the source,
// stored under midfix "amb".
type AmbMessage struct {
	MessageIdentifier MessageIdentifier `json:"messageIdentifier"`
	Amb               string            `json:"amb"`
	SourceChain       uint64            `json:"sourceChain"`
	DestinationChain  uint64            `json:"destinationChain"`
	SourceEscrow      common.Address    `json:"sourceEscrow"`
	Payload           []byte            `json:"payload"`
	MessageCtx        []byte            `json:"messageCtx,omitempty"`
	RecoveryContext   []byte            `json:"recoveryContext,omitempty"`
	Priority           uint8            `json:"priority"`
	SourceBlockNumber  uint64           `json:"sourceBlockNumber"`
	SourceBlockHash    common.Hash      `json:"sourceBlockHash"`
	Status             AmbMessageStatus `json:"status,omitempty"`
}

// AmbPayload is the delivery-ready tuple produced by a Collector once it has
// the attestation/proof an AMB requires, stored under midfix "proof" and
// published on channel "amb" and on "submit-<destinationChainId>".
type AmbPayload struct {
	MessageIdentifier  MessageIdentifier `json:"messageIdentifier"`
	Amb                string            `json:"amb"`
	DestinationChainID uint64            `json:"destinationChainId"`
	Message            []byte            `json:"message"`
	MessageCtx         []byte            `json:"messageCtx,omitempty"`
	Priority           uint8             `json:"priority,omitempty"`
}

// Order is the queue record shared by the Evaluator and Submitter.
type Order struct {
	Amb                string            `json:"amb"`
	FromChainID        uint64            `json:"fromChainId"`
	MessageIdentifier  MessageIdentifier `json:"messageIdentifier"`
	Message            []byte            `json:"message"`
	MessageCtx         []byte            `json:"messageCtx,omitempty"`
	IncentivesPayload  *Bounty           `json:"incentivesPayload,omitempty"`
}

// EvalOrder is an Order awaiting an Evaluator decision.
type EvalOrder struct {
	Order

	Priority           uint8     `json:"priority"`
	EvaluationDeadline int64     `json:"evaluationDeadline"`
	RetryEvaluation    bool      `json:"retryEvaluation"`
}

// TransactionRequest is the built, unsigned call the Wallet is asked to send.
type TransactionRequest struct {
	To       common.Address `json:"to"`
	Data     []byte         `json:"data"`
	Value    bigint.Int     `json:"value"`
	GasLimit uint64         `json:"gasLimit,omitempty"`
}

// SubmitOrder is an Order accepted for submission, driven through the Wallet.
type SubmitOrder struct {
	Order

	IsDelivery          bool                `json:"isDelivery"`
	Priority            uint8               `json:"priority"`
	TransactionRequest  TransactionRequest  `json:"transactionRequest"`
	RequeueCount        int                 `json:"requeueCount"`
}

// Key returns the dedup key used by the Submitter's ProcessingQueue stages:
// at most one in-flight SubmitOrder per (chain, message, isDelivery).
func (o SubmitOrder) Key() string {
	kind := "ack"
	if o.IsDelivery {
		kind = "delivery"
	}

	return o.MessageIdentifier.String() + ":" + kind
}

// WalletRequest is submitted over a chain's Wallet request port. Response
// must be buffered (capacity ≥ 1): the Wallet sends exactly once and never
// blocks on a slow reader.
type WalletRequest struct {
	TransactionRequest TransactionRequest
	Metadata           string
	Response           chan WalletResponse
}

// WalletResponse is the single reply delivered on WalletRequest.Response.
// Exactly one of the error fields is set on failure; both are nil on
// success.
type WalletResponse struct {
	Tx                *types.Transaction
	TxReceipt         *types.Receipt
	SubmissionError   error
	ConfirmationError error
	Metadata          string
}
