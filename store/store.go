// Package store implements the relayer's shared key/value + pub-sub facade:
// a bbolt-backed KV half and an in-process Bus half, with the typed
// operations every worker uses to read and merge domain records.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ambridge-relay/relayer/bigint"
	"github.com/ambridge-relay/relayer/core"
	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/go-hclog"
)

const (
	midfixBounty = "bounty"
	midfixAmb    = "amb"
	midfixProof  = "proof"

	// ChannelAMB broadcasts proof arrival, payload AmbPayload.
	ChannelAMB = "amb"
	// ChannelKey broadcasts core.KeyChangeNotification for every set/del.
	ChannelKey = "key"
)

func bountyKey(id core.MessageIdentifier) string {
	return fmt.Sprintf("relayer:%s:%s", midfixBounty, id.Hex())
}

func ambKey(id core.MessageIdentifier) string {
	return fmt.Sprintf("relayer:%s:%s", midfixAmb, id.Hex())
}

func ambLayerZeroKey(payloadHash core.MessageIdentifier) string {
	return fmt.Sprintf("relayer:%s:%s:lz", midfixAmb, payloadHash.Hex())
}

func proofKey(id core.MessageIdentifier) string {
	return fmt.Sprintf("relayer:%s:%s", midfixProof, id.Hex())
}

// SubmitChannel returns the well-known submit-<chainId> channel name the
// Submitter dispatcher consumes.
func SubmitChannel(chainID uint64) string {
	return fmt.Sprintf("submit-%d", chainID)
}

// Store is the concrete implementation of core.Store.
type Store struct {
	kv     *kv
	bus    *Bus
	logger hclog.Logger
}

var _ core.Store = (*Store)(nil)

// New opens (or creates) the bbolt file at filePath and wires it to a fresh
// in-process Bus.
func New(filePath string, logger hclog.Logger) (*Store, error) {
	kv, err := openKV(filePath)
	if err != nil {
		return nil, err
	}

	return &Store{kv: kv, bus: newBus(), logger: logger}, nil
}

func (s *Store) Close() error {
	return s.kv.close()
}

func (s *Store) Get(key string, out any) (bool, error) {
	return s.kv.get(key, out)
}

func (s *Store) Set(key string, value any) error {
	if err := s.kv.set(key, value); err != nil {
		return err
	}

	return s.publishKeyChange(key, core.KeyActionSet)
}

func (s *Store) Del(key string) error {
	if err := s.kv.del(key); err != nil {
		return err
	}

	return s.publishKeyChange(key, core.KeyActionDel)
}

func (s *Store) Scan(prefix string, fn func(key string, value []byte) error) error {
	return s.kv.scan(prefix, fn)
}

func (s *Store) Publish(channel string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("could not marshal payload for channel %s: %w", channel, err)
	}

	s.bus.Publish("relayer:"+channel, data)

	return nil
}

func (s *Store) Subscribe(ctx context.Context, channel string, handler func(payload []byte)) error {
	return s.bus.Subscribe(ctx, "relayer:"+channel, handler)
}

func (s *Store) publishKeyChange(key, action string) error {
	return s.Publish(ChannelKey, core.KeyChangeNotification{Key: key, Action: action})
}

// GetBounty returns the current merged Bounty record for id, if any.
func (s *Store) GetBounty(id core.MessageIdentifier) (*core.Bounty, bool, error) {
	var b core.Bounty

	found, err := s.kv.get(bountyKey(id), &b)
	if err != nil || !found {
		return nil, found, err
	}

	return &b, true, nil
}

// ScanBountiesByTransactionHash calls fn for every Bounty record whose
// submit, exec or ack transaction hash equals txHash. Used by the api
// package to answer "what AMB messages came out of this transaction".
func (s *Store) ScanBountiesByTransactionHash(txHash common.Hash, fn func(core.Bounty) error) error {
	prefix := fmt.Sprintf("relayer:%s:", midfixBounty)

	return s.kv.scan(prefix, func(_ string, value []byte) error {
		var b core.Bounty
		if err := json.Unmarshal(value, &b); err != nil {
			return err
		}

		if b.SubmitTransactionHash != txHash && b.ExecTransactionHash != txHash && b.AckTransactionHash != txHash {
			return nil
		}

		return fn(b)
	})
}

func (s *Store) mergeBounty(incoming core.Bounty) error {
	existing, found, err := s.GetBounty(incoming.MessageIdentifier)
	if err != nil {
		return err
	}

	merged := incoming
	if found {
		merged = existing.Merge(incoming)
	}

	return s.Set(bountyKey(incoming.MessageIdentifier), merged)
}

// RegisterBountyPlaced creates or merges the Bounty for a freshly observed
// BountyPlaced event. On conflict, the on-disk version's non-null fields win
// over the freshly constructed one (handled by Bounty.Merge).
func (s *Store) RegisterBountyPlaced(b core.Bounty) error {
	b.Status = core.BountyPlaced

	if err := s.mergeBounty(b); err != nil {
		return fmt.Errorf("registerBountyPlaced: %w", err)
	}

	s.logger.Debug("bounty placed", "messageIdentifier", b.MessageIdentifier)

	return nil
}

// RegisterMessageDelivered sets status to max(existing, MessageDelivered)
// and fills execTransactionHash/toChainId. If the source BountyPlaced event
// was missed, this lazily creates the Bounty record instead.
func (s *Store) RegisterMessageDelivered(b core.Bounty) error {
	b.Status = core.MessageDelivered

	if err := s.mergeBounty(b); err != nil {
		return fmt.Errorf("registerMessageDelivered: %w", err)
	}

	s.logger.Debug("message delivered", "messageIdentifier", b.MessageIdentifier)

	return nil
}

// RegisterBountyClaimed sets status to BountyClaimed and fills
// ackTransactionHash. Terminal state in the Bounty lifecycle.
func (s *Store) RegisterBountyClaimed(b core.Bounty) error {
	b.Status = core.BountyClaimed
	b.Finalised = true

	if err := s.mergeBounty(b); err != nil {
		return fmt.Errorf("registerBountyClaimed: %w", err)
	}

	s.logger.Debug("bounty claimed", "messageIdentifier", b.MessageIdentifier)

	return nil
}

// RegisterBountyIncreased takes the field-wise max of priceOfDeliveryGas and
// priceOfAckGas against the existing record, writing only if either
// strictly increased.
func (s *Store) RegisterBountyIncreased(
	id core.MessageIdentifier, priceOfDeliveryGas, priceOfAckGas bigint.Int,
) error {
	existing, found, err := s.GetBounty(id)
	if err != nil {
		return fmt.Errorf("registerBountyIncreased: %w", err)
	}

	if !found {
		return fmt.Errorf("registerBountyIncreased: unknown bounty %s", id)
	}

	newDelivery := bigint.Max(existing.PriceOfDeliveryGas, priceOfDeliveryGas)
	newAck := bigint.Max(existing.PriceOfAckGas, priceOfAckGas)

	if newDelivery.Cmp(existing.PriceOfDeliveryGas) == 0 && newAck.Cmp(existing.PriceOfAckGas) == 0 {
		return nil
	}

	existing.PriceOfDeliveryGas = newDelivery
	existing.PriceOfAckGas = newAck

	return s.Set(bountyKey(id), *existing)
}

// RegisterDestinationAddress fills the Bounty's destinationAddress field.
func (s *Store) RegisterDestinationAddress(id core.MessageIdentifier, destinationAddress string) error {
	existing, found, err := s.GetBounty(id)
	if err != nil {
		return fmt.Errorf("registerDestinationAddress: %w", err)
	}

	if !found {
		return fmt.Errorf("registerDestinationAddress: unknown bounty %s", id)
	}

	existing.DestinationAddress = common.HexToAddress(destinationAddress)

	return s.Set(bountyKey(id), *existing)
}

// RegisterDeliveryCost fills the Bounty's deliveryGasCost field.
func (s *Store) RegisterDeliveryCost(id core.MessageIdentifier, cost bigint.Int) error {
	existing, found, err := s.GetBounty(id)
	if err != nil {
		return fmt.Errorf("registerDeliveryCost: %w", err)
	}

	if !found {
		return fmt.Errorf("registerDeliveryCost: unknown bounty %s", id)
	}

	existing.DeliveryGasCost = cost

	return s.Set(bountyKey(id), *existing)
}

// SetAmb stores amb under its messageIdentifier.
func (s *Store) SetAmb(amb core.AmbMessage) error {
	return s.Set(ambKey(amb.MessageIdentifier), amb)
}

// SetPayloadLayerZeroAmb writes amb under the secondary payload-hash index
// used only by the LayerZero collector, which observes PacketSent by payload
// hash before it can recover the messageIdentifier.
func (s *Store) SetPayloadLayerZeroAmb(payloadHash core.MessageIdentifier, amb core.AmbMessage) error {
	return s.Set(ambLayerZeroKey(payloadHash), amb)
}

// GetAmb returns the AmbMessage for id, if any.
func (s *Store) GetAmb(id core.MessageIdentifier) (*core.AmbMessage, bool, error) {
	var amb core.AmbMessage

	found, err := s.kv.get(ambKey(id), &amb)
	if err != nil || !found {
		return nil, found, err
	}

	return &amb, true, nil
}

// GetAmbByLayerZeroPayloadHash resolves the secondary index written by
// SetPayloadLayerZeroAmb.
func (s *Store) GetAmbByLayerZeroPayloadHash(payloadHash core.MessageIdentifier) (*core.AmbMessage, bool, error) {
	var amb core.AmbMessage

	found, err := s.kv.get(ambLayerZeroKey(payloadHash), &amb)
	if err != nil || !found {
		return nil, found, err
	}

	return &amb, true, nil
}

// ResolveLayerZeroAttestation supplies the peer attestation proof for a
// secondary LayerZero record and, once resolved, submits it for delivery.
// This is the typed seam SPEC_FULL.md's attestation-path Open Question
// resolves to: the attestation path itself is out of scope, but calling
// this once an attestation becomes available completes the record.
func (s *Store) ResolveLayerZeroAttestation(payloadHash core.MessageIdentifier, proof []byte) error {
	amb, found, err := s.GetAmbByLayerZeroPayloadHash(payloadHash)
	if err != nil {
		return fmt.Errorf("resolveLayerZeroAttestation: %w", err)
	}

	if !found {
		return fmt.Errorf("resolveLayerZeroAttestation: no pending attestation for payload hash %s", payloadHash)
	}

	amb.Status = core.AmbAttestationResolved
	amb.MessageCtx = proof

	if err := s.Set(ambLayerZeroKey(payloadHash), *amb); err != nil {
		return fmt.Errorf("resolveLayerZeroAttestation: %w", err)
	}

	return s.SubmitProof(amb.DestinationChain, core.AmbPayload{
		MessageIdentifier:  amb.MessageIdentifier,
		Amb:                amb.Amb,
		DestinationChainID: amb.DestinationChain,
		Message:            amb.Payload,
		MessageCtx:         proof,
		Priority:           amb.Priority,
	})
}

// SubmitProof persists payload under its messageIdentifier and publishes it
// on both ChannelAMB and submit-<destinationChainId>, which is what drives
// the Submitter's EvalQueue.
func (s *Store) SubmitProof(destinationChainID uint64, payload core.AmbPayload) error {
	if err := s.Set(proofKey(payload.MessageIdentifier), payload); err != nil {
		return fmt.Errorf("submitProof: %w", err)
	}

	if err := s.Publish(ChannelAMB, payload); err != nil {
		return fmt.Errorf("submitProof: %w", err)
	}

	if err := s.Publish(SubmitChannel(destinationChainID), payload); err != nil {
		return fmt.Errorf("submitProof: %w", err)
	}

	return nil
}
