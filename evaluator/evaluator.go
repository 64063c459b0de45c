// Package evaluator decides whether a bounty is worth relaying. It is
// intentionally a small pure function package, independently testable and
// swappable, rather than inlined into the Submitter.
package evaluator

import (
	"math/big"

	"github.com/ambridge-relay/relayer/bigint"
	"github.com/ambridge-relay/relayer/core"
)

// FeeData is the destination chain's current fee snapshot, passed through
// for a future richer price relation; the current policy decides on the
// bounty's own price fields alone.
type FeeData struct {
	GasPrice             bigint.Int
	MaxPriorityFeePerGas bigint.Int
}

// ShouldRelay approves a delivery when the escrowed reward covers the
// estimated gas cost: bounty.priceOfDeliveryGas*gasEstimate must not exceed
// bounty.maxGasDelivery*bounty.priceOfDeliveryGas, and gasEstimate must not
// exceed bounty.maxGasDelivery outright. priority bypasses the cost check
// entirely (the caller still must simulate the transaction).
func ShouldRelay(bounty core.Bounty, gasEstimate uint64, priority bool, _ FeeData) bool {
	if priority {
		return true
	}

	estimate := bigint.NewFromUint64(gasEstimate)

	if estimate.Cmp(bounty.MaxGasDelivery) > 0 {
		return false
	}

	reward := new(big.Int).Mul(bounty.PriceOfDeliveryGas.Big(), estimate.Big())
	escrowed := new(big.Int).Mul(bounty.MaxGasDelivery.Big(), bounty.PriceOfDeliveryGas.Big())

	return reward.Cmp(escrowed) <= 0
}
