package telemetry

import (
	"strconv"

	"github.com/armon/go-metrics"
)

const (
	getterMetricsPrefix    = "getter"
	collectorMetricsPrefix = "collector"
	submitterMetricsPrefix = "submitter"
	walletMetricsPrefix    = "wallet"
)

// UpdateGetterEventsProcessed adds cnt to the count of bounty lifecycle
// events a chain's Getter folded into the Store; the Getter calls it once
// per successfully handled event, with cnt 1.
func UpdateGetterEventsProcessed(chainID uint64, cnt int) {
	metrics.IncrCounter([]string{getterMetricsPrefix, "events_processed", chainIDLabel(chainID)}, float32(cnt))
}

// UpdateCollectorPayloadsSubmitted records how many AmbPayloads a
// collector handed to the Store for a chain/amb pair.
func UpdateCollectorPayloadsSubmitted(chainID uint64, amb string, cnt int) {
	metrics.IncrCounter([]string{collectorMetricsPrefix, "payloads_submitted", chainIDLabel(chainID), amb}, float32(cnt))
}

// UpdateSubmitterOrdersEvaluated records how many EvalOrders the Submitter
// approved or dropped for relay.
func UpdateSubmitterOrdersEvaluated(chainID uint64, approved bool) {
	label := "dropped"
	if approved {
		label = "approved"
	}

	metrics.IncrCounter([]string{submitterMetricsPrefix, "orders_evaluated", chainIDLabel(chainID), label}, 1)
}

// UpdateSubmitterDeliveryCost records the gas cost (wei) of one confirmed
// delivery transaction.
func UpdateSubmitterDeliveryCost(chainID uint64, weiCost float32) {
	metrics.AddSample([]string{submitterMetricsPrefix, "delivery_cost_wei", chainIDLabel(chainID)}, weiCost)
}

// UpdateWalletBalanceEstimate reports a chain's Wallet's locally tracked
// balance estimate (wei).
func UpdateWalletBalanceEstimate(chainID uint64, weiBalance float32) {
	metrics.SetGauge([]string{walletMetricsPrefix, "balance_estimate_wei", chainIDLabel(chainID)}, weiBalance)
}

// UpdateWalletStalled reports the wallet-stall fatal condition as a gauge
// so it survives past the single log line that also reports it.
func UpdateWalletStalled(chainID uint64) {
	metrics.SetGauge([]string{walletMetricsPrefix, "stalled", chainIDLabel(chainID)}, 1)
}

func chainIDLabel(chainID uint64) string {
	return "chain_" + strconv.FormatUint(chainID, 10)
}
