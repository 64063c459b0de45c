// Package config loads the relayer's JSON configuration file, following
// common.LoadJson[T]'s generic-decode pattern already used by the
// teacher's cli commands, and resolves the handful of environment
// variables that influence which file and backing paths are used.
package config

import (
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ambridge-relay/relayer/common"
)

// GetterDefaults holds the per-chain scanning policy, overridable per
// chain in AppConfig.Chains[i].Getter.
type GetterDefaults struct {
	RetryInterval      time.Duration `json:"retryInterval"`
	ProcessingInterval time.Duration `json:"processingInterval"`
	MaxBlocks          uint64        `json:"maxBlocks"`
	StartingBlock      *uint64       `json:"startingBlock,omitempty"`
	StoppingBlock      *uint64       `json:"stoppingBlock,omitempty"`
}

// SubmitterDefaults holds the per-chain submission and gas-pricing policy,
// overridable per chain in AppConfig.Chains[i].Submitter.
type SubmitterDefaults struct {
	Enabled                 bool              `json:"enabled"`
	NewOrdersDelay          time.Duration     `json:"newOrdersDelay"`
	RetryInterval           time.Duration     `json:"retryInterval"`
	ProcessingInterval      time.Duration     `json:"processingInterval"`
	MaxTries                int               `json:"maxTries"`
	MaxPendingTransactions  int               `json:"maxPendingTransactions"`
	GasLimitBuffer          map[string]uint64 `json:"gasLimitBuffer"`

	// ReceiptWaitTime/ReceiptMaxRetries bound how long the Wallet polls
	// eth_getTransactionReceipt for a submitted tx before treating it as
	// timed out and moving to the repricing attempt. Zero keeps
	// eth/txhelper's own defaults.
	ReceiptWaitTime   time.Duration `json:"receiptWaitTime,omitempty"`
	ReceiptMaxRetries int           `json:"receiptMaxRetries,omitempty"`

	IsDynamic                     bool     `json:"isDynamic"`
	MaxFeePerGas                  *big.Int `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeeAdjustmentFactor uint64   `json:"maxPriorityFeeAdjustmentFactor,omitempty"`
	MaxAllowedPriorityFeePerGas    *big.Int `json:"maxAllowedPriorityFeePerGas,omitempty"`
	GasPriceAdjustmentFactor       uint64   `json:"gasPriceAdjustmentFactor,omitempty"`
	MaxAllowedGasPrice             *big.Int `json:"maxAllowedGasPrice,omitempty"`
	PriorityAdjustmentFactor       uint64   `json:"priorityAdjustmentFactor,omitempty"`
	LowBalanceWarning              *big.Int `json:"lowBalanceWarning,omitempty"`
}

// RelayerConfig is the `relayer` section: the signing key and the
// defaults every chain's Getter/Submitter inherits unless overridden.
type RelayerConfig struct {
	PrivateKey string `json:"privateKey"`
	LogLevel   string `json:"logLevel"`
	DbsPath    string `json:"dbsPath"`

	Getter    GetterDefaults    `json:"getter"`
	Submitter SubmitterDefaults `json:"submitter"`
}

// AmbConfig is one entry of the `ambs` map: an enabled AMB's global
// defaults, overridable per chain under Chains[i].Ambs[name].
type AmbConfig struct {
	IncentivesAddress string `json:"incentivesAddress,omitempty"`
	EndpointAddress   string `json:"endpointAddress,omitempty"`
	SigningKeyHex     string `json:"signingKeyHex,omitempty"`
}

// ChainConfig is one entry of the `chains` list.
type ChainConfig struct {
	ChainID uint64 `json:"chainId"`
	RPC     string `json:"rpc"`

	Getter    *GetterDefaults    `json:"getter,omitempty"`
	Submitter *SubmitterDefaults `json:"submitter,omitempty"`

	// Ambs overrides the global ambs[name] entries for this chain alone;
	// a chain with no entry for an enabled AMB inherits the global one.
	Ambs map[string]AmbConfig `json:"ambs,omitempty"`
}

// ApiConfig is the optional `api` section exposing the read-only HTTP
// lookup endpoint alongside the core workers.
type ApiConfig struct {
	Addr string `json:"addr,omitempty"` // empty disables the api server
}

// TelemetryConfig is the optional `telemetry` section.
type TelemetryConfig struct {
	PrometheusAddr string `json:"prometheusAddr,omitempty"`
}

// AppConfig is the root of config.<env>.json, per spec §6.
type AppConfig struct {
	Relayer   RelayerConfig        `json:"relayer"`
	Ambs      map[string]AmbConfig `json:"ambs"`
	Chains    []ChainConfig        `json:"chains"`
	Api       ApiConfig            `json:"api,omitempty"`
	Telemetry TelemetryConfig      `json:"telemetry,omitempty"`
}

// AmbFor resolves the effective AmbConfig for chain c and amb name,
// preferring the chain-level override over the global entry.
func (c AppConfig) AmbFor(chain ChainConfig, amb string) (AmbConfig, bool) {
	if override, ok := chain.Ambs[amb]; ok {
		return override, true
	}

	global, ok := c.Ambs[amb]

	return global, ok
}

// GetterFor resolves the effective GetterDefaults for chain.
func (c AppConfig) GetterFor(chain ChainConfig) GetterDefaults {
	if chain.Getter != nil {
		return *chain.Getter
	}

	return c.Relayer.Getter
}

// SubmitterFor resolves the effective SubmitterDefaults for chain.
func (c AppConfig) SubmitterFor(chain ChainConfig) SubmitterDefaults {
	if chain.Submitter != nil {
		return *chain.Submitter
	}

	return c.Relayer.Submitter
}

// fileNameForEnv mirrors NODE_ENV's "config.<env>.json" selection; an empty
// NODE_ENV resolves to config.json (spec's implicit default environment).
func fileNameForEnv() string {
	env := os.Getenv("NODE_ENV")
	if env == "" {
		return "config.json"
	}

	return fmt.Sprintf("config.%s.json", env)
}

// Load reads configDir/config.<NODE_ENV>.json (or a literal path if
// configPath is non-empty) into an AppConfig. USE_DOCKER, when set and
// Relayer.DbsPath is empty, sets Relayer.DbsPath to the Docker-conventional
// /data/ directory (an explicitly configured DbsPath is left as is),
// substituting for the reference's "redis" hostname swap: this module's
// Store is an embedded bbolt file, not a networked service, so there is
// no hostname to swap — only the on-disk path changes.
func Load(configPath, configDir string) (*AppConfig, error) {
	path := configPath
	if path == "" {
		path = configDir + "/" + fileNameForEnv()
	}

	cfg, err := common.LoadJson[AppConfig](path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if os.Getenv("USE_DOCKER") != "" && cfg.Relayer.DbsPath == "" {
		cfg.Relayer.DbsPath = "/data/"
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if c.Relayer.PrivateKey == "" {
		return fmt.Errorf("relayer.privateKey is required")
	}

	if len(c.Chains) == 0 {
		return fmt.Errorf("at least one entry under chains is required")
	}

	seen := make(map[uint64]bool, len(c.Chains))

	for _, chain := range c.Chains {
		if chain.RPC == "" {
			return fmt.Errorf("chain %d: rpc is required", chain.ChainID)
		}

		if !common.IsValidURL(chain.RPC) {
			return fmt.Errorf("chain %d: rpc %q is not a valid url", chain.ChainID, chain.RPC)
		}

		if seen[chain.ChainID] {
			return fmt.Errorf("chain %d: duplicate entry", chain.ChainID)
		}

		seen[chain.ChainID] = true
	}

	return nil
}
