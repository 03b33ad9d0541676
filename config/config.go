// Package config loads the agent's YAML process configuration into
// typed structs, grounded on the teacher's config.Parse/types.Config
// shape: read the whole file, unmarshal once, never touch it again
// once a process is running (spec.md §6).
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SignerConfig recognizes exactly the three backends spec.md §6 names.
// Only one of Local/HSM/Queue should be set.
type SignerConfig struct {
	Local *LocalSignerConfig `yaml:"local,omitempty"`
	HSM   *HSMSignerConfig   `yaml:"hsm,omitempty"`
	Queue *QueueSignerConfig `yaml:"queue,omitempty"`
}

type LocalSignerConfig struct {
	PrivateKey string `yaml:"privateKey"`
}

type HSMSignerConfig struct {
	URL     string `yaml:"url"`
	KeyName string `yaml:"keyName"`
	Address string `yaml:"address"`
	TLSKey  string `yaml:"tlsKey,omitempty"`
	TLSCert string `yaml:"tlsCert,omitempty"`
}

type QueueSignerConfig struct {
	URL      string `yaml:"url"`
	Address  string `yaml:"address"`
	Priority int    `yaml:"priority"`
}

// NodeConfig is one entry of an S-chain's node roster (spec.md §4.8).
type NodeConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// ChainConfig describes one named chain endpoint.
type ChainConfig struct {
	Name         string       `yaml:"name"`
	ChainID      uint64       `yaml:"chainId"`
	RPC          string       `yaml:"rpc"`
	WS           string       `yaml:"ws,omitempty"`
	IsMainnet    bool         `yaml:"isMainnet"`
	MessageProxy string       `yaml:"messageProxy"`
	NodeRoster   []NodeConfig `yaml:"nodeRoster,omitempty"`
	Signer       SignerConfig `yaml:"signer"`

	// SignatureCollectorURL points at the threshold-BLS quorum service
	// for messages originating on this chain (spec.md §4.6). Left
	// empty, the direction falls back to the all-zero test stub.
	SignatureCollectorURL string `yaml:"signatureCollectorUrl,omitempty"`

	// PowSidecarPath, when set, points at an external proof-of-work
	// helper binary invoked when a submission to this chain can't cover
	// gasPrice*gasLimit (spec.md §4.4 step 4, §9's PoW sidecar note).
	// Left empty, the free-gas fallback is disabled for this chain.
	PowSidecarPath string `yaml:"powSidecarPath,omitempty"`
}

// DirectionConfig enables one (source,destination) transfer direction
// and carries its per-direction option overrides (spec.md §6, and
// §4's "per-direction runtime option overrides" supplement).
type DirectionConfig struct {
	Source      string `yaml:"source"`
	Destination string `yaml:"destination"`
	Enabled     bool   `yaml:"enabled"`

	Options *ProcessOptions `yaml:"options,omitempty"`
}

// ProcessOptions are the process-wide tunables of spec.md §6, with the
// documented defaults. A direction may override any subset via
// DirectionConfig.Options; unset fields fall back to the global value.
type ProcessOptions struct {
	TransactionsPerBlock                   int           `yaml:"transactionsPerBlock"`
	TransferSteps                          int           `yaml:"transferSteps"`
	MaxTransactionsCount                   int           `yaml:"maxTransactionsCount"`
	BlockAwaitDepth                        uint64        `yaml:"blockAwaitDepth"`
	BlockAge                               time.Duration `yaml:"blockAge"`
	SleepBetweenTxOnSChainMs               int           `yaml:"sleepBetweenTxOnSChainMs"`
	WaitForNextBlockOnSChain               bool          `yaml:"waitForNextBlockOnSChain"`
	ProgressiveEventsScan                  bool          `yaml:"progressiveEventsScan"`
	CountOfBlocksInIterativeStep           uint64        `yaml:"countOfBlocksInIterativeStep"`
	MaxIterationsInAllRange                uint64        `yaml:"maxIterationsInAllRange"`
	SleepBeforeFetchOutgoingMessageEventMs int           `yaml:"sleepBeforeFetchOutgoingMessageEventMs"`
	PriceMultiplier                        float64       `yaml:"priceMultiplier"`
	MaxGasPrice                            string        `yaml:"maxGasPrice,omitempty"`
}

// DefaultProcessOptions returns spec.md §6's documented defaults.
// PriceMultiplier is left zero so each chain keeps its own gas-policy
// default (1.25 on mainnet, 1.0 on S-chains).
func DefaultProcessOptions() ProcessOptions {
	return ProcessOptions{
		TransactionsPerBlock:                   5,
		ProgressiveEventsScan:                  true,
		CountOfBlocksInIterativeStep:           1000,
		MaxIterationsInAllRange:                5000,
		SleepBeforeFetchOutgoingMessageEventMs: 5000,
	}
}

// Merge overlays any non-zero field of override onto a copy of the
// receiver, implementing the "per direction or globally" resolution
// order of spec.md §6.
func (o ProcessOptions) Merge(override *ProcessOptions) ProcessOptions {
	if override == nil {
		return o
	}
	merged := o
	if override.TransactionsPerBlock != 0 {
		merged.TransactionsPerBlock = override.TransactionsPerBlock
	}
	if override.TransferSteps != 0 {
		merged.TransferSteps = override.TransferSteps
	}
	if override.MaxTransactionsCount != 0 {
		merged.MaxTransactionsCount = override.MaxTransactionsCount
	}
	if override.BlockAwaitDepth != 0 {
		merged.BlockAwaitDepth = override.BlockAwaitDepth
	}
	if override.BlockAge != 0 {
		merged.BlockAge = override.BlockAge
	}
	if override.SleepBetweenTxOnSChainMs != 0 {
		merged.SleepBetweenTxOnSChainMs = override.SleepBetweenTxOnSChainMs
	}
	if override.WaitForNextBlockOnSChain {
		merged.WaitForNextBlockOnSChain = true
	}
	if override.ProgressiveEventsScan {
		merged.ProgressiveEventsScan = true
	}
	if override.CountOfBlocksInIterativeStep != 0 {
		merged.CountOfBlocksInIterativeStep = override.CountOfBlocksInIterativeStep
	}
	if override.MaxIterationsInAllRange != 0 {
		merged.MaxIterationsInAllRange = override.MaxIterationsInAllRange
	}
	if override.SleepBeforeFetchOutgoingMessageEventMs != 0 {
		merged.SleepBeforeFetchOutgoingMessageEventMs = override.SleepBeforeFetchOutgoingMessageEventMs
	}
	if override.PriceMultiplier != 0 {
		merged.PriceMultiplier = override.PriceMultiplier
	}
	if override.MaxGasPrice != "" {
		merged.MaxGasPrice = override.MaxGasPrice
	}
	return merged
}

// Config is the whole agent process configuration.
type Config struct {
	Chains     map[string]ChainConfig `yaml:"chains"`
	Directions []DirectionConfig      `yaml:"directions"`
	Options    ProcessOptions         `yaml:"options"`

	APIListenAddr     string `yaml:"apiListenAddr,omitempty"`
	MetricsListenAddr string `yaml:"metricsListenAddr,omitempty"`

	ConfigFileLocation string `yaml:"-"`
}

// Parse reads and unmarshals file into a Config, filling documented
// process-option defaults for any field the file left unset.
func Parse(file string) (Config, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", file, err)
	}

	cfg := Config{Options: DefaultProcessOptions()}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", file, err)
	}
	cfg.ConfigFileLocation = file

	for name, chain := range cfg.Chains {
		chain.Name = name
		cfg.Chains[name] = chain
	}

	return cfg, nil
}
