package cmd

import (
	"testing"

	"cosmossdk.io/log"
	"github.com/skalenetwork/ima-agent/config"
	"github.com/stretchr/testify/require"
)

func validConfig() *config.Config {
	return &config.Config{
		Chains: map[string]config.ChainConfig{
			"mainnet": {
				Name:         "mainnet",
				RPC:          "http://127.0.0.1:1",
				IsMainnet:    true,
				MessageProxy: "0x0000000000000000000000000000000000000001",
				Signer:       config.SignerConfig{Local: &config.LocalSignerConfig{PrivateKey: "deadbeef"}},
			},
			"schain-a": {
				Name:         "schain-a",
				RPC:          "http://127.0.0.1:1",
				MessageProxy: "0x0000000000000000000000000000000000000002",
				Signer:       config.SignerConfig{Local: &config.LocalSignerConfig{PrivateKey: "deadbeef"}},
			},
		},
		Directions: []config.DirectionConfig{
			{Source: "mainnet", Destination: "schain-a", Enabled: true},
		},
		Options: config.DefaultProcessOptions(),
	}
}

func TestValidateConfigAcceptsWellFormedConfig(t *testing.T) {
	a := &AppState{Config: validConfig(), Logger: log.NewNopLogger()}
	require.NoError(t, a.validateConfig())
}

func TestValidateConfigRejectsNoChains(t *testing.T) {
	cfg := validConfig()
	cfg.Chains = map[string]config.ChainConfig{}
	a := &AppState{Config: cfg, Logger: log.NewNopLogger()}
	require.Error(t, a.validateConfig())
}

func TestValidateConfigRejectsNoEnabledDirection(t *testing.T) {
	cfg := validConfig()
	cfg.Directions[0].Enabled = false
	a := &AppState{Config: cfg, Logger: log.NewNopLogger()}
	require.Error(t, a.validateConfig())
}

func TestValidateConfigRejectsUnknownDirectionChain(t *testing.T) {
	cfg := validConfig()
	cfg.Directions[0].Destination = "schain-z"
	a := &AppState{Config: cfg, Logger: log.NewNopLogger()}
	require.Error(t, a.validateConfig())
}

func TestValidateConfigRejectsMissingSigner(t *testing.T) {
	cfg := validConfig()
	chain := cfg.Chains["schain-a"]
	chain.Signer = config.SignerConfig{}
	cfg.Chains["schain-a"] = chain
	a := &AppState{Config: cfg, Logger: log.NewNopLogger()}
	require.Error(t, a.validateConfig())
}

func TestValidateConfigRejectsZeroTransactionsPerBlock(t *testing.T) {
	cfg := validConfig()
	cfg.Options.TransactionsPerBlock = 0
	a := &AppState{Config: cfg, Logger: log.NewNopLogger()}
	require.Error(t, a.validateConfig())
}
