package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/skalenetwork/ima-agent/config"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
chains:
  mainnet:
    chainId: 1
    rpc: https://mainnet.example/rpc
    isMainnet: true
    messageProxy: "0x0000000000000000000000000000000000000001"
    signer:
      local:
        privateKey: deadbeef
  schain-a:
    chainId: 12345
    rpc: https://schain-a.example/rpc
    messageProxy: "0x0000000000000000000000000000000000000002"
    nodeRoster:
      - name: node0
        url: https://schain-a-node0.example/rpc
      - name: node1
        url: https://schain-a-node1.example/rpc
    signer:
      queue:
        url: https://queue.example
        address: "0x0000000000000000000000000000000000000003"
directions:
  - source: mainnet
    destination: schain-a
    enabled: true
  - source: schain-a
    destination: mainnet
    enabled: true
    options:
      transactionsPerBlock: 1
options:
  transactionsPerBlock: 10
`

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestParseFillsChainNamesAndDefaults(t *testing.T) {
	path := writeTempConfig(t, sampleConfig)

	cfg, err := config.Parse(path)
	require.NoError(t, err)

	require.Equal(t, "mainnet", cfg.Chains["mainnet"].Name)
	require.Equal(t, "schain-a", cfg.Chains["schain-a"].Name)
	require.Len(t, cfg.Chains["schain-a"].NodeRoster, 2)
	require.Equal(t, 10, cfg.Options.TransactionsPerBlock)
	require.Equal(t, path, cfg.ConfigFileLocation)
}

func TestParseReturnsErrorForMissingFile(t *testing.T) {
	_, err := config.Parse("/no/such/file.yaml")
	require.Error(t, err)
}

func TestDefaultProcessOptionsMatchesDocumentedDefaults(t *testing.T) {
	d := config.DefaultProcessOptions()
	require.Equal(t, 5, d.TransactionsPerBlock)
	require.True(t, d.ProgressiveEventsScan)
	require.Equal(t, uint64(1000), d.CountOfBlocksInIterativeStep)
	require.Equal(t, uint64(5000), d.MaxIterationsInAllRange)
	require.Equal(t, 5000, d.SleepBeforeFetchOutgoingMessageEventMs)
	require.Equal(t, 0.0, d.PriceMultiplier)
}

func TestProcessOptionsMergeOverlaysOnlyNonZeroFields(t *testing.T) {
	base := config.DefaultProcessOptions()
	override := &config.ProcessOptions{
		TransactionsPerBlock: 1,
		BlockAge:             2 * time.Minute,
	}

	merged := base.Merge(override)
	require.Equal(t, 1, merged.TransactionsPerBlock)
	require.Equal(t, 2*time.Minute, merged.BlockAge)
	require.Equal(t, base.PriceMultiplier, merged.PriceMultiplier, "unset fields fall back to the base value")
}

func TestProcessOptionsMergeWithNilOverrideReturnsBase(t *testing.T) {
	base := config.DefaultProcessOptions()
	merged := base.Merge(nil)
	require.Equal(t, base, merged)
}
