package config

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/chainbound-labs/rollupwatch/internal/flags"
	"github.com/chainbound-labs/rollupwatch/internal/rollup"
)

const (
	addrA = "0x1c479675ad559DC151F6Ec7ed3FbF8ceE79582B6"
	addrB = "0x4c6f947Ae67F572afa4ae0730947DE7C874F95Ef"
	addrC = "0x8FfDbe49D26F42AdA0bDC6eD4b64cB9eF340fc6d"
)

func configForArgs(t *testing.T, args ...string) *Config {
	t.Helper()
	var cfg *Config
	app := cli.NewApp()
	app.Name = "rollupwatch-test"
	app.Flags = flags.Flags
	app.Action = func(ctx *cli.Context) error {
		cfg = NewConfig(ctx)
		return nil
	}
	require.NoError(t, app.Run(append([]string{"rollupwatch"}, args...)))
	require.NotNil(t, cfg)
	return cfg
}

func validArgs() []string {
	return []string{
		"--rpc-ws", "wss://mainnet.example/ws",
		"--arbitrum-address", addrA,
		"--arbitrum-core", addrB,
	}
}

func TestValidConfig(t *testing.T) {
	cfg := configForArgs(t, validArgs()...)
	require.NoError(t, cfg.Check())

	arb := cfg.Rollups[rollup.Arbitrum]
	require.True(t, arb.Watched)
	require.Equal(t, common.HexToAddress(addrA), arb.Addresses.Primary)
	require.Equal(t, common.HexToAddress(addrB), arb.Addresses.Core)
	require.False(t, cfg.Rollups[rollup.Base].Watched)
	require.Equal(t, 600*time.Second, cfg.StaleFilterTimeout)
	require.Equal(t, int64(30), cfg.SequencerDownThreshold)
	require.Equal(t, 1024, cfg.BroadcastCapacity)
}

func TestDefaultThresholds(t *testing.T) {
	cfg := configForArgs(t, validArgs()...)
	require.Equal(t, flags.DefaultThresholds(rollup.Arbitrum), cfg.Rollups[rollup.Arbitrum].Thresholds)
	require.Equal(t, flags.DefaultThresholds(rollup.Starknet), cfg.Rollups[rollup.Starknet].Thresholds)
	require.Greater(t, cfg.Rollups[rollup.Starknet].Thresholds.DelayedSecs, cfg.Rollups[rollup.Arbitrum].Thresholds.DelayedSecs)
}

func TestThresholdOverride(t *testing.T) {
	args := append(validArgs(),
		"--arbitrum-batch-cadence-secs", "120",
		"--arbitrum-delayed-secs", "240",
		"--arbitrum-halted-secs", "480",
	)
	cfg := configForArgs(t, args...)
	require.NoError(t, cfg.Check())
	th := cfg.Rollups[rollup.Arbitrum].Thresholds
	require.Equal(t, int64(120), th.BatchCadenceSecs)
	require.Equal(t, int64(240), th.DelayedSecs)
	require.Equal(t, int64(480), th.HaltedSecs)
}

func TestThresholdOrderingEnforced(t *testing.T) {
	args := append(validArgs(), "--arbitrum-delayed-secs", "5000")
	cfg := configForArgs(t, args...)
	err := cfg.Check()
	require.Error(t, err)
	require.ErrorContains(t, err, "delayed_secs")
}

func TestPartialAddressesRejected(t *testing.T) {
	cfg := configForArgs(t,
		"--rpc-ws", "wss://mainnet.example/ws",
		"--base-core", addrA,
	)
	err := cfg.Check()
	require.Error(t, err)
	require.ErrorContains(t, err, "partial contract configuration")
}

func TestMalformedAddressRejected(t *testing.T) {
	cfg := configForArgs(t,
		"--rpc-ws", "wss://mainnet.example/ws",
		"--starknet-address", "not-an-address",
	)
	err := cfg.Check()
	require.Error(t, err)
	require.ErrorContains(t, err, "malformed")
}

func TestNoRollupConfigured(t *testing.T) {
	cfg := configForArgs(t, "--rpc-ws", "wss://mainnet.example/ws")
	err := cfg.Check()
	require.Error(t, err)
	require.ErrorContains(t, err, "no rollup is configured")
}

func TestL2RPCEnablesPolling(t *testing.T) {
	args := append(validArgs(),
		"--arbitrum-l2-rpc", "https://arb1.example/rpc",
		"--arbitrum-l2-poll-ms", "5000",
	)
	cfg := configForArgs(t, args...)
	require.NoError(t, cfg.Check())
	arb := cfg.Rollups[rollup.Arbitrum]
	require.Equal(t, "https://arb1.example/rpc", arb.L2RPC)
	require.Equal(t, 5*time.Second, arb.L2PollInterval)
}

func TestMultipleErrorsAggregated(t *testing.T) {
	cfg := configForArgs(t,
		"--rpc-ws", "wss://mainnet.example/ws",
		"--base-core", addrA,
		"--starknet-address", "junk",
		"--broadcast-capacity", "0",
	)
	err := cfg.Check()
	require.Error(t, err)
	require.ErrorContains(t, err, "partial contract configuration")
	require.ErrorContains(t, err, "malformed")
	require.ErrorContains(t, err, "broadcast capacity")
}
