// Package flags declares every CLI flag / environment variable
// rollupwatch reads. The env var names are part of the external
// contract and carry no service prefix.
package flags

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/chainbound-labs/rollupwatch/internal/rollup"
)

var (
	RPCWSFlag = &cli.StringFlag{
		Name:     "rpc-ws",
		Usage:    "The L1 Ethereum WebSocket RPC URL",
		EnvVars:  []string{"RPC_WS"},
		Required: true,
	}

	ServerHostFlag = &cli.StringFlag{
		Name:    "server-host",
		Usage:   "Host for the HTTP/WebSocket API server to bind to",
		EnvVars: []string{"SERVER_HOST"},
		Value:   "0.0.0.0",
	}
	ServerPortFlag = &cli.IntFlag{
		Name:    "server-port",
		Usage:   "Port for the HTTP/WebSocket API server",
		EnvVars: []string{"SERVER_PORT", "PORT"},
		Value:   8080,
	}

	StaleFilterTimeoutFlag = &cli.Int64Flag{
		Name:    "stale-filter-timeout-secs",
		Usage:   "Seconds without any L1 log before forcing a reconnect",
		EnvVars: []string{"STALE_FILTER_TIMEOUT_SECS"},
		Value:   600,
	}
	SequencerDownThresholdFlag = &cli.Int64Flag{
		Name:    "sequencer-downtime-threshold-secs",
		Usage:   "Seconds without L2 head advance before a sequencer is considered down",
		EnvVars: []string{"SEQUENCER_DOWNTIME_THRESHOLD_SECS"},
		Value:   rollup.DefaultSequencerDownThresholdSecs,
	}
	BroadcastCapacityFlag = &cli.IntFlag{
		Name:    "broadcast-capacity",
		Usage:   "Capacity of the live event broadcast ring",
		EnvVars: []string{"BROADCAST_CAPACITY"},
		Value:   1024,
	}

	LogLevelFlag = &cli.StringFlag{
		Name:    "log-level",
		Usage:   "Lowest log level to emit: debug, info, warn, error",
		EnvVars: []string{"LOG_LEVEL"},
		Value:   "info",
	}

	MetricsEnabledFlag = &cli.BoolFlag{
		Name:    "metrics-enabled",
		Usage:   "Enable the prometheus metrics server",
		EnvVars: []string{"METRICS_ENABLED"},
	}
	MetricsHostFlag = &cli.StringFlag{
		Name:    "metrics-host",
		Usage:   "Host for the metrics server to bind to",
		EnvVars: []string{"METRICS_HOST"},
		Value:   "0.0.0.0",
	}
	MetricsPortFlag = &cli.IntFlag{
		Name:    "metrics-port",
		Usage:   "Port for the metrics server",
		EnvVars: []string{"METRICS_PORT"},
		Value:   7300,
	}
)

// RollupFlags is the per-rollup flag set. Address, Core and Portal are
// nil for rollups whose watcher does not use that contract slot (see
// watcher.Addresses).
type RollupFlags struct {
	Address *cli.StringFlag
	Core    *cli.StringFlag
	Portal  *cli.StringFlag

	L2RPC    *cli.StringFlag
	L2PollMs *cli.Int64Flag

	BatchCadenceSecs *cli.Int64Flag
	ProofCadenceSecs *cli.Int64Flag
	DelayedSecs      *cli.Int64Flag
	HaltedSecs       *cli.Int64Flag
}

// defaultThresholds mirrors the shipped per-rollup ThresholdSet defaults;
// every value is overridable through the flags built below.
func defaultThresholds(id rollup.ID) rollup.ThresholdSet {
	if id == rollup.Starknet {
		return rollup.ThresholdSet{BatchCadenceSecs: 3600, ProofCadenceSecs: 7200, DelayedSecs: 7200, HaltedSecs: 14400}
	}
	return rollup.ThresholdSet{BatchCadenceSecs: 300, ProofCadenceSecs: 3600, DelayedSecs: 600, HaltedSecs: 1800}
}

// DefaultThresholds exposes the shipped ThresholdSet for one rollup.
func DefaultThresholds(id rollup.ID) rollup.ThresholdSet {
	return defaultThresholds(id)
}

func rollupFlags(id rollup.ID, address, core, portal bool) RollupFlags {
	name := id.String()
	env := strings.ToUpper(name)
	defaults := defaultThresholds(id)

	f := RollupFlags{
		L2RPC: &cli.StringFlag{
			Name:    name + "-l2-rpc",
			Usage:   fmt.Sprintf("HTTP RPC URL of the %s L2 node; enables sequencer polling", name),
			EnvVars: []string{env + "_L2_RPC"},
		},
		L2PollMs: &cli.Int64Flag{
			Name:    name + "-l2-poll-ms",
			Usage:   fmt.Sprintf("Poll interval for the %s sequencer, in milliseconds", name),
			EnvVars: []string{env + "_L2_POLL_MS"},
			Value:   10_000,
		},
		BatchCadenceSecs: &cli.Int64Flag{
			Name:    name + "-batch-cadence-secs",
			Usage:   fmt.Sprintf("Expected seconds between %s batch events", name),
			EnvVars: []string{env + "_BATCH_CADENCE_SECS"},
			Value:   defaults.BatchCadenceSecs,
		},
		ProofCadenceSecs: &cli.Int64Flag{
			Name:    name + "-proof-cadence-secs",
			Usage:   fmt.Sprintf("Expected seconds between %s proof events", name),
			EnvVars: []string{env + "_PROOF_CADENCE_SECS"},
			Value:   defaults.ProofCadenceSecs,
		},
		DelayedSecs: &cli.Int64Flag{
			Name:    name + "-delayed-secs",
			Usage:   fmt.Sprintf("Seconds without any %s event before it is Delayed", name),
			EnvVars: []string{env + "_DELAYED_SECS"},
			Value:   defaults.DelayedSecs,
		},
		HaltedSecs: &cli.Int64Flag{
			Name:    name + "-halted-secs",
			Usage:   fmt.Sprintf("Seconds without any %s event before it is Halted", name),
			EnvVars: []string{env + "_HALTED_SECS"},
			Value:   defaults.HaltedSecs,
		},
	}
	if address {
		f.Address = &cli.StringFlag{
			Name:    name + "-address",
			Usage:   fmt.Sprintf("Primary L1 contract address for %s; enables the watcher", name),
			EnvVars: []string{env + "_ADDRESS"},
		}
	}
	if core {
		f.Core = &cli.StringFlag{
			Name:    name + "-core",
			Usage:   fmt.Sprintf("Core L1 contract address for %s", name),
			EnvVars: []string{env + "_CORE"},
		}
	}
	if portal {
		f.Portal = &cli.StringFlag{
			Name:    name + "-portal",
			Usage:   fmt.Sprintf("Portal L1 contract address for %s", name),
			EnvVars: []string{env + "_PORTAL"},
		}
	}
	return f
}

// ByRollup holds the flag set of every supported rollup. Which contract
// slots exist per rollup follows the watcher's filter layout: Arbitrum
// uses the sequencer inbox (address) plus rollup core; Starknet and
// zkSync a single core contract (address); Base and Optimism the dispute
// game factory (core) plus portal.
var ByRollup = map[rollup.ID]RollupFlags{
	rollup.Arbitrum: rollupFlags(rollup.Arbitrum, true, true, false),
	rollup.Starknet: rollupFlags(rollup.Starknet, true, false, false),
	rollup.Base:     rollupFlags(rollup.Base, false, true, true),
	rollup.Optimism: rollupFlags(rollup.Optimism, false, true, true),
	rollup.ZkSync:   rollupFlags(rollup.ZkSync, true, false, false),
}

var requiredFlags = []cli.Flag{
	RPCWSFlag,
}

var optionalFlags = []cli.Flag{
	ServerHostFlag,
	ServerPortFlag,
	StaleFilterTimeoutFlag,
	SequencerDownThresholdFlag,
	BroadcastCapacityFlag,
	LogLevelFlag,
	MetricsEnabledFlag,
	MetricsHostFlag,
	MetricsPortFlag,
}

func init() {
	for _, id := range rollup.AllIDs() {
		f := ByRollup[id]
		for _, addrFlag := range []*cli.StringFlag{f.Address, f.Core, f.Portal, f.L2RPC} {
			if addrFlag != nil {
				optionalFlags = append(optionalFlags, addrFlag)
			}
		}
		optionalFlags = append(optionalFlags, f.L2PollMs, f.BatchCadenceSecs, f.ProofCadenceSecs, f.DelayedSecs, f.HaltedSecs)
	}
	Flags = append(requiredFlags, optionalFlags...)
}

var Flags []cli.Flag

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return nil
}
