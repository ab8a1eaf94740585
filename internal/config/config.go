// Package config turns the CLI/env flag surface into the typed runtime
// configuration of the service. All validation failures here are fatal
// at startup; independent per-rollup problems are aggregated so an
// operator sees every misconfiguration at once instead of one per
// restart.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/go-multierror"
	"github.com/urfave/cli/v2"

	"github.com/chainbound-labs/rollupwatch/internal/flags"
	"github.com/chainbound-labs/rollupwatch/internal/rollup"
	"github.com/chainbound-labs/rollupwatch/internal/watcher"
)

// rawAddr keeps one contract address as the operator typed it, so Check
// can report malformed input instead of the zero address HexToAddress
// would silently produce.
type rawAddr struct {
	slot  string
	value string
}

// RollupConfig is one rollup's resolved configuration. A rollup is
// watched iff every contract address slot its watcher needs was
// provided; it is sequencer-polled iff an L2 RPC URL was provided.
type RollupConfig struct {
	Watched   bool
	Addresses watcher.Addresses

	L2RPC          string
	L2PollInterval time.Duration

	Thresholds rollup.ThresholdSet

	rawAddrs []rawAddr
	slots    int
}

type Config struct {
	L1WSURL string

	ServerHost string
	ServerPort int

	StaleFilterTimeout     time.Duration
	SequencerDownThreshold int64
	BroadcastCapacity      int

	MetricsEnabled bool
	MetricsHost    string
	MetricsPort    int

	Rollups map[rollup.ID]RollupConfig
}

func NewConfig(ctx *cli.Context) *Config {
	cfg := &Config{
		L1WSURL:                ctx.String(flags.RPCWSFlag.Name),
		ServerHost:             ctx.String(flags.ServerHostFlag.Name),
		ServerPort:             ctx.Int(flags.ServerPortFlag.Name),
		StaleFilterTimeout:     time.Duration(ctx.Int64(flags.StaleFilterTimeoutFlag.Name)) * time.Second,
		SequencerDownThreshold: ctx.Int64(flags.SequencerDownThresholdFlag.Name),
		BroadcastCapacity:      ctx.Int(flags.BroadcastCapacityFlag.Name),
		MetricsEnabled:         ctx.Bool(flags.MetricsEnabledFlag.Name),
		MetricsHost:            ctx.String(flags.MetricsHostFlag.Name),
		MetricsPort:            ctx.Int(flags.MetricsPortFlag.Name),
		Rollups:                make(map[rollup.ID]RollupConfig),
	}

	for _, id := range rollup.AllIDs() {
		f := flags.ByRollup[id]
		rc := RollupConfig{
			L2RPC:          ctx.String(f.L2RPC.Name),
			L2PollInterval: time.Duration(ctx.Int64(f.L2PollMs.Name)) * time.Millisecond,
			Thresholds: rollup.ThresholdSet{
				BatchCadenceSecs: ctx.Int64(f.BatchCadenceSecs.Name),
				ProofCadenceSecs: ctx.Int64(f.ProofCadenceSecs.Name),
				DelayedSecs:      ctx.Int64(f.DelayedSecs.Name),
				HaltedSecs:       ctx.Int64(f.HaltedSecs.Name),
			},
		}
		fill := func(flag *cli.StringFlag, slot string, dst *common.Address) {
			if flag == nil {
				return
			}
			rc.slots++
			raw := ctx.String(flag.Name)
			if raw == "" {
				return
			}
			rc.rawAddrs = append(rc.rawAddrs, rawAddr{slot: slot, value: raw})
			*dst = common.HexToAddress(raw)
		}
		fill(f.Address, "address", &rc.Addresses.Primary)
		fill(f.Core, "core", &rc.Addresses.Core)
		fill(f.Portal, "portal", &rc.Addresses.Portal)
		rc.Watched = rc.slots > 0 && len(rc.rawAddrs) == rc.slots
		cfg.Rollups[id] = rc
	}
	return cfg
}

func (c *Config) Check() error {
	var result *multierror.Error

	if c.L1WSURL == "" {
		result = multierror.Append(result, errors.New("RPC_WS is required"))
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		result = multierror.Append(result, fmt.Errorf("invalid server port: %d", c.ServerPort))
	}
	if c.BroadcastCapacity <= 0 {
		result = multierror.Append(result, fmt.Errorf("broadcast capacity must be positive, got %d", c.BroadcastCapacity))
	}
	if c.SequencerDownThreshold <= 0 {
		result = multierror.Append(result, fmt.Errorf("sequencer downtime threshold must be positive, got %d", c.SequencerDownThreshold))
	}

	anyWatched := false
	for _, id := range rollup.AllIDs() {
		rc := c.Rollups[id]
		if err := checkRollup(id, rc); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		if rc.Watched {
			anyWatched = true
		}
	}
	if result.ErrorOrNil() == nil && !anyWatched {
		result = multierror.Append(result, errors.New("no rollup is configured; set the contract address env vars for at least one"))
	}

	return result.ErrorOrNil()
}

// checkRollup validates one rollup's slice of the flag surface: contract
// addresses must be hex-valid and all-or-none, thresholds must be
// ordered, and a poll interval only makes sense alongside an L2 RPC.
func checkRollup(id rollup.ID, rc RollupConfig) error {
	for _, a := range rc.rawAddrs {
		if !common.IsHexAddress(a.value) {
			return fmt.Errorf("%s: malformed %s address %q", id, a.slot, a.value)
		}
	}
	if n := len(rc.rawAddrs); n > 0 && n < rc.slots {
		return fmt.Errorf("%s: partial contract configuration, %d of %d addresses set", id, n, rc.slots)
	}
	if err := rc.Thresholds.Check(); err != nil {
		return fmt.Errorf("%s: %w", id, err)
	}
	if rc.L2RPC != "" && rc.L2PollInterval <= 0 {
		return fmt.Errorf("%s: poll interval must be positive, got %s", id, rc.L2PollInterval)
	}
	return nil
}
