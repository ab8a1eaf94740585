package service

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/chainbound-labs/rollupwatch/internal/config"
	"github.com/chainbound-labs/rollupwatch/internal/rollup"
)

// Configuration errors must fail startup before any connection attempt.
func TestFromConfigRejectsInvalidConfig(t *testing.T) {
	cfg := &config.Config{
		L1WSURL:                "wss://mainnet.example/ws",
		ServerPort:             8080,
		BroadcastCapacity:      1024,
		SequencerDownThreshold: rollup.DefaultSequencerDownThresholdSecs,
		Rollups:                map[rollup.ID]config.RollupConfig{},
	}
	_, err := FromConfig(context.Background(), "test", cfg, log.New())
	require.Error(t, err)
	require.ErrorContains(t, err, "invalid configuration")
}
