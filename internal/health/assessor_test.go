package health

import (
	"testing"

	"github.com/chainbound-labs/rollupwatch/internal/rollup"
	"github.com/stretchr/testify/require"
)

func thresholds() rollup.ThresholdSet {
	return rollup.ThresholdSet{
		BatchCadenceSecs: 300,
		ProofCadenceSecs: 3600,
		DelayedSecs:      600,
		HaltedSecs:       1800,
	}
}

func TestAssessHealthTransitions(t *testing.T) {
	const now = 2_000_000

	t.Run("healthy with no-batch issue", func(t *testing.T) {
		st := rollup.Status{LastUpdated: now - 400, LastBatchUpdated: now - 400, LastProofUpdated: now - 400}
		r := Assess(rollup.Arbitrum, st, true, now, thresholds())
		require.Equal(t, rollup.Healthy, r.Status)
		require.Equal(t, []string{"No batch"}, r.Issues)
	})

	t.Run("delayed", func(t *testing.T) {
		st := rollup.Status{LastUpdated: now - 700, LastBatchUpdated: now - 700, LastProofUpdated: now - 700}
		r := Assess(rollup.Arbitrum, st, true, now, thresholds())
		require.Equal(t, rollup.Delayed, r.Status)
		require.Equal(t, []string{"exceeds delayed threshold", "No batch"}, r.Issues)
	})

	t.Run("halted", func(t *testing.T) {
		st := rollup.Status{LastUpdated: now - 2000, LastBatchUpdated: now - 2000, LastProofUpdated: now - 2000}
		r := Assess(rollup.Arbitrum, st, true, now, thresholds())
		require.Equal(t, rollup.Halted, r.Status)
		require.Equal(t, []string{"exceeds halted threshold", "No batch"}, r.Issues)
	})

	t.Run("never-seen class raises no cadence issue", func(t *testing.T) {
		// batches flowing, no proof ever recorded: nothing to be stale
		st := rollup.Status{LastUpdated: now - 10, LastBatchUpdated: now - 10}
		r := Assess(rollup.Arbitrum, st, true, now, thresholds())
		require.Equal(t, rollup.Healthy, r.Status)
		require.Empty(t, r.Issues)
		require.Nil(t, r.LastProofAgeSecs)
	})

	t.Run("disconnected when never recorded", func(t *testing.T) {
		r := Assess(rollup.Arbitrum, rollup.Status{}, false, now, thresholds())
		require.Equal(t, rollup.Disconnected, r.Status)
		require.Equal(t, []string{"no events"}, r.Issues)
		require.Nil(t, r.LastEventAgeSecs)
	})
}

func TestAssessPure(t *testing.T) {
	st := rollup.Status{LastUpdated: 1000, LastBatchUpdated: 1000, LastProofUpdated: 1000}
	a := Assess(rollup.Base, st, true, 1500, thresholds())
	b := Assess(rollup.Base, st, true, 1500, thresholds())
	require.Equal(t, a, b)
}

func TestIssueOrdering(t *testing.T) {
	// halted + both cadences missed: halted, no batch, no proof, in order.
	st := rollup.Status{LastUpdated: 1, LastBatchUpdated: 1, LastProofUpdated: 1}
	r := Assess(rollup.ZkSync, st, true, 5000, thresholds())
	require.Equal(t, []string{"exceeds halted threshold", "No batch", "No proof"}, r.Issues)
}
