package rollup

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEventTypeClasses(t *testing.T) {
	require.Equal(t, []Class{ClassBatch}, BatchDelivered.Classes())
	require.Equal(t, []Class{ClassProof}, ProofSubmitted.Classes())
	require.Equal(t, []Class{ClassFinalized}, ProofVerified.Classes())
	require.Equal(t, []Class{ClassBatch, ClassProof, ClassFinalized}, StateUpdate.Classes())
	require.Equal(t, []Class{ClassBatch, ClassProof}, DisputeGameCreated.Classes())
	require.Nil(t, MessageLog.Classes())
}

func TestParseID(t *testing.T) {
	id, ok := ParseID("arbitrum")
	require.True(t, ok)
	require.Equal(t, Arbitrum, id)

	_, ok = ParseID("nonexistent")
	require.False(t, ok)
}

func TestEventValid(t *testing.T) {
	batch := "12345"
	e := Event{BlockNumber: 19_000_000, TxHash: "0xaa", Timestamp: 1_706_000_000, BatchNumber: &batch}
	require.True(t, e.Valid())

	e.BlockNumber = 0
	require.False(t, e.Valid())
}

func TestThresholdSetCheck(t *testing.T) {
	require.NoError(t, ThresholdSet{BatchCadenceSecs: 300, DelayedSecs: 600, HaltedSecs: 1800}.Check())
	require.Error(t, ThresholdSet{BatchCadenceSecs: 700, DelayedSecs: 600, HaltedSecs: 1800}.Check())
	require.Error(t, ThresholdSet{BatchCadenceSecs: 300, DelayedSecs: 2000, HaltedSecs: 1800}.Check())
}

func TestSequencerMetricsIsProducing(t *testing.T) {
	m := SequencerMetrics{SecondsSinceLastBlockAdvance: 10}
	require.True(t, m.IsProducing(30))

	m.SecondsSinceLastBlockAdvance = 31
	require.False(t, m.IsProducing(30))
}
