package hub

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/chainbound-labs/rollupwatch/internal/rollup"
)

func newTestHub(capacity int) *Hub {
	thresholds := map[rollup.ID]rollup.ThresholdSet{
		rollup.Arbitrum: {BatchCadenceSecs: 300, ProofCadenceSecs: 3600, DelayedSecs: 600, HaltedSecs: 1800},
	}
	return New(thresholds, capacity, nil, log.New())
}

func batchEvent(block uint64, batch string, ts int64) rollup.Event {
	return rollup.Event{
		Rollup:      rollup.Arbitrum,
		EventType:   rollup.BatchDelivered,
		BlockNumber: block,
		TxHash:      "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		BatchNumber: &batch,
		Timestamp:   ts,
	}
}

func next(t *testing.T, sub *Subscription) Delivery {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	d, err := sub.Next(ctx)
	require.NoError(t, err)
	return d
}

func TestRecordEventAdvancesStatus(t *testing.T) {
	h := newTestHub(16)
	h.RecordEvent(batchEvent(19_000_000, "12345", 1_706_000_000))

	st, ever := h.SnapshotStatus(rollup.Arbitrum)
	require.True(t, ever)
	require.NotNil(t, st.LatestBatch)
	require.Equal(t, "12345", *st.LatestBatch)
	require.Equal(t, int64(1_706_000_000), st.LastUpdated)
	require.NotNil(t, st.LatestBatchTx)
}

func TestStateUpdateAdvancesAllClasses(t *testing.T) {
	h := newTestHub(16)
	batch := "99"
	h.RecordEvent(rollup.Event{
		Rollup: rollup.Starknet, EventType: rollup.StateUpdate,
		BlockNumber: 100, TxHash: "0xbb", BatchNumber: &batch, Timestamp: 1_706_000_100,
	})
	st, _ := h.SnapshotStatus(rollup.Starknet)
	require.Equal(t, "99", *st.LatestBatch)
	require.Equal(t, "99", *st.LatestProof)
	require.Equal(t, "99", *st.LatestFinalized)
	require.Equal(t, int64(1_706_000_100), st.LastUpdated)
}

func TestNilBatchNumberBroadcastOnly(t *testing.T) {
	h := newTestHub(16)
	_, _, sub := h.Subscribe()

	e := batchEvent(100, "", 1_706_000_000)
	e.BatchNumber = nil
	h.RecordEvent(e)

	_, ever := h.SnapshotStatus(rollup.Arbitrum)
	require.False(t, ever)

	d := next(t, sub)
	require.False(t, d.Lagged)
	require.Nil(t, d.Event.BatchNumber)
}

func TestOutOfOrderDroppedForStatus(t *testing.T) {
	h := newTestHub(16)
	_, _, sub := h.Subscribe()

	h.RecordEvent(batchEvent(200, "20", 1_706_000_200))
	h.RecordEvent(batchEvent(100, "10", 1_706_000_100))

	st, _ := h.SnapshotStatus(rollup.Arbitrum)
	require.Equal(t, "20", *st.LatestBatch)
	require.Equal(t, int64(1_706_000_200), st.LastUpdated)

	// both events still reach the stream
	require.Equal(t, "20", *next(t, sub).Event.BatchNumber)
	require.Equal(t, "10", *next(t, sub).Event.BatchNumber)
}

func TestSubscribeCoherence(t *testing.T) {
	h := newTestHub(16)
	h.RecordEvent(batchEvent(100, "1", 1_706_000_001))
	h.RecordEvent(batchEvent(101, "2", 1_706_000_002))

	statusSnap, _, sub := h.Subscribe()
	require.Equal(t, "2", *statusSnap[rollup.Arbitrum].LatestBatch)

	h.RecordEvent(batchEvent(102, "3", 1_706_000_003))
	h.RecordEvent(batchEvent(103, "4", 1_706_000_004))

	// the stream starts strictly after the snapshot: no replay of 1, 2
	require.Equal(t, "3", *next(t, sub).Event.BatchNumber)
	require.Equal(t, "4", *next(t, sub).Event.BatchNumber)
}

func TestSubscriberLag(t *testing.T) {
	h := newTestHub(4)
	_, _, sub := h.Subscribe()

	for i := 0; i < 10; i++ {
		h.RecordEvent(batchEvent(uint64(100+i), fmt.Sprintf("%d", i), int64(1_706_000_000+i)))
	}

	// ten events through a ring of four: the slow reader first learns it
	// lagged, then resumes at the oldest surviving event (6 of 0..9).
	d := next(t, sub)
	require.True(t, d.Lagged)

	d = next(t, sub)
	require.False(t, d.Lagged)
	require.Equal(t, "6", *d.Event.BatchNumber)
	for i := 7; i < 10; i++ {
		require.Equal(t, fmt.Sprintf("%d", i), *next(t, sub).Event.BatchNumber)
	}
}

func TestLaggedSubscriberResubscribes(t *testing.T) {
	h := newTestHub(4)
	_, _, sub := h.Subscribe()
	for i := 0; i < 10; i++ {
		h.RecordEvent(batchEvent(uint64(100+i), fmt.Sprintf("%d", i), int64(1_706_000_000+i)))
	}
	require.True(t, next(t, sub).Lagged)
	h.Unsubscribe(sub)

	// a fresh subscribe yields a coherent snapshot and a live stream
	statusSnap, _, sub2 := h.Subscribe()
	require.Equal(t, "9", *statusSnap[rollup.Arbitrum].LatestBatch)
	h.RecordEvent(batchEvent(200, "live", 1_706_000_100))
	d := next(t, sub2)
	require.False(t, d.Lagged)
	require.Equal(t, "live", *d.Event.BatchNumber)
}

func TestSequencerSnapshot(t *testing.T) {
	h := newTestHub(16)
	m := rollup.SequencerMetrics{LatestBlock: 500, LatestBlockTimestamp: 1_706_000_000, LastPolled: 1_706_000_010}
	h.RecordSequencer(rollup.Arbitrum, m)

	snap := h.SnapshotSequencers()
	require.Equal(t, m, snap[rollup.Arbitrum])
}

func TestNextHonorsContext(t *testing.T) {
	h := newTestHub(16)
	_, _, sub := h.Subscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := sub.Next(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCloseWakesSubscribers(t *testing.T) {
	h := newTestHub(16)
	_, _, sub := h.Subscribe()

	errCh := make(chan error, 1)
	go func() {
		_, err := sub.Next(context.Background())
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	h.Close()

	select {
	case err := <-errCh:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber not woken by Close")
	}
}
