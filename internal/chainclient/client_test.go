package chainclient

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"
)

// fakeSource is a minimal LogSource used to drive SubscribeLogs/
// GetBlockTimestamp without a real L1 node.
type fakeSource struct {
	mu            sync.Mutex
	subscribeErrs []error
	subs          []*fakeSubscription
	queries       []ethereum.FilterQuery
	headers       map[uint64]*types.Header
	headerCalls   int
}

type fakeSubscription struct {
	errCh chan error
	ch    chan<- types.Log
}

func (f *fakeSubscription) Err() <-chan error { return f.errCh }
func (f *fakeSubscription) Unsubscribe()       {}

func (f *fakeSource) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.subscribeErrs) > 0 {
		err := f.subscribeErrs[0]
		f.subscribeErrs = f.subscribeErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	sub := &fakeSubscription{errCh: make(chan error, 1), ch: ch}
	f.subs = append(f.subs, sub)
	f.queries = append(f.queries, q)
	return sub, nil
}

func (f *fakeSource) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.headerCalls++
	return f.headers[number.Uint64()], nil
}

func (f *fakeSource) latestSub() *fakeSubscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.subs) == 0 {
		return nil
	}
	return f.subs[len(f.subs)-1]
}

func TestSubscribeLogsDeliversAndReconnects(t *testing.T) {
	src := &fakeSource{}
	c, err := newClient(src, time.Hour, nil, log.NewLogger(log.DiscardHandler()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr := common.HexToAddress("0x1111111111111111111111111111111111111111")
	topic := common.HexToHash("0xaa")
	out := c.SubscribeLogs(ctx, []common.Address{addr}, []common.Hash{topic})

	require.Eventually(t, func() bool { return src.latestSub() != nil }, time.Second, time.Millisecond)
	sub := src.latestSub()
	sub.ch <- types.Log{Address: addr, BlockNumber: 10}

	select {
	case l := <-out:
		require.Equal(t, uint64(10), l.Log.BlockNumber)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for log")
	}

	// simulate a transport drop; the facade must resubscribe transparently
	// and the channel must not close.
	sub.errCh <- context.Canceled
	require.Eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return len(src.subs) >= 2
	}, 10*time.Second, 10*time.Millisecond)

	newSub := src.latestSub()
	newSub.ch <- types.Log{Address: addr, BlockNumber: 11}
	select {
	case l := <-out:
		require.Equal(t, uint64(11), l.Log.BlockNumber)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for post-reconnect log")
	}

	cancel()
	_, ok := <-out
	require.Eventually(t, func() bool { _, ok = <-out; return !ok }, time.Second, 10*time.Millisecond)
}

// A silent filter (no logs at all for the stale timeout) must be torn
// down and re-registered with the identical (address, topic) tuples,
// without the outward stream closing.
func TestStaleFilterForcesResubscribe(t *testing.T) {
	src := &fakeSource{}
	c, err := newClient(src, 100*time.Millisecond, nil, log.NewLogger(log.DiscardHandler()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr := common.HexToAddress("0x1111111111111111111111111111111111111111")
	topic := common.HexToHash("0xaa")
	out := c.SubscribeLogs(ctx, []common.Address{addr}, []common.Hash{topic})

	require.Eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return len(src.subs) >= 2
	}, 10*time.Second, 10*time.Millisecond)

	src.mu.Lock()
	first, second := src.queries[0], src.queries[1]
	src.mu.Unlock()
	require.Equal(t, first, second)

	// the facade is still live: a log on the fresh filter flows through
	src.latestSub().ch <- types.Log{Address: addr, BlockNumber: 42}
	select {
	case l := <-out:
		require.Equal(t, uint64(42), l.Log.BlockNumber)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for log after stale-filter reconnect")
	}
}

func TestGetBlockTimestampCaches(t *testing.T) {
	src := &fakeSource{headers: map[uint64]*types.Header{
		100: {Time: 1_700_000_000},
	}}
	c, err := newClient(src, time.Hour, nil, log.NewLogger(log.DiscardHandler()))
	require.NoError(t, err)

	ts, err := c.GetBlockTimestamp(context.Background(), 100)
	require.NoError(t, err)
	require.Equal(t, int64(1_700_000_000), ts)

	ts2, err := c.GetBlockTimestamp(context.Background(), 100)
	require.NoError(t, err)
	require.Equal(t, ts, ts2)
	require.Equal(t, 1, src.headerCalls)
}
