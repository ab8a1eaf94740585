// Package chainclient owns the single outbound WebSocket connection to
// one L1 Ethereum node. It multiplexes log subscriptions for every
// rollup watcher, resolves block timestamps through a bounded cache,
// and hides transport drops and silently dead filters behind an
// automatically reconnecting facade.
package chainclient

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/chainbound-labs/rollupwatch/internal/metrics"
)

const (
	// DefaultTimestampCacheSize bounds the block-timestamp LRU.
	DefaultTimestampCacheSize = 1024

	subscribeTimeout = 10 * time.Second
	blockCallTimeout = 5 * time.Second

	backoffStart = 1 * time.Second
	backoffMax   = 30 * time.Second
)

// LogSource is the subset of *ethclient.Client the chain client drives,
// narrowed to ease faking in tests.
type LogSource interface {
	SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

func newBigInt(n uint64) *big.Int { return new(big.Int).SetUint64(n) }

var _ LogSource = (*ethclient.Client)(nil)

// Client owns the L1 WebSocket connection. It is safe for concurrent use
// by every rollup watcher: each watcher calls SubscribeLogs with its own
// filter and receives an independent channel of raw logs that survives
// the client's internal reconnects.
type Client struct {
	log log.Logger
	src LogSource
	m   metrics.Metricer

	staleTimeout time.Duration

	tsCache *lru.Cache[uint64, int64]

	closeConn func() // closes the underlying RPC connection, nil for injected sources

	mu   sync.Mutex
	subs []*filterSub // tracked so the stale-filter detector can inspect last-activity
}

// Dial opens the L1 WebSocket connection. url must be a ws:// or wss://
// endpoint.
func Dial(ctx context.Context, url string, staleFilterTimeout time.Duration, m metrics.Metricer, l log.Logger) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial L1 websocket endpoint: %w", err)
	}
	ec := ethclient.NewClient(rpcClient)
	c, err := newClient(ec, staleFilterTimeout, m, l)
	if err != nil {
		rpcClient.Close()
		return nil, err
	}
	c.closeConn = rpcClient.Close
	return c, nil
}

// Close tears down the underlying WebSocket connection. Callers should
// cancel the contexts of active SubscribeLogs streams first.
func (c *Client) Close() {
	if c.closeConn != nil {
		c.closeConn()
	}
}

func newClient(src LogSource, staleFilterTimeout time.Duration, m metrics.Metricer, l log.Logger) (*Client, error) {
	if staleFilterTimeout <= 0 {
		staleFilterTimeout = 600 * time.Second
	}
	if m == nil {
		m = metrics.NoopMetrics
	}
	cache, err := lru.New[uint64, int64](DefaultTimestampCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to build timestamp cache: %w", err)
	}
	return &Client{
		log:          l.New("component", "chain_client"),
		src:          src,
		m:            m,
		staleTimeout: staleFilterTimeout,
		tsCache:      cache,
	}, nil
}

// RawLog is one log delivered to a watcher. It carries only the log
// itself; the watcher matches it against its RollupSpec by address and
// topic0.
type RawLog struct {
	Log types.Log
}

// errStaleFilter marks a reconnect forced by the stale-filter detector
// rather than by a transport error.
var errStaleFilter = errors.New("stale filter timeout")

// filterSub tracks one live (address, topics) subscription for the
// stale-filter detector and for re-registration after a reconnect.
type filterSub struct {
	query ethereum.FilterQuery
	out   chan<- RawLog

	mu           sync.Mutex
	lastActivity time.Time
	current      *forwardingSub
}

func (f *filterSub) touch() {
	f.mu.Lock()
	f.lastActivity = time.Now()
	f.mu.Unlock()
}

func (f *filterSub) setCurrent(fs *forwardingSub) {
	f.mu.Lock()
	f.current = fs
	f.lastActivity = time.Now()
	f.mu.Unlock()
}

// failCurrent injects an error into the live inner subscription, which
// makes the resubscribe loop tear it down and re-register the same
// filter after backoff.
func (f *filterSub) failCurrent(err error) {
	f.mu.Lock()
	cur := f.current
	f.mu.Unlock()
	if cur != nil {
		cur.fail(err)
	}
}

func (f *filterSub) idleFor() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lastActivity.IsZero() {
		return 0
	}
	return time.Since(f.lastActivity)
}

// SubscribeLogs returns an unbounded stream of RawLog matching the
// (addresses, topic0 set) filter, reconnecting transparently on
// transport error or stale-filter detection until ctx is cancelled.
// addresses/topic0s together form one eth_subscribe filter; out is
// closed when ctx is done.
func (c *Client) SubscribeLogs(ctx context.Context, addresses []common.Address, topic0s []common.Hash) <-chan RawLog {
	out := make(chan RawLog, 256)
	query := ethereum.FilterQuery{
		Addresses: addresses,
		Topics:    [][]common.Hash{topic0s},
	}
	sub := &filterSub{query: query, out: out}

	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()

	go c.run(ctx, sub)
	return out
}

// run drives one filter's subscription for its whole lifetime,
// transparently resubscribing via event.ResubscribeErr on transport
// error, and forcing a resubscribe when the stale-filter detector fires.
// The outward channel never closes except when ctx is cancelled.
func (c *Client) run(ctx context.Context, sub *filterSub) {
	defer close(sub.out)

	resub := event.ResubscribeErr(backoffMax, func(ctx context.Context, lastErr error) (event.Subscription, error) {
		if lastErr != nil {
			reason := "transport"
			if errors.Is(lastErr, errStaleFilter) {
				reason = "stale_filter"
			}
			c.log.Warn("L1 log subscription dropped, reconnecting", "reason", reason, "err", lastErr)
			c.m.RecordReconnect(reason)
		}
		subCtx, cancel := context.WithTimeout(ctx, subscribeTimeout)
		defer cancel()

		raw := make(chan types.Log, 256)
		inner, err := c.src.SubscribeFilterLogs(subCtx, sub.query, raw)
		if err != nil {
			return nil, fmt.Errorf("failed to subscribe to logs: %w", err)
		}
		fs := newForwardingSub(inner, raw, sub)
		sub.setCurrent(fs)
		return fs, nil
	})
	defer resub.Unsubscribe()

	staleTicker := time.NewTicker(c.staleTimeout / 4)
	defer staleTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-resub.Err():
			if !ok {
				return
			}
			if err != nil {
				c.log.Error("L1 log subscription error", "err", err)
			}
		case <-staleTicker.C:
			if sub.idleFor() > c.staleTimeout {
				c.log.Warn("no logs received within stale filter timeout, forcing reconnect", "timeout", c.staleTimeout)
				c.m.RecordStaleFilter()
				sub.failCurrent(errStaleFilter)
			}
		}
	}
}

// forwardingSub adapts the raw types.Log channel backing one
// SubscribeFilterLogs call into the RawLog channel handed to watchers,
// and implements event.Subscription so event.ResubscribeErr can manage
// its lifetime.
type forwardingSub struct {
	inner   ethereum.Subscription
	errCh   chan error
	quit    chan struct{}
	quitted sync.Once
}

func newForwardingSub(inner ethereum.Subscription, raw <-chan types.Log, sub *filterSub) *forwardingSub {
	f := &forwardingSub{inner: inner, errCh: make(chan error, 1), quit: make(chan struct{})}
	go func() {
		for {
			select {
			case l, ok := <-raw:
				if !ok {
					return
				}
				sub.touch()
				select {
				case sub.out <- RawLog{Log: l}:
				case <-f.quit:
					return
				}
			case err := <-inner.Err():
				f.fail(err)
				return
			case <-f.quit:
				return
			}
		}
	}()
	return f
}

func (f *forwardingSub) Err() <-chan error { return f.errCh }

// fail pushes an error into the subscription's error channel, as if the
// transport had failed. No-op if an error is already pending.
func (f *forwardingSub) fail(err error) {
	select {
	case f.errCh <- err:
	default:
	}
}
func (f *forwardingSub) Unsubscribe() {
	f.quitted.Do(func() { close(f.quit) })
	f.inner.Unsubscribe()
}

// GetBlockTimestamp resolves the L1 timestamp of a block, memoized in
// the LRU cache.
func (c *Client) GetBlockTimestamp(ctx context.Context, blockNumber uint64) (int64, error) {
	if ts, ok := c.tsCache.Get(blockNumber); ok {
		return ts, nil
	}
	ctxt, cancel := context.WithTimeout(ctx, blockCallTimeout)
	defer cancel()
	header, err := c.src.HeaderByNumber(ctxt, newBigInt(blockNumber))
	if err != nil {
		return 0, fmt.Errorf("failed to fetch header for block %d: %w", blockNumber, err)
	}
	ts := int64(header.Time)
	c.tsCache.Add(blockNumber, ts)
	return ts, nil
}
