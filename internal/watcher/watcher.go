package watcher

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/chainbound-labs/rollupwatch/internal/chainclient"
	"github.com/chainbound-labs/rollupwatch/internal/hub"
	"github.com/chainbound-labs/rollupwatch/internal/metrics"
	"github.com/chainbound-labs/rollupwatch/internal/rollup"
)

// ChainClient is the subset of *chainclient.Client a Watcher needs,
// narrowed to ease faking in tests.
type ChainClient interface {
	SubscribeLogs(ctx context.Context, addresses []common.Address, topic0s []common.Hash) <-chan chainclient.RawLog
	GetBlockTimestamp(ctx context.Context, blockNumber uint64) (int64, error)
}

// Watcher runs one rollup's ingestion pipeline: subscribe to its
// RollupSpec's filters, decode each raw log serially to preserve
// per-rollup ordering, and submit the resulting rollup.Event to the
// Hub.
type Watcher struct {
	spec   RollupSpec
	client ChainClient
	hub    *hub.Hub
	m      metrics.Metricer
	log    log.Logger
}

func New(spec RollupSpec, client ChainClient, h *hub.Hub, m metrics.Metricer, l log.Logger) *Watcher {
	if m == nil {
		m = metrics.NoopMetrics
	}
	return &Watcher{
		spec:   spec,
		client: client,
		hub:    h,
		m:      m,
		log:    l.New("component", "watcher", "rollup", spec.Rollup.String()),
	}
}

// Run subscribes to this watcher's filters and processes logs one at a
// time until ctx is cancelled. Decode and transport failures never halt
// the watcher; it only returns when ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	raw := w.client.SubscribeLogs(ctx, w.spec.Addresses(), w.spec.Topic0s())
	w.log.Info("watcher started", "contracts", len(w.spec.Contracts))
	for {
		select {
		case <-ctx.Done():
			w.log.Info("watcher stopped")
			return
		case l, ok := <-raw:
			if !ok {
				w.log.Info("watcher stopped: log stream closed")
				return
			}
			w.handle(ctx, l)
		}
	}
}

// handle decodes and submits one raw log. Decoder errors and unknown
// logs are logged and discarded.
func (w *Watcher) handle(ctx context.Context, raw chainclient.RawLog) {
	spec, ok := w.spec.lookup(raw.Log)
	if !ok {
		return
	}
	if raw.Log.BlockNumber == 0 || raw.Log.TxHash == (common.Hash{}) {
		w.log.Warn("discarding malformed log", "event_type", spec.eventType)
		w.m.RecordDecodeError(w.spec.Rollup.String())
		return
	}
	batchNumber, err := spec.decode(raw.Log)
	if err != nil {
		w.log.Warn("decode error, discarding log", "event_type", spec.eventType, "err", err)
		w.m.RecordDecodeError(w.spec.Rollup.String())
		return
	}
	ts, err := w.client.GetBlockTimestamp(ctx, raw.Log.BlockNumber)
	if err != nil {
		w.log.Warn("failed to resolve block timestamp, discarding log", "block", raw.Log.BlockNumber, "err", err)
		w.m.RecordDecodeError(w.spec.Rollup.String())
		return
	}

	ev := rollup.Event{
		Rollup:      w.spec.Rollup,
		EventType:   spec.eventType,
		BlockNumber: raw.Log.BlockNumber,
		TxHash:      raw.Log.TxHash.Hex(),
		BatchNumber: batchNumber,
		Timestamp:   ts,
	}
	if !ev.Valid() {
		w.log.Warn("discarding invalid event", "event_type", spec.eventType)
		w.m.RecordDecodeError(w.spec.Rollup.String())
		return
	}
	w.hub.RecordEvent(ev)
}
