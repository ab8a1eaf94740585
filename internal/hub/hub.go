// Package hub is the single rendezvous between writers (rollup
// watchers, sequencer pollers) and readers (pull-API handlers,
// live-stream subscribers). It is the sole owner of all mutable state;
// everything else holds a handle to it and the hub references nothing
// back.
package hub

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"

	"github.com/chainbound-labs/rollupwatch/internal/metrics"
	"github.com/chainbound-labs/rollupwatch/internal/rollup"
)

// DefaultRingCapacity is the default broadcast ring size.
const DefaultRingCapacity = 1024

// Hub holds the authoritative RollupStatus and SequencerMetrics per
// rollup, plus the bounded broadcast ring. Status mutation and the
// corresponding ring push happen under the same critical section
// (see ring.go's doc comment for why); blocked subscribers are woken by
// a sync.Cond broadcast issued inside that section, which never waits
// on a slow subscriber.
type Hub struct {
	mu           sync.Mutex
	status       map[rollup.ID]rollup.Status
	everRecorded map[rollup.ID]bool
	sequencers   map[rollup.ID]rollup.SequencerMetrics
	thresholds   map[rollup.ID]rollup.ThresholdSet

	ring    *eventRing
	metrics metrics.Metricer
	log     log.Logger
}

func New(thresholds map[rollup.ID]rollup.ThresholdSet, ringCapacity int, m metrics.Metricer, l log.Logger) *Hub {
	if ringCapacity <= 0 {
		ringCapacity = DefaultRingCapacity
	}
	if m == nil {
		m = metrics.NoopMetrics
	}
	h := &Hub{
		status:       make(map[rollup.ID]rollup.Status),
		everRecorded: make(map[rollup.ID]bool),
		sequencers:   make(map[rollup.ID]rollup.SequencerMetrics),
		thresholds:   thresholds,
		metrics:      m,
		log:          l.New("component", "hub"),
	}
	h.ring = newEventRing(ringCapacity, &h.mu)
	return h
}

// Thresholds returns the configured ThresholdSet for a rollup, used by
// internal/api handlers and the health assessor.
func (h *Hub) Thresholds(id rollup.ID) rollup.ThresholdSet {
	return h.thresholds[id]
}

// RecordEvent atomically updates the affected Status fields, stamps
// LastUpdated, pushes into the broadcast ring and wakes any waiting
// subscribers, all under one critical section. An event whose
// BatchNumber is nil, or whose type advances no class (MessageLog), is
// still broadcast but never advances status. An event older than the
// current per-class timestamp is dropped for status purposes but still
// broadcast.
func (h *Hub) RecordEvent(e rollup.Event) {
	h.mu.Lock()
	if e.BatchNumber != nil && len(e.EventType.Classes()) > 0 {
		st := h.status[e.Rollup]
		for _, class := range e.EventType.Classes() {
			applyClass(&st, class, e)
		}
		h.status[e.Rollup] = st
		h.everRecorded[e.Rollup] = true
	}
	h.ring.pushLocked(e)
	depth := h.ring.depthLocked()
	h.mu.Unlock()

	h.metrics.RecordEventProcessed(e.Rollup.String(), e.EventType.String())
	h.metrics.RecordRingDepth(depth)
	h.log.Debug("recorded event", "rollup", e.Rollup, "type", e.EventType, "block", e.BlockNumber)
}

// applyClass advances one lifecycle class of st if e is not older than
// what is already recorded for that class.
func applyClass(st *rollup.Status, class rollup.Class, e rollup.Event) {
	switch class {
	case rollup.ClassBatch:
		if e.Timestamp < st.LastBatchUpdated {
			return
		}
		st.LatestBatch = e.BatchNumber
		st.LatestBatchTx = &e.TxHash
		st.LastBatchUpdated = e.Timestamp
	case rollup.ClassProof:
		if e.Timestamp < st.LastProofUpdated {
			return
		}
		st.LatestProof = e.BatchNumber
		st.LatestProofTx = &e.TxHash
		st.LastProofUpdated = e.Timestamp
	case rollup.ClassFinalized:
		// LatestFinalized carries no independent cadence tracker;
		// finality only ever moves forward in practice, so it is
		// applied unconditionally here.
		st.LatestFinalized = e.BatchNumber
		st.LatestFinalizedTx = &e.TxHash
	}
	if e.Timestamp > st.LastUpdated {
		st.LastUpdated = e.Timestamp
	}
}

// RecordSequencer implements record_sequencer: atomically replace the
// metrics for one rollup.
func (h *Hub) RecordSequencer(id rollup.ID, m rollup.SequencerMetrics) {
	h.mu.Lock()
	h.sequencers[id] = m
	h.mu.Unlock()
}

// SnapshotStatus returns a consistent copy of one rollup's status, plus
// whether any event has ever advanced it.
func (h *Hub) SnapshotStatus(id rollup.ID) (rollup.Status, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status[id], h.everRecorded[id]
}

func (h *Hub) SnapshotAllStatus() map[rollup.ID]rollup.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[rollup.ID]rollup.Status, len(h.thresholds))
	for id := range h.knownIDsLocked() {
		out[id] = h.status[id]
	}
	return out
}

func (h *Hub) SnapshotSequencers() map[rollup.ID]rollup.SequencerMetrics {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[rollup.ID]rollup.SequencerMetrics, len(h.sequencers))
	for id, m := range h.sequencers {
		out[id] = m
	}
	return out
}

// EverRecorded reports whether any event has advanced id's status.
func (h *Hub) EverRecorded(id rollup.ID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.everRecorded[id]
}

// Delivery is one item handed to a live subscriber: either a decoded
// event, or a lagged marker telling the subscriber it missed events and
// should call Subscribe again for a fresh snapshot.
type Delivery struct {
	Event  rollup.Event
	Lagged bool
}

// Subscription is a single live subscriber's handle onto the Hub's
// broadcast ring.
type Subscription struct {
	id     uuid.UUID
	hub    *Hub
	cursor int64
}

func (s *Subscription) ID() uuid.UUID { return s.id }

// Next blocks until the next event (or lagged marker) is available, or
// ctx is cancelled.
func (s *Subscription) Next(ctx context.Context) (Delivery, error) {
	type result struct {
		d  Delivery
		ok bool
	}
	resCh := make(chan result, 1)
	go func() {
		ev, lagged, newCursor, ok := s.hub.ring.read(s.cursor)
		s.cursor = newCursor
		resCh <- result{Delivery{Event: ev, Lagged: lagged}, ok}
	}()
	select {
	case <-ctx.Done():
		return Delivery{}, ctx.Err()
	case r := <-resCh:
		if !r.ok {
			return Delivery{}, context.Canceled
		}
		if r.d.Lagged {
			s.hub.metrics.RecordSubscriberLagged(s.id.String())
		}
		return r.d, nil
	}
}

// Subscribe atomically produces the current (status, sequencers)
// snapshot and a cursor positioned at the next event to be broadcast,
// under the same lock RecordEvent uses. No event reflected in the
// snapshot is redelivered, and no event delivered on the stream was
// already applied to the snapshot.
func (h *Hub) Subscribe() (statusSnap map[rollup.ID]rollup.Status, seqSnap map[rollup.ID]rollup.SequencerMetrics, sub *Subscription) {
	h.mu.Lock()
	statusSnap = make(map[rollup.ID]rollup.Status, len(h.thresholds))
	for id := range h.knownIDsLocked() {
		statusSnap[id] = h.status[id]
	}
	seqSnap = make(map[rollup.ID]rollup.SequencerMetrics, len(h.sequencers))
	for id, m := range h.sequencers {
		seqSnap[id] = m
	}
	cursor := h.ring.headLocked()
	h.mu.Unlock()

	h.metrics.RecordSubscriberConnected()
	sub = &Subscription{id: uuid.New(), hub: h, cursor: cursor}
	return statusSnap, seqSnap, sub
}

func (h *Hub) Unsubscribe(sub *Subscription) {
	_ = sub
	h.metrics.RecordSubscriberDisconnected()
}

// Close stops the broadcast ring, waking any blocked subscribers with a
// closed stream so their connections can shut down gracefully.
func (h *Hub) Close() {
	h.ring.close()
}

// knownIDsLocked returns the configured rollup set, or every RollupId if
// no thresholds were configured (e.g. in tests). Caller must hold h.mu.
func (h *Hub) knownIDsLocked() map[rollup.ID]struct{} {
	out := make(map[rollup.ID]struct{})
	if len(h.thresholds) > 0 {
		for id := range h.thresholds {
			out[id] = struct{}{}
		}
		return out
	}
	for _, id := range rollup.AllIDs() {
		out[id] = struct{}{}
	}
	return out
}
