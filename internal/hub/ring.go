package hub

import (
	"sync"

	"github.com/chainbound-labs/rollupwatch/internal/rollup"
)

// eventRing is a bounded, sequence-numbered ring buffer of broadcast
// events. Every subscriber reads the SAME ring independently, each
// tracking its own read position; a subscriber that falls behind by
// more than the ring's capacity has lost the oldest events and is told
// so via a lagged marker rather than being disconnected.
//
// It shares its lock with Hub (see hub.go): pushing an event and
// mutating RollupStatus for that event happen under the same critical
// section, so a subscriber's snapshot-plus-cursor is always taken at a
// point consistent with the ring: no event can be both reflected in a
// snapshot and redelivered on the stream, or missed by both. Only the
// wake-up of blocked readers happens via sync.Cond.Broadcast, which
// never blocks the writer on a slow subscriber.
type eventRing struct {
	mu     *sync.Mutex
	cond   *sync.Cond
	buf    []rollup.Event
	next   int64 // sequence number of the next slot to be written
	closed bool
}

func newEventRing(capacity int, mu *sync.Mutex) *eventRing {
	return &eventRing{
		mu:   mu,
		cond: sync.NewCond(mu),
		buf:  make([]rollup.Event, capacity),
	}
}

// pushLocked appends an event. Caller must already hold r.mu.
func (r *eventRing) pushLocked(e rollup.Event) int64 {
	seq := r.next
	r.buf[seq%int64(len(r.buf))] = e
	r.next++
	r.cond.Broadcast()
	return seq
}

// headLocked returns the sequence number of the next event that will be
// written. Caller must already hold r.mu.
func (r *eventRing) headLocked() int64 {
	return r.next
}

func (r *eventRing) oldestAvailableLocked() int64 {
	cap64 := int64(len(r.buf))
	if r.next <= cap64 {
		return 0
	}
	return r.next - cap64
}

func (r *eventRing) depthLocked() int {
	if r.next >= int64(len(r.buf)) {
		return len(r.buf)
	}
	return int(r.next)
}

// read blocks until an event at or after cursor is available, or the
// ring is closed (ok=false). If cursor has fallen behind the oldest
// retained event, it returns lagged=true with no event and the cursor
// snapped forward to the oldest available sequence; the next read
// resumes delivery from there, so the marker itself costs no surviving
// event.
func (r *eventRing) read(cursor int64) (ev rollup.Event, lagged bool, newCursor int64, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.next <= cursor && !r.closed {
		r.cond.Wait()
	}
	if r.closed && r.next <= cursor {
		return rollup.Event{}, false, cursor, false
	}
	oldest := r.oldestAvailableLocked()
	if cursor < oldest {
		return rollup.Event{}, true, oldest, true
	}
	return r.buf[cursor%int64(len(r.buf))], false, cursor + 1, true
}

func (r *eventRing) close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cond.Broadcast()
}
