// Package queue implements the bounded multi-producer single-consumer event
// buffer producers enqueue into on the hot path.
package queue

import (
	"sync/atomic"
	"time"

	"github.com/justapithecus/qtrack/types"
)

// Queue is a fixed-capacity FIFO buffer backed by a Go channel. Put never
// blocks: once the channel is full it drops the incoming event and counts
// the drop. GetBatch is the only blocking operation and is intended to be
// called by a single consumer goroutine.
type Queue struct {
	ch       chan types.Event
	capacity int
	dropped  atomic.Int64
}

// New creates a Queue bounded to capacity events. A non-positive capacity
// panics: a boundless queue defeats the purpose of this component.
func New(capacity int) *Queue {
	if capacity <= 0 {
		panic("queue: capacity must be positive")
	}
	return &Queue{
		ch:       make(chan types.Event, capacity),
		capacity: capacity,
	}
}

// Put enqueues e. Returns false, without blocking, if the queue is full; the
// caller must treat the event as dropped.
func (q *Queue) Put(e types.Event) bool {
	select {
	case q.ch <- e:
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// GetBatch blocks until at least one event is available or deadline
// elapses, returning up to maxItems events. It never returns an empty slice
// unless the deadline expired with nothing queued.
func (q *Queue) GetBatch(maxItems int, deadline time.Duration) []types.Event {
	if maxItems <= 0 {
		return nil
	}

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	var first types.Event
	select {
	case first = <-q.ch:
	case <-timer.C:
		return nil
	}

	out := make([]types.Event, 0, min(maxItems, q.capacity))
	out = append(out, first)

	for len(out) < maxItems {
		select {
		case e := <-q.ch:
			out = append(out, e)
		default:
			return out
		}
	}
	return out
}

// Drain returns and removes all currently queued events, without blocking.
func (q *Queue) Drain() []types.Event {
	var out []types.Event
	for {
		select {
		case e := <-q.ch:
			out = append(out, e)
		default:
			return out
		}
	}
}

// Size returns the current number of queued events.
func (q *Queue) Size() int {
	return len(q.ch)
}

// DroppedCount returns the number of events dropped due to a full queue.
func (q *Queue) DroppedCount() int64 {
	return q.dropped.Load()
}

// IsEmpty reports whether the queue currently holds no events.
func (q *Queue) IsEmpty() bool {
	return len(q.ch) == 0
}
