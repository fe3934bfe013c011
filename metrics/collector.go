// Package metrics accumulates per-run counters the worker and spool update
// on their hot paths. Collector is a leaf package with no dependency on
// queue/batch/spool/worker; it only knows the shape of the numbers.
//
// The Collector/Snapshot split and nil-receiver-safe increment methods
// follow the teacher's metrics.Collector exactly; the dimensions and
// counters themselves are this domain's (dropped events, batches sent,
// coalesced count, spool writes) rather than the teacher's run/executor/lode
// counters.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of a run's counters. Safe to
// read concurrently after creation.
type Snapshot struct {
	EventsOffered int64
	EventsDropped int64
	BatchesSent   int64
	BatchesFailed int64
	EventsSent    int64
	BytesSent     int64
	Coalesced     int64
	SpoolWrites   int64
	SpoolSynced   int64
	Errors        int64

	RunID string
}

// Collector accumulates counters during a single run. Thread-safe via
// sync.Mutex. All increment methods are nil-receiver safe, so a caller that
// opted out of metrics (nil *Collector) can call through unconditionally.
type Collector struct {
	mu sync.Mutex

	eventsOffered int64
	eventsDropped int64
	batchesSent   int64
	batchesFailed int64
	eventsSent    int64
	bytesSent     int64
	coalesced     int64
	spoolWrites   int64
	spoolSynced   int64
	errors        int64

	runID string
}

// NewCollector creates a Collector scoped to one run.
func NewCollector(runID string) *Collector {
	return &Collector{runID: runID}
}

// IncEventsOffered records a producer Put call, regardless of outcome.
func (c *Collector) IncEventsOffered() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.eventsOffered++
	c.mu.Unlock()
}

// IncEventsDropped records a queue-full drop.
func (c *Collector) IncEventsDropped() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.eventsDropped++
	c.mu.Unlock()
}

// RecordBatchSent records a successful flush of n events totaling bytes,
// with coalesced slots folded into the batch.
func (c *Collector) RecordBatchSent(n int, bytes int64, coalesced int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.batchesSent++
	c.eventsSent += int64(n)
	c.bytesSent += bytes
	c.coalesced += coalesced
	c.mu.Unlock()
}

// IncBatchFailed records a batch that was not delivered: retries exhausted,
// a non-retryable error, or the send skipped while offline.
func (c *Collector) IncBatchFailed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.batchesFailed++
	c.mu.Unlock()
}

// IncSpoolWrite records one event durably written to the spool as a send
// fallback.
func (c *Collector) IncSpoolWrite() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.spoolWrites++
	c.mu.Unlock()
}

// IncSpoolSynced records one spool file successfully replayed by the
// syncer.
func (c *Collector) IncSpoolSynced() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.spoolSynced++
	c.mu.Unlock()
}

// IncErrors records any error the worker or syncer could not recover from
// within the current operation (logged and counted, never raised to the
// producer).
func (c *Collector) IncErrors() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.errors++
	c.mu.Unlock()
}

// Snapshot returns an immutable point-in-time view of all counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		EventsOffered: c.eventsOffered,
		EventsDropped: c.eventsDropped,
		BatchesSent:   c.batchesSent,
		BatchesFailed: c.batchesFailed,
		EventsSent:    c.eventsSent,
		BytesSent:     c.bytesSent,
		Coalesced:     c.coalesced,
		SpoolWrites:   c.spoolWrites,
		SpoolSynced:   c.spoolSynced,
		Errors:        c.errors,
		RunID:         c.runID,
	}
}
