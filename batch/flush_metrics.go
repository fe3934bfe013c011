package batch

import (
	"sync"
	"time"

	"github.com/justapithecus/qtrack/types"
)

// FlushMetrics accumulates monitoring counters about flush operations
// across the worker's lifetime. Safe for concurrent use.
type FlushMetrics struct {
	mu sync.Mutex

	TotalFlushes        int64
	TotalEventsSent     int64
	TotalBytesSent      int64
	TotalCoalesced      int64
	LastFlushTime       time.Time
	LastFlushDurationMS float64
	LastBatchSize       int

	SizeTriggered     int64
	BytesTriggered    int64
	TimeTriggered     int64
	ManualTriggered   int64
	ShutdownTriggered int64
}

// RecordFlush records the outcome of one flush operation.
func (m *FlushMetrics) RecordFlush(events int, bytesEst int64, coalesced int64, duration time.Duration, trigger types.FlushTrigger) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalFlushes++
	m.TotalEventsSent += int64(events)
	m.TotalBytesSent += bytesEst
	m.TotalCoalesced += coalesced
	m.LastFlushTime = time.Now()
	m.LastFlushDurationMS = float64(duration) / float64(time.Millisecond)
	m.LastBatchSize = events

	switch trigger {
	case types.TriggerSize:
		m.SizeTriggered++
	case types.TriggerBytes:
		m.BytesTriggered++
	case types.TriggerTime:
		m.TimeTriggered++
	case types.TriggerShutdown:
		m.ShutdownTriggered++
	default:
		m.ManualTriggered++
	}
}

// Snapshot returns a copy of the current counters.
func (m *FlushMetrics) Snapshot() FlushMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := *m
	snap.mu = sync.Mutex{}
	return snap
}
