package types

import "time"

// BatchStats describes the contents of an in-flight or just-flushed batch.
type BatchStats struct {
	EventCount      int
	MetricCount     int
	ParamCount      int
	TagCount        int
	EstimatedBytes  int64
	CoalescedCount  int
	CreatedAt       time.Time
}

// AgeMS returns how long ago the batch's first event was added, in
// milliseconds.
func (s BatchStats) AgeMS() float64 {
	if s.CreatedAt.IsZero() {
		return 0
	}
	return float64(time.Since(s.CreatedAt)) / float64(time.Millisecond)
}

// FlushTrigger names the condition that promoted a batch to "ready to flush".
type FlushTrigger string

// Flush trigger constants, checked in this priority order when more than
// one condition holds simultaneously.
const (
	TriggerSize     FlushTrigger = "size"
	TriggerBytes    FlushTrigger = "bytes"
	TriggerTime     FlushTrigger = "time"
	TriggerManual   FlushTrigger = "manual"
	TriggerShutdown FlushTrigger = "shutdown"
)

// RunCounters names the run-local counters: dropped events, batches sent,
// errors, spool writes, coalesce count. The pipeline keeps its live counts
// in metrics.Collector and does not fill this struct.
type RunCounters struct {
	DroppedEvents int64
	BatchesSent   int64
	Errors        int64
	SpoolWrites   int64
	Coalesced     int64
}
