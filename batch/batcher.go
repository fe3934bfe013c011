// Package batch implements the adaptive batcher: it accumulates events,
// coalescing/deduping by identity, and signals when one of the size, bytes,
// or age triggers fires. A Batcher is owned exclusively by a single flush
// worker goroutine; it holds no lock of its own, the same single-owner
// discipline the teacher's policy package documents for its buffer fields.
package batch

import (
	"fmt"
	"time"

	"github.com/justapithecus/qtrack/types"
)

// Batcher accumulates events for one pending batch.
type Batcher struct {
	config Config

	events []types.Event
	stats  types.BatchStats

	metricIndex map[types.MetricKey]int
	paramIndex  map[string]int
	tagIndex    map[string]int
}

// New creates a Batcher with the given config.
func New(config Config) *Batcher {
	return &Batcher{
		config:      config,
		metricIndex: make(map[types.MetricKey]int),
		paramIndex:  make(map[string]int),
		tagIndex:    make(map[string]int),
	}
}

// Add appends or coalesces e into the current batch and returns whether the
// batch should now be flushed.
func (b *Batcher) Add(e types.Event) bool {
	if b.stats.EventCount == 0 {
		b.stats.CreatedAt = time.Now()
	}

	switch {
	case e.Kind == types.EventTypeMetric && b.config.CoalesceMetrics:
		b.addMetric(e)
	case e.Kind == types.EventTypeParam && b.config.DedupeParams:
		b.addParam(e)
	case e.Kind == types.EventTypeTag && b.config.DedupeTags:
		b.addTag(e)
	default:
		b.append(e)
	}

	return b.ShouldFlush()
}

func (b *Batcher) addMetric(e types.Event) {
	key, ok := types.MetricIdentity(e)
	if !ok {
		b.append(e)
		return
	}
	if idx, exists := b.metricIndex[key]; exists {
		b.replace(idx, e)
		return
	}
	b.metricIndex[key] = len(b.events)
	b.append(e)
}

func (b *Batcher) addParam(e types.Event) {
	key, ok := types.ParamIdentity(e)
	if !ok {
		b.append(e)
		return
	}
	if idx, exists := b.paramIndex[key]; exists {
		b.replace(idx, e)
		return
	}
	b.paramIndex[key] = len(b.events)
	b.append(e)
}

func (b *Batcher) addTag(e types.Event) {
	key, ok := types.TagIdentity(e)
	if !ok {
		b.append(e)
		return
	}
	if idx, exists := b.tagIndex[key]; exists {
		b.replace(idx, e)
		return
	}
	b.tagIndex[key] = len(b.events)
	b.append(e)
}

// append adds e as a brand new slot and updates stats. Caller must not call
// this for a replacement (use replace instead).
func (b *Batcher) append(e types.Event) {
	b.events = append(b.events, e)
	b.updateStats(e)
}

// replace overwrites the event at idx with e, keeping the slot's original
// insertion position (last-writer-wins, first-insertion order preserved).
func (b *Batcher) replace(idx int, e types.Event) {
	old := b.events[idx]
	b.events[idx] = e
	b.stats.CoalescedCount++
	b.stats.EstimatedBytes += estimateEventSize(e) - estimateEventSize(old)
}

func (b *Batcher) updateStats(e types.Event) {
	b.stats.EventCount++
	b.stats.EstimatedBytes += estimateEventSize(e)

	switch e.Kind {
	case types.EventTypeMetric:
		b.stats.MetricCount++
	case types.EventTypeParam:
		b.stats.ParamCount++
	case types.EventTypeTag:
		b.stats.TagCount++
	}
}

// estimateEventSize approximates the serialized size of e: a fixed envelope
// overhead plus the length of each payload key/value rendered as strings.
// This is a bound for batch memory, not an exact serialized size.
func estimateEventSize(e types.Event) int64 {
	size := int64(50)
	for k, v := range e.Payload {
		size += int64(len(k)) + int64(len(fmt.Sprint(v))) + 10
	}
	return size
}

// ShouldFlush reports whether any flush trigger currently holds.
func (b *Batcher) ShouldFlush() bool {
	if b.stats.EventCount >= b.config.MaxItems {
		return true
	}
	if b.stats.EstimatedBytes >= b.config.MaxBytes {
		return true
	}
	return int64(b.stats.AgeMS()) >= b.config.MaxAgeMS
}

// IsEmpty reports whether the batch currently holds no events.
func (b *Batcher) IsEmpty() bool {
	return b.stats.EventCount == 0
}

// Stats returns the current batch statistics.
func (b *Batcher) Stats() types.BatchStats {
	return b.stats
}

// Flush returns the accumulated events (in first-insertion order for each
// retained identity) and stats, resetting the batcher to empty.
func (b *Batcher) Flush() ([]types.Event, types.BatchStats) {
	events := b.events
	stats := b.stats

	b.events = nil
	b.stats = types.BatchStats{}
	b.metricIndex = make(map[types.MetricKey]int)
	b.paramIndex = make(map[string]int)
	b.tagIndex = make(map[string]int)

	return events, stats
}

// Trigger inspects stats for the first-firing trigger, checked in priority
// order size -> bytes -> time, per the spec's trigger classification.
func Trigger(stats types.BatchStats, config Config) types.FlushTrigger {
	switch {
	case stats.EventCount >= config.MaxItems:
		return types.TriggerSize
	case stats.EstimatedBytes >= config.MaxBytes:
		return types.TriggerBytes
	default:
		return types.TriggerTime
	}
}
