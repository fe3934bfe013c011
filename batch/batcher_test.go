package batch

import (
	"testing"
	"time"

	"github.com/justapithecus/qtrack/types"
)

func TestAdd_AppendsNewMetrics(t *testing.T) {
	b := New(DefaultConfig())

	b.Add(types.NewEvent(types.EventTypeMetric, "r1", types.MetricPayload("loss", 0.5, 0, 0)))
	b.Add(types.NewEvent(types.EventTypeMetric, "r1", types.MetricPayload("accuracy", 0.8, 0, 0)))

	if b.Stats().EventCount != 2 {
		t.Fatalf("EventCount = %d, want 2", b.Stats().EventCount)
	}
}

// TestCoalescing_S2 is scenario S2: logging loss at step 0 with values
// 0.5, 0.4, 0.3 yields exactly one event with value 0.3 and coalesced=2.
func TestCoalescing_S2(t *testing.T) {
	b := New(DefaultConfig())

	for _, v := range []float64{0.5, 0.4, 0.3} {
		b.Add(types.NewEvent(types.EventTypeMetric, "r1", types.MetricPayload("loss", v, 0, 0)))
	}

	events, stats := b.Flush()
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	if got := events[0].Payload["value"]; got != 0.3 {
		t.Errorf("value = %v, want 0.3", got)
	}
	if stats.CoalescedCount != 2 {
		t.Errorf("CoalescedCount = %d, want 2", stats.CoalescedCount)
	}
}

// TestMetricCoalescing_PreservesFirstInsertOrder is property #2: after
// flush, for each (name, step) identity exactly one event survives holding
// the last-offered value, and order among retained identities equals their
// first-insertion order.
func TestMetricCoalescing_PreservesFirstInsertOrder(t *testing.T) {
	b := New(DefaultConfig())

	b.Add(types.NewEvent(types.EventTypeMetric, "r1", types.MetricPayload("accuracy", 0.1, 0, 0)))
	b.Add(types.NewEvent(types.EventTypeMetric, "r1", types.MetricPayload("loss", 0.9, 0, 0)))
	b.Add(types.NewEvent(types.EventTypeMetric, "r1", types.MetricPayload("accuracy", 0.2, 0, 0)))
	b.Add(types.NewEvent(types.EventTypeMetric, "r1", types.MetricPayload("loss", 0.4, 0, 0)))

	events, _ := b.Flush()
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	if name := events[0].Payload["name"]; name != "accuracy" {
		t.Errorf("events[0].name = %v, want accuracy (first insertion order)", name)
	}
	if v := events[0].Payload["value"]; v != 0.2 {
		t.Errorf("events[0].value = %v, want 0.2 (last-writer-wins)", v)
	}
	if name := events[1].Payload["name"]; name != "loss" {
		t.Errorf("events[1].name = %v, want loss", name)
	}
	if v := events[1].Payload["value"]; v != 0.4 {
		t.Errorf("events[1].value = %v, want 0.4 (last-writer-wins)", v)
	}
}

// TestParamDedup is property #3 for params keyed by name.
func TestParamDedup(t *testing.T) {
	b := New(DefaultConfig())

	b.Add(types.NewEvent(types.EventTypeParam, "r1", types.ParamPayload("lr", "0.1")))
	b.Add(types.NewEvent(types.EventTypeParam, "r1", types.ParamPayload("lr", "0.01")))

	events, stats := b.Flush()
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	if v := events[0].Payload["value"]; v != "0.01" {
		t.Errorf("value = %v, want 0.01", v)
	}
	if stats.CoalescedCount != 1 {
		t.Errorf("CoalescedCount = %d, want 1", stats.CoalescedCount)
	}
}

// TestTagDedup is property #3 for tags keyed by key.
func TestTagDedup(t *testing.T) {
	b := New(DefaultConfig())

	b.Add(types.NewEvent(types.EventTypeTag, "r1", types.TagPayload("env", "staging")))
	b.Add(types.NewEvent(types.EventTypeTag, "r1", types.TagPayload("env", "prod")))

	events, _ := b.Flush()
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	if v := events[0].Payload["value"]; v != "prod" {
		t.Errorf("value = %v, want prod", v)
	}
}

func TestCoalescingDisabled_DegradesToAppendOnly(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CoalesceMetrics = false
	b := New(cfg)

	b.Add(types.NewEvent(types.EventTypeMetric, "r1", types.MetricPayload("loss", 0.5, 0, 0)))
	b.Add(types.NewEvent(types.EventTypeMetric, "r1", types.MetricPayload("loss", 0.3, 0, 0)))

	events, stats := b.Flush()
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2 with coalescing disabled", len(events))
	}
	if stats.CoalescedCount != 0 {
		t.Errorf("CoalescedCount = %d, want 0", stats.CoalescedCount)
	}
}

func TestShouldFlush_SizeTrigger(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxItems = 2
	b := New(cfg)

	b.Add(types.NewEvent(types.EventTypeMetric, "r1", types.MetricPayload("loss", 0.5, 0, 0)))
	if b.ShouldFlush() {
		t.Fatalf("should not flush after 1 of 2 max items")
	}
	if flush := b.Add(types.NewEvent(types.EventTypeMetric, "r1", types.MetricPayload("loss", 0.5, 1, 0))); !flush {
		t.Errorf("should flush after reaching max items")
	}
}

func TestShouldFlush_AgeTrigger(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxAgeMS = 10
	b := New(cfg)

	b.Add(types.NewEvent(types.EventTypeMetric, "r1", types.MetricPayload("loss", 0.5, 0, 0)))
	time.Sleep(20 * time.Millisecond)

	if !b.ShouldFlush() {
		t.Errorf("should flush once age trigger elapses")
	}
}

func TestFlush_ResetsState(t *testing.T) {
	b := New(DefaultConfig())
	b.Add(types.NewEvent(types.EventTypeMetric, "r1", types.MetricPayload("loss", 0.5, 0, 0)))

	b.Flush()

	if !b.IsEmpty() {
		t.Errorf("batcher should be empty after flush")
	}
	if b.Stats().EventCount != 0 {
		t.Errorf("stats should reset after flush")
	}
}

func TestTrigger_PriorityOrder(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxItems = 1
	cfg.MaxBytes = 1

	stats := types.BatchStats{EventCount: 1, EstimatedBytes: 1}
	if got := Trigger(stats, cfg); got != types.TriggerSize {
		t.Errorf("Trigger = %v, want size (checked before bytes)", got)
	}
}
