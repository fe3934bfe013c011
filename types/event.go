// Package types holds the value objects shared by every stage of the
// tracking pipeline: events produced on the hot path, the transient batch
// that accumulates them, and the durable spool record they fall back to.
package types

import "time"

// ContractVersion is the wire-format version carried in spool records.
const ContractVersion = 1

// EventType is the discriminator for an Event's payload shape.
type EventType string

// Event type constants.
const (
	EventTypeMetric     EventType = "metric"
	EventTypeParam      EventType = "param"
	EventTypeTag        EventType = "tag"
	EventTypeRunStart   EventType = "run_start"
	EventTypeRunFinish  EventType = "run_finish"
	EventTypeArtifact   EventType = "artifact"
)

// IsTerminal returns true if this event type ends a run.
func (t EventType) IsTerminal() bool {
	return t == EventTypeRunFinish
}

// Event is an immutable tagged record enqueued by producers. Once
// constructed an Event is never mutated; coalescing in the batcher replaces
// the slot holding an Event, it never edits one in place.
type Event struct {
	Kind      EventType      `json:"type"`
	RunID     string         `json:"run_id"`
	Timestamp float64        `json:"timestamp"`
	Payload   map[string]any `json:"data"`
}

// NewEvent builds an Event with the current wall-clock timestamp.
func NewEvent(kind EventType, runID string, payload map[string]any) Event {
	return Event{
		Kind:      kind,
		RunID:     runID,
		Timestamp: float64(time.Now().UnixNano()) / 1e9,
		Payload:   payload,
	}
}

// MetricPayload builds the payload map for a metric event.
// value must be finite; callers (the producer-facing API, qtrack's
// Run.LogMetric) are responsible for validating that before constructing
// the event.
func MetricPayload(name string, value float64, step int64, timestamp float64) map[string]any {
	return map[string]any{
		"name":      name,
		"value":     value,
		"step":      step,
		"timestamp": timestamp,
	}
}

// ParamPayload builds the payload map for a param event. value is coerced
// to string at the call site, per the spec's ingest-time coercion rule.
func ParamPayload(name, value string) map[string]any {
	return map[string]any{
		"name":  name,
		"value": value,
	}
}

// TagPayload builds the payload map for a tag event.
func TagPayload(key, value string) map[string]any {
	return map[string]any{
		"key":   key,
		"value": value,
	}
}

// RunStartPayload builds the payload map for a run_start event.
func RunStartPayload(project, name string, config map[string]any) map[string]any {
	return map[string]any{
		"project": project,
		"name":    name,
		"config":  config,
	}
}

// RunFinishPayload builds the payload map for a run_finish event.
func RunFinishPayload(status string) map[string]any {
	return map[string]any{
		"status": status,
	}
}

// MetricIdentity returns the coalescing key for a metric event: (name, step).
// ok is false if the payload has no string name; a missing or non-numeric
// step counts as step 0.
func MetricIdentity(e Event) (key MetricKey, ok bool) {
	name, nameOK := e.Payload["name"].(string)
	if !nameOK {
		return MetricKey{}, false
	}
	step, _ := toInt64(e.Payload["step"])
	return MetricKey{Name: name, Step: step}, true
}

// MetricKey identifies a metric for coalescing purposes.
type MetricKey struct {
	Name string
	Step int64
}

// ParamIdentity returns the dedup key for a param event: name.
func ParamIdentity(e Event) (string, bool) {
	name, ok := e.Payload["name"].(string)
	return name, ok
}

// TagIdentity returns the dedup key for a tag event: key.
func TagIdentity(e Event) (string, bool) {
	key, ok := e.Payload["key"].(string)
	return key, ok
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
