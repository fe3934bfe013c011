package types

import "testing"

func TestEventType_IsTerminal(t *testing.T) {
	tests := []struct {
		eventType EventType
		want      bool
	}{
		{EventTypeRunFinish, true},
		{EventTypeRunStart, false},
		{EventTypeMetric, false},
		{EventTypeParam, false},
		{EventTypeTag, false},
		{EventTypeArtifact, false},
	}

	for _, tt := range tests {
		if got := tt.eventType.IsTerminal(); got != tt.want {
			t.Errorf("EventType(%q).IsTerminal() = %v, want %v", tt.eventType, got, tt.want)
		}
	}
}

func TestMetricIdentity(t *testing.T) {
	e := NewEvent(EventTypeMetric, "run-1", MetricPayload("loss", 0.5, 3, 1.0))

	key, ok := MetricIdentity(e)
	if !ok {
		t.Fatalf("MetricIdentity returned ok=false for well-formed metric event")
	}
	if key.Name != "loss" || key.Step != 3 {
		t.Errorf("MetricIdentity = %+v, want {loss 3}", key)
	}
}

func TestMetricIdentity_MissingName(t *testing.T) {
	e := Event{Kind: EventTypeMetric, Payload: map[string]any{"step": int64(1)}}
	if _, ok := MetricIdentity(e); ok {
		t.Errorf("MetricIdentity should fail without a name field")
	}
}

func TestParamIdentity(t *testing.T) {
	e := NewEvent(EventTypeParam, "run-1", ParamPayload("lr", "0.01"))
	name, ok := ParamIdentity(e)
	if !ok || name != "lr" {
		t.Errorf("ParamIdentity = (%q, %v), want (lr, true)", name, ok)
	}
}

func TestTagIdentity(t *testing.T) {
	e := NewEvent(EventTypeTag, "run-1", TagPayload("env", "prod"))
	key, ok := TagIdentity(e)
	if !ok || key != "env" {
		t.Errorf("TagIdentity = (%q, %v), want (env, true)", key, ok)
	}
}
