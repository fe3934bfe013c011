// Package transport defines the pluggable contract between the flush
// worker/syncer and the wire, plus the default HTTP implementation. Grounded
// on mlrun.transport.base.Transport and mlrun.transport.http.HttpTransport,
// expressed with net/http and the teacher's retry/backoff idiom from
// adapter/webhook.
package transport

import (
	"context"

	"github.com/justapithecus/qtrack/types"
)

// RunInit is the payload used to initialize a run on the server.
type RunInit struct {
	Project string         `json:"project"`
	Name    string         `json:"name,omitempty"`
	RunID   string         `json:"run_id,omitempty"`
	Tags    map[string]any `json:"tags,omitempty"`
	Config  map[string]any `json:"config,omitempty"`
}

// RunInitResult is the server's (or offline-fallback) answer to InitRun.
type RunInitResult struct {
	RunID   string `json:"run_id"`
	Offline bool   `json:"offline,omitempty"`
}

// BatchEnvelope is the ingest wire format, assembled by the flush worker.
type BatchEnvelope struct {
	RunID     string          `json:"run_id"`
	Metrics   []map[string]any `json:"metrics"`
	Params    []map[string]any `json:"params"`
	Tags      []map[string]any `json:"tags"`
	Timestamp float64         `json:"timestamp"`
	BatchID   string          `json:"batch_id,omitempty"`
	Seq       int64           `json:"seq,omitempty"`
	Stats     BatchEnvelopeStats `json:"stats"`
}

// BatchEnvelopeStats mirrors the wire-level stats object.
type BatchEnvelopeStats struct {
	MetricCount    int `json:"metric_count"`
	ParamCount     int `json:"param_count"`
	TagCount       int `json:"tag_count"`
	CoalescedCount int `json:"coalesced_count"`
}

// BatchResult is the server's response to an ingest POST.
type BatchResult struct {
	Status    string `json:"status"`
	Accepted  int    `json:"accepted"`
	Duplicate bool   `json:"duplicate"`
}

// FinishResult is the server's response to a run-finish POST.
type FinishResult struct {
	Status string `json:"status"`
}

// Error wraps a transport failure with a Retryable classification: connect
// failures, timeouts, and 5xx responses are retryable; 4xx and malformed
// payloads are not.
type Error struct {
	Message    string
	StatusCode int
	Retryable  bool
}

func (e *Error) Error() string { return e.Message }

// Transport is the contract the flush worker and syncer depend on. Never
// returning an error from InitRun/FinishRun on connectivity failure is
// deliberate: those two operations have defined offline fallbacks.
type Transport interface {
	InitRun(ctx context.Context, req RunInit) (RunInitResult, error)
	SendBatch(ctx context.Context, env BatchEnvelope, raw []byte, compressed bool) (BatchResult, error)
	FinishRun(ctx context.Context, runID, status string) (FinishResult, error)
	Close() error
}

// EventsToEnvelope partitions events by kind into the wire envelope shape.
func EventsToEnvelope(runID string, events []types.Event, stats types.BatchStats, timestamp float64) BatchEnvelope {
	env := BatchEnvelope{
		RunID:     runID,
		Timestamp: timestamp,
		Stats: BatchEnvelopeStats{
			MetricCount:    stats.MetricCount,
			ParamCount:     stats.ParamCount,
			TagCount:       stats.TagCount,
			CoalescedCount: stats.CoalescedCount,
		},
	}
	for _, e := range events {
		switch e.Kind {
		case types.EventTypeMetric:
			env.Metrics = append(env.Metrics, e.Payload)
		case types.EventTypeParam:
			env.Params = append(env.Params, e.Payload)
		case types.EventTypeTag:
			env.Tags = append(env.Tags, e.Payload)
		}
	}
	return env
}
