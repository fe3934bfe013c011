package transport

import (
	"context"
	"sync"
)

// Stub is an in-memory Transport for tests: it records every call it
// receives and answers according to programmable behavior, rather than
// talking to a network. Grounded on the teacher's stub-reader pattern
// (shape-correct canned responses instead of a live backend).
type Stub struct {
	mu sync.Mutex

	FailSendBatch bool
	SendErr       error

	Batches []BatchEnvelope
	RunInits []RunInit
	Finishes []string

	closed bool
}

// NewStub returns a Stub that succeeds by default.
func NewStub() *Stub {
	return &Stub{}
}

func (s *Stub) InitRun(ctx context.Context, req RunInit) (RunInitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.RunInits = append(s.RunInits, req)
	runID := req.RunID
	if runID == "" {
		runID = "stub-run"
	}
	return RunInitResult{RunID: runID}, nil
}

func (s *Stub) SendBatch(ctx context.Context, env BatchEnvelope, raw []byte, compressed bool) (BatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailSendBatch {
		err := s.SendErr
		if err == nil {
			err = &Error{Message: "stub: forced failure", Retryable: true}
		}
		return BatchResult{}, err
	}

	s.Batches = append(s.Batches, env)
	return BatchResult{Status: "ok", Accepted: len(env.Metrics) + len(env.Params) + len(env.Tags)}, nil
}

func (s *Stub) FinishRun(ctx context.Context, runID, status string) (FinishResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Finishes = append(s.Finishes, runID)
	return FinishResult{Status: "ok"}, nil
}

func (s *Stub) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// BatchCount returns how many SendBatch calls succeeded so far.
func (s *Stub) BatchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Batches)
}

var _ Transport = (*Stub)(nil)
