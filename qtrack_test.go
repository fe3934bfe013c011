package qtrack

import (
	"context"
	"testing"
	"time"

	"github.com/justapithecus/qtrack/config"
	"github.com/justapithecus/qtrack/transport"
)

// noopTransport answers every call instantly, standing in for "transport
// patched to a no-op" in the hot-path latency scenario: the point is to
// prove LogMetric itself never blocks on the network, not to exercise the
// network path.
type noopTransport struct{}

func (noopTransport) InitRun(ctx context.Context, req transport.RunInit) (transport.RunInitResult, error) {
	return transport.RunInitResult{RunID: "run-s6"}, nil
}

func (noopTransport) SendBatch(ctx context.Context, env transport.BatchEnvelope, raw []byte, compressed bool) (transport.BatchResult, error) {
	return transport.BatchResult{Status: "ok"}, nil
}

func (noopTransport) FinishRun(ctx context.Context, runID, status string) (transport.FinishResult, error) {
	return transport.FinishResult{Status: "ok"}, nil
}

func (noopTransport) Close() error { return nil }

// TestScenario_S6_HotPathLatency is scenario S6 from the spec: 1000 LogMetric
// calls against a no-op transport complete in under 100ms, proving the
// producer-facing call never blocks on the network.
func TestScenario_S6_HotPathLatency(t *testing.T) {
	cfg := &config.Config{
		QueueSize:      10_000,
		BatchSize:      1000,
		BatchTimeoutMS: 50,
		SpoolEnabled:   false,
	}

	r := newRun(cfg, noopTransport{}, "run-s6")
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		r.Stop(ctx)
	}()

	start := time.Now()
	for i := 0; i < 1000; i++ {
		r.LogMetric("loss", float64(i), int64(i))
	}
	elapsed := time.Since(start)

	if elapsed > 100*time.Millisecond {
		t.Errorf("1000 LogMetric calls took %v, want < 100ms", elapsed)
	}
}
