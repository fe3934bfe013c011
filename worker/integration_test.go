package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/justapithecus/qtrack/batch"
	"github.com/justapithecus/qtrack/conn"
	"github.com/justapithecus/qtrack/log"
	"github.com/justapithecus/qtrack/metrics"
	"github.com/justapithecus/qtrack/queue"
	"github.com/justapithecus/qtrack/spool"
	"github.com/justapithecus/qtrack/transport"
	"github.com/justapithecus/qtrack/types"
)

// idempotentRetryTransport fails the first N SendBatch calls with a
// retryable error, then succeeds every call after that and reports
// duplicate=true on every call after the first, simulating a server that
// already accepted a batch whose response the client missed.
type idempotentRetryTransport struct {
	mu          sync.Mutex
	failCount   int
	calls       int
	successes   int
	sawDuplicate bool
}

func (tr *idempotentRetryTransport) InitRun(ctx context.Context, req transport.RunInit) (transport.RunInitResult, error) {
	return transport.RunInitResult{RunID: req.RunID}, nil
}

func (tr *idempotentRetryTransport) SendBatch(ctx context.Context, env transport.BatchEnvelope, raw []byte, compressed bool) (transport.BatchResult, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.calls++
	if tr.calls <= tr.failCount {
		return transport.BatchResult{}, &transport.Error{Message: "server error", Retryable: true, StatusCode: 503}
	}
	tr.successes++
	// Any call after the first is a retry: the server may have already
	// committed the batch from the earlier attempt even though the client
	// never saw that response, so it reports duplicate=true.
	duplicate := tr.calls > 1
	if duplicate {
		tr.sawDuplicate = true
	}
	return transport.BatchResult{Status: "ok", Accepted: len(env.Metrics), Duplicate: duplicate}, nil
}

func (tr *idempotentRetryTransport) FinishRun(ctx context.Context, runID, status string) (transport.FinishResult, error) {
	return transport.FinishResult{Status: "ok"}, nil
}

func (tr *idempotentRetryTransport) Close() error { return nil }

// TestScenario_S3_IdempotentRetry drives a batch send that fails once
// (retryable) and succeeds on the retry; the worker must count exactly one
// successful batch regardless of how many attempts the retry loop made.
func TestScenario_S3_IdempotentRetry(t *testing.T) {
	tr := &idempotentRetryTransport{failCount: 1}
	q := queue.New(100)
	disk := spool.New(spool.DefaultConfig(t.TempDir()))
	cfg := Config{
		RunID:         "run-s3",
		BatchTimeout:  20 * time.Millisecond,
		MaxRetries:    2,
		RetryDelay:    time.Millisecond,
		RetryBackoff:  2,
		RetryMaxDelay: 10 * time.Millisecond,
		SpoolEnabled:  true,
	}
	coll := metrics.NewCollector("run-s3")
	w := New(cfg, batch.DefaultConfig(), q, tr, conn.NewTracker(), disk, coll, log.NewLogger(&types.RunMeta{RunID: "run-s3"}))

	w.batcher.Add(metricEventForRun("run-s3", 0))
	w.doFlush(types.TriggerManual)
	if n := w.BatchCount(); n != 1 {
		t.Fatalf("BatchCount = %d, want 1 (the send should have succeeded on retry)", n)
	}

	if tr.calls != 2 {
		t.Fatalf("calls = %d, want 2 (one failure, one success)", tr.calls)
	}
	if tr.successes != 1 {
		t.Errorf("successes = %d, want 1", tr.successes)
	}
	if !tr.sawDuplicate {
		t.Errorf("expected the successful retry response to report duplicate=true")
	}

	if snap := coll.Snapshot(); snap.BatchesSent != 1 {
		t.Errorf("BatchesSent = %d, want 1", snap.BatchesSent)
	}
}

func metricEventForRun(runID string, step int64) types.Event {
	return types.NewEvent(types.EventTypeMetric, runID, types.MetricPayload("loss", 0.1, step, 0))
}

// TestScenario_S1_BasicPath logs 4 metric events, stops the worker, and
// expects them all delivered in one batch.
func TestScenario_S1_BasicPath(t *testing.T) {
	stub := transport.NewStub()
	q := queue.New(100)
	disk := spool.New(spool.DefaultConfig(t.TempDir()))
	cfg := Config{
		RunID:        "run-s1",
		BatchTimeout: 20 * time.Millisecond,
		MaxRetries:   1,
		RetryDelay:   time.Millisecond,
		RetryBackoff: 2,
		RetryMaxDelay: 10 * time.Millisecond,
		SpoolEnabled: true,
	}
	w := New(cfg, batch.DefaultConfig(), q, stub, conn.NewTracker(), disk, metrics.NewCollector("run-s1"), log.NewLogger(&types.RunMeta{RunID: "run-s1"}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { w.Run(ctx); close(done) }()

	q.Put(types.NewEvent(types.EventTypeMetric, "run-s1", types.MetricPayload("loss", 0.5, 0, 0)))
	q.Put(types.NewEvent(types.EventTypeMetric, "run-s1", types.MetricPayload("accuracy", 0.8, 0, 0)))
	q.Put(types.NewEvent(types.EventTypeMetric, "run-s1", types.MetricPayload("loss", 0.3, 1, 0)))
	q.Put(types.NewEvent(types.EventTypeMetric, "run-s1", types.MetricPayload("accuracy", 0.9, 1, 0)))

	cancel()
	<-done

	total := 0
	for _, b := range stub.Batches {
		total += len(b.Metrics)
	}
	if total != 4 {
		t.Fatalf("total metrics delivered = %d, want 4", total)
	}
	if len(stub.Batches) != 1 {
		t.Errorf("len(stub.Batches) = %d, want 1", len(stub.Batches))
	}
}

// TestScenario_S2_Coalescing logs loss at step 0 three times and expects a
// single coalesced metric event with the last value and coalesced_count=2.
func TestScenario_S2_Coalescing(t *testing.T) {
	stub := transport.NewStub()
	q := queue.New(100)
	disk := spool.New(spool.DefaultConfig(t.TempDir()))
	cfg := Config{
		RunID:        "run-s2",
		BatchTimeout: 20 * time.Millisecond,
		MaxRetries:   1,
		RetryDelay:   time.Millisecond,
		RetryBackoff: 2,
		RetryMaxDelay: 10 * time.Millisecond,
		SpoolEnabled: true,
	}
	w := New(cfg, batch.DefaultConfig(), q, stub, conn.NewTracker(), disk, metrics.NewCollector("run-s2"), log.NewLogger(&types.RunMeta{RunID: "run-s2"}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { w.Run(ctx); close(done) }()

	for _, v := range []float64{0.5, 0.4, 0.3} {
		q.Put(types.NewEvent(types.EventTypeMetric, "run-s2", types.MetricPayload("loss", v, 0, 0)))
	}
	time.Sleep(10 * time.Millisecond)

	cancel()
	<-done

	if len(stub.Batches) != 1 {
		t.Fatalf("len(stub.Batches) = %d, want 1", len(stub.Batches))
	}
	if len(stub.Batches[0].Metrics) != 1 {
		t.Fatalf("len(Metrics) = %d, want 1", len(stub.Batches[0].Metrics))
	}
	if v := stub.Batches[0].Metrics[0]["value"]; v != 0.3 {
		t.Errorf("value = %v, want 0.3", v)
	}
	if stub.Batches[0].Stats.CoalescedCount != 2 {
		t.Errorf("CoalescedCount = %d, want 2", stub.Batches[0].Stats.CoalescedCount)
	}
}

// TestScenario_S4_OfflineSpoolSync drives send_batch to fail repeatedly
// (tripping Offline and spooling events), then lets the remote recover and
// confirms the syncer replays all ten spooled events and leaves no pending
// file; the replay order is not asserted.
func TestScenario_S4_OfflineSpoolSync(t *testing.T) {
	stub := transport.NewStub()
	stub.FailSendBatch = true
	stub.SendErr = &transport.Error{Message: "connection refused", Retryable: true}

	q := queue.New(100)
	disk := spool.New(spool.DefaultConfig(t.TempDir()))
	tracker := conn.NewTracker()
	cfg := Config{
		RunID:        "run-s4",
		BatchTimeout: 10 * time.Millisecond,
		MaxRetries:   0,
		RetryDelay:   time.Millisecond,
		RetryBackoff: 2,
		RetryMaxDelay: 5 * time.Millisecond,
		SpoolEnabled: true,
	}
	w := New(cfg, batch.DefaultConfig(), q, stub, tracker, disk, metrics.NewCollector("run-s4"), log.NewLogger(&types.RunMeta{RunID: "run-s4"}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { w.Run(ctx); close(done) }()

	for i := 0; i < 10; i++ {
		q.Put(types.NewEvent(types.EventTypeMetric, "run-s4", types.MetricPayload("loss", float64(i), int64(i), 0)))
		time.Sleep(2 * time.Millisecond)
	}
	time.Sleep(30 * time.Millisecond)

	cancel()
	<-done

	if tracker.IsOnline() {
		t.Fatalf("connection should be offline after repeated failures")
	}
	if err := disk.FlushAll(); err != nil {
		t.Fatalf("FlushAll: %v", err)
	}

	pendingBefore, err := disk.PendingFiles()
	if err != nil {
		t.Fatalf("PendingFiles: %v", err)
	}
	if len(pendingBefore) == 0 {
		t.Fatalf("expected spooled files while offline")
	}

	// Remote recovers.
	stub.FailSendBatch = false

	var syncedEvents int32
	send := func(events []types.Event) bool {
		atomic.AddInt32(&syncedEvents, int32(len(events)))
		for _, e := range events {
			stub.SendBatch(context.Background(), transport.EventsToEnvelope(e.RunID, []types.Event{e}, types.BatchStats{}, 0), nil, false)
		}
		return true
	}

	syncer := spool.NewSyncer(disk, send, time.Hour, log.NewLogger(&types.RunMeta{RunID: "run-s4"}))
	syncCtx, syncCancel := context.WithCancel(context.Background())
	syncDone := make(chan struct{})
	go func() { syncer.Run(syncCtx); close(syncDone) }()

	syncer.TriggerSync()
	time.Sleep(30 * time.Millisecond)
	syncCancel()
	<-syncDone

	if atomic.LoadInt32(&syncedEvents) != 10 {
		t.Errorf("syncedEvents = %d, want 10", syncedEvents)
	}

	pendingAfter, err := disk.PendingFiles()
	if err != nil {
		t.Fatalf("PendingFiles: %v", err)
	}
	if len(pendingAfter) != 0 {
		t.Errorf("pending files after sync = %d, want 0", len(pendingAfter))
	}
}
