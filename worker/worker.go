// Package worker implements the background flush loop that owns the
// Batcher exclusively and drives it to the transport (with a disk-spool
// fallback) on whichever trigger fires first. Grounded on
// mlrun.worker.FlushWorker's loop shape, expanded with the connection-state
// gate, spool fallback, and compression the distilled spec adds.
package worker

import (
	"context"
	"encoding/json"
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

// Config controls the worker's retry/compression/spool behavior. Values
// normally come from config.Config's projections.
type Config struct {
	RunID string

	BatchTimeout time.Duration

	CompressionEnabled bool
	CompressionLevel   int
	CompressionMinSize int

	MaxRetries      int
	RetryDelay      time.Duration
	RetryBackoff    float64
	RetryMaxDelay   time.Duration

	SpoolEnabled bool
}

// Worker is the single flush-worker goroutine owner: the Batcher, the
// Config, and the drain loop all live on this goroutine. The queue,
// transport, connection tracker, and spool are shared with other
// goroutines and are each independently synchronized.
type Worker struct {
	cfg       Config
	batchCfg  batch.Config
	q         *queue.Queue
	batcher   *batch.Batcher
	transport transport.Transport
	connTrk   *conn.Tracker
	disk      *spool.Disk
	metrics   *batch.FlushMetrics
	collector *metrics.Collector
	logger    *log.Logger

	flushSignal chan struct{}
}

// New builds a Worker. disk may be nil when SpoolEnabled is false.
func New(
	cfg Config,
	batchCfg batch.Config,
	q *queue.Queue,
	tr transport.Transport,
	connTrk *conn.Tracker,
	disk *spool.Disk,
	collector *metrics.Collector,
	logger *log.Logger,
) *Worker {
	return &Worker{
		cfg:         cfg,
		batchCfg:    batchCfg,
		q:           q,
		batcher:     batch.New(batchCfg),
		transport:   tr,
		connTrk:     connTrk,
		disk:        disk,
		metrics:     &batch.FlushMetrics{},
		collector:   collector,
		logger:      logger,
		flushSignal: make(chan struct{}, 1),
	}
}

// TriggerFlush requests an immediate flush attempt, coalescing with any
// already-pending request.
func (w *Worker) TriggerFlush() {
	select {
	case w.flushSignal <- struct{}{}:
	default:
	}
}

// Run executes the main flush loop until ctx is cancelled, then performs a
// final drain before returning.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Debug("flush worker running", nil)

	timer := time.NewTimer(w.cfg.BatchTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.drainRemaining()
			w.logger.Debug("flush worker stopped", nil)
			return
		case <-timer.C:
		case <-w.flushSignal:
			if !timer.Stop() {
				<-timer.C
			}
		}

		w.drainQueueUntilEmpty()
		timer.Reset(w.cfg.BatchTimeout)
	}
}

// drainQueueUntilEmpty pulls batches from the queue and flushes them until
// the queue has nothing left, avoiding idle gaps between ticks when the
// producer is bursty.
func (w *Worker) drainQueueUntilEmpty() {
	for {
		events := w.q.GetBatch(w.batchCfg.MaxItems, 100*time.Millisecond)
		if len(events) == 0 {
			return
		}

		for _, e := range events {
			if w.batcher.Add(e) {
				w.doFlush(batch.Trigger(w.batcher.Stats(), w.batchCfg))
			}
		}

		if w.q.IsEmpty() {
			if !w.batcher.IsEmpty() {
				w.doFlush(types.TriggerTime)
			}
			return
		}
	}
}

// drainRemaining drains the queue directly and flushes everything,
// including whatever the batcher is still holding, with trigger "shutdown".
func (w *Worker) drainRemaining() {
	for _, e := range w.q.Drain() {
		w.batcher.Add(e)
	}
	if !w.batcher.IsEmpty() {
		w.doFlush(types.TriggerShutdown)
	}
}

// doFlush flushes the batcher and records flush metrics. The batcher is
// reset before sendBatch runs; sendBatch (retries included) runs on the
// worker goroutine, so the next Add happens after doFlush returns.
func (w *Worker) doFlush(trigger types.FlushTrigger) {
	events, stats := w.batcher.Flush()
	if len(events) == 0 {
		return
	}

	start := time.Now()
	success := w.sendBatch(events, stats)
	duration := time.Since(start)

	w.metrics.RecordFlush(len(events), stats.EstimatedBytes, stats.CoalescedCount, duration, trigger)
	metrics.FlushDuration.Observe(duration.Seconds())

	if success {
		w.collector.RecordBatchSent(len(events), stats.EstimatedBytes, stats.CoalescedCount)
		metrics.BatchesSentTotal.WithLabelValues(string(trigger)).Inc()
	} else {
		w.collector.IncBatchFailed()
		metrics.BatchesFailedTotal.Inc()
		w.spoolFallback(events)
	}
}

// sendBatch serializes events, optionally compresses them, and attempts
// delivery with exponential backoff up to MaxRetries+1 attempts.
func (w *Worker) sendBatch(events []types.Event, stats types.BatchStats) bool {
	if w.cfg.SpoolEnabled && !w.connTrk.IsOnline() {
		return false
	}

	runID := w.cfg.RunID
	if len(events) > 0 {
		runID = events[0].RunID
	}

	env := transport.EventsToEnvelope(runID, events, stats, float64(time.Now().UnixNano())/1e9)

	body, err := json.Marshal(env)
	if err != nil {
		w.logger.Error("worker: marshal batch failed", map[string]any{"error": err.Error()})
		w.collector.IncErrors()
		return false
	}

	payload, compressed := body, false
	if w.cfg.CompressionEnabled {
		if p, c, err := transport.CompressPayload(body, w.cfg.CompressionLevel, w.cfg.CompressionMinSize); err != nil {
			w.logger.Warn("worker: compression failed, sending uncompressed", map[string]any{"error": err.Error()})
		} else {
			payload, compressed = p, c
		}
	}

	delay := w.cfg.RetryDelay
	attempts := w.cfg.MaxRetries + 1

	for attempt := 0; attempt < attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		_, err := w.transport.SendBatch(ctx, env, payload, compressed)
		cancel()

		if err == nil {
			w.connTrk.RecordSuccess()
			metrics.ConnectionOnline.Set(1)
			return true
		}

		w.connTrk.RecordFailure(err)
		if !w.connTrk.IsOnline() {
			metrics.ConnectionOnline.Set(0)
		}

		terr, ok := err.(*transport.Error)
		retryable := ok && terr.Retryable
		if !retryable || attempt == attempts-1 {
			w.logger.Warn("worker: batch send failed", map[string]any{"error": err.Error(), "attempt": attempt + 1})
			return false
		}

		w.logger.Warn("worker: retrying batch send", map[string]any{"attempt": attempt + 1, "error": err.Error()})
		time.Sleep(delay)
		delay = time.Duration(float64(delay) * w.cfg.RetryBackoff)
		if delay > w.cfg.RetryMaxDelay {
			delay = w.cfg.RetryMaxDelay
		}
	}
	return false
}

// spoolFallback durably writes every event in a failed batch to disk, in
// order, so the syncer can replay it once the connection recovers.
func (w *Worker) spoolFallback(events []types.Event) {
	if !w.cfg.SpoolEnabled || w.disk == nil {
		return
	}

	for _, e := range events {
		if w.disk.Spool(e) {
			w.collector.IncSpoolWrite()
			metrics.SpoolWritesTotal.Inc()
		} else {
			w.logger.Warn("worker: spool write refused, event dropped", map[string]any{"run_id": e.RunID})
			w.collector.IncErrors()
		}
	}

	if err := w.disk.FlushAll(); err != nil {
		w.logger.Error("worker: spool flush failed", map[string]any{"error": err.Error()})
	}

	if pending, err := w.disk.PendingFiles(); err == nil {
		metrics.SpoolPendingFiles.Set(float64(len(pending)))
	}
}

// BatchCount returns the number of batches successfully sent so far, as
// recorded in the worker's Collector (0 when the Collector is nil).
func (w *Worker) BatchCount() int64 {
	return w.collector.Snapshot().BatchesSent
}

// FlushMetrics returns a snapshot of flush statistics.
func (w *Worker) FlushMetrics() batch.FlushMetrics {
	return w.metrics.Snapshot()
}

