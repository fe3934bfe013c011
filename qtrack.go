// Package qtrack is a thin convenience facade over the tracking pipeline:
// it wires queue, batcher, worker, spool, and syncer together behind a
// small Log*/Stop API so producer code doesn't need to touch the internal
// packages directly. Every method here is a direct call into a component
// that also works standalone via constructor injection; this package adds
// no behavior of its own beyond wiring, the producer-side counters, the
// finite-value check on metrics, and the optional process-global holder.
package qtrack

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/justapithecus/qtrack/conn"
	"github.com/justapithecus/qtrack/config"
	"github.com/justapithecus/qtrack/log"
	"github.com/justapithecus/qtrack/metrics"
	"github.com/justapithecus/qtrack/queue"
	"github.com/justapithecus/qtrack/spool"
	"github.com/justapithecus/qtrack/transport"
	"github.com/justapithecus/qtrack/types"
	"github.com/justapithecus/qtrack/worker"
)

// Run is a running tracking pipeline bound to one run_id. It owns the
// queue, the flush worker goroutine, and (when spooling is enabled) the
// syncer goroutine.
type Run struct {
	runID  string
	q      *queue.Queue
	disk   *spool.Disk
	conn   *conn.Tracker
	coll   *metrics.Collector
	logger *log.Logger

	worker *worker.Worker
	syncer *spool.Syncer

	cancel context.CancelFunc
	stopped chan struct{}
}

// Init builds a Run from environment configuration, calls InitRun against
// the transport, and starts the background worker (and syncer, if spooling
// is enabled). project/name/runConfig mirror the original Python SDK's init
// call and are sent in the InitRun request; no run_start event is enqueued.
func Init(ctx context.Context, project, name string, runConfig map[string]any) (*Run, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return InitWithConfig(ctx, cfg, project, name, runConfig)
}

// InitWithConfig is Init with a caller-supplied Config, for callers (such as
// the CLI) that layer a YAML overlay on top of the environment before
// starting the pipeline.
func InitWithConfig(ctx context.Context, cfg *config.Config, project, name string, runConfig map[string]any) (*Run, error) {
	tr, err := transport.NewHTTP(transport.HTTPConfig{
		BaseURL: cfg.ServerURL,
		APIKey:  cfg.APIKey,
	})
	if err != nil {
		return nil, err
	}

	initResult, err := tr.InitRun(ctx, transport.RunInit{Project: project, Name: name, Config: runConfig})
	if err != nil {
		return nil, err
	}

	return newRun(cfg, tr, initResult.RunID), nil
}

func newRun(cfg *config.Config, tr transport.Transport, runID string) *Run {
	q := queue.New(cfg.QueueSize)
	disk := spool.New(cfg.SpoolConfig())
	tracker := conn.NewTracker()
	coll := metrics.NewCollector(runID)
	logger := log.NewLogger(&types.RunMeta{RunID: runID})

	w := worker.New(worker.Config{
		RunID:               runID,
		BatchTimeout:        time.Duration(cfg.BatchTimeoutMS) * time.Millisecond,
		CompressionEnabled:  cfg.Compression,
		CompressionLevel:    cfg.CompressionLevel,
		CompressionMinSize:  cfg.CompressionMinBytes,
		MaxRetries:          cfg.MaxRetries,
		RetryDelay:          cfg.RetryDelay(),
		RetryBackoff:        cfg.RetryBackoff,
		RetryMaxDelay:       cfg.RetryMaxDelay(),
		SpoolEnabled:        cfg.SpoolEnabled,
	}, cfg.BatchConfig(), q, tr, tracker, disk, coll, logger)

	r := &Run{
		runID:   runID,
		q:       q,
		disk:    disk,
		conn:    tracker,
		coll:    coll,
		logger:  logger,
		worker:  w,
		stopped: make(chan struct{}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.Run(ctx)
	}()

	if cfg.SpoolEnabled {
		send := func(events []types.Event) bool {
			env := transport.EventsToEnvelope(runID, events, types.BatchStats{}, float64(time.Now().UnixNano())/1e9)
			_, err := tr.SendBatch(ctx, env, nil, false)
			if err == nil {
				tracker.RecordSuccess()
				coll.IncSpoolSynced()
				return true
			}
			tracker.RecordFailure(err)
			return false
		}
		r.syncer = spool.NewSyncer(disk, send, cfg.SyncInterval(), logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.syncer.Run(ctx)
		}()
	}

	go func() {
		wg.Wait()
		close(r.stopped)
	}()

	return r
}

// LogMetric enqueues a metric event. Never blocks; returns false if the
// queue is full and the event was dropped, or, without enqueueing anything,
// if value is NaN or infinite.
func (r *Run) LogMetric(name string, value float64, step int64) bool {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return false
	}
	return r.offer(types.NewEvent(types.EventTypeMetric, r.runID, types.MetricPayload(name, value, step, float64(time.Now().UnixNano())/1e9)))
}

// LogParam enqueues a param event.
func (r *Run) LogParam(name, value string) bool {
	return r.offer(types.NewEvent(types.EventTypeParam, r.runID, types.ParamPayload(name, value)))
}

// LogTag enqueues a tag event.
func (r *Run) LogTag(key, value string) bool {
	return r.offer(types.NewEvent(types.EventTypeTag, r.runID, types.TagPayload(key, value)))
}

func (r *Run) offer(e types.Event) bool {
	r.coll.IncEventsOffered()
	metrics.EventsOfferedTotal.Inc()

	accepted := r.q.Put(e)
	if !accepted {
		r.coll.IncEventsDropped()
		metrics.EventsDroppedTotal.Inc()
	}
	return accepted
}

// Stats returns a snapshot of this run's counters.
func (r *Run) Stats() metrics.Snapshot {
	return r.coll.Snapshot()
}

// RunID returns the run_id assigned at Init.
func (r *Run) RunID() string {
	return r.runID
}

// QueueDepth returns the number of events currently buffered in the queue,
// awaiting the next flush.
func (r *Run) QueueDepth() int {
	return r.q.Size()
}

// ConnState returns the current belief about transport reachability.
func (r *Run) ConnState() conn.Snapshot {
	return r.conn.Snapshot()
}

// SpoolStats returns the on-disk spool's current footprint.
func (r *Run) SpoolStats() spool.Stats {
	return r.disk.Stats()
}

// Stop drains the queue, flushes the final batch, and stops the background
// goroutines. If ctx ends before they exit, Stop returns ctx.Err(); the
// worker's shutdown drain has no deadline of its own and keeps running.
func (r *Run) Stop(ctx context.Context) error {
	r.cancel()
	select {
	case <-r.stopped:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

var (
	defaultMu  sync.Mutex
	defaultRun *Run
)

// Default returns the process-wide active run set by SetDefault, or nil if
// none has been set. This is a convenience only: nothing in this module
// relies on it internally, matching the teacher's constructor-injection
// discipline everywhere else.
func Default() *Run {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultRun
}

// SetDefault installs r as the process-wide active run for Default to
// return.
func SetDefault(r *Run) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultRun = r
}
