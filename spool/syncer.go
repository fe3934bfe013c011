package spool

import (
	"context"
	"time"

	"github.com/justapithecus/qtrack/log"
	"github.com/justapithecus/qtrack/metrics"
	"github.com/justapithecus/qtrack/types"
)

// SendFunc uploads a batch of recovered events and reports whether the
// upload succeeded. It is a plain callback rather than a reference back to
// the flush worker, avoiding a cyclic dependency between the two packages.
type SendFunc func(events []types.Event) bool

// Syncer is a background task that replays spooled files once the
// connection recovers. It is the system's sole prober: unlike the flush
// worker's hot path, the syncer always attempts a sync pass every tick
// regardless of the last known connection state, since detecting recovery
// from Offline has no other trigger in this design.
type Syncer struct {
	disk     *Disk
	send     SendFunc
	interval time.Duration
	logger   *log.Logger

	trigger chan struct{}
	done    chan struct{}
}

// NewSyncer builds a Syncer. interval bounds how long the syncer waits
// between passes absent a manual trigger.
func NewSyncer(disk *Disk, send SendFunc, interval time.Duration, logger *log.Logger) *Syncer {
	return &Syncer{
		disk:     disk,
		send:     send,
		interval: interval,
		logger:   logger,
		trigger:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// TriggerSync wakes the syncer for an immediate pass, coalescing with any
// already-pending trigger.
func (s *Syncer) TriggerSync() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Run executes the sync loop until ctx is cancelled. Intended to run in its
// own goroutine.
func (s *Syncer) Run(ctx context.Context) {
	if n, err := s.disk.Recover(); err == nil && n > 0 {
		s.logger.Info("spool: recovered pending files", map[string]any{"count": n})
	}

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			close(s.done)
			return
		case <-timer.C:
		case <-s.trigger:
			if !timer.Stop() {
				<-timer.C
			}
		}

		s.syncPending(ctx)

		if _, err := s.disk.CleanupOldFiles(); err != nil {
			s.logger.Warn("spool: cleanup failed", map[string]any{"error": err.Error()})
		}

		if pending, err := s.disk.PendingFiles(); err == nil {
			metrics.SpoolPendingFiles.Set(float64(len(pending)))
		}

		timer.Reset(s.interval)
	}
}

// Done returns a channel closed once Run has observed ctx cancellation and
// exited its loop.
func (s *Syncer) Done() <-chan struct{} {
	return s.done
}

func (s *Syncer) syncPending(ctx context.Context) {
	pending, err := s.disk.PendingFiles()
	if err != nil {
		s.logger.Warn("spool: list pending failed", map[string]any{"error": err.Error()})
		return
	}

	for _, path := range pending {
		select {
		case <-ctx.Done():
			return
		default:
		}

		events, err := s.disk.ReadFile(path)
		if err != nil {
			s.logger.Warn("spool: read failed, skipping", map[string]any{"path": path, "error": err.Error()})
			continue
		}

		if len(events) == 0 {
			s.disk.MarkSynced(path)
			continue
		}

		if !s.send(events) {
			// Stop syncing; we're probably offline again. Try the rest next tick.
			s.logger.Warn("spool: sync send failed, deferring remaining files", nil)
			return
		}

		if err := s.disk.MarkSynced(path); err != nil {
			s.logger.Warn("spool: mark synced failed", map[string]any{"path": path, "error": err.Error()})
			continue
		}
		s.logger.Info("spool: synced file", map[string]any{"path": path, "events": len(events)})
	}
}
