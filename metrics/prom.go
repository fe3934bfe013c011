// Prometheus counters for the tracking pipeline, wired with promauto the
// same way the rest of the example corpus registers its counters and
// histograms. These are process-wide (not per-run); Collector remains the
// source of truth for per-run counters surfaced to the caller.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsOfferedTotal counts every producer Put call.
	EventsOfferedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "qtrack_events_offered_total",
			Help: "Total number of events offered to the queue by producers",
		},
	)

	// EventsDroppedTotal counts events dropped because the queue was full.
	EventsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "qtrack_events_dropped_total",
			Help: "Total number of events dropped due to a full queue",
		},
	)

	// BatchesSentTotal counts successful flush-worker sends, labeled by the
	// trigger that caused the flush.
	BatchesSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qtrack_batches_sent_total",
			Help: "Total number of batches successfully sent, by flush trigger",
		},
		[]string{"trigger"},
	)

	// BatchesFailedTotal counts batches that were not delivered: retries
	// exhausted, a non-retryable error, or the send skipped while offline.
	BatchesFailedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "qtrack_batches_failed_total",
			Help: "Total number of batches that were not delivered",
		},
	)

	// FlushDuration tracks wall-clock flush latency.
	FlushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "qtrack_flush_duration_seconds",
			Help:    "Duration of a single flush (batch build through transport response)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
	)

	// SpoolWritesTotal counts events durably written to the disk spool.
	SpoolWritesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "qtrack_spool_writes_total",
			Help: "Total number of events written to the disk spool as a send fallback",
		},
	)

	// SpoolPendingFiles reports the current count of unsynced .spool files.
	SpoolPendingFiles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "qtrack_spool_pending_files",
			Help: "Current number of .spool files awaiting sync",
		},
	)

	// ConnectionOnline reports 1 when the connection tracker believes it is
	// online, 0 otherwise.
	ConnectionOnline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "qtrack_connection_online",
			Help: "1 if the connection tracker is online, 0 if offline",
		},
	)
)
