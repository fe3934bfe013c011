// Package config loads the pipeline's tunables from the process environment
// using struct tags, the same github.com/caarlos0/env pattern the rest of
// the example corpus uses for its service configs. Every key is prefix-free
// per the wire contract (no QTRACK_ prefix).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/justapithecus/qtrack/batch"
	"github.com/justapithecus/qtrack/spool"
)

// Config is the complete set of tunables listed in the config reference
// table: server connection, batching, queue, compression, retry, and spool.
type Config struct {
	ServerURL string `env:"SERVER_URL" envDefault:"http://localhost:3001"`
	APIKey    string `env:"API_KEY"`

	BatchSize      int `env:"BATCH_SIZE" envDefault:"1000"`
	BatchMaxBytes  int64 `env:"BATCH_MAX_BYTES" envDefault:"1000000"`
	BatchTimeoutMS int64 `env:"BATCH_TIMEOUT_MS" envDefault:"1000"`

	QueueSize int `env:"QUEUE_SIZE" envDefault:"10000"`

	CoalesceMetrics bool `env:"COALESCE_METRICS" envDefault:"true"`
	DedupeParams    bool `env:"DEDUPE_PARAMS" envDefault:"true"`
	DedupeTags      bool `env:"DEDUPE_TAGS" envDefault:"true"`

	Compression          bool `env:"COMPRESSION" envDefault:"true"`
	CompressionLevel     int  `env:"COMPRESSION_LEVEL" envDefault:"6"`
	CompressionMinBytes  int  `env:"COMPRESSION_MIN_BYTES" envDefault:"1000"`

	MaxRetries      int   `env:"MAX_RETRIES" envDefault:"3"`
	RetryDelayMS    int64 `env:"RETRY_DELAY_MS" envDefault:"1000"`
	RetryBackoff    float64 `env:"RETRY_BACKOFF" envDefault:"2.0"`
	RetryMaxDelayMS int64 `env:"RETRY_MAX_DELAY_MS" envDefault:"30000"`

	Offline bool `env:"OFFLINE" envDefault:"false"`

	SpoolEnabled         bool   `env:"SPOOL_ENABLED" envDefault:"true"`
	SpoolDir             string `env:"SPOOL_DIR" envDefault:""`
	SpoolMaxSize         int64  `env:"SPOOL_MAX_SIZE" envDefault:"100000000"`
	SpoolMaxFileSize     int64  `env:"SPOOL_MAX_FILE_SIZE" envDefault:"10000000"`
	SpoolSyncIntervalMS  int64  `env:"SPOOL_SYNC_INTERVAL_MS" envDefault:"5000"`
	SpoolRetentionHours  int    `env:"SPOOL_RETENTION_HOURS" envDefault:"72"`

	HealthCheckIntervalMS int64 `env:"HEALTH_CHECK_INTERVAL_MS" envDefault:"30000"`
	ConnectionTimeoutMS   int64 `env:"CONNECTION_TIMEOUT_MS" envDefault:"30000"`

	Debug bool `env:"DEBUG" envDefault:"false"`
}

// Load parses Config from the process environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}
	return cfg, nil
}

// BatchConfig projects the batching-relevant fields into a batch.Config.
func (c *Config) BatchConfig() batch.Config {
	return batch.Config{
		MaxItems:        c.BatchSize,
		MaxBytes:        c.BatchMaxBytes,
		MaxAgeMS:        c.BatchTimeoutMS,
		CoalesceMetrics: c.CoalesceMetrics,
		DedupeParams:    c.DedupeParams,
		DedupeTags:      c.DedupeTags,
	}
}

// SpoolConfig projects the spool-relevant fields into a spool.Config,
// defaulting Dir to a user-scoped path when unset.
func (c *Config) SpoolConfig() spool.Config {
	dir := c.SpoolDir
	if dir == "" {
		dir = defaultSpoolDir()
	}
	return spool.Config{
		Dir:               dir,
		MaxFileSizeBytes:  c.SpoolMaxFileSize,
		MaxTotalSizeBytes: c.SpoolMaxSize,
		RetentionHours:    c.SpoolRetentionHours,
	}
}

// RetryDelay returns the initial backoff duration.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMS) * time.Millisecond
}

// RetryMaxDelay returns the backoff cap.
func (c *Config) RetryMaxDelay() time.Duration {
	return time.Duration(c.RetryMaxDelayMS) * time.Millisecond
}

// SyncInterval returns the spool syncer's tick interval.
func (c *Config) SyncInterval() time.Duration {
	return time.Duration(c.SpoolSyncIntervalMS) * time.Millisecond
}

// IsTruthy parses the {true, 1, yes} case-insensitive truthy vocabulary the
// env-override contract specifies, for callers reading raw strings outside
// of struct-tag binding (e.g. a YAML overlay value).
func IsTruthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}
