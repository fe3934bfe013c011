package batch

// Config controls the adaptive batcher's flush triggers and coalescing
// behavior. The zero value is not usable; construct via DefaultConfig and
// override fields.
type Config struct {
	// MaxItems is the event-count flush trigger.
	MaxItems int
	// MaxBytes is the estimated-size flush trigger.
	MaxBytes int64
	// MaxAgeMS is the age-since-first-event flush trigger, in milliseconds.
	MaxAgeMS int64

	// CoalesceMetrics merges metric events sharing (name, step), keeping the
	// latest value.
	CoalesceMetrics bool
	// DedupeParams keeps only the latest value for each param name.
	DedupeParams bool
	// DedupeTags keeps only the latest value for each tag key.
	DedupeTags bool
}

// DefaultConfig returns the batcher defaults from the spec's tunable table.
func DefaultConfig() Config {
	return Config{
		MaxItems:        1000,
		MaxBytes:        1_000_000,
		MaxAgeMS:        1000,
		CoalesceMetrics: true,
		DedupeParams:    true,
		DedupeTags:      true,
	}
}
