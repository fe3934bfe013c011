package types

// RunMeta carries the run identity attached to every log line a run-scoped
// logger emits.
type RunMeta struct {
	RunID string
}
