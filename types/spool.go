package types

// SpoolRecord is the self-describing on-disk shape of a spool file, per the
// wire layout: {version, run_id, created_at, events}.
type SpoolRecord struct {
	Version   int     `json:"version"`
	RunID     string  `json:"run_id"`
	CreatedAt float64 `json:"created_at"`
	Events    []Event `json:"events"`
}
