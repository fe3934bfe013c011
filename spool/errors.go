package spool

import "errors"

// ErrSpoolFull names the condition under which Spool refuses a write: the
// total spool size cap has been reached. Spool reports that condition only
// as a false return, per the never-error producer-facing-path policy; no
// function in this package returns or wraps ErrSpoolFull.
var ErrSpoolFull = errors.New("spool: total size cap reached")

// ErrIOFailure wraps the underlying cause of a failed durable write, so
// callers can distinguish "spool refused the event" from "the disk write
// itself failed".
var ErrIOFailure = errors.New("spool: durable write failed")
