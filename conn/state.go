// Package conn tracks the client's belief about transport reachability.
// State mutates under a single mutex, the same discipline the teacher's
// proxy.Selector uses for its pool map: one lock, short critical sections,
// callers never see a half-updated State.
package conn

import "sync"

// State is Online or Offline.
type State string

const (
	StateOnline  State = "online"
	StateOffline State = "offline"
)

// failureThreshold is the number of consecutive failures that trips the
// connection to Offline.
const failureThreshold = 3

// Tracker holds the current connection state and the consecutive-failure
// count that drives its transitions. Online -> Offline requires three
// consecutive failures; any single success resets to Online immediately.
// This hysteresis is deliberately asymmetric: going offline should not be
// triggered by one flaky request, but recovery should be noticed the moment
// it happens.
type Tracker struct {
	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	lastError           string
}

// NewTracker returns a Tracker starting Online.
func NewTracker() *Tracker {
	return &Tracker{state: StateOnline}
}

// RecordSuccess transitions the tracker to Online and clears the failure
// streak.
func (t *Tracker) RecordSuccess() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = StateOnline
	t.consecutiveFailures = 0
	t.lastError = ""
}

// RecordFailure increments the failure streak and trips to Offline once the
// streak reaches failureThreshold. err is recorded for diagnostics.
func (t *Tracker) RecordFailure(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.consecutiveFailures++
	if err != nil {
		t.lastError = err.Error()
	}
	if t.consecutiveFailures >= failureThreshold {
		t.state = StateOffline
	}
}

// IsOnline reports the current state.
func (t *Tracker) IsOnline() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == StateOnline
}

// Snapshot describes the tracker's state for diagnostics and the stats TUI.
type Snapshot struct {
	State               State
	ConsecutiveFailures int
	LastError           string
}

// Snapshot returns a copy of the tracker's current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		State:               t.state,
		ConsecutiveFailures: t.consecutiveFailures,
		LastError:           t.lastError,
	}
}
