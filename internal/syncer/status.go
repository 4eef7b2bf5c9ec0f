package syncer

import (
	"encoding/json"
	"time"
)

// State is the engine's position in the sync cycle.
type State int

const (
	StateIdle State = iota
	StateAuthenticating
	StateFetching
	StateUpserting
)

func (s State) String() string {
	switch s {
	case StateAuthenticating:
		return "authenticating"
	case StateFetching:
		return "fetching"
	case StateUpserting:
		return "upserting"
	default:
		return "idle"
	}
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Status is the observable sync state read by the presentation layer.
type Status struct {
	State     State     `json:"state"`
	Syncing   bool      `json:"syncing"`
	LastSync  time.Time `json:"lastSync"`
	StopCount int       `json:"stopCount"`
	LastError string    `json:"lastError,omitempty"`
}

// Status returns a snapshot of the current sync status.
func (e *Engine) Status() Status {
	e.statusMu.RLock()
	defer e.statusMu.RUnlock()
	return e.status
}

func (e *Engine) setState(s State) {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()
	e.status.State = s
	e.status.Syncing = true
}

// successStatus records a completed sync. The previous error is cleared.
func (e *Engine) successStatus(stopCount int) {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()
	e.status = Status{
		State:     StateIdle,
		LastSync:  time.Now().UTC(),
		StopCount: stopCount,
	}
}

// failStatus records a failed sync, preserving the underlying error for
// display. The previously cached stops stay untouched.
func (e *Engine) failStatus(err error) {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()
	e.status.State = StateIdle
	e.status.Syncing = false
	e.status.LastError = err.Error()
}
