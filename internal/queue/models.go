package queue

import (
	"strings"
	"time"
)

// State represents where an outstanding work item sits in its lifecycle.
// Completed or failed work is deleted rather than given a terminal state.
type State string

const (
	StatePending    State = "PENDING"
	StateActivating State = "ACTIVATING"
	StateProcessing State = "PROCESSING"
)

var allStates = []State{
	StatePending,
	StateActivating,
	StateProcessing,
}

// AllStates returns every known state in lifecycle order.
func AllStates() []State {
	out := make([]State, len(allStates))
	copy(out, allStates)
	return out
}

// ParseState converts a string into a State, ignoring case and surrounding space.
func ParseState(value string) (State, bool) {
	normalized := State(strings.ToUpper(strings.TrimSpace(value)))
	for _, state := range allStates {
		if state == normalized {
			return state, true
		}
	}
	return "", false
}

func stateRank(state State) int {
	for i, s := range allStates {
		if s == state {
			return i
		}
	}
	return len(allStates)
}

// WorkItem is one unit of submitted work. It is immutable once created and
// keyed by Fingerprint, which is derived from WorkType and Payload only.
type WorkItem struct {
	Fingerprint int64
	// CreatedAt is milliseconds since the Unix epoch.
	CreatedAt int64
	WorkType  string
	Payload   string
}

// Created returns CreatedAt as a time.Time.
func (w WorkItem) Created() time.Time {
	return time.UnixMilli(w.CreatedAt)
}

// StateCount is the number of rows currently in State.
type StateCount struct {
	State State
	Count int64
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	Driver         string
	Location       string
	Readable       bool
	SchemaVersion  int
	IntegrityCheck bool
	TotalItems     int64
	Error          string
}
