package service

import (
	"fmt"
	"time"
)

// State is the lifecycle state of one build.
type State int

const (
	StatePending State = iota
	StateBuilding
	StateReady
	StateFailed
)

var stateNames = map[State]string{
	StatePending:  "pending",
	StateBuilding: "building",
	StateReady:    "ready",
	StateFailed:   "failed",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Done reports whether the build has finished, successfully or not.
func (s State) Done() bool { return s == StateReady || s == StateFailed }

// BuildHandle identifies one build attempt.
type BuildHandle string

// BuildStatus describes one build attempt.
type BuildStatus struct {
	ID      BuildHandle `json:"build_id"`
	Session string      `json:"session"`
	Dir     string      `json:"dir"`
	State   State       `json:"state"`
	// Documents is the number of documents loaded; Excluded of those were
	// over the document cap and not indexed.
	Documents  int       `json:"documents"`
	Excluded   int       `json:"excluded"`
	Chunks     int       `json:"chunks"`
	Summary    string    `json:"summary,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`

	Err error `json:"-"`
}

// SessionStatus is a snapshot of one session.
type SessionStatus struct {
	Name     string `json:"session"`
	Ready    bool   `json:"ready"`
	Building bool   `json:"building"`
	// Current is the build that produced the index being served.
	Current *BuildStatus `json:"current,omitempty"`
	// Last is the most recent build attempt, which may have failed.
	Last *BuildStatus `json:"last,omitempty"`
}
