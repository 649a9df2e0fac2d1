// Package task implements the client side of the backend's asynchronous job
// contract: submit a long-running job, poll its status on a fixed cadence until
// it reaches a terminal state, then fetch the artifact it produced.
//
// The three roles are Submitter, Tracker and Materializer. They share the
// value types Handle, Snapshot and Artifact.
package task

import (
	"encoding/json"
	"net/url"
	"strings"
	"time"
)

// State is the client-side lifecycle of a tracked job.
type State int

const (
	StateIdle State = iota
	StatePending
	StateProgress
	StateSuccess
	StateFailure
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StatePending:
		return "PENDING"
	case StateProgress:
		return "PROGRESS"
	case StateSuccess:
		return "SUCCESS"
	case StateFailure:
		return "FAILURE"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailure
}

// Handle identifies one server-side job.
type Handle struct {
	// ID is the opaque server-issued task id.
	ID string
	// StatusPath is the status endpoint template, e.g. "/task_status/{id}".
	StatusPath string
	// Kind names the workflow the job belongs to.
	Kind string
	// CreatedAt is when the job was submitted, or when tracking was resumed.
	CreatedAt time.Time
}

// StatusURL returns the status endpoint for the handle under base.
func (h Handle) StatusURL(base string) string {
	return strings.TrimRight(base, "/") + h.statusPath()
}

func (h Handle) statusPath() string {
	return Expand(h.StatusPath, h.ID)
}

// Expand substitutes the path-escaped id for "{id}" in template.
func Expand(template, id string) string {
	p := strings.ReplaceAll(template, "{id}", url.PathEscape(id))
	if !strings.HasPrefix(p, "/") && !strings.Contains(p, "://") {
		p = "/" + p
	}
	return p
}

// Snapshot is one observed status of a job. Snapshots are values and are never
// modified after they are published.
type Snapshot struct {
	TaskID   string
	State    State
	Progress float64 // 0-100
	Step     string
	Err      string
	Attempts int // status requests made so far
	At       time.Time
	// Result holds an inline result reported with SUCCESS, if any.
	Result json.RawMessage
}

// Terminal reports whether the snapshot is SUCCESS or FAILURE.
func (s Snapshot) Terminal() bool { return s.State.Terminal() }

// Succeeded reports whether the snapshot is SUCCESS.
func (s Snapshot) Succeeded() bool { return s.State == StateSuccess }
