package task

import (
	"encoding/json"
	"math"
	"testing"
)

func TestAdvance(t *testing.T) {
	tests := []struct {
		name         string
		prev         Snapshot
		next         Snapshot
		wantState    State
		wantProgress float64
		wantErr      string
	}{
		{
			name:      "idle to pending",
			prev:      Snapshot{State: StateIdle},
			next:      Snapshot{TaskID: "t", State: StatePending},
			wantState: StatePending,
		},
		{
			name:         "pending to progress",
			prev:         Snapshot{State: StatePending},
			next:         Snapshot{State: StateProgress, Progress: 10},
			wantState:    StateProgress,
			wantProgress: 10,
		},
		{
			name:         "pending with progress reported",
			prev:         Snapshot{State: StatePending},
			next:         Snapshot{State: StatePending, Progress: 3},
			wantState:    StateProgress,
			wantProgress: 3,
		},
		{
			name:         "progress does not fall back to pending",
			prev:         Snapshot{State: StateProgress, Progress: 40},
			next:         Snapshot{State: StatePending, Progress: 40},
			wantState:    StateProgress,
			wantProgress: 40,
		},
		{
			name:         "server value reported as is",
			prev:         Snapshot{State: StateProgress, Progress: 55},
			next:         Snapshot{State: StateProgress, Progress: 20},
			wantState:    StateProgress,
			wantProgress: 20,
		},
		{
			name:         "progress clamped high",
			prev:         Snapshot{State: StateProgress},
			next:         Snapshot{State: StateProgress, Progress: 140},
			wantState:    StateProgress,
			wantProgress: 100,
		},
		{
			name:      "progress clamped low",
			prev:      Snapshot{State: StateProgress},
			next:      Snapshot{State: StateProgress, Progress: -5},
			wantState: StateProgress,
		},
		{
			name:         "success forces 100",
			prev:         Snapshot{State: StateProgress, Progress: 55},
			next:         Snapshot{State: StateSuccess, Progress: 55},
			wantState:    StateSuccess,
			wantProgress: 100,
		},
		{
			name:         "failure keeps message",
			prev:         Snapshot{State: StateProgress, Progress: 30},
			next:         Snapshot{State: StateFailure, Progress: 30, Err: "disk full"},
			wantState:    StateFailure,
			wantProgress: 30,
			wantErr:      "disk full",
		},
		{
			name:      "failure without message",
			prev:      Snapshot{State: StatePending},
			next:      Snapshot{State: StateFailure},
			wantState: StateFailure,
			wantErr:   "task failed",
		},
		{
			name:         "unknown keeps state",
			prev:         Snapshot{State: StateProgress, Progress: 10},
			next:         Snapshot{State: StateIdle, Progress: 12},
			wantState:    StateProgress,
			wantProgress: 12,
		},
		{
			name:         "success absorbs failure",
			prev:         Snapshot{State: StateSuccess, Progress: 100},
			next:         Snapshot{State: StateFailure, Err: "late"},
			wantState:    StateSuccess,
			wantProgress: 100,
		},
		{
			name:         "failure absorbs progress",
			prev:         Snapshot{State: StateFailure, Progress: 30, Err: "disk full"},
			next:         Snapshot{State: StateProgress, Progress: 90},
			wantState:    StateFailure,
			wantProgress: 30,
			wantErr:      "disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := advance(tt.prev, tt.next)
			if got.State != tt.wantState {
				t.Errorf("State = %v, want %v", got.State, tt.wantState)
			}
			if got.Progress != tt.wantProgress {
				t.Errorf("Progress = %v, want %v", got.Progress, tt.wantProgress)
			}
			if got.Err != tt.wantErr {
				t.Errorf("Err = %q, want %q", got.Err, tt.wantErr)
			}
		})
	}
}

func TestAdvance_TerminalIsStable(t *testing.T) {
	done := Snapshot{TaskID: "t", State: StateSuccess, Progress: 100, Result: json.RawMessage(`"x"`)}
	proposals := []Snapshot{
		{State: StatePending},
		{State: StateProgress, Progress: 1},
		{State: StateFailure, Err: "boom"},
		{State: StateSuccess, Progress: 0},
	}
	cur := done
	for _, p := range proposals {
		cur = advance(cur, p)
	}
	if cur.State != StateSuccess || cur.Progress != 100 || string(cur.Result) != `"x"` {
		t.Errorf("terminal snapshot changed to %+v", cur)
	}
}

func TestAdvance_KeepsTaskID(t *testing.T) {
	got := advance(Snapshot{TaskID: "abc", State: StatePending}, Snapshot{State: StateProgress})
	if got.TaskID != "abc" {
		t.Errorf("TaskID = %q, want abc", got.TaskID)
	}
}

func TestClampProgress(t *testing.T) {
	if got := clampProgress(math.NaN()); got != 0 {
		t.Errorf("clampProgress(NaN) = %v, want 0", got)
	}
}

func TestStateString(t *testing.T) {
	names := map[State]string{
		StateIdle: "IDLE", StatePending: "PENDING", StateProgress: "PROGRESS",
		StateSuccess: "SUCCESS", StateFailure: "FAILURE", State(42): "UNKNOWN",
	}
	for s, want := range names {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}
