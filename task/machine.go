package task

import "math"

// advance applies one proposed snapshot to the current one and returns the
// snapshot to publish.
//
//	IDLE -> PENDING -> PROGRESS -> SUCCESS | FAILURE
//
// Terminal states absorb every later proposal. Progress is the server value
// clamped to [0,100]; SUCCESS always reports 100.
func advance(prev, next Snapshot) Snapshot {
	if prev.Terminal() {
		return prev
	}
	if next.TaskID == "" {
		next.TaskID = prev.TaskID
	}
	next.Progress = clampProgress(next.Progress)

	switch next.State {
	case StateSuccess:
		next.Progress = 100
		next.Err = ""
		return next
	case StateFailure:
		if next.Err == "" {
			next.Err = ErrJobFailed.Error()
		}
		return next
	case StateProgress:
	case StatePending:
		if prev.State == StateProgress || next.Progress > 0 {
			next.State = StateProgress
		}
	default:
		// Unknown status: keep the current non-terminal state.
		next.State = prev.State
		if next.State == StateIdle {
			next.State = StatePending
		}
		if next.State == StatePending && next.Progress > 0 {
			next.State = StateProgress
		}
	}
	next.Err = ""
	next.Result = nil
	return next
}

func clampProgress(p float64) float64 {
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
