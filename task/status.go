package task

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// Status is one decoded status response.
type Status struct {
	// State is StateIdle when the response carries no status the client knows.
	State State
	// Raw is the status string as sent by the backend.
	Raw string
	// Progress is valid only when HasProgress is set.
	Progress    float64
	HasProgress bool
	Step        string
	// Message is the failure description, if any.
	Message string
	Result  json.RawMessage
}

var stateAliases = map[string]State{
	"success":     StateSuccess,
	"completed":   StateSuccess,
	"done":        StateSuccess,
	"finished":    StateSuccess,
	"failure":     StateFailure,
	"failed":      StateFailure,
	"error":       StateFailure,
	"revoked":     StateFailure,
	"progress":    StateProgress,
	"running":     StateProgress,
	"started":     StateProgress,
	"in_progress": StateProgress,
	"downloading": StateProgress,
	"processing":  StateProgress,
	"pending":     StatePending,
	"queued":      StatePending,
	"received":    StatePending,
}

// ParseState maps a backend status string to a State. Matching ignores case
// and surrounding space. Unknown strings yield StateIdle and false.
func ParseState(s string) (State, bool) {
	st, ok := stateAliases[strings.ToLower(strings.TrimSpace(s))]
	return st, ok
}

// DecodeStatus decodes a status response body. It accepts the flat shape
// {status, percent|progress, step, error}, the nested shape
// {status, meta: {percent, step}}, failure bodies carrying info, error or
// message, and success bodies carrying result.
func DecodeStatus(body []byte) (Status, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return Status{}, err
	}
	if fields == nil {
		return Status{}, errors.New("status body is not an object")
	}

	var st Status
	st.Raw = firstString(fields, "status", "state")
	st.State, _ = ParseState(st.Raw)

	if p, ok := firstPercent(fields, "percent", "progress"); ok {
		st.Progress, st.HasProgress = p, true
	}
	st.Step = firstString(fields, "step")

	var meta map[string]json.RawMessage
	if raw, ok := fields["meta"]; ok && json.Unmarshal(raw, &meta) == nil && meta != nil {
		if !st.HasProgress {
			if p, ok := firstPercent(meta, "percent", "progress"); ok {
				st.Progress, st.HasProgress = p, true
			}
		}
		if st.Step == "" {
			st.Step = firstString(meta, "step", "status")
		}
	}

	switch st.State {
	case StateFailure:
		st.Message = firstText(fields, "info", "error", "message")
	case StateSuccess:
		if raw, ok := fields["result"]; ok && !isNull(raw) {
			st.Result = raw
		}
	case StateIdle:
		// A bare error body is a failure even without a status.
		if msg := firstString(fields, "error"); msg != "" {
			st.State = StateFailure
			st.Message = msg
		}
	}

	return st, nil
}

func firstString(fields map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		raw, ok := fields[k]
		if !ok {
			continue
		}
		var s string
		if json.Unmarshal(raw, &s) == nil && s != "" {
			return s
		}
	}
	return ""
}

// firstText is firstString that falls back to the compact JSON text of
// non-string values, so structured failure info is not lost.
func firstText(fields map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		raw, ok := fields[k]
		if !ok || isNull(raw) {
			continue
		}
		var s string
		if json.Unmarshal(raw, &s) == nil {
			if s != "" {
				return s
			}
			continue
		}
		var buf bytes.Buffer
		if json.Compact(&buf, raw) == nil {
			return buf.String()
		}
	}
	return ""
}

func firstPercent(fields map[string]json.RawMessage, keys ...string) (float64, bool) {
	for _, k := range keys {
		raw, ok := fields[k]
		if !ok {
			continue
		}
		if p, ok := parsePercent(raw); ok {
			return p, true
		}
	}
	return 0, false
}

// parsePercent accepts a JSON number or a string such as "42.5%".
func parsePercent(raw json.RawMessage) (float64, bool) {
	var f float64
	if json.Unmarshal(raw, &f) == nil {
		return f, true
	}
	var s string
	if json.Unmarshal(raw, &s) != nil {
		return 0, false
	}
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}
