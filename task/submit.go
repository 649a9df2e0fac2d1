package task

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"
)

// Submission describes the request that starts a job.
type Submission struct {
	// Kind names the workflow, e.g. "video".
	Kind string
	// Path is the submit endpoint, e.g. "/download_video".
	Path string
	// Body is encoded as the JSON request body.
	Body any
	// StatusPath is the status endpoint template for the returned handle.
	StatusPath string
}

// Submitted is the outcome of a successful submission. Exactly one of Handle,
// Result or Pending is set.
type Submitted struct {
	// Handle identifies the started job.
	Handle *Handle
	// Result is an immediate result, e.g. an already available transcript.
	Result json.RawMessage
	// Pending means the backend accepted the request but returned neither a
	// task id nor a result, e.g. for a transcript that is already queued.
	Pending bool
	// Status is the backend status string that accompanied a pending reply.
	Status string
}

// taskIDKeys lists the response fields carrying a task id, in priority order.
// Chained transcript jobs report the id of the final link.
var taskIDKeys = []string{"task_id", "id", "transcribe_audio_task_id"}

// Submitter starts jobs. It never retries: a failed submission is reported to
// the caller, and any retry is a fresh submission.
type Submitter struct {
	client Doer
}

// NewSubmitter creates a Submitter.
func NewSubmitter(client Doer) *Submitter {
	return &Submitter{client: client}
}

// Submit posts the submission and decodes the backend's reply.
func (s *Submitter) Submit(ctx context.Context, sub Submission) (*Submitted, error) {
	body, err := json.Marshal(sub.Body)
	if err != nil {
		return nil, &SubmitError{Kind: sub.Kind, Op: "encode", Err: err}
	}

	resp, err := s.client.DoOnce(ctx, http.MethodPost, sub.Path, body, nil)
	if err != nil {
		return nil, &SubmitError{Kind: sub.Kind, Op: "request", Err: err}
	}

	out, err := decodeSubmitted(resp.Body)
	if err != nil {
		return nil, &SubmitError{Kind: sub.Kind, Op: "decode", Err: err}
	}
	if out.Handle != nil {
		out.Handle.Kind = sub.Kind
		out.Handle.StatusPath = sub.StatusPath
		out.Handle.CreatedAt = time.Now()
	}
	return out, nil
}

func decodeSubmitted(body []byte) (*Submitted, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, errors.New("response is not an object")
	}

	if id := firstID(fields, taskIDKeys...); id != "" {
		return &Submitted{Handle: &Handle{ID: id}}, nil
	}
	for _, k := range []string{"transcript", "result"} {
		if raw, ok := fields[k]; ok && !isNull(raw) {
			return &Submitted{Result: raw}, nil
		}
	}
	if status := firstString(fields, "status"); status != "" {
		return &Submitted{Pending: true, Status: status}, nil
	}
	if msg := firstString(fields, "error", "message", "msg"); msg != "" {
		return nil, errors.New(msg)
	}
	return nil, errors.New("response carries no task id")
}

// firstID returns the first non-empty id among keys. Numeric ids are accepted.
func firstID(fields map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		raw, ok := fields[k]
		if !ok {
			continue
		}
		var s string
		if json.Unmarshal(raw, &s) == nil {
			if s != "" {
				return s
			}
			continue
		}
		var n json.Number
		if json.Unmarshal(raw, &n) == nil {
			if _, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
				return n.String()
			}
		}
	}
	return ""
}
