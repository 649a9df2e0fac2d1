package vidflow

import (
	"context"
	"errors"
	"fmt"
	"testing"

	vhttp "vidflow/http"
	"vidflow/task"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"job failure", &task.JobError{TaskID: "t", Message: "disk full"}, false},
		{"unauthorized", fmt.Errorf("submit: %w", &vhttp.HTTPError{StatusCode: 401}), false},
		{"canceled", context.Canceled, false},
		{"server error", &vhttp.HTTPError{StatusCode: 502}, true},
		{"transport", vhttp.ErrRequestFailed, true},
	}
	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.want {
			t.Errorf("IsRetryable(%s) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestErrorAliases(t *testing.T) {
	err := fmt.Errorf("run: %w", &task.SubmitError{Kind: "video", Op: "request", Err: errors.New("refused")})
	if !errors.Is(err, ErrSubmitFailed) {
		t.Error("SubmitError does not match ErrSubmitFailed")
	}
	var se *SubmitError
	if !errors.As(err, &se) || se.Kind != "video" {
		t.Errorf("errors.As() = %+v", se)
	}
}

func TestNewHTTPClient(t *testing.T) {
	hc := NewHTTPClient("http://backend/api/", vhttp.StaticToken("x"))
	defer hc.Close()
	if got := hc.URL("/task_status/1"); got != "http://backend/api/task_status/1" {
		t.Errorf("URL() = %q", got)
	}
}
