package task

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	vhttp "vidflow/http"
)

const testInterval = 5 * time.Millisecond

func quietOptions() Options {
	return Options{Interval: testInterval, Logf: func(string, ...any) {}}
}

type step struct {
	st  Status
	err error
}

// script replays steps in order and repeats the last one.
type script struct {
	mu    sync.Mutex
	steps []step
	calls int
}

func (s *script) Check(ctx context.Context, h Handle) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	i := s.calls - 1
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	return s.steps[i].st, s.steps[i].err
}

func (s *script) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type recorder struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *recorder) observe(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *recorder) all() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Snapshot(nil), r.snaps...)
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func progress(p float64) step {
	return step{st: Status{State: StateProgress, Progress: p, HasProgress: true}}
}

func TestTracker_ProgressThenSuccess(t *testing.T) {
	sc := &script{steps: []step{
		progress(10),
		progress(55),
		{st: Status{State: StateSuccess}},
	}}
	tr := NewTracker(sc, quietOptions())
	defer tr.Close()
	rec := &recorder{}
	tr.OnUpdate(rec.observe)

	if err := tr.Track(context.Background(), Handle{ID: "job-1"}); err != nil {
		t.Fatalf("Track() error = %v", err)
	}
	snap, err := tr.Wait(waitCtx(t))
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if snap.State != StateSuccess || snap.Progress != 100 {
		t.Errorf("final snapshot = %v/%v, want SUCCESS/100", snap.State, snap.Progress)
	}
	if snap.TaskID != "job-1" {
		t.Errorf("TaskID = %q, want job-1", snap.TaskID)
	}

	got := rec.all()
	wantStates := []State{StatePending, StateProgress, StateProgress, StateSuccess}
	if len(got) != len(wantStates) {
		t.Fatalf("observed %d snapshots, want %d: %+v", len(got), len(wantStates), got)
	}
	for i, s := range got {
		if s.State != wantStates[i] {
			t.Errorf("snapshot %d state = %v, want %v", i, s.State, wantStates[i])
		}
	}
	if got[1].Progress != 10 || got[2].Progress != 55 {
		t.Errorf("progress = %v, %v; want 10, 55", got[1].Progress, got[2].Progress)
	}

	// No requests after a terminal status is recorded.
	time.Sleep(10 * testInterval)
	if calls := sc.Calls(); calls != 3 {
		t.Errorf("status requests = %d, want 3", calls)
	}
}

func TestTracker_JobFailure(t *testing.T) {
	sc := &script{steps: []step{{st: Status{State: StateFailure, Message: "disk full"}}}}
	tr := NewTracker(sc, quietOptions())
	defer tr.Close()

	tr.Track(context.Background(), Handle{ID: "job-2"})
	snap, err := tr.Wait(waitCtx(t))
	if !errors.Is(err, ErrJobFailed) {
		t.Fatalf("Wait() error = %v, want ErrJobFailed", err)
	}
	if snap.State != StateFailure || snap.Err != "disk full" {
		t.Errorf("snapshot = %v %q, want FAILURE \"disk full\"", snap.State, snap.Err)
	}
	if err.Error() != "disk full" {
		t.Errorf("error text = %q, want backend message verbatim", err.Error())
	}

	time.Sleep(10 * testInterval)
	if calls := sc.Calls(); calls != 1 {
		t.Errorf("status requests = %d, want 1", calls)
	}
}

func TestTracker_TransportErrorOnSecondPoll(t *testing.T) {
	sc := &script{steps: []step{
		progress(20),
		{err: errors.New("connection refused")},
		progress(90),
	}}
	tr := NewTracker(sc, quietOptions())
	defer tr.Close()

	tr.Track(context.Background(), Handle{ID: "job-3"})
	snap, err := tr.Wait(waitCtx(t))
	if !errors.Is(err, ErrStatusCheck) {
		t.Fatalf("Wait() error = %v, want ErrStatusCheck", err)
	}
	var perr *PollError
	if !errors.As(err, &perr) || perr.TaskID != "job-3" {
		t.Errorf("Wait() error = %#v, want *PollError for job-3", err)
	}
	if snap.State != StateFailure {
		t.Errorf("State = %v, want FAILURE", snap.State)
	}
	if !strings.HasPrefix(snap.Err, "status check failed: ") {
		t.Errorf("Err = %q, want status check failure message", snap.Err)
	}

	time.Sleep(10 * testInterval)
	if calls := sc.Calls(); calls != 2 {
		t.Errorf("status requests = %d, want 2", calls)
	}
}

func TestTracker_AttemptsExceeded(t *testing.T) {
	sc := &script{steps: []step{{st: Status{State: StatePending}}}}
	opts := quietOptions()
	opts.MaxAttempts = 3
	tr := NewTracker(sc, opts)
	defer tr.Close()

	tr.Track(context.Background(), Handle{ID: "job-4"})
	snap, err := tr.Wait(waitCtx(t))
	if !errors.Is(err, ErrAttemptsExceeded) {
		t.Fatalf("Wait() error = %v, want ErrAttemptsExceeded", err)
	}
	if snap.Err != "task did not finish in time" {
		t.Errorf("Err = %q", snap.Err)
	}
	if snap.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", snap.Attempts)
	}
	if calls := sc.Calls(); calls != 3 {
		t.Errorf("status requests = %d, want 3", calls)
	}
}

func TestTracker_RepollTerminalIsStable(t *testing.T) {
	sc := &script{steps: []step{
		progress(70),
		{st: Status{State: StateSuccess}},
		progress(5),
	}}
	tr := NewTracker(sc, quietOptions())
	defer tr.Close()

	tr.Track(context.Background(), Handle{ID: "job-5"})
	first, _ := tr.Wait(waitCtx(t))
	time.Sleep(5 * testInterval)
	again := tr.Snapshot()
	if again.State != first.State || again.Progress != first.Progress || again.Progress != 100 {
		t.Errorf("snapshot moved from %v/%v to %v/%v", first.State, first.Progress, again.State, again.Progress)
	}
}

// blockingChecker parks every call until the poll context ends, then returns
// a late SUCCESS that must be ignored.
type blockingChecker struct {
	entered chan string
	calls   atomic.Int32
}

func (b *blockingChecker) Check(ctx context.Context, h Handle) (Status, error) {
	b.calls.Add(1)
	b.entered <- h.ID
	<-ctx.Done()
	return Status{State: StateSuccess}, nil
}

func TestTracker_CloseMidPoll(t *testing.T) {
	bc := &blockingChecker{entered: make(chan string, 1)}
	tr := NewTracker(bc, quietOptions())
	rec := &recorder{}
	tr.OnUpdate(rec.observe)

	tr.Track(context.Background(), Handle{ID: "job-6"})
	<-bc.entered

	if err := tr.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	calls := bc.calls.Load()
	time.Sleep(10 * testInterval)
	if got := bc.calls.Load(); got != calls {
		t.Errorf("status requests after Close = %d, want %d", got, calls)
	}
	for _, s := range rec.all() {
		if s.Terminal() {
			t.Errorf("observed terminal snapshot %+v after teardown", s)
		}
	}
	if err := tr.Track(context.Background(), Handle{ID: "job-7"}); !errors.Is(err, ErrTrackerClosed) {
		t.Errorf("Track() after Close error = %v, want ErrTrackerClosed", err)
	}
}

func TestTracker_NewHandleCancelsPrevious(t *testing.T) {
	oldEntered := make(chan struct{})
	var newCalls atomic.Int32
	checker := CheckerFunc(func(ctx context.Context, h Handle) (Status, error) {
		if h.ID == "old" {
			close(oldEntered)
			<-ctx.Done()
			// Late response for the superseded handle.
			return Status{State: StateFailure, Message: "stale"}, nil
		}
		if newCalls.Add(1) < 2 {
			return Status{State: StateProgress, Progress: 30, HasProgress: true}, nil
		}
		return Status{State: StateSuccess}, nil
	})

	tr := NewTracker(checker, quietOptions())
	defer tr.Close()
	rec := &recorder{}
	tr.OnUpdate(rec.observe)

	tr.Track(context.Background(), Handle{ID: "old"})
	<-oldEntered
	if err := tr.Track(context.Background(), Handle{ID: "new"}); err != nil {
		t.Fatalf("Track(new) error = %v", err)
	}

	snap, err := tr.Wait(waitCtx(t))
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if snap.TaskID != "new" || snap.State != StateSuccess {
		t.Errorf("final snapshot = %s/%v, want new/SUCCESS", snap.TaskID, snap.State)
	}
	for _, s := range rec.all() {
		if s.TaskID == "old" && s.State != StatePending {
			t.Errorf("observed %v for superseded handle", s.State)
		}
		if s.Err == "stale" {
			t.Error("late response for old handle was published")
		}
	}
}

func TestTracker_TrackWaitsForInFlightCheck(t *testing.T) {
	entered := make(chan struct{})
	var finished atomic.Bool
	checker := CheckerFunc(func(ctx context.Context, h Handle) (Status, error) {
		if h.ID == "slow" {
			close(entered)
			// Ignores ctx on purpose.
			time.Sleep(10 * testInterval)
			finished.Store(true)
			return Status{State: StateSuccess}, nil
		}
		return Status{State: StateSuccess}, nil
	})

	tr := NewTracker(checker, quietOptions())
	defer tr.Close()
	rec := &recorder{}
	tr.OnUpdate(rec.observe)

	tr.Track(context.Background(), Handle{ID: "slow"})
	<-entered
	if err := tr.Track(context.Background(), Handle{ID: "next"}); err != nil {
		t.Fatalf("Track(next) error = %v", err)
	}
	if !finished.Load() {
		t.Error("Track() returned before the superseded Check finished")
	}

	snap, err := tr.Wait(waitCtx(t))
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if snap.TaskID != "next" {
		t.Errorf("final snapshot task = %q, want next", snap.TaskID)
	}
	for _, s := range rec.all() {
		if s.TaskID == "slow" && s.State == StateSuccess {
			t.Error("late SUCCESS for superseded handle was published")
		}
	}
}

func TestTracker_ResetSupersedesWaiters(t *testing.T) {
	bc := &blockingChecker{entered: make(chan string, 1)}
	tr := NewTracker(bc, quietOptions())
	defer tr.Close()

	tr.Track(context.Background(), Handle{ID: "job-8"})
	<-bc.entered

	done := tr.Done()
	ctx := waitCtx(t)
	errc := make(chan error, 1)
	go func() {
		_, err := tr.Wait(ctx)
		errc <- err
	}()
	// Give the waiter a chance to park on the current generation.
	time.Sleep(20 * testInterval)
	tr.Reset()

	select {
	case <-done:
	default:
		t.Error("Done() channel of the reset handle is still open")
	}

	if err := <-errc; !errors.Is(err, ErrSuperseded) {
		t.Errorf("Wait() error = %v, want ErrSuperseded", err)
	}
	if s := tr.Snapshot(); s.State != StateIdle {
		t.Errorf("State after Reset = %v, want IDLE", s.State)
	}
	if _, ok := tr.Handle(); ok {
		t.Error("Handle() ok = true after Reset")
	}
}

func TestTracker_ContextCancelStopsPolling(t *testing.T) {
	sc := &script{steps: []step{{st: Status{State: StatePending}}}}
	tr := NewTracker(sc, quietOptions())
	defer tr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	tr.Track(ctx, Handle{ID: "job-9"})
	time.Sleep(3 * testInterval)
	cancel()

	waitFor, stop := context.WithTimeout(context.Background(), 5*testInterval)
	defer stop()
	if _, err := tr.Wait(waitFor); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want deadline exceeded", err)
	}
	calls := sc.Calls()
	time.Sleep(5 * testInterval)
	if got := sc.Calls(); got != calls {
		t.Errorf("status requests after cancel grew from %d to %d", calls, got)
	}
}

func TestHTTPChecker(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/task_status/abc%2F1" && r.URL.RawPath != "/api/task_status/abc%2F1" {
			t.Errorf("path = %q (raw %q)", r.URL.Path, r.URL.RawPath)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q, want Bearer tok", got)
		}
		w.Header().Set("Content-Type", "application/json")
		if polls.Add(1) == 1 {
			w.Write([]byte(`{"status": "PROGRESS", "meta": {"percent": 50}}`))
			return
		}
		w.Write([]byte(`{"status": "SUCCESS", "result": "done text"}`))
	}))
	defer srv.Close()

	cfg := vhttp.DefaultConfig()
	cfg.BaseURL = srv.URL + "/api"
	cfg.Tokens = vhttp.StaticToken("tok")
	client := vhttp.New(cfg)
	defer client.Close()

	tr := NewTracker(HTTPChecker{Client: client}, quietOptions())
	defer tr.Close()
	tr.Track(context.Background(), Handle{ID: "abc/1", StatusPath: "/task_status/{id}"})

	snap, err := tr.Wait(waitCtx(t))
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if string(snap.Result) != `"done text"` {
		t.Errorf("Result = %s, want \"done text\"", snap.Result)
	}
	if polls.Load() != 2 {
		t.Errorf("polls = %d, want 2", polls.Load())
	}
}

func TestHTTPChecker_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"msg": "Missing Authorization Header"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	cfg := vhttp.DefaultConfig()
	cfg.BaseURL = srv.URL
	client := vhttp.New(cfg)

	tr := NewTracker(HTTPChecker{Client: client}, quietOptions())
	defer tr.Close()
	tr.Track(context.Background(), Handle{ID: "x", StatusPath: "/task_status/{id}"})

	_, err := tr.Wait(waitCtx(t))
	if !errors.Is(err, vhttp.ErrUnauthorized) {
		t.Errorf("Wait() error = %v, want ErrUnauthorized", err)
	}
	if !errors.Is(err, ErrStatusCheck) {
		t.Errorf("Wait() error = %v, want ErrStatusCheck", err)
	}
}

func TestHandleStatusURL(t *testing.T) {
	h := Handle{ID: "a b", StatusPath: "download_video_status/{id}"}
	if got, want := h.StatusURL("http://host/api/"), "http://host/api/download_video_status/a%20b"; got != want {
		t.Errorf("StatusURL() = %q, want %q", got, want)
	}
}
