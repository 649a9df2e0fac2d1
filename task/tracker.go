package task

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	vhttp "vidflow/http"
)

// DefaultInterval is the status cadence when Options.Interval is zero.
const DefaultInterval = time.Second

// Doer is the HTTP surface the task roles use. *vhttp.Client satisfies it.
// Only single-shot requests are used: nothing on the job path is retried.
type Doer interface {
	DoOnce(ctx context.Context, method, path string, body []byte, headers map[string]string) (*vhttp.Response, error)
}

// Checker performs one status request for a handle.
//
// Check must return promptly once ctx is cancelled. Track, Reset and Close
// wait for the superseded poller's in-flight Check to return before they do,
// so a Checker that ignores ctx stalls them for the rest of its request.
type Checker interface {
	Check(ctx context.Context, h Handle) (Status, error)
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context, h Handle) (Status, error)

// Check implements Checker.
func (f CheckerFunc) Check(ctx context.Context, h Handle) (Status, error) { return f(ctx, h) }

// HTTPChecker polls the handle's status endpoint.
type HTTPChecker struct {
	Client Doer
}

// Check implements Checker.
func (c HTTPChecker) Check(ctx context.Context, h Handle) (Status, error) {
	resp, err := c.Client.DoOnce(ctx, http.MethodGet, h.statusPath(), nil, nil)
	if err != nil {
		return Status{}, err
	}
	return DecodeStatus(resp.Body)
}

// Options configures a Tracker.
type Options struct {
	// Interval between status requests. Default: 1s.
	Interval time.Duration
	// MaxAttempts bounds the number of status requests. Zero means unbounded.
	MaxAttempts int
	// Logf receives diagnostic messages. Default: log.Printf.
	Logf func(format string, args ...any)
}

// Tracker polls the status of at most one handle at a time and publishes a
// Snapshot for every response. Polls for a handle are sequential and run in a
// single goroutine owned by the Tracker.
//
// Tracking a new handle, Reset and Close stop the previous poller and wait for
// it to exit. Snapshots produced by a superseded poller are dropped, so
// observers only ever see the current handle.
type Tracker struct {
	checker Checker
	opts    Options

	mu         sync.Mutex
	gen        uint64
	handle     *Handle
	snap       Snapshot
	err        error
	observers  []func(Snapshot)
	cancel     context.CancelFunc
	exited     chan struct{}
	done       chan struct{}
	doneClosed bool
	closed     bool
}

// NewTracker creates an idle tracker.
func NewTracker(checker Checker, opts Options) *Tracker {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Logf == nil {
		opts.Logf = log.Printf
	}
	return &Tracker{
		checker: checker,
		opts:    opts,
		snap:    Snapshot{State: StateIdle},
		done:    make(chan struct{}),
	}
}

// OnUpdate registers an observer for published snapshots. Observers run in
// registration order while the tracker lock is held; they must not call back
// into the Tracker.
func (t *Tracker) OnUpdate(fn func(Snapshot)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observers = append(t.observers, fn)
}

// Track starts polling h, replacing any handle tracked so far. The first
// status request is made immediately. Cancelling ctx stops polling without
// publishing a terminal snapshot.
func (t *Tracker) Track(ctx context.Context, h Handle) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrTrackerClosed
	}
	cancel, exited := t.cancel, t.exited
	gen := t.supersedeLocked()

	pollCtx, pollCancel := context.WithCancel(ctx)
	ex := make(chan struct{})
	t.cancel, t.exited = pollCancel, ex
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now()
	}
	t.handle = &h
	t.publishLocked(advance(t.snap, Snapshot{TaskID: h.ID, State: StatePending, At: time.Now()}))
	t.mu.Unlock()

	stop(cancel, exited)
	go t.poll(pollCtx, gen, h, ex)
	return nil
}

// Reset stops polling and returns the tracker to IDLE.
func (t *Tracker) Reset() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	cancel, exited := t.cancel, t.exited
	t.supersedeLocked()
	t.cancel, t.exited = nil, nil
	t.mu.Unlock()

	stop(cancel, exited)
}

// Close stops polling for good. No status requests are made after Close
// returns, and later Track calls fail with ErrTrackerClosed.
func (t *Tracker) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	cancel, exited := t.cancel, t.exited
	t.supersedeLocked()
	t.cancel, t.exited = nil, nil
	t.closeDoneLocked()
	t.mu.Unlock()

	stop(cancel, exited)
	return nil
}

// supersedeLocked invalidates the current poller and resets state to IDLE.
// It wakes waiters of the previous handle and returns the new generation.
func (t *Tracker) supersedeLocked() uint64 {
	t.gen++
	t.closeDoneLocked()
	t.done = make(chan struct{})
	t.doneClosed = false
	t.handle = nil
	t.err = nil
	t.snap = Snapshot{State: StateIdle}
	return t.gen
}

func (t *Tracker) closeDoneLocked() {
	if !t.doneClosed {
		close(t.done)
		t.doneClosed = true
	}
}

func stop(cancel context.CancelFunc, exited chan struct{}) {
	if cancel == nil {
		return
	}
	cancel()
	<-exited
}

// Snapshot returns the latest published snapshot.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap
}

// Handle returns the handle being tracked, if any.
func (t *Tracker) Handle() (Handle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.handle == nil {
		return Handle{}, false
	}
	return *t.handle, true
}

// Err returns the cause of a FAILURE snapshot: a *JobError, a *PollError or
// ErrAttemptsExceeded. It is nil otherwise.
func (t *Tracker) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Done returns a channel closed when the current handle reaches a terminal
// state, or when tracking of it is superseded.
func (t *Tracker) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

// Wait blocks until the current handle reaches a terminal state and returns the
// terminal snapshot. A FAILURE snapshot is returned together with Err().
func (t *Tracker) Wait(ctx context.Context) (Snapshot, error) {
	t.mu.Lock()
	done, gen := t.done, t.gen
	t.mu.Unlock()

	select {
	case <-ctx.Done():
		return t.Snapshot(), ctx.Err()
	case <-done:
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case t.closed:
		return t.snap, ErrTrackerClosed
	case t.gen != gen:
		return t.snap, ErrSuperseded
	}
	return t.snap, t.err
}

func (t *Tracker) poll(ctx context.Context, gen uint64, h Handle, exited chan struct{}) {
	defer close(exited)

	ticker := time.NewTicker(t.opts.Interval)
	defer ticker.Stop()

	attempts := 0
	for {
		if ctx.Err() != nil {
			return
		}
		if t.opts.MaxAttempts > 0 && attempts >= t.opts.MaxAttempts {
			ticker.Stop()
			t.fail(gen, attempts, ErrAttemptsExceeded.Error(), ErrAttemptsExceeded)
			t.opts.Logf("vidflow: task %s: giving up after %d status checks", h.ID, attempts)
			return
		}

		attempts++
		st, err := t.checker.Check(ctx, h)
		if ctx.Err() != nil {
			// Late response for a cancelled poller.
			return
		}
		if err != nil {
			ticker.Stop()
			perr := &PollError{TaskID: h.ID, Err: err}
			t.fail(gen, attempts, perr.Error(), perr)
			t.opts.Logf("vidflow: task %s: %v", h.ID, perr)
			return
		}

		if t.apply(gen, attempts, st, ticker) {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// apply publishes the snapshot for one status response and reports whether
// polling must stop.
func (t *Tracker) apply(gen uint64, attempts int, st Status, ticker *time.Ticker) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.gen {
		t.opts.Logf("vidflow: dropping stale status for superseded task")
		return true
	}

	prev := t.snap
	proposed := Snapshot{
		TaskID:   prev.TaskID,
		State:    st.State,
		Progress: prev.Progress,
		Step:     prev.Step,
		Err:      st.Message,
		Attempts: attempts,
		At:       time.Now(),
		Result:   st.Result,
	}
	if st.HasProgress {
		proposed.Progress = st.Progress
	}
	if st.Step != "" {
		proposed.Step = st.Step
	}

	next := advance(prev, proposed)
	if next.Terminal() {
		ticker.Stop()
		if next.State == StateFailure {
			t.err = &JobError{TaskID: next.TaskID, Message: next.Err}
		}
	}
	t.publishLocked(next)
	return next.Terminal()
}

func (t *Tracker) fail(gen uint64, attempts int, msg string, cause error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.gen {
		return
	}
	next := advance(t.snap, Snapshot{
		State:    StateFailure,
		Progress: t.snap.Progress,
		Step:     t.snap.Step,
		Err:      msg,
		Attempts: attempts,
		At:       time.Now(),
	})
	t.err = cause
	t.publishLocked(next)
}

// publishLocked records snap and notifies observers.
func (t *Tracker) publishLocked(snap Snapshot) {
	t.snap = snap
	for _, fn := range t.observers {
		fn(snap)
	}
	if snap.Terminal() {
		t.closeDoneLocked()
	}
}
