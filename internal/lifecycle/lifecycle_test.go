package lifecycle

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"movieposter/internal/domain"
)

type fetchStep struct {
	status domain.PredictionStatus
	output []string
	detail string
	err    error
}

type scriptedFetcher struct {
	mu      sync.Mutex
	steps   []fetchStep
	calls   int
	onFetch func(call int)
}

func (f *scriptedFetcher) GetPrediction(_ context.Context, id string) (*domain.Prediction, error) {
	f.mu.Lock()
	call := f.calls
	f.calls++
	var step fetchStep
	if call < len(f.steps) {
		step = f.steps[call]
	} else {
		step = f.steps[len(f.steps)-1]
	}
	hook := f.onFetch
	f.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	if step.err != nil {
		return nil, step.err
	}
	return &domain.Prediction{ID: id, Status: step.status, Output: step.output, Detail: step.detail}, nil
}

func (f *scriptedFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type instantScheduler struct {
	waits int
	last  time.Duration
}

func (s *instantScheduler) After(d time.Duration) <-chan time.Time {
	s.waits++
	s.last = d
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

func newTestPoller(f Fetcher) (*Poller, *instantScheduler) {
	sched := &instantScheduler{}
	return &Poller{Fetcher: f, Scheduler: sched, Interval: time.Second}, sched
}

func starting() domain.Prediction {
	return domain.Prediction{ID: "pred-1", Status: domain.PredictionStarting}
}

func collect(states *[]State) Observer {
	return func(j Job) { *states = append(*states, j.State) }
}

func TestRunPollsUntilSucceeded(t *testing.T) {
	fetcher := &scriptedFetcher{steps: []fetchStep{
		{status: domain.PredictionProcessing},
		{status: domain.PredictionSucceeded, output: []string{"https://replicate.delivery/a.png", "https://replicate.delivery/final.png"}},
		{err: errors.New("polled after terminal state")},
	}}
	poller, sched := newTestPoller(fetcher)
	var observed []State

	job := poller.Run(context.Background(), Token{}, starting(), collect(&observed))

	if job.State != StateSucceeded {
		t.Fatalf("state = %s, want succeeded (err %v)", job.State, job.Err)
	}
	if fetcher.Calls() != 2 || job.Attempts != 2 {
		t.Fatalf("calls = %d attempts = %d, want 2", fetcher.Calls(), job.Attempts)
	}
	if sched.last != time.Second {
		t.Fatalf("interval = %s, want 1s", sched.last)
	}
	if got := job.Prediction.PosterURL(); got != "https://replicate.delivery/final.png" {
		t.Fatalf("poster url = %q", got)
	}
	want := []State{StateSubmitted, StatePolling, StateSucceeded}
	if len(observed) != len(want) {
		t.Fatalf("observed = %v, want %v", observed, want)
	}
	terminal := 0
	for i := range want {
		if observed[i] != want[i] {
			t.Fatalf("observed = %v, want %v", observed, want)
		}
		if observed[i].Terminal() {
			terminal++
		}
	}
	if terminal != 1 {
		t.Fatalf("expected exactly one terminal observation, got %d", terminal)
	}
}

func TestRunInitialTerminalDoesNotPoll(t *testing.T) {
	fetcher := &scriptedFetcher{steps: []fetchStep{{err: errors.New("unexpected fetch")}}}
	poller, sched := newTestPoller(fetcher)

	initial := domain.Prediction{ID: "done", Status: domain.PredictionSucceeded, Output: []string{"u"}}
	job := poller.Run(context.Background(), Token{}, initial, nil)

	if job.State != StateSucceeded || fetcher.Calls() != 0 || sched.waits != 0 {
		t.Fatalf("state=%s calls=%d waits=%d", job.State, fetcher.Calls(), sched.waits)
	}
}

func TestRunFailedStopsRegardlessOfBudget(t *testing.T) {
	fetcher := &scriptedFetcher{steps: []fetchStep{{status: domain.PredictionFailed, detail: "NSFW content detected"}}}
	poller, _ := newTestPoller(fetcher)
	poller.MaxAttempts = 300

	job := poller.Run(context.Background(), Token{}, starting(), nil)

	if job.State != StateFailed || fetcher.Calls() != 1 {
		t.Fatalf("state=%s calls=%d", job.State, fetcher.Calls())
	}
	if job.Prediction.Detail != "NSFW content detected" {
		t.Fatalf("detail = %q", job.Prediction.Detail)
	}
}

func TestRunCanceledCountsAsFailed(t *testing.T) {
	fetcher := &scriptedFetcher{steps: []fetchStep{{status: domain.PredictionCanceled}}}
	poller, _ := newTestPoller(fetcher)

	if job := poller.Run(context.Background(), Token{}, starting(), nil); job.State != StateFailed {
		t.Fatalf("state = %s, want failed", job.State)
	}
}

func TestRunTimesOutAfterMaxAttempts(t *testing.T) {
	fetcher := &scriptedFetcher{steps: []fetchStep{{status: domain.PredictionProcessing}}}
	poller, _ := newTestPoller(fetcher)
	poller.MaxAttempts = 3
	var observed []State

	job := poller.Run(context.Background(), Token{}, starting(), collect(&observed))

	if job.State != StateTimedOut {
		t.Fatalf("state = %s, want timed_out", job.State)
	}
	if fetcher.Calls() != 3 {
		t.Fatalf("calls = %d, want 3", fetcher.Calls())
	}
	if !errors.Is(job.Err, domain.ErrTimeout) {
		t.Fatalf("err = %v, want timeout", job.Err)
	}
	if errors.Is(job.Err, domain.ErrUpstream) {
		t.Fatalf("timeout must be distinguishable from a failed job")
	}
	if observed[len(observed)-1] != StateTimedOut {
		t.Fatalf("last observed = %s", observed[len(observed)-1])
	}
}

func TestRunTimesOutAfterMaxDuration(t *testing.T) {
	fetcher := &scriptedFetcher{steps: []fetchStep{{status: domain.PredictionProcessing}}}
	poller, _ := newTestPoller(fetcher)
	poller.MaxDuration = 2 * time.Minute
	clock := time.Unix(0, 0)
	poller.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	job := poller.Run(context.Background(), Token{}, starting(), nil)

	if job.State != StateTimedOut {
		t.Fatalf("state = %s, want timed_out", job.State)
	}
	if fetcher.Calls() >= DefaultMaxAttempts {
		t.Fatalf("duration budget ignored, calls = %d", fetcher.Calls())
	}
}

func TestRunFetchErrorStops(t *testing.T) {
	upstream := domain.Upstream(http.StatusNotFound, "Not found.", nil)
	fetcher := &scriptedFetcher{steps: []fetchStep{{err: upstream}}}
	poller, _ := newTestPoller(fetcher)
	poller.FetchRetries = 2

	job := poller.Run(context.Background(), Token{}, starting(), nil)

	if job.State != StateErrored {
		t.Fatalf("state = %s, want errored", job.State)
	}
	if fetcher.Calls() != 1 {
		t.Fatalf("non-transient error retried: calls = %d", fetcher.Calls())
	}
	if domain.Detail(job.Err) != "Not found." {
		t.Fatalf("detail = %q", domain.Detail(job.Err))
	}
}

func TestRunRetriesTransientFetchErrors(t *testing.T) {
	fetcher := &scriptedFetcher{steps: []fetchStep{
		{err: domain.Upstream(http.StatusServiceUnavailable, "busy", nil)},
		{err: domain.Upstream(http.StatusBadGateway, "busy", nil)},
		{status: domain.PredictionSucceeded, output: []string{"u"}},
	}}
	poller, _ := newTestPoller(fetcher)
	poller.FetchRetries = 2

	job := poller.Run(context.Background(), Token{}, starting(), nil)

	if job.State != StateSucceeded {
		t.Fatalf("state = %s (err %v), want succeeded", job.State, job.Err)
	}
	if job.Attempts != 1 || fetcher.Calls() != 3 {
		t.Fatalf("attempts = %d calls = %d", job.Attempts, fetcher.Calls())
	}
}

func TestRunWithoutRetriesSurfacesTransientError(t *testing.T) {
	fetcher := &scriptedFetcher{steps: []fetchStep{{err: domain.Upstream(http.StatusServiceUnavailable, "busy", nil)}}}
	poller, _ := newTestPoller(fetcher)

	job := poller.Run(context.Background(), Token{}, starting(), nil)
	if job.State != StateErrored || fetcher.Calls() != 1 {
		t.Fatalf("state=%s calls=%d", job.State, fetcher.Calls())
	}
}

func TestRunDiscardsSnapshotOfAbandonedGeneration(t *testing.T) {
	var tracker Tracker
	token := tracker.Begin()
	fetcher := &scriptedFetcher{
		steps: []fetchStep{{status: domain.PredictionProcessing}, {status: domain.PredictionSucceeded}},
	}
	fetcher.onFetch = func(call int) {
		if call == 1 {
			tracker.Begin()
		}
	}
	poller, _ := newTestPoller(fetcher)
	var observed []State

	job := poller.Run(context.Background(), token, starting(), collect(&observed))

	if job.State != StateAbandoned {
		t.Fatalf("state = %s, want abandoned", job.State)
	}
	if job.Prediction.Status != domain.PredictionProcessing {
		t.Fatalf("stale snapshot was applied: %+v", job.Prediction)
	}
	for _, s := range observed {
		if s == StateSucceeded || s == StateAbandoned {
			t.Fatalf("observer saw %s for an abandoned generation", s)
		}
	}
	if fetcher.Calls() != 2 {
		t.Fatalf("calls = %d, want 2", fetcher.Calls())
	}
}

func TestRunAbandonedTokenNeverPolls(t *testing.T) {
	var tracker Tracker
	token := tracker.Begin()
	tracker.Abandon()
	fetcher := &scriptedFetcher{steps: []fetchStep{{status: domain.PredictionSucceeded}}}
	poller, sched := newTestPoller(fetcher)

	job := poller.Run(context.Background(), token, starting(), nil)
	if job.State != StateAbandoned || fetcher.Calls() != 0 || sched.waits != 0 {
		t.Fatalf("state=%s calls=%d waits=%d", job.State, fetcher.Calls(), sched.waits)
	}
}

func TestRunContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fetcher := &scriptedFetcher{steps: []fetchStep{{status: domain.PredictionSucceeded}}}
	poller, _ := newTestPoller(fetcher)

	if job := poller.Run(ctx, Token{}, starting(), nil); job.State != StateAbandoned {
		t.Fatalf("state = %s, want abandoned", job.State)
	}
	if fetcher.Calls() != 0 {
		t.Fatalf("calls = %d, want 0", fetcher.Calls())
	}
}

func TestSubmit(t *testing.T) {
	job := Submit(starting())
	if job.State != StateSubmitted || job.Prediction.ID != "pred-1" || job.Attempts != 0 {
		t.Fatalf("Submit(starting) = %+v", job)
	}
	if got := Submit(domain.Prediction{ID: "x", Status: domain.PredictionFailed}); got.State != StateFailed {
		t.Fatalf("Submit(failed) = %s, want failed", got.State)
	}
	if got := Advance(job, domain.Prediction{ID: "pred-1", Status: domain.PredictionProcessing}); got.State != StatePolling {
		t.Fatalf("Advance from submitted = %s, want polling", got.State)
	}
}

func TestRunObservesSubmittedBeforePolling(t *testing.T) {
	fetcher := &scriptedFetcher{steps: []fetchStep{{status: domain.PredictionSucceeded, output: []string{"u"}}}}
	poller, sched := newTestPoller(fetcher)
	var firstSeen Job
	seen := 0

	poller.Run(context.Background(), Token{}, starting(), func(j Job) {
		if seen == 0 {
			firstSeen = j
			if sched.waits != 0 || fetcher.Calls() != 0 {
				t.Errorf("first observation after waits=%d calls=%d", sched.waits, fetcher.Calls())
			}
		}
		seen++
	})

	if firstSeen.State != StateSubmitted || firstSeen.Prediction.Status != domain.PredictionStarting {
		t.Fatalf("first observation = %s/%s, want submitted/starting", firstSeen.State, firstSeen.Prediction.Status)
	}
}

func TestAdvance(t *testing.T) {
	cases := []struct {
		status domain.PredictionStatus
		want   State
	}{
		{domain.PredictionStarting, StatePolling},
		{domain.PredictionProcessing, StatePolling},
		{domain.PredictionStatus("queued"), StatePolling},
		{domain.PredictionSucceeded, StateSucceeded},
		{domain.PredictionFailed, StateFailed},
		{domain.PredictionCanceled, StateFailed},
		{domain.PredictionTimedOut, StateTimedOut},
	}
	for _, tc := range cases {
		got := Advance(Job{State: StatePolling}, domain.Prediction{ID: "x", Status: tc.status})
		if got.State != tc.want {
			t.Fatalf("Advance(%s) = %s, want %s", tc.status, got.State, tc.want)
		}
		if got.Prediction.Status != tc.status {
			t.Fatalf("snapshot not replaced for %s", tc.status)
		}
	}

	done := Job{State: StateSucceeded, Prediction: domain.Prediction{ID: "x", Status: domain.PredictionSucceeded}}
	if got := Advance(done, domain.Prediction{ID: "x", Status: domain.PredictionProcessing}); got.State != StateSucceeded || got.Prediction.Status != domain.PredictionSucceeded {
		t.Fatalf("terminal state must be absorbing, got %+v", got)
	}
}

func TestTracker(t *testing.T) {
	var tracker Tracker
	first := tracker.Begin()
	if !first.Active() {
		t.Fatalf("fresh token should be active")
	}
	second := tracker.Begin()
	if first.Active() || !second.Active() {
		t.Fatalf("Begin must abandon the previous token")
	}
	tracker.Abandon()
	if second.Active() {
		t.Fatalf("Abandon must invalidate the current token")
	}
	if !(Token{}).Active() {
		t.Fatalf("zero token should always be active")
	}
}
