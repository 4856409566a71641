package lifecycle

import (
	"context"
	"errors"
	"net/http"
	"time"

	"movieposter/internal/domain"
	"movieposter/internal/infra"
	"movieposter/internal/metrics"
)

const (
	DefaultInterval    = time.Second
	DefaultMaxAttempts = 300
	DefaultMaxDuration = 5 * time.Minute
)

// Fetcher reads the current snapshot of a prediction.
type Fetcher interface {
	GetPrediction(ctx context.Context, id string) (*domain.Prediction, error)
}

// Scheduler delivers a tick after d has elapsed.
type Scheduler interface {
	After(d time.Duration) <-chan time.Time
}

type clockScheduler struct{}

func (clockScheduler) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Observer receives every snapshot accepted for the current generation.
type Observer func(Job)

// Poller polls a single prediction, one request at a time, until it reaches
// a terminal state or the attempt and duration budgets run out.
type Poller struct {
	Fetcher      Fetcher
	Scheduler    Scheduler
	Interval     time.Duration
	MaxAttempts  int
	MaxDuration  time.Duration
	FetchRetries int
	Logger       *infra.Logger

	now func() time.Time
}

// NewPoller builds a poller from the poll configuration.
func NewPoller(fetcher Fetcher, cfg infra.PollConfig, logger *infra.Logger) *Poller {
	return &Poller{
		Fetcher:      fetcher,
		Interval:     cfg.Interval,
		MaxAttempts:  cfg.MaxAttempts,
		MaxDuration:  cfg.Timeout,
		FetchRetries: cfg.FetchRetries,
		Logger:       logger,
	}
}

// Run polls initial until it settles. observe may be nil. Snapshots that
// arrive after token was abandoned are dropped and never observed.
func (p *Poller) Run(ctx context.Context, token Token, initial domain.Prediction, observe Observer) Job {
	logger := infra.LoggerOrDiscard(p.Logger)
	if observe == nil {
		observe = func(Job) {}
	}
	interval, maxAttempts, maxDuration := p.budgets()
	now := p.now
	if now == nil {
		now = time.Now
	}

	job := Submit(initial)
	if !token.Active() {
		return p.finish(logger, abandon(job))
	}
	observe(job)
	start := now()

	for !job.State.Terminal() {
		if !token.Active() || ctx.Err() != nil {
			return p.finish(logger, abandon(job))
		}
		if job.Attempts >= maxAttempts || now().Sub(start) >= maxDuration {
			job.State = StateTimedOut
			job.Err = domain.Timeout("The poster is taking too long to generate. Please try again.")
			observe(job)
			return p.finish(logger, job)
		}
		job.State = StatePolling
		if !p.wait(ctx, interval) || !token.Active() {
			return p.finish(logger, abandon(job))
		}

		snapshot, err := p.fetch(ctx, job.Prediction.ID, interval)
		job.Attempts++
		if !token.Active() {
			logger.Debug().Str("prediction_id", job.Prediction.ID).Msg("lifecycle: discarded stale snapshot")
			return p.finish(logger, abandon(job))
		}
		if err != nil {
			if ctx.Err() != nil {
				return p.finish(logger, abandon(job))
			}
			job.State = StateErrored
			job.Err = err
			observe(job)
			return p.finish(logger, job)
		}
		job = Advance(job, *snapshot)
		observe(job)
	}
	return p.finish(logger, job)
}

func (p *Poller) budgets() (time.Duration, int, time.Duration) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	duration := p.MaxDuration
	if duration <= 0 {
		duration = DefaultMaxDuration
	}
	return interval, attempts, duration
}

func (p *Poller) wait(ctx context.Context, d time.Duration) bool {
	scheduler := p.Scheduler
	if scheduler == nil {
		scheduler = clockScheduler{}
	}
	select {
	case <-ctx.Done():
		return false
	case <-scheduler.After(d):
		return true
	}
}

// fetch retries transient failures up to FetchRetries extra times.
func (p *Poller) fetch(ctx context.Context, id string, interval time.Duration) (*domain.Prediction, error) {
	for attempt := 0; ; attempt++ {
		snapshot, err := p.Fetcher.GetPrediction(ctx, id)
		if err == nil {
			if snapshot == nil {
				return nil, domain.Upstream(http.StatusBadGateway, "Empty prediction response.", nil)
			}
			return snapshot, nil
		}
		if attempt >= p.FetchRetries || !transient(err) || !p.wait(ctx, interval) {
			return nil, err
		}
	}
}

func transient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	de, ok := domain.AsError(err)
	if !ok || de.Kind != domain.KindUpstream {
		return false
	}
	status := de.HTTPStatus()
	return status >= http.StatusInternalServerError || status == http.StatusTooManyRequests
}

func abandon(job Job) Job {
	if !job.State.Terminal() {
		job.State = StateAbandoned
	}
	return job
}

func (p *Poller) finish(logger infra.Logger, job Job) Job {
	metrics.LifecycleOutcomesTotal.WithLabelValues(job.State.String()).Inc()
	evt := logger.Debug()
	if job.State == StateErrored || job.State == StateTimedOut {
		evt = logger.Warn().Err(job.Err)
	}
	evt.Str("prediction_id", job.Prediction.ID).
		Str("state", job.State.String()).
		Int("attempts", job.Attempts).
		Msg("lifecycle: finished")
	return job
}
