// Package reconcile settles predictions whose webhook never arrived.
package reconcile

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"movieposter/internal/domain"
	"movieposter/internal/infra"
	"movieposter/internal/lifecycle"
)

const (
	defaultGrace   = 6 * time.Minute
	defaultMaxAge  = 30 * time.Minute
	timedOutDetail = "The poster is taking too long to generate. Please try again."
)

// Store is the subset of the prediction store the reconciler writes to.
type Store interface {
	ListPending(ctx context.Context, limit int, idle time.Duration) ([]domain.PredictionRecord, error)
	UpdateSnapshot(ctx context.Context, p domain.Prediction) error
	MarkTimedOut(ctx context.Context, id, detail string) error
}

// Reconciler checks stale pending predictions once per sweep. Rows touched
// within Grace are left to the client that is still polling them; rows older
// than MaxAge that are still running are recorded as timed out.
type Reconciler struct {
	Store        Store
	Fetcher      lifecycle.Fetcher
	BatchSize    int
	Concurrency  int
	Grace        time.Duration
	MaxAge       time.Duration
	FetchTimeout time.Duration
	Logger       *infra.Logger

	now func() time.Time
}

// New wires a reconciler from the worker configuration.
func New(store Store, fetcher lifecycle.Fetcher, cfg *infra.Config, logger *infra.Logger) *Reconciler {
	return &Reconciler{
		Store:        store,
		Fetcher:      fetcher,
		BatchSize:    cfg.Worker.BatchSize,
		Concurrency:  cfg.Worker.Concurrency,
		Grace:        cfg.Worker.Grace,
		MaxAge:       cfg.Worker.MaxAge,
		FetchTimeout: cfg.UpstreamTimeout,
		Logger:       logger,
	}
}

// Run sweeps immediately and then on every tick until ctx is done.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) error {
	logger := infra.LoggerOrDiscard(r.Logger)
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info().Dur("interval", interval).Dur("grace", r.grace()).Msg("worker: started")
	for {
		if n, err := r.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("worker: sweep failed")
		} else if n > 0 {
			logger.Info().Int("settled", n).Msg("worker: sweep finished")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Sweep reconciles one batch of stale pending predictions and returns how
// many reached a final state.
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	pending, err := r.Store.ListPending(ctx, r.BatchSize, r.grace())
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	results := make([]bool, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	limit := r.Concurrency
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)
	for i := range pending {
		rec := pending[i]
		g.Go(func() error {
			settled, err := r.reconcile(gctx, rec)
			results[i] = settled
			return err
		})
	}
	err = g.Wait()

	settled := 0
	for _, ok := range results {
		if ok {
			settled++
		}
	}
	return settled, err
}

// reconcile fetches rec once. Only store failures are returned; provider
// failures leave the row pending for the next sweep.
func (r *Reconciler) reconcile(ctx context.Context, rec domain.PredictionRecord) (bool, error) {
	logger := infra.LoggerOrDiscard(r.Logger).With().Str("prediction_id", rec.ID).Logger()

	fetchCtx := ctx
	if r.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, r.FetchTimeout)
		defer cancel()
	}
	snapshot, err := r.Fetcher.GetPrediction(fetchCtx, rec.ID)
	if err == nil && snapshot == nil {
		err = errors.New("empty prediction response")
	}
	if err != nil {
		if ctx.Err() != nil {
			return false, nil
		}
		logger.Warn().Err(err).Msg("worker: poll failed, will retry")
		return false, nil
	}

	job := lifecycle.Advance(lifecycle.Submit(rec.Prediction), *snapshot)
	switch {
	case job.State == lifecycle.StateSucceeded, job.State == lifecycle.StateFailed:
		if err := r.Store.UpdateSnapshot(ctx, job.Prediction); err != nil {
			return false, err
		}
		logger.Info().Str("status", string(job.Prediction.Status)).Msg("worker: prediction settled")
		return true, nil
	case job.State == lifecycle.StateTimedOut, r.age(rec) >= r.maxAge():
		if err := r.Store.MarkTimedOut(ctx, rec.ID, timedOutDetail); err != nil {
			return false, err
		}
		logger.Info().Dur("age", r.age(rec)).Msg("worker: prediction expired")
		return true, nil
	}
	// Still running: storing the snapshot bumps updated_at, so the row waits
	// another grace period before the next check.
	if err := r.Store.UpdateSnapshot(ctx, job.Prediction); err != nil {
		return false, err
	}
	return false, nil
}

func (r *Reconciler) grace() time.Duration {
	if r.Grace > 0 {
		return r.Grace
	}
	return defaultGrace
}

func (r *Reconciler) maxAge() time.Duration {
	if r.MaxAge > 0 {
		return r.MaxAge
	}
	return defaultMaxAge
}

func (r *Reconciler) age(rec domain.PredictionRecord) time.Duration {
	started := rec.UpdatedAt
	if rec.CreatedAt != nil {
		started = *rec.CreatedAt
	}
	if started.IsZero() {
		return 0
	}
	now := time.Now
	if r.now != nil {
		now = r.now
	}
	return now().Sub(started)
}
