package domain

import (
	"context"
	"time"
)

// PredictionRepository persists prediction snapshots for auditing and
// background reconciliation.
type PredictionRepository interface {
	Create(ctx context.Context, rec *PredictionRecord) error
	UpdateSnapshot(ctx context.Context, p Prediction) error
	GetByID(ctx context.Context, id string) (*PredictionRecord, error)
	ListPending(ctx context.Context, limit int, idle time.Duration) ([]PredictionRecord, error)
}
