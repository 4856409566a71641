package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"movieposter/internal/domain"
	"movieposter/internal/infra"
	"movieposter/internal/sqlinline"
)

// PredictionRepositoryPG implements domain.PredictionRepository.
type PredictionRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewPredictionRepository creates a repository over a marked-SQL executor.
func NewPredictionRepository(sql infra.SQLExecutor) *PredictionRepositoryPG {
	return &PredictionRepositoryPG{sql: sql}
}

// EnsureSchema creates the predictions table when it does not exist yet.
func (r *PredictionRepositoryPG) EnsureSchema(ctx context.Context) error {
	if _, err := r.sql.Exec(ctx, sqlinline.QCreatePredictionsTable); err != nil {
		return fmt.Errorf("ensure predictions schema: %w", err)
	}
	return nil
}

// Create inserts a new prediction record. Inserting an id twice is a no-op.
func (r *PredictionRepositoryPG) Create(ctx context.Context, rec *domain.PredictionRecord) error {
	output, err := encodeOutput(rec.Output)
	if err != nil {
		return err
	}
	_, err = r.sql.Exec(ctx, sqlinline.QInsertPrediction,
		rec.ID,
		string(rec.Status),
		output,
		rec.Detail,
		rec.Model,
		rec.Prompt,
		rec.Style,
		rec.ActorID,
		rec.ActorName,
		rec.CreatedAt,
		rec.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert prediction: %w", err)
	}
	return nil
}

// UpdateSnapshot stores the latest snapshot. Snapshots of unknown or already
// settled predictions are ignored.
func (r *PredictionRepositoryPG) UpdateSnapshot(ctx context.Context, p domain.Prediction) error {
	output, err := encodeOutput(p.Output)
	if err != nil {
		return err
	}
	if _, err := r.sql.Exec(ctx, sqlinline.QUpdatePredictionSnapshot, p.ID, string(p.Status), output, p.Detail, p.CompletedAt); err != nil {
		return fmt.Errorf("update prediction: %w", err)
	}
	return nil
}

// MarkTimedOut settles a prediction the reconciler gave up on with the
// timed_out status, keeping it apart from predictions the model failed.
func (r *PredictionRepositoryPG) MarkTimedOut(ctx context.Context, id, detail string) error {
	if _, err := r.sql.Exec(ctx, sqlinline.QMarkPredictionTimedOut, id, detail, string(domain.PredictionTimedOut)); err != nil {
		return fmt.Errorf("mark prediction timed out: %w", err)
	}
	return nil
}

// GetByID fetches a prediction record by id.
func (r *PredictionRepositoryPG) GetByID(ctx context.Context, id string) (*domain.PredictionRecord, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectPredictionByID, id)
	rec, err := scanRecord(row)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.NotFound("Prediction not found.")
		}
		return nil, fmt.Errorf("select prediction: %w", err)
	}
	return rec, nil
}

// ListPending returns unsettled predictions not updated for at least idle,
// oldest first.
func (r *PredictionRepositoryPG) ListPending(ctx context.Context, limit int, idle time.Duration) ([]domain.PredictionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	if idle < 0 {
		idle = 0
	}
	rows, err := r.sql.Query(ctx, sqlinline.QListPendingPredictions, limit, idle.Seconds())
	if err != nil {
		return nil, fmt.Errorf("list pending predictions: %w", err)
	}
	defer rows.Close()

	var out []domain.PredictionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending prediction: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pending predictions: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*domain.PredictionRecord, error) {
	var (
		rec       domain.PredictionRecord
		status    string
		output    []byte
		createdAt time.Time
	)
	if err := row.Scan(
		&rec.ID,
		&status,
		&output,
		&rec.Detail,
		&rec.Model,
		&rec.Prompt,
		&rec.Style,
		&rec.ActorID,
		&rec.ActorName,
		&createdAt,
		&rec.CompletedAt,
		&rec.UpdatedAt,
	); err != nil {
		return nil, err
	}
	rec.Status = domain.PredictionStatus(status)
	rec.CreatedAt = &createdAt
	if len(output) > 0 {
		if err := json.Unmarshal(output, &rec.Output); err != nil {
			return nil, fmt.Errorf("decode prediction output: %w", err)
		}
	}
	return &rec, nil
}

func encodeOutput(output []string) ([]byte, error) {
	if output == nil {
		output = []string{}
	}
	raw, err := json.Marshal(output)
	if err != nil {
		return nil, fmt.Errorf("encode prediction output: %w", err)
	}
	return raw, nil
}

var _ domain.PredictionRepository = (*PredictionRepositoryPG)(nil)
