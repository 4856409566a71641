package infra

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"movieposter/internal/metrics"
)

// SQLExecutor is the query surface the repositories depend on.
type SQLExecutor interface {
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
}

// ErrMissingMarker is returned for queries without a leading --sql <uuid> line.
var ErrMissingMarker = errors.New("sql marker missing or invalid")

var markerRegexp = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// SQLRunner executes marked queries against the pool and logs each one under
// its marker so statements can be traced back to their constant.
type SQLRunner struct {
	Pool   *pgxpool.Pool
	Logger Logger
}

func NewSQLRunner(pool *pgxpool.Pool, logger Logger) *SQLRunner {
	return &SQLRunner{Pool: pool, Logger: logger}
}

func (r *SQLRunner) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	marker, trimmed, err := ExtractMarker(query)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	start := time.Now()
	tag, err := r.Pool.Exec(ctx, trimmed, args...)
	r.observe("exec", marker, start, err).Int64("rows", tag.RowsAffected()).Msg("sql exec")
	return tag, err
}

func (r *SQLRunner) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	marker, trimmed, err := ExtractMarker(query)
	if err != nil {
		return errorRow{err: err}
	}
	return &observedRow{runner: r, row: r.Pool.QueryRow(ctx, trimmed, args...), marker: marker, start: time.Now()}
}

func (r *SQLRunner) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	marker, trimmed, err := ExtractMarker(query)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	rows, err := r.Pool.Query(ctx, trimmed, args...)
	r.observe("query", marker, start, err).Msg("sql query")
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// observe records the statement in metrics and returns a log event at error
// level on failure, debug otherwise. A missing row is not a failure.
func (r *SQLRunner) observe(op, marker string, start time.Time, err error) *zerolog.Event {
	took := time.Since(start)
	outcome := "ok"
	if err != nil && !IsNoRows(err) {
		outcome = "error"
	}
	metrics.DBQueriesTotal.WithLabelValues(op, outcome).Inc()
	metrics.DBQueryDuration.WithLabelValues(op).Observe(took.Seconds())

	evt := r.Logger.Debug()
	if outcome == "error" {
		evt = r.Logger.Error().Err(err)
	}
	return evt.Str("sql", marker).Dur("took", took)
}

// IsNoRows reports whether err means the query matched nothing.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

type observedRow struct {
	runner *SQLRunner
	row    pgx.Row
	marker string
	start  time.Time
}

func (o *observedRow) Scan(dest ...any) error {
	err := o.row.Scan(dest...)
	o.runner.observe("query_row", o.marker, o.start, err).Msg("sql query_row")
	return err
}

type errorRow struct {
	err error
}

func (e errorRow) Scan(dest ...any) error {
	return e.err
}

// ExtractMarker splits a marked query into its marker id and executable SQL.
func ExtractMarker(query string) (string, string, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return "", "", errors.New("empty query")
	}
	markerLine, rest, _ := strings.Cut(trimmed, "\n")
	markerLine = strings.TrimSpace(markerLine)
	if !markerRegexp.MatchString(markerLine) {
		return "", "", ErrMissingMarker
	}
	return strings.TrimPrefix(markerLine, "--sql "), strings.TrimSpace(rest), nil
}

var _ SQLExecutor = (*SQLRunner)(nil)
