package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/pfrederiksen/ducksgather/internal/ingest"
)

// Run is one row of ingest_runs
type Run struct {
	ID          string     `db:"run_id" json:"run_id"`
	BaseURL     string     `db:"base_url" json:"base_url"`
	Status      string     `db:"status" json:"status"`
	StopReason  *string    `db:"stop_reason" json:"stop_reason,omitempty"`
	Error       *string    `db:"error" json:"error,omitempty"`
	Pages       int        `db:"pages" json:"pages"`
	Extracted   int        `db:"extracted" json:"extracted"`
	ParseErrors int        `db:"parse_errors" json:"parse_errors"`
	Validated   int        `db:"validated" json:"validated"`
	Rejected    int        `db:"rejected" json:"rejected"`
	Expired     int        `db:"expired" json:"expired"`
	Duplicates  int        `db:"duplicates" json:"duplicates"`
	Persisted   int        `db:"persisted" json:"persisted"`
	Failed      int        `db:"failed" json:"failed"`
	StartedAt   time.Time  `db:"started_at" json:"started_at"`
	FinishedAt  *time.Time `db:"finished_at" json:"finished_at,omitempty"`
}

// RunRepository records ingestion runs. It satisfies ingest.RunLog.
type RunRepository struct {
	db *sqlx.DB
}

// NewRunRepository creates a new run repository.
func NewRunRepository(db *sqlx.DB) *RunRepository {
	return &RunRepository{db: db}
}

// StartRun inserts the row for a run that is starting
func (r *RunRepository) StartRun(ctx context.Context, report *ingest.Report) error {
	query := `INSERT INTO ingest_runs (run_id, base_url, status, started_at) VALUES ($1, $2, 'running', $3)`

	if _, err := r.db.ExecContext(ctx, query, report.RunID, report.BaseURL, report.StartedAt); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// FinishRun writes the final state and counters of a run
func (r *RunRepository) FinishRun(ctx context.Context, report *ingest.Report) error {
	query := `
		UPDATE ingest_runs SET
			status = $2, stop_reason = $3, error = $4,
			pages = $5, extracted = $6, parse_errors = $7, validated = $8,
			rejected = $9, expired = $10, duplicates = $11, persisted = $12, failed = $13,
			finished_at = $14
		WHERE run_id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		report.RunID, report.State.String(), nullString(string(report.StopReason)), nullString(report.Error),
		report.Pages, report.Extracted, report.ParseErrors, report.Validated,
		report.Rejected, report.Expired, report.Duplicates, report.Persisted, report.Failed,
		report.FinishedAt,
	)
	return execRequireRows(result, err, fmt.Errorf("run not found: %s", report.RunID))
}

// Recent returns the latest runs, newest first
func (r *RunRepository) Recent(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT run_id, base_url, status, stop_reason, error, pages, extracted, parse_errors,
			validated, rejected, expired, duplicates, persisted, failed, started_at, finished_at
		FROM ingest_runs
		ORDER BY started_at DESC
		LIMIT $1
	`

	runs := []*Run{}
	if err := r.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}
