package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ignite/sales-celebrations/internal/domain"
)

// PollRunRepo records poller invocations.
type PollRunRepo struct{ db *sql.DB }

// NewPollRunRepo creates a Postgres-backed poll run repository.
func NewPollRunRepo(db *sql.DB) *PollRunRepo { return &PollRunRepo{db: db} }

func (r *PollRunRepo) StartRun(ctx context.Context, run *domain.PollRun) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO poll_runs (id, variant, window_from, window_to, status, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, run.ID, string(run.Variant), run.Window.From, run.Window.To, string(run.Status), run.StartedAt)
	if err != nil {
		return fmt.Errorf("start poll run: %w", err)
	}
	return nil
}

func (r *PollRunRepo) FinishRun(ctx context.Context, run *domain.PollRun) error {
	runErrors := run.Errors
	if runErrors == nil {
		runErrors = []string{}
	}
	errs, err := json.Marshal(runErrors)
	if err != nil {
		return fmt.Errorf("marshal run errors: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE poll_runs SET
			window_from = $2, window_to = $3, status = $4,
			events_found = $5, events_processed = $6, events_skipped = $7,
			duration_ms = $8, error = NULLIF($9, ''), errors = $10, finished_at = $11
		WHERE id = $1
	`, run.ID, run.Window.From, run.Window.To, string(run.Status),
		run.EventsFound, run.EventsProcessed, run.EventsSkipped,
		run.DurationMs, run.Error, errs, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("finish poll run: %w", err)
	}
	return nil
}

// RecentRuns returns the most recently started runs first.
func (r *PollRunRepo) RecentRuns(ctx context.Context, limit int) ([]domain.PollRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, variant, window_from, window_to, status, events_found, events_processed, events_skipped,
			duration_ms, COALESCE(error, ''), COALESCE(errors, '[]'::jsonb), started_at, finished_at
		FROM poll_runs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list poll runs: %w", err)
	}
	defer rows.Close()

	var out []domain.PollRun
	for rows.Next() {
		var (
			run      domain.PollRun
			errsJSON []byte
			finished sql.NullTime
		)
		if err := rows.Scan(&run.ID, &run.Variant, &run.Window.From, &run.Window.To, &run.Status,
			&run.EventsFound, &run.EventsProcessed, &run.EventsSkipped, &run.DurationMs,
			&run.Error, &errsJSON, &run.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("scan poll run: %w", err)
		}
		if len(errsJSON) > 0 {
			_ = json.Unmarshal(errsJSON, &run.Errors)
		}
		if finished.Valid {
			run.FinishedAt = &finished.Time
		}
		out = append(out, run)
	}
	return out, rows.Err()
}
