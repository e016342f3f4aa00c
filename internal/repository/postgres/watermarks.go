package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/sales-celebrations/internal/domain"
)

// WatermarkRepo stores named poll watermarks.
type WatermarkRepo struct{ db *sql.DB }

// NewWatermarkRepo creates a Postgres-backed watermark repository.
func NewWatermarkRepo(db *sql.DB) *WatermarkRepo { return &WatermarkRepo{db: db} }

// Watermark returns the named watermark, or nil if it was never written.
func (r *WatermarkRepo) Watermark(ctx context.Context, name string) (*domain.Watermark, error) {
	var w domain.Watermark
	err := r.db.QueryRowContext(ctx,
		`SELECT name, last_poll_at, updated_at FROM poll_watermarks WHERE name = $1`,
		name,
	).Scan(&w.Name, &w.LastPollAt, &w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get watermark: %w", err)
	}
	return &w, nil
}

// AdvanceWatermark moves the watermark to at. It never moves backwards, so
// overlapping runs finishing out of order cannot regress it.
func (r *WatermarkRepo) AdvanceWatermark(ctx context.Context, name string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO poll_watermarks (name, last_poll_at, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE SET
			last_poll_at = GREATEST(poll_watermarks.last_poll_at, EXCLUDED.last_poll_at),
			updated_at = NOW()
	`, name, at)
	if err != nil {
		return fmt.Errorf("advance watermark: %w", err)
	}
	return nil
}
