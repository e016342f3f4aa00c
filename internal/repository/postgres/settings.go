package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ignite/sales-celebrations/internal/domain"
	"github.com/lib/pq"
)

// SettingsRepo reads the operator-editable celebration settings row.
type SettingsRepo struct{ db *sql.DB }

// NewSettingsRepo creates a Postgres-backed settings repository.
func NewSettingsRepo(db *sql.DB) *SettingsRepo { return &SettingsRepo{db: db} }

// LoadSettings overlays the non-null columns of the settings row onto base.
// A missing row leaves base unchanged.
func (r *SettingsRepo) LoadSettings(ctx context.Context, base domain.Settings) (domain.Settings, error) {
	var (
		threshold     sql.NullFloat64
		marker, match sql.NullString
		caseSensitive sql.NullBool
		fields        []string
		enabled       sql.NullBool
		buffer, cache sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT big_sale_threshold, tgl_marker_text, tgl_match, tgl_case_sensitive, tgl_fields,
			polling_enabled, lookback_buffer_minutes, recent_ids_cache_size
		FROM celebration_settings
		WHERE id = 1
	`).Scan(&threshold, &marker, &match, &caseSensitive, pq.Array(&fields), &enabled, &buffer, &cache)
	if errors.Is(err, sql.ErrNoRows) {
		return base, nil
	}
	if err != nil {
		return base, fmt.Errorf("load settings: %w", err)
	}

	s := base
	if threshold.Valid {
		s.BigSaleThreshold = threshold.Float64
	}
	if marker.Valid && marker.String != "" {
		s.TGLMarkerText = marker.String
	}
	if match.Valid && match.String != "" {
		s.TGLMatch = match.String
	}
	if caseSensitive.Valid {
		s.TGLCaseSensitive = caseSensitive.Bool
	}
	if len(fields) > 0 {
		s.TGLFields = fields
	}
	if enabled.Valid {
		s.PollingEnabled = enabled.Bool
	}
	if buffer.Valid {
		s.LookbackBufferMinutes = int(buffer.Int64)
	}
	if cache.Valid {
		s.RecentIDsCacheSize = int(cache.Int64)
	}
	return s, nil
}
