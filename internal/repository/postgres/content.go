package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/sales-celebrations/internal/domain"
	"github.com/ignite/sales-celebrations/internal/service/content"
)

// ContentRepo implements content.Repository over the celebration_messages and
// celebration_gifs tables.
type ContentRepo struct{ db *sql.DB }

// NewContentRepo creates a Postgres-backed content repository.
func NewContentRepo(db *sql.DB) *ContentRepo { return &ContentRepo{db: db} }

// contentColumns selects a ContentItem from either table. GIF rows expose
// their url as body and have no pairing.
func contentColumns(kind domain.ContentKind) (table, columns string) {
	if kind == domain.ContentGIF {
		return "celebration_gifs",
			"id, url, assigned_to, category, active, last_used_at, last_used_for, use_count, NULL::text"
	}
	return "celebration_messages",
		"id, body, assigned_to, category, active, last_used_at, last_used_for, use_count, paired_gif_id"
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContentItem(row rowScanner, kind domain.ContentKind) (domain.ContentItem, error) {
	var (
		it                          domain.ContentItem
		assignedTo, usedFor, paired sql.NullString
		lastUsed                    sql.NullTime
	)
	if err := row.Scan(&it.ID, &it.Body, &assignedTo, &it.Category, &it.Active,
		&lastUsed, &usedFor, &it.UseCount, &paired); err != nil {
		return it, err
	}
	it.Kind = kind
	if assignedTo.Valid {
		it.AssignedTo = &assignedTo.String
	}
	if usedFor.Valid {
		it.LastUsedFor = &usedFor.String
	}
	if paired.Valid {
		it.PairedGIFID = &paired.String
	}
	if lastUsed.Valid {
		it.LastUsedAt = &lastUsed.Time
	}
	return it, nil
}

func (r *ContentRepo) ActiveItems(ctx context.Context, kind domain.ContentKind, category domain.CelebrationType, sellerID string) ([]domain.ContentItem, error) {
	table, cols := contentColumns(kind)
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE active = true AND category = $1 AND (assigned_to IS NULL OR assigned_to = $2)
		ORDER BY id
	`, cols, table), string(category), sellerID)
	if err != nil {
		return nil, fmt.Errorf("list active %s content: %w", kind, err)
	}
	defer rows.Close()

	var out []domain.ContentItem
	for rows.Next() {
		it, err := scanContentItem(rows, kind)
		if err != nil {
			return nil, fmt.Errorf("scan %s content: %w", kind, err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *ContentRepo) Item(ctx context.Context, kind domain.ContentKind, id string) (*domain.ContentItem, error) {
	table, cols := contentColumns(kind)
	row := r.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, cols, table), id)
	it, err := scanContentItem(row, kind)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, content.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s content: %w", kind, err)
	}
	return &it, nil
}

func (r *ContentRepo) RecordUse(ctx context.Context, kind domain.ContentKind, id, sellerID string, at time.Time) error {
	table, _ := contentColumns(kind)
	_, err := r.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s SET use_count = use_count + 1, last_used_at = $2, last_used_for = NULLIF($3, '')
		WHERE id = $1
	`, table), id, at, sellerID)
	if err != nil {
		return fmt.Errorf("record %s use: %w", kind, err)
	}
	return nil
}
