package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/ignite/sales-celebrations/internal/domain"
)

// EstimateRepo persists the projection of every fetched sale.
type EstimateRepo struct{ db *sql.DB }

// NewEstimateRepo creates a Postgres-backed estimate repository.
func NewEstimateRepo(db *sql.DB) *EstimateRepo { return &EstimateRepo{db: db} }

func (r *EstimateRepo) EstimateExists(ctx context.Context, externalID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM estimates WHERE external_id = $1)`,
		externalID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("estimate exists: %w", err)
	}
	return exists, nil
}

// InsertEstimate writes the estimate once. It returns false when a row for
// the external id already exists; the existing row is never modified.
func (r *EstimateRepo) InsertEstimate(ctx context.Context, e *domain.Estimate) (bool, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	raw := e.Raw
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO estimates (id, external_id, poll_run_id, seller_id, seller_name, customer_id, customer_name,
			amount, sold_at, is_big_sale, is_tgl, raw, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		ON CONFLICT (external_id) DO NOTHING
	`, e.ID, e.ExternalID, e.PollRunID, e.SellerID, e.SellerName, e.CustomerID, e.CustomerName,
		e.Amount, e.SoldAt, e.IsBigSale, e.IsTGL, raw)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert estimate: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert estimate rows affected: %w", err)
	}
	return n == 1, nil
}
