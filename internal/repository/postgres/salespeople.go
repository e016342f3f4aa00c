package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ignite/sales-celebrations/internal/domain"
)

// SalespersonRepo reads seller display attributes.
type SalespersonRepo struct{ db *sql.DB }

func NewSalespersonRepo(db *sql.DB) *SalespersonRepo { return &SalespersonRepo{db: db} }

// Salesperson returns the seller, or nil when none is registered.
func (r *SalespersonRepo) Salesperson(ctx context.Context, sellerID string) (*domain.Salesperson, error) {
	var (
		sp     domain.Salesperson
		gender sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT seller_id, display_name, gender FROM salespeople WHERE seller_id = $1`,
		sellerID,
	).Scan(&sp.SellerID, &sp.DisplayName, &gender)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get salesperson: %w", err)
	}
	if gender.Valid && gender.String != "" {
		sp.Gender = &gender.String
	}
	return &sp, nil
}
