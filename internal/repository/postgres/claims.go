package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ignite/sales-celebrations/internal/domain"
	"github.com/ignite/sales-celebrations/internal/service/ledger"
)

// ClaimRepo implements ledger.Repository against PostgreSQL. The unique index
// on (event_id, celebration_type, channel_id) is what makes InsertClaim safe
// across processes.
type ClaimRepo struct{ db *sql.DB }

// NewClaimRepo creates a Postgres-backed claim ledger.
func NewClaimRepo(db *sql.DB) *ClaimRepo { return &ClaimRepo{db: db} }

func (r *ClaimRepo) HasClaim(ctx context.Context, eventID string, t domain.CelebrationType) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM delivery_claims WHERE event_id = $1 AND celebration_type = $2)`,
		eventID, string(t),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("has claim: %w", err)
	}
	return exists, nil
}

func (r *ClaimRepo) HasAnyClaim(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM delivery_claims WHERE event_id = $1)`,
		eventID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("has any claim: %w", err)
	}
	return exists, nil
}

func (r *ClaimRepo) ClaimExists(ctx context.Context, key domain.ClaimKey) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM delivery_claims
		WHERE event_id = $1 AND celebration_type = $2 AND channel_id = $3)
	`, key.EventID, string(key.Type), key.ChannelID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("claim exists: %w", err)
	}
	return exists, nil
}

func (r *ClaimRepo) InsertClaim(ctx context.Context, c *domain.DeliveryClaim) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO delivery_claims (id, event_id, celebration_type, channel_id, status, claimed_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (event_id, celebration_type, channel_id) DO NOTHING
	`, c.ID, c.EventID, string(c.Type), c.ChannelID, string(c.Status), c.ClaimedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert claim: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert claim rows affected: %w", err)
	}
	return n == 1, nil
}

func (r *ClaimRepo) UpdateClaim(ctx context.Context, id string, status domain.ClaimStatus, errMsg string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE delivery_claims SET status = $2, error = NULLIF($3, ''), updated_at = NOW()
		WHERE id = $1
	`, id, string(status), errMsg)
	if err != nil {
		return fmt.Errorf("update claim: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ledger.ErrClaimNotFound
	}
	return nil
}

func (r *ClaimRepo) DeleteClaims(ctx context.Context, eventID string, t domain.CelebrationType) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM delivery_claims WHERE event_id = $1 AND ($2 = '' OR celebration_type = $2)`,
		eventID, string(t),
	)
	if err != nil {
		return 0, fmt.Errorf("delete claims: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r *ClaimRepo) ListPending(ctx context.Context, claimedBefore time.Time, limit int) ([]domain.DeliveryClaim, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, event_id, celebration_type, channel_id, status, COALESCE(error, ''), claimed_at, updated_at
		FROM delivery_claims
		WHERE status = 'pending' AND claimed_at < $1
		ORDER BY claimed_at
		LIMIT $2
	`, claimedBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending claims: %w", err)
	}
	defer rows.Close()

	var out []domain.DeliveryClaim
	for rows.Next() {
		var c domain.DeliveryClaim
		if err := rows.Scan(&c.ID, &c.EventID, &c.Type, &c.ChannelID, &c.Status, &c.Error, &c.ClaimedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
