package ledger

import (
	"context"
	"time"

	"github.com/ignite/sales-celebrations/internal/domain"
)

// Repository defines the data access contract for delivery claims.
// Implementations must enforce uniqueness of (event_id, celebration_type,
// channel_id) atomically and be safe for concurrent use across processes.
type Repository interface {
	// HasClaim reports whether any claim exists for the event and type,
	// on any channel, in any status.
	HasClaim(ctx context.Context, eventID string, t domain.CelebrationType) (bool, error)

	// HasAnyClaim reports whether any claim exists for the event.
	HasAnyClaim(ctx context.Context, eventID string) (bool, error)

	// ClaimExists reports whether the exact key has a claim.
	ClaimExists(ctx context.Context, key domain.ClaimKey) (bool, error)

	// InsertClaim inserts a pending claim. It returns false, nil when the key
	// is already present.
	InsertClaim(ctx context.Context, c *domain.DeliveryClaim) (bool, error)

	// UpdateClaim records the outcome of a delivery attempt. Returns
	// ErrClaimNotFound if the claim does not exist.
	UpdateClaim(ctx context.Context, id string, status domain.ClaimStatus, errMsg string) error

	// DeleteClaims removes claims for an event. An empty type removes every type.
	DeleteClaims(ctx context.Context, eventID string, t domain.CelebrationType) (int64, error)

	// ListPending returns pending claims claimed before the cutoff, oldest first.
	ListPending(ctx context.Context, claimedBefore time.Time, limit int) ([]domain.DeliveryClaim, error)
}
