package content

import (
	"context"
	"time"

	"github.com/ignite/sales-celebrations/internal/domain"
)

// Repository reads celebration content and records its usage.
type Repository interface {
	// ActiveItems returns active items of the kind and category that are
	// either generic or assigned to sellerID.
	ActiveItems(ctx context.Context, kind domain.ContentKind, category domain.CelebrationType, sellerID string) ([]domain.ContentItem, error)

	// Item returns one item by id, or ErrItemNotFound.
	Item(ctx context.Context, kind domain.ContentKind, id string) (*domain.ContentItem, error)

	// RecordUse increments the use count and stamps last use.
	RecordUse(ctx context.Context, kind domain.ContentKind, id, sellerID string, at time.Time) error
}
