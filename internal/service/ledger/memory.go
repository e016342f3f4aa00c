package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ignite/sales-celebrations/internal/domain"
)

// MemoryRepository is a mutex-guarded in-memory Repository. It honours the
// same uniqueness contract as the Postgres store and is used by tests and
// local dry runs.
type MemoryRepository struct {
	mu     sync.Mutex
	claims map[domain.ClaimKey]*domain.DeliveryClaim
}

// NewMemoryRepository returns an empty in-memory ledger.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{claims: make(map[domain.ClaimKey]*domain.DeliveryClaim)}
}

func (m *MemoryRepository) HasClaim(_ context.Context, eventID string, t domain.CelebrationType) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.claims {
		if k.EventID == eventID && k.Type == t {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryRepository) HasAnyClaim(_ context.Context, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.claims {
		if k.EventID == eventID {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryRepository) ClaimExists(_ context.Context, key domain.ClaimKey) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.claims[key]
	return ok, nil
}

func (m *MemoryRepository) InsertClaim(_ context.Context, c *domain.DeliveryClaim) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.claims[c.Key()]; ok {
		return false, nil
	}
	cp := *c
	m.claims[c.Key()] = &cp
	return true, nil
}

func (m *MemoryRepository) UpdateClaim(_ context.Context, id string, status domain.ClaimStatus, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.claims {
		if c.ID == id {
			c.Status, c.Error, c.UpdatedAt = status, errMsg, time.Now().UTC()
			return nil
		}
	}
	return ErrClaimNotFound
}

func (m *MemoryRepository) DeleteClaims(_ context.Context, eventID string, t domain.CelebrationType) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.claims {
		if k.EventID == eventID && (t == "" || k.Type == t) {
			delete(m.claims, k)
			n++
		}
	}
	return n, nil
}

func (m *MemoryRepository) ListPending(_ context.Context, claimedBefore time.Time, limit int) ([]domain.DeliveryClaim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.DeliveryClaim
	for _, c := range m.claims {
		if c.Status == domain.ClaimPending && c.ClaimedAt.Before(claimedBefore) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClaimedAt.Before(out[j].ClaimedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Claims returns a snapshot of every stored claim.
func (m *MemoryRepository) Claims() []domain.DeliveryClaim {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.DeliveryClaim, 0, len(m.claims))
	for _, c := range m.claims {
		out = append(out, *c)
	}
	return out
}
