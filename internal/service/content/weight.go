package content

import (
	"sync"
	"time"

	"github.com/ignite/sales-celebrations/internal/domain"
)

// Cooldown keeps a seller-specific item out of the pool after it was used.
const Cooldown = 24 * time.Hour

// Weight of a never-used item.
const unusedWeight = 10

// Weight returns the selection weight of an item at the given instant.
func Weight(item domain.ContentItem, now time.Time) int {
	if item.LastUsedAt == nil {
		return unusedWeight
	}
	hours := now.Sub(*item.LastUsedAt).Hours()
	switch {
	case hours > 168:
		return 8
	case hours > 72:
		return 6
	case hours > 24:
		return 4
	case hours > 12:
		return 2
	default:
		return 1
	}
}

// RandSource yields uniform values in [0, 1). *math/rand.Rand satisfies it.
type RandSource interface {
	Float64() float64
}

// lockedSource serialises access to a RandSource that is not goroutine safe.
type lockedSource struct {
	mu  sync.Mutex
	src RandSource
}

func (l *lockedSource) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.src.Float64()
}

// Pick draws one item with probability proportional to its weight.
// It returns false for an empty pool.
func Pick(items []domain.ContentItem, now time.Time, src RandSource) (domain.ContentItem, bool) {
	if len(items) == 0 {
		return domain.ContentItem{}, false
	}
	total := 0
	weights := make([]int, len(items))
	for i, it := range items {
		weights[i] = Weight(it, now)
		total += weights[i]
	}

	r := src.Float64() * float64(total)
	cum := 0.0
	for i, w := range weights {
		cum += float64(w)
		if r < cum {
			return items[i], true
		}
	}
	return items[len(items)-1], true
}

// MixPools applies the pool-mixing rule. Seller items win outright when they
// have been used no more, on average, than generic ones; otherwise both
// pools compete.
func MixPools(seller, generic []domain.ContentItem) []domain.ContentItem {
	switch {
	case len(seller) == 0:
		return generic
	case len(generic) == 0:
		return seller
	}
	if meanUseCount(seller) <= meanUseCount(generic) {
		return seller
	}
	out := make([]domain.ContentItem, 0, len(seller)+len(generic))
	out = append(out, seller...)
	return append(out, generic...)
}

func meanUseCount(items []domain.ContentItem) float64 {
	sum := 0
	for _, it := range items {
		sum += it.UseCount
	}
	return float64(sum) / float64(len(items))
}

// candidates splits active items into the seller and generic pools, applies
// the seller cooldown and mixes the result.
func candidates(items []domain.ContentItem, sellerID string, now time.Time) []domain.ContentItem {
	var seller, generic []domain.ContentItem
	for _, it := range items {
		if !it.Active {
			continue
		}
		if it.Generic() {
			generic = append(generic, it)
			continue
		}
		if *it.AssignedTo != sellerID {
			continue
		}
		if it.LastUsedAt != nil && now.Sub(*it.LastUsedAt) < Cooldown {
			continue
		}
		seller = append(seller, it)
	}
	return MixPools(seller, generic)
}
