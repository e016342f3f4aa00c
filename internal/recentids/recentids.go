// Package recentids keeps a bounded, insertion-ordered set of recently
// processed event ids. It is a cheap first short-circuit for the poller;
// losing it only costs extra store lookups.
package recentids

import (
	"container/list"
	"context"
	"sync"
)

// Cache is a bounded FIFO set of event ids.
type Cache interface {
	Contains(ctx context.Context, id string) (bool, error)
	// Add records ids, evicting the oldest entries beyond the capacity.
	Add(ctx context.Context, capacity int, ids ...string) error
}

// Memory is an in-process Cache. It is not shared between invocations.
type Memory struct {
	mu    sync.Mutex
	order *list.List
	index map[string]*list.Element
}

// NewMemory returns an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{order: list.New(), index: make(map[string]*list.Element)}
}

func (m *Memory) Contains(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.index[id]
	return ok, nil
}

func (m *Memory) Add(_ context.Context, capacity int, ids ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if _, ok := m.index[id]; ok {
			continue
		}
		m.index[id] = m.order.PushBack(id)
	}
	for capacity > 0 && m.order.Len() > capacity {
		oldest := m.order.Front()
		m.order.Remove(oldest)
		delete(m.index, oldest.Value.(string))
	}
	return nil
}

// Len returns the number of cached ids.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}
