package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// MemStore is an in-memory [Store] that keeps at most capacity records,
// evicting the oldest first.
type MemStore struct {
	mu       sync.RWMutex
	capacity int
	order    []uuid.UUID
	byID     map[uuid.UUID]Record
}

var _ Store = (*MemStore)(nil)

// NewMemStore returns an empty [MemStore]. A capacity <= 0 means unbounded.
func NewMemStore(capacity int) *MemStore {
	return &MemStore{
		capacity: capacity,
		byID:     make(map[uuid.UUID]Record),
	}
}

// Save implements [Store].
func (m *MemStore) Save(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.byID[rec.ID]; dup {
		return fmt.Errorf("store: analysis %s already exists", rec.ID)
	}
	m.byID[rec.ID] = rec
	m.order = append(m.order, rec.ID)
	if m.capacity > 0 && len(m.order) > m.capacity {
		delete(m.byID, m.order[0])
		m.order = slices.Delete(m.order, 0, 1)
	}
	return nil
}

// Get implements [Store].
func (m *MemStore) Get(_ context.Context, id uuid.UUID) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.byID[id]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, nil
}

// List implements [Store].
func (m *MemStore) List(_ context.Context, limit int) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := len(m.order)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Record, 0, n)
	for i := len(m.order) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.byID[m.order[i]])
	}
	return out, nil
}

// Len returns the number of records held.
func (m *MemStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order)
}

// Ping always succeeds.
func (m *MemStore) Ping(context.Context) error { return nil }
