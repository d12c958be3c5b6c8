// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package journal

import (
	"context"
	"sync"
)

// MemoryStore keeps the most recent entries in a bounded ring.
type MemoryStore struct {
	mu       sync.Mutex
	entries  []Entry
	capacity int
}

// NewMemoryStore creates a store holding at most capacity entries.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultListLimit
	}
	return &MemoryStore{capacity: capacity}
}

func (m *MemoryStore) Record(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	if over := len(m.entries) - m.capacity; over > 0 {
		m.entries = append([]Entry(nil), m.entries[over:]...)
	}
	return nil
}

func (m *MemoryStore) List(_ context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, 0, min(limit, len(m.entries)))
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}

func (m *MemoryStore) Close() error {
	return nil
}
