package ledger

import (
	"context"
	"sync"

	"finify/internal/core"
)

// MemoryStore is a SnapshotStore that keeps snapshots in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string][]core.FinancialEntry
}

var _ SnapshotStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snapshots: make(map[string][]core.FinancialEntry)}
}

func (m *MemoryStore) LoadSnapshot(_ context.Context, userID string) ([]core.FinancialEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.snapshots[userID]
	out := make([]core.FinancialEntry, len(src))
	copy(out, src)
	return out, nil
}

func (m *MemoryStore) PersistSnapshot(_ context.Context, userID string, entries []core.FinancialEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]core.FinancialEntry, len(entries))
	copy(cp, entries)
	m.snapshots[userID] = cp
	return nil
}
