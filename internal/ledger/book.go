// Package ledger holds the canonical list of financial entries for one user.
//
// Entries are kept in insertion order. They are appended and removed but never
// edited in place; every change bumps the book's revision.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"finify/internal/core"
)

var (
	ErrEntryNotFound  = errors.New("entry not found")
	ErrDuplicateEntry = errors.New("entry id already exists")
)

// SnapshotStore loads and persists the full entry list of a user. Persist is
// a complete overwrite that preserves the given order.
type SnapshotStore interface {
	LoadSnapshot(ctx context.Context, userID string) ([]core.FinancialEntry, error)
	PersistSnapshot(ctx context.Context, userID string, entries []core.FinancialEntry) error
}

// Book is the in-memory entry store. It is safe for concurrent use.
type Book struct {
	mu       sync.RWMutex
	entries  []core.FinancialEntry
	index    map[string]int
	revision int64
}

// NewBook creates a book holding entries in the given order.
func NewBook(entries ...core.FinancialEntry) (*Book, error) {
	b := &Book{}
	if err := b.reset(entries); err != nil {
		return nil, err
	}
	return b, nil
}

// Load builds a book from the user's persisted snapshot.
func Load(ctx context.Context, store SnapshotStore, userID string) (*Book, error) {
	entries, err := store.LoadSnapshot(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return NewBook(entries...)
}

func (b *Book) reset(entries []core.FinancialEntry) error {
	index := make(map[string]int, len(entries))
	list := make([]core.FinancialEntry, 0, len(entries))
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("entry %q: %w", e.ID, err)
		}
		if _, dup := index[e.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateEntry, e.ID)
		}
		index[e.ID] = len(list)
		list = append(list, e)
	}
	b.entries = list
	b.index = index
	return nil
}

// Add appends a validated entry.
func (b *Book) Add(e core.FinancialEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, dup := b.index[e.ID]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateEntry, e.ID)
	}
	b.index[e.ID] = len(b.entries)
	b.entries = append(b.entries, e)
	b.revision++
	return nil
}

// Delete removes the entry with the given id and returns it.
func (b *Book) Delete(id string) (core.FinancialEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i, ok := b.index[id]
	if !ok {
		return core.FinancialEntry{}, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	removed := b.entries[i]
	b.entries = append(b.entries[:i:i], b.entries[i+1:]...)
	delete(b.index, id)
	for j := i; j < len(b.entries); j++ {
		b.index[b.entries[j].ID] = j
	}
	b.revision++
	return removed, nil
}

// Get returns the entry with the given id.
func (b *Book) Get(id string) (core.FinancialEntry, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	i, ok := b.index[id]
	if !ok {
		return core.FinancialEntry{}, false
	}
	return b.entries[i], true
}

// Entries returns a copy of the entries in store order.
func (b *Book) Entries() []core.FinancialEntry {
	entries, _ := b.Snapshot()
	return entries
}

// Snapshot returns a copy of the entries together with the revision they
// belong to.
func (b *Book) Snapshot() ([]core.FinancialEntry, int64) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]core.FinancialEntry, len(b.entries))
	copy(out, b.entries)
	return out, b.revision
}

// Replace swaps the whole entry list, e.g. after a remote change. The
// revision advances even if the content is the same.
func (b *Book) Replace(entries []core.FinancialEntry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.reset(entries); err != nil {
		return err
	}
	b.revision++
	return nil
}

func (b *Book) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

func (b *Book) Revision() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.revision
}
