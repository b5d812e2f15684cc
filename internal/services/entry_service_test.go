package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"finify/internal/amqp"
	"finify/internal/core"
	"finify/internal/ledger"
)

type fakeStore struct {
	mu        sync.Mutex
	snapshots map[string][]core.FinancialEntry
	persists  int
	err       error
}

func newFakeStore() *fakeStore {
	return &fakeStore{snapshots: make(map[string][]core.FinancialEntry)}
}

func (f *fakeStore) LoadSnapshot(_ context.Context, userID string) ([]core.FinancialEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]core.FinancialEntry(nil), f.snapshots[userID]...), nil
}

func (f *fakeStore) PersistSnapshot(_ context.Context, userID string, entries []core.FinancialEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.persists++
	if f.err != nil {
		return f.err
	}
	f.snapshots[userID] = append([]core.FinancialEntry(nil), entries...)
	return nil
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []*amqp.SnapshotChangedMessage
	err  error
}

func (f *fakePublisher) PublishSnapshotChanged(_ context.Context, msg *amqp.SnapshotChangedMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

func newService(t *testing.T, store ledger.SnapshotStore, pub SnapshotPublisher) *EntryService {
	t.Helper()
	book, err := ledger.NewBook()
	if err != nil {
		t.Fatal(err)
	}
	s := NewEntryService(book, store, pub, "user-1", "origin-a", nil)
	s.today = func() core.Date { return core.NewDate(2024, 3, 15) }
	return s
}

func TestCreateEntry(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	s := newService(t, store, pub)

	e, err := s.CreateEntry(context.Background(), CreateEntryInput{
		Date:     "2024-01-05",
		Income:   "1000",
		Expenses: "200.50",
		Remarks:  "  salary  ",
	})
	if err != nil {
		t.Fatalf("CreateEntry() error = %v", err)
	}
	if e.ID == "" || e.Income.Cents != 100000 || e.Expenses.Cents != 20050 || e.Remarks != "salary" {
		t.Errorf("CreateEntry() = %+v", e)
	}
	if got := s.Book().Len(); got != 1 {
		t.Errorf("book has %d entries, want 1", got)
	}
	if len(store.snapshots["user-1"]) != 1 {
		t.Errorf("snapshot not persisted: %+v", store.snapshots)
	}
	if len(pub.msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.msgs))
	}
	msg := pub.msgs[0]
	if msg.UserID != "user-1" || msg.Origin != "origin-a" || msg.Revision != 1 || msg.Entries != 1 {
		t.Errorf("message = %+v", msg)
	}
}

func TestCreateEntry_Defaults(t *testing.T) {
	s := newService(t, nil, nil)

	e, err := s.CreateEntry(context.Background(), CreateEntryInput{Income: "50"})
	if err != nil {
		t.Fatalf("CreateEntry() error = %v", err)
	}
	if e.Date.String() != "2024-03-15" {
		t.Errorf("default date = %s, want today", e.Date)
	}
	if e.Expenses.Cents != 0 {
		t.Errorf("empty expenses = %d, want 0", e.Expenses.Cents)
	}
}

func TestCreateEntry_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		in   CreateEntryInput
		want error
	}{
		{"bad date", CreateEntryInput{Date: "2024-13-40"}, core.ErrInvalidDate},
		{"negative income", CreateEntryInput{Income: "-5"}, core.ErrNegativeAmount},
		{"garbage expenses", CreateEntryInput{Expenses: "abc"}, core.ErrInvalidAmount},
		{"long remarks", CreateEntryInput{Remarks: string(make([]byte, core.MaxRemarksLength+1))}, core.ErrRemarksTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			s := newService(t, store, nil)
			_, err := s.CreateEntry(context.Background(), tt.in)
			if !errors.Is(err, tt.want) {
				t.Errorf("CreateEntry() error = %v, want %v", err, tt.want)
			}
			if s.Book().Len() != 0 || store.persists != 0 {
				t.Error("invalid input must not change state")
			}
		})
	}
}

func TestCreateEntry_PersistFailureDoesNotFailMutation(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("disk full")
	pub := &fakePublisher{}
	s := newService(t, store, pub)

	if _, err := s.CreateEntry(context.Background(), CreateEntryInput{Income: "1"}); err != nil {
		t.Fatalf("CreateEntry() error = %v", err)
	}
	if s.Book().Len() != 1 {
		t.Error("entry should be kept locally")
	}
	if len(pub.msgs) != 0 {
		t.Error("nothing should be published when persist fails")
	}
}

func TestCreateEntry_PublishFailureIsLogged(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	s := newService(t, newFakeStore(), pub)

	if _, err := s.CreateEntry(context.Background(), CreateEntryInput{Income: "1"}); err != nil {
		t.Fatalf("CreateEntry() error = %v", err)
	}
}

func TestDeleteEntry(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	s := newService(t, store, pub)
	ctx := context.Background()

	a, _ := s.CreateEntry(ctx, CreateEntryInput{Income: "1"})
	b, _ := s.CreateEntry(ctx, CreateEntryInput{Income: "2"})

	if err := s.DeleteEntry(ctx, a.ID); err != nil {
		t.Fatalf("DeleteEntry() error = %v", err)
	}
	left := store.snapshots["user-1"]
	if len(left) != 1 || left[0].ID != b.ID {
		t.Errorf("persisted after delete = %+v", left)
	}
	if last := pub.msgs[len(pub.msgs)-1]; last.Revision != 3 {
		t.Errorf("last revision = %d, want 3", last.Revision)
	}

	if err := s.DeleteEntry(ctx, "missing"); !errors.Is(err, ledger.ErrEntryNotFound) {
		t.Errorf("DeleteEntry(missing) error = %v", err)
	}
}

func TestHandleSnapshotChanged(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	s := newService(t, store, nil)

	store.snapshots["user-1"] = []core.FinancialEntry{
		{ID: "remote", Date: core.NewDate(2024, 1, 1), Income: core.Money{Cents: 500}},
	}

	t.Run("own change is ignored", func(t *testing.T) {
		msg := amqp.NewSnapshotChangedMessage("user-1", "origin-a", 1, 1)
		if err := s.HandleSnapshotChanged(ctx, msg); err != nil {
			t.Fatal(err)
		}
		if s.Book().Len() != 0 {
			t.Error("echo of own change must not reload")
		}
	})

	t.Run("other user is ignored", func(t *testing.T) {
		msg := amqp.NewSnapshotChangedMessage("user-2", "origin-b", 1, 1)
		if err := s.HandleSnapshotChanged(ctx, msg); err != nil {
			t.Fatal(err)
		}
		if s.Book().Len() != 0 {
			t.Error("change for another user must not reload")
		}
	})

	t.Run("remote change reloads", func(t *testing.T) {
		msg := amqp.NewSnapshotChangedMessage("user-1", "origin-b", 4, 1)
		if err := s.HandleSnapshotChanged(ctx, msg); err != nil {
			t.Fatal(err)
		}
		if _, ok := s.Book().Get("remote"); !ok {
			t.Error("remote entry not loaded")
		}
	})

	t.Run("load failure is returned", func(t *testing.T) {
		store.err = errors.New("db gone")
		defer func() { store.err = nil }()
		msg := amqp.NewSnapshotChangedMessage("user-1", "origin-b", 5, 1)
		if err := s.HandleSnapshotChanged(ctx, msg); err == nil {
			t.Error("expected error so the message is retried")
		}
	})
}
