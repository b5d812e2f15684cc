package storage

import (
	"context"
	"path/filepath"
	"testing"

	"finify/internal/core"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "finify.db"), nil)
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRebind(t *testing.T) {
	q := "SELECT a FROM t WHERE x = ? AND y = ?"
	if got := sqliteDialect.rebind(q); got != q {
		t.Errorf("sqlite rebind changed query: %q", got)
	}
	want := "SELECT a FROM t WHERE x = $1 AND y = $2"
	if got := postgresDialect.rebind(q); got != want {
		t.Errorf("postgres rebind = %q, want %q", got, want)
	}
}

func TestSQLiteSnapshotRoundTripPreservesOrder(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	entries := []core.FinancialEntry{
		{ID: "b", Date: core.NewDate(2024, 2, 10), Income: core.Money{Cents: 50000}, Expenses: core.Money{Cents: 10000}, Remarks: "feb"},
		{ID: "a", Date: core.NewDate(2024, 1, 5), Income: core.Money{Cents: 100000}, Expenses: core.Money{Cents: 20000}},
		{ID: "c", Date: core.NewDate(2024, 1, 20), Expenses: core.Money{Cents: 30000}, Remarks: "rent"},
	}
	if err := repo.PersistSnapshot(ctx, "user-1", entries); err != nil {
		t.Fatalf("PersistSnapshot() error = %v", err)
	}

	got, err := repo.LoadSnapshot(ctx, "user-1")
	if err != nil {
		t.Fatalf("LoadSnapshot() error = %v", err)
	}
	if len(got) != len(entries) {
		t.Fatalf("got %d entries, want %d", len(got), len(entries))
	}
	for i := range entries {
		if got[i].ID != entries[i].ID {
			t.Errorf("entry %d id = %s, want %s", i, got[i].ID, entries[i].ID)
		}
		if !got[i].Date.Equal(entries[i].Date.Time) {
			t.Errorf("entry %d date = %s, want %s", i, got[i].Date, entries[i].Date)
		}
		if got[i].Income != entries[i].Income || got[i].Expenses != entries[i].Expenses {
			t.Errorf("entry %d amounts = %v/%v", i, got[i].Income, got[i].Expenses)
		}
		if got[i].Remarks != entries[i].Remarks {
			t.Errorf("entry %d remarks = %q, want %q", i, got[i].Remarks, entries[i].Remarks)
		}
	}
}

func TestSQLitePersistOverwrites(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	first := []core.FinancialEntry{
		{ID: "a", Date: core.NewDate(2024, 1, 1), Income: core.Money{Cents: 1}},
		{ID: "b", Date: core.NewDate(2024, 1, 2), Income: core.Money{Cents: 2}},
	}
	if err := repo.PersistSnapshot(ctx, "u", first); err != nil {
		t.Fatal(err)
	}
	if err := repo.PersistSnapshot(ctx, "u", first[1:]); err != nil {
		t.Fatal(err)
	}
	if err := repo.PersistSnapshot(ctx, "other", first[:1]); err != nil {
		t.Fatal(err)
	}

	got, err := repo.LoadSnapshot(ctx, "u")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "b" {
		t.Errorf("after overwrite got %+v, want only b", got)
	}

	empty, err := repo.LoadSnapshot(ctx, "nobody")
	if err != nil {
		t.Fatal(err)
	}
	if len(empty) != 0 {
		t.Errorf("unknown user got %d entries", len(empty))
	}
}

func TestSQLiteKeyValue(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	if _, ok, err := repo.Get(ctx, "selectedCurrency"); err != nil || ok {
		t.Fatalf("Get(missing) = ok %v, err %v", ok, err)
	}
	if err := repo.Set(ctx, "selectedCurrency", "USD"); err != nil {
		t.Fatal(err)
	}
	if err := repo.Set(ctx, "selectedCurrency", "PHP"); err != nil {
		t.Fatal(err)
	}
	v, ok, err := repo.Get(ctx, "selectedCurrency")
	if err != nil || !ok || v != "PHP" {
		t.Fatalf("Get() = %q, %v, %v; want PHP", v, ok, err)
	}
	if err := repo.Remove(ctx, "selectedCurrency"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := repo.Get(ctx, "selectedCurrency"); ok {
		t.Error("key still present after Remove")
	}
	if err := repo.Remove(ctx, "never-set"); err != nil {
		t.Errorf("Remove(missing) error = %v", err)
	}
}

func TestSQLiteReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "finify.db")

	repo, err := NewSQLiteRepository(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.Set(ctx, "k", "v"); err != nil {
		t.Fatal(err)
	}
	repo.Close()

	reopened, err := NewSQLiteRepository(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if v, ok, _ := reopened.Get(ctx, "k"); !ok || v != "v" {
		t.Errorf("after reopen Get(k) = %q, %v", v, ok)
	}
}
