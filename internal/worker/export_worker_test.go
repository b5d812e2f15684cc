package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"finify/internal/amqp"
	"finify/internal/core"
	"finify/internal/ledger"
	"finify/internal/sheets/memory"
)

type failingExporter struct{ calls atomic.Int32 }

func (f *failingExporter) ExportSummaries(context.Context, string, []core.MonthlySummary) (string, error) {
	f.calls.Add(1)
	return "", errors.New("quota exceeded")
}

type chanSubscriber struct {
	msgs chan *amqp.SnapshotChangedMessage
}

func (s *chanSubscriber) ConsumeSnapshotChanged(ctx context.Context, handler func(context.Context, *amqp.SnapshotChangedMessage) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-s.msgs:
			if err := handler(ctx, msg); err != nil {
				return err
			}
		}
	}
}

func seed(t *testing.T, store *ledger.MemoryStore, entries ...core.FinancialEntry) {
	t.Helper()
	if err := store.PersistSnapshot(context.Background(), "user-1", entries); err != nil {
		t.Fatal(err)
	}
}

func jan(id string, income int64) core.FinancialEntry {
	return core.FinancialEntry{ID: id, Date: core.NewDate(2024, 1, 10), Income: core.Money{Cents: income}}
}

func TestExport_SkipsUnchangedSummaries(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemoryStore()
	exp := memory.New()
	w := NewExportWorker(store, exp, "user-1", 0, nil)

	seed(t, store, jan("a", 1000))

	wrote, err := w.Export(ctx)
	if err != nil || !wrote {
		t.Fatalf("first Export() = %v, %v; want true, nil", wrote, err)
	}
	wrote, err = w.Export(ctx)
	if err != nil || wrote {
		t.Fatalf("second Export() = %v, %v; want false, nil", wrote, err)
	}

	seed(t, store, jan("a", 1000), jan("b", 500))
	wrote, err = w.Export(ctx)
	if err != nil || !wrote {
		t.Fatalf("Export() after change = %v, %v; want true, nil", wrote, err)
	}

	if exp.Count() != 2 {
		t.Errorf("exports = %d, want 2", exp.Count())
	}
	rows := exp.Rows("user-1")
	if len(rows) != 2 {
		t.Fatalf("rows = %v, want header + 1 month", rows)
	}
	if rows[1][0] != "January 2024" || rows[1][2] != "15.00" {
		t.Errorf("row = %v", rows[1])
	}
}

func TestExport_FailureIsRetried(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemoryStore()
	seed(t, store, jan("a", 1000))
	exp := &failingExporter{}
	w := NewExportWorker(store, exp, "user-1", 0, nil)

	if _, err := w.Export(ctx); err == nil {
		t.Fatal("expected export error")
	}
	if _, err := w.Export(ctx); err == nil {
		t.Fatal("expected export error")
	}
	if got := exp.calls.Load(); got != 2 {
		t.Errorf("exporter calls = %d, want 2 (failures must not count as exported)", got)
	}
}

func TestHandleSnapshotChanged_OtherUserIgnored(t *testing.T) {
	store := ledger.NewMemoryStore()
	exp := memory.New()
	w := NewExportWorker(store, exp, "user-1", 0, nil)

	msg := amqp.NewSnapshotChangedMessage("user-2", "x", 1, 0)
	if err := w.HandleSnapshotChanged(context.Background(), msg); err != nil {
		t.Fatal(err)
	}
	if exp.Count() != 0 {
		t.Errorf("exports = %d, want 0", exp.Count())
	}
}

func TestRun_ExportsOnStartupAndNotification(t *testing.T) {
	store := ledger.NewMemoryStore()
	seed(t, store, jan("a", 1000))
	exp := memory.New()
	sub := &chanSubscriber{msgs: make(chan *amqp.SnapshotChangedMessage)}
	w := NewExportWorker(store, exp, "user-1", time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, sub) }()
	waitForExports(t, exp, 1)

	seed(t, store, jan("a", 1000), jan("b", 2500))
	sub.msgs <- amqp.NewSnapshotChangedMessage("user-1", "other", 2, 2)

	waitForExports(t, exp, 2)

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func waitForExports(t *testing.T, exp *memory.Exporter, n int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for exp.Count() < n {
		select {
		case <-deadline:
			t.Fatalf("exports = %d, want %d", exp.Count(), n)
		case <-time.After(5 * time.Millisecond):
		}
	}
}
