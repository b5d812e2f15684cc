package worker

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"finify/internal/amqp"
	"finify/internal/core"
	"finify/internal/ledger"
	applog "finify/internal/log"
	"finify/internal/sheets"
)

// Subscriber delivers snapshot change notifications.
type Subscriber interface {
	ConsumeSnapshotChanged(ctx context.Context, handler func(context.Context, *amqp.SnapshotChangedMessage) error) error
}

// ExportWorker keeps the exported monthly summaries of one user in line with
// the persisted snapshot.
type ExportWorker struct {
	store    ledger.SnapshotStore
	exporter sheets.SummaryExporter
	userID   string
	interval time.Duration
	logger   *applog.Logger

	mu       sync.Mutex
	last     []core.MonthlySummary
	exported bool
}

func NewExportWorker(store ledger.SnapshotStore, exporter sheets.SummaryExporter, userID string, interval time.Duration, logger *applog.Logger) *ExportWorker {
	if logger == nil {
		logger = applog.Discard()
	}
	return &ExportWorker{
		store:    store,
		exporter: exporter,
		userID:   userID,
		interval: interval,
		logger:   logger.WithComponent(applog.ComponentWorker),
	}
}

// HandleSnapshotChanged exports after a change for this worker's user.
func (w *ExportWorker) HandleSnapshotChanged(ctx context.Context, msg *amqp.SnapshotChangedMessage) error {
	if msg.UserID != w.userID {
		return nil
	}
	w.logger.InfoContext(ctx, "Processing snapshot change",
		applog.FieldUserID, msg.UserID,
		applog.FieldOrigin, msg.Origin,
		applog.FieldRevision, msg.Revision)

	_, err := w.Export(ctx)
	return err
}

// Export loads the snapshot, aggregates it and writes the summaries. It
// reports false without writing when the summaries match the last export.
func (w *ExportWorker) Export(ctx context.Context) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	entries, err := w.store.LoadSnapshot(ctx, w.userID)
	if err != nil {
		return false, fmt.Errorf("load snapshot: %w", err)
	}
	summaries := core.AggregateMonthly(entries)
	if w.exported && slices.Equal(summaries, w.last) {
		w.logger.DebugContext(ctx, "Summaries unchanged, skipping export", applog.FieldUserID, w.userID)
		return false, nil
	}

	ref, err := w.exporter.ExportSummaries(ctx, w.userID, summaries)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to export summaries",
			applog.FieldError, err,
			applog.FieldErrorType, applog.ErrorTypeNetwork,
			applog.FieldOperation, applog.OpExport)
		return false, fmt.Errorf("export summaries: %w", err)
	}
	w.last = summaries
	w.exported = true

	w.logger.InfoContext(ctx, "Successfully exported summaries",
		applog.FieldOperation, applog.OpExport,
		applog.FieldUserID, w.userID,
		"months", len(summaries),
		"ref", ref)
	return true, nil
}

// Run performs a startup export, then exports on every notification from sub
// and every interval until ctx is cancelled. sub may be nil.
func (w *ExportWorker) Run(ctx context.Context, sub Subscriber) error {
	if _, err := w.Export(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Startup export failed", applog.FieldError, err)
	}

	g, ctx := errgroup.WithContext(ctx)

	if sub != nil {
		g.Go(func() error {
			return sub.ConsumeSnapshotChanged(ctx, w.HandleSnapshotChanged)
		})
	}

	if w.interval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(w.interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
					if _, err := w.Export(ctx); err != nil {
						w.logger.ErrorContext(ctx, "Periodic export failed", applog.FieldError, err)
					}
				}
			}
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
