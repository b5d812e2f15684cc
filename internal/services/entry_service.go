// Package services orchestrates entry mutations and derives the display
// views served over HTTP.
package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"finify/internal/amqp"
	"finify/internal/core"
	"finify/internal/ledger"
	applog "finify/internal/log"
)

// SnapshotPublisher announces persisted snapshots to other instances.
type SnapshotPublisher interface {
	PublishSnapshotChanged(ctx context.Context, msg *amqp.SnapshotChangedMessage) error
}

// CreateEntryInput is a user submission. Empty Date means today; empty
// amounts mean zero.
type CreateEntryInput struct {
	Date     string
	Income   string
	Expenses string
	Remarks  string
}

// EntryService orchestrates entry mutations: the book is updated first, then
// the snapshot is persisted and a change notification is published. Failures
// after the book update are logged and do not fail the mutation.
type EntryService struct {
	book      *ledger.Book
	store     ledger.SnapshotStore
	publisher SnapshotPublisher
	userID    string
	origin    string
	logger    *applog.Logger
	today     func() core.Date

	persistMu sync.Mutex
}

// NewEntryService wires the service. store and publisher may be nil.
func NewEntryService(book *ledger.Book, store ledger.SnapshotStore, publisher SnapshotPublisher, userID, origin string, logger *applog.Logger) *EntryService {
	if logger == nil {
		logger = applog.Discard()
	}
	return &EntryService{
		book:      book,
		store:     store,
		publisher: publisher,
		userID:    userID,
		origin:    origin,
		logger:    logger.WithComponent(applog.ComponentLedger),
		today:     core.Today,
	}
}

func (s *EntryService) Book() *ledger.Book {
	return s.book
}

func (s *EntryService) UserID() string {
	return s.userID
}

// CreateEntry parses and validates input, then appends the new entry.
func (s *EntryService) CreateEntry(ctx context.Context, in CreateEntryInput) (core.FinancialEntry, error) {
	date := s.today()
	if strings.TrimSpace(in.Date) != "" {
		d, err := core.ParseDate(in.Date)
		if err != nil {
			return core.FinancialEntry{}, fmt.Errorf("date: %w", err)
		}
		date = d
	}
	income, err := core.ParseAmount(in.Income)
	if err != nil {
		return core.FinancialEntry{}, fmt.Errorf("income: %w", err)
	}
	expenses, err := core.ParseAmount(in.Expenses)
	if err != nil {
		return core.FinancialEntry{}, fmt.Errorf("expenses: %w", err)
	}

	e, err := core.NewEntry(date, income, expenses, in.Remarks)
	if err != nil {
		return core.FinancialEntry{}, err
	}
	if err := s.AddEntry(ctx, e); err != nil {
		return core.FinancialEntry{}, err
	}
	return e, nil
}

// AddEntry appends an already built entry.
func (s *EntryService) AddEntry(ctx context.Context, e core.FinancialEntry) error {
	if err := s.book.Add(e); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Entry created",
		applog.NewFields().
			WithOperation(applog.OpCreate).
			WithEntry(e.ID, e.Date.String(), e.Income.Cents, e.Expenses.Cents).
			ToSlice()...)
	s.sync(ctx)
	return nil
}

// DeleteEntry removes the entry with id.
func (s *EntryService) DeleteEntry(ctx context.Context, id string) error {
	removed, err := s.book.Delete(id)
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Entry deleted",
		applog.FieldOperation, applog.OpDelete,
		applog.FieldEntryID, removed.ID,
		applog.FieldEntryDate, removed.Date.String())
	s.sync(ctx)
	return nil
}

// Reload replaces the book with the persisted snapshot.
func (s *EntryService) Reload(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	entries, err := s.store.LoadSnapshot(ctx, s.userID)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if err := s.book.Replace(entries); err != nil {
		return fmt.Errorf("replace entries: %w", err)
	}
	s.logger.InfoContext(ctx, "Snapshot reloaded",
		applog.FieldOperation, applog.OpLoad,
		applog.FieldUserID, s.userID,
		applog.FieldEntries, len(entries),
		applog.FieldRevision, s.book.Revision())
	return nil
}

// HandleSnapshotChanged reloads after a change made elsewhere. Changes this
// instance published itself, and changes for other users, are ignored.
func (s *EntryService) HandleSnapshotChanged(ctx context.Context, msg *amqp.SnapshotChangedMessage) error {
	if msg.UserID != s.userID {
		return nil
	}
	if msg.IsFrom(s.origin) {
		s.logger.DebugContext(ctx, "Ignoring own snapshot change", applog.FieldRevision, msg.Revision)
		return nil
	}
	return s.Reload(ctx)
}

// sync persists the current snapshot and announces it. Persisting is
// serialized so the last write always carries the newest snapshot.
func (s *EntryService) sync(ctx context.Context) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	entries, revision := s.book.Snapshot()

	if s.store != nil {
		if err := s.store.PersistSnapshot(ctx, s.userID, entries); err != nil {
			s.logger.ErrorContext(ctx, "Failed to persist snapshot",
				applog.FieldError, err,
				applog.FieldErrorType, applog.ErrorTypeDatabase,
				applog.FieldRevision, revision)
			return
		}
	}

	if s.publisher == nil {
		return
	}
	msg := amqp.NewSnapshotChangedMessage(s.userID, s.origin, revision, len(entries))
	if err := s.publisher.PublishSnapshotChanged(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish snapshot change",
			applog.FieldError, err,
			applog.FieldErrorType, applog.ErrorTypeNetwork,
			applog.FieldRevision, revision)
	}
}
