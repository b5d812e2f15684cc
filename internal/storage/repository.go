// Package storage persists entry snapshots and key/value pairs in SQL
// databases (SQLite or Postgres).
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"finify/internal/core"
	"finify/internal/kv"
	"finify/internal/ledger"
	applog "finify/internal/log"
)

type dialect struct {
	name string
	// expression selecting entry_date as YYYY-MM-DD text
	dateColumn string
	// positional placeholders are $1..$n instead of ?
	numbered bool
}

var (
	sqliteDialect   = dialect{name: "sqlite", dateColumn: "entry_date"}
	postgresDialect = dialect{name: "postgres", dateColumn: "to_char(entry_date, 'YYYY-MM-DD')", numbered: true}
)

// rebind rewrites ? placeholders for dialects that number them.
func (d dialect) rebind(q string) string {
	if !d.numbered {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Repository is a ledger.SnapshotStore and kv.Store over a SQL database.
type Repository struct {
	db      *sql.DB
	dialect dialect
	logger  *applog.Logger
	now     func() time.Time
}

var (
	_ ledger.SnapshotStore = (*Repository)(nil)
	_ kv.Store             = (*Repository)(nil)
)

func newRepository(db *sql.DB, d dialect, logger *applog.Logger) *Repository {
	if logger == nil {
		logger = applog.Discard()
	}
	return &Repository{
		db:      db,
		dialect: d,
		logger:  logger.WithComponent(applog.ComponentStorage),
		now:     time.Now,
	}
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Dialect returns "sqlite" or "postgres".
func (r *Repository) Dialect() string {
	return r.dialect.name
}

func (r *Repository) LoadSnapshot(ctx context.Context, userID string) ([]core.FinancialEntry, error) {
	q := r.dialect.rebind(fmt.Sprintf(`SELECT id, %s, income_cents, expenses_cents, remarks
		FROM entries WHERE user_id = ? ORDER BY position`, r.dialect.dateColumn))

	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []core.FinancialEntry
	for rows.Next() {
		var (
			e       core.FinancialEntry
			date    string
			income  int64
			expense int64
		)
		if err := rows.Scan(&e.ID, &date, &income, &expense, &e.Remarks); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Date, err = core.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.ID, err)
		}
		e.Income = core.Money{Cents: income}
		e.Expenses = core.Money{Cents: expense}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}

	r.logger.DebugContext(ctx, "Snapshot loaded",
		applog.FieldOperation, applog.OpLoad,
		applog.FieldUserID, userID,
		applog.FieldEntries, len(entries))
	return entries, nil
}

func (r *Repository) PersistSnapshot(ctx context.Context, userID string, entries []core.FinancialEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, r.dialect.rebind(`DELETE FROM entries WHERE user_id = ?`), userID); err != nil {
		return fmt.Errorf("clear entries: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, r.dialect.rebind(`INSERT INTO entries
		(user_id, id, position, entry_date, income_cents, expenses_cents, remarks)
		VALUES (?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range entries {
		if _, err := stmt.ExecContext(ctx, userID, e.ID, i, e.Date.String(), e.Income.Cents, e.Expenses.Cents, e.Remarks); err != nil {
			return fmt.Errorf("insert entry %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}

	r.logger.InfoContext(ctx, "Snapshot persisted",
		applog.FieldOperation, applog.OpPersist,
		applog.FieldUserID, userID,
		applog.FieldEntries, len(entries))
	return nil
}

func (r *Repository) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx, r.dialect.rebind(`SELECT value FROM kv_entries WHERE key = ?`), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

func (r *Repository) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, r.dialect.rebind(`INSERT INTO kv_entries (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`),
		key, value, r.now().UTC())
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (r *Repository) Remove(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, r.dialect.rebind(`DELETE FROM kv_entries WHERE key = ?`), key); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}
