package services

import (
	"fmt"

	"finify/internal/cache"
	"finify/internal/core"
	"finify/internal/currency"
	"finify/internal/display"
	"finify/internal/ledger"
)

// Page sizes used by the entry and summary listings.
const (
	EntriesPageSize   = 8
	SummariesPageSize = 12
)

// EntryRow is an entry with its running balance, formatted for display.
type EntryRow struct {
	ID            string `json:"id"`
	Date          string `json:"date"`
	Remarks       string `json:"remarks"`
	Income        string `json:"income"`
	Expenses      string `json:"expenses"`
	Balance       string `json:"balance"`
	IncomeCents   int64  `json:"income_cents"`
	ExpensesCents int64  `json:"expenses_cents"`
	BalanceCents  int64  `json:"balance_cents"`
}

// SummaryRow is a monthly summary formatted for display.
type SummaryRow struct {
	Key           string `json:"key"`
	Label         string `json:"label"`
	TotalIncome   string `json:"total_income"`
	TotalExpenses string `json:"total_expenses"`
	NetProfitLoss string `json:"net_profit_loss"`
	NetCents      int64  `json:"net_cents"`
	Trend         string `json:"trend"`
}

// Overview is the headline figure set.
type Overview struct {
	Currency         string  `json:"currency"`
	Rate             float64 `json:"rate"`
	NetBalance       string  `json:"net_balance"`
	NetBalanceCents  int64   `json:"net_balance_cents"`
	PercentageChange float64 `json:"percentage_change"`
	Percentage       string  `json:"percentage"`
	Trend            string  `json:"trend"`
	Entries          int     `json:"entries"`
	Months           int     `json:"months"`
	Revision         int64   `json:"revision"`
}

// Page is one page of a listing.
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
	TotalItems int `json:"total_items"`
}

// Paginate returns the 1-based page of items. Out of range pages are
// clamped to the first or last page.
func Paginate[T any](items []T, page, size int) Page[T] {
	if size < 1 {
		size = 1
	}
	total := len(items)
	pages := (total + size - 1) / size
	if pages < 1 {
		pages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}
	start := (page - 1) * size
	end := start + size
	if end > total {
		end = total
	}
	out := make([]T, end-start)
	copy(out, items[start:end])
	return Page[T]{Items: out, Page: page, PageSize: size, TotalPages: pages, TotalItems: total}
}

// ContextSource provides the display context to render with.
type ContextSource interface {
	Context() display.Context
}

// ViewService derives display views from the book. Rendered views are cached
// per (revision, currency, rate).
type ViewService struct {
	book      *ledger.Book
	presenter *currency.Presenter
	contexts  ContextSource

	entryCache   *cache.LRUCache[[]EntryRow]
	summaryCache *cache.LRUCache[[]SummaryRow]
}

// NewViewService creates a view service. Nil caches disable caching.
func NewViewService(book *ledger.Book, presenter *currency.Presenter, contexts ContextSource, entries *cache.LRUCache[[]EntryRow], summaries *cache.LRUCache[[]SummaryRow]) *ViewService {
	return &ViewService{
		book:         book,
		presenter:    presenter,
		contexts:     contexts,
		entryCache:   entries,
		summaryCache: summaries,
	}
}

func viewKey(revision int64, dc display.Context) string {
	return fmt.Sprintf("%d|%s|%g", revision, dc.Currency, dc.Rate)
}

// Entries returns every entry in store order with its running balance, and
// the display context the rows were rendered in.
func (v *ViewService) Entries() ([]EntryRow, display.Context, error) {
	entries, revision := v.book.Snapshot()
	dc := v.contexts.Context()
	key := viewKey(revision, dc)
	if v.entryCache != nil {
		if rows, ok := v.entryCache.Get(key); ok {
			return rows, dc, nil
		}
	}

	rows, err := BuildEntryRows(entries, v.presenter, dc)
	if err != nil {
		return nil, dc, err
	}
	if v.entryCache != nil {
		v.entryCache.Set(key, rows)
	}
	return rows, dc, nil
}

// Summaries returns the monthly rollups in ascending month order, and the
// display context they were rendered in.
func (v *ViewService) Summaries() ([]SummaryRow, display.Context, error) {
	entries, revision := v.book.Snapshot()
	dc := v.contexts.Context()
	key := viewKey(revision, dc)
	if v.summaryCache != nil {
		if rows, ok := v.summaryCache.Get(key); ok {
			return rows, dc, nil
		}
	}

	rows, err := BuildSummaryRows(core.AggregateMonthly(entries), v.presenter, dc)
	if err != nil {
		return nil, dc, err
	}
	if v.summaryCache != nil {
		v.summaryCache.Set(key, rows)
	}
	return rows, dc, nil
}

// Overview returns the net balance and its change relative to the first
// entry.
func (v *ViewService) Overview() (Overview, error) {
	entries, revision := v.book.Snapshot()
	dc := v.contexts.Context()
	return BuildOverview(entries, revision, v.presenter, dc)
}

// BuildEntryRows formats entries with their running balances.
func BuildEntryRows(entries []core.FinancialEntry, p *currency.Presenter, dc display.Context) ([]EntryRow, error) {
	balances := core.RunningBalance(entries)
	rows := make([]EntryRow, len(entries))
	for i, e := range entries {
		income, err := dc.Format(p, e.Income)
		if err != nil {
			return nil, err
		}
		expenses, err := dc.Format(p, e.Expenses)
		if err != nil {
			return nil, err
		}
		balance, err := dc.Format(p, balances[i])
		if err != nil {
			return nil, err
		}
		rows[i] = EntryRow{
			ID:            e.ID,
			Date:          e.Date.String(),
			Remarks:       e.Remarks,
			Income:        income,
			Expenses:      expenses,
			Balance:       balance,
			IncomeCents:   e.Income.Cents,
			ExpensesCents: e.Expenses.Cents,
			BalanceCents:  balances[i].Cents,
		}
	}
	return rows, nil
}

// BuildSummaryRows formats monthly summaries.
func BuildSummaryRows(summaries []core.MonthlySummary, p *currency.Presenter, dc display.Context) ([]SummaryRow, error) {
	rows := make([]SummaryRow, len(summaries))
	for i, s := range summaries {
		income, err := dc.Format(p, s.TotalIncome)
		if err != nil {
			return nil, err
		}
		expenses, err := dc.Format(p, s.TotalExpenses)
		if err != nil {
			return nil, err
		}
		net, err := dc.Format(p, s.NetProfitLoss)
		if err != nil {
			return nil, err
		}
		rows[i] = SummaryRow{
			Key:           s.Key.String(),
			Label:         s.Label,
			TotalIncome:   income,
			TotalExpenses: expenses,
			NetProfitLoss: net,
			NetCents:      s.NetProfitLoss.Cents,
			Trend:         currency.Trend(float64(s.NetProfitLoss.Cents)),
		}
	}
	return rows, nil
}

// BuildOverview computes the headline figures.
func BuildOverview(entries []core.FinancialEntry, revision int64, p *currency.Presenter, dc display.Context) (Overview, error) {
	net := core.NetTotal(entries)
	formatted, err := dc.Format(p, net)
	if err != nil {
		return Overview{}, err
	}
	pct := core.PercentageChange(entries)
	return Overview{
		Currency:         string(dc.Currency),
		Rate:             dc.Rate,
		NetBalance:       formatted,
		NetBalanceCents:  net.Cents,
		PercentageChange: pct,
		Percentage:       currency.FormatPercent(pct),
		Trend:            currency.Trend(pct),
		Entries:          len(entries),
		Months:           len(core.AggregateMonthly(entries)),
		Revision:         revision,
	}, nil
}
