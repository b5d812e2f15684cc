package core

import (
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	dateLayout = "2006-01-02"

	// MaxRemarksLength bounds the free-text remarks of an entry.
	MaxRemarksLength = 500
)

type (
	Date struct {
		time.Time
	}

	// Money is an amount in the base currency, in centavos.
	Money struct {
		Cents int64
	}

	// FinancialEntry is one user-recorded income/expense record for a date.
	FinancialEntry struct {
		ID       string
		Date     Date
		Income   Money
		Expenses Money
		Remarks  string
	}
)

var (
	ErrInvalidDate    = errors.New("invalid date")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrNegativeAmount = errors.New("amount must not be negative")
	ErrEmptyID        = errors.New("empty entry id")
	ErrRemarksTooLong = errors.New("remarks too long (max 500 characters)")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current calendar date in UTC.
func Today() Date {
	y, m, d := time.Now().UTC().Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses an ISO 8601 calendar date (YYYY-MM-DD). A full RFC 3339
// timestamp is accepted and truncated to its date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, ErrInvalidDate
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		ts, tsErr := time.Parse(time.RFC3339, s)
		if tsErr != nil {
			return Date{}, ErrInvalidDate
		}
		t = ts
	}
	return NewDate(t.Year(), int(t.Month()), t.Day()), nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// Key returns the calendar month the date belongs to.
func (d Date) Key() MonthKey {
	return MonthKey{Year: d.Year(), Month: int(d.Time.Month())}
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrNegativeAmount
	}
	return nil
}

func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

func (m Money) Sub(o Money) Money {
	return Money{Cents: m.Cents - o.Cents}
}

// Net returns income minus expenses for the entry.
func (e FinancialEntry) Net() Money {
	return e.Income.Sub(e.Expenses)
}

func (e FinancialEntry) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return ErrEmptyID
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if err := e.Income.Validate(); err != nil {
		return err
	}
	if err := e.Expenses.Validate(); err != nil {
		return err
	}
	if len(e.Remarks) > MaxRemarksLength {
		return ErrRemarksTooLong
	}
	return nil
}

// NewEntryID returns a unique, lexically sortable id whose prefix is the
// creation timestamp. Ids created later in the same process sort after
// earlier ones.
func NewEntryID() string {
	return ulid.Make().String()
}

// NewEntry assigns a fresh id and validates the result.
func NewEntry(date Date, income, expenses Money, remarks string) (FinancialEntry, error) {
	e := FinancialEntry{
		ID:       NewEntryID(),
		Date:     date,
		Income:   income,
		Expenses: expenses,
		Remarks:  strings.TrimSpace(remarks),
	}
	if err := e.Validate(); err != nil {
		return FinancialEntry{}, err
	}
	return e, nil
}
