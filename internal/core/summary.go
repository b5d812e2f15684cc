package core

import (
	"fmt"
	"sort"
	"time"
)

// MonthKey identifies a calendar month.
type MonthKey struct {
	Year  int
	Month int // 1-12
}

// Before reports whether k is chronologically earlier than o.
func (k MonthKey) Before(o MonthKey) bool {
	if k.Year != o.Year {
		return k.Year < o.Year
	}
	return k.Month < o.Month
}

// String formats the key as YYYY-MM.
func (k MonthKey) String() string {
	return fmt.Sprintf("%04d-%02d", k.Year, k.Month)
}

// Label is the human readable "Month YYYY" form, e.g. "January 2024".
func (k MonthKey) Label() string {
	return fmt.Sprintf("%s %d", time.Month(k.Month).String(), k.Year)
}

// MonthlySummary is the rollup of all entries dated in one calendar month.
type MonthlySummary struct {
	Key           MonthKey
	Label         string
	TotalIncome   Money
	TotalExpenses Money
	NetProfitLoss Money
}

// AggregateMonthly groups entries by the year and month of their date and
// returns one summary per month, sorted ascending by (year, month).
//
// Income and expenses are summed separately; the net is recomputed as their
// difference after every contribution rather than accumulated on its own.
func AggregateMonthly(entries []FinancialEntry) []MonthlySummary {
	byKey := make(map[MonthKey]*MonthlySummary)
	for _, e := range entries {
		key := e.Date.Key()
		s, ok := byKey[key]
		if !ok {
			s = &MonthlySummary{Key: key, Label: key.Label()}
			byKey[key] = s
		}
		s.TotalIncome = s.TotalIncome.Add(e.Income)
		s.TotalExpenses = s.TotalExpenses.Add(e.Expenses)
		s.NetProfitLoss = s.TotalIncome.Sub(s.TotalExpenses)
	}

	out := make([]MonthlySummary, 0, len(byKey))
	for _, s := range byKey {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key.Before(out[j].Key)
	})
	return out
}
