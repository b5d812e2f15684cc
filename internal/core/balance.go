package core

import "math"

// RunningBalance returns the cumulative net (income - expenses) of entries in
// the order given. The result has the same length as entries; balance[i]
// includes entries[0..i]. Entries are never re-sorted.
func RunningBalance(entries []FinancialEntry) []Money {
	out := make([]Money, len(entries))
	var total Money
	for i, e := range entries {
		total = total.Add(e.Net())
		out[i] = total
	}
	return out
}

// NetTotal is the final running balance, or zero for no entries.
func NetTotal(entries []FinancialEntry) Money {
	var total Money
	for _, e := range entries {
		total = total.Add(e.Net())
	}
	return total
}

// PercentageChange compares the current net total against the net of the
// first entry in store order (not the chronologically first one):
// (current - initial) / |initial| * 100. It is 0 when there are no entries
// or when the first entry's net is 0.
func PercentageChange(entries []FinancialEntry) float64 {
	if len(entries) == 0 {
		return 0
	}
	initial := entries[0].Net().Cents
	if initial == 0 {
		return 0
	}
	current := NetTotal(entries).Cents
	return float64(current-initial) / math.Abs(float64(initial)) * 100
}
