// Package sheets defines the summary export port and the row layout shared
// by its implementations.
package sheets

import (
	"context"

	"finify/internal/core"
)

// Ports for outbound adapters.
type (
	// SummaryExporter replaces the exported monthly summaries of a user.
	SummaryExporter interface {
		ExportSummaries(ctx context.Context, userID string, summaries []core.MonthlySummary) (ref string, err error)
	}
)

// Header is the first row of an exported summary table.
var Header = []any{"Month", "Key", "Income", "Expenses", "Net"}

// Rows renders summaries as table rows below Header. Amounts are plain
// base-currency decimals so the sheet parses them as numbers.
func Rows(summaries []core.MonthlySummary) [][]any {
	rows := make([][]any, 0, len(summaries)+1)
	rows = append(rows, Header)
	for _, s := range summaries {
		rows = append(rows, []any{
			s.Label,
			s.Key.String(),
			s.TotalIncome.String(),
			s.TotalExpenses.String(),
			s.NetProfitLoss.String(),
		})
	}
	return rows
}
