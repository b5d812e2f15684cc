package memory

import (
	"context"
	"fmt"
	"sync"

	"finify/internal/core"
	ports "finify/internal/sheets"
)

// Exporter keeps the latest export per user in memory.
type Exporter struct {
	mu      sync.Mutex
	exports map[string][][]any
	count   int
}

var _ ports.SummaryExporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{exports: make(map[string][][]any)}
}

// ExportSummaries stores the rendered rows and returns a synthetic reference.
func (e *Exporter) ExportSummaries(_ context.Context, userID string, summaries []core.MonthlySummary) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.exports[userID] = ports.Rows(summaries)
	e.count++
	return fmt.Sprintf("mem:%s:%d", userID, e.count), nil
}

// Rows returns the last exported table for userID, header included.
func (e *Exporter) Rows(userID string) [][]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([][]any(nil), e.exports[userID]...)
}

// Count is the number of exports performed.
func (e *Exporter) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.count
}
