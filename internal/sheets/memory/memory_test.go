package memory

import (
	"context"
	"testing"

	"finify/internal/core"
)

func TestExporterKeepsLatestRows(t *testing.T) {
	e := New()
	ctx := context.Background()

	first := []core.MonthlySummary{{Key: core.MonthKey{Year: 2024, Month: 1}, Label: "January 2024", TotalIncome: core.Money{Cents: 100}}}
	ref, err := e.ExportSummaries(ctx, "u", first)
	if err != nil || ref != "mem:u:1" {
		t.Fatalf("unexpected export: ref=%q err=%v", ref, err)
	}

	if _, err := e.ExportSummaries(ctx, "u", nil); err != nil {
		t.Fatal(err)
	}
	rows := e.Rows("u")
	if len(rows) != 1 || rows[0][0] != "Month" {
		t.Errorf("rows after empty export = %v, want header only", rows)
	}
	if e.Count() != 2 {
		t.Errorf("Count() = %d, want 2", e.Count())
	}
	if len(e.Rows("other")) != 0 {
		t.Error("unexpected rows for unknown user")
	}
}
