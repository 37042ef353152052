package quality

import (
	"errors"
	"testing"
	"time"

	"vizpilot/internal/domain"
)

func TestDecimate_RetainsFirstAndLast(t *testing.T) {
	tests := []struct {
		name    string
		rows    int
		maxRows int
	}{
		{name: "exact multiple", rows: 10000, maxRows: 5000},
		{name: "one over", rows: 5001, maxRows: 5000},
		{name: "small", rows: 11, maxRows: 4},
		{name: "large ratio", rows: 997, maxRows: 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := make([]any, tt.rows)
			for i := range values {
				values[i] = float64(i)
			}
			table := dailyTable(values...)
			out, action, err := Decimate(table, tt.maxRows)
			if err != nil {
				t.Fatalf("decimate: %v", err)
			}
			if out.Len() > tt.maxRows {
				t.Fatalf("expected at most %d rows, got %d", tt.maxRows, out.Len())
			}
			first, _ := out.Float(0, "Close")
			last, _ := out.Float(out.Len()-1, "Close")
			if first != 0 || last != float64(tt.rows-1) {
				t.Fatalf("expected first=0 last=%d, got %v %v", tt.rows-1, first, last)
			}
			if action == "" || action == "none" {
				t.Fatalf("expected decimation action, got %q", action)
			}
		})
	}
}

func TestDecimate_NoopUnderCap(t *testing.T) {
	table := dailyTable(1.0, 2.0, 3.0)
	out, action, err := Decimate(table, 10)
	if err != nil {
		t.Fatalf("decimate: %v", err)
	}
	if out.Len() != 3 || action != "none" {
		t.Fatalf("expected untouched table, got %d rows action %q", out.Len(), action)
	}
}

func TestAggregateMonthly_LastObservation(t *testing.T) {
	table := domain.NewTable([]string{"Close"})
	add := func(y int, m time.Month, d int, v any) {
		table.Rows = append(table.Rows, domain.Row{
			domain.DateColumn: time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
			"Close":           v,
		})
	}
	add(2024, 1, 2, 10.0)
	add(2024, 1, 15, 12.0)
	add(2024, 1, 31, nil)
	add(2024, 2, 1, 20.0)
	add(2024, 2, 28, 21.0)

	out, err := AggregateMonthly(table)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if out.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", out.Len())
	}
	jan, _ := out.Float(0, "Close")
	feb, _ := out.Float(1, "Close")
	if jan != 12.0 || feb != 21.0 {
		t.Fatalf("expected last non-null per month 12, 21; got %v, %v", jan, feb)
	}
	d, _ := out.Date(1)
	if d.Day() != 29 || d.Month() != time.February {
		t.Fatalf("expected month-end 2024-02-29, got %s", d.Format(domain.DateLayout))
	}
}

func TestAutofix_UnknownMethod(t *testing.T) {
	engine := NewEngine(domain.QualityLimits{})
	_, _, err := engine.Autofix(dailyTable(1.0), domain.RemediationAction("smooth"))
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}
}

func TestAutofix_DoesNotMutateInput(t *testing.T) {
	engine := NewEngine(domain.QualityLimits{MaxRenderRows: 2})
	table := dailyTable(1.0, 2.0, 3.0, 4.0)
	if _, _, err := engine.Autofix(table, domain.RemediationDecimate); err != nil {
		t.Fatalf("autofix: %v", err)
	}
	if table.Len() != 4 {
		t.Fatalf("input table mutated: %d rows", table.Len())
	}
}
