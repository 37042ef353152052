package quality

import (
	"fmt"
	"time"

	"vizpilot/internal/domain"
)

// Autofix applies an explicit repair. It is pure and returns the new table plus
// a description of what was done.
func (e *Engine) Autofix(table domain.Table, method domain.RemediationAction) (domain.Table, string, error) {
	switch method {
	case domain.RemediationDecimate:
		return Decimate(table, e.limits.MaxRenderRows)
	case domain.RemediationAggregateMonthly:
		out, err := AggregateMonthly(table)
		if err != nil {
			return domain.Table{}, "", err
		}
		return out, "resample_monthly_agg_last", nil
	case domain.RemediationNone, "":
		return table.Clone(), "none", nil
	}
	return domain.Table{}, "", fmt.Errorf("%w: unknown autofix method %q", domain.ErrInvalidRequest, method)
}

// Decimate keeps every k-th row plus the last row, choosing the smallest k that
// brings the row count within maxRows.
func Decimate(table domain.Table, maxRows int) (domain.Table, string, error) {
	if maxRows < 2 {
		return domain.Table{}, "", fmt.Errorf("%w: decimation cap must be at least 2, got %d", domain.ErrInvalidRequest, maxRows)
	}
	n := table.Len()
	if n <= maxRows {
		return table.Clone(), "none", nil
	}
	k := (n - 1 + maxRows - 2) / (maxRows - 1)
	out := domain.Table{Columns: append([]string(nil), table.Columns...)}
	src := table.Clone()
	for i := 0; i < n; i += k {
		out.Rows = append(out.Rows, src.Rows[i])
	}
	if (n-1)%k != 0 {
		out.Rows = append(out.Rows, src.Rows[n-1])
	}
	return out, fmt.Sprintf("decimate_every_%d_kept_%d_rows", k, out.Len()), nil
}

// AggregateMonthly groups rows by calendar month and keeps, per column, the last
// non-null observation in the month. Output rows are dated at month end.
func AggregateMonthly(table domain.Table) (domain.Table, error) {
	return resampleMonthly(table, aggLast)
}

type aggFunc func(values []float64) float64

func aggLast(values []float64) float64  { return values[len(values)-1] }
func aggFirst(values []float64) float64 { return values[0] }

func aggMean(values []float64) float64 {
	return aggSum(values) / float64(len(values))
}

func aggSum(values []float64) float64 {
	var s float64
	for _, v := range values {
		s += v
	}
	return s
}

// Aggregator resolves a named monthly aggregation.
func Aggregator(name string) (func(domain.Table) (domain.Table, error), bool) {
	var fn aggFunc
	switch name {
	case "", "last":
		fn = aggLast
	case "first":
		fn = aggFirst
	case "mean":
		fn = aggMean
	case "sum":
		fn = aggSum
	default:
		return nil, false
	}
	return func(t domain.Table) (domain.Table, error) { return resampleMonthly(t, fn) }, true
}

func resampleMonthly(table domain.Table, agg aggFunc) (domain.Table, error) {
	sorted := table.Clone()
	sorted.SortByDate()

	type bucket struct {
		end    time.Time
		values map[string][]float64
	}
	var buckets []*bucket
	var current *bucket
	for i := range sorted.Rows {
		d, ok := sorted.Date(i)
		if !ok {
			return domain.Table{}, fmt.Errorf("%w: row %d has no parseable date", domain.ErrBadData, i)
		}
		end := monthEnd(d)
		if current == nil || !current.end.Equal(end) {
			current = &bucket{end: end, values: map[string][]float64{}}
			buckets = append(buckets, current)
		}
		for _, col := range sorted.MetricColumns() {
			if v, ok := sorted.Float(i, col); ok {
				current.values[col] = append(current.values[col], v)
			}
		}
	}

	out := domain.Table{Columns: append([]string(nil), sorted.Columns...)}
	for _, b := range buckets {
		row := domain.Row{domain.DateColumn: b.end}
		for _, col := range sorted.MetricColumns() {
			vals := b.values[col]
			if len(vals) == 0 {
				row[col] = nil
				continue
			}
			row[col] = agg(vals)
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

func monthEnd(t time.Time) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, 1, -1)
}
