package domain

import (
	"math"
	"sort"
	"time"
)

// DateColumn is always the first column of a Table.
const DateColumn = "date"

const DateLayout = "2006-01-02"

// Row maps a column name to its cell. The date column holds a time.Time;
// metric columns hold a float64 or nil.
type Row map[string]any

type Table struct {
	Columns []string
	Rows    []Row
}

func NewTable(columns []string) Table {
	cols := make([]string, 0, len(columns)+1)
	cols = append(cols, DateColumn)
	for _, c := range columns {
		if c != DateColumn {
			cols = append(cols, c)
		}
	}
	return Table{Columns: cols}
}

func (t Table) Len() int { return len(t.Rows) }

func (t Table) Empty() bool { return len(t.Rows) == 0 }

func (t Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// MetricColumns returns every column except the date column, in header order.
func (t Table) MetricColumns() []string {
	out := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		if c != DateColumn {
			out = append(out, c)
		}
	}
	return out
}

func (t Table) Date(i int) (time.Time, bool) {
	if i < 0 || i >= len(t.Rows) {
		return time.Time{}, false
	}
	v, ok := t.Rows[i][DateColumn].(time.Time)
	return v, ok
}

// Float returns the numeric cell at row i. Nulls and NaN report ok=false.
func (t Table) Float(i int, column string) (float64, bool) {
	if i < 0 || i >= len(t.Rows) {
		return 0, false
	}
	return toFloat(t.Rows[i][column])
}

// Floats returns the column values and a validity mask of equal length.
func (t Table) Floats(column string) ([]float64, []bool) {
	values := make([]float64, len(t.Rows))
	valid := make([]bool, len(t.Rows))
	for i := range t.Rows {
		values[i], valid[i] = t.Float(i, column)
	}
	return values, valid
}

// WithColumn returns a copy of the table with column name set to values.
// A nil entry is stored as a null cell. An existing column is replaced in place.
func (t Table) WithColumn(name string, values []*float64) Table {
	out := t.Clone()
	if !out.HasColumn(name) {
		out.Columns = append(out.Columns, name)
	}
	for i := range out.Rows {
		if i < len(values) && values[i] != nil {
			out.Rows[i][name] = *values[i]
		} else {
			out.Rows[i][name] = nil
		}
	}
	return out
}

func (t Table) Clone() Table {
	out := Table{
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([]Row, len(t.Rows)),
	}
	for i, r := range t.Rows {
		cp := make(Row, len(r))
		for k, v := range r {
			cp[k] = v
		}
		out.Rows[i] = cp
	}
	return out
}

// SortByDate orders rows ascending by date; rows without a date sort last.
func (t *Table) SortByDate() {
	sort.SliceStable(t.Rows, func(i, j int) bool {
		a, aok := t.Rows[i][DateColumn].(time.Time)
		b, bok := t.Rows[j][DateColumn].(time.Time)
		if aok != bok {
			return aok
		}
		return a.Before(b)
	})
}

// Records renders rows as JSON-friendly maps with dates formatted as YYYY-MM-DD.
// At most limit rows are returned when limit > 0.
func (t Table) Records(limit int) []map[string]any {
	n := len(t.Rows)
	if limit > 0 && n > limit {
		n = limit
	}
	out := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		rec := make(map[string]any, len(t.Columns))
		for _, c := range t.Columns {
			v := t.Rows[i][c]
			switch tv := v.(type) {
			case time.Time:
				rec[c] = tv.Format(DateLayout)
			case float64:
				if math.IsNaN(tv) || math.IsInf(tv, 0) {
					rec[c] = nil
				} else {
					rec[c] = tv
				}
			default:
				rec[c] = v
			}
		}
		out = append(out, rec)
	}
	return out
}

func PtrFloat(v float64) *float64 { return &v }

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	case float32:
		return toFloat(float64(n))
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
