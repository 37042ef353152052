package normalizer

import (
	"fmt"
	"time"

	"vizpilot/internal/domain"
)

// JoinSeries inner-joins tables on calendar date. Metric columns are prefixed
// with their table's label, e.g. AAPL_Close. A single table is returned as is.
func JoinSeries(labels []string, tables []domain.Table) (domain.Table, error) {
	if len(labels) != len(tables) {
		return domain.Table{}, fmt.Errorf("join: %d labels for %d tables", len(labels), len(tables))
	}
	if len(tables) == 0 {
		return domain.Table{}, fmt.Errorf("%w: nothing to join", domain.ErrNoData)
	}
	if len(tables) == 1 {
		return tables[0], nil
	}
	if len(tables) > domain.MaxSeries {
		return domain.Table{}, fmt.Errorf("join: at most %d series, got %d", domain.MaxSeries, len(tables))
	}

	byDay := make([]map[string]domain.Row, len(tables))
	for i, t := range tables {
		byDay[i] = make(map[string]domain.Row, t.Len())
		for r := range t.Rows {
			d, ok := t.Date(r)
			if !ok {
				return domain.Table{}, fmt.Errorf("%w: %s row %d has no parseable date", domain.ErrBadData, labels[i], r)
			}
			byDay[i][d.Format(domain.DateLayout)] = t.Rows[r]
		}
	}

	var cols []string
	for i, t := range tables {
		for _, c := range t.MetricColumns() {
			cols = append(cols, labels[i]+"_"+c)
		}
	}
	out := domain.NewTable(cols)

	base := tables[0].Clone()
	base.SortByDate()
	for r := range base.Rows {
		d, _ := base.Date(r)
		key := d.Format(domain.DateLayout)
		row := domain.Row{domain.DateColumn: time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)}
		complete := true
		for i, t := range tables {
			src, ok := byDay[i][key]
			if !ok {
				complete = false
				break
			}
			for _, c := range t.MetricColumns() {
				row[labels[i]+"_"+c] = src[c]
			}
		}
		if complete {
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}
