package connector

import (
	"fmt"
	"strings"
	"time"

	"vizpilot/internal/domain"
)

// defaultLookback is used when a request has no start date.
const defaultLookback = 6 * 30 * 24 * time.Hour

type window struct {
	start time.Time
	end   time.Time
}

func resolveWindow(r domain.TimeRange, now time.Time) (window, error) {
	w := window{end: now.UTC().Truncate(24 * time.Hour)}
	if s := strings.TrimSpace(r.End); s != "" {
		t, err := time.Parse(domain.DateLayout, s)
		if err != nil {
			return window{}, fmt.Errorf("invalid end date %q: %w", s, err)
		}
		w.end = t
	}
	if s := strings.TrimSpace(r.Start); s != "" {
		t, err := time.Parse(domain.DateLayout, s)
		if err != nil {
			return window{}, fmt.Errorf("invalid start date %q: %w", s, err)
		}
		w.start = t
	} else {
		w.start = w.end.Add(-defaultLookback)
	}
	if w.start.After(w.end) {
		return window{}, fmt.Errorf("start %s is after end %s", w.start.Format(domain.DateLayout), w.end.Format(domain.DateLayout))
	}
	return w, nil
}

func (w window) contains(t time.Time) bool {
	return !t.Before(w.start) && !t.After(w.end)
}

// clip keeps rows whose date falls inside the window.
func (w window) clip(t domain.Table) domain.Table {
	out := domain.Table{Columns: t.Columns}
	for i, row := range t.Rows {
		if d, ok := t.Date(i); ok && w.contains(d) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// normalizeColumn maps provider headers onto table column names.
func normalizeColumn(name string) string {
	name = strings.TrimSpace(name)
	switch strings.ToLower(name) {
	case "date", "datetime", "timestamp":
		return domain.DateColumn
	case "adj close", "adj_close", "adjclose":
		return "Adj_Close"
	}
	return strings.ReplaceAll(name, " ", "_")
}
