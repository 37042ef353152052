package connector

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"vizpilot/internal/domain"
	"vizpilot/internal/usecase"

	"github.com/spf13/afero"
)

var csvDateLayouts = []string{domain.DateLayout, "2006/01/02", time.RFC3339, "01/02/2006"}

// CSV reads <dir>/<IDENTIFIER>.csv. The first column named date (any case) is
// the date column; empty, NA and null cells are nulls.
type CSV struct {
	fs  afero.Fs
	dir string
	now func() time.Time
}

func NewCSV(fs afero.Fs, dir string) *CSV {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &CSV{fs: fs, dir: dir, now: time.Now}
}

func (c *CSV) Name() string { return "csv" }

func (c *CSV) Fetch(ctx context.Context, req usecase.FetchRequest) (usecase.FetchResult, error) {
	if err := ctx.Err(); err != nil {
		return usecase.FetchResult{}, err
	}
	id := strings.ToUpper(strings.TrimSpace(req.Identifier))
	src := domain.SourceRecord{Connector: c.Name(), Identifier: id, FetchedAt: c.now().UTC(), Status: "error"}
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return usecase.FetchResult{Source: src}, fmt.Errorf("%w: invalid identifier %q", domain.ErrNoData, req.Identifier)
	}

	f, err := c.fs.Open(filepath.Join(c.dir, id+".csv"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return usecase.FetchResult{Source: src}, fmt.Errorf("%w: no csv for %s", domain.ErrNoData, id)
		}
		return usecase.FetchResult{Source: src}, fmt.Errorf("%w: %v", domain.ErrConnector, err)
	}
	defer f.Close()

	table, err := ReadCSV(f)
	if err != nil {
		return usecase.FetchResult{Source: src}, fmt.Errorf("%w: %s.csv: %v", domain.ErrConnector, id, err)
	}
	if req.Range.Start != "" || req.Range.End != "" {
		w, err := resolveWindow(req.Range, c.now())
		if err != nil {
			return usecase.FetchResult{Source: src}, fmt.Errorf("%w: %v", domain.ErrConnector, err)
		}
		table = w.clip(table)
	}
	src.Status = "ok"
	src.RowCount = table.Len()
	return usecase.FetchResult{Table: table, Source: src}, nil
}

// ReadCSV parses a CSV table with a date column and numeric metric columns.
func ReadCSV(r io.Reader) (domain.Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if err != nil {
		return domain.Table{}, fmt.Errorf("read header: %w", err)
	}
	cols := make([]string, len(header))
	dateIdx := -1
	for i, h := range header {
		cols[i] = normalizeColumn(h)
		if cols[i] == domain.DateColumn && dateIdx < 0 {
			dateIdx = i
		}
	}
	if dateIdx < 0 {
		return domain.Table{}, errors.New("no date column in header")
	}

	var metrics []string
	for i, c := range cols {
		if i != dateIdx {
			metrics = append(metrics, c)
		}
	}
	table := domain.NewTable(metrics)
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.Table{}, err
		}
		row := domain.Row{}
		for i, raw := range rec {
			if i >= len(cols) {
				break
			}
			raw = strings.TrimSpace(raw)
			if i == dateIdx {
				if d, ok := parseDate(raw); ok {
					row[domain.DateColumn] = d
				} else {
					row[domain.DateColumn] = raw
				}
				continue
			}
			row[cols[i]] = parseCell(raw)
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range csvDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Truncate(24 * time.Hour), true
		}
	}
	return time.Time{}, false
}

func parseCell(s string) any {
	switch strings.ToLower(s) {
	case "", "na", "nan", "null", "none":
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return nil
	}
	return v
}
