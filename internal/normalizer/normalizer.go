package normalizer

import (
	"fmt"
	"strconv"
	"strings"

	"vizpilot/internal/domain"
	"vizpilot/internal/quality"
)

// Apply runs one transform and returns a new table; the input is not modified.
// Derived columns are named after the source field, transform and parameters, so
// re-applying a transform overwrites its own output.
func Apply(table domain.Table, req domain.TransformRequest) (domain.Table, domain.TransformRecord, error) {
	table = dateOrdered(table)
	field := strings.TrimSpace(req.Field)
	switch req.Op {
	case domain.OpMovingAverage:
		if req.Window <= 0 {
			return domain.Table{}, domain.TransformRecord{}, fmt.Errorf("%w: moving_average window must be > 0, got %d", domain.ErrInvalidTransform, req.Window)
		}
		if err := requireNumericField(table, field, req.Op); err != nil {
			return domain.Table{}, domain.TransformRecord{}, err
		}
		out := DerivedName(req)
		return table.WithColumn(out, movingAverage(table, field, req.Window)), record(req, out, map[string]any{"field": field, "window": req.Window}), nil

	case domain.OpRebasedIndex:
		if err := requireNumericField(table, field, req.Op); err != nil {
			return domain.Table{}, domain.TransformRecord{}, err
		}
		base := rebaseBase(req)
		values, err := rebasedIndex(table, field, base)
		if err != nil {
			return domain.Table{}, domain.TransformRecord{}, err
		}
		out := DerivedName(req)
		return table.WithColumn(out, values), record(req, out, map[string]any{"field": field, "base": base}), nil

	case domain.OpPctChange:
		periods := req.Periods
		if periods == 0 {
			periods = 1
		}
		if periods < 0 {
			return domain.Table{}, domain.TransformRecord{}, fmt.Errorf("%w: pct_change periods must be > 0, got %d", domain.ErrInvalidTransform, periods)
		}
		if err := requireNumericField(table, field, req.Op); err != nil {
			return domain.Table{}, domain.TransformRecord{}, err
		}
		out := DerivedName(req)
		return table.WithColumn(out, pctChange(table, field, periods)), record(req, out, map[string]any{"field": field, "periods": periods}), nil

	case domain.OpResample:
		period := strings.ToLower(strings.TrimSpace(req.Period))
		if period != "" && period != "monthly" && period != "m" {
			return domain.Table{}, domain.TransformRecord{}, fmt.Errorf("%w: resample period %q is not supported (monthly only)", domain.ErrInvalidTransform, req.Period)
		}
		if field != "" && !table.HasColumn(field) {
			return domain.Table{}, domain.TransformRecord{}, missingField(table, field, req.Op)
		}
		agg, ok := quality.Aggregator(req.Agg)
		if !ok {
			return domain.Table{}, domain.TransformRecord{}, fmt.Errorf("%w: resample agg %q is not supported", domain.ErrInvalidTransform, req.Agg)
		}
		if table.Empty() {
			return domain.Table{}, domain.TransformRecord{}, fmt.Errorf("%w: cannot resample an empty table", domain.ErrBadData)
		}
		out, err := agg(table)
		if err != nil {
			return domain.Table{}, domain.TransformRecord{}, err
		}
		aggName := req.Agg
		if aggName == "" {
			aggName = "last"
		}
		return out, record(req, "", map[string]any{"field": field, "period": "monthly", "agg": aggName}), nil
	}
	return domain.Table{}, domain.TransformRecord{}, fmt.Errorf("%w: unsupported transform op %q", domain.ErrInvalidTransform, req.Op)
}

// ApplyAll composes transforms in request order and stops at the first failure.
func ApplyAll(table domain.Table, reqs []domain.TransformRequest) (domain.Table, []domain.TransformRecord, error) {
	out := table
	records := make([]domain.TransformRecord, 0, len(reqs))
	for _, req := range reqs {
		next, rec, err := Apply(out, req)
		if err != nil {
			return domain.Table{}, records, fmt.Errorf("%s: %w", req, err)
		}
		out = next
		records = append(records, rec)
	}
	return out, records, nil
}

// DerivedName is the output column of a transform, or "" when the transform
// reshapes rows instead of adding a column.
func DerivedName(req domain.TransformRequest) string {
	switch req.Op {
	case domain.OpMovingAverage:
		return fmt.Sprintf("%s_ma_%d", req.Field, req.Window)
	case domain.OpRebasedIndex:
		return fmt.Sprintf("%s_rebased_%s", req.Field, strconv.FormatFloat(rebaseBase(req), 'f', -1, 64))
	case domain.OpPctChange:
		periods := req.Periods
		if periods == 0 {
			periods = 1
		}
		return fmt.Sprintf("%s_pct_%d", req.Field, periods)
	}
	return ""
}

func rebaseBase(req domain.TransformRequest) float64 {
	if req.Base == 0 {
		return 100
	}
	return req.Base
}

func record(req domain.TransformRequest, output string, params map[string]any) domain.TransformRecord {
	return domain.TransformRecord{Name: req.Op, Params: params, Output: output}
}

func requireNumericField(table domain.Table, field, op string) error {
	if field == "" || !table.HasColumn(field) || field == domain.DateColumn {
		return missingField(table, field, op)
	}
	_, valid := table.Floats(field)
	for _, ok := range valid {
		if ok {
			return nil
		}
	}
	return fmt.Errorf("%w: field %q contains no numeric data", domain.ErrBadData, field)
}

func missingField(table domain.Table, field, op string) error {
	return fmt.Errorf("%w: %s requires existing field %q, available: %v", domain.ErrBadData, op, field, table.Columns)
}

func dateOrdered(table domain.Table) domain.Table {
	for i := 1; i < table.Len(); i++ {
		a, aok := table.Date(i - 1)
		b, bok := table.Date(i)
		if aok && bok && b.Before(a) {
			out := table.Clone()
			out.SortByDate()
			return out
		}
	}
	return table
}
