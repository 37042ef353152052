package quality

import (
	"fmt"
	"math"
	"sort"

	"vizpilot/internal/domain"
)

// Engine evaluates fetched tables against configured limits. It never aborts a
// request; callers decide what to do with a failing report.
type Engine struct {
	limits domain.QualityLimits
}

func NewEngine(limits domain.QualityLimits) *Engine {
	def := domain.DefaultQualityLimits()
	if limits.MaxRenderRows <= 0 {
		limits.MaxRenderRows = def.MaxRenderRows
	}
	if limits.MaxNullRatio <= 0 {
		limits.MaxNullRatio = def.MaxNullRatio
	}
	if limits.OutlierIQRMultiplier <= 0 {
		limits.OutlierIQRMultiplier = def.OutlierIQRMultiplier
	}
	if limits.MinRowsForOutliers <= 0 {
		limits.MinRowsForOutliers = def.MinRowsForOutliers
	}
	return &Engine{limits: limits}
}

func (e *Engine) Limits() domain.QualityLimits { return e.limits }

// Evaluate inspects the table. Null-ratio violations on the requested metrics
// fail the report; outliers and flat series are warnings; a row count above the
// render cap sets a remediation instead of failing.
func (e *Engine) Evaluate(table domain.Table, metrics []string) domain.QualityReport {
	report := domain.QualityReport{
		Verdict:     domain.VerdictOK,
		RowCount:    table.Len(),
		NullRatios:  map[string]float64{},
		Outliers:    map[string]domain.OutlierSummary{},
		Remediation: domain.RemediationNone,
	}
	if table.Empty() {
		report.Errors = append(report.Errors, domain.QualityIssue{
			Code:    string(domain.CodeBadData),
			Message: "table has no rows",
		})
		report.Verdict = domain.VerdictFail
		return report
	}

	e.checkDates(table, &report)

	requested := metrics
	if len(requested) == 0 {
		requested = table.MetricColumns()
	}
	isRequested := make(map[string]bool, len(requested))
	for _, m := range requested {
		isRequested[m] = true
		if !table.HasColumn(m) {
			report.Errors = append(report.Errors, domain.QualityIssue{
				Code:    string(domain.CodeBadData),
				Column:  m,
				Message: fmt.Sprintf("metric %q not present in table columns %v", m, table.Columns),
			})
		}
	}

	for _, col := range table.MetricColumns() {
		values, valid := table.Floats(col)
		nulls := 0
		present := make([]float64, 0, len(values))
		for i, ok := range valid {
			if !ok {
				nulls++
				continue
			}
			present = append(present, values[i])
		}
		ratio := float64(nulls) / float64(len(values))
		report.NullRatios[col] = ratio

		switch {
		case ratio > e.limits.MaxNullRatio && isRequested[col]:
			report.Errors = append(report.Errors, domain.QualityIssue{
				Code:    string(domain.CodeBadData),
				Column:  col,
				Message: fmt.Sprintf("column %q null ratio %.3f exceeds threshold %.3f", col, ratio, e.limits.MaxNullRatio),
			})
		case ratio > e.limits.MaxNullRatio/2:
			report.Warnings = append(report.Warnings, domain.QualityIssue{
				Code:    domain.QualityMissingMany,
				Column:  col,
				Message: fmt.Sprintf("column %q null ratio %.3f is above half the threshold", col, ratio),
			})
		}

		if isFlat(present) {
			report.Warnings = append(report.Warnings, domain.QualityIssue{
				Code:    domain.QualityFlatSeries,
				Column:  col,
				Message: fmt.Sprintf("column %q is constant", col),
			})
		}

		if idx := e.outliers(values, valid); len(idx) > 0 {
			report.Outliers[col] = domain.OutlierSummary{Count: len(idx), Indices: idx}
			report.OutlierCount += len(idx)
			report.Warnings = append(report.Warnings, domain.QualityIssue{
				Code:    domain.QualityOutliers,
				Column:  col,
				Message: fmt.Sprintf("column %q has %d outliers outside %.1fx IQR", col, len(idx), e.limits.OutlierIQRMultiplier),
			})
		}
	}

	if table.Len() > e.limits.MaxRenderRows {
		report.ExceedsRenderCap = true
		report.Remediation = domain.RemediationDecimate
		report.SuggestedActions = []string{
			string(domain.RemediationDecimate),
			string(domain.RemediationAggregateMonthly),
		}
	}

	if len(report.Errors) > 0 {
		report.Verdict = domain.VerdictFail
	}
	return report
}

func (e *Engine) checkDates(table domain.Table, report *domain.QualityReport) {
	monotonic := true
	var prev domain.Row
	for i, row := range table.Rows {
		if _, ok := table.Date(i); !ok {
			report.Errors = append(report.Errors, domain.QualityIssue{
				Code:    string(domain.CodeBadData),
				Column:  domain.DateColumn,
				Message: fmt.Sprintf("row %d has no parseable date", i),
			})
			return
		}
		if prev != nil {
			a, _ := table.Date(i - 1)
			b, _ := table.Date(i)
			if b.Before(a) {
				monotonic = false
			}
		}
		prev = row
	}
	if !monotonic {
		report.Warnings = append(report.Warnings, domain.QualityIssue{
			Code:    domain.QualityUnsorted,
			Column:  domain.DateColumn,
			Message: "date column is not non-decreasing",
		})
	}
}

// outliers applies the IQR rule. Series shorter than the configured minimum or
// with zero spread are skipped.
func (e *Engine) outliers(values []float64, valid []bool) []int {
	present := make([]float64, 0, len(values))
	for i, ok := range valid {
		if ok {
			present = append(present, values[i])
		}
	}
	if len(present) < e.limits.MinRowsForOutliers {
		return nil
	}
	sort.Float64s(present)
	q1 := quantile(present, 0.25)
	q3 := quantile(present, 0.75)
	iqr := q3 - q1
	if iqr == 0 {
		return nil
	}
	lo := q1 - e.limits.OutlierIQRMultiplier*iqr
	hi := q3 + e.limits.OutlierIQRMultiplier*iqr
	var idx []int
	for i, ok := range valid {
		if ok && (values[i] < lo || values[i] > hi) {
			idx = append(idx, i)
		}
	}
	return idx
}

// quantile uses linear interpolation between closest ranks on sorted input.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

func isFlat(values []float64) bool {
	if len(values) < 2 {
		return false
	}
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}
