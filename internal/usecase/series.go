package usecase

import "vizpilot/internal/domain"

// metricColumns maps requested metrics onto table columns. Joined tables carry
// SYMBOL_metric columns.
func metricColumns(task domain.Task, table domain.Table) []string {
	var out []string
	for _, m := range task.Metrics {
		if table.HasColumn(m) {
			out = append(out, m)
			continue
		}
		matched := false
		for _, sym := range task.Symbols {
			if col := sym + "_" + m; table.HasColumn(col) {
				out = append(out, col)
				matched = true
			}
		}
		if !matched {
			out = append(out, m)
		}
	}
	return out
}

// expandTransforms applies a transform on a bare metric to every series column
// of a joined table.
func expandTransforms(task domain.Task, table domain.Table) []domain.TransformRequest {
	out := make([]domain.TransformRequest, 0, len(task.Transforms))
	for _, t := range task.Transforms {
		if t.Field == "" || table.HasColumn(t.Field) || len(task.Symbols) < 2 {
			out = append(out, t)
			continue
		}
		expanded := false
		for _, sym := range task.Symbols {
			col := sym + "_" + t.Field
			if table.HasColumn(col) {
				e := t
				e.Field = col
				out = append(out, e)
				expanded = true
			}
		}
		if !expanded {
			out = append(out, t)
		}
	}
	return out
}
