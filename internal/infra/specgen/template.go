package specgen

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"vizpilot/internal/domain"
	"vizpilot/internal/infra/crypto"
	"vizpilot/internal/usecase"

	"github.com/oklog/ulid/v2"
)

// TemplateGenerator builds specs from the table columns without a model. Line,
// area and point charts become one layer per series; bar charts stay flat.
type TemplateGenerator struct {
	Now func() time.Time
}

func (g *TemplateGenerator) Generate(_ context.Context, req usecase.GenerationRequest) (usecase.Generation, error) {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	hash, err := crypto.ContentHash("template", req.Task, req.Columns, req.DerivedFields, req.PriorErrors)
	if err != nil {
		return usecase.Generation{}, err
	}

	series := plotSeries(req)
	if len(series) == 0 {
		return usecase.Generation{}, fmt.Errorf("%w: no numeric columns to plot in %v", domain.ErrGeneration, req.Columns)
	}

	spec := domain.ChartSpec{
		"$schema":     domain.VegaLiteSchema,
		"description": req.Task.Goal,
		"title":       title(req.Task),
		"width":       "container",
		"height":      320,
	}
	mark := markFor(req.Task.ChartType)
	if mark == "bar" || len(series) == 1 {
		spec["mark"] = map[string]any{"type": mark, "tooltip": true}
		spec["encoding"] = encoding(series[0])
	} else {
		layers := make([]any, 0, len(series))
		for i, field := range series {
			m := map[string]any{"type": mark, "tooltip": true}
			if i > 0 && isSmoothed(field) {
				m["strokeDash"] = []any{6, 3}
			}
			layers = append(layers, map[string]any{"mark": m, "encoding": encoding(field)})
		}
		spec["layer"] = layers
	}

	gen := usecase.Generation{
		Spec:               spec,
		Explanation:        explanation(req.Task, series),
		ConnectorsRequired: firstOf(req.Connectors),
		Call: usecase.CallMeta{
			Model:       "template",
			ContentHash: hash,
			ResponseID:  ulid.MustNew(ulid.Timestamp(now()), ulid.Monotonic(rand.Reader, 0)).String(),
		},
	}
	return gen, nil
}

// plotSeries picks the columns to draw: derived columns alone for rebased or
// percent-change views, otherwise the base metrics followed by derived ones.
func plotSeries(req usecase.GenerationRequest) []string {
	has := map[string]bool{}
	for _, c := range req.Columns {
		has[c] = true
	}
	var derived []string
	for _, d := range req.DerivedFields {
		if has[d] {
			derived = append(derived, d)
		}
	}
	if len(derived) > 0 && rescales(req.Task) {
		return derived
	}

	var out []string
	for _, m := range req.Task.Metrics {
		if has[m] {
			out = append(out, m)
			continue
		}
		for _, sym := range req.Task.Symbols {
			if col := sym + "_" + m; has[col] {
				out = append(out, col)
			}
		}
	}
	out = append(out, derived...)
	if len(out) == 0 {
		for _, c := range req.Columns {
			if c != domain.DateColumn {
				return []string{c}
			}
		}
	}
	return out
}

func rescales(task domain.Task) bool {
	for _, t := range task.Transforms {
		if t.Op == domain.OpRebasedIndex || t.Op == domain.OpPctChange {
			return true
		}
	}
	return false
}

func isSmoothed(field string) bool {
	return strings.Contains(field, "_ma_")
}

func markFor(ct domain.ChartType) string {
	switch ct {
	case domain.ChartBar, domain.ChartArea, domain.ChartPoint:
		return string(ct)
	}
	return "line"
}

func encoding(field string) map[string]any {
	return map[string]any{
		"x":     map[string]any{"field": domain.DateColumn, "type": "temporal", "title": "Date"},
		"y":     map[string]any{"field": field, "type": "quantitative", "title": strings.ReplaceAll(field, "_", " ")},
		"color": map[string]any{"datum": strings.ReplaceAll(field, "_", " ")},
	}
}

func title(task domain.Task) string {
	if task.Goal != "" {
		return task.Goal
	}
	return strings.Join(task.Identifiers(), " vs ")
}

func explanation(task domain.Task, series []string) string {
	names := make([]string, len(series))
	for i, s := range series {
		names[i] = strings.ReplaceAll(s, "_", " ")
	}
	subject := strings.Join(task.Identifiers(), " and ")
	if subject == "" {
		subject = "the requested data"
	}
	return fmt.Sprintf("Chart of %s for %s over time.", strings.Join(names, ", "), subject)
}

func firstOf(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	return items[:1]
}
