package intent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"vizpilot/internal/domain"
	"vizpilot/internal/infra/llm"
)

var requiredKeys = []string{"goal", "chart_type", "metrics"}

// wireTask is the TASK JSON a model is asked to return. It accepts a single
// symbol or a list, and clarify as either a string or {"question": "..."}.
type wireTask struct {
	Goal       string                    `json:"goal"`
	ChartType  string                    `json:"chart_type"`
	Metrics    []string                  `json:"metrics"`
	Symbol     *string                   `json:"symbol"`
	Symbols    []string                  `json:"symbols"`
	DatasetKey *string                   `json:"dataset_key"`
	TimeRange  wireRange                 `json:"time_range"`
	Interval   string                    `json:"interval"`
	Transforms []domain.TransformRequest `json:"transforms"`
	Clarify    json.RawMessage           `json:"clarify"`
}

type wireRange struct {
	Start *string `json:"start"`
	End   *string `json:"end"`
}

// decodeTask extracts the first JSON object from text, checks the required
// keys and maps it onto a Task.
func decodeTask(text string) (domain.Task, error) {
	obj, err := firstObject(text)
	if err != nil {
		return domain.Task{}, err
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(obj, &keys); err != nil {
		return domain.Task{}, fmt.Errorf("%w: parsed JSON is not an object: %v", domain.ErrIntentParse, err)
	}
	for _, k := range requiredKeys {
		if _, ok := keys[k]; !ok {
			return domain.Task{}, fmt.Errorf("%w: missing required key '%s' in parsed intent", domain.ErrIntentParse, k)
		}
	}
	var w wireTask
	if err := json.Unmarshal(obj, &w); err != nil {
		return domain.Task{}, fmt.Errorf("%w: %v", domain.ErrIntentParse, err)
	}
	return w.task(), nil
}

func (w wireTask) task() domain.Task {
	t := domain.Task{
		Goal:       strings.TrimSpace(w.Goal),
		ChartType:  chartType(w.ChartType),
		Interval:   w.Interval,
		Transforms: w.Transforms,
		Clarify:    clarifyQuestion(w.Clarify),
	}
	for _, m := range w.Metrics {
		t.Metrics = append(t.Metrics, columnName(m))
	}
	for i := range t.Transforms {
		t.Transforms[i].Field = columnName(t.Transforms[i].Field)
	}
	seen := map[string]bool{}
	add := func(s string) {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" && !seen[s] {
			seen[s] = true
			t.Symbols = append(t.Symbols, s)
		}
	}
	if w.Symbol != nil {
		add(*w.Symbol)
	}
	for _, s := range w.Symbols {
		add(s)
	}
	if w.DatasetKey != nil {
		t.DatasetKey = strings.TrimSpace(*w.DatasetKey)
	}
	if w.TimeRange.Start != nil {
		t.TimeRange.Start = *w.TimeRange.Start
	}
	if w.TimeRange.End != nil {
		t.TimeRange.End = *w.TimeRange.End
	}
	return t
}

func chartType(s string) domain.ChartType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "scatter", "point":
		return domain.ChartPoint
	case "":
		return domain.ChartAuto
	}
	return domain.ChartType(strings.ToLower(strings.TrimSpace(s)))
}

// columnName maps display names such as "Adj Close" onto table columns.
func columnName(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), " ", "_")
}

func clarifyQuestion(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var q struct {
		Question string `json:"question"`
	}
	if err := json.Unmarshal(raw, &q); err == nil {
		return strings.TrimSpace(q.Question)
	}
	return ""
}

func firstObject(text string) ([]byte, error) {
	obj, err := llm.ExtractObject(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIntentParse, err)
	}
	return obj, nil
}
