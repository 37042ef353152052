package domain

import (
	"errors"
	"fmt"
	"strings"
)

type ChartType string

const (
	ChartLine  ChartType = "line"
	ChartBar   ChartType = "bar"
	ChartArea  ChartType = "area"
	ChartPoint ChartType = "point"
	ChartAuto  ChartType = "auto"
)

const (
	OpMovingAverage = "moving_average"
	OpRebasedIndex  = "rebased_index"
	OpResample      = "resample"
	OpPctChange     = "pct_change"
)

// MaxSeries bounds the number of symbols compared in one chart.
const MaxSeries = 2

type TimeRange struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

type TransformRequest struct {
	Op      string  `json:"op"`
	Field   string  `json:"field"`
	Window  int     `json:"window,omitempty"`
	Base    float64 `json:"base,omitempty"`
	Periods int     `json:"periods,omitempty"`
	Period  string  `json:"period,omitempty"`
	Agg     string  `json:"agg,omitempty"`
}

func (r TransformRequest) String() string {
	switch r.Op {
	case OpMovingAverage:
		return fmt.Sprintf("%s(%s,%d)", r.Op, r.Field, r.Window)
	case OpPctChange:
		return fmt.Sprintf("%s(%s,%d)", r.Op, r.Field, r.Periods)
	case OpResample:
		return fmt.Sprintf("%s(%s,%s)", r.Op, r.Field, r.Period)
	default:
		return fmt.Sprintf("%s(%s)", r.Op, r.Field)
	}
}

// Task is the structured plan parsed from a prompt. It is not mutated after parsing.
type Task struct {
	Goal       string             `json:"goal"`
	ChartType  ChartType          `json:"chart_type"`
	Symbols    []string           `json:"symbols,omitempty"`
	DatasetKey string             `json:"dataset_key,omitempty"`
	Metrics    []string           `json:"metrics"`
	TimeRange  TimeRange          `json:"time_range"`
	Interval   string             `json:"interval,omitempty"`
	Transforms []TransformRequest `json:"transforms,omitempty"`
	Clarify    string             `json:"clarify,omitempty"`
}

func (t Task) NeedsClarification() bool {
	return strings.TrimSpace(t.Clarify) != ""
}

// Identifiers lists what the connector must fetch, symbols first.
func (t Task) Identifiers() []string {
	if len(t.Symbols) > 0 {
		return append([]string(nil), t.Symbols...)
	}
	if t.DatasetKey != "" {
		return []string{t.DatasetKey}
	}
	return nil
}

func (t Task) Validate() error {
	if t.NeedsClarification() {
		return nil
	}
	if strings.TrimSpace(t.Goal) == "" {
		return errors.New("task goal is required")
	}
	switch t.ChartType {
	case ChartLine, ChartBar, ChartArea, ChartPoint, ChartAuto:
	default:
		return fmt.Errorf("unsupported chart_type %q", t.ChartType)
	}
	if len(t.Metrics) == 0 {
		return errors.New("task metrics are required")
	}
	if len(t.Symbols) > MaxSeries {
		return fmt.Errorf("at most %d series can be compared, got %d", MaxSeries, len(t.Symbols))
	}
	return nil
}
