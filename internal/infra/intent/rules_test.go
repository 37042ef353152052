package intent

import (
	"context"
	"testing"

	"vizpilot/internal/domain"
	"vizpilot/internal/usecase"
)

func TestRuleParser(t *testing.T) {
	tests := []struct {
		prompt     string
		clarify    bool
		symbols    []string
		datasetKey string
		metric     string
		chart      domain.ChartType
		op         string
		start      string
	}{
		{prompt: "Plot TSLA closing price with 30-day moving average", symbols: []string{"TSLA"}, metric: "Close", chart: domain.ChartLine, op: domain.OpMovingAverage, start: "2024-01-01"},
		{prompt: "show growth of apple", clarify: true},
		{prompt: "compare aapl and msft", symbols: []string{"AAPL", "MSFT"}, metric: "Close", chart: domain.ChartLine, op: domain.OpRebasedIndex},
		{prompt: "Compare IBM vs ORCL", symbols: []string{"IBM", "ORCL"}, metric: "Close", chart: domain.ChartLine, op: domain.OpRebasedIndex},
		{prompt: "Compare sales and costs", clarify: true},
		{prompt: "AAPL adjusted close last 12 months", symbols: []string{"AAPL"}, metric: "Adj_Close", chart: domain.ChartLine},
		{prompt: "US CPIAUCSL monthly", datasetKey: "CPIAUCSL", metric: "value", chart: domain.ChartLine, start: "2010-01-01"},
		{prompt: "tsla volume last 6 months", symbols: []string{"TSLA"}, metric: "Volume", chart: domain.ChartBar},
		{prompt: "plot NVDA since 2023-06-01", symbols: []string{"NVDA"}, metric: "Close", chart: domain.ChartLine, start: "2023-06-01"},
		{prompt: "make me something nice", clarify: true},
	}
	for _, tt := range tests {
		t.Run(tt.prompt, func(t *testing.T) {
			res, err := RuleParser{}.Parse(context.Background(), usecase.IntentRequest{Prompt: tt.prompt})
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			task := res.Task
			if task.NeedsClarification() != tt.clarify {
				t.Fatalf("expected clarify=%v, got %+v", tt.clarify, task)
			}
			if tt.clarify {
				return
			}
			if err := task.Validate(); err != nil {
				t.Fatalf("expected a valid task: %v", err)
			}
			if len(task.Symbols) != len(tt.symbols) {
				t.Fatalf("expected symbols %v, got %v", tt.symbols, task.Symbols)
			}
			for i := range tt.symbols {
				if task.Symbols[i] != tt.symbols[i] {
					t.Fatalf("expected symbols %v, got %v", tt.symbols, task.Symbols)
				}
			}
			if task.DatasetKey != tt.datasetKey || task.Metrics[0] != tt.metric || task.ChartType != tt.chart {
				t.Fatalf("unexpected task %+v", task)
			}
			if tt.op != "" && (len(task.Transforms) != 1 || task.Transforms[0].Op != tt.op) {
				t.Fatalf("expected transform %s, got %+v", tt.op, task.Transforms)
			}
			if task.TimeRange.Start != tt.start {
				t.Fatalf("expected start %q, got %q", tt.start, task.TimeRange.Start)
			}
			if res.Call.ContentHash == "" {
				t.Fatalf("expected content hash")
			}
		})
	}
}
