package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"vizpilot/internal/domain"
)

type fakeIntent struct {
	mu    sync.Mutex
	calls []IntentRequest
	fn    func(call int, req IntentRequest) (domain.Task, error)
}

func (f *fakeIntent) Parse(_ context.Context, req IntentRequest) (IntentResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	n := len(f.calls)
	f.mu.Unlock()
	task, err := f.fn(n, req)
	return IntentResult{Task: task, Call: CallMeta{Model: "rules", ContentHash: "hash"}}, err
}

func staticIntent(task domain.Task) *fakeIntent {
	return &fakeIntent{fn: func(int, IntentRequest) (domain.Task, error) { return task, nil }}
}

type fakeGenerator struct {
	mu    sync.Mutex
	calls []GenerationRequest
	specs []domain.ChartSpec
	err   error
	delay time.Duration
}

func (f *fakeGenerator) Generate(ctx context.Context, req GenerationRequest) (Generation, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	n := len(f.calls)
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return Generation{}, ctx.Err()
		}
	}
	if f.err != nil {
		return Generation{}, f.err
	}
	i := n - 1
	if i >= len(f.specs) {
		i = len(f.specs) - 1
	}
	return Generation{
		Spec:        f.specs[i],
		Explanation: "Close price with its moving average.",
		Call:        CallMeta{Model: "template", ContentHash: "hash", ResponseID: "resp"},
	}, nil
}

func (f *fakeGenerator) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeConnector struct {
	mu      sync.Mutex
	tables  map[string]domain.Table
	fetched []string
	delay   time.Duration
}

func (f *fakeConnector) Name() string { return "fixture" }

func (f *fakeConnector) Fetch(ctx context.Context, req FetchRequest) (FetchResult, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, req.Identifier)
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return FetchResult{}, ctx.Err()
		}
	}
	table, ok := f.tables[req.Identifier]
	if !ok {
		return FetchResult{}, domain.ErrNoData
	}
	return FetchResult{
		Table:  table,
		Source: domain.SourceRecord{Connector: "fixture", Identifier: req.Identifier, Status: "ok"},
	}, nil
}

type memRepo struct {
	mu      sync.Mutex
	records map[string]domain.RequestRecord
	saveErr error
}

func newMemRepo() *memRepo {
	return &memRepo{records: map[string]domain.RequestRecord{}}
}

func (r *memRepo) Save(_ context.Context, rec domain.RequestRecord) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.RequestID] = rec
	return nil
}

func (r *memRepo) Load(_ context.Context, id string) (domain.RequestRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return domain.RequestRecord{}, domain.ErrNotFound
	}
	return rec, nil
}

var errStore = errors.New("store unavailable")

func priceTable(start time.Time, n int, value func(i int) any) domain.Table {
	table := domain.NewTable([]string{"Close"})
	for i := 0; i < n; i++ {
		table.Rows = append(table.Rows, domain.Row{
			domain.DateColumn: start.AddDate(0, 0, i),
			"Close":           value(i),
		})
	}
	return table
}

func rising(i int) any { return 100 + float64(i) }

func lineLayer(field string) map[string]any {
	return map[string]any{
		"mark": "line",
		"encoding": map[string]any{
			"x": map[string]any{"field": "date", "type": "temporal"},
			"y": map[string]any{"field": field, "type": "quantitative"},
		},
	}
}

func layeredSpec(fields ...string) domain.ChartSpec {
	layers := make([]any, 0, len(fields))
	for _, f := range fields {
		layers = append(layers, lineLayer(f))
	}
	return domain.ChartSpec{"$schema": domain.VegaLiteSchema, "layer": layers}
}

func tslaTask() domain.Task {
	return domain.Task{
		Goal:      "TSLA close with 30-day moving average",
		ChartType: domain.ChartLine,
		Symbols:   []string{"TSLA"},
		Metrics:   []string{"Close"},
		Transforms: []domain.TransformRequest{
			{Op: domain.OpMovingAverage, Field: "Close", Window: 30},
		},
	}
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	ids := []string{"req-1", "req-2", "req-3", "req-4"}
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		id := ids[n%len(ids)]
		n++
		return id
	}
}
