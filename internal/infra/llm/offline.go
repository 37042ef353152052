package llm

import (
	"context"
	"sync"
)

// Offline replays scripted responses in order and repeats the last one. It
// makes the LLM-backed parser and generator runnable without a provider.
type Offline struct {
	mu        sync.Mutex
	responses []string
	calls     []Request
}

func NewOffline(responses ...string) *Offline {
	return &Offline{responses: responses}
}

func (o *Offline) Name() string { return "offline" }
func (o *Offline) Close() error { return nil }

func (o *Offline) Complete(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, req)
	if len(o.responses) == 0 {
		return Response{}, ErrNoScript
	}
	i := len(o.calls) - 1
	if i >= len(o.responses) {
		i = len(o.responses) - 1
	}
	return Response{Text: o.responses[i], Model: pickModel(req.Model, "offline")}, nil
}

// Calls returns the requests seen so far.
func (o *Offline) Calls() []Request {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Request(nil), o.calls...)
}
