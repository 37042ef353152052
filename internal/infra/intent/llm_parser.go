package intent

import (
	"context"
	"fmt"
	"strings"

	"vizpilot/internal/domain"
	"vizpilot/internal/infra/crypto"
	"vizpilot/internal/infra/llm"
	"vizpilot/internal/usecase"
)

const systemPrompt = `You are an Intent Parser for a visualization agent. Convert the user's request into EXACT JSON matching the TASK schema.
Return ONLY JSON, with no explanatory text.

TASK schema (required keys: goal, chart_type, metrics):
- goal: string
- chart_type: "line"|"bar"|"area"|"point"|"auto"
- metrics: list of column names (e.g. ["Close"])
- symbols: list of at most 2 tickers, or []
- dataset_key: macro series key (e.g. "CPIAUCSL") or null
- time_range: {"start": "YYYY-MM-DD"|null, "end": "YYYY-MM-DD"|null}
- interval: "1d"|"1wk"|"1mo" or null
- transforms: list of {op, field, window?, base?, periods?, period?, agg?} with op one of moving_average, rebased_index, resample, pct_change
- clarify: null or {"question": "single sentence"}

Rules:
1) If a required field is ambiguous or missing, set clarify to a single question.
2) Do not guess values for missing mandatory fields.
3) Use symbols for tickers and dataset_key for named macro series, never both.
4) Return syntactically valid JSON only.`

// LLMParser asks a language model for the TASK JSON.
type LLMParser struct {
	Client llm.Client
	Model  string
}

func (p *LLMParser) Parse(ctx context.Context, req usecase.IntentRequest) (usecase.IntentResult, error) {
	user := fmt.Sprintf("User prompt: %q", req.Prompt)
	if req.PriorError != "" {
		user += "\n\nYour previous answer could not be used: " + req.PriorError + "\nReturn only the corrected TASK JSON."
	}
	model := req.Model
	if model == "" {
		model = p.Model
	}
	hash, err := crypto.ContentHash(systemPrompt, user)
	if err != nil {
		return usecase.IntentResult{}, err
	}

	resp, err := p.Client.Complete(ctx, llm.Request{System: systemPrompt, User: user, Model: model, JSON: true})
	call := usecase.CallMeta{Model: resp.Model, ContentHash: hash, ResponseID: resp.ResponseID}
	if call.Model == "" {
		call.Model = model
	}
	if err != nil {
		return usecase.IntentResult{Call: call}, err
	}
	task, err := decodeTask(resp.Text)
	if err != nil {
		return usecase.IntentResult{Call: call}, err
	}
	if task.Goal == "" && !task.NeedsClarification() {
		return usecase.IntentResult{Call: call}, fmt.Errorf("%w: empty goal", domain.ErrIntentParse)
	}
	if strings.TrimSpace(task.TimeRange.Start) == "" {
		task.TimeRange.Start = extractSince(req.Prompt)
	}
	return usecase.IntentResult{Task: task, Call: call}, nil
}
