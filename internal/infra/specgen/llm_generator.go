package specgen

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"vizpilot/internal/domain"
	"vizpilot/internal/infra/crypto"
	"vizpilot/internal/infra/llm"
	"vizpilot/internal/usecase"
)

const previewSampleRows = 10

const systemPrompt = `You generate Vega-Lite v5 chart specs for financial time series, plus a short analyst-tone explanation.

Return ONLY this JSON object, no markdown:
{
  "vega_lite_spec": { ...valid Vega-Lite v5 spec... },
  "explanation": "2-4 sentences describing what is plotted",
  "provenance": {"connectors_required": [], "api_keys_required": [], "notes": ""}
}

Rules:
- Use only fields listed in DATA_SCHEMA or DERIVED_FIELDS. Field names are case sensitive.
- x must be the "date" field with type "temporal"; y fields are "quantitative".
- Time series with derived fields are layered: one layer for the base series and one per derived series.
- Marks are limited to line, bar, area and point.
- Do not include data values; the server attaches data.
- Never emit scripts, URLs, signals, usermeta or secrets.
- connectors_required and api_keys_required may only name entries from AVAILABLE_CONNECTORS.
- When VALIDATOR_FEEDBACK is present, fix every listed error.`

type generationResponse struct {
	Spec        map[string]any `json:"vega_lite_spec"`
	Explanation string         `json:"explanation"`
	Provenance  struct {
		ConnectorsRequired []string `json:"connectors_required"`
		APIKeysRequired    []string `json:"api_keys_required"`
		Notes              string   `json:"notes"`
	} `json:"provenance"`
}

// LLMGenerator asks a language model for the spec.
type LLMGenerator struct {
	Client llm.Client
	Model  string
}

func (g *LLMGenerator) Generate(ctx context.Context, req usecase.GenerationRequest) (usecase.Generation, error) {
	user, err := BuildPrompt(req)
	if err != nil {
		return usecase.Generation{}, err
	}
	hash, err := crypto.ContentHash(systemPrompt, user)
	if err != nil {
		return usecase.Generation{}, err
	}
	model := req.Model
	if model == "" {
		model = g.Model
	}

	resp, err := g.Client.Complete(ctx, llm.Request{System: systemPrompt, User: user, Model: model, JSON: true})
	if err != nil {
		return usecase.Generation{}, fmt.Errorf("%w: %v", domain.ErrGeneration, err)
	}
	call := usecase.CallMeta{Model: resp.Model, ContentHash: hash, ResponseID: resp.ResponseID}
	if call.Model == "" {
		call.Model = model
	}

	obj, err := llm.ExtractObject(resp.Text)
	if err != nil {
		return usecase.Generation{Call: call}, fmt.Errorf("%w: %v", domain.ErrGeneration, err)
	}
	var out generationResponse
	if err := json.Unmarshal(obj, &out); err != nil {
		return usecase.Generation{Call: call}, fmt.Errorf("%w: decode response: %v", domain.ErrGeneration, err)
	}
	spec := domain.ChartSpec(out.Spec)
	if spec == nil {
		spec = domain.ChartSpec{}
	}
	if _, ok := spec["$schema"]; !ok && len(spec) > 0 {
		spec["$schema"] = domain.VegaLiteSchema
	}
	return usecase.Generation{
		Spec:               spec,
		Explanation:        strings.TrimSpace(out.Explanation),
		ConnectorsRequired: out.Provenance.ConnectorsRequired,
		APIKeysRequired:    out.Provenance.APIKeysRequired,
		Notes:              out.Provenance.Notes,
		Call:               call,
	}, nil
}

// BuildPrompt renders the user message sections in a fixed order.
func BuildPrompt(req usecase.GenerationRequest) (string, error) {
	var b strings.Builder
	section := func(name string, v any) error {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", name, err)
		}
		b.WriteString(name)
		b.WriteString(":\n")
		b.Write(raw)
		b.WriteString("\n\n")
		return nil
	}

	preview := req.Preview
	if len(preview) > previewSampleRows {
		preview = preview[:previewSampleRows]
	}
	derived := req.DerivedFields
	if derived == nil {
		derived = []string{}
	}
	connectors := req.Connectors
	if connectors == nil {
		connectors = []string{}
	}
	if err := section("TASK_JSON", req.Task); err != nil {
		return "", err
	}
	if err := section("DATA_SCHEMA", dataSchema(req.Columns, req.Preview)); err != nil {
		return "", err
	}
	if err := section("DATA_PREVIEW", preview); err != nil {
		return "", err
	}
	if err := section("DERIVED_FIELDS", derived); err != nil {
		return "", err
	}
	if err := section("AVAILABLE_CONNECTORS", connectors); err != nil {
		return "", err
	}
	if len(req.PriorErrors) > 0 {
		if err := section("VALIDATOR_FEEDBACK", map[string]any{"errors": req.PriorErrors}); err != nil {
			return "", err
		}
		b.WriteString("Regenerate the spec so that none of these errors occur.\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func dataSchema(columns []string, preview []map[string]any) map[string]string {
	out := make(map[string]string, len(columns))
	for _, c := range columns {
		switch {
		case strings.EqualFold(c, domain.DateColumn):
			out[c] = "temporal"
		case isNominal(c, preview):
			out[c] = "nominal"
		default:
			out[c] = "quantitative"
		}
	}
	return out
}

func isNominal(column string, preview []map[string]any) bool {
	for _, row := range preview {
		switch row[column].(type) {
		case nil, float64, float32, int, int64:
			continue
		default:
			return true
		}
	}
	return false
}
