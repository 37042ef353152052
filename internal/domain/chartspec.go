package domain

// VegaLiteSchema is injected into generated specs that omit $schema.
const VegaLiteSchema = "https://vega.github.io/schema/vega-lite/v5.json"

// ChartSpec is a declarative chart document treated as an untyped JSON tree.
type ChartSpec map[string]any

func (s ChartSpec) Clone() ChartSpec {
	if s == nil {
		return nil
	}
	return deepCopy(map[string]any(s)).(map[string]any)
}

func (s ChartSpec) Layers() []map[string]any {
	raw, ok := s["layer"].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(raw))
	for _, l := range raw {
		if m, ok := l.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func (s ChartSpec) IsLayered() bool {
	_, ok := s["layer"].([]any)
	return ok
}

// MarkType resolves a mark given as a string or as an object with "type".
func MarkType(v any) (string, bool) {
	switch m := v.(type) {
	case string:
		return m, m != ""
	case map[string]any:
		t, ok := m["type"].(string)
		return t, ok && t != ""
	}
	return "", false
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = deepCopy(vv)
		}
		return out
	case ChartSpec:
		return ChartSpec(deepCopy(map[string]any(t)).(map[string]any))
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = deepCopy(vv)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = deepCopy(vv)
		}
		return out
	default:
		return v
	}
}
