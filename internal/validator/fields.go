package validator

import (
	"fmt"
	"sort"

	"vizpilot/internal/domain"
)

// unit is a view that carries a mark and encodings: the spec itself when flat,
// or each layer with the shared top-level encoding merged in.
type unit struct {
	prefix   string
	mark     any
	encoding map[string]any
}

type encodingRef struct {
	channel string
	field   string
	typ     string
}

type transformRef struct {
	path  string
	field string
}

func units(spec domain.ChartSpec) []unit {
	shared, _ := spec["encoding"].(map[string]any)
	if !spec.IsLayered() {
		return []unit{{mark: spec["mark"], encoding: shared}}
	}
	var out []unit
	raw, _ := spec["layer"].([]any)
	for i, l := range raw {
		layer, ok := l.(map[string]any)
		if !ok {
			continue
		}
		enc := map[string]any{}
		for k, v := range shared {
			enc[k] = v
		}
		if own, ok := layer["encoding"].(map[string]any); ok {
			for k, v := range own {
				enc[k] = v
			}
		}
		out = append(out, unit{prefix: fmt.Sprintf("layer[%d].", i), mark: layer["mark"], encoding: enc})
	}
	return out
}

func (u unit) encodingFields() []encodingRef {
	channels := make([]string, 0, len(u.encoding))
	for ch := range u.encoding {
		channels = append(channels, ch)
	}
	sort.Strings(channels)
	var out []encodingRef
	for _, ch := range channels {
		switch enc := u.encoding[ch].(type) {
		case map[string]any:
			if f, ok := enc["field"].(string); ok && f != "" {
				typ, _ := enc["type"].(string)
				out = append(out, encodingRef{channel: ch, field: f, typ: typ})
			}
		case []any:
			for _, item := range enc {
				if m, ok := item.(map[string]any); ok {
					if f, ok := m["field"].(string); ok && f != "" {
						typ, _ := m["type"].(string)
						out = append(out, encodingRef{channel: ch, field: f, typ: typ})
					}
				}
			}
		}
	}
	return out
}

// declaredFields lists the columns of inline data rows.
func declaredFields(spec domain.ChartSpec) ([]string, bool) {
	data, ok := spec["data"].(map[string]any)
	if !ok {
		return nil, false
	}
	values, ok := data["values"].([]any)
	if !ok || len(values) == 0 {
		return nil, false
	}
	seen := map[string]bool{}
	for _, row := range values {
		if m, ok := row.(map[string]any); ok {
			for k := range m {
				seen[k] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, true
}

// derivedFields lists fields produced by spec transforms at the top level and in
// every layer.
func derivedFields(spec domain.ChartSpec) []string {
	var out []string
	collect := func(node map[string]any) {
		transforms, _ := node["transform"].([]any)
		for _, t := range transforms {
			tm, ok := t.(map[string]any)
			if !ok {
				continue
			}
			switch as := tm["as"].(type) {
			case string:
				out = append(out, as)
			case []any:
				for _, a := range as {
					if s, ok := a.(string); ok {
						out = append(out, s)
					}
				}
			}
			for _, key := range []string{"window", "aggregate", "joinaggregate"} {
				items, _ := tm[key].([]any)
				for _, item := range items {
					if m, ok := item.(map[string]any); ok {
						if s, ok := m["as"].(string); ok {
							out = append(out, s)
						}
					}
				}
			}
			if _, ok := tm["fold"]; ok {
				if _, hasAs := tm["as"].([]any); !hasAs {
					out = append(out, "key", "value")
				}
			}
		}
	}
	collect(spec)
	for _, layer := range spec.Layers() {
		collect(layer)
	}
	return out
}

// transformFieldRefs lists input fields named by spec transforms.
func transformFieldRefs(spec domain.ChartSpec) []transformRef {
	var out []transformRef
	collect := func(prefix string, node map[string]any) {
		transforms, _ := node["transform"].([]any)
		for i, t := range transforms {
			tm, ok := t.(map[string]any)
			if !ok {
				continue
			}
			path := fmt.Sprintf("%stransform[%d]", prefix, i)
			for _, key := range []string{"window", "aggregate", "joinaggregate"} {
				items, _ := tm[key].([]any)
				for _, item := range items {
					if m, ok := item.(map[string]any); ok {
						if f, ok := m["field"].(string); ok && f != "" {
							out = append(out, transformRef{path: path + "." + key, field: f})
						}
					}
				}
			}
			for _, key := range []string{"fold", "groupby"} {
				items, _ := tm[key].([]any)
				for _, item := range items {
					if f, ok := item.(string); ok && f != "" {
						out = append(out, transformRef{path: path + "." + key, field: f})
					}
				}
			}
			if filter, ok := tm["filter"].(map[string]any); ok {
				if f, ok := filter["field"].(string); ok && f != "" {
					out = append(out, transformRef{path: path + ".filter", field: f})
				}
			}
			if _, ok := tm["timeUnit"]; ok {
				if f, ok := tm["field"].(string); ok && f != "" {
					out = append(out, transformRef{path: path + ".timeUnit", field: f})
				}
			}
		}
	}
	collect("", spec)
	for i, layer := range spec.Layers() {
		collect(fmt.Sprintf("layer[%d].", i), layer)
	}
	return out
}
