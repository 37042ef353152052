package validator

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

type securityRule struct {
	Name    string
	Pattern *regexp.Regexp
}

// securityRules are checked in order against the serialized spec.
var securityRules = []securityRule{
	{Name: "function_definition", Pattern: regexp.MustCompile(`(?i)function\s*\(`)},
	{Name: "script_tag", Pattern: regexp.MustCompile(`(?i)<\s*script`)},
	{Name: "eval_call", Pattern: regexp.MustCompile(`(?i)eval\s*\(`)},
	{Name: "window_access", Pattern: regexp.MustCompile(`(?i)window\.`)},
	{Name: "document_access", Pattern: regexp.MustCompile(`(?i)document\.`)},
	{Name: "prototype_pollution", Pattern: regexp.MustCompile(`(?i)__proto__`)},
	{Name: "constructor_call", Pattern: regexp.MustCompile(`(?i)constructor\s*\(`)},
	{Name: "function_constructor", Pattern: regexp.MustCompile(`(?i)new\s+Function`)},
	{Name: "data_uri_image", Pattern: regexp.MustCompile(`(?i)data:\s*image/`)},
	{Name: "script_url", Pattern: regexp.MustCompile(`(?i)javascript\s*:`)},
	{Name: "iframe_tag", Pattern: regexp.MustCompile(`(?i)<\s*iframe`)},
}

// markupTag matches whole opening or closing script and iframe tags.
var markupTag = regexp.MustCompile(`(?i)<\s*/?\s*(?:script|iframe)\b[^>]*>`)

var dangerousText = func() *regexp.Regexp {
	parts := make([]string, 0, len(securityRules))
	for _, r := range securityRules {
		parts = append(parts, "(?:"+strings.TrimPrefix(r.Pattern.String(), "(?i)")+")")
	}
	return regexp.MustCompile("(?i)" + strings.Join(parts, "|"))
}()

type securityMatch struct {
	Rule  string
	Match string
}

func scanSecurity(v any) []securityMatch {
	text := serialize(v)
	var out []securityMatch
	for _, r := range securityRules {
		if m := r.Pattern.FindString(text); m != "" {
			out = append(out, securityMatch{Rule: r.Name, Match: m})
		}
	}
	return out
}

// serialize renders v without HTML escaping so markup patterns stay visible.
func serialize(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return ""
	}
	return buf.String()
}

// scrubStrings blanks strings carrying data-URI images or script URLs anywhere
// in the tree and reports how many were replaced.
func scrubStrings(v any) (any, int) {
	switch t := v.(type) {
	case map[string]any:
		n := 0
		out := make(map[string]any, len(t))
		for k, vv := range t {
			var c int
			out[k], c = scrubStrings(vv)
			n += c
		}
		return out, n
	case []any:
		n := 0
		out := make([]any, len(t))
		for i, vv := range t {
			var c int
			out[i], c = scrubStrings(vv)
			n += c
		}
		return out, n
	case string:
		lower := strings.ToLower(t)
		if strings.Contains(lower, "data:image") || strings.Contains(lower, "javascript:") {
			return "", 1
		}
		return t, 0
	}
	return v, 0
}
