package policyopa

import "github.com/open-policy-agent/opa/ast"

// allowedBuiltins is the deterministic subset chart policies may call. Time,
// randomness and network builtins are excluded.
var allowedBuiltins = map[string]struct{}{
	"assign":            {},
	"eq":                {},
	"equal":             {},
	"neq":               {},
	"gt":                {},
	"gte":               {},
	"lt":                {},
	"lte":               {},
	"plus":              {},
	"minus":             {},
	"abs":               {},
	"count":             {},
	"max":               {},
	"min":               {},
	"sum":               {},
	"sort":              {},
	"concat":            {},
	"contains":          {},
	"startswith":        {},
	"endswith":          {},
	"lower":             {},
	"upper":             {},
	"sprintf":           {},
	"split":             {},
	"trim":              {},
	"is_string":         {},
	"is_number":         {},
	"is_array":          {},
	"is_object":         {},
	"object.get":        {},
	"object.keys":       {},
	"internal.member_2": {},
	"regex.match":       {},
}

func filterBuiltins(builtins []*ast.Builtin) []*ast.Builtin {
	out := make([]*ast.Builtin, 0, len(allowedBuiltins))
	for _, b := range builtins {
		if _, ok := allowedBuiltins[b.Name]; ok {
			out = append(out, b)
		}
	}
	return out
}
