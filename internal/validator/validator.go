package validator

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"vizpilot/internal/domain"
)

// PolicyChecker evaluates an optional deployment policy against a sanitized spec.
type PolicyChecker interface {
	Evaluate(ctx context.Context, input domain.PolicyInput) (domain.PolicyEvaluation, error)
}

type Validator struct {
	rules  Rules
	policy PolicyChecker
}

type Option func(*Validator)

func WithPolicy(p PolicyChecker) Option {
	return func(v *Validator) { v.policy = p }
}

func New(rules Rules, opts ...Option) *Validator {
	v := &Validator{rules: rules.withDefaults()}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *Validator) Rules() Rules { return v.rules }

// Validate runs the schema, field and security checks, plus the policy check when
// configured. Every check runs regardless of earlier failures. The returned spec
// always has denylisted keys removed.
func (v *Validator) Validate(ctx context.Context, spec domain.ChartSpec, columns []string) (domain.ChartSpec, domain.ValidationResult) {
	res := domain.ValidationResult{Errors: []domain.ValidationIssue{}, Warnings: []domain.ValidationIssue{}}

	tree, ok := normalizeTree(spec)
	if !ok {
		res.Errors = append(res.Errors, domain.ValidationIssue{
			Code:    domain.ValidationMissingKey,
			Message: "spec must be a JSON object",
		})
		return domain.ChartSpec{}, res
	}

	for _, m := range scanSecurity(tree) {
		res.Errors = append(res.Errors, domain.ValidationIssue{
			Code:    domain.ValidationSecurity,
			Message: fmt.Sprintf("spec matches forbidden pattern %s: %q", m.Rule, m.Match),
		})
	}

	clean := v.sanitize(tree, &res)

	v.checkSchema(clean, &res)
	v.checkFields(clean, columns, &res)

	if v.policy != nil {
		v.checkPolicy(ctx, clean, columns, &res)
	}

	res.OK = len(res.Errors) == 0
	return clean, res
}

func (v *Validator) sanitize(tree map[string]any, res *domain.ValidationResult) domain.ChartSpec {
	clean := domain.ChartSpec(tree).Clone()

	for _, key := range v.rules.ForbiddenKeys {
		if _, ok := clean[key]; ok {
			delete(clean, key)
			res.Warnings = append(res.Warnings, domain.ValidationIssue{
				Code:    domain.ValidationKeyStripped,
				Message: fmt.Sprintf("removed forbidden top-level key %q", key),
			})
		}
	}

	for _, field := range []string{"title", "description"} {
		s, ok := clean[field].(string)
		if !ok || !dangerousText.MatchString(s) {
			continue
		}
		s = markupTag.ReplaceAllString(s, "")
		clean[field] = strings.TrimSpace(dangerousText.ReplaceAllString(s, ""))
		res.Warnings = append(res.Warnings, domain.ValidationIssue{
			Code:    domain.ValidationTextSanitized,
			Message: fmt.Sprintf("removed script-like content from %s", field),
		})
	}

	if data, ok := clean["data"].(map[string]any); ok {
		if values, ok := data["values"].([]any); ok {
			if len(values) > v.rules.MaxRenderRows {
				res.Errors = append(res.Errors, domain.ValidationIssue{
					Code:    domain.ValidationInlineData,
					Message: fmt.Sprintf("spec includes %d data rows which exceeds max allowed %d", len(values), v.rules.MaxRenderRows),
				})
			}
			if len(values) > v.rules.MaxPreviewRows {
				data["values"] = values[:v.rules.MaxPreviewRows]
				res.Warnings = append(res.Warnings, domain.ValidationIssue{
					Code:    domain.ValidationInlineTrimmed,
					Message: fmt.Sprintf("inline data reduced from %d to %d rows", len(values), v.rules.MaxPreviewRows),
				})
			}
		}
	}

	scrubbed, n := scrubStrings(map[string]any(clean))
	if n > 0 {
		res.Warnings = append(res.Warnings, domain.ValidationIssue{
			Code:    domain.ValidationStringScrubbed,
			Message: fmt.Sprintf("blanked %d strings carrying data URIs or script URLs", n),
		})
	}
	return domain.ChartSpec(scrubbed.(map[string]any))
}

func (v *Validator) checkSchema(spec domain.ChartSpec, res *domain.ValidationResult) {
	for _, key := range v.rules.RequiredTopLevel {
		if _, ok := spec[key]; !ok {
			res.Errors = append(res.Errors, domain.ValidationIssue{
				Code:    domain.ValidationMissingKey,
				Message: fmt.Sprintf("missing required top-level key %q", key),
			})
		}
	}

	declared, hasInline := declaredFields(spec)
	derived := derivedFields(spec)

	for _, unit := range units(spec) {
		if unit.mark != nil || !spec.IsLayered() {
			mark, ok := domain.MarkType(unit.mark)
			switch {
			case !ok:
				res.Errors = append(res.Errors, domain.ValidationIssue{
					Code:    domain.ValidationMark,
					Message: fmt.Sprintf("%smark must be a string or an object with 'type' (allowed marks: %s)", unit.prefix, listString(v.rules.AllowedMarks)),
				})
			case !v.rules.markAllowed(mark):
				res.Errors = append(res.Errors, domain.ValidationIssue{
					Code:    domain.ValidationMark,
					Message: fmt.Sprintf("%smark %q is not allowed, allowed: %s", unit.prefix, mark, listString(v.rules.AllowedMarks)),
				})
			}
		}

		for _, ch := range v.rules.RequiredEncodings {
			enc, ok := unit.encoding[ch].(map[string]any)
			if !ok {
				res.Errors = append(res.Errors, domain.ValidationIssue{
					Code:    domain.ValidationEncoding,
					Message: fmt.Sprintf("%sencoding.%s must be an object with at least 'field' and 'type'", unit.prefix, ch),
				})
				continue
			}
			if f, _ := enc["field"].(string); f == "" {
				res.Errors = append(res.Errors, domain.ValidationIssue{
					Code:    domain.ValidationEncoding,
					Message: fmt.Sprintf("%sencoding.%s.field must be a non-empty string", unit.prefix, ch),
				})
			}
			if _, ok := enc["type"].(string); !ok {
				res.Errors = append(res.Errors, domain.ValidationIssue{
					Code:    domain.ValidationEncoding,
					Message: fmt.Sprintf("%sencoding.%s.type is required (e.g. 'temporal', 'quantitative')", unit.prefix, ch),
				})
			}
		}

		if !hasInline {
			continue
		}
		for _, ref := range unit.encodingFields() {
			if !contains(declared, ref.field) && !contains(derived, ref.field) {
				res.Errors = append(res.Errors, domain.ValidationIssue{
					Code:    domain.ValidationUndeclaredField,
					Message: fmt.Sprintf("%sencoding.%s.field '%s' is not declared in the spec data section: %s", unit.prefix, ref.channel, ref.field, listString(declared)),
				})
			}
		}
	}
}

func (v *Validator) checkFields(spec domain.ChartSpec, columns []string, res *domain.ValidationResult) {
	available := append(append([]string(nil), columns...), derivedFields(spec)...)
	sort.Strings(available)
	available = dedupe(available)

	for _, unit := range units(spec) {
		for _, ref := range unit.encodingFields() {
			if !contains(available, ref.field) {
				res.Errors = append(res.Errors, domain.ValidationIssue{
					Code:    domain.ValidationFieldMissing,
					Message: fmt.Sprintf("%sencoding.%s.field '%s' not found in data preview fields: %s%s", unit.prefix, ref.channel, ref.field, listString(available), caseHint(available, ref.field)),
				})
				continue
			}
			if ref.channel == "x" && ref.field == domain.DateColumn && ref.typ != "" && ref.typ != "temporal" {
				res.Errors = append(res.Errors, domain.ValidationIssue{
					Code:    domain.ValidationFieldType,
					Message: fmt.Sprintf("%sencoding.x.field '%s' looks like a date but encoding.x.type is '%s', use 'temporal'", unit.prefix, ref.field, ref.typ),
				})
			}
		}
	}

	for _, ref := range transformFieldRefs(spec) {
		if !contains(available, ref.field) {
			res.Errors = append(res.Errors, domain.ValidationIssue{
				Code:    domain.ValidationFieldMissing,
				Message: fmt.Sprintf("%s field '%s' not found in data preview fields: %s%s", ref.path, ref.field, listString(available), caseHint(available, ref.field)),
			})
		}
	}
}

func (v *Validator) checkPolicy(ctx context.Context, spec domain.ChartSpec, columns []string, res *domain.ValidationResult) {
	eval, err := v.policy.Evaluate(ctx, domain.PolicyInput{Spec: spec, Columns: columns})
	if err != nil {
		res.Errors = append(res.Errors, domain.ValidationIssue{
			Code:    domain.ValidationPolicyDeny,
			Message: fmt.Sprintf("policy evaluation failed: %v", err),
		})
		return
	}
	for _, d := range eval.Result.Deny {
		msg := d.Message
		if msg == "" {
			msg = "denied by chart policy"
		}
		res.Errors = append(res.Errors, domain.ValidationIssue{
			Code:    domain.ValidationPolicyDeny,
			Message: fmt.Sprintf("policy %s: %s", d.Code, msg),
		})
	}
	if !eval.Result.Allow && len(eval.Result.Deny) == 0 {
		res.Errors = append(res.Errors, domain.ValidationIssue{
			Code:    domain.ValidationPolicyDeny,
			Message: "chart policy did not allow the spec",
		})
	}
}

// normalizeTree converts the spec into a plain JSON tree so nested typed values
// are scanned and copied uniformly.
func normalizeTree(spec domain.ChartSpec) (map[string]any, bool) {
	if spec == nil {
		return nil, false
	}
	raw, err := json.Marshal(spec)
	if err != nil {
		return nil, false
	}
	var tree map[string]any
	if err := json.Unmarshal(raw, &tree); err != nil || tree == nil {
		return nil, false
	}
	return tree, true
}

func listString(items []string) string {
	return "[" + strings.Join(items, ", ") + "]"
}

// contains matches field names exactly; chart field lookup is case-sensitive.
func contains(items []string, s string) bool {
	for _, it := range items {
		if it == s {
			return true
		}
	}
	return false
}

// caseHint points at a column that differs from s only by case.
func caseHint(items []string, s string) string {
	for _, it := range items {
		if strings.EqualFold(it, s) {
			return fmt.Sprintf(" (field names are case-sensitive, did you mean '%s'?)", it)
		}
	}
	return ""
}

func dedupe(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i == 0 || s != sorted[i-1] {
			out = append(out, s)
		}
	}
	return out
}
