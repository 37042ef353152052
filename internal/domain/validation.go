package domain

const (
	ValidationMissingKey      = "E_SCHEMA_MISSING_KEY"
	ValidationMark            = "E_SCHEMA_MARK"
	ValidationEncoding        = "E_SCHEMA_ENCODING"
	ValidationUndeclaredField = "E_SCHEMA_UNDECLARED_FIELD"
	ValidationFieldMissing    = "E_FIELD_MISSING"
	ValidationFieldType       = "E_FIELD_TYPE"
	ValidationSecurity        = "E_SECURITY_PATTERN"
	ValidationInlineData      = "E_INLINE_DATA_LIMIT"
	ValidationPolicyDeny      = "E_POLICY_DENY"

	ValidationKeyStripped    = "W_KEY_STRIPPED"
	ValidationTextSanitized  = "W_TEXT_SANITIZED"
	ValidationInlineTrimmed  = "W_INLINE_DATA_TRIMMED"
	ValidationLayerMark      = "W_LAYER_MARK"
	ValidationStringScrubbed = "W_STRING_SCRUBBED"
)

type ValidationIssue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationResult struct {
	OK       bool              `json:"ok"`
	Errors   []ValidationIssue `json:"errors"`
	Warnings []ValidationIssue `json:"warnings"`
}

func (r ValidationResult) ErrorMessages() []string {
	out := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		out = append(out, e.Message)
	}
	return out
}

func (r ValidationResult) Clone() ValidationResult {
	return ValidationResult{
		OK:       r.OK,
		Errors:   append([]ValidationIssue(nil), r.Errors...),
		Warnings: append([]ValidationIssue(nil), r.Warnings...),
	}
}
