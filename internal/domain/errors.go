package domain

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	CodeIntentParseFail  ErrorCode = "E_INTENT_PARSE_FAIL"
	CodeClarifyRequired  ErrorCode = "E_CLARIFY_REQUIRED"
	CodeNoData           ErrorCode = "E_NO_DATA"
	CodeBadData          ErrorCode = "E_BAD_DATA"
	CodeTooManyPoints    ErrorCode = "E_TOO_MANY_POINTS"
	CodeVegaInvalid      ErrorCode = "E_VEGA_INVALID"
	CodeRateLimit        ErrorCode = "E_RATE_LIMIT"
	CodeInternal         ErrorCode = "E_INTERNAL"
	CodeInvalidTransform ErrorCode = "E_INVALID_TRANSFORM"
	CodeNotFound         ErrorCode = "E_NOT_FOUND"
	CodeTimeout          ErrorCode = "E_TIMEOUT"
	CodeUnauthorized     ErrorCode = "E_UNAUTHORIZED"
	CodeBadRequest       ErrorCode = "E_BAD_REQUEST"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidTransform = errors.New("invalid transform")
	ErrBadData          = errors.New("bad data")
	ErrNoData           = errors.New("no data")
	ErrIntentParse      = errors.New("intent parse failed")
	ErrGeneration       = errors.New("spec generation failed")
	ErrConnector        = errors.New("connector failed")
	ErrInvalidRequest   = errors.New("invalid request")
)

// PipelineError is the public failure of one request.
type PipelineError struct {
	Code    ErrorCode
	Message string
	Details map[string]any
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PipelineError) Unwrap() error { return e.Err }

func NewPipelineError(code ErrorCode, message string, details map[string]any, err error) *PipelineError {
	return &PipelineError{Code: code, Message: message, Details: details, Err: err}
}
