package usecase

import (
	"context"
	"time"

	"vizpilot/internal/domain"
)

// CallMeta identifies one language-model call without carrying its content.
type CallMeta struct {
	Model       string
	ContentHash string
	ResponseID  string
}

type IntentRequest struct {
	Prompt string
	// PriorError is set on the corrective retry and describes why the previous
	// answer could not be parsed.
	PriorError string
	Model      string
}

type IntentResult struct {
	Task domain.Task
	Call CallMeta
}

// IntentParser turns a prompt into a Task. A Task with Clarify set means the
// prompt was ambiguous. Malformed answers wrap domain.ErrIntentParse.
type IntentParser interface {
	Parse(ctx context.Context, req IntentRequest) (IntentResult, error)
}

type GenerationRequest struct {
	Task          domain.Task
	Columns       []string
	Preview       []map[string]any
	DerivedFields []string
	Connectors    []string
	// PriorErrors carries the previous validation errors verbatim on the
	// corrective retry.
	PriorErrors []string
	Model       string
}

type Generation struct {
	Spec               domain.ChartSpec
	Explanation        string
	ConnectorsRequired []string
	APIKeysRequired    []string
	Notes              string
	Call               CallMeta
}

type SpecGenerator interface {
	Generate(ctx context.Context, req GenerationRequest) (Generation, error)
}

type FetchRequest struct {
	Identifier string
	Range      domain.TimeRange
	Interval   string
}

type FetchResult struct {
	Table  domain.Table
	Source domain.SourceRecord
}

type Connector interface {
	Name() string
	Fetch(ctx context.Context, req FetchRequest) (FetchResult, error)
}

// RecordRepository persists request records. Load returns domain.ErrNotFound for
// unknown ids.
type RecordRepository interface {
	Save(ctx context.Context, rec domain.RequestRecord) error
	Load(ctx context.Context, requestID string) (domain.RequestRecord, error)
}

type Metrics interface {
	ObserveRequest(status string, d time.Duration)
	IntentParse(result string)
	SpecGeneration(result string, d time.Duration)
	ValidationFailure(reason string)
	DataQualityError(kind string)
	TransformApplied(op string)
	DataRows(n int)
}

type noopMetrics struct{}

func (noopMetrics) ObserveRequest(string, time.Duration) {}
func (noopMetrics) IntentParse(string)                   {}
func (noopMetrics) SpecGeneration(string, time.Duration) {}
func (noopMetrics) ValidationFailure(string)             {}
func (noopMetrics) DataQualityError(string)              {}
func (noopMetrics) TransformApplied(string)              {}
func (noopMetrics) DataRows(int)                         {}
