package domain

import "time"

// Stage is a state of the request pipeline.
type Stage string

const (
	StageStart        Stage = "START"
	StageParsing      Stage = "PARSING"
	StageFetching     Stage = "FETCHING"
	StageQualityCheck Stage = "QUALITY_CHECK"
	StageNormalizing  Stage = "NORMALIZING"
	StageGenerating   Stage = "GENERATING"
	StageValidating   Stage = "VALIDATING"
	StageRetrying     Stage = "RETRYING"
	StageDone         Stage = "DONE"
	StageFailed       Stage = "FAILED"
	StageClarify      Stage = "CLARIFY"
)

func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed || s == StageClarify
}

type SourceRecord struct {
	Connector  string    `json:"connector"`
	Identifier string    `json:"identifier"`
	FetchedAt  time.Time `json:"fetched_at"`
	Status     string    `json:"status"`
	HTTPStatus int       `json:"http_status,omitempty"`
	RowCount   int       `json:"row_count"`
	Cached     bool      `json:"cached,omitempty"`
}

type TransformRecord struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params,omitempty"`
	Output string         `json:"output,omitempty"`
}

// GenerationCall records one language-model call. Raw keys and prompts are never stored.
type GenerationCall struct {
	Role        string    `json:"role"`
	Model       string    `json:"model"`
	ContentHash string    `json:"content_hash"`
	ResponseID  string    `json:"response_id,omitempty"`
	Attempt     int       `json:"attempt"`
	Outcome     string    `json:"outcome"`
	At          time.Time `json:"at"`
}

type StageTransition struct {
	From Stage     `json:"from"`
	To   Stage     `json:"to"`
	At   time.Time `json:"at"`
	Note string    `json:"note,omitempty"`
}

type ProvenanceRecord struct {
	RequestID          string            `json:"request_id"`
	ParentRequestID    string            `json:"parent_request_id,omitempty"`
	Sources            []SourceRecord    `json:"sources"`
	Transforms         []TransformRecord `json:"transforms"`
	GenerationCalls    []GenerationCall  `json:"generation_calls"`
	Validation         *ValidationResult `json:"validation,omitempty"`
	Stages             []StageTransition `json:"stages"`
	ConnectorsRequired []string          `json:"connectors_required,omitempty"`
	APIKeysRequired    []string          `json:"api_keys_required,omitempty"`
	Notes              string            `json:"notes,omitempty"`
	StartedAt          time.Time         `json:"started_at"`
	CompletedAt        time.Time         `json:"completed_at,omitempty"`
}
