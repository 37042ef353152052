package domain

type ResponseStatus string

const (
	StatusSuccess       ResponseStatus = "success"
	StatusClarifyNeeded ResponseStatus = "clarify_needed"
	StatusError         ResponseStatus = "error"
)

// Response is one of three shapes selected by Status. It is self-contained JSON.
type Response struct {
	RequestID       string            `json:"request_id"`
	Status          ResponseStatus    `json:"status"`
	Spec            ChartSpec         `json:"spec,omitempty"`
	DataPreview     []map[string]any  `json:"data_preview,omitempty"`
	Provenance      *ProvenanceRecord `json:"provenance,omitempty"`
	Caption         string            `json:"caption,omitempty"`
	Explanation     string            `json:"explanation,omitempty"`
	Notes           string            `json:"notes,omitempty"`
	Quality         *QualityReport    `json:"quality,omitempty"`
	ClarifyQuestion string            `json:"clarify_question,omitempty"`
	ErrorCode       ErrorCode         `json:"error_code,omitempty"`
	Message         string            `json:"message,omitempty"`
	Details         map[string]any    `json:"details,omitempty"`
}

// RequestOptions are the caller-supplied inputs of one request; they are stored so
// the request can be replayed.
type RequestOptions struct {
	Prompt        string             `json:"prompt"`
	Transforms    []TransformRequest `json:"transforms,omitempty"`
	AutofixMethod RemediationAction  `json:"autofix_method,omitempty"`
	Model         string             `json:"model,omitempty"`
}

type RequestRecord struct {
	RequestID       string         `json:"request_id"`
	ParentRequestID string         `json:"parent_request_id,omitempty"`
	Options         RequestOptions `json:"options"`
	Status          ResponseStatus `json:"status"`
	ErrorCode       ErrorCode      `json:"error_code,omitempty"`
	Response        Response       `json:"response"`
	CreatedAt       string         `json:"created_at"`
}
