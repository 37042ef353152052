package domain

// PolicyInput is the document a chart policy bundle evaluates.
type PolicyInput struct {
	Spec      ChartSpec `json:"spec"`
	Columns   []string  `json:"columns"`
	ChartType ChartType `json:"chart_type,omitempty"`
}

type PolicyDeny struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

type PolicyResult struct {
	Allow bool         `json:"allow"`
	Deny  []PolicyDeny `json:"deny,omitempty"`
}

type PolicyEvaluation struct {
	BundleID   string       `json:"bundle_id,omitempty"`
	BundleHash string       `json:"bundle_hash"`
	Result     PolicyResult `json:"result"`
}
