package domain

type Verdict string

const (
	VerdictOK   Verdict = "ok"
	VerdictFail Verdict = "fail"
)

type RemediationAction string

const (
	RemediationNone             RemediationAction = "none"
	RemediationDecimate         RemediationAction = "decimate"
	RemediationAggregateMonthly RemediationAction = "aggregate_monthly"
)

func ParseRemediation(s string) (RemediationAction, bool) {
	switch RemediationAction(s) {
	case RemediationDecimate, RemediationAggregateMonthly:
		return RemediationAction(s), true
	case RemediationNone, "":
		return RemediationNone, true
	}
	return "", false
}

const (
	QualityMissingMany = "W_MISSING_MANY"
	QualityOutliers    = "E_OUTLIER_DETECTED"
	QualityFlatSeries  = "W_FLAT_SERIES"
	QualityUnsorted    = "W_DATE_NOT_MONOTONIC"
)

type QualityLimits struct {
	MaxRenderRows        int
	MaxNullRatio         float64
	OutlierIQRMultiplier float64
	MinRowsForOutliers   int
}

func DefaultQualityLimits() QualityLimits {
	return QualityLimits{
		MaxRenderRows:        5000,
		MaxNullRatio:         0.2,
		OutlierIQRMultiplier: 3.0,
		MinRowsForOutliers:   6,
	}
}

type QualityIssue struct {
	Code    string `json:"code"`
	Column  string `json:"column,omitempty"`
	Message string `json:"message"`
}

type OutlierSummary struct {
	Count   int   `json:"count"`
	Indices []int `json:"indices"`
}

type QualityReport struct {
	Verdict          Verdict                   `json:"verdict"`
	RowCount         int                       `json:"row_count"`
	NullRatios       map[string]float64        `json:"null_ratios"`
	Outliers         map[string]OutlierSummary `json:"outliers,omitempty"`
	OutlierCount     int                       `json:"outlier_count"`
	ExceedsRenderCap bool                      `json:"exceeds_render_cap"`
	Remediation      RemediationAction         `json:"remediation"`
	Errors           []QualityIssue            `json:"errors,omitempty"`
	Warnings         []QualityIssue            `json:"warnings,omitempty"`
	SuggestedActions []string                  `json:"suggested_actions,omitempty"`
	AppliedAction    string                    `json:"applied_action,omitempty"`
}

func (r QualityReport) OK() bool { return r.Verdict == VerdictOK }
