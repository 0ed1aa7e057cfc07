package domain

import "time"

// Recommendation is the triage action suggested for a case. The engine
// only ever recommends flagging-level actions; auto-block or
// auto-closure are policy violations, not configuration options.
type Recommendation string

const (
	RecommendMonitor     Recommendation = "MONITOR"
	RecommendReview      Recommendation = "REVIEW"
	RecommendImmediate   Recommendation = "IMMEDIATE_INVESTIGATION"
)

// RecommendationFor maps a risk level to the triage recommendation.
func RecommendationFor(level RiskLevel) Recommendation {
	switch level {
	case RiskCritical:
		return RecommendImmediate
	case RiskHigh:
		return RecommendReview
	default:
		return RecommendMonitor
	}
}

// EvidenceItem is one module's contribution to a report, in rendered
// order (score descending, canonical module order on ties).
type EvidenceItem struct {
	Module   ModuleID `json:"module"`
	Score    float64  `json:"score"`
	Evidence []string `json:"evidence,omitempty"`
}

// EvidenceReport is the explainability artifact for a case. Derived and
// read-only; regenerated whenever the case's meta score changes.
type EvidenceReport struct {
	CaseID        string `json:"caseId"`
	TransactionID string `json:"transactionId"`

	Items          []EvidenceItem `json:"items"`
	Summary        string         `json:"summary"`
	Recommendation Recommendation `json:"recommendation"`

	GeneratedAt time.Time `json:"generatedAt"`
}
