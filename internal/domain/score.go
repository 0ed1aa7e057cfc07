package domain

import "time"

// RiskLevel classifies a meta score into an investigation tier.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// MetaScore is the unified 0-100 risk verdict for one transaction,
// derived from the validated module scores and the scoring config.
// Never mutated after creation; re-scoring produces a new MetaScore.
type MetaScore struct {
	// WeightedScore = min(100, Base + CorrelationBonus).
	WeightedScore float64 `json:"weightedScore"`

	// Base is the weighted mean over present modules with weights
	// renormalized to sum 1.0. Absence of a module does not by
	// itself lower the score.
	Base float64 `json:"base"`

	// ModulesFlagged counts present modules at or above the per-module
	// flag threshold.
	ModulesFlagged int `json:"modulesFlagged"`

	// CorrelationBonus is the additive increment for independent
	// corroboration across three or more modules; 0 otherwise.
	CorrelationBonus float64 `json:"correlationBonus"`

	RiskLevel RiskLevel `json:"riskLevel"`
	ScoredAt  time.Time `json:"scoredAt"`
}

// Flagged reports whether the score crosses the reporting threshold,
// i.e. whether the transaction becomes an investigation case.
func (m *MetaScore) Flagged(reportingThreshold float64) bool {
	return m.WeightedScore >= reportingThreshold
}

// BatchStats summarizes one scoring batch for operators and exporters.
type BatchStats struct {
	Total           int     `json:"total"`
	Scored          int     `json:"scored"`
	CasesCreated    int     `json:"casesCreated"`
	Skipped         int     `json:"skipped"`
	Rejected        int     `json:"rejected"`
	Critical        int     `json:"critical"`
	High            int     `json:"high"`
	Medium          int     `json:"medium"`
	Low             int     `json:"low"`
	TotalAmount     float64 `json:"totalAmount"`
	FlaggedAmount   float64 `json:"flaggedAmount"`
	MeanScore       float64 `json:"meanScore"`
	MultiModuleHits int     `json:"multiModuleHits"` // 3+ modules flagged
}
