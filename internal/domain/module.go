// Package domain defines the core interfaces and types for Janus.
package domain

import "time"

// ModuleID identifies one of the five anomaly-detection signal sources.
// The set is closed: adding a module means extending this enum and the
// switch statements that dispatch on it, which the compiler checks.
type ModuleID string

const (
	ModuleFinancial ModuleID = "financial"
	ModuleTemporal  ModuleID = "temporal"
	ModuleNetwork   ModuleID = "network"
	ModuleNLP       ModuleID = "nlp"
	ModuleCitizen   ModuleID = "citizen"
)

// AllModules lists every module in configuration order.
func AllModules() []ModuleID {
	return []ModuleID{ModuleFinancial, ModuleTemporal, ModuleNetwork, ModuleNLP, ModuleCitizen}
}

// CanonicalOrder is the fixed tie-break order for report output.
// Evidence items with equal scores sort by this order so identical
// input always renders byte-identical reports.
func CanonicalOrder() []ModuleID {
	return []ModuleID{ModuleFinancial, ModuleNetwork, ModuleTemporal, ModuleNLP, ModuleCitizen}
}

// CanonicalRank returns the position of a module in CanonicalOrder.
// Unknown modules sort last.
func CanonicalRank(m ModuleID) int {
	for i, id := range CanonicalOrder() {
		if id == m {
			return i
		}
	}
	return len(CanonicalOrder())
}

// ValidModule reports whether id names one of the five modules.
func ValidModule(id ModuleID) bool {
	switch id {
	case ModuleFinancial, ModuleTemporal, ModuleNetwork, ModuleNLP, ModuleCitizen:
		return true
	}
	return false
}

// DisplayName returns the human-facing module name used in reports.
func (m ModuleID) DisplayName() string {
	switch m {
	case ModuleFinancial:
		return "Financial"
	case ModuleTemporal:
		return "Temporal"
	case ModuleNetwork:
		return "Network"
	case ModuleNLP:
		return "NLP"
	case ModuleCitizen:
		return "Citizen Feedback"
	}
	return string(m)
}

// ModuleScore is one detection module's verdict for one transaction.
// Produced by the external detectors; immutable once submitted.
type ModuleScore struct {
	Module  ModuleID `json:"module"`
	Score   float64  `json:"score"` // 0-100, higher = more suspicious
	Present bool     `json:"present"`

	// Evidence holds short factual strings from the detector,
	// e.g. "5.2σ above department baseline".
	Evidence []string `json:"evidence,omitempty"`

	// Warnings records non-fatal contract violations found during
	// validation (clamped range, etc.). Never set by detectors.
	Warnings []string `json:"warnings,omitempty"`
}

// TransactionScores is the ingestion record for one transaction:
// the per-module score map plus the transaction attributes that flow
// into case priority and evidence reports.
type TransactionScores struct {
	TransactionID string    `json:"transactionId"`
	TenantID      string    `json:"tenantId"`
	Amount        float64   `json:"amount"`
	Department    string    `json:"department,omitempty"`
	VendorID      string    `json:"vendorId,omitempty"`
	OfficialID    string    `json:"officialId,omitempty"`
	Date          time.Time `json:"date"`

	Scores map[ModuleID]ModuleScore `json:"scores"`
}

// Rejection records a transaction that could not be scored, so every
// input has a traceable disposition.
type Rejection struct {
	TransactionID string `json:"transactionId"`
	Reason        string `json:"reason"`
	Detail        string `json:"detail,omitempty"`
}

// Rejection reasons.
const (
	RejectInsufficientSignal = "insufficient_signal"
	RejectInvalidInput       = "invalid_input"
)
