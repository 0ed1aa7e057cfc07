package rules

import "github.com/janus-audit/janus/internal/domain"

// BuiltinRules returns the stock triage tag set loaded when a tenant
// has no rules of its own.
func BuiltinRules() []*domain.TagRuleConfig {
	return []*domain.TagRuleConfig{
		{
			ID:          "builtin-high-value",
			Name:        "High value case",
			Description: "Flags cases over one million for senior review",
			Version:     "1.0",
			Expression:  `amount > 1000000.0`,
			Tag:         "high-value",
			Enabled:     true,
		},
		{
			ID:          "builtin-multi-module",
			Name:        "Cross-module corroboration",
			Description: "Three or more detectors agree",
			Version:     "1.0",
			Expression:  `modules_flagged >= 3`,
			Tag:         "multi-module",
			Enabled:     true,
		},
		{
			ID:          "builtin-repeat-vendor",
			Name:        "Repeat vendor",
			Description: "Vendor already has open or closed cases",
			Version:     "1.0",
			Expression:  `prior_cases >= 2`,
			Tag:         "repeat-vendor",
			Enabled:     true,
		},
		{
			ID:          "builtin-citizen-signal",
			Name:        "Citizen complaints",
			Description: "Citizen feedback module driving the score",
			Version:     "1.0",
			Expression:  `citizen_score >= 70.0`,
			Tag:         "citizen-signal",
			Enabled:     true,
		},
		{
			ID:          "builtin-ghost-vendor",
			Name:        "Possible ghost vendor",
			Description: "Strong financial and network signal on a high amount",
			Version:     "1.0",
			Expression:  `financial_score >= 70.0 && network_score >= 70.0 && amount > 100000.0`,
			Tag:         "ghost-vendor",
			Enabled:     true,
		},
	}
}
