package domain

// TagRuleConfig defines a CEL triage rule. Rules attach routing tags to
// cases after scoring; they never change status and never block or
// close anything on their own.
type TagRuleConfig struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`

	// CEL expression evaluated against the scored case.
	// Must produce a bool.
	Expression string `json:"expression"`

	// Tag attached to the case when the expression is true.
	Tag string `json:"tag"`

	// Whether rule is active
	Enabled bool `json:"enabled"`
}

// TagResult is the output of a tag rule evaluation.
type TagResult struct {
	RuleID    string `json:"ruleId"`
	TenantID  string `json:"tenantId"`
	CaseID    string `json:"caseId"`
	Tag       string `json:"tag"`
	Matched   bool   `json:"matched"`
	Err       string `json:"err,omitempty"`
	ProcessMs int64  `json:"processMs"` // Processing time in milliseconds
}
