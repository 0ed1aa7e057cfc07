package rules

import (
	"context"
	"testing"

	"github.com/janus-audit/janus/internal/domain"
)

func testCase() *domain.Case {
	return &domain.Case{
		ID:            "case-001",
		TransactionID: "TX-001",
		Meta: domain.MetaScore{
			WeightedScore:  84,
			ModulesFlagged: 4,
			RiskLevel:      domain.RiskCritical,
		},
		Scores: []domain.ModuleScore{
			{Module: domain.ModuleFinancial, Score: 85, Present: true},
			{Module: domain.ModuleNetwork, Score: 80, Present: true},
			{Module: domain.ModuleCitizen, Score: 90, Present: true},
		},
		Amount:     2500000,
		Department: "public-works",
		VendorID:   "V-778",
		OfficialID: "O-104",
	}
}

func TestLoadAndEvaluate(t *testing.T) {
	e, err := NewEngine(nil, 4)
	if err != nil {
		t.Fatalf("NewEngine() error: %v", err)
	}
	defer e.Close()

	if err := e.LoadRule(&domain.TagRuleConfig{
		ID:         "r1",
		Expression: `risk_level == "CRITICAL" && amount > 1000000.0`,
		Tag:        "big-critical",
		Enabled:    true,
	}); err != nil {
		t.Fatalf("LoadRule() error: %v", err)
	}

	tags, err := e.Evaluate(context.Background(), "tenant-a", testCase())
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if len(tags) != 1 || tags[0] != "big-critical" {
		t.Errorf("tags = %v, want [big-critical]", tags)
	}
}

func TestCompileRejectsNonBool(t *testing.T) {
	e, err := NewEngine(nil, 4)
	if err != nil {
		t.Fatalf("NewEngine() error: %v", err)
	}
	defer e.Close()

	err = e.ValidateRule(&domain.TagRuleConfig{
		ID:         "bad",
		Expression: `amount + 1.0`,
		Tag:        "numeric",
	})
	if err == nil {
		t.Fatal("ValidateRule() accepted a non-bool expression")
	}
}

func TestCompileRejectsMissingTag(t *testing.T) {
	e, _ := NewEngine(nil, 4)
	defer e.Close()

	if err := e.LoadRule(&domain.TagRuleConfig{ID: "no-tag", Expression: `true`}); err == nil {
		t.Fatal("LoadRule() accepted a rule without a tag")
	}
}

func TestAbsentModuleScoresDefaultNegative(t *testing.T) {
	e, _ := NewEngine(nil, 4)
	defer e.Close()

	// temporal is absent from the case; -1 sentinel distinguishes
	// absence from zero.
	if err := e.LoadRule(&domain.TagRuleConfig{
		ID:         "absent",
		Expression: `temporal_score < 0.0`,
		Tag:        "no-temporal",
		Enabled:    true,
	}); err != nil {
		t.Fatalf("LoadRule() error: %v", err)
	}

	tags, err := e.Evaluate(context.Background(), "tenant-a", testCase())
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if len(tags) != 1 || tags[0] != "no-temporal" {
		t.Errorf("tags = %v, want [no-temporal]", tags)
	}
}

func TestPriorCasesVariable(t *testing.T) {
	getter := func(_ context.Context, _, vendorID string, _ int) (int64, error) {
		if vendorID == "V-778" {
			return 3, nil
		}
		return 0, nil
	}
	e, err := NewEngine(getter, 4)
	if err != nil {
		t.Fatalf("NewEngine() error: %v", err)
	}
	defer e.Close()

	if err := e.LoadRules(BuiltinRules()); err != nil {
		t.Fatalf("LoadRules(builtin) error: %v", err)
	}

	tags, err := e.Evaluate(context.Background(), "tenant-a", testCase())
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}

	want := map[string]bool{
		"high-value":     true,
		"multi-module":   true,
		"repeat-vendor":  true,
		"citizen-signal": true,
		"ghost-vendor":   true,
	}
	if len(tags) != len(want) {
		t.Fatalf("tags = %v, want %d builtin matches", tags, len(want))
	}
	for _, tag := range tags {
		if !want[tag] {
			t.Errorf("unexpected tag %q", tag)
		}
	}
}

func TestReloadRulesReplacesSet(t *testing.T) {
	e, _ := NewEngine(nil, 4)
	defer e.Close()

	if err := e.LoadRules(BuiltinRules()); err != nil {
		t.Fatalf("LoadRules() error: %v", err)
	}
	if got := e.RulesCount(); got != len(BuiltinRules()) {
		t.Fatalf("RulesCount() = %d, want %d", got, len(BuiltinRules()))
	}

	if err := e.ReloadRules([]*domain.TagRuleConfig{
		{ID: "only", Expression: `true`, Tag: "always", Enabled: true},
		{ID: "disabled", Expression: `true`, Tag: "never", Enabled: false},
	}); err != nil {
		t.Fatalf("ReloadRules() error: %v", err)
	}
	if got := e.RulesCount(); got != 1 {
		t.Errorf("RulesCount() after reload = %d, want 1", got)
	}
}

func TestEvaluateErrorDoesNotMatch(t *testing.T) {
	e, _ := NewEngine(nil, 4)
	defer e.Close()

	// Integer division by a zero amount errors at eval time; the rule
	// reports the error instead of matching.
	if err := e.LoadRule(&domain.TagRuleConfig{
		ID:         "div",
		Expression: `100 / int(amount) > 1`,
		Tag:        "divzero",
		Enabled:    true,
	}); err != nil {
		t.Fatalf("LoadRule() error: %v", err)
	}

	c := testCase()
	c.Amount = 0

	results, err := e.EvaluateAll(context.Background(), "tenant-a", c)
	if err != nil {
		t.Fatalf("EvaluateAll() error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if results[0].Matched {
		t.Error("errored rule reported a match")
	}
}
