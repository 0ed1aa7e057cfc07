// Package rules provides the CEL-Go based triage tag engine.
//
// Tag rules run after scoring and attach routing tags to cases. They
// have no authority over case status: a rule cannot claim, close, or
// suppress a case, only label it for the review queue.
package rules

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/janus-audit/janus/internal/domain"
)

// Engine is the CEL-based tag rule engine.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*CompiledRule
	priorCases    PriorCaseGetter
	maxWorkers    int
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  *domain.TagRuleConfig
	Program cel.Program
}

// PriorCaseGetter returns the number of earlier cases for a vendor in
// a time window.
type PriorCaseGetter func(ctx context.Context, tenantID, vendorID string, windowSecs int) (int64, error)

// NewEngine creates a tag rule engine.
func NewEngine(priorCases PriorCaseGetter, maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	// CEL environment exposing the scored case
	env, err := cel.NewEnv(
		cel.Variable("weighted_score", cel.DoubleType),
		cel.Variable("modules_flagged", cel.IntType),
		cel.Variable("risk_level", cel.StringType),
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("department", cel.StringType),
		cel.Variable("vendor_id", cel.StringType),
		cel.Variable("official_id", cel.StringType),
		cel.Variable("prior_cases", cel.IntType),
		// Per-module scores; absent modules default to -1 so rules
		// can distinguish absence from a genuine zero.
		cel.Variable("financial_score", cel.DoubleType),
		cel.Variable("temporal_score", cel.DoubleType),
		cel.Variable("network_score", cel.DoubleType),
		cel.Variable("nlp_score", cel.DoubleType),
		cel.Variable("citizen_score", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		compiledRules: make(map[string]*CompiledRule),
		priorCases:    priorCases,
		maxWorkers:    maxWorkers,
	}, nil
}

// ValidateRule compiles a rule without loading it.
func (e *Engine) ValidateRule(cfg *domain.TagRuleConfig) error {
	if cfg == nil {
		return fmt.Errorf("rule config is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(cfg)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(cfg *domain.TagRuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}

	e.compiledRules[cfg.ID] = compiled

	return nil
}

// LoadRules compiles and loads multiple rules.
func (e *Engine) LoadRules(configs []*domain.TagRuleConfig) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadRule(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// Evaluate runs every loaded rule against a case and returns the
// matched tags, sorted and de-duplicated.
func (e *Engine) Evaluate(ctx context.Context, tenantID string, c *domain.Case) ([]string, error) {
	results, err := e.EvaluateAll(ctx, tenantID, c)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var tags []string
	for _, r := range results {
		if r.Matched && !seen[r.Tag] {
			seen[r.Tag] = true
			tags = append(tags, r.Tag)
		}
	}
	sort.Strings(tags)
	return tags, nil
}

// EvaluateAll evaluates all loaded rules in parallel and returns the
// per-rule outcomes.
func (e *Engine) EvaluateAll(ctx context.Context, tenantID string, c *domain.Case) ([]domain.TagResult, error) {
	e.mu.RLock()
	rules := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, rule := range e.compiledRules {
		rules = append(rules, rule)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil, nil
	}

	var priorCount int64
	if e.priorCases != nil && c.VendorID != "" {
		count, err := e.priorCases(ctx, tenantID, c.VendorID, 0)
		if err == nil {
			priorCount = count
		}
	}

	activation := map[string]any{
		"weighted_score":  c.Meta.WeightedScore,
		"modules_flagged": int64(c.Meta.ModulesFlagged),
		"risk_level":      string(c.Meta.RiskLevel),
		"amount":          c.Amount,
		"department":      c.Department,
		"vendor_id":       c.VendorID,
		"official_id":     c.OfficialID,
		"prior_cases":     priorCount,
		"financial_score": -1.0,
		"temporal_score":  -1.0,
		"network_score":   -1.0,
		"nlp_score":       -1.0,
		"citizen_score":   -1.0,
	}
	for _, ms := range c.Scores {
		activation[string(ms.Module)+"_score"] = ms.Score
	}

	// Parallel evaluation using worker pool pattern
	results := make([]domain.TagResult, len(rules))
	var wg sync.WaitGroup

	sem := make(chan struct{}, e.maxWorkers)

	for i, rule := range rules {
		wg.Add(1)
		go func(idx int, r *CompiledRule) {
			defer wg.Done()

			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			results[idx] = e.evaluateRule(r, activation, tenantID, c.ID)
		}(i, rule)
	}

	wg.Wait()

	return results, nil
}

// evaluateRule evaluates a single rule and returns the result.
func (e *Engine) evaluateRule(rule *CompiledRule, activation map[string]any, tenantID, caseID string) domain.TagResult {
	start := time.Now()

	result := domain.TagResult{
		RuleID:   rule.Config.ID,
		TenantID: tenantID,
		CaseID:   caseID,
		Tag:      rule.Config.Tag,
	}

	out, _, err := rule.Program.Eval(activation)
	if err != nil {
		result.Err = fmt.Sprintf("evaluation error: %v", err)
		result.ProcessMs = time.Since(start).Milliseconds()
		return result
	}

	result.Matched = toBool(out)
	result.ProcessMs = time.Since(start).Milliseconds()

	return result
}

// toBool converts a CEL value to a match verdict.
func toBool(val ref.Val) bool {
	if b, ok := val.(types.Bool); ok {
		return bool(b)
	}
	return false
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// ReloadRules clears all existing rules and loads new ones.
// This enables hot-reloading of rules from the database.
func (e *Engine) ReloadRules(configs []*domain.TagRuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newRules := make(map[string]*CompiledRule)

	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		compiled, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		newRules[cfg.ID] = compiled
	}

	e.compiledRules = newRules

	return nil
}

// GetLoadedRules returns the currently loaded rule configurations.
func (e *Engine) GetLoadedRules() []*domain.TagRuleConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.TagRuleConfig, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		rules = append(rules, compiled.Config)
	}
	return rules
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*CompiledRule)
	return nil
}

func (e *Engine) compileRule(cfg *domain.TagRuleConfig) (*CompiledRule, error) {
	if cfg.Tag == "" {
		return nil, fmt.Errorf("rule %s: tag is required", cfg.ID)
	}

	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", cfg.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &CompiledRule{
		Config:  cfg,
		Program: program,
	}, nil
}
