// Package validator normalizes raw module scores before aggregation.
package validator

import (
	"fmt"
	"math"

	"github.com/janus-audit/janus/internal/domain"
)

// Validated is the cleaned scoring input for one transaction. Weights
// are renormalized over the modules actually present so an absent
// module never drags the meta score toward zero.
type Validated struct {
	Scores       map[domain.ModuleID]domain.ModuleScore
	Weights      map[domain.ModuleID]float64
	PresentCount int
	Warnings     []string
}

// Validator clamps, filters, and reweights module scores.
type Validator struct {
	weights map[domain.ModuleID]float64
}

// New builds a Validator over the configured module weights. The
// weight set must already pass ScoringConfig.Validate.
func New(weights map[domain.ModuleID]float64) *Validator {
	w := make(map[domain.ModuleID]float64, len(weights))
	for id, v := range weights {
		w[id] = v
	}
	return &Validator{weights: w}
}

// Validate cleans one transaction's module scores.
//
// Out-of-range scores are clamped into [0,100] and recorded as
// warnings rather than rejected; a module that overshoots its scale is
// still signal. NaN or infinite scores are treated as absent. A
// transaction with no present module at all is rejected with
// ErrInsufficientSignal.
func (v *Validator) Validate(ts *domain.TransactionScores) (*Validated, error) {
	out := &Validated{
		Scores:  make(map[domain.ModuleID]domain.ModuleScore, len(v.weights)),
		Weights: make(map[domain.ModuleID]float64, len(v.weights)),
	}

	for _, id := range domain.AllModules() {
		w, weighted := v.weights[id]
		if !weighted || w == 0 {
			continue
		}
		ms, ok := ts.Scores[id]
		if !ok || !ms.Present {
			continue
		}
		if math.IsNaN(ms.Score) || math.IsInf(ms.Score, 0) {
			out.Warnings = append(out.Warnings, fmt.Sprintf(
				"tx %s: module %s score is not a finite number, treating as absent",
				ts.TransactionID, id))
			continue
		}
		if ms.Score < 0 || ms.Score > 100 {
			clamped := math.Min(100, math.Max(0, ms.Score))
			out.Warnings = append(out.Warnings, fmt.Sprintf(
				"tx %s: module %s score %.2f clamped to %.2f",
				ts.TransactionID, id, ms.Score, clamped))
			ms.Score = clamped
		}
		out.Scores[id] = ms
		out.Weights[id] = w
		out.PresentCount++
	}

	if out.PresentCount == 0 {
		return nil, fmt.Errorf("%w: tx %s", domain.ErrInsufficientSignal, ts.TransactionID)
	}

	// Renormalize so present weights sum to 1.
	var sum float64
	for _, w := range out.Weights {
		sum += w
	}
	for id, w := range out.Weights {
		out.Weights[id] = w / sum
	}
	return out, nil
}
