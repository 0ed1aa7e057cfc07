// Package scoring implements the weighted meta-score aggregation.
package scoring

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/janus-audit/janus/internal/domain"
	"github.com/janus-audit/janus/internal/validator"
)

// Engine combines validated module scores into a single meta score.
// Safe for concurrent use; configuration swaps take the write lock.
type Engine struct {
	mu  sync.RWMutex
	cfg domain.ScoringConfig
	now func() time.Time
}

// NewEngine creates a scoring engine. Returns an error when the
// configuration fails validation; a misconfigured engine never scores.
func NewEngine(cfg domain.ScoringConfig) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, now: time.Now}, nil
}

// Reconfigure atomically replaces the scoring parameters. In-flight
// computations finish under the old configuration.
func (e *Engine) Reconfigure(cfg domain.ScoringConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()
	return nil
}

// Config returns a copy of the active scoring parameters.
func (e *Engine) Config() domain.ScoringConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// Compute aggregates validated scores into a MetaScore.
//
// The base is the weighted mean over present modules. When at least
// CorrelationMinFlagged modules score at or above the flag threshold,
// the correlation bonus is added; independent detectors agreeing is
// stronger evidence than any one of them alone. The final score caps
// at 100.
func (e *Engine) Compute(v *validator.Validated) domain.MetaScore {
	e.mu.RLock()
	cfg := e.cfg
	e.mu.RUnlock()

	var base float64
	flagged := 0
	for id, ms := range v.Scores {
		base += ms.Score * v.Weights[id]
		if ms.Score >= cfg.FlagThreshold {
			flagged++
		}
	}

	var bonus float64
	if flagged >= cfg.CorrelationMinFlagged {
		bonus = cfg.CorrelationBonus
	}
	final := math.Min(100, base+bonus)

	return domain.MetaScore{
		WeightedScore:    final,
		Base:             base,
		ModulesFlagged:   flagged,
		CorrelationBonus: bonus,
		RiskLevel:        cfg.Thresholds.Level(final),
		ScoredAt:         e.now().UTC(),
	}
}

// Priority computes the review-queue priority for a scored
// transaction. Larger amounts at equal risk surface first, on a log
// scale so a huge contract cannot bury a high-risk small one.
func (e *Engine) Priority(meta domain.MetaScore, amount float64) float64 {
	e.mu.RLock()
	scale := e.cfg.PriorityAmountScale
	e.mu.RUnlock()
	if amount < 0 {
		amount = 0
	}
	return meta.WeightedScore + scale*math.Log10(amount+1)
}

// Ranked is one entry in a scored batch ordering.
type Ranked struct {
	TransactionID  string
	WeightedScore  float64
	ModulesFlagged int
	Amount         float64
}

// Rank sorts entries for review: score descending, then flagged module
// count descending, then amount descending, then transaction ID
// ascending. The final key makes the order total and deterministic.
func Rank(entries []Ranked) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.WeightedScore != b.WeightedScore {
			return a.WeightedScore > b.WeightedScore
		}
		if a.ModulesFlagged != b.ModulesFlagged {
			return a.ModulesFlagged > b.ModulesFlagged
		}
		if a.Amount != b.Amount {
			return a.Amount > b.Amount
		}
		return a.TransactionID < b.TransactionID
	})
}
