// Package pipeline orchestrates scoring from raw module scores to
// persisted cases and evidence reports.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/janus-audit/janus/internal/casefile"
	"github.com/janus-audit/janus/internal/domain"
	"github.com/janus-audit/janus/internal/explain"
	"github.com/janus-audit/janus/internal/rules"
	"github.com/janus-audit/janus/internal/scoring"
	"github.com/janus-audit/janus/internal/validator"
)

// Pipeline runs the full per-transaction flow:
// validate -> aggregate -> case -> tags -> report.
type Pipeline struct {
	validator *validator.Validator
	engine    *scoring.Engine
	cases     *casefile.Manager
	reports   *explain.Builder
	tagger    *rules.Engine
	repo      domain.Repository
	logger    *slog.Logger

	// MaxWorkers bounds batch concurrency.
	maxWorkers int
}

// Options configures optional pipeline collaborators.
type Options struct {
	Tagger     *rules.Engine
	MaxWorkers int
}

// New assembles a pipeline. The tag engine is optional; without it
// cases simply carry no tags.
func New(v *validator.Validator, e *scoring.Engine, cm *casefile.Manager, repo domain.Repository, logger *slog.Logger, opts Options) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	workers := opts.MaxWorkers
	if workers <= 0 {
		workers = 8
	}
	return &Pipeline{
		validator:  v,
		engine:     e,
		cases:      cm,
		reports:    explain.NewBuilder(),
		tagger:     opts.Tagger,
		repo:       repo,
		logger:     logger,
		maxWorkers: workers,
	}
}

// Result is the outcome for one scored transaction.
type Result struct {
	TransactionID string            `json:"transactionId"`
	Meta          domain.MetaScore  `json:"meta"`
	Case          *domain.Case      `json:"case,omitempty"`
	Warnings      []string          `json:"warnings,omitempty"`
}

// Score runs one transaction through the pipeline.
//
// Transactions below the reporting threshold are scored but open no
// case; the score row is still persisted so rescoring and statistics
// see them. Validation failures return ErrInsufficientSignal.
func (p *Pipeline) Score(ctx context.Context, tenantID string, ts *domain.TransactionScores) (*Result, error) {
	if ts.TransactionID == "" {
		return nil, fmt.Errorf("transaction id is required")
	}
	ts.TenantID = tenantID

	v, err := p.validator.Validate(ts)
	if err != nil {
		return nil, err
	}
	meta := p.engine.Compute(v)

	if err := p.repo.SaveScores(ctx, tenantID, ts); err != nil {
		return nil, fmt.Errorf("persist scores: %w", err)
	}

	c, err := p.cases.Rescore(ctx, tenantID, ts, meta)
	if err != nil {
		return nil, err
	}

	if c != nil {
		p.applyTags(ctx, tenantID, c)
		report := p.reports.Build(c)
		if err := p.repo.SaveReport(ctx, tenantID, report); err != nil {
			p.logger.Warn("report persist failed", "caseId", c.ID, "error", err)
		}
	}

	return &Result{
		TransactionID: ts.TransactionID,
		Meta:          meta,
		Case:          c,
		Warnings:      v.Warnings,
	}, nil
}

// BatchResult is the outcome of a batch scoring run.
type BatchResult struct {
	Results    []*Result          `json:"results"`
	Rejections []domain.Rejection `json:"rejections,omitempty"`
	Stats      domain.BatchStats  `json:"stats"`
	Elapsed    time.Duration      `json:"-"`
}

// ScoreBatch fans a batch out over a bounded worker pool. Individual
// failures become rejections, never batch failures; the review queue
// must keep moving even when some detectors send garbage.
func (p *Pipeline) ScoreBatch(ctx context.Context, tenantID string, batch []*domain.TransactionScores) *BatchResult {
	start := time.Now()
	results := make([]*Result, len(batch))
	rejections := make([]*domain.Rejection, len(batch))

	sem := make(chan struct{}, p.maxWorkers)
	var wg sync.WaitGroup
	for i, ts := range batch {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, ts *domain.TransactionScores) {
			defer wg.Done()
			defer func() { <-sem }()

			res, err := p.Score(ctx, tenantID, ts)
			if err != nil {
				reason := domain.RejectInvalidInput
				if errors.Is(err, domain.ErrInsufficientSignal) {
					reason = domain.RejectInsufficientSignal
				}
				rejections[i] = &domain.Rejection{
					TransactionID: ts.TransactionID,
					Reason:        reason,
					Detail:        err.Error(),
				}
				p.logger.Warn("transaction rejected",
					"tenantId", tenantID, "txId", ts.TransactionID, "reason", reason)
				return
			}
			results[i] = res
		}(i, ts)
	}
	wg.Wait()

	out := &BatchResult{Elapsed: time.Since(start)}
	for _, r := range results {
		if r != nil {
			out.Results = append(out.Results, r)
		}
	}
	for _, rej := range rejections {
		if rej != nil {
			out.Rejections = append(out.Rejections, *rej)
		}
	}
	out.Stats = p.stats(batch, out.Results, out.Rejections)
	return out
}

// Rank orders batch results for the review queue.
func Rank(results []*Result) {
	entries := make([]scoring.Ranked, len(results))
	byID := make(map[string]*Result, len(results))
	for i, r := range results {
		amount := 0.0
		if r.Case != nil {
			amount = r.Case.Amount
		}
		entries[i] = scoring.Ranked{
			TransactionID:  r.TransactionID,
			WeightedScore:  r.Meta.WeightedScore,
			ModulesFlagged: r.Meta.ModulesFlagged,
			Amount:         amount,
		}
		byID[r.TransactionID] = r
	}
	scoring.Rank(entries)
	for i, e := range entries {
		results[i] = byID[e.TransactionID]
	}
}

func (p *Pipeline) applyTags(ctx context.Context, tenantID string, c *domain.Case) {
	if p.tagger == nil {
		return
	}
	tags, err := p.tagger.Evaluate(ctx, tenantID, c)
	if err != nil {
		p.logger.Warn("tag evaluation failed", "caseId", c.ID, "error", err)
		return
	}
	c.Tags = tags
}

func (p *Pipeline) stats(batch []*domain.TransactionScores, results []*Result, rejections []domain.Rejection) domain.BatchStats {
	s := domain.BatchStats{
		Total:    len(batch),
		Scored:   len(results),
		Rejected: len(rejections),
	}
	var scoreSum float64
	for _, r := range results {
		scoreSum += r.Meta.WeightedScore
		switch r.Meta.RiskLevel {
		case domain.RiskCritical:
			s.Critical++
		case domain.RiskHigh:
			s.High++
		case domain.RiskMedium:
			s.Medium++
		default:
			s.Low++
		}
		if r.Meta.ModulesFlagged >= 3 {
			s.MultiModuleHits++
		}
		if r.Case != nil {
			s.CasesCreated++
			s.FlaggedAmount += r.Case.Amount
		} else {
			s.Skipped++
		}
	}
	for _, ts := range batch {
		s.TotalAmount += ts.Amount
	}
	if len(results) > 0 {
		s.MeanScore = scoreSum / float64(len(results))
	}
	return s
}
