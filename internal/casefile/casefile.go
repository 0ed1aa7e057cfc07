// Package casefile manages fraud case creation and lifecycle.
//
// Cases move NEW -> UNDER_REVIEW -> CLOSED, and only a named human
// investigator moves them. Scoring can open cases and rescore them; it
// never advances or closes one.
package casefile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/janus-audit/janus/internal/domain"
	"github.com/janus-audit/janus/internal/scoring"
)

// Manager builds and rescores cases on top of the repository.
type Manager struct {
	repo   domain.Repository
	cache  domain.Cache
	bus    domain.EventBus
	engine *scoring.Engine
	logger *slog.Logger

	// Serializes rescore decisions per manager. The repository's
	// compare-and-update is the real guard; the mutex just keeps one
	// process from racing itself.
	mu sync.Mutex

	now func() time.Time
}

// NewManager wires a case manager. Cache and bus may be nil; the
// manager degrades to repository-only operation.
func NewManager(repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *scoring.Engine, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		repo:   repo,
		cache:  cache,
		bus:    bus,
		engine: engine,
		logger: logger,
		now:    time.Now,
	}
}

// Open creates a case for a scored transaction when the meta score
// reaches the reporting threshold. Returns (nil, nil) below threshold;
// a transaction that does not warrant review leaves no case behind.
func (m *Manager) Open(ctx context.Context, tenantID string, ts *domain.TransactionScores, meta domain.MetaScore) (*domain.Case, error) {
	if !meta.Flagged(m.engine.Config().Thresholds.Reporting()) {
		return nil, nil
	}

	now := m.now().UTC()
	c := &domain.Case{
		ID:            uuid.New().String(),
		TenantID:      tenantID,
		TransactionID: ts.TransactionID,
		Meta:          meta,
		Scores:        flatten(ts),
		Amount:        ts.Amount,
		Department:    ts.Department,
		VendorID:      ts.VendorID,
		OfficialID:    ts.OfficialID,
		Date:          ts.Date,
		Priority:      m.engine.Priority(meta, ts.Amount),
		Status:        domain.StatusNew,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := m.repo.SaveCase(ctx, tenantID, c); err != nil {
		return nil, fmt.Errorf("save case: %w", err)
	}
	m.cacheRef(ctx, tenantID, c)
	m.publish(ctx, tenantID, domain.TopicCaseCreated, c)
	return c, nil
}

// Rescore applies a fresh meta score to the transaction's current case.
//
// A NEW case is updated in place; nobody has looked at it yet, so its
// identity can absorb the new evidence. A case already under review or
// closed is immutable history: rescoring opens a linked successor and
// stamps the old case with SupersededBy via compare-and-update, so two
// concurrent rescores cannot both claim the same predecessor.
func (m *Manager) Rescore(ctx context.Context, tenantID string, ts *domain.TransactionScores, meta domain.MetaScore) (*domain.Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// One retry covers the investigator-claimed-mid-rescore race; the
	// second pass takes the supersede path against the new status.
	for attempt := 0; ; attempt++ {
		c, retry, err := m.rescoreOnce(ctx, tenantID, ts, meta)
		if retry {
			if attempt == 0 {
				continue
			}
			return nil, fmt.Errorf("rescore tx %s: %w", ts.TransactionID, domain.ErrSuperseded)
		}
		return c, err
	}
}

func (m *Manager) rescoreOnce(ctx context.Context, tenantID string, ts *domain.TransactionScores, meta domain.MetaScore) (*domain.Case, bool, error) {
	prev, err := m.repo.GetCaseByTransaction(ctx, tenantID, ts.TransactionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c, err := m.Open(ctx, tenantID, ts, meta)
			return c, false, err
		}
		return nil, false, fmt.Errorf("lookup case: %w", err)
	}

	now := m.now().UTC()
	if prev.Status == domain.StatusNew {
		prev.Meta = meta
		prev.Scores = flatten(ts)
		prev.Amount = ts.Amount
		prev.Priority = m.engine.Priority(meta, ts.Amount)
		prev.UpdatedAt = now
		if err := m.repo.UpdateCaseStatus(ctx, tenantID, prev, domain.StatusNew); err != nil {
			if errors.Is(err, domain.ErrSuperseded) {
				return nil, true, nil
			}
			return nil, false, fmt.Errorf("update case: %w", err)
		}
		m.cacheRef(ctx, tenantID, prev)
		return prev, false, nil
	}

	// A rescore that no longer warrants review opens no successor; the
	// reviewed or closed case stands as the record.
	if !meta.Flagged(m.engine.Config().Thresholds.Reporting()) {
		return prev, false, nil
	}

	next := &domain.Case{
		ID:            uuid.New().String(),
		TenantID:      tenantID,
		TransactionID: ts.TransactionID,
		Meta:          meta,
		Scores:        flatten(ts),
		Amount:        ts.Amount,
		Department:    ts.Department,
		VendorID:      ts.VendorID,
		OfficialID:    ts.OfficialID,
		Date:          ts.Date,
		Priority:      m.engine.Priority(meta, ts.Amount),
		Status:        domain.StatusNew,
		Supersedes:    prev.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := m.repo.SaveCase(ctx, tenantID, next); err != nil {
		return nil, false, fmt.Errorf("save successor case: %w", err)
	}

	expect := prev.Status
	prev.SupersededBy = next.ID
	prev.UpdatedAt = now
	if err := m.repo.UpdateCaseStatus(ctx, tenantID, prev, expect); err != nil {
		return nil, false, fmt.Errorf("link superseded case: %w", err)
	}

	m.cacheRef(ctx, tenantID, next)
	m.publish(ctx, tenantID, domain.TopicCaseSuperseded, next)
	return next, false, nil
}

// Claim moves a case into review for a named investigator.
func (m *Manager) Claim(ctx context.Context, tenantID, caseID, investigator string) (*domain.Case, error) {
	c, err := m.repo.GetCase(ctx, tenantID, caseID)
	if err != nil {
		return nil, err
	}
	if err := c.Claim(investigator, m.now().UTC()); err != nil {
		return nil, err
	}
	if err := m.repo.UpdateCaseStatus(ctx, tenantID, c, domain.StatusNew); err != nil {
		return nil, err
	}
	m.cacheRef(ctx, tenantID, c)
	m.logger.Info("case claimed", "tenantId", tenantID, "caseId", caseID, "investigator", investigator)
	return c, nil
}

// Close resolves a case under review.
func (m *Manager) Close(ctx context.Context, tenantID, caseID, investigator, resolution string) (*domain.Case, error) {
	c, err := m.repo.GetCase(ctx, tenantID, caseID)
	if err != nil {
		return nil, err
	}
	if err := c.Close(investigator, resolution, m.now().UTC()); err != nil {
		return nil, err
	}
	if err := m.repo.UpdateCaseStatus(ctx, tenantID, c, domain.StatusUnderReview); err != nil {
		return nil, err
	}
	m.cacheRef(ctx, tenantID, c)
	m.logger.Info("case closed", "tenantId", tenantID, "caseId", caseID, "investigator", investigator, "resolution", resolution)
	return c, nil
}

func (m *Manager) cacheRef(ctx context.Context, tenantID string, c *domain.Case) {
	if m.cache == nil {
		return
	}
	ref := &domain.CaseRef{
		CaseID:    c.ID,
		Status:    string(c.Status),
		RiskLevel: string(c.Meta.RiskLevel),
		Score:     c.Meta.WeightedScore,
		VendorID:  c.VendorID,
	}
	if err := m.cache.SetCaseRef(ctx, tenantID, c.TransactionID, ref, 15*time.Minute); err != nil {
		m.logger.Warn("case ref cache write failed", "caseId", c.ID, "error", err)
	}
}

func (m *Manager) publish(ctx context.Context, tenantID, topic string, c *domain.Case) {
	if m.bus == nil {
		return
	}
	payload := []byte(fmt.Sprintf(`{"caseId":%q,"transactionId":%q,"riskLevel":%q,"score":%g}`,
		c.ID, c.TransactionID, c.Meta.RiskLevel, c.Meta.WeightedScore))
	if err := m.bus.Publish(ctx, tenantID, topic, payload); err != nil {
		m.logger.Warn("publish failed", "topic", topic, "caseId", c.ID, "error", err)
	}
	if c.Meta.RiskLevel == domain.RiskCritical {
		if err := m.bus.Publish(ctx, tenantID, domain.TopicAlert, payload); err != nil {
			m.logger.Warn("alert publish failed", "caseId", c.ID, "error", err)
		}
	}
}

// flatten orders module scores canonically for storage and display.
func flatten(ts *domain.TransactionScores) []domain.ModuleScore {
	out := make([]domain.ModuleScore, 0, len(ts.Scores))
	for _, id := range domain.CanonicalOrder() {
		if ms, ok := ts.Scores[id]; ok && ms.Present {
			out = append(out, ms)
		}
	}
	return out
}
