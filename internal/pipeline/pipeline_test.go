package pipeline

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/janus-audit/janus/internal/casefile"
	"github.com/janus-audit/janus/internal/domain"
	"github.com/janus-audit/janus/internal/rules"
	"github.com/janus-audit/janus/internal/scoring"
	"github.com/janus-audit/janus/internal/validator"
)

type memRepo struct {
	mu      sync.Mutex
	scores  map[string]*domain.TransactionScores
	cases   map[string]*domain.Case
	reports map[string]*domain.EvidenceReport
}

func newMemRepo() *memRepo {
	return &memRepo{
		scores:  make(map[string]*domain.TransactionScores),
		cases:   make(map[string]*domain.Case),
		reports: make(map[string]*domain.EvidenceReport),
	}
}

func (r *memRepo) SaveScores(_ context.Context, _ string, ts *domain.TransactionScores) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scores[ts.TransactionID] = ts
	return nil
}

func (r *memRepo) GetScores(_ context.Context, _, txID string) (*domain.TransactionScores, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ts, ok := r.scores[txID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return ts, nil
}

func (r *memRepo) SaveCase(_ context.Context, _ string, c *domain.Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.cases[c.ID] = &cp
	return nil
}

func (r *memRepo) GetCase(_ context.Context, _, caseID string) (*domain.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cases[caseID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memRepo) GetCaseByTransaction(_ context.Context, _, txID string) (*domain.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.cases {
		if c.TransactionID == txID && c.SupersededBy == "" {
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memRepo) UpdateCaseStatus(_ context.Context, _ string, c *domain.Case, expect domain.CaseStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.cases[c.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if cur.Status != expect {
		return domain.ErrSuperseded
	}
	cp := *c
	r.cases[c.ID] = &cp
	return nil
}

func (r *memRepo) ListCases(_ context.Context, _ string, _ domain.CaseFilter) ([]*domain.Case, error) {
	return nil, nil
}

func (r *memRepo) CountCasesByVendor(_ context.Context, _, vendorID string, _ time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.cases {
		if c.VendorID == vendorID {
			n++
		}
	}
	return n, nil
}

func (r *memRepo) SaveReport(_ context.Context, _ string, rep *domain.EvidenceReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports[rep.CaseID] = rep
	return nil
}

func (r *memRepo) GetReport(_ context.Context, _, caseID string) (*domain.EvidenceReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rep, ok := r.reports[caseID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return rep, nil
}

func (r *memRepo) SaveTagRule(_ context.Context, _ string, _ *domain.TagRuleConfig) error { return nil }
func (r *memRepo) GetTagRule(_ context.Context, _, _ string) (*domain.TagRuleConfig, error) {
	return nil, domain.ErrNotFound
}
func (r *memRepo) ListTagRules(_ context.Context, _ string) ([]*domain.TagRuleConfig, error) {
	return nil, nil
}
func (r *memRepo) DeleteTagRule(_ context.Context, _, _ string) error { return nil }
func (r *memRepo) Ping(_ context.Context) error                      { return nil }
func (r *memRepo) Close() error                                      { return nil }

func testPipeline(t *testing.T, repo *memRepo, opts Options) *Pipeline {
	t.Helper()
	cfg := domain.DefaultConfig().Scoring
	engine, err := scoring.NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine() error: %v", err)
	}
	cm := casefile.NewManager(repo, nil, nil, engine, nil)
	return New(validator.New(cfg.Weights), engine, cm, repo, nil, opts)
}

func scoredTx(txID string, amount float64, modScores map[domain.ModuleID]float64) *domain.TransactionScores {
	ts := &domain.TransactionScores{
		TransactionID: txID,
		Amount:        amount,
		Department:    "public-works",
		VendorID:      "V-1",
		OfficialID:    "O-1",
		Date:          time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		Scores:        make(map[domain.ModuleID]domain.ModuleScore),
	}
	for id, s := range modScores {
		ts.Scores[id] = domain.ModuleScore{Module: id, Score: s, Present: true}
	}
	return ts
}

func TestScoreOpensCaseAndReport(t *testing.T) {
	repo := newMemRepo()
	p := testPipeline(t, repo, Options{})

	res, err := p.Score(context.Background(), "tenant-a", scoredTx("TX-1", 125000, map[domain.ModuleID]float64{
		domain.ModuleFinancial: 85,
		domain.ModuleTemporal:  40,
		domain.ModuleNetwork:   80,
		domain.ModuleNLP:       75,
		domain.ModuleCitizen:   90,
	}))
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}
	if res.Meta.WeightedScore != 84 {
		t.Errorf("WeightedScore = %v, want 84", res.Meta.WeightedScore)
	}
	if res.Case == nil {
		t.Fatal("no case for CRITICAL score")
	}
	if _, err := repo.GetReport(context.Background(), "tenant-a", res.Case.ID); err != nil {
		t.Errorf("report not persisted: %v", err)
	}
	if _, err := repo.GetScores(context.Background(), "tenant-a", "TX-1"); err != nil {
		t.Errorf("scores not persisted: %v", err)
	}
}

func TestScoreBelowThresholdPersistsScoresOnly(t *testing.T) {
	repo := newMemRepo()
	p := testPipeline(t, repo, Options{})

	res, err := p.Score(context.Background(), "tenant-a", scoredTx("TX-2", 500, map[domain.ModuleID]float64{
		domain.ModuleFinancial: 10,
	}))
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}
	if res.Case != nil {
		t.Errorf("case opened at score %v, want none", res.Meta.WeightedScore)
	}
	if len(repo.cases) != 0 {
		t.Errorf("repo has %d cases, want 0", len(repo.cases))
	}
	if len(repo.scores) != 1 {
		t.Errorf("repo has %d score rows, want 1", len(repo.scores))
	}
}

func TestScoreAppliesTags(t *testing.T) {
	tagger, err := rules.NewEngine(nil, 4)
	if err != nil {
		t.Fatalf("NewEngine() error: %v", err)
	}
	if err := tagger.LoadRule(&domain.TagRuleConfig{
		ID:         "r1",
		Expression: `weighted_score >= 70.0`,
		Tag:        "hot",
		Enabled:    true,
	}); err != nil {
		t.Fatalf("LoadRule() error: %v", err)
	}

	repo := newMemRepo()
	p := testPipeline(t, repo, Options{Tagger: tagger})

	res, err := p.Score(context.Background(), "tenant-a", scoredTx("TX-3", 9000, map[domain.ModuleID]float64{
		domain.ModuleFinancial: 90,
		domain.ModuleNetwork:   90,
	}))
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}
	if res.Case == nil {
		t.Fatal("expected case")
	}
	if len(res.Case.Tags) != 1 || res.Case.Tags[0] != "hot" {
		t.Errorf("tags = %v, want [hot]", res.Case.Tags)
	}
}

func TestScoreBatchCollectsRejections(t *testing.T) {
	repo := newMemRepo()
	p := testPipeline(t, repo, Options{MaxWorkers: 4})

	batch := []*domain.TransactionScores{
		scoredTx("TX-A", 1000, map[domain.ModuleID]float64{domain.ModuleFinancial: 80, domain.ModuleNetwork: 80, domain.ModuleCitizen: 80}),
		scoredTx("TX-B", 2000, nil), // no signal
		scoredTx("TX-C", 3000, map[domain.ModuleID]float64{domain.ModuleFinancial: 5}),
	}
	out := p.ScoreBatch(context.Background(), "tenant-a", batch)

	if out.Stats.Total != 3 || out.Stats.Scored != 2 || out.Stats.Rejected != 1 {
		t.Errorf("stats = %+v", out.Stats)
	}
	if len(out.Rejections) != 1 || out.Rejections[0].TransactionID != "TX-B" {
		t.Fatalf("rejections = %+v", out.Rejections)
	}
	if out.Rejections[0].Reason != domain.RejectInsufficientSignal {
		t.Errorf("reason = %q, want insufficient_signal", out.Rejections[0].Reason)
	}
	if out.Stats.CasesCreated != 1 || out.Stats.Skipped != 1 {
		t.Errorf("stats = %+v", out.Stats)
	}
	if out.Stats.TotalAmount != 6000 {
		t.Errorf("TotalAmount = %v, want 6000", out.Stats.TotalAmount)
	}
	if out.Stats.FlaggedAmount != 1000 {
		t.Errorf("FlaggedAmount = %v, want 1000", out.Stats.FlaggedAmount)
	}
}

func TestScoreBatchLargeParallel(t *testing.T) {
	repo := newMemRepo()
	p := testPipeline(t, repo, Options{MaxWorkers: 8})

	var batch []*domain.TransactionScores
	for i := 0; i < 200; i++ {
		batch = append(batch, scoredTx(
			"TX-"+strconv.Itoa(i),
			float64(1000+i),
			map[domain.ModuleID]float64{domain.ModuleFinancial: float64(i % 101)},
		))
	}
	out := p.ScoreBatch(context.Background(), "tenant-a", batch)
	if out.Stats.Scored != 200 {
		t.Errorf("Scored = %d, want 200", out.Stats.Scored)
	}
	if out.Stats.Rejected != 0 {
		t.Errorf("Rejected = %d, want 0 (%v)", out.Stats.Rejected, out.Rejections)
	}
}

func TestRankOrdersResults(t *testing.T) {
	results := []*Result{
		{TransactionID: "TX-LOW", Meta: domain.MetaScore{WeightedScore: 20}},
		{TransactionID: "TX-HIGH", Meta: domain.MetaScore{WeightedScore: 90}},
		{TransactionID: "TX-MID", Meta: domain.MetaScore{WeightedScore: 55}},
	}
	Rank(results)
	want := []string{"TX-HIGH", "TX-MID", "TX-LOW"}
	for i, id := range want {
		if results[i].TransactionID != id {
			t.Errorf("pos %d = %s, want %s", i, results[i].TransactionID, id)
		}
	}
}
