package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/janus-audit/janus/internal/domain"
)

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "janus-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testCase(id, txID string) *domain.Case {
	now := time.Now().UTC().Truncate(time.Second)
	return &domain.Case{
		ID:            id,
		TransactionID: txID,
		Meta: domain.MetaScore{
			WeightedScore:  84,
			Base:           74,
			ModulesFlagged: 4,
			RiskLevel:      domain.RiskCritical,
			ScoredAt:       now,
		},
		Scores: []domain.ModuleScore{
			{Module: domain.ModuleFinancial, Score: 85, Present: true},
			{Module: domain.ModuleCitizen, Score: 90, Present: true},
		},
		Amount:     125000.50,
		Department: "public-works",
		VendorID:   "V-778",
		OfficialID: "O-104",
		Date:       now,
		Priority:   89.1,
		Status:     domain.StatusNew,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestSQLiteRepository(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	tenantID := "tenant-001"

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("SaveAndGetScores", func(t *testing.T) {
		ts := &domain.TransactionScores{
			TransactionID: "tx-001",
			Amount:        125000.50,
			Department:    "public-works",
			VendorID:      "V-778",
			OfficialID:    "O-104",
			Date:          time.Now().UTC().Truncate(time.Second),
			Scores: map[domain.ModuleID]domain.ModuleScore{
				domain.ModuleFinancial: {Module: domain.ModuleFinancial, Score: 85, Present: true},
				domain.ModuleCitizen:   {Module: domain.ModuleCitizen, Score: 90, Present: true, Evidence: []string{"negative feedback"}},
			},
		}

		if err := repo.SaveScores(ctx, tenantID, ts); err != nil {
			t.Fatalf("SaveScores failed: %v", err)
		}

		retrieved, err := repo.GetScores(ctx, tenantID, "tx-001")
		if err != nil {
			t.Fatalf("GetScores failed: %v", err)
		}
		if retrieved.Amount != ts.Amount {
			t.Errorf("expected Amount %.2f, got %.2f", ts.Amount, retrieved.Amount)
		}
		if got := retrieved.Scores[domain.ModuleCitizen].Score; got != 90 {
			t.Errorf("expected citizen score 90, got %v", got)
		}
	})

	t.Run("SaveScoresReplaces", func(t *testing.T) {
		ts := &domain.TransactionScores{
			TransactionID: "tx-001",
			Amount:        99,
			Scores: map[domain.ModuleID]domain.ModuleScore{
				domain.ModuleNetwork: {Module: domain.ModuleNetwork, Score: 50, Present: true},
			},
		}
		if err := repo.SaveScores(ctx, tenantID, ts); err != nil {
			t.Fatalf("SaveScores (replace) failed: %v", err)
		}
		retrieved, err := repo.GetScores(ctx, tenantID, "tx-001")
		if err != nil {
			t.Fatalf("GetScores failed: %v", err)
		}
		if retrieved.Amount != 99 {
			t.Errorf("expected replaced Amount 99, got %v", retrieved.Amount)
		}
	})

	t.Run("SaveAndGetCase", func(t *testing.T) {
		c := testCase("case-001", "tx-001")

		if err := repo.SaveCase(ctx, tenantID, c); err != nil {
			t.Fatalf("SaveCase failed: %v", err)
		}

		retrieved, err := repo.GetCase(ctx, tenantID, "case-001")
		if err != nil {
			t.Fatalf("GetCase failed: %v", err)
		}
		if retrieved.Meta.WeightedScore != 84 {
			t.Errorf("expected score 84, got %v", retrieved.Meta.WeightedScore)
		}
		if retrieved.Status != domain.StatusNew {
			t.Errorf("expected status NEW, got %v", retrieved.Status)
		}
		if len(retrieved.Scores) != 2 {
			t.Errorf("expected 2 module scores, got %d", len(retrieved.Scores))
		}
	})

	t.Run("GetCaseByTransaction", func(t *testing.T) {
		c, err := repo.GetCaseByTransaction(ctx, tenantID, "tx-001")
		if err != nil {
			t.Fatalf("GetCaseByTransaction failed: %v", err)
		}
		if c.ID != "case-001" {
			t.Errorf("expected case-001, got %s", c.ID)
		}
	})

	t.Run("UpdateCaseStatusCompareAndUpdate", func(t *testing.T) {
		c, err := repo.GetCase(ctx, tenantID, "case-001")
		if err != nil {
			t.Fatalf("GetCase failed: %v", err)
		}

		if err := c.Claim("asha", time.Now().UTC()); err != nil {
			t.Fatalf("Claim failed: %v", err)
		}
		if err := repo.UpdateCaseStatus(ctx, tenantID, c, domain.StatusNew); err != nil {
			t.Fatalf("UpdateCaseStatus failed: %v", err)
		}

		// Second writer expecting NEW loses the race.
		stale := testCase("case-001", "tx-001")
		err = repo.UpdateCaseStatus(ctx, tenantID, stale, domain.StatusNew)
		if !errors.Is(err, domain.ErrSuperseded) {
			t.Errorf("expected ErrSuperseded on stale update, got: %v", err)
		}

		// Missing case reports not found, not a race.
		ghost := testCase("case-missing", "tx-404")
		err = repo.UpdateCaseStatus(ctx, tenantID, ghost, domain.StatusNew)
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
	})

	t.Run("SupersededCaseExcludedFromLookup", func(t *testing.T) {
		c, err := repo.GetCase(ctx, tenantID, "case-001")
		if err != nil {
			t.Fatalf("GetCase failed: %v", err)
		}
		successor := testCase("case-002", "tx-001")
		successor.Supersedes = c.ID
		if err := repo.SaveCase(ctx, tenantID, successor); err != nil {
			t.Fatalf("SaveCase failed: %v", err)
		}
		c.SupersededBy = "case-002"
		if err := repo.UpdateCaseStatus(ctx, tenantID, c, c.Status); err != nil {
			t.Fatalf("UpdateCaseStatus failed: %v", err)
		}

		head, err := repo.GetCaseByTransaction(ctx, tenantID, "tx-001")
		if err != nil {
			t.Fatalf("GetCaseByTransaction failed: %v", err)
		}
		if head.ID != "case-002" {
			t.Errorf("expected head case-002, got %s", head.ID)
		}
	})

	t.Run("ListCasesFilters", func(t *testing.T) {
		cases, err := repo.ListCases(ctx, tenantID, domain.CaseFilter{Status: domain.StatusNew})
		if err != nil {
			t.Fatalf("ListCases failed: %v", err)
		}
		if len(cases) != 1 || cases[0].ID != "case-002" {
			t.Errorf("expected [case-002], got %d cases", len(cases))
		}

		cases, err = repo.ListCases(ctx, tenantID, domain.CaseFilter{RiskLevel: domain.RiskLow})
		if err != nil {
			t.Fatalf("ListCases failed: %v", err)
		}
		if len(cases) != 0 {
			t.Errorf("expected no LOW cases, got %d", len(cases))
		}
	})

	t.Run("CountCasesByVendor", func(t *testing.T) {
		count, err := repo.CountCasesByVendor(ctx, tenantID, "V-778", time.Now().Add(-time.Hour))
		if err != nil {
			t.Fatalf("CountCasesByVendor failed: %v", err)
		}
		if count != 2 {
			t.Errorf("expected 2 cases for V-778, got %d", count)
		}
	})

	t.Run("SaveAndGetReport", func(t *testing.T) {
		report := &domain.EvidenceReport{
			CaseID:        "case-002",
			TransactionID: "tx-001",
			Items: []domain.EvidenceItem{
				{Module: domain.ModuleCitizen, Score: 90},
				{Module: domain.ModuleFinancial, Score: 85},
			},
			Summary:        "Multiple independent detectors agree.",
			Recommendation: domain.RecommendImmediate,
			GeneratedAt:    time.Now().UTC().Truncate(time.Second),
		}

		if err := repo.SaveReport(ctx, tenantID, report); err != nil {
			t.Fatalf("SaveReport failed: %v", err)
		}

		retrieved, err := repo.GetReport(ctx, tenantID, "case-002")
		if err != nil {
			t.Fatalf("GetReport failed: %v", err)
		}
		if retrieved.Recommendation != domain.RecommendImmediate {
			t.Errorf("expected IMMEDIATE_INVESTIGATION, got %s", retrieved.Recommendation)
		}
		if len(retrieved.Items) != 2 || retrieved.Items[0].Module != domain.ModuleCitizen {
			t.Errorf("report items not preserved: %+v", retrieved.Items)
		}
	})

	t.Run("TagRuleCRUD", func(t *testing.T) {
		rule := &domain.TagRuleConfig{
			ID:         "rule-001",
			Name:       "High value",
			Version:    "1.0",
			Expression: `amount > 1000000.0`,
			Tag:        "high-value",
			Enabled:    true,
		}

		if err := repo.SaveTagRule(ctx, tenantID, rule); err != nil {
			t.Fatalf("SaveTagRule failed: %v", err)
		}

		retrieved, err := repo.GetTagRule(ctx, tenantID, "rule-001")
		if err != nil {
			t.Fatalf("GetTagRule failed: %v", err)
		}
		if retrieved.Tag != "high-value" {
			t.Errorf("expected tag high-value, got %s", retrieved.Tag)
		}

		rules, err := repo.ListTagRules(ctx, tenantID)
		if err != nil {
			t.Fatalf("ListTagRules failed: %v", err)
		}
		if len(rules) != 1 {
			t.Errorf("expected 1 rule, got %d", len(rules))
		}

		if err := repo.DeleteTagRule(ctx, tenantID, "rule-001"); err != nil {
			t.Fatalf("DeleteTagRule failed: %v", err)
		}
		if _, err := repo.GetTagRule(ctx, tenantID, "rule-001"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got: %v", err)
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		if _, err := repo.GetCase(ctx, "tenant-002", "case-001"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound for different tenant, got: %v", err)
		}
		if _, err := repo.GetScores(ctx, "tenant-002", "tx-001"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound for different tenant, got: %v", err)
		}
	})

	t.Run("RequiresTenantID", func(t *testing.T) {
		if err := repo.SaveCase(ctx, "", testCase("case-x", "tx-x")); err == nil {
			t.Error("expected error for empty tenantID")
		}
		if _, err := repo.GetCase(ctx, "", "case-001"); err == nil {
			t.Error("expected error for empty tenantID")
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		if _, err := repo.GetCase(ctx, tenantID, "nonexistent"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
		if _, err := repo.GetReport(ctx, tenantID, "nonexistent"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
	})
}

func TestUnsupportedDriver(t *testing.T) {
	_, err := New(domain.RepositoryConfig{Driver: "mysql"})
	if err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	repo := &SQLRepository{driver: "postgres"}

	tests := []struct {
		input    string
		expected string
	}{
		{"SELECT * FROM t WHERE id = ?", "SELECT * FROM t WHERE id = $1"},
		{"INSERT INTO t (a, b) VALUES (?, ?)", "INSERT INTO t (a, b) VALUES ($1, $2)"},
		{"SELECT * FROM t", "SELECT * FROM t"},
	}

	for _, tt := range tests {
		result := repo.rebind(tt.input)
		if result != tt.expected {
			t.Errorf("rebind(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}
