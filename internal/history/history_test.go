package history

import (
	"context"
	"testing"
	"time"

	"github.com/janus-audit/janus/internal/domain"
)

type countRepo struct {
	domain.Repository
	counts map[string]int
	since  time.Time
}

func (r *countRepo) CountCasesByVendor(_ context.Context, _ string, vendorID string, since time.Time) (int, error) {
	r.since = since
	return r.counts[vendorID], nil
}

func TestPriorCaseCount(t *testing.T) {
	repo := &countRepo{counts: map[string]int{"V-778": 3}}
	s := NewService(repo, nil)

	got, err := s.PriorCaseCount(context.Background(), "tenant-a", "V-778", 3600)
	if err != nil {
		t.Fatalf("PriorCaseCount() error: %v", err)
	}
	if got != 3 {
		t.Errorf("count = %d, want 3", got)
	}
	if age := time.Since(repo.since); age < 59*time.Minute || age > 61*time.Minute {
		t.Errorf("window lookback = %v, want about 1h", age)
	}
}

func TestPriorCaseCountDefaults(t *testing.T) {
	repo := &countRepo{counts: map[string]int{}}
	s := NewService(repo, nil)

	if _, err := s.PriorCaseCount(context.Background(), "", "V-1", 0); err == nil {
		t.Error("missing tenant should error")
	}
	if _, err := s.PriorCaseCount(context.Background(), "tenant-a", "", 0); err == nil {
		t.Error("missing vendor should error")
	}

	if _, err := s.PriorCaseCount(context.Background(), "tenant-a", "V-1", 0); err != nil {
		t.Fatalf("PriorCaseCount() error: %v", err)
	}
	if age := time.Since(repo.since); age < DefaultWindow-time.Minute || age > DefaultWindow+time.Minute {
		t.Errorf("default lookback = %v, want about %v", age, DefaultWindow)
	}
}
