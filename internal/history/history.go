// Package history provides prior-case counts for vendors.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/janus-audit/janus/internal/domain"
)

// DefaultWindow is the lookback used when a caller passes no window.
const DefaultWindow = 365 * 24 * time.Hour

// Service counts earlier cases for a vendor. Tag rules use the count
// to surface repeat offenders.
type Service struct {
	repo  domain.Repository
	cache domain.Cache
}

// NewService creates a history service.
func NewService(repo domain.Repository, cache domain.Cache) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
	}
}

// PriorCaseCount returns the number of cases opened for a vendor
// within the window. A windowSecs of zero means DefaultWindow.
func (s *Service) PriorCaseCount(ctx context.Context, tenantID, vendorID string, windowSecs int) (int64, error) {
	if tenantID == "" || vendorID == "" {
		return 0, fmt.Errorf("tenantID and vendorID are required")
	}
	if s.repo == nil {
		return 0, fmt.Errorf("no data source available")
	}

	window := DefaultWindow
	if windowSecs > 0 {
		window = time.Duration(windowSecs) * time.Second
	}
	since := time.Now().Add(-window)

	count, err := s.repo.CountCasesByVendor(ctx, tenantID, vendorID, since)
	if err != nil {
		return 0, fmt.Errorf("failed to count cases: %w", err)
	}
	return int64(count), nil
}

// RecordCase bumps the cached per-vendor counter. Best effort; the
// repository count is authoritative.
func (s *Service) RecordCase(ctx context.Context, tenantID, vendorID string) {
	if s.cache == nil || vendorID == "" {
		return
	}
	_, _ = s.cache.IncrementCounter(ctx, tenantID, "vendor-cases:"+vendorID, DefaultWindow)
}

// Getter returns the PriorCaseGetter function for the tag rule engine.
func (s *Service) Getter() func(ctx context.Context, tenantID, vendorID string, windowSecs int) (int64, error) {
	return s.PriorCaseCount
}
