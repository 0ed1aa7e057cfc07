package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations.
// Supports two-phase caching: local LRU (Community) + Redis (Pro).
// All methods require tenantID for strict multi-tenancy isolation.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, tenantID string, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, tenantID string, key string) error

	// GetCaseRef retrieves the cached case reference for a transaction.
	GetCaseRef(ctx context.Context, tenantID string, txID string) (*CaseRef, error)

	// SetCaseRef caches a case reference so rescoring can find the
	// open case without a repository round trip.
	SetCaseRef(ctx context.Context, tenantID string, txID string, ref *CaseRef, ttl time.Duration) error

	// IncrementCounter atomically increments a counter and returns new value.
	// Used for prior-case counts (e.g., cases per vendor in time window).
	IncrementCounter(ctx context.Context, tenantID string, key string, window time.Duration) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CaseRef is the cached pointer from a transaction to its current case.
type CaseRef struct {
	CaseID    string  `json:"caseId"`
	Status    string  `json:"status"`
	RiskLevel string  `json:"riskLevel"`
	Score     float64 `json:"score"`
	VendorID  string  `json:"vendorId"`
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string `json:"type" yaml:"type"`

	// Local LRU cache settings (Community tier)
	LocalMaxSize int           `json:"localMaxSize" yaml:"localMaxSize"`
	LocalTTL     time.Duration `json:"localTtl" yaml:"localTtl"`

	// Redis settings (Pro tier)
	RedisAddr     string `json:"redisAddr" yaml:"redisAddr"`
	RedisPassword string `json:"redisPassword" yaml:"redisPassword"`
	RedisDB       int    `json:"redisDb" yaml:"redisDb"`

	// Two-phase settings
	EnableTwoPhase bool `json:"enableTwoPhase" yaml:"enableTwoPhase"` // If true, check local first, then Redis
}
