package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/janus-audit/janus/internal/domain"
)

// New builds the cache for the configured tier. Community runs the
// in-process LRU; pro runs Redis, optionally fronted by the LRU as a
// local read layer.
func New(cfg domain.CacheConfig) (domain.Cache, error) {
	switch cfg.Type {
	case "memory":
		return NewLRUCache(cfg.LocalMaxSize), nil
	case "redis":
		if cfg.EnableTwoPhase {
			return NewTwoPhaseCache(cfg)
		}
		return NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.Type)
	}
}

// TwoPhaseCache reads through a local LRU before Redis and writes to
// both. Counters always go straight to Redis; a locally cached count
// would diverge between nodes.
type TwoPhaseCache struct {
	local    *LRUCache
	remote   *RedisCache
	localTTL time.Duration
}

// NewTwoPhaseCache wires an LRU front over a Redis cache.
func NewTwoPhaseCache(cfg domain.CacheConfig) (*TwoPhaseCache, error) {
	remote, err := NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis cache: %w", err)
	}
	localTTL := cfg.LocalTTL
	if localTTL == 0 {
		localTTL = 5 * time.Minute
	}
	return &TwoPhaseCache{
		local:    NewLRUCache(cfg.LocalMaxSize),
		remote:   remote,
		localTTL: localTTL,
	}, nil
}

// capTTL keeps the local copy from outliving the authoritative one.
func (c *TwoPhaseCache) capTTL(ttl time.Duration) time.Duration {
	if ttl < c.localTTL {
		return ttl
	}
	return c.localTTL
}

// GetCaseRef checks the local layer first and backfills it on a
// remote hit.
func (c *TwoPhaseCache) GetCaseRef(ctx context.Context, tenantID string, txID string) (*domain.CaseRef, error) {
	ref, err := c.local.GetCaseRef(ctx, tenantID, txID)
	if err != nil || ref != nil {
		return ref, err
	}
	ref, err = c.remote.GetCaseRef(ctx, tenantID, txID)
	if err != nil {
		return nil, err
	}
	if ref != nil {
		_ = c.local.SetCaseRef(ctx, tenantID, txID, ref, c.localTTL)
	}
	return ref, nil
}

// SetCaseRef writes the reference to both layers.
func (c *TwoPhaseCache) SetCaseRef(ctx context.Context, tenantID string, txID string, ref *domain.CaseRef, ttl time.Duration) error {
	if err := c.local.SetCaseRef(ctx, tenantID, txID, ref, c.capTTL(ttl)); err != nil {
		return err
	}
	return c.remote.SetCaseRef(ctx, tenantID, txID, ref, ttl)
}

// Get reads local first, then remote, backfilling local on a hit.
func (c *TwoPhaseCache) Get(ctx context.Context, tenantID string, key string) ([]byte, error) {
	val, err := c.local.Get(ctx, tenantID, key)
	if err != nil || val != nil {
		return val, err
	}
	val, err = c.remote.Get(ctx, tenantID, key)
	if err != nil {
		return nil, err
	}
	if val != nil {
		_ = c.local.Set(ctx, tenantID, key, val, c.localTTL)
	}
	return val, nil
}

// Set writes to both layers.
func (c *TwoPhaseCache) Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error {
	if err := c.local.Set(ctx, tenantID, key, value, c.capTTL(ttl)); err != nil {
		return err
	}
	return c.remote.Set(ctx, tenantID, key, value, ttl)
}

// Delete removes the entry from both layers.
func (c *TwoPhaseCache) Delete(ctx context.Context, tenantID string, key string) error {
	if err := c.local.Delete(ctx, tenantID, key); err != nil {
		return err
	}
	return c.remote.Delete(ctx, tenantID, key)
}

// IncrementCounter delegates to Redis only.
func (c *TwoPhaseCache) IncrementCounter(ctx context.Context, tenantID string, key string, window time.Duration) (int64, error) {
	return c.remote.IncrementCounter(ctx, tenantID, key, window)
}

// Ping fails if either layer is unhealthy.
func (c *TwoPhaseCache) Ping(ctx context.Context) error {
	if err := c.local.Ping(ctx); err != nil {
		return fmt.Errorf("local cache ping failed: %w", err)
	}
	if err := c.remote.Ping(ctx); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (c *TwoPhaseCache) Close() error {
	_ = c.local.Close()
	return c.remote.Close()
}

// Stats reports the local layer's entry count and capacity.
func (c *TwoPhaseCache) Stats() (size int, capacity int) {
	return c.local.Stats()
}
