package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/janus-audit/janus/internal/domain"
	"github.com/redis/go-redis/v9"
)

// incrScript bumps a counter and starts its expiry window on the
// first increment, atomically. INCR followed by a separate EXPIRE
// can leave an immortal counter if the process dies between the two.
var incrScript = redis.NewScript(`
	local n = redis.call('INCR', KEYS[1])
	if n == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	return n
`)

// RedisCache serves the pro tier, where case references and vendor
// counters must be visible to every node.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(addr, password string, db int) (*RedisCache, error) {
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisCache{client: client}, nil
}

func (c *RedisCache) redisKey(tenantID, key string) string {
	return "janus:" + tenantID + ":" + key
}

// GetCaseRef retrieves the cached case reference for a transaction.
func (c *RedisCache) GetCaseRef(ctx context.Context, tenantID string, txID string) (*domain.CaseRef, error) {
	raw, err := c.Get(ctx, tenantID, "case:"+txID)
	if err != nil || raw == nil {
		return nil, err
	}
	var ref domain.CaseRef
	if err := json.Unmarshal(raw, &ref); err != nil {
		return nil, err
	}
	return &ref, nil
}

// SetCaseRef caches the transaction-to-case pointer used by rescoring.
func (c *RedisCache) SetCaseRef(ctx context.Context, tenantID string, txID string, ref *domain.CaseRef, ttl time.Duration) error {
	raw, err := json.Marshal(ref)
	if err != nil {
		return err
	}
	return c.Set(ctx, tenantID, "case:"+txID, raw, ttl)
}

// Get returns the bytes stored under key, or nil, nil on a miss.
func (c *RedisCache) Get(ctx context.Context, tenantID string, key string) ([]byte, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenantID is required")
	}
	raw, err := c.client.Get(ctx, c.redisKey(tenantID, key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// Set stores value under key with the given TTL.
func (c *RedisCache) Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error {
	if tenantID == "" {
		return fmt.Errorf("tenantID is required")
	}
	return c.client.Set(ctx, c.redisKey(tenantID, key), value, ttl).Err()
}

// Delete removes key.
func (c *RedisCache) Delete(ctx context.Context, tenantID string, key string) error {
	if tenantID == "" {
		return fmt.Errorf("tenantID is required")
	}
	return c.client.Del(ctx, c.redisKey(tenantID, key)).Err()
}

// IncrementCounter bumps a windowed counter shared across nodes.
func (c *RedisCache) IncrementCounter(ctx context.Context, tenantID string, key string, window time.Duration) (int64, error) {
	if tenantID == "" {
		return 0, fmt.Errorf("tenantID is required")
	}
	k := c.redisKey(tenantID, "counter:"+key)
	return incrScript.Run(ctx, c.client, []string{k}, window.Milliseconds()).Int64()
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
