// Package cache provides the case-reference and counter caches for Janus.
package cache

import (
	"container/list"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/janus-audit/janus/internal/domain"
)

const defaultMaxEntries = 10000

// LRUCache is an in-process cache with per-entry TTL and least
// recently used eviction. It backs the community tier and serves as
// the local phase of the two-phase cache. Counters live outside the
// LRU so an eviction cannot reset a prior-case window mid-count.
type LRUCache struct {
	mu      sync.RWMutex
	cap     int
	byKey   map[string]*list.Element
	recency *list.List
	windows map[string]*counterWindow
}

type lruEntry struct {
	key      string
	value    []byte
	deadline time.Time
}

type counterWindow struct {
	n        int64
	deadline time.Time
}

// NewLRUCache creates an LRU cache holding at most maxSize entries.
func NewLRUCache(maxSize int) *LRUCache {
	if maxSize <= 0 {
		maxSize = defaultMaxEntries
	}
	return &LRUCache{
		cap:     maxSize,
		byKey:   make(map[string]*list.Element),
		recency: list.New(),
		windows: make(map[string]*counterWindow),
	}
}

func scopedKey(tenantID, key string) string {
	return tenantID + ":" + key
}

// GetCaseRef retrieves the cached case reference for a transaction.
// A miss returns nil, nil.
func (c *LRUCache) GetCaseRef(ctx context.Context, tenantID string, txID string) (*domain.CaseRef, error) {
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
func (c *LRUCache) SetCaseRef(ctx context.Context, tenantID string, txID string, ref *domain.CaseRef, ttl time.Duration) error {
	raw, err := json.Marshal(ref)
	if err != nil {
		return err
	}
	return c.Set(ctx, tenantID, "case:"+txID, raw, ttl)
}

// Get returns the cached bytes for key, or nil, nil on a miss or an
// expired entry.
func (c *LRUCache) Get(ctx context.Context, tenantID string, key string) ([]byte, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenantID is required")
	}
	k := scopedKey(tenantID, key)

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.byKey[k]
	if !ok {
		return nil, nil
	}
	e := el.Value.(*lruEntry)
	if time.Now().After(e.deadline) {
		c.drop(el)
		return nil, nil
	}
	c.recency.MoveToFront(el)
	return e.value, nil
}

// Set stores value under key for ttl, evicting the least recently
// used entries when over capacity.
func (c *LRUCache) Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error {
	if tenantID == "" {
		return fmt.Errorf("tenantID is required")
	}
	k := scopedKey(tenantID, key)

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.byKey[k]; ok {
		e := el.Value.(*lruEntry)
		e.value = value
		e.deadline = time.Now().Add(ttl)
		c.recency.MoveToFront(el)
		return nil
	}

	el := c.recency.PushFront(&lruEntry{key: k, value: value, deadline: time.Now().Add(ttl)})
	c.byKey[k] = el
	for c.recency.Len() > c.cap {
		if back := c.recency.Back(); back != nil {
			c.drop(back)
		}
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (c *LRUCache) Delete(ctx context.Context, tenantID string, key string) error {
	if tenantID == "" {
		return fmt.Errorf("tenantID is required")
	}
	k := scopedKey(tenantID, key)

	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.byKey[k]; ok {
		c.drop(el)
	}
	return nil
}

// IncrementCounter bumps the counter for key inside a fixed window.
// The first increment after the window lapses restarts it at 1.
func (c *LRUCache) IncrementCounter(ctx context.Context, tenantID string, key string, window time.Duration) (int64, error) {
	if tenantID == "" {
		return 0, fmt.Errorf("tenantID is required")
	}
	k := scopedKey(tenantID, "counter:"+key)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	w, ok := c.windows[k]
	if !ok || now.After(w.deadline) {
		c.windows[k] = &counterWindow{n: 1, deadline: now.Add(window)}
		return 1, nil
	}
	w.n++
	return w.n, nil
}

func (c *LRUCache) Ping(ctx context.Context) error {
	return nil
}

// Close discards all cached entries and counters.
func (c *LRUCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byKey = make(map[string]*list.Element)
	c.recency = list.New()
	c.windows = make(map[string]*counterWindow)
	return nil
}

// Stats reports current entry count and configured capacity.
func (c *LRUCache) Stats() (size int, capacity int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.recency.Len(), c.cap
}

// drop removes an element from both the recency list and the index.
// Callers hold the write lock.
func (c *LRUCache) drop(el *list.Element) {
	c.recency.Remove(el)
	delete(c.byKey, el.Value.(*lruEntry).key)
}
