package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/classworks/rosterd/pkg/observability"
	"github.com/classworks/rosterd/pkg/principal"
)

// CachedStore wraps a PrincipalStore with a two-level read-through cache:
// an in-process LRU (L1) and an optional Redis client (L2). Upserts write
// through to the backing store and refresh both levels, so a request-path
// Get after a roster change observes the new record immediately on the
// writing instance and after at most the TTL elsewhere.
type CachedStore struct {
	backing PrincipalStore
	l1      *lru.Cache[string, *principal.Principal]
	redis   *redis.Client
	ttl     time.Duration
	metrics *observability.Metrics
}

// CacheConfig controls the cache wrapper.
type CacheConfig struct {
	L1Size  int           // entries; <= 0 disables L1
	TTL     time.Duration // L2 expiry; <= 0 defaults to 5 minutes
	Metrics *observability.Metrics // optional hit/miss counters
}

// NewCachedStore wraps backing with the cache layers. redisClient may be
// nil, which disables L2.
func NewCachedStore(backing PrincipalStore, redisClient *redis.Client, cfg CacheConfig) (*CachedStore, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}

	var l1 *lru.Cache[string, *principal.Principal]
	if cfg.L1Size > 0 {
		var err error
		l1, err = lru.New[string, *principal.Principal](cfg.L1Size)
		if err != nil {
			return nil, fmt.Errorf("failed to create L1 cache: %w", err)
		}
	}

	return &CachedStore{
		backing: backing,
		l1:      l1,
		redis:   redisClient,
		ttl:     cfg.TTL,
		metrics: cfg.Metrics,
	}, nil
}

func cacheKey(id string) string {
	return "principal:" + id
}

// Get checks L1, then L2, then the backing store, populating caches on the
// way back. Cache failures are ignored; only the backing store is
// authoritative.
func (c *CachedStore) Get(ctx context.Context, id string) (*principal.Principal, error) {
	if c.l1 != nil {
		if p, ok := c.l1.Get(id); ok {
			c.countHit("l1")
			return p.Clone(), nil
		}
		c.countMiss("l1")
	}

	if c.redis != nil {
		data, err := c.redis.Get(ctx, cacheKey(id)).Bytes()
		if err == nil {
			var p principal.Principal
			if err := json.Unmarshal(data, &p); err == nil {
				c.countHit("l2")
				c.populateL1(&p)
				return &p, nil
			}
		}
		c.countMiss("l2")
	}

	p, err := c.backing.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.populate(ctx, p)
	return p, nil
}

// Upsert writes through to the backing store and refreshes both cache
// levels with the new document.
func (c *CachedStore) Upsert(ctx context.Context, p *principal.Principal) error {
	if err := c.backing.Upsert(ctx, p); err != nil {
		return err
	}
	c.populate(ctx, p)
	return nil
}

// ForEach bypasses the caches; batch scans always read the backing store.
func (c *CachedStore) ForEach(ctx context.Context, fn func(*principal.Principal) error) error {
	return c.backing.ForEach(ctx, fn)
}

// Invalidate drops a principal from both cache levels.
func (c *CachedStore) Invalidate(ctx context.Context, id string) {
	if c.l1 != nil {
		c.l1.Remove(id)
	}
	if c.redis != nil {
		c.redis.Del(ctx, cacheKey(id))
	}
}

func (c *CachedStore) populate(ctx context.Context, p *principal.Principal) {
	c.populateL1(p)
	if c.redis != nil {
		if data, err := json.Marshal(p); err == nil {
			c.redis.Set(ctx, cacheKey(p.ID), data, c.ttl)
		}
	}
}

func (c *CachedStore) countHit(tier string) {
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.WithLabelValues(tier).Inc()
	}
}

func (c *CachedStore) countMiss(tier string) {
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.WithLabelValues(tier).Inc()
	}
}

func (c *CachedStore) populateL1(p *principal.Principal) {
	if c.l1 != nil {
		c.l1.Add(p.ID, p.Clone())
	}
}
