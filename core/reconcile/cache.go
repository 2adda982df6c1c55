package reconcile

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// cachedPlan is a reconcile plan with its build time.
type cachedPlan struct {
	plan  *ReconcilePlan
	built time.Time
}

// Cache holds recent reconcile plans keyed by registry label so that
// repeated status queries do not rescan the artifact tree.
type Cache struct {
	ttl time.Duration

	mu    sync.RWMutex
	plans map[string]cachedPlan
	sf    singleflight.Group
}

// NewCache creates a plan cache. A zero ttl disables caching.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:   ttl,
		plans: make(map[string]cachedPlan),
	}
}

func (c *Cache) isExpired(p cachedPlan) bool {
	if c.ttl == 0 {
		return true // No caching
	}
	return time.Since(p.built) > c.ttl
}

// GetOrBuild returns the cached plan for key or builds a new one when it is
// missing or expired. Concurrent callers share a single build.
func (c *Cache) GetOrBuild(ctx context.Context, key string, build func(ctx context.Context) (*ReconcilePlan, error)) (*ReconcilePlan, error) {
	// Fast path: check if plan exists and is fresh
	c.mu.RLock()
	cached, exists := c.plans[key]
	c.mu.RUnlock()

	if exists && !c.isExpired(cached) {
		return cached.plan, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Double-check after acquiring singleflight lock
		c.mu.RLock()
		cached, exists := c.plans[key]
		c.mu.RUnlock()

		if exists && !c.isExpired(cached) {
			return cached.plan, nil
		}

		plan, err := build(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.plans[key] = cachedPlan{plan: plan, built: time.Now()}
		c.mu.Unlock()

		return plan, nil
	})

	if err != nil {
		return nil, err
	}

	return result.(*ReconcilePlan), nil
}

// Invalidate removes the cached plan for key.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.plans, key)
	c.mu.Unlock()
}
