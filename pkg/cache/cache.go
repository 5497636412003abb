// Package cache implements the identity cache: the keyed store that
// guarantees at most one live instance per (model, primary key) while an
// entry is cached. All access goes through the cache's methods; callers
// never reach into the store directly.
package cache

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/strataorm/strata/pkg/schema"
)

type cacheKey struct {
	model string
	id    string
}

type entry struct {
	value   any
	expires time.Time // zero means no expiry
}

type flight struct {
	done  chan struct{}
	value any
	err   error
}

// Cache is the identity store. Policies are per model: disabled (every load
// is fresh), enabled (indefinite), or TTL measured from last access with
// lazy eviction at lookup time. Safe for concurrent use; one coordinating
// lock per cache, per the load-coordination contract upheld by Fetch.
type Cache struct {
	mu       sync.Mutex
	policies map[string]schema.CachePolicy
	entries  map[cacheKey]*entry
	inflight map[cacheKey]*flight

	now func() time.Time // test hook
}

// New creates an empty Cache. Models without an explicit policy default to
// indefinite caching.
func New() *Cache {
	return &Cache{
		policies: make(map[string]schema.CachePolicy),
		entries:  make(map[cacheKey]*entry),
		inflight: make(map[cacheKey]*flight),
		now:      time.Now,
	}
}

// KeyOf renders primary-key values into the cache's canonical key string.
func KeyOf(values ...any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, "\x00")
}

// SetPolicy configures a model's cache policy. Setting CacheDisabled also
// drops any live entries for the model.
func (c *Cache) SetPolicy(model string, policy schema.CachePolicy) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.policies[model] = policy
	if policy.Mode == schema.CacheDisabled {
		c.clearLocked(model)
	}
}

// Get returns the cached instance for (model, id), if any. Expired entries
// are evicted here; a hit under a TTL policy refreshes the expiry.
func (c *Cache) Get(model, id string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(model, id)
}

func (c *Cache) getLocked(model, id string) (any, bool) {
	policy := c.policies[model]
	if policy.Mode == schema.CacheDisabled {
		return nil, false
	}

	k := cacheKey{model: model, id: id}
	e, ok := c.entries[k]
	if !ok {
		return nil, false
	}
	if !e.expires.IsZero() && c.now().After(e.expires) {
		delete(c.entries, k)
		return nil, false
	}
	if policy.Mode == schema.CacheTTL {
		e.expires = c.now().Add(policy.TTL)
	}
	return e.value, true
}

// Put stores an instance. Under a disabled policy this is a no-op; the last
// writer wins when concurrent loads race past Fetch.
func (c *Cache) Put(model, id string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.putLocked(model, id, value)
}

func (c *Cache) putLocked(model, id string, value any) {
	policy := c.policies[model]
	if policy.Mode == schema.CacheDisabled {
		return
	}

	e := &entry{value: value}
	if policy.Mode == schema.CacheTTL {
		e.expires = c.now().Add(policy.TTL)
	}
	c.entries[cacheKey{model: model, id: id}] = e
}

// Reconcile returns the live entry for (model, id), installing candidate
// when none is cached. Lookup and install happen under one lock, so two
// racing loads of the same row converge on a single instance; the boolean
// reports whether an existing entry won. Under a disabled policy the
// candidate passes through uncached.
func (c *Cache) Reconcile(model, id string, candidate any) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.getLocked(model, id); ok {
		return existing, true
	}
	c.putLocked(model, id, candidate)
	return candidate, false
}

// Invalidate evicts a single entry.
func (c *Cache) Invalidate(model, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, cacheKey{model: model, id: id})
}

// Clear evicts every entry for a model.
func (c *Cache) Clear(model string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked(model)
}

func (c *Cache) clearLocked(model string) {
	for k := range c.entries {
		if k.model == model {
			delete(c.entries, k)
		}
	}
}

// Len reports the number of live entries across all models.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Fetch returns the cached instance for (model, id) or runs loader to
// produce it. Concurrent callers for the same key while no entry is cached
// share a single loader execution, so two racing first loads can never
// observe two divergent instances. A failed load caches nothing; under a
// disabled policy every caller runs its own loader.
func (c *Cache) Fetch(model, id string, loader func() (any, error)) (any, bool, error) {
	c.mu.Lock()

	if c.policies[model].Mode == schema.CacheDisabled {
		c.mu.Unlock()
		value, err := loader()
		return value, false, err
	}

	if value, ok := c.getLocked(model, id); ok {
		c.mu.Unlock()
		return value, true, nil
	}

	k := cacheKey{model: model, id: id}
	if f, ok := c.inflight[k]; ok {
		c.mu.Unlock()
		<-f.done
		return f.value, true, f.err
	}

	f := &flight{done: make(chan struct{})}
	c.inflight[k] = f
	c.mu.Unlock()

	f.value, f.err = loader()

	c.mu.Lock()
	delete(c.inflight, k)
	if f.err == nil && f.value != nil {
		c.putLocked(model, id, f.value)
	}
	c.mu.Unlock()
	close(f.done)

	return f.value, false, f.err
}
