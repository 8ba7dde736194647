// Package cache holds derived budget aggregates behind a TTL cache.
//
// Aggregates are expensive rollups over the transaction table, keyed by
// (category, year, department). The cache guarantees single-flight
// recomputation per key: concurrent requests for the same key block on one
// loader invocation while requests for different keys proceed independently.
// Values cross the cache boundary only as deep copies, so neither callers nor
// loaders can corrupt a cached entry after the fact.
package cache

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Key identifies one cached aggregate.
type Key struct {
	CategoryID   int32
	Year         int
	DepartmentID int32
}

// CategorySummary is the cached rollup payload.
type CategorySummary struct {
	Total   decimal.Decimal
	ByMonth map[time.Month]decimal.Decimal
	Capex   decimal.Decimal
	Opex    decimal.Decimal
}

// Clone returns an independent copy of the summary.
func (s *CategorySummary) Clone() *CategorySummary {
	if s == nil {
		return nil
	}
	clone := &CategorySummary{
		Total: s.Total,
		Capex: s.Capex,
		Opex:  s.Opex,
	}
	if s.ByMonth != nil {
		clone.ByMonth = make(map[time.Month]decimal.Decimal, len(s.ByMonth))
		for month, amount := range s.ByMonth {
			clone.ByMonth[month] = amount
		}
	}
	return clone
}

// Loader computes a fresh aggregate for a key.
type Loader func() (*CategorySummary, error)

// Filter selects keys for invalidation. A nil field is a wildcard across that
// dimension.
type Filter struct {
	CategoryID   *int32
	Year         *int
	DepartmentID *int32
}

func (f Filter) matches(key Key) bool {
	if f.CategoryID != nil && *f.CategoryID != key.CategoryID {
		return false
	}
	if f.Year != nil && *f.Year != key.Year {
		return false
	}
	if f.DepartmentID != nil && *f.DepartmentID != key.DepartmentID {
		return false
	}
	return true
}

type entry struct {
	value     *CategorySummary
	expiresAt time.Time
}

// AggregateCache is the process-wide aggregate cache. It is an explicit,
// constructible component injected into its callers, never a hidden global;
// tests instantiate independent instances.
type AggregateCache struct {
	mu      sync.Mutex
	entries map[Key]*entry
	locks   map[Key]*sync.Mutex
	ttl     time.Duration
	now     func() time.Time
}

// New creates an AggregateCache with the given entry TTL. Expiry is lazy:
// checked on the next access, never swept proactively.
func New(ttl time.Duration) *AggregateCache {
	return &AggregateCache{
		entries: make(map[Key]*entry),
		locks:   make(map[Key]*sync.Mutex),
		ttl:     ttl,
		now:     time.Now,
	}
}

// GetOrCompute returns the cached value for key, computing it with loader on a
// miss. The registry lock is held only to consult the maps; the loader itself
// runs under a per-key lock so concurrent callers for the same key share one
// computation. A loader error propagates to the caller and caches nothing;
// waiters on the same key each re-attempt.
func (c *AggregateCache) GetOrCompute(key Key, loader Loader) (*CategorySummary, error) {
	c.mu.Lock()
	if cached, ok := c.fresh(key); ok {
		c.mu.Unlock()
		return cached.Clone(), nil
	}
	keyLock, ok := c.locks[key]
	if !ok {
		keyLock = &sync.Mutex{}
		c.locks[key] = keyLock
	}
	c.mu.Unlock()

	keyLock.Lock()
	defer keyLock.Unlock()

	// Another caller may have finished the computation while this one waited.
	c.mu.Lock()
	if cached, ok := c.fresh(key); ok {
		c.mu.Unlock()
		return cached.Clone(), nil
	}
	c.mu.Unlock()

	value, err := loader()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = &entry{
		value:     value.Clone(),
		expiresAt: c.now().Add(c.ttl),
	}
	c.mu.Unlock()

	return value.Clone(), nil
}

// fresh returns the unexpired cached value for key. Caller must hold c.mu.
func (c *AggregateCache) fresh(key Key) (*CategorySummary, bool) {
	cached, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(cached.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return cached.value, true
}

// Invalidate removes every entry matching the filter, along with its per-key
// lock so the lock table does not grow without bound.
func (c *AggregateCache) Invalidate(filter Filter) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if filter.matches(key) {
			delete(c.entries, key)
			delete(c.locks, key)
			removed++
		}
	}
	// Locks may outlive their entries when a loader failed; sweep those too.
	for key := range c.locks {
		if filter.matches(key) {
			delete(c.locks, key)
		}
	}
	return removed
}

// Len reports the number of live (possibly expired but unswept) entries.
func (c *AggregateCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
