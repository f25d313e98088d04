package classifier

import (
	"strings"
	"sync"
	"time"
)

// CacheEntry is one stored classification with the bookkeeping the
// eviction policies need.
type CacheEntry struct {
	Key          string
	Result       Result
	Timestamp    time.Time
	LastAccessAt time.Time
	HitCount     int
}

// EvictionPolicy selects which entry to drop when a bounded cache is
// full. SelectVictim returns an index into entries, or -1 for none.
type EvictionPolicy interface {
	SelectVictim(entries []CacheEntry) int
}

// FIFOPolicy evicts the entry inserted first
type FIFOPolicy struct{}

func (p *FIFOPolicy) SelectVictim(entries []CacheEntry) int {
	if len(entries) == 0 {
		return -1
	}

	oldestIdx := 0
	for i := 1; i < len(entries); i++ {
		if entries[i].Timestamp.Before(entries[oldestIdx].Timestamp) {
			oldestIdx = i
		}
	}
	return oldestIdx
}

// LRUPolicy evicts the entry accessed least recently
type LRUPolicy struct{}

func (p *LRUPolicy) SelectVictim(entries []CacheEntry) int {
	if len(entries) == 0 {
		return -1
	}

	oldestIdx := 0
	for i := 1; i < len(entries); i++ {
		if entries[i].LastAccessAt.Before(entries[oldestIdx].LastAccessAt) {
			oldestIdx = i
		}
	}
	return oldestIdx
}

// ResultCache is an in-process, exact-key store of classification
// results, keyed by sanitized name and model identifier. Unbounded by
// default; set MaxEntries to bound it with an eviction policy. Safe for
// concurrent use.
type ResultCache struct {
	mu      sync.RWMutex
	entries map[string]*CacheEntry

	maxEntries int
	policy     EvictionPolicy
}

// ResultCacheOption configures a ResultCache
type ResultCacheOption func(*ResultCache)

// WithMaxEntries bounds the cache. When full, the eviction policy picks
// a victim on insert. Zero or negative leaves the cache unbounded.
func WithMaxEntries(n int) ResultCacheOption {
	return func(c *ResultCache) {
		c.maxEntries = n
	}
}

// WithEvictionPolicy sets the policy used by a bounded cache.
// Defaults to FIFO.
func WithEvictionPolicy(p EvictionPolicy) ResultCacheOption {
	return func(c *ResultCache) {
		c.policy = p
	}
}

// NewResultCache creates an empty cache
func NewResultCache(opts ...ResultCacheOption) *ResultCache {
	c := &ResultCache{
		entries: make(map[string]*CacheEntry),
		policy:  &FIFOPolicy{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CacheKey builds the canonical lookup key for a sanitized name and
// model identifier. The same name queried under different models caches
// independently.
func CacheKey(sanitizedName, model string) string {
	return strings.ToLower(sanitizedName) + "|" + model
}

// Get returns the cached result for the key, if present
func (c *ResultCache) Get(key string) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return Result{}, false
	}

	entry.LastAccessAt = time.Now()
	entry.HitCount++
	return entry.Result, true
}

// Put stores a result under the key, evicting first if the cache is
// bounded and full. Overwriting an existing key never evicts.
func (c *ResultCache) Put(key string, result Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if entry, ok := c.entries[key]; ok {
		entry.Result = result
		entry.LastAccessAt = now
		return
	}

	if c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.evictLocked()
	}

	c.entries[key] = &CacheEntry{
		Key:          key,
		Result:       result,
		Timestamp:    now,
		LastAccessAt: now,
	}
}

// evictLocked removes the policy's victim. Caller holds the write lock.
func (c *ResultCache) evictLocked() {
	snapshot := make([]CacheEntry, 0, len(c.entries))
	for _, entry := range c.entries {
		snapshot = append(snapshot, *entry)
	}

	victim := c.policy.SelectVictim(snapshot)
	if victim < 0 || victim >= len(snapshot) {
		return
	}
	delete(c.entries, snapshot[victim].Key)
}

// Len returns the number of cached entries
func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
