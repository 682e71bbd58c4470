package terminology

import (
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache defaults: small enough for one interactive session, TTL short
// enough that a refreshed server release is picked up within the hour.
const (
	DefaultCacheSize = 512
	DefaultCacheTTL  = 30 * time.Minute
)

// CacheEntry is one cached expansion keyed by (code, includeInactive).
type CacheEntry struct {
	SourceDisplay string
	Children      []Concept
	TotalCount    int
	CachedAt      time.Time
	Err           *ServiceError
}

// ExpansionCache is a TTL plus size-bounded cache of expansion results.
// Reads validate the entry's structure so a cached "false success" is
// never served: broken entries are evicted and reported as misses.
type ExpansionCache struct {
	lru *expirable.LRU[string, *CacheEntry]
}

// NewExpansionCache creates a cache with the given bounds; zero values
// take the defaults.
func NewExpansionCache(size int, ttl time.Duration) *ExpansionCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &ExpansionCache{lru: expirable.NewLRU[string, *CacheEntry](size, nil, ttl)}
}

func cacheKey(code string, includeInactive bool) string {
	return fmt.Sprintf("%s|%t", code, includeInactive)
}

// Get returns a structurally valid cached entry or a miss. Invalid
// entries are evicted on read.
func (c *ExpansionCache) Get(code string, includeInactive bool) (*CacheEntry, bool) {
	key := cacheKey(code, includeInactive)
	entry, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	if !entryValid(entry) {
		c.lru.Remove(key)
		return nil, false
	}
	return entry, true
}

// Put stores an entry. Entries that would fail read-time validation are
// not stored at all.
func (c *ExpansionCache) Put(code string, includeInactive bool, entry *CacheEntry) {
	if entry == nil || !entryValid(entry) {
		return
	}
	c.lru.Add(cacheKey(code, includeInactive), entry)
}

// entryValid rejects entries that look like a false success: an error
// result, a claimed total with no children, or an empty expansion whose
// source concept never resolved to a display.
func entryValid(entry *CacheEntry) bool {
	if entry.Err != nil {
		return false
	}
	if entry.TotalCount > 0 && len(entry.Children) == 0 {
		return false
	}
	if len(entry.Children) == 0 && (entry.SourceDisplay == "" || entry.SourceDisplay == "Unknown") {
		return false
	}
	return true
}

// Len reports the number of live entries.
func (c *ExpansionCache) Len() int {
	return c.lru.Len()
}

// Purge clears the cache.
func (c *ExpansionCache) Purge() {
	c.lru.Purge()
}
