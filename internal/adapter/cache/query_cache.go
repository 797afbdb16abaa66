package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sync"
	"time"

	"scirag/internal/domain"
	"scirag/internal/port"
)

// QueryCache is an LRU cache of retrieval results with a TTL. Invalidate bumps
// a generation counter so entries computed before a store change are never served.
type QueryCache struct {
	mu       sync.RWMutex
	entries  map[string]*cacheEntry
	order    []string
	maxSize  int
	ttl      time.Duration
	storeGen uint64
	now      func() time.Time
}

type cacheEntry struct {
	result    domain.RetrievalResult
	timestamp time.Time
	storeGen  uint64
}

func NewQueryCache(maxSize int, ttl time.Duration) *QueryCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &QueryCache{
		entries: make(map[string]*cacheEntry),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

func cacheKey(query string, k int, filterKey string) string {
	h := sha256.New()
	h.Write([]byte(query))
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(k))
	h.Write(buf[:])
	h.Write([]byte(filterKey))
	return hex.EncodeToString(h.Sum(nil)[:16])
}

func (c *QueryCache) Get(query string, k int, filterKey string) (domain.RetrievalResult, bool) {
	key := cacheKey(query, k, filterKey)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[key]
	if !exists {
		return domain.RetrievalResult{}, false
	}

	if c.now().Sub(entry.timestamp) > c.ttl || entry.storeGen != c.storeGen {
		delete(c.entries, key)
		c.removeFromOrder(key)
		return domain.RetrievalResult{}, false
	}

	c.moveToEnd(key)
	return cloneResult(entry.result), true
}

func (c *QueryCache) Put(query string, k int, filterKey string, result domain.RetrievalResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(query, k, filterKey)
	entry := &cacheEntry{
		result:    cloneResult(result),
		timestamp: c.now(),
		storeGen:  c.storeGen,
	}

	if _, exists := c.entries[key]; exists {
		c.entries[key] = entry
		c.moveToEnd(key)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	c.entries[key] = entry
	c.order = append(c.order, key)
}

// Invalidate drops every entry. Call it after the store changes.
func (c *QueryCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.order = c.order[:0]
	c.storeGen++
}

func (c *QueryCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *QueryCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *QueryCache) moveToEnd(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *QueryCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

func cloneResult(r domain.RetrievalResult) domain.RetrievalResult {
	r.Passages = append([]domain.Passage(nil), r.Passages...)
	return r
}

// CachedRetriever serves repeated queries from a QueryCache.
type CachedRetriever struct {
	retriever port.Retriever
	cache     *QueryCache
}

func NewCachedRetriever(retriever port.Retriever, cache *QueryCache) *CachedRetriever {
	return &CachedRetriever{
		retriever: retriever,
		cache:     cache,
	}
}

// Retrieve caches unfiltered queries. Filters are opaque functions, so filtered
// queries go straight to the underlying retriever; use RetrieveKeyed to cache them.
func (r *CachedRetriever) Retrieve(ctx context.Context, query string, k int, filter domain.Filter) (domain.RetrievalResult, error) {
	if filter != nil {
		return r.retriever.Retrieve(ctx, query, k, filter)
	}
	return r.RetrieveKeyed(ctx, query, k, filter, "")
}

// RetrieveKeyed caches the result under filterKey, which must identify filter.
func (r *CachedRetriever) RetrieveKeyed(ctx context.Context, query string, k int, filter domain.Filter, filterKey string) (domain.RetrievalResult, error) {
	if result, hit := r.cache.Get(query, k, filterKey); hit {
		return result, nil
	}

	result, err := r.retriever.Retrieve(ctx, query, k, filter)
	if err != nil {
		return domain.RetrievalResult{}, err
	}

	r.cache.Put(query, k, filterKey, result)
	return result, nil
}

// Invalidate forwards to the underlying cache.
func (r *CachedRetriever) Invalidate() {
	r.cache.Invalidate()
}
