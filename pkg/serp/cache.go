package serp

import (
	"container/list"
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"serp-go/pkg/logger"
	"serp-go/pkg/model"
	"serp-go/pkg/utils"
)

// cacheItem represents an item in the cache
type cacheItem struct {
	key       string
	results   []model.SearchResult
	expiresAt time.Time
	element   *list.Element
}

// MemoryCache is an in-process LRU cache of result lists with per-entry TTL.
// Expired entries are dropped lazily on access or eviction.
type MemoryCache struct {
	maxSize int
	items   map[string]*cacheItem
	lruList *list.List
	mu      sync.Mutex
}

// NewMemoryCache creates a new in-memory cache holding at most maxSize entries
func NewMemoryCache(maxSize int) *MemoryCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &MemoryCache{
		maxSize: maxSize,
		items:   make(map[string]*cacheItem),
		lruList: list.New(),
	}
}

// Get returns a copy of the cached results for key
func (mc *MemoryCache) Get(_ context.Context, key string) ([]model.SearchResult, bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	item, exists := mc.items[key]
	if !exists {
		return nil, false, nil
	}
	if !item.expiresAt.IsZero() && time.Now().After(item.expiresAt) {
		mc.deleteItem(item)
		return nil, false, nil
	}

	mc.lruList.MoveToFront(item.element)
	return cloneResults(item.results), true, nil
}

// Set adds or replaces key; a ttl <= 0 never expires
func (mc *MemoryCache) Set(_ context.Context, key string, results []model.SearchResult, ttl time.Duration) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	if item, exists := mc.items[key]; exists {
		item.results = cloneResults(results)
		item.expiresAt = expiresAt
		mc.lruList.MoveToFront(item.element)
		return nil
	}

	item := &cacheItem{
		key:       key,
		results:   cloneResults(results),
		expiresAt: expiresAt,
	}
	item.element = mc.lruList.PushFront(item)
	mc.items[key] = item

	for len(mc.items) > mc.maxSize {
		mc.evictOldest()
	}
	return nil
}

// Size returns the current number of entries
func (mc *MemoryCache) Size() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return len(mc.items)
}

// evictOldest removes the least recently used item
func (mc *MemoryCache) evictOldest() {
	if element := mc.lruList.Back(); element != nil {
		mc.deleteItem(element.Value.(*cacheItem))
	}
}

func (mc *MemoryCache) deleteItem(item *cacheItem) {
	delete(mc.items, item.key)
	mc.lruList.Remove(item.element)
}

func cloneResults(results []model.SearchResult) []model.SearchResult {
	if results == nil {
		return nil
	}
	out := make([]model.SearchResult, len(results))
	copy(out, results)
	return out
}

// CacheKey derives the cache key for a (query, num) request
func CacheKey(query string, num int) string {
	return "serp:" + utils.Hash(query, strconv.Itoa(num))
}

// CacheStats reports cache effectiveness
type CacheStats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	Errors uint64 `json:"errors"`
}

// CachingClient serves repeated queries from a Cache and falls through to
// the wrapped client on a miss or a cache failure
type CachingClient struct {
	next  SearchClient
	cache Cache
	ttl   time.Duration
	log   *logger.Logger

	hits   uint64
	misses uint64
	errors uint64
}

// NewCachingClient wraps next with cache
func NewCachingClient(next SearchClient, cache Cache, ttl time.Duration) *CachingClient {
	return &CachingClient{
		next:  next,
		cache: cache,
		ttl:   ttl,
		log:   logger.GetLogger().WithField("component", "serp_cache"),
	}
}

func (c *CachingClient) Search(ctx context.Context, query string, num int) ([]model.SearchResult, error) {
	key := CacheKey(query, num)

	results, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		atomic.AddUint64(&c.errors, 1)
		c.log.WithError(err).WithField("query", query).Warn("Cache read failed, querying search API")
	} else if ok {
		atomic.AddUint64(&c.hits, 1)
		return results, nil
	}
	atomic.AddUint64(&c.misses, 1)

	results, err = c.next.Search(ctx, query, num)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Set(ctx, key, results, c.ttl); err != nil {
		atomic.AddUint64(&c.errors, 1)
		c.log.WithError(err).WithField("query", query).Warn("Cache write failed")
	}
	return results, nil
}

// Stats returns hit/miss counters
func (c *CachingClient) Stats() CacheStats {
	return CacheStats{
		Hits:   atomic.LoadUint64(&c.hits),
		Misses: atomic.LoadUint64(&c.misses),
		Errors: atomic.LoadUint64(&c.errors),
	}
}
