package detection

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"sync"

	"github.com/ternarybob/redactiq/internal/interfaces"
	"github.com/ternarybob/redactiq/internal/models"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheEntries bounds a session cache when no size is configured
const DefaultCacheEntries = 1024

type cacheEntry struct {
	candidates []models.Candidate
	err        error
}

// Cache memoizes AI detector results for one session, keyed by a hash of
// the page number and page text. Failures other than cancellation or an
// expired deadline are cached as well, so a page is sent to the model at most
// once per session. Concurrent lookups of the same key share a single call.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]cacheEntry
	order      []string
	maxEntries int
	group      singleflight.Group
}

// NewCache creates a cache holding at most maxEntries results; the oldest
// entry is evicted first
func NewCache(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheEntries
	}
	return &Cache{
		entries:    make(map[string]cacheEntry),
		maxEntries: maxEntries,
	}
}

// CacheKey derives the cache key for a page
func CacheKey(text string, page int) string {
	h := sha256.New()
	h.Write([]byte(strconv.Itoa(page)))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// Do returns the cached result for key, calling fn only when there is none
func (c *Cache) Do(key string, fn func() ([]models.Candidate, error)) ([]models.Candidate, error) {
	if entry, ok := c.lookup(key); ok {
		return cloneCandidates(entry.candidates), entry.err
	}

	leader := false
	v, _, _ := c.group.Do(key, func() (interface{}, error) {
		leader = true
		if entry, ok := c.lookup(key); ok {
			return entry, nil
		}
		candidates, err := fn()
		entry := cacheEntry{candidates: candidates, err: err}
		// an interrupted caller says nothing about the page
		if !interrupted(err) {
			c.store(key, entry)
		}
		return entry, nil
	})

	entry := v.(cacheEntry)
	if !leader && interrupted(entry.err) {
		// the shared call was cut short by another caller's context
		candidates, err := fn()
		if !interrupted(err) {
			c.store(key, cacheEntry{candidates: candidates, err: err})
		}
		return cloneCandidates(candidates), err
	}
	return cloneCandidates(entry.candidates), entry.err
}

func interrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Len returns the number of cached results
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Reset drops every cached result
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
	c.order = nil
}

func (c *Cache) lookup(key string) (cacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	return entry, ok
}

func (c *Cache) store(key string, entry cacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists {
		c.order = append(c.order, key)
	}
	c.entries[key] = entry
	for len(c.order) > c.maxEntries {
		delete(c.entries, c.order[0])
		c.order = c.order[1:]
	}
}

func cloneCandidates(in []models.Candidate) []models.Candidate {
	if in == nil {
		return nil
	}
	return append([]models.Candidate(nil), in...)
}

// CachedDetector wraps an AIDetector with a session cache
type CachedDetector struct {
	inner interfaces.AIDetector
	cache *Cache
}

var _ interfaces.AIDetector = (*CachedDetector)(nil)

// NewCachedDetector creates a detector that consults cache before calling inner
func NewCachedDetector(inner interfaces.AIDetector, cache *Cache) *CachedDetector {
	return &CachedDetector{inner: inner, cache: cache}
}

// Detect returns the cached result for the page or calls the wrapped detector
func (d *CachedDetector) Detect(ctx context.Context, text string, page int) ([]models.Candidate, error) {
	return d.cache.Do(CacheKey(text, page), func() ([]models.Candidate, error) {
		return d.inner.Detect(ctx, text, page)
	})
}
