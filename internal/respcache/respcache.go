// Package respcache caches full query responses by content address,
// with TTL expiry, bounded size via LRU eviction, and request
// deduplication so concurrent identical queries only compute once.
package respcache

import (
	"container/list"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/connexus-ai/kenyalaw-rag/internal/model"
)

type entry struct {
	key       string
	result    model.QueryResult
	createdAt time.Time
	expiresAt time.Time
	elem      *list.Element
}

// Cache caches model.QueryResult by a content-addressed key derived
// from the normalized query text and the parameters that affect its
// answer. Thread-safe via sync.Mutex; entries auto-expire after TTL
// and the cache never holds more than maxEntries, evicting
// least-recently-used first.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*entry
	order      *list.List // front = most recently used
	ttl        time.Duration
	maxEntries int
	stopCh     chan struct{}

	group singleflight.Group
}

// New creates a Cache with the given TTL and max entry count, and
// starts a background goroutine that sweeps expired entries.
func New(ttl time.Duration, maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	c := &Cache{
		entries:    make(map[string]*entry),
		order:      list.New(),
		ttl:        ttl,
		maxEntries: maxEntries,
		stopCh:     make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// Key builds a deterministic content-address from the query text and
// the parameters that change its answer: top-k and citation mode.
// Model identity isn't included since the cache is keyed on intent,
// not on which backend served it.
func Key(query string, topK int, useCitations bool) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	h := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("rc:%d:%v:%x", topK, useCitations, h[:16])
}

// Get returns a cached QueryResult if present and not expired.
func (c *Cache) Get(key string) (model.QueryResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return model.QueryResult{}, false
	}
	if time.Now().After(e.expiresAt) {
		c.removeLocked(e)
		return model.QueryResult{}, false
	}

	c.order.MoveToFront(e.elem)
	slog.Info("[RESPCACHE] hit", "key", key, "age_ms", time.Since(e.createdAt).Milliseconds())

	hit := e.result
	hit.ModelUsed = "cache"
	return hit, true
}

// Set stores a QueryResult, evicting the least-recently-used entry if
// the cache is at capacity.
func (c *Cache) Set(key string, result model.QueryResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if existing, ok := c.entries[key]; ok {
		existing.result = result
		existing.createdAt = now
		existing.expiresAt = now.Add(c.ttl)
		c.order.MoveToFront(existing.elem)
		return
	}

	e := &entry{key: key, result: result, createdAt: now, expiresAt: now.Add(c.ttl)}
	e.elem = c.order.PushFront(e)
	c.entries[key] = e

	for len(c.entries) > c.maxEntries {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest.Value.(*entry))
	}
}

func (c *Cache) removeLocked(e *entry) {
	delete(c.entries, e.key)
	c.order.Remove(e.elem)
}

// Len returns the number of entries currently cached.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stop halts the background cleanup goroutine.
func (c *Cache) Stop() {
	close(c.stopCh)
}

// GetOrCompute returns the cached result for key, or calls compute to
// produce one. Concurrent calls with the same key share a single
// in-flight compute via singleflight, so a burst of identical queries
// never triggers redundant compute work (in the engine, generation;
// retrieval runs before the cache is consulted).
func (c *Cache) GetOrCompute(ctx context.Context, key string, compute func(context.Context) (model.QueryResult, error)) (model.QueryResult, error) {
	if result, ok := c.Get(key); ok {
		return result, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// Re-check after winning the singleflight race: a sibling call
		// may have populated the cache while we were waiting.
		if result, ok := c.Get(key); ok {
			return result, nil
		}
		result, err := compute(ctx)
		if err != nil {
			return model.QueryResult{}, err
		}
		c.Set(key, result)
		return result, nil
	})
	if err != nil {
		return model.QueryResult{}, err
	}
	return v.(model.QueryResult), nil
}

func (c *Cache) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			before := len(c.entries)
			for _, e := range c.entries {
				if now.After(e.expiresAt) {
					c.removeLocked(e)
				}
			}
			after := len(c.entries)
			c.mu.Unlock()
			if before != after {
				slog.Info("[RESPCACHE] cleanup", "removed", before-after, "remaining", after)
			}
		case <-c.stopCh:
			return
		}
	}
}
