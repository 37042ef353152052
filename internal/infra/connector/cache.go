package connector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"vizpilot/internal/usecase"

	lru "github.com/hashicorp/golang-lru/v2"
)

type cacheEntry struct {
	result   usecase.FetchResult
	storedAt time.Time
}

// Cached memoises successful fetches by identifier, range and interval.
// Entries older than ttl are refetched. Errors are never cached.
type Cached struct {
	next  usecase.Connector
	cache *lru.Cache[string, cacheEntry]
	ttl   time.Duration
	now   func() time.Time

	mu     sync.Mutex
	hits   int
	misses int
}

func NewCached(next usecase.Connector, size int, ttl time.Duration) (*Cached, error) {
	if size <= 0 {
		size = 256
	}
	c, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, fmt.Errorf("create connector cache: %w", err)
	}
	return &Cached{next: next, cache: c, ttl: ttl, now: time.Now}, nil
}

func (c *Cached) Name() string { return c.next.Name() }

func (c *Cached) Fetch(ctx context.Context, req usecase.FetchRequest) (usecase.FetchResult, error) {
	key := cacheKey(req)
	if e, ok := c.cache.Get(key); ok {
		if c.ttl <= 0 || c.now().Sub(e.storedAt) < c.ttl {
			c.count(true)
			res := e.result
			res.Table = res.Table.Clone()
			res.Source.Cached = true
			return res, nil
		}
		c.cache.Remove(key)
	}
	c.count(false)

	res, err := c.next.Fetch(ctx, req)
	if err != nil {
		return res, err
	}
	c.cache.Add(key, cacheEntry{result: usecase.FetchResult{Table: res.Table.Clone(), Source: res.Source}, storedAt: c.now()})
	return res, nil
}

// Stats reports cache hits and misses since creation.
func (c *Cached) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func (c *Cached) count(hit bool) {
	c.mu.Lock()
	if hit {
		c.hits++
	} else {
		c.misses++
	}
	c.mu.Unlock()
}

func cacheKey(req usecase.FetchRequest) string {
	return fmt.Sprintf("%s|%s|%s|%s", req.Identifier, req.Range.Start, req.Range.End, req.Interval)
}
