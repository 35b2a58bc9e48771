package sfapi

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

const objectListKey = "__objects__"

// CachingDescriber memoizes describe calls in an expirable LRU. Schema changes are
// rare compared to analysis traffic, so describes are shared across sessions for
// the TTL.
type CachingDescriber struct {
	next    DescribeService
	objects *lru.LRU[string, *ObjectDescribe]
	lists   *lru.LRU[string, []ObjectSummary]

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCachingDescriber wraps next with an LRU of at most size object describes
func NewCachingDescriber(next DescribeService, size int, ttl time.Duration) *CachingDescriber {
	if size < 10 {
		size = 10
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachingDescriber{
		next:    next,
		objects: lru.NewLRU[string, *ObjectDescribe](size, nil, ttl),
		lists:   lru.NewLRU[string, []ObjectSummary](1, nil, ttl),
	}
}

// ListObjects returns the cached inventory or loads it
func (c *CachingDescriber) ListObjects(ctx context.Context) ([]ObjectSummary, error) {
	if objects, ok := c.lists.Get(objectListKey); ok {
		c.hits.Add(1)
		return objects, nil
	}
	c.misses.Add(1)

	objects, err := c.next.ListObjects(ctx)
	if err != nil {
		return nil, err
	}
	c.lists.Add(objectListKey, objects)
	return objects, nil
}

// DescribeObject returns the cached describe or loads it
func (c *CachingDescriber) DescribeObject(ctx context.Context, name string) (*ObjectDescribe, error) {
	key := strings.ToLower(name)
	if desc, ok := c.objects.Get(key); ok {
		c.hits.Add(1)
		return desc, nil
	}
	c.misses.Add(1)

	desc, err := c.next.DescribeObject(ctx, name)
	if err != nil {
		return nil, err
	}
	c.objects.Add(key, desc)
	return desc, nil
}

// Purge drops every cached describe
func (c *CachingDescriber) Purge() {
	c.objects.Purge()
	c.lists.Purge()
}

// Stats returns hit and miss counters
func (c *CachingDescriber) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
