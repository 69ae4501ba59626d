package procedures

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

const cacheKey = "procedures"

// sharedFetchTimeout bounds a catalog query shared by concurrent callers.
const sharedFetchTimeout = time.Minute

// CachedSource serves Fetch from memory for ttl after a successful read.
// Concurrent misses share a single catalog query, which runs detached from
// any one caller's cancellation. Failures are not cached.
type CachedSource struct {
	source Source
	cache  *cache.Cache
	group  singleflight.Group
}

// NewCachedSource wraps source. A non-positive ttl disables caching and
// returns source unchanged.
func NewCachedSource(source Source, ttl time.Duration) Source {
	if ttl <= 0 {
		return source
	}
	return &CachedSource{
		source: source,
		cache:  cache.New(ttl, cache.NoExpiration),
	}
}

func (c *CachedSource) Fetch(ctx context.Context) ([]Procedure, error) {
	if v, ok := c.cache.Get(cacheKey); ok {
		return v.([]Procedure), nil
	}

	results := c.group.DoChan(cacheKey, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedFetchTimeout)
		defer cancel()

		procedures, err := c.source.Fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		c.cache.SetDefault(cacheKey, procedures)
		return procedures, nil
	})

	select {
	case res := <-results:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]Procedure), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate drops the cached catalog.
func (c *CachedSource) Invalidate() {
	c.cache.Delete(cacheKey)
}
