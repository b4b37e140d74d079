package routing

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"sgbridge/internal/logger"
	"sgbridge/pkg/metrics"
)

// Resolver resolves the sync endpoint for a project. A nil route with a nil
// error means the project has no sync configured; an error means the registry
// could not be consulted at all.
type Resolver interface {
	Resolve(ctx context.Context, projectID int64) (*string, error)
}

// RouteCache maps project ids to sync endpoints. A nil entry is a negative
// route ("no sync configured") and is cached like any other to avoid
// re-querying the registry per event. Entries never expire unless a TTL is
// configured; they are dropped by Invalidate and Clear only.
type RouteCache struct {
	entries *gocache.Cache
	group   singleflight.Group
	logger  logger.Logger

	// generation fences resolutions against Clear: a resolution started
	// before a Clear must not repopulate the cache afterwards.
	mu            sync.Mutex
	generation    uint64
	cacheFailures bool
}

type cacheResult struct {
	route *string
	// fresh is claimed by exactly one caller per resolution, so the remote
	// reset fires once even when concurrent lookups coalesce.
	fresh uint32
}

func NewRouteCache(ttl time.Duration, cacheFailures bool, log logger.Logger) *RouteCache {
	expiration := gocache.NoExpiration
	cleanup := time.Duration(0)
	if ttl > 0 {
		expiration = ttl
		cleanup = ttl
	}

	return &RouteCache{
		entries:       gocache.New(expiration, cleanup),
		cacheFailures: cacheFailures,
		logger:        log,
	}
}

// LookupOrResolve returns the route for projectID, resolving it at most once
// per cache generation. freshly is true for exactly one caller per
// resolution; that caller owns the follow-up reset notification.
func (c *RouteCache) LookupOrResolve(ctx context.Context, projectID int64, resolver Resolver) (*string, bool, error) {
	key := strconv.FormatInt(projectID, 10)

	if v, ok := c.entries.Get(key); ok {
		metrics.IncRouteResolution("hit")
		return v.(*string), false, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if cached, ok := c.entries.Get(key); ok {
			return &cacheResult{route: cached.(*string)}, nil
		}

		c.mu.Lock()
		generation := c.generation
		c.mu.Unlock()

		route, err := resolver.Resolve(ctx, projectID)
		if err != nil {
			if !c.cacheFailures {
				metrics.IncRouteResolution("error")
				return nil, err
			}
			c.logger.WarnwCtx(ctx, "Route resolution failed, caching as no route",
				"project_id", projectID,
				"error", err,
			)
			metrics.IncRouteResolution("error")
			route = nil
		} else if route == nil {
			metrics.IncRouteResolution("no_route")
		} else {
			metrics.IncRouteResolution("resolved")
		}

		c.store(key, route, generation)
		return &cacheResult{route: route, fresh: 1}, nil
	})
	if err != nil {
		return nil, true, err
	}

	result := v.(*cacheResult)
	freshly := atomic.CompareAndSwapUint32(&result.fresh, 1, 0)
	if !freshly {
		// Waiters that piggybacked on another caller's resolution are not
		// cache hits; keep the resolution counter honest.
		metrics.IncRouteResolution("coalesced")
	}
	return result.route, freshly, nil
}

// Invalidate removes the entry for a single project; no-op when absent.
func (c *RouteCache) Invalidate(projectID int64) {
	c.entries.Delete(strconv.FormatInt(projectID, 10))
	metrics.IncRouteCacheInvalidation("project")
	metrics.SetRouteCacheEntries(c.entries.ItemCount())
}

// Clear empties the cache and advances the generation so in-flight
// resolutions cannot write stale routes back.
func (c *RouteCache) Clear() {
	c.mu.Lock()
	c.generation++
	c.entries.Flush()
	c.mu.Unlock()

	metrics.IncRouteCacheInvalidation("clear")
	metrics.SetRouteCacheEntries(0)
}

// Len returns the number of cached entries, negative ones included.
func (c *RouteCache) Len() int {
	return c.entries.ItemCount()
}

func (c *RouteCache) store(key string, route *string, generation uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if generation != c.generation {
		return
	}
	c.entries.Set(key, route, gocache.DefaultExpiration)
	metrics.SetRouteCacheEntries(c.entries.ItemCount())
}
