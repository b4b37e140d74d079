package routing

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sgbridge/internal/logger"
	"sgbridge/pkg/metrics"
)

type fakeResolver struct {
	mu     sync.Mutex
	routes map[int64]*string
	err    error
	calls  int32

	// block, when set, holds every Resolve until released; started signals
	// that a Resolve is in flight.
	block   chan struct{}
	started chan struct{}
}

func (f *fakeResolver) Resolve(ctx context.Context, projectID int64) (*string, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.routes[projectID], nil
}

func (f *fakeResolver) callCount() int {
	return int(atomic.LoadInt32(&f.calls))
}

func strPtr(s string) *string {
	return &s
}

func TestLookupOrResolveCachesResult(t *testing.T) {
	resolver := &fakeResolver{routes: map[int64]*string{1: strPtr("http://x/default")}}
	cache := NewRouteCache(0, true, logger.NopLogger())

	route, freshly, err := cache.LookupOrResolve(context.Background(), 1, resolver)
	require.NoError(t, err)
	require.NotNil(t, route)
	assert.Equal(t, "http://x/default", *route)
	assert.True(t, freshly)

	route, freshly, err = cache.LookupOrResolve(context.Background(), 1, resolver)
	require.NoError(t, err)
	require.NotNil(t, route)
	assert.Equal(t, "http://x/default", *route)
	assert.False(t, freshly)

	assert.Equal(t, 1, resolver.callCount())
	assert.Equal(t, 1, cache.Len())
}

func TestLookupOrResolveCachesNoRoute(t *testing.T) {
	resolver := &fakeResolver{routes: map[int64]*string{}}
	cache := NewRouteCache(0, true, logger.NopLogger())

	route, freshly, err := cache.LookupOrResolve(context.Background(), 1, resolver)
	require.NoError(t, err)
	assert.Nil(t, route)
	assert.True(t, freshly)

	// The negative entry is cached like a real route.
	route, _, err = cache.LookupOrResolve(context.Background(), 1, resolver)
	require.NoError(t, err)
	assert.Nil(t, route)
	assert.Equal(t, 1, resolver.callCount())
	assert.Equal(t, 1, cache.Len())
}

func TestLookupOrResolveCachesFailures(t *testing.T) {
	resolver := &fakeResolver{err: fmt.Errorf("registry unreachable")}
	cache := NewRouteCache(0, true, logger.NopLogger())

	route, freshly, err := cache.LookupOrResolve(context.Background(), 1, resolver)
	require.NoError(t, err)
	assert.Nil(t, route)
	assert.True(t, freshly)

	_, _, err = cache.LookupOrResolve(context.Background(), 1, resolver)
	require.NoError(t, err)
	assert.Equal(t, 1, resolver.callCount())
}

func TestLookupOrResolveFailureCachingDisabled(t *testing.T) {
	resolver := &fakeResolver{err: fmt.Errorf("registry unreachable")}
	cache := NewRouteCache(0, false, logger.NopLogger())

	_, _, err := cache.LookupOrResolve(context.Background(), 1, resolver)
	require.Error(t, err)
	assert.Equal(t, 0, cache.Len())

	// Without negative caching the next lookup tries the registry again.
	_, _, err = cache.LookupOrResolve(context.Background(), 1, resolver)
	require.Error(t, err)
	assert.Equal(t, 2, resolver.callCount())
}

func TestLookupOrResolveConcurrent(t *testing.T) {
	resolver := &fakeResolver{
		routes:  map[int64]*string{1: strPtr("http://x/default")},
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	cache := NewRouteCache(0, true, logger.NopLogger())

	const callers = 8
	hitsBefore := testutil.ToFloat64(metrics.RouteResolutionsTotal.WithLabelValues("hit"))
	coalescedBefore := testutil.ToFloat64(metrics.RouteResolutionsTotal.WithLabelValues("coalesced"))

	var wg sync.WaitGroup
	var freshCount int32

	lookup := func() {
		defer wg.Done()
		route, freshly, err := cache.LookupOrResolve(context.Background(), 1, resolver)
		if !assert.NoError(t, err) || !assert.NotNil(t, route) {
			return
		}
		if freshly {
			atomic.AddInt32(&freshCount, 1)
		}
	}

	wg.Add(1)
	go lookup()
	<-resolver.started

	// The first caller is blocked inside Resolve; everyone that arrives now
	// joins that in-flight resolution instead of hitting the cache.
	for i := 1; i < callers; i++ {
		wg.Add(1)
		go lookup()
	}
	time.Sleep(50 * time.Millisecond)

	close(resolver.block)
	wg.Wait()

	// Concurrent lookups for the same id coalesce into one resolution, and
	// exactly one caller owns the fresh result.
	assert.Equal(t, 1, resolver.callCount())
	assert.Equal(t, int32(1), atomic.LoadInt32(&freshCount))

	// The riders on the shared resolution count as coalesced, not as cache
	// hits.
	hits := testutil.ToFloat64(metrics.RouteResolutionsTotal.WithLabelValues("hit")) - hitsBefore
	coalesced := testutil.ToFloat64(metrics.RouteResolutionsTotal.WithLabelValues("coalesced")) - coalescedBefore
	assert.Equal(t, float64(0), hits)
	assert.Equal(t, float64(callers-1), coalesced)
}

func TestInvalidateRemovesSingleEntry(t *testing.T) {
	resolver := &fakeResolver{routes: map[int64]*string{
		1: strPtr("http://x/default"),
		2: strPtr("http://y/other"),
	}}
	cache := NewRouteCache(0, true, logger.NopLogger())

	_, _, err := cache.LookupOrResolve(context.Background(), 1, resolver)
	require.NoError(t, err)
	_, _, err = cache.LookupOrResolve(context.Background(), 2, resolver)
	require.NoError(t, err)
	require.Equal(t, 2, cache.Len())

	cache.Invalidate(1)
	assert.Equal(t, 1, cache.Len())

	// Project 2 still served from cache, project 1 resolved again.
	_, freshly, err := cache.LookupOrResolve(context.Background(), 2, resolver)
	require.NoError(t, err)
	assert.False(t, freshly)

	_, freshly, err = cache.LookupOrResolve(context.Background(), 1, resolver)
	require.NoError(t, err)
	assert.True(t, freshly)
	assert.Equal(t, 3, resolver.callCount())

	// Invalidating an absent entry is a no-op.
	cache.Invalidate(99)
	assert.Equal(t, 2, cache.Len())
}

func TestClearEmptiesCache(t *testing.T) {
	resolver := &fakeResolver{routes: map[int64]*string{
		1: strPtr("http://x/default"),
		2: strPtr("http://y/other"),
	}}
	cache := NewRouteCache(0, true, logger.NopLogger())

	_, _, err := cache.LookupOrResolve(context.Background(), 1, resolver)
	require.NoError(t, err)
	_, _, err = cache.LookupOrResolve(context.Background(), 2, resolver)
	require.NoError(t, err)

	cache.Clear()
	assert.Equal(t, 0, cache.Len())
}

func TestClearDuringResolution(t *testing.T) {
	resolver := &fakeResolver{
		routes:  map[int64]*string{1: strPtr("http://x/default")},
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	cache := NewRouteCache(0, true, logger.NopLogger())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _, err := cache.LookupOrResolve(context.Background(), 1, resolver)
		assert.NoError(t, err)
	}()

	// Clear while the resolution is in flight; the stale result must not be
	// written back afterwards.
	<-resolver.started
	cache.Clear()
	close(resolver.block)
	<-done

	assert.Equal(t, 0, cache.Len())

	_, freshly, err := cache.LookupOrResolve(context.Background(), 1, resolver)
	require.NoError(t, err)
	assert.True(t, freshly)
	assert.Equal(t, 2, resolver.callCount())
}
