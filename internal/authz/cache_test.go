package authz

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute)
}

func TestCacheRoundTrip(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, 10, SystemScope())
	require.NoError(t, err)
	assert.False(t, ok)

	perms := []Permission{"system.roles.read", "system.users.read"}
	require.NoError(t, cache.Put(ctx, 10, SystemScope(), perms))

	got, ok, err := cache.Get(ctx, 10, SystemScope())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, perms, got)
}

func TestCacheScopeIsolation(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, 10, SystemScope(), []Permission{"system.users.read"}))

	_, ok, err := cache.Get(ctx, 10, TenantScope(42))
	require.NoError(t, err)
	assert.False(t, ok, "tenant scope must not read a system-scope entry")
}

func TestCacheInvalidateOrphansEntries(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, 10, SystemScope(), []Permission{"system.users.read"}))
	require.NoError(t, cache.Invalidate(ctx))

	_, ok, err := cache.Get(ctx, 10, SystemScope())
	require.NoError(t, err)
	assert.False(t, ok, "entries written before invalidation must not be served")
}

func TestCalculatorUsesCache(t *testing.T) {
	cache := newTestCache(t)
	store := newMockIdentityStore()
	store.systemAssignments[10] = []int64{1}
	store.rolePermissions[1] = []Permission{"system.users.read"}

	calc := NewCalculator(store, cache)
	ctx := context.Background()

	_, err := calc.EffectivePermissions(ctx, 10, SystemScope())
	require.NoError(t, err)
	_, err = calc.EffectivePermissions(ctx, 10, SystemScope())
	require.NoError(t, err)
	assert.Equal(t, 1, store.assignmentCalls, "second call should be served from cache")

	require.NoError(t, cache.Invalidate(ctx))
	_, err = calc.EffectivePermissions(ctx, 10, SystemScope())
	require.NoError(t, err)
	assert.Equal(t, 2, store.assignmentCalls, "invalidation should force recomputation")
}

type countingCacheMetrics struct {
	lookups map[string]int
}

func (c *countingCacheMetrics) RecordCacheLookup(result string) {
	if c.lookups == nil {
		c.lookups = map[string]int{}
	}
	c.lookups[result]++
}

func TestCalculatorRecordsCacheLookups(t *testing.T) {
	cache := newTestCache(t)
	store := newMockIdentityStore()
	store.systemAssignments[10] = []int64{1}
	store.rolePermissions[1] = []Permission{"system.users.read"}

	metrics := &countingCacheMetrics{}
	calc := NewCalculator(store, cache).Instrument(metrics, nil)
	ctx := context.Background()

	_, err := calc.EffectivePermissions(ctx, 10, SystemScope())
	require.NoError(t, err)
	assert.Equal(t, 1, metrics.lookups["miss"])
	assert.Equal(t, 0, metrics.lookups["hit"])

	_, err = calc.EffectivePermissions(ctx, 10, SystemScope())
	require.NoError(t, err)
	assert.Equal(t, 1, metrics.lookups["miss"])
	assert.Equal(t, 1, metrics.lookups["hit"])
}
