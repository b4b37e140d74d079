package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sgbridge/internal/constants"
	"sgbridge/internal/dedup"
	"sgbridge/internal/source"
)

func TestDedupGuard_ClaimsEventOnce(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, false, true, false)
	guard := dedup.NewGuard(dedup.NewRepository(infra.RedisClient), createTestDeduplicationConfig(), createTestLogger())
	ctx := context.Background()

	e := createTaskChangeEvent(501, 1, 11793)

	unique, err := guard.Check(ctx, e)
	require.NoError(t, err)
	assert.True(t, unique, "first delivery should be unique")

	unique, err = guard.Check(ctx, e)
	require.NoError(t, err)
	assert.False(t, unique, "redelivery should be claimed already")

	// A different event id is an independent claim.
	other := createTaskChangeEvent(502, 1, 11793)
	unique, err = guard.Check(ctx, other)
	require.NoError(t, err)
	assert.True(t, unique)
}

func TestDedupGuard_SetsClaimTTL(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, false, true, false)
	cfg := createTestDeduplicationConfig()
	cfg.TTLSeconds = 120
	guard := dedup.NewGuard(dedup.NewRepository(infra.RedisClient), cfg, createTestLogger())
	ctx := context.Background()

	e := createTaskChangeEvent(601, 1, 11793)
	unique, err := guard.Check(ctx, e)
	require.NoError(t, err)
	require.True(t, unique)

	ttl, err := infra.RedisClient.TTL(ctx, constants.CacheKeyPrefixDedup+"601").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 100*time.Second)
	assert.LessOrEqual(t, ttl, 120*time.Second)
}

func TestDedupGuard_DisabledPassesEverything(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, false, true, false)
	cfg := createTestDeduplicationConfig()
	cfg.Enabled = false
	guard := dedup.NewGuard(dedup.NewRepository(infra.RedisClient), cfg, createTestLogger())
	ctx := context.Background()

	e := createTaskChangeEvent(701, 1, 11793)
	for i := 0; i < 3; i++ {
		unique, err := guard.Check(ctx, e)
		require.NoError(t, err)
		assert.True(t, unique)
	}
}

func TestRedisWatermark_Roundtrip(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, false, false, true, false)
	watermark := source.NewRedisWatermark(infra.RedisClient)
	ctx := context.Background()

	last, err := watermark.Last(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), last, "fresh store has no watermark")

	require.NoError(t, watermark.Advance(ctx, 123456))

	last, err = watermark.Last(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(123456), last)

	// Advancing past a crash-replayed id keeps the highest value written.
	require.NoError(t, watermark.Advance(ctx, 123457))
	last, err = watermark.Last(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(123457), last)
}
