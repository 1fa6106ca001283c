package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equipment-insight/internal/models"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRedisCache(context.Background(), mr.Addr(), "", 0, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestNewRedisCacheUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisCache(context.Background(), addr, "", 0, 0)
	assert.ErrorContains(t, err, "failed to connect to Redis")
}

func TestFeatureRowsRoundTrip(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	rows := []models.FeatureRow{
		{EquipmentID: "CAT00001", Category: "Excavator", UtilizationRate: 0.4, Month: 3},
		{EquipmentID: "CAT00002", Category: "Compressor", IdleRate: 0.9},
	}
	require.NoError(t, c.CacheFeatureRows(ctx, rows))

	got, err := c.GetFeatures(ctx, "CAT00002")
	require.NoError(t, err)
	assert.Equal(t, "Compressor", got.Category)
	assert.Equal(t, 0.9, got.IdleRate)

	ttl := mr.TTL(FeaturesKeyPrefix + "CAT00001")
	assert.Equal(t, FeaturesTTL, ttl)

	_, err = c.GetFeatures(ctx, "missing")
	assert.True(t, errors.Is(err, ErrCacheMiss))
}

func TestCacheAssessmentCountsAndTrims(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	for i := 0; i < LatestAssessmentsLimit+5; i++ {
		resp := &models.InferenceResponse{
			RequestID:   fmt.Sprintf("req-%d", i),
			EquipmentID: "CAT00007",
			IsAnomaly:   i%2 == 0,
			RiskTier:    models.RiskLow,
		}
		require.NoError(t, c.CacheAssessment(ctx, resp))
	}

	total, err := c.GetCounter(ctx, InferenceCounterKey)
	require.NoError(t, err)
	assert.Equal(t, int64(LatestAssessmentsLimit+5), total)

	anomalies, err := c.GetCounter(ctx, AnomaliesCounterKey)
	require.NoError(t, err)
	assert.Equal(t, int64((LatestAssessmentsLimit+5+1)/2), anomalies)

	last, err := c.GetAssessment(ctx, "CAT00007")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("req-%d", LatestAssessmentsLimit+4), last.RequestID)

	latest, err := c.LatestAssessments(ctx, 3)
	require.NoError(t, err)
	require.Len(t, latest, 3)
	assert.Equal(t, last.RequestID, latest[0].RequestID)

	all, err := c.LatestAssessments(ctx, 5000)
	require.NoError(t, err)
	assert.Len(t, all, LatestAssessmentsLimit)
}

func TestAssessmentKeyFallsBackToRequestID(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.CacheAssessment(ctx, &models.InferenceResponse{RequestID: "abc"}))
	got, err := c.GetAssessment(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", got.RequestID)

	n, err := c.GetCounter(ctx, "never-set")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPing(t *testing.T) {
	c, mr := newTestCache(t)
	assert.NoError(t, c.Ping(context.Background()))
	mr.Close()
	assert.Error(t, c.Ping(context.Background()))
}
