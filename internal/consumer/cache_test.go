package consumer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"yourmove/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCacheManager_StatusRoundTrip(t *testing.T) {
	kv := newFakeKVStore()
	cache := NewCacheManager(testConfig(), kv, zap.NewNop())
	ctx := context.Background()

	_, err := cache.GetStatus(ctx, "s-1")
	assert.ErrorIs(t, err, ErrCacheMiss)

	snap := &models.SessionSnapshot{
		SessionID: "s-1",
		PatientID: "p-1",
		AICommand: models.AICommand{Command: models.CommandContinue, Severity: models.CommandSeverityLow},
		Focus:     0.9,
	}
	require.NoError(t, cache.UpdateStatus(ctx, snap))

	raw, err := cache.GetStatus(ctx, "s-1")
	require.NoError(t, err)
	var got models.SessionSnapshot
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "p-1", got.PatientID)
	assert.Equal(t, models.CommandContinue, got.AICommand.Command)
	assert.Equal(t, 10*time.Second, kv.ttl("yourmove:session:s-1:status"))
}

func TestCacheManager_AnalyticsAndEvict(t *testing.T) {
	kv := newFakeKVStore()
	cache := NewCacheManager(testConfig(), kv, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, cache.UpdateAnalytics(ctx, "s-1", &models.AdvancedAnalytics{
		RiskClassification: models.RiskLow,
		FrameCount:         10,
	}))
	assert.Equal(t, 30*time.Second, kv.ttl("yourmove:session:s-1:analytics"))

	raw, err := cache.GetAnalytics(ctx, "s-1")
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"risk_classification":"LOW"`)

	require.NoError(t, cache.UpdateStatus(ctx, &models.SessionSnapshot{SessionID: "s-1"}))
	require.NoError(t, cache.Evict(ctx, "s-1"))
	assert.Equal(t, 0, kv.len())

	_, err = cache.GetAnalytics(ctx, "s-1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisKVStore_Miniredis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	kv := NewRedisKVStore(client)
	ctx := context.Background()

	_, err := kv.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, kv.Set(ctx, "k", "v", 10*time.Second))
	val, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)
	assert.Equal(t, 10*time.Second, mr.TTL("k"))

	mr.FastForward(11 * time.Second)
	_, err = kv.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, kv.Set(ctx, "a", "1", 0))
	require.NoError(t, kv.Del(ctx, "a", "b"))
	assert.False(t, mr.Exists("a"))
	require.NoError(t, kv.Del(ctx))
}
