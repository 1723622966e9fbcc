package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"body-metrics/internal/models"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func TestRedisKVStore_MissReturnsCacheMiss(t *testing.T) {
	_, client := setupTestRedis(t)
	defer client.Close()

	kv := NewRedisKVStore(client)
	_, err := kv.Get(context.Background(), "missing-key")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisKVStore_SetGetRoundTrip(t *testing.T) {
	_, client := setupTestRedis(t)
	defer client.Close()

	kv := NewRedisKVStore(client)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "k", "v", 0))

	value, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", value)
}

func TestRedisKVStore_TTLExpires(t *testing.T) {
	mr, client := setupTestRedis(t)
	defer client.Close()

	kv := NewRedisKVStore(client)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "k", "v", time.Minute))
	mr.FastForward(2 * time.Minute)

	_, err := kv.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestKVHistoryStore_LoadEmpty(t *testing.T) {
	_, client := setupTestRedis(t)
	defer client.Close()

	store := NewKVHistoryStore(NewRedisKVStore(client), "body-metrics:test:history")

	histories, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, histories)
}

func TestKVHistoryStore_SaveLoadRoundTrip(t *testing.T) {
	_, client := setupTestRedis(t)
	defer client.Close()

	store := NewKVHistoryStore(NewRedisKVStore(client), "body-metrics:test:history")
	ctx := context.Background()

	saved := map[string][]models.HistoryEntry{
		"alice": {
			{Timestamp: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC), Weight: 70.25},
			{Timestamp: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC), Weight: 70.4},
		},
		"bob": {
			{Timestamp: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), Weight: 82.1},
		},
	}
	require.NoError(t, store.Save(ctx, saved))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, saved["alice"], loaded["alice"])
	assert.Equal(t, saved["bob"], loaded["bob"])
}
