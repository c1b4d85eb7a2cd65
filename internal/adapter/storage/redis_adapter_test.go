package storage

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisClaim_Success(t *testing.T) {
	client := getRedisClient(t)
	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	client.Del(ctx, idempotencyKeyPrefix+"test-idem-key")

	ok, err := adapter.Claim(ctx, "test-idem-key")
	require.NoError(t, err)
	assert.True(t, ok, "first claim succeeds")

	ok, err = adapter.Claim(ctx, "test-idem-key")
	require.NoError(t, err)
	assert.False(t, ok, "second claim fails")

	ttl, err := client.TTL(ctx, idempotencyKeyPrefix+"test-idem-key").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Hour)

	require.NoError(t, adapter.Release(ctx, "test-idem-key"))
	ok, err = adapter.Claim(ctx, "test-idem-key")
	require.NoError(t, err)
	assert.True(t, ok, "claim after release succeeds")
	adapter.Release(ctx, "test-idem-key")
}

func TestRedisClaim_Concurrent(t *testing.T) {
	client := getRedisClient(t)
	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	client.Del(ctx, idempotencyKeyPrefix+"concurrent-idem-key")
	t.Cleanup(func() { client.Del(context.Background(), idempotencyKeyPrefix+"concurrent-idem-key") })

	var successCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := adapter.Claim(ctx, "concurrent-idem-key")
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if ok {
				successCount.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successCount.Load())
}

func TestMemoryGuard(t *testing.T) {
	ctx := context.Background()
	guard := NewMemoryGuard()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	guard.now = func() time.Time { return now }

	ok, _ := guard.Claim(ctx, "k")
	assert.True(t, ok)
	ok, _ = guard.Claim(ctx, "k")
	assert.False(t, ok)

	now = now.Add(idempotencyKeyTTL + time.Second)
	ok, _ = guard.Claim(ctx, "k")
	assert.True(t, ok, "expired key can be claimed again")

	require.NoError(t, guard.Release(ctx, "k"))
	ok, _ = guard.Claim(ctx, "k")
	assert.True(t, ok)
}

func TestMemoryGuard_SweepsExpiredKeys(t *testing.T) {
	ctx := context.Background()
	guard := NewMemoryGuard()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	guard.now = func() time.Time { return now }

	for _, key := range []string{"a", "b", "c"} {
		ok, err := guard.Claim(ctx, key)
		require.NoError(t, err)
		require.True(t, ok)
	}

	now = now.Add(memoryGuardSweepInterval)
	ok, _ := guard.Claim(ctx, "d")
	require.True(t, ok)
	assert.Len(t, guard.claimed, 4, "live keys survive a sweep")

	now = now.Add(idempotencyKeyTTL)
	ok, _ = guard.Claim(ctx, "e")
	require.True(t, ok)
	assert.Len(t, guard.claimed, 1)
	assert.Contains(t, guard.claimed, "e")
}
