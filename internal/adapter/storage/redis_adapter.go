package storage

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyPrefix     = "idempotency:"
	idempotencyKeyTTL        = 24 * time.Hour
	memoryGuardSweepInterval = time.Minute
)

// RedisAdapter claims idempotency keys with SETNX so that concurrent replicas agree on
// the first request to use a key.
type RedisAdapter struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client, ttl: idempotencyKeyTTL}
}

func (r *RedisAdapter) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, idempotencyKeyPrefix+key, 1, r.ttl).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) Release(ctx context.Context, key string) error {
	return r.client.Del(ctx, idempotencyKeyPrefix+key).Err()
}

// MemoryGuard is the single-process IdempotencyGuard used when Redis is not configured.
type MemoryGuard struct {
	mu        sync.Mutex
	ttl       time.Duration
	now       func() time.Time
	claimed   map[string]time.Time
	nextSweep time.Time
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{
		ttl:     idempotencyKeyTTL,
		now:     time.Now,
		claimed: make(map[string]time.Time),
	}
}

func (g *MemoryGuard) Claim(ctx context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if !now.Before(g.nextSweep) {
		g.sweep(now)
	}
	if expires, ok := g.claimed[key]; ok && now.Before(expires) {
		return false, nil
	}
	g.claimed[key] = now.Add(g.ttl)
	return true, nil
}

// sweep drops expired keys. Callers hold g.mu.
func (g *MemoryGuard) sweep(now time.Time) {
	for key, expires := range g.claimed {
		if !now.Before(expires) {
			delete(g.claimed, key)
		}
	}
	g.nextSweep = now.Add(memoryGuardSweepInterval)
}

func (g *MemoryGuard) Release(ctx context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.claimed, key)
	return nil
}
