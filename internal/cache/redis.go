package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend is an optional distributed L2 tier for EmbeddingCache. A
// process restart drops the in-memory L1 entirely; Redis lets embeddings
// survive redeploys and be shared across replicas.
type RedisBackend struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisBackend parses addr as a redis:// URL and opens a client.
// Connectivity is not verified here; the first Get/Set failure logs and
// falls back to the in-memory tier alone.
func NewRedisBackend(addr string, ttl time.Duration) (*RedisBackend, error) {
	opts, err := redis.ParseURL(addr)
	if err != nil {
		return nil, fmt.Errorf("cache.NewRedisBackend: parse %q: %w", addr, err)
	}
	return &RedisBackend{client: redis.NewClient(opts), ttl: ttl}, nil
}

// Get fetches a vector from Redis. A miss or transport error both return
// ok=false; the caller treats either as "not cached".
func (b *RedisBackend) Get(ctx context.Context, queryHash string) ([]float32, bool) {
	raw, err := b.client.Get(ctx, redisKey(queryHash)).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("[EMBED-CACHE] redis get failed", "query_hash", queryHash, "error", err)
		}
		return nil, false
	}
	var vec []float32
	if err := json.Unmarshal(raw, &vec); err != nil {
		slog.Warn("[EMBED-CACHE] redis decode failed", "query_hash", queryHash, "error", err)
		return nil, false
	}
	return vec, true
}

// Set writes a vector to Redis with the backend's configured TTL. Errors
// are logged, not returned: Redis is a best-effort accelerator, never a
// requirement for correctness.
func (b *RedisBackend) Set(ctx context.Context, queryHash string, vec []float32) {
	raw, err := json.Marshal(vec)
	if err != nil {
		slog.Warn("[EMBED-CACHE] redis encode failed", "query_hash", queryHash, "error", err)
		return
	}
	if err := b.client.Set(ctx, redisKey(queryHash), raw, b.ttl).Err(); err != nil {
		slog.Warn("[EMBED-CACHE] redis set failed", "query_hash", queryHash, "error", err)
	}
}

// Close releases the underlying connection pool.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}

func redisKey(queryHash string) string {
	return "kenyalaw-rag:" + queryHash
}
