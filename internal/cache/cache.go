package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
)

// ArticleTTL is how long scraped source pages are reused.
const ArticleTTL = 24 * time.Hour

// NewRedisClient parses a redis:// URL and returns a traced client. An
// empty URL yields a nil client, which every cache in this package accepts.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("failed to instrument redis: %w", err)
	}
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// hashKey creates a cache key from a URL by hashing it.
func hashKey(prefix, url string) string {
	hash := sha256.Sum256([]byte(url))
	return fmt.Sprintf("%s%x", prefix, hash)
}
