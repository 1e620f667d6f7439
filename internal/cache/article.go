package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedArticle is an extracted source page.
type CachedArticle struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// ArticleCache keeps scraped articles in Redis. A nil client turns every
// operation into a no-op, and Redis errors are logged rather than returned
// so a cache outage never blocks generation.
type ArticleCache struct {
	client *redis.Client
	prefix string
}

func NewArticleCache(client *redis.Client) *ArticleCache {
	return &ArticleCache{
		client: client,
		prefix: "article:",
	}
}

// Get returns nil when the URL is not cached.
func (c *ArticleCache) Get(ctx context.Context, url string) (*CachedArticle, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}

	data, err := c.client.Get(ctx, hashKey(c.prefix, url)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		slog.Warn("Redis cache get failed", "error", err)
		return nil, nil
	}

	var article CachedArticle
	if err := json.Unmarshal(data, &article); err != nil {
		slog.Warn("Failed to unmarshal cached article", "error", err)
		return nil, nil
	}
	return &article, nil
}

func (c *ArticleCache) Set(ctx context.Context, url string, article *CachedArticle, ttl time.Duration) error {
	if c == nil || c.client == nil {
		return nil
	}

	data, err := json.Marshal(article)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, hashKey(c.prefix, url), data, ttl).Err(); err != nil {
		slog.Warn("Redis cache set failed", "error", err)
	}
	return nil
}

func (c *ArticleCache) Delete(ctx context.Context, url string) error {
	if c == nil || c.client == nil {
		return nil
	}
	if err := c.client.Del(ctx, hashKey(c.prefix, url)).Err(); err != nil {
		slog.Warn("Redis cache delete failed", "error", err)
	}
	return nil
}
