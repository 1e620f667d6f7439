package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArticleCache_NilClient(t *testing.T) {
	ctx := context.Background()
	c := NewArticleCache(nil)

	got, err := c.Get(ctx, "https://example.com")
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, c.Set(ctx, "https://example.com", &CachedArticle{Title: "x"}, time.Minute))
	assert.NoError(t, c.Delete(ctx, "https://example.com"))

	var nilCache *ArticleCache
	got, err = nilCache.Get(ctx, "https://example.com")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestArticleCache_UnreachableRedisIsAMiss(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer client.Close()
	c := NewArticleCache(client)

	got, err := c.Get(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, c.Set(context.Background(), "https://example.com", &CachedArticle{}, time.Minute))
}

func TestHashKey(t *testing.T) {
	a := hashKey("article:", "https://example.com/a")
	b := hashKey("article:", "https://example.com/b")

	assert.NotEqual(t, a, b)
	assert.Len(t, a, len("article:")+64)
	assert.Equal(t, a, hashKey("article:", "https://example.com/a"))
}

func TestNewRedisClient(t *testing.T) {
	client, err := NewRedisClient(context.Background(), "")
	assert.NoError(t, err)
	assert.Nil(t, client)

	_, err = NewRedisClient(context.Background(), "not a url")
	assert.Error(t, err)
}
