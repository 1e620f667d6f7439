package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/braincargo/brainblog/internal/config"
	"github.com/braincargo/brainblog/internal/services/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearVendorKeys(t *testing.T) {
	for _, key := range []string{"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "XAI_API_KEY", "GEMINI_API_KEY"} {
		t.Setenv(key, "")
	}
}

func TestBuild_NoBackends(t *testing.T) {
	clearVendorKeys(t)
	cfg := &config.Config{PipelineConfigPath: filepath.Join(t.TempDir(), "missing.yaml")}

	d, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	defer d.Close()

	assert.Nil(t, d.Pipeline, "no vendor key means no providers")
	assert.Nil(t, d.Blogs)
	assert.Nil(t, d.Queries)
	assert.Nil(t, d.Redis)
	assert.Nil(t, d.Enqueuer)
	assert.Nil(t, d.Storage)
	assert.Nil(t, d.Search)

	_, err = d.Indexer().RebuildIndex(context.Background(), nil)
	assert.ErrorIs(t, err, storage.ErrNotConfigured)
}

func TestBuild_WithPipeline(t *testing.T) {
	clearVendorKeys(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
providers:
  openai:
    type: openai
    api_key: sk-test
    models:
      standard: gpt-4o
`), 0o644))

	cfg := &config.Config{
		PipelineConfigPath: path,
		PromptsDir:         dir,
		Storage: config.StorageConfig{
			URL:             "https://storage.example.com",
			BlogPostsBucket: "blog",
		},
	}

	d, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	defer d.Close()

	require.NotNil(t, d.Pipeline)
	assert.Equal(t, 1, d.Pipeline.Providers().Len())
	assert.NotNil(t, d.Blogs)
	assert.NotNil(t, d.Storage)
	assert.Nil(t, d.Search, "search needs a database")
	assert.Same(t, d.Blogs, d.Indexer())
}

func TestBuild_BadRedisURL(t *testing.T) {
	clearVendorKeys(t)
	cfg := &config.Config{RedisURL: "not a url", PipelineConfigPath: filepath.Join(t.TempDir(), "p.yaml")}

	_, err := Build(context.Background(), cfg)
	assert.ErrorContains(t, err, "invalid redis url")
}
