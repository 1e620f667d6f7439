package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePipeline = `
providers:
  anthropic_main:
    type: anthropic
    api_key_env: TEST_ANTHROPIC_KEY
    models:
      standard: claude-3-5-sonnet-latest
  openai_main:
    type: openai
    api_key: ${TEST_OPENAI_KEY}
    default_temperature: 0.4
    models:
      fast: gpt-4o-mini
      standard: gpt-4o
    test_models:
      standard: gpt-4o-mini
    supported_sizes: ["1024x1024", "1792x1024"]
categories:
  technology:
    style_persona: Tech Expert
    provider_override: openai_main
  ai-ml:
    style_persona: AI Researcher
    image_provider: openai_main
image_generation:
  enabled: false
  size: 1024x1024
error_handling:
  retry_attempts: ${TEST_RETRY_ATTEMPTS}
environment:
  test_mode: false
`

func TestParsePipeline(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-test")
	t.Setenv("TEST_ANTHROPIC_KEY", "ak-test")
	t.Setenv("TEST_RETRY_ATTEMPTS", "5")

	cfg, err := ParsePipeline([]byte(samplePipeline), false)
	require.NoError(t, err)

	require.Len(t, cfg.Providers, 2)
	assert.Equal(t, "anthropic_main", cfg.Providers[0].Name, "document order is preserved")
	assert.Equal(t, "openai_main", cfg.Providers[1].Name)

	openai, ok := cfg.Providers.Get("openai_main")
	require.True(t, ok)
	assert.Equal(t, "sk-test", openai.ResolvedAPIKey())
	assert.Equal(t, 0.4, openai.DefaultTemperature)
	assert.Equal(t, 4000, openai.MaxTokens)
	assert.Equal(t, "1024x1024", openai.DefaultSize)

	anthropic, _ := cfg.Providers.Get("anthropic_main")
	assert.Equal(t, "ak-test", anthropic.ResolvedAPIKey())
	assert.Equal(t, 0.7, anthropic.DefaultTemperature)

	assert.False(t, cfg.ImageGeneration.IsEnabled())
	assert.True(t, cfg.MemeGeneration.IsEnabled())
	assert.Equal(t, "hd", cfg.ImageGeneration.Quality)
	assert.Equal(t, "openai", cfg.ImageGeneration.Provider)
	assert.Equal(t, 5, cfg.ErrorHandling.RetryAttempts)
	assert.Equal(t, "technology", cfg.Categorization.FallbackCategory)
	assert.Len(t, cfg.Categorization.Categories, len(DefaultCategories))
	assert.Equal(t, DefaultKeyElements, cfg.Blog.KeyElements)
}

func TestParsePipelineMissingEnvExpandsEmpty(t *testing.T) {
	os.Unsetenv("TEST_OPENAI_KEY")
	os.Unsetenv("TEST_RETRY_ATTEMPTS")

	cfg, err := ParsePipeline([]byte(samplePipeline), false)
	require.NoError(t, err)

	openai, _ := cfg.Providers.Get("openai_main")
	assert.Equal(t, "", openai.APIKey)
	assert.Equal(t, 3, cfg.ErrorHandling.RetryAttempts, "empty value falls back to default")
}

func TestParsePipelineTestMode(t *testing.T) {
	cfg, err := ParsePipeline([]byte(samplePipeline), true)
	require.NoError(t, err)

	assert.True(t, cfg.Environment.TestMode)
	for _, p := range cfg.Providers {
		assert.True(t, p.TestMode, p.Name)
	}
}

func TestCategoryForFallsBackToTechnology(t *testing.T) {
	cfg, err := ParsePipeline([]byte(samplePipeline), false)
	require.NoError(t, err)

	assert.Equal(t, "AI Researcher", cfg.CategoryFor("ai-ml").StylePersona)
	assert.Equal(t, "Tech Expert", cfg.CategoryFor("gardening").StylePersona)
}

func TestLoadPipelineMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadPipeline(filepath.Join(t.TempDir(), "missing.yaml"), false)
	require.NoError(t, err)

	names := make([]string, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"openai", "anthropic", "grok", "gemini"}, names)
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("EXPAND_ME", "value")

	tests := []struct {
		in   string
		want string
	}{
		{"${EXPAND_ME}", "value"},
		{"${NOT_SET_ANYWHERE_123}", ""},
		{"prefix-${EXPAND_ME}", "prefix-${EXPAND_ME}"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExpandEnv(tt.in), tt.in)
	}
}

func TestLoadPipelineShippedConfig(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-shipped")
	t.Setenv("KNOWLEDGE_DIR", "")

	cfg, err := LoadPipeline(filepath.Join("..", "..", "config", "pipeline.yaml"), false)
	require.NoError(t, err)

	names := make([]string, len(cfg.Providers))
	for i, p := range cfg.Providers {
		names[i] = p.Name
	}
	assert.Equal(t, []string{"openai", "anthropic", "grok", "gemini"}, names)

	openai, _ := cfg.Providers.Get("openai")
	assert.Equal(t, "sk-shipped", openai.ResolvedAPIKey())
	assert.Empty(t, openai.KnowledgeDir)
	assert.Equal(t, "gpt-4o-mini", openai.Models[TierFast])

	assert.Equal(t, "grok", cfg.CategoryFor("blockchain").ImageProvider)
	assert.Equal(t, "Tech Expert", cfg.CategoryFor("unknown").StylePersona)
	assert.True(t, cfg.ImageGeneration.IsEnabled())
	assert.Equal(t, 3, cfg.ErrorHandling.RetryAttempts)
	assert.Contains(t, cfg.Categorization.Categories, "ai-ml")
}
