package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/braincargo/brainblog/internal/config"
	"github.com/braincargo/brainblog/internal/services/ai"
	"github.com/braincargo/brainblog/internal/services/provider"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockProvider is a text-only provider.
type mockProvider struct {
	mock.Mock
	name string
	typ  provider.Type
}

func newMockProvider(name string, typ provider.Type, available bool) *mockProvider {
	m := &mockProvider{name: name, typ: typ}
	m.On("IsAvailable").Return(available).Maybe()
	return m
}

func (m *mockProvider) Name() string        { return m.name }
func (m *mockProvider) Type() provider.Type { return m.typ }

func (m *mockProvider) IsAvailable(ctx context.Context) bool {
	return m.Called().Bool(0)
}

func (m *mockProvider) GenerateCompletion(ctx context.Context, req provider.CompletionRequest) provider.CompletionResult {
	args := m.Called(req)
	res := args.Get(0).(provider.CompletionResult)
	if res.Provider == "" {
		res.Provider = m.name
	}
	return res
}

// mockImageProvider can also generate images.
type mockImageProvider struct {
	mockProvider
}

func newMockImageProvider(name string, typ provider.Type, available bool) *mockImageProvider {
	m := &mockImageProvider{mockProvider: mockProvider{name: name, typ: typ}}
	m.On("IsAvailable").Return(available).Maybe()
	return m
}

func (m *mockImageProvider) GenerateImage(ctx context.Context, req provider.ImageRequest) provider.ImageResult {
	args := m.Called(req)
	return args.Get(0).(provider.ImageResult)
}

type mockPersister struct {
	mock.Mock
}

func (m *mockPersister) PersistMedia(ctx context.Context, post *BlogPost) (*BlogPost, error) {
	args := m.Called(post)
	if fn, ok := args.Get(0).(func(*BlogPost) *BlogPost); ok {
		return fn(post), args.Error(1)
	}
	out, _ := args.Get(0).(*BlogPost)
	return out, args.Error(1)
}

func okResult(content string) provider.CompletionResult {
	return provider.CompletionResult{Success: true, Content: content, Model: "mock-model"}
}

func failedResult(msg string) provider.CompletionResult {
	return provider.CompletionResult{Success: false, Error: msg}
}

// withTemperature matches completion requests by their temperature, which
// differs per stage.
func withTemperature(temp float64) any {
	return mock.MatchedBy(func(req provider.CompletionRequest) bool {
		return req.Temperature == temp
	})
}

func withSize(size string) any {
	return mock.MatchedBy(func(req provider.ImageRequest) bool {
		return req.Size == size
	})
}

func testPipelineConfig(t *testing.T) *config.PipelineConfig {
	t.Helper()
	cfg := &config.PipelineConfig{
		Categories: map[string]config.CategoryConfig{
			"technology": {StylePersona: "Tech Expert", ProviderOverride: "openai"},
			"ai-ml":      {StylePersona: "AI Researcher", ProviderOverride: "anthropic"},
		},
	}
	cfg.ApplyDefaults(false)
	cfg.Blog.CallToAction = "Join us"
	return cfg
}

// testTemplates holds only a blog base template; other stages use their
// built-in defaults.
func testTemplates(t *testing.T) *ai.Templates {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "blog_generation"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ai.BlogBasePrompt),
		[]byte("Write a {category} post about {url} ({original_title}) as {style_persona}.\n{style_instructions}\n{content}"), 0o644))
	return ai.NewTemplates(dir)
}
