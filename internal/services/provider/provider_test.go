package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/braincargo/brainblog/internal/config"
	apperrors "github.com/braincargo/brainblog/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelFor(t *testing.T) {
	cfg := testProviderConfig("openai", "")
	cfg.TestModels = map[string]string{config.TierStandard: "cheap-model"}

	p, err := NewOpenAI("openai", cfg)
	require.NoError(t, err)

	assert.Equal(t, "fast-model", p.ModelFor(config.TierFast))
	assert.Equal(t, "standard-model", p.ModelFor(config.TierCreative), "unknown tier falls back to standard")
	assert.Equal(t, "standard-model", p.ModelFor(""))

	cfg.TestMode = true
	testP, err := NewOpenAI("openai", cfg)
	require.NoError(t, err)
	assert.Equal(t, "cheap-model", testP.ModelFor(config.TierFast), "test models win in test mode")

	cfg = testProviderConfig("grok", "")
	cfg.Models = nil
	g, err := NewGrok("grok", cfg)
	require.NoError(t, err)
	assert.Equal(t, "grok-3", g.ModelFor(config.TierFast), "vendor default when nothing is configured")
}

func TestAnthropic_KnowledgeFiles(t *testing.T) {
	t.Setenv("ANTHROPIC_FILE_IDS", "file_1, file_2")

	var got map[string]any
	var beta string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, AnthropicVersion, r.Header.Get("anthropic-version"))
		beta = r.Header.Get("anthropic-beta")
		got = decodeBody(t, r)
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"{\"title\":\"T\"}"}],"usage":{"input_tokens":7,"output_tokens":3}}`))
	}))
	defer server.Close()

	p, err := NewAnthropic("anthropic", testProviderConfig("anthropic", server.URL))
	require.NoError(t, err)
	assert.True(t, p.IsAvailable(context.Background()))
	assert.False(t, SupportsImages(p))

	result := p.GenerateCompletion(context.Background(), CompletionRequest{Prompt: "write", UseKnowledgeFiles: true})

	require.True(t, result.Success, result.Error)
	assert.Equal(t, `{"title":"T"}`, result.Content)
	assert.Equal(t, 10, result.Usage.TotalTokens)
	assert.Equal(t, AnthropicFilesBeta, beta)
	assert.Equal(t, "You are a helpful AI assistant.", got["system"])

	messages := got["messages"].([]any)
	content := messages[0].(map[string]any)["content"].([]any)
	require.Len(t, content, 3)
	assert.Equal(t, "document", content[1].(map[string]any)["type"])
}

func TestAnthropic_NoKnowledgeFilesDegradesSilently(t *testing.T) {
	t.Setenv("ANTHROPIC_FILE_IDS", "")

	var beta string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		beta = r.Header.Get("anthropic-beta")
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"plain"}]}`))
	}))
	defer server.Close()

	p, err := NewAnthropic("anthropic", testProviderConfig("anthropic", server.URL))
	require.NoError(t, err)

	result := p.GenerateCompletion(context.Background(), CompletionRequest{Prompt: "write", UseKnowledgeFiles: true})

	require.True(t, result.Success, result.Error)
	assert.Empty(t, beta)
}

func TestGrok_ImageWithoutData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/models":
			w.WriteHeader(http.StatusOK)
		case "/images/generations":
			_, _ = w.Write([]byte(`{"data":[]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	p, err := NewGrok("grok", testProviderConfig("grok", server.URL))
	require.NoError(t, err)
	assert.True(t, p.IsAvailable(context.Background()))
	assert.True(t, SupportsImages(p))

	result := p.GenerateImage(context.Background(), ImageRequest{Prompt: "meme"})

	assert.False(t, result.Success)
	assert.Equal(t, "No image data received from Grok", result.Error)
	assert.Equal(t, "grok", result.Provider)
}

func TestGrok_UnavailableOnNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	p, err := NewGrok("grok", testProviderConfig("grok", server.URL))
	require.NoError(t, err)
	assert.False(t, p.IsAvailable(context.Background()))
}

func TestGemini_GenerateCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "standard-model:generateContent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"gemini says hi"}]}}],"usageMetadata":{"promptTokenCount":4,"candidatesTokenCount":3,"totalTokenCount":7}}`))
	}))
	defer server.Close()

	p, err := NewGemini(context.Background(), "gemini", testProviderConfig("gemini", server.URL))
	require.NoError(t, err)
	assert.True(t, p.IsAvailable(context.Background()))
	assert.False(t, SupportsImages(p))

	result := p.GenerateCompletion(context.Background(), CompletionRequest{Prompt: "hi", SystemPrompt: "sys"})

	require.True(t, result.Success, result.Error)
	assert.Equal(t, "gemini says hi", result.Content)
	assert.Equal(t, 7, result.Usage.TotalTokens)
}

func TestNewSet(t *testing.T) {
	t.Setenv("BRAINBLOG_TEST_GROK_KEY", "")

	configs := config.ProviderList{
		testProviderConfig("openai", "http://127.0.0.1:0"),
		{Name: "grok", Type: "grok", APIKeyEnv: "BRAINBLOG_TEST_GROK_KEY"},
		{Name: "mystery", Type: "mystery", APIKey: "k"},
		{Name: "untyped", APIKey: "k"},
		testProviderConfig("anthropic", ""),
	}

	set, err := NewSet(context.Background(), configs)
	require.NoError(t, err)
	require.Equal(t, 2, set.Len())
	assert.Equal(t, "openai", set.All()[0].Name())
	assert.Equal(t, "anthropic", set.All()[1].Name())

	_, err = NewSet(context.Background(), config.ProviderList{{Name: "grok", Type: "grok", APIKeyEnv: "BRAINBLOG_TEST_GROK_KEY"}})
	assert.ErrorIs(t, err, ErrNoProviders)
}

type stubProvider struct {
	name      string
	typ       Type
	available bool
}

func (s *stubProvider) Name() string                         { return s.name }
func (s *stubProvider) Type() Type                           { return s.typ }
func (s *stubProvider) IsAvailable(ctx context.Context) bool { return s.available }
func (s *stubProvider) GenerateCompletion(ctx context.Context, req CompletionRequest) CompletionResult {
	return CompletionResult{Provider: s.name, Success: true, Content: "ok"}
}

func TestSetFallback(t *testing.T) {
	down := &stubProvider{name: "openai", typ: TypeOpenAI}
	up := &stubProvider{name: "claude", typ: TypeAnthropic, available: true}
	set := NewSetFrom(down, up)

	assert.Equal(t, up, set.Fallback(context.Background(), "openai"))
	assert.Equal(t, up, set.Fallback(context.Background(), "anthropic"), "lookup by type")
	assert.Equal(t, up, set.Fallback(context.Background(), ""))
	assert.Equal(t, []Provider{up}, set.Available(context.Background()))
	assert.Equal(t, map[string]bool{"openai": false, "claude": true}, set.Status(context.Background()))

	assert.Nil(t, NewSetFrom(down).Fallback(context.Background(), "openai"))
}

func TestKnowledgeResolutionOrder(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteManifest(filepath.Join(dir, OpenAIManifestFile), OpenAIManifest{VectorStoreID: "vs_manifest"}))
	require.NoError(t, WriteManifest(filepath.Join(dir, AnthropicManifestFile), AnthropicManifest{
		UploadedFiles: []UploadedFile{{ID: "file_a"}, {ID: ""}, {ID: "file_b"}},
	}))

	cfg := config.ProviderConfig{KnowledgeDir: dir}

	t.Setenv("OPENAI_VECTOR_STORE_IDS", "")
	t.Setenv("ANTHROPIC_FILE_IDS", "")
	assert.Equal(t, "vs_manifest", VectorStoreID(cfg))
	assert.Equal(t, []string{"file_a", "file_b"}, AnthropicFileIDs(cfg))

	cfg.VectorStoreIDs = []string{"vs_config"}
	cfg.FileIDs = []string{"file_config"}
	assert.Equal(t, "vs_config", VectorStoreID(cfg))
	assert.Equal(t, []string{"file_config"}, AnthropicFileIDs(cfg))

	t.Setenv("OPENAI_VECTOR_STORE_IDS", "vs_env1, vs_env2")
	t.Setenv("ANTHROPIC_FILE_IDS", "file_env")
	assert.Equal(t, "vs_env1", VectorStoreID(cfg))
	assert.Equal(t, []string{"file_env"}, AnthropicFileIDs(cfg))

	t.Setenv("OPENAI_VECTOR_STORE_IDS", "")
	assert.Empty(t, VectorStoreID(config.ProviderConfig{KnowledgeDir: t.TempDir()}))
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{errors.New("OpenAI API error (status 429): slow down"), ErrorRateLimit},
		{errors.New("insufficient_quota"), ErrorCreditExhausted},
		{errors.New("Anthropic API error (status 401): invalid x-api-key"), ErrorAuth},
		{errors.New("context deadline exceeded"), ErrorTimeout},
		{errors.New("Grok API error (status 503): overloaded"), ErrorServer},
		{errors.New("Grok API error (status 400): bad prompt"), ErrorClient},
		{apperrors.NewProviderError("upstream", "UPSTREAM", nil), ErrorServer},
		{errors.New("something odd"), ErrorUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			pe := ClassifyError(tt.err, "openai")
			assert.Equal(t, tt.want, pe.Type)
			assert.Equal(t, "openai", pe.Provider)
		})
	}

	assert.Nil(t, ClassifyError(nil, "openai"))
	assert.True(t, ClassifyError(errors.New("OpenAI API error (status 401): bad key"), "openai").Permanent())
	assert.True(t, ClassifyMessage("insufficient_quota", "openai", 0).Permanent())
	assert.False(t, ClassifyError(errors.New("status 502"), "openai").Permanent())
	assert.False(t, (*ProviderError)(nil).Permanent())
}

func TestCachedAvailability(t *testing.T) {
	b := &base{name: "openai"}
	ctx := context.Background()
	calls := 0

	ok := b.cachedAvailability(ctx, func(context.Context) bool {
		calls++
		require.True(t, b.mu.TryLock(), "lock must be free while probing")
		b.mu.Unlock()
		return true
	})
	assert.True(t, ok)

	ok = b.cachedAvailability(ctx, func(context.Context) bool {
		calls++
		return false
	})
	assert.True(t, ok, "cached result within the TTL")
	assert.Equal(t, 1, calls)

	b.availAt = time.Now().Add(-2 * availabilityTTL)
	assert.False(t, b.cachedAvailability(ctx, func(context.Context) bool { panic("probe") }))
	assert.False(t, b.available)
}
