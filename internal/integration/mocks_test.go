// Package integration runs the HTTP API, the pipeline and the publisher
// together against in-memory vendors and stores.
package integration

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/braincargo/brainblog/internal/api"
	"github.com/braincargo/brainblog/internal/config"
	"github.com/braincargo/brainblog/internal/db"
	"github.com/braincargo/brainblog/internal/middleware"
	"github.com/braincargo/brainblog/internal/pipeline"
	"github.com/braincargo/brainblog/internal/services/ai"
	"github.com/braincargo/brainblog/internal/services/blogs"
	"github.com/braincargo/brainblog/internal/services/provider"
	"github.com/braincargo/brainblog/internal/services/scraper"
	"github.com/braincargo/brainblog/internal/services/storage"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
)

const (
	testSecret = "integration-secret"
	testIssuer = "brainblog"
)

// ============================================================================
// Vendors
// ============================================================================

// scriptedProvider answers each pipeline stage with a canned reply. Stages
// are told apart by their temperature.
type scriptedProvider struct {
	mu        sync.Mutex
	available bool
	blogReply string
	calls     []provider.CompletionRequest
}

func newScriptedProvider() *scriptedProvider {
	return &scriptedProvider{
		available: true,
		blogReply: `{"title":"Own Your Data","summary":"Why self custody matters.","content":"<p>One</p><p>Two</p><p>Three</p>","tags":["privacy"]}`,
	}
}

func (p *scriptedProvider) Name() string        { return "openai" }
func (p *scriptedProvider) Type() provider.Type { return provider.TypeOpenAI }

func (p *scriptedProvider) IsAvailable(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.available
}

func (p *scriptedProvider) GenerateCompletion(ctx context.Context, req provider.CompletionRequest) provider.CompletionResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, req)

	res := provider.CompletionResult{Success: true, Provider: "openai", Model: "gpt-test"}
	switch req.Temperature {
	case 0.3:
		res.Content = `{"category":"technology","confidence":0.9,"reasoning":"software"}`
	case 0.7:
		res.Content = p.blogReply
	default:
		res.Success = false
		res.Error = "unexpected stage"
	}
	return res
}

func (p *scriptedProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

// fakeScraper serves fixed articles by URL.
type fakeScraper struct {
	articles map[string]*scraper.Article
}

func (f *fakeScraper) Scrape(ctx context.Context, rawURL string) (*scraper.Article, error) {
	if a, ok := f.articles[rawURL]; ok {
		return a, nil
	}
	return nil, errors.New("fetch failed (status 404)")
}

var articleText = strings.Repeat("Keeping your own keys means nobody can freeze your account. ", 8)

// ============================================================================
// Stores
// ============================================================================

// memStore is an in-memory object store.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}}
}

func (m *memStore) PutJSON(ctx context.Context, bucket, path string, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[bucket+"/"+path] = data
	return "https://cdn.example.com/" + path, nil
}

func (m *memStore) GetJSON(ctx context.Context, bucket, path string, v any) error {
	m.mu.Lock()
	data, ok := m.objects[bucket+"/"+path]
	m.mu.Unlock()
	if !ok {
		return storage.ErrNotFound
	}
	return json.Unmarshal(data, v)
}

func (m *memStore) index(t *testing.T) blogs.Index {
	t.Helper()
	var idx blogs.Index
	if err := m.GetJSON(context.Background(), "blog-posts", blogs.IndexKey("blog"), &idx); err != nil {
		t.Fatalf("index not written: %v", err)
	}
	return idx
}

// memPosts implements the post queries of *db.Queries in memory.
type memPosts struct {
	mu    sync.Mutex
	posts map[string]db.Post
}

func newMemPosts() *memPosts {
	return &memPosts{posts: map[string]db.Post{}}
}

func (m *memPosts) UpsertPost(ctx context.Context, arg db.UpsertPostParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts[arg.ID] = db.Post{
		ID:            arg.ID,
		Slug:          arg.Slug,
		Title:         arg.Title,
		Summary:       arg.Summary,
		Category:      arg.Category,
		Author:        arg.Author,
		SourceURL:     arg.SourceURL,
		SourceType:    arg.SourceType,
		StoragePath:   arg.StoragePath,
		FeaturedImage: arg.FeaturedImage,
		Provider:      arg.Provider,
		WordCount:     arg.WordCount,
		ReadingTime:   arg.ReadingTime,
		Tags:          arg.Tags,
		PublishedAt:   arg.PublishedAt,
		CreatedAt:     arg.PublishedAt,
	}
	return nil
}

func (m *memPosts) GetPost(ctx context.Context, id string) (db.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return db.Post{}, db.ErrNotFound
	}
	return p, nil
}

func (m *memPosts) ListPosts(ctx context.Context, arg db.ListPostsParams) ([]db.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rows []db.Post
	for _, p := range m.posts {
		if arg.Category == "" || p.Category == arg.Category {
			rows = append(rows, p)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].PublishedAt.After(rows[j].PublishedAt) })
	if int(arg.Offset) >= len(rows) {
		return nil, nil
	}
	rows = rows[arg.Offset:]
	if arg.Limit > 0 && int(arg.Limit) < len(rows) {
		rows = rows[:arg.Limit]
	}
	return rows, nil
}

func (m *memPosts) PostStats(ctx context.Context) (db.PostStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var stats db.PostStats
	for _, p := range m.posts {
		stats.TotalPosts++
		stats.TotalWords += int64(p.WordCount)
	}
	return stats, nil
}

// ============================================================================
// Wiring
// ============================================================================

type stack struct {
	router   chi.Router
	provider *scriptedProvider
	objects  *memStore
	posts    *memPosts
	blogs    *blogs.Service
}

func testConfig() *config.Config {
	return &config.Config{
		ServiceVersion: "integration",
		APIJWTSecret:   testSecret,
		APIJWTIssuer:   testIssuer,
		Storage: config.StorageConfig{
			URL:             "https://storage.example.com",
			BlogPostsBucket: "blog-posts",
			BlogPostsPrefix: "blog",
		},
		Blog: config.BlogConfig{
			Domain:          "braincargo.com",
			DefaultAuthor:   "AI Assistant",
			DefaultCategory: "technology",
		},
		Security: config.SecurityConfig{
			EnablePhoneAuth: true,
			AuthorizedPhone: "+1 555 123 4567",
			PhoneMatch:      config.PhoneMatchExact,
		},
	}
}

func newStack(t *testing.T) *stack {
	t.Helper()
	cfg := testConfig()

	off := false
	pcfg := &config.PipelineConfig{
		Categories: map[string]config.CategoryConfig{
			"technology": {StylePersona: "Tech Expert"},
			"news":       {StylePersona: "Reporter"},
		},
		ImageGeneration: config.StageConfig{Enabled: &off},
		MemeGeneration:  config.StageConfig{Enabled: &off},
	}
	pcfg.ApplyDefaults(false)

	p := newScriptedProvider()
	manager := pipeline.NewManager(pcfg, provider.NewSetFrom(p), ai.NewTemplates(t.TempDir()))

	objects := newMemStore()
	posts := newMemPosts()
	sc := &fakeScraper{articles: map[string]*scraper.Article{
		"https://example.com/keys": {URL: "https://example.com/keys", Title: "Your keys", Content: articleText},
		"https://example.com/thin": {URL: "https://example.com/thin", Title: "Thin", Content: "Too short."},
	}}
	svc := blogs.NewService(manager, sc, cfg.Blog,
		blogs.WithObjectStore(objects, cfg.Storage),
		blogs.WithPostStore(posts),
		blogs.WithClock(func() time.Time { return time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC) }),
	)

	srv := api.NewServer(cfg, svc, api.WithPipeline(manager), api.WithPosts(posts))
	router := chi.NewRouter()
	srv.Routes(router, middleware.AuthMiddleware(cfg))

	return &stack{router: router, provider: p, objects: objects, posts: posts, blogs: svc}
}

// ============================================================================
// Tokens
// ============================================================================

func signToken(secret string, claims jwt.MapClaims) string {
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	return token
}

func validToken() string {
	token, _ := middleware.IssueToken(testSecret, testIssuer, "admin", time.Hour, time.Now())
	return token
}

func bearer(r *http.Request, token string) *http.Request {
	r.Header.Set("Authorization", "Bearer "+token)
	return r
}
