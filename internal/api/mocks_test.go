package api

import (
	"context"

	"github.com/braincargo/brainblog/internal/db"
	"github.com/braincargo/brainblog/internal/pipeline"
	"github.com/braincargo/brainblog/internal/services/blogs"
	"github.com/braincargo/brainblog/internal/services/provider"
	"github.com/braincargo/brainblog/internal/services/search"
	"github.com/stretchr/testify/mock"
)

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) published(args mock.Arguments) (*blogs.Published, error) {
	p, _ := args.Get(0).(*blogs.Published)
	return p, args.Error(1)
}

func (m *MockGenerator) FromURL(ctx context.Context, rawURL, customTitle string) (*blogs.Published, error) {
	return m.published(m.Called(rawURL, customTitle))
}

func (m *MockGenerator) FromTopic(ctx context.Context, topic, style string) (*blogs.Published, error) {
	return m.published(m.Called(topic, style))
}

func (m *MockGenerator) FromContent(ctx context.Context, content, title string) (*blogs.Published, error) {
	return m.published(m.Called(content, title))
}

type MockPosts struct {
	mock.Mock
}

func (m *MockPosts) GetPost(ctx context.Context, id string) (db.Post, error) {
	args := m.Called(id)
	return args.Get(0).(db.Post), args.Error(1)
}

func (m *MockPosts) ListPosts(ctx context.Context, arg db.ListPostsParams) ([]db.Post, error) {
	args := m.Called(arg)
	posts, _ := args.Get(0).([]db.Post)
	return posts, args.Error(1)
}

func (m *MockPosts) PostStats(ctx context.Context) (db.PostStats, error) {
	args := m.Called()
	return args.Get(0).(db.PostStats), args.Error(1)
}

type MockSearch struct {
	mock.Mock
}

func (m *MockSearch) results(args mock.Arguments) ([]search.SearchResult, error) {
	r, _ := args.Get(0).([]search.SearchResult)
	return r, args.Error(1)
}

func (m *MockSearch) Related(ctx context.Context, id string, limit int) ([]search.SearchResult, error) {
	return m.results(m.Called(id, limit))
}

func (m *MockSearch) SearchSemantic(ctx context.Context, query string, limit int) ([]search.SearchResult, error) {
	return m.results(m.Called(query, limit))
}

func (m *MockSearch) SearchByTitle(ctx context.Context, query string, limit int) ([]search.SearchResult, error) {
	return m.results(m.Called(query, limit))
}

type MockEnqueuer struct {
	mock.Mock
}

func (m *MockEnqueuer) EnqueueIndexRebuild(ctx context.Context) error {
	return m.Called().Error(0)
}

type stubProvider struct {
	name      string
	available bool
}

func (p *stubProvider) Name() string                         { return p.name }
func (p *stubProvider) Type() provider.Type                  { return provider.TypeOpenAI }
func (p *stubProvider) IsAvailable(ctx context.Context) bool { return p.available }
func (p *stubProvider) ModelFor(tier string) string          { return "model-" + tier }
func (p *stubProvider) GenerateCompletion(ctx context.Context, req provider.CompletionRequest) provider.CompletionResult {
	return provider.CompletionResult{Success: true, Provider: p.name}
}

type stubPipeline struct {
	set *provider.Set
}

func (s stubPipeline) Providers() *provider.Set { return s.set }

func (s stubPipeline) HealthCheck(ctx context.Context) pipeline.Health {
	return pipeline.Health{ConfigLoaded: true, Providers: s.set.Status(ctx), Overall: true}
}

func pipelineWith(providers ...provider.Provider) stubPipeline {
	return stubPipeline{set: provider.NewSetFrom(providers...)}
}
