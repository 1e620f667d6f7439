package api

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/braincargo/brainblog/internal/config"
	"github.com/braincargo/brainblog/internal/db"
	apperrors "github.com/braincargo/brainblog/internal/errors"
	"github.com/braincargo/brainblog/internal/middleware"
	"github.com/braincargo/brainblog/internal/pipeline"
	"github.com/braincargo/brainblog/internal/services/blogs"
	"github.com/braincargo/brainblog/internal/services/search"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		ServiceVersion: "test",
		APIJWTSecret:   "test-secret",
		APIJWTIssuer:   "brainblog",
		Blog:           config.BlogConfig{Domain: "braincargo.com"},
		Security: config.SecurityConfig{
			EnablePhoneAuth: true,
			AuthorizedPhone: "+1 (555) 123-4567",
			PhoneMatch:      config.PhoneMatchExact,
		},
	}
}

func published(id, title string) *blogs.Published {
	return &blogs.Published{Post: &pipeline.BlogPost{ID: id, Title: title}, Provider: "openai"}
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestHandleGenerate(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		setup          func(g *MockGenerator)
		nilGenerator   bool
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "invalid JSON",
			body:           "{not json",
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Invalid JSON",
		},
		{
			name:           "missing input",
			body:           `{"title":"only a title"}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Missing input: provide url, topic, or content",
		},
		{
			name:           "invalid url",
			body:           `{"url":"ftp://example.com/file"}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Invalid URL: must be an absolute http(s) URL",
		},
		{
			name:           "no pipeline",
			body:           `{"topic":"local AI"}`,
			nilGenerator:   true,
			expectedStatus: http.StatusServiceUnavailable,
			expectedError:  "Pipeline system not available",
		},
		{
			name: "url success",
			body: `{"url":" https://example.com/post ","title":"Custom"}`,
			setup: func(g *MockGenerator) {
				g.On("FromURL", "https://example.com/post", "Custom").Return(published("ab12cd34", "Custom"), nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "scrape failure",
			body: `{"url":"https://example.com/gone"}`,
			setup: func(g *MockGenerator) {
				g.On("FromURL", "https://example.com/gone", "").Return(nil,
					apperrors.NewScraperError("Failed to extract content from URL", "SCRAPE_FAILED", errors.New("status 404")))
			},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Failed to extract content from URL: status 404",
		},
		{
			name: "topic success",
			body: `{"topic":"privacy","style":"casual"}`,
			setup: func(g *MockGenerator) {
				g.On("FromTopic", "privacy", "casual").Return(published("t1", "Privacy"), nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "content generation failure",
			body: `{"content":"some words","title":"T"}`,
			setup: func(g *MockGenerator) {
				g.On("FromContent", "some words", "T").Return(nil,
					apperrors.NewGenerationError("All providers failed", "GENERATION_FAILED", nil))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "All providers failed",
		},
		{
			name: "unexpected error hides details",
			body: `{"topic":"x"}`,
			setup: func(g *MockGenerator) {
				g.On("FromTopic", "x", "").Return(nil, errors.New("pq: connection refused"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &MockGenerator{}
			if tt.setup != nil {
				tt.setup(gen)
			}
			var g Generator = gen
			if tt.nilGenerator {
				g = nil
			}
			srv := NewServer(testConfig(), g)

			req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rr := httptest.NewRecorder()
			srv.HandleGenerate(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			body := decodeBody(t, rr)
			if tt.expectedError != "" {
				assert.Equal(t, false, body["success"])
				assert.Equal(t, tt.expectedError, body["error"])
			} else {
				assert.Equal(t, true, body["success"])
				assert.NotNil(t, body["blog"])
			}
			gen.AssertExpectations(t)
		})
	}
}

func postWebhook(srv *Server, form url.Values) (*httptest.ResponseRecorder, TwiML) {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	srv.HandleWebhook(rr, req)

	var reply TwiML
	_ = xml.Unmarshal(rr.Body.Bytes(), &reply)
	return rr, reply
}

func TestHandleWebhook_Unauthorized(t *testing.T) {
	gen := &MockGenerator{}
	srv := NewServer(testConfig(), gen)

	rr, reply := postWebhook(srv, url.Values{"From": {"+15559999999"}, "Body": {"https://example.com"}})

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/xml", rr.Header().Get("Content-Type"))
	assert.Equal(t, msgUnauthorized, reply.Message)
	gen.AssertNotCalled(t, "FromURL", mock.Anything, mock.Anything)
}

func TestHandleWebhook_NoURLs(t *testing.T) {
	srv := NewServer(testConfig(), &MockGenerator{})

	_, reply := postWebhook(srv, url.Values{"From": {"15551234567"}, "Body": {"hello there"}})

	assert.Equal(t, msgNoURLs, reply.Message)
}

func TestHandleWebhook_ProcessesAtMostThree(t *testing.T) {
	gen := &MockGenerator{}
	gen.On("FromURL", "https://a.example.com/one", "").Return(published("1", "Post & One"), nil)
	gen.On("FromURL", "https://b.example.com/two", "").Return(published("2", "Post Two"), nil)
	gen.On("FromURL", "https://c.example.com/three", "").Return(nil, errors.New("scrape failed"))
	srv := NewServer(testConfig(), gen)

	body := "read https://a.example.com/one and https://b.example.com/two, https://c.example.com/three https://d.example.com/four"
	_, reply := postWebhook(srv, url.Values{"From": {"+15551234567"}, "Body": {body}})

	assert.Contains(t, reply.Message, "Processed 4 URL(s)")
	assert.Contains(t, reply.Message, "Successfully generated 2 blog post(s):\n• Post & One\n• Post Two\n")
	assert.Contains(t, reply.Message, "Failed to process 1 URL(s):\n• https://c.example.com/three...\n")
	assert.True(t, strings.HasSuffix(reply.Message, "View your blog posts at braincargo.com/blog"))
	gen.AssertNumberOfCalls(t, "FromURL", 3)
}

func TestHandleWebhookInfo(t *testing.T) {
	srv := NewServer(testConfig(), nil)
	rr := httptest.NewRecorder()
	srv.HandleWebhookInfo(rr, httptest.NewRequest(http.MethodGet, "/webhook", nil))

	body := decodeBody(t, rr)
	assert.Equal(t, "active", body["status"])
}

func TestHealthEndpoints(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	t.Run("no providers", func(t *testing.T) {
		srv := NewServer(testConfig(), nil, WithClock(clock))

		rr := httptest.NewRecorder()
		srv.HandleHealth(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "degraded", decodeBody(t, rr)["status"])

		rr = httptest.NewRecorder()
		srv.HandleReadiness(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

		rr = httptest.NewRecorder()
		srv.HandleStartup(rr, httptest.NewRequest(http.MethodGet, "/health/startup", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	})

	t.Run("available provider", func(t *testing.T) {
		p := pipelineWith(&stubProvider{name: "openai", available: true}, &stubProvider{name: "grok"})
		srv := NewServer(testConfig(), &MockGenerator{}, WithPipeline(p), WithClock(clock))

		rr := httptest.NewRecorder()
		srv.HandleHealth(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
		body := decodeBody(t, rr)
		assert.Equal(t, "healthy", body["status"])
		assert.Equal(t, "2026-03-01T12:00:00Z", body["timestamp"])

		rr = httptest.NewRecorder()
		srv.HandleReadiness(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
		assert.Equal(t, http.StatusOK, rr.Code)

		rr = httptest.NewRecorder()
		srv.HandleLiveness(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))
		assert.Equal(t, "alive", decodeBody(t, rr)["status"])

		rr = httptest.NewRecorder()
		srv.HandleProvidersStatus(rr, httptest.NewRequest(http.MethodGet, "/providers/status", nil))
		assert.Equal(t, map[string]any{"openai": true, "grok": false}, decodeBody(t, rr)["providers"])

		rr = httptest.NewRecorder()
		srv.HandleMetrics(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		status := decodeBody(t, rr)["pipeline_status"].(map[string]any)
		assert.Equal(t, []any{"grok", "openai"}, status["providers"])
	})
}

func TestHandleDebugTestMode(t *testing.T) {
	cfg := testConfig()
	cfg.TestMode = true
	srv := NewServer(cfg, nil, WithPipeline(pipelineWith(&stubProvider{name: "openai", available: true})))

	rr := httptest.NewRecorder()
	srv.HandleDebugTestMode(rr, httptest.NewRequest(http.MethodGet, "/debug/test-mode", nil))

	body := decodeBody(t, rr)
	assert.Equal(t, true, body["test_mode"])
	providers := body["providers"].(map[string]any)
	openai := providers["openai"].(map[string]any)
	assert.Equal(t, "model-fast", openai["models"].(map[string]any)["fast"])
	assert.Equal(t, "openai", openai["provider_type"])
}

func adminToken(t *testing.T, cfg *config.Config) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "admin",
		"iss": cfg.APIJWTIssuer,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := token.SignedString([]byte(cfg.APIJWTSecret))
	require.NoError(t, err)
	return s
}

func passthrough(next http.Handler) http.Handler { return next }

func TestRouter(t *testing.T) {
	cfg := testConfig()
	posts := &MockPosts{}
	posts.On("ListPosts", db.ListPostsParams{Category: "ai", Limit: maxPageSize, Offset: 10}).
		Return([]db.Post{{ID: "a", Title: "A"}}, nil)
	srv := NewServer(cfg, nil, WithPosts(posts))
	router := chi.NewRouter()
	srv.Routes(router, middleware.AuthMiddleware(cfg))

	t.Run("unknown route", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, "Endpoint not found", decodeBody(t, rr)["error"])
	})

	t.Run("admin route without token", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/posts", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("admin route with token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/posts?category=ai&limit=500&offset=10", nil)
		req.Header.Set("Authorization", "Bearer "+adminToken(t, cfg))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		body := decodeBody(t, rr)
		assert.Len(t, body["posts"], 1)
		assert.Equal(t, float64(maxPageSize), body["limit"])
	})

	t.Run("public routes skip auth", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	posts.AssertExpectations(t)
}

func TestPostRoutes(t *testing.T) {
	cfg := testConfig()
	posts := &MockPosts{}
	posts.On("GetPost", "missing").Return(db.Post{}, db.ErrNotFound)
	posts.On("GetPost", "ab12cd34").Return(db.Post{ID: "ab12cd34", Slug: "own-your-ai"}, nil)
	posts.On("PostStats").Return(db.PostStats{TotalPosts: 3, Categories: []db.CategoryCount{{Category: "ai", Posts: 3}}}, nil)
	finder := &MockSearch{}
	finder.On("Related", "ab12cd34", 3).Return([]search.SearchResult{{ID: "b", Similarity: 0.9}}, nil)
	tasks := &MockEnqueuer{}
	tasks.On("EnqueueIndexRebuild").Return(nil)

	srv := NewServer(cfg, nil, WithPosts(posts), WithSearch(finder), WithRebuildEnqueuer(tasks))
	router := chi.NewRouter()
	srv.Routes(router, passthrough)

	tests := []struct {
		method, path string
		status       int
	}{
		{http.MethodGet, "/api/posts/missing", http.StatusNotFound},
		{http.MethodGet, "/api/posts/ab12cd34", http.StatusOK},
		{http.MethodGet, "/api/posts/ab12cd34/related?limit=3", http.StatusOK},
		{http.MethodGet, "/api/blog/stats", http.StatusOK},
		{http.MethodPost, "/api/blog/rebuild", http.StatusAccepted},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.status, rr.Code)
		})
	}

	posts.AssertExpectations(t)
	finder.AssertExpectations(t)
	tasks.AssertExpectations(t)
}

func TestAdminRoutes_Unavailable(t *testing.T) {
	srv := NewServer(testConfig(), nil)
	router := chi.NewRouter()
	srv.Routes(router, passthrough)

	for _, path := range []string{"/api/posts", "/api/posts/x", "/api/posts/x/related", "/api/blog/stats"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code, path)
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/blog/rebuild", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestSearchHandlers(t *testing.T) {
	finder := &MockSearch{}
	finder.On("SearchSemantic", "privacy", 5).Return(nil, search.ErrNoEmbedder)
	finder.On("SearchByTitle", "ai", 0).Return([]search.SearchResult{{ID: "a", Title: "Own AI"}}, nil)
	srv := NewServer(testConfig(), nil, WithSearch(finder))

	post := func(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		h(rr, httptest.NewRequest(http.MethodPost, "/api/search", bytes.NewBufferString(body)))
		return rr
	}

	assert.Equal(t, http.StatusBadRequest, post(srv.HandleSearchSemantic, `{"query":""}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(srv.HandleSearchByTitle, `nope`).Code)
	assert.Equal(t, http.StatusServiceUnavailable, post(srv.HandleSearchSemantic, `{"query":"privacy","limit":5}`).Code)

	rr := post(srv.HandleSearchByTitle, `{"query":"ai"}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeBody(t, rr)["results"], 1)
	finder.AssertExpectations(t)
}
