package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/braincargo/brainblog/internal/cache"
	"github.com/braincargo/brainblog/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const articlePage = `<!DOCTYPE html>
<html><head>
<title> Owning Your AI </title>
<meta name="description" content="Why local models matter">
<script>var tracking = true;</script>
</head><body>
<nav><a href="/">Home</a><a href="/about">About</a></nav>
<article>
<h1>Owning Your AI</h1>
<p>Owning your AI models means your data stays with you. Centralized providers see every prompt you send,
and they decide what the model may say. Running models locally changes that balance of power.</p>
<p>Open weights, cheap inference hardware and better tooling have made self-hosting practical for small teams.
Teams can fine-tune on private data without handing it to anyone else.</p>
<p>The tradeoff is operational work: updates, evaluation and monitoring become your responsibility.</p>
</article>
<footer>Copyright</footer>
</body></html>`

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Get(ctx context.Context, url string) (*cache.CachedArticle, error) {
	args := m.Called(url)
	a, _ := args.Get(0).(*cache.CachedArticle)
	return a, args.Error(1)
}

func (m *mockCache) Set(ctx context.Context, url string, article *cache.CachedArticle, ttl time.Duration) error {
	return m.Called(url, article, ttl).Error(0)
}

func fastRetry() utils.RetryConfig {
	cfg := utils.FetchRetryConfig()
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = time.Millisecond
	return cfg
}

func TestScrape(t *testing.T) {
	var userAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(articlePage))
	}))
	defer srv.Close()

	c := &mockCache{}
	c.On("Get", srv.URL+"/post").Return(nil, nil)
	c.On("Set", srv.URL+"/post", mock.MatchedBy(func(a *cache.CachedArticle) bool {
		return a.Title == "Owning Your AI" && a.Content != ""
	}), cache.ArticleTTL).Return(nil)

	s := New(c, WithRetryConfig(fastRetry()))
	got, err := s.Scrape(context.Background(), srv.URL+"/post")

	require.NoError(t, err)
	assert.Equal(t, "Owning Your AI", got.Title)
	assert.Equal(t, "Why local models matter", got.Description)
	assert.Contains(t, got.Content, "Owning your AI models means your data stays with you.")
	assert.NotContains(t, got.Content, "tracking")
	assert.NotContains(t, got.Content, "\n")
	assert.False(t, got.Cached)
	assert.Contains(t, userAgent, "Mozilla/5.0")
	assert.True(t, strings.HasPrefix(got.PipelineContent(), "Owning Your AI\n\n"))
	c.AssertExpectations(t)
}

func TestScrape_CacheHit(t *testing.T) {
	c := &mockCache{}
	c.On("Get", "https://example.com/a").Return(&cache.CachedArticle{URL: "https://example.com/a", Title: "Cached", Content: "body"}, nil)

	s := New(c)
	got, err := s.Scrape(context.Background(), "https://example.com/a")

	require.NoError(t, err)
	assert.True(t, got.Cached)
	assert.Equal(t, "Cached", got.Title)
	c.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything)
}

func TestScrape_Errors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		switch r.URL.Path {
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/down":
			w.WriteHeader(http.StatusServiceUnavailable)
		case "/json":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{}`))
		case "/empty":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<html><head><title>x</title></head><body>   </body></html>`))
		}
	}))
	defer srv.Close()

	s := New(nil, WithRetryConfig(fastRetry()))
	ctx := context.Background()

	t.Run("invalid url", func(t *testing.T) {
		_, err := s.Scrape(ctx, "ftp://example.com")
		assert.ErrorIs(t, err, ErrInvalidURL)
		_, err = s.Scrape(ctx, "not a url")
		assert.ErrorIs(t, err, ErrInvalidURL)
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		calls.Store(0)
		_, err := s.Scrape(ctx, srv.URL+"/missing")
		assert.ErrorIs(t, err, ErrFetchFailed)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("server errors are retried", func(t *testing.T) {
		calls.Store(0)
		_, err := s.Scrape(ctx, srv.URL+"/down")
		assert.ErrorContains(t, err, "status 503")
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("non html", func(t *testing.T) {
		_, err := s.Scrape(ctx, srv.URL+"/json")
		assert.ErrorIs(t, err, ErrNotHTML)
	})

	t.Run("no content", func(t *testing.T) {
		_, err := s.Scrape(ctx, srv.URL+"/empty")
		assert.ErrorIs(t, err, ErrNoContent)
	})
}

func TestExtract_CapsContent(t *testing.T) {
	page := "<html><head><title>Long</title></head><body><article><p>" +
		strings.Repeat("ownership matters ", 800) + "</p></article></body></html>"

	got, err := Extract([]byte(page), nil)
	require.NoError(t, err)
	assert.Equal(t, MaxContentChars, utf8.RuneCountInString(got.Content))
}

func TestMetaDescription_OpenGraphFallback(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<html><head><meta name="description" content=" "><meta property="og:description" content="From OG"></head></html>`))
	require.NoError(t, err)
	assert.Equal(t, "From OG", metaDescription(doc))
}

func TestFallbackText(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"main wins", `<main>Main text</main><article>Article</article>`, "Main text"},
		{"article", `<div>noise</div><article>Article text</article>`, "Article text"},
		{"content div", `<div class="post-content">Post body</div><div>other</div>`, "Post body"},
		{"body", `<nav>menu</nav><p>Just a paragraph</p><footer>foot</footer>`, "Just a paragraph"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := goquery.NewDocumentFromReader(strings.NewReader("<html><body>" + tt.body + "</body></html>"))
			require.NoError(t, err)
			assert.Equal(t, tt.want, collapseWhitespace(fallbackText(doc)))
		})
	}
}
