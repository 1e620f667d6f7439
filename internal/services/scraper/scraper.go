package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/braincargo/brainblog/internal/cache"
	"github.com/braincargo/brainblog/internal/httpclient"
	"github.com/braincargo/brainblog/internal/metrics"
	"github.com/braincargo/brainblog/internal/utils"
	readability "github.com/go-shiori/go-readability"
)

const (
	// MaxContentChars caps the text handed to the pipeline.
	MaxContentChars = 8000

	maxPageBytes = 5 << 20
	userAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

// Article is the readable text of a source page.
type Article struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Description string    `json:"meta_description"`
	Content     string    `json:"content"`
	FetchedAt   time.Time `json:"fetched_at"`
	Cached      bool      `json:"cached"`
}

// PipelineContent is the text passed to the pipeline. The page title goes
// on the first line so the blog prompt can quote the original headline.
func (a *Article) PipelineContent() string {
	if a.Title == "" {
		return a.Content
	}
	return a.Title + "\n\n" + a.Content
}

// ArticleCache is implemented by cache.ArticleCache.
type ArticleCache interface {
	Get(ctx context.Context, url string) (*cache.CachedArticle, error)
	Set(ctx context.Context, url string, article *cache.CachedArticle, ttl time.Duration) error
}

type Scraper struct {
	httpClient *http.Client
	cache      ArticleCache
	retry      utils.RetryConfig
}

type Option func(*Scraper)

func WithHTTPClient(c *http.Client) Option {
	return func(s *Scraper) { s.httpClient = c }
}

func WithRetryConfig(cfg utils.RetryConfig) Option {
	return func(s *Scraper) { s.retry = cfg }
}

// New returns a scraper. c may be nil to disable caching.
func New(c ArticleCache, opts ...Option) *Scraper {
	s := &Scraper{
		httpClient: httpclient.New(httpclient.WithTimeout(30 * time.Second)),
		cache:      c,
		retry:      utils.FetchRetryConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func ValidateURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	return u, nil
}

// Scrape fetches rawURL and extracts its main text, serving from the cache
// when possible.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) (article *Article, err error) {
	u, err := ValidateURL(rawURL)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if cached, _ := s.cache.Get(ctx, rawURL); cached != nil {
			slog.Debug("Article cache hit", "url", rawURL)
			return &Article{
				URL:         cached.URL,
				Title:       cached.Title,
				Description: cached.Description,
				Content:     cached.Content,
				FetchedAt:   cached.FetchedAt,
				Cached:      true,
			}, nil
		}
	}

	defer metrics.RecordExternalCall(ctx, "scraper", "fetch", time.Now(), &err)

	page, err := utils.WithRetry(ctx, func(ctx context.Context) ([]byte, error) {
		return s.fetch(ctx, u.String())
	}, s.retry)
	if err != nil {
		return nil, err
	}

	article, err = Extract(page, u)
	if err != nil {
		return nil, err
	}
	article.URL = rawURL
	article.FetchedAt = time.Now().UTC()

	if s.cache != nil {
		_ = s.cache.Set(ctx, rawURL, &cache.CachedArticle{
			URL:         article.URL,
			Title:       article.Title,
			Description: article.Description,
			Content:     article.Content,
			FetchedAt:   article.FetchedAt,
		}, cache.ArticleTTL)
	}

	slog.Info("Article extracted", "url", rawURL, "title", article.Title, "chars", len(article.Content))
	return article, nil
}

func (s *Scraper) fetch(ctx context.Context, pageURL string) ([]byte, error) {
	ctx = httpclient.WithOperation(ctx, "scrape")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: status %d", ErrFetchFailed, resp.StatusCode)
	}
	if ct := strings.ToLower(resp.Header.Get("Content-Type")); ct != "" && !strings.Contains(ct, "html") && !strings.Contains(ct, "xml") {
		return nil, fmt.Errorf("%w: %s", ErrNotHTML, ct)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
}

// Extract pulls the title, meta description and main text out of an HTML
// page. Readability is tried first; when it finds nothing the text of the
// first main, article or content-like div is used, else the whole body.
func Extract(page []byte, pageURL *url.URL) (*Article, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	article := &Article{
		Title:       strings.TrimSpace(doc.Find("title").First().Text()),
		Description: metaDescription(doc),
	}

	text := ""
	if parsed, err := readability.FromReader(bytes.NewReader(page), pageURL); err == nil {
		text = parsed.TextContent
		if article.Title == "" {
			article.Title = strings.TrimSpace(parsed.Title)
		}
	}
	text = collapseWhitespace(text)
	if text == "" {
		text = collapseWhitespace(fallbackText(doc))
	}
	if text == "" {
		return nil, ErrNoContent
	}

	article.Content = utils.TruncateRunes(text, MaxContentChars)
	return article, nil
}

func metaDescription(doc *goquery.Document) string {
	for _, sel := range []string{`meta[name="description"]`, `meta[property="og:description"]`} {
		if content, ok := doc.Find(sel).First().Attr("content"); ok && strings.TrimSpace(content) != "" {
			return strings.TrimSpace(content)
		}
	}
	return ""
}

func fallbackText(doc *goquery.Document) string {
	doc.Find("script, style, noscript, nav, footer, header, aside").Remove()

	for _, sel := range []string{"main", "article", `div[class*="content"], div[class*="article"], div[class*="post"]`} {
		if node := doc.Find(sel).First(); node.Length() > 0 {
			return node.Text()
		}
	}
	return doc.Find("body").Text()
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
