// Package blogs turns a source into a stored, indexed blog post: it scrapes
// and validates the source, runs the pipeline and publishes the result.
package blogs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/braincargo/brainblog/internal/config"
	"github.com/braincargo/brainblog/internal/db"
	apperrors "github.com/braincargo/brainblog/internal/errors"
	"github.com/braincargo/brainblog/internal/metrics"
	"github.com/braincargo/brainblog/internal/pipeline"
	"github.com/braincargo/brainblog/internal/services/provider"
	"github.com/braincargo/brainblog/internal/services/scraper"
	"github.com/braincargo/brainblog/internal/utils"
	"github.com/braincargo/brainblog/internal/validation"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metaDescriptionLength = 160
	twitterCard           = "summary_large_image"
)

// Pipeline is implemented by *pipeline.Manager.
type Pipeline interface {
	ProcessURL(ctx context.Context, req pipeline.Request) *pipeline.Result
	ProcessTopic(ctx context.Context, topic, style string) (*pipeline.BlogResult, error)
	ProcessContent(ctx context.Context, content, title string) (*pipeline.BlogResult, error)
}

// Scraper is implemented by *scraper.Scraper.
type Scraper interface {
	Scrape(ctx context.Context, rawURL string) (*scraper.Article, error)
}

// ObjectStore is implemented by *storage.Client.
type ObjectStore interface {
	PutJSON(ctx context.Context, bucket, path string, v any) (string, error)
	GetJSON(ctx context.Context, bucket, path string, v any) error
}

// PostStore is implemented by *db.Queries.
type PostStore interface {
	UpsertPost(ctx context.Context, arg db.UpsertPostParams) error
}

// TaskEnqueuer schedules background work for a published post.
type TaskEnqueuer interface {
	EnqueueEmbedPost(ctx context.Context, postID string) error
}

type Service struct {
	pipeline Pipeline
	scraper  Scraper
	objects  ObjectStore
	posts    PostStore
	tasks    TaskEnqueuer

	blog      config.BlogConfig
	storage   config.StorageConfig
	validate  validation.ContentValidationConfig
	validator provider.Provider

	indexMu sync.Mutex
	now     func() time.Time
}

type Option func(*Service)

func WithObjectStore(store ObjectStore, cfg config.StorageConfig) Option {
	return func(s *Service) {
		s.objects = store
		s.storage = cfg
	}
}

func WithPostStore(posts PostStore) Option {
	return func(s *Service) { s.posts = posts }
}

func WithTaskEnqueuer(tasks TaskEnqueuer) Option {
	return func(s *Service) { s.tasks = tasks }
}

// WithContentValidation checks scraped and supplied content before any
// generation call. p is used for borderline pages and may be nil.
func WithContentValidation(cfg validation.ContentValidationConfig, p provider.Provider) Option {
	return func(s *Service) {
		s.validate = cfg
		s.validator = p
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(p Pipeline, sc Scraper, blog config.BlogConfig, opts ...Option) *Service {
	s := &Service{
		pipeline: p,
		scraper:  sc,
		blog:     blog,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Published is a stored post plus the run that produced it.
type Published struct {
	Post       *pipeline.BlogPost `json:"blog_post"`
	Provider   string             `json:"provider"`
	StorageKey string             `json:"storage_key,omitempty"`
	Stored     bool               `json:"stored"`
	Indexed    bool               `json:"indexed"`
	Pipeline   *pipeline.Result   `json:"pipeline,omitempty"`
}

// FromURL scrapes rawURL and runs the full pipeline on it.
func (s *Service) FromURL(ctx context.Context, rawURL, customTitle string) (*Published, error) {
	if s.scraper == nil {
		return nil, apperrors.NewConfigurationError("URL scraping is not configured", "SCRAPER_UNAVAILABLE", nil)
	}
	article, err := s.scraper.Scrape(ctx, rawURL)
	if err != nil {
		return nil, apperrors.NewScraperError("Failed to extract content from URL", "SCRAPE_FAILED", err)
	}

	if err := s.checkContent(ctx, article.Title, article.Content); err != nil {
		return nil, err
	}

	res := s.pipeline.ProcessURL(ctx, pipeline.Request{
		URL:         rawURL,
		Content:     article.PipelineContent(),
		CustomTitle: customTitle,
	})
	if !res.Success {
		return nil, apperrors.NewGenerationError(res.Error, "PIPELINE_FAILED", nil)
	}

	post := res.Post()
	post.SourceType = pipeline.SourceURL
	if customTitle != "" {
		post.CustomTitle = customTitle
	}
	published := s.Publish(ctx, post, res.Provider(), true)
	published.Pipeline = res
	return published, nil
}

// FromTopic writes a post about topic. Topics skip content validation.
func (s *Service) FromTopic(ctx context.Context, topic, style string) (*Published, error) {
	res, err := s.pipeline.ProcessTopic(ctx, topic, style)
	if err != nil {
		return nil, apperrors.NewGenerationError(err.Error(), "GENERATION_FAILED", nil)
	}
	return s.Publish(ctx, res.Data, res.Provider, false), nil
}

// FromContent turns caller supplied text into a post.
func (s *Service) FromContent(ctx context.Context, content, title string) (*Published, error) {
	if err := s.checkContent(ctx, title, content); err != nil {
		return nil, err
	}
	res, err := s.pipeline.ProcessContent(ctx, content, title)
	if err != nil {
		return nil, apperrors.NewGenerationError(err.Error(), "GENERATION_FAILED", nil)
	}
	return s.Publish(ctx, res.Data, res.Provider, false), nil
}

func (s *Service) checkContent(ctx context.Context, title, content string) error {
	res := validation.ValidateContent(ctx, title, content, s.validate, s.validator)
	if res.IsValid {
		return nil
	}
	slog.Warn("Content rejected", "reason", res.Reason, "confidence", res.Confidence)
	return apperrors.NewValidationError(
		"Content validation failed: "+res.Reason,
		"INVALID_CONTENT",
		"Provide a page or text that contains a complete article",
	)
}

// Publish fills in the publication fields of post, stores the document,
// updates the index and records the post in the database. Storage, database
// and queue failures are logged; the post is returned regardless.
func (s *Service) Publish(ctx context.Context, post *pipeline.BlogPost, providerName string, pipelineUsed bool) *Published {
	out := Enrich(post, s.blog, s.now(), providerName, pipelineUsed)
	published := &Published{Post: out, Provider: providerName}

	if s.objects != nil && s.storage.Configured() {
		key := StorageKey(s.storage.BlogPostsPrefix, out.GeneratedAt, out.Slug, out.ID)
		if _, err := s.objects.PutJSON(ctx, s.storage.BlogPostsBucket, key, out); err != nil {
			slog.Error("Failed to store blog post", "id", out.ID, "key", key, "error", err)
		} else {
			published.StorageKey = key
			published.Stored = true
			if err := s.updateIndex(ctx, entryFromPost(out, key)); err != nil {
				slog.Error("Failed to update blog index", "id", out.ID, "error", err)
			} else {
				published.Indexed = true
			}
		}
	}

	if s.posts != nil {
		if err := s.posts.UpsertPost(ctx, postParams(out, published.StorageKey, providerName)); err != nil {
			slog.Error("Failed to record blog post", "id", out.ID, "error", err)
		} else if s.tasks != nil {
			if err := s.tasks.EnqueueEmbedPost(ctx, out.ID); err != nil {
				slog.Warn("Failed to enqueue embedding", "id", out.ID, "error", err)
			}
		}
	}

	metrics.PostsPublishedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("category", out.Category),
		attribute.String("provider", providerName),
	))
	slog.Info("Blog post published", "id", out.ID, "slug", out.Slug, "stored", published.Stored)
	return published
}

// Enrich returns a copy of post with every publication field set. Values
// already present on post are kept.
func Enrich(post *pipeline.BlogPost, blog config.BlogConfig, now time.Time, providerName string, pipelineUsed bool) *pipeline.BlogPost {
	out := post.Clone()
	if out == nil {
		out = &pipeline.BlogPost{}
	}

	if out.ID == "" {
		out.ID = uuid.NewString()[:8]
	}
	if out.Author == "" {
		out.Author = blog.DefaultAuthor
	}
	if out.Category == "" {
		out.Category = blog.DefaultCategory
	}
	if out.CallToAction == "" {
		out.CallToAction = blog.CallToAction
	}
	if out.GeneratedAt.IsZero() {
		out.GeneratedAt = now.UTC()
	}
	if out.Slug == "" {
		out.Slug = utils.Slugify(out.Title)
	}
	if out.Slug == "" {
		out.Slug = "post"
	}

	out.WordCount = utils.WordCount(utils.StripTags(out.Content))
	out.ReadingTime = utils.ReadingMinutes(out.WordCount)

	if out.Media == nil {
		out.Media = &pipeline.Media{}
	}
	if out.Media.Images == nil {
		out.Media.Images = []string{}
	}
	if out.Media.Videos == nil {
		out.Media.Videos = []string{}
	}
	if out.Media.Thumbnails == nil {
		out.Media.Thumbnails = map[string]string{}
	}
	if out.Media.AltTexts == nil {
		out.Media.AltTexts = map[string]string{}
	}

	keywords := out.Tags
	if keywords == nil {
		keywords = []string{}
	}
	out.SEO = &pipeline.SEO{
		MetaDescription: utils.TruncateRunes(strings.TrimSpace(out.Summary), metaDescriptionLength),
		Keywords:        keywords,
		CanonicalURL:    blog.PostURL(out.Slug, out.ID),
		OGImage:         out.Media.FeaturedImage,
		TwitterCard:     twitterCard,
	}

	if out.Metadata == nil {
		out.Metadata = map[string]any{}
	}
	out.Metadata["provider"] = providerName
	out.Metadata["pipeline_used"] = pipelineUsed
	return out
}

// StorageKey is {prefix}/{YYYY}/{MM}/{DD}/{slug}-{id}.json.
func StorageKey(prefix string, at time.Time, slug, id string) string {
	at = at.UTC()
	return fmt.Sprintf("%s/%04d/%02d/%02d/%s-%s.json", prefix, at.Year(), int(at.Month()), at.Day(), slug, id)
}

func postParams(post *pipeline.BlogPost, key, providerName string) db.UpsertPostParams {
	doc, err := json.Marshal(post)
	if err != nil {
		doc = []byte("{}")
	}
	return db.UpsertPostParams{
		ID:            post.ID,
		Slug:          post.Slug,
		Title:         post.Title,
		Summary:       post.Summary,
		Category:      post.Category,
		Author:        post.Author,
		SourceURL:     post.SourceURL,
		SourceType:    post.SourceType,
		StoragePath:   key,
		FeaturedImage: post.Media.FeaturedImage,
		Provider:      providerName,
		WordCount:     int32(post.WordCount),
		ReadingTime:   int32(post.ReadingTime),
		Tags:          post.Tags,
		Document:      doc,
		PublishedAt:   post.GeneratedAt,
	}
}
