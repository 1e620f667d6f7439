package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/braincargo/brainblog/internal/config"
	"github.com/braincargo/brainblog/internal/metrics"
	"github.com/braincargo/brainblog/internal/services/ai"
	"github.com/braincargo/brainblog/internal/services/provider"
	"github.com/braincargo/brainblog/internal/telemetry"
	"github.com/braincargo/brainblog/internal/utils"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

// MediaPersister copies temporary media URLs to permanent storage and
// returns the post with URLs replaced.
type MediaPersister interface {
	PersistMedia(ctx context.Context, post *BlogPost) (*BlogPost, error)
}

const (
	topicContentFormat = "Topic: %s\n\nThis is a blog post about %s. Please generate comprehensive content covering this topic."
	contentCategory    = "general"
)

// Manager runs the stages of a pipeline in order. It is safe for concurrent
// use; each call is independent.
type Manager struct {
	cfg       *config.PipelineConfig
	providers *provider.Set
	persister MediaPersister

	categorizer *Categorizer
	blog        *BlogGenerator
	images      *ImageGenerator
	memes       *MemeGenerator
}

type Option func(*Manager)

// WithMediaPersister enables the media storage stage.
func WithMediaPersister(p MediaPersister) Option {
	return func(m *Manager) {
		m.persister = p
	}
}

// New constructs the providers from cfg and wires every stage. It fails
// when no provider can be constructed.
func New(ctx context.Context, cfg *config.PipelineConfig, promptsDir string, opts ...Option) (*Manager, error) {
	providers, err := provider.NewSet(ctx, cfg.Providers)
	if err != nil {
		return nil, err
	}
	mode := ""
	if cfg.Environment.TestMode {
		mode = " (test mode)"
	}
	slog.Info("Pipeline providers initialized"+mode, "count", providers.Len())
	return NewManager(cfg, providers, ai.NewTemplates(promptsDir), opts...), nil
}

func NewManager(cfg *config.PipelineConfig, providers *provider.Set, templates *ai.Templates, opts ...Option) *Manager {
	m := &Manager{
		cfg:         cfg,
		providers:   providers,
		categorizer: NewCategorizer(cfg, providers, templates),
		blog:        NewBlogGenerator(cfg, providers, templates),
		images:      NewImageGenerator(cfg, providers, templates),
		memes:       NewMemeGenerator(cfg, providers, templates),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Providers() *provider.Set {
	return m.providers
}

func (m *Manager) Config() *config.PipelineConfig {
	return m.cfg
}

// ProcessURL runs the full pipeline. Categorization and blog generation are
// mandatory; image, meme, embedding and storage failures are recorded in
// the steps and do not fail the run.
func (m *Manager) ProcessURL(ctx context.Context, req Request) *Result {
	ctx, span := telemetry.Tracer("pipeline").Start(ctx, "pipeline.process_url")
	defer span.End()
	span.SetAttributes(attribute.String("pipeline.url", req.URL))

	result := &Result{URL: req.URL, CustomTitle: req.CustomTitle}
	slog.Info("Starting pipeline", "url", req.URL, "content_length", len(req.Content))

	if err := m.run(ctx, req, result); err != nil {
		result.Success = false
		result.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Pipeline failed", "url", req.URL, "error", err)
	} else {
		result.Success = true
		slog.Info("Pipeline completed", "url", req.URL, "title", result.Steps.BlogGeneration.Data.Title)
	}

	metrics.PipelineRunsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", SourceURL),
		attribute.Bool("success", result.Success),
	))
	return result
}

func (m *Manager) run(ctx context.Context, req Request, result *Result) error {
	categorization := m.categorizer.Categorize(ctx, req.URL, req.Content, req.CustomTitle)
	result.Steps.Categorization = &categorization
	if !categorization.Success {
		return fmt.Errorf("Categorization failed: %s", categorization.Error)
	}
	category := categorization.Category
	slog.Info("Content categorized", "category", category, "method", categorization.Method, "confidence", categorization.Confidence)

	blog := m.blog.Generate(ctx, req.URL, req.Content, category, req.CustomTitle, &categorization)
	result.Steps.BlogGeneration = &blog
	if !blog.Success {
		return fmt.Errorf("Blog generation failed: %s", blog.Error)
	}
	post := blog.Data
	post.ID = uuid.NewString()[:8]
	post.SourceURL = req.URL
	slog.Info("Blog post generated", "id", post.ID, "title", post.Title, "provider", blog.Provider)

	var image *FeaturedImage
	if m.cfg.ImageGeneration.IsEnabled() {
		instructions := m.images.GenerateInstructions(ctx, post, category)
		result.Steps.ImageInstructions = &instructions
		if instructions.Success {
			img := m.images.GenerateImage(ctx, instructions.Data, post, category)
			image = &img
			result.Steps.FeaturedImage = image
			if !img.Success {
				slog.Warn("Featured image creation failed", "error", img.Error)
			}
		} else {
			slog.Warn("Image instructions failed", "error", instructions.Error)
		}
	}

	var meme *MemeResult
	if m.cfg.MemeGeneration.IsEnabled() {
		res := m.memes.Generate(ctx, post, category)
		meme = &res
		result.Steps.MemeGeneration = meme
		if !res.Success {
			slog.Warn("Meme generation failed", "error", res.Error)
		}
	}

	if image != nil || meme != nil {
		var okImage *FeaturedImage
		if image != nil && image.Success {
			okImage = image
		}
		var okMeme *Meme
		if meme != nil && meme.Success {
			okMeme = meme.Data
		}
		post = EmbedMedia(post, okImage, okMeme)
		result.Steps.MediaEmbedding = &StepStatus{Success: true}
	}

	if m.persister != nil && post.Media.HasMedia() {
		start := time.Now()
		persisted, err := m.persister.PersistMedia(ctx, post)
		metrics.RecordStage(ctx, StageMediaStorage, start, err == nil)
		if err != nil {
			slog.Error("Media storage failed", "error", err)
			result.Steps.MediaStorage = &StepStatus{Success: false, Error: err.Error()}
		} else {
			post = persisted
			result.Steps.MediaStorage = &StepStatus{Success: true}
		}
	}

	result.Steps.BlogGeneration.Data = post
	return nil
}

// ProcessTopic writes a post about a topic without categorization or media.
// style selects the category and defaults to technology.
func (m *Manager) ProcessTopic(ctx context.Context, topic, style string) (*BlogResult, error) {
	category := style
	if category == "" {
		category = "technology"
	}
	content := fmt.Sprintf(topicContentFormat, topic, topic)
	res, err := m.generateDirect(ctx, SourceTopic, content, category, "")
	if err != nil {
		return res, err
	}
	res.Data.SourceTopic = topic
	return res, nil
}

// ProcessContent turns caller supplied text into a post in the general
// category.
func (m *Manager) ProcessContent(ctx context.Context, content, title string) (*BlogResult, error) {
	res, err := m.generateDirect(ctx, SourceContent, content, contentCategory, title)
	if err != nil {
		return res, err
	}
	res.Data.CustomTitle = title
	return res, nil
}

func (m *Manager) generateDirect(ctx context.Context, source, content, category, title string) (*BlogResult, error) {
	ctx, span := telemetry.Tracer("pipeline").Start(ctx, "pipeline.process_"+source)
	defer span.End()

	categorization := &Categorization{Category: category, Success: true}
	res := m.blog.Generate(ctx, "", content, category, title, categorization)

	metrics.PipelineRunsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", source),
		attribute.Bool("success", res.Success),
	))
	if !res.Success {
		err := errors.New("Blog generation failed: " + res.Error)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return &res, err
	}

	post := res.Data
	words := utils.WordCount(post.Content)
	post.ID = uuid.NewString()[:8]
	post.SourceType = source
	post.GeneratedAt = time.Now().UTC()
	post.WordCount = words
	post.ReadingTime = max(1, words/200)

	slog.Info("Direct generation completed", "source", source, "title", post.Title)
	return &res, nil
}

// HealthCheck reports provider availability. Overall health requires every
// provider to be available.
func (m *Manager) HealthCheck(ctx context.Context) Health {
	h := Health{
		ConfigLoaded: m.cfg != nil,
		Providers:    m.providers.Status(ctx),
		Steps: map[string]bool{
			"categorizer":     m.categorizer != nil,
			"blog_generator":  m.blog != nil,
			"image_generator": m.images != nil,
			"meme_generator":  m.memes != nil,
		},
		Overall: true,
	}
	for _, ok := range h.Providers {
		if !ok {
			h.Overall = false
		}
	}
	for _, ok := range h.Steps {
		if !ok {
			h.Overall = false
		}
	}
	return h
}
