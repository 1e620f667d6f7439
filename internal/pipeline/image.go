package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/braincargo/brainblog/internal/config"
	"github.com/braincargo/brainblog/internal/metrics"
	"github.com/braincargo/brainblog/internal/services/ai"
	"github.com/braincargo/brainblog/internal/services/provider"
)

const imageQualitySuffix = "high quality, professional photography style, sharp focus, well-lit"

// ImageGenerator produces the featured image: first a set of art
// instructions from an LLM, then the image itself.
type ImageGenerator struct {
	cfg       *config.PipelineConfig
	providers *provider.Set
	templates *ai.Templates
}

func NewImageGenerator(cfg *config.PipelineConfig, providers *provider.Set, templates *ai.Templates) *ImageGenerator {
	return &ImageGenerator{cfg: cfg, providers: providers, templates: templates}
}

func fallbackInstructions(title string) ImageInstructions {
	return ImageInstructions{
		Prompt:      "Professional featured image for blog post about " + title,
		Style:       "Clean, modern, professional",
		Composition: "Centered with subtle tech elements",
		Colors:      "Gold accent (#DDBC74) with modern palette",
		Mood:        "Innovative and empowering",
		Caption:     fmt.Sprintf("Featured image for %q", title),
	}
}

// GenerateInstructions always succeeds: when no provider can answer, fixed
// instructions derived from the title are returned.
func (g *ImageGenerator) GenerateInstructions(ctx context.Context, post *BlogPost, category string) InstructionsResult {
	start := time.Now()
	defer func() { metrics.RecordStage(ctx, StageImageInstructions, start, true) }()

	fallback := InstructionsResult{
		Success:  true,
		Data:     fallbackInstructions(post.Title),
		Provider: "fallback",
		Model:    "default",
	}

	p := g.providers.Fallback(ctx, string(provider.TypeOpenAI))
	if p == nil {
		slog.Warn("No provider available for image instructions, using defaults")
		return fallback
	}

	style := g.cfg.CategoryFor(category)
	tmpl := g.templates.Load(ai.ImageGenerationPrompt, ai.DefaultImageInstructions)
	prompt := ai.RenderOr(tmpl, ai.DefaultImageInstructions, map[string]string{
		"title":         post.Title,
		"summary":       post.Summary,
		"category":      category,
		"style_persona": style.StylePersona,
	})

	res := p.GenerateCompletion(ctx, provider.CompletionRequest{
		Prompt:       prompt,
		Tier:         config.TierCreative,
		Temperature:  0.8,
		MaxTokens:    500,
		OutputFormat: provider.FormatJSON,
	})
	if !res.Success {
		slog.Warn("Image instruction generation failed, using defaults", "provider", p.Name(), "error", res.Error)
		return fallback
	}

	return InstructionsResult{
		Success:  true,
		Data:     parseInstructions(res.Content),
		Provider: p.Name(),
		Model:    res.Model,
	}
}

func parseInstructions(text string) ImageInstructions {
	data, _, err := ai.ExtractJSON(text)
	if err != nil {
		slog.Warn("Could not parse image instructions, using defaults")
		data = map[string]any{}
	}
	return ImageInstructions{
		Prompt:      ai.String(data, "prompt", "Professional technology blog featured image with modern design"),
		Style:       ai.String(data, "style", "Clean, modern, professional"),
		Composition: ai.String(data, "composition", "Centered composition"),
		Colors:      ai.String(data, "colors", "Modern palette with gold accents"),
		Mood:        ai.String(data, "mood", "Professional and engaging"),
		Caption:     ai.String(data, "caption", "Blog featured image"),
	}
}

// BuildImagePrompt flattens instructions into a single image prompt of at
// most 400 characters plus an ellipsis.
func BuildImagePrompt(in ImageInstructions) string {
	var parts []string
	for _, s := range []string{in.Prompt, in.Style, in.Composition, in.Colors} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	if in.Mood != "" {
		parts = append(parts, in.Mood+" mood")
	}
	parts = append(parts, imageQualitySuffix)
	return capPrompt(strings.Join(parts, ", "))
}

// GenerateImage renders the featured image, trying providers in candidate
// order for the configured number of rounds.
func (g *ImageGenerator) GenerateImage(ctx context.Context, in ImageInstructions, post *BlogPost, category string) FeaturedImage {
	start := time.Now()
	prompt := BuildImagePrompt(in)
	alt := fmt.Sprintf("Featured image for %s - %s design", post.Title, in.Style)

	stage := g.cfg.ImageGeneration
	candidates := mediaCandidates(ctx, g.providers, g.cfg.CategoryFor(category).ImageProvider, stage.Provider)
	slog.Info("Image generation order", "category", category, "candidates", providerNames(candidates))

	res, lastErr := generateWithFallback(ctx, StageFeaturedImage, candidates, g.cfg.ErrorHandling.RetryAttempts,
		func(ctx context.Context, p provider.Provider, gen provider.ImageGenerator) provider.ImageResult {
			quality := "standard"
			if p.Type() == provider.TypeOpenAI {
				quality = stage.Quality
			}
			return gen.GenerateImage(ctx, provider.ImageRequest{
				Prompt:  prompt,
				Size:    stage.Size,
				Quality: quality,
				Style:   "natural",
			})
		})

	if !res.Success {
		metrics.RecordStage(ctx, StageFeaturedImage, start, false)
		return FeaturedImage{
			Success:      false,
			Error:        "All image generation providers failed: " + lastErr,
			AltText:      alt,
			Caption:      in.Caption,
			DallePrompt:  prompt,
			Provider:     "none",
			FallbackUsed: true,
		}
	}

	metrics.RecordStage(ctx, StageFeaturedImage, start, true)
	return FeaturedImage{
		Success:       true,
		ImageURL:      res.URL,
		ThumbnailURL:  res.URL,
		AltText:       alt,
		Caption:       in.Caption,
		DallePrompt:   prompt,
		RevisedPrompt: res.RevisedPrompt,
		Provider:      res.Provider,
		Model:         res.Model,
	}
}

func providerNames(ps []provider.Provider) []string {
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = p.Name()
	}
	return names
}
