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

const memeStyleSuffix = "internet meme style, bold text overlay, high contrast, clear readable text, popular social media meme format"

// MemeTemplates lists the formats the meme stage knows how to draw.
var MemeTemplates = []string{
	"drake_pointing", "distracted_boyfriend", "expanding_brain", "this_is_fine", "change_my_mind",
}

const defaultMemeTemplate = "drake_pointing"

// MemeGenerator writes a meme concept and tries to render it as an image.
// When no image can be produced the meme degrades to a text-only rendering
// and the stage still succeeds.
type MemeGenerator struct {
	cfg       *config.PipelineConfig
	providers *provider.Set
	templates *ai.Templates
}

func NewMemeGenerator(cfg *config.PipelineConfig, providers *provider.Set, templates *ai.Templates) *MemeGenerator {
	return &MemeGenerator{cfg: cfg, providers: providers, templates: templates}
}

// defaultMeme is used when no concept could be generated at all.
func defaultMeme(title string) *Meme {
	return &Meme{
		MemeSpec: MemeSpec{
			Template:   defaultMemeTemplate,
			TopText:    "Old tech approaches",
			BottomText: "BrainCargo solutions",
			Context:    "Meme about " + title,
			HumorType:  "comparison",
		},
		MemeURL:         MemeTextOnly,
		MemeType:        MemeTextOnly,
		AltText:         "Meme: Old tech approaches / BrainCargo solutions",
		MemeDescription: "Comparison meme about " + title,
	}
}

func (g *MemeGenerator) Generate(ctx context.Context, post *BlogPost, category string) (result MemeResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Meme generation panicked, using default meme", "panic", r)
			result = MemeResult{Success: true, Data: defaultMeme(post.Title), Provider: "fallback"}
		}
		metrics.RecordStage(ctx, StageMemeGeneration, start, result.Success)
	}()

	p := g.providers.Fallback(ctx, string(provider.TypeOpenAI))
	if p == nil {
		slog.Warn("No provider available for meme generation, using default meme")
		return MemeResult{Success: true, Data: defaultMeme(post.Title), Provider: "fallback"}
	}

	style := g.cfg.CategoryFor(category)
	tmpl := g.templates.Load(ai.MemeGenerationPrompt, ai.DefaultMeme)
	prompt := ai.RenderOr(tmpl, ai.DefaultMeme, map[string]string{
		"title":               post.Title,
		"summary":             post.Summary,
		"category":            category,
		"style_persona":       style.StylePersona,
		"available_templates": strings.Join(MemeTemplates, ", "),
	})

	res := p.GenerateCompletion(ctx, provider.CompletionRequest{
		Prompt:       prompt,
		Tier:         config.TierCreative,
		Temperature:  0.9,
		MaxTokens:    300,
		OutputFormat: provider.FormatJSON,
	})
	if !res.Success {
		slog.Warn("Meme concept generation failed, using default meme", "provider", p.Name(), "error", res.Error)
		return MemeResult{Success: true, Data: defaultMeme(post.Title), Provider: "fallback"}
	}

	spec := parseMemeSpec(res.Content)
	meme := g.render(ctx, spec, post, category)
	return MemeResult{Success: true, Data: meme, Provider: p.Name(), Model: res.Model}
}

func parseMemeSpec(text string) MemeSpec {
	data, _, err := ai.ExtractJSON(text)
	if err != nil {
		slog.Warn("Could not parse meme concept, using default concept")
		return MemeSpec{
			Template:   defaultMemeTemplate,
			TopText:    "Centralized AI",
			BottomText: "Own Your AI",
			Context:    "Comparison meme about AI ownership",
			HumorType:  "comparison",
		}
	}

	spec := MemeSpec{
		Template:   ai.String(data, "template", defaultMemeTemplate),
		TopText:    ai.String(data, "top_text", ""),
		BottomText: ai.String(data, "bottom_text", ""),
		Context:    ai.String(data, "context", ""),
		HumorType:  ai.String(data, "humor_type", "comparison"),
	}
	if !knownTemplate(spec.Template) {
		slog.Info("Unknown meme template, using default", "template", spec.Template)
		spec.Template = defaultMemeTemplate
	}
	return spec
}

func knownTemplate(name string) bool {
	for _, t := range MemeTemplates {
		if t == name {
			return true
		}
	}
	return false
}

// BuildMemePrompt describes the meme template with its captions.
func BuildMemePrompt(spec MemeSpec) string {
	top, bottom := spec.TopText, spec.BottomText
	var base string
	switch spec.Template {
	case "drake_pointing":
		base = fmt.Sprintf("Drake pointing meme format: Drake rejecting '%s' in top panel, Drake approving '%s' in bottom panel, clear text overlay, meme style", top, bottom)
	case "distracted_boyfriend":
		base = fmt.Sprintf("Distracted boyfriend meme: man labeled '%s' looking at woman labeled '%s', girlfriend in background, meme format", top, bottom)
	case "expanding_brain":
		base = fmt.Sprintf("Expanding brain meme: progressive panels showing evolution from '%s' to '%s', glowing brain, meme style", top, bottom)
	case "this_is_fine":
		base = fmt.Sprintf("This is fine meme: character in burning room saying '%s' while '%s' happens around them, meme format", top, bottom)
	case "change_my_mind":
		base = fmt.Sprintf("Change my mind meme: person at table with sign saying '%s' and '%s', college campus setting, meme style", top, bottom)
	default:
		base = fmt.Sprintf("Internet meme style image with text '%s' and '%s', popular meme format", top, bottom)
	}
	return capPrompt(base + ", " + memeStyleSuffix)
}

func (g *MemeGenerator) render(ctx context.Context, spec MemeSpec, post *BlogPost, category string) *Meme {
	description := spec.Context
	if description == "" {
		description = "Tech meme"
	}
	prompt := BuildMemePrompt(spec)

	candidates := mediaCandidates(ctx, g.providers, g.cfg.CategoryFor(category).MemeProvider, g.cfg.MemeGeneration.Provider)
	slog.Info("Meme generation order", "category", category, "candidates", providerNames(candidates))

	res, lastErr := generateWithFallback(ctx, StageMemeGeneration, candidates, g.cfg.ErrorHandling.RetryAttempts,
		func(ctx context.Context, p provider.Provider, gen provider.ImageGenerator) provider.ImageResult {
			return gen.GenerateImage(ctx, provider.ImageRequest{
				Prompt:  prompt,
				Size:    "1024x1024",
				Quality: "standard",
				Style:   "natural",
			})
		})

	if !res.Success {
		slog.Warn("All meme image providers failed, using text meme", "error", lastErr)
		return &Meme{
			MemeSpec:        spec,
			MemeURL:         MemeTextOnly,
			MemeType:        MemeTextOnly,
			AltText:         fmt.Sprintf("Meme: %s / %s", spec.TopText, spec.BottomText),
			MemeDescription: description,
			DallePrompt:     prompt,
			FallbackUsed:    true,
			Error:           lastErr,
		}
	}

	title := post.Title
	if title == "" {
		title = "technology"
	}
	return &Meme{
		MemeSpec:        spec,
		MemeURL:         res.URL,
		MemeType:        MemeGeneratedImage,
		AltText:         fmt.Sprintf("Meme about %s: %s", title, spec.Context),
		MemeDescription: description,
		DallePrompt:     prompt,
		RevisedPrompt:   res.RevisedPrompt,
		Provider:        res.Provider,
		Model:           res.Model,
	}
}
