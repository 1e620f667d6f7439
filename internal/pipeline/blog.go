package pipeline

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/braincargo/brainblog/internal/config"
	"github.com/braincargo/brainblog/internal/metrics"
	"github.com/braincargo/brainblog/internal/services/ai"
	"github.com/braincargo/brainblog/internal/services/provider"
	"github.com/braincargo/brainblog/internal/utils"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	defaultStylePersona = "Tech Expert"
	defaultBlogProvider = "openai"
	noOriginalTitle     = "No original title available"
)

var (
	firstBlockTag = regexp.MustCompile(`(?i)<(?:h[1-6]|p|div[^>]*>)`)
	divLeaf       = regexp.MustCompile(`(?i)^[^<]*</div>`)
	closingTag    = regexp.MustCompile(`(?i)</(p|h[1-6]|div)>`)
)

// BlogGenerator writes the article text for a categorized source.
type BlogGenerator struct {
	cfg       *config.PipelineConfig
	providers *provider.Set
	templates *ai.Templates
}

func NewBlogGenerator(cfg *config.PipelineConfig, providers *provider.Set, templates *ai.Templates) *BlogGenerator {
	return &BlogGenerator{cfg: cfg, providers: providers, templates: templates}
}

// Generate asks the category's provider for a JSON article and normalizes
// the reply into a BlogPost. Replies that hold no JSON become the post body.
func (g *BlogGenerator) Generate(ctx context.Context, url, content, category, customTitle string, categorization *Categorization) BlogResult {
	start := time.Now()
	style := g.cfg.CategoryFor(category)
	persona := style.StylePersona
	if persona == "" {
		persona = defaultStylePersona
	}
	preferred := style.ProviderOverride
	if preferred == "" {
		preferred = defaultBlogProvider
	}

	p := g.providers.Fallback(ctx, preferred)
	if p == nil {
		metrics.RecordStage(ctx, StageBlogGeneration, start, false)
		return BlogResult{Success: false, Error: provider.ErrNoProviders.Error()}
	}
	if p.Name() != preferred && string(p.Type()) != preferred {
		metrics.ProviderFallbackTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("from_provider", preferred),
			attribute.String("to_provider", p.Name()),
			attribute.String("reason", "unavailable"),
		))
	}

	stylePath := style.StylePrompt
	if stylePath == "" {
		stylePath = ai.DefaultStylePrompt
	}
	prompt := ai.BuildBlogPrompt(
		g.templates.Load(ai.BlogBasePrompt, ai.DefaultBlogBase),
		g.templates.Load(stylePath, ""),
		ai.BlogPromptInput{
			URL:           url,
			OriginalTitle: originalTitle(content),
			Content:       content,
			Category:      category,
			StylePersona:  persona,
		},
	)

	slog.Info("Generating blog post", "provider", p.Name(), "category", category, "persona", persona)
	res := p.GenerateCompletion(ctx, provider.CompletionRequest{
		Prompt:            prompt,
		Tier:              config.TierStandard,
		Temperature:       0.7,
		MaxTokens:         3000,
		OutputFormat:      provider.FormatJSON,
		UseKnowledgeFiles: p.Type() == provider.TypeAnthropic,
	})
	if !res.Success {
		pe := provider.ClassifyMessage(res.Error, p.Name(), 0)
		slog.Warn("Blog generation failed", "provider", p.Name(), "error_type", pe.Type, "error", res.Error)
		metrics.RecordStage(ctx, StageBlogGeneration, start, false)
		return BlogResult{Success: false, Provider: p.Name(), Model: res.Model, Error: res.Error, ErrorType: pe.Type}
	}

	post := postFromResponse(ai.ParseBlogResponse(res.Content, customTitle))
	post.Category = category
	post.StylePersona = persona
	post.KeyElements = append([]string(nil), g.cfg.Blog.KeyElements...)
	post.CallToAction = g.cfg.Blog.CallToAction

	metrics.RecordStage(ctx, StageBlogGeneration, start, true)
	return BlogResult{
		Success:    true,
		Data:       post,
		Provider:   p.Name(),
		Model:      res.Model,
		Usage:      res.Usage,
		NeedsMedia: true,
	}
}

// originalTitle takes the first line of the source when it is short enough
// to be a headline.
func originalTitle(content string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(content), "\n")
	line = strings.TrimSpace(utils.StripTags(line))
	if line == "" || len([]rune(line)) >= 200 {
		return noOriginalTitle
	}
	return line
}

func postFromResponse(data map[string]any) *BlogPost {
	post := &BlogPost{
		Title:   ai.String(data, "title", ai.DefaultBlogTitle),
		Summary: ai.String(data, "summary", ai.DefaultBlogSummary),
		Content: ai.String(data, "content", ""),
	}
	if tags, ok := data["tags"].([]any); ok {
		for _, t := range tags {
			if s, ok := t.(string); ok && s != "" {
				post.Tags = append(post.Tags, s)
			}
		}
	}
	return post
}

// EmbedMedia returns a copy of post with the meme placed before the first
// block element and the featured image placed mid-article. image and meme
// may be nil. On any internal failure the input is returned unchanged.
func EmbedMedia(post *BlogPost, image *FeaturedImage, meme *Meme) (out *BlogPost) {
	if post == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Embedding media failed", "panic", r)
			out = post
		}
	}()

	hasImage := image != nil && image.Success && image.ImageURL != ""
	hasMeme := meme != nil && meme.MemeURL != ""

	out = post.Clone()
	content := out.Content
	if !strings.HasPrefix(strings.TrimSpace(content), "<") {
		content = "<div>" + content + "</div>"
	}
	if hasMeme {
		content = insertAtBeginning(content, memeHTML(meme))
	}
	if hasImage {
		content = insertInMiddle(content, imageHTML(image))
	}
	out.Content = content

	media := out.Media
	if media == nil {
		media = &Media{}
	}
	if hasImage {
		media.FeaturedImage = image.ImageURL
		media.ThumbnailURL = image.ThumbnailURL
		media.ImageAltText = image.AltText
		media.ImageCaption = image.Caption
	}
	if hasMeme {
		media.MemeURL = meme.MemeURL
		media.MemeType = meme.MemeType
		media.MemeAltText = meme.AltText
		media.MemeDescription = meme.MemeDescription
	}
	out.Media = media
	return out
}

func memeHTML(m *Meme) string {
	if m.MemeURL != MemeTextOnly {
		alt := m.AltText
		if alt == "" {
			alt = "Meme"
		}
		return fmt.Sprintf(`<div class="blog-meme" style="text-align: center; margin: 20px 0; padding: 15px; background-color: #f9f9f9; border-radius: 8px;">`+
			`<img src="%s" alt="%s" style="max-width: 100%%; height: auto; border-radius: 8px;" />`+
			`</div>`, html.EscapeString(m.MemeURL), html.EscapeString(alt))
	}

	top, bottom := m.TopText, m.BottomText
	if top == "" {
		top = "Old way"
	}
	if bottom == "" {
		bottom = "BrainCargo way"
	}
	return fmt.Sprintf(`<div class="blog-meme-text" style="text-align: center; margin: 20px 0; padding: 20px; background-color: #f0f8ff; border-left: 4px solid #DDBC74; border-radius: 8px;">`+
		`<div style="font-size: 1.2em; margin-bottom: 8px;">❌ %s</div>`+
		`<div style="font-size: 1.2em; font-weight: bold;">✅ %s</div>`+
		`</div>`, html.EscapeString(top), html.EscapeString(bottom))
}

func imageHTML(img *FeaturedImage) string {
	alt := img.AltText
	if alt == "" {
		alt = "Blog featured image"
	}
	caption := ""
	if img.Caption != "" {
		caption = fmt.Sprintf(`<figcaption style="margin-top: 15px; font-style: italic; color: #666; font-size: 0.95em;">%s</figcaption>`,
			html.EscapeString(img.Caption))
	}
	return fmt.Sprintf(`<figure class="blog-featured-image" style="margin: 30px 0; text-align: center;">`+
		`<img src="%s" alt="%s" style="max-width: 100%%; height: auto; border-radius: 12px; box-shadow: 0 4px 8px rgba(0,0,0,0.1);" />`+
		`%s</figure>`, html.EscapeString(img.ImageURL), html.EscapeString(alt), caption)
}

// insertAtBeginning places snippet before the first heading, paragraph or
// non-leaf div. A div directly wrapping text does not count.
func insertAtBeginning(content, snippet string) string {
	for offset := 0; offset < len(content); {
		loc := firstBlockTag.FindStringIndex(content[offset:])
		if loc == nil {
			break
		}
		start, end := offset+loc[0], offset+loc[1]
		tag := strings.ToLower(content[start:end])
		if strings.HasPrefix(tag, "<div") && divLeaf.MatchString(content[end:]) {
			offset = start + 1
			continue
		}
		return content[:start] + snippet + content[start:]
	}

	if strings.HasPrefix(content, "<div>") {
		return content[:5] + snippet + content[5:]
	}
	return snippet + content
}

// insertInMiddle places snippet after the middle closing block tag.
func insertInMiddle(content, snippet string) string {
	tags := closingTag.FindAllStringIndex(content, -1)
	var pos int
	switch {
	case len(tags) > 2:
		pos = tags[len(tags)/2][1]
	case len(tags) >= 1:
		pos = tags[0][1]
	default:
		return content + snippet
	}
	return content[:pos] + snippet + content[pos:]
}
