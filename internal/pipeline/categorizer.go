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
	"github.com/braincargo/brainblog/internal/utils"
)

const (
	reasoningRules         = "Rule-based categorization based on keywords and URL patterns"
	reasoningNoIndicators  = "No strong category indicators found, using default category"
	reasoningLLMDefault    = "AI categorization"
	reasoningUnknownPrefix = "LLM suggested unknown category, using fallback: "
)

type keywordRule struct {
	category string
	keywords []string
}

// Table order decides ties.
var keywordRules = []keywordRule{
	{"technology", []string{"api", "software", "programming", "code", "developer", "tech", "computer"}},
	{"ai-ml", []string{"ai", "artificial intelligence", "machine learning", "ml", "neural", "deep learning"}},
	{"blockchain", []string{"blockchain", "crypto", "bitcoin", "ethereum", "web3", "defi", "nft"}},
	{"cybersecurity", []string{"security", "cybersecurity", "hack", "vulnerability", "encryption", "privacy"}},
	{"business", []string{"business", "startup", "company", "market", "strategy", "growth"}},
}

// Categorizer assigns a post category, by LLM when possible and by keyword
// rules otherwise. The result is always a configured category or the
// fallback category.
type Categorizer struct {
	cfg       *config.PipelineConfig
	providers *provider.Set
	templates *ai.Templates
}

func NewCategorizer(cfg *config.PipelineConfig, providers *provider.Set, templates *ai.Templates) *Categorizer {
	return &Categorizer{cfg: cfg, providers: providers, templates: templates}
}

func (c *Categorizer) fallbackCategory() string {
	return c.cfg.Categorization.FallbackCategory
}

func (c *Categorizer) known(category string) bool {
	for _, k := range c.cfg.Categorization.Categories {
		if k == category {
			return true
		}
	}
	return category == c.fallbackCategory()
}

// Categorize never fails: an internal panic produces the fallback category
// with method error_fallback.
func (c *Categorizer) Categorize(ctx context.Context, url, content, title string) (result Categorization) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Categorization panicked", "url", url, "panic", r)
			result = Categorization{
				Category:   c.fallbackCategory(),
				Confidence: 0.3,
				Reasoning:  fmt.Sprintf("Error during categorization: %v", r),
				Method:     MethodErrorFallback,
				Success:    false,
				Error:      fmt.Sprint(r),
			}
		}
		metrics.RecordStage(ctx, StageCategorization, start, result.Success)
	}()

	if all := c.providers.All(); len(all) > 0 {
		p := all[0]
		if p.IsAvailable(ctx) {
			if res, ok := c.categorizeWithLLM(ctx, p, url, content, title); ok {
				return res
			}
		} else {
			slog.Info("Primary provider unavailable, using rule-based categorization", "provider", p.Name())
		}
	}

	return c.categorizeWithRules(url, content, title)
}

func (c *Categorizer) categorizeWithLLM(ctx context.Context, p provider.Provider, url, content, title string) (Categorization, bool) {
	tmpl := c.templates.Load(ai.CategorizationPrompt, ai.DefaultCategorization)
	prompt := ai.RenderOr(tmpl, ai.DefaultCategorization, map[string]string{
		"categories": strings.Join(c.cfg.Categorization.Categories, ", "),
		"url":        url,
		"title":      title,
		"content":    utils.TruncateRunes(content, 1000),
	})

	res := p.GenerateCompletion(ctx, provider.CompletionRequest{
		Prompt:       prompt,
		Tier:         config.TierFast,
		Temperature:  0.3,
		MaxTokens:    200,
		OutputFormat: provider.FormatJSON,
	})
	if !res.Success {
		slog.Warn("LLM categorization failed, falling back to rules", "provider", p.Name(), "error", res.Error)
		return Categorization{}, false
	}

	data, strategy, err := ai.ExtractJSON(res.Content)
	if err != nil {
		slog.Warn("LLM categorization returned no JSON, falling back to rules", "provider", p.Name())
		return Categorization{}, false
	}
	slog.Debug("Parsed categorization response", "strategy", strategy)

	category := strings.TrimSpace(ai.String(data, "category", ""))
	if !c.known(category) {
		slog.Warn("LLM suggested unknown category", "category", category, "fallback", c.fallbackCategory())
		return Categorization{
			Category:   c.fallbackCategory(),
			Confidence: 0.5,
			Reasoning:  reasoningUnknownPrefix + category,
			Method:     MethodFallback,
			Provider:   p.Name(),
			Success:    true,
		}, true
	}

	secondary := ai.String(data, "secondary_category", "")
	if secondary == "null" || !c.known(secondary) {
		secondary = ""
	}

	return Categorization{
		Category:          category,
		Confidence:        clamp01(ai.Float(data, "confidence", 0.7)),
		Reasoning:         ai.String(data, "reasoning", reasoningLLMDefault),
		Method:            MethodLLM,
		Provider:          p.Name(),
		SecondaryCategory: secondary,
		Success:           true,
	}, true
}

func (c *Categorizer) categorizeWithRules(url, content, title string) Categorization {
	text := strings.ToLower(title + " " + content)

	order := make([]string, 0, len(keywordRules)+1)
	scores := make(map[string]int, len(keywordRules)+1)
	for _, rule := range keywordRules {
		order = append(order, rule.category)
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				scores[rule.category]++
			}
		}
	}

	if bonus := urlCategory(url); bonus != "" {
		if _, seen := scores[bonus]; !seen {
			order = append(order, bonus)
		}
		scores[bonus] += 2
	}

	best, bestScore := "", 0
	for _, cat := range order {
		if scores[cat] > bestScore {
			best, bestScore = cat, scores[cat]
		}
	}

	confidence := min(float64(bestScore)/5, 0.9)
	if confidence > 0.3 && c.known(best) {
		return Categorization{
			Category:   best,
			Confidence: confidence,
			Reasoning:  reasoningRules,
			Method:     MethodRules,
			Success:    true,
		}
	}

	return Categorization{
		Category:   c.fallbackCategory(),
		Confidence: 0.5,
		Reasoning:  reasoningNoIndicators,
		Method:     MethodFallback,
		Success:    true,
	}
}

// urlCategory gives the bonus category implied by a well known host.
func urlCategory(url string) string {
	u := strings.ToLower(url)
	switch {
	case strings.Contains(u, "github.com") || strings.Contains(u, "stackoverflow.com"):
		return "software-development"
	case strings.Contains(u, "techcrunch.com") || strings.Contains(u, "venturebeat.com"):
		return "startup"
	case strings.Contains(u, "news"):
		return "news"
	}
	return ""
}

func clamp01(f float64) float64 {
	return max(0, min(1, f))
}
