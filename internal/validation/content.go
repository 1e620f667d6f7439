package validation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/braincargo/brainblog/internal/config"
	"github.com/braincargo/brainblog/internal/services/ai"
	"github.com/braincargo/brainblog/internal/services/provider"
	"github.com/braincargo/brainblog/internal/utils"
)

// Confidence represents certainty in the validation result
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// MinContentWords is the smallest source worth spending provider calls on.
const MinContentWords = 20

// ContentValidationResult contains the outcome of validation
type ContentValidationResult struct {
	IsValid    bool       `json:"is_valid"`
	Confidence Confidence `json:"confidence"`
	Reason     string     `json:"reason"`
	Missing    []string   `json:"missing"`
}

// ContentValidationConfig defines settings for validation
type ContentValidationConfig struct {
	EnableAIValidation bool
	MinWords           int
}

// blockedPagePhrases mark consent walls, paywalls and bot checks that
// scrape fine but carry no article.
var blockedPagePhrases = []string{
	"enable javascript", "access denied", "verify you are human", "are you a robot",
	"subscribe to continue", "sign in to continue", "accept cookies", "cookie policy",
	"403 forbidden", "captcha",
}

// QuickValidate performs a fast heuristic check without API calls
func QuickValidate(title, content string, minWords int) ContentValidationResult {
	if minWords <= 0 {
		minWords = MinContentWords
	}
	words := len(strings.Fields(content))

	if words < minWords {
		reason := fmt.Sprintf("Content too short (%d words). Need at least %d words.", words, minWords)
		if words == 0 {
			reason = "No content provided"
		}
		return ContentValidationResult{
			IsValid:    false,
			Confidence: ConfidenceHigh,
			Reason:     reason,
			Missing:    []string{"sufficient content length"},
		}
	}

	lower := strings.ToLower(title + " " + content)
	for _, phrase := range blockedPagePhrases {
		if strings.Contains(lower, phrase) {
			return ContentValidationResult{
				IsValid:    true,
				Confidence: ConfidenceMedium,
				Reason:     fmt.Sprintf("Content may be a blocked or interstitial page (%q)", phrase),
				Missing:    []string{"article body"},
			}
		}
	}

	return ContentValidationResult{
		IsValid:    true,
		Confidence: ConfidenceHigh,
		Reason:     "Content passed quick validation",
		Missing:    []string{},
	}
}

// AIValidate asks a fast model whether the text is an actual article.
func AIValidate(ctx context.Context, title, content string, p provider.Provider) (ContentValidationResult, error) {
	if p == nil {
		return ContentValidationResult{}, fmt.Errorf("a provider is required for AI validation")
	}

	validationPrompt := fmt.Sprintf(`Decide whether this scraped web page contains a real article that a blog post could be written about.

Pages that are only cookie banners, login or subscription walls, bot checks, error pages or navigation menus are NOT articles.

Title: %s

Content:
%s

Respond with ONLY a JSON object (no additional text):
{
  "is_article": true or false,
  "confidence": "high", "medium", or "low",
  "reason": "brief explanation",
  "missing": ["list", "of", "missing", "elements"]
}`, title, utils.TruncateRunes(content, 2000))

	res := p.GenerateCompletion(ctx, provider.CompletionRequest{
		Prompt:       validationPrompt,
		SystemPrompt: "You are a content validator. Analyze content and respond with JSON only.",
		Tier:         config.TierFast,
		Temperature:  0,
		MaxTokens:    150,
		OutputFormat: provider.FormatJSON,
	})
	if !res.Success {
		err := fmt.Errorf("AI validation failed: %s", res.Error)
		return ContentValidationResult{
			IsValid:    false,
			Confidence: ConfidenceLow,
			Reason:     err.Error(),
			Missing:    []string{"ai validation"},
		}, err
	}

	parsed, _, err := ai.ExtractJSON(res.Content)
	if err != nil {
		return ContentValidationResult{
			IsValid:    false,
			Confidence: ConfidenceLow,
			Reason:     fmt.Sprintf("Failed to parse AI response: %v", err),
			Missing:    []string{"ai validation parsing"},
		}, err
	}

	var missing []string
	if items, ok := parsed["missing"].([]any); ok {
		for _, item := range items {
			if s, ok := item.(string); ok {
				missing = append(missing, s)
			}
		}
	}

	return ContentValidationResult{
		IsValid:    ai.Bool(parsed, "is_article", false),
		Confidence: Confidence(ai.String(parsed, "confidence", string(ConfidenceLow))),
		Reason:     ai.String(parsed, "reason", ""),
		Missing:    missing,
	}, nil
}

// ValidateContent runs the quick check and, for borderline content, the AI
// check when enabled. A failing AI check leaves the quick result in place.
func ValidateContent(ctx context.Context, title, content string, cfg ContentValidationConfig, p provider.Provider) ContentValidationResult {
	quickResult := QuickValidate(title, content, cfg.MinWords)

	if quickResult.Confidence == ConfidenceHigh || !cfg.EnableAIValidation || p == nil {
		return quickResult
	}

	aiResult, err := AIValidate(ctx, title, content, p)
	if err != nil {
		slog.Warn("AI content validation failed, using quick check", "provider", p.Name(), "error", err)
		return quickResult
	}
	if aiResult.Confidence == ConfidenceHigh || !aiResult.IsValid {
		return aiResult
	}
	return quickResult
}
