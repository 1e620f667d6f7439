package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/braincargo/brainblog/internal/config"
	"github.com/braincargo/brainblog/internal/utils"
)

const (
	grokBaseURL      = "https://api.x.ai/v1"
	grokImageModel   = "grok-2-image"
	grokImageTimeout = 120 * time.Second
)

// GrokProvider targets xAI's OpenAI-compatible REST API.
type GrokProvider struct {
	*base
}

func NewGrok(name string, cfg config.ProviderConfig) (*GrokProvider, error) {
	b, err := newBase(name, TypeGrok, cfg, grokBaseURL, "Grok")
	if err != nil {
		return nil, err
	}
	return &GrokProvider{base: b}, nil
}

// IsAvailable expects GET /models to return 200 within 10s.
func (p *GrokProvider) IsAvailable(ctx context.Context) bool {
	return p.cachedAvailability(ctx, func(ctx context.Context) bool {
		ctx, cancel := context.WithTimeout(ctx, availabilityTimeout)
		defer cancel()
		headers := map[string]string{"Authorization": "Bearer " + p.apiKey}
		if err := p.doJSON(ctx, http.MethodGet, p.baseURL+"/models", headers, nil, nil); err != nil {
			slog.Error("Grok availability check failed", "provider", p.name, "error", err)
			return false
		}
		return true
	})
}

func (p *GrokProvider) GenerateCompletion(ctx context.Context, req CompletionRequest) CompletionResult {
	model := p.ModelFor(req.Tier)
	return p.complete(ctx, req, model, func(ctx context.Context) (string, Usage, error) {
		body := buildChatRequest(req, model, p.temperature(req.Temperature), p.maxTokens(req.MaxTokens))
		headers := map[string]string{"Authorization": "Bearer " + p.apiKey}

		var resp chatResponse
		if err := p.doJSON(ctx, http.MethodPost, p.baseURL+"/chat/completions", headers, body, &resp); err != nil {
			return "", Usage{}, err
		}
		if len(resp.Choices) == 0 {
			return "", resp.Usage, fmt.Errorf("no response from Grok")
		}
		return resp.Choices[0].Message.Content, resp.Usage, nil
	})
}

func (p *GrokProvider) GenerateImage(ctx context.Context, req ImageRequest) ImageResult {
	model := p.imageModel(grokImageModel)
	return p.image(ctx, model, func(ctx context.Context) (ImageResult, error) {
		ctx, cancel := context.WithTimeout(ctx, grokImageTimeout)
		defer cancel()
		slog.Info("Generating image with Grok", "provider", p.name, "prompt", utils.TruncateRunes(req.Prompt, 100))
		return postImage(ctx, p.base, model, req)
	})
}
