package provider

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/braincargo/brainblog/internal/config"
)

const (
	anthropicBaseURL   = "https://api.anthropic.com/v1"
	AnthropicVersion   = "2023-06-01"
	AnthropicFilesBeta = "files-api-2025-04-14"
)

// AnthropicProvider calls the Messages API. It has no image support.
type AnthropicProvider struct {
	*base
}

func NewAnthropic(name string, cfg config.ProviderConfig) (*AnthropicProvider, error) {
	b, err := newBase(name, TypeAnthropic, cfg, anthropicBaseURL, "Anthropic")
	if err != nil {
		return nil, err
	}
	return &AnthropicProvider{base: b}, nil
}

// IsAvailable only checks that a key is configured; Anthropic has no free
// endpoint to probe.
func (p *AnthropicProvider) IsAvailable(ctx context.Context) bool {
	return p.apiKey != ""
}

type anthropicSource struct {
	Type   string `json:"type"`
	FileID string `json:"file_id"`
}

type anthropicPart struct {
	Type   string           `json:"type"`
	Text   string           `json:"text,omitempty"`
	Source *anthropicSource `json:"source,omitempty"`
}

type anthropicMessage struct {
	Role    string          `json:"role"`
	Content []anthropicPart `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	System      string             `json:"system"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (p *AnthropicProvider) GenerateCompletion(ctx context.Context, req CompletionRequest) CompletionResult {
	model := p.ModelFor(req.Tier)
	return p.complete(ctx, req, model, func(ctx context.Context) (string, Usage, error) {
		parts := []anthropicPart{{Type: "text", Text: req.Prompt}}
		headers := map[string]string{
			"x-api-key":         p.apiKey,
			"anthropic-version": AnthropicVersion,
		}

		if req.UseKnowledgeFiles {
			ids := AnthropicFileIDs(p.cfg)
			if len(ids) == 0 {
				slog.Warn("No Anthropic knowledge files found, continuing without them", "provider", p.name)
			} else {
				slog.Info("Using Anthropic knowledge files", "provider", p.name, "count", len(ids))
				for _, id := range ids {
					parts = append(parts, anthropicPart{Type: "document", Source: &anthropicSource{Type: "file", FileID: id}})
				}
				headers["anthropic-beta"] = AnthropicFilesBeta
			}
		}

		system := req.SystemPrompt
		if system == "" {
			system = defaultSystemPrompt
		}
		body := anthropicRequest{
			Model:       model,
			MaxTokens:   p.maxTokens(req.MaxTokens),
			Temperature: p.temperature(req.Temperature),
			System:      system,
			Messages:    []anthropicMessage{{Role: "user", Content: parts}},
		}

		var resp anthropicResponse
		if err := p.doJSON(ctx, http.MethodPost, p.baseURL+"/messages", headers, body, &resp); err != nil {
			return "", Usage{}, err
		}

		var text strings.Builder
		for _, c := range resp.Content {
			if c.Type == "text" {
				text.WriteString(c.Text)
			}
		}
		usage := Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		}
		return text.String(), usage, nil
	})
}
