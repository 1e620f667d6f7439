package provider

import (
	"context"
	"fmt"

	"github.com/braincargo/brainblog/internal/config"
	"google.golang.org/genai"
)

// GeminiProvider uses the Google GenAI SDK against the Gemini API. It has no
// image support.
type GeminiProvider struct {
	*base
	client *genai.Client
}

func NewGemini(ctx context.Context, name string, cfg config.ProviderConfig) (*GeminiProvider, error) {
	b, err := newBase(name, TypeGemini, cfg, "", "Gemini")
	if err != nil {
		return nil, err
	}

	clientCfg := &genai.ClientConfig{
		APIKey:     b.apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: b.client,
	}
	if b.baseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: b.baseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiProvider{base: b, client: client}, nil
}

// IsAvailable reports whether the SDK client was constructed.
func (p *GeminiProvider) IsAvailable(ctx context.Context) bool {
	return p.client != nil && p.apiKey != ""
}

func (p *GeminiProvider) GenerateCompletion(ctx context.Context, req CompletionRequest) CompletionResult {
	model := p.ModelFor(req.Tier)
	return p.complete(ctx, req, model, func(ctx context.Context) (string, Usage, error) {
		prompt := req.Prompt
		if req.SystemPrompt != "" {
			prompt = fmt.Sprintf("System: %s\n\nUser: %s", req.SystemPrompt, req.Prompt)
		}
		contents := []*genai.Content{{
			Parts: []*genai.Part{{Text: prompt}},
			Role:  "user",
		}}

		temp := float32(p.temperature(req.Temperature))
		genCfg := &genai.GenerateContentConfig{
			Temperature:     &temp,
			MaxOutputTokens: int32(p.maxTokens(req.MaxTokens)),
		}
		if req.OutputFormat == FormatJSON {
			genCfg.ResponseMIMEType = "application/json"
		}

		resp, err := p.client.Models.GenerateContent(ctx, model, contents, genCfg)
		if err != nil {
			return "", Usage{}, fmt.Errorf("Gemini API error: %w", err)
		}

		var usage Usage
		if resp.UsageMetadata != nil {
			usage = Usage{
				PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
				CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
				TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
			}
		}
		text := resp.Text()
		if text == "" {
			return "", usage, fmt.Errorf("no content in Gemini response")
		}
		return text, usage, nil
	})
}
