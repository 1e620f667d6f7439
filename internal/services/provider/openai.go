package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/braincargo/brainblog/internal/config"
	"github.com/braincargo/brainblog/internal/metrics"
)

const (
	openAIBaseURL        = "https://api.openai.com/v1"
	openAIImageModel     = "dall-e-3"
	openAIEmbeddingModel = "text-embedding-3-small"
	defaultSystemPrompt  = "You are a helpful AI assistant."
	availabilityTimeout  = 10 * time.Second
	EmbeddingDimensions  = 1536
)

// OpenAIProvider talks to the OpenAI REST API: chat completions, the
// Responses API for o-series models and knowledge search, images and
// embeddings.
type OpenAIProvider struct {
	*base
}

func NewOpenAI(name string, cfg config.ProviderConfig) (*OpenAIProvider, error) {
	b, err := newBase(name, TypeOpenAI, cfg, openAIBaseURL, "OpenAI")
	if err != nil {
		return nil, err
	}
	return &OpenAIProvider{base: b}, nil
}

func (p *OpenAIProvider) authHeaders() map[string]string {
	return map[string]string{"Authorization": "Bearer " + p.apiKey}
}

// IsAvailable lists models. The result is cached for a minute.
func (p *OpenAIProvider) IsAvailable(ctx context.Context) bool {
	return p.cachedAvailability(ctx, func(ctx context.Context) bool {
		ctx, cancel := context.WithTimeout(ctx, availabilityTimeout)
		defer cancel()
		if err := p.doJSON(ctx, http.MethodGet, p.baseURL+"/models", p.authHeaders(), nil, nil); err != nil {
			slog.Error("OpenAI availability check failed", "provider", p.name, "error", err)
			return false
		}
		return true
	})
}

// isReasoningModel reports o1/o3 family models, which reject temperature and
// take max_completion_tokens.
func isReasoningModel(model string) bool {
	return strings.Contains(model, "o1") || strings.Contains(model, "o3")
}

func (p *OpenAIProvider) GenerateCompletion(ctx context.Context, req CompletionRequest) CompletionResult {
	model := p.ModelFor(req.Tier)
	return p.complete(ctx, req, model, func(ctx context.Context) (string, Usage, error) {
		tools := req.Tools
		if req.UseKnowledgeFiles {
			tools = p.withVectorStore(tools)
		}
		if isReasoningModel(model) || hasFileSearch(tools) {
			return p.responses(ctx, req, model, tools)
		}
		return p.chat(ctx, req, model)
	})
}

func (p *OpenAIProvider) withVectorStore(tools []Tool) []Tool {
	if hasFileSearch(tools) {
		return tools
	}
	id := VectorStoreID(p.cfg)
	if id == "" {
		slog.Warn("No OpenAI vector store configured, continuing without knowledge files", "provider", p.name)
		return tools
	}
	slog.Info("Using OpenAI vector store", "provider", p.name, "vector_store_id", id)
	out := append([]Tool(nil), tools...)
	return append(out, Tool{Type: "file_search", VectorStoreIDs: []string{id}})
}

func hasFileSearch(tools []Tool) bool {
	for _, t := range tools {
		if t.Type == "file_search" && len(t.VectorStoreIDs) > 0 {
			return true
		}
	}
	return false
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model               string          `json:"model"`
	Messages            []chatMessage   `json:"messages"`
	Temperature         *float64        `json:"temperature,omitempty"`
	MaxTokens           int             `json:"max_tokens,omitempty"`
	MaxCompletionTokens int             `json:"max_completion_tokens,omitempty"`
	ResponseFormat      *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

// buildChatRequest is shared by the OpenAI and Grok adapters.
func buildChatRequest(req CompletionRequest, model string, temperature float64, maxTokens int) chatRequest {
	var messages []chatMessage
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body := chatRequest{Model: model, Messages: messages}
	if isReasoningModel(model) {
		body.MaxCompletionTokens = maxTokens
	} else {
		body.Temperature = &temperature
		body.MaxTokens = maxTokens
	}
	return body
}

func (p *OpenAIProvider) chat(ctx context.Context, req CompletionRequest, model string) (string, Usage, error) {
	body := buildChatRequest(req, model, p.temperature(req.Temperature), p.maxTokens(req.MaxTokens))
	if req.OutputFormat == FormatJSON {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	var resp chatResponse
	if err := p.doJSON(ctx, http.MethodPost, p.baseURL+"/chat/completions", p.authHeaders(), body, &resp); err != nil {
		return "", Usage{}, err
	}
	if len(resp.Choices) == 0 {
		return "", resp.Usage, fmt.Errorf("no response from OpenAI")
	}
	return resp.Choices[0].Message.Content, resp.Usage, nil
}

type responsesRequest struct {
	Model           string `json:"model"`
	Instructions    string `json:"instructions"`
	Input           string `json:"input"`
	Tools           []Tool `json:"tools,omitempty"`
	MaxOutputTokens int    `json:"max_output_tokens,omitempty"`
}

type responsesResponse struct {
	Output []struct {
		Type    string `json:"type"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

// outputText concatenates the output_text parts of message items.
func (r responsesResponse) outputText() string {
	var b strings.Builder
	for _, item := range r.Output {
		if item.Type != "message" {
			continue
		}
		for _, part := range item.Content {
			if part.Type == "output_text" {
				b.WriteString(part.Text)
			}
		}
	}
	return b.String()
}

func (p *OpenAIProvider) responses(ctx context.Context, req CompletionRequest, model string, tools []Tool) (string, Usage, error) {
	instructions := req.SystemPrompt
	if instructions == "" {
		instructions = defaultSystemPrompt
	}
	body := responsesRequest{
		Model:           model,
		Instructions:    instructions,
		Input:           req.Prompt,
		Tools:           tools,
		MaxOutputTokens: p.maxTokens(req.MaxTokens),
	}

	var resp responsesResponse
	if err := p.doJSON(ctx, http.MethodPost, p.baseURL+"/responses", p.authHeaders(), body, &resp); err != nil {
		return "", Usage{}, err
	}
	usage := Usage{
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	return resp.outputText(), usage, nil
}

type imageRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	Size    string `json:"size"`
	Quality string `json:"quality,omitempty"`
	Style   string `json:"style,omitempty"`
	N       int    `json:"n"`
}

type imageResponse struct {
	Data []struct {
		URL           string `json:"url"`
		RevisedPrompt string `json:"revised_prompt"`
	} `json:"data"`
}

func (p *OpenAIProvider) GenerateImage(ctx context.Context, req ImageRequest) ImageResult {
	model := p.imageModel(openAIImageModel)
	return p.image(ctx, model, func(ctx context.Context) (ImageResult, error) {
		return postImage(ctx, p.base, model, req)
	})
}

// postImage calls an OpenAI-compatible images/generations endpoint.
func postImage(ctx context.Context, b *base, model string, req ImageRequest) (ImageResult, error) {
	size := b.validateSize(req.Size)
	quality := req.Quality
	if quality == "" {
		quality = b.cfg.DefaultQuality
	}
	style := req.Style
	if style == "" {
		style = "natural"
	}

	body := imageRequest{Model: model, Prompt: req.Prompt, Size: size, Quality: quality, Style: style, N: 1}
	var resp imageResponse
	headers := map[string]string{"Authorization": "Bearer " + b.apiKey}
	if err := b.doJSON(ctx, http.MethodPost, b.baseURL+"/images/generations", headers, body, &resp); err != nil {
		return ImageResult{}, err
	}

	result := ImageResult{Size: size, Quality: quality, Style: style}
	if len(resp.Data) > 0 {
		result.URL = resp.Data[0].URL
		result.RevisedPrompt = resp.Data[0].RevisedPrompt
	}
	if result.RevisedPrompt == "" {
		result.RevisedPrompt = req.Prompt
	}
	return result, nil
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns the text-embedding-3-small vector for text.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) (embedding []float32, err error) {
	defer metrics.RecordExternalCall(ctx, p.name, "embedding", time.Now(), &err)

	body := embeddingRequest{Model: openAIEmbeddingModel, Input: text}
	var resp embeddingResponse
	if err = p.doJSON(ctx, http.MethodPost, p.baseURL+"/embeddings", p.authHeaders(), body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		err = fmt.Errorf("no embedding returned from OpenAI")
		return nil, err
	}
	return resp.Data[0].Embedding, nil
}
