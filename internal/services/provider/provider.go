package provider

import "context"

// Type identifies an LLM vendor.
type Type string

const (
	TypeOpenAI    Type = "openai"
	TypeAnthropic Type = "anthropic"
	TypeGrok      Type = "grok"
	TypeGemini    Type = "gemini"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// Tool is a vendor-side tool attached to a completion, e.g. file_search.
type Tool struct {
	Type           string   `json:"type"`
	VectorStoreIDs []string `json:"vector_store_ids,omitempty"`
}

// CompletionRequest is the vendor-neutral text generation request. A zero
// Temperature or MaxTokens means the provider default.
type CompletionRequest struct {
	Prompt            string
	Tier              string
	Temperature       float64
	MaxTokens         int
	OutputFormat      string
	SystemPrompt      string
	UseKnowledgeFiles bool
	Tools             []Tool
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionResult never carries a Go error: failures set Success=false and
// Error to a readable message.
type CompletionResult struct {
	Content      string `json:"content"`
	Provider     string `json:"provider"`
	Model        string `json:"model"`
	OutputFormat string `json:"output_format,omitempty"`
	Success      bool   `json:"success"`
	Error        string `json:"error,omitempty"`
	Usage        Usage  `json:"usage"`
}

type ImageRequest struct {
	Prompt  string
	Size    string
	Quality string
	Style   string
}

type ImageResult struct {
	URL           string `json:"image_url,omitempty"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
	Provider      string `json:"provider"`
	Model         string `json:"model,omitempty"`
	Size          string `json:"size,omitempty"`
	Quality       string `json:"quality,omitempty"`
	Style         string `json:"style,omitempty"`
	Success       bool   `json:"success"`
	Error         string `json:"error,omitempty"`
}

// Provider is a text generation adapter for one vendor. Implementations are
// safe for concurrent use.
type Provider interface {
	// Name is the configuration key, e.g. "openai" or "openai-backup".
	Name() string
	Type() Type
	// IsAvailable reports whether the vendor can currently serve requests.
	// It never panics.
	IsAvailable(ctx context.Context) bool
	GenerateCompletion(ctx context.Context, req CompletionRequest) CompletionResult
}

// ImageGenerator is implemented by providers that can generate images.
// Callers probe for it with a type assertion.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req ImageRequest) ImageResult
}

// Embedder is implemented by providers that can embed text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SupportsImages reports whether p can generate images.
func SupportsImages(p Provider) bool {
	_, ok := p.(ImageGenerator)
	return ok
}
