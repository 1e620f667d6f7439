package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	TierFast     = "fast"
	TierStandard = "standard"
	TierCreative = "creative"
)

var DefaultCategories = []string{
	"technology", "ai-ml", "blockchain", "web3", "cybersecurity",
	"software-development", "data-science", "business", "finance",
	"startup", "innovation", "news", "opinion", "tutorial", "review",
}

var DefaultKeyElements = []string{
	"user sovereignty", "AI ownership", "privacy protection", "fair compensation",
}

// PipelineConfig is the declarative description of providers and stages.
// It is built once at startup and shared read-only.
type PipelineConfig struct {
	Providers       ProviderList              `yaml:"providers"`
	Categories      map[string]CategoryConfig `yaml:"categories"`
	Categorization  CategorizationConfig      `yaml:"categorization"`
	ImageGeneration StageConfig               `yaml:"image_generation"`
	MemeGeneration  StageConfig               `yaml:"meme_generation"`
	ErrorHandling   ErrorHandlingConfig       `yaml:"error_handling"`
	Environment     EnvironmentConfig         `yaml:"environment"`
	Blog            BlogContentConfig         `yaml:"blog"`
}

type ProviderConfig struct {
	Name               string            `yaml:"-"`
	Type               string            `yaml:"type"`
	APIKeyEnv          string            `yaml:"api_key_env"`
	APIKey             string            `yaml:"api_key"`
	BaseURL            string            `yaml:"base_url"`
	Models             map[string]string `yaml:"models"`
	TestModels         map[string]string `yaml:"test_models"`
	DefaultTemperature float64           `yaml:"default_temperature"`
	MaxTokens          int               `yaml:"max_tokens"`
	ImageModels        map[string]string `yaml:"image_models"`
	DefaultSize        string            `yaml:"default_size"`
	DefaultQuality     string            `yaml:"default_quality"`
	SupportedSizes     []string          `yaml:"supported_sizes"`
	VectorStoreIDs     []string          `yaml:"vector_store_ids"`
	FileIDs            []string          `yaml:"file_ids"`
	TimeoutSeconds     int               `yaml:"timeout_seconds"`
	KnowledgeDir       string            `yaml:"knowledge_dir"`
	TestMode           bool              `yaml:"-"`
}

// ResolvedAPIKey prefers an inline key and otherwise reads api_key_env.
func (p ProviderConfig) ResolvedAPIKey() string {
	if p.APIKey != "" {
		return p.APIKey
	}
	if p.APIKeyEnv != "" {
		return os.Getenv(p.APIKeyEnv)
	}
	return ""
}

// ProviderList keeps providers in document order so that "first available"
// is deterministic.
type ProviderList []ProviderConfig

func (l *ProviderList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("providers must be a mapping, got %v", value.Tag)
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		var pc ProviderConfig
		if err := value.Content[i+1].Decode(&pc); err != nil {
			return fmt.Errorf("provider %s: %w", value.Content[i].Value, err)
		}
		pc.Name = value.Content[i].Value
		*l = append(*l, pc)
	}
	return nil
}

func (l ProviderList) Get(name string) (ProviderConfig, bool) {
	for _, p := range l {
		if p.Name == name {
			return p, true
		}
	}
	return ProviderConfig{}, false
}

type CategoryConfig struct {
	StylePersona     string `yaml:"style_persona"`
	StylePrompt      string `yaml:"style_prompt"`
	ProviderOverride string `yaml:"provider_override"`
	ImageProvider    string `yaml:"image_provider"`
	MemeProvider     string `yaml:"meme_provider"`
}

type CategorizationConfig struct {
	Categories       []string `yaml:"categories"`
	FallbackCategory string   `yaml:"fallback_category"`
}

type StageConfig struct {
	Enabled  *bool  `yaml:"enabled"`
	Provider string `yaml:"provider"`
	Size     string `yaml:"size"`
	Quality  string `yaml:"quality"`
}

// IsEnabled treats an absent flag as enabled.
func (s StageConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

type ErrorHandlingConfig struct {
	RetryAttempts int `yaml:"retry_attempts"`
}

type EnvironmentConfig struct {
	TestMode bool `yaml:"test_mode"`
}

type BlogContentConfig struct {
	KeyElements  []string `yaml:"key_elements"`
	CallToAction string   `yaml:"call_to_action"`
}

// CategoryFor returns the style configuration for a category, falling back to
// the technology entry.
func (c *PipelineConfig) CategoryFor(category string) CategoryConfig {
	if cc, ok := c.Categories[category]; ok {
		return cc
	}
	return c.Categories["technology"]
}

// LoadPipeline reads the pipeline YAML, expands ${VAR} placeholders and applies
// defaults. A missing file yields DefaultPipelineConfig.
func LoadPipeline(path string, testMode bool) (*PipelineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultPipelineConfig()
			cfg.ApplyDefaults(testMode)
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read pipeline config: %w", err)
	}
	return ParsePipeline(data, testMode)
}

func ParsePipeline(data []byte, testMode bool) (*PipelineConfig, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse pipeline config: %w", err)
	}
	ExpandEnvNode(&root)

	cfg := &PipelineConfig{}
	if len(root.Content) > 0 {
		if err := root.Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to decode pipeline config: %w", err)
		}
	}
	cfg.ApplyDefaults(testMode)
	return cfg, nil
}

// DefaultPipelineConfig declares every supported vendor keyed by its usual
// environment variable. Vendors without a key are skipped by the factory.
func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		Providers: ProviderList{
			{Name: "openai", Type: "openai", APIKeyEnv: "OPENAI_API_KEY",
				Models:         map[string]string{TierFast: "gpt-4o-mini", TierStandard: "gpt-4o", TierCreative: "gpt-4o"},
				ImageModels:    map[string]string{"default": "dall-e-3"},
				SupportedSizes: []string{"1024x1024", "1792x1024", "1024x1792"}},
			{Name: "anthropic", Type: "anthropic", APIKeyEnv: "ANTHROPIC_API_KEY"},
			{Name: "grok", Type: "grok", APIKeyEnv: "XAI_API_KEY",
				ImageModels: map[string]string{"default": "grok-2-image"}},
			{Name: "gemini", Type: "gemini", APIKeyEnv: "GEMINI_API_KEY"},
		},
		Categories: map[string]CategoryConfig{
			"technology": {StylePersona: "Tech Expert", ProviderOverride: "openai"},
		},
	}
}

func (c *PipelineConfig) ApplyDefaults(testMode bool) {
	if testMode {
		c.Environment.TestMode = true
	}
	for i := range c.Providers {
		p := &c.Providers[i]
		if p.DefaultTemperature == 0 {
			p.DefaultTemperature = 0.7
		}
		if p.MaxTokens == 0 {
			p.MaxTokens = 4000
		}
		if p.DefaultSize == "" {
			p.DefaultSize = "1024x1024"
		}
		if p.DefaultQuality == "" {
			p.DefaultQuality = "standard"
		}
		if len(p.SupportedSizes) == 0 {
			p.SupportedSizes = []string{"1024x1024"}
		}
		p.TestMode = c.Environment.TestMode
	}
	if c.Categories == nil {
		c.Categories = map[string]CategoryConfig{}
	}
	if len(c.Categorization.Categories) == 0 {
		c.Categorization.Categories = append([]string(nil), DefaultCategories...)
	}
	if c.Categorization.FallbackCategory == "" {
		c.Categorization.FallbackCategory = "technology"
	}
	if c.ImageGeneration.Provider == "" {
		c.ImageGeneration.Provider = "openai"
	}
	if c.ImageGeneration.Size == "" {
		c.ImageGeneration.Size = "1792x1024"
	}
	if c.ImageGeneration.Quality == "" {
		c.ImageGeneration.Quality = "hd"
	}
	if c.MemeGeneration.Provider == "" {
		c.MemeGeneration.Provider = "openai"
	}
	if c.ErrorHandling.RetryAttempts <= 0 {
		c.ErrorHandling.RetryAttempts = 3
	}
	if len(c.Blog.KeyElements) == 0 {
		c.Blog.KeyElements = append([]string(nil), DefaultKeyElements...)
	}
	if c.Blog.CallToAction == "" {
		c.Blog.CallToAction = os.Getenv("BLOG_CALL_TO_ACTION")
	}
	if c.Blog.CallToAction == "" {
		c.Blog.CallToAction = "Join the Internet of Value & Freedom at braincargo.com"
	}
}

var envPlaceholder = regexp.MustCompile(`^\$\{([^}]+)\}$`)

// ExpandEnv replaces a value that is exactly "${VAR}" with the variable's
// value. Unset variables expand to the empty string. Other strings pass
// through untouched.
func ExpandEnv(v string) string {
	m := envPlaceholder.FindStringSubmatch(strings.TrimSpace(v))
	if m == nil {
		return v
	}
	return os.Getenv(m[1])
}

// ExpandEnvNode walks a YAML tree and expands placeholders in every scalar.
// Expanded scalars lose their tag so "${PORT}" may decode into an int.
func ExpandEnvNode(n *yaml.Node) {
	if n == nil {
		return
	}
	if n.Kind == yaml.ScalarNode {
		if envPlaceholder.MatchString(strings.TrimSpace(n.Value)) {
			n.Value = ExpandEnv(n.Value)
			n.Tag = ""
			n.Style = 0
		}
		return
	}
	for _, child := range n.Content {
		ExpandEnvNode(child)
	}
}
