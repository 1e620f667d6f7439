package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Env            string
	ServiceName    string
	ServiceVersion string

	DatabaseURL string
	RedisURL    string

	APIJWTSecret string
	APIJWTIssuer string

	OpenAIKey string

	OtelExporterOTLPEndpoint string
	OtelExporterOTLPHeaders  string
	SentryDSN                string

	Port string

	PipelineConfigPath string
	PromptsDir         string
	KnowledgeDir       string
	TestMode           bool

	Storage  StorageConfig
	Blog     BlogConfig
	Security SecurityConfig
	Feeds    FeedConfig
}

type StorageConfig struct {
	URL             string `yaml:"url"`
	ServiceKey      string `yaml:"-"`
	BlogPostsBucket string `yaml:"bucket"`
	BlogPostsPrefix string `yaml:"posts_prefix"`
	MediaPrefix     string `yaml:"media_prefix"`
	CDNBaseURL      string `yaml:"cdn_base_url"`
}

// Configured reports whether uploads can be attempted.
func (s StorageConfig) Configured() bool {
	return s.URL != "" && s.BlogPostsBucket != ""
}

type BlogConfig struct {
	Domain          string `yaml:"domain"`
	DefaultAuthor   string `yaml:"default_author"`
	DefaultCategory string `yaml:"default_category"`
	CallToAction    string `yaml:"call_to_action"`
}

// PostURL returns the canonical public URL of a post.
func (b BlogConfig) PostURL(slug, id string) string {
	return fmt.Sprintf("https://%s/blog/%s/%s", b.Domain, slug, id)
}

type SecurityConfig struct {
	AuthorizedPhone string `yaml:"authorized_phone_number"`
	EnablePhoneAuth bool   `yaml:"enable_phone_auth"`
	PhoneMatch      string `yaml:"phone_match"`
}

type FeedConfig struct {
	URLs     []string `yaml:"urls"`
	PollCron string   `yaml:"poll_cron"`
}

func Load() (*Config, error) {
	cfg := &Config{
		Env:                      os.Getenv("ENV"),
		ServiceName:              os.Getenv("SERVICE_NAME"),
		ServiceVersion:           os.Getenv("SERVICE_VERSION"),
		DatabaseURL:              os.Getenv("DATABASE_URL"),
		RedisURL:                 os.Getenv("REDIS_URL"),
		APIJWTSecret:             os.Getenv("API_JWT_SECRET"),
		APIJWTIssuer:             os.Getenv("API_JWT_ISSUER"),
		OpenAIKey:                os.Getenv("OPENAI_API_KEY"),
		OtelExporterOTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OtelExporterOTLPHeaders:  os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"),
		SentryDSN:                os.Getenv("SENTRY_DSN"),
		Port:                     os.Getenv("PORT"),
		PipelineConfigPath:       os.Getenv("PIPELINE_CONFIG"),
		PromptsDir:               os.Getenv("PROMPTS_DIR"),
		KnowledgeDir:             os.Getenv("KNOWLEDGE_DIR"),
		TestMode:                 IsTruthy(os.Getenv("ENABLE_TEST_MODE")),
		Storage: StorageConfig{
			URL:             os.Getenv("STORAGE_URL"),
			ServiceKey:      os.Getenv("STORAGE_SERVICE_KEY"),
			BlogPostsBucket: os.Getenv("BLOG_POSTS_BUCKET"),
			BlogPostsPrefix: os.Getenv("BLOG_POSTS_PREFIX"),
			MediaPrefix:     os.Getenv("MEDIA_PREFIX"),
			CDNBaseURL:      os.Getenv("CDN_BASE_URL"),
		},
		Blog: BlogConfig{
			Domain:          os.Getenv("BLOG_DOMAIN"),
			DefaultAuthor:   os.Getenv("BLOG_DEFAULT_AUTHOR"),
			DefaultCategory: os.Getenv("BLOG_DEFAULT_CATEGORY"),
			CallToAction:    os.Getenv("BLOG_CALL_TO_ACTION"),
		},
		Security: SecurityConfig{
			AuthorizedPhone: os.Getenv("AUTHORIZED_PHONE_NUMBER"),
			EnablePhoneAuth: os.Getenv("ENABLE_PHONE_AUTH") == "" || IsTruthy(os.Getenv("ENABLE_PHONE_AUTH")),
			PhoneMatch:      os.Getenv("PHONE_AUTH_MATCH"),
		},
		Feeds: FeedConfig{
			URLs:     splitList(os.Getenv("FEED_URLS")),
			PollCron: os.Getenv("FEED_POLL_CRON"),
		},
	}

	if err := cfg.LoadFromYAML("config.yaml"); err != nil {
		return nil, fmt.Errorf("failed to load YAML config: %w", err)
	}

	if cfg.Env == "" {
		cfg.Env = "development"
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "brainblog"
	}
	if cfg.ServiceVersion == "" {
		cfg.ServiceVersion = "2.0.0"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.APIJWTIssuer == "" {
		cfg.APIJWTIssuer = "brainblog"
	}
	if cfg.PipelineConfigPath == "" {
		cfg.PipelineConfigPath = "config/pipeline.yaml"
	}
	if cfg.PromptsDir == "" {
		cfg.PromptsDir = "prompts"
	}
	if cfg.KnowledgeDir == "" {
		cfg.KnowledgeDir = "openai_store"
	}

	cfg.SetBlogDefaults()
	cfg.SetStorageDefaults()
	cfg.SetSecurityDefaults()
	if cfg.Feeds.PollCron == "" {
		cfg.Feeds.PollCron = "@every 1h"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromYAML overlays the blog, storage, security and feeds sections of an
// optional YAML file. Environment values already set take precedence.
func (c *Config) LoadFromYAML(path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var yamlConfig struct {
		Blog     BlogConfig     `yaml:"blog"`
		Storage  StorageConfig  `yaml:"storage"`
		Security SecurityConfig `yaml:"security"`
		Feeds    FeedConfig     `yaml:"feeds"`
	}

	if err := yaml.Unmarshal(data, &yamlConfig); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	setIfEmpty(&c.Blog.Domain, yamlConfig.Blog.Domain)
	setIfEmpty(&c.Blog.DefaultAuthor, yamlConfig.Blog.DefaultAuthor)
	setIfEmpty(&c.Blog.DefaultCategory, yamlConfig.Blog.DefaultCategory)
	setIfEmpty(&c.Blog.CallToAction, yamlConfig.Blog.CallToAction)

	setIfEmpty(&c.Storage.URL, yamlConfig.Storage.URL)
	setIfEmpty(&c.Storage.BlogPostsBucket, yamlConfig.Storage.BlogPostsBucket)
	setIfEmpty(&c.Storage.BlogPostsPrefix, yamlConfig.Storage.BlogPostsPrefix)
	setIfEmpty(&c.Storage.MediaPrefix, yamlConfig.Storage.MediaPrefix)
	setIfEmpty(&c.Storage.CDNBaseURL, yamlConfig.Storage.CDNBaseURL)

	setIfEmpty(&c.Security.AuthorizedPhone, yamlConfig.Security.AuthorizedPhone)
	setIfEmpty(&c.Security.PhoneMatch, yamlConfig.Security.PhoneMatch)

	if len(c.Feeds.URLs) == 0 {
		c.Feeds.URLs = yamlConfig.Feeds.URLs
	}
	setIfEmpty(&c.Feeds.PollCron, yamlConfig.Feeds.PollCron)

	return nil
}

func (c *Config) SetBlogDefaults() {
	if c.Blog.Domain == "" {
		c.Blog.Domain = "braincargo.com"
	}
	if c.Blog.DefaultAuthor == "" {
		c.Blog.DefaultAuthor = "AI Assistant"
	}
	if c.Blog.DefaultCategory == "" {
		c.Blog.DefaultCategory = "technology"
	}
	if c.Blog.CallToAction == "" {
		c.Blog.CallToAction = "Join the Internet of Value & Freedom at braincargo.com"
	}
}

func (c *Config) SetStorageDefaults() {
	if c.Storage.BlogPostsPrefix == "" {
		c.Storage.BlogPostsPrefix = "blog"
	}
	if c.Storage.MediaPrefix == "" {
		c.Storage.MediaPrefix = "media"
	}
	c.Storage.CDNBaseURL = strings.TrimRight(c.Storage.CDNBaseURL, "/")
}

func (c *Config) SetSecurityDefaults() {
	if c.Security.PhoneMatch == "" {
		c.Security.PhoneMatch = PhoneMatchExact
	}
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) validate() error {
	if c.IsProduction() {
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required")
		}
		if c.APIJWTSecret == "" {
			return fmt.Errorf("API_JWT_SECRET is required")
		}
	}
	switch c.Security.PhoneMatch {
	case PhoneMatchExact, PhoneMatchSuffix:
	default:
		return fmt.Errorf("PHONE_AUTH_MATCH must be %q or %q, got %q", PhoneMatchExact, PhoneMatchSuffix, c.Security.PhoneMatch)
	}
	return nil
}

// IsTruthy matches the accepted spellings of an enabled boolean flag.
func IsTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}

func setIfEmpty(dst *string, v string) {
	if *dst == "" && v != "" {
		*dst = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
