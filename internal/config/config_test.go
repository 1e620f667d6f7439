package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromYAMLOverlay(t *testing.T) {
	configContent := `blog:
  domain: example.org
  default_author: Staff Writer
security:
  authorized_phone_number: "+1 (555) 010-0000"
  phone_match: suffix
feeds:
  urls:
    - https://example.org/feed.xml`

	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "test_config.yaml")

	err := os.WriteFile(configPath, []byte(configContent), 0644)
	if err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	cfg := &Config{}
	err = cfg.LoadFromYAML(configPath)
	if err != nil {
		t.Fatalf("Failed to load YAML config: %v", err)
	}

	if cfg.Blog.Domain != "example.org" {
		t.Errorf("Expected domain to be 'example.org', got '%s'", cfg.Blog.Domain)
	}
	if cfg.Blog.DefaultAuthor != "Staff Writer" {
		t.Errorf("Expected author to be 'Staff Writer', got '%s'", cfg.Blog.DefaultAuthor)
	}
	if cfg.Security.PhoneMatch != PhoneMatchSuffix {
		t.Errorf("Expected phone_match to be 'suffix', got '%s'", cfg.Security.PhoneMatch)
	}
	if len(cfg.Feeds.URLs) != 1 {
		t.Errorf("Expected one feed URL, got %d", len(cfg.Feeds.URLs))
	}
}

func TestLoadFromYAMLEnvWins(t *testing.T) {
	configContent := `blog:
  domain: from-yaml.org`

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	cfg := &Config{Blog: BlogConfig{Domain: "from-env.org"}}
	require.NoError(t, cfg.LoadFromYAML(configPath))

	if cfg.Blog.Domain != "from-env.org" {
		t.Errorf("Expected env domain to win, got '%s'", cfg.Blog.Domain)
	}
}

func TestLoadFromYAMLMissingFile(t *testing.T) {
	cfg := &Config{}
	err := cfg.LoadFromYAML(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Errorf("Expected no error for missing file, got %v", err)
	}
}

func TestSetBlogDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.SetBlogDefaults()

	assert.Equal(t, "braincargo.com", cfg.Blog.Domain)
	assert.Equal(t, "AI Assistant", cfg.Blog.DefaultAuthor)
	assert.Equal(t, "technology", cfg.Blog.DefaultCategory)
	assert.NotEmpty(t, cfg.Blog.CallToAction)
	assert.Equal(t, "https://braincargo.com/blog/my-post/abc12345", cfg.Blog.PostURL("my-post", "abc12345"))
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv("PORT", "")
	t.Setenv("PHONE_AUTH_MATCH", "")
	t.Setenv("MEDIA_PREFIX", "")
	t.Setenv("CDN_BASE_URL", "https://cdn.example.org/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, PhoneMatchExact, cfg.Security.PhoneMatch)
	assert.Equal(t, "media", cfg.Storage.MediaPrefix)
	assert.Equal(t, "https://cdn.example.org", cfg.Storage.CDNBaseURL)
	assert.Equal(t, "@every 1h", cfg.Feeds.PollCron)
}

func TestValidateProductionRequiresDatabase(t *testing.T) {
	cfg := &Config{Env: "production", Security: SecurityConfig{PhoneMatch: PhoneMatchExact}}
	err := cfg.validate()
	if err == nil {
		t.Fatal("Expected error for missing DATABASE_URL in production")
	}
}

func TestValidateRejectsUnknownPhoneMatch(t *testing.T) {
	cfg := &Config{Env: "development", Security: SecurityConfig{PhoneMatch: "prefix"}}
	assert.Error(t, cfg.validate())
}

func TestIsTruthy(t *testing.T) {
	for _, v := range []string{"true", "1", "yes", "on", "TRUE", " On "} {
		assert.True(t, IsTruthy(v), v)
	}
	for _, v := range []string{"", "false", "0", "no", "off", "maybe"} {
		assert.False(t, IsTruthy(v), v)
	}
}

func TestIsPhoneAuthorized(t *testing.T) {
	tests := []struct {
		name string
		cfg  SecurityConfig
		from string
		want bool
	}{
		{"exact match ignores formatting", SecurityConfig{AuthorizedPhone: "+1 555-010-0000", EnablePhoneAuth: true, PhoneMatch: PhoneMatchExact}, "+15550100000", true},
		{"exact rejects missing country code", SecurityConfig{AuthorizedPhone: "+15550100000", EnablePhoneAuth: true, PhoneMatch: PhoneMatchExact}, "5550100000", false},
		{"suffix accepts country code on sender", SecurityConfig{AuthorizedPhone: "5550100000", EnablePhoneAuth: true, PhoneMatch: PhoneMatchSuffix}, "+1 555 010 0000", true},
		{"suffix rejects other numbers", SecurityConfig{AuthorizedPhone: "5550100000", EnablePhoneAuth: true, PhoneMatch: PhoneMatchSuffix}, "+15550109999", false},
		{"no configured number", SecurityConfig{EnablePhoneAuth: true, PhoneMatch: PhoneMatchExact}, "+15550100000", false},
		{"auth disabled", SecurityConfig{EnablePhoneAuth: false}, "anything", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.IsPhoneAuthorized(tt.from))
		})
	}
}
