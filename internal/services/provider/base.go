package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/braincargo/brainblog/internal/config"
	"github.com/braincargo/brainblog/internal/httpclient"
	"github.com/braincargo/brainblog/internal/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"
)

const availabilityTTL = time.Minute

var defaultModels = map[Type]string{
	TypeOpenAI:    "gpt-4o",
	TypeAnthropic: "claude-3-5-sonnet-latest",
	TypeGrok:      "grok-3",
	TypeGemini:    "gemini-1.5-flash",
}

// base holds what every adapter shares: resolved config, key, endpoint and
// HTTP client.
type base struct {
	name    string
	typ     Type
	cfg     config.ProviderConfig
	apiKey  string
	baseURL string
	client  *http.Client
	vendor  string

	mu        sync.Mutex
	availAt   time.Time
	available bool
	probes    singleflight.Group
}

func newBase(name string, typ Type, cfg config.ProviderConfig, defaultURL, vendor string) (*base, error) {
	if name == "" {
		name = string(typ)
	}
	apiKey := cfg.ResolvedAPIKey()
	if apiKey == "" {
		return nil, fmt.Errorf("%s: API key not configured (%s)", name, cfg.APIKeyEnv)
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultURL
	}
	client := httpclient.InstrumentedClient
	if cfg.TimeoutSeconds > 0 {
		client = httpclient.NewInstrumentedClient(time.Duration(cfg.TimeoutSeconds) * time.Second)
	}
	return &base{
		name:    name,
		typ:     typ,
		cfg:     cfg,
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  client,
		vendor:  vendor,
	}, nil
}

func (b *base) Name() string { return b.name }
func (b *base) Type() Type   { return b.typ }

// ModelFor maps a tier to a concrete model name. Test models win in test
// mode; an unknown tier uses the standard model, then the vendor default.
func (b *base) ModelFor(tier string) string {
	if tier == "" {
		tier = config.TierStandard
	}
	if b.cfg.TestMode && len(b.cfg.TestModels) > 0 {
		if m := b.cfg.TestModels[tier]; m != "" {
			return m
		}
		if m := b.cfg.TestModels[config.TierStandard]; m != "" {
			return m
		}
	}
	if m := b.cfg.Models[tier]; m != "" {
		return m
	}
	if m := b.cfg.Models[config.TierStandard]; m != "" {
		return m
	}
	return defaultModels[b.typ]
}

func (b *base) temperature(t float64) float64 {
	if t > 0 {
		return t
	}
	if b.cfg.DefaultTemperature > 0 {
		return b.cfg.DefaultTemperature
	}
	return 0.7
}

func (b *base) maxTokens(n int) int {
	if n > 0 {
		return n
	}
	if b.cfg.MaxTokens > 0 {
		return b.cfg.MaxTokens
	}
	return 4000
}

func (b *base) imageModel(def string) string {
	if m := b.cfg.ImageModels["default"]; m != "" {
		return m
	}
	return def
}

// validateSize returns size if supported, otherwise the default size.
func (b *base) validateSize(size string) string {
	if size != "" && slices.Contains(b.cfg.SupportedSizes, size) {
		return size
	}
	def := b.cfg.DefaultSize
	if def == "" {
		def = "1024x1024"
	}
	if size != "" && size != def {
		slog.Warn("Image size not supported, using default", "provider", b.name, "size", size, "default", def)
	}
	return def
}

// cachedAvailability runs probe at most once per availabilityTTL. The lock
// is not held during the probe; concurrent callers share one probe.
func (b *base) cachedAvailability(ctx context.Context, probe func(ctx context.Context) bool) bool {
	b.mu.Lock()
	if !b.availAt.IsZero() && time.Since(b.availAt) < availabilityTTL {
		ok := b.available
		b.mu.Unlock()
		return ok
	}
	b.mu.Unlock()

	v, _, _ := b.probes.Do("available", func() (any, error) {
		ok := b.runProbe(ctx, probe)
		b.mu.Lock()
		b.available = ok
		b.availAt = time.Now()
		b.mu.Unlock()
		return ok, nil
	})
	return v.(bool)
}

func (b *base) runProbe(ctx context.Context, probe func(ctx context.Context) bool) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Availability check panicked", "provider", b.name, "panic", r)
			ok = false
		}
	}()
	return probe(ctx)
}

// doJSON sends body as JSON and decodes a 2xx response into out. Non-2xx
// responses become "<Vendor> API error (status N): body" so that
// ClassifyError can read them.
func (b *base) doJSON(ctx context.Context, method, url string, headers map[string]string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(httpclient.WithProvider(ctx, b.vendor), method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s API error (status %d): %s", b.vendor, resp.StatusCode, truncateBody(respBody))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", b.vendor, err)
	}
	return nil
}

// complete wraps a vendor call: it records metrics, recovers panics and
// converts errors into an unsuccessful result.
func (b *base) complete(ctx context.Context, req CompletionRequest, model string, call func(ctx context.Context) (string, Usage, error)) (result CompletionResult) {
	start := time.Now()
	result = CompletionResult{Provider: b.name, Model: model, OutputFormat: req.OutputFormat}

	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s completion panicked: %v", b.name, r)
			result.Success = false
			result.Content = ""
			result.Error = err.Error()
		}
		attrs := metric.WithAttributes(attribute.String("provider", b.name), attribute.String("model", model))
		metrics.AIGenerationDuration.Record(ctx, time.Since(start).Seconds(), attrs)
		metrics.RecordExternalCall(ctx, b.name, "completion", start, &err)
	}()

	slog.Info("Generating completion", "provider", b.name, "model", model, "tier", req.Tier)

	var content string
	content, result.Usage, err = call(ctx)
	if err == nil && strings.TrimSpace(content) == "" {
		err = fmt.Errorf("empty response from %s", b.vendor)
	}
	if err != nil {
		slog.Error("Completion failed", "provider", b.name, "model", model, "error", err)
		result.Error = err.Error()
		return result
	}

	slog.Info("Completion finished", "provider", b.name, "model", model, "duration", time.Since(start))
	result.Content = content
	result.Success = true
	return result
}

// image wraps an image call like complete.
func (b *base) image(ctx context.Context, model string, call func(ctx context.Context) (ImageResult, error)) (result ImageResult) {
	start := time.Now()
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s image generation panicked: %v", b.name, r)
			result = ImageResult{Provider: b.name, Model: model, Error: err.Error()}
		}
		metrics.RecordExternalCall(ctx, b.name, "image", start, &err)
	}()

	result, err = call(ctx)
	result.Provider = b.name
	result.Model = model
	if err == nil && result.URL == "" {
		err = fmt.Errorf("No image data received from %s", b.vendor)
	}
	if err != nil {
		slog.Error("Image generation failed", "provider", b.name, "error", err)
		result.Success = false
		result.URL = ""
		result.Error = err.Error()
		return result
	}
	slog.Info("Image generated", "provider", b.name, "model", model, "duration", time.Since(start))
	result.Success = true
	return result
}

func truncateBody(body []byte) string {
	const limit = 500
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
