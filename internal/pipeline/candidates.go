package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/braincargo/brainblog/internal/metrics"
	"github.com/braincargo/brainblog/internal/services/provider"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var imagePriority = []provider.Type{provider.TypeOpenAI, provider.TypeGrok, provider.TypeGemini}

// mediaCandidates orders the providers to try for a media stage: the
// category override, the stage default, then every other available
// image-capable provider by vendor priority. Named entries are kept even
// when unavailable so the attempt is recorded.
func mediaCandidates(ctx context.Context, set *provider.Set, categoryProvider, stageProvider string) []provider.Provider {
	var out []provider.Provider
	seen := map[string]bool{}
	add := func(p provider.Provider) {
		if !seen[p.Name()] {
			seen[p.Name()] = true
			out = append(out, p)
		}
	}

	for _, name := range []string{categoryProvider, stageProvider} {
		if name == "" {
			continue
		}
		if p, ok := set.Lookup(name); ok {
			add(p)
		}
	}
	for _, typ := range imagePriority {
		for _, p := range set.All() {
			if p.Type() == typ && !seen[p.Name()] && provider.SupportsImages(p) && p.IsAvailable(ctx) {
				add(p)
			}
		}
	}
	return out
}

type imageAttempt func(ctx context.Context, p provider.Provider, gen provider.ImageGenerator) provider.ImageResult

// generateWithFallback walks the candidates up to rounds times and returns
// the first successful result. At most rounds*len(candidates) generations
// run; a provider whose failure is permanent (auth, credit) is not asked
// again. lastErr describes the final failure.
func generateWithFallback(ctx context.Context, stage string, candidates []provider.Provider, rounds int, attempt imageAttempt) (res provider.ImageResult, lastErr string) {
	if rounds < 1 {
		rounds = 1
	}
	if len(candidates) == 0 {
		return provider.ImageResult{}, "no image-capable providers configured"
	}

	first := candidates[0].Name()
	reason := "unavailable"
	dropped := map[string]bool{}
	for round := 1; round <= rounds; round++ {
		for _, p := range candidates {
			if ctx.Err() != nil {
				return provider.ImageResult{}, ctx.Err().Error()
			}
			if dropped[p.Name()] {
				continue
			}
			if !p.IsAvailable(ctx) {
				lastErr = fmt.Sprintf("%s provider not available", p.Name())
				recordAttempt(ctx, stage, p.Name(), "unavailable", "")
				continue
			}
			gen, ok := p.(provider.ImageGenerator)
			if !ok {
				lastErr = fmt.Sprintf("%s does not support image generation", p.Name())
				recordAttempt(ctx, stage, p.Name(), "unsupported", "")
				continue
			}

			slog.Info("Generating media", "stage", stage, "provider", p.Name(), "round", round)
			res = attempt(ctx, p, gen)
			if res.Provider == "" {
				res.Provider = p.Name()
			}
			if res.Success {
				recordAttempt(ctx, stage, p.Name(), "success", "")
				if p.Name() != first {
					metrics.ProviderFallbackTotal.Add(ctx, 1, metric.WithAttributes(
						attribute.String("from_provider", first),
						attribute.String("to_provider", p.Name()),
						attribute.String("stage", stage),
						attribute.String("reason", reason),
					))
				}
				return res, ""
			}

			pe := provider.ClassifyMessage(res.Error, p.Name(), 0)
			lastErr = res.Error
			reason = pe.Type
			recordAttempt(ctx, stage, p.Name(), "error", pe.Type)
			slog.Warn("Media generation attempt failed", "stage", stage, "provider", p.Name(), "round", round, "error_type", pe.Type, "error", res.Error)
			if pe.Permanent() {
				dropped[p.Name()] = true
			}
		}
	}
	return provider.ImageResult{}, lastErr
}

func recordAttempt(ctx context.Context, stage, providerName, outcome, errorType string) {
	attrs := []attribute.KeyValue{
		attribute.String("stage", stage),
		attribute.String("provider", providerName),
		attribute.String("outcome", outcome),
	}
	if errorType != "" {
		attrs = append(attrs, attribute.String("error_type", errorType))
	}
	metrics.MediaGenerationAttempts.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// capPrompt limits image prompts to 400 characters.
func capPrompt(s string) string {
	r := []rune(s)
	if len(r) > 400 {
		return string(r[:400]) + "..."
	}
	return s
}
