package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Instruments start as no-ops so packages can record before Init runs (tests,
// CLI). Init swaps in the real instruments from the global meter provider.
var (
	fallbackMeter = noop.NewMeterProvider().Meter("noop")

	// Pipeline metrics
	PipelineRunsTotal, _     = fallbackMeter.Int64Counter("pipeline.runs.total")
	PipelineStageDuration, _ = fallbackMeter.Float64Histogram("pipeline.stage.duration")
	PostsPublishedTotal, _   = fallbackMeter.Int64Counter("posts.published.total")

	// External API metrics
	ExternalAPICallsTotal, _ = fallbackMeter.Int64Counter("external.api.calls.total")
	ExternalAPIDuration, _   = fallbackMeter.Float64Histogram("external.api.duration")

	// AI metrics
	AIGenerationDuration, _ = fallbackMeter.Float64Histogram("ai.generation.duration")

	// Provider fallback metrics
	ProviderFallbackTotal, _   = fallbackMeter.Int64Counter("provider.fallback.total")
	MediaGenerationAttempts, _ = fallbackMeter.Int64Counter("media.generation.attempts.total")
)

func Init() error {
	meter := otel.Meter("brainblog/business")
	var err error

	PipelineRunsTotal, err = meter.Int64Counter(
		"pipeline.runs.total",
		metric.WithDescription("Total number of pipeline runs by outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	PipelineStageDuration, err = meter.Float64Histogram(
		"pipeline.stage.duration",
		metric.WithDescription("Duration of individual pipeline stages"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2, 5, 10, 30, 60, 120),
	)
	if err != nil {
		return err
	}

	PostsPublishedTotal, err = meter.Int64Counter(
		"posts.published.total",
		metric.WithDescription("Total number of published blog posts"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	ExternalAPICallsTotal, err = meter.Int64Counter(
		"external.api.calls.total",
		metric.WithDescription("Total number of external API calls"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	ExternalAPIDuration, err = meter.Float64Histogram(
		"external.api.duration",
		metric.WithDescription("Duration of external API calls"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2, 5, 10, 30),
	)
	if err != nil {
		return err
	}

	AIGenerationDuration, err = meter.Float64Histogram(
		"ai.generation.duration",
		metric.WithDescription("Duration of LLM completions and image generations"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2, 5, 10, 30, 60),
	)
	if err != nil {
		return err
	}

	ProviderFallbackTotal, err = meter.Int64Counter(
		"provider.fallback.total",
		metric.WithDescription("Total number of provider fallback events"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	MediaGenerationAttempts, err = meter.Int64Counter(
		"media.generation.attempts.total",
		metric.WithDescription("Image and meme generation attempts by provider and outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	return nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordExternalCall records a vendor call. Use as
// defer metrics.RecordExternalCall(ctx, "openai", "completion", time.Now(), &err).
func RecordExternalCall(ctx context.Context, service, operation string, start time.Time, errp *error) {
	var err error
	if errp != nil {
		err = *errp
	}
	attrs := metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("operation", operation),
		attribute.String("status", status(err)),
	)
	ExternalAPICallsTotal.Add(ctx, 1, attrs)
	ExternalAPIDuration.Record(ctx, time.Since(start).Seconds(), attrs)
}

// RecordStage records a pipeline stage's duration and success.
func RecordStage(ctx context.Context, stage string, start time.Time, success bool) {
	PipelineStageDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.Bool("success", success),
	))
}
