package utils

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"time"
)

// RetryConfig holds the configuration for the retry mechanism.
type RetryConfig struct {
	Name            string
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffFactor   float64
	Timeout         time.Duration
	RetryableErrors []string
}

// RetryableFunc defines the signature for operations that can be retried.
type RetryableFunc[T any] func(ctx context.Context) (T, error)

var transientPatterns = []string{
	"timeout",
	"deadline exceeded",
	"connection reset",
	"connection refused",
	"rate limit",
	"eof",
	"status 429",
	"status 500",
	"status 502",
	"status 503",
	"status 504",
}

// DefaultRetryConfig returns a RetryConfig with sensible default values.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Name:            "default",
		MaxAttempts:     3,
		InitialDelay:    1 * time.Second,
		MaxDelay:        5 * time.Second,
		BackoffFactor:   2.0,
		Timeout:         30 * time.Second,
		RetryableErrors: transientPatterns,
	}
}

// FetchRetryConfig is used for source page fetches. It keeps the 30s request
// timeout of the extractor and gives up quickly.
func FetchRetryConfig() RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.Name = "fetch"
	cfg.MaxAttempts = 2
	return cfg
}

// DownloadRetryConfig is used for temporary media URLs, which vendors expire
// after about an hour, so retries stay short.
func DownloadRetryConfig() RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.Name = "download"
	cfg.InitialDelay = 500 * time.Millisecond
	cfg.Timeout = 60 * time.Second
	return cfg
}

// IsRetryableError checks if the given error is retryable based on defined patterns.
func IsRetryableError(err error, patterns []string) bool {
	if err == nil {
		return false
	}
	errMsg := strings.ToLower(err.Error())
	for _, pattern := range patterns {
		if strings.Contains(errMsg, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}

// WithRetry executes the given operation with retries based on the provided config.
func WithRetry[T any](ctx context.Context, operation RetryableFunc[T], config RetryConfig) (T, error) {
	var lastErr error
	var zero T

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, config.Timeout)
		result, err := operation(attemptCtx)
		cancel()

		if err == nil {
			return result, nil
		}

		lastErr = err

		if attempt == config.MaxAttempts {
			break
		}
		if !IsRetryableError(err, config.RetryableErrors) {
			break
		}

		delay := backoffDelay(config, attempt)
		slog.Debug("Retrying operation", "name", config.Name, "attempt", attempt, "delay", delay, "error", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}

	return zero, lastErr
}

// backoffDelay is InitialDelay * BackoffFactor^(attempt-1), capped at MaxDelay,
// plus up to 10% jitter.
func backoffDelay(config RetryConfig, attempt int) time.Duration {
	backoff := float64(config.InitialDelay) * math.Pow(config.BackoffFactor, float64(attempt-1))
	delay := time.Duration(backoff)
	if config.MaxDelay > 0 && delay > config.MaxDelay {
		delay = config.MaxDelay
	}
	if jitterRange := int64(delay) / 10; jitterRange > 0 {
		delay += time.Duration(rand.Int63n(jitterRange))
	}
	return delay
}
