package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestConstructors(t *testing.T) {
	cause := errors.New("status 503")

	tests := []struct {
		name      string
		err       *AppError
		wantType  ErrorType
		status    int
		retryable bool
	}{
		{"validation", NewValidationError("bad", "MISSING_INPUT", "Send a url"), ErrorTypeValidation, http.StatusBadRequest, false},
		{"not found", NewNotFoundError("no post", "POST_NOT_FOUND", ""), ErrorTypeNotFound, http.StatusNotFound, false},
		{"rate limit", NewRateLimitError("slow down", "RATE_LIMITED", ""), ErrorTypeRateLimit, http.StatusTooManyRequests, true},
		{"configuration", NewConfigurationError("no key", "NO_KEY", nil), ErrorTypeConfiguration, http.StatusServiceUnavailable, false},
		{"unavailable", NewUnavailableError("down", "PIPELINE_UNAVAILABLE", nil), ErrorTypeUnavailable, http.StatusServiceUnavailable, true},
		{"provider", NewProviderError("vendor failed", "PROVIDER_FAILED", cause), ErrorTypeProvider, http.StatusBadGateway, true},
		{"categorization", NewCategorizationError("no category", "CATEGORIZE_FAILED", cause), ErrorTypeCategorization, http.StatusInternalServerError, false},
		{"generation", NewGenerationError("no post", "PIPELINE_FAILED", cause), ErrorTypeGeneration, http.StatusInternalServerError, false},
		{"media", NewMediaError("no image", "IMAGE_FAILED", cause), ErrorTypeMedia, http.StatusInternalServerError, true},
		{"storage", NewStorageError("upload", "UPLOAD_FAILED", cause), ErrorTypeStorage, http.StatusInternalServerError, true},
		{"scraper", NewScraperError("fetch", "SCRAPE_FAILED", cause), ErrorTypeScraper, http.StatusBadRequest, false},
		{"internal", NewInternalError("oops", "INTERNAL", cause), ErrorTypeInternal, http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Type != tt.wantType {
				t.Errorf("Type = %v, want %v", tt.err.Type, tt.wantType)
			}
			if tt.err.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", tt.err.StatusCode, tt.status)
			}
			if got := tt.err.IsRetryable(); got != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.retryable)
			}
			if tt.err.Code() == "" {
				t.Error("Code() must not be empty")
			}
		})
	}
}

func TestAppError_ErrorWrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewStorageError("Failed to upload blog post", "UPLOAD_FAILED", cause)

	if got, want := err.Error(), "Failed to upload blog post: connection refused"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, cause) {
		t.Error("cause not reachable through Unwrap")
	}
	if got := NewValidationError("No content provided", "INVALID_CONTENT", "").Error(); got != "No content provided" {
		t.Errorf("Error() without cause = %q", got)
	}
}

func TestRecoverySuggestion(t *testing.T) {
	err := NewValidationError("Missing input", "MISSING_INPUT", "Provide url, topic, or content")
	if err.RecoverySuggestion() != "Provide url, topic, or content" {
		t.Errorf("RecoverySuggestion() = %q", err.RecoverySuggestion())
	}
}

func TestStatusCode(t *testing.T) {
	wrapped := fmt.Errorf("publish: %w", NewUnavailableError("pipeline down", "PIPELINE_UNAVAILABLE", nil))
	if got := StatusCode(wrapped); got != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %v", got)
	}
	if got := StatusCode(errors.New("plain")); got != http.StatusInternalServerError {
		t.Errorf("expected 500, got %v", got)
	}
	if got := StatusCode(&AppError{Message: "no status"}); got != http.StatusInternalServerError {
		t.Errorf("expected 500 for zero status, got %v", got)
	}
}

func TestAs(t *testing.T) {
	appErr := NewScraperError("fetch failed", "SCRAPE_FAILED", nil)
	got, ok := As(fmt.Errorf("wrap: %w", appErr))
	if !ok || got != appErr {
		t.Fatalf("expected to extract AppError, got %v %v", got, ok)
	}
	if _, ok := As(errors.New("plain")); ok {
		t.Error("plain error must not match")
	}
}
