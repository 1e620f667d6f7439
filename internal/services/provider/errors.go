package provider

import (
	"errors"
	"strings"

	apperrors "github.com/braincargo/brainblog/internal/errors"
)

const (
	ErrorRateLimit       = "rate_limit"
	ErrorCreditExhausted = "credit_exhausted"
	ErrorTimeout         = "timeout"
	ErrorAuth            = "auth"
	ErrorServer          = "server_error"
	ErrorClient          = "client_error"
	ErrorUnknown         = "unknown"
)

// ProviderError represents a classified error from an AI provider
type ProviderError struct {
	Type     string
	Message  string
	Provider string
}

func (e *ProviderError) Error() string {
	return e.Message
}

// ClassifyError sorts a vendor failure into a coarse type so callers can
// decide whether another attempt is worthwhile.
func ClassifyError(err error, provider string) *ProviderError {
	if err == nil {
		return nil
	}
	return ClassifyMessage(err.Error(), provider, statusOf(err))
}

// ClassifyMessage classifies an error string, e.g. CompletionResult.Error.
func ClassifyMessage(msg, provider string, status int) *ProviderError {
	classify := func(t string) *ProviderError {
		return &ProviderError{Type: t, Message: msg, Provider: provider}
	}

	switch {
	case containsAny(msg, "status 429", "HTTP 429", "rate limit", "too many requests"):
		return classify(ErrorRateLimit)
	case containsAny(msg, "status 402", "HTTP 402", "insufficient credit", "insufficient_quota", "credit exhausted", "billing"):
		return classify(ErrorCreditExhausted)
	case containsAny(msg, "status 401", "status 403", "invalid api key", "invalid x-api-key", "unauthorized", "forbidden"):
		return classify(ErrorAuth)
	case containsAny(msg, "deadline exceeded", "timeout", "timed out"):
		return classify(ErrorTimeout)
	case status >= 500:
		return classify(ErrorServer)
	case status >= 400:
		return classify(ErrorClient)
	case containsAny(msg, "status 5", "HTTP 5", "server error", "internal error", "overloaded"):
		return classify(ErrorServer)
	case containsAny(msg, "status 4", "HTTP 4", "bad request"):
		return classify(ErrorClient)
	}
	return classify(ErrorUnknown)
}

// Permanent reports whether the provider will keep failing no matter how
// often it is asked: bad credentials or no credit left.
func (e *ProviderError) Permanent() bool {
	return e != nil && (e.Type == ErrorAuth || e.Type == ErrorCreditExhausted)
}

func statusOf(err error) int {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return 0
}

func containsAny(s string, subs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range subs {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}
