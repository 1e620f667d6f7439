package validation

import (
	"net/url"
	"strings"
	"unicode/utf8"

	apperrors "github.com/braincargo/brainblog/internal/errors"
)

const (
	MaxTitleLength   = 200
	MaxContentLength = 100_000
	MaxTopicLength   = 500
)

// GenerateRequest is the body of POST /generate. Exactly one of URL, Topic
// and Content is used, in that order of preference.
type GenerateRequest struct {
	URL      string `json:"url,omitempty"`
	Topic    string `json:"topic,omitempty"`
	Content  string `json:"content,omitempty"`
	Title    string `json:"title,omitempty"`
	Provider string `json:"provider,omitempty"`
	Style    string `json:"style,omitempty"`
}

// Source reports which input the request uses: "url", "topic", "content"
// or "" when none is set.
func (r GenerateRequest) Source() string {
	switch {
	case strings.TrimSpace(r.URL) != "":
		return "url"
	case strings.TrimSpace(r.Topic) != "":
		return "topic"
	case strings.TrimSpace(r.Content) != "":
		return "content"
	}
	return ""
}

// ValidateGenerateRequest returns a validation AppError describing the first
// problem with req.
func ValidateGenerateRequest(req GenerateRequest) error {
	switch req.Source() {
	case "":
		return apperrors.NewValidationError("Missing input: provide url, topic, or content", "MISSING_INPUT",
			"Send a JSON body with a url, topic or content field.")
	case "url":
		u, err := url.Parse(strings.TrimSpace(req.URL))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return apperrors.NewValidationError("Invalid URL: must be an absolute http(s) URL", "INVALID_URL",
				"Check the URL and include the https:// scheme.")
		}
	case "topic":
		if utf8.RuneCountInString(req.Topic) > MaxTopicLength {
			return apperrors.NewValidationError("Topic is too long", "TOPIC_TOO_LONG", "Keep the topic under 500 characters.")
		}
	case "content":
		if utf8.RuneCountInString(req.Content) > MaxContentLength {
			return apperrors.NewValidationError("Content is too long", "CONTENT_TOO_LONG", "Send at most 100000 characters.")
		}
	}

	if utf8.RuneCountInString(req.Title) > MaxTitleLength {
		return apperrors.NewValidationError("Title is too long", "TITLE_TOO_LONG", "Keep the title under 200 characters.")
	}
	return nil
}
