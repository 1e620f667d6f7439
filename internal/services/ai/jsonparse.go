package ai

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// Strategy names the step of the extraction chain that produced a result.
type Strategy string

const (
	StrategyStrict Strategy = "strict"
	StrategyFenced Strategy = "fenced"
	StrategyBraces Strategy = "braces"
	StrategyNone   Strategy = "none"
)

const (
	DefaultBlogTitle   = "Generated Blog Post"
	DefaultBlogSummary = "Summary of the source content."
)

var ErrNoJSON = errors.New("no JSON object found in response")

var (
	jsonFence = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
	bareFence = regexp.MustCompile("(?s)```\\s*(.*?)\\s*```")
)

// ExtractJSON pulls a JSON object out of model output. It tries a strict
// parse of the whole text, then a fenced code block, then the slice between
// the first '{' and the last '}'.
func ExtractJSON(text string) (map[string]any, Strategy, error) {
	cleaned := strings.TrimSpace(text)

	if strings.HasPrefix(cleaned, "{") && strings.HasSuffix(cleaned, "}") {
		if obj, ok := decodeObject(cleaned); ok {
			return obj, StrategyStrict, nil
		}
	}

	for _, fence := range []*regexp.Regexp{jsonFence, bareFence} {
		if m := fence.FindStringSubmatch(cleaned); m != nil {
			if obj, ok := decodeObject(strings.TrimSpace(m[1])); ok {
				return obj, StrategyFenced, nil
			}
		}
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start >= 0 && end > start {
		if obj, ok := decodeObject(cleaned[start : end+1]); ok {
			return obj, StrategyBraces, nil
		}
	}

	return nil, StrategyNone, ErrNoJSON
}

func decodeObject(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// ParseBlogResponse never fails: text that holds no JSON object becomes the
// content of a default post. title, summary and content are always present
// as non-empty strings, and a non-empty customTitle wins over the model's.
func ParseBlogResponse(text, customTitle string) map[string]any {
	data, _, err := ExtractJSON(text)
	if err != nil {
		data = map[string]any{
			"title":   DefaultBlogTitle,
			"summary": DefaultBlogSummary,
			"content": strings.TrimSpace(text),
		}
	}

	backfill(data, "title", DefaultBlogTitle)
	backfill(data, "summary", DefaultBlogSummary)
	backfill(data, "content", strings.TrimSpace(text))

	if customTitle != "" {
		data["title"] = customTitle
	}
	return data
}

func backfill(data map[string]any, key, def string) {
	if s, ok := data[key].(string); ok && strings.TrimSpace(s) != "" {
		return
	}
	data[key] = def
}

// String returns data[key] as a string, or def when absent or not a string.
func String(data map[string]any, key, def string) string {
	if s, ok := data[key].(string); ok && s != "" {
		return s
	}
	return def
}

// Float returns data[key] as a float64, or def when absent or not numeric.
func Float(data map[string]any, key string, def float64) float64 {
	switch v := data[key].(type) {
	case float64:
		return v
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	}
	return def
}

// Bool returns data[key] as a bool, also accepting "true" and "false" strings.
func Bool(data map[string]any, key string, def bool) bool {
	switch v := data[key].(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes":
			return true
		case "false", "no":
			return false
		}
	}
	return def
}
