package ai

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/braincargo/brainblog/internal/utils"
)

// Prompt template locations, relative to the prompts directory.
const (
	CategorizationPrompt  = "categorization/main.txt"
	BlogBasePrompt        = "blog_generation/base.txt"
	DefaultStylePrompt    = "blog_generation/tech_style.txt"
	ImageGenerationPrompt = "image_generation/main.txt"
	MemeGenerationPrompt  = "meme_generation/main.txt"
)

// DefaultBlogBase is used when the base template file is missing.
const DefaultBlogBase = "Generate a professional blog post about the given content."

const DefaultCategorization = `Analyze the following content and categorize it into one of these categories: {categories}

URL: {url}
Title: {title}
Content: {content}...

Instructions:
1. Choose the MOST appropriate category from the list above
2. Provide a confidence score (0.0 to 1.0)
3. Give a brief reasoning for your choice
4. Optionally suggest a secondary category if relevant

Respond in this exact JSON format:
{{
    "category": "selected_category",
    "confidence": 0.85,
    "reasoning": "Brief explanation of why this category fits",
    "secondary_category": "optional_secondary_category_or_null"
}}`

const DefaultImageInstructions = `Create detailed instructions for generating a professional blog featured image.

Blog Details:
- Title: {title}
- Summary: {summary}
- Category: {category}
- Style: {style_persona}

Generate JSON with these fields:
{{
  "prompt": "Detailed image generation prompt",
  "style": "Visual style description",
  "composition": "Layout and composition details",
  "colors": "Color palette and scheme",
  "mood": "Emotional tone of the image",
  "caption": "Image caption for the blog"
}}`

const DefaultMeme = `Create a witty tech meme for this blog post.

Blog Details:
- Title: {title}
- Summary: {summary}
- Category: {category}
- Style: {style_persona}

Available meme templates: {available_templates}

Generate JSON with these fields:
{{
  "template": "best_template_for_this_content",
  "top_text": "Short, punchy text for top",
  "bottom_text": "Short, punchy text for bottom",
  "context": "Brief explanation of the meme concept",
  "humor_type": "type of humor (comparison, irony, etc.)"
}}`

// inlineBlogPrompt is the last resort when the base template cannot be rendered.
const inlineBlogPrompt = `Write a blog post about the content from %s.

Category: %s
Style: %s
Content: %s

%s

Respond with valid JSON format.`

var (
	ErrUnknownPlaceholder = errors.New("unknown placeholder")
	ErrMalformedTemplate  = errors.New("malformed template")
)

// Templates loads prompt files from a directory laid out as
// <dir>/<stage>/<name>.txt.
type Templates struct {
	Dir string
}

func NewTemplates(dir string) *Templates {
	if dir == "" {
		dir = "prompts"
	}
	return &Templates{Dir: dir}
}

// Load returns the trimmed template at rel, or fallback when the file is
// missing or unreadable.
func (t *Templates) Load(rel, fallback string) string {
	path := rel
	if !filepath.IsAbs(path) {
		path = filepath.Join(t.Dir, rel)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Warn("Prompt file not found", "path", path)
		} else {
			slog.Error("Failed to read prompt file", "path", path, "error", err)
		}
		return fallback
	}
	return strings.TrimSpace(string(data))
}

// Render substitutes {name} placeholders from vars. Doubled braces are
// literal braces. A placeholder missing from vars, an empty or positional
// placeholder, or an unmatched brace is an error. Anything after ':' or '!'
// inside a placeholder is ignored.
func Render(tmpl string, vars map[string]string) (string, error) {
	var b strings.Builder
	b.Grow(len(tmpl))

	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		switch c {
		case '{':
			if i+1 < len(tmpl) && tmpl[i+1] == '{' {
				b.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(tmpl[i+1:], '}')
			if end < 0 {
				return "", fmt.Errorf("%w: single '{' at offset %d", ErrMalformedTemplate, i)
			}
			field := tmpl[i+1 : i+1+end]
			if strings.ContainsRune(field, '{') {
				return "", fmt.Errorf("%w: nested '{' at offset %d", ErrMalformedTemplate, i)
			}
			name := field
			if cut := strings.IndexAny(name, ":!"); cut >= 0 {
				name = name[:cut]
			}
			if name == "" || isDigits(name) {
				return "", fmt.Errorf("%w: positional field at offset %d", ErrMalformedTemplate, i)
			}
			val, ok := vars[name]
			if !ok {
				return "", fmt.Errorf("%w: %q", ErrUnknownPlaceholder, name)
			}
			b.WriteString(val)
			i += end + 1
		case '}':
			if i+1 < len(tmpl) && tmpl[i+1] == '}' {
				b.WriteByte('}')
				i++
				continue
			}
			return "", fmt.Errorf("%w: single '}' at offset %d", ErrMalformedTemplate, i)
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}

// RenderOr renders tmpl, or returns fallback rendered with the same vars if
// tmpl is invalid. The fallback is assumed to be valid.
func RenderOr(tmpl, fallback string, vars map[string]string) string {
	out, err := Render(tmpl, vars)
	if err == nil {
		return out
	}
	slog.Warn("Prompt template formatting failed, using default", "error", err)
	out, err = Render(fallback, vars)
	if err != nil {
		return fallback
	}
	return out
}

// BlogPromptInput carries the values substituted into blog templates.
type BlogPromptInput struct {
	URL           string
	OriginalTitle string
	Content       string
	Category      string
	StylePersona  string
}

// BuildBlogPrompt composes the base and style templates. The style template
// is rendered only when it looks like it has placeholders and is kept verbatim
// otherwise. A base template that cannot be rendered falls back to a short
// inline prompt.
func BuildBlogPrompt(base, style string, in BlogPromptInput) string {
	content := utils.TruncateRunes(in.Content, 2000)

	styleInstructions := style
	if strings.Contains(style, "{") && strings.Contains(style, "}") {
		rendered, err := Render(style, map[string]string{
			"url":           in.URL,
			"content":       content,
			"category":      in.Category,
			"style_persona": in.StylePersona,
		})
		if err != nil {
			slog.Warn("Style prompt formatting failed, using template as-is", "error", err)
		} else {
			styleInstructions = rendered
		}
	}

	prompt, err := Render(base, map[string]string{
		"url":                in.URL,
		"original_title":     in.OriginalTitle,
		"content":            content,
		"category":           in.Category,
		"style_persona":      in.StylePersona,
		"style_instructions": styleInstructions,
	})
	if err != nil {
		slog.Error("Base prompt formatting failed", "error", err)
		return fmt.Sprintf(inlineBlogPrompt, in.URL, in.Category, in.StylePersona, utils.TruncateRunes(in.Content, 1000), styleInstructions)
	}
	return prompt
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
