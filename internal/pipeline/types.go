// Package pipeline turns source content into a published-ready blog post by
// running categorization, article generation, image and meme generation,
// media embedding and media persistence in a fixed order.
package pipeline

import (
	"time"

	"github.com/braincargo/brainblog/internal/services/provider"
)

// Categorization methods.
const (
	MethodLLM           = "llm"
	MethodRules         = "rules"
	MethodFallback      = "fallback"
	MethodErrorFallback = "error_fallback"
)

// Stage names, used as step keys and metric attributes.
const (
	StageCategorization    = "categorization"
	StageBlogGeneration    = "blog_generation"
	StageImageInstructions = "image_instructions"
	StageFeaturedImage     = "featured_image"
	StageMemeGeneration    = "meme_generation"
	StageMediaEmbedding    = "media_embedding"
	StageMediaStorage      = "media_storage"
)

// Meme types.
const (
	MemeGeneratedImage = "generated_image"
	MemeTextOnly       = "text_only"
)

// Source types of a post.
const (
	SourceURL     = "url"
	SourceTopic   = "topic"
	SourceContent = "content"
)

// Request is one pipeline invocation. URL may be empty for topic or raw
// content runs.
type Request struct {
	URL         string `json:"url,omitempty"`
	Content     string `json:"content"`
	CustomTitle string `json:"custom_title,omitempty"`
}

type Categorization struct {
	Category          string  `json:"category"`
	Confidence        float64 `json:"confidence"`
	Reasoning         string  `json:"reasoning"`
	Method            string  `json:"method"`
	Provider          string  `json:"provider,omitempty"`
	SecondaryCategory string  `json:"secondary_category,omitempty"`
	Success           bool    `json:"success"`
	Error             string  `json:"error,omitempty"`
}

// SavedMedia is the outcome of persisting one media file.
type SavedMedia struct {
	Success      bool   `json:"success"`
	PermanentURL string `json:"permanent_url"`
	OriginalURL  string `json:"original_url,omitempty"`
	Key          string `json:"key,omitempty"`
	ContentType  string `json:"content_type,omitempty"`
	Size         int64  `json:"size,omitempty"`
	Deduplicated bool   `json:"deduplicated,omitempty"`
	Error        string `json:"error,omitempty"`
}

type MediaStorage struct {
	Provider string                `json:"provider"`
	Bucket   string                `json:"bucket"`
	SavedAt  time.Time             `json:"saved_at"`
	Results  map[string]SavedMedia `json:"results"`
}

// Media describes the media attached to a post. URLs start out as temporary
// vendor URLs and are replaced by permanent ones when media is persisted.
type Media struct {
	FeaturedImage   string            `json:"featured_image,omitempty"`
	ThumbnailURL    string            `json:"thumbnail_url,omitempty"`
	MemeURL         string            `json:"meme_url,omitempty"`
	MemeType        string            `json:"meme_type,omitempty"`
	ImageAltText    string            `json:"image_alt_text,omitempty"`
	MemeAltText     string            `json:"meme_alt_text,omitempty"`
	ImageCaption    string            `json:"image_caption,omitempty"`
	MemeDescription string            `json:"meme_description,omitempty"`
	Images          []string          `json:"images"`
	Videos          []string          `json:"videos"`
	Thumbnails      map[string]string `json:"thumbnails"`
	AltTexts        map[string]string `json:"alt_texts"`
	Storage         *MediaStorage     `json:"storage,omitempty"`
}

// HasMedia reports whether anything was attached.
func (m *Media) HasMedia() bool {
	return m != nil && (m.FeaturedImage != "" || m.MemeURL != "" || m.ThumbnailURL != "")
}

type SEO struct {
	MetaDescription string   `json:"meta_description"`
	Keywords        []string `json:"keywords"`
	CanonicalURL    string   `json:"canonical_url"`
	OGImage         string   `json:"og_image,omitempty"`
	TwitterCard     string   `json:"twitter_card"`
}

type BlogPost struct {
	ID           string         `json:"id,omitempty"`
	Title        string         `json:"title"`
	Summary      string         `json:"summary"`
	Content      string         `json:"content"`
	Category     string         `json:"category"`
	StylePersona string         `json:"style_persona"`
	KeyElements  []string       `json:"key_elements"`
	CallToAction string         `json:"call_to_action"`
	Tags         []string       `json:"tags,omitempty"`
	Slug         string         `json:"slug,omitempty"`
	Author       string         `json:"author,omitempty"`
	SourceURL    string         `json:"source_url,omitempty"`
	SourceType   string         `json:"source_type,omitempty"`
	SourceTopic  string         `json:"source_topic,omitempty"`
	CustomTitle  string         `json:"custom_title,omitempty"`
	GeneratedAt  time.Time      `json:"generated_at,omitzero"`
	WordCount    int            `json:"word_count,omitempty"`
	ReadingTime  int            `json:"reading_time,omitempty"`
	Media        *Media         `json:"media,omitempty"`
	SEO          *SEO           `json:"seo,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Clone returns a copy that can be modified without touching p. Nested
// slices and maps are copied one level deep.
func (p *BlogPost) Clone() *BlogPost {
	if p == nil {
		return nil
	}
	c := *p
	c.KeyElements = append([]string(nil), p.KeyElements...)
	c.Tags = append([]string(nil), p.Tags...)
	if p.Media != nil {
		m := *p.Media
		c.Media = &m
	}
	if p.SEO != nil {
		s := *p.SEO
		c.SEO = &s
	}
	if p.Metadata != nil {
		c.Metadata = make(map[string]any, len(p.Metadata))
		for k, v := range p.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// BlogResult is the outcome of the blog generation stage.
type BlogResult struct {
	Success    bool           `json:"success"`
	Data       *BlogPost      `json:"data,omitempty"`
	Provider   string         `json:"provider,omitempty"`
	Model      string         `json:"model,omitempty"`
	Usage      provider.Usage `json:"usage"`
	NeedsMedia bool           `json:"needs_media"`
	Error      string         `json:"error,omitempty"`
	ErrorType  string         `json:"error_type,omitempty"`
}

type ImageInstructions struct {
	Prompt      string `json:"prompt"`
	Style       string `json:"style"`
	Composition string `json:"composition"`
	Colors      string `json:"colors"`
	Mood        string `json:"mood"`
	Caption     string `json:"caption"`
}

type InstructionsResult struct {
	Success  bool              `json:"success"`
	Data     ImageInstructions `json:"data"`
	Provider string            `json:"provider"`
	Model    string            `json:"model"`
	Error    string            `json:"error,omitempty"`
}

// FeaturedImage is the outcome of the image stage. On total failure it still
// carries the alt text and caption so a caller can render a placeholder.
type FeaturedImage struct {
	Success       bool   `json:"success"`
	ImageURL      string `json:"image_url,omitempty"`
	ThumbnailURL  string `json:"thumbnail_url,omitempty"`
	AltText       string `json:"alt_text"`
	Caption       string `json:"caption"`
	DallePrompt   string `json:"dalle_prompt"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
	Provider      string `json:"provider"`
	Model         string `json:"model,omitempty"`
	FallbackUsed  bool   `json:"fallback_used,omitempty"`
	Error         string `json:"error,omitempty"`
}

type MemeSpec struct {
	Template   string `json:"template"`
	TopText    string `json:"top_text"`
	BottomText string `json:"bottom_text"`
	Context    string `json:"context"`
	HumorType  string `json:"humor_type"`
}

// Meme is a MemeSpec plus its rendering. MemeURL is "text_only" when no
// image could be produced.
type Meme struct {
	MemeSpec
	MemeURL         string `json:"meme_url"`
	MemeType        string `json:"meme_type"`
	AltText         string `json:"alt_text"`
	MemeDescription string `json:"meme_description"`
	DallePrompt     string `json:"dalle_prompt,omitempty"`
	RevisedPrompt   string `json:"revised_prompt,omitempty"`
	Provider        string `json:"provider,omitempty"`
	Model           string `json:"model,omitempty"`
	FallbackUsed    bool   `json:"fallback_used,omitempty"`
	Error           string `json:"error,omitempty"`
}

type MemeResult struct {
	Success  bool   `json:"success"`
	Data     *Meme  `json:"data,omitempty"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
	Error    string `json:"error,omitempty"`
}

// StepStatus records the outcome of a stage that produces no data of its own.
type StepStatus struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Steps holds every stage result of a run. Stages that did not run are nil.
type Steps struct {
	Categorization    *Categorization     `json:"categorization,omitempty"`
	BlogGeneration    *BlogResult         `json:"blog_generation,omitempty"`
	ImageInstructions *InstructionsResult `json:"image_instructions,omitempty"`
	FeaturedImage     *FeaturedImage      `json:"featured_image,omitempty"`
	MemeGeneration    *MemeResult         `json:"meme_generation,omitempty"`
	MediaEmbedding    *StepStatus         `json:"media_embedding,omitempty"`
	MediaStorage      *StepStatus         `json:"media_storage,omitempty"`
}

// Result is the aggregate outcome of a pipeline run.
type Result struct {
	URL         string `json:"url,omitempty"`
	CustomTitle string `json:"custom_title,omitempty"`
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
	Steps       Steps  `json:"pipeline_steps"`
}

// Post returns the final post of a successful run, or nil.
func (r *Result) Post() *BlogPost {
	if r == nil || !r.Success || r.Steps.BlogGeneration == nil {
		return nil
	}
	return r.Steps.BlogGeneration.Data
}

// Provider returns the vendor that wrote the article text.
func (r *Result) Provider() string {
	if r == nil || r.Steps.BlogGeneration == nil {
		return ""
	}
	return r.Steps.BlogGeneration.Provider
}

// Health is the orchestrator's view of its dependencies.
type Health struct {
	ConfigLoaded bool            `json:"config_loaded"`
	Providers    map[string]bool `json:"providers"`
	Steps        map[string]bool `json:"steps"`
	Overall      bool            `json:"overall_health"`
}
