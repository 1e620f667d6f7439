package db

import (
	"encoding/json"
	"time"
)

type Post struct {
	ID            string          `json:"id"`
	Slug          string          `json:"slug"`
	Title         string          `json:"title"`
	Summary       string          `json:"summary"`
	Category      string          `json:"category"`
	Author        string          `json:"author"`
	SourceURL     string          `json:"source_url"`
	SourceType    string          `json:"source_type"`
	StoragePath   string          `json:"storage_path"`
	FeaturedImage string          `json:"featured_image"`
	Provider      string          `json:"provider"`
	WordCount     int32           `json:"word_count"`
	ReadingTime   int32           `json:"reading_time"`
	Tags          []string        `json:"tags"`
	Document      json.RawMessage `json:"document,omitempty"`
	PublishedAt   time.Time       `json:"published_at"`
	CreatedAt     time.Time       `json:"created_at"`
}

// RelatedPost is a post ranked by embedding similarity.
type RelatedPost struct {
	ID         string  `json:"id"`
	Slug       string  `json:"slug"`
	Title      string  `json:"title"`
	Summary    string  `json:"summary"`
	Category   string  `json:"category"`
	Similarity float64 `json:"similarity"`
}

type MediaAsset struct {
	ContentHash string
	StorageKey  string
	PublicURL   string
	ContentType string
	SizeBytes   int64
	SourceURL   string
	BlogID      string
	CreatedAt   time.Time
}

type FeedItem struct {
	GUID    string
	FeedURL string
	Link    string
	Title   string
	PostID  *string
	Error   *string
	SeenAt  time.Time
}

type CategoryCount struct {
	Category string `json:"category"`
	Posts    int64  `json:"posts"`
}

type PostStats struct {
	TotalPosts      int64           `json:"total_posts"`
	TotalWords      int64           `json:"total_words"`
	LastPublishedAt *time.Time      `json:"last_published_at,omitempty"`
	Categories      []CategoryCount `json:"categories"`
}
