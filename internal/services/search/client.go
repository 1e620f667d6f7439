package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/braincargo/brainblog/internal/db"
	"github.com/pgvector/pgvector-go"
)

const (
	DefaultLimit = 5
	MaxLimit     = 50
)

// ErrNoEmbedder is returned when no configured provider can embed text.
var ErrNoEmbedder = errors.New("no embedding provider configured")

// DBQueries defines the database operations needed for search
type DBQueries interface {
	GetPost(ctx context.Context, id string) (db.Post, error)
	SetPostEmbedding(ctx context.Context, id string, embedding pgvector.Vector) error
	RelatedPosts(ctx context.Context, id string, limit int32) ([]db.RelatedPost, error)
	SearchPostsByEmbedding(ctx context.Context, embedding pgvector.Vector, limit int32) ([]db.RelatedPost, error)
	SearchPostsByTitle(ctx context.Context, query string, limit int32) ([]db.Post, error)
}

// Embedder is implemented by provider.OpenAIProvider.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SearchResult represents a post search result
type SearchResult struct {
	ID         string  `json:"id"`
	Slug       string  `json:"slug"`
	Title      string  `json:"title"`
	Summary    string  `json:"summary,omitempty"`
	Category   string  `json:"category,omitempty"`
	Similarity float64 `json:"similarity,omitempty"`
}

// Client provides related-post and search functionality
type Client struct {
	db       DBQueries
	embedder Embedder
}

// NewClient creates a new search client. embedder may be nil, in which case
// only title search and lookups of already embedded posts work.
func NewClient(db DBQueries, embedder Embedder) *Client {
	return &Client{
		db:       db,
		embedder: embedder,
	}
}

// EmbeddingText is the text embedded for a post.
func EmbeddingText(title, summary string) string {
	return strings.TrimSpace(title + "\n\n" + summary)
}

// EmbedPost computes and stores the embedding of a post.
func (c *Client) EmbedPost(ctx context.Context, id string) error {
	if c.embedder == nil {
		return ErrNoEmbedder
	}

	post, err := c.db.GetPost(ctx, id)
	if err != nil {
		return fmt.Errorf("post %s not found: %w", id, err)
	}

	embedding, err := c.embedder.Embed(ctx, EmbeddingText(post.Title, post.Summary))
	if err != nil {
		return fmt.Errorf("failed to generate embedding: %w", err)
	}

	if err := c.db.SetPostEmbedding(ctx, id, pgvector.NewVector(embedding)); err != nil {
		return fmt.Errorf("failed to update embedding: %w", err)
	}

	slog.Info("Embedding generated", "post_id", id, "dimensions", len(embedding))
	return nil
}

// Related returns the posts closest to id by cosine distance, excluding id.
func (c *Client) Related(ctx context.Context, id string, limit int) ([]SearchResult, error) {
	rows, err := c.db.RelatedPosts(ctx, id, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to find related posts: %w", err)
	}
	return fromRelated(rows), nil
}

// SearchSemantic performs semantic (vector) search using embeddings
func (c *Client) SearchSemantic(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if c.embedder == nil {
		return nil, ErrNoEmbedder
	}

	embedding, err := c.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	rows, err := c.db.SearchPostsByEmbedding(ctx, pgvector.NewVector(embedding), clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to search posts: %w", err)
	}
	return fromRelated(rows), nil
}

// SearchByTitle performs text-based search on post titles
func (c *Client) SearchByTitle(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	rows, err := c.db.SearchPostsByTitle(ctx, query, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to search posts by title: %w", err)
	}

	results := make([]SearchResult, len(rows))
	for i, r := range rows {
		results[i] = SearchResult{
			ID:       r.ID,
			Slug:     r.Slug,
			Title:    r.Title,
			Summary:  r.Summary,
			Category: r.Category,
		}
	}
	return results, nil
}

func fromRelated(rows []db.RelatedPost) []SearchResult {
	results := make([]SearchResult, len(rows))
	for i, r := range rows {
		results[i] = SearchResult{
			ID:         r.ID,
			Slug:       r.Slug,
			Title:      r.Title,
			Summary:    r.Summary,
			Category:   r.Category,
			Similarity: r.Similarity,
		}
	}
	return results
}

func clampLimit(limit int) int32 {
	if limit <= 0 {
		return DefaultLimit
	}
	return int32(min(limit, MaxLimit))
}
