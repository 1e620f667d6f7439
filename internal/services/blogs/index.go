package blogs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/braincargo/brainblog/internal/db"
	"github.com/braincargo/brainblog/internal/pipeline"
	"github.com/braincargo/brainblog/internal/services/storage"
)

// MaxIndexPosts bounds the public index; older posts stay reachable by key.
const MaxIndexPosts = 1000

type IndexEntry struct {
	ID            string    `json:"id"`
	StorageKey    string    `json:"storage_key"`
	Title         string    `json:"title"`
	Summary       string    `json:"summary"`
	Author        string    `json:"author"`
	Category      string    `json:"category"`
	SourceURL     string    `json:"source_url"`
	GeneratedAt   time.Time `json:"generated_at"`
	WordCount     int       `json:"word_count"`
	ReadingTime   int       `json:"reading_time"`
	Slug          string    `json:"slug"`
	FeaturedImage string    `json:"featured_image,omitempty"`
}

// Index is the blog-index.json document read by the static site.
type Index struct {
	Posts       []IndexEntry `json:"posts"`
	TotalPosts  int          `json:"total_posts"`
	LastUpdated time.Time    `json:"last_updated"`
}

// Add puts e at the front, replacing an older entry with the same id, and
// caps the list at MaxIndexPosts.
func (idx *Index) Add(e IndexEntry, now time.Time) {
	posts := make([]IndexEntry, 0, len(idx.Posts)+1)
	posts = append(posts, e)
	for _, p := range idx.Posts {
		if p.ID != e.ID {
			posts = append(posts, p)
		}
	}
	if len(posts) > MaxIndexPosts {
		posts = posts[:MaxIndexPosts]
	}
	idx.Posts = posts
	idx.TotalPosts = len(posts)
	idx.LastUpdated = now.UTC()
}

func IndexKey(prefix string) string {
	return prefix + "/api/blog-index.json"
}

func entryFromPost(post *pipeline.BlogPost, key string) IndexEntry {
	e := IndexEntry{
		ID:          post.ID,
		StorageKey:  key,
		Title:       post.Title,
		Summary:     post.Summary,
		Author:      post.Author,
		Category:    post.Category,
		SourceURL:   post.SourceURL,
		GeneratedAt: post.GeneratedAt,
		WordCount:   post.WordCount,
		ReadingTime: post.ReadingTime,
		Slug:        post.Slug,
	}
	if post.Media != nil {
		e.FeaturedImage = post.Media.FeaturedImage
	}
	return e
}

func entryFromRow(p db.Post) IndexEntry {
	return IndexEntry{
		ID:            p.ID,
		StorageKey:    p.StoragePath,
		Title:         p.Title,
		Summary:       p.Summary,
		Author:        p.Author,
		Category:      p.Category,
		SourceURL:     p.SourceURL,
		GeneratedAt:   p.PublishedAt,
		WordCount:     int(p.WordCount),
		ReadingTime:   int(p.ReadingTime),
		Slug:          p.Slug,
		FeaturedImage: p.FeaturedImage,
	}
}

func (s *Service) updateIndex(ctx context.Context, entry IndexEntry) error {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()

	key := IndexKey(s.storage.BlogPostsPrefix)
	var idx Index
	if err := s.objects.GetJSON(ctx, s.storage.BlogPostsBucket, key, &idx); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to read blog index: %w", err)
	}
	idx.Add(entry, s.now())

	if _, err := s.objects.PutJSON(ctx, s.storage.BlogPostsBucket, key, idx); err != nil {
		return fmt.Errorf("failed to write blog index: %w", err)
	}
	slog.Info("Blog index updated", "key", key, "total_posts", idx.TotalPosts)
	return nil
}

// PostLister is implemented by *db.Queries.
type PostLister interface {
	ListPosts(ctx context.Context, arg db.ListPostsParams) ([]db.Post, error)
}

// RebuildIndex rewrites the index from the newest posts in the database.
func (s *Service) RebuildIndex(ctx context.Context, posts PostLister) (int, error) {
	if s.objects == nil || !s.storage.Configured() {
		return 0, storage.ErrNotConfigured
	}
	rows, err := posts.ListPosts(ctx, db.ListPostsParams{Limit: MaxIndexPosts})
	if err != nil {
		return 0, fmt.Errorf("failed to list posts: %w", err)
	}

	idx := Index{Posts: make([]IndexEntry, 0, len(rows))}
	for _, row := range rows {
		idx.Posts = append(idx.Posts, entryFromRow(row))
	}
	idx.TotalPosts = len(idx.Posts)
	idx.LastUpdated = s.now().UTC()

	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	if _, err := s.objects.PutJSON(ctx, s.storage.BlogPostsBucket, IndexKey(s.storage.BlogPostsPrefix), idx); err != nil {
		return 0, fmt.Errorf("failed to write blog index: %w", err)
	}
	slog.Info("Blog index rebuilt", "total_posts", idx.TotalPosts)
	return idx.TotalPosts, nil
}
