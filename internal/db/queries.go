package db

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

var ErrNotFound = errors.New("not found")

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

const postColumns = `id, slug, title, summary, category, author, source_url, source_type,
	storage_path, featured_image, provider, word_count, reading_time, tags, document,
	published_at, created_at`

func scanPost(row pgx.Row) (Post, error) {
	var p Post
	err := row.Scan(
		&p.ID, &p.Slug, &p.Title, &p.Summary, &p.Category, &p.Author, &p.SourceURL, &p.SourceType,
		&p.StoragePath, &p.FeaturedImage, &p.Provider, &p.WordCount, &p.ReadingTime, &p.Tags, &p.Document,
		&p.PublishedAt, &p.CreatedAt,
	)
	return p, err
}

const upsertPost = `-- name: UpsertPost :exec
INSERT INTO posts (
	id, slug, title, summary, category, author, source_url, source_type,
	storage_path, featured_image, provider, word_count, reading_time, tags, document, published_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
ON CONFLICT (id) DO UPDATE SET
	slug = EXCLUDED.slug,
	title = EXCLUDED.title,
	summary = EXCLUDED.summary,
	category = EXCLUDED.category,
	storage_path = EXCLUDED.storage_path,
	featured_image = EXCLUDED.featured_image,
	word_count = EXCLUDED.word_count,
	reading_time = EXCLUDED.reading_time,
	tags = EXCLUDED.tags,
	document = EXCLUDED.document
`

type UpsertPostParams struct {
	ID            string
	Slug          string
	Title         string
	Summary       string
	Category      string
	Author        string
	SourceURL     string
	SourceType    string
	StoragePath   string
	FeaturedImage string
	Provider      string
	WordCount     int32
	ReadingTime   int32
	Tags          []string
	Document      json.RawMessage
	PublishedAt   time.Time
}

func (q *Queries) UpsertPost(ctx context.Context, arg UpsertPostParams) error {
	tags := arg.Tags
	if tags == nil {
		tags = []string{}
	}
	_, err := q.db.Exec(ctx, upsertPost,
		arg.ID, arg.Slug, arg.Title, arg.Summary, arg.Category, arg.Author, arg.SourceURL, arg.SourceType,
		arg.StoragePath, arg.FeaturedImage, arg.Provider, arg.WordCount, arg.ReadingTime, tags, arg.Document,
		arg.PublishedAt,
	)
	return err
}

const getPost = `-- name: GetPost :one
SELECT ` + postColumns + ` FROM posts WHERE id = $1`

func (q *Queries) GetPost(ctx context.Context, id string) (Post, error) {
	p, err := scanPost(q.db.QueryRow(ctx, getPost, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Post{}, ErrNotFound
	}
	return p, err
}

const listPosts = `-- name: ListPosts :many
SELECT ` + postColumns + ` FROM posts
WHERE ($1::text = '' OR category = $1)
ORDER BY published_at DESC
LIMIT $2 OFFSET $3`

type ListPostsParams struct {
	Category string
	Limit    int32
	Offset   int32
}

func (q *Queries) ListPosts(ctx context.Context, arg ListPostsParams) ([]Post, error) {
	rows, err := q.db.Query(ctx, listPosts, arg.Category, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

const searchPostsByTitle = `-- name: SearchPostsByTitle :many
SELECT ` + postColumns + ` FROM posts
WHERE title ILIKE '%' || $1 || '%'
ORDER BY published_at DESC
LIMIT $2`

func (q *Queries) SearchPostsByTitle(ctx context.Context, query string, limit int32) ([]Post, error) {
	rows, err := q.db.Query(ctx, searchPostsByTitle, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

const postStats = `-- name: PostStats :one
SELECT COUNT(*), COALESCE(SUM(word_count), 0), MAX(published_at) FROM posts`

const categoryCounts = `-- name: CategoryCounts :many
SELECT category, COUNT(*) FROM posts GROUP BY category ORDER BY COUNT(*) DESC, category`

func (q *Queries) PostStats(ctx context.Context) (PostStats, error) {
	var stats PostStats
	if err := q.db.QueryRow(ctx, postStats).Scan(&stats.TotalPosts, &stats.TotalWords, &stats.LastPublishedAt); err != nil {
		return stats, err
	}

	rows, err := q.db.Query(ctx, categoryCounts)
	if err != nil {
		return stats, err
	}
	defer rows.Close()

	stats.Categories = []CategoryCount{}
	for rows.Next() {
		var c CategoryCount
		if err := rows.Scan(&c.Category, &c.Posts); err != nil {
			return stats, err
		}
		stats.Categories = append(stats.Categories, c)
	}
	return stats, rows.Err()
}

const setPostEmbedding = `-- name: SetPostEmbedding :exec
UPDATE posts SET embedding = $2 WHERE id = $1`

func (q *Queries) SetPostEmbedding(ctx context.Context, id string, embedding pgvector.Vector) error {
	tag, err := q.db.Exec(ctx, setPostEmbedding, id, embedding)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const relatedPosts = `-- name: RelatedPosts :many
SELECT p.id, p.slug, p.title, p.summary, p.category,
	1 - (p.embedding <=> src.embedding) AS similarity
FROM posts p, (SELECT embedding FROM posts WHERE id = $1) src
WHERE p.id <> $1 AND p.embedding IS NOT NULL AND src.embedding IS NOT NULL
ORDER BY p.embedding <=> src.embedding
LIMIT $2`

func (q *Queries) RelatedPosts(ctx context.Context, id string, limit int32) ([]RelatedPost, error) {
	return q.queryRelated(ctx, relatedPosts, id, limit)
}

const searchPostsByEmbedding = `-- name: SearchPostsByEmbedding :many
SELECT id, slug, title, summary, category, 1 - (embedding <=> $1) AS similarity
FROM posts
WHERE embedding IS NOT NULL
ORDER BY embedding <=> $1
LIMIT $2`

func (q *Queries) SearchPostsByEmbedding(ctx context.Context, embedding pgvector.Vector, limit int32) ([]RelatedPost, error) {
	return q.queryRelated(ctx, searchPostsByEmbedding, embedding, limit)
}

func (q *Queries) queryRelated(ctx context.Context, sql string, args ...interface{}) ([]RelatedPost, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []RelatedPost
	for rows.Next() {
		var r RelatedPost
		if err := rows.Scan(&r.ID, &r.Slug, &r.Title, &r.Summary, &r.Category, &r.Similarity); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const getMediaAssetByHash = `-- name: GetMediaAssetByHash :one
SELECT content_hash, storage_key, public_url, content_type, size_bytes, source_url, blog_id, created_at
FROM media_assets WHERE content_hash = $1`

// GetMediaAssetByHash returns nil without error when the hash is unknown.
func (q *Queries) GetMediaAssetByHash(ctx context.Context, hash string) (*MediaAsset, error) {
	var a MediaAsset
	err := q.db.QueryRow(ctx, getMediaAssetByHash, hash).Scan(
		&a.ContentHash, &a.StorageKey, &a.PublicURL, &a.ContentType, &a.SizeBytes, &a.SourceURL, &a.BlogID, &a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

const insertMediaAsset = `-- name: InsertMediaAsset :exec
INSERT INTO media_assets (content_hash, storage_key, public_url, content_type, size_bytes, source_url, blog_id)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (content_hash) DO NOTHING`

func (q *Queries) InsertMediaAsset(ctx context.Context, a MediaAsset) error {
	_, err := q.db.Exec(ctx, insertMediaAsset,
		a.ContentHash, a.StorageKey, a.PublicURL, a.ContentType, a.SizeBytes, a.SourceURL, a.BlogID,
	)
	return err
}

const feedItemExists = `-- name: FeedItemExists :one
SELECT EXISTS (SELECT 1 FROM feed_items WHERE guid = $1)`

func (q *Queries) FeedItemExists(ctx context.Context, guid string) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, feedItemExists, guid).Scan(&exists)
	return exists, err
}

const insertFeedItem = `-- name: InsertFeedItem :exec
INSERT INTO feed_items (guid, feed_url, link, title, post_id, error)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (guid) DO UPDATE SET post_id = EXCLUDED.post_id, error = EXCLUDED.error, seen_at = NOW()`

func (q *Queries) InsertFeedItem(ctx context.Context, item FeedItem) error {
	_, err := q.db.Exec(ctx, insertFeedItem, item.GUID, item.FeedURL, item.Link, item.Title, item.PostID, item.Error)
	return err
}
