package storage

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"maps"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/braincargo/brainblog/internal/config"
	"github.com/braincargo/brainblog/internal/db"
	"github.com/braincargo/brainblog/internal/httpclient"
	"github.com/braincargo/brainblog/internal/pipeline"
	"github.com/braincargo/brainblog/internal/utils"
	"github.com/google/uuid"
)

const (
	MediaFeatured  = "featured"
	MediaMeme      = "meme"
	MediaThumbnail = "thumbnail"

	providerName  = "supabase"
	maxMediaBytes = 20 << 20
)

var ErrNotConfigured = errors.New("storage not configured")

var knownExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true}

var contentTypeExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// AssetIndex remembers uploaded media by content hash.
type AssetIndex interface {
	GetMediaAssetByHash(ctx context.Context, hash string) (*db.MediaAsset, error)
	InsertMediaAsset(ctx context.Context, asset db.MediaAsset) error
}

// MediaStore copies temporary vendor media URLs into the blog bucket.
type MediaStore struct {
	client  *Client
	cfg     config.StorageConfig
	assets  AssetIndex
	fetcher *http.Client
	now     func() time.Time
}

// NewMediaStore returns a store. client may be nil when storage is not
// configured, in which case every save reports the original URL. assets
// may be nil to disable deduplication.
func NewMediaStore(client *Client, cfg config.StorageConfig, assets AssetIndex) *MediaStore {
	return &MediaStore{
		client:  client,
		cfg:     cfg,
		assets:  assets,
		fetcher: httpclient.New(httpclient.WithTimeout(60 * time.Second)),
		now:     time.Now,
	}
}

func (s *MediaStore) Configured() bool {
	return s != nil && s.client != nil && s.cfg.Configured()
}

// Save downloads tempURL and stores it under a dated key. Failures never
// return an error; the result carries the original URL instead.
func (s *MediaStore) Save(ctx context.Context, tempURL, blogID, mediaType string) pipeline.SavedMedia {
	failed := func(err error) pipeline.SavedMedia {
		return pipeline.SavedMedia{Success: false, PermanentURL: tempURL, OriginalURL: tempURL, Error: err.Error()}
	}

	if !s.Configured() {
		return failed(ErrNotConfigured)
	}
	if tempURL == "" {
		return failed(errors.New("empty media url"))
	}

	dl, err := utils.WithRetry(ctx, func(ctx context.Context) (download, error) {
		return s.download(ctx, tempURL)
	}, utils.DownloadRetryConfig())
	if err != nil {
		slog.Warn("Failed to download media", "type", mediaType, "blog_id", blogID, "error", err)
		return failed(err)
	}

	hash := HashContent(dl.data)
	if s.assets != nil {
		existing, err := s.assets.GetMediaAssetByHash(ctx, hash)
		if err != nil {
			slog.Warn("Media dedupe lookup failed", "hash", hash, "error", err)
		} else if existing != nil {
			return pipeline.SavedMedia{
				Success:      true,
				PermanentURL: s.permanentURL(existing.StorageKey),
				OriginalURL:  tempURL,
				Key:          existing.StorageKey,
				ContentType:  existing.ContentType,
				Size:         existing.SizeBytes,
				Deduplicated: true,
			}
		}
	}

	key := MediaKey(s.cfg.MediaPrefix, s.now(), mediaType, blogID, extensionFor(tempURL, dl.contentType))
	if _, err := s.client.Upload(ctx, s.cfg.BlogPostsBucket, key, dl.data, dl.contentType); err != nil {
		slog.Warn("Failed to upload media", "key", key, "error", err)
		return failed(err)
	}
	permanent := s.permanentURL(key)

	if s.assets != nil {
		asset := db.MediaAsset{
			ContentHash: hash,
			StorageKey:  key,
			PublicURL:   permanent,
			ContentType: dl.contentType,
			SizeBytes:   int64(len(dl.data)),
			SourceURL:   tempURL,
			BlogID:      blogID,
		}
		if err := s.assets.InsertMediaAsset(ctx, asset); err != nil {
			slog.Warn("Failed to record media asset", "key", key, "error", err)
		}
	}

	slog.Info("Media saved", "type", mediaType, "blog_id", blogID, "key", key, "bytes", len(dl.data))
	return pipeline.SavedMedia{
		Success:      true,
		PermanentURL: permanent,
		OriginalURL:  tempURL,
		Key:          key,
		ContentType:  dl.contentType,
		Size:         int64(len(dl.data)),
	}
}

type download struct {
	data        []byte
	contentType string
}

func (s *MediaStore) download(ctx context.Context, rawURL string) (download, error) {
	ctx = httpclient.WithOperation(ctx, "download")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return download{}, err
	}
	resp, err := s.fetcher.Do(req)
	if err != nil {
		return download{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return download{}, fmt.Errorf("media download failed: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes))
	if err != nil {
		return download{}, err
	}
	if len(data) == 0 {
		return download{}, errors.New("media download returned no data")
	}

	contentType := resp.Header.Get("Content-Type")
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = mediaType
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return download{data: data, contentType: contentType}, nil
}

func (s *MediaStore) permanentURL(key string) string {
	if s.cfg.CDNBaseURL != "" {
		return s.cfg.CDNBaseURL + "/" + key
	}
	return s.client.PublicURL(s.cfg.BlogPostsBucket, key)
}

// MediaKey builds {prefix}/{YYYY}/{MM}/{DD}/{type}/{blogID}-{type}-{uuid8}{ext}.
func MediaKey(prefix string, now time.Time, mediaType, blogID, ext string) string {
	if prefix == "" {
		prefix = "media"
	}
	if blogID == "" {
		blogID = "unknown"
	}
	now = now.UTC()
	return fmt.Sprintf("%s/%04d/%02d/%02d/%s/%s-%s-%s%s",
		prefix, now.Year(), now.Month(), now.Day(), mediaType, blogID, mediaType, uuid.NewString()[:8], ext)
}

func extensionFor(rawURL, contentType string) string {
	if u, err := url.Parse(rawURL); err == nil {
		if ext := strings.ToLower(path.Ext(u.Path)); knownExtensions[ext] {
			return ext
		}
	}
	if ext, ok := contentTypeExtensions[strings.ToLower(contentType)]; ok {
		return ext
	}
	return ".png"
}

type mediaJob struct {
	kind string
	url  string
}

// PersistMedia saves every temporary media URL of post and rewrites the
// post to point at the permanent copies. Individual failures are kept in
// media.storage.results and leave the original URL in place.
func (s *MediaStore) PersistMedia(ctx context.Context, post *pipeline.BlogPost) (*pipeline.BlogPost, error) {
	if post == nil || !post.Media.HasMedia() {
		return post, nil
	}
	if !s.Configured() {
		return nil, ErrNotConfigured
	}

	media := post.Media
	var jobs []mediaJob
	if media.FeaturedImage != "" {
		jobs = append(jobs, mediaJob{MediaFeatured, media.FeaturedImage})
	}
	if media.MemeURL != "" && media.MemeType != pipeline.MemeTextOnly {
		jobs = append(jobs, mediaJob{MediaMeme, media.MemeURL})
	}
	if media.ThumbnailURL != "" && media.ThumbnailURL != media.FeaturedImage {
		jobs = append(jobs, mediaJob{MediaThumbnail, media.ThumbnailURL})
	}
	if len(jobs) == 0 {
		return post, nil
	}

	funcs := make([]func(ctx context.Context) (pipeline.SavedMedia, error), len(jobs))
	for i, job := range jobs {
		funcs[i] = func(ctx context.Context) (pipeline.SavedMedia, error) {
			return s.Save(ctx, job.url, post.ID, job.kind), nil
		}
	}
	saved, _ := utils.RunParallelWithResults(ctx, len(jobs), funcs)

	out := post.Clone()
	m := out.Media
	m.Images = append([]string(nil), media.Images...)
	m.Thumbnails = maps.Clone(media.Thumbnails)
	m.AltTexts = maps.Clone(media.AltTexts)

	results := make(map[string]pipeline.SavedMedia, len(jobs))
	for i, job := range jobs {
		res := saved[i]
		results[job.kind] = res
		if !res.Success || res.PermanentURL == job.url {
			continue
		}
		out.Content = replaceInContent(out.Content, job.url, res.PermanentURL)
		replaceURL(m, job.url, res.PermanentURL)
	}

	m.Storage = &pipeline.MediaStorage{
		Provider: providerName,
		Bucket:   s.cfg.BlogPostsBucket,
		SavedAt:  s.now().UTC(),
		Results:  results,
	}
	return out, nil
}

// replaceInContent swaps from for to both as written and in the escaped
// form EmbedMedia puts into src attributes.
func replaceInContent(content, from, to string) string {
	content = strings.ReplaceAll(content, from, to)
	if escaped := html.EscapeString(from); escaped != from {
		content = strings.ReplaceAll(content, escaped, html.EscapeString(to))
	}
	return content
}

func replaceURL(m *pipeline.Media, from, to string) {
	for _, field := range []*string{&m.FeaturedImage, &m.ThumbnailURL, &m.MemeURL} {
		if *field == from {
			*field = to
		}
	}
	for i, u := range m.Images {
		if u == from {
			m.Images[i] = to
		}
	}
	for k, u := range m.Thumbnails {
		if u == from {
			m.Thumbnails[k] = to
		}
	}
	if alt, ok := m.AltTexts[from]; ok {
		delete(m.AltTexts, from)
		m.AltTexts[to] = alt
	}
}
