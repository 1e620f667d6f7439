package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/braincargo/brainblog/internal/db"
	"github.com/braincargo/brainblog/internal/services/blogs"
	"github.com/braincargo/brainblog/internal/services/feeds"
	"github.com/braincargo/brainblog/internal/services/search"
	"github.com/hibiken/asynq"
)

// PostEmbedder is implemented by *search.Client.
type PostEmbedder interface {
	EmbedPost(ctx context.Context, id string) error
}

// FeedPoller is implemented by *feeds.Poller.
type FeedPoller interface {
	Poll(ctx context.Context) (feeds.Summary, error)
}

// IndexRebuilder is implemented by *blogs.Service.
type IndexRebuilder interface {
	RebuildIndex(ctx context.Context, posts blogs.PostLister) (int, error)
}

type Processor struct {
	embedder PostEmbedder
	feeds    FeedPoller
	index    IndexRebuilder
	posts    blogs.PostLister
}

// NewProcessor wires the task handlers. feeds may be nil when no feed is
// configured.
func NewProcessor(embedder PostEmbedder, poller FeedPoller, index IndexRebuilder, posts blogs.PostLister) *Processor {
	return &Processor{
		embedder: embedder,
		feeds:    poller,
		index:    index,
		posts:    posts,
	}
}

// Handlers maps every task type to its handler.
func (p *Processor) Handlers() map[string]asynq.HandlerFunc {
	return map[string]asynq.HandlerFunc{
		TypeEmbedPost:    p.HandleEmbedPost,
		TypeFeedPoll:     p.HandleFeedPoll,
		TypeIndexRebuild: p.HandleIndexRebuild,
	}
}

func (p *Processor) HandleEmbedPost(ctx context.Context, t *asynq.Task) error {
	var payload EmbedPostPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.PostID == "" {
		return fmt.Errorf("missing post_id: %w", asynq.SkipRetry)
	}

	err := p.embedder.EmbedPost(ctx, payload.PostID)
	if errors.Is(err, search.ErrNoEmbedder) || errors.Is(err, db.ErrNotFound) {
		slog.Warn("Skipping embedding", "post_id", payload.PostID, "error", err)
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return err
}

func (p *Processor) HandleFeedPoll(ctx context.Context, t *asynq.Task) error {
	if p.feeds == nil {
		slog.Debug("No feeds configured, skipping poll")
		return nil
	}
	_, err := p.feeds.Poll(ctx)
	return err
}

func (p *Processor) HandleIndexRebuild(ctx context.Context, t *asynq.Task) error {
	total, err := p.index.RebuildIndex(ctx, p.posts)
	if err != nil {
		return fmt.Errorf("failed to rebuild index: %w", err)
	}
	slog.Info("Index rebuild task completed", "total_posts", total)
	return nil
}
