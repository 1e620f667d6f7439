package worker

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/hibiken/asynq"
)

// ParseRedisURL parses a Redis URL and returns asynq.RedisClientOpt
func ParseRedisURL(redisURL string) (asynq.RedisClientOpt, error) {
	// Plain host:port
	if !strings.HasPrefix(redisURL, "redis://") && !strings.HasPrefix(redisURL, "rediss://") {
		return asynq.RedisClientOpt{Addr: redisURL}, nil
	}

	u, err := url.Parse(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	opt := asynq.RedisClientOpt{
		Addr: u.Host,
	}

	if u.User != nil {
		opt.Username = u.User.Username()
		if password, ok := u.User.Password(); ok {
			opt.Password = password
		}
	}

	if u.Scheme == "rediss" {
		opt.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	return opt, nil
}

// Enqueuer schedules background tasks. It satisfies blogs.TaskEnqueuer.
type Enqueuer struct {
	client *asynq.Client
}

// NewEnqueuer creates an asynq client for redisURL.
func NewEnqueuer(redisURL string) (*Enqueuer, error) {
	opt, err := ParseRedisURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return &Enqueuer{client: asynq.NewClient(opt)}, nil
}

func (e *Enqueuer) EnqueueEmbedPost(ctx context.Context, postID string) error {
	task, err := NewEmbedPostTask(EmbedPostPayload{PostID: postID})
	if err != nil {
		return err
	}
	info, err := e.client.EnqueueContext(ctx, task, asynq.MaxRetry(5), asynq.Timeout(time.Minute))
	if err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", TypeEmbedPost, err)
	}
	slog.Debug("Task enqueued", "type", TypeEmbedPost, "task_id", info.ID, "post_id", postID)
	return nil
}

// EnqueueIndexRebuild schedules an index rebuild. A rebuild already waiting
// in the queue absorbs the request.
func (e *Enqueuer) EnqueueIndexRebuild(ctx context.Context) error {
	_, err := e.client.EnqueueContext(ctx, NewIndexRebuildTask(), asynq.Unique(time.Minute), asynq.MaxRetry(3))
	if err != nil && !errors.Is(err, asynq.ErrDuplicateTask) {
		return fmt.Errorf("failed to enqueue %s: %w", TypeIndexRebuild, err)
	}
	return nil
}

// Close closes the client connection
func (e *Enqueuer) Close() error {
	return e.client.Close()
}
