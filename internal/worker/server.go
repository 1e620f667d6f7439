package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// cronUniqueTTL keeps a slow poll from being enqueued twice.
const cronUniqueTTL = 10 * time.Minute

// NewServer creates a new Asynq server for processing tasks
func NewServer(redisURL string, concurrency int) (*asynq.Server, error) {
	opt, err := ParseRedisURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if concurrency <= 0 {
		concurrency = 10
	}

	return asynq.NewServer(
		opt,
		asynq.Config{
			Concurrency: concurrency,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				slog.Error("Task failed", "type", task.Type(), "retry", retried, "max_retry", maxRetry, "error", err)
			}),
		},
	), nil
}

// NewMux registers the handlers behind the Sentry, tracing and metrics
// middleware.
func NewMux(handlers map[string]asynq.HandlerFunc, m *WorkerMetrics) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Use(SentryMiddleware)
	mux.Use(OTelMiddleware)
	mux.Use(m.Middleware)
	for taskType, handler := range handlers {
		mux.HandleFunc(taskType, handler)
	}
	return mux
}

// NewScheduler registers the periodic feed poll on cronspec.
func NewScheduler(redisURL, cronspec string) (*asynq.Scheduler, error) {
	opt, err := ParseRedisURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	scheduler := asynq.NewScheduler(opt, &asynq.SchedulerOpts{
		EnqueueErrorHandler: func(task *asynq.Task, opts []asynq.Option, err error) {
			slog.Error("Failed to enqueue scheduled task", "type", task.Type(), "error", err)
		},
	})
	if _, err := scheduler.Register(cronspec, NewFeedPollTask(), asynq.Unique(cronUniqueTTL)); err != nil {
		return nil, fmt.Errorf("invalid feed poll schedule %q: %w", cronspec, err)
	}
	return scheduler, nil
}
