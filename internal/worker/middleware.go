package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/braincargo/brainblog/internal/telemetry"
	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	statusSuccess = "success"
	statusSkipped = "skipped"
	statusError   = "error"
)

// taskInfo is what every middleware tags a task with.
type taskInfo struct {
	id     string
	queue  string
	retry  int
	postID string
}

func infoFor(ctx context.Context, t *asynq.Task) taskInfo {
	info := taskInfo{}
	info.id, _ = asynq.GetTaskID(ctx)
	info.queue, _ = asynq.GetQueueName(ctx)
	info.retry, _ = asynq.GetRetryCount(ctx)
	if t.Type() == TypeEmbedPost {
		var p EmbedPostPayload
		if json.Unmarshal(t.Payload(), &p) == nil {
			info.postID = p.PostID
		}
	}
	return info
}

// taskStatus separates errors asynq will not retry from real failures.
func taskStatus(err error) string {
	switch {
	case err == nil:
		return statusSuccess
	case errors.Is(err, asynq.SkipRetry):
		return statusSkipped
	default:
		return statusError
	}
}

// SentryMiddleware reports failed tasks. Skipped tasks are not exceptions.
func SentryMiddleware(h asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		info := infoFor(ctx, t)

		hub := sentry.CurrentHub().Clone()
		hub.ConfigureScope(func(scope *sentry.Scope) {
			scope.SetTag("task_type", t.Type())
			scope.SetTag("task_id", info.id)
			scope.SetTag("queue", info.queue)
			scope.SetTag("retry_count", strconv.Itoa(info.retry))
			if info.postID != "" {
				scope.SetTag("post_id", info.postID)
			}
		})

		err := h.ProcessTask(sentry.SetHubOnContext(ctx, hub), t)
		if taskStatus(err) == statusError {
			hub.CaptureException(err)
		}
		return err
	})
}

// OTelMiddleware runs each task in a consumer span named task:<type>.
func OTelMiddleware(h asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		info := infoFor(ctx, t)

		ctx, span := telemetry.Tracer("worker").Start(ctx, "task:"+t.Type(), trace.WithSpanKind(trace.SpanKindConsumer))
		defer span.End()

		attrs := []attribute.KeyValue{
			attribute.String("task.id", info.id),
			attribute.String("task.type", t.Type()),
			attribute.String("task.queue", info.queue),
			attribute.Int("task.retry_count", info.retry),
		}
		if info.postID != "" {
			attrs = append(attrs, attribute.String("post.id", info.postID))
		}
		span.SetAttributes(attrs...)

		err := h.ProcessTask(ctx, t)
		span.SetAttributes(attribute.String("task.status", taskStatus(err)))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return err
	})
}

// WorkerMetrics counts and times tasks by type and outcome.
type WorkerMetrics struct {
	tasks    metric.Int64Counter
	duration metric.Float64Histogram
}

func NewWorkerMetrics() (*WorkerMetrics, error) {
	meter := otel.Meter("brainblog/worker")

	tasks, err := meter.Int64Counter("worker.tasks.total",
		metric.WithDescription("Tasks processed by type and status"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return nil, err
	}

	// Feed polls publish several posts, so the buckets run long.
	duration, err := meter.Float64Histogram("worker.task.duration",
		metric.WithDescription("Task processing time"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.5, 2, 10, 30, 120, 600),
	)
	if err != nil {
		return nil, err
	}

	return &WorkerMetrics{tasks: tasks, duration: duration}, nil
}

func (m *WorkerMetrics) record(ctx context.Context, taskType, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	typeAttr := attribute.String("task.type", taskType)
	m.tasks.Add(ctx, 1, metric.WithAttributes(typeAttr, attribute.String("status", status)))
	m.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(typeAttr))
}

// Middleware records every task. It is a no-op on a nil receiver.
func (m *WorkerMetrics) Middleware(h asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		start := time.Now()
		err := h.ProcessTask(ctx, t)
		m.record(ctx, t.Type(), taskStatus(err), time.Since(start))
		return err
	})
}
