// Package sentry reports pipeline failures. Tracing is left to
// OpenTelemetry, so only errors and panics are sent.
package sentry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	apperrors "github.com/braincargo/brainblog/internal/errors"
	"github.com/getsentry/sentry-go"
)

// Init configures the global client. An empty DSN disables reporting.
func Init(dsn, env, serviceName, serviceVersion string) error {
	if dsn == "" {
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      env,
		ServerName:       serviceName,
		Release:          serviceVersion,
		AttachStacktrace: true,
		BeforeSend:       dropClientErrors,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize Sentry: %w", err)
	}
	return nil
}

// dropClientErrors discards events for AppErrors the caller caused, such as a
// rejected URL or thin content.
func dropClientErrors(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
	if hint == nil || hint.OriginalException == nil {
		return event
	}
	if IsClientError(hint.OriginalException) {
		return nil
	}
	return event
}

// IsClientError reports whether err is an AppError with a 4xx status.
func IsClientError(err error) bool {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.StatusCode >= http.StatusBadRequest && appErr.StatusCode < http.StatusInternalServerError
}

func Flush(timeout time.Duration) {
	sentry.Flush(timeout)
}

// Recover is deferred at the top of each main.
func Recover() {
	sentry.Recover()
}

// ErrorTags returns the tags attached to a captured error: the AppError type
// and code when err is one.
func ErrorTags(err error, extra map[string]string) map[string]string {
	tags := make(map[string]string, len(extra)+2)
	if appErr, ok := apperrors.As(err); ok {
		tags["error_type"] = string(appErr.Type)
		tags["error_code"] = appErr.Code()
	}
	for k, v := range extra {
		tags[k] = v
	}
	return tags
}

// CaptureError reports err on the hub stored in ctx, or on the current hub.
// Client errors are never reported.
func CaptureError(ctx context.Context, err error, extra map[string]string) {
	if err == nil || IsClientError(err) {
		return
	}
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		for k, v := range ErrorTags(err, extra) {
			scope.SetTag(k, v)
		}
		hub.CaptureException(err)
	})
}
