// Package logger builds the slog logger shared by the server, the worker and
// blogctl. Records go to a local handler and to the OpenTelemetry log bridge.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/braincargo/brainblog"

const redacted = "[REDACTED]"

// secretKeys are attribute key suffixes whose values never reach a log sink.
var secretKeys = []string{"api_key", "apikey", "secret", "token", "authorization", "service_key", "password"}

func New(env string) *slog.Logger {
	return NewWithWriter(env, os.Stdout)
}

// NewWithWriter logs JSON at info level in production and text at debug
// level elsewhere. LOG_LEVEL overrides the level in both.
func NewWithWriter(env string, w io.Writer) *slog.Logger {
	level := slog.LevelDebug
	if env == "production" {
		level = slog.LevelInfo
	}
	if l, ok := ParseLevel(os.Getenv("LOG_LEVEL")); ok {
		level = l
	}

	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: redact}
	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(&otelHandler{handler: handler})
}

// ParseLevel accepts debug, info, warn and error in any case.
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

func isSecret(key string) bool {
	key = strings.ToLower(key)
	for _, s := range secretKeys {
		if strings.HasSuffix(key, s) {
			return true
		}
	}
	return false
}

func redact(groups []string, a slog.Attr) slog.Attr {
	if isSecret(a.Key) && a.Value.Kind() != slog.KindGroup {
		return slog.String(a.Key, redacted)
	}
	return a
}

// WithTraceContext returns a "trace" group with trace_id and span_id, or an
// empty attr outside a span.
func WithTraceContext(ctx context.Context) slog.Attr {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return slog.Attr{}
	}
	return slog.Group("trace",
		slog.String("trace_id", sc.TraceID().String()),
		slog.String("span_id", sc.SpanID().String()),
	)
}

// otelHandler forwards every record it writes to the global OTel logger
// provider, which is a no-op until telemetry is initialised. Attribute keys
// inside groups are dotted, e.g. "trace.trace_id".
type otelHandler struct {
	handler slog.Handler
	attrs   []log.KeyValue
	prefix  string
}

func (h *otelHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return h.handler.Enabled(ctx, l)
}

func (h *otelHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := h.handler.Handle(ctx, r); err != nil {
		return err
	}

	var rec log.Record
	rec.SetTimestamp(r.Time)
	rec.SetBody(log.StringValue(r.Message))
	rec.SetSeverity(severity(r.Level))
	rec.SetSeverityText(r.Level.String())
	rec.AddAttributes(h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		rec.AddAttributes(flatten(h.prefix, a)...)
		return true
	})

	global.GetLoggerProvider().Logger(instrumentationName).Emit(ctx, rec)
	return nil
}

func (h *otelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	kvs := append([]log.KeyValue(nil), h.attrs...)
	for _, a := range attrs {
		kvs = append(kvs, flatten(h.prefix, a)...)
	}
	return &otelHandler{handler: h.handler.WithAttrs(attrs), attrs: kvs, prefix: h.prefix}
}

func (h *otelHandler) WithGroup(name string) slog.Handler {
	return &otelHandler{handler: h.handler.WithGroup(name), attrs: h.attrs, prefix: h.prefix + name + "."}
}

func flatten(prefix string, a slog.Attr) []log.KeyValue {
	a.Value = a.Value.Resolve()
	if a.Value.Kind() == slog.KindGroup {
		var out []log.KeyValue
		for _, ga := range a.Value.Group() {
			out = append(out, flatten(prefix+a.Key+".", ga)...)
		}
		return out
	}
	if a.Key == "" {
		return nil
	}
	if isSecret(a.Key) {
		return []log.KeyValue{log.String(prefix+a.Key, redacted)}
	}
	return []log.KeyValue{{Key: prefix + a.Key, Value: toOTelValue(a.Value)}}
}

func severity(l slog.Level) log.Severity {
	switch {
	case l >= slog.LevelError:
		return log.SeverityError
	case l >= slog.LevelWarn:
		return log.SeverityWarn
	case l >= slog.LevelInfo:
		return log.SeverityInfo
	default:
		return log.SeverityDebug
	}
}

func toOTelValue(v slog.Value) log.Value {
	switch v.Kind() {
	case slog.KindString:
		return log.StringValue(v.String())
	case slog.KindInt64:
		return log.Int64Value(v.Int64())
	case slog.KindUint64:
		return log.Int64Value(int64(v.Uint64()))
	case slog.KindBool:
		return log.BoolValue(v.Bool())
	case slog.KindFloat64:
		return log.Float64Value(v.Float64())
	case slog.KindDuration:
		return log.Int64Value(int64(v.Duration()))
	default:
		return log.StringValue(v.String())
	}
}
