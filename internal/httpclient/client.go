package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTransport is the base transport used by the instrumented client.
var DefaultTransport = http.DefaultTransport

type contextKey string

const (
	providerKey  contextKey = "httpclient.provider"
	operationKey contextKey = "httpclient.operation"
)

// WithProvider adds a vendor name to the context for span naming.
func WithProvider(ctx context.Context, provider string) context.Context {
	return context.WithValue(ctx, providerKey, provider)
}

// WithOperation tags the request with a pipeline operation such as
// "completion", "image" or "download".
func WithOperation(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, operationKey, operation)
}

// ProviderFrom returns the provider stored by WithProvider.
func ProviderFrom(ctx context.Context) string {
	provider, _ := ctx.Value(providerKey).(string)
	return provider
}

type providerTransport struct {
	base    http.RoundTripper
	headers http.Header
}

func (t *providerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	span := trace.SpanFromContext(req.Context())
	if provider := ProviderFrom(req.Context()); provider != "" {
		span.SetAttributes(attribute.String("provider", provider))
	}
	if op, ok := req.Context().Value(operationKey).(string); ok {
		span.SetAttributes(attribute.String("operation", op))
	}
	if len(t.headers) > 0 {
		req = req.Clone(req.Context())
		for k, vs := range t.headers {
			if req.Header.Get(k) == "" {
				for _, v := range vs {
					req.Header.Add(k, v)
				}
			}
		}
	}
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if resp.StatusCode >= 400 {
		span.SetStatus(codes.Error, fmt.Sprintf("HTTP status %d", resp.StatusCode))
	}
	return resp, nil
}

func newOtelTransport(base http.RoundTripper, headers http.Header) http.RoundTripper {
	return otelhttp.NewTransport(&providerTransport{base: base, headers: headers},
		otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
			if provider := ProviderFrom(r.Context()); provider != "" {
				return fmt.Sprintf("%s: %s %s", provider, r.Method, r.URL.Path)
			}
			return fmt.Sprintf("%s %s", r.Method, r.URL.Path)
		}),
	)
}

// InstrumentedClient is the shared client for vendor calls. Image generation
// is the slowest call it serves.
var InstrumentedClient = &http.Client{
	Transport: newOtelTransport(DefaultTransport, nil),
	Timeout:   180 * time.Second,
}

type Option func(*options)

type options struct {
	timeout time.Duration
	headers http.Header
}

func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithHeader sets a default header on every request that does not set it.
func WithHeader(key, value string) Option {
	return func(o *options) { o.headers.Set(key, value) }
}

// New returns an instrumented client. The default timeout is 60s.
func New(opts ...Option) *http.Client {
	o := &options{timeout: 60 * time.Second, headers: http.Header{}}
	for _, opt := range opts {
		opt(o)
	}
	return &http.Client{
		Transport: newOtelTransport(DefaultTransport, o.headers),
		Timeout:   o.timeout,
	}
}

// NewInstrumentedClient returns a new instrumented client with a custom timeout.
func NewInstrumentedClient(timeout time.Duration) *http.Client {
	return New(WithTimeout(timeout))
}

// WrapClient wraps an existing http.Client's transport with OpenTelemetry instrumentation.
func WrapClient(client *http.Client) *http.Client {
	if client.Transport == nil {
		client.Transport = DefaultTransport
	}
	client.Transport = newOtelTransport(client.Transport, nil)
	return client
}
