package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/braincargo/brainblog/internal/config"
	"github.com/braincargo/brainblog/internal/db"
	apperrors "github.com/braincargo/brainblog/internal/errors"
	"github.com/braincargo/brainblog/internal/pipeline"
	"github.com/braincargo/brainblog/internal/services/blogs"
	"github.com/braincargo/brainblog/internal/services/provider"
	"github.com/braincargo/brainblog/internal/services/search"
)

const ServiceName = "braincargo-blog-service"

// Generator is implemented by *blogs.Service.
type Generator interface {
	FromURL(ctx context.Context, rawURL, customTitle string) (*blogs.Published, error)
	FromTopic(ctx context.Context, topic, style string) (*blogs.Published, error)
	FromContent(ctx context.Context, content, title string) (*blogs.Published, error)
}

// PipelineStatus is implemented by *pipeline.Manager.
type PipelineStatus interface {
	HealthCheck(ctx context.Context) pipeline.Health
	Providers() *provider.Set
}

// PostReader is implemented by *db.Queries.
type PostReader interface {
	GetPost(ctx context.Context, id string) (db.Post, error)
	ListPosts(ctx context.Context, arg db.ListPostsParams) ([]db.Post, error)
	PostStats(ctx context.Context) (db.PostStats, error)
}

// Searcher is implemented by *search.Client.
type Searcher interface {
	Related(ctx context.Context, id string, limit int) ([]search.SearchResult, error)
	SearchSemantic(ctx context.Context, query string, limit int) ([]search.SearchResult, error)
	SearchByTitle(ctx context.Context, query string, limit int) ([]search.SearchResult, error)
}

// RebuildEnqueuer is implemented by *worker.Enqueuer.
type RebuildEnqueuer interface {
	EnqueueIndexRebuild(ctx context.Context) error
}

type Server struct {
	cfg       *config.Config
	generator Generator
	pipeline  PipelineStatus
	posts     PostReader
	search    Searcher
	tasks     RebuildEnqueuer
	storageOK bool
	started   time.Time
	now       func() time.Time
}

type Option func(*Server)

func WithPipeline(p PipelineStatus) Option {
	return func(s *Server) { s.pipeline = p }
}

func WithPosts(p PostReader) Option {
	return func(s *Server) { s.posts = p }
}

func WithSearch(c Searcher) Option {
	return func(s *Server) { s.search = c }
}

func WithRebuildEnqueuer(t RebuildEnqueuer) Option {
	return func(s *Server) { s.tasks = t }
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer builds the HTTP handlers. generator may be nil when no provider
// could be configured; generation routes then answer 503.
func NewServer(cfg *config.Config, generator Generator, opts ...Option) *Server {
	s := &Server{
		cfg:       cfg,
		generator: generator,
		storageOK: cfg.Storage.Configured(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.started = s.now()
	return s
}

func (s *Server) uptime() float64 {
	return s.now().Sub(s.started).Seconds()
}

func (s *Server) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

// writeAppError maps err to its status code. Messages of errors that are not
// AppErrors are not shown to the caller.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		slog.ErrorContext(r.Context(), "Unhandled error", "error", err, "path", r.URL.Path)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	body := map[string]any{
		"success":    false,
		"error":      appErr.Error(),
		"error_code": appErr.Code(),
	}
	if appErr.Recovery != "" {
		body["recovery_suggestion"] = appErr.Recovery
	}
	writeJSON(w, appErr.StatusCode, body)
}

// NotFound answers unknown routes.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "Endpoint not found")
}

// MethodNotAllowed answers known routes called with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
}
