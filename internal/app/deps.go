// Package app assembles the services shared by the server, the worker and
// blogctl from a loaded config.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/braincargo/brainblog/internal/cache"
	"github.com/braincargo/brainblog/internal/config"
	"github.com/braincargo/brainblog/internal/db"
	"github.com/braincargo/brainblog/internal/pipeline"
	"github.com/braincargo/brainblog/internal/services/blogs"
	"github.com/braincargo/brainblog/internal/services/provider"
	"github.com/braincargo/brainblog/internal/services/scraper"
	"github.com/braincargo/brainblog/internal/services/search"
	"github.com/braincargo/brainblog/internal/services/storage"
	"github.com/braincargo/brainblog/internal/validation"
	"github.com/braincargo/brainblog/internal/worker"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Deps holds the optional backends and the services built on them. Fields
// are nil when their backend is not configured.
type Deps struct {
	Config   *config.Config
	Pipeline *pipeline.Manager
	Pool     *pgxpool.Pool
	Queries  *db.Queries
	Redis    *redis.Client
	Storage  *storage.Client
	Enqueuer *worker.Enqueuer
	Blogs    *blogs.Service
	Search   *search.Client

	closers []func()
}

// Build connects every configured backend. A missing pipeline config or a
// config without usable providers leaves Pipeline and Blogs nil so that the
// server can still report health; broken backends are errors.
func Build(ctx context.Context, cfg *config.Config) (*Deps, error) {
	d := &Deps{Config: cfg}

	if cfg.DatabaseURL != "" {
		version, err := db.Migrate(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		slog.Info("Database migrated", "version", version)

		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		d.Pool = pool
		d.Queries = db.New(pool)
		d.closers = append(d.closers, pool.Close)
	}

	rdb, err := cache.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		d.Close()
		return nil, err
	}
	if rdb != nil {
		d.Redis = rdb
		d.closers = append(d.closers, func() { _ = rdb.Close() })

		enq, err := worker.NewEnqueuer(cfg.RedisURL)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.Enqueuer = enq
		d.closers = append(d.closers, func() { _ = enq.Close() })
	}

	if cfg.Storage.Configured() {
		d.Storage = storage.NewClient(cfg.Storage.URL, cfg.Storage.ServiceKey)
	}

	if err := d.buildPipeline(ctx); err != nil {
		slog.Warn("Pipeline unavailable", "config", cfg.PipelineConfigPath, "error", err)
	}

	d.buildSearch()
	return d, nil
}

func (d *Deps) buildPipeline(ctx context.Context) error {
	cfg := d.Config
	pipelineCfg, err := config.LoadPipeline(cfg.PipelineConfigPath, cfg.TestMode)
	if err != nil {
		return err
	}

	var opts []pipeline.Option
	if d.Storage != nil {
		var assets storage.AssetIndex
		if d.Queries != nil {
			assets = d.Queries
		}
		opts = append(opts, pipeline.WithMediaPersister(storage.NewMediaStore(d.Storage, cfg.Storage, assets)))
	}

	mgr, err := pipeline.New(ctx, pipelineCfg, cfg.PromptsDir, opts...)
	if err != nil {
		return err
	}
	d.Pipeline = mgr

	blogOpts := []blogs.Option{
		blogs.WithContentValidation(validation.ContentValidationConfig{
			EnableAIValidation: true,
			MinWords:           validation.MinContentWords,
		}, firstProvider(mgr)),
	}
	if d.Storage != nil {
		blogOpts = append(blogOpts, blogs.WithObjectStore(d.Storage, cfg.Storage))
	}
	if d.Queries != nil {
		blogOpts = append(blogOpts, blogs.WithPostStore(d.Queries))
	}
	if d.Enqueuer != nil {
		blogOpts = append(blogOpts, blogs.WithTaskEnqueuer(d.Enqueuer))
	}

	var articles scraper.ArticleCache
	if d.Redis != nil {
		articles = cache.NewArticleCache(d.Redis)
	}
	d.Blogs = blogs.NewService(mgr, scraper.New(articles), cfg.Blog, blogOpts...)
	return nil
}

func (d *Deps) buildSearch() {
	if d.Queries == nil {
		return
	}
	var embedder search.Embedder
	if d.Pipeline != nil {
		if e, ok := d.Pipeline.Providers().Embedder(); ok {
			embedder = e
		}
	}
	d.Search = search.NewClient(d.Queries, embedder)
}

// Indexer returns the blog service, or an index-only service when no
// pipeline could be built.
func (d *Deps) Indexer() *blogs.Service {
	if d.Blogs != nil {
		return d.Blogs
	}
	var opts []blogs.Option
	if d.Storage != nil {
		opts = append(opts, blogs.WithObjectStore(d.Storage, d.Config.Storage))
	}
	return blogs.NewService(nil, nil, d.Config.Blog, opts...)
}

// Close releases the backends in reverse order of construction.
func (d *Deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}

func firstProvider(mgr *pipeline.Manager) provider.Provider {
	all := mgr.Providers().All()
	if len(all) == 0 {
		return nil
	}
	return all[0]
}
