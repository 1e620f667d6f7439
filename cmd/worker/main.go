package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/braincargo/brainblog/internal/app"
	"github.com/braincargo/brainblog/internal/config"
	"github.com/braincargo/brainblog/internal/logger"
	"github.com/braincargo/brainblog/internal/metrics"
	"github.com/braincargo/brainblog/internal/sentry"
	"github.com/braincargo/brainblog/internal/services/feeds"
	"github.com/braincargo/brainblog/internal/telemetry"
	"github.com/braincargo/brainblog/internal/worker"
	_ "github.com/joho/godotenv/autoload"
)

func main() {
	defer sentry.Recover()

	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.RedisURL == "" || cfg.DatabaseURL == "" {
		log.Fatal("The worker requires REDIS_URL and DATABASE_URL")
	}

	// Initialize telemetry
	if cfg.OtelExporterOTLPEndpoint != "" {
		shutdown, err := telemetry.InitTelemetry(ctx, cfg.ServiceName+"-worker", cfg.ServiceVersion, cfg.Env,
			cfg.OtelExporterOTLPEndpoint, telemetry.ParseHeaders(cfg.OtelExporterOTLPHeaders))
		if err != nil {
			slog.Warn("Failed to init telemetry", "error", err)
		} else {
			defer shutdown(ctx)
		}
	}

	// Initialize Sentry
	if err := sentry.Init(cfg.SentryDSN, cfg.Env, cfg.ServiceName+"-worker", cfg.ServiceVersion); err != nil {
		slog.Warn("Failed to init Sentry", "error", err)
	} else if cfg.SentryDSN != "" {
		defer sentry.Flush(2 * time.Second)
	}

	// Initialize business metrics
	if err := metrics.Init(); err != nil {
		slog.Warn("Failed to init business metrics", "error", err)
	}

	slog.SetDefault(logger.New(cfg.Env))

	deps, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}
	defer deps.Close()

	var poller worker.FeedPoller
	if len(cfg.Feeds.URLs) > 0 && deps.Blogs != nil {
		poller = feeds.NewPoller(cfg.Feeds.URLs, deps.Queries, deps.Blogs)
	}
	processor := worker.NewProcessor(deps.Search, poller, deps.Indexer(), deps.Queries)

	workerMetrics, err := worker.NewWorkerMetrics()
	if err != nil {
		slog.Warn("Failed to init worker metrics", "error", err)
	}

	srv, err := worker.NewServer(cfg.RedisURL, 0)
	if err != nil {
		log.Fatalf("Failed to create worker: %v", err)
	}
	mux := worker.NewMux(processor.Handlers(), workerMetrics)

	if poller != nil {
		scheduler, err := worker.NewScheduler(cfg.RedisURL, cfg.Feeds.PollCron)
		if err != nil {
			log.Fatalf("Failed to create scheduler: %v", err)
		}
		if err := scheduler.Start(); err != nil {
			log.Fatalf("Failed to start scheduler: %v", err)
		}
		defer scheduler.Shutdown()
		slog.Info("Feed polling scheduled", "cron", cfg.Feeds.PollCron, "feeds", len(cfg.Feeds.URLs))
	}

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutting down worker...")
		srv.Shutdown()
	}()

	slog.Info("Starting worker", "pipeline", deps.Pipeline != nil)

	if err := srv.Run(mux); err != nil {
		log.Fatalf("Worker failed: %v", err)
	}
}
