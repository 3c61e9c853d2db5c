package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bilgisen/kova/internal/ai"
	"github.com/bilgisen/kova/internal/api"
	"github.com/bilgisen/kova/internal/cache"
	"github.com/bilgisen/kova/internal/config"
	"github.com/bilgisen/kova/internal/logger"
	"github.com/bilgisen/kova/internal/media"
	"github.com/bilgisen/kova/internal/middleware"
	"github.com/bilgisen/kova/internal/pipeline"
	"github.com/bilgisen/kova/internal/store"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// Load and validate configuration
	cfg := config.Load()

	// Initialize logger
	if err := logger.Init(logger.Config{
		Level:  cfg.LogLevel,
		Output: cfg.LogFile,
		Pretty: cfg.LogPretty,
	}); err != nil {
		panic(err)
	}

	log := logger.Get()
	log.Info().Str("env", cfg.Env).Msg("Starting application...")

	// Content store and metadata cache
	if cfg.StoreBackend == config.StoreMemory {
		log.Warn().Msg("Using in-memory content store; saved content is lost on restart")
	}
	st, metaCache, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize content store")
	}
	defer func() {
		log.Info().Msg("Closing content store...")
		if err := st.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing content store")
		}
	}()

	// Image storage
	images, err := media.New(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize image storage")
	}
	resolver := media.NewResolver(images, cfg.PublicURL)

	// AI enrichment
	model, err := ai.NewModel(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize AI model")
	}
	if model == nil {
		log.Warn().Msg("No AI API key configured; enrichment uses heuristic fallbacks only")
	} else {
		log.Info().Str("provider", cfg.AIProvider).Str("model", model.Name()).Msg("AI model ready")
	}

	opts := ai.Options{
		Model:         model,
		Metadata:      ai.NewMetadataFetcher(cfg.OEmbedURL, cfg.OEmbedTimeout, metaCache, cfg.CacheTTL),
		Images:        ai.NewImageLoader(cfg.MaxFileSize, cfg.HTTPTimeout, resolver),
		VisionTimeout: cfg.AIVisionTimeout,
	}
	if cfg.TranscriptAPIURL != "" {
		opts.Transcripts = ai.NewTranscriptClient(cfg.TranscriptAPIURL, cfg.TranscriptAPIKey, cfg.TranscriptTimeout, cfg.TranscriptPollInterval)
	}
	analyzer := ai.NewAnalyzer(opts)

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Enrichment pipeline and sweeper
	enricher := pipeline.New(st, analyzer, pipeline.Options{
		Workers:     cfg.PipelineWorkers,
		QueueSize:   cfg.PipelineQueueSize,
		TaskTimeout: cfg.PipelineTaskTimeout,
		Metrics:     pipeline.NewMetrics(registry),
	})
	enricher.Start()

	sweeper, err := pipeline.NewSweeper(enricher, st, pipeline.SweeperOptions{
		Schedule:     cfg.SweepSchedule,
		PendingAfter: cfg.SweepPendingAfter,
		StaleAfter:   cfg.SweepStaleAfter,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize sweeper")
	}
	sweeper.Start()

	// Create Fiber app with custom config
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTPTimeout,
		WriteTimeout: cfg.HTTPTimeout,
		IdleTimeout:  120 * time.Second,
		BodyLimit:    int(cfg.MaxFileSize) + 1<<20,
		ErrorHandler: middleware.ErrorHandler,
	})

	handlers := api.NewHandlers(api.Deps{
		Store:       st,
		Enricher:    enricher,
		Sweeper:     sweeper,
		Images:      images,
		Resolver:    resolver,
		MaxFileSize: cfg.MaxFileSize,
	})
	api.SetupRoutes(app, handlers, api.RouteOptions{
		AdminAPIKey: cfg.AdminAPIKey,
		Metrics:     registry,
	})

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Create a deadline for graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// Stop intake first, then background work, then the store (deferred)
	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	sweeper.Stop(ctx)
	if err := enricher.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Pipeline did not drain before the deadline")
	}

	log.Info().Msg("Server exited properly")
}

// openStore builds the content store and the metadata cache. Both share one
// Redis connection; the cache client namespaces its keys under "cache:".
func openStore(cfg *config.Config) (store.Store, cache.Cache, error) {
	if cfg.StoreBackend == config.StoreMemory {
		return store.NewMemoryStore(), cache.NewMockClient(), nil
	}

	redisClient, err := cache.Connect(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	return store.NewRedisStore(redisClient, cfg.RedisPrefix), cache.NewRedisClient(redisClient, cfg.RedisPrefix), nil
}
