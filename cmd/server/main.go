package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"planbid/internal/chunker"
	"planbid/internal/config"
	embedopenai "planbid/internal/embedding/openai"
	"planbid/internal/extract"
	"planbid/internal/handler"
	"planbid/internal/logger"
	"planbid/internal/ocr/mistral"
	"planbid/internal/port"
	"planbid/internal/repository/postgres"
	"planbid/internal/router"
	"planbid/internal/service"
	s3storage "planbid/internal/storage/s3"
	"planbid/internal/takeoff"
	"planbid/internal/vision"
	"planbid/internal/vision/claude"
	"planbid/internal/vision/gemini"
	visionopenai "planbid/internal/vision/openai"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := postgres.NewDB(&cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// Initialize repositories
	planRepo := postgres.NewPlanRepo(db)
	chunkRepo := postgres.NewChunkRepo(db)
	jobRepo := postgres.NewJobRepo(db)
	takeoffRepo := postgres.NewTakeoffRepo(db)

	// Initialize storage
	objectStore, err := s3storage.NewObjectStore(&cfg.S3, log)
	if err != nil {
		return fmt.Errorf("failed to initialize S3 client: %w", err)
	}
	planFiles := s3storage.NewPlanFileStore(objectStore, cfg.S3.Bucket, cfg.S3.FallbackBuckets, log)

	// Optional backends
	var embedder port.Embedder
	if cfg.Embedding.APIKey != "" {
		embedder = embedopenai.NewEmbedder(&cfg.Embedding)
	} else {
		log.Warn("embedding API key not set; ingestion and search are disabled")
	}

	var ocr port.OCRProvider
	if cfg.OCR.Enabled() {
		ocr = mistral.NewClient(&cfg.OCR)
	} else {
		log.Info("OCR not configured; scanned plans are indexed with native text only")
	}

	analyzer, err := buildTakeoffAnalyzer(cfg, log)
	if err != nil {
		return err
	}

	// Initialize services
	ingestSvc := service.NewIngestService(service.IngestDeps{
		Plans:       planRepo,
		Chunks:      chunkRepo,
		Files:       planFiles,
		Extractor:   extract.NewPipeline(extract.NewNativeExtractor(log), ocr, log),
		Chunker:     chunker.New(chunker.WithMaxChars(cfg.Chunking.MaxChars), chunker.WithMinChars(cfg.Chunking.MinChars)),
		Embedder:    embedder,
		Locker:      service.NewPlanLocker(),
		BatchSize:   cfg.Embedding.BatchSize,
		Concurrency: cfg.Embedding.Concurrency,
	}, log)
	retrievalSvc := service.NewRetrievalService(planRepo, chunkRepo, embedder, log)

	takeoffDeps := service.TakeoffDeps{
		Plans:         planRepo,
		Runs:          takeoffRepo,
		Storage:       objectStore,
		ImageBucket:   cfg.S3.Bucket,
		ExportBucket:  cfg.S3.ExportBucket,
		PresignExpiry: cfg.S3.PresignExpiry,
	}
	var visionNames []string
	if analyzer != nil {
		takeoffDeps.Analyzer = analyzer
		visionNames = analyzer.ProviderNames()
	}
	takeoffSvc := service.NewTakeoffService(takeoffDeps, log)
	jobSvc := service.NewJobService(jobRepo, planRepo, ingestSvc, takeoffSvc, log)

	// Background job worker
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	worker := service.NewJobWorker(jobRepo, jobSvc, service.JobWorkerConfig{
		PollInterval: time.Duration(cfg.Queue.PollIntervalSecs) * time.Second,
		MaxAttempts:  cfg.Queue.MaxAttempts,
		Concurrency:  cfg.Queue.Concurrency,
		JobTimeout:   time.Duration(cfg.Queue.JobTimeoutSecs) * time.Second,
	}, log)
	go worker.Start(ctx)

	// Initialize handlers
	handlers := router.Handlers{
		Health: handler.NewHealthHandler(db, handler.Capabilities{
			Embedding:       embedder != nil,
			OCR:             ocr != nil,
			VisionProviders: visionNames,
		}),
		Plan:    handler.NewPlanHandler(jobSvc, retrievalSvc, log),
		Takeoff: handler.NewTakeoffHandler(jobSvc, takeoffSvc, log),
		Job:     handler.NewJobHandler(jobSvc, log),
	}

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router.Setup(handlers, cfg.Server.AllowedOrigins, log),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", zap.Error(err))
	}
	stop()
	worker.Wait()
	return nil
}

// buildTakeoffAnalyzer wires every configured vision provider that has an
// API key. It returns nil when none is usable.
func buildTakeoffAnalyzer(cfg *config.Config, log *zap.Logger) (*takeoff.Analyzer, error) {
	registry := vision.NewRegistry()
	registry.Register("claude", func(c *config.VisionProviderConfig) (port.VisionAnalyzer, error) {
		return claude.NewAnalyzer(c), nil
	})
	registry.Register("openai", func(c *config.VisionProviderConfig) (port.VisionAnalyzer, error) {
		return visionopenai.NewAnalyzer(c), nil
	})
	registry.Register("gemini", func(c *config.VisionProviderConfig) (port.VisionAnalyzer, error) {
		return gemini.NewAnalyzer(c), nil
	})

	var providers []takeoff.Provider
	for _, pc := range cfg.Vision.Providers() {
		if pc.APIKey == "" {
			log.Warn("vision provider has no API key, skipping", zap.String("provider", pc.Provider))
			continue
		}
		a, err := registry.New(pc)
		if err != nil {
			return nil, fmt.Errorf("failed to create vision provider: %w", err)
		}
		providers = append(providers, takeoff.Provider{
			Name:     pc.Provider,
			Analyzer: a,
			Timeout:  time.Duration(cfg.Merge.ProviderTimeoutSec) * time.Second,
		})
	}
	if len(providers) == 0 {
		log.Warn("no vision providers configured; takeoff analysis is disabled")
		return nil, nil
	}

	merger := takeoff.NewMerger(takeoff.MergeOptions{
		NameSimilarity:     cfg.Merge.NameSimilarity,
		BoxIoU:             cfg.Merge.BoxIoU,
		BoxCenterDistance:  cfg.Merge.BoxCenterDistance,
		CorroborationBoost: cfg.Merge.CorroborationBoost,
	})
	return takeoff.NewAnalyzer(providers, merger, log)
}
