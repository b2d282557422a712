package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"planbid/internal/logger"
	"planbid/internal/port"
)

// JobWorkerConfig holds settings for the job worker.
type JobWorkerConfig struct {
	PollInterval time.Duration
	MaxAttempts  int
	Concurrency  int
	JobTimeout   time.Duration
}

// JobWorker polls for queued jobs and dispatches them.
type JobWorker struct {
	jobs    port.JobRepository
	service JobService
	cfg     JobWorkerConfig
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewJobWorker creates a new JobWorker.
func NewJobWorker(jobs port.JobRepository, service JobService, cfg JobWorkerConfig, l *zap.Logger) *JobWorker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 10 * time.Minute
	}
	return &JobWorker{
		jobs:    jobs,
		service: service,
		cfg:     cfg,
		logger:  logger.OrNop(l).Named("service.JobWorker"),
	}
}

// Start runs the polling loop until ctx is canceled. It blocks until all
// in-flight jobs have finished.
func (w *JobWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	sem := make(chan struct{}, w.cfg.Concurrency)

	w.logger.Info("started",
		zap.Duration("poll", w.cfg.PollInterval),
		zap.Int("concurrency", w.cfg.Concurrency),
		zap.Int("max_attempts", w.cfg.MaxAttempts))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("shutting down, waiting for in-flight jobs")
			w.wg.Wait()
			w.logger.Info("shutdown complete")
			return
		case <-ticker.C:
			w.poll(ctx, sem)
		}
	}
}

func (w *JobWorker) poll(ctx context.Context, sem chan struct{}) {
	available := w.cfg.Concurrency - len(sem)
	if available <= 0 {
		return
	}

	jobs, err := w.jobs.ClaimQueued(ctx, available)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error("claim queued jobs", zap.Error(err))
		}
		return
	}

	for i := range jobs {
		job := jobs[i]

		sem <- struct{}{}
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			defer func() { <-sem }()

			// Detached from the poll context so in-flight jobs finish during shutdown.
			jobCtx, cancel := context.WithTimeout(context.Background(), w.cfg.JobTimeout)
			defer cancel()

			w.logger.Info("dispatching job",
				zap.String("job_id", job.ID.String()),
				zap.String("kind", string(job.Kind)),
				zap.Int("attempt", job.Attempts))
			w.service.Process(jobCtx, &job, w.cfg.MaxAttempts)
		}()
	}
}

// Wait blocks until every dispatched job has finished.
func (w *JobWorker) Wait() {
	w.wg.Wait()
}
