package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"planbid/internal/domain"
	"planbid/internal/logger"
	"planbid/internal/port"
)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// JobService submits background jobs and runs claimed ones.
type JobService interface {
	EnqueueIngest(ctx context.Context, planID uuid.UUID) (*domain.Job, error)
	EnqueueTakeoff(ctx context.Context, planID uuid.UUID, payload *domain.TakeoffJobPayload) (*domain.Job, error)
	Get(ctx context.Context, jobID uuid.UUID) (*domain.Job, error)
	// Process runs a claimed job and records its outcome. A retryable
	// failure is requeued while attempts remain.
	Process(ctx context.Context, job *domain.Job, maxAttempts int)
}

type jobService struct {
	jobs    port.JobRepository
	plans   port.PlanRepository
	ingest  IngestService
	takeoff TakeoffService
	logger  *zap.Logger
}

// NewJobService creates a new JobService.
func NewJobService(jobs port.JobRepository, plans port.PlanRepository, ingest IngestService, takeoff TakeoffService, l *zap.Logger) JobService {
	return &jobService{
		jobs:    jobs,
		plans:   plans,
		ingest:  ingest,
		takeoff: takeoff,
		logger:  logger.OrNop(l).Named("service.Job"),
	}
}

func (s *jobService) EnqueueIngest(ctx context.Context, planID uuid.UUID) (*domain.Job, error) {
	if _, err := s.plans.GetByID(ctx, planID); err != nil {
		return nil, err
	}
	job := &domain.Job{PlanID: planID, Kind: domain.JobKindIngest}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("jobService.EnqueueIngest: %w", err)
	}
	s.logger.Info("ingest job queued", zap.String("job_id", job.ID.String()), zap.String("plan_id", planID.String()))
	return job, nil
}

func (s *jobService) EnqueueTakeoff(ctx context.Context, planID uuid.UUID, payload *domain.TakeoffJobPayload) (*domain.Job, error) {
	if err := validateTakeoffPayload(payload); err != nil {
		return nil, err
	}
	if _, err := s.plans.GetByID(ctx, planID); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("jobService.EnqueueTakeoff marshal: %w", err)
	}
	job := &domain.Job{PlanID: planID, Kind: domain.JobKindTakeoff, Payload: raw}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("jobService.EnqueueTakeoff: %w", err)
	}
	s.logger.Info("takeoff job queued",
		zap.String("job_id", job.ID.String()),
		zap.String("plan_id", planID.String()),
		zap.Int("images", len(payload.Images)))
	return job, nil
}

func validateTakeoffPayload(p *domain.TakeoffJobPayload) error {
	if p == nil || len(p.Images) == 0 {
		return fmt.Errorf("%w: at least one page image is required", domain.ErrInvalidInput)
	}
	for i, img := range p.Images {
		if !allowedImageTypes[img.ContentType] {
			return fmt.Errorf("%w: image %d has unsupported content type %q", domain.ErrInvalidInput, i, img.ContentType)
		}
		if len(img.Data) == 0 && img.Key == "" {
			return fmt.Errorf("%w: image %d has neither data nor key", domain.ErrInvalidInput, i)
		}
	}
	return nil
}

func (s *jobService) Get(ctx context.Context, jobID uuid.UUID) (*domain.Job, error) {
	return s.jobs.GetByID(ctx, jobID)
}

func (s *jobService) Process(ctx context.Context, job *domain.Job, maxAttempts int) {
	log := s.logger.With(
		zap.String("job_id", job.ID.String()),
		zap.String("plan_id", job.PlanID.String()),
		zap.String("kind", string(job.Kind)),
		zap.Int("attempt", job.Attempts))

	result, warnings, err := s.run(ctx, job)
	if err != nil {
		requeue := job.Attempts < maxAttempts && retryable(err)
		log.Error("job failed", zap.Error(err), zap.Bool("requeue", requeue))
		if ferr := s.jobs.Fail(ctx, job.ID, err.Error(), requeue); ferr != nil {
			log.Error("recording job failure", zap.Error(ferr))
		}
		return
	}

	raw, err := json.Marshal(result)
	if err != nil {
		log.Error("marshal job result", zap.Error(err))
		raw = nil
	}
	if err := s.jobs.Complete(ctx, job.ID, raw, warnings); err != nil {
		log.Error("recording job completion", zap.Error(err))
		return
	}
	log.Info("job completed", zap.Int("warnings", len(warnings)))
}

func (s *jobService) run(ctx context.Context, job *domain.Job) (interface{}, []string, error) {
	switch job.Kind {
	case domain.JobKindIngest:
		res, err := s.ingest.IngestPlan(ctx, job.PlanID)
		if err != nil {
			return nil, nil, err
		}
		return res, res.Warnings, nil
	case domain.JobKindTakeoff:
		var payload domain.TakeoffJobPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return nil, nil, fmt.Errorf("%w: decoding takeoff payload: %v", domain.ErrInvalidInput, err)
		}
		jobID := job.ID
		run, err := s.takeoff.Analyze(ctx, job.PlanID, &jobID, &payload)
		if err != nil {
			return nil, nil, err
		}
		return takeoffJobResult(run), takeoffWarnings(run), nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown job kind %q", domain.ErrInvalidInput, job.Kind)
	}
}

type takeoffSummary struct {
	RunID             uuid.UUID `json:"run_id"`
	ItemCount         int       `json:"item_count"`
	DuplicatesRemoved int       `json:"duplicates_removed"`
	ModelsUsed        []string  `json:"models_used"`
}

func takeoffJobResult(run *domain.TakeoffRun) takeoffSummary {
	return takeoffSummary{
		RunID:             run.ID,
		ItemCount:         len(run.Result.Items),
		DuplicatesRemoved: run.Result.Metadata.DuplicatesRemoved,
		ModelsUsed:        run.ModelsUsed,
	}
}

// takeoffWarnings surfaces provider failures on the job.
func takeoffWarnings(run *domain.TakeoffRun) []string {
	var out []string
	for provider, msg := range run.Result.Metadata.ProviderErrors {
		out = append(out, fmt.Sprintf("%s: %s", provider, msg))
	}
	sort.Strings(out)
	return out
}

// retryable reports whether running the whole job again could succeed.
// Configuration, validation and data-integrity errors never can.
func retryable(err error) bool {
	var dimErr *domain.DimensionMismatchError
	var apiErr *domain.EmbeddingAPIError
	switch {
	case errors.Is(err, domain.ErrEmbeddingNotConfigured),
		errors.Is(err, domain.ErrNoVisionProviders),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrPlanNotFound),
		errors.As(err, &dimErr),
		errors.As(err, &apiErr):
		return false
	}
	return true
}
