package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"planbid/internal/domain"
	"planbid/internal/export"
	"planbid/internal/logger"
	"planbid/internal/missinginfo"
	"planbid/internal/port"
	"planbid/internal/takeoff"
	"planbid/internal/vision"
)

// TakeoffAnalyzer runs one multi-provider analysis. *takeoff.Analyzer implements it.
type TakeoffAnalyzer interface {
	Analyze(ctx context.Context, input port.VisionInput) *takeoff.AnalyzeResult
}

// ExportResult is a rendered takeoff export. URL is set when the file was
// uploaded to object storage.
type ExportResult struct {
	FileName    string
	ContentType string
	Data        []byte
	URL         string
}

// TakeoffService runs and serves multi-provider takeoff analyses.
type TakeoffService interface {
	// Analyze runs every vision provider on the payload images and stores
	// the merged result. Provider failures never fail the call.
	Analyze(ctx context.Context, planID uuid.UUID, jobID *uuid.UUID, payload *domain.TakeoffJobPayload) (*domain.TakeoffRun, error)
	Latest(ctx context.Context, planID uuid.UUID) (*domain.TakeoffRun, error)
	MissingInfo(ctx context.Context, planID uuid.UUID, annotations []domain.Annotation) (*domain.MissingInfoReport, error)
	Export(ctx context.Context, planID uuid.UUID, format domain.ExportFormat, upload bool) (*ExportResult, error)
}

// TakeoffDeps groups the collaborators of TakeoffService. Storage may be nil,
// which disables storage-referenced page images and export upload.
type TakeoffDeps struct {
	Plans         port.PlanRepository
	Runs          port.TakeoffRepository
	Analyzer      TakeoffAnalyzer
	Storage       port.ObjectStorage
	ImageBucket   string
	ExportBucket  string
	PresignExpiry int64
}

type takeoffService struct {
	deps   TakeoffDeps
	logger *zap.Logger
	now    func() time.Time
}

// NewTakeoffService creates a new TakeoffService.
func NewTakeoffService(deps TakeoffDeps, l *zap.Logger) TakeoffService {
	if deps.PresignExpiry <= 0 {
		deps.PresignExpiry = 3600
	}
	return &takeoffService{deps: deps, logger: logger.OrNop(l).Named("service.Takeoff"), now: time.Now}
}

func (s *takeoffService) Analyze(ctx context.Context, planID uuid.UUID, jobID *uuid.UUID, payload *domain.TakeoffJobPayload) (*domain.TakeoffRun, error) {
	if s.deps.Analyzer == nil {
		return nil, domain.ErrNoVisionProviders
	}
	if payload == nil || len(payload.Images) == 0 {
		return nil, fmt.Errorf("%w: at least one page image is required", domain.ErrInvalidInput)
	}
	if _, err := s.deps.Plans.GetByID(ctx, planID); err != nil {
		return nil, err
	}

	images, err := s.resolveImages(ctx, payload.Images)
	if err != nil {
		return nil, err
	}
	system, user := vision.PromptsOrDefault(payload.SystemPrompt, payload.UserPrompt)

	res := s.deps.Analyzer.Analyze(ctx, port.VisionInput{Images: images, SystemPrompt: system, UserPrompt: user})

	run := &domain.TakeoffRun{
		PlanID:     planID,
		JobID:      jobID,
		Result:     res.Result,
		ModelsUsed: domain.StringList(res.ModelsUsed),
	}
	if err := s.deps.Runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("takeoffService.Analyze: %w", err)
	}

	s.logger.Info("takeoff stored",
		zap.String("plan_id", planID.String()),
		zap.String("run_id", run.ID.String()),
		zap.Int("items", len(run.Result.Items)),
		zap.Strings("models", res.ModelsUsed))
	return run, nil
}

// resolveImages downloads images given by storage reference.
func (s *takeoffService) resolveImages(ctx context.Context, in []domain.PageImage) ([]domain.PageImage, error) {
	out := make([]domain.PageImage, len(in))
	for i, img := range in {
		out[i] = img
		if len(img.Data) > 0 {
			continue
		}
		if img.Key == "" {
			return nil, fmt.Errorf("%w: image %d has neither data nor key", domain.ErrInvalidInput, i)
		}
		if s.deps.Storage == nil {
			return nil, fmt.Errorf("%w: image %d references storage but none is configured", domain.ErrInvalidInput, i)
		}
		bucket := img.Bucket
		if bucket == "" {
			bucket = s.deps.ImageBucket
		}
		data, err := s.deps.Storage.Download(ctx, bucket, img.Key)
		if err != nil {
			return nil, fmt.Errorf("takeoffService.resolveImages page %d: %w", img.Page, err)
		}
		out[i].Data = data
		out[i].Bucket = bucket
	}
	return out, nil
}

func (s *takeoffService) Latest(ctx context.Context, planID uuid.UUID) (*domain.TakeoffRun, error) {
	if _, err := s.deps.Plans.GetByID(ctx, planID); err != nil {
		return nil, err
	}
	return s.deps.Runs.LatestForPlan(ctx, planID)
}

func (s *takeoffService) MissingInfo(ctx context.Context, planID uuid.UUID, annotations []domain.Annotation) (*domain.MissingInfoReport, error) {
	run, err := s.Latest(ctx, planID)
	if err != nil {
		return nil, err
	}
	report := missinginfo.Analyze(run.Result.Items, annotations)
	return &report, nil
}

func (s *takeoffService) Export(ctx context.Context, planID uuid.UUID, format domain.ExportFormat, upload bool) (*ExportResult, error) {
	plan, err := s.deps.Plans.GetByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	run, err := s.deps.Runs.LatestForPlan(ctx, planID)
	if err != nil {
		return nil, err
	}

	data, err := export.Render(format, run.Result.Items)
	if err != nil {
		return nil, fmt.Errorf("takeoffService.Export: %w", err)
	}
	out := &ExportResult{
		FileName:    export.BuildFilename(plan.FileName, format, s.now()),
		ContentType: export.ContentType(format),
		Data:        data,
	}
	if !upload || s.deps.Storage == nil || s.deps.ExportBucket == "" {
		return out, nil
	}

	key := fmt.Sprintf("exports/%s/%s/%s", planID, run.ID, out.FileName)
	if _, err := s.deps.Storage.Upload(ctx, port.UploadInput{
		Bucket:      s.deps.ExportBucket,
		Key:         key,
		Body:        bytes.NewReader(data),
		ContentType: out.ContentType,
		Size:        int64(len(data)),
	}); err != nil {
		return nil, fmt.Errorf("takeoffService.Export upload: %w", err)
	}
	url, err := s.deps.Storage.GetPresignedURL(ctx, s.deps.ExportBucket, key, s.deps.PresignExpiry)
	if err != nil {
		// Nobody can reach an export without its link.
		if delErr := s.deps.Storage.Delete(ctx, s.deps.ExportBucket, key); delErr != nil {
			s.logger.Warn("orphaned export left in bucket",
				zap.String("bucket", s.deps.ExportBucket), zap.String("key", key), zap.Error(delErr))
		}
		return nil, fmt.Errorf("takeoffService.Export presign: %w", err)
	}
	out.URL = url
	return out, nil
}
