package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"planbid/internal/domain"
	"planbid/internal/service"
)

// MockJobService is a mock implementation of service.JobService.
type MockJobService struct {
	mock.Mock
}

func (m *MockJobService) EnqueueIngest(ctx context.Context, planID uuid.UUID) (*domain.Job, error) {
	args := m.Called(ctx, planID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Job), args.Error(1)
}

func (m *MockJobService) EnqueueTakeoff(ctx context.Context, planID uuid.UUID, payload *domain.TakeoffJobPayload) (*domain.Job, error) {
	args := m.Called(ctx, planID, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Job), args.Error(1)
}

func (m *MockJobService) Get(ctx context.Context, jobID uuid.UUID) (*domain.Job, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Job), args.Error(1)
}

func (m *MockJobService) Process(ctx context.Context, job *domain.Job, maxAttempts int) {
	m.Called(ctx, job, maxAttempts)
}

// MockIngestService is a mock implementation of service.IngestService.
type MockIngestService struct {
	mock.Mock
}

func (m *MockIngestService) IngestPlan(ctx context.Context, planID uuid.UUID) (*domain.IngestResult, error) {
	args := m.Called(ctx, planID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IngestResult), args.Error(1)
}

// MockRetrievalService is a mock implementation of service.RetrievalService.
type MockRetrievalService struct {
	mock.Mock
}

func (m *MockRetrievalService) Search(ctx context.Context, planID uuid.UUID, query string, k int) ([]domain.ScoredChunk, error) {
	args := m.Called(ctx, planID, query, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ScoredChunk), args.Error(1)
}

func (m *MockRetrievalService) ChunksForPages(ctx context.Context, planID uuid.UUID, pages []int) ([]domain.TextChunk, error) {
	args := m.Called(ctx, planID, pages)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.TextChunk), args.Error(1)
}

func (m *MockRetrievalService) SearchScoped(ctx context.Context, planID uuid.UUID, query string, pages []int, k int) ([]domain.ScoredChunk, error) {
	args := m.Called(ctx, planID, query, pages, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ScoredChunk), args.Error(1)
}

// MockTakeoffService is a mock implementation of service.TakeoffService.
type MockTakeoffService struct {
	mock.Mock
}

func (m *MockTakeoffService) Analyze(ctx context.Context, planID uuid.UUID, jobID *uuid.UUID, payload *domain.TakeoffJobPayload) (*domain.TakeoffRun, error) {
	args := m.Called(ctx, planID, jobID, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TakeoffRun), args.Error(1)
}

func (m *MockTakeoffService) Latest(ctx context.Context, planID uuid.UUID) (*domain.TakeoffRun, error) {
	args := m.Called(ctx, planID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TakeoffRun), args.Error(1)
}

func (m *MockTakeoffService) MissingInfo(ctx context.Context, planID uuid.UUID, annotations []domain.Annotation) (*domain.MissingInfoReport, error) {
	args := m.Called(ctx, planID, annotations)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MissingInfoReport), args.Error(1)
}

func (m *MockTakeoffService) Export(ctx context.Context, planID uuid.UUID, format domain.ExportFormat, upload bool) (*service.ExportResult, error) {
	args := m.Called(ctx, planID, format, upload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ExportResult), args.Error(1)
}
