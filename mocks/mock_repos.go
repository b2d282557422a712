package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"planbid/internal/domain"
)

// MockPlanRepo is a mock implementation of port.PlanRepository.
type MockPlanRepo struct {
	mock.Mock
}

func (m *MockPlanRepo) GetByID(ctx context.Context, planID uuid.UUID) (*domain.PlanDocument, error) {
	args := m.Called(ctx, planID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PlanDocument), args.Error(1)
}

func (m *MockPlanRepo) ListSheets(ctx context.Context, planID uuid.UUID) ([]domain.SheetMetadata, error) {
	args := m.Called(ctx, planID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SheetMetadata), args.Error(1)
}

// MockChunkRepo is a mock implementation of port.ChunkRepository.
type MockChunkRepo struct {
	mock.Mock
}

func (m *MockChunkRepo) ReplaceForPlan(ctx context.Context, planID uuid.UUID, chunks []domain.TextChunk) error {
	args := m.Called(ctx, planID, chunks)
	return args.Error(0)
}

func (m *MockChunkRepo) MatchChunks(ctx context.Context, planID uuid.UUID, embedding []float32, k int) ([]domain.ScoredChunk, error) {
	args := m.Called(ctx, planID, embedding, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ScoredChunk), args.Error(1)
}

func (m *MockChunkRepo) ListByPages(ctx context.Context, planID uuid.UUID, pages []int, limit int) ([]domain.TextChunk, error) {
	args := m.Called(ctx, planID, pages, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.TextChunk), args.Error(1)
}

func (m *MockChunkRepo) CountByPlan(ctx context.Context, planID uuid.UUID) (int, error) {
	args := m.Called(ctx, planID)
	return args.Int(0), args.Error(1)
}

// MockJobRepo is a mock implementation of port.JobRepository.
type MockJobRepo struct {
	mock.Mock
}

func (m *MockJobRepo) Create(ctx context.Context, job *domain.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockJobRepo) GetByID(ctx context.Context, jobID uuid.UUID) (*domain.Job, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Job), args.Error(1)
}

func (m *MockJobRepo) ClaimQueued(ctx context.Context, limit int) ([]domain.Job, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Job), args.Error(1)
}

func (m *MockJobRepo) Complete(ctx context.Context, jobID uuid.UUID, result []byte, warnings []string) error {
	args := m.Called(ctx, jobID, result, warnings)
	return args.Error(0)
}

func (m *MockJobRepo) Fail(ctx context.Context, jobID uuid.UUID, errMsg string, requeue bool) error {
	args := m.Called(ctx, jobID, errMsg, requeue)
	return args.Error(0)
}

// MockTakeoffRepo is a mock implementation of port.TakeoffRepository.
type MockTakeoffRepo struct {
	mock.Mock
}

func (m *MockTakeoffRepo) Create(ctx context.Context, run *domain.TakeoffRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockTakeoffRepo) LatestForPlan(ctx context.Context, planID uuid.UUID) (*domain.TakeoffRun, error) {
	args := m.Called(ctx, planID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TakeoffRun), args.Error(1)
}
