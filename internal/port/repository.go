package port

import (
	"context"

	"github.com/google/uuid"

	"planbid/internal/domain"
)

// PlanRepository reads plan documents and their sheet index.
type PlanRepository interface {
	GetByID(ctx context.Context, planID uuid.UUID) (*domain.PlanDocument, error)
	ListSheets(ctx context.Context, planID uuid.UUID) ([]domain.SheetMetadata, error)
}

// ChunkRepository persists text chunks and answers similarity queries.
type ChunkRepository interface {
	// ReplaceForPlan deletes every chunk of the plan and inserts chunks in one transaction.
	ReplaceForPlan(ctx context.Context, planID uuid.UUID, chunks []domain.TextChunk) error
	MatchChunks(ctx context.Context, planID uuid.UUID, embedding []float32, k int) ([]domain.ScoredChunk, error)
	ListByPages(ctx context.Context, planID uuid.UUID, pages []int, limit int) ([]domain.TextChunk, error)
	CountByPlan(ctx context.Context, planID uuid.UUID) (int, error)
}

// JobRepository defines the contract for the background job queue.
type JobRepository interface {
	Create(ctx context.Context, job *domain.Job) error
	GetByID(ctx context.Context, jobID uuid.UUID) (*domain.Job, error)
	// ClaimQueued atomically moves up to limit queued jobs to processing,
	// never claiming a job whose plan already has one in processing.
	ClaimQueued(ctx context.Context, limit int) ([]domain.Job, error)
	Complete(ctx context.Context, jobID uuid.UUID, result []byte, warnings []string) error
	Fail(ctx context.Context, jobID uuid.UUID, errMsg string, requeue bool) error
}

// TakeoffRepository persists merged takeoff results.
type TakeoffRepository interface {
	Create(ctx context.Context, run *domain.TakeoffRun) error
	LatestForPlan(ctx context.Context, planID uuid.UUID) (*domain.TakeoffRun, error)
}
