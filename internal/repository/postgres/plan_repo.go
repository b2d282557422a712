package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"planbid/internal/domain"
	"planbid/internal/port"
)

type planRepo struct {
	db *sqlx.DB
}

// NewPlanRepo creates a new PostgreSQL-backed PlanRepository.
func NewPlanRepo(db *sqlx.DB) port.PlanRepository {
	return &planRepo{db: db}
}

func (r *planRepo) GetByID(ctx context.Context, planID uuid.UUID) (*domain.PlanDocument, error) {
	var plan domain.PlanDocument
	err := r.db.GetContext(ctx, &plan,
		`SELECT id, project_id, file_name, storage_bucket, storage_key, page_count, created_at
		 FROM plan_documents WHERE id = $1`, planID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPlanNotFound
		}
		return nil, fmt.Errorf("planRepo.GetByID: %w", err)
	}
	return &plan, nil
}

func (r *planRepo) ListSheets(ctx context.Context, planID uuid.UUID) ([]domain.SheetMetadata, error) {
	var sheets []domain.SheetMetadata
	err := r.db.SelectContext(ctx, &sheets,
		`SELECT plan_id, page_no, sheet_id, title, discipline, sheet_type
		 FROM plan_sheets WHERE plan_id = $1 ORDER BY page_no`, planID)
	if err != nil {
		return nil, fmt.Errorf("planRepo.ListSheets: %w", err)
	}
	return sheets, nil
}
