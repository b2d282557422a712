package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"planbid/internal/domain"
	"planbid/internal/port"
)

type takeoffRepo struct {
	db *sqlx.DB
}

// NewTakeoffRepo creates a new PostgreSQL-backed TakeoffRepository.
func NewTakeoffRepo(db *sqlx.DB) port.TakeoffRepository {
	return &takeoffRepo{db: db}
}

func (r *takeoffRepo) Create(ctx context.Context, run *domain.TakeoffRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	run.CreatedAt = time.Now().UTC()
	if run.ModelsUsed == nil {
		run.ModelsUsed = domain.StringList{}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO takeoff_runs (id, plan_id, job_id, result, models_used, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, run.PlanID, run.JobID, run.Result, run.ModelsUsed, run.CreatedAt)
	if err != nil {
		return fmt.Errorf("takeoffRepo.Create: %w", err)
	}
	return nil
}

func (r *takeoffRepo) LatestForPlan(ctx context.Context, planID uuid.UUID) (*domain.TakeoffRun, error) {
	var run domain.TakeoffRun
	err := r.db.GetContext(ctx, &run,
		`SELECT id, plan_id, job_id, result, models_used, created_at
		 FROM takeoff_runs WHERE plan_id = $1
		 ORDER BY created_at DESC LIMIT 1`, planID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNoTakeoffResult
		}
		return nil, fmt.Errorf("takeoffRepo.LatestForPlan: %w", err)
	}
	return &run, nil
}
