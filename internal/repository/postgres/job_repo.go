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

const jobColumns = `id, plan_id, kind, status, attempts, payload, result, error, warnings,
	created_at, updated_at, started_at, finished_at`

type jobRepo struct {
	db *sqlx.DB
}

// NewJobRepo creates a new PostgreSQL-backed JobRepository.
func NewJobRepo(db *sqlx.DB) port.JobRepository {
	return &jobRepo{db: db}
}

func (r *jobRepo) Create(ctx context.Context, job *domain.Job) error {
	now := time.Now().UTC()
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	job.Status = domain.JobStatusQueued
	job.CreatedAt = now
	job.UpdatedAt = now
	if job.Warnings == nil {
		job.Warnings = domain.StringList{}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO jobs (id, plan_id, kind, status, attempts, payload, warnings, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		job.ID, job.PlanID, job.Kind, job.Status, job.Attempts, nullJSON(job.Payload), job.Warnings,
		job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("jobRepo.Create: %w", err)
	}
	return nil
}

func (r *jobRepo) GetByID(ctx context.Context, jobID uuid.UUID) (*domain.Job, error) {
	var job domain.Job
	err := r.db.GetContext(ctx, &job, "SELECT "+jobColumns+" FROM jobs WHERE id = $1", jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("jobRepo.GetByID: %w", err)
	}
	return &job, nil
}

// ClaimQueued picks the oldest queued job of each idle plan. A plan with a
// job in processing is skipped so work on one plan never interleaves.
func (r *jobRepo) ClaimQueued(ctx context.Context, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		return nil, nil
	}
	var jobs []domain.Job
	err := r.db.SelectContext(ctx, &jobs,
		`WITH candidates AS (
			SELECT DISTINCT ON (j.plan_id) j.id
			FROM jobs j
			WHERE j.status = 'queued'
			  AND NOT EXISTS (
				SELECT 1 FROM jobs p WHERE p.plan_id = j.plan_id AND p.status = 'processing'
			  )
			ORDER BY j.plan_id, j.created_at ASC
		),
		picked AS (
			SELECT j.id FROM jobs j
			JOIN candidates c ON c.id = j.id
			ORDER BY j.created_at ASC
			LIMIT $1
			FOR UPDATE OF j SKIP LOCKED
		)
		UPDATE jobs SET
			status = 'processing',
			attempts = attempts + 1,
			started_at = NOW(),
			updated_at = NOW()
		FROM picked
		WHERE jobs.id = picked.id
		RETURNING `+qualified("jobs", jobColumns),
		limit)
	if err != nil {
		return nil, fmt.Errorf("jobRepo.ClaimQueued: %w", err)
	}
	return jobs, nil
}

func (r *jobRepo) Complete(ctx context.Context, jobID uuid.UUID, result []byte, warnings []string) error {
	if warnings == nil {
		warnings = []string{}
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET status = 'completed', result = $1, warnings = $2, error = '',
			finished_at = NOW(), updated_at = NOW()
		 WHERE id = $3`,
		nullJSON(result), domain.StringList(warnings), jobID)
	if err != nil {
		return fmt.Errorf("jobRepo.Complete: %w", err)
	}
	return expectOneRow(res, domain.ErrJobNotFound, "jobRepo.Complete")
}

// Fail records errMsg. With requeue the job returns to the queue for another
// attempt, otherwise it is marked failed.
func (r *jobRepo) Fail(ctx context.Context, jobID uuid.UUID, errMsg string, requeue bool) error {
	status := domain.JobStatusFailed
	if requeue {
		status = domain.JobStatusQueued
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET status = $1, error = $2, updated_at = NOW(),
			finished_at = CASE WHEN $1 = 'failed' THEN NOW() ELSE NULL END
		 WHERE id = $3`,
		status, errMsg, jobID)
	if err != nil {
		return fmt.Errorf("jobRepo.Fail: %w", err)
	}
	return expectOneRow(res, domain.ErrJobNotFound, "jobRepo.Fail")
}

func expectOneRow(res sql.Result, notFound error, op string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if rows == 0 {
		return notFound
	}
	return nil
}

// nullJSON stores an empty payload as SQL NULL.
func nullJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return []byte(b)
}
