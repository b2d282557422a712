package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"

	"planbid/internal/domain"
	"planbid/internal/port"
)

// insertBatchSize is the number of chunk rows per INSERT statement.
const insertBatchSize = 100

const chunkColumns = "id, plan_id, page_number, snippet_text, metadata, created_at"

type chunkRepo struct {
	db *sqlx.DB
}

// NewChunkRepo creates a new PostgreSQL-backed ChunkRepository using pgvector.
func NewChunkRepo(db *sqlx.DB) port.ChunkRepository {
	return &chunkRepo{db: db}
}

func (r *chunkRepo) ReplaceForPlan(ctx context.Context, planID uuid.UUID, chunks []domain.TextChunk) error {
	for i := range chunks {
		if n := len(chunks[i].Embedding); n != domain.EmbeddingDimensions {
			return &domain.DimensionMismatchError{Expected: domain.EmbeddingDimensions, Got: n, Index: i}
		}
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("chunkRepo.ReplaceForPlan begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM plan_text_chunks WHERE plan_id = $1", planID); err != nil {
		return fmt.Errorf("chunkRepo.ReplaceForPlan delete: %w", err)
	}

	now := time.Now().UTC()
	for start := 0; start < len(chunks); start += insertBatchSize {
		end := min(start+insertBatchSize, len(chunks))
		if err := insertChunks(ctx, tx, planID, chunks[start:end], now); err != nil {
			return fmt.Errorf("chunkRepo.ReplaceForPlan insert batch %d: %w", start/insertBatchSize, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("chunkRepo.ReplaceForPlan commit: %w", err)
	}
	return nil
}

func insertChunks(ctx context.Context, tx *sqlx.Tx, planID uuid.UUID, batch []domain.TextChunk, now time.Time) error {
	const cols = 7
	var sb strings.Builder
	sb.WriteString(`INSERT INTO plan_text_chunks
		(id, plan_id, page_number, snippet_text, metadata, embedding, created_at) VALUES `)
	args := make([]interface{}, 0, len(batch)*cols)
	for i := range batch {
		c := &batch[i]
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		c.PlanID = planID
		c.CreatedAt = now
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * cols
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7)
		args = append(args, c.ID, c.PlanID, c.PageNumber, c.SnippetText, c.Metadata,
			pgvector.NewVector(c.Embedding), c.CreatedAt)
	}
	_, err := tx.ExecContext(ctx, sb.String(), args...)
	return err
}

func (r *chunkRepo) MatchChunks(ctx context.Context, planID uuid.UUID, embedding []float32, k int) ([]domain.ScoredChunk, error) {
	var chunks []domain.ScoredChunk
	err := r.db.SelectContext(ctx, &chunks,
		`SELECT `+chunkColumns+`, similarity
		 FROM match_plan_text_chunks($1, $2, $3)`,
		planID, pgvector.NewVector(embedding), k)
	if err != nil {
		return nil, fmt.Errorf("chunkRepo.MatchChunks: %w", err)
	}
	return chunks, nil
}

func (r *chunkRepo) ListByPages(ctx context.Context, planID uuid.UUID, pages []int, limit int) ([]domain.TextChunk, error) {
	var chunks []domain.TextChunk
	err := r.db.SelectContext(ctx, &chunks,
		`SELECT `+chunkColumns+`
		 FROM plan_text_chunks
		 WHERE plan_id = $1 AND page_number = ANY($2)
		 ORDER BY page_number ASC, (metadata->>'chunk_index')::int ASC, created_at ASC
		 LIMIT $3`,
		planID, pages, limit)
	if err != nil {
		return nil, fmt.Errorf("chunkRepo.ListByPages: %w", err)
	}
	return chunks, nil
}

func (r *chunkRepo) CountByPlan(ctx context.Context, planID uuid.UUID) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		"SELECT COUNT(*) FROM plan_text_chunks WHERE plan_id = $1", planID)
	if err != nil {
		return 0, fmt.Errorf("chunkRepo.CountByPlan: %w", err)
	}
	return n, nil
}
