package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"planbid/internal/domain"
	"planbid/internal/logger"
	"planbid/internal/port"
)

const (
	// DefaultSearchK is the number of chunks a search returns when k is unset.
	DefaultSearchK = 6
	// ChunksPerPage bounds page-scoped retrieval: max(pages*ChunksPerPage, ChunksPerPage).
	ChunksPerPage = 12
	maxSearchK    = 100
)

// RetrievalService answers questions against a plan's stored chunks.
type RetrievalService interface {
	Search(ctx context.Context, planID uuid.UUID, query string, k int) ([]domain.ScoredChunk, error)
	ChunksForPages(ctx context.Context, planID uuid.UUID, pages []int) ([]domain.TextChunk, error)
	// SearchScoped uses page-scoped retrieval when pages are given and
	// semantic search otherwise. Page-scoped results carry zero similarity.
	SearchScoped(ctx context.Context, planID uuid.UUID, query string, pages []int, k int) ([]domain.ScoredChunk, error)
}

type retrievalService struct {
	plans    port.PlanRepository
	chunks   port.ChunkRepository
	embedder port.Embedder
	logger   *zap.Logger
}

// NewRetrievalService creates a new RetrievalService. embedder may be nil,
// in which case semantic search reports domain.ErrEmbeddingNotConfigured.
func NewRetrievalService(plans port.PlanRepository, chunks port.ChunkRepository, embedder port.Embedder, l *zap.Logger) RetrievalService {
	return &retrievalService{
		plans:    plans,
		chunks:   chunks,
		embedder: embedder,
		logger:   logger.OrNop(l).Named("service.Retrieval"),
	}
}

func (s *retrievalService) Search(ctx context.Context, planID uuid.UUID, query string, k int) ([]domain.ScoredChunk, error) {
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingNotConfigured
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", domain.ErrInvalidInput)
	}
	if k <= 0 {
		k = DefaultSearchK
	}
	k = min(k, maxSearchK)

	if _, err := s.plans.GetByID(ctx, planID); err != nil {
		return nil, err
	}

	vecs, err := s.embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("retrievalService.Search embed: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("retrievalService.Search: embedder returned %d vectors", len(vecs))
	}
	if len(vecs[0]) != domain.EmbeddingDimensions {
		return nil, &domain.DimensionMismatchError{Expected: domain.EmbeddingDimensions, Got: len(vecs[0])}
	}

	matches, err := s.chunks.MatchChunks(ctx, planID, vecs[0], k)
	if err != nil {
		return nil, fmt.Errorf("retrievalService.Search: %w", err)
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	s.logger.Debug("search", zap.String("plan_id", planID.String()), zap.Int("k", k), zap.Int("hits", len(matches)))
	return matches, nil
}

func (s *retrievalService) ChunksForPages(ctx context.Context, planID uuid.UUID, pages []int) ([]domain.TextChunk, error) {
	unique := UniquePages(pages)
	if len(unique) == 0 {
		return nil, fmt.Errorf("%w: at least one page number >= 1 is required", domain.ErrInvalidInput)
	}
	if _, err := s.plans.GetByID(ctx, planID); err != nil {
		return nil, err
	}

	limit := PageScopedLimit(len(unique))
	chunks, err := s.chunks.ListByPages(ctx, planID, unique, limit)
	if err != nil {
		return nil, fmt.Errorf("retrievalService.ChunksForPages: %w", err)
	}
	if chunks == nil {
		chunks = []domain.TextChunk{}
	}
	return chunks, nil
}

func (s *retrievalService) SearchScoped(ctx context.Context, planID uuid.UUID, query string, pages []int, k int) ([]domain.ScoredChunk, error) {
	if len(UniquePages(pages)) == 0 {
		return s.Search(ctx, planID, query, k)
	}
	chunks, err := s.ChunksForPages(ctx, planID, pages)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ScoredChunk, len(chunks))
	for i := range chunks {
		out[i] = domain.ScoredChunk{TextChunk: chunks[i]}
	}
	return out, nil
}

// UniquePages drops duplicates and non-positive page numbers and sorts.
func UniquePages(pages []int) []int {
	seen := make(map[int]bool, len(pages))
	out := make([]int, 0, len(pages))
	for _, p := range pages {
		if p < 1 || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}

// PageScopedLimit is the row cap for a page-scoped query over n pages.
func PageScopedLimit(n int) int {
	return max(n*ChunksPerPage, ChunksPerPage)
}
