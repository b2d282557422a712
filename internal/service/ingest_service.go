package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"planbid/internal/chunker"
	"planbid/internal/domain"
	"planbid/internal/extract"
	"planbid/internal/logger"
	"planbid/internal/port"
)

// IngestService turns a plan PDF into stored, embedded text chunks.
type IngestService interface {
	// IngestPlan replaces every chunk of the plan. Failures are returned as
	// *domain.StageError naming the stage; sparse text and missing OCR are
	// reported as warnings on the result.
	IngestPlan(ctx context.Context, planID uuid.UUID) (*domain.IngestResult, error)
}

// IngestDeps groups the collaborators of the ingestion pipeline. Embedder
// may be nil when no embedding API key is configured.
type IngestDeps struct {
	Plans     port.PlanRepository
	Chunks    port.ChunkRepository
	Files     port.PlanFileStore
	Extractor *extract.Pipeline
	Chunker   *chunker.Chunker
	Embedder  port.Embedder
	Locker    *PlanLocker
	// BatchSize and Concurrency tune embedding batches.
	BatchSize   int
	Concurrency int
}

type ingestService struct {
	deps    IngestDeps
	indexer *Indexer
	logger  *zap.Logger
}

// NewIngestService creates a new IngestService.
func NewIngestService(deps IngestDeps, l *zap.Logger) IngestService {
	if deps.Chunker == nil {
		deps.Chunker = chunker.New()
	}
	if deps.Locker == nil {
		deps.Locker = NewPlanLocker()
	}
	s := &ingestService{deps: deps, logger: logger.OrNop(l).Named("service.Ingest")}
	if deps.Embedder != nil {
		s.indexer = NewIndexer(deps.Embedder, deps.BatchSize, deps.Concurrency)
	}
	return s
}

func (s *ingestService) IngestPlan(ctx context.Context, planID uuid.UUID) (*domain.IngestResult, error) {
	if s.indexer == nil {
		return nil, domain.ErrEmbeddingNotConfigured
	}

	unlock := s.deps.Locker.Lock(planID)
	defer unlock()

	plan, err := s.deps.Plans.GetByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	log := s.logger.With(zap.String("plan_id", planID.String()))

	pdfBytes, err := s.deps.Files.Fetch(ctx, plan)
	if err != nil {
		return nil, domain.NewStageError(domain.StageDownload, err)
	}
	log.Info("plan downloaded", zap.Int("bytes", len(pdfBytes)))

	extracted, err := s.deps.Extractor.Run(ctx, pdfBytes, plan.FileName)
	if err != nil {
		return nil, domain.NewStageError(domain.StageExtraction, err)
	}
	warnings := append([]string(nil), extracted.Warnings...)

	sheets, err := s.deps.Plans.ListSheets(ctx, planID)
	if err != nil {
		log.Warn("sheet lookup failed, chunking without sheet metadata", zap.Error(err))
		sheets = nil
	}
	chunks := s.chunkPages(planID, extracted, indexSheets(sheets))

	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].SnippetText
	}
	vectors, err := s.indexer.Embed(ctx, texts)
	if err != nil {
		return nil, domain.NewStageError(domain.StageEmbedding, err)
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}

	if err := s.deps.Chunks.ReplaceForPlan(ctx, planID, chunks); err != nil {
		return nil, domain.NewStageError(domain.StageStorage, err)
	}
	stored, err := s.deps.Chunks.CountByPlan(ctx, planID)
	if err != nil {
		return nil, domain.NewStageError(domain.StageStorage, err)
	}
	if stored != len(chunks) {
		return nil, domain.NewStageError(domain.StageStorage,
			fmt.Errorf("stored %d chunks, expected %d", stored, len(chunks)))
	}

	log.Info("plan ingested",
		zap.Int("pages", extracted.PageCount),
		zap.Int("chunks", stored),
		zap.Bool("ocr", extracted.UsedOCR),
		zap.Int("warnings", len(warnings)))

	if warnings == nil {
		warnings = []string{}
	}
	return &domain.IngestResult{
		PlanID:     planID,
		ChunkCount: stored,
		PageCount:  extracted.PageCount,
		UsedOCR:    extracted.UsedOCR,
		Warnings:   warnings,
	}, nil
}

func (s *ingestService) chunkPages(planID uuid.UUID, res *extract.Result, sheets map[int]*domain.SheetMetadata) []domain.TextChunk {
	totalPages := res.PageCount
	if totalPages < len(res.Pages) {
		totalPages = len(res.Pages)
	}

	var chunks []domain.TextChunk
	for i, page := range res.Pages {
		pageNo := page.PageNumber
		pc := chunker.PageContext{
			PageNumber: pageNo,
			PageIndex:  i,
			TotalPages: totalPages,
			Sheet:      sheets[pageNo],
		}
		for _, pch := range s.deps.Chunker.ChunkPage(page.Text, pc) {
			pn := pageNo
			chunks = append(chunks, domain.TextChunk{
				ID:          uuid.New(),
				PlanID:      planID,
				PageNumber:  &pn,
				SnippetText: pch.Text,
				Metadata:    pch.Metadata,
			})
		}
	}
	return chunks
}

func indexSheets(sheets []domain.SheetMetadata) map[int]*domain.SheetMetadata {
	out := make(map[int]*domain.SheetMetadata, len(sheets))
	for i := range sheets {
		out[sheets[i].PageNo] = &sheets[i]
	}
	return out
}
