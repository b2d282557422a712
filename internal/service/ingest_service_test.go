package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"planbid/internal/domain"
	"planbid/internal/extract"
	"planbid/internal/service"
	"planbid/mocks"
)

type stubExtractor struct {
	pages []domain.PageText
	err   error
}

func (s *stubExtractor) Extract(ctx context.Context, pdfBytes []byte) (*extract.ExtractResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	total := 0
	for _, p := range s.pages {
		total += len(p.Text)
	}
	return &extract.ExtractResult{Pages: s.pages, PageCount: len(s.pages), TotalChars: total}, nil
}

// chunkStore keeps chunks per plan the way the database does.
type chunkStore struct {
	mu     sync.Mutex
	byPlan map[uuid.UUID][]domain.TextChunk
	err    error
	// drop silently discards this many chunks on write.
	drop int
}

func newChunkStore() *chunkStore {
	return &chunkStore{byPlan: map[uuid.UUID][]domain.TextChunk{}}
}

func (s *chunkStore) ReplaceForPlan(ctx context.Context, planID uuid.UUID, chunks []domain.TextChunk) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := chunks[:max(len(chunks)-s.drop, 0)]
	s.byPlan[planID] = append([]domain.TextChunk(nil), kept...)
	return nil
}

func (s *chunkStore) MatchChunks(ctx context.Context, planID uuid.UUID, embedding []float32, k int) ([]domain.ScoredChunk, error) {
	return nil, nil
}

func (s *chunkStore) ListByPages(ctx context.Context, planID uuid.UUID, pages []int, limit int) ([]domain.TextChunk, error) {
	return nil, nil
}

func (s *chunkStore) CountByPlan(ctx context.Context, planID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byPlan[planID]), nil
}

type ingestFixture struct {
	planID uuid.UUID
	plans  *mocks.MockPlanRepo
	files  *mocks.MockPlanFileStore
	store  *chunkStore
	native *stubExtractor
}

func newIngestFixture() *ingestFixture {
	planID := uuid.New()
	plan := &domain.PlanDocument{ID: planID, FileName: "clinic.pdf", StorageBucket: "plans", StorageKey: "clinic.pdf"}
	sheetID, title := "A-101", "First Floor Plan"

	plans := new(mocks.MockPlanRepo)
	plans.On("GetByID", mock.Anything, planID).Return(plan, nil)
	plans.On("ListSheets", mock.Anything, planID).Return([]domain.SheetMetadata{
		{PlanID: planID, PageNo: 1, SheetID: &sheetID, Title: &title},
	}, nil)

	files := new(mocks.MockPlanFileStore)
	files.On("Fetch", mock.Anything, plan).Return([]byte("%PDF-1.7"), nil)

	return &ingestFixture{
		planID: planID,
		plans:  plans,
		files:  files,
		store:  newChunkStore(),
		native: &stubExtractor{pages: []domain.PageText{
			{PageNumber: 1, Text: strings.Repeat("Provide 5/8 in. gypsum board at all corridor walls. ", 30)},
			{PageNumber: 2, Text: "Door schedule. All hollow metal frames to be 16 gauge. Hardware per spec section 08 71 00."},
		}},
	}
}

func (f *ingestFixture) service(emb *fakeEmbedder) service.IngestService {
	deps := service.IngestDeps{
		Plans:     f.plans,
		Chunks:    f.store,
		Files:     f.files,
		Extractor: extract.NewPipeline(f.native, nil, nil),
		BatchSize: 4,
	}
	if emb != nil {
		deps.Embedder = emb
	}
	return service.NewIngestService(deps, nil)
}

func TestIngest_StoresChunksWithSheetMetadata(t *testing.T) {
	f := newIngestFixture()

	res, err := f.service(&fakeEmbedder{}).IngestPlan(context.Background(), f.planID)

	require.NoError(t, err)
	assert.Equal(t, f.planID, res.PlanID)
	assert.Equal(t, 2, res.PageCount)
	assert.False(t, res.UsedOCR)
	assert.NotNil(t, res.Warnings)
	assert.Empty(t, res.Warnings)

	stored := f.store.byPlan[f.planID]
	require.Len(t, stored, res.ChunkCount)
	require.Greater(t, len(stored), 2)

	first := stored[0]
	require.NotNil(t, first.PageNumber)
	assert.Equal(t, 1, *first.PageNumber)
	assert.Equal(t, "A-101", first.Metadata.SheetID)
	assert.Equal(t, "First Floor Plan", first.Metadata.SheetTitle)
	assert.Equal(t, 2, first.Metadata.TotalPages)
	for _, c := range stored {
		assert.Len(t, c.Embedding, domain.EmbeddingDimensions)
		assert.Equal(t, f.planID, c.PlanID)
		assert.LessOrEqual(t, c.Metadata.CharacterCount, 900)
	}

	last := stored[len(stored)-1]
	assert.Equal(t, 2, *last.PageNumber)
	assert.Empty(t, last.Metadata.SheetID)
}

func TestIngest_IsIdempotent(t *testing.T) {
	f := newIngestFixture()
	svc := f.service(&fakeEmbedder{})

	first, err := svc.IngestPlan(context.Background(), f.planID)
	require.NoError(t, err)
	second, err := svc.IngestPlan(context.Background(), f.planID)
	require.NoError(t, err)

	assert.Equal(t, first.ChunkCount, second.ChunkCount)
	n, _ := f.store.CountByPlan(context.Background(), f.planID)
	assert.Equal(t, first.ChunkCount, n)
}

func TestIngest_WithoutEmbedder(t *testing.T) {
	f := newIngestFixture()

	_, err := f.service(nil).IngestPlan(context.Background(), f.planID)

	assert.ErrorIs(t, err, domain.ErrEmbeddingNotConfigured)
	f.files.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

func TestIngest_StageErrors(t *testing.T) {
	t.Run("download", func(t *testing.T) {
		f := newIngestFixture()
		f.files = new(mocks.MockPlanFileStore)
		f.files.On("Fetch", mock.Anything, mock.Anything).Return(nil, domain.ErrPlanFileUnavailable)

		_, err := f.service(&fakeEmbedder{}).IngestPlan(context.Background(), f.planID)

		var se *domain.StageError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, domain.StageDownload, se.Stage)
		assert.ErrorIs(t, err, domain.ErrPlanFileUnavailable)
	})

	t.Run("extraction", func(t *testing.T) {
		f := newIngestFixture()
		f.native.err = errors.New("malformed xref")

		_, err := f.service(&fakeEmbedder{}).IngestPlan(context.Background(), f.planID)

		var se *domain.StageError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, domain.StageExtraction, se.Stage)
	})

	t.Run("embedding dimension", func(t *testing.T) {
		f := newIngestFixture()

		_, err := f.service(&fakeEmbedder{dims: 3}).IngestPlan(context.Background(), f.planID)

		var se *domain.StageError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, domain.StageEmbedding, se.Stage)
		var dimErr *domain.DimensionMismatchError
		assert.True(t, errors.As(err, &dimErr))
		assert.Empty(t, f.store.byPlan[f.planID])
	})

	t.Run("storage", func(t *testing.T) {
		f := newIngestFixture()
		f.store.err = errors.New("connection reset")

		_, err := f.service(&fakeEmbedder{}).IngestPlan(context.Background(), f.planID)

		var se *domain.StageError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, domain.StageStorage, se.Stage)
	})

	t.Run("short write", func(t *testing.T) {
		f := newIngestFixture()
		f.store.drop = 1

		_, err := f.service(&fakeEmbedder{}).IngestPlan(context.Background(), f.planID)

		var se *domain.StageError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, domain.StageStorage, se.Stage)
		assert.Contains(t, err.Error(), "expected")
	})
}

func TestIngest_ScannedPlanWarns(t *testing.T) {
	f := newIngestFixture()
	f.native.pages = []domain.PageText{{PageNumber: 1, Text: "A-101"}}

	res, err := f.service(&fakeEmbedder{}).IngestPlan(context.Background(), f.planID)

	require.NoError(t, err)
	assert.Equal(t, 1, res.ChunkCount)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, extract.WarnOCRUnavailable, res.Warnings[0])
}
