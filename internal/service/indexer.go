package service

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"planbid/internal/domain"
	"planbid/internal/port"
)

const (
	defaultEmbedBatchSize   = 20
	defaultEmbedConcurrency = 2
)

// Indexer turns chunk texts into embeddings in fixed-size batches.
type Indexer struct {
	embedder    port.Embedder
	batchSize   int
	concurrency int
	dimensions  int
}

// NewIndexer creates an Indexer. Non-positive sizes take their defaults.
func NewIndexer(embedder port.Embedder, batchSize, concurrency int) *Indexer {
	if batchSize <= 0 {
		batchSize = defaultEmbedBatchSize
	}
	if concurrency <= 0 {
		concurrency = defaultEmbedConcurrency
	}
	return &Indexer{
		embedder:    embedder,
		batchSize:   batchSize,
		concurrency: concurrency,
		dimensions:  domain.EmbeddingDimensions,
	}
}

// Embed returns one vector per text, in input order. Batches run with
// bounded concurrency; the first failure cancels the rest. A vector of the
// wrong length fails the whole call with a *domain.DimensionMismatchError.
func (ix *Indexer) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	if len(texts) == 0 {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.concurrency)
	for start := 0; start < len(texts); start += ix.batchSize {
		start := start
		end := min(start+ix.batchSize, len(texts))
		g.Go(func() error {
			vecs, err := ix.embedder.EmbedBatch(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("Indexer.Embed batch at %d: %w", start, err)
			}
			if len(vecs) != end-start {
				return fmt.Errorf("Indexer.Embed batch at %d: got %d vectors for %d texts", start, len(vecs), end-start)
			}
			for i, v := range vecs {
				if len(v) != ix.dimensions {
					return &domain.DimensionMismatchError{Expected: ix.dimensions, Got: len(v), Index: start + i}
				}
				out[start+i] = v
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
