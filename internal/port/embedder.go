package port

import "context"

// Embedder turns texts into fixed-length vectors. The i-th vector corresponds
// to the i-th input text.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	ModelName() string
}
