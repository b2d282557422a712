package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/time/rate"

	"planbid/internal/config"
	"planbid/internal/domain"
)

const (
	defaultModel      = "text-embedding-3-small"
	defaultDimensions = 1536
)

// Embedder implements port.Embedder with the OpenAI embeddings endpoint.
type Embedder struct {
	client     openai.Client
	model      string
	dimensions int
	limiter    *rate.Limiter
}

// NewEmbedder creates an Embedder from config. The SDK's own retries are
// disabled; callers decide whether to rerun a failed ingestion.
func NewEmbedder(cfg *config.EmbeddingConfig) *Embedder {
	return newEmbedder(cfg, nil)
}

// NewEmbedderWithHTTPClient creates an Embedder using a custom HTTP client (for testing).
func NewEmbedderWithHTTPClient(cfg *config.EmbeddingConfig, httpClient *http.Client) *Embedder {
	return newEmbedder(cfg, httpClient)
}

func newEmbedder(cfg *config.EmbeddingConfig, httpClient *http.Client) *Embedder {
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = defaultDimensions
	}
	if httpClient == nil {
		timeout := time.Duration(cfg.TimeoutSecs) * time.Second
		if timeout == 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Embedder{
		client:     openai.NewClient(opts...),
		model:      model,
		dimensions: dims,
		limiter:    rate.NewLimiter(limit, 1),
	}
}

// Dimensions returns the vector length this embedder is expected to produce.
func (e *Embedder) Dimensions() int { return e.dimensions }

// ModelName returns the embedding model identifier.
func (e *Embedder) ModelName() string { return e.model }

// EmbedBatch embeds texts in one request. Vectors are returned in input order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("openai.EmbedBatch: waiting for rate limiter: %w", err)
	}

	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model:          openai.EmbeddingModel(e.model),
		Dimensions:     openai.Int(int64(e.dimensions)),
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	})
	if err != nil {
		return nil, mapOpenAIError(err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai.EmbedBatch: got %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		idx := int(d.Index)
		if idx < 0 || idx >= len(out) {
			return nil, fmt.Errorf("openai.EmbedBatch: embedding index %d out of range", idx)
		}
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		out[idx] = vec
	}
	return out, nil
}

func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &domain.EmbeddingAPIError{StatusCode: apiErr.StatusCode, Message: apiErr.Message}
	}
	return fmt.Errorf("openai.EmbedBatch: %w", err)
}
