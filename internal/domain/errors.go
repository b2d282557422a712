package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound                = errors.New("resource not found")
	ErrPlanNotFound            = errors.New("plan not found")
	ErrJobNotFound             = errors.New("job not found")
	ErrNoTakeoffResult         = errors.New("no takeoff result for plan")
	ErrInvalidInput            = errors.New("invalid input")
	ErrEmbeddingNotConfigured  = errors.New("embedding backend not configured: missing API key")
	ErrPlanFileUnavailable     = errors.New("plan file unavailable")
	ErrNoVisionProviders       = errors.New("no vision providers configured")
	ErrUnsupportedExportFormat = errors.New("unsupported export format")
	ErrIngestInProgress        = errors.New("ingestion already in progress for plan")
)

// StageError wraps an ingestion failure with the pipeline stage that produced it.
type StageError struct {
	Stage IngestStage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("ingestion failed at %s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError wraps err with stage, or returns nil when err is nil.
func NewStageError(stage IngestStage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// DimensionMismatchError is returned when an embedding vector does not have the
// expected length. It is never recovered from.
type DimensionMismatchError struct {
	Expected int
	Got      int
	Index    int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding %d has dimension %d, expected %d", e.Index, e.Got, e.Expected)
}

// EmbeddingAPIError is a non-retryable failure reported by the embedding backend.
type EmbeddingAPIError struct {
	StatusCode int
	Message    string
}

func (e *EmbeddingAPIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("embedding API error (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("embedding API error (status %d): %s", e.StatusCode, e.Message)
}
