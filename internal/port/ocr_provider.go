package port

import (
	"context"

	"planbid/internal/domain"
)

// OCRProvider recovers page text from a scanned PDF. Page numbers in the
// returned slice are 1-indexed.
type OCRProvider interface {
	OCR(ctx context.Context, pdf []byte, fileName string) ([]domain.PageText, error)
}
