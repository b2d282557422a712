package extract

import (
	"context"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"

	"planbid/internal/domain"
	"planbid/internal/logger"
	"planbid/internal/port"
)

// Warning texts surfaced to callers when OCR could not run.
const (
	WarnOCRUnavailable = "Document appears to be scanned (low native text); OCR unavailable: no OCR API key configured"
	warnOCRFailedFmt   = "OCR failed: %v"
)

// Result is the text of a document after the OCR decision.
type Result struct {
	Pages     []domain.PageText
	PageCount int
	UsedOCR   bool
	Warnings  []string
}

// TotalChars counts characters across all pages.
func (r *Result) TotalChars() int {
	n := 0
	for _, p := range r.Pages {
		n += utf8.RuneCountInString(p.Text)
	}
	return n
}

// Pipeline runs native extraction and falls back to OCR for sparse documents.
type Pipeline struct {
	native PageExtractor
	ocr    port.OCRProvider
	logger *zap.Logger
}

// NewPipeline creates a Pipeline. ocr may be nil when no OCR backend is configured.
func NewPipeline(native PageExtractor, ocr port.OCRProvider, l *zap.Logger) *Pipeline {
	return &Pipeline{
		native: native,
		ocr:    ocr,
		logger: logger.OrNop(l).Named("extract.Pipeline"),
	}
}

// Run extracts page text. OCR absence or failure degrades to native text
// with a warning; only a native extraction failure is returned as an error.
func (p *Pipeline) Run(ctx context.Context, pdfBytes []byte, fileName string) (*Result, error) {
	native, err := p.native.Extract(ctx, pdfBytes)
	if err != nil {
		return nil, fmt.Errorf("native extraction: %w", err)
	}

	res := &Result{Pages: native.Pages, PageCount: native.PageCount}
	if !NeedsOCR(native.PageCount, native.TotalChars) {
		return res, nil
	}

	p.logger.Info("sparse native text, OCR needed",
		zap.String("file", fileName),
		zap.Int("pages", native.PageCount),
		zap.Int("chars", native.TotalChars))

	if p.ocr == nil {
		res.Warnings = append(res.Warnings, WarnOCRUnavailable)
		return res, nil
	}

	ocrPages, err := p.ocr.OCR(ctx, pdfBytes, fileName)
	if err != nil {
		p.logger.Warn("ocr failed, keeping native text", zap.String("file", fileName), zap.Error(err))
		res.Warnings = append(res.Warnings, fmt.Sprintf(warnOCRFailedFmt, err))
		return res, nil
	}

	res.Pages = MergePageTexts(native.Pages, ocrPages)
	res.UsedOCR = true
	if len(res.Pages) > res.PageCount {
		res.PageCount = len(res.Pages)
	}
	return res, nil
}
