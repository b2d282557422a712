package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"go.uber.org/zap"

	"planbid/internal/domain"
	"planbid/internal/logger"
)

// ExtractResult is the native text layer of a document, one entry per page.
type ExtractResult struct {
	Pages      []domain.PageText
	PageCount  int
	TotalChars int
}

// PageExtractor pulls per-page text out of PDF bytes.
type PageExtractor interface {
	Extract(ctx context.Context, pdfBytes []byte) (*ExtractResult, error)
}

// NativeExtractor reads the embedded text layer of a PDF.
type NativeExtractor struct {
	logger *zap.Logger
}

// NewNativeExtractor creates a NativeExtractor.
func NewNativeExtractor(l *zap.Logger) *NativeExtractor {
	return &NativeExtractor{logger: logger.OrNop(l).Named("extract.NativeExtractor")}
}

// Extract returns one PageText per page in page order. A page whose text
// cannot be read yields an empty string instead of failing the document.
func (e *NativeExtractor) Extract(ctx context.Context, pdfBytes []byte) (*ExtractResult, error) {
	if len(pdfBytes) == 0 {
		return nil, errors.New("empty PDF content")
	}

	pageCount, countErr := api.PageCount(bytes.NewReader(pdfBytes), nil)
	if countErr != nil {
		e.logger.Debug("pdfcpu page count failed", zap.Error(countErr))
	}

	r, openErr := pdf.NewReader(bytes.NewReader(pdfBytes), int64(len(pdfBytes)))
	if openErr != nil {
		if countErr != nil {
			return nil, fmt.Errorf("opening pdf: %w", openErr)
		}
		// Unreadable text layer but a valid page tree: every page is blank.
		e.logger.Warn("text layer unreadable, emitting blank pages",
			zap.Int("pages", pageCount), zap.Error(openErr))
		return blankResult(pageCount), nil
	}

	if countErr != nil {
		pageCount = r.NumPage()
	}

	result := &ExtractResult{
		Pages:     make([]domain.PageText, 0, pageCount),
		PageCount: pageCount,
	}
	for i := 1; i <= pageCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := domain.PageText{PageNumber: i}
		if i <= r.NumPage() {
			page.Text, page.TextItems = e.readPage(r, i)
		}
		result.TotalChars += utf8.RuneCountInString(page.Text)
		result.Pages = append(result.Pages, page)
	}
	return result, nil
}

func blankResult(pageCount int) *ExtractResult {
	pages := make([]domain.PageText, pageCount)
	for i := range pages {
		pages[i].PageNumber = i + 1
	}
	return &ExtractResult{Pages: pages, PageCount: pageCount}
}

// readPage extracts plain text and positioned runs from one page. The PDF
// reader panics on some malformed content streams, so each page is isolated.
func (e *NativeExtractor) readPage(r *pdf.Reader, num int) (text string, items []domain.TextItem) {
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Warn("page text unreadable", zap.Int("page", num), zap.Any("panic", rec))
			text, items = "", nil
		}
	}()

	page := r.Page(num)
	if page.V.IsNull() {
		return "", nil
	}

	plain, err := page.GetPlainText(nil)
	if err != nil {
		e.logger.Debug("plain text failed", zap.Int("page", num), zap.Error(err))
		plain = ""
	}
	items = groupRuns(page.Content().Text)
	return strings.TrimSpace(plain), items
}

// groupRuns joins glyph-level text into word-level items. A new item starts
// on a baseline change, a horizontal gap, or whitespace.
func groupRuns(glyphs []pdf.Text) []domain.TextItem {
	var items []domain.TextItem
	var cur *domain.TextItem
	var lastEnd float64

	flush := func() {
		if cur != nil && strings.TrimSpace(cur.Text) != "" {
			cur.Text = strings.TrimSpace(cur.Text)
			items = append(items, *cur)
		}
		cur = nil
	}

	for _, g := range glyphs {
		if strings.TrimSpace(g.S) == "" {
			flush()
			continue
		}
		gap := g.FontSize * 0.3
		if cur != nil && (math.Abs(g.Y-cur.Y) > 1 || g.X-lastEnd > gap) {
			flush()
		}
		if cur == nil {
			cur = &domain.TextItem{X: g.X, Y: g.Y, FontSize: g.FontSize}
		}
		cur.Text += g.S
		lastEnd = g.X + g.W
		cur.Width = lastEnd - cur.X
	}
	flush()
	return items
}
