package extract

import (
	"sort"
	"strings"

	"planbid/internal/domain"
)

// MinCharsPerPage is the average native text per page below which a
// document is treated as scanned.
const MinCharsPerPage = 50

// NeedsOCR reports whether native extraction was too sparse to trust.
func NeedsOCR(pageCount, totalChars int) bool {
	if pageCount == 0 {
		return true
	}
	return totalChars/pageCount < MinCharsPerPage
}

// MergePageTexts combines native and OCR results by page number. When both
// sources have text for a page, native text comes first. Positioned items
// come from the native layer only.
func MergePageTexts(native, ocr []domain.PageText) []domain.PageText {
	byPage := make(map[int]domain.PageText, len(native))
	for _, p := range native {
		byPage[p.PageNumber] = p
	}

	for _, o := range ocr {
		n, ok := byPage[o.PageNumber]
		if !ok {
			byPage[o.PageNumber] = o
			continue
		}
		nt, ot := strings.TrimSpace(n.Text), strings.TrimSpace(o.Text)
		switch {
		case nt == "":
			n.Text = o.Text
		case ot != "":
			n.Text = n.Text + "\n" + o.Text
		}
		byPage[o.PageNumber] = n
	}

	out := make([]domain.PageText, 0, len(byPage))
	for _, p := range byPage {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PageNumber < out[j].PageNumber })
	return out
}
