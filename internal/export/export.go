// Package export renders merged takeoff items as CSV or XLSX.
package export

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"planbid/internal/domain"
)

// ParseFormat maps a query value to an ExportFormat. Empty means CSV.
func ParseFormat(s string) (domain.ExportFormat, error) {
	switch domain.ExportFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", domain.ExportFormatCSV:
		return domain.ExportFormatCSV, nil
	case domain.ExportFormatXLSX:
		return domain.ExportFormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedExportFormat, s)
	}
}

// ContentType returns the MIME type of format.
func ContentType(format domain.ExportFormat) string {
	if format == domain.ExportFormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Write encodes items in format to w. CSV output starts with a BOM.
func Write(w io.Writer, format domain.ExportFormat, items []domain.MergedTakeoffItem) error {
	switch format {
	case domain.ExportFormatCSV:
		if _, err := w.Write(BOM); err != nil {
			return err
		}
		cw := NewCSVWriter(w)
		if err := cw.WriteHeader(); err != nil {
			return err
		}
		if err := cw.WriteItems(items); err != nil {
			return err
		}
		cw.Flush()
		return cw.Error()
	case domain.ExportFormatXLSX:
		return WriteXLSX(w, items)
	default:
		return domain.ErrUnsupportedExportFormat
	}
}

// Render encodes items into memory.
func Render(format domain.ExportFormat, items []domain.MergedTakeoffItem) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, format, items); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// nonAlphanumeric matches characters that are not alphanumeric, hyphen, or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// multiUnderscore matches consecutive underscores.
var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename cleans a name for use in Content-Disposition.
// Replaces non-alphanumeric chars (except - _) with _, collapses consecutive
// underscores, and truncates to 100 chars.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// BuildFilename returns {sanitized_plan_name}_takeoff_{YYYY-MM-DD}.{ext}.
func BuildFilename(planName string, format domain.ExportFormat, now time.Time) string {
	base := strings.TrimSuffix(planName, ".pdf")
	base = strings.TrimSuffix(base, ".PDF")
	sanitized := SanitizeFilename(base)
	if sanitized == "" {
		sanitized = "plan"
	}
	return fmt.Sprintf("%s_takeoff_%s.%s", sanitized, now.Format("2006-01-02"), format)
}
