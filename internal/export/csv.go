package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"planbid/internal/domain"
)

// UTF-8 BOM bytes for Excel compatibility on Windows.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// columns defines the export header row.
var columns = []string{
	"ID",
	"Name",
	"Description",
	"Quantity",
	"Unit",
	"Category",
	"Subcategory",
	"Cost Code",
	"Location",
	"Page",
	"Dimensions",
	"Notes",
	"Confidence",
	"Agreement",
	"Sources",
}

// Columns returns a copy of the export header row.
func Columns() []string {
	return append([]string(nil), columns...)
}

// CSVWriter wraps csv.Writer for exporting merged takeoff items.
type CSVWriter struct {
	csv *csv.Writer
}

// NewCSVWriter creates a CSVWriter that writes to w.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{csv: csv.NewWriter(w)}
}

// WriteHeader writes the header row.
func (w *CSVWriter) WriteHeader() error {
	return w.csv.Write(columns)
}

// WriteItems writes one row per item.
func (w *CSVWriter) WriteItems(items []domain.MergedTakeoffItem) error {
	for i := range items {
		if err := w.csv.Write(itemToRow(&items[i])); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer buffer.
func (w *CSVWriter) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *CSVWriter) Error() error {
	return w.csv.Error()
}

// itemToRow converts one item to a row aligned with columns.
func itemToRow(it *domain.MergedTakeoffItem) []string {
	page := ""
	if it.BoundingBox != nil {
		page = strconv.Itoa(it.BoundingBox.Page)
	}
	return []string{
		it.ID,
		it.Name,
		it.Description,
		formatQuantity(it.Quantity),
		string(it.Unit),
		string(it.Category),
		it.Subcategory,
		it.CostCode,
		it.Location,
		page,
		it.Dimensions,
		it.Notes,
		strconv.FormatFloat(it.Confidence, 'f', 2, 64),
		strconv.Itoa(it.Agreement),
		strings.Join(it.Sources, ", "),
	}
}

func formatQuantity(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
