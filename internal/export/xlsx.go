package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"planbid/internal/domain"
)

const itemsSheet = "Takeoff"

// WriteXLSX writes items as a single-sheet workbook. Numeric columns are
// written as numbers so spreadsheets can sum them.
func WriteXLSX(w io.Writer, items []domain.MergedTakeoffItem) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), itemsSheet); err != nil {
		return fmt.Errorf("export.WriteXLSX rename sheet: %w", err)
	}

	header := make([]interface{}, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(itemsSheet, "A1", &header); err != nil {
		return fmt.Errorf("export.WriteXLSX header: %w", err)
	}

	for i := range items {
		row := xlsxRow(&items[i])
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("export.WriteXLSX cell: %w", err)
		}
		if err := f.SetSheetRow(itemsSheet, cell, &row); err != nil {
			return fmt.Errorf("export.WriteXLSX row %d: %w", i+1, err)
		}
	}

	if err := f.SetPanes(itemsSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("export.WriteXLSX freeze header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("export.WriteXLSX write: %w", err)
	}
	return nil
}

func xlsxRow(it *domain.MergedTakeoffItem) []interface{} {
	text := itemToRow(it)
	row := make([]interface{}, len(text))
	for i, v := range text {
		row[i] = v
	}
	row[3] = it.Quantity
	if it.BoundingBox != nil {
		row[9] = it.BoundingBox.Page
	}
	row[12] = it.Confidence
	row[13] = it.Agreement
	return row
}
