package excel

import (
	"context"
	"fmt"
	"log"

	"phenotab/domain/sheet"
	"phenotab/internal/errors"

	"github.com/xuri/excelize/v2"
)

const defaultSheetName = "Sheet1"

// CleanWorkbookWriter accumulates processed worksheets into a fresh workbook,
// one worksheet per result, values rendered to their output form.
type CleanWorkbookWriter struct {
	file   *excelize.File
	sheets int
}

func NewCleanWorkbookWriter() *CleanWorkbookWriter {
	return &CleanWorkbookWriter{file: excelize.NewFile()}
}

// WriteSheet appends one processed worksheet. The header row carries the
// canonical columns followed by any derived mean columns; cells a worksheet
// never carried render as the absent token.
func (w *CleanWorkbookWriter) WriteSheet(ctx context.Context, res *sheet.Result) error {
	name := res.Sheet
	if w.sheets == 0 {
		if name != defaultSheetName {
			if err := w.file.SetSheetName(defaultSheetName, name); err != nil {
				return errors.OutputError(fmt.Sprintf("failed to name worksheet %q", name), err)
			}
		}
	} else {
		if _, err := w.file.NewSheet(name); err != nil {
			return errors.OutputError(fmt.Sprintf("failed to add worksheet %q", name), err)
		}
	}

	headers := make([]string, 0, len(res.Columns)+len(res.DerivedColumns))
	headers = append(headers, res.Columns...)
	headers = append(headers, res.DerivedColumns...)

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := w.file.SetCellValue(name, cell, h); err != nil {
			return errors.OutputError(fmt.Sprintf("failed to write header for worksheet %q", name), err)
		}
	}

	for r, row := range res.Rows {
		for c, column := range headers {
			text := "NA"
			if v, ok := row.Get(column); ok {
				text = v.Render(sheet.SplitDelimiter)
			}
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := w.file.SetCellValue(name, cell, text); err != nil {
				return errors.OutputError(fmt.Sprintf("failed to write row %d of worksheet %q", r+2, name), err)
			}
		}
	}

	w.sheets++
	log.Printf("[Workbook] Staged cleaned worksheet %q (%d rows, %d columns)", name, len(res.Rows), len(headers))
	return nil
}

// Save writes the accumulated workbook to disk.
func (w *CleanWorkbookWriter) Save(ctx context.Context, path string) error {
	if err := w.file.SaveAs(path); err != nil {
		return errors.OutputError(fmt.Sprintf("failed to save cleaned workbook: %s", path), err)
	}
	log.Printf("[Workbook] Cleaned workbook saved: %s", path)
	return nil
}
