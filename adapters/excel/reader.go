package excel

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"phenotab/domain/sheet"
	"phenotab/internal/errors"

	"github.com/xuri/excelize/v2"
)

// WorkbookReader reads phenotype workbooks through excelize. It keeps the
// file handle open across worksheet reads; Close releases it.
type WorkbookReader struct {
	filePath string
	file     *excelize.File
}

// OpenWorkbook opens an xlsx workbook for reading.
func OpenWorkbook(filePath string) (*WorkbookReader, error) {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, errors.WorkbookError(fmt.Sprintf("workbook not found: %s", filePath), err)
	}

	start := time.Now()
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, errors.WorkbookError(fmt.Sprintf("failed to open workbook: %s", filePath), err)
	}
	log.Printf("[Workbook] Opened %s in %.2fms", filePath, float64(time.Since(start).Nanoseconds())/1e6)

	return &WorkbookReader{filePath: filePath, file: f}, nil
}

// SheetNames returns every worksheet name in workbook order.
func (r *WorkbookReader) SheetNames(ctx context.Context) ([]string, error) {
	return r.file.GetSheetList(), nil
}

// Grid reads one worksheet's raw cell text. excelize trims trailing empty
// cells per row, so rows are padded back to the worksheet's width; a trailing
// blank cell is a blank value, not an absent one.
func (r *WorkbookReader) Grid(ctx context.Context, name string) (*sheet.Grid, error) {
	start := time.Now()
	rows, err := r.file.GetRows(name)
	if err != nil {
		return nil, errors.WorkbookError(fmt.Sprintf("failed to read worksheet %q", name), err)
	}
	padRows(rows)
	log.Printf("[Workbook] Worksheet %q read in %.2fms (%d rows)", name,
		float64(time.Since(start).Nanoseconds())/1e6, len(rows))

	return &sheet.Grid{Sheet: name, Rows: rows}, nil
}

func padRows(rows [][]string) {
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	for i, row := range rows {
		if len(row) < width {
			padded := make([]string, width)
			copy(padded, row)
			rows[i] = padded
		}
	}
}

func (r *WorkbookReader) Close() error {
	return r.file.Close()
}
