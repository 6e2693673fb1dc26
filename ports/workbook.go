package ports

import (
	"context"

	"phenotab/domain/sheet"
)

// WorkbookSource provides read access to a phenotype workbook. Implementations
// own the underlying file handle; call Close when done.
type WorkbookSource interface {
	// SheetNames returns every worksheet name in workbook order.
	SheetNames(ctx context.Context) ([]string, error)

	// Grid reads one worksheet's raw cell text.
	Grid(ctx context.Context, name string) (*sheet.Grid, error)

	Close() error
}

// WorkbookWriter persists cleaned worksheets into a new workbook.
type WorkbookWriter interface {
	// WriteSheet appends one processed worksheet.
	WriteSheet(ctx context.Context, res *sheet.Result) error

	// Save writes the workbook to disk.
	Save(ctx context.Context, path string) error
}
