package ports

import (
	"context"

	"phenotab/domain/rules"
	"phenotab/domain/sheet"
)

// MatrixWriter renders a processed worksheet into its analysis matrix files
// and diagnostics report.
type MatrixWriter interface {
	// WriteMatrices writes the binary and quantitative matrices for one
	// worksheet result under dir, plus the diagnostics report when findings
	// exist, and returns the written file paths.
	WriteMatrices(ctx context.Context, sr *rules.SheetRules, res *sheet.Result, dir string) ([]string, error)
}
