package ports

import (
	"context"

	"phenotab/models"

	"github.com/google/uuid"
)

// DiagnosticFilters narrows archived diagnostic queries.
type DiagnosticFilters struct {
	Sheet  string
	Column string
	Kind   string
	Limit  int
	Offset int
}

// RunArchive persists run outcomes so past cleanups stay queryable. The
// archive is optional at the CLI; the pipeline runs fine without one.
type RunArchive interface {
	CreateRun(ctx context.Context, run *models.Run) error
	CompleteRun(ctx context.Context, run *models.Run) error

	SaveSheetReport(ctx context.Context, report *models.SheetReport) error
	SaveDiagnostics(ctx context.Context, records []models.DiagnosticRecord) error

	GetRun(ctx context.Context, id uuid.UUID) (*models.Run, error)
	ListRuns(ctx context.Context, limit, offset int) ([]models.Run, error)
	ListSheetReports(ctx context.Context, runID uuid.UUID) ([]models.SheetReport, error)
	ListDiagnostics(ctx context.Context, runID uuid.UUID, filters DiagnosticFilters) ([]models.DiagnosticRecord, error)
}
