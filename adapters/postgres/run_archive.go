package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"phenotab/internal/errors"
	"phenotab/models"
	"phenotab/ports"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// RunArchiveImpl implements RunArchive for PostgreSQL
type RunArchiveImpl struct {
	db *sqlx.DB
}

// NewRunArchive creates a new PostgreSQL run archive
func NewRunArchive(db *sqlx.DB) ports.RunArchive {
	return &RunArchiveImpl{db: db}
}

// CreateRun inserts a run in its initial running state
func (r *RunArchiveImpl) CreateRun(ctx context.Context, run *models.Run) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO runs (
			id, dataset, workbook_path, status, error, started_at,
			row_count, skipped_count, diagnostic_count
		) VALUES (
			:id, :dataset, :workbook_path, :status, :error, :started_at,
			:row_count, :skipped_count, :diagnostic_count
		)
	`, run)
	return err
}

// CompleteRun records the final status and counts for a run
func (r *RunArchiveImpl) CompleteRun(ctx context.Context, run *models.Run) error {
	now := time.Now()
	run.CompletedAt = &now

	_, err := r.db.ExecContext(ctx, `
		UPDATE runs
		SET status = $2, error = $3, completed_at = $4, row_count = $5,
		    skipped_count = $6, diagnostic_count = $7
		WHERE id = $1
	`, run.ID, run.Status, run.Error, run.CompletedAt,
		run.RowCount, run.SkippedCount, run.DiagnosticCount)
	return err
}

// SaveSheetReport persists one worksheet summary for a run
func (r *RunArchiveImpl) SaveSheetReport(ctx context.Context, report *models.SheetReport) error {
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now()
	}

	// ColumnProfiles implements driver.Valuer, so it lands in the JSONB
	// column without an explicit marshal
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO sheet_reports (
			id, run_id, sheet, row_count, skipped_rows, diagnostic_count,
			profiles, created_at
		) VALUES (
			:id, :run_id, :sheet, :row_count, :skipped_rows, :diagnostic_count,
			:profiles, :created_at
		)
	`, report)
	return err
}

// SaveDiagnostics bulk-inserts the advisory findings of a run
func (r *RunArchiveImpl) SaveDiagnostics(ctx context.Context, records []models.DiagnosticRecord) error {
	if len(records) == 0 {
		return nil
	}

	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO diagnostics (run_id, sheet, row_num, column_name, kind, cell_value)
		VALUES (:run_id, :sheet, :row_num, :column_name, :kind, :cell_value)
	`, records)
	return err
}

// GetRun retrieves a run by ID
func (r *RunArchiveImpl) GetRun(ctx context.Context, id uuid.UUID) (*models.Run, error) {
	var run models.Run
	err := r.db.GetContext(ctx, &run, `
		SELECT id, dataset, workbook_path, status, error, started_at, completed_at,
		       row_count, skipped_count, diagnostic_count
		FROM runs
		WHERE id = $1
	`, id)

	if err == sql.ErrNoRows {
		return nil, errors.NotFound("run")
	}
	if err != nil {
		return nil, err
	}

	return &run, nil
}

// ListRuns returns archived runs, newest first
func (r *RunArchiveImpl) ListRuns(ctx context.Context, limit, offset int) ([]models.Run, error) {
	if limit <= 0 {
		limit = 50
	}

	var runs []models.Run
	err := r.db.SelectContext(ctx, &runs, `
		SELECT id, dataset, workbook_path, status, error, started_at, completed_at,
		       row_count, skipped_count, diagnostic_count
		FROM runs
		ORDER BY started_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	return runs, err
}

// ListSheetReports returns the worksheet summaries for a run
func (r *RunArchiveImpl) ListSheetReports(ctx context.Context, runID uuid.UUID) ([]models.SheetReport, error) {
	var reports []models.SheetReport
	err := r.db.SelectContext(ctx, &reports, `
		SELECT id, run_id, sheet, row_count, skipped_rows, diagnostic_count,
		       profiles, created_at
		FROM sheet_reports
		WHERE run_id = $1
		ORDER BY sheet
	`, runID)
	return reports, err
}

// ListDiagnostics returns the findings of a run, optionally narrowed by
// sheet, column, or kind
func (r *RunArchiveImpl) ListDiagnostics(ctx context.Context, runID uuid.UUID, filters ports.DiagnosticFilters) ([]models.DiagnosticRecord, error) {
	query := `
		SELECT id, run_id, sheet, row_num, column_name, kind, cell_value, created_at
		FROM diagnostics
		WHERE run_id = $1
	`
	args := []interface{}{runID}

	if filters.Sheet != "" {
		args = append(args, filters.Sheet)
		query += fmt.Sprintf(" AND sheet = $%d", len(args))
	}
	if filters.Column != "" {
		args = append(args, filters.Column)
		query += fmt.Sprintf(" AND column_name = $%d", len(args))
	}
	if filters.Kind != "" {
		args = append(args, filters.Kind)
		query += fmt.Sprintf(" AND kind = $%d", len(args))
	}

	query += " ORDER BY sheet, row_num, column_name"

	limit := filters.Limit
	if limit <= 0 {
		limit = 500
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))

	if filters.Offset > 0 {
		args = append(args, filters.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	var records []models.DiagnosticRecord
	err := r.db.SelectContext(ctx, &records, query, args...)
	return records, err
}
