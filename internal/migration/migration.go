package migration

import (
	"context"
	"fmt"

	"phenotab/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles archive schema migrations
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all archive migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createRunsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create runs table")
	}

	if err := r.createSheetReportsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create sheet_reports table")
	}

	if err := r.addSheetReportProfilesColumn(ctx, db); err != nil {
		return errors.Wrap(err, "failed to add profiles column to sheet_reports")
	}

	if err := r.createDiagnosticsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create diagnostics table")
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	return nil
}

func (r *MigrationRunner) createRunsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			dataset VARCHAR(255) NOT NULL,
			workbook_path TEXT NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'running',
			error TEXT NOT NULL DEFAULT '',
			started_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			completed_at TIMESTAMP WITH TIME ZONE,
			row_count INTEGER NOT NULL DEFAULT 0,
			skipped_count INTEGER NOT NULL DEFAULT 0,
			diagnostic_count INTEGER NOT NULL DEFAULT 0
		)
	`)
	return err
}

func (r *MigrationRunner) createSheetReportsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS sheet_reports (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			run_id UUID NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			sheet VARCHAR(100) NOT NULL,
			row_count INTEGER NOT NULL DEFAULT 0,
			skipped_rows INTEGER NOT NULL DEFAULT 0,
			diagnostic_count INTEGER NOT NULL DEFAULT 0,
			profiles JSONB,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

// addSheetReportProfilesColumn backfills the profiles column on schemas
// created before column profiling existed.
func (r *MigrationRunner) addSheetReportProfilesColumn(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		DO $$
		BEGIN
			IF NOT EXISTS (
				SELECT 1 FROM information_schema.columns
				WHERE table_name = 'sheet_reports' AND column_name = 'profiles'
			) THEN
				ALTER TABLE sheet_reports ADD COLUMN profiles JSONB;
			END IF;
		END $$;
	`)
	return err
}

func (r *MigrationRunner) createDiagnosticsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS diagnostics (
			id BIGSERIAL PRIMARY KEY,
			run_id UUID NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			sheet VARCHAR(100) NOT NULL,
			row_num INTEGER NOT NULL,
			column_name VARCHAR(255) NOT NULL,
			kind VARCHAR(50) NOT NULL,
			cell_value TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		// Run indexes
		"CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status)",

		// Sheet report indexes
		"CREATE INDEX IF NOT EXISTS idx_reports_run_id ON sheet_reports(run_id)",

		// Diagnostic indexes
		"CREATE INDEX IF NOT EXISTS idx_diagnostics_run_id ON diagnostics(run_id)",
		"CREATE INDEX IF NOT EXISTS idx_diagnostics_run_sheet ON diagnostics(run_id, sheet)",
		"CREATE INDEX IF NOT EXISTS idx_diagnostics_kind ON diagnostics(kind)",
	}

	for _, idxSQL := range indexes {
		if _, err := db.ExecContext(ctx, idxSQL); err != nil {
			// Log but don't fail on index creation errors
			fmt.Printf("Warning: failed to create index: %v\n", err)
		}
	}

	return nil
}
