package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RunStatus tracks the lifecycle of one processing run.
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunClean   RunStatus = "clean"   // completed without diagnostics
	RunFlagged RunStatus = "flagged" // completed with advisory diagnostics
	RunFailed  RunStatus = "failed"  // rejected by config or schema
)

// Run records one processing invocation over a phenotype workbook.
type Run struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	Dataset         string     `json:"dataset" db:"dataset"`
	WorkbookPath    string     `json:"workbook_path" db:"workbook_path"`
	Status          RunStatus  `json:"status" db:"status"`
	Error           string     `json:"error,omitempty" db:"error"`
	StartedAt       time.Time  `json:"started_at" db:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	RowCount        int        `json:"row_count" db:"row_count"`
	SkippedCount    int        `json:"skipped_count" db:"skipped_count"`
	DiagnosticCount int        `json:"diagnostic_count" db:"diagnostic_count"`
}

// NewRun starts the archive record for one workbook cleanup.
func NewRun(dataset, workbookPath string) *Run {
	return &Run{
		ID:           uuid.New(),
		Dataset:      dataset,
		WorkbookPath: workbookPath,
		Status:       RunRunning,
		StartedAt:    time.Now(),
	}
}

// SheetReport summarizes one worksheet within a run.
type SheetReport struct {
	ID              uuid.UUID      `json:"id" db:"id"`
	RunID           uuid.UUID      `json:"run_id" db:"run_id"`
	Sheet           string         `json:"sheet" db:"sheet"`
	RowCount        int            `json:"row_count" db:"row_count"`
	SkippedRows     int            `json:"skipped_rows" db:"skipped_rows"`
	DiagnosticCount int            `json:"diagnostic_count" db:"diagnostic_count"`
	Profiles        ColumnProfiles `json:"profiles,omitempty" db:"profiles"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
}

// ColumnProfile is the distribution summary for one quantitative column of a
// processed worksheet. Count is the number of measured values; blanks and
// unparseable cells land in Missing.
type ColumnProfile struct {
	Column      string  `json:"column"`
	Count       int     `json:"count"`
	Missing     int     `json:"missing"`
	Mean        float64 `json:"mean"`
	Median      float64 `json:"median"`
	StdDev      float64 `json:"std_dev"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Q25         float64 `json:"q25"`
	Q75         float64 `json:"q75"`
	Skewness    float64 `json:"skewness"`
	Kurtosis    float64 `json:"kurtosis"`
	NormalShape bool    `json:"normal_shape"`
}

// ColumnProfiles is stored as a single JSONB column on sheet_reports.
type ColumnProfiles []ColumnProfile

// Value implements driver.Valuer.
func (p ColumnProfiles) Value() (driver.Value, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

// Scan implements sql.Scanner.
func (p *ColumnProfiles) Scan(value interface{}) error {
	if value == nil {
		*p = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		*p = nil
		return nil
	}

	return json.Unmarshal(bytes, p)
}

// DiagnosticRecord is one persisted advisory finding.
type DiagnosticRecord struct {
	ID         int64     `json:"id" db:"id"`
	RunID      uuid.UUID `json:"run_id" db:"run_id"`
	Sheet      string    `json:"sheet" db:"sheet"`
	RowNum     int       `json:"row_num" db:"row_num"`
	ColumnName string    `json:"column_name" db:"column_name"`
	Kind       string    `json:"kind" db:"kind"`
	CellValue  string    `json:"cell_value" db:"cell_value"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
