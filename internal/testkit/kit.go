// Package testkit provides in-memory port implementations and synthetic
// workbook fixtures so the pipeline can be exercised without Excel files or a
// database.
package testkit

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"phenotab/domain/sheet"
	"phenotab/internal/errors"
	"phenotab/models"
	"phenotab/ports"
)

// Kit bundles the in-memory adapters one pipeline test needs.
type Kit struct {
	Workbook *InMemoryWorkbook
	Archive  *InMemoryArchive
	Writer   *MemoryWriter
}

func NewKit() *Kit {
	return &Kit{
		Workbook: NewInMemoryWorkbook(),
		Archive:  NewInMemoryArchive(),
		Writer:   &MemoryWriter{},
	}
}

// InMemoryWorkbook implements ports.WorkbookSource over literal cell grids.
type InMemoryWorkbook struct {
	names  []string
	sheets map[string][][]string
}

func NewInMemoryWorkbook() *InMemoryWorkbook {
	return &InMemoryWorkbook{sheets: make(map[string][][]string)}
}

// AddSheet registers one worksheet. Sheets keep their insertion order, like
// worksheets in a real workbook.
func (w *InMemoryWorkbook) AddSheet(name string, rows [][]string) *InMemoryWorkbook {
	if _, exists := w.sheets[name]; !exists {
		w.names = append(w.names, name)
	}
	w.sheets[name] = rows
	return w
}

func (w *InMemoryWorkbook) SheetNames(ctx context.Context) ([]string, error) {
	return append([]string(nil), w.names...), nil
}

func (w *InMemoryWorkbook) Grid(ctx context.Context, name string) (*sheet.Grid, error) {
	rows, ok := w.sheets[name]
	if !ok {
		return nil, errors.WorkbookError(fmt.Sprintf("worksheet not found: %s", name), nil)
	}
	return &sheet.Grid{Sheet: name, Rows: rows}, nil
}

func (w *InMemoryWorkbook) Close() error { return nil }

// MemoryWriter implements ports.WorkbookWriter by recording what was written.
type MemoryWriter struct {
	Sheets    []*sheet.Result
	SavedPath string
}

func (w *MemoryWriter) WriteSheet(ctx context.Context, res *sheet.Result) error {
	w.Sheets = append(w.Sheets, res)
	return nil
}

func (w *MemoryWriter) Save(ctx context.Context, path string) error {
	w.SavedPath = path
	return nil
}

// InMemoryArchive implements ports.RunArchive with map storage. Query methods
// mirror the postgres adapter's ordering and default limits so tests written
// against one hold for the other.
type InMemoryArchive struct {
	mu          sync.RWMutex
	runs        map[uuid.UUID]models.Run
	reports     map[uuid.UUID][]models.SheetReport
	diagnostics map[uuid.UUID][]models.DiagnosticRecord
	nextDiagID  int64
}

func NewInMemoryArchive() *InMemoryArchive {
	return &InMemoryArchive{
		runs:        make(map[uuid.UUID]models.Run),
		reports:     make(map[uuid.UUID][]models.SheetReport),
		diagnostics: make(map[uuid.UUID][]models.DiagnosticRecord),
	}
}

func (a *InMemoryArchive) CreateRun(ctx context.Context, run *models.Run) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.runs[run.ID]; exists {
		return errors.DatabaseError(fmt.Sprintf("run already exists: %s", run.ID))
	}
	a.runs[run.ID] = *run
	return nil
}

func (a *InMemoryArchive) CompleteRun(ctx context.Context, run *models.Run) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.runs[run.ID]; !exists {
		return errors.NotFound("run")
	}
	if run.CompletedAt == nil {
		now := time.Now()
		run.CompletedAt = &now
	}
	a.runs[run.ID] = *run
	return nil
}

func (a *InMemoryArchive) SaveSheetReport(ctx context.Context, report *models.SheetReport) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now()
	}
	a.reports[report.RunID] = append(a.reports[report.RunID], *report)
	return nil
}

func (a *InMemoryArchive) SaveDiagnostics(ctx context.Context, records []models.DiagnosticRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, rec := range records {
		a.nextDiagID++
		rec.ID = a.nextDiagID
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = time.Now()
		}
		a.diagnostics[rec.RunID] = append(a.diagnostics[rec.RunID], rec)
	}
	return nil
}

func (a *InMemoryArchive) GetRun(ctx context.Context, id uuid.UUID) (*models.Run, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	run, exists := a.runs[id]
	if !exists {
		return nil, errors.NotFound("run")
	}
	return &run, nil
}

func (a *InMemoryArchive) ListRuns(ctx context.Context, limit, offset int) ([]models.Run, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	runs := make([]models.Run, 0, len(a.runs))
	for _, run := range a.runs {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})

	if offset >= len(runs) {
		return []models.Run{}, nil
	}
	runs = runs[offset:]
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (a *InMemoryArchive) ListSheetReports(ctx context.Context, runID uuid.UUID) ([]models.SheetReport, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	reports := append([]models.SheetReport(nil), a.reports[runID]...)
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].Sheet < reports[j].Sheet
	})
	return reports, nil
}

func (a *InMemoryArchive) ListDiagnostics(ctx context.Context, runID uuid.UUID, filters ports.DiagnosticFilters) ([]models.DiagnosticRecord, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	limit := filters.Limit
	if limit <= 0 {
		limit = 500
	}

	var records []models.DiagnosticRecord
	for _, rec := range a.diagnostics[runID] {
		if filters.Sheet != "" && rec.Sheet != filters.Sheet {
			continue
		}
		if filters.Column != "" && rec.ColumnName != filters.Column {
			continue
		}
		if filters.Kind != "" && rec.Kind != filters.Kind {
			continue
		}
		records = append(records, rec)
	}
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Sheet != records[j].Sheet {
			return records[i].Sheet < records[j].Sheet
		}
		if records[i].RowNum != records[j].RowNum {
			return records[i].RowNum < records[j].RowNum
		}
		return records[i].ColumnName < records[j].ColumnName
	})

	if filters.Offset >= len(records) {
		return []models.DiagnosticRecord{}, nil
	}
	records = records[filters.Offset:]
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}
