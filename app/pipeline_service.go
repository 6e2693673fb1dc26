package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"phenotab/domain/rules"
	"phenotab/domain/sheet"
	"phenotab/internal"
	"phenotab/internal/errors"
	"phenotab/internal/profiling"
	"phenotab/models"
	"phenotab/ports"
)

// PipelineService runs one workbook cleanup end to end: dispatch worksheets
// against the rules, process them concurrently, write the matrices and the
// optional cleaned workbook, and archive the outcome when an archive is
// configured.
type PipelineService struct {
	matrices ports.MatrixWriter
	archive  ports.RunArchive
	profiler *profiling.Profiler
	logger   *internal.Logger
}

// NewPipelineService creates a new pipeline service. archive may be nil when
// no database is configured.
func NewPipelineService(matrices ports.MatrixWriter, archive ports.RunArchive, logger *internal.Logger) *PipelineService {
	return &PipelineService{
		matrices: matrices,
		archive:  archive,
		profiler: profiling.NewProfiler(),
		logger:   logger,
	}
}

// ProcessRequest describes one workbook cleanup.
type ProcessRequest struct {
	Rules        *rules.RuleSet
	Source       ports.WorkbookSource
	Writer       ports.WorkbookWriter // nil unless a cleaned workbook was requested
	Sheets       []string             // optional subset of the configured worksheets
	WorkbookPath string
	OutDir       string
}

// SheetOutcome is the result of one dispatched worksheet. Err is set when the
// worksheet was rejected before row processing; the other fields are only
// populated on success.
type SheetOutcome struct {
	Sheet    string
	Result   *sheet.Result
	Profiles models.ColumnProfiles
	Err      error
}

// ProcessResult is the outcome of a full workbook run.
type ProcessResult struct {
	Run     *models.Run
	Sheets  []SheetOutcome
	Outputs []string
}

// Flagged reports whether any worksheet recorded advisory diagnostics.
func (r *ProcessResult) Flagged() bool {
	return r.Run.DiagnosticCount > 0
}

// SheetErrors returns one message per worksheet that was rejected before row
// processing. Rejected worksheets never stop their siblings.
func (r *ProcessResult) SheetErrors() []string {
	var msgs []string
	for _, outcome := range r.Sheets {
		if outcome.Err != nil {
			msgs = append(msgs, fmt.Sprintf("%s: %v", outcome.Sheet, outcome.Err))
		}
	}
	return msgs
}

// Run executes the cleanup described by req and records its lifecycle in the
// archive. The returned error covers failures that stop the whole run; a
// worksheet rejected by its schema is reported through SheetErrors instead.
func (s *PipelineService) Run(ctx context.Context, req ProcessRequest) (*ProcessResult, error) {
	run := models.NewRun(req.Rules.Dataset, req.WorkbookPath)

	if s.archive != nil {
		if err := s.archive.CreateRun(ctx, run); err != nil {
			return nil, errors.Wrap(err, "failed to create run record")
		}
	}

	result, err := s.process(ctx, req, run)
	if err != nil {
		run.Status = models.RunFailed
		run.Error = err.Error()
		s.finishRun(ctx, run)
		return nil, err
	}

	if msgs := result.SheetErrors(); len(msgs) > 0 {
		run.Status = models.RunFailed
		run.Error = strings.Join(msgs, "; ")
	} else if run.DiagnosticCount > 0 {
		run.Status = models.RunFlagged
	} else {
		run.Status = models.RunClean
	}
	s.finishRun(ctx, run)

	return result, nil
}

type sheetJob struct {
	name string
	sr   *rules.SheetRules
	grid *sheet.Grid
}

func (s *PipelineService) process(ctx context.Context, req ProcessRequest, run *models.Run) (*ProcessResult, error) {
	jobs, err := s.dispatch(ctx, req)
	if err != nil {
		return nil, err
	}

	outcomes, err := s.processSheets(ctx, jobs)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(req.OutDir, 0o755); err != nil {
		return nil, errors.OutputError("failed to create output directory", err)
	}

	result := &ProcessResult{Run: run, Sheets: outcomes}
	for i := range outcomes {
		outcome := &outcomes[i]
		if outcome.Err != nil {
			s.logger.Error("Worksheet %q rejected: %v", outcome.Sheet, outcome.Err)
			continue
		}

		res := outcome.Result
		run.RowCount += len(res.Rows)
		run.SkippedCount += len(res.SkippedRows)
		run.DiagnosticCount += len(res.Diagnostics)

		for _, rowNum := range res.SkippedRows {
			s.logger.Warn("%s row %d has no identifier, row skipped", outcome.Sheet, rowNum)
		}
		for _, d := range res.Diagnostics {
			s.logger.Warn("%s: %s", outcome.Sheet, d)
		}

		if req.Writer != nil {
			if err := req.Writer.WriteSheet(ctx, res); err != nil {
				return nil, err
			}
		}

		paths, err := s.matrices.WriteMatrices(ctx, jobs[i].sr, res, req.OutDir)
		if err != nil {
			return nil, err
		}
		result.Outputs = append(result.Outputs, paths...)

		if err := s.archiveSheet(ctx, run, outcome); err != nil {
			return nil, err
		}
	}

	if req.Writer != nil {
		cleanedPath := filepath.Join(req.OutDir, req.Rules.Dataset+"_cleaned.xlsx")
		if err := req.Writer.Save(ctx, cleanedPath); err != nil {
			return nil, err
		}
		result.Outputs = append(result.Outputs, cleanedPath)
	}

	return result, nil
}

// dispatch walks the workbook's worksheets and loads the grid for every one
// the rules qualify and list for processing.
func (s *PipelineService) dispatch(ctx context.Context, req ProcessRequest) ([]sheetJob, error) {
	names, err := req.Source.SheetNames(ctx)
	if err != nil {
		return nil, err
	}

	requested := make(map[string]bool, len(req.Sheets))
	for _, name := range req.Sheets {
		requested[name] = true
	}

	var jobs []sheetJob
	for _, name := range names {
		s.logger.Info("Found worksheet %q", name)
		if !req.Rules.IsQualified(name) {
			s.logger.Warn("Worksheet %q is not qualified for dataset %q, ignoring", name, req.Rules.Dataset)
			continue
		}
		if !req.Rules.ShouldProcess(name) {
			s.logger.Info("Worksheet %q is not selected for this run, skipping", name)
			continue
		}
		if len(requested) > 0 && !requested[name] {
			s.logger.Info("Worksheet %q not requested, skipping", name)
			continue
		}

		sr, err := req.Rules.Sheet(name)
		if err != nil {
			return nil, err
		}
		grid, err := req.Source.Grid(ctx, name)
		if err != nil {
			return nil, err
		}
		s.logger.Debug("Worksheet %q: %d grid rows", name, len(grid.Rows))
		jobs = append(jobs, sheetJob{name: name, sr: sr, grid: grid})
	}

	if len(jobs) == 0 {
		return nil, errors.SchemaRejected("workbook has no processable worksheets")
	}
	return jobs, nil
}

// processSheets normalizes the dispatched worksheets concurrently. A schema
// rejection lands in that sheet's outcome so its siblings keep going; only a
// context cancellation stops the pool.
func (s *PipelineService) processSheets(ctx context.Context, jobs []sheetJob) ([]SheetOutcome, error) {
	// Each goroutine owns its index, so the slice needs no lock.
	outcomes := make([]SheetOutcome, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(len(jobs), runtime.NumCPU()))
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			res, err := sheet.Process(job.sr, job.grid)
			if err != nil {
				outcomes[i] = SheetOutcome{Sheet: job.name, Err: err}
				return nil
			}

			outcomes[i] = SheetOutcome{
				Sheet:    job.name,
				Result:   res,
				Profiles: s.profiler.ProfileSheet(job.sr, res),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return outcomes, nil
}

func (s *PipelineService) archiveSheet(ctx context.Context, run *models.Run, outcome *SheetOutcome) error {
	if s.archive == nil {
		return nil
	}

	res := outcome.Result
	report := &models.SheetReport{
		RunID:           run.ID,
		Sheet:           outcome.Sheet,
		RowCount:        len(res.Rows),
		SkippedRows:     len(res.SkippedRows),
		DiagnosticCount: len(res.Diagnostics),
		Profiles:        outcome.Profiles,
	}
	if err := s.archive.SaveSheetReport(ctx, report); err != nil {
		return errors.Wrapf(err, "failed to archive report for worksheet %q", outcome.Sheet)
	}

	records := make([]models.DiagnosticRecord, 0, len(res.Diagnostics))
	for _, d := range res.Diagnostics {
		records = append(records, models.DiagnosticRecord{
			RunID:      run.ID,
			Sheet:      outcome.Sheet,
			RowNum:     d.Row,
			ColumnName: d.Column,
			Kind:       string(d.Kind),
			CellValue:  d.Value,
		})
	}
	if err := s.archive.SaveDiagnostics(ctx, records); err != nil {
		return errors.Wrapf(err, "failed to archive diagnostics for worksheet %q", outcome.Sheet)
	}
	return nil
}

func (s *PipelineService) finishRun(ctx context.Context, run *models.Run) {
	if s.archive == nil {
		return
	}
	if err := s.archive.CompleteRun(ctx, run); err != nil {
		s.logger.Warn("Failed to record run completion: %v", err)
	}
}
