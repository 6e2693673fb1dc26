package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"phenotab/adapters/matrix"
	"phenotab/domain/rules"
	"phenotab/internal"
	"phenotab/internal/config"
	"phenotab/internal/errors"
	"phenotab/internal/testkit"
	"phenotab/models"
	"phenotab/ports"
)

const toyRulesDoc = `{
  "dataset_name": "toy_batch",
  "qualified_sheet_names": ["Alpha", "Beta"],
  "sheets_to_process": ["Alpha", "Beta"],
  "worksheets": {
    "Alpha": {
      "has_header_row": true,
      "id_column": "Sample_ID",
      "qualified_columns": ["Sample_ID", "Score"],
      "quantitative_columns": ["Score"],
      "blank_allowed": {"Score": true}
    },
    "Beta": {
      "has_header_row": true,
      "id_column": "Sample_ID",
      "qualified_columns": ["Sample_ID", "Score"],
      "quantitative_columns": ["Score"],
      "blank_allowed": {"Score": true}
    }
  }
}`

func toyRules(t *testing.T) *rules.RuleSet {
	t.Helper()
	rs, err := rules.Load([]byte(toyRulesDoc))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return rs
}

func newTestService(archive ports.RunArchive) *PipelineService {
	return NewPipelineService(matrix.NewTableWriter(), archive, internal.NewLogger(internal.LogLevelError))
}

func TestRunCleanWorkbook(t *testing.T) {
	rs, err := config.LoadRules("")
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}

	gen := testkit.DefaultWorkbookConfig()
	gen.PatientCount = 200
	kit := testkit.NewKit()
	outDir := t.TempDir()

	svc := newTestService(kit.Archive)
	result, err := svc.Run(context.Background(), ProcessRequest{
		Rules:        rs,
		Source:       testkit.NewWorkbookGenerator(gen).Workbook(),
		Writer:       kit.Writer,
		WorkbookPath: "flinders_batch_2.xlsx",
		OutDir:       outDir,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Run.Status != models.RunClean {
		t.Errorf("expected status clean, got %s (error %q)", result.Run.Status, result.Run.Error)
	}
	if result.Flagged() {
		t.Error("expected no diagnostics on generated data")
	}
	if result.Run.RowCount != 200 {
		t.Errorf("expected 200 rows, got %d", result.Run.RowCount)
	}
	if len(result.Outputs) != 3 {
		t.Fatalf("expected two matrices plus the cleaned workbook, got %v", result.Outputs)
	}
	for _, path := range result.Outputs[:2] {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected matrix file on disk: %v", err)
		}
	}

	wantCleaned := filepath.Join(outDir, "Flinders_dataset_batch_2_cleaned.xlsx")
	if kit.Writer.SavedPath != wantCleaned {
		t.Errorf("expected cleaned workbook at %q, got %q", wantCleaned, kit.Writer.SavedPath)
	}
	if len(kit.Writer.Sheets) != 1 || kit.Writer.Sheets[0].Sheet != "Glaucoma" {
		t.Fatalf("expected one cleaned worksheet, got %d", len(kit.Writer.Sheets))
	}

	archived, err := kit.Archive.GetRun(context.Background(), result.Run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if archived.Status != models.RunClean || archived.CompletedAt == nil {
		t.Errorf("expected completed clean run in the archive, got %+v", archived)
	}

	reports, err := kit.Archive.ListSheetReports(context.Background(), result.Run.ID)
	if err != nil {
		t.Fatalf("ListSheetReports: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("expected one sheet report, got %d", len(reports))
	}
	if reports[0].RowCount != 200 {
		t.Errorf("expected report row count 200, got %d", reports[0].RowCount)
	}
	if len(reports[0].Profiles) != 10 {
		t.Errorf("expected profiles for 8 quantitative plus 2 derived columns, got %d", len(reports[0].Profiles))
	}
}

func TestRunFlaggedPreservesOutputs(t *testing.T) {
	rs := toyRules(t)
	kit := testkit.NewKit()
	kit.Workbook.AddSheet("Alpha", [][]string{
		{"Sample_ID", "Score"},
		{"A-1", "12"},
		{"A-2", "abc"},
		{"A-3", ""},
	})

	svc := newTestService(kit.Archive)
	result, err := svc.Run(context.Background(), ProcessRequest{
		Rules:        rs,
		Source:       kit.Workbook,
		WorkbookPath: "toy.xlsx",
		OutDir:       t.TempDir(),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Run.Status != models.RunFlagged {
		t.Errorf("expected status flagged, got %s", result.Run.Status)
	}
	if !result.Flagged() || result.Run.DiagnosticCount != 1 {
		t.Errorf("expected exactly one diagnostic, got %d", result.Run.DiagnosticCount)
	}
	if result.Run.RowCount != 3 {
		t.Errorf("expected all three rows kept, got %d", result.Run.RowCount)
	}
	if len(result.Outputs) != 3 {
		t.Fatalf("expected both matrices plus the diagnostics report, got %v", result.Outputs)
	}
	for _, path := range result.Outputs {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected output file on disk: %v", err)
		}
	}
	if base := filepath.Base(result.Outputs[2]); base != "toy_batch_alpha_diagnostics.txt" {
		t.Errorf("expected a diagnostics report, got %q", base)
	}

	records, err := kit.Archive.ListDiagnostics(context.Background(), result.Run.ID, ports.DiagnosticFilters{Kind: "invalid_numeric"})
	if err != nil {
		t.Fatalf("ListDiagnostics: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one archived diagnostic, got %d", len(records))
	}
	if records[0].RowNum != 3 || records[0].ColumnName != "Score" || records[0].CellValue != "abc" {
		t.Errorf("unexpected archived diagnostic: %+v", records[0])
	}
}

func TestRunKeepsSiblingsWhenSheetRejected(t *testing.T) {
	rs := toyRules(t)
	kit := testkit.NewKit()
	kit.Workbook.AddSheet("Alpha", [][]string{
		{"Sample_ID", "Score"},
		{"A-1", "12"},
	})
	// Beta's header carries an unqualified column, which rejects the sheet.
	kit.Workbook.AddSheet("Beta", [][]string{
		{"Patient", "Score"},
		{"B-1", "40"},
	})

	svc := newTestService(kit.Archive)
	result, err := svc.Run(context.Background(), ProcessRequest{
		Rules:        rs,
		Source:       kit.Workbook,
		WorkbookPath: "toy.xlsx",
		OutDir:       t.TempDir(),
	})
	if err != nil {
		t.Fatalf("expected sheet rejection to stay inside the result, got %v", err)
	}

	msgs := result.SheetErrors()
	if len(msgs) != 1 || !strings.Contains(msgs[0], "Beta") {
		t.Fatalf("expected one sheet error naming Beta, got %v", msgs)
	}
	if result.Run.Status != models.RunFailed {
		t.Errorf("expected failed run status, got %s", result.Run.Status)
	}
	if !strings.Contains(result.Run.Error, "Beta") {
		t.Errorf("expected run error to name the rejected sheet, got %q", result.Run.Error)
	}

	// Alpha still produced its matrices.
	if len(result.Outputs) != 2 {
		t.Fatalf("expected Alpha's matrices, got %v", result.Outputs)
	}
	for _, path := range result.Outputs {
		if !strings.Contains(filepath.Base(path), "alpha") {
			t.Errorf("expected only Alpha outputs, got %q", path)
		}
	}
	if result.Run.RowCount != 1 {
		t.Errorf("expected Alpha's single row counted, got %d", result.Run.RowCount)
	}
}

func TestRunRejectsWorkbookWithNoProcessableSheets(t *testing.T) {
	rs := toyRules(t)
	kit := testkit.NewKit()
	kit.Workbook.AddSheet("Notes", [][]string{{"anything"}})

	svc := newTestService(kit.Archive)
	_, err := svc.Run(context.Background(), ProcessRequest{
		Rules:        rs,
		Source:       kit.Workbook,
		WorkbookPath: "toy.xlsx",
		OutDir:       t.TempDir(),
	})
	if err == nil {
		t.Fatal("expected an error for a workbook with nothing to process")
	}
	if errors.GetCode(err) != errors.CodeSchemaRejected {
		t.Errorf("expected schema rejection, got %v", err)
	}

	runs, err := kit.Archive.ListRuns(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != models.RunFailed || runs[0].Error == "" {
		t.Fatalf("expected one failed archived run, got %+v", runs)
	}
}

func TestRunSheetFilter(t *testing.T) {
	rs := toyRules(t)
	kit := testkit.NewKit()
	kit.Workbook.AddSheet("Alpha", [][]string{
		{"Sample_ID", "Score"},
		{"A-1", "12"},
	})
	kit.Workbook.AddSheet("Beta", [][]string{
		{"Sample_ID", "Score"},
		{"B-1", "40"},
		{"B-2", "41"},
	})

	svc := newTestService(kit.Archive)
	result, err := svc.Run(context.Background(), ProcessRequest{
		Rules:        rs,
		Source:       kit.Workbook,
		Sheets:       []string{"Beta"},
		WorkbookPath: "toy.xlsx",
		OutDir:       t.TempDir(),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(result.Sheets) != 1 || result.Sheets[0].Sheet != "Beta" {
		t.Fatalf("expected only Beta processed, got %+v", result.Sheets)
	}
	if result.Run.RowCount != 2 {
		t.Errorf("expected Beta's two rows, got %d", result.Run.RowCount)
	}
}

func TestRunWithoutArchive(t *testing.T) {
	rs := toyRules(t)
	workbook := testkit.NewInMemoryWorkbook().AddSheet("Alpha", [][]string{
		{"Sample_ID", "Score"},
		{"A-1", "12"},
	})

	svc := newTestService(nil)
	result, err := svc.Run(context.Background(), ProcessRequest{
		Rules:        rs,
		Source:       workbook,
		WorkbookPath: "toy.xlsx",
		OutDir:       t.TempDir(),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Run.Status != models.RunClean {
		t.Errorf("expected clean run without an archive, got %s", result.Run.Status)
	}
	if len(result.Outputs) != 2 {
		t.Errorf("expected both matrices, got %v", result.Outputs)
	}
}
