package excel

import (
	"context"
	"path/filepath"
	"testing"

	"phenotab/domain/record"
	"phenotab/domain/sheet"
)

func TestWorkbookRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cleaned.xlsx")
	ctx := context.Background()

	res := &sheet.Result{
		Sheet:          "Glaucoma",
		Columns:        []string{"Sample_ID", "Glaucoma.diagnosis", "Highest IOP_RE"},
		DerivedColumns: []string{"highest_iop_mean"},
	}

	row := record.NewCleanRow(2)
	row.Set("Sample_ID", record.NewString("FL-0001"))
	row.Set("Glaucoma.diagnosis", record.NewList([]string{"POAG", "PXF"}))
	row.Set("Highest IOP_RE", record.NewNumber(24))
	row.Set("highest_iop_mean", record.NewNumber(23))
	res.Rows = append(res.Rows, row)

	sparse := record.NewCleanRow(3)
	sparse.Set("Sample_ID", record.NewString("FL-0002"))
	sparse.Set("Glaucoma.diagnosis", record.NewBlank())
	sparse.Set("highest_iop_mean", record.NewBlank())
	res.Rows = append(res.Rows, sparse)

	w := NewCleanWorkbookWriter()
	if err := w.WriteSheet(ctx, res); err != nil {
		t.Fatalf("WriteSheet() error: %v", err)
	}
	if err := w.Save(ctx, path); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	r, err := OpenWorkbook(path)
	if err != nil {
		t.Fatalf("OpenWorkbook() error: %v", err)
	}
	defer r.Close()

	names, err := r.SheetNames(ctx)
	if err != nil {
		t.Fatalf("SheetNames() error: %v", err)
	}
	if len(names) != 1 || names[0] != "Glaucoma" {
		t.Fatalf("SheetNames() = %v, want [Glaucoma]", names)
	}

	grid, err := r.Grid(ctx, "Glaucoma")
	if err != nil {
		t.Fatalf("Grid() error: %v", err)
	}
	if grid.NumRows() != 3 {
		t.Fatalf("got %d rows, want header plus two data rows", grid.NumRows())
	}
	if got := grid.Rows[0][3]; got != "highest_iop_mean" {
		t.Errorf("derived header = %q, want highest_iop_mean", got)
	}
	if got := grid.Rows[1][1]; got != "POAG,PXF" {
		t.Errorf("rendered list = %q, want POAG,PXF", got)
	}
	if got := grid.Rows[1][2]; got != "24" {
		t.Errorf("rendered number = %q, want 24", got)
	}
	// The column this row never carried renders as the absent token.
	if got := grid.Rows[2][2]; got != "NA" {
		t.Errorf("absent cell = %q, want NA", got)
	}
}

func TestOpenWorkbookMissingFile(t *testing.T) {
	if _, err := OpenWorkbook(filepath.Join(t.TempDir(), "missing.xlsx")); err == nil {
		t.Fatal("OpenWorkbook() accepted a path that does not exist")
	}
}

func TestGridUnknownWorksheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "single.xlsx")
	ctx := context.Background()

	w := NewCleanWorkbookWriter()
	if err := w.WriteSheet(ctx, &sheet.Result{Sheet: "Glaucoma", Columns: []string{"Sample_ID"}}); err != nil {
		t.Fatalf("WriteSheet() error: %v", err)
	}
	if err := w.Save(ctx, path); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	r, err := OpenWorkbook(path)
	if err != nil {
		t.Fatalf("OpenWorkbook() error: %v", err)
	}
	defer r.Close()

	if _, err := r.Grid(ctx, "AMD"); err == nil {
		t.Fatal("Grid() accepted a worksheet that does not exist")
	}
}
