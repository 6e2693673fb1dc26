package sheet

import (
	"strings"

	"phenotab/domain/record"
	"phenotab/domain/rules"
)

// Result is the outcome of processing one worksheet: every surviving row in
// worksheet order, plus the accumulated advisory diagnostics. A Result exists
// only when the worksheet passed schema binding.
type Result struct {
	Dataset string
	Sheet   string

	// Columns is the canonical output order for the worksheet.
	Columns []string

	// DerivedColumns lists derived mean columns appended after Columns.
	DerivedColumns []string

	Rows        []record.CleanRow
	Diagnostics record.Diagnostics

	// SkippedRows holds worksheet row numbers dropped for a blank identifier.
	SkippedRows []int
}

// HasDiagnostics reports whether any advisory finding was recorded.
func (r *Result) HasDiagnostics() bool {
	return len(r.Diagnostics) > 0
}

// Process runs the full pipeline for one worksheet: column binding, then
// per-cell normalization, row validation, and the configured derived means.
// Schema and rules problems reject the worksheet with an error; everything
// else is reported through Result.Diagnostics while the rows are kept.
func Process(sr *rules.SheetRules, grid *Grid) (*Result, error) {
	binding, err := Resolve(sr, grid)
	if err != nil {
		return nil, err
	}

	normalizer := NewNormalizer(sr)
	validator := NewValidator(sr)

	res := &Result{
		Dataset:        sr.Dataset,
		Sheet:          grid.Sheet,
		Columns:        append([]string(nil), sr.QualifiedColumns...),
		DerivedColumns: DerivedColumns(sr),
	}

	for i := binding.DataStart; i < len(grid.Rows); i++ {
		raw := grid.Rows[i]
		rowNum := i + 1

		if skipRow(sr, binding, raw) {
			res.SkippedRows = append(res.SkippedRows, rowNum)
			continue
		}

		row := record.NewCleanRow(rowNum)
		for _, name := range res.Columns {
			idx, _ := binding.Index(name)
			if idx >= len(raw) {
				// A cell the row does not carry at all, as opposed to a blank one.
				row.Set(name, record.NewBlank())
				res.Diagnostics = append(res.Diagnostics, record.Diagnostic{
					Row: rowNum, Column: name, Kind: record.MissingColumn,
				})
				continue
			}
			value, diags := normalizer.Cell(rowNum, name, raw[idx])
			row.Set(name, value)
			res.Diagnostics = append(res.Diagnostics, diags...)
		}

		res.Diagnostics = append(res.Diagnostics, validator.Validate(rowNum, row)...)
		deriveMeans(sr, row)
		res.Rows = append(res.Rows, row)
	}
	return res, nil
}

// skipRow drops rows that cannot identify a participant: a blank identifier
// cell when the worksheet declares one, or a fully blank row when it does not.
func skipRow(sr *rules.SheetRules, binding *Binding, raw []string) bool {
	if sr.IDColumn != "" {
		idx, _ := binding.Index(sr.IDColumn)
		return strings.TrimSpace(cell(raw, idx)) == ""
	}
	for _, c := range raw {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
