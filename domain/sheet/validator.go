package sheet

import (
	"phenotab/domain/record"
	"phenotab/domain/rules"
)

// Validator applies row-level checks that need the whole normalized row, after
// per-cell normalization has run.
type Validator struct {
	rules *rules.SheetRules
}

func NewValidator(sr *rules.SheetRules) *Validator {
	return &Validator{rules: sr}
}

// Validate reports the advisory findings for one normalized row, currently
// the disease-type vocabulary check for worksheets that declare one.
// Findings never suppress the row.
func (v *Validator) Validate(rowNum int, row record.CleanRow) record.Diagnostics {
	var diags record.Diagnostics
	if col := v.rules.DiseaseTypeColumn; col != "" {
		if val, ok := row.Get(col); ok && !val.IsBlank() && !val.IsInvalid() {
			entries := val.AsList()
			if entries == nil {
				if dt := val.AsString(); dt != "" {
					entries = []string{dt}
				}
			}
			for _, dt := range entries {
				if !v.rules.IsDiseaseType(dt) {
					diags = append(diags, record.Diagnostic{
						Row: rowNum, Column: col, Kind: record.UnqualifiedValue, Value: dt,
					})
				}
			}
		}
	}
	return diags
}
