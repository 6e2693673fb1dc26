package record

import "fmt"

// DiagnosticKind classifies a row-level rule violation.
type DiagnosticKind string

const (
	MissingColumn      DiagnosticKind = "missing_column"
	BlankValue         DiagnosticKind = "blank_value"
	InvalidCategorical DiagnosticKind = "invalid_categorical"
	InvalidNumeric     DiagnosticKind = "invalid_numeric"
	UnqualifiedValue   DiagnosticKind = "unqualified_value"
)

// Diagnostic records one non-fatal violation. Row is the worksheet row number
// (header row included in the count) so operators can jump straight to the
// offending cell in the source spreadsheet.
type Diagnostic struct {
	Row    int            `json:"row"`
	Column string         `json:"column"`
	Kind   DiagnosticKind `json:"kind"`
	Value  string         `json:"value"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("row %d, column %q: %s (value %q)", d.Row, d.Column, d.Kind, d.Value)
}

// Diagnostics is the collected report for one worksheet.
type Diagnostics []Diagnostic

// ByKind returns violation counts keyed by kind.
func (ds Diagnostics) ByKind() map[DiagnosticKind]int {
	counts := make(map[DiagnosticKind]int)
	for _, d := range ds {
		counts[d.Kind]++
	}
	return counts
}

// ForRow returns the diagnostics recorded against one worksheet row.
func (ds Diagnostics) ForRow(row int) Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if d.Row == row {
			out = append(out, d)
		}
	}
	return out
}

// ForColumn returns the diagnostics recorded against one canonical column.
func (ds Diagnostics) ForColumn(column string) Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if d.Column == column {
			out = append(out, d)
		}
	}
	return out
}
