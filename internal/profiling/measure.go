package profiling

import (
	"phenotab/domain/sheet"
)

// MeasurementReport counts participants carrying real measurements across a
// set of columns. A cell blanked by normalization (empty, "x", "NA") is not
// a measurement.
type MeasurementReport struct {
	Sheet     string         `json:"sheet"`
	Rows      int            `json:"rows"`
	Measured  int            `json:"measured"`
	PerColumn map[string]int `json:"per_column"`
}

// CountMeasured tallies the rows of res holding at least one numeric value
// across columns, plus a per-column breakdown.
func CountMeasured(res *sheet.Result, columns []string) MeasurementReport {
	report := MeasurementReport{
		Sheet:     res.Sheet,
		Rows:      len(res.Rows),
		PerColumn: make(map[string]int, len(columns)),
	}
	for _, column := range columns {
		report.PerColumn[column] = 0
	}

	for _, row := range res.Rows {
		counted := false
		for _, column := range columns {
			value, ok := row.Get(column)
			if !ok {
				continue
			}
			if _, isNumber := value.AsNumber(); !isNumber {
				continue
			}
			report.PerColumn[column]++
			if !counted {
				report.Measured++
				counted = true
			}
		}
	}

	return report
}
