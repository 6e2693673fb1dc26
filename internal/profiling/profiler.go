package profiling

import (
	"phenotab/domain/record"
	"phenotab/domain/rules"
	"phenotab/domain/sheet"
	"phenotab/models"
)

// Profiler summarizes the quantitative columns of processed worksheets.
type Profiler struct {
	analyzer *DistributionAnalyzer
}

// NewProfiler creates a new profiler
func NewProfiler() *Profiler {
	return &Profiler{
		analyzer: NewDistributionAnalyzer(),
	}
}

// ProfileSheet profiles every quantitative column of res, derived means
// included, in the worksheet's column order.
func (p *Profiler) ProfileSheet(sr *rules.SheetRules, res *sheet.Result) models.ColumnProfiles {
	columns := make([]string, 0, len(res.Columns)+len(res.DerivedColumns))
	for _, column := range res.Columns {
		if sr.Class(column) == rules.ClassQuantitative {
			columns = append(columns, column)
		}
	}
	columns = append(columns, res.DerivedColumns...)

	profiles := make(models.ColumnProfiles, 0, len(columns))
	for _, column := range columns {
		profiles = append(profiles, p.profileColumn(column, res.Rows))
	}

	return profiles
}

func (p *Profiler) profileColumn(column string, rows []record.CleanRow) models.ColumnProfile {
	data := make([]float64, 0, len(rows))
	missing := 0

	for _, row := range rows {
		value, ok := row.Get(column)
		if !ok {
			continue
		}
		if n, isNumber := value.AsNumber(); isNumber {
			data = append(data, n)
		} else {
			missing++
		}
	}

	profile := models.ColumnProfile{Column: column, Count: len(data), Missing: missing}
	if len(data) == 0 {
		return profile
	}

	analyzed, err := p.analyzer.Analyze(data)
	if err != nil {
		// Keep the counts when the shape statistics cannot be computed
		return profile
	}

	analyzed.Column = column
	analyzed.Missing = missing
	return analyzed
}
