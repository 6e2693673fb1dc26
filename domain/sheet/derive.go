package sheet

import (
	"sort"

	"phenotab/domain/record"
	"phenotab/domain/rules"
)

// DerivedColumns returns the worksheet's derived mean column names in stable
// order.
func DerivedColumns(sr *rules.SheetRules) []string {
	names := make([]string, 0, len(sr.DerivedMeans))
	for name := range sr.DerivedMeans {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// deriveMeans appends each configured derived mean to the row. The mean is
// only computed when every input carries a number; a blank, missing, or
// invalid measurement on either side makes the derived value blank.
func deriveMeans(sr *rules.SheetRules, row record.CleanRow) {
	for _, name := range DerivedColumns(sr) {
		inputs := sr.DerivedMeans[name]
		var sum float64
		complete := true
		for _, col := range inputs {
			v, ok := row.Get(col)
			if !ok {
				complete = false
				break
			}
			f, isNum := v.AsNumber()
			if !isNum {
				complete = false
				break
			}
			sum += f
		}
		if !complete {
			row.Set(name, record.NewBlank())
			continue
		}
		row.Set(name, record.NewNumber(sum/float64(len(inputs))))
	}
}
