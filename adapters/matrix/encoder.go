package matrix

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"phenotab/domain/record"
	"phenotab/domain/rules"
	"phenotab/domain/sheet"
)

const (
	caseValue    = "2"
	controlValue = "1"
	absentValue  = "NA"

	genderMale   = "1"
	genderFemale = "2"
)

// Table is a rendered analysis matrix: the header row followed by one row per
// participant, identifier first.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// Encoder renders one worksheet's processed rows into the binary and
// quantitative matrices used downstream for association analysis.
type Encoder struct {
	rules *rules.SheetRules
}

func NewEncoder(sr *rules.SheetRules) *Encoder {
	return &Encoder{rules: sr}
}

// Binary encodes the categorical portion of the worksheet. Tri-state columns
// become a single 2/1/NA column; split columns explode into one indicator per
// vocabulary (or observed) value; a configured gender column is recoded to
// 1/2/NA; a configured case/control column is recoded or recomputed from its
// evidence columns. The evidence columns themselves feed the designation and
// are not emitted.
func (e *Encoder) Binary(res *sheet.Result) *Table {
	tbl := &Table{Name: e.outputName(res, "binary")}
	tbl.Header = append(tbl.Header, "ID")

	evidence := make(map[string]bool)
	if cc := e.rules.ControlCase; cc != nil {
		for col := range cc.ControlWhen {
			evidence[col] = true
		}
	}

	type binaryColumn struct {
		header string
		encode func(record.CleanRow) string
	}
	var cols []binaryColumn

	for _, column := range res.Columns {
		if column == e.rules.IDColumn || evidence[column] {
			continue
		}
		if column == e.rules.GenderColumn {
			cols = append(cols, binaryColumn{normalizeName(column), e.genderCell(column)})
			continue
		}
		if cc := e.rules.ControlCase; cc != nil && cc.Column == column {
			cols = append(cols, binaryColumn{normalizeName(column), e.controlCaseCell(cc)})
			continue
		}

		switch e.rules.Class(column) {
		case rules.ClassYesNo, rules.ClassYesNoNA:
			cols = append(cols, binaryColumn{normalizeName(column), triStateCell(column)})
		case rules.ClassSplit:
			for _, indicator := range e.indicatorValues(column, res.Rows) {
				header := normalizeName(column) + "_" + normalizeName(indicator)
				cols = append(cols, binaryColumn{header, e.indicatorCell(column, indicator)})
			}
		case rules.ClassQualified:
			cols = append(cols, binaryColumn{normalizeName(column), renderCell(column)})
		}
	}

	for _, c := range cols {
		tbl.Header = append(tbl.Header, c.header)
	}
	for _, row := range res.Rows {
		out := make([]string, 0, len(cols)+1)
		out = append(out, e.participantID(row))
		for _, c := range cols {
			out = append(out, c.encode(row))
		}
		tbl.Rows = append(tbl.Rows, out)
	}
	return tbl
}

// Quantitative encodes the numeric portion of the worksheet: every
// quantitative column plus the derived means, numbers rendered plainly and
// everything else as the absent token.
func (e *Encoder) Quantitative(res *sheet.Result) *Table {
	tbl := &Table{Name: e.outputName(res, "quantitative")}
	tbl.Header = append(tbl.Header, "ID")

	var columns []string
	for _, column := range res.Columns {
		if e.rules.Class(column) == rules.ClassQuantitative {
			columns = append(columns, column)
			tbl.Header = append(tbl.Header, normalizeName(column))
		}
	}
	for _, derived := range res.DerivedColumns {
		columns = append(columns, derived)
		tbl.Header = append(tbl.Header, normalizeName(derived))
	}

	for _, row := range res.Rows {
		out := make([]string, 0, len(columns)+1)
		out = append(out, e.participantID(row))
		for _, column := range columns {
			v, ok := row.Get(column)
			if !ok {
				out = append(out, absentValue)
				continue
			}
			if _, isNum := v.AsNumber(); isNum {
				out = append(out, v.Render(sheet.SplitDelimiter))
				continue
			}
			out = append(out, absentValue)
		}
		tbl.Rows = append(tbl.Rows, out)
	}
	return tbl
}

// Diagnostics renders the worksheet's advisory findings as a report table.
// Row numbers match the worksheet, so the report cross-references the cleaned
// output directly.
func (e *Encoder) Diagnostics(res *sheet.Result) *Table {
	tbl := &Table{
		Name:   e.outputName(res, "diagnostics"),
		Header: []string{"row", "column", "kind", "value"},
	}
	for _, d := range res.Diagnostics {
		tbl.Rows = append(tbl.Rows, []string{strconv.Itoa(d.Row), d.Column, string(d.Kind), d.Value})
	}
	return tbl
}

func (e *Encoder) participantID(row record.CleanRow) string {
	if e.rules.IDColumn == "" {
		return fmt.Sprintf("row_%d", row.Row)
	}
	v, ok := row.Get(e.rules.IDColumn)
	if !ok {
		return fmt.Sprintf("row_%d", row.Row)
	}
	return v.Render(sheet.SplitDelimiter)
}

// indicatorValues resolves the explosion vocabulary for a split column: the
// configured vocabulary in its declared order, the disease-type vocabulary
// for the disease-type column, or every observed entry sorted. The control
// marker never becomes an indicator of its own.
func (e *Encoder) indicatorValues(column string, rows []record.CleanRow) []string {
	marker, hasControl := e.rules.ControlValue(column)
	keep := func(vs []string) []string {
		if !hasControl {
			return vs
		}
		out := make([]string, 0, len(vs))
		for _, v := range vs {
			if !strings.EqualFold(v, marker) {
				out = append(out, v)
			}
		}
		return out
	}

	if vocab, ok := e.rules.Vocabulary(column); ok {
		return keep(vocab)
	}
	if column == e.rules.DiseaseTypeColumn && len(e.rules.DiseaseTypes) > 0 {
		return keep(e.rules.DiseaseTypes)
	}

	seen := make(map[string]bool)
	var values []string
	for _, row := range rows {
		v, ok := row.Get(column)
		if !ok {
			continue
		}
		for _, entry := range v.AsList() {
			if !seen[entry] {
				seen[entry] = true
				values = append(values, entry)
			}
		}
	}
	sort.Strings(values)
	return keep(values)
}

// indicatorCell encodes membership of one vocabulary value in a split cell.
// Columns with a control marker use case/control form: the marker collapses
// every indicator to control, any other entry set scores matches as case and
// the rest as control. Columns without one score matches as case and
// everything else as absent.
func (e *Encoder) indicatorCell(column, indicator string) func(record.CleanRow) string {
	marker, hasControl := e.rules.ControlValue(column)
	return func(row record.CleanRow) string {
		miss := absentValue
		if hasControl {
			miss = controlValue
		}

		v, ok := row.Get(column)
		if !ok || v.IsBlank() || v.IsInvalid() {
			return miss
		}
		entries := v.AsList()
		if hasControl {
			for _, entry := range entries {
				if strings.EqualFold(entry, marker) {
					return controlValue
				}
			}
		}
		for _, entry := range entries {
			if strings.EqualFold(entry, indicator) {
				return caseValue
			}
		}
		return miss
	}
}

func (e *Encoder) genderCell(column string) func(record.CleanRow) string {
	return func(row record.CleanRow) string {
		v, ok := row.Get(column)
		if !ok || v.IsBlank() || v.IsInvalid() {
			return absentValue
		}
		g := strings.ToLower(v.AsString())
		switch {
		case strings.HasPrefix(g, "m"):
			return genderMale
		case strings.HasPrefix(g, "f"):
			return genderFemale
		default:
			return absentValue
		}
	}
}

// controlCaseCell recodes the recorded designation (0 control, 1 case,
// 9 unknown) to matrix form, or recomputes it from the evidence columns when
// the override is configured: all evidence at its no-disease value makes a
// control, any unresolved evidence makes the cell absent, anything else makes
// a case.
func (e *Encoder) controlCaseCell(cc *rules.ControlCaseDocument) func(record.CleanRow) string {
	evidence := make([]string, 0, len(cc.ControlWhen))
	for col := range cc.ControlWhen {
		evidence = append(evidence, col)
	}
	sort.Strings(evidence)

	return func(row record.CleanRow) string {
		if !cc.Override {
			v, ok := row.Get(cc.Column)
			if !ok || v.IsBlank() || v.IsInvalid() {
				return absentValue
			}
			switch v.AsString() {
			case "0":
				return controlValue
			case "1":
				return caseValue
			default:
				return absentValue
			}
		}

		allControl := true
		for _, col := range evidence {
			rendered := renderCell(col)(row)
			if strings.EqualFold(rendered, absentValue) || strings.EqualFold(rendered, "unknown") {
				return absentValue
			}
			if !strings.EqualFold(rendered, cc.ControlWhen[col]) {
				allControl = false
			}
		}
		if allControl {
			return controlValue
		}
		return caseValue
	}
}

func triStateCell(column string) func(record.CleanRow) string {
	return func(row record.CleanRow) string {
		v, ok := row.Get(column)
		if !ok {
			return absentValue
		}
		switch tri, _ := v.AsTriState(); tri {
		case record.TriYes:
			return caseValue
		case record.TriNo:
			return controlValue
		default:
			return absentValue
		}
	}
}

// renderCell emits the cleaned scalar as-is, with blanks, invalids, and
// absent columns collapsing to the absent token.
func renderCell(column string) func(record.CleanRow) string {
	return func(row record.CleanRow) string {
		v, ok := row.Get(column)
		if !ok || v.IsBlank() || v.IsInvalid() {
			return absentValue
		}
		return v.Render(sheet.SplitDelimiter)
	}
}

func (e *Encoder) outputName(res *sheet.Result, kind string) string {
	s := strings.ToLower(strings.ReplaceAll(res.Sheet, " ", "_"))
	return fmt.Sprintf("%s_%s_%s", res.Dataset, s, kind)
}

// normalizeName lowers a column or vocabulary value into matrix header form.
func normalizeName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, r := range []string{" ", ".", ",", "/", "-"} {
		n = strings.ReplaceAll(n, r, "_")
	}
	for strings.Contains(n, "__") {
		n = strings.ReplaceAll(n, "__", "_")
	}
	return strings.Trim(n, "_")
}
