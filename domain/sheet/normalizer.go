package sheet

import (
	"strconv"
	"strings"

	"phenotab/domain/record"
	"phenotab/domain/rules"
)

// SplitDelimiter separates entries in multi-valued cells across every
// worksheet.
// TODO: confirm against the batch 3 exports, which may switch to semicolons.
const SplitDelimiter = ","

// Normalizer converts raw cell text into typed values under one worksheet's
// rules. It is stateless across cells; every decision comes from the compiled
// rule table.
type Normalizer struct {
	rules *rules.SheetRules
}

func NewNormalizer(sr *rules.SheetRules) *Normalizer {
	return &Normalizer{rules: sr}
}

// Cell normalizes a single cell for a canonical column. The returned
// diagnostics are advisory: a diagnosed cell still yields a value (the blank
// marker or an invalid marker) so the row survives.
func (n *Normalizer) Cell(rowNum int, column, raw string) (record.Value, record.Diagnostics) {
	value := strings.TrimSpace(raw)
	value = n.rules.Repair(column, value)

	if value == "" {
		if n.rules.BlankOK(column) {
			return record.NewBlank(), nil
		}
		return record.NewBlank(), record.Diagnostics{{
			Row: rowNum, Column: column, Kind: record.BlankValue,
		}}
	}

	switch n.rules.Class(column) {
	case rules.ClassSplit:
		return n.splitCell(rowNum, column, value)
	case rules.ClassYesNo:
		return n.triStateCell(rowNum, column, value, false)
	case rules.ClassYesNoNA:
		return n.triStateCell(rowNum, column, value, true)
	case rules.ClassQuantitative:
		return n.numericCell(rowNum, column, value)
	case rules.ClassQualified:
		if !n.rules.InVocabulary(column, value) {
			return record.NewInvalid(value), record.Diagnostics{{
				Row: rowNum, Column: column, Kind: record.UnqualifiedValue, Value: value,
			}}
		}
		return record.NewString(value), nil
	default:
		return record.NewString(value), nil
	}
}

// splitCell breaks a multi-valued cell on the delimiter, trims each entry,
// drops empties, repairs entries, and checks any configured vocabulary per
// entry. A whole cell holding a missing-measurement sentinel becomes the
// blank marker without a diagnostic, same as quantitative cells.
func (n *Normalizer) splitCell(rowNum int, column, value string) (record.Value, record.Diagnostics) {
	if n.rules.IsMissingToken(value) {
		return record.NewBlank(), nil
	}

	var entries []string
	var diags record.Diagnostics
	_, hasVocab := n.rules.Vocabulary(column)

	for _, part := range strings.Split(value, SplitDelimiter) {
		entry := strings.TrimSpace(part)
		if entry == "" {
			continue
		}
		entry = n.rules.Repair(column, entry)
		if hasVocab && !n.rules.InVocabulary(column, entry) {
			diags = append(diags, record.Diagnostic{
				Row: rowNum, Column: column, Kind: record.UnqualifiedValue, Value: entry,
			})
		}
		entries = append(entries, entry)
	}

	if len(entries) == 0 {
		if n.rules.BlankOK(column) {
			return record.NewBlank(), diags
		}
		diags = append(diags, record.Diagnostic{Row: rowNum, Column: column, Kind: record.BlankValue})
		return record.NewBlank(), diags
	}
	return record.NewList(entries), diags
}

func (n *Normalizer) triStateCell(rowNum int, column, value string, acceptNA bool) (record.Value, record.Diagnostics) {
	switch strings.ToLower(value) {
	case "yes":
		return record.NewTriState(record.TriYes), nil
	case "no":
		return record.NewTriState(record.TriNo), nil
	case "na", "n/a":
		if acceptNA {
			return record.NewTriState(record.TriNA), nil
		}
	case "unknown":
		if acceptNA {
			return record.NewTriState(record.TriUnknown), nil
		}
	}
	return record.NewInvalid(value), record.Diagnostics{{
		Row: rowNum, Column: column, Kind: record.InvalidCategorical, Value: value,
	}}
}

// numericCell parses a quantitative cell. Configured missing-measurement
// sentinels become the blank marker without a diagnostic, and range-mean
// columns reduce "low-high" cells to their midpoint.
func (n *Normalizer) numericCell(rowNum int, column, value string) (record.Value, record.Diagnostics) {
	if n.rules.IsMissingToken(value) {
		return record.NewBlank(), nil
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return record.NewNumber(f), nil
	}
	if n.rules.IsRangeMean(column) {
		if mid, ok := rangeMidpoint(value); ok {
			return record.NewNumber(mid), nil
		}
	}
	return record.NewInvalid(value), record.Diagnostics{{
		Row: rowNum, Column: column, Kind: record.InvalidNumeric, Value: value,
	}}
}

// rangeMidpoint parses a "low-high" cell into the mean of its bounds.
func rangeMidpoint(value string) (float64, bool) {
	parts := strings.Split(value, "-")
	if len(parts) != 2 {
		return 0, false
	}
	low, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, false
	}
	high, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, false
	}
	return (low + high) / 2, true
}
