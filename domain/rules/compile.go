package rules

import (
	"encoding/json"
	"fmt"
)

// Parse decodes a rules document from JSON without validating it.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("document is not valid JSON: %v", err)}
	}
	return &doc, nil
}

// Load parses and compiles a rules document in one step.
func Load(data []byte) (*RuleSet, error) {
	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return Compile(doc)
}

// Compile validates a rules document and resolves it into a RuleSet. Every
// cross-reference is checked here so downstream row processing can trust the
// rules blindly.
func Compile(doc *Document) (*RuleSet, error) {
	if doc.DatasetName == "" {
		return nil, &ConfigError{Reason: "dataset_name is required"}
	}
	if len(doc.SheetsToProcess) == 0 {
		return nil, &ConfigError{Reason: "sheets_to_process is empty"}
	}

	qualified := make(map[string]bool, len(doc.QualifiedSheetNames))
	for _, name := range doc.QualifiedSheetNames {
		qualified[name] = true
	}

	rs := &RuleSet{
		Dataset:         doc.DatasetName,
		sheetsToProcess: append([]string(nil), doc.SheetsToProcess...),
		qualifiedSheets: qualified,
		sheets:          make(map[string]*SheetRules, len(doc.SheetsToProcess)),
	}

	seen := make(map[string]bool, len(doc.SheetsToProcess))
	for _, name := range doc.SheetsToProcess {
		if seen[name] {
			return nil, &ConfigError{Sheet: name, Reason: "listed more than once in sheets_to_process"}
		}
		seen[name] = true
		if !qualified[name] {
			return nil, &ConfigError{Sheet: name, Reason: "not listed in qualified_sheet_names"}
		}
		block, ok := doc.Worksheets[name]
		if !ok {
			return nil, &ConfigError{Sheet: name, Reason: "no worksheet rule block defined"}
		}
		sr, err := compileSheet(doc.DatasetName, name, block)
		if err != nil {
			return nil, err
		}
		rs.sheets[name] = sr
	}
	return rs, nil
}

func compileSheet(dataset, sheet string, block SheetDocument) (*SheetRules, error) {
	if len(block.QualifiedColumns) == 0 {
		return nil, &ConfigError{Sheet: sheet, Reason: "qualified_columns is empty"}
	}

	sr := &SheetRules{
		Dataset:           dataset,
		Sheet:             sheet,
		HasHeaderRow:      block.HasHeaderRow,
		IDColumn:          block.IDColumn,
		QualifiedColumns:  append([]string(nil), block.QualifiedColumns...),
		RenameMap:         make(map[string]string, len(block.RenameColumns)),
		Ignored:           make(map[string]bool, len(block.IgnoreColumns)),
		BlankAllowed:      make(map[string]bool, len(block.BlankAllowed)),
		DerivedMeans:      make(map[string][2]string, len(block.DerivedMeans)),
		DiseaseTypeColumn: block.DiseaseTypeColumn,
		DiseaseTypes:      append([]string(nil), block.DiseaseTypes...),
		GenderColumn:      block.GenderColumn,
		ControlValues:     make(map[string]string, len(block.ControlValues)),
		classes:           make(map[string]ColumnClass, len(block.QualifiedColumns)),
		qualified:         make(map[string]bool, len(block.QualifiedColumns)),
		vocab:             make(map[string][]string, len(block.QualifiedValues)),
		vocabSet:          make(map[string]map[string]bool, len(block.QualifiedValues)),
		repairs:           make(map[string]map[string]string, len(block.ValueRepairs)),
		missingTokens:     make(map[string]bool, len(block.MissingTokens)),
		rangeMean:         make(map[string]bool, len(block.RangeMeanColumns)),
		diseaseTypes:      make(map[string]bool, len(block.DiseaseTypes)),
	}

	for _, col := range block.QualifiedColumns {
		if sr.qualified[col] {
			return nil, &ConfigError{Sheet: sheet, Column: col, Reason: "listed more than once in qualified_columns"}
		}
		sr.qualified[col] = true
		sr.classes[col] = ClassPlain
	}

	if sr.IDColumn != "" && !sr.qualified[sr.IDColumn] {
		return nil, &ConfigError{Sheet: sheet, Column: sr.IDColumn, Reason: "id_column is not a qualified column"}
	}

	for raw, canonical := range block.RenameColumns {
		if !sr.qualified[canonical] {
			return nil, &ConfigError{Sheet: sheet, Column: raw,
				Reason: fmt.Sprintf("rename target %q is not a qualified column", canonical)}
		}
		sr.RenameMap[raw] = canonical
	}

	for _, col := range block.IgnoreColumns {
		sr.Ignored[col] = true
	}

	// The classification sets must not overlap; yes_no_na is the one sanctioned
	// overlap, widening a yes_no column rather than standing alone against it.
	membership := make(map[string][]string)
	record := func(set string, cols []string) error {
		for _, col := range cols {
			if !sr.qualified[col] {
				return &ConfigError{Sheet: sheet, Column: col,
					Reason: fmt.Sprintf("listed in %s but not in qualified_columns", set)}
			}
			membership[col] = append(membership[col], set)
		}
		return nil
	}
	if err := record("split_columns", block.SplitColumns); err != nil {
		return nil, err
	}
	if err := record("yes_no_columns", block.YesNoColumns); err != nil {
		return nil, err
	}
	if err := record("quantitative_columns", block.QuantitativeColumns); err != nil {
		return nil, err
	}
	for col, sets := range membership {
		if sr.Ignored[col] {
			return nil, &ConfigError{Sheet: sheet, Column: col,
				Reason: fmt.Sprintf("listed in both ignore_columns and %s", sets[0])}
		}
		if len(sets) > 1 {
			return nil, &ConfigError{Sheet: sheet, Column: col,
				Reason: fmt.Sprintf("listed in both %s and %s", sets[0], sets[1])}
		}
	}

	for _, col := range block.SplitColumns {
		sr.classes[col] = ClassSplit
	}
	for _, col := range block.YesNoColumns {
		sr.classes[col] = ClassYesNo
	}
	for _, col := range block.QuantitativeColumns {
		sr.classes[col] = ClassQuantitative
	}
	for _, col := range block.YesNoNAColumns {
		if !sr.qualified[col] {
			return nil, &ConfigError{Sheet: sheet, Column: col,
				Reason: "listed in yes_no_na_columns but not in qualified_columns"}
		}
		switch sr.classes[col] {
		case ClassPlain, ClassYesNo:
			sr.classes[col] = ClassYesNoNA
		default:
			return nil, &ConfigError{Sheet: sheet, Column: col,
				Reason: fmt.Sprintf("listed in both yes_no_na_columns and %s_columns", sr.classes[col])}
		}
	}

	for col, values := range block.QualifiedValues {
		if !sr.qualified[col] {
			return nil, &ConfigError{Sheet: sheet, Column: col,
				Reason: "has qualified_values but is not a qualified column"}
		}
		if len(values) == 0 {
			return nil, &ConfigError{Sheet: sheet, Column: col, Reason: "qualified_values list is empty"}
		}
		set := make(map[string]bool, len(values))
		for _, v := range values {
			set[v] = true
		}
		sr.vocab[col] = append([]string(nil), values...)
		sr.vocabSet[col] = set
		// Vocabulary constrains split entries in place; everything else becomes
		// a qualified-value column.
		switch sr.classes[col] {
		case ClassPlain:
			sr.classes[col] = ClassQualified
		case ClassSplit:
		default:
			return nil, &ConfigError{Sheet: sheet, Column: col,
				Reason: fmt.Sprintf("qualified_values cannot apply to a %s column", sr.classes[col])}
		}
	}

	for col, allowed := range block.BlankAllowed {
		if !sr.qualified[col] {
			return nil, &ConfigError{Sheet: sheet, Column: col,
				Reason: "has a blank_allowed entry but is not a qualified column"}
		}
		sr.BlankAllowed[col] = allowed
	}

	for col, m := range block.ValueRepairs {
		if !sr.qualified[col] {
			return nil, &ConfigError{Sheet: sheet, Column: col,
				Reason: "has value_repairs but is not a qualified column"}
		}
		repaired := make(map[string]string, len(m))
		for from, to := range m {
			repaired[from] = to
		}
		sr.repairs[col] = repaired
	}

	for _, tok := range block.MissingTokens {
		if tok == "" {
			return nil, &ConfigError{Sheet: sheet, Reason: "missing_tokens may not contain the empty string"}
		}
		sr.missingTokens[tok] = true
	}

	for _, col := range block.RangeMeanColumns {
		if sr.classes[col] != ClassQuantitative {
			return nil, &ConfigError{Sheet: sheet, Column: col,
				Reason: "listed in range_mean_columns but not in quantitative_columns"}
		}
		sr.rangeMean[col] = true
	}

	for name, inputs := range block.DerivedMeans {
		if sr.qualified[name] {
			return nil, &ConfigError{Sheet: sheet, Column: name,
				Reason: "derived mean collides with a qualified column"}
		}
		for _, in := range inputs {
			if sr.classes[in] != ClassQuantitative {
				return nil, &ConfigError{Sheet: sheet, Column: in,
					Reason: fmt.Sprintf("derived mean %q input is not a quantitative column", name)}
			}
		}
		sr.DerivedMeans[name] = inputs
	}

	if sr.DiseaseTypeColumn != "" {
		if !sr.qualified[sr.DiseaseTypeColumn] {
			return nil, &ConfigError{Sheet: sheet, Column: sr.DiseaseTypeColumn,
				Reason: "disease_type_column is not a qualified column"}
		}
		if len(sr.DiseaseTypes) == 0 {
			return nil, &ConfigError{Sheet: sheet, Column: sr.DiseaseTypeColumn,
				Reason: "disease_type_column is set but disease_types is empty"}
		}
	}
	for _, v := range sr.DiseaseTypes {
		sr.diseaseTypes[v] = true
	}

	if sr.GenderColumn != "" {
		if !sr.qualified[sr.GenderColumn] {
			return nil, &ConfigError{Sheet: sheet, Column: sr.GenderColumn,
				Reason: "gender_column is not a qualified column"}
		}
		switch sr.classes[sr.GenderColumn] {
		case ClassPlain, ClassQualified:
		default:
			return nil, &ConfigError{Sheet: sheet, Column: sr.GenderColumn,
				Reason: fmt.Sprintf("gender_column cannot be a %s column", sr.classes[sr.GenderColumn])}
		}
	}

	for col, marker := range block.ControlValues {
		if sr.classes[col] != ClassSplit {
			return nil, &ConfigError{Sheet: sheet, Column: col,
				Reason: "has a control value but is not a split column"}
		}
		if marker == "" {
			return nil, &ConfigError{Sheet: sheet, Column: col, Reason: "control value may not be empty"}
		}
		sr.ControlValues[col] = marker
	}

	if cc := block.ControlCase; cc != nil {
		if !sr.qualified[cc.Column] {
			return nil, &ConfigError{Sheet: sheet, Column: cc.Column,
				Reason: "control_case column is not a qualified column"}
		}
		if cc.Override && len(cc.ControlWhen) == 0 {
			return nil, &ConfigError{Sheet: sheet, Column: cc.Column,
				Reason: "control_case override requires control_when columns"}
		}
		for col := range cc.ControlWhen {
			if !sr.qualified[col] {
				return nil, &ConfigError{Sheet: sheet, Column: col,
					Reason: "control_when references a column that is not qualified"}
			}
		}
		copied := *cc
		copied.ControlWhen = make(map[string]string, len(cc.ControlWhen))
		for col, v := range cc.ControlWhen {
			copied.ControlWhen[col] = v
		}
		sr.ControlCase = &copied
	}

	return sr, nil
}
