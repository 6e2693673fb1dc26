package rules

import "fmt"

// Document is the raw rules configuration, keyed by worksheet (disease
// cohort) name. It is the parsed form of the rules JSON file; Compile turns
// it into an immutable RuleSet with every lookup resolved up front.
type Document struct {
	DatasetName         string                   `json:"dataset_name"`
	QualifiedSheetNames []string                 `json:"qualified_sheet_names"`
	SheetsToProcess     []string                 `json:"sheets_to_process"`
	Worksheets          map[string]SheetDocument `json:"worksheets"`
}

// SheetDocument is the raw per-worksheet rule block.
type SheetDocument struct {
	HasHeaderRow        bool                         `json:"has_header_row"`
	IDColumn            string                       `json:"id_column"`
	QualifiedColumns    []string                     `json:"qualified_columns"`
	RenameColumns       map[string]string            `json:"rename_columns,omitempty"`
	IgnoreColumns       []string                     `json:"ignore_columns,omitempty"`
	SplitColumns        []string                     `json:"split_columns,omitempty"`
	YesNoColumns        []string                     `json:"yes_no_columns,omitempty"`
	YesNoNAColumns      []string                     `json:"yes_no_na_columns,omitempty"`
	QuantitativeColumns []string                     `json:"quantitative_columns,omitempty"`
	QualifiedValues     map[string][]string          `json:"qualified_values,omitempty"`
	BlankAllowed        map[string]bool              `json:"blank_allowed,omitempty"`
	ValueRepairs        map[string]map[string]string `json:"value_repairs,omitempty"`
	MissingTokens       []string                     `json:"missing_tokens,omitempty"`
	RangeMeanColumns    []string                     `json:"range_mean_columns,omitempty"`
	DerivedMeans        map[string][2]string         `json:"derived_means,omitempty"`
	DiseaseTypeColumn   string                       `json:"disease_type_column,omitempty"`
	DiseaseTypes        []string                     `json:"disease_types,omitempty"`
	GenderColumn        string                       `json:"gender_column,omitempty"`
	ControlValues       map[string]string            `json:"control_values,omitempty"`
	ControlCase         *ControlCaseDocument         `json:"control_case,omitempty"`
}

// ControlCaseDocument configures binary-matrix encoding for a case/control
// column. With Override set, the recorded designation is discarded and
// recomputed from the ControlWhen columns: a participant whose listed columns
// all carry their no-disease value is a control, one with any unresolved
// input is absent, everyone else is a case.
type ControlCaseDocument struct {
	Column      string            `json:"column"`
	Override    bool              `json:"override,omitempty"`
	ControlWhen map[string]string `json:"control_when,omitempty"`
}

// ColumnClass is the structural classification of a canonical column,
// resolved once per worksheet so per-cell normalization stays branch-free.
type ColumnClass int

const (
	ClassPlain ColumnClass = iota
	ClassSplit
	ClassYesNo
	ClassYesNoNA
	ClassQuantitative
	ClassQualified
)

func (c ColumnClass) String() string {
	switch c {
	case ClassPlain:
		return "plain"
	case ClassSplit:
		return "split"
	case ClassYesNo:
		return "yes_no"
	case ClassYesNoNA:
		return "yes_no_na"
	case ClassQuantitative:
		return "quantitative"
	case ClassQualified:
		return "qualified"
	}
	return "unknown"
}

// RuleSet holds the compiled rules for every worksheet listed for processing.
// It is read-only after Compile.
type RuleSet struct {
	Dataset         string
	sheetsToProcess []string
	qualifiedSheets map[string]bool
	sheets          map[string]*SheetRules
}

// SheetNames returns the worksheets to process, in configuration order.
func (rs *RuleSet) SheetNames() []string {
	out := make([]string, len(rs.sheetsToProcess))
	copy(out, rs.sheetsToProcess)
	return out
}

// IsQualified reports whether a worksheet name is recognized at all.
func (rs *RuleSet) IsQualified(sheet string) bool {
	return rs.qualifiedSheets[sheet]
}

// ShouldProcess reports whether a worksheet is selected for processing.
func (rs *RuleSet) ShouldProcess(sheet string) bool {
	_, ok := rs.sheets[sheet]
	return ok
}

// Sheet returns the compiled rules for one worksheet, or a ConfigError when
// the worksheet is not listed for processing.
func (rs *RuleSet) Sheet(name string) (*SheetRules, error) {
	sr, ok := rs.sheets[name]
	if !ok {
		return nil, &ConfigError{Sheet: name, Reason: "worksheet is not listed in sheets_to_process"}
	}
	return sr, nil
}

// SheetRules is the fully resolved rule table for one worksheet.
type SheetRules struct {
	Dataset           string
	Sheet             string
	HasHeaderRow      bool
	IDColumn          string
	QualifiedColumns  []string
	RenameMap         map[string]string
	Ignored           map[string]bool
	BlankAllowed      map[string]bool
	DerivedMeans      map[string][2]string
	DiseaseTypeColumn string
	DiseaseTypes      []string
	GenderColumn      string
	ControlValues     map[string]string
	ControlCase       *ControlCaseDocument

	classes       map[string]ColumnClass
	qualified     map[string]bool
	vocab         map[string][]string
	vocabSet      map[string]map[string]bool
	repairs       map[string]map[string]string
	missingTokens map[string]bool
	rangeMean     map[string]bool
	diseaseTypes  map[string]bool
}

// Class returns the precomputed structural class for a canonical column.
func (sr *SheetRules) Class(column string) ColumnClass {
	return sr.classes[column]
}

// IsQualifiedColumn reports whether a name is a canonical output column.
func (sr *SheetRules) IsQualifiedColumn(column string) bool {
	return sr.qualified[column]
}

// BlankOK resolves the blank policy for a column. Columns without an explicit
// entry default to blank-is-an-error.
func (sr *SheetRules) BlankOK(column string) bool {
	return sr.BlankAllowed[column]
}

// Vocabulary returns the closed value list configured for a column.
func (sr *SheetRules) Vocabulary(column string) ([]string, bool) {
	v, ok := sr.vocab[column]
	return v, ok
}

// InVocabulary reports closed-vocabulary membership (case-sensitive).
func (sr *SheetRules) InVocabulary(column, value string) bool {
	set, ok := sr.vocabSet[column]
	if !ok {
		return false
	}
	return set[value]
}

// Repair maps a known raw spelling to its canonical value, or returns the
// input unchanged.
func (sr *SheetRules) Repair(column, value string) string {
	if m, ok := sr.repairs[column]; ok {
		if fixed, ok := m[value]; ok {
			return fixed
		}
	}
	return value
}

// IsMissingToken reports whether a cell value is a configured
// missing-measurement sentinel (for example "x" in the IOP columns).
func (sr *SheetRules) IsMissingToken(value string) bool {
	return sr.missingTokens[value]
}

// IsRangeMean reports whether a quantitative column accepts "low-high" range
// cells, reduced to their midpoint.
func (sr *SheetRules) IsRangeMean(column string) bool {
	return sr.rangeMean[column]
}

// IsDiseaseType reports membership in the worksheet's disease-type vocabulary.
func (sr *SheetRules) IsDiseaseType(value string) bool {
	return sr.diseaseTypes[value]
}

// ControlValue returns the unaffected marker configured for a split column.
// Columns with one explode to case/control indicators in the binary matrix;
// columns without explode to case/absent indicators.
func (sr *SheetRules) ControlValue(column string) (string, bool) {
	v, ok := sr.ControlValues[column]
	return v, ok
}

// ConfigError reports an inconsistency in the rules document. It is fatal and
// raised before any row is processed.
type ConfigError struct {
	Sheet  string
	Column string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("rules: worksheet %q column %q: %s", e.Sheet, e.Column, e.Reason)
	}
	if e.Sheet != "" {
		return fmt.Sprintf("rules: worksheet %q: %s", e.Sheet, e.Reason)
	}
	return fmt.Sprintf("rules: %s", e.Reason)
}
