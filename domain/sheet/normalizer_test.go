package sheet

import (
	"testing"

	"phenotab/domain/record"
)

func TestNormalizeTriState(t *testing.T) {
	n := NewNormalizer(glaucomaRules(t))

	tests := []struct {
		name     string
		raw      string
		want     record.TriState
		wantDiag bool
	}{
		{"lowercase yes", "yes", record.TriYes, false},
		{"uppercase YES", "YES", record.TriYes, false},
		{"mixed case No", "No", record.TriNo, false},
		{"na allowed for widened column", "NA", record.TriNA, false},
		{"n/a variant", "n/a", record.TriNA, false},
		{"unknown", "Unknown", record.TriUnknown, false},
		{"free text", "maybe", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, diags := n.Cell(2, "Family History", tt.raw)

			if tt.wantDiag {
				if len(diags) != 1 || diags[0].Kind != record.InvalidCategorical {
					t.Fatalf("diagnostics = %v, want one invalid_categorical", diags)
				}
				if !value.IsInvalid() {
					t.Error("value should be the invalid marker")
				}
				return
			}
			if len(diags) != 0 {
				t.Fatalf("unexpected diagnostics: %v", diags)
			}
			if tri, ok := value.AsTriState(); !ok || tri != tt.want {
				t.Errorf("AsTriState() = %v, %v; want %v", tri, ok, tt.want)
			}
		})
	}
}

func TestNormalizeTriStateIsIdempotent(t *testing.T) {
	n := NewNormalizer(glaucomaRules(t))

	value, _ := n.Cell(2, "Family History", "Yes")
	again, diags := n.Cell(2, "Family History", value.Render(SplitDelimiter))

	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	first, _ := value.AsTriState()
	second, ok := again.AsTriState()
	if !ok || second != first {
		t.Errorf("renormalizing a rendered tri-state changed it: %v -> %v", value, again)
	}
}

func TestNormalizeQuantitative(t *testing.T) {
	n := NewNormalizer(glaucomaRules(t))

	tests := []struct {
		name     string
		column   string
		raw      string
		wantNum  float64
		wantND   bool // expect a number with no diagnostic
		wantKind record.DiagnosticKind
	}{
		{"integer", "Highest IOP_RE", "24", 24, true, ""},
		{"decimal", "Highest IOP_RE", "21.5", 21.5, true, ""},
		{"padded", "Highest IOP_RE", " 18 ", 18, true, ""},
		{"missing sentinel lower", "Highest IOP_RE", "x", 0, false, ""},
		{"missing sentinel upper", "Highest IOP_RE", "X", 0, false, ""},
		{"range midpoint", "VCDR_RE", "0.5-0.6", 0.55, true, ""},
		{"range with spaces", "VCDR_RE", "0.4 - 0.6", 0.5, true, ""},
		{"range outside range columns", "Highest IOP_RE", "20-24", 0, false, record.InvalidNumeric},
		{"free text", "Highest IOP_RE", "high", 0, false, record.InvalidNumeric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, diags := n.Cell(3, tt.column, tt.raw)

			if tt.wantND {
				if len(diags) != 0 {
					t.Fatalf("unexpected diagnostics: %v", diags)
				}
				if f, ok := value.AsNumber(); !ok || f != tt.wantNum {
					t.Errorf("AsNumber() = %v, %v; want %v, true", f, ok, tt.wantNum)
				}
				return
			}
			if tt.wantKind == "" {
				if len(diags) != 0 {
					t.Fatalf("unexpected diagnostics: %v", diags)
				}
				if !value.IsBlank() {
					t.Errorf("value = %v, want the blank marker", value)
				}
				return
			}
			if len(diags) != 1 || diags[0].Kind != tt.wantKind {
				t.Fatalf("diagnostics = %v, want one %s", diags, tt.wantKind)
			}
			if !value.IsInvalid() {
				t.Error("value should be the invalid marker")
			}
		})
	}
}

func TestNormalizeSplit(t *testing.T) {
	n := NewNormalizer(glaucomaRules(t))

	value, diags := n.Cell(4, "Glaucoma.diagnosis", " POAG , PXF ,, PACG ")
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	got := value.AsList()
	want := []string{"POAG", "PXF", "PACG"}
	if len(got) != len(want) {
		t.Fatalf("AsList() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestNormalizeSplitMissingToken(t *testing.T) {
	n := NewNormalizer(glaucomaRules(t))

	value, diags := n.Cell(4, "Glaucoma.diagnosis", "X")
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if !value.IsBlank() {
		t.Errorf("value = %v, want the blank marker", value)
	}
}

func TestNormalizeQualifiedValues(t *testing.T) {
	n := NewNormalizer(glaucomaRules(t))

	if value, diags := n.Cell(5, "NTG HTG", "9"); len(diags) != 0 || value.AsString() != "9" {
		t.Errorf("Cell(9) = %v, %v; want qualified string", value, diags)
	}

	value, diags := n.Cell(5, "NTG HTG", "2")
	if len(diags) != 1 || diags[0].Kind != record.UnqualifiedValue || diags[0].Value != "2" {
		t.Fatalf("diagnostics = %v, want one unqualified_value for 2", diags)
	}
	if !value.IsInvalid() {
		t.Error("value should be the invalid marker")
	}
}

func TestNormalizeBlankPolicy(t *testing.T) {
	n := NewNormalizer(glaucomaRules(t))

	// NTG HTG allows blanks.
	if value, diags := n.Cell(6, "NTG HTG", ""); len(diags) != 0 || !value.IsBlank() {
		t.Errorf("blank-allowed cell = %v, %v; want blank marker with no diagnostics", value, diags)
	}

	// Diagnosis does not.
	value, diags := n.Cell(6, "Glaucoma.diagnosis", "  ")
	if len(diags) != 1 || diags[0].Kind != record.BlankValue {
		t.Fatalf("diagnostics = %v, want one blank_value", diags)
	}
	if !value.IsBlank() {
		t.Error("diagnosed blank still carries the blank marker")
	}
	if diags[0].Row != 6 || diags[0].Column != "Glaucoma.diagnosis" {
		t.Errorf("diagnostic location = row %d column %q", diags[0].Row, diags[0].Column)
	}
}

func TestNormalizeRepairsBeforeVocabulary(t *testing.T) {
	n := NewNormalizer(drRules(t))

	value, diags := n.Cell(7, "Disease Type", "Type 1")
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if value.AsString() != "Type1" {
		t.Errorf("repaired value = %q, want Type1", value.AsString())
	}
}
