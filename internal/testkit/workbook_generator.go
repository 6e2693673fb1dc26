package testkit

import (
	"fmt"
	"math/rand"
)

// WorkbookGeneratorConfig configures the synthetic workbook generator.
type WorkbookGeneratorConfig struct {
	PatientCount int     `json:"patient_count"`
	CaseRate     float64 `json:"case_rate"`     // fraction of patients carrying a diagnosis
	MissingRate  float64 `json:"missing_rate"`  // fraction of measurement cells left blank
	SentinelRate float64 `json:"sentinel_rate"` // fraction of measurement cells holding the "x" marker
	Seed         int64   `json:"seed"`
}

// DefaultWorkbookConfig returns sensible defaults for synthetic workbooks.
func DefaultWorkbookConfig() WorkbookGeneratorConfig {
	return WorkbookGeneratorConfig{
		PatientCount: 50,
		CaseRate:     0.4,
		MissingRate:  0.1,
		SentinelRate: 0.05,
		Seed:         42,
	}
}

// WorkbookGenerator produces glaucoma worksheets shaped like the real batch
// spreadsheets, with every cell valid under the default rules.
type WorkbookGenerator struct {
	config WorkbookGeneratorConfig
	rng    *rand.Rand
}

func NewWorkbookGenerator(config WorkbookGeneratorConfig) *WorkbookGenerator {
	return &WorkbookGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

var (
	generatorDiagnoses  = []string{"POAG", "PACG", "PXF", "PDS", "GS", "POAG_suspect"}
	generatorAncestries = []string{"Caucasian", "Australian", "Asian", "Middle Eastern", "Greek"}
)

// GlaucomaSheet generates a header row plus one row per patient. Identifiers
// run FL-0001 upward.
func (g *WorkbookGenerator) GlaucomaSheet() [][]string {
	rows := [][]string{{
		"Sample_ID", "Gender", "Ancestry", "Glaucoma.diagnosis", "Family History",
		"AgeDx", "Age Recruitment", "Highest IOP_RE", "Highest IOP_LE", "Highest IOP",
		"NTG HTG", "VCDR_RE", "VCDR_LE", "Highest.VCDR",
	}}

	for i := 0; i < g.config.PatientCount; i++ {
		rows = append(rows, g.patientRow(i+1))
	}
	return rows
}

// Workbook wraps the generated sheet in an in-memory workbook source.
func (g *WorkbookGenerator) Workbook() *InMemoryWorkbook {
	return NewInMemoryWorkbook().AddSheet("Glaucoma", g.GlaucomaSheet())
}

func (g *WorkbookGenerator) patientRow(n int) []string {
	isCase := g.rng.Float64() < g.config.CaseRate

	diagnosis := "Unaffected"
	ntgHTG := ""
	if isCase {
		idx := g.rng.Intn(len(generatorDiagnoses))
		diagnosis = generatorDiagnoses[idx]
		// Secondary diagnoses show up in a minority of cases.
		if g.rng.Float64() < 0.15 {
			other := (idx + 1 + g.rng.Intn(len(generatorDiagnoses)-1)) % len(generatorDiagnoses)
			diagnosis += ", " + generatorDiagnoses[other]
		}
		ntgHTG = []string{"0", "1", "9"}[g.rng.Intn(3)]
	}

	gender := ""
	if g.rng.Float64() < 0.95 {
		gender = []string{"Male", "Female"}[g.rng.Intn(2)]
	}

	ancestry := generatorAncestries[g.rng.Intn(len(generatorAncestries))]
	if g.rng.Float64() < 0.1 {
		ancestry = "Unknown"
	}

	family := []string{"Yes", "No", "NA", ""}[g.rng.Intn(4)]

	ageDx := g.measurement(func() string { return fmt.Sprintf("%d", 35+g.rng.Intn(50)) })
	ageRec := g.measurement(func() string { return fmt.Sprintf("%d", 40+g.rng.Intn(45)) })

	iopRE := g.measurement(func() string { return fmt.Sprintf("%.1f", 10+g.rng.Float64()*35) })
	iopLE := g.measurement(func() string { return fmt.Sprintf("%.1f", 10+g.rng.Float64()*35) })
	iopMax := g.measurement(func() string { return fmt.Sprintf("%.1f", 15+g.rng.Float64()*30) })

	vcdrRE := g.measurement(g.vcdrCell)
	vcdrLE := g.measurement(g.vcdrCell)
	vcdrMax := g.measurement(func() string { return fmt.Sprintf("%.1f", 0.3+g.rng.Float64()*0.6) })

	return []string{
		fmt.Sprintf("FL-%04d", n), gender, ancestry, diagnosis, family,
		ageDx, ageRec, iopRE, iopLE, iopMax,
		ntgHTG, vcdrRE, vcdrLE, vcdrMax,
	}
}

// measurement applies the configured missing and sentinel rates to one cell.
func (g *WorkbookGenerator) measurement(value func() string) string {
	roll := g.rng.Float64()
	if roll < g.config.MissingRate {
		return ""
	}
	if roll < g.config.MissingRate+g.config.SentinelRate {
		return "x"
	}
	return value()
}

// vcdrCell produces a plain ratio most of the time and a range cell like
// "0.3-0.5" some of the time, matching how clinicians record cup-disc ratios.
func (g *WorkbookGenerator) vcdrCell() string {
	low := 0.2 + g.rng.Float64()*0.5
	if g.rng.Float64() < 0.2 {
		return fmt.Sprintf("%.1f-%.1f", low, low+0.2)
	}
	return fmt.Sprintf("%.1f", low)
}
