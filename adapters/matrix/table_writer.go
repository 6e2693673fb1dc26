package matrix

import (
	"context"

	"phenotab/domain/rules"
	"phenotab/domain/sheet"
	"phenotab/ports"
)

// TableWriter implements the matrix writing port over tab-separated files.
type TableWriter struct{}

func NewTableWriter() ports.MatrixWriter {
	return &TableWriter{}
}

// WriteMatrices encodes the binary and quantitative tables for one processed
// worksheet and writes both under dir, plus the diagnostics report when any
// findings were recorded.
func (tw *TableWriter) WriteMatrices(ctx context.Context, sr *rules.SheetRules, res *sheet.Result, dir string) ([]string, error) {
	enc := NewEncoder(sr)

	tables := []*Table{enc.Binary(res), enc.Quantitative(res)}
	if res.HasDiagnostics() {
		tables = append(tables, enc.Diagnostics(res))
	}

	paths := make([]string, 0, len(tables))
	for _, tbl := range tables {
		path, err := WriteTSV(dir, tbl)
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
