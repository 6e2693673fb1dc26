package matrix

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"phenotab/internal/errors"
)

// Filename returns the on-disk name for a table, "<dataset>_<sheet>_<kind>.txt".
func Filename(tbl *Table) string {
	return tbl.Name + ".txt"
}

// WriteTSV writes a table tab-separated under dir and returns the full path.
func WriteTSV(dir string, tbl *Table) (string, error) {
	path := filepath.Join(dir, Filename(tbl))
	f, err := os.Create(path)
	if err != nil {
		return "", errors.OutputError(fmt.Sprintf("failed to create matrix file: %s", path), err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = '\t'

	if err := w.Write(tbl.Header); err != nil {
		return "", errors.OutputError(fmt.Sprintf("failed to write matrix header: %s", path), err)
	}
	for _, row := range tbl.Rows {
		if err := w.Write(row); err != nil {
			return "", errors.OutputError(fmt.Sprintf("failed to write matrix row: %s", path), err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", errors.OutputError(fmt.Sprintf("failed to flush matrix file: %s", path), err)
	}

	log.Printf("[Matrix] Wrote %d rows to %s", len(tbl.Rows), path)
	return path, nil
}
