package sheet

// Grid is a worksheet as read from the workbook: raw cell text in row-major
// order, before any header binding or normalization.
type Grid struct {
	Sheet string
	Rows  [][]string
}

// NumRows returns the total row count, header included.
func (g *Grid) NumRows() int {
	return len(g.Rows)
}

// cell returns the raw cell text, tolerating rows that end before the bound
// columns.
func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
