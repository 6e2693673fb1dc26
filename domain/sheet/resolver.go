package sheet

import (
	"fmt"
	"strings"

	"phenotab/domain/rules"
)

// SchemaError reports a worksheet whose physical layout cannot be bound to
// the configured rules. It rejects the entire worksheet before any row is
// processed.
type SchemaError struct {
	Sheet  string
	Column string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("schema: worksheet %q column %q: %s", e.Sheet, e.Column, e.Reason)
	}
	return fmt.Sprintf("schema: worksheet %q: %s", e.Sheet, e.Reason)
}

// Binding maps physical worksheet columns to canonical column names. It is
// produced once per worksheet and shared by every row. A Binding always
// covers every qualified column; worksheets that cannot are rejected.
type Binding struct {
	Sheet string

	// DataStart is the grid index of the first data row (1 when a header row
	// was consumed, 0 otherwise).
	DataStart int

	names  []string
	byName map[string]int
}

// Index returns the physical column index bound to a canonical name.
func (b *Binding) Index(name string) (int, bool) {
	idx, ok := b.byName[name]
	return idx, ok
}

// BoundColumns returns the canonical names bound to physical columns, in
// physical order. Ignored and unrecognized-blank columns are elided.
func (b *Binding) BoundColumns() []string {
	out := make([]string, 0, len(b.byName))
	for _, name := range b.names {
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}

// Resolve binds a grid's columns to canonical names under the worksheet's
// rules. With a header row, cells are trimmed, ignored names are dropped,
// renames are applied, and any surviving name that is not qualified rejects
// the worksheet, as does a qualified column with no source column at all.
// Without a header row the qualified columns bind by position.
func Resolve(sr *rules.SheetRules, grid *Grid) (*Binding, error) {
	b := &Binding{
		Sheet:  grid.Sheet,
		byName: make(map[string]int),
	}

	if !sr.HasHeaderRow {
		b.names = make([]string, len(sr.QualifiedColumns))
		for i, name := range sr.QualifiedColumns {
			b.names[i] = name
			b.byName[name] = i
		}
		return b, nil
	}

	if len(grid.Rows) == 0 {
		return nil, &SchemaError{Sheet: grid.Sheet, Reason: "worksheet is empty, expected a header row"}
	}
	b.DataStart = 1

	header := grid.Rows[0]
	b.names = make([]string, len(header))
	for i, raw := range header {
		name := strings.TrimSpace(raw)
		if name == "" || sr.Ignored[name] {
			continue
		}
		canonical := name
		if target, ok := sr.RenameMap[name]; ok {
			canonical = target
		}
		if !sr.IsQualifiedColumn(canonical) {
			return nil, &SchemaError{Sheet: grid.Sheet, Column: name, Reason: "column is not qualified for this worksheet"}
		}
		if _, dup := b.byName[canonical]; dup {
			return nil, &SchemaError{Sheet: grid.Sheet, Column: canonical, Reason: "column is bound more than once"}
		}
		b.names[i] = canonical
		b.byName[canonical] = i
	}

	for _, name := range sr.QualifiedColumns {
		if _, ok := b.byName[name]; !ok {
			return nil, &SchemaError{Sheet: grid.Sheet, Column: name, Reason: "worksheet has no source for this qualified column"}
		}
	}
	return b, nil
}
