package record

// CleanRow is one normalized worksheet row: the source row number plus one
// typed value per canonical column. Column order is not stored here; the
// rule set's qualified-column order defines it at output time.
type CleanRow struct {
	Row    int              `json:"row"`
	Values map[string]Value `json:"values"`
}

// NewCleanRow allocates a clean row for the given worksheet row number.
func NewCleanRow(row int) CleanRow {
	return CleanRow{Row: row, Values: make(map[string]Value)}
}

// Get returns the value for a canonical column and whether it is present.
func (r CleanRow) Get(column string) (Value, bool) {
	v, ok := r.Values[column]
	return v, ok
}

// Set stores the value for a canonical column.
func (r CleanRow) Set(column string, v Value) {
	r.Values[column] = v
}
