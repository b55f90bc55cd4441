// Package types provides core data types for lakeingest.
package types

// Value is a single typed cell. It holds one of string, int64, float64, bool,
// time.Time, or nil for an empty cell.
type Value = any

// Row is an ordered set of values positioned by the dataset schema.
type Row []Value

// Dataset is an in-memory table loaded once per run and never mutated.
type Dataset struct {
	// Schema is inferred once from the source file
	Schema Schema `json:"schema"`

	// Rows holds the data rows in source order
	Rows []Row `json:"rows"`
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// Validate checks the schema and that every row is as wide as the schema.
func (d *Dataset) Validate() error {
	if err := d.Schema.Validate(); err != nil {
		return err
	}
	width := len(d.Schema.Columns)
	for _, r := range d.Rows {
		if len(r) != width {
			return ErrRaggedRow
		}
	}
	return nil
}
