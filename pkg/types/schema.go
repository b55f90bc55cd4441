package types

import "fmt"

// ColumnType is the logical type of a dataset column.
type ColumnType string

const (
	ColumnTypeString    ColumnType = "string"
	ColumnTypeLong      ColumnType = "long"
	ColumnTypeDouble    ColumnType = "double"
	ColumnTypeBoolean   ColumnType = "boolean"
	ColumnTypeTimestamp ColumnType = "timestamp"
)

// Valid reports whether t is one of the supported column types.
func (t ColumnType) Valid() bool {
	switch t {
	case ColumnTypeString, ColumnTypeLong, ColumnTypeDouble, ColumnTypeBoolean, ColumnTypeTimestamp:
		return true
	default:
		return false
	}
}

// Schema defines the structure of a dataset or table.
type Schema struct {
	// Columns defines the columns in source order
	Columns []ColumnDef `json:"columns"`
}

// ColumnDef defines a single column in the schema.
type ColumnDef struct {
	// Name is the column name as read from the header row
	Name string `json:"name"`

	// Type is the inferred logical type
	Type ColumnType `json:"type"`

	// Nullable indicates whether the column contains (or may contain) empty cells
	Nullable bool `json:"nullable"`
}

// Names returns the column names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Index returns the position of the named column, or -1.
func (s Schema) Index(name string) int {
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Validate checks that the schema has at least one column, unique non-empty
// names and known types.
func (s Schema) Validate() error {
	if len(s.Columns) == 0 {
		return fmt.Errorf("schema has no columns")
	}
	seen := make(map[string]struct{}, len(s.Columns))
	for i, c := range s.Columns {
		if c.Name == "" {
			return fmt.Errorf("column %d has an empty name", i)
		}
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("duplicate column name %q", c.Name)
		}
		seen[c.Name] = struct{}{}
		if !c.Type.Valid() {
			return fmt.Errorf("column %q has unsupported type %q", c.Name, c.Type)
		}
	}
	return nil
}
