package models

import "fmt"

// ColumnDefinition represents a table column as read from the catalog
type ColumnDefinition struct {
	Name             string
	DataType         string
	IsNullable       bool
	CharMaxLength    *int64
	NumericPrecision *int64
	NumericScale     *int64
}

// ConstraintKind is the kind of a key constraint
type ConstraintKind int

const (
	PrimaryKey ConstraintKind = iota
	ForeignKey
)

// String returns the catalog spelling of the constraint kind
func (k ConstraintKind) String() string {
	switch k {
	case PrimaryKey:
		return "PRIMARY KEY"
	case ForeignKey:
		return "FOREIGN KEY"
	default:
		return "UNKNOWN"
	}
}

// ConstraintDefinition represents a primary or foreign key over an ordered set of columns
type ConstraintDefinition struct {
	Kind            ConstraintKind
	Name            string
	Columns         []string
	ReferencedTable string
}

// TableDefinition represents a base table with its columns and key constraints
type TableDefinition struct {
	Name           string
	Columns        []ColumnDefinition
	PrimaryKey     *ConstraintDefinition
	ForeignKeys    []ConstraintDefinition
	IdentityColumn string
}

// Column returns the named column, or nil when the table has no such column
func (t *TableDefinition) Column(name string) *ColumnDefinition {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// HasColumn reports whether the table has a column with the given name
func (t *TableDefinition) HasColumn(name string) bool {
	return t.Column(name) != nil
}

// ColumnNames returns the column names in table order
func (t *TableDefinition) ColumnNames() []string {
	names := make([]string, 0, len(t.Columns))
	for _, col := range t.Columns {
		names = append(names, col.Name)
	}
	return names
}

// PrimaryKeyColumns returns the primary key columns in key order
func (t *TableDefinition) PrimaryKeyColumns() []string {
	if t.PrimaryKey == nil {
		return nil
	}
	return t.PrimaryKey.Columns
}

// IsPrimaryKey reports whether the column takes part in the primary key
func (t *TableDefinition) IsPrimaryKey(name string) bool {
	for _, col := range t.PrimaryKeyColumns() {
		if col == name {
			return true
		}
	}
	return false
}

// IsIdentity reports whether the column is the table's auto-generated column
func (t *TableDefinition) IsIdentity(name string) bool {
	return t.IdentityColumn != "" && t.IdentityColumn == name
}

// Validate checks that every constraint column belongs to the table
func (t *TableDefinition) Validate() error {
	constraints := t.ForeignKeys
	if t.PrimaryKey != nil {
		constraints = append([]ConstraintDefinition{*t.PrimaryKey}, constraints...)
	}
	for _, constraint := range constraints {
		for _, col := range constraint.Columns {
			if !t.HasColumn(col) {
				return fmt.Errorf("%w: %s %s names column %s", ErrUnresolvedConstraintColumn, constraint.Kind, constraint.Name, col)
			}
		}
	}
	return nil
}

// ParameterDefinition represents an input parameter of a stored routine
type ParameterDefinition struct {
	Name     string
	DataType string
}

// RoutineDefinition represents a stored procedure and its input parameters
type RoutineDefinition struct {
	Name       string
	Parameters []ParameterDefinition
}

// SchemaSnapshot is the read-only catalog view a generation run works from
type SchemaSnapshot struct {
	Schema   string
	Tables   []TableDefinition
	Routines []RoutineDefinition
}

// Table returns the named table, or nil when it is not part of the snapshot
func (s *SchemaSnapshot) Table(name string) *TableDefinition {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i]
		}
	}
	return nil
}

// TableNames returns the table names in catalog order
func (s *SchemaSnapshot) TableNames() []string {
	names := make([]string, 0, len(s.Tables))
	for _, table := range s.Tables {
		names = append(names, table.Name)
	}
	return names
}

// Stream identifies one of the generated output streams
type Stream int

const (
	DataDefinition Stream = iota
	DataAccess
	Controller
	Samples
)

// Streams lists every output stream in write order
var Streams = []Stream{DataDefinition, DataAccess, Controller, Samples}

// String returns a short name for the stream
func (s Stream) String() string {
	switch s {
	case DataDefinition:
		return "data-definition"
	case DataAccess:
		return "data-access"
	case Controller:
		return "controller"
	case Samples:
		return "samples"
	default:
		return "unknown"
	}
}

// Fragment is a piece of generated text bound for one stream
type Fragment struct {
	Stream Stream
	Text   string
}

// GenerationSummary represents the outcome of a generation run
type GenerationSummary struct {
	Tables           int
	Routines         int
	SuccessfulTables []string
	FailedTables     []string
	FailedRoutines   []string
	SkippedTables    []string
}
