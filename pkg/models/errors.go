package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for per-entity synthesis failures.
var (
	// ErrUnsupportedType is returned when a catalog type has no mapping.
	ErrUnsupportedType = errors.New("unsupported catalog type")

	// ErrMissingPrimaryKey is returned when a table has no primary key columns.
	// The table still gets a comment block in the data-definition stream.
	ErrMissingPrimaryKey = errors.New("table has no primary key")

	// ErrUnresolvedConstraintColumn is returned when a constraint names a
	// column that is not part of its table.
	ErrUnresolvedConstraintColumn = errors.New("constraint references unknown column")

	// ErrUnclassifiedRoutine is returned for routines whose name starts with
	// neither the get nor the set verb.
	ErrUnclassifiedRoutine = errors.New("routine verb is neither get nor set")
)

// EntityKind tells whether an EntityError belongs to a table or a routine
type EntityKind string

const (
	TableEntity   EntityKind = "table"
	RoutineEntity EntityKind = "routine"
)

// EntityError is a synthesis failure isolated to one table or routine.
type EntityError struct {
	Kind   EntityKind
	Entity string
	Err    error
}

// Error returns the error string.
func (e *EntityError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Entity, e.Err)
}

// Unwrap returns the underlying error so errors.Is can match sentinels.
func (e *EntityError) Unwrap() error {
	return e.Err
}

// Recoverable reports whether the failure still produced user-visible output.
func (e *EntityError) Recoverable() bool {
	return errors.Is(e.Err, ErrMissingPrimaryKey)
}

// NewTableError wraps err as a failure of the named table.
func NewTableError(table string, err error) *EntityError {
	return &EntityError{Kind: TableEntity, Entity: table, Err: err}
}

// NewRoutineError wraps err as a failure of the named routine.
func NewRoutineError(routine string, err error) *EntityError {
	return &EntityError{Kind: RoutineEntity, Entity: routine, Err: err}
}
