// Package merge renders the table-valued type and the MERGE synchronization
// procedure for a table.
package merge

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vitebski/scriptdb/internal/fragment"
	"github.com/vitebski/scriptdb/pkg/models"
)

const (
	sourceAlias    = "source"
	targetAlias    = "target"
	sourceVariable = "@SourceTable"
	tableSuffix    = "Table"
	procPrefix     = "Set"
)

// Synthesizer renders merge artifacts for tables.
type Synthesizer struct {
	// AdditionalJoinColumns extend the primary key match when a table has them.
	AdditionalJoinColumns []string
	// SkipUpdateColumns are never assigned in the matched-row update (audit columns).
	SkipUpdateColumns []string
}

// NewSynthesizer creates a merge synthesizer
func NewSynthesizer(additionalJoinColumns, skipUpdateColumns []string) *Synthesizer {
	return &Synthesizer{
		AdditionalJoinColumns: additionalJoinColumns,
		SkipUpdateColumns:     skipUpdateColumns,
	}
}

// TypeName is the table-valued type declared for a table.
func TypeName(table string) string {
	return table + tableSuffix
}

// ProcedureName is the synchronization procedure declared for a table.
func ProcedureName(table string) string {
	return procPrefix + table
}

// SourceParameter is the table-valued parameter of every synchronization procedure.
func SourceParameter() string {
	return sourceVariable
}

// Synthesize returns the type declaration and merge procedure for a table.
// A table without primary key columns yields only an explanatory comment,
// alongside ErrMissingPrimaryKey.
func (s *Synthesizer) Synthesize(table *models.TableDefinition) ([]models.Fragment, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	if len(table.PrimaryKeyColumns()) == 0 {
		return []models.Fragment{{Stream: models.DataDefinition, Text: MissingKeyComment(table.Name)}},
			fmt.Errorf("%w: %s", models.ErrMissingPrimaryKey, table.Name)
	}

	typeText := s.TableType(table)
	upsertText, err := s.Upsert(table)
	if err != nil {
		return nil, err
	}
	return []models.Fragment{
		{Stream: models.DataDefinition, Text: typeText},
		{Stream: models.DataDefinition, Text: upsertText},
	}, nil
}

// MissingKeyComment is emitted in place of a merge procedure for keyless tables.
func MissingKeyComment(table string) string {
	return "-- Merge statement could not be written for " + table + " as it\n" +
		"-- contains no primary key columns for comparison in the 'on' statement.\n"
}

// ColumnDefinition renders one column of the table type. Primary key and
// identity columns are always NULL so rows for new records can omit them.
func ColumnDefinition(table *models.TableDefinition, col models.ColumnDefinition) string {
	nullClause := "NOT NULL"
	if col.IsNullable || table.IsPrimaryKey(col.Name) || table.IsIdentity(col.Name) {
		nullClause = "NULL"
	}
	return col.Name + " " + col.DataType + extendedTypeInformation(col) + " " + nullClause
}

func extendedTypeInformation(col models.ColumnDefinition) string {
	switch strings.ToLower(col.DataType) {
	case "nvarchar", "varchar", "nchar", "char", "varbinary", "binary":
		if col.CharMaxLength == nil {
			return ""
		}
		if *col.CharMaxLength == -1 {
			return "(max)"
		}
		return "(" + strconv.FormatInt(*col.CharMaxLength, 10) + ")"
	case "decimal", "numeric":
		if col.NumericPrecision == nil || col.NumericScale == nil {
			return ""
		}
		return fmt.Sprintf("(%d, %d)", *col.NumericPrecision, *col.NumericScale)
	default:
		return ""
	}
}

// TableType renders the create type statement for a table.
func (s *Synthesizer) TableType(table *models.TableDefinition) string {
	cols := fragment.NewList("\t", fragment.CommaNewLine)
	for _, col := range table.Columns {
		cols.Add(ColumnDefinition(table, col))
	}

	var b strings.Builder
	b.WriteString("\n-- Table type for: " + table.Name + "\n")
	b.WriteString("create type " + TypeName(table.Name) + " as table (\n")
	b.WriteString(cols.String())
	b.WriteString("\n)\ngo\n\n")
	return b.String()
}

// JoinColumns returns the columns matched in the merge 'on' clause: the
// primary key in key order, then every configured additional join column
// the table has and the key does not already cover. The identity column
// never joins: incoming rows carry it as NULL.
func (s *Synthesizer) JoinColumns(table *models.TableDefinition) []string {
	keys := table.PrimaryKeyColumns()
	joins := make([]string, 0, len(keys)+len(s.AdditionalJoinColumns))
	joins = append(joins, keys...)
	return append(joins, s.auxiliaryJoinColumns(table)...)
}

func (s *Synthesizer) auxiliaryJoinColumns(table *models.TableDefinition) []string {
	var aux []string
	for _, col := range s.AdditionalJoinColumns {
		if table.HasColumn(col) && !table.IsPrimaryKey(col) && !table.IsIdentity(col) && !contains(aux, col) {
			aux = append(aux, col)
		}
	}
	return aux
}

// JoinPredicate renders the 'on' clause terms, one per join column.
func (s *Synthesizer) JoinPredicate(table *models.TableDefinition) string {
	var b strings.Builder
	for i, col := range s.JoinColumns(table) {
		if i == 0 {
			b.WriteString("\t\ton ")
		} else {
			b.WriteString("\t\tand ")
		}
		b.WriteString(sourceAlias + "." + col + " = " + targetAlias + "." + col + "\n")
	}
	return b.String()
}

// UpdateColumns returns the columns assigned when a row matches.
func (s *Synthesizer) UpdateColumns(table *models.TableDefinition) []string {
	aux := s.auxiliaryJoinColumns(table)
	var cols []string
	for _, col := range table.Columns {
		if table.IsIdentity(col.Name) || contains(s.SkipUpdateColumns, col.Name) || contains(aux, col.Name) {
			continue
		}
		cols = append(cols, col.Name)
	}
	return cols
}

// InsertColumns returns the columns inserted for rows missing in the target.
func (s *Synthesizer) InsertColumns(table *models.TableDefinition) []string {
	var cols []string
	for _, col := range table.Columns {
		if table.IsIdentity(col.Name) {
			continue
		}
		cols = append(cols, col.Name)
	}
	return cols
}

// Upsert renders the merge procedure. Rows missing from the source are
// deleted from the target, so each call replaces the matching key space.
func (s *Synthesizer) Upsert(table *models.TableDefinition) (string, error) {
	if len(table.PrimaryKeyColumns()) == 0 {
		return "", fmt.Errorf("%w: %s", models.ErrMissingPrimaryKey, table.Name)
	}

	updates := fragment.NewList("\t\t", fragment.CommaNewLine)
	for _, col := range s.UpdateColumns(table) {
		updates.Add(col + " = " + sourceAlias + "." + col)
	}

	insertCols := fragment.NewList("\t\t\t", fragment.CommaNewLine)
	insertValues := fragment.NewList("\t\t\t", fragment.CommaNewLine)
	for _, col := range s.InsertColumns(table) {
		insertCols.Add(col)
		insertValues.Add(sourceAlias + "." + col)
	}

	var b strings.Builder
	b.WriteString("\n-- Merge statement for: " + table.Name + "\n")
	b.WriteString("create procedure " + ProcedureName(table.Name) + "\n")
	b.WriteString("\t" + sourceVariable + " " + TypeName(table.Name) + " readonly\n")
	b.WriteString("as\nbegin\n")
	b.WriteString("\tmerge " + table.Name + " as " + targetAlias + "\n")
	b.WriteString("\tusing " + sourceVariable + " as " + sourceAlias + "\n")
	b.WriteString(s.JoinPredicate(table))
	b.WriteString("\twhen matched then update set\n")
	b.WriteString(updates.String() + "\n")
	b.WriteString("\twhen not matched by target then\n")
	b.WriteString("\t\tinsert\n\t\t(\n" + insertCols.String() + "\n\t\t)\n")
	b.WriteString("\t\tvalues\n\t\t(\n" + insertValues.String() + "\n\t\t)\n")
	b.WriteString("\twhen not matched by source then delete;\n")
	b.WriteString("end;\ngo\n")
	return b.String(), nil
}

// Drops renders the statements removing a table's procedure and type.
func (s *Synthesizer) Drops(table *models.TableDefinition) string {
	return "\n\n-- Drops the table type and stored procedure for " + table.Name + "\n" +
		"drop procedure " + ProcedureName(table.Name) + ";\n" +
		"drop type " + TypeName(table.Name) + ";\n\n"
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
