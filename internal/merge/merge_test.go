package merge

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitebski/scriptdb/pkg/models"
)

func int64Ptr(v int64) *int64 { return &v }

func widgetTable() *models.TableDefinition {
	return &models.TableDefinition{
		Name: "Widget",
		Columns: []models.ColumnDefinition{
			{Name: "WidgetID", DataType: "int"},
			{Name: "Name", DataType: "nvarchar", CharMaxLength: int64Ptr(50)},
			{Name: "CreatedBy", DataType: "nvarchar", CharMaxLength: int64Ptr(50)},
		},
		PrimaryKey:     &models.ConstraintDefinition{Kind: models.PrimaryKey, Name: "PK_Widget", Columns: []string{"WidgetID"}},
		IdentityColumn: "WidgetID",
	}
}

func TestUpsertWidgetScenario(t *testing.T) {
	s := NewSynthesizer(nil, []string{"CreatedBy"})

	out, err := s.Upsert(widgetTable())
	require.NoError(t, err)

	expected := "\n-- Merge statement for: Widget\n" +
		"create procedure SetWidget\n" +
		"\t@SourceTable WidgetTable readonly\n" +
		"as\nbegin\n" +
		"\tmerge Widget as target\n" +
		"\tusing @SourceTable as source\n" +
		"\t\ton source.WidgetID = target.WidgetID\n" +
		"\twhen matched then update set\n" +
		"\t\tName = source.Name\n" +
		"\twhen not matched by target then\n" +
		"\t\tinsert\n\t\t(\n" +
		"\t\t\tName,\n" +
		"\t\t\tCreatedBy\n" +
		"\t\t)\n" +
		"\t\tvalues\n\t\t(\n" +
		"\t\t\tsource.Name,\n" +
		"\t\t\tsource.CreatedBy\n" +
		"\t\t)\n" +
		"\twhen not matched by source then delete;\n" +
		"end;\ngo\n"
	assert.Equal(t, expected, out)

	assert.Equal(t, []string{"Name"}, s.UpdateColumns(widgetTable()))
	assert.Equal(t, []string{"Name", "CreatedBy"}, s.InsertColumns(widgetTable()))
}

func TestTableTypeWidget(t *testing.T) {
	s := NewSynthesizer(nil, nil)

	expected := "\n-- Table type for: Widget\n" +
		"create type WidgetTable as table (\n" +
		"\tWidgetID int NULL,\n" +
		"\tName nvarchar(50) NOT NULL,\n" +
		"\tCreatedBy nvarchar(50) NOT NULL\n" +
		")\ngo\n\n"
	assert.Equal(t, expected, s.TableType(widgetTable()))
}

func TestColumnDefinition(t *testing.T) {
	table := &models.TableDefinition{
		Name: "Deal",
		Columns: []models.ColumnDefinition{
			{Name: "DealCode", DataType: "varchar", CharMaxLength: int64Ptr(10)},
			{Name: "Notes", DataType: "nvarchar", CharMaxLength: int64Ptr(-1), IsNullable: true},
			{Name: "Amount", DataType: "decimal", NumericPrecision: int64Ptr(18), NumericScale: int64Ptr(2)},
			{Name: "RowID", DataType: "int"},
			{Name: "Closed", DataType: "bit"},
		},
		PrimaryKey:     &models.ConstraintDefinition{Kind: models.PrimaryKey, Columns: []string{"DealCode"}},
		IdentityColumn: "RowID",
	}

	tests := []struct {
		col      int
		expected string
	}{
		{0, "DealCode varchar(10) NULL"},
		{1, "Notes nvarchar(max) NULL"},
		{2, "Amount decimal(18, 2) NOT NULL"},
		{3, "RowID int NULL"},
		{4, "Closed bit NOT NULL"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, ColumnDefinition(table, table.Columns[tt.col]))
	}
}

func TestSynthesizeMissingPrimaryKey(t *testing.T) {
	s := NewSynthesizer(nil, nil)
	table := &models.TableDefinition{
		Name:    "AuditLog",
		Columns: []models.ColumnDefinition{{Name: "Message", DataType: "nvarchar"}},
	}

	fragments, err := s.Synthesize(table)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrMissingPrimaryKey))
	require.Len(t, fragments, 1)
	assert.Equal(t, models.DataDefinition, fragments[0].Stream)
	assert.True(t, strings.HasPrefix(fragments[0].Text, "-- Merge statement could not be written for AuditLog"))
	assert.NotContains(t, fragments[0].Text, "create type")
	assert.NotContains(t, fragments[0].Text, "create procedure")

	table.PrimaryKey = &models.ConstraintDefinition{Kind: models.PrimaryKey}
	fragments, err = s.Synthesize(table)
	assert.True(t, errors.Is(err, models.ErrMissingPrimaryKey))
	assert.Len(t, fragments, 1)
}

func TestSynthesizeUnresolvedConstraintColumn(t *testing.T) {
	s := NewSynthesizer(nil, nil)
	table := widgetTable()
	table.PrimaryKey = &models.ConstraintDefinition{Kind: models.PrimaryKey, Columns: []string{"GhostID"}}

	fragments, err := s.Synthesize(table)
	assert.True(t, errors.Is(err, models.ErrUnresolvedConstraintColumn))
	assert.Empty(t, fragments)
}

func TestSynthesizeEmitsTypeThenProcedure(t *testing.T) {
	s := NewSynthesizer(nil, nil)

	fragments, err := s.Synthesize(widgetTable())
	require.NoError(t, err)
	require.Len(t, fragments, 2)
	assert.Contains(t, fragments[0].Text, "create type WidgetTable as table (")
	assert.Contains(t, fragments[1].Text, "create procedure SetWidget")
}

func TestJoinPredicateTerms(t *testing.T) {
	table := &models.TableDefinition{
		Name: "TransactionSecurity",
		Columns: []models.ColumnDefinition{
			{Name: "RowID", DataType: "int"},
			{Name: "TransactionID", DataType: "int"},
			{Name: "SecurityID", DataType: "int"},
			{Name: "SecurityFacilityID", DataType: "int"},
			{Name: "Amount", DataType: "decimal"},
		},
		PrimaryKey:     &models.ConstraintDefinition{Kind: models.PrimaryKey, Columns: []string{"TransactionID", "SecurityID"}},
		IdentityColumn: "RowID",
	}

	tests := []struct {
		name      string
		aux       []string
		wantJoins []string
	}{
		{"key only", nil, []string{"TransactionID", "SecurityID"}},
		{"aux not on table", []string{"Missing"}, []string{"TransactionID", "SecurityID"}},
		{"aux already in key", []string{"TransactionID"}, []string{"TransactionID", "SecurityID"}},
		{"aux appended in list order", []string{"SecurityFacilityID", "Amount"}, []string{"TransactionID", "SecurityID", "SecurityFacilityID", "Amount"}},
		{"aux naming the identity column", []string{"RowID"}, []string{"TransactionID", "SecurityID"}},
		{"identity skipped among other aux", []string{"RowID", "Amount"}, []string{"TransactionID", "SecurityID", "Amount"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSynthesizer(tt.aux, nil)
			assert.Equal(t, tt.wantJoins, s.JoinColumns(table))

			predicate := s.JoinPredicate(table)
			assert.Equal(t, 1, strings.Count(predicate, "\t\ton "))
			assert.Equal(t, len(tt.wantJoins)-1, strings.Count(predicate, "\t\tand "))
			assert.NotContains(t, predicate, "RowID")
			for _, col := range tt.wantJoins {
				assert.Contains(t, predicate, "source."+col+" = target."+col)
			}
		})
	}
}

func TestAuxiliaryJoinColumnsLeaveUpdateClause(t *testing.T) {
	table := &models.TableDefinition{
		Name: "TransactionNote",
		Columns: []models.ColumnDefinition{
			{Name: "NoteID", DataType: "int"},
			{Name: "TransactionID", DataType: "int"},
			{Name: "Note", DataType: "nvarchar"},
			{Name: "CreatedDatetime", DataType: "datetime"},
		},
		PrimaryKey:     &models.ConstraintDefinition{Kind: models.PrimaryKey, Columns: []string{"NoteID"}},
		IdentityColumn: "NoteID",
	}
	s := NewSynthesizer([]string{"TransactionID"}, []string{"CreatedBy", "CreatedDatetime"})

	assert.Equal(t, []string{"Note"}, s.UpdateColumns(table))
	assert.Equal(t, []string{"TransactionID", "Note", "CreatedDatetime"}, s.InsertColumns(table))
}

func TestIdentityNeverInGeneratedLists(t *testing.T) {
	s := NewSynthesizer(nil, nil)
	table := widgetTable()

	assert.NotContains(t, s.UpdateColumns(table), "WidgetID")
	assert.NotContains(t, s.InsertColumns(table), "WidgetID")
	assert.Contains(t, s.TableType(table), "WidgetID int NULL")
}

func TestUpsertEmptyUpdateList(t *testing.T) {
	table := &models.TableDefinition{
		Name:       "WidgetTag",
		Columns:    []models.ColumnDefinition{{Name: "WidgetID", DataType: "int"}, {Name: "Tag", DataType: "varchar"}},
		PrimaryKey: &models.ConstraintDefinition{Kind: models.PrimaryKey, Columns: []string{"WidgetID", "Tag"}},
	}
	s := NewSynthesizer(nil, []string{"WidgetID", "Tag"})

	out, err := s.Upsert(table)
	require.NoError(t, err)
	assert.Contains(t, out, "\twhen matched then update set\n\n\twhen not matched by target then\n")
}

func TestDrops(t *testing.T) {
	s := NewSynthesizer(nil, nil)

	out := s.Drops(widgetTable())
	assert.Contains(t, out, "drop procedure SetWidget;\n")
	assert.Contains(t, out, "drop type WidgetTable;\n")
}

func TestSynthesizeDeterministic(t *testing.T) {
	s := NewSynthesizer([]string{"Name"}, []string{"CreatedBy"})

	first, err := s.Synthesize(widgetTable())
	require.NoError(t, err)
	second, err := s.Synthesize(widgetTable())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
