package analyzer

import (
	"context"
	"reflect"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"

	"github.com/vitebski/scriptdb/internal/connector"
	"github.com/vitebski/scriptdb/pkg/models"
)

func createTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress log output during tests
	return logger
}

func newMockAnalyzer(t *testing.T, dialect connector.Dialect, filter Filter) (*SchemaAnalyzer, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Error creating sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := createTestLogger()
	dc := &connector.DatabaseConnector{Dialect: dialect, Database: "deals", DB: db, Logger: logger}
	return NewSchemaAnalyzer(dc, "", filter, logger), mock
}

func TestNewSchemaAnalyzer(t *testing.T) {
	logger := createTestLogger()

	db := &connector.DatabaseConnector{Dialect: connector.SQLServer, Database: "deals", Logger: logger}
	analyzer := NewSchemaAnalyzer(db, "", Filter{}, logger)
	if analyzer.Schema != "dbo" {
		t.Errorf("Expected SQL Server schema to default to 'dbo', got '%s'", analyzer.Schema)
	}
	if analyzer.TableIndexMap == nil || analyzer.IndexTableMap == nil {
		t.Error("Expected index maps to be initialized")
	}

	db = &connector.DatabaseConnector{Dialect: connector.MySQL, Database: "deals", Logger: logger}
	analyzer = NewSchemaAnalyzer(db, "", Filter{}, logger)
	if analyzer.Schema != "deals" {
		t.Errorf("Expected MySQL schema to default to the database name, got '%s'", analyzer.Schema)
	}

	analyzer = NewSchemaAnalyzer(db, "sales", Filter{}, logger)
	if analyzer.Schema != "sales" {
		t.Errorf("Expected explicit schema 'sales', got '%s'", analyzer.Schema)
	}
}

func TestAnalyzeSchemaSQLServer(t *testing.T) {
	analyzer, mock := newMockAnalyzer(t, connector.SQLServer, Filter{})

	mock.ExpectQuery("FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = @p1 AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME").
		WithArgs("dbo").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("Widget"))

	mock.ExpectQuery("SELECT COLUMN_NAME AS column_name, DATA_TYPE AS data_type").
		WithArgs("dbo", "Widget").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable", "character_maximum_length", "numeric_precision", "numeric_scale"}).
			AddRow("WidgetID", "int", "NO", nil, 10, 0).
			AddRow("Name", "nvarchar", "NO", 50, nil, nil).
			AddRow("Price", "decimal", "YES", nil, 18, 2).
			AddRow("OwnerID", "int", "YES", nil, 10, 0))

	mock.ExpectQuery("FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu").
		WithArgs("dbo", "Widget", "PRIMARY KEY", "FOREIGN KEY").
		WillReturnRows(sqlmock.NewRows([]string{"constraint_name", "constraint_type", "column_name", "referenced_table"}).
			AddRow("FK_Widget_Owner", "FOREIGN KEY", "OwnerID", "Owner").
			AddRow("PK_Widget", "PRIMARY KEY", "WidgetID", nil))

	mock.ExpectQuery("COLUMNPROPERTY").
		WithArgs("dbo", "Widget").
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}).AddRow("WidgetID"))

	mock.ExpectQuery("FROM INFORMATION_SCHEMA.ROUTINES").
		WithArgs("dbo", "Set%").
		WillReturnRows(sqlmock.NewRows([]string{"routine_name"}).AddRow("SetWidget"))

	mock.ExpectQuery("FROM INFORMATION_SCHEMA.PARAMETERS").
		WithArgs("dbo", "SetWidget").
		WillReturnRows(sqlmock.NewRows([]string{"parameter_name", "data_type"}).
			AddRow("@WidgetID", "int").
			AddRow("@Name", "nvarchar"))

	mock.ExpectQuery("FROM INFORMATION_SCHEMA.ROUTINES").
		WithArgs("dbo", "Get%").
		WillReturnRows(sqlmock.NewRows([]string{"routine_name"}).AddRow("GetWidgetsList"))

	mock.ExpectQuery("FROM INFORMATION_SCHEMA.PARAMETERS").
		WithArgs("dbo", "GetWidgetsList").
		WillReturnRows(sqlmock.NewRows([]string{"parameter_name", "data_type"}).AddRow("@OwnerID", "int"))

	snapshot, err := analyzer.AnalyzeSchema(context.Background())
	if err != nil {
		t.Fatalf("AnalyzeSchema returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled expectations: %v", err)
	}

	if len(snapshot.Tables) != 1 {
		t.Fatalf("Expected 1 table, got %d", len(snapshot.Tables))
	}
	widget := snapshot.Tables[0]
	if widget.IdentityColumn != "WidgetID" {
		t.Errorf("Expected identity column WidgetID, got '%s'", widget.IdentityColumn)
	}
	if !reflect.DeepEqual(widget.PrimaryKeyColumns(), []string{"WidgetID"}) {
		t.Errorf("Unexpected primary key columns: %v", widget.PrimaryKeyColumns())
	}
	if len(widget.ForeignKeys) != 1 || widget.ForeignKeys[0].ReferencedTable != "Owner" {
		t.Errorf("Unexpected foreign keys: %+v", widget.ForeignKeys)
	}
	if widget.Columns[0].NumericPrecision != nil {
		t.Error("Expected precision to be dropped for int columns")
	}
	if widget.Columns[1].CharMaxLength == nil || *widget.Columns[1].CharMaxLength != 50 {
		t.Error("Expected nvarchar length 50 to be kept")
	}
	if widget.Columns[2].NumericScale == nil || *widget.Columns[2].NumericScale != 2 || !widget.Columns[2].IsNullable {
		t.Error("Expected nullable decimal with scale 2")
	}

	var names []string
	for _, r := range snapshot.Routines {
		names = append(names, r.Name)
	}
	if !reflect.DeepEqual(names, []string{"SetWidget", "GetWidgetsList"}) {
		t.Errorf("Expected set routines before get routines, got %v", names)
	}
	if snapshot.Routines[1].Parameters[0].Name != "@OwnerID" {
		t.Errorf("Unexpected parameter: %+v", snapshot.Routines[1].Parameters[0])
	}
	if analyzer.Snapshot != snapshot {
		t.Error("Expected the analyzer to keep the snapshot it returned")
	}
}

func TestAnalyzeSchemaMySQLFilters(t *testing.T) {
	analyzer, mock := newMockAnalyzer(t, connector.MySQL, Filter{TablePrefix: "Deal", Routine: "GetDeals"})

	mock.ExpectQuery("FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = . AND TABLE_TYPE = 'BASE TABLE' AND TABLE_NAME LIKE . ORDER BY TABLE_NAME").
		WithArgs("deals", "Deal%").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}))

	mock.ExpectQuery("FROM INFORMATION_SCHEMA.ROUTINES").
		WithArgs("deals", "Set%", "GetDeals").
		WillReturnRows(sqlmock.NewRows([]string{"routine_name"}))

	mock.ExpectQuery("FROM INFORMATION_SCHEMA.ROUTINES").
		WithArgs("deals", "Get%", "GetDeals").
		WillReturnRows(sqlmock.NewRows([]string{"routine_name"}).AddRow("GetDeals"))

	mock.ExpectQuery("FROM INFORMATION_SCHEMA.PARAMETERS").
		WithArgs("deals", "GetDeals").
		WillReturnRows(sqlmock.NewRows([]string{"parameter_name", "data_type"}).
			AddRow("DealerID", "int").
			AddRow(nil, "int"))

	snapshot, err := analyzer.AnalyzeSchema(context.Background())
	if err != nil {
		t.Fatalf("AnalyzeSchema returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled expectations: %v", err)
	}

	if len(snapshot.Tables) != 0 {
		t.Errorf("Expected no tables, got %d", len(snapshot.Tables))
	}
	if len(snapshot.Routines) != 1 || len(snapshot.Routines[0].Parameters) != 1 {
		t.Fatalf("Unexpected routines: %+v", snapshot.Routines)
	}
	if snapshot.Routines[0].Parameters[0].Name != "@DealerID" {
		t.Errorf("Expected the sigil to be added, got '%s'", snapshot.Routines[0].Parameters[0].Name)
	}
}

func TestAnalyzeSchemaQueryError(t *testing.T) {
	analyzer, mock := newMockAnalyzer(t, connector.SQLServer, Filter{Table: "Widget"})

	mock.ExpectQuery("FROM INFORMATION_SCHEMA.TABLES").
		WithArgs("dbo", "Widget").
		WillReturnError(context.DeadlineExceeded)

	if _, err := analyzer.AnalyzeSchema(context.Background()); err == nil {
		t.Error("Expected an error when the table query fails")
	}
}

func TestBuildTableKeepsUnresolvedConstraint(t *testing.T) {
	columns := []map[string]interface{}{
		{"column_name": "Code", "data_type": "varchar", "is_nullable": "NO", "character_maximum_length": int64(10)},
	}
	constraints := []map[string]interface{}{
		{"constraint_name": "PK_Deal", "constraint_type": "PRIMARY KEY", "column_name": "Code"},
		{"constraint_name": "PK_Deal", "constraint_type": "PRIMARY KEY", "column_name": "Ghost"},
	}

	table := BuildTable("Deal", columns, constraints, "")
	if !reflect.DeepEqual(table.PrimaryKeyColumns(), []string{"Code", "Ghost"}) {
		t.Errorf("Expected composite key in column order, got %v", table.PrimaryKeyColumns())
	}
	if table.IdentityColumn != "" {
		t.Errorf("Expected no identity column, got '%s'", table.IdentityColumn)
	}
	if err := table.Validate(); err == nil {
		t.Error("Expected the unresolved key column to fail validation")
	}
}

func TestSyncOrder(t *testing.T) {
	logger := createTestLogger()
	db := &connector.DatabaseConnector{Dialect: connector.SQLServer, Database: "deals", Logger: logger}
	analyzer := NewSchemaAnalyzer(db, "", Filter{}, logger)

	fk := func(name, column, referenced string) models.ConstraintDefinition {
		return models.ConstraintDefinition{Kind: models.ForeignKey, Name: name, Columns: []string{column}, ReferencedTable: referenced}
	}
	analyzer.Snapshot = &models.SchemaSnapshot{
		Tables: []models.TableDefinition{
			{Name: "Part", Columns: []models.ColumnDefinition{{Name: "WidgetID"}}, ForeignKeys: []models.ConstraintDefinition{fk("FK_Part_Widget", "WidgetID", "Widget")}},
			{Name: "Widget", Columns: []models.ColumnDefinition{{Name: "OwnerID", IsNullable: true}}, ForeignKeys: []models.ConstraintDefinition{fk("FK_Widget_Owner", "OwnerID", "Owner")}},
			{Name: "Owner", Columns: []models.ColumnDefinition{{Name: "OwnerID"}, {Name: "ParentOwnerID"}}, ForeignKeys: []models.ConstraintDefinition{fk("FK_Owner_Parent", "ParentOwnerID", "Owner")}},
			{Name: "A", Columns: []models.ColumnDefinition{{Name: "BID"}}, ForeignKeys: []models.ConstraintDefinition{fk("FK_A_B", "BID", "B")}},
			{Name: "B", Columns: []models.ColumnDefinition{{Name: "AID"}}, ForeignKeys: []models.ConstraintDefinition{fk("FK_B_A", "AID", "A")}},
		},
	}
	analyzer.buildDependencyGraph()

	if cost := analyzer.DependencyGraph.Cost(1, 2); cost != 2 {
		t.Errorf("Expected nullable foreign key edge to cost 2, got %d", cost)
	}
	if analyzer.DependencyGraph.Edge(2, 2) {
		t.Error("Expected self references to be left out of the graph")
	}

	order, circular := analyzer.SyncOrder()
	expected := []string{"Owner", "Widget", "Part", "A", "B"}
	if !reflect.DeepEqual(order, expected) {
		t.Errorf("Expected sync order %v, got %v", expected, order)
	}
	if !circular["A"] || !circular["B"] || circular["Owner"] {
		t.Errorf("Unexpected circular tables: %v", circular)
	}
	if !reflect.DeepEqual(analyzer.CircularGroups, [][]string{{"A", "B"}}) {
		t.Errorf("Unexpected circular groups: %v", analyzer.CircularGroups)
	}
}
