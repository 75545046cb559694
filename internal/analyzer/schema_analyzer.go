package analyzer

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/sirupsen/logrus"
	"github.com/yourbasic/graph"

	"github.com/vitebski/scriptdb/internal/connector"
	"github.com/vitebski/scriptdb/internal/naming"
	"github.com/vitebski/scriptdb/pkg/models"
)

// Filter narrows the catalog objects read by the analyzer
type Filter struct {
	Table       string
	TablePrefix string
	Routine     string
}

// SchemaAnalyzer reads the catalog into a schema snapshot and tracks
// foreign key dependencies between its tables
type SchemaAnalyzer struct {
	DB              *connector.DatabaseConnector
	Schema          string
	Filter          Filter
	Snapshot        *models.SchemaSnapshot
	DependencyGraph *graph.Mutable
	TableIndexMap   map[string]int
	IndexTableMap   map[int]string
	CircularGroups  [][]string
	Logger          *logrus.Logger
}

// NewSchemaAnalyzer creates a new schema analyzer
func NewSchemaAnalyzer(db *connector.DatabaseConnector, schema string, filter Filter, logger *logrus.Logger) *SchemaAnalyzer {
	if schema == "" {
		schema = db.Dialect.DefaultSchema(db.Database)
	}
	return &SchemaAnalyzer{
		DB:            db,
		Schema:        schema,
		Filter:        filter,
		TableIndexMap: make(map[string]int),
		IndexTableMap: make(map[int]string),
		Logger:        logger,
	}
}

func (sa *SchemaAnalyzer) builder() sq.StatementBuilderType {
	if sa.DB.Dialect == connector.MySQL {
		return sq.StatementBuilder.PlaceholderFormat(sq.Question)
	}
	return sq.StatementBuilder.PlaceholderFormat(sq.AtP)
}

func (sa *SchemaAnalyzer) query(ctx context.Context, b sq.Sqlizer) ([]map[string]interface{}, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building catalog query: %w", err)
	}
	return sa.DB.ExecuteQuery(ctx, query, args...)
}

// AnalyzeSchema reads tables, constraints, routines and parameters into a snapshot
func (sa *SchemaAnalyzer) AnalyzeSchema(ctx context.Context) (*models.SchemaSnapshot, error) {
	snapshot := &models.SchemaSnapshot{Schema: sa.Schema}

	tableNames, err := sa.tableNames(ctx)
	if err != nil {
		sa.Logger.Errorf("Error getting tables: %v", err)
		return nil, err
	}

	for _, name := range tableNames {
		table, err := sa.readTable(ctx, name)
		if err != nil {
			sa.Logger.Errorf("Error reading table %s: %v", name, err)
			return nil, err
		}
		snapshot.Tables = append(snapshot.Tables, table)
	}

	// Set routines come first, then get routines, each ordered by name
	for _, prefix := range []string{"Set", "Get"} {
		routineNames, err := sa.routineNames(ctx, prefix)
		if err != nil {
			sa.Logger.Errorf("Error getting %s routines: %v", prefix, err)
			return nil, err
		}
		for _, name := range routineNames {
			paramRows, err := sa.query(ctx, sa.parametersQuery(name))
			if err != nil {
				sa.Logger.Errorf("Error getting parameters for routine %s: %v", name, err)
				return nil, err
			}
			snapshot.Routines = append(snapshot.Routines, BuildRoutine(name, paramRows))
		}
	}

	sa.Snapshot = snapshot
	sa.buildDependencyGraph()

	sa.Logger.Infof("Read %d tables and %d routines from schema %s", len(snapshot.Tables), len(snapshot.Routines), sa.Schema)
	return snapshot, nil
}

func (sa *SchemaAnalyzer) tableNames(ctx context.Context) ([]string, error) {
	q := sa.builder().
		Select("TABLE_NAME AS table_name").
		From("INFORMATION_SCHEMA.TABLES").
		Where(sq.Eq{"TABLE_SCHEMA": sa.Schema}).
		Where("TABLE_TYPE = 'BASE TABLE'")
	if sa.Filter.Table != "" {
		q = q.Where(sq.Eq{"TABLE_NAME": sa.Filter.Table})
	} else if sa.Filter.TablePrefix != "" {
		q = q.Where(sq.Like{"TABLE_NAME": sa.Filter.TablePrefix + "%"})
	}
	rows, err := sa.query(ctx, q.OrderBy("TABLE_NAME"))
	if err != nil {
		return nil, err
	}
	return columnValues(rows, "table_name"), nil
}

func (sa *SchemaAnalyzer) readTable(ctx context.Context, name string) (models.TableDefinition, error) {
	columnRows, err := sa.query(ctx, sa.columnsQuery(name))
	if err != nil {
		return models.TableDefinition{}, fmt.Errorf("columns: %w", err)
	}
	constraintRows, err := sa.query(ctx, sa.constraintsQuery(name))
	if err != nil {
		return models.TableDefinition{}, fmt.Errorf("constraints: %w", err)
	}
	identityRows, err := sa.query(ctx, sa.identityQuery(name))
	if err != nil {
		return models.TableDefinition{}, fmt.Errorf("identity column: %w", err)
	}

	identity := ""
	if names := columnValues(identityRows, "column_name"); len(names) > 0 {
		identity = names[0]
	}

	table := BuildTable(name, columnRows, constraintRows, identity)
	if err := table.Validate(); err != nil {
		sa.Logger.Warningf("Table %s has an inconsistent constraint: %v", name, err)
	}
	return table, nil
}

func (sa *SchemaAnalyzer) columnsQuery(table string) sq.SelectBuilder {
	return sa.builder().
		Select(
			"COLUMN_NAME AS column_name",
			"DATA_TYPE AS data_type",
			"IS_NULLABLE AS is_nullable",
			"CHARACTER_MAXIMUM_LENGTH AS character_maximum_length",
			"NUMERIC_PRECISION AS numeric_precision",
			"NUMERIC_SCALE AS numeric_scale",
		).
		From("INFORMATION_SCHEMA.COLUMNS").
		Where(sq.Eq{"TABLE_SCHEMA": sa.Schema}).
		Where(sq.Eq{"TABLE_NAME": table}).
		OrderBy("ORDINAL_POSITION")
}

// constraintsQuery lists primary and foreign key columns in key order. The
// referenced table comes straight from KEY_COLUMN_USAGE on MySQL and through
// the referenced unique constraint on SQL Server.
func (sa *SchemaAnalyzer) constraintsQuery(table string) sq.SelectBuilder {
	referenced := "rtc.TABLE_NAME AS referenced_table"
	if sa.DB.Dialect == connector.MySQL {
		referenced = "kcu.REFERENCED_TABLE_NAME AS referenced_table"
	}

	q := sa.builder().
		Select(
			"tc.CONSTRAINT_NAME AS constraint_name",
			"tc.CONSTRAINT_TYPE AS constraint_type",
			"kcu.COLUMN_NAME AS column_name",
			referenced,
		).
		From("INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc").
		Join("INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu ON tc.CONSTRAINT_SCHEMA = kcu.CONSTRAINT_SCHEMA" +
			" AND tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME AND tc.TABLE_NAME = kcu.TABLE_NAME")
	if sa.DB.Dialect != connector.MySQL {
		q = q.
			LeftJoin("INFORMATION_SCHEMA.REFERENTIAL_CONSTRAINTS rc ON rc.CONSTRAINT_SCHEMA = tc.CONSTRAINT_SCHEMA" +
				" AND rc.CONSTRAINT_NAME = tc.CONSTRAINT_NAME").
			LeftJoin("INFORMATION_SCHEMA.TABLE_CONSTRAINTS rtc ON rtc.CONSTRAINT_SCHEMA = rc.UNIQUE_CONSTRAINT_SCHEMA" +
				" AND rtc.CONSTRAINT_NAME = rc.UNIQUE_CONSTRAINT_NAME")
	}
	return q.
		Where(sq.Eq{"tc.TABLE_SCHEMA": sa.Schema}).
		Where(sq.Eq{"tc.TABLE_NAME": table}).
		Where(sq.Eq{"tc.CONSTRAINT_TYPE": []string{models.PrimaryKey.String(), models.ForeignKey.String()}}).
		OrderBy("tc.CONSTRAINT_NAME", "kcu.ORDINAL_POSITION")
}

func (sa *SchemaAnalyzer) identityQuery(table string) sq.SelectBuilder {
	q := sa.builder().
		Select("COLUMN_NAME AS column_name").
		From("INFORMATION_SCHEMA.COLUMNS").
		Where(sq.Eq{"TABLE_SCHEMA": sa.Schema}).
		Where(sq.Eq{"TABLE_NAME": table})
	if sa.DB.Dialect == connector.MySQL {
		return q.Where("EXTRA LIKE '%auto_increment%'")
	}
	return q.Where("COLUMNPROPERTY(OBJECT_ID(TABLE_SCHEMA + '.' + TABLE_NAME), COLUMN_NAME, 'IsIdentity') = 1")
}

func (sa *SchemaAnalyzer) routineNames(ctx context.Context, prefix string) ([]string, error) {
	q := sa.builder().
		Select("ROUTINE_NAME AS routine_name").
		From("INFORMATION_SCHEMA.ROUTINES").
		Where(sq.Eq{"ROUTINE_SCHEMA": sa.Schema}).
		Where("ROUTINE_TYPE = 'PROCEDURE'").
		Where(sq.Like{"ROUTINE_NAME": prefix + "%"})
	if sa.Filter.Routine != "" {
		q = q.Where(sq.Eq{"ROUTINE_NAME": sa.Filter.Routine})
	}
	rows, err := sa.query(ctx, q.OrderBy("ROUTINE_NAME"))
	if err != nil {
		return nil, err
	}
	return columnValues(rows, "routine_name"), nil
}

func (sa *SchemaAnalyzer) parametersQuery(routine string) sq.SelectBuilder {
	return sa.builder().
		Select("PARAMETER_NAME AS parameter_name", "DATA_TYPE AS data_type").
		From("INFORMATION_SCHEMA.PARAMETERS").
		Where(sq.Eq{"SPECIFIC_SCHEMA": sa.Schema}).
		Where(sq.Eq{"SPECIFIC_NAME": routine}).
		Where("PARAMETER_MODE = 'IN'").
		OrderBy("ORDINAL_POSITION")
}

// BuildTable turns raw catalog rows into a table definition. Length is kept
// for string types only and precision/scale for exact numerics only.
func BuildTable(name string, columnRows, constraintRows []map[string]interface{}, identity string) models.TableDefinition {
	table := models.TableDefinition{Name: name, IdentityColumn: identity}

	for _, row := range columnRows {
		col := models.ColumnDefinition{
			Name:       stringValue(row["column_name"]),
			DataType:   stringValue(row["data_type"]),
			IsNullable: strings.EqualFold(stringValue(row["is_nullable"]), "YES"),
		}
		switch strings.ToLower(col.DataType) {
		case "char", "varchar", "nchar", "nvarchar", "binary", "varbinary", "text", "ntext":
			col.CharMaxLength = int64Value(row["character_maximum_length"])
		case "decimal", "numeric":
			col.NumericPrecision = int64Value(row["numeric_precision"])
			col.NumericScale = int64Value(row["numeric_scale"])
		}
		table.Columns = append(table.Columns, col)
	}

	// Rows arrive grouped by constraint name, in key column order
	var current *models.ConstraintDefinition
	flush := func() {
		if current == nil {
			return
		}
		if current.Kind == models.PrimaryKey {
			pk := *current
			table.PrimaryKey = &pk
		} else {
			table.ForeignKeys = append(table.ForeignKeys, *current)
		}
		current = nil
	}
	for _, row := range constraintRows {
		constraintName := stringValue(row["constraint_name"])
		if current == nil || current.Name != constraintName {
			flush()
			kind := models.ForeignKey
			if stringValue(row["constraint_type"]) == models.PrimaryKey.String() {
				kind = models.PrimaryKey
			}
			current = &models.ConstraintDefinition{
				Kind:            kind,
				Name:            constraintName,
				ReferencedTable: stringValue(row["referenced_table"]),
			}
		}
		current.Columns = append(current.Columns, stringValue(row["column_name"]))
	}
	flush()

	return table
}

// BuildRoutine turns raw parameter rows into a routine definition
func BuildRoutine(name string, paramRows []map[string]interface{}) models.RoutineDefinition {
	routine := models.RoutineDefinition{Name: name}
	for _, row := range paramRows {
		paramName := stringValue(row["parameter_name"])
		if paramName == "" {
			continue
		}
		routine.Parameters = append(routine.Parameters, models.ParameterDefinition{
			Name:     naming.ToCatalogParameter(paramName),
			DataType: stringValue(row["data_type"]),
		})
	}
	return routine
}

// buildDependencyGraph adds an edge from every table to each table it references
func (sa *SchemaAnalyzer) buildDependencyGraph() {
	tables := sa.Snapshot.Tables

	sa.TableIndexMap = make(map[string]int, len(tables))
	sa.IndexTableMap = make(map[int]string, len(tables))
	for i, table := range tables {
		sa.TableIndexMap[table.Name] = i
		sa.IndexTableMap[i] = table.Name
	}

	sa.DependencyGraph = graph.New(len(tables))
	for i, table := range tables {
		for _, fk := range table.ForeignKeys {
			dest, ok := sa.TableIndexMap[fk.ReferencedTable]
			if !ok || dest == i {
				continue
			}
			// Use weight=1 for mandatory (NOT NULL) foreign keys
			// Use weight=2 for optional (nullable) foreign keys
			weight := int64(1)
			if len(fk.Columns) > 0 {
				if col := table.Column(fk.Columns[0]); col != nil && col.IsNullable {
					weight = 2
				}
			}
			sa.DependencyGraph.AddCost(i, dest, weight)
		}
	}
}

// GetCircularTables returns tables involved in circular dependencies
func (sa *SchemaAnalyzer) GetCircularTables() map[string]bool {
	circularTables := make(map[string]bool)
	sa.CircularGroups = nil
	if sa.DependencyGraph == nil {
		return circularTables
	}

	for _, component := range graph.StrongComponents(sa.DependencyGraph) {
		if len(component) < 2 {
			continue
		}
		group := make([]string, 0, len(component))
		for _, idx := range component {
			name := sa.IndexTableMap[idx]
			circularTables[name] = true
			group = append(group, name)
		}
		sort.Strings(group)
		sa.CircularGroups = append(sa.CircularGroups, group)
	}
	sort.Slice(sa.CircularGroups, func(i, j int) bool {
		return sa.CircularGroups[i][0] < sa.CircularGroups[j][0]
	})

	return circularTables
}

// SyncOrder returns the tables with referenced tables before the tables
// referencing them, followed by the tables caught in reference cycles
func (sa *SchemaAnalyzer) SyncOrder() ([]string, map[string]bool) {
	circularTables := sa.GetCircularTables()
	if sa.DependencyGraph == nil {
		return nil, circularTables
	}

	// Order the acyclic part only; cycle members get no edges
	n := sa.DependencyGraph.Order()
	acyclic := graph.New(n)
	for v := 0; v < n; v++ {
		if circularTables[sa.IndexTableMap[v]] {
			continue
		}
		sa.DependencyGraph.Visit(v, func(w int, c int64) bool {
			if !circularTables[sa.IndexTableMap[w]] {
				acyclic.AddCost(v, w, c)
			}
			return false
		})
	}

	order, ok := graph.TopSort(acyclic)
	if !ok {
		sa.Logger.Warningf("Dependency graph still has a cycle, falling back to catalog order")
		order = make([]int, n)
		for i := range order {
			order[i] = n - 1 - i
		}
	}

	// TopSort puts referencing tables first
	var ordered []string
	for i := len(order) - 1; i >= 0; i-- {
		name := sa.IndexTableMap[order[i]]
		if !circularTables[name] {
			ordered = append(ordered, name)
		}
	}

	var circularList []string
	for name := range circularTables {
		circularList = append(circularList, name)
	}
	sort.Strings(circularList)

	return append(ordered, circularList...), circularTables
}

func columnValues(rows []map[string]interface{}, key string) []string {
	values := make([]string, 0, len(rows))
	for _, row := range rows {
		values = append(values, stringValue(row[key]))
	}
	return values
}

func stringValue(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func int64Value(v interface{}) *int64 {
	if v == nil {
		return nil
	}
	val, err := strconv.ParseInt(fmt.Sprintf("%v", v), 10, 64)
	if err != nil {
		return nil
	}
	return &val
}
