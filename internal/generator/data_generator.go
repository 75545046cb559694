package generator

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/jaswdr/faker"
	"github.com/sirupsen/logrus"

	"github.com/vitebski/scriptdb/internal/fragment"
	"github.com/vitebski/scriptdb/internal/merge"
	"github.com/vitebski/scriptdb/pkg/models"
)

var (
	sampleRangeStart = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
	sampleRangeEnd   = time.Date(2025, time.December, 31, 23, 59, 59, 0, time.UTC)
)

// SampleGenerator renders smoke-test scripts that fill a table type with
// fake rows and pass them to the table's synchronization procedure
type SampleGenerator struct {
	Rows   int
	Seed   int64
	Logger *logrus.Logger
}

// NewSampleGenerator creates a new sample generator
func NewSampleGenerator(rows int, seed int64, logger *logrus.Logger) *SampleGenerator {
	return &SampleGenerator{
		Rows:   rows,
		Seed:   seed,
		Logger: logger,
	}
}

// fakerFor seeds a faker per table so a table's rows do not depend on the
// order tables are visited in
func (sg *SampleGenerator) fakerFor(table string) faker.Faker {
	h := fnv.New64a()
	h.Write([]byte(table))
	return faker.NewWithSeed(rand.NewSource(sg.Seed ^ int64(h.Sum64())))
}

// Script renders the sample script for a table
func (sg *SampleGenerator) Script(table *models.TableDefinition) (models.Fragment, error) {
	if len(table.PrimaryKeyColumns()) == 0 {
		return models.Fragment{}, fmt.Errorf("%w: %s", models.ErrMissingPrimaryKey, table.Name)
	}
	if sg.Rows <= 0 {
		return models.Fragment{Stream: models.Samples}, nil
	}

	f := sg.fakerFor(table.Name)

	var columns []models.ColumnDefinition
	names := fragment.NewList("", fragment.Comma)
	for _, col := range table.Columns {
		if table.IsIdentity(col.Name) {
			continue
		}
		columns = append(columns, col)
		names.Add(col.Name)
	}

	rows := fragment.NewList("\t", fragment.CommaNewLine)
	for i := 0; i < sg.Rows; i++ {
		values := fragment.NewList("", fragment.Comma)
		for _, col := range columns {
			values.Add(sg.GenerateValue(f, table.Name, col))
		}
		rows.Add("(" + values.String() + ")")
	}

	var b strings.Builder
	b.WriteString("\n-- Sample rows for: " + table.Name + "\n")
	b.WriteString("declare @rows " + merge.TypeName(table.Name) + ";\n")
	b.WriteString("insert into @rows (" + names.String() + ")\n")
	b.WriteString("values\n" + rows.String() + ";\n")
	b.WriteString("exec " + merge.ProcedureName(table.Name) + " " + merge.SourceParameter() + " = @rows;\n")
	b.WriteString("go\n")

	return models.Fragment{Stream: models.Samples, Text: b.String()}, nil
}

// GenerateValue returns a T-SQL literal for a column based on its name and type
func (sg *SampleGenerator) GenerateValue(f faker.Faker, table string, column models.ColumnDefinition) string {
	if column.IsNullable && f.IntBetween(1, 5) == 1 {
		return "NULL"
	}

	dataType := strings.ToLower(column.DataType)
	switch dataType {
	case "varchar", "char", "text":
		return quoteString(sg.generateString(f, column), false)
	case "nvarchar", "nchar", "ntext":
		return quoteString(sg.generateString(f, column), true)
	case "tinyint":
		return strconv.Itoa(f.IntBetween(0, 255))
	case "smallint":
		return strconv.Itoa(f.IntBetween(0, 32767))
	case "int":
		return strconv.Itoa(f.IntBetween(1, 100000))
	case "bigint":
		return strconv.FormatInt(f.Int64Between(1, 10000000), 10)
	case "decimal", "numeric", "money":
		return sg.generateDecimal(f, column)
	case "float", "real":
		return strconv.FormatFloat(f.Float64(4, 0, 1000), 'f', -1, 64)
	case "bit":
		return strconv.Itoa(f.IntBetween(0, 1))
	case "date":
		return "'" + f.Time().TimeBetween(sampleRangeStart, sampleRangeEnd).Format("2006-01-02") + "'"
	case "datetime", "datetime2", "smalldatetime":
		return "'" + f.Time().TimeBetween(sampleRangeStart, sampleRangeEnd).Format("2006-01-02 15:04:05") + "'"
	case "datetimeoffset":
		return "'" + f.Time().TimeBetween(sampleRangeStart, sampleRangeEnd).Format("2006-01-02 15:04:05 -07:00") + "'"
	case "uniqueidentifier":
		return "'" + generateUUID(f) + "'"
	case "binary", "varbinary":
		return sg.generateBinary(f, column)
	default:
		sg.Logger.Warningf("No sample generator for type %s on %s.%s, using NULL", dataType, table, column.Name)
		return "NULL"
	}
}

// generateString picks a value from the column name when it is telling,
// otherwise lorem text, clipped to the column length
func (sg *SampleGenerator) generateString(f faker.Faker, column models.ColumnDefinition) string {
	columnName := strings.ToLower(column.Name)

	var value string
	switch {
	case strings.Contains(columnName, "email"):
		value = f.Internet().Email()
	case strings.Contains(columnName, "firstname"):
		value = f.Person().FirstName()
	case strings.Contains(columnName, "lastname"):
		value = f.Person().LastName()
	case strings.Contains(columnName, "username") || strings.HasSuffix(columnName, "by"):
		value = f.Internet().User()
	case strings.Contains(columnName, "company"):
		value = f.Company().Name()
	case strings.Contains(columnName, "name"):
		value = f.Person().Name()
	case strings.Contains(columnName, "phone"):
		value = f.Phone().Number()
	case strings.Contains(columnName, "address"):
		value = f.Address().Address()
	case strings.Contains(columnName, "city"):
		value = f.Address().City()
	case strings.Contains(columnName, "country"):
		value = f.Address().Country()
	case strings.Contains(columnName, "url") || strings.Contains(columnName, "website"):
		value = f.Internet().URL()
	case strings.Contains(columnName, "description") || strings.Contains(columnName, "note"):
		value = f.Lorem().Sentence(8)
	case strings.Contains(columnName, "code"):
		value = strings.ToUpper(f.RandomStringWithLength(6))
	default:
		value = f.Lorem().Word()
	}

	var maxLength int64 = 100
	if column.CharMaxLength != nil && *column.CharMaxLength > 0 && *column.CharMaxLength < maxLength {
		maxLength = *column.CharMaxLength
	}
	if int64(len(value)) > maxLength {
		value = value[:maxLength]
	}
	return value
}

// generateDecimal keeps the value within the column precision and scale
func (sg *SampleGenerator) generateDecimal(f faker.Faker, column models.ColumnDefinition) string {
	scale := 2
	if column.NumericScale != nil {
		scale = int(*column.NumericScale)
	}
	maxValue := 1000
	if column.NumericPrecision != nil {
		digits := int(*column.NumericPrecision) - scale
		if digits < 4 {
			maxValue = 1
			for i := 0; i < digits; i++ {
				maxValue *= 10
			}
			maxValue--
		}
	}
	if maxValue < 1 {
		return strconv.FormatFloat(0, 'f', scale, 64)
	}
	// the fractional part can round up to a whole unit
	return strconv.FormatFloat(f.Float64(scale, 0, maxValue-1), 'f', scale, 64)
}

func (sg *SampleGenerator) generateBinary(f faker.Faker, column models.ColumnDefinition) string {
	var length int64 = 8
	if column.CharMaxLength != nil && *column.CharMaxLength > 0 && *column.CharMaxLength < length {
		length = *column.CharMaxLength
	}
	var b strings.Builder
	b.WriteString("0x")
	for i := int64(0); i < length; i++ {
		fmt.Fprintf(&b, "%02X", f.IntBetween(0, 255))
	}
	return b.String()
}

func generateUUID(f faker.Faker) string {
	return fmt.Sprintf("%08x-%04x-4%03x-%04x-%012x",
		f.Int64Between(0, 0xffffffff),
		f.IntBetween(0, 0xffff),
		f.IntBetween(0, 0xfff),
		0x8000|f.IntBetween(0, 0x3fff),
		f.Int64Between(0, 0xffffffffffff))
}

func quoteString(value string, unicode bool) string {
	literal := "'" + strings.ReplaceAll(value, "'", "''") + "'"
	if unicode {
		return "N" + literal
	}
	return literal
}
