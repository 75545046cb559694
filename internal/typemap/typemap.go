// Package typemap maps catalog data type names to the C# types and default
// literals used by the generated data-access and controller stubs.
package typemap

import (
	"fmt"
	"strings"

	"github.com/vitebski/scriptdb/pkg/models"
)

// Mapping is the target type and default literal for a catalog type.
type Mapping struct {
	TargetType     string
	DefaultLiteral string
}

var (
	stringMapping   = Mapping{TargetType: "string", DefaultLiteral: `""`}
	decimalMapping  = Mapping{TargetType: "decimal", DefaultLiteral: "0.0"}
	dateTimeMapping = Mapping{TargetType: "DateTime", DefaultLiteral: "new DateTime()"}
)

// registry is closed: catalog types missing here are rejected.
var registry = map[string]Mapping{
	"nvarchar": stringMapping,
	"varchar":  stringMapping,
	"nchar":    stringMapping,
	"char":     stringMapping,
	"text":     stringMapping,
	"ntext":    stringMapping,

	"int":      {TargetType: "int", DefaultLiteral: "0"},
	"bigint":   {TargetType: "long", DefaultLiteral: "0"},
	"smallint": {TargetType: "short", DefaultLiteral: "0"},
	"tinyint":  {TargetType: "byte", DefaultLiteral: "0"},

	"decimal": decimalMapping,
	"numeric": decimalMapping,
	"money":   decimalMapping,
	"float":   {TargetType: "double", DefaultLiteral: "0.0"},

	"bit": {TargetType: "bool", DefaultLiteral: "false"},

	"table type": {TargetType: "DataTable", DefaultLiteral: "new DataTable()"},

	"datetime":       dateTimeMapping,
	"datetime2":      dateTimeMapping,
	"date":           dateTimeMapping,
	"smalldatetime":  dateTimeMapping,
	"datetimeoffset": {TargetType: "DateTimeOffset", DefaultLiteral: "new DateTimeOffset()"},

	"uniqueidentifier": {TargetType: "Guid", DefaultLiteral: "Guid.Empty"},
}

// Resolve returns the mapping for a catalog type name.
// Lookup ignores case and surrounding whitespace.
func Resolve(catalogType string) (Mapping, error) {
	m, ok := registry[strings.ToLower(strings.TrimSpace(catalogType))]
	if !ok {
		return Mapping{}, fmt.Errorf("%w: %q", models.ErrUnsupportedType, catalogType)
	}
	return m, nil
}

// Supported reports whether the catalog type has a mapping.
func Supported(catalogType string) bool {
	_, err := Resolve(catalogType)
	return err == nil
}

// IsStringLike reports whether the target type is textual. Textual targets
// are reference types and never take a nullable suffix.
func IsStringLike(targetType string) bool {
	return strings.EqualFold(targetType, "string")
}

// Nullable renders targetType with a nullable suffix when nullable is set
// and the target is not string-like.
func Nullable(targetType string, nullable bool) string {
	if nullable && !IsStringLike(targetType) {
		return targetType + "?"
	}
	return targetType
}
