package typemap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitebski/scriptdb/pkg/models"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		catalog     string
		wantType    string
		wantDefault string
	}{
		{"nvarchar", "string", `""`},
		{"varchar", "string", `""`},
		{"text", "string", `""`},
		{"int", "int", "0"},
		{"decimal", "decimal", "0.0"},
		{"bit", "bool", "false"},
		{"table type", "DataTable", "new DataTable()"},
		{"datetime", "DateTime", "new DateTime()"},
		{"date", "DateTime", "new DateTime()"},
		{"datetimeoffset", "DateTimeOffset", "new DateTimeOffset()"},
		{"NVARCHAR", "string", `""`},
		{" bigint ", "long", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.catalog, func(t *testing.T) {
			m, err := Resolve(tt.catalog)
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, m.TargetType)
			assert.Equal(t, tt.wantDefault, m.DefaultLiteral)
		})
	}
}

func TestResolveUnsupported(t *testing.T) {
	for _, catalog := range []string{"geography", "xml", "", "character varying"} {
		_, err := Resolve(catalog)
		assert.True(t, errors.Is(err, models.ErrUnsupportedType), "expected ErrUnsupportedType for %q", catalog)
		assert.False(t, Supported(catalog))
	}
}

func TestNullable(t *testing.T) {
	assert.Equal(t, "int?", Nullable("int", true))
	assert.Equal(t, "int", Nullable("int", false))
	assert.Equal(t, "DateTime?", Nullable("DateTime", true))
	assert.Equal(t, "string", Nullable("string", true))
	assert.Equal(t, "String", Nullable("String", true))
	assert.Equal(t, "DataTable?", Nullable("DataTable", true))
}
