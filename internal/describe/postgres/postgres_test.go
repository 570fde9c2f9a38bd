package postgres

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sqldef/schemacore/internal/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormattedType(t *testing.T) {
	tests := []struct {
		formatted  string
		wantName   string
		wantArgs   []int
		wantFamily ir.ScalarFamily
	}{
		{"character varying(255)", "varchar", []int{255}, ir.FamilyString},
		{"integer", "integer", nil, ir.FamilyInt},
		{"numeric(10,2)", "numeric", []int{10, 2}, ir.FamilyDecimal},
		{"timestamp without time zone", "timestamp", nil, ir.FamilyDateTime},
		{"boolean", "boolean", nil, ir.FamilyBool},
	}
	for _, tt := range tests {
		native, family := parseFormattedType(tt.formatted)
		assert.Equal(t, tt.wantFamily, family, tt.formatted)
		if tt.wantArgs != nil {
			assert.Equal(t, tt.wantArgs, native.Args, tt.formatted)
		}
	}
}

func TestParseDefault(t *testing.T) {
	def, auto := parseDefault("nextval('users_id_seq'::regclass)")
	assert.True(t, auto)
	assert.Equal(t, ir.DefaultFunctionCall, def.Kind)
	assert.Equal(t, "autoincrement", def.FunctionName)

	def, auto = parseDefault("now()")
	assert.False(t, auto)
	assert.True(t, def.IsNow())

	def, auto = parseDefault("'active'::character varying")
	assert.False(t, auto)
	assert.Equal(t, ir.DefaultLiteral, def.Kind)
	assert.Equal(t, "active", def.Literal)

	def, _ = parseDefault("")
	assert.Equal(t, ir.DefaultNone, def.Kind)
}

func TestDescribeEndToEnd(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT nspname FROM pg_catalog.pg_namespace")).
		WillReturnRows(sqlmock.NewRows([]string{"nspname"}).AddRow("public"))

	mock.ExpectQuery(regexp.QuoteMeta("FROM pg_enum e")).
		WillReturnRows(sqlmock.NewRows([]string{"nspname", "typname", "enumlabel"}))

	mock.ExpectQuery(regexp.QuoteMeta("FROM pg_sequences")).
		WillReturnRows(sqlmock.NewRows([]string{"schemaname", "sequencename", "start_value", "min_value", "max_value", "increment_by", "cache_size"}))

	mock.ExpectQuery(regexp.QuoteMeta("FROM pg_catalog.pg_class c")).
		WillReturnRows(sqlmock.NewRows([]string{"nspname", "relname", "relispartition", "relrowsecurity", "description"}).
			AddRow("public", "users", false, false, ""))

	mock.ExpectQuery(regexp.QuoteMeta("FROM pg_attribute a")).
		WillReturnRows(sqlmock.NewRows([]string{"nspname", "relname", "attname", "attnum", "format_type", "attnotnull", "default", "comment"}).
			AddRow("public", "users", "id", 1, "integer", true, "nextval('users_id_seq'::regclass)", ""))

	mock.ExpectQuery(regexp.QuoteMeta("FROM pg_index ix")).
		WillReturnRows(sqlmock.NewRows([]string{"nspname", "relname", "relname_2", "indisprimary", "indisunique", "amname", "where"}))

	mock.ExpectQuery(regexp.QuoteMeta("FROM pg_constraint c")).
		WillReturnRows(sqlmock.NewRows([]string{"n1", "r1", "conname", "n2", "r2", "upd", "del", "a1", "a2"}))

	mock.ExpectQuery(regexp.QuoteMeta("FROM pg_catalog.pg_class c")).
		WillReturnRows(sqlmock.NewRows([]string{"nspname", "relname", "viewdef"}))

	mock.ExpectQuery(regexp.QuoteMeta("FROM pg_extension e")).
		WillReturnRows(sqlmock.NewRows([]string{"extname", "extversion", "nspname"}))

	schema, diags, err := Describe(context.Background(), db, nil)
	require.NoError(t, err)
	assert.Empty(t, diags)
	require.Len(t, schema.Tables, 1)
	assert.Equal(t, "users", schema.Tables[0].Name)
	require.Len(t, schema.Columns, 1)
	assert.Equal(t, "id", schema.Columns[0].Name)
	assert.True(t, schema.Columns[0].AutoIncrement)
}
