package mysql

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sqldef/schemacore/internal/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnumValues(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, parseEnumValues("enum('a','b','c')"))
	assert.Nil(t, parseEnumValues("int"))
}

func TestParseDefault(t *testing.T) {
	def, auto := parseDefault("", "auto_increment")
	assert.True(t, auto)
	assert.True(t, def.IsAutoincrement())

	def, auto = parseDefault("CURRENT_TIMESTAMP", "")
	assert.False(t, auto)
	assert.True(t, def.IsNow())

	def, _ = parseDefault("active", "")
	assert.Equal(t, ir.DefaultLiteral, def.Kind)
	assert.Equal(t, "active", def.Literal)
}

func TestNativeTypeFromColumnType(t *testing.T) {
	nt := nativeTypeFromColumnType("varchar", 191, 0, 0)
	assert.Equal(t, "varchar", nt.Name)
	assert.Equal(t, []int{191}, nt.Args)

	nt = nativeTypeFromColumnType("decimal", 0, 10, 2)
	assert.Equal(t, []int{10, 2}, nt.Args)
}

func TestDescribeEndToEnd(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.TABLES")).
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME", "ENGINE", "TABLE_COLLATION", "TABLE_COMMENT"}).
			AddRow("users", "InnoDB", "utf8mb4_general_ci", ""))

	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.COLUMNS")).
		WillReturnRows(sqlmock.NewRows([]string{
			"TABLE_NAME", "COLUMN_NAME", "ORDINAL_POSITION", "COLUMN_TYPE", "DATA_TYPE",
			"IS_NULLABLE", "COLUMN_DEFAULT", "EXTRA", "COLUMN_COMMENT",
			"CHARACTER_MAXIMUM_LENGTH", "NUMERIC_PRECISION", "NUMERIC_SCALE",
		}).AddRow("users", "id", 1, "int", "int", "NO", "", "auto_increment", "", 0, 0, 0))

	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.STATISTICS")).
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME", "INDEX_NAME", "NON_UNIQUE", "COLUMN_NAME", "SEQ_IN_INDEX", "SUB_PART", "INDEX_TYPE", "COLLATION"}).
			AddRow("users", "PRIMARY", 0, "id", 1, 0, "BTREE", "A"))

	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.KEY_COLUMN_USAGE")).
		WillReturnRows(sqlmock.NewRows([]string{"name", "table", "col", "reft", "refcol", "ord", "upd", "del"}))

	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.VIEWS")).
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME", "VIEW_DEFINITION"}))

	schema, diags, err := Describe(context.Background(), db, "testdb")
	require.NoError(t, err)
	assert.Empty(t, diags)
	require.Len(t, schema.Tables, 1)
	require.Len(t, schema.Columns, 1)
	assert.True(t, schema.Columns[0].AutoIncrement)
	require.Len(t, schema.Indexes, 1)
	assert.True(t, schema.Indexes[0].IsPrimary())
}
