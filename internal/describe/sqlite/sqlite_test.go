package sqlite

import (
	"database/sql"
	"testing"

	"github.com/sqldef/schemacore/internal/ir"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeDeclType(t *testing.T) {
	assert.Equal(t, "varchar", normalizeDeclType("VARCHAR(255)"))
	assert.Equal(t, "integer", normalizeDeclType("INTEGER"))
}

func TestParseDefault(t *testing.T) {
	def, auto := parseDefault(sql.NullString{}, true, "integer")
	assert.True(t, auto)
	assert.True(t, def.IsAutoincrement())

	def, auto = parseDefault(sql.NullString{String: "CURRENT_TIMESTAMP", Valid: true}, false, "datetime")
	assert.False(t, auto)
	assert.True(t, def.IsNow())

	def, _ = parseDefault(sql.NullString{String: "'hello'", Valid: true}, false, "text")
	assert.Equal(t, ir.DefaultLiteral, def.Kind)
	assert.Equal(t, "hello", def.Literal)

	def, _ = parseDefault(sql.NullString{}, false, "text")
	assert.Equal(t, ir.DefaultNone, def.Kind)
}

func TestSqliteActionFromText(t *testing.T) {
	assert.Equal(t, ir.ActionCascade, sqliteActionFromText("CASCADE"))
	assert.Equal(t, ir.ActionNoAction, sqliteActionFromText("NO ACTION"))
}
