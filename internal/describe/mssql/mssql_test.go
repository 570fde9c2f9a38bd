package mssql

import (
	"testing"

	"github.com/sqldef/schemacore/internal/ir"
	"github.com/stretchr/testify/assert"
)

func TestNativeTypeFor(t *testing.T) {
	nt := nativeTypeFor("nvarchar", 510, 0, 0)
	assert.Equal(t, []int{255}, nt.Args)

	nt = nativeTypeFor("nvarchar", -1, 0, 0)
	assert.Equal(t, []int{-1}, nt.Args)

	nt = nativeTypeFor("decimal", 0, 10, 2)
	assert.Equal(t, []int{10, 2}, nt.Args)
}

func TestParseDefault(t *testing.T) {
	def, auto := parseDefault("", true)
	assert.True(t, auto)
	assert.True(t, def.IsAutoincrement())

	def, auto = parseDefault("(getdate())", false)
	assert.False(t, auto)
	assert.True(t, def.IsNow())

	def, _ = parseDefault("('active')", false)
	assert.Equal(t, ir.DefaultLiteral, def.Kind)
	assert.Equal(t, "active", def.Literal)
}

func TestMssqlActionFromCode(t *testing.T) {
	assert.Equal(t, ir.ActionCascade, mssqlActionFromCode(1))
	assert.Equal(t, ir.ActionNoAction, mssqlActionFromCode(0))
}
