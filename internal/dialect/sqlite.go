package dialect

import (
	"fmt"
	"strings"

	"github.com/sqldef/schemacore/internal/ir"
)

type sqliteDialect struct{}

var SQLite SqlDialect = sqliteDialect{}

func (sqliteDialect) Name() string { return "sqlite" }

func (sqliteDialect) Capabilities() Capabilities {
	return NewCapabilities(
		AutoIncrement, NamedDefaultValues, Json, CompoundIds,
		RelationFieldsInArbitraryOrder, ImplicitManyToManyRelation,
	)
}

func (sqliteDialect) MaxIdentifierLength() int   { return 0 } // SQLite has no hard identifier length limit
func (sqliteDialect) LowercasesTableNames() bool { return false }

// ReferentialActions: SQLite enforces FKs only when `PRAGMA
// foreign_keys=ON`, i.e. it emulates referential integrity rather than
// natively constraining it, per spec §4.1's IntegrityMode distinction.
func (sqliteDialect) ReferentialActions(mode IntegrityMode) []ir.ReferentialAction {
	return []ir.ReferentialAction{ir.ActionNoAction, ir.ActionRestrict, ir.ActionCascade, ir.ActionSetNull, ir.ActionSetDefault}
}

func (sqliteDialect) DefaultOnDelete(required bool) ir.ReferentialAction {
	if required {
		return ir.ActionRestrict
	}
	return ir.ActionSetNull
}

// DefaultOnUpdate: SQLite emulates referential integrity, so onUpdate
// follows onDelete's rule rather than defaulting to Cascade (spec §4.1).
func (d sqliteDialect) DefaultOnUpdate(required bool) ir.ReferentialAction {
	return d.DefaultOnDelete(required)
}

func (sqliteDialect) ScalarFamilyForNativeType(native ir.NativeType) ir.ScalarFamily {
	switch strings.ToUpper(native.Name) {
	case "TEXT", "VARCHAR", "CHAR", "CLOB":
		return ir.FamilyString
	case "INTEGER", "INT":
		return ir.FamilyInt
	case "BIGINT":
		return ir.FamilyBigInt
	case "REAL", "DOUBLE", "FLOAT":
		return ir.FamilyFloat
	case "DECIMAL", "NUMERIC":
		return ir.FamilyDecimal
	case "BOOLEAN", "BOOL":
		return ir.FamilyBool
	case "DATE":
		return ir.FamilyDate
	case "DATETIME", "TIMESTAMP":
		return ir.FamilyDateTime
	case "TIME":
		return ir.FamilyTime
	case "BLOB":
		return ir.FamilyBytes
	default:
		return ir.FamilyUnsupported
	}
}

func (sqliteDialect) DefaultNativeTypeFor(family ir.ScalarFamily) ir.NativeType {
	switch family {
	case ir.FamilyString:
		return ir.NativeType{Name: "TEXT"}
	case ir.FamilyInt, ir.FamilyBigInt:
		return ir.NativeType{Name: "INTEGER"}
	case ir.FamilyFloat, ir.FamilyDecimal:
		return ir.NativeType{Name: "REAL"}
	case ir.FamilyBool:
		return ir.NativeType{Name: "BOOLEAN"}
	case ir.FamilyDate, ir.FamilyDateTime, ir.FamilyTime:
		return ir.NativeType{Name: "DATETIME"}
	case ir.FamilyBytes:
		return ir.NativeType{Name: "BLOB"}
	default:
		return ir.NativeType{Name: "TEXT"}
	}
}

func (d sqliteDialect) ParseNativeType(name string, args []int) (ir.NativeType, error) {
	fam := d.ScalarFamilyForNativeType(ir.NativeType{Name: name})
	if fam == ir.FamilyUnsupported {
		return ir.NativeType{}, fmt.Errorf("sqlite: unrecognized native type %q", name)
	}
	return ir.NativeType{Name: strings.ToUpper(name), Args: args}, nil
}

// QuoteIdentifier double-quotes, matching SQLite's ANSI-compatible
// identifier quoting (it also accepts backticks, but double quotes are
// what the describer/renderer emit).
func (sqliteDialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
