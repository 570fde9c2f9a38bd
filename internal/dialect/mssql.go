package dialect

import (
	"fmt"
	"strings"

	"github.com/sqldef/schemacore/internal/ir"
)

type mssqlDialect struct{}

var MSSQL SqlDialect = mssqlDialect{}

func (mssqlDialect) Name() string { return "sqlserver" }

func (mssqlDialect) Capabilities() Capabilities {
	return NewCapabilities(
		AutoIncrement, NamedPrimaryKeys, NamedForeignKeys, NamedDefaultValues,
		Decimal, CompoundIds, ClusteringSetting,
		RelationFieldsInArbitraryOrder, ImplicitManyToManyRelation,
	)
}

func (mssqlDialect) MaxIdentifierLength() int   { return 128 }
func (mssqlDialect) LowercasesTableNames() bool { return false } // depends on collation; default case-insensitive but case-preserving

// ReferentialActions: §9 OQ2 says the exact set MSSQL allows when
// ClusteringSetting is off varies by server version, so callers must
// consult Capabilities rather than have this list hard-coded per version.
// This returns NoAction and Cascade, plus SetNull and SetDefault when
// Capabilities() has ClusteringSetting, which this dialect always sets.
func (d mssqlDialect) ReferentialActions(IntegrityMode) []ir.ReferentialAction {
	actions := []ir.ReferentialAction{ir.ActionNoAction, ir.ActionCascade}
	if d.Capabilities().Has(ClusteringSetting) {
		actions = append(actions, ir.ActionSetNull, ir.ActionSetDefault)
	}
	return actions
}

func (mssqlDialect) DefaultOnDelete(required bool) ir.ReferentialAction {
	if required {
		return ir.ActionNoAction // MSSQL has no RESTRICT keyword, NO ACTION is the restrictive default
	}
	return ir.ActionSetNull
}

func (mssqlDialect) DefaultOnUpdate(bool) ir.ReferentialAction { return ir.ActionCascade }

func (mssqlDialect) ScalarFamilyForNativeType(native ir.NativeType) ir.ScalarFamily {
	switch strings.ToLower(native.Name) {
	case "nvarchar", "varchar", "nchar", "char", "text", "ntext":
		return ir.FamilyString
	case "int":
		return ir.FamilyInt
	case "bigint":
		return ir.FamilyBigInt
	case "smallint", "tinyint":
		return ir.FamilyInt
	case "float", "real":
		return ir.FamilyFloat
	case "decimal", "numeric", "money", "smallmoney":
		return ir.FamilyDecimal
	case "bit":
		return ir.FamilyBool
	case "date":
		return ir.FamilyDate
	case "datetime", "datetime2", "smalldatetime", "datetimeoffset":
		return ir.FamilyDateTime
	case "time":
		return ir.FamilyTime
	case "varbinary", "binary", "image":
		return ir.FamilyBytes
	default:
		return ir.FamilyUnsupported
	}
}

func (mssqlDialect) DefaultNativeTypeFor(family ir.ScalarFamily) ir.NativeType {
	switch family {
	case ir.FamilyString:
		return ir.NativeType{Name: "nvarchar", Args: []int{1000}}
	case ir.FamilyInt:
		return ir.NativeType{Name: "int"}
	case ir.FamilyBigInt:
		return ir.NativeType{Name: "bigint"}
	case ir.FamilyFloat:
		return ir.NativeType{Name: "float"}
	case ir.FamilyDecimal:
		return ir.NativeType{Name: "decimal", Args: []int{32, 16}}
	case ir.FamilyBool:
		return ir.NativeType{Name: "bit"}
	case ir.FamilyDate:
		return ir.NativeType{Name: "date"}
	case ir.FamilyDateTime:
		return ir.NativeType{Name: "datetime2"}
	case ir.FamilyTime:
		return ir.NativeType{Name: "time"}
	case ir.FamilyBytes:
		return ir.NativeType{Name: "varbinary", Args: []int{-1}}
	default:
		return ir.NativeType{Name: "nvarchar", Args: []int{1000}}
	}
}

func (d mssqlDialect) ParseNativeType(name string, args []int) (ir.NativeType, error) {
	fam := d.ScalarFamilyForNativeType(ir.NativeType{Name: name})
	if fam == ir.FamilyUnsupported {
		return ir.NativeType{}, fmt.Errorf("mssql: unrecognized native type %q", name)
	}
	return ir.NativeType{Name: strings.ToLower(name), Args: args}, nil
}

// QuoteIdentifier brackets, matching MSSQL's `[identifier]` quoting.
func (mssqlDialect) QuoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}
