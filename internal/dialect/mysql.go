package dialect

import (
	"fmt"
	"strings"

	"github.com/sqldef/schemacore/internal/ir"
)

type mysqlDialect struct{}

// MySQL is the MySQL/MariaDB/Vitess dialect value.
var MySQL SqlDialect = mysqlDialect{}

func (mysqlDialect) Name() string { return "mysql" }

func (mysqlDialect) Capabilities() Capabilities {
	return NewCapabilities(
		AutoIncrement, AutoIncrementOnNonId, NamedPrimaryKeys, NamedForeignKeys,
		Json, Decimal, FullTextIndex, CompoundIds, ClusteringSetting,
		RelationFieldsInArbitraryOrder, CreateMany, IndexColumnLengthPrefixing,
		ImplicitManyToManyRelation,
	)
}

func (mysqlDialect) MaxIdentifierLength() int   { return 64 }
func (mysqlDialect) LowercasesTableNames() bool { return false } // governed by lower_case_table_names, assumed off by default

func (mysqlDialect) ReferentialActions(IntegrityMode) []ir.ReferentialAction {
	return []ir.ReferentialAction{ir.ActionNoAction, ir.ActionRestrict, ir.ActionCascade, ir.ActionSetNull}
}

func (mysqlDialect) DefaultOnDelete(required bool) ir.ReferentialAction {
	if required {
		return ir.ActionRestrict
	}
	return ir.ActionSetNull
}

func (mysqlDialect) DefaultOnUpdate(bool) ir.ReferentialAction { return ir.ActionCascade }

func (mysqlDialect) ScalarFamilyForNativeType(native ir.NativeType) ir.ScalarFamily {
	switch strings.ToLower(native.Name) {
	case "varchar", "char", "text", "tinytext", "mediumtext", "longtext":
		return ir.FamilyString
	case "tinyint", "smallint", "mediumint", "int", "integer":
		return ir.FamilyInt
	case "bigint":
		return ir.FamilyBigInt
	case "float", "double":
		return ir.FamilyFloat
	case "decimal", "numeric":
		return ir.FamilyDecimal
	case "boolean", "bool":
		return ir.FamilyBool
	case "date":
		return ir.FamilyDate
	case "datetime", "timestamp":
		return ir.FamilyDateTime
	case "time":
		return ir.FamilyTime
	case "blob", "tinyblob", "mediumblob", "longblob", "binary", "varbinary":
		return ir.FamilyBytes
	case "json":
		return ir.FamilyJSON
	case "enum":
		return ir.FamilyEnum
	default:
		return ir.FamilyUnsupported
	}
}

func (mysqlDialect) DefaultNativeTypeFor(family ir.ScalarFamily) ir.NativeType {
	switch family {
	case ir.FamilyString:
		return ir.NativeType{Name: "varchar", Args: []int{191}}
	case ir.FamilyInt:
		return ir.NativeType{Name: "int"}
	case ir.FamilyBigInt:
		return ir.NativeType{Name: "bigint"}
	case ir.FamilyFloat:
		return ir.NativeType{Name: "double"}
	case ir.FamilyDecimal:
		return ir.NativeType{Name: "decimal", Args: []int{65, 30}}
	case ir.FamilyBool:
		return ir.NativeType{Name: "tinyint", Args: []int{1}}
	case ir.FamilyDate:
		return ir.NativeType{Name: "date"}
	case ir.FamilyDateTime:
		return ir.NativeType{Name: "datetime", Args: []int{3}}
	case ir.FamilyTime:
		return ir.NativeType{Name: "time", Args: []int{3}}
	case ir.FamilyBytes:
		return ir.NativeType{Name: "longblob"}
	case ir.FamilyJSON:
		return ir.NativeType{Name: "json"}
	default:
		return ir.NativeType{Name: "varchar", Args: []int{191}}
	}
}

func (d mysqlDialect) ParseNativeType(name string, args []int) (ir.NativeType, error) {
	fam := d.ScalarFamilyForNativeType(ir.NativeType{Name: name})
	if fam == ir.FamilyUnsupported {
		return ir.NativeType{}, fmt.Errorf("mysql: unrecognized native type %q", name)
	}
	return ir.NativeType{Name: strings.ToLower(name), Args: args}, nil
}

// QuoteIdentifier backtick-quotes, doubling embedded backticks, matching
// MySQL identifier-quoting rules.
func (mysqlDialect) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// SynthesizeEnumName builds the "<Table>_<column>" enum name the
// describer must synthesize for a MySQL ENUM(...) column, per spec §4.2.
func SynthesizeEnumName(tableName, columnName string) string {
	return tableName + "_" + columnName
}
