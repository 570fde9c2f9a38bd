package dialect

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sqldef/schemacore/internal/ir"
)

type postgresDialect struct{}

// Postgres is the PostgreSQL/CockroachDB dialect value (spec §1 treats
// CockroachDB as an alias resolved from the server version banner at
// connect time by internal/connector, not as a separate dialect here).
var Postgres SqlDialect = postgresDialect{}

func (postgresDialect) Name() string { return "postgres" }

func (postgresDialect) Capabilities() Capabilities {
	return NewCapabilities(
		AutoIncrement, NamedPrimaryKeys, NamedForeignKeys, NamedDefaultValues,
		Enums, Json, JsonList, Decimal, ScalarLists, MultiSchema,
		AdvancedJsonNullability, CompoundIds, FullTextIndex,
		JsonFilteringArrayPath, JsonFilteringJsonPath,
		RelationFieldsInArbitraryOrder, CreateMany, InsensitiveFilters,
		ImplicitManyToManyRelation,
	)
}

func (postgresDialect) MaxIdentifierLength() int  { return 63 }
func (postgresDialect) LowercasesTableNames() bool { return true } // unquoted identifiers fold to lowercase

func (postgresDialect) ReferentialActions(IntegrityMode) []ir.ReferentialAction {
	return []ir.ReferentialAction{ir.ActionNoAction, ir.ActionRestrict, ir.ActionCascade, ir.ActionSetNull, ir.ActionSetDefault}
}

func (postgresDialect) DefaultOnDelete(required bool) ir.ReferentialAction {
	if required {
		return ir.ActionRestrict
	}
	return ir.ActionSetNull
}

func (postgresDialect) DefaultOnUpdate(bool) ir.ReferentialAction { return ir.ActionCascade }

func (postgresDialect) ScalarFamilyForNativeType(native ir.NativeType) ir.ScalarFamily {
	switch strings.ToLower(native.Name) {
	case "varchar", "char", "text", "citext", "uuid":
		return ir.FamilyString
	case "int2", "int4", "integer", "smallint", "serial", "smallserial":
		return ir.FamilyInt
	case "int8", "bigint", "bigserial":
		return ir.FamilyBigInt
	case "float4", "real", "float8", "double precision":
		return ir.FamilyFloat
	case "numeric", "decimal", "money":
		return ir.FamilyDecimal
	case "bool", "boolean":
		return ir.FamilyBool
	case "date":
		return ir.FamilyDate
	case "timestamp", "timestamptz":
		return ir.FamilyDateTime
	case "time", "timetz":
		return ir.FamilyTime
	case "bytea":
		return ir.FamilyBytes
	case "json", "jsonb":
		return ir.FamilyJSON
	default:
		return ir.FamilyUnsupported
	}
}

func (postgresDialect) DefaultNativeTypeFor(family ir.ScalarFamily) ir.NativeType {
	switch family {
	case ir.FamilyString:
		return ir.NativeType{Name: "text"}
	case ir.FamilyInt:
		return ir.NativeType{Name: "integer"}
	case ir.FamilyBigInt:
		return ir.NativeType{Name: "bigint"}
	case ir.FamilyFloat:
		return ir.NativeType{Name: "double precision"}
	case ir.FamilyDecimal:
		return ir.NativeType{Name: "numeric", Args: []int{65, 30}}
	case ir.FamilyBool:
		return ir.NativeType{Name: "boolean"}
	case ir.FamilyDate:
		return ir.NativeType{Name: "date"}
	case ir.FamilyDateTime:
		return ir.NativeType{Name: "timestamp", Args: []int{3}}
	case ir.FamilyTime:
		return ir.NativeType{Name: "time", Args: []int{3}}
	case ir.FamilyBytes:
		return ir.NativeType{Name: "bytea"}
	case ir.FamilyJSON:
		return ir.NativeType{Name: "jsonb"}
	default:
		return ir.NativeType{Name: "text"}
	}
}

func (d postgresDialect) ParseNativeType(name string, args []int) (ir.NativeType, error) {
	fam := d.ScalarFamilyForNativeType(ir.NativeType{Name: name})
	if fam == ir.FamilyUnsupported && !knownPostgresType(name) {
		return ir.NativeType{}, fmt.Errorf("postgres: unrecognized native type %q", name)
	}
	return ir.NativeType{Name: strings.ToLower(name), Args: args}, nil
}

func knownPostgresType(name string) bool {
	switch strings.ToLower(name) {
	case "varchar", "char", "text", "citext", "uuid", "int2", "int4", "integer",
		"smallint", "serial", "smallserial", "int8", "bigint", "bigserial",
		"float4", "real", "float8", "double precision", "numeric", "decimal",
		"money", "bool", "boolean", "date", "timestamp", "timestamptz", "time",
		"timetz", "bytea", "json", "jsonb", "inet", "cidr", "macaddr":
		return true
	}
	return false
}

// QuoteIdentifier double-quotes, doubling embedded quotes, matching
// Postgres identifier-quoting rules (and the teacher's own `"%s"`
// identifier rendering throughout database/postgres/database.go).
func (postgresDialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// renderPostgresArgs prints NativeType args back out. It is package-local
// and currently has no callers; it is kept here because it's purely a
// function of the dialect's own type grammar (spec §4.3: "native-type
// printing is reversible").
func renderPostgresArgs(args []int) string {
	if len(args) == 0 {
		return ""
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = strconv.Itoa(a)
	}
	return "(" + strings.Join(parts, ",") + ")"
}
