// Package dialect implements the SqlDialect registry of spec §4.1: one
// stateless value per database engine exposing identifier rules, type
// mapping, referential-action defaults and a capability bitset. Strategy
// objects (Renderer/DifferFlavour/CalculatorFlavour/CheckerFlavour) are
// implemented in the packages that consume them (internal/render,
// internal/differ, internal/calculate, internal/check) and looked up by
// dialect Name here, matching the teacher's GeneratorMode dispatch but
// replacing the switch statements with values satisfying this interface.
package dialect

import (
	"fmt"

	"github.com/sqldef/schemacore/internal/ir"
)

// IntegrityMode selects how a dialect's referential actions should be
// computed: "native" dialects delegate FK enforcement to the engine
// (Postgres, MySQL, MSSQL); SQLite in some configurations emulates it.
type IntegrityMode int

const (
	IntegrityNative IntegrityMode = iota
	IntegrityEmulated
)

// SqlDialect is a stateless value describing one database engine's
// capabilities and conventions (spec §4.1). Each concrete dialect
// (postgres.go, mysql.go, sqlite.go, mssql.go in this package) is a
// package-level var, not a constructor — there is no per-connection
// state here, only per-engine constants.
type SqlDialect interface {
	Name() string
	Capabilities() Capabilities

	MaxIdentifierLength() int
	LowercasesTableNames() bool

	// ReferentialActions returns the list of onDelete/onUpdate actions
	// the dialect accepts for the given integrity mode (spec §4.1, §9 OQ2:
	// consult capabilities rather than hard-code a server-version table).
	ReferentialActions(mode IntegrityMode) []ir.ReferentialAction

	// DefaultOnDelete/DefaultOnUpdate implement spec §4.1's referential
	// arity defaults: required -> Restrict when supported else NoAction;
	// optional -> SetNull; onUpdate defaults to Cascade unless the dialect
	// emulates referential integrity, in which case it follows onDelete's
	// rule.
	DefaultOnDelete(required bool) ir.ReferentialAction
	DefaultOnUpdate(required bool) ir.ReferentialAction

	ScalarFamilyForNativeType(native ir.NativeType) ir.ScalarFamily
	DefaultNativeTypeFor(family ir.ScalarFamily) ir.NativeType
	ParseNativeType(name string, args []int) (ir.NativeType, error)

	// QuoteIdentifier renders name as a dialect-correct quoted identifier.
	QuoteIdentifier(name string) string
}

var registry = map[string]SqlDialect{}

func register(d SqlDialect) {
	registry[d.Name()] = d
}

// Lookup resolves a dialect by name ("postgres", "cockroachdb", "mysql",
// "mariadb", "sqlite", "sqlserver"). CockroachDB and MariaDB/Vitess alias
// to the Postgres/MySQL dialects respectively per spec §1 ("PostgreSQL/
// CockroachDB, MySQL/MariaDB/Vitess").
func Lookup(name string) (SqlDialect, error) {
	if d, ok := registry[name]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("dialect: unknown dialect %q", name)
}

func init() {
	register(Postgres)
	register(aliasDialect{SqlDialect: Postgres, name: "cockroachdb"})
	register(MySQL)
	register(aliasDialect{SqlDialect: MySQL, name: "mariadb"})
	register(aliasDialect{SqlDialect: MySQL, name: "vitess"})
	register(SQLite)
	register(MSSQL)
}

// aliasDialect lets a second connection-URL scheme / server-version
// banner resolve to an existing dialect's strategy without duplicating
// its implementation, per spec §1's "bound to exactly one dialect" but
// "PostgreSQL/CockroachDB" sharing rules.
type aliasDialect struct {
	SqlDialect
	name string
}

func (a aliasDialect) Name() string { return a.name }
