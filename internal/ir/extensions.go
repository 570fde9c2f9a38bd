package ir

// Dialect extension side-tables (spec §3's "Dialect extension
// side-tables"). These live outside the core arenas because only one
// dialect's describer/calculator ever populates them; keeping them
// separate means the core Table/Column/Index structs stay dialect-free.

// PostgresExpressionIndex records an index whose key is an expression
// rather than a plain column list — read as opaque text by the describer
// per §4.2 ("read expression indexes as opaque text into the Postgres
// side-table").
type PostgresExpressionIndex struct {
	IndexID    IndexID
	Expression string
}

// PostgresIndexInclude records a Postgres `INCLUDE (...)` column list,
// read separately from key columns per §4.2.
type PostgresIndexInclude struct {
	IndexID ID
	Columns []ColumnID
}

type PostgresExtension struct {
	NamespaceID NamespaceID
	Name        string
	Version     string
	Schema      string
}

// PostgresExclusionConstraint models `EXCLUDE USING ... (...)`.
type PostgresExclusionConstraint struct {
	TableID    TableID
	Name       string
	Using      string
	Elements   []string // "column WITH operator" pairs, rendered verbatim
	Where      string
}

// MySQLTableEngine records the storage engine (InnoDB, MyISAM, ...) since
// it affects both rendering and which capabilities apply.
type MySQLTableEngine struct {
	TableID TableID
	Engine  string
	Charset string
	Collate string
}

// MSSQLClusteredPrimaryKey flags whether a table's primary key is
// clustered; MSSQL also allows a clustered *non-primary* unique index, so
// this is tracked per-table in addition to Index.Clustered.
type MSSQLClusteredPrimaryKey struct {
	TableID   TableID
	Clustered bool
}

// Extensions is the bag of dialect extension side-tables attached to a
// SqlSchema. A schema only populates the side-table(s) relevant to its
// own dialect; the rest stay empty slices.
type Extensions struct {
	PostgresExpressionIndexes []PostgresExpressionIndex
	PostgresIndexIncludes     []PostgresIndexInclude
	PostgresExtensions        []PostgresExtension
	PostgresExclusions        []PostgresExclusionConstraint

	MySQLTableEngines []MySQLTableEngine

	MSSQLClusteredPKs []MSSQLClusteredPrimaryKey
}
