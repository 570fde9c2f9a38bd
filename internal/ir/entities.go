package ir

// TableProperty is one bit of Table.Properties (spec §3).
type TableProperty uint32

const (
	PropIsPartition TableProperty = 1 << iota
	PropHasSubclass
	PropHasRowLevelSecurity
	PropHasExcludeConstraint
	PropUsesRowLevelTTL
)

func (p TableProperty) Has(bit TableProperty) bool { return p&bit != 0 }

// Namespace is a schema/database namespace. Dialects with a single
// implicit namespace (MySQL, SQLite) still populate exactly one.
type Namespace struct {
	ID   NamespaceID
	Name string
}

// Table is a relation. Columns, indexes and foreign keys are stored in
// their own arenas and reference their table by TableID.
type Table struct {
	ID          TableID
	NamespaceID NamespaceID
	Name        string
	Properties  TableProperty
	Description string // database COMMENT, empty if none
}

// ScalarFamily is the semantic type family of a column, independent of
// the dialect's native spelling.
type ScalarFamily int

const (
	FamilyUnsupported ScalarFamily = iota
	FamilyString
	FamilyInt
	FamilyBigInt
	FamilyFloat
	FamilyDecimal
	FamilyBool
	FamilyDate
	FamilyDateTime
	FamilyTime
	FamilyBytes
	FamilyJSON
	FamilyEnum
)

func (f ScalarFamily) String() string {
	names := [...]string{"Unsupported", "String", "Int", "BigInt", "Float", "Decimal", "Bool", "Date", "DateTime", "Time", "Bytes", "Json", "Enum"}
	if int(f) < len(names) {
		return names[f]
	}
	return "Unsupported"
}

func (f ScalarFamily) IsInteger() bool { return f == FamilyInt || f == FamilyBigInt }

// NativeType carries a dialect's concrete type spelling, e.g.
// Name="VarChar", Args=[255] for Postgres `VarChar(255)`, or
// Name="Decimal", Args=[10,2].
type NativeType struct {
	Name string
	Args []int
	// EnumID is set when Family == FamilyEnum and the native type refers
	// to a named enum rather than a builtin.
	EnumID EnumID
}

// Arity is a column's cardinality (spec §3).
type Arity int

const (
	ArityRequired Arity = iota
	ArityNullable
	ArityList
)

// DefaultKind discriminates the DefaultValue sum type (spec §3).
type DefaultKind int

const (
	DefaultNone DefaultKind = iota
	DefaultLiteral
	DefaultSequence
	DefaultFunctionCall
	DefaultExpression // connector-specific / dbgenerated expression
)

// DefaultValue is the sum type backing Column.Default.
type DefaultValue struct {
	Kind DefaultKind

	// DefaultLiteral
	Literal string

	// DefaultSequence
	SequenceID SequenceID

	// DefaultFunctionCall, e.g. "now", "autoincrement", "uuid"
	FunctionName string
	FunctionArgs []string

	// DefaultExpression / dbgenerated("...")
	Expression string
}

func (d DefaultValue) IsAutoincrement() bool {
	return d.Kind == DefaultFunctionCall && d.FunctionName == "autoincrement"
}

func (d DefaultValue) IsNow() bool {
	return d.Kind == DefaultFunctionCall && d.FunctionName == "now"
}

// Column is a table column (spec §3, invariant 4 & 5 enforced by the
// calculator/describer that constructs it, not by the struct itself).
type Column struct {
	ID            ColumnID
	TableID       TableID
	Name          string
	Position      int // catalog-reported ordinal, preserved verbatim (§4.2)
	Family        ScalarFamily
	Native        NativeType
	Arity         Arity
	Default       DefaultValue
	AutoIncrement bool
	Description   string
}

// IndexKind is the Index.Kind enum of spec §3.
type IndexKind int

const (
	IndexNormal IndexKind = iota
	IndexPrimary
	IndexUnique
	IndexFullText
)

// IndexColumn is one column reference inside an Index, in index-key
// order.
type IndexColumn struct {
	ColumnID      ColumnID
	SortOrder     string // "asc"/"desc", empty = dialect default
	LengthPrefix  *int   // MySQL prefix index length, nil if not used
	OperatorClass string // Postgres opclass, empty if default
}

// Index models a primary key, unique constraint, secondary index or
// full-text index uniformly; Kind discriminates.
type Index struct {
	ID        IndexID
	TableID   TableID
	Name      string
	Kind      IndexKind
	Algorithm string // dialect-specific (btree/hash/gin/...), empty = default
	Columns   []IndexColumn
	Clustered *bool  // MSSQL only; nil = not applicable
	Where     string // Postgres partial index predicate, empty if none
}

func (i Index) IsPrimary() bool { return i.Kind == IndexPrimary }
func (i Index) IsUnique() bool  { return i.Kind == IndexPrimary || i.Kind == IndexUnique }

// ReferentialAction is shared by ForeignKey.OnDelete/OnUpdate.
type ReferentialAction int

const (
	ActionNoAction ReferentialAction = iota
	ActionRestrict
	ActionCascade
	ActionSetNull
	ActionSetDefault
)

func (a ReferentialAction) String() string {
	switch a {
	case ActionRestrict:
		return "RESTRICT"
	case ActionCascade:
		return "CASCADE"
	case ActionSetNull:
		return "SET NULL"
	case ActionSetDefault:
		return "SET DEFAULT"
	default:
		return "NO ACTION"
	}
}

// ForeignKeyColumn pairs one constrained column with the referenced
// column it points at, in declaration order.
type ForeignKeyColumn struct {
	FromColumnID ColumnID
	ToColumnID   ColumnID
}

type ForeignKey struct {
	ID                 ForeignKeyID
	Name               string
	ConstrainedTableID TableID
	ReferencedTableID  TableID
	Columns            []ForeignKeyColumn
	OnDelete           ReferentialAction
	OnUpdate           ReferentialAction
}

// EnumValue is one member of an Enum, with an optional DML-facing mapped
// name carried across introspection (§4.7).
type EnumValue struct {
	Name       string
	MappedName string
}

type Enum struct {
	ID          EnumID
	NamespaceID NamespaceID
	Name        string
	Values      []EnumValue
}

type View struct {
	ID          ViewID
	NamespaceID NamespaceID
	Name        string
	Definition  string
	Columns     []string
}

type Sequence struct {
	ID          SequenceID
	NamespaceID NamespaceID
	Name        string
	Start       int64
	Min         int64
	Max         int64
	Increment   int64
	Cache       int64
}
