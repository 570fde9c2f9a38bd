// Package dml defines the validated data-model-language document that
// internal/calculate consumes and internal/introspect produces. Parsing
// DML text into this shape (and rendering it back to text for everything
// but introspection's own output) is explicitly out of scope (spec §1);
// this package only carries the already-validated structure both
// components share, the way the teacher's schema/ast.go carries an
// already-parsed DDL AST between its own parser and generator stages.
package dml

// Document is one DML file's worth of declarations: models, enums, and
// views, in source order (source order is preserved across introspection
// runs so re-introspection is textually stable, per §4.7's idempotence
// requirement).
type Document struct {
	Models []Model
	Enums  []Enum
	Views  []View
}

// Model is a `model Name { ... }` block.
type Model struct {
	Name        string // DML-facing name
	MappedName  string // @@map("raw_table_name"), empty if same as table name
	Doc         string // leading doc comment, without the /// markers
	Ignored     bool   // @@ignore
	Fields      []Field
	Uniques     []CompoundIndex // @@unique([...], map: "...")
	ID          *CompoundIndex  // @@id([...], map: "..."), nil if single-field @id or no PK
	Indexes     []CompoundIndex // @@index([...], map: "...")
}

// Field is one scalar or relation field inside a Model.
type Field struct {
	Name       string
	MappedName string // @map("raw_column_name")
	Doc        string
	Commented  bool // emitted as a commented-out line (unmappable name)

	// Scalar fields
	NativeType   string // e.g. "VarChar(255)", empty for relation fields
	Family       string // informational mirror of ir.ScalarFamily.String()
	Optional     bool
	List         bool
	Unique       bool // field-level @unique
	ID           bool // field-level @id
	UpdatedAt    bool // @updatedAt
	Default      *DefaultExpr
	Unsupported  string // Unsupported("raw type") payload, empty if not unsupported

	// Relation fields
	IsRelation       bool
	RelationName     string   // explicit or synthesized @relation("Name")
	RelationTarget   string   // referenced model name
	RelationFields   []string // local column names, empty on the "back" side
	RelationRefs     []string // referenced column names, empty on the "back" side
	RelationOnDelete string
	RelationOnUpdate string
}

type DefaultExpr struct {
	IsAutoincrement bool
	IsNow           bool
	IsUUID          bool
	Literal         string // literal value text, empty if a function default
	Expression      string // dbgenerated("...") payload, empty otherwise
}

// CompoundIndex models @@unique/@@id/@@index: an ordered field list plus
// an optional explicit map name.
type CompoundIndex struct {
	Fields  []string
	MapName string
}

type EnumValue struct {
	Name       string
	MappedName string // @map("RAW_VALUE")
}

type Enum struct {
	Name   string
	Values []EnumValue
	Doc    string
}

type View struct {
	Name       string
	MappedName string
	Definition string
	Doc        string
}
