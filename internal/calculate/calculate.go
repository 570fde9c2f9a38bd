// Package calculate implements the schema calculator of spec §4.6: it
// walks a validated DML document and emits an ir.SqlSchema, the inverse
// of internal/introspect. Grounded on the teacher's schema/generator.go
// in spirit (a single visitor walking a validated structure and emitting
// IR-shaped output) even though the teacher's input is parsed DDL rather
// than a declarative model language.
package calculate

import (
	"fmt"
	"strings"

	"github.com/sqldef/schemacore/internal/dialect"
	"github.com/sqldef/schemacore/internal/dml"
	"github.com/sqldef/schemacore/internal/ir"
	"github.com/sqldef/schemacore/pkg/diag"
)

// Calculate converts a validated DML document into an ir.SqlSchema bound
// to dial. Unrecognized native types are carried as diagnostics rather
// than aborting the whole pass (spec §4.6's "diagnostics channel").
func Calculate(doc *dml.Document, dial dialect.SqlDialect) (*ir.SqlSchema, diag.Diagnostics, error) {
	s := ir.New(dial.Name())
	var diags diag.Diagnostics

	nsID := s.AddNamespace(defaultNamespace(dial))

	for _, e := range doc.Enums {
		en := ir.Enum{NamespaceID: nsID, Name: e.Name}
		for _, v := range e.Values {
			name := v.Name
			if v.MappedName != "" {
				name = v.MappedName
			}
			en.Values = append(en.Values, ir.EnumValue{Name: name, MappedName: v.MappedName})
		}
		s.AddEnum(en)
	}

	tableIDs := make(map[string]ir.TableID, len(doc.Models))
	for _, m := range doc.Models {
		name := m.Name
		if m.MappedName != "" {
			name = m.MappedName
		}
		tableIDs[m.Name] = s.AddTable(ir.Table{NamespaceID: nsID, Name: name, Description: m.Doc})
	}

	colIDs := make(map[[2]string]ir.ColumnID) // (modelName, fieldName) -> ColumnID
	for _, m := range doc.Models {
		tid := tableIDs[m.Name]
		for _, f := range m.Fields {
			if f.IsRelation || f.Commented {
				continue
			}
			col, err := calculateColumn(s, dial, tid, m, f, &diags)
			if err != nil {
				return nil, diags, err
			}
			colIDs[[2]string{m.Name, f.Name}] = col
		}
	}

	for _, m := range doc.Models {
		tid := tableIDs[m.Name]
		calculatePrimaryKey(s, tid, m, colIDs)
		calculateUniquesAndIndexes(s, tid, m, colIDs)
	}

	seenManyToMany := make(map[string]bool)
	for _, m := range doc.Models {
		for _, f := range m.Fields {
			if !f.IsRelation {
				continue
			}
			if f.List && len(f.RelationFields) == 0 {
				// Implicit many-to-many side; materialize once per pair.
				key := manyToManyKey(m.Name, f.RelationTarget)
				if seenManyToMany[key] {
					continue
				}
				seenManyToMany[key] = true
				materializeManyToMany(s, dial, nsID, m.Name, f.RelationTarget, tableIDs)
				continue
			}
			if len(f.RelationFields) == 0 {
				continue // back-relation side, no FK to emit from here
			}
			if err := calculateForeignKey(s, dial, tableIDs, colIDs, m, f, &diags); err != nil {
				return nil, diags, err
			}
		}
	}

	detectMssqlCascadeCycles(s, dial, &diags)

	for _, v := range doc.Views {
		name := v.Name
		if v.MappedName != "" {
			name = v.MappedName
		}
		s.AddView(ir.View{NamespaceID: nsID, Name: name, Definition: v.Definition})
	}

	return s, diags, nil
}

func defaultNamespace(dial dialect.SqlDialect) string {
	switch dial.Name() {
	case "postgres":
		return "public"
	case "sqlserver":
		return "dbo"
	default:
		return "main"
	}
}

func calculateColumn(s *ir.SqlSchema, dial dialect.SqlDialect, tid ir.TableID, m dml.Model, f dml.Field, diags *diag.Diagnostics) (ir.ColumnID, error) {
	name := f.Name
	if f.MappedName != "" {
		name = f.MappedName
	}

	var native ir.NativeType
	var family ir.ScalarFamily
	if f.Unsupported != "" {
		family = ir.FamilyUnsupported
		diags.Warn("UNSUPPORTED_FIELD_TYPE", m.Name+"."+f.Name, "field has an unsupported type %q and is carried through opaquely", f.Unsupported)
	} else {
		parsed, err := dial.ParseNativeType(nativeTypeName(f.NativeType), nativeTypeArgs(f.NativeType))
		if err != nil {
			diags.Warn("NATIVE_TYPE_UNRESOLVED", m.Name+"."+f.Name, "%s", err.Error())
			native = dial.DefaultNativeTypeFor(ir.FamilyString)
			family = ir.FamilyString
		} else {
			native = parsed
			family = dial.ScalarFamilyForNativeType(native)
		}
	}

	arity := ir.ArityRequired
	if f.List {
		arity = ir.ArityList
	} else if f.Optional {
		arity = ir.ArityNullable
	}

	def, auto := calculateDefault(f)

	col := ir.Column{
		TableID: tid, Name: name, Family: family, Native: native,
		Arity: arity, Default: def, AutoIncrement: auto, Description: f.Doc,
	}
	return s.AddColumn(col), nil
}

// nativeTypeName/nativeTypeArgs split a DML @db.Xxx(args) native-type
// attribute spelling like "VarChar(255)" into name + integer args; the
// DML parser that originally produced this string is out of scope, but
// the calculator still needs to hand the dialect a clean (name, args)
// pair.
func nativeTypeName(spelling string) string {
	if spelling == "" {
		return ""
	}
	if i := strings.IndexByte(spelling, '('); i >= 0 {
		return spelling[:i]
	}
	return spelling
}

func nativeTypeArgs(spelling string) []int {
	i := strings.IndexByte(spelling, '(')
	if i < 0 {
		return nil
	}
	j := strings.LastIndexByte(spelling, ')')
	if j < 0 || j <= i {
		return nil
	}
	var args []int
	for _, part := range strings.Split(spelling[i+1:j], ",") {
		var n int
		if _, err := fmt.Sscanf(strings.TrimSpace(part), "%d", &n); err == nil {
			args = append(args, n)
		}
	}
	return args
}

// calculateDefault implements the `autoincrement()` decision of §4.6: an
// autoincrement default on an integer column sets AutoIncrement and is
// modeled, for every dialect, as the "autoincrement" function-call
// default. No sequence is created here: on Postgres/Cockroach the renderer
// materializes it by rendering the column as SERIAL/BIGSERIAL.
func calculateDefault(f dml.Field) (ir.DefaultValue, bool) {
	if f.Default == nil {
		return ir.DefaultValue{Kind: ir.DefaultNone}, false
	}
	switch {
	case f.Default.IsAutoincrement:
		return ir.DefaultValue{Kind: ir.DefaultFunctionCall, FunctionName: "autoincrement"}, true
	case f.Default.IsNow:
		return ir.DefaultValue{Kind: ir.DefaultFunctionCall, FunctionName: "now"}, false
	case f.Default.IsUUID:
		return ir.DefaultValue{Kind: ir.DefaultFunctionCall, FunctionName: "uuid"}, false
	case f.Default.Expression != "":
		return ir.DefaultValue{Kind: ir.DefaultExpression, Expression: f.Default.Expression}, false
	default:
		return ir.DefaultValue{Kind: ir.DefaultLiteral, Literal: f.Default.Literal}, false
	}
}

// calculatePrimaryKey implements: single-field @id -> PK index on that
// column; @@id with more than one field -> composite PK index (spec
// §4.6, boundary behavior in §8: "a composite PK with more than one
// field stays as @@id").
func calculatePrimaryKey(s *ir.SqlSchema, tid ir.TableID, m dml.Model, colIDs map[[2]string]ir.ColumnID) {
	if m.ID != nil && len(m.ID.Fields) > 0 {
		idx := ir.Index{TableID: tid, Kind: ir.IndexPrimary, Name: m.ID.MapName}
		for _, fname := range m.ID.Fields {
			if cid, ok := colIDs[[2]string{m.Name, fname}]; ok {
				idx.Columns = append(idx.Columns, ir.IndexColumn{ColumnID: cid})
			}
		}
		if len(idx.Columns) > 0 {
			s.AddIndex(idx)
		}
		return
	}
	for _, f := range m.Fields {
		if f.ID {
			if cid, ok := colIDs[[2]string{m.Name, f.Name}]; ok {
				s.AddIndex(ir.Index{TableID: tid, Kind: ir.IndexPrimary, Columns: []ir.IndexColumn{{ColumnID: cid}}})
			}
			return
		}
	}
}

// calculateUniquesAndIndexes implements: field-level @unique collapses
// to a single-column unique index; @@unique([...]) becomes a composite
// unique index; @@index([...]) becomes a plain secondary index (spec
// §4.6, §8 boundary behaviors).
func calculateUniquesAndIndexes(s *ir.SqlSchema, tid ir.TableID, m dml.Model, colIDs map[[2]string]ir.ColumnID) {
	for _, f := range m.Fields {
		if f.Unique && !f.IsRelation {
			if cid, ok := colIDs[[2]string{m.Name, f.Name}]; ok {
				s.AddIndex(ir.Index{TableID: tid, Kind: ir.IndexUnique, Columns: []ir.IndexColumn{{ColumnID: cid}}})
			}
		}
	}
	for _, u := range m.Uniques {
		idx := ir.Index{TableID: tid, Kind: ir.IndexUnique, Name: u.MapName}
		for _, fname := range u.Fields {
			if cid, ok := colIDs[[2]string{m.Name, fname}]; ok {
				idx.Columns = append(idx.Columns, ir.IndexColumn{ColumnID: cid})
			}
		}
		if len(idx.Columns) > 0 {
			s.AddIndex(idx)
		}
	}
	for _, ix := range m.Indexes {
		idx := ir.Index{TableID: tid, Kind: ir.IndexNormal, Name: ix.MapName}
		for _, fname := range ix.Fields {
			if cid, ok := colIDs[[2]string{m.Name, fname}]; ok {
				idx.Columns = append(idx.Columns, ir.IndexColumn{ColumnID: cid})
			}
		}
		if len(idx.Columns) > 0 {
			s.AddIndex(idx)
		}
	}
}

// calculateForeignKey implements: a relation field with inline fields
// produces a foreign key; onDelete/onUpdate default per §4.1; the name is
// the field's relation name (@relation("Name")) if set, else
// `<Table>_<col1>_<col2>_fkey` (spec §4.6). No @relation(map:) value is
// read: dml.Field carries none.
func calculateForeignKey(s *ir.SqlSchema, dial dialect.SqlDialect, tableIDs map[string]ir.TableID, colIDs map[[2]string]ir.ColumnID, m dml.Model, f dml.Field, diags *diag.Diagnostics) error {
	tid, ok := tableIDs[m.Name]
	if !ok {
		return nil
	}
	refTid, ok := tableIDs[f.RelationTarget]
	if !ok {
		diags.Warn("RELATION_TARGET_UNRESOLVED", m.Name+"."+f.Name, "relation targets unknown model %q", f.RelationTarget)
		return nil
	}

	required := !f.Optional
	onDelete := dial.DefaultOnDelete(required)
	onUpdate := dial.DefaultOnUpdate(required)
	if f.RelationOnDelete != "" {
		onDelete = parseAction(f.RelationOnDelete)
	}
	if f.RelationOnUpdate != "" {
		onUpdate = parseAction(f.RelationOnUpdate)
	}

	name := f.RelationName
	if name == "" {
		name = fmt.Sprintf("%s_%s_fkey", m.Name, strings.Join(f.RelationFields, "_"))
	}

	fk := ir.ForeignKey{Name: name, ConstrainedTableID: tid, ReferencedTableID: refTid, OnDelete: onDelete, OnUpdate: onUpdate}
	for i, local := range f.RelationFields {
		var ref string
		if i < len(f.RelationRefs) {
			ref = f.RelationRefs[i]
		}
		fromID, ok1 := colIDs[[2]string{m.Name, local}]
		toID, ok2 := colIDs[[2]string{f.RelationTarget, ref}]
		if !ok1 || !ok2 {
			continue
		}
		fk.Columns = append(fk.Columns, ir.ForeignKeyColumn{FromColumnID: fromID, ToColumnID: toID})
	}
	if len(fk.Columns) > 0 {
		s.AddForeignKey(fk)
	}
	return nil
}

// modifiesChildren reports whether a referential action writes to the
// child rows rather than merely refusing or no-op'ing the parent change.
func modifiesChildren(a ir.ReferentialAction) bool {
	return a == ir.ActionCascade || a == ir.ActionSetNull || a == ir.ActionSetDefault
}

// detectMssqlCascadeCycles flags two or more foreign keys between the
// same pair of tables that both carry a modifying on_delete/on_update
// action. SQL Server rejects this at DDL time ("may cause cycles or
// multiple cascade paths"); this surfaces the same condition as a
// diagnostic up front instead of letting it surface as an opaque server
// error later, grounded on the original's referential_actions.rs
// detect_cycles validation (ported here as a diagnostic rather than a
// hard validation error, per §4.6/§7's diagnostics-channel policy for
// pure components).
func detectMssqlCascadeCycles(s *ir.SqlSchema, dial dialect.SqlDialect, diags *diag.Diagnostics) {
	if dial.Name() != "sqlserver" {
		return
	}
	type pairKey struct{ a, b ir.TableID }
	byPair := make(map[pairKey][]ir.ForeignKey)
	for _, fk := range s.ForeignKeys {
		if !modifiesChildren(fk.OnDelete) && !modifiesChildren(fk.OnUpdate) {
			continue
		}
		byPair[pairKey{fk.ConstrainedTableID, fk.ReferencedTableID}] = append(byPair[pairKey{fk.ConstrainedTableID, fk.ReferencedTableID}], fk)
	}
	for key, fks := range byPair {
		if len(fks) < 2 {
			continue
		}
		constrained, _ := s.Table(key.a)
		referenced, _ := s.Table(key.b)
		diags.Warn("MSSQL_MULTIPLE_CASCADE_PATHS", constrained.Name,
			"%d relations between %q and %q both carry a modifying referential action (CASCADE/SetNull/SetDefault); SQL Server rejects more than one cascade path between the same two tables",
			len(fks), constrained.Name, referenced.Name)
	}
}

func parseAction(name string) ir.ReferentialAction {
	switch strings.ToLower(name) {
	case "cascade":
		return ir.ActionCascade
	case "setnull":
		return ir.ActionSetNull
	case "setdefault":
		return ir.ActionSetDefault
	case "restrict":
		return ir.ActionRestrict
	default:
		return ir.ActionNoAction
	}
}

func manyToManyKey(a, b string) string {
	if a < b {
		return a + "|" + b
	}
	return b + "|" + a
}

// materializeManyToMany implements spec §4.6's implicit
// many-to-many shape: a join table `_<A>To<B>` (alphabetical by model
// name) with columns A, B, a unique index (A,B), a non-unique index (B),
// and two CASCADE foreign keys.
func materializeManyToMany(s *ir.SqlSchema, dial dialect.SqlDialect, nsID ir.NamespaceID, modelA, modelB string, tableIDs map[string]ir.TableID) {
	first, second := modelA, modelB
	if second < first {
		first, second = second, first
	}
	joinName := fmt.Sprintf("_%sTo%s", first, second)

	aTid, ok1 := tableIDs[first]
	bTid, ok2 := tableIDs[second]
	if !ok1 || !ok2 {
		return
	}
	aPK := s.PrimaryKey(aTid)
	bPK := s.PrimaryKey(bTid)
	if aPK == nil || len(aPK.Columns) != 1 || bPK == nil || len(bPK.Columns) != 1 {
		return // implicit m2m requires a single-column id on both sides
	}
	aPKCol, _ := s.Column(aPK.Columns[0].ColumnID)
	bPKCol, _ := s.Column(bPK.Columns[0].ColumnID)

	joinTid := s.AddTable(ir.Table{NamespaceID: nsID, Name: joinName})
	colA := s.AddColumn(ir.Column{TableID: joinTid, Name: "A", Family: aPKCol.Family, Native: aPKCol.Native, Arity: ir.ArityRequired})
	colB := s.AddColumn(ir.Column{TableID: joinTid, Name: "B", Family: bPKCol.Family, Native: bPKCol.Native, Arity: ir.ArityRequired})

	s.AddIndex(ir.Index{TableID: joinTid, Kind: ir.IndexUnique, Name: joinName + "_AB_unique", Columns: []ir.IndexColumn{{ColumnID: colA}, {ColumnID: colB}}})
	s.AddIndex(ir.Index{TableID: joinTid, Kind: ir.IndexNormal, Name: joinName + "_B_index", Columns: []ir.IndexColumn{{ColumnID: colB}}})

	s.AddForeignKey(ir.ForeignKey{
		Name: joinName + "_A_fkey", ConstrainedTableID: joinTid, ReferencedTableID: aTid,
		Columns: []ir.ForeignKeyColumn{{FromColumnID: colA, ToColumnID: aPK.Columns[0].ColumnID}},
		OnDelete: ir.ActionCascade, OnUpdate: dial.DefaultOnUpdate(true),
	})
	s.AddForeignKey(ir.ForeignKey{
		Name: joinName + "_B_fkey", ConstrainedTableID: joinTid, ReferencedTableID: bTid,
		Columns: []ir.ForeignKeyColumn{{FromColumnID: colB, ToColumnID: bPK.Columns[0].ColumnID}},
		OnDelete: ir.ActionCascade, OnUpdate: dial.DefaultOnUpdate(true),
	})
}
