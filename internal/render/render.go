// Package render turns the differ's typed steps (internal/step) into DDL
// text for a target dialect. It is pure: no I/O, no connections, just
// string building from the IR and the step vector, grounded on the
// teacher's database/*/database.go "generate DDL strings" helpers and
// schema/generator.go's string-builder style.
package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sqldef/schemacore/internal/dialect"
	"github.com/sqldef/schemacore/internal/ir"
	"github.com/sqldef/schemacore/internal/step"
)

// Renderer renders migration steps against a fixed dialect and a "next"
// schema snapshot (the schema the steps are moving the database toward).
// A Renderer is stateless beyond that snapshot: Render can be called
// repeatedly, in any order, for steps drawn from the same diff.
type Renderer struct {
	dial dialect.SqlDialect
	next *ir.SqlSchema
	prev *ir.SqlSchema // only needed to render RedefineTables' copy-columns clause
}

func New(dial dialect.SqlDialect, next, prev *ir.SqlSchema) *Renderer {
	return &Renderer{dial: dial, next: next, prev: prev}
}

// Render renders a single step to one or more DDL statements, in the
// order they must be executed.
func (r *Renderer) Render(s step.Step) ([]string, error) {
	switch v := s.(type) {
	case step.CreateNamespace:
		return []string{fmt.Sprintf("CREATE SCHEMA %s", r.dial.QuoteIdentifier(v.Name))}, nil
	case step.CreateEnum:
		return r.renderCreateEnum(v)
	case step.AlterEnum:
		return r.renderAlterEnum(v)
	case step.DropEnum:
		return []string{fmt.Sprintf("DROP TYPE %s", r.dial.QuoteIdentifier(v.EnumName))}, nil
	case step.CreateTable:
		return r.renderCreateTable(v)
	case step.DropTable:
		return []string{fmt.Sprintf("DROP TABLE %s", r.dial.QuoteIdentifier(v.TableName))}, nil
	case step.AlterTable:
		return r.renderAlterTable(v)
	case step.RedefineTables:
		return r.renderRedefineTables(v)
	case step.CreateIndex:
		return r.renderCreateIndex(v)
	case step.DropIndex:
		return []string{r.dropIndexStmt(v)}, nil
	case step.RenameIndex:
		return r.renderRenameIndex(v)
	case step.CreateForeignKey:
		return r.renderCreateForeignKey(v)
	case step.DropForeignKey:
		return []string{fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s",
			r.dial.QuoteIdentifier(r.tableName(v.TableID)), r.dial.QuoteIdentifier(v.ConstraintName))}, nil
	case step.CreateView:
		return r.renderCreateView(v)
	case step.DropView:
		return []string{fmt.Sprintf("DROP VIEW %s", r.dial.QuoteIdentifier(v.ViewName))}, nil
	case step.CreateExtension:
		stmt := fmt.Sprintf("CREATE EXTENSION IF NOT EXISTS %s", r.dial.QuoteIdentifier(v.Name))
		if v.Version != "" {
			stmt += fmt.Sprintf(" VERSION %q", v.Version)
		}
		return []string{stmt}, nil
	case step.AlterExtension:
		return []string{fmt.Sprintf("ALTER EXTENSION %s UPDATE TO %q", r.dial.QuoteIdentifier(v.Name), v.NewVersion)}, nil
	case step.DropExtension:
		return []string{fmt.Sprintf("DROP EXTENSION %s", r.dial.QuoteIdentifier(v.Name))}, nil
	default:
		return nil, fmt.Errorf("render: unhandled step kind %v", s.Kind())
	}
}

// RenderAll renders an ordered step vector into one semicolon-joined DDL
// script, matching the shape of the teacher's GenerateIdempotentDDLs
// output (one statement per line, terminated with ";").
func (r *Renderer) RenderAll(steps []step.Step) (string, error) {
	var sb strings.Builder
	for _, s := range steps {
		stmts, err := r.Render(s)
		if err != nil {
			return "", err
		}
		for _, stmt := range stmts {
			sb.WriteString(stmt)
			sb.WriteString(";\n")
		}
	}
	return sb.String(), nil
}

func (r *Renderer) tableName(id ir.TableID) string {
	if t, ok := r.next.Table(id); ok {
		return t.Name
	}
	if r.prev != nil {
		if t, ok := r.prev.Table(id); ok {
			return t.Name
		}
	}
	return ""
}

func (r *Renderer) columnName(id ir.ColumnID) string {
	if c, ok := r.next.Column(id); ok {
		return c.Name
	}
	if r.prev != nil {
		if c, ok := r.prev.Column(id); ok {
			return c.Name
		}
	}
	return ""
}

func (r *Renderer) renderCreateEnum(v step.CreateEnum) ([]string, error) {
	e, ok := r.next.Enum(v.EnumID)
	if !ok {
		return nil, fmt.Errorf("render: create enum: unknown enum id %d", v.EnumID)
	}
	vals := make([]string, len(e.Values))
	for i, ev := range e.Values {
		name := ev.MappedName
		if name == "" {
			name = ev.Name
		}
		vals[i] = fmt.Sprintf("'%s'", strings.ReplaceAll(name, "'", "''"))
	}
	return []string{fmt.Sprintf("CREATE TYPE %s AS ENUM (%s)", r.dial.QuoteIdentifier(e.Name), strings.Join(vals, ", "))}, nil
}

func (r *Renderer) renderAlterEnum(v step.AlterEnum) ([]string, error) {
	e, ok := r.next.Enum(v.EnumID)
	if !ok {
		return nil, fmt.Errorf("render: alter enum: unknown enum id %d", v.EnumID)
	}
	var stmts []string
	for _, added := range v.AddedValues {
		stmts = append(stmts, fmt.Sprintf("ALTER TYPE %s ADD VALUE '%s'",
			r.dial.QuoteIdentifier(e.Name), strings.ReplaceAll(added, "'", "''")))
	}
	// Postgres cannot drop enum values in place; the differ still reports
	// them in RemovedValues, but no statement is rendered for them here.
	return stmts, nil
}

func (r *Renderer) renderCreateTable(v step.CreateTable) ([]string, error) {
	t, ok := r.next.Table(v.TableID)
	if !ok {
		return nil, fmt.Errorf("render: create table: unknown table id %d", v.TableID)
	}
	cols := r.next.TableColumns(v.TableID)
	sort.Slice(cols, func(i, j int) bool { return cols[i].Position < cols[j].Position })

	var lines []string
	for _, c := range cols {
		lines = append(lines, r.renderColumnDef(c))
	}
	if pk := r.next.PrimaryKey(v.TableID); pk != nil {
		lines = append(lines, r.renderInlinePrimaryKey(*pk))
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("CREATE TABLE %s (\n", r.dial.QuoteIdentifier(t.Name)))
	sb.WriteString("  " + strings.Join(lines, ",\n  "))
	sb.WriteString("\n)")
	return []string{sb.String()}, nil
}

func (r *Renderer) renderColumnDef(c ir.Column) string {
	var sb strings.Builder
	sb.WriteString(r.dial.QuoteIdentifier(c.Name))
	sb.WriteString(" ")
	isPostgres := r.dial.Name() == "postgres" || r.dial.Name() == "cockroachdb"
	switch {
	case c.AutoIncrement && isPostgres && c.Family == ir.FamilyBigInt:
		sb.WriteString("BIGSERIAL")
	case c.AutoIncrement && isPostgres:
		sb.WriteString("SERIAL")
	default:
		sb.WriteString(r.renderNativeType(c.Native))
	}
	if c.Arity == ir.ArityRequired {
		sb.WriteString(" NOT NULL")
	}
	if c.AutoIncrement {
		switch r.dial.Name() {
		case "mysql":
			sb.WriteString(" AUTO_INCREMENT")
		case "sqlserver":
			sb.WriteString(" IDENTITY(1,1)")
		case "sqlite":
			// handled via INTEGER PRIMARY KEY rowid aliasing at the table level
		}
	}
	if def := r.renderDefault(c.Default); def != "" {
		sb.WriteString(" DEFAULT ")
		sb.WriteString(def)
	}
	return sb.String()
}

func (r *Renderer) renderNativeType(n ir.NativeType) string {
	if len(n.Args) == 0 {
		return strings.ToUpper(n.Name)
	}
	parts := make([]string, len(n.Args))
	for i, a := range n.Args {
		parts[i] = fmt.Sprintf("%d", a)
	}
	return fmt.Sprintf("%s(%s)", strings.ToUpper(n.Name), strings.Join(parts, ","))
}

func (r *Renderer) renderDefault(d ir.DefaultValue) string {
	switch {
	case d.Kind == ir.DefaultNone:
		return ""
	case d.IsAutoincrement():
		return "" // expressed via AUTO_INCREMENT / SERIAL / IDENTITY instead
	case d.IsNow():
		return "CURRENT_TIMESTAMP"
	case d.Kind == ir.DefaultLiteral:
		return d.Literal
	case d.Kind == ir.DefaultSequence:
		for _, sq := range r.next.Sequences {
			if sq.ID == d.SequenceID {
				return fmt.Sprintf("nextval('%s')", sq.Name)
			}
		}
		return ""
	case d.Kind == ir.DefaultFunctionCall:
		return fmt.Sprintf("%s(%s)", d.FunctionName, strings.Join(d.FunctionArgs, ", "))
	case d.Kind == ir.DefaultExpression:
		return d.Expression
	default:
		return ""
	}
}

func (r *Renderer) renderInlinePrimaryKey(idx ir.Index) string {
	names := make([]string, len(idx.Columns))
	for i, ic := range idx.Columns {
		names[i] = r.dial.QuoteIdentifier(r.columnName(ic.ColumnID))
	}
	return fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(names, ", "))
}

func (r *Renderer) renderAlterTable(v step.AlterTable) ([]string, error) {
	ch := v.Change
	tableName := r.tableName(ch.TableID)
	var stmts []string
	if ch.DropColumn != nil {
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s",
			r.dial.QuoteIdentifier(tableName), r.dial.QuoteIdentifier(r.columnName(*ch.DropColumn))))
	}
	if ch.AddColumn != nil {
		col, ok := r.next.Column(*ch.AddColumn)
		if !ok {
			return nil, fmt.Errorf("render: alter table: unknown added column id %d", *ch.AddColumn)
		}
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s",
			r.dial.QuoteIdentifier(tableName), r.renderColumnDef(col)))
	}
	if ch.AlterColumn != nil {
		stmts = append(stmts, r.renderAlterColumn(tableName, *ch.AlterColumn)...)
	}
	if ch.AlterComment != nil {
		stmts = append(stmts, fmt.Sprintf("COMMENT ON TABLE %s IS '%s'",
			r.dial.QuoteIdentifier(tableName), strings.ReplaceAll(*ch.AlterComment, "'", "''")))
	}
	if ch.DropPrimaryKey != nil {
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s_pkey", r.dial.QuoteIdentifier(tableName), tableName))
	}
	if ch.AddPrimaryKey != nil {
		if idx, ok := r.next.Index(*ch.AddPrimaryKey); ok {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD %s",
				r.dial.QuoteIdentifier(tableName), r.renderInlinePrimaryKey(idx)))
		}
	}
	return stmts, nil
}

func (r *Renderer) renderAlterColumn(tableName string, alt step.ColumnAlteration) []string {
	col, ok := r.next.Column(alt.ColumnID)
	if !ok {
		return nil
	}
	var stmts []string
	if alt.Changes.Has(step.ChangeType) || alt.Changes.Has(step.ChangeArity) {
		nullClause := "NOT NULL"
		if col.Arity != ir.ArityRequired {
			nullClause = "NULL"
		}
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s",
			r.dial.QuoteIdentifier(tableName), r.dial.QuoteIdentifier(col.Name), r.renderNativeType(col.Native)))
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET %s",
			r.dial.QuoteIdentifier(tableName), r.dial.QuoteIdentifier(col.Name), nullClause))
	}
	if alt.Changes.Has(step.ChangeDefault) {
		if def := r.renderDefault(col.Default); def != "" {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT %s",
				r.dial.QuoteIdentifier(tableName), r.dial.QuoteIdentifier(col.Name), def))
		} else {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP DEFAULT",
				r.dial.QuoteIdentifier(tableName), r.dial.QuoteIdentifier(col.Name)))
		}
	}
	if alt.Changes.Has(step.ChangeComment) && col.Description != "" {
		stmts = append(stmts, fmt.Sprintf("COMMENT ON COLUMN %s.%s IS '%s'",
			r.dial.QuoteIdentifier(tableName), r.dial.QuoteIdentifier(col.Name), strings.ReplaceAll(col.Description, "'", "''")))
	}
	return stmts
}

// renderRedefineTables implements the SQLite-style "create shadow table,
// copy shared columns, drop old, rename" sequence of spec §4.4. The differ
// routes sqlite table changes of primary key, type, arity or
// autoincrement through it, and sqlserver changes of a clustered primary
// key.
func (r *Renderer) renderRedefineTables(v step.RedefineTables) ([]string, error) {
	var stmts []string
	for i, tid := range v.TableIDs {
		t, ok := r.next.Table(tid)
		if !ok {
			continue
		}
		shadowName := t.Name + "_schemacore_new"
		create, err := r.renderCreateTable(step.CreateTable{TableID: tid})
		if err != nil {
			return nil, err
		}
		createShadow := strings.Replace(create[0], r.dial.QuoteIdentifier(t.Name), r.dial.QuoteIdentifier(shadowName), 1)
		stmts = append(stmts, createShadow)

		shared := r.sharedColumnNames(tid, prevTableID(v, i))
		if len(shared) > 0 {
			quoted := make([]string, len(shared))
			for j, n := range shared {
				quoted[j] = r.dial.QuoteIdentifier(n)
			}
			cols := strings.Join(quoted, ", ")
			stmts = append(stmts, fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s",
				r.dial.QuoteIdentifier(shadowName), cols, cols, r.dial.QuoteIdentifier(t.Name)))
		}
		stmts = append(stmts, fmt.Sprintf("DROP TABLE %s", r.dial.QuoteIdentifier(t.Name)))
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s RENAME TO %s", r.dial.QuoteIdentifier(shadowName), r.dial.QuoteIdentifier(t.Name)))
	}
	return stmts, nil
}

func prevTableID(v step.RedefineTables, i int) ir.TableID {
	if i < len(v.PrevTableIDs) {
		return v.PrevTableIDs[i]
	}
	return ir.NoID
}

func (r *Renderer) sharedColumnNames(nextID, prevID ir.TableID) []string {
	if r.prev == nil || prevID == ir.NoID {
		return nil
	}
	prevCols := r.prev.TableColumns(prevID)
	prevSet := make(map[string]bool, len(prevCols))
	for _, c := range prevCols {
		prevSet[c.Name] = true
	}
	nextCols := r.next.TableColumns(nextID)
	sort.Slice(nextCols, func(i, j int) bool { return nextCols[i].Position < nextCols[j].Position })
	var shared []string
	for _, c := range nextCols {
		if prevSet[c.Name] {
			shared = append(shared, c.Name)
		}
	}
	return shared
}

func (r *Renderer) renderCreateIndex(v step.CreateIndex) ([]string, error) {
	idx, ok := r.next.Index(v.IndexID)
	if !ok {
		return nil, fmt.Errorf("render: create index: unknown index id %d", v.IndexID)
	}
	t, ok := r.next.Table(idx.TableID)
	if !ok {
		return nil, fmt.Errorf("render: create index: unknown table for index %d", v.IndexID)
	}
	cols := make([]string, len(idx.Columns))
	for i, ic := range idx.Columns {
		name := r.dial.QuoteIdentifier(r.columnName(ic.ColumnID))
		if ic.LengthPrefix != nil {
			name = fmt.Sprintf("%s(%d)", name, *ic.LengthPrefix)
		}
		if strings.EqualFold(ic.SortOrder, "desc") {
			name += " DESC"
		}
		cols[i] = name
	}
	unique := ""
	if idx.IsUnique() {
		unique = "UNIQUE "
	}
	stmt := fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)", unique,
		r.dial.QuoteIdentifier(idx.Name), r.dial.QuoteIdentifier(t.Name), strings.Join(cols, ", "))
	if idx.Where != "" {
		stmt += " WHERE " + idx.Where
	}
	return []string{stmt}, nil
}

func (r *Renderer) dropIndexStmt(v step.DropIndex) string {
	switch r.dial.Name() {
	case "mysql":
		return fmt.Sprintf("ALTER TABLE %s DROP INDEX %s", r.dial.QuoteIdentifier(r.tableName(v.TableID)), r.dial.QuoteIdentifier(v.IndexName))
	default:
		return fmt.Sprintf("DROP INDEX %s", r.dial.QuoteIdentifier(v.IndexName))
	}
}

func (r *Renderer) renderRenameIndex(v step.RenameIndex) ([]string, error) {
	switch r.dial.Name() {
	case "postgres":
		return []string{fmt.Sprintf("ALTER INDEX %s RENAME TO %s", r.dial.QuoteIdentifier(v.OldName), r.dial.QuoteIdentifier(v.NewName))}, nil
	case "mysql":
		idx, ok := r.next.Index(v.IndexID)
		if !ok {
			return nil, fmt.Errorf("render: rename index: unknown index id %d", v.IndexID)
		}
		t, _ := r.next.Table(idx.TableID)
		return []string{fmt.Sprintf("ALTER TABLE %s RENAME INDEX %s TO %s",
			r.dial.QuoteIdentifier(t.Name), r.dial.QuoteIdentifier(v.OldName), r.dial.QuoteIdentifier(v.NewName))}, nil
	default:
		// sqlite/mssql have no rename-index statement; the differ routes
		// these dialects through drop+create instead (see internal/differ).
		return nil, fmt.Errorf("render: dialect %s has no RENAME INDEX support", r.dial.Name())
	}
}

func (r *Renderer) renderCreateForeignKey(v step.CreateForeignKey) ([]string, error) {
	fk, ok := r.next.ForeignKey(v.ForeignKeyID)
	if !ok {
		return nil, fmt.Errorf("render: create foreign key: unknown id %d", v.ForeignKeyID)
	}
	t, _ := r.next.Table(fk.ConstrainedTableID)
	refT, _ := r.next.Table(fk.ReferencedTableID)
	fromCols := make([]string, len(fk.Columns))
	toCols := make([]string, len(fk.Columns))
	for i, c := range fk.Columns {
		fromCols[i] = r.dial.QuoteIdentifier(r.columnName(c.FromColumnID))
		toCols[i] = r.dial.QuoteIdentifier(r.columnName(c.ToColumnID))
	}
	stmt := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s) ON DELETE %s ON UPDATE %s",
		r.dial.QuoteIdentifier(t.Name), r.dial.QuoteIdentifier(fk.Name), strings.Join(fromCols, ", "),
		r.dial.QuoteIdentifier(refT.Name), strings.Join(toCols, ", "),
		fk.OnDelete.String(), fk.OnUpdate.String())
	return []string{stmt}, nil
}

func (r *Renderer) renderCreateView(v step.CreateView) ([]string, error) {
	view, ok := r.next.View(v.ViewID)
	if !ok {
		return nil, fmt.Errorf("render: create view: unknown id %d", v.ViewID)
	}
	return []string{fmt.Sprintf("CREATE VIEW %s AS %s", r.dial.QuoteIdentifier(view.Name), view.Definition)}, nil
}
