// Package sqlite implements the C3 describer for SQLite: live connection
// -> ir.SqlSchema. Tables and views are listed from sqlite_master; columns,
// indexes and foreign keys come from the PRAGMA family (table_info,
// index_list, index_info, foreign_key_list) rather than from re-parsing
// sqlite_master's stored DDL text, since the DML/SQL parser is out of scope.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/sqldef/schemacore/internal/dialect"
	"github.com/sqldef/schemacore/internal/ir"
	"github.com/sqldef/schemacore/pkg/diag"
)

// Describe populates an ir.SqlSchema from a SQLite database. SQLite has
// no namespace concept beyond "main", so exactly one ir.Namespace named
// "main" is always created.
func Describe(ctx context.Context, db *sql.DB) (*ir.SqlSchema, diag.Diagnostics, error) {
	s := ir.New(dialect.SQLite.Name())
	var diags diag.Diagnostics

	nsID := s.AddNamespace("main")

	tableNames, err := listTables(ctx, db)
	if err != nil {
		return nil, diags, fmt.Errorf("describe: table list: %w", err)
	}

	tableIDs := make(map[string]ir.TableID, len(tableNames))
	for _, name := range tableNames {
		tableIDs[name] = s.AddTable(ir.Table{NamespaceID: nsID, Name: name})
	}

	colIDs := make(map[[2]string]ir.ColumnID)
	for _, name := range tableNames {
		if err := describeColumns(ctx, db, s, name, tableIDs[name], colIDs, &diags); err != nil {
			return nil, diags, fmt.Errorf("describe: columns of %q: %w", name, err)
		}
	}

	for _, name := range tableNames {
		if err := describeIndexes(ctx, db, s, name, tableIDs[name], colIDs); err != nil {
			return nil, diags, fmt.Errorf("describe: indexes of %q: %w", name, err)
		}
	}

	for _, name := range tableNames {
		if err := describeForeignKeys(ctx, db, s, name, tableIDs, colIDs); err != nil {
			return nil, diags, fmt.Errorf("describe: foreign keys of %q: %w", name, err)
		}
	}

	if err := describeViews(ctx, db, s, nsID); err != nil {
		return nil, diags, fmt.Errorf("describe: views: %w", err)
	}

	return s, diags, nil
}

func listTables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table'
		AND name NOT LIKE 'sqlite_%'
		AND name != '_prisma_migrations'
		ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func describeColumns(ctx context.Context, db *sql.DB, s *ir.SqlSchema, table string, tid ir.TableID, colIDs map[[2]string]ir.ColumnID, diags *diag.Diagnostics) error {
	// table name is validated against sqlite_master just above and can't
	// carry injection; PRAGMA doesn't accept bind parameters.
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, dialect.SQLite.QuoteIdentifier(table)))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, declType string
		var notNull, pk int
		var defaultVal sql.NullString
		if err := rows.Scan(&cid, &name, &declType, &notNull, &defaultVal, &pk); err != nil {
			return err
		}
		native, err := dialect.SQLite.ParseNativeType(normalizeDeclType(declType), nil)
		family := dialect.SQLite.ScalarFamilyForNativeType(native)
		if err != nil || family == ir.FamilyUnsupported {
			diags.Info("NATIVE_TYPE_UNSUPPORTED", table+"."+name, "column has an unsupported declared type %q", declType)
		}
		arity := ir.ArityRequired
		if notNull == 0 && pk == 0 {
			arity = ir.ArityNullable
		}
		def, auto := parseDefault(defaultVal, pk != 0, declType)
		id := s.AddColumn(ir.Column{
			TableID: tid, Name: name, Position: cid + 1, Family: family, Native: native,
			Arity: arity, Default: def, AutoIncrement: auto,
		})
		colIDs[[2]string{table, name}] = id
	}
	if err := rows.Err(); err != nil {
		return err
	}
	return addPrimaryKey(ctx, db, s, table, tid, colIDs)
}

func normalizeDeclType(declType string) string {
	name := declType
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(strings.TrimSpace(name))
}

func parseDefault(defaultVal sql.NullString, isPK bool, declType string) (ir.DefaultValue, bool) {
	if isPK && strings.EqualFold(declType, "integer") {
		return ir.DefaultValue{Kind: ir.DefaultFunctionCall, FunctionName: "autoincrement"}, true
	}
	if !defaultVal.Valid {
		return ir.DefaultValue{Kind: ir.DefaultNone}, false
	}
	expr := strings.TrimSpace(defaultVal.String)
	switch {
	case strings.EqualFold(expr, "CURRENT_TIMESTAMP"):
		return ir.DefaultValue{Kind: ir.DefaultFunctionCall, FunctionName: "now"}, false
	case strings.HasPrefix(expr, "'") && strings.HasSuffix(expr, "'"):
		return ir.DefaultValue{Kind: ir.DefaultLiteral, Literal: strings.Trim(expr, "'")}, false
	default:
		return ir.DefaultValue{Kind: ir.DefaultLiteral, Literal: expr}, false
	}
}

// addPrimaryKey synthesizes the PK as a normal Index entry, matching how
// every other dialect's describer represents it (spec §4.2: "primary key
// is an Index with Kind=Primary", SQLite's table_info pk column is
// translated into that shape rather than kept as a special case).
func addPrimaryKey(ctx context.Context, db *sql.DB, s *ir.SqlSchema, table string, tid ir.TableID, colIDs map[[2]string]ir.ColumnID) error {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, dialect.SQLite.QuoteIdentifier(table)))
	if err != nil {
		return err
	}
	defer rows.Close()

	var pkCols []pkColumn
	for rows.Next() {
		var cid int
		var name, declType string
		var notNull, pk int
		var defaultVal sql.NullString
		if err := rows.Scan(&cid, &name, &declType, &notNull, &defaultVal, &pk); err != nil {
			return err
		}
		if pk > 0 {
			pkCols = append(pkCols, pkColumn{name: name, seq: pk})
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(pkCols) == 0 {
		return nil
	}
	sort.Slice(pkCols, func(i, j int) bool { return pkCols[i].seq < pkCols[j].seq })

	idx := ir.Index{TableID: tid, Name: "sqlite_pk_" + table, Kind: ir.IndexPrimary}
	for _, pc := range pkCols {
		cid, ok := colIDs[[2]string{table, pc.name}]
		if !ok {
			continue
		}
		idx.Columns = append(idx.Columns, ir.IndexColumn{ColumnID: cid})
	}
	s.AddIndex(idx)
	return nil
}

// pkColumn is one PRIMARY KEY column reported by table_info, in
// declaration order (its "seq" is table_info's 1-based pk ordinal).
type pkColumn struct {
	name string
	seq  int
}

func describeIndexes(ctx context.Context, db *sql.DB, s *ir.SqlSchema, table string, tid ir.TableID, colIDs map[[2]string]ir.ColumnID) error {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA index_list(%s)`, dialect.SQLite.QuoteIdentifier(table)))
	if err != nil {
		return err
	}
	defer rows.Close()

	type idxMeta struct {
		name   string
		unique bool
		origin string
	}
	var metas []idxMeta
	for rows.Next() {
		var seq int
		var name, origin string
		var unique, partial int
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			return err
		}
		metas = append(metas, idxMeta{name: name, unique: unique != 0, origin: origin})
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, m := range metas {
		if m.origin == "pk" {
			continue // already modeled via table_info in addPrimaryKey
		}
		cols, err := indexColumns(ctx, db, m.name)
		if err != nil {
			return err
		}
		idx := ir.Index{TableID: tid, Name: m.name}
		if m.unique {
			idx.Kind = ir.IndexUnique
		} else {
			idx.Kind = ir.IndexNormal
		}
		for _, c := range cols {
			cid, ok := colIDs[[2]string{table, c}]
			if !ok {
				continue // expression index component
			}
			idx.Columns = append(idx.Columns, ir.IndexColumn{ColumnID: cid})
		}
		s.AddIndex(idx)
	}
	return nil
}

func indexColumns(ctx context.Context, db *sql.DB, index string) ([]string, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA index_info(%s)`, dialect.SQLite.QuoteIdentifier(index)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var seqno, cid int
		var name sql.NullString
		if err := rows.Scan(&seqno, &cid, &name); err != nil {
			return nil, err
		}
		if name.Valid {
			out = append(out, name.String)
		}
	}
	return out, rows.Err()
}

func describeForeignKeys(ctx context.Context, db *sql.DB, s *ir.SqlSchema, table string, tableIDs map[string]ir.TableID, colIDs map[[2]string]ir.ColumnID) error {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA foreign_key_list(%s)`, dialect.SQLite.QuoteIdentifier(table)))
	if err != nil {
		return err
	}
	defer rows.Close()

	type fkRow struct {
		id                 int
		seq                int
		refTable, from, to string
		onUpdate, onDelete string
	}
	var raws []fkRow
	for rows.Next() {
		var id, seq int
		var refTable, from, to, onUpdate, onDelete, match string
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return err
		}
		raws = append(raws, fkRow{id: id, seq: seq, refTable: refTable, from: from, to: to, onUpdate: onUpdate, onDelete: onDelete})
	}
	if err := rows.Err(); err != nil {
		return err
	}

	byID := map[int][]fkRow{}
	var order []int
	for _, r := range raws {
		if _, ok := byID[r.id]; !ok {
			order = append(order, r.id)
		}
		byID[r.id] = append(byID[r.id], r)
	}

	tid, ok := tableIDs[table]
	if !ok {
		return nil
	}
	for _, id := range order {
		group := byID[id]
		refTid, ok := tableIDs[group[0].refTable]
		if !ok {
			continue
		}
		fk := ir.ForeignKey{
			Name:               fmt.Sprintf("fk_%s_%d", table, id),
			ConstrainedTableID: tid,
			ReferencedTableID:  refTid,
			OnDelete:           sqliteActionFromText(group[0].onDelete),
			OnUpdate:           sqliteActionFromText(group[0].onUpdate),
		}
		for _, r := range group {
			fromID, ok1 := colIDs[[2]string{table, r.from}]
			toID, ok2 := colIDs[[2]string{group[0].refTable, r.to}]
			if !ok1 || !ok2 {
				continue
			}
			fk.Columns = append(fk.Columns, ir.ForeignKeyColumn{FromColumnID: fromID, ToColumnID: toID})
		}
		if len(fk.Columns) > 0 {
			s.AddForeignKey(fk)
		}
	}
	return nil
}

func sqliteActionFromText(action string) ir.ReferentialAction {
	switch strings.ToUpper(action) {
	case "CASCADE":
		return ir.ActionCascade
	case "SET NULL":
		return ir.ActionSetNull
	case "SET DEFAULT":
		return ir.ActionSetDefault
	case "RESTRICT":
		return ir.ActionRestrict
	default:
		return ir.ActionNoAction
	}
}

func describeViews(ctx context.Context, db *sql.DB, s *ir.SqlSchema, nsID ir.NamespaceID) error {
	rows, err := db.QueryContext(ctx, `
		SELECT name, sql FROM sqlite_master
		WHERE type = 'view'
		ORDER BY name`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var def sql.NullString
		if err := rows.Scan(&name, &def); err != nil {
			return err
		}
		s.AddView(ir.View{NamespaceID: nsID, Name: name, Definition: strings.TrimSpace(def.String)})
	}
	return rows.Err()
}
