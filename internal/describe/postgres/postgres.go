// Package postgres implements the C3 describer for PostgreSQL and
// CockroachDB: live connection -> fully populated ir.SqlSchema, built
// from pg_catalog/information_schema queries the way the teacher's
// database/postgres/database.go queries them, but assembled directly
// into IR arenas instead of DDL text (the DML/SQL parser that would
// re-parse DDL text is out of scope per spec §1).
package postgres

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

// Describe populates an ir.SqlSchema for the given namespaces (schemas).
// A nil/empty namespaces list means "every non-system schema". Population
// order follows spec §4.2: namespaces, enums/sequences, tables, columns,
// primary keys, indexes, foreign keys, views, connector extensions.
func Describe(ctx context.Context, db *sql.DB, namespaces []string) (*ir.SqlSchema, diag.Diagnostics, error) {
	s := ir.New(dialect.Postgres.Name())
	var diags diag.Diagnostics

	nsFilter, err := resolveNamespaces(ctx, db, namespaces)
	if err != nil {
		return nil, diags, fmt.Errorf("describe: namespaces: %w", err)
	}
	nsIDs := make(map[string]ir.NamespaceID, len(nsFilter))
	for _, n := range nsFilter {
		nsIDs[n] = s.AddNamespace(n)
	}

	if err := describeEnums(ctx, db, s, nsIDs); err != nil {
		return nil, diags, fmt.Errorf("describe: enums: %w", err)
	}
	if err := describeSequences(ctx, db, s, nsIDs); err != nil {
		return nil, diags, fmt.Errorf("describe: sequences: %w", err)
	}

	tableIDs, err := describeTables(ctx, db, s, nsIDs)
	if err != nil {
		return nil, diags, fmt.Errorf("describe: tables: %w", err)
	}

	colIDs, err := describeColumns(ctx, db, s, tableIDs, &diags)
	if err != nil {
		return nil, diags, fmt.Errorf("describe: columns: %w", err)
	}

	if err := describeIndexes(ctx, db, s, tableIDs, colIDs); err != nil {
		return nil, diags, fmt.Errorf("describe: indexes: %w", err)
	}
	if err := describeForeignKeys(ctx, db, s, tableIDs, colIDs); err != nil {
		return nil, diags, fmt.Errorf("describe: foreign keys: %w", err)
	}
	if err := describeViews(ctx, db, s, nsIDs); err != nil {
		return nil, diags, fmt.Errorf("describe: views: %w", err)
	}
	if err := describeExtensions(ctx, db, s, nsIDs); err != nil {
		return nil, diags, fmt.Errorf("describe: extensions: %w", err)
	}

	return s, diags, nil
}

func resolveNamespaces(ctx context.Context, db *sql.DB, want []string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT nspname FROM pg_catalog.pg_namespace
		WHERE nspname NOT IN ('pg_catalog', 'information_schema')
		AND nspname NOT LIKE 'pg_toast%'
		AND nspname NOT LIKE 'pg_temp%'
		ORDER BY nspname`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	wantSet := make(map[string]bool, len(want))
	for _, w := range want {
		wantSet[w] = true
	}

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		if len(wantSet) > 0 && !wantSet[name] {
			continue
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func describeEnums(ctx context.Context, db *sql.DB, s *ir.SqlSchema, nsIDs map[string]ir.NamespaceID) error {
	rows, err := db.QueryContext(ctx, `
		SELECT n.nspname, t.typname, e.enumlabel
		FROM pg_enum e
		JOIN pg_type t ON e.enumtypid = t.oid
		JOIN pg_catalog.pg_namespace n ON t.typnamespace = n.oid
		ORDER BY n.nspname, t.typname, e.enumsortorder`)
	if err != nil {
		return err
	}
	defer rows.Close()

	type key struct{ ns, name string }
	order := []key{}
	values := map[key][]string{}
	for rows.Next() {
		var ns, name, label string
		if err := rows.Scan(&ns, &name, &label); err != nil {
			return err
		}
		if _, ok := nsIDs[ns]; !ok {
			continue
		}
		k := key{ns, name}
		if _, seen := values[k]; !seen {
			order = append(order, k)
		}
		values[k] = append(values[k], label)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for _, k := range order {
		e := ir.Enum{NamespaceID: nsIDs[k.ns], Name: k.name}
		for _, v := range values[k] {
			e.Values = append(e.Values, ir.EnumValue{Name: v})
		}
		s.AddEnum(e)
	}
	return nil
}

func describeSequences(ctx context.Context, db *sql.DB, s *ir.SqlSchema, nsIDs map[string]ir.NamespaceID) error {
	rows, err := db.QueryContext(ctx, `
		SELECT schemaname, sequencename, start_value, min_value, max_value, increment_by, cache_size
		FROM pg_sequences
		ORDER BY schemaname, sequencename`)
	if err != nil {
		// pg_sequences requires PG10+; degrade silently on older servers.
		return nil
	}
	defer rows.Close()

	for rows.Next() {
		var schema, name string
		var start, min, max, inc, cache int64
		if err := rows.Scan(&schema, &name, &start, &min, &max, &inc, &cache); err != nil {
			return err
		}
		nsID, ok := nsIDs[schema]
		if !ok {
			continue
		}
		s.AddSequence(ir.Sequence{NamespaceID: nsID, Name: name, Start: start, Min: min, Max: max, Increment: inc, Cache: cache})
	}
	return rows.Err()
}

func describeTables(ctx context.Context, db *sql.DB, s *ir.SqlSchema, nsIDs map[string]ir.NamespaceID) (map[[2]string]ir.TableID, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT n.nspname, c.relname, c.relispartition,
		       coalesce(c.relrowsecurity, false),
		       coalesce(obj_description(c.oid), '')
		FROM pg_catalog.pg_class c
		JOIN pg_catalog.pg_namespace n ON c.relnamespace = n.oid
		WHERE c.relkind IN ('r', 'p')
		AND c.relpersistence IN ('p', 'u')
		AND NOT EXISTS (SELECT 1 FROM pg_catalog.pg_depend d WHERE c.oid = d.objid AND d.deptype = 'e')
		ORDER BY n.nspname, c.relname`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[[2]string]ir.TableID)
	for rows.Next() {
		var schema, name, description string
		var isPartition, rls bool
		if err := rows.Scan(&schema, &name, &isPartition, &rls, &description); err != nil {
			return nil, err
		}
		if name == "_prisma_migrations" {
			continue
		}
		nsID, ok := nsIDs[schema]
		if !ok {
			continue
		}
		var props ir.TableProperty
		if isPartition {
			props |= ir.PropIsPartition
		}
		if rls {
			props |= ir.PropHasRowLevelSecurity
		}
		id := s.AddTable(ir.Table{NamespaceID: nsID, Name: name, Properties: props, Description: description})
		ids[[2]string{schema, name}] = id
	}
	return ids, rows.Err()
}

func describeColumns(ctx context.Context, db *sql.DB, s *ir.SqlSchema, tableIDs map[[2]string]ir.TableID, diags *diag.Diagnostics) (map[[3]string]ir.ColumnID, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT n.nspname, c.relname, a.attname, a.attnum,
		       format_type(a.atttypid, a.atttypmod), a.attnotnull,
		       coalesce(pg_get_expr(ad.adbin, ad.adrelid), ''),
		       coalesce(col_description(c.oid, a.attnum), '')
		FROM pg_attribute a
		JOIN pg_class c ON c.oid = a.attrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		LEFT JOIN pg_attrdef ad ON ad.adrelid = c.oid AND ad.adnum = a.attnum
		WHERE a.attnum > 0 AND NOT a.attisdropped
		AND c.relkind IN ('r', 'p')
		ORDER BY n.nspname, c.relname, a.attnum`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[[3]string]ir.ColumnID)
	for rows.Next() {
		var schema, table, name, formatted, defaultExpr, comment string
		var attnum int
		var notNull bool
		if err := rows.Scan(&schema, &table, &name, &attnum, &formatted, &notNull, &defaultExpr, &comment); err != nil {
			return nil, err
		}
		tid, ok := tableIDs[[2]string{schema, table}]
		if !ok {
			continue
		}
		native, family := parseFormattedType(formatted)
		if family == ir.FamilyUnsupported {
			diags.Info("NATIVE_TYPE_UNSUPPORTED", schema+"."+table+"."+name, "column has an unsupported native type %q", formatted)
		}
		arity := ir.ArityRequired
		if !notNull {
			arity = ir.ArityNullable
		}
		def, autoIncrement := parseDefault(defaultExpr)
		id := s.AddColumn(ir.Column{
			TableID: tid, Name: name, Position: attnum, Family: family, Native: native,
			Arity: arity, Default: def, AutoIncrement: autoIncrement, Description: comment,
		})
		ids[[3]string{schema, table, name}] = id
	}
	return ids, rows.Err()
}

// parseFormattedType splits a format_type() result like "character
// varying(255)" or "numeric(10,2)" into an ir.NativeType plus its family,
// using the postgres dialect's own scalar-family table so describer and
// renderer agree on the mapping.
func parseFormattedType(formatted string) (ir.NativeType, ir.ScalarFamily) {
	name := formatted
	var args []int
	if i := strings.IndexByte(formatted, '('); i >= 0 && strings.HasSuffix(formatted, ")") {
		name = strings.TrimSpace(formatted[:i])
		argStr := formatted[i+1 : len(formatted)-1]
		for _, part := range strings.Split(argStr, ",") {
			var n int
			fmt.Sscanf(strings.TrimSpace(part), "%d", &n)
			args = append(args, n)
		}
	}
	name = normalizeAliasedType(name)
	native := ir.NativeType{Name: name, Args: args}
	return native, dialect.Postgres.ScalarFamilyForNativeType(native)
}

func normalizeAliasedType(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "character varying":
		return "varchar"
	case "character":
		return "char"
	case "timestamp without time zone":
		return "timestamp"
	case "timestamp with time zone":
		return "timestamptz"
	case "time without time zone":
		return "time"
	case "time with time zone":
		return "timetz"
	case "double precision":
		return "float8"
	default:
		return name
	}
}

func parseDefault(expr string) (ir.DefaultValue, bool) {
	if expr == "" {
		return ir.DefaultValue{Kind: ir.DefaultNone}, false
	}
	switch {
	case strings.HasPrefix(expr, "nextval("):
		return ir.DefaultValue{Kind: ir.DefaultFunctionCall, FunctionName: "autoincrement"}, true
	case strings.EqualFold(expr, "now()") || strings.Contains(strings.ToLower(expr), "current_timestamp"):
		return ir.DefaultValue{Kind: ir.DefaultFunctionCall, FunctionName: "now"}, false
	case strings.EqualFold(expr, "gen_random_uuid()") || strings.EqualFold(expr, "uuid_generate_v4()"):
		return ir.DefaultValue{Kind: ir.DefaultFunctionCall, FunctionName: "uuid"}, false
	case strings.HasPrefix(expr, "'") :
		lit := strings.TrimSuffix(strings.TrimPrefix(expr, "'"), "'")
		if i := strings.Index(lit, "'::"); i >= 0 {
			lit = lit[:i]
		}
		return ir.DefaultValue{Kind: ir.DefaultLiteral, Literal: lit}, false
	default:
		return ir.DefaultValue{Kind: ir.DefaultExpression, Expression: expr}, false
	}
}

// indexKeyColumn is one (key-ordinal, column-name-or-null) pair for an
// index; a null name means that key position is an expression rather
// than a plain column reference.
type indexKeyColumn struct {
	ord  int
	name sql.NullString
}

func describeIndexes(ctx context.Context, db *sql.DB, s *ir.SqlSchema, tableIDs map[[2]string]ir.TableID, colIDs map[[3]string]ir.ColumnID) error {
	rows, err := db.QueryContext(ctx, `
		SELECT n.nspname, t.relname, i.relname, ix.indisprimary, ix.indisunique,
		       am.amname, coalesce(pg_get_expr(ix.indpred, ix.indrelid), '')
		FROM pg_index ix
		JOIN pg_class t ON t.oid = ix.indrelid
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_am am ON am.oid = i.relam
		WHERE t.relkind IN ('r', 'p')
		ORDER BY n.nspname, t.relname, i.relname`)
	if err != nil {
		return err
	}
	defer rows.Close()

	type rawIndex struct {
		schema, table, name string
		primary, unique     bool
		algorithm, where    string
	}
	var raws []rawIndex
	for rows.Next() {
		var ri rawIndex
		if err := rows.Scan(&ri.schema, &ri.table, &ri.name, &ri.primary, &ri.unique, &ri.algorithm, &ri.where); err != nil {
			return err
		}
		raws = append(raws, ri)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, ri := range raws {
		tid, ok := tableIDs[[2]string{ri.schema, ri.table}]
		if !ok {
			continue
		}
		cols, err := indexColumnNames(ctx, db, ri.schema, ri.table, ri.name)
		if err != nil {
			return err
		}
		idx := ir.Index{TableID: tid, Name: ri.name, Algorithm: ri.algorithm, Where: ri.where}
		switch {
		case ri.primary:
			idx.Kind = ir.IndexPrimary
		case ri.unique:
			idx.Kind = ir.IndexUnique
		default:
			idx.Kind = ir.IndexNormal
		}
		hasExpression := false
		for _, c := range cols {
			if !c.name.Valid {
				hasExpression = true // expression index component, kept opaque (spec §4.2)
				continue
			}
			cid, ok := colIDs[[3]string{ri.schema, ri.table, c.name.String}]
			if !ok {
				continue
			}
			idx.Columns = append(idx.Columns, ir.IndexColumn{ColumnID: cid})
		}
		id := s.AddIndex(idx)
		if hasExpression {
			def, err := indexDefinition(ctx, db, ri.schema, ri.name)
			if err != nil {
				return err
			}
			s.Ext.PostgresExpressionIndexes = append(s.Ext.PostgresExpressionIndexes, ir.PostgresExpressionIndex{IndexID: id, Expression: def})
		}
	}
	return nil
}

func indexDefinition(ctx context.Context, db *sql.DB, schema, index string) (string, error) {
	var def string
	err := db.QueryRowContext(ctx, `
		SELECT pg_get_indexdef(i.oid)
		FROM pg_class i
		JOIN pg_namespace n ON n.oid = i.relnamespace
		WHERE n.nspname = $1 AND i.relname = $2`, schema, index).Scan(&def)
	return def, err
}

// indexColumnNames resolves each key position of an index to the plain
// column name it refers to, or a null name for an expression key.
func indexColumnNames(ctx context.Context, db *sql.DB, schema, table, index string) ([]indexKeyColumn, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT k.ord, a.attname
		FROM pg_index ix
		JOIN pg_class t ON t.oid = ix.indrelid
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		CROSS JOIN LATERAL unnest(ix.indkey) WITH ORDINALITY AS k(attnum, ord)
		LEFT JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum AND k.attnum > 0
		WHERE n.nspname = $1 AND t.relname = $2 AND i.relname = $3
		ORDER BY k.ord`, schema, table, index)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []indexKeyColumn
	for rows.Next() {
		var kc indexKeyColumn
		if err := rows.Scan(&kc.ord, &kc.name); err != nil {
			return nil, err
		}
		out = append(out, kc)
	}
	return out, rows.Err()
}

func describeForeignKeys(ctx context.Context, db *sql.DB, s *ir.SqlSchema, tableIDs map[[2]string]ir.TableID, colIDs map[[3]string]ir.ColumnID) error {
	rows, err := db.QueryContext(ctx, `
		SELECT n1.nspname, r1.relname, c.conname, n2.nspname, r2.relname, c.confupdtype, c.confdeltype,
		       a1.attname, a2.attname
		FROM pg_constraint c
		JOIN pg_class r1 ON r1.oid = c.conrelid
		JOIN pg_class r2 ON r2.oid = c.confrelid
		JOIN pg_namespace n1 ON n1.oid = r1.relnamespace
		JOIN pg_namespace n2 ON n2.oid = r2.relnamespace
		CROSS JOIN LATERAL unnest(c.conkey, c.confkey) WITH ORDINALITY AS k(fromattnum, toattnum, ord)
		JOIN pg_attribute a1 ON a1.attrelid = c.conrelid AND a1.attnum = k.fromattnum
		JOIN pg_attribute a2 ON a2.attrelid = c.confrelid AND a2.attnum = k.toattnum
		WHERE c.contype = 'f'
		ORDER BY n1.nspname, r1.relname, c.conname, k.ord`)
	if err != nil {
		return err
	}
	defer rows.Close()

	type key struct{ schema, table, name string }
	order := []key{}
	seen := map[key]bool{}
	fromCols := map[key][]string{}
	toCols := map[key][]string{}
	refSchema := map[key]string{}
	refTable := map[key]string{}
	onUpdate := map[key]ir.ReferentialAction{}
	onDelete := map[key]ir.ReferentialAction{}

	for rows.Next() {
		var schema, table, name, refNS, refT, fromCol, toCol string
		var updType, delType string
		if err := rows.Scan(&schema, &table, &name, &refNS, &refT, &updType, &delType, &fromCol, &toCol); err != nil {
			return err
		}
		k := key{schema, table, name}
		if !seen[k] {
			seen[k] = true
			order = append(order, k)
			refSchema[k], refTable[k] = refNS, refT
			onUpdate[k] = pgActionFromChar(updType)
			onDelete[k] = pgActionFromChar(delType)
		}
		fromCols[k] = append(fromCols[k], fromCol)
		toCols[k] = append(toCols[k], toCol)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, k := range order {
		tid, ok := tableIDs[[2]string{k.schema, k.table}]
		if !ok {
			continue
		}
		refTid, ok := tableIDs[[2]string{refSchema[k], refTable[k]}]
		if !ok {
			continue
		}
		fk := ir.ForeignKey{Name: k.name, ConstrainedTableID: tid, ReferencedTableID: refTid, OnDelete: onDelete[k], OnUpdate: onUpdate[k]}
		for i := range fromCols[k] {
			fromID, ok1 := colIDs[[3]string{k.schema, k.table, fromCols[k][i]}]
			toID, ok2 := colIDs[[3]string{refSchema[k], refTable[k], toCols[k][i]}]
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

func pgActionFromChar(c string) ir.ReferentialAction {
	switch c {
	case "c":
		return ir.ActionCascade
	case "n":
		return ir.ActionSetNull
	case "d":
		return ir.ActionSetDefault
	case "r":
		return ir.ActionRestrict
	default:
		return ir.ActionNoAction
	}
}

func describeViews(ctx context.Context, db *sql.DB, s *ir.SqlSchema, nsIDs map[string]ir.NamespaceID) error {
	rows, err := db.QueryContext(ctx, `
		SELECT n.nspname, c.relname, pg_get_viewdef(c.oid)
		FROM pg_catalog.pg_class c
		JOIN pg_catalog.pg_namespace n ON c.relnamespace = n.oid
		WHERE c.relkind = 'v'
		AND NOT EXISTS (SELECT 1 FROM pg_catalog.pg_depend d WHERE c.oid = d.objid AND d.deptype = 'e')`)
	if err != nil {
		return err
	}
	defer rows.Close()

	var views []ir.View
	for rows.Next() {
		var schema, name, def string
		if err := rows.Scan(&schema, &name, &def); err != nil {
			return err
		}
		nsID, ok := nsIDs[schema]
		if !ok {
			continue
		}
		views = append(views, ir.View{NamespaceID: nsID, Name: name, Definition: strings.TrimSpace(def)})
	}
	if err := rows.Err(); err != nil {
		return err
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Name < views[j].Name })
	for _, v := range views {
		s.AddView(v)
	}
	return nil
}

func describeExtensions(ctx context.Context, db *sql.DB, s *ir.SqlSchema, nsIDs map[string]ir.NamespaceID) error {
	rows, err := db.QueryContext(ctx, `
		SELECT e.extname, e.extversion, n.nspname
		FROM pg_extension e
		JOIN pg_namespace n ON n.oid = e.extnamespace
		WHERE e.extname != 'plpgsql'`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var name, version, schema string
		if err := rows.Scan(&name, &version, &schema); err != nil {
			return err
		}
		nsID := nsIDs[schema]
		s.Ext.PostgresExtensions = append(s.Ext.PostgresExtensions, ir.PostgresExtension{NamespaceID: nsID, Name: name, Version: version})
	}
	return rows.Err()
}
