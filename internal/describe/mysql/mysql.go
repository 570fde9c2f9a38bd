// Package mysql implements the C3 describer for MySQL/MariaDB/Vitess.
// Unlike the teacher's database/mysql/database.go, which drives SHOW
// CREATE TABLE and re-parses the DDL text it gets back, this package
// queries information_schema directly (spec §4.2 names this the
// preferred MySQL introspection path) and builds ir.SqlSchema structs
// straight from the result sets.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sqldef/schemacore/internal/dialect"
	"github.com/sqldef/schemacore/internal/ir"
	"github.com/sqldef/schemacore/pkg/diag"
)

// Describe populates an ir.SqlSchema for the given database (schema, in
// MySQL's terminology MySQL has no cross-database namespacing the way
// Postgres does, so exactly one ir.Namespace is always created.
func Describe(ctx context.Context, db *sql.DB, database string) (*ir.SqlSchema, diag.Diagnostics, error) {
	s := ir.New(dialect.MySQL.Name())
	var diags diag.Diagnostics

	nsID := s.AddNamespace(database)

	tableIDs, engines, err := describeTables(ctx, db, s, database, nsID)
	if err != nil {
		return nil, diags, fmt.Errorf("describe: tables: %w", err)
	}
	s.Ext.MySQLTableEngines = engines

	colIDs, err := describeColumns(ctx, db, s, database, tableIDs, nsID, &diags)
	if err != nil {
		return nil, diags, fmt.Errorf("describe: columns: %w", err)
	}

	if err := describeIndexes(ctx, db, s, database, tableIDs, colIDs); err != nil {
		return nil, diags, fmt.Errorf("describe: indexes: %w", err)
	}
	if err := describeForeignKeys(ctx, db, s, database, tableIDs, colIDs); err != nil {
		return nil, diags, fmt.Errorf("describe: foreign keys: %w", err)
	}
	if err := describeViews(ctx, db, s, database, nsID); err != nil {
		return nil, diags, fmt.Errorf("describe: views: %w", err)
	}

	return s, diags, nil
}

func describeTables(ctx context.Context, db *sql.DB, s *ir.SqlSchema, database string, nsID ir.NamespaceID) (map[string]ir.TableID, []ir.MySQLTableEngine, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT TABLE_NAME, ENGINE, coalesce(TABLE_COLLATION, ''), coalesce(TABLE_COMMENT, '')
		FROM information_schema.TABLES
		WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME`, database)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	ids := make(map[string]ir.TableID)
	var engines []ir.MySQLTableEngine
	for rows.Next() {
		var name, engine, collation, comment string
		if err := rows.Scan(&name, &engine, &collation, &comment); err != nil {
			return nil, nil, err
		}
		if name == "_prisma_migrations" {
			continue
		}
		id := s.AddTable(ir.Table{NamespaceID: nsID, Name: name, Description: comment})
		ids[name] = id
		charset, collate := splitCollation(collation)
		engines = append(engines, ir.MySQLTableEngine{TableID: id, Engine: engine, Charset: charset, Collate: collate})
	}
	return ids, engines, rows.Err()
}

func splitCollation(collation string) (charset, collate string) {
	if i := strings.IndexByte(collation, '_'); i >= 0 {
		return collation[:i], collation
	}
	return collation, collation
}

func describeColumns(ctx context.Context, db *sql.DB, s *ir.SqlSchema, database string, tableIDs map[string]ir.TableID, nsID ir.NamespaceID, diags *diag.Diagnostics) (map[[2]string]ir.ColumnID, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT TABLE_NAME, COLUMN_NAME, ORDINAL_POSITION, COLUMN_TYPE, DATA_TYPE,
		       IS_NULLABLE, coalesce(COLUMN_DEFAULT, ''), EXTRA,
		       coalesce(COLUMN_COMMENT, ''), coalesce(CHARACTER_MAXIMUM_LENGTH, 0),
		       coalesce(NUMERIC_PRECISION, 0), coalesce(NUMERIC_SCALE, 0)
		FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = ?
		ORDER BY TABLE_NAME, ORDINAL_POSITION`, database)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	colIDs := make(map[[2]string]ir.ColumnID)
	enumIDs := make(map[string]ir.EnumID)
	for rows.Next() {
		var table, name, columnType, dataType, nullable, defaultExpr, extra, comment string
		var position, charLen, numPrecision, numScale int64
		if err := rows.Scan(&table, &name, &position, &columnType, &dataType, &nullable, &defaultExpr, &extra, &comment, &charLen, &numPrecision, &numScale); err != nil {
			return nil, err
		}
		tid, ok := tableIDs[table]
		if !ok {
			continue
		}

		var family ir.ScalarFamily
		var native ir.NativeType
		if dataType == "enum" {
			enumName := dialect.SynthesizeEnumName(table, name)
			enumID, exists := enumIDs[enumName]
			if !exists {
				values := parseEnumValues(columnType)
				e := ir.Enum{NamespaceID: nsID, Name: enumName}
				for _, v := range values {
					e.Values = append(e.Values, ir.EnumValue{Name: v})
				}
				enumID = s.AddEnum(e)
				enumIDs[enumName] = enumID
			}
			family = ir.FamilyEnum
			native = ir.NativeType{Name: "enum", EnumID: enumID}
		} else {
			native = nativeTypeFromColumnType(dataType, charLen, numPrecision, numScale)
			family = dialect.MySQL.ScalarFamilyForNativeType(native)
			if family == ir.FamilyUnsupported {
				diags.Info("NATIVE_TYPE_UNSUPPORTED", table+"."+name, "column has an unsupported native type %q", columnType)
			}
		}

		arity := ir.ArityRequired
		if strings.EqualFold(nullable, "YES") {
			arity = ir.ArityNullable
		}
		def, auto := parseDefault(defaultExpr, extra)
		id := s.AddColumn(ir.Column{
			TableID: tid, Name: name, Position: int(position), Family: family, Native: native,
			Arity: arity, Default: def, AutoIncrement: auto, Description: comment,
		})
		colIDs[[2]string{table, name}] = id
	}
	return colIDs, rows.Err()
}

func parseEnumValues(columnType string) []string {
	start := strings.IndexByte(columnType, '(')
	end := strings.LastIndexByte(columnType, ')')
	if start < 0 || end < 0 || end <= start {
		return nil
	}
	inner := columnType[start+1 : end]
	var out []string
	for _, part := range strings.Split(inner, ",") {
		part = strings.TrimSpace(part)
		part = strings.TrimSuffix(strings.TrimPrefix(part, "'"), "'")
		out = append(out, part)
	}
	return out
}

func nativeTypeFromColumnType(dataType string, charLen, numPrecision, numScale int64) ir.NativeType {
	switch dataType {
	case "varchar", "char":
		if charLen > 0 {
			return ir.NativeType{Name: dataType, Args: []int{int(charLen)}}
		}
		return ir.NativeType{Name: dataType}
	case "decimal", "numeric":
		if numPrecision > 0 {
			return ir.NativeType{Name: "decimal", Args: []int{int(numPrecision), int(numScale)}}
		}
		return ir.NativeType{Name: "decimal"}
	default:
		return ir.NativeType{Name: dataType}
	}
}

func parseDefault(expr, extra string) (ir.DefaultValue, bool) {
	auto := strings.Contains(strings.ToLower(extra), "auto_increment")
	if auto {
		return ir.DefaultValue{Kind: ir.DefaultFunctionCall, FunctionName: "autoincrement"}, true
	}
	if expr == "" {
		return ir.DefaultValue{Kind: ir.DefaultNone}, false
	}
	switch {
	case strings.EqualFold(expr, "CURRENT_TIMESTAMP"), strings.HasPrefix(strings.ToUpper(expr), "CURRENT_TIMESTAMP("):
		return ir.DefaultValue{Kind: ir.DefaultFunctionCall, FunctionName: "now"}, false
	default:
		return ir.DefaultValue{Kind: ir.DefaultLiteral, Literal: expr}, false
	}
}

func describeIndexes(ctx context.Context, db *sql.DB, s *ir.SqlSchema, database string, tableIDs map[string]ir.TableID, colIDs map[[2]string]ir.ColumnID) error {
	rows, err := db.QueryContext(ctx, `
		SELECT TABLE_NAME, INDEX_NAME, NON_UNIQUE, COLUMN_NAME, SEQ_IN_INDEX,
		       coalesce(SUB_PART, 0), coalesce(INDEX_TYPE, ''), coalesce(COLLATION, '')
		FROM information_schema.STATISTICS
		WHERE TABLE_SCHEMA = ?
		ORDER BY TABLE_NAME, INDEX_NAME, SEQ_IN_INDEX`, database)
	if err != nil {
		return err
	}
	defer rows.Close()

	type key struct{ table, name string }
	order := []key{}
	seen := map[key]bool{}
	nonUnique := map[key]bool{}
	algorithm := map[key]string{}
	type col struct {
		name   string
		subLen sql.NullInt64
		desc   bool
	}
	cols := map[key][]col{}

	for rows.Next() {
		var table, name, colName, indexType, collation string
		var nu int
		var seq int
		var subPart int64
		if err := rows.Scan(&table, &name, &nu, &colName, &seq, &subPart, &indexType, &collation); err != nil {
			return err
		}
		k := key{table, name}
		if !seen[k] {
			seen[k] = true
			order = append(order, k)
			nonUnique[k] = nu != 0
			algorithm[k] = strings.ToLower(indexType)
		}
		c := col{name: colName, desc: collation == "D"}
		if subPart > 0 {
			c.subLen = sql.NullInt64{Int64: subPart, Valid: true}
		}
		cols[k] = append(cols[k], c)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, k := range order {
		tid, ok := tableIDs[k.table]
		if !ok {
			continue
		}
		idx := ir.Index{TableID: tid, Name: k.name, Algorithm: algorithm[k]}
		switch {
		case k.name == "PRIMARY":
			idx.Kind = ir.IndexPrimary
		case !nonUnique[k]:
			idx.Kind = ir.IndexUnique
		case algorithm[k] == "fulltext":
			idx.Kind = ir.IndexFullText
		default:
			idx.Kind = ir.IndexNormal
		}
		for _, c := range cols[k] {
			cid, ok := colIDs[[2]string{k.table, c.name}]
			if !ok {
				continue
			}
			ic := ir.IndexColumn{ColumnID: cid}
			if c.desc {
				ic.SortOrder = "desc"
			}
			if c.subLen.Valid {
				n := int(c.subLen.Int64)
				ic.LengthPrefix = &n
			}
			idx.Columns = append(idx.Columns, ic)
		}
		s.AddIndex(idx)
	}
	return nil
}

func describeForeignKeys(ctx context.Context, db *sql.DB, s *ir.SqlSchema, database string, tableIDs map[string]ir.TableID, colIDs map[[2]string]ir.ColumnID) error {
	rows, err := db.QueryContext(ctx, `
		SELECT kcu.CONSTRAINT_NAME, kcu.TABLE_NAME, kcu.COLUMN_NAME,
		       kcu.REFERENCED_TABLE_NAME, kcu.REFERENCED_COLUMN_NAME, kcu.ORDINAL_POSITION,
		       rc.UPDATE_RULE, rc.DELETE_RULE
		FROM information_schema.KEY_COLUMN_USAGE kcu
		JOIN information_schema.REFERENTIAL_CONSTRAINTS rc
		  ON rc.CONSTRAINT_SCHEMA = kcu.CONSTRAINT_SCHEMA AND rc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
		WHERE kcu.CONSTRAINT_SCHEMA = ? AND kcu.REFERENCED_TABLE_NAME IS NOT NULL
		ORDER BY kcu.TABLE_NAME, kcu.CONSTRAINT_NAME, kcu.ORDINAL_POSITION`, database)
	if err != nil {
		return err
	}
	defer rows.Close()

	type key struct{ table, name string }
	order := []key{}
	seen := map[key]bool{}
	refTable := map[key]string{}
	onUpdate := map[key]ir.ReferentialAction{}
	onDelete := map[key]ir.ReferentialAction{}
	fromCols := map[key][]string{}
	toCols := map[key][]string{}

	for rows.Next() {
		var name, table, col, refT, refCol, updRule, delRule string
		var ord int
		if err := rows.Scan(&name, &table, &col, &refT, &refCol, &ord, &updRule, &delRule); err != nil {
			return err
		}
		k := key{table, name}
		if !seen[k] {
			seen[k] = true
			order = append(order, k)
			refTable[k] = refT
			onUpdate[k] = mysqlActionFromRule(updRule)
			onDelete[k] = mysqlActionFromRule(delRule)
		}
		fromCols[k] = append(fromCols[k], col)
		toCols[k] = append(toCols[k], refCol)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, k := range order {
		tid, ok := tableIDs[k.table]
		if !ok {
			continue
		}
		refTid, ok := tableIDs[refTable[k]]
		if !ok {
			continue
		}
		fk := ir.ForeignKey{Name: k.name, ConstrainedTableID: tid, ReferencedTableID: refTid, OnDelete: onDelete[k], OnUpdate: onUpdate[k]}
		for i := range fromCols[k] {
			fromID, ok1 := colIDs[[2]string{k.table, fromCols[k][i]}]
			toID, ok2 := colIDs[[2]string{refTable[k], toCols[k][i]}]
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

func mysqlActionFromRule(rule string) ir.ReferentialAction {
	switch strings.ToUpper(rule) {
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

func describeViews(ctx context.Context, db *sql.DB, s *ir.SqlSchema, database string, nsID ir.NamespaceID) error {
	rows, err := db.QueryContext(ctx, `
		SELECT TABLE_NAME, VIEW_DEFINITION
		FROM information_schema.VIEWS
		WHERE TABLE_SCHEMA = ?
		ORDER BY TABLE_NAME`, database)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var name, def string
		if err := rows.Scan(&name, &def); err != nil {
			return err
		}
		s.AddView(ir.View{NamespaceID: nsID, Name: name, Definition: strings.TrimSpace(def)})
	}
	return rows.Err()
}
