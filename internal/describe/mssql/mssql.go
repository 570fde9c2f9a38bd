// Package mssql implements the C3 describer for SQL Server: live
// connection -> ir.SqlSchema, built from the sys.* catalog views the way
// the teacher's database/mssql/database.go queries them, restructured to
// populate IR structs directly instead of assembling CREATE TABLE text.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sqldef/schemacore/internal/dialect"
	"github.com/sqldef/schemacore/internal/ir"
	"github.com/sqldef/schemacore/pkg/diag"
)

// Describe populates an ir.SqlSchema for the given schemas (e.g. "dbo").
// A nil/empty list means every user schema.
func Describe(ctx context.Context, db *sql.DB, schemas []string) (*ir.SqlSchema, diag.Diagnostics, error) {
	s := ir.New(dialect.MSSQL.Name())
	var diags diag.Diagnostics

	nsIDs, err := describeSchemas(ctx, db, s, schemas)
	if err != nil {
		return nil, diags, fmt.Errorf("describe: schemas: %w", err)
	}

	tableIDs, err := describeTables(ctx, db, s, nsIDs)
	if err != nil {
		return nil, diags, fmt.Errorf("describe: tables: %w", err)
	}

	colIDs, err := describeColumns(ctx, db, s, tableIDs, &diags)
	if err != nil {
		return nil, diags, fmt.Errorf("describe: columns: %w", err)
	}

	clustered, err := describeIndexes(ctx, db, s, tableIDs, colIDs)
	if err != nil {
		return nil, diags, fmt.Errorf("describe: indexes: %w", err)
	}
	s.Ext.MSSQLClusteredPKs = clustered

	if err := describeForeignKeys(ctx, db, s, tableIDs, colIDs); err != nil {
		return nil, diags, fmt.Errorf("describe: foreign keys: %w", err)
	}
	if err := describeViews(ctx, db, s, nsIDs); err != nil {
		return nil, diags, fmt.Errorf("describe: views: %w", err)
	}

	return s, diags, nil
}

func describeSchemas(ctx context.Context, db *sql.DB, s *ir.SqlSchema, want []string) (map[string]ir.NamespaceID, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT s.name FROM sys.schemas s
		WHERE s.name NOT IN ('sys', 'guest', 'INFORMATION_SCHEMA', 'db_owner', 'db_accessadmin',
			'db_securityadmin', 'db_ddladmin', 'db_backupoperator', 'db_datareader',
			'db_datawriter', 'db_denydatareader', 'db_denydatawriter')
		ORDER BY s.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	wantSet := make(map[string]bool, len(want))
	for _, w := range want {
		wantSet[w] = true
	}

	ids := make(map[string]ir.NamespaceID)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		if len(wantSet) > 0 && !wantSet[name] {
			continue
		}
		ids[name] = s.AddNamespace(name)
	}
	return ids, rows.Err()
}

func describeTables(ctx context.Context, db *sql.DB, s *ir.SqlSchema, nsIDs map[string]ir.NamespaceID) (map[[2]string]ir.TableID, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT sch.name, t.name, coalesce(ep.value, '')
		FROM sys.tables t
		JOIN sys.schemas sch ON sch.schema_id = t.schema_id
		LEFT JOIN sys.extended_properties ep
		  ON ep.major_id = t.object_id AND ep.minor_id = 0 AND ep.name = 'MS_Description'
		WHERE t.is_ms_shipped = 0
		ORDER BY sch.name, t.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[[2]string]ir.TableID)
	for rows.Next() {
		var schema, name, description string
		if err := rows.Scan(&schema, &name, &description); err != nil {
			return nil, err
		}
		if name == "_prisma_migrations" {
			continue
		}
		nsID, ok := nsIDs[schema]
		if !ok {
			continue
		}
		id := s.AddTable(ir.Table{NamespaceID: nsID, Name: name, Description: description})
		ids[[2]string{schema, name}] = id
	}
	return ids, rows.Err()
}

func describeColumns(ctx context.Context, db *sql.DB, s *ir.SqlSchema, tableIDs map[[2]string]ir.TableID, diags *diag.Diagnostics) (map[[3]string]ir.ColumnID, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT sch.name, t.name, c.name, c.column_id, ty.name,
		       c.max_length, c.precision, c.scale, c.is_nullable, c.is_identity,
		       coalesce(dc.definition, ''), coalesce(ep.value, '')
		FROM sys.columns c
		JOIN sys.tables t ON t.object_id = c.object_id
		JOIN sys.schemas sch ON sch.schema_id = t.schema_id
		JOIN sys.types ty ON ty.user_type_id = c.user_type_id
		LEFT JOIN sys.default_constraints dc ON dc.object_id = c.default_object_id
		LEFT JOIN sys.extended_properties ep
		  ON ep.major_id = c.object_id AND ep.minor_id = c.column_id AND ep.name = 'MS_Description'
		WHERE t.is_ms_shipped = 0
		ORDER BY sch.name, t.name, c.column_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[[3]string]ir.ColumnID)
	for rows.Next() {
		var schema, table, name, typeName, defaultExpr, comment string
		var columnID int
		var maxLength int16
		var precision, scale uint8
		var nullable, identity bool
		if err := rows.Scan(&schema, &table, &name, &columnID, &typeName, &maxLength, &precision, &scale, &nullable, &identity, &defaultExpr, &comment); err != nil {
			return nil, err
		}
		tid, ok := tableIDs[[2]string{schema, table}]
		if !ok {
			continue
		}
		native := nativeTypeFor(typeName, int(maxLength), int(precision), int(scale))
		family := dialect.MSSQL.ScalarFamilyForNativeType(native)
		if family == ir.FamilyUnsupported {
			diags.Info("NATIVE_TYPE_UNSUPPORTED", schema+"."+table+"."+name, "column has an unsupported native type %q", typeName)
		}
		arity := ir.ArityRequired
		if nullable {
			arity = ir.ArityNullable
		}
		def, auto := parseDefault(defaultExpr, identity)
		id := s.AddColumn(ir.Column{
			TableID: tid, Name: name, Position: columnID, Family: family, Native: native,
			Arity: arity, Default: def, AutoIncrement: auto, Description: comment,
		})
		ids[[3]string{schema, table, name}] = id
	}
	return ids, rows.Err()
}

func nativeTypeFor(typeName string, maxLength, precision, scale int) ir.NativeType {
	switch strings.ToLower(typeName) {
	case "nvarchar", "nchar":
		length := maxLength / 2
		if maxLength == -1 {
			return ir.NativeType{Name: typeName, Args: []int{-1}}
		}
		return ir.NativeType{Name: typeName, Args: []int{length}}
	case "varchar", "char", "varbinary", "binary":
		if maxLength == -1 {
			return ir.NativeType{Name: typeName, Args: []int{-1}}
		}
		return ir.NativeType{Name: typeName, Args: []int{maxLength}}
	case "decimal", "numeric":
		return ir.NativeType{Name: typeName, Args: []int{precision, scale}}
	default:
		return ir.NativeType{Name: typeName}
	}
}

// unwrapParens strips layers of outer wrapping parens that
// sys.default_constraints.definition adds around every default (e.g.
// "((getdate()))"), without touching parens belonging to the expression
// itself (e.g. the call parens in "getdate()").
func unwrapParens(expr string) string {
	for len(expr) >= 2 && expr[0] == '(' && expr[len(expr)-1] == ')' {
		inner := expr[1 : len(expr)-1]
		depth := 0
		balanced := true
		for _, r := range inner {
			switch r {
			case '(':
				depth++
			case ')':
				depth--
				if depth < 0 {
					balanced = false
				}
			}
		}
		if !balanced || depth != 0 {
			break
		}
		expr = inner
	}
	return expr
}

func parseDefault(expr string, identity bool) (ir.DefaultValue, bool) {
	if identity {
		return ir.DefaultValue{Kind: ir.DefaultFunctionCall, FunctionName: "autoincrement"}, true
	}
	expr = unwrapParens(strings.TrimSpace(expr))
	if expr == "" {
		return ir.DefaultValue{Kind: ir.DefaultNone}, false
	}
	switch {
	case strings.EqualFold(expr, "getdate()"), strings.EqualFold(expr, "sysdatetime()"):
		return ir.DefaultValue{Kind: ir.DefaultFunctionCall, FunctionName: "now"}, false
	case strings.EqualFold(expr, "newid()"), strings.EqualFold(expr, "newsequentialid()"):
		return ir.DefaultValue{Kind: ir.DefaultFunctionCall, FunctionName: "uuid"}, false
	case strings.HasPrefix(expr, "'") && strings.HasSuffix(expr, "'"):
		return ir.DefaultValue{Kind: ir.DefaultLiteral, Literal: strings.Trim(expr, "'")}, false
	default:
		return ir.DefaultValue{Kind: ir.DefaultExpression, Expression: expr}, false
	}
}

func describeIndexes(ctx context.Context, db *sql.DB, s *ir.SqlSchema, tableIDs map[[2]string]ir.TableID, colIDs map[[3]string]ir.ColumnID) ([]ir.MSSQLClusteredPrimaryKey, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT sch.name, t.name, i.name, i.is_primary_key, i.is_unique, i.type_desc, c.name, ic.key_ordinal, ic.is_descending_key
		FROM sys.indexes i
		JOIN sys.tables t ON t.object_id = i.object_id
		JOIN sys.schemas sch ON sch.schema_id = t.schema_id
		JOIN sys.index_columns ic ON ic.object_id = i.object_id AND ic.index_id = i.index_id
		JOIN sys.columns c ON c.object_id = ic.object_id AND c.column_id = ic.column_id
		WHERE i.name IS NOT NULL AND t.is_ms_shipped = 0
		ORDER BY sch.name, t.name, i.name, ic.key_ordinal`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type key struct{ schema, table, name string }
	order := []key{}
	seen := map[key]bool{}
	primary := map[key]bool{}
	unique := map[key]bool{}
	clustered := map[key]bool{}
	type col struct {
		name string
		desc bool
	}
	cols := map[key][]col{}

	for rows.Next() {
		var schema, table, name, typeDesc, colName string
		var isPK, isUnique, isDesc bool
		var ordinal int
		if err := rows.Scan(&schema, &table, &name, &isPK, &isUnique, &typeDesc, &colName, &ordinal, &isDesc); err != nil {
			return nil, err
		}
		k := key{schema, table, name}
		if !seen[k] {
			seen[k] = true
			order = append(order, k)
			primary[k] = isPK
			unique[k] = isUnique
			clustered[k] = strings.HasPrefix(typeDesc, "CLUSTERED")
		}
		cols[k] = append(cols[k], col{name: colName, desc: isDesc})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var clusteredPKs []ir.MSSQLClusteredPrimaryKey
	for _, k := range order {
		tid, ok := tableIDs[[2]string{k.schema, k.table}]
		if !ok {
			continue
		}
		c := clustered[k]
		idx := ir.Index{TableID: tid, Name: k.name, Clustered: &c}
		switch {
		case primary[k]:
			idx.Kind = ir.IndexPrimary
			clusteredPKs = append(clusteredPKs, ir.MSSQLClusteredPrimaryKey{TableID: tid, Clustered: c})
		case unique[k]:
			idx.Kind = ir.IndexUnique
		default:
			idx.Kind = ir.IndexNormal
		}
		for _, cc := range cols[k] {
			cid, ok := colIDs[[3]string{k.schema, k.table, cc.name}]
			if !ok {
				continue
			}
			ic := ir.IndexColumn{ColumnID: cid}
			if cc.desc {
				ic.SortOrder = "desc"
			}
			idx.Columns = append(idx.Columns, ic)
		}
		s.AddIndex(idx)
	}
	return clusteredPKs, nil
}

func describeForeignKeys(ctx context.Context, db *sql.DB, s *ir.SqlSchema, tableIDs map[[2]string]ir.TableID, colIDs map[[3]string]ir.ColumnID) error {
	rows, err := db.QueryContext(ctx, `
		SELECT sch1.name, t1.name, fk.name, sch2.name, t2.name,
		       fk.update_referential_action, fk.delete_referential_action,
		       c1.name, c2.name, fkc.constraint_column_id
		FROM sys.foreign_keys fk
		JOIN sys.tables t1 ON t1.object_id = fk.parent_object_id
		JOIN sys.schemas sch1 ON sch1.schema_id = t1.schema_id
		JOIN sys.tables t2 ON t2.object_id = fk.referenced_object_id
		JOIN sys.schemas sch2 ON sch2.schema_id = t2.schema_id
		JOIN sys.foreign_key_columns fkc ON fkc.constraint_object_id = fk.object_id
		JOIN sys.columns c1 ON c1.object_id = fkc.parent_object_id AND c1.column_id = fkc.parent_column_id
		JOIN sys.columns c2 ON c2.object_id = fkc.referenced_object_id AND c2.column_id = fkc.referenced_column_id
		ORDER BY sch1.name, t1.name, fk.name, fkc.constraint_column_id`)
	if err != nil {
		return err
	}
	defer rows.Close()

	type key struct{ schema, table, name string }
	order := []key{}
	seen := map[key]bool{}
	refSchema := map[key]string{}
	refTable := map[key]string{}
	onUpdate := map[key]ir.ReferentialAction{}
	onDelete := map[key]ir.ReferentialAction{}
	fromCols := map[key][]string{}
	toCols := map[key][]string{}

	for rows.Next() {
		var schema, table, name, refNS, refT, fromCol, toCol string
		var updAction, delAction, ordinal int
		if err := rows.Scan(&schema, &table, &name, &refNS, &refT, &updAction, &delAction, &fromCol, &toCol, &ordinal); err != nil {
			return err
		}
		k := key{schema, table, name}
		if !seen[k] {
			seen[k] = true
			order = append(order, k)
			refSchema[k], refTable[k] = refNS, refT
			onUpdate[k] = mssqlActionFromCode(updAction)
			onDelete[k] = mssqlActionFromCode(delAction)
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

func mssqlActionFromCode(code int) ir.ReferentialAction {
	switch code {
	case 1:
		return ir.ActionCascade
	case 2:
		return ir.ActionSetNull
	case 3:
		return ir.ActionSetDefault
	default:
		return ir.ActionNoAction
	}
}

func describeViews(ctx context.Context, db *sql.DB, s *ir.SqlSchema, nsIDs map[string]ir.NamespaceID) error {
	rows, err := db.QueryContext(ctx, `
		SELECT sch.name, v.name, coalesce(m.definition, '')
		FROM sys.views v
		JOIN sys.schemas sch ON sch.schema_id = v.schema_id
		LEFT JOIN sys.sql_modules m ON m.object_id = v.object_id
		WHERE v.is_ms_shipped = 0
		ORDER BY sch.name, v.name`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var schema, name, def string
		if err := rows.Scan(&schema, &name, &def); err != nil {
			return err
		}
		nsID, ok := nsIDs[schema]
		if !ok {
			continue
		}
		s.AddView(ir.View{NamespaceID: nsID, Name: name, Definition: strings.TrimSpace(def)})
	}
	return rows.Err()
}
