// Package introspect implements the introspection pairing engine of spec
// §4.7: it reconciles a previous validated DML document against a freshly
// described IR schema and emits new DML text plus a structured list of
// warnings. It is the inverse of internal/calculate. Grounded on the
// teacher's schema/identifier.go (per-dialect identifier normalization)
// and schema/normalize.go (canonicalization of catalog-reported names for
// comparison), generalized from "two parsed DDL statements" to "one IR
// table and one DML model".
package introspect

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/sqldef/schemacore/internal/dialect"
	"github.com/sqldef/schemacore/internal/dml"
	"github.com/sqldef/schemacore/internal/ir"
)

// WarningKind discriminates the structured warnings channel of §4.7.
type WarningKind int

const (
	WarnFieldCommentedOut WarningKind = iota
	WarnModelWithoutIdentifier
	WarnEnumValueRemapped
	WarnNameMapCarriedOver
	WarnCompoundNameRemapped
	WarnPreviewFeatureDependent
)

type Warning struct {
	Kind    WarningKind
	Subject string // table/column/enum name the warning concerns
	Detail  string
}

// reservedWords is the fixed reserved-word set of the DML grammar (§4.7):
// names colliding with these always become Renamed<Name> plus @@map.
var reservedWords = map[string]bool{
	"model": true, "enum": true, "type": true, "view": true,
	"datasource": true, "generator": true, "true": true, "false": true,
	"null": true,
}

var invalidIdentChar = regexp.MustCompile(`[^A-Za-z0-9_]`)

// sanitizeIdentifier implements §9's "sanitize_identifier(raw, dialect
// rules)" entry point: invalid characters become `_`, a leading digit
// gets a `_` prefix, and reserved words become Renamed<Name>. It returns
// the DML-facing name and, when it differs from raw, the @map/@@map value
// that must be emitted to recover raw on introspection.
func sanitizeIdentifier(raw string) (dmlName string, mapped string) {
	name := invalidIdentChar.ReplaceAllString(raw, "_")
	if name == "" {
		name = "_"
	}
	if unicode.IsDigit(rune(name[0])) {
		name = "_" + name
	}
	if reservedWords[strings.ToLower(name)] {
		name = "Renamed" + strings.ToUpper(name[:1]) + name[1:]
	}
	if name != raw {
		return name, raw
	}
	return name, ""
}

// canonicalize mirrors the teacher's NormalizeIdentifierName case-folding
// rules per dialect, used only to pair previous-DML names against
// catalog-reported names — the DML names themselves are never folded.
func canonicalize(dial dialect.SqlDialect, name string) string {
	if dial.LowercasesTableNames() {
		return strings.ToLower(name)
	}
	return name
}

// ModelPair associates a table in next with, if any, its model in
// previous_dml (spec §4.7).
type ModelPair struct {
	Table    ir.Table
	Previous *dml.Model
}

// Introspect builds new DML text from the previous document (nil if this
// is the first introspection of a fresh database) and the freshly
// described schema, returning the text and any warnings raised while
// reconciling the two.
func Introspect(previous *dml.Document, next *ir.SqlSchema, dial dialect.SqlDialect) (string, []Warning) {
	var warnings []Warning

	prevByCanon := map[string]*dml.Model{}
	if previous != nil {
		for i := range previous.Models {
			m := &previous.Models[i]
			key := canonicalize(dial, mappedOrName(m.MappedName, m.Name))
			prevByCanon[key] = m
		}
	}

	models := make([]dml.Model, 0, len(next.Tables))
	for _, t := range next.Tables {
		prev := prevByCanon[canonicalize(dial, t.Name)]
		model, ws := buildModel(next, t, prev, dial)
		models = append(models, model)
		warnings = append(warnings, ws...)
	}

	enums := make([]dml.Enum, 0, len(next.Enums))
	prevEnumByCanon := map[string]*dml.Enum{}
	if previous != nil {
		for i := range previous.Enums {
			e := &previous.Enums[i]
			prevEnumByCanon[canonicalize(dial, e.Name)] = e
		}
	}
	for _, e := range next.Enums {
		enum, ws := buildEnum(e, prevEnumByCanon[canonicalize(dial, e.Name)])
		enums = append(enums, enum)
		warnings = append(warnings, ws...)
	}

	views := make([]dml.View, 0, len(next.Views))
	for _, v := range next.Views {
		views = append(views, dml.View{Name: sanitizedOrEmpty(v.Name), MappedName: v.Name, Definition: v.Definition})
	}

	doc := dml.Document{Models: models, Enums: enums, Views: views}
	return Render(&doc), warnings
}

func mappedOrName(mapped, name string) string {
	if mapped != "" {
		return mapped
	}
	return name
}

func sanitizedOrEmpty(raw string) string {
	name, _ := sanitizeIdentifier(raw)
	return name
}

// buildModel implements the per-table reconciliation of §4.7: name
// resolution, field pairing, @@ignore-on-no-identifier, and the
// Unsupported("...") carry-through for unmappable native types.
func buildModel(schema *ir.SqlSchema, t ir.Table, prev *dml.Model, dial dialect.SqlDialect) (dml.Model, []Warning) {
	var warnings []Warning

	name, mapName := resolveModelName(t.Name, prev)
	if mapName != "" {
		if prev != nil {
			warnings = append(warnings, Warning{Kind: WarnNameMapCarriedOver, Subject: t.Name, Detail: "@@map(\"" + mapName + "\") carried over from previous schema"})
		} else {
			warnings = append(warnings, Warning{Kind: WarnNameMapCarriedOver, Subject: t.Name, Detail: "@@map(\"" + mapName + "\") added: raw name is not a valid DML identifier"})
		}
	}

	m := dml.Model{Name: name, MappedName: mapName, Doc: t.Description}
	if prev != nil {
		m.Doc = prev.Doc
	}

	var prevFieldByCanon map[string]*dml.Field
	if prev != nil {
		prevFieldByCanon = map[string]*dml.Field{}
		for i := range prev.Fields {
			f := &prev.Fields[i]
			prevFieldByCanon[canonicalize(dial, mappedOrName(f.MappedName, f.Name))] = f
		}
	}

	cols := schema.TableColumns(t.ID)
	for _, c := range cols {
		prevField := prevFieldByCanon[canonicalize(dial, c.Name)]
		field, ws := buildField(schema, c, prevField, dial)
		m.Fields = append(m.Fields, field)
		warnings = append(warnings, ws...)
	}

	for _, idx := range schema.TableIndexes(t.ID) {
		switch idx.Kind {
		case ir.IndexPrimary:
			if len(idx.Columns) > 1 {
				m.ID = buildCompoundIndex(schema, idx, prevCompound(prev, true))
			} else if len(idx.Columns) == 1 {
				markFieldID(&m, schema, idx.Columns[0].ColumnID)
			}
		case ir.IndexUnique:
			if len(idx.Columns) > 1 {
				ci := buildCompoundIndex(schema, idx, nil)
				m.Uniques = append(m.Uniques, ci)
			} else if len(idx.Columns) == 1 {
				markFieldUnique(&m, schema, idx.Columns[0].ColumnID)
			}
		case ir.IndexNormal:
			if len(idx.Columns) > 0 {
				m.Indexes = append(m.Indexes, buildCompoundIndex(schema, idx, nil))
			}
		}
	}

	for _, fk := range schema.TableForeignKeys(t.ID) {
		addRelationField(schema, &m, fk, prev)
	}

	if !hasUsableIdentifier(&m) {
		m.Ignored = true
		warnings = append(warnings, Warning{Kind: WarnModelWithoutIdentifier, Subject: name, Detail: "model has no primary key or required unique index over supported types; marked @@ignore"})
	}

	return m, warnings
}

func prevCompound(prev *dml.Model, id bool) *dml.CompoundIndex {
	if prev == nil {
		return nil
	}
	if id {
		return prev.ID
	}
	return nil
}

func buildCompoundIndex(schema *ir.SqlSchema, idx ir.Index, prev *dml.CompoundIndex) dml.CompoundIndex {
	ci := dml.CompoundIndex{MapName: idx.Name}
	for _, ic := range idx.Columns {
		if col, ok := schema.Column(ic.ColumnID); ok {
			ci.Fields = append(ci.Fields, col.Name)
		}
	}
	if prev != nil && prev.MapName != "" {
		ci.MapName = prev.MapName
	}
	return ci
}

func markFieldID(m *dml.Model, schema *ir.SqlSchema, colID ir.ColumnID) {
	col, ok := schema.Column(colID)
	if !ok {
		return
	}
	for i := range m.Fields {
		if m.Fields[i].Name == col.Name || m.Fields[i].MappedName == col.Name {
			m.Fields[i].ID = true
			return
		}
	}
}

func markFieldUnique(m *dml.Model, schema *ir.SqlSchema, colID ir.ColumnID) {
	col, ok := schema.Column(colID)
	if !ok {
		return
	}
	for i := range m.Fields {
		if m.Fields[i].Name == col.Name || m.Fields[i].MappedName == col.Name {
			m.Fields[i].Unique = true
			return
		}
	}
}

func hasUsableIdentifier(m *dml.Model) bool {
	if m.ID != nil && len(m.ID.Fields) > 0 {
		return true
	}
	for _, f := range m.Fields {
		if f.ID || f.Unique {
			return true
		}
	}
	return false
}

// resolveModelName implements §4.7's name-resolution rule: keep the
// previous DML name (with @@map if it diverges from raw) when a previous
// model pairs; otherwise sanitize raw into a fresh DML name.
func resolveModelName(raw string, prev *dml.Model) (name, mapName string) {
	if prev != nil {
		if prev.MappedName != "" && prev.MappedName != raw {
			return prev.Name, raw
		}
		if prev.Name != raw && prev.MappedName == "" {
			return prev.Name, raw
		}
		return prev.Name, prev.MappedName
	}
	return sanitizeIdentifier(raw)
}

// buildField implements field-level reconciliation: preserve name/@map/
// doc/@updatedAt/@ignore from the previous field when paired; render
// Unsupported("...") when the column's Family is FamilyUnsupported, which
// the describers set for native types the dialect can't resolve.
func buildField(schema *ir.SqlSchema, c ir.Column, prev *dml.Field, dial dialect.SqlDialect) (dml.Field, []Warning) {
	var warnings []Warning

	var f dml.Field
	if prev != nil {
		f.Name = prev.Name
		f.MappedName = prev.MappedName
		f.Doc = prev.Doc
		f.UpdatedAt = prev.UpdatedAt
		if prev.MappedName != "" && prev.MappedName != c.Name {
			warnings = append(warnings, Warning{Kind: WarnNameMapCarriedOver, Subject: c.Name, Detail: "@map carried over from previous schema"})
		}
	} else {
		name, mapped := sanitizeIdentifier(c.Name)
		f.Name, f.MappedName = name, mapped
		if f.Name == "" || f.Name == "_" {
			f.Commented = true
			warnings = append(warnings, Warning{Kind: WarnFieldCommentedOut, Subject: c.Name, Detail: "no valid DML name mapping possible"})
		}
	}

	f.NativeType = renderNativeType(c.Native, c.Family)
	f.Family = c.Family.String()
	f.Optional = c.Arity == ir.ArityNullable
	f.List = c.Arity == ir.ArityList

	if c.Family.String() == "Unsupported" {
		f.Unsupported = c.Native.Name
	}

	f.Default = renderDefault(c.Default, schema)

	return f, warnings
}

func renderNativeType(native ir.NativeType, family ir.ScalarFamily) string {
	if native.Name == "" {
		return ""
	}
	if len(native.Args) == 0 {
		return native.Name
	}
	parts := make([]string, len(native.Args))
	for i, a := range native.Args {
		parts[i] = fmt.Sprintf("%d", a)
	}
	return fmt.Sprintf("%s(%s)", native.Name, strings.Join(parts, ","))
}

func renderDefault(d ir.DefaultValue, schema *ir.SqlSchema) *dml.DefaultExpr {
	switch d.Kind {
	case ir.DefaultNone:
		return nil
	case ir.DefaultFunctionCall:
		switch d.FunctionName {
		case "autoincrement":
			return &dml.DefaultExpr{IsAutoincrement: true}
		case "now":
			return &dml.DefaultExpr{IsNow: true}
		case "uuid":
			return &dml.DefaultExpr{IsUUID: true}
		default:
			return &dml.DefaultExpr{Expression: d.FunctionName}
		}
	case ir.DefaultSequence:
		return &dml.DefaultExpr{IsAutoincrement: true}
	case ir.DefaultExpression:
		return &dml.DefaultExpr{Expression: d.Expression}
	default:
		return &dml.DefaultExpr{Literal: d.Literal}
	}
}

// addRelationField implements relation-name carryover: copy the previous
// model's relation name when it defined one for the same target, even
// though the FK itself is regenerated fresh from the IR every run.
func addRelationField(schema *ir.SqlSchema, m *dml.Model, fk ir.ForeignKey, prev *dml.Model) {
	target, ok := schema.Table(fk.ReferencedTableID)
	if !ok {
		return
	}
	relName := ""
	if prev != nil {
		for _, f := range prev.Fields {
			if f.IsRelation && f.RelationTarget == target.Name {
				relName = f.RelationName
				break
			}
		}
	}

	localFields := make([]string, 0, len(fk.Columns))
	refFields := make([]string, 0, len(fk.Columns))
	for _, pair := range fk.Columns {
		if c, ok := schema.Column(pair.FromColumnID); ok {
			localFields = append(localFields, c.Name)
		}
		if c, ok := schema.Column(pair.ToColumnID); ok {
			refFields = append(refFields, c.Name)
		}
	}

	fieldName := strings.ToLower(target.Name[:1]) + target.Name[1:]
	m.Fields = append(m.Fields, dml.Field{
		Name: fieldName, IsRelation: true, RelationName: relName,
		RelationTarget: target.Name, RelationFields: localFields, RelationRefs: refFields,
		RelationOnDelete: fk.OnDelete.String(), RelationOnUpdate: fk.OnUpdate.String(),
	})
}

// buildEnum implements enum reconciliation: preserve previous value
// names/@map, warn when a value had to be remapped.
func buildEnum(e ir.Enum, prev *dml.Enum) (dml.Enum, []Warning) {
	var warnings []Warning
	name := e.Name
	if prev != nil {
		name = prev.Name
	} else {
		name, _ = sanitizeIdentifier(e.Name)
	}

	en := dml.Enum{Name: name}
	var prevValByRaw map[string]*dml.EnumValue
	if prev != nil {
		prevValByRaw = map[string]*dml.EnumValue{}
		for i := range prev.Values {
			v := &prev.Values[i]
			prevValByRaw[mappedOrName(v.MappedName, v.Name)] = v
		}
	}
	for _, v := range e.Values {
		if pv, ok := prevValByRaw[v.Name]; ok {
			en.Values = append(en.Values, *pv)
			continue
		}
		dmlName, mapped := sanitizeIdentifier(v.Name)
		if mapped != "" {
			warnings = append(warnings, Warning{Kind: WarnEnumValueRemapped, Subject: e.Name, Detail: fmt.Sprintf("enum value %q remapped to %q", v.Name, dmlName)})
		}
		en.Values = append(en.Values, dml.EnumValue{Name: dmlName, MappedName: mapped})
	}
	return en, warnings
}
