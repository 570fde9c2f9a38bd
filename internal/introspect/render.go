package introspect

import (
	"fmt"
	"strings"

	"github.com/sqldef/schemacore/internal/dml"
)

// Render renders a Document to DML text. This is the one DML-text
// renderer this module carries: spec §1 places the DML parser and a
// general renderer out of scope, but introspection's documented output is
// DML text, so its own inverse belongs here and nowhere else. Rendering
// is pure string assembly, the same texture as the teacher's
// schema/ast.go Statement() methods, just targeting a different grammar.
func Render(doc *dml.Document) string {
	var b strings.Builder
	for i, e := range doc.Enums {
		if i > 0 {
			b.WriteString("\n")
		}
		renderEnum(&b, e)
	}
	if len(doc.Enums) > 0 && (len(doc.Models) > 0 || len(doc.Views) > 0) {
		b.WriteString("\n")
	}
	for i, m := range doc.Models {
		if i > 0 {
			b.WriteString("\n")
		}
		renderModel(&b, m)
	}
	if len(doc.Models) > 0 && len(doc.Views) > 0 {
		b.WriteString("\n")
	}
	for i, v := range doc.Views {
		if i > 0 {
			b.WriteString("\n")
		}
		renderView(&b, v)
	}
	return b.String()
}

func renderEnum(b *strings.Builder, e dml.Enum) {
	writeDoc(b, e.Doc, "")
	fmt.Fprintf(b, "enum %s {\n", e.Name)
	for _, v := range e.Values {
		if v.MappedName != "" {
			fmt.Fprintf(b, "  %s @map(%q)\n", v.Name, v.MappedName)
		} else {
			fmt.Fprintf(b, "  %s\n", v.Name)
		}
	}
	b.WriteString("}\n")
}

func renderModel(b *strings.Builder, m dml.Model) {
	writeDoc(b, m.Doc, "")
	fmt.Fprintf(b, "model %s {\n", m.Name)
	for _, f := range m.Fields {
		renderField(b, f)
	}
	if m.ID != nil && len(m.ID.Fields) > 0 {
		fmt.Fprintf(b, "\n  @@id([%s])", strings.Join(m.ID.Fields, ", "))
		if m.ID.MapName != "" {
			fmt.Fprintf(b, ", map: %q", m.ID.MapName)
		}
		b.WriteString("\n")
	}
	for _, u := range m.Uniques {
		fmt.Fprintf(b, "  @@unique([%s]", strings.Join(u.Fields, ", "))
		if u.MapName != "" {
			fmt.Fprintf(b, ", map: %q", u.MapName)
		}
		b.WriteString(")\n")
	}
	for _, ix := range m.Indexes {
		fmt.Fprintf(b, "  @@index([%s]", strings.Join(ix.Fields, ", "))
		if ix.MapName != "" {
			fmt.Fprintf(b, ", map: %q", ix.MapName)
		}
		b.WriteString(")\n")
	}
	if m.MappedName != "" {
		fmt.Fprintf(b, "  @@map(%q)\n", m.MappedName)
	}
	if m.Ignored {
		b.WriteString("  @@ignore\n")
	}
	b.WriteString("}\n")
}

func renderField(b *strings.Builder, f dml.Field) {
	writeDoc(b, f.Doc, "  ")
	prefix := "  "
	if f.Commented {
		prefix = "  // "
	}
	fmt.Fprintf(b, "%s%s", prefix, f.Name)

	if f.IsRelation {
		fmt.Fprintf(b, " %s%s", f.RelationTarget, arityMarker(f))
		renderRelationAttr(b, f)
		b.WriteString("\n")
		return
	}

	typeName := f.NativeType
	if f.Unsupported != "" {
		typeName = fmt.Sprintf("Unsupported(%q)", f.Unsupported)
	}
	fmt.Fprintf(b, " %s%s", typeName, arityMarker(f))

	if f.ID {
		b.WriteString(" @id")
	}
	if f.Unique {
		b.WriteString(" @unique")
	}
	if f.UpdatedAt {
		b.WriteString(" @updatedAt")
	}
	if f.Default != nil {
		renderDefaultAttr(b, f.Default)
	}
	if f.MappedName != "" {
		fmt.Fprintf(b, " @map(%q)", f.MappedName)
	}
	b.WriteString("\n")
}

func arityMarker(f dml.Field) string {
	switch {
	case f.List:
		return "[]"
	case f.Optional:
		return "?"
	default:
		return ""
	}
}

func renderRelationAttr(b *strings.Builder, f dml.Field) {
	if len(f.RelationFields) == 0 && f.RelationName == "" {
		return
	}
	b.WriteString(" @relation(")
	var parts []string
	if f.RelationName != "" {
		parts = append(parts, fmt.Sprintf("%q", f.RelationName))
	}
	if len(f.RelationFields) > 0 {
		parts = append(parts, fmt.Sprintf("fields: [%s]", strings.Join(f.RelationFields, ", ")))
	}
	if len(f.RelationRefs) > 0 {
		parts = append(parts, fmt.Sprintf("references: [%s]", strings.Join(f.RelationRefs, ", ")))
	}
	if f.RelationOnDelete != "" && f.RelationOnDelete != "NO ACTION" {
		parts = append(parts, "onDelete: "+referentialActionKeyword(f.RelationOnDelete))
	}
	if f.RelationOnUpdate != "" && f.RelationOnUpdate != "NO ACTION" {
		parts = append(parts, "onUpdate: "+referentialActionKeyword(f.RelationOnUpdate))
	}
	b.WriteString(strings.Join(parts, ", "))
	b.WriteString(")")
}

func referentialActionKeyword(action string) string {
	switch action {
	case "RESTRICT":
		return "Restrict"
	case "CASCADE":
		return "Cascade"
	case "SET NULL":
		return "SetNull"
	case "SET DEFAULT":
		return "SetDefault"
	default:
		return "NoAction"
	}
}

func renderDefaultAttr(b *strings.Builder, d *dml.DefaultExpr) {
	switch {
	case d.IsAutoincrement:
		b.WriteString(" @default(autoincrement())")
	case d.IsNow:
		b.WriteString(" @default(now())")
	case d.IsUUID:
		b.WriteString(" @default(uuid())")
	case d.Expression != "":
		fmt.Fprintf(b, " @default(dbgenerated(%q))", d.Expression)
	case d.Literal != "":
		fmt.Fprintf(b, " @default(%s)", literalLiteral(d.Literal))
	}
}

func literalLiteral(v string) string {
	if v == "true" || v == "false" {
		return v
	}
	if _, err := fmt.Sscanf(v, "%g", new(float64)); err == nil && isNumeric(v) {
		return v
	}
	return fmt.Sprintf("%q", v)
}

func isNumeric(v string) bool {
	if v == "" {
		return false
	}
	for i, r := range v {
		if r == '-' && i == 0 {
			continue
		}
		if (r < '0' || r > '9') && r != '.' {
			return false
		}
	}
	return true
}

func renderView(b *strings.Builder, v dml.View) {
	writeDoc(b, v.Doc, "")
	fmt.Fprintf(b, "view %s {\n", v.Name)
	if v.MappedName != "" {
		fmt.Fprintf(b, "  @@map(%q)\n", v.MappedName)
	}
	b.WriteString("}\n")
}

func writeDoc(b *strings.Builder, doc, indent string) {
	if doc == "" {
		return
	}
	for _, line := range strings.Split(doc, "\n") {
		fmt.Fprintf(b, "%s/// %s\n", indent, line)
	}
}
