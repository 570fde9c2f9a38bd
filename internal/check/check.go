// Package check implements the destructive-change checker of spec §4.5:
// classify each migration step as safe, warning, or unexecutable, with
// row-count-interpolated explanations for anything non-safe. Grounded on
// the teacher's inline destructive-DDL heuristics scattered through
// schema/generator.go (e.g. its drop-column/drop-table guards), lifted
// out into a standalone pass the way zakandrewking-lockplane splits its
// planner from its destructive-change classification.
package check

import (
	"context"
	"fmt"
	"strings"

	"github.com/sqldef/schemacore/internal/ir"
	"github.com/sqldef/schemacore/internal/step"
)

type Severity int

const (
	Safe Severity = iota
	Warning
	Unexecutable
)

func (s Severity) String() string {
	switch s {
	case Warning:
		return "warning"
	case Unexecutable:
		return "unexecutable"
	default:
		return "safe"
	}
}

// Annotated pairs a step with its classification and, for non-safe
// steps, a human-readable explanation.
type Annotated struct {
	Step        step.Step
	Severity    Severity
	Explanation string
}

// RowCounter is implemented by internal/connector; it runs the ancillary
// `SELECT COUNT(*)` queries against the live (not shadow) database (§4.5).
type RowCounter interface {
	CountRows(ctx context.Context, tableName string) (int64, error)
}

// Checker classifies a step vector produced by internal/differ, caching
// row counts within one pass.
type Checker struct {
	prev    *ir.SqlSchema
	next    *ir.SqlSchema
	rows    RowCounter
	cache   map[string]int64
}

func New(prev, next *ir.SqlSchema, rows RowCounter) *Checker {
	return &Checker{prev: prev, next: next, rows: rows, cache: make(map[string]int64)}
}

func (c *Checker) rowCount(ctx context.Context, tableName string) (int64, error) {
	if n, ok := c.cache[tableName]; ok {
		return n, nil
	}
	n, err := c.rows.CountRows(ctx, tableName)
	if err != nil {
		return 0, err
	}
	c.cache[tableName] = n
	return n, nil
}

// CheckAll classifies every step, in order, preserving the input order.
func (c *Checker) CheckAll(ctx context.Context, steps []step.Step) ([]Annotated, error) {
	out := make([]Annotated, len(steps))
	for i, s := range steps {
		a, err := c.checkOne(ctx, s)
		if err != nil {
			return nil, err
		}
		out[i] = a
	}
	return out, nil
}

func (c *Checker) checkOne(ctx context.Context, s step.Step) (Annotated, error) {
	switch v := s.(type) {
	case step.DropTable:
		return c.checkDropTable(ctx, v)
	case step.AlterTable:
		return c.checkAlterTable(ctx, v)
	case step.DropForeignKey, step.CreateForeignKey, step.CreateIndex, step.DropIndex,
		step.RenameIndex, step.CreateView, step.DropView, step.CreateNamespace,
		step.CreateExtension, step.AlterExtension, step.DropExtension, step.CreateEnum:
		return Annotated{Step: s, Severity: Safe}, nil
	case step.DropEnum:
		return Annotated{Step: s, Severity: Warning, Explanation: fmt.Sprintf("dropping enum %q: any column or default still typed against it will fail", v.EnumName)}, nil
	case step.AlterEnum:
		return c.checkAlterEnum(v), nil
	case step.RedefineTables:
		return c.checkRedefineTables(ctx, v)
	default:
		return Annotated{Step: s, Severity: Safe}, nil
	}
}

func (c *Checker) checkDropTable(ctx context.Context, v step.DropTable) (Annotated, error) {
	n, err := c.rowCount(ctx, v.TableName)
	if err != nil {
		return Annotated{}, err
	}
	if n == 0 {
		return Annotated{Step: v, Severity: Safe}, nil
	}
	return Annotated{Step: v, Severity: Warning, Explanation: fmt.Sprintf("dropping table %q will discard %d row(s)", v.TableName, n)}, nil
}

func (c *Checker) checkAlterTable(ctx context.Context, v step.AlterTable) (Annotated, error) {
	ch := v.Change
	tableName := c.tableName(ch.TableID)

	if ch.DropColumn != nil {
		n, err := c.rowCount(ctx, tableName)
		if err != nil {
			return Annotated{}, err
		}
		colName := c.columnName(*ch.DropColumn)
		if n == 0 {
			return Annotated{Step: v, Severity: Safe}, nil
		}
		return Annotated{Step: v, Severity: Warning, Explanation: fmt.Sprintf("dropping column %q on %q will discard values from %d row(s)", colName, tableName, n)}, nil
	}

	if ch.AddColumn != nil {
		col, ok := c.next.Column(*ch.AddColumn)
		if !ok {
			return Annotated{Step: v, Severity: Safe}, nil
		}
		if col.Arity == ir.ArityRequired && col.Default.Kind == ir.DefaultNone && !col.AutoIncrement {
			n, err := c.rowCount(ctx, tableName)
			if err != nil {
				return Annotated{}, err
			}
			if n > 0 {
				return Annotated{Step: v, Severity: Unexecutable, Explanation: fmt.Sprintf("adding required column %q without a default to %q, which has %d row(s)", col.Name, tableName, n)}, nil
			}
		}
		return Annotated{Step: v, Severity: Safe}, nil
	}

	if ch.AlterColumn != nil {
		return c.checkAlterColumn(ctx, tableName, *ch.AlterColumn)
	}

	return Annotated{Step: v, Severity: Safe}, nil
}

func (c *Checker) checkAlterColumn(ctx context.Context, tableName string, alt step.ColumnAlteration) (Annotated, error) {
	v := step.AlterTable{Change: step.AlterTableChange{AlterColumn: &alt}}
	nextCol, ok := c.next.Column(alt.ColumnID)
	if !ok {
		return Annotated{Step: v, Severity: Safe}, nil
	}
	prevCol, hasPrev := c.findPrevColumn(nextCol.Name, tableName)

	n, err := c.rowCount(ctx, tableName)
	if err != nil {
		return Annotated{}, err
	}

	if alt.Changes.Has(step.ChangeArity) && nextCol.Arity == ir.ArityRequired && hasPrev && prevCol.Arity != ir.ArityRequired {
		if n > 0 {
			return Annotated{Step: v, Severity: Unexecutable, Explanation: fmt.Sprintf("making column %q required on %q, which has %d row(s) that may contain null", nextCol.Name, tableName, n)}, nil
		}
	}
	if alt.Changes.Has(step.ChangeType) && hasPrev && isNarrowing(prevCol.Native, nextCol.Native) {
		if n > 0 {
			return Annotated{Step: v, Severity: Warning, Explanation: fmt.Sprintf("narrowing column %q on %q (%d row(s) may not fit)", nextCol.Name, tableName, n)}, nil
		}
	}
	return Annotated{Step: v, Severity: Safe}, nil
}

// checkAlterEnum implements spec.md S3: removing an enum value is a
// Warning by default ("The values [...] on the enum "..." will be
// removed"), but Unexecutable when a surviving column default still
// carries one of the removed values — the ALTER TYPE ... DROP VALUE (or
// redefine-and-copy, depending on dialect) cannot succeed while that
// default exists.
func (c *Checker) checkAlterEnum(v step.AlterEnum) Annotated {
	if len(v.RemovedValues) == 0 {
		return Annotated{Step: v, Severity: Safe}
	}
	name := c.enumName(v.EnumID)
	if ref, value := c.enumValueReferencedByDefault(v.EnumID, v.RemovedValues); ref {
		return Annotated{
			Step:        v,
			Severity:    Unexecutable,
			Explanation: fmt.Sprintf("the value %q on the enum %q will be removed but is still referenced by a column default", value, name),
		}
	}
	return Annotated{
		Step:        v,
		Severity:    Warning,
		Explanation: fmt.Sprintf("The values [%s] on the enum %q will be removed", strings.Join(v.RemovedValues, ", "), name),
	}
}

// enumValueReferencedByDefault scans both schema sides for a literal
// column default still carrying one of the values about to be removed.
func (c *Checker) enumValueReferencedByDefault(enumID ir.EnumID, removed []string) (bool, string) {
	removedSet := make(map[string]bool, len(removed))
	for _, r := range removed {
		removedSet[r] = true
	}
	for _, schema := range [2]*ir.SqlSchema{c.prev, c.next} {
		if schema == nil {
			continue
		}
		for _, col := range schema.Columns {
			if col.Family != ir.FamilyEnum || col.Native.EnumID != enumID {
				continue
			}
			if col.Default.Kind != ir.DefaultLiteral {
				continue
			}
			if removedSet[col.Default.Literal] {
				return true, col.Default.Literal
			}
		}
	}
	return false, ""
}

func (c *Checker) enumName(id ir.EnumID) string {
	if e, ok := c.next.Enum(id); ok {
		return e.Name
	}
	if e, ok := c.prev.Enum(id); ok {
		return e.Name
	}
	return ""
}

// HasUnexecutable reports whether any annotation is Unexecutable, the
// trigger for the force-gated abort of §7's propagation policy: only
// Unexecutable steps ever stop a migration, and only when force is off.
func HasUnexecutable(annotated []Annotated) bool {
	for _, a := range annotated {
		if a.Severity == Unexecutable {
			return true
		}
	}
	return false
}

func (c *Checker) checkRedefineTables(ctx context.Context, v step.RedefineTables) (Annotated, error) {
	var total int64
	for _, tid := range v.PrevTableIDs {
		if tid == ir.NoID {
			continue
		}
		t, ok := c.prev.Table(tid)
		if !ok {
			continue
		}
		n, err := c.rowCount(ctx, t.Name)
		if err != nil {
			return Annotated{}, err
		}
		total += n
	}
	if total == 0 {
		return Annotated{Step: v, Severity: Safe}, nil
	}
	return Annotated{Step: v, Severity: Warning, Explanation: fmt.Sprintf("rebuilding %d table(s) holding %d row(s) total; rows are copied but any column dropped along the way is lost", len(v.TableIDs), total)}, nil
}

func (c *Checker) tableName(id ir.TableID) string {
	if t, ok := c.next.Table(id); ok {
		return t.Name
	}
	if t, ok := c.prev.Table(id); ok {
		return t.Name
	}
	return ""
}

func (c *Checker) columnName(id ir.ColumnID) string {
	if col, ok := c.next.Column(id); ok {
		return col.Name
	}
	if col, ok := c.prev.Column(id); ok {
		return col.Name
	}
	return ""
}

func (c *Checker) findPrevColumn(name, tableName string) (ir.Column, bool) {
	for _, t := range c.prev.Tables {
		if t.Name != tableName {
			continue
		}
		for _, col := range c.prev.TableColumns(t.ID) {
			if col.Name == name {
				return col, true
			}
		}
	}
	return ir.Column{}, false
}

// isNarrowing is a conservative heuristic: same native type name with a
// smaller first size argument (e.g. VarChar(255) -> VarChar(20)).
func isNarrowing(prev, next ir.NativeType) bool {
	if prev.Name != next.Name {
		return false
	}
	if len(prev.Args) == 0 || len(next.Args) == 0 {
		return false
	}
	return next.Args[0] < prev.Args[0]
}
