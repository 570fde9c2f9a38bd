package check

import (
	"context"
	"testing"

	"github.com/sqldef/schemacore/internal/ir"
	"github.com/sqldef/schemacore/internal/step"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRowCounter implements check.RowCounter with a fixed table->count map,
// counting how many times each table is asked for so tests can assert the
// per-pass cache (§4.5) is doing its job.
type stubRowCounter struct {
	counts map[string]int64
	calls  map[string]int
}

func newStubRowCounter(counts map[string]int64) *stubRowCounter {
	return &stubRowCounter{counts: counts, calls: map[string]int{}}
}

func (s *stubRowCounter) CountRows(_ context.Context, tableName string) (int64, error) {
	s.calls[tableName]++
	return s.counts[tableName], nil
}

func TestCheckDropTableSafeWhenEmpty(t *testing.T) {
	prev := ir.New("postgres")
	ns := prev.AddNamespace("public")
	tid := prev.AddTable(ir.Table{NamespaceID: ns, Name: "Post"})
	next := ir.New("postgres")
	next.AddNamespace("public")

	rows := newStubRowCounter(map[string]int64{"Post": 0})
	c := New(prev, next, rows)
	out, err := c.CheckAll(context.Background(), []step.Step{step.DropTable{TableID: tid, TableName: "Post"}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, Safe, out[0].Severity)
}

func TestCheckDropTableWarningWhenRows(t *testing.T) {
	prev := ir.New("postgres")
	ns := prev.AddNamespace("public")
	tid := prev.AddTable(ir.Table{NamespaceID: ns, Name: "Post"})
	next := ir.New("postgres")
	next.AddNamespace("public")

	rows := newStubRowCounter(map[string]int64{"Post": 12})
	c := New(prev, next, rows)
	out, err := c.CheckAll(context.Background(), []step.Step{step.DropTable{TableID: tid, TableName: "Post"}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, Warning, out[0].Severity)
	assert.Contains(t, out[0].Explanation, "12 row")
}

func TestCheckAddRequiredColumnWithoutDefaultUnexecutableOnNonEmptyTable(t *testing.T) {
	prev := ir.New("postgres")
	ns := prev.AddNamespace("public")
	tid := prev.AddTable(ir.Table{NamespaceID: ns, Name: "Post"})

	next := ir.New("postgres")
	nextNs := next.AddNamespace("public")
	nextTid := next.AddTable(ir.Table{NamespaceID: nextNs, Name: "Post"})
	colID := next.AddColumn(ir.Column{TableID: nextTid, Name: "title", Family: ir.FamilyString, Arity: ir.ArityRequired})

	rows := newStubRowCounter(map[string]int64{"Post": 5})
	c := New(prev, next, rows)
	_ = tid
	steps := []step.Step{step.AlterTable{Change: step.AlterTableChange{TableID: nextTid, AddColumn: &colID}}}
	out, err := c.CheckAll(context.Background(), steps)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, Unexecutable, out[0].Severity)
	assert.Contains(t, out[0].Explanation, "title")
	assert.Contains(t, out[0].Explanation, "5 row")
}

func TestCheckAddRequiredColumnSafeOnEmptyTable(t *testing.T) {
	prev := ir.New("postgres")
	ns := prev.AddNamespace("public")
	tid := prev.AddTable(ir.Table{NamespaceID: ns, Name: "Post"})

	next := ir.New("postgres")
	nextNs := next.AddNamespace("public")
	nextTid := next.AddTable(ir.Table{NamespaceID: nextNs, Name: "Post"})
	colID := next.AddColumn(ir.Column{TableID: nextTid, Name: "title", Family: ir.FamilyString, Arity: ir.ArityRequired})

	rows := newStubRowCounter(map[string]int64{"Post": 0})
	c := New(prev, next, rows)
	_ = tid
	steps := []step.Step{step.AlterTable{Change: step.AlterTableChange{TableID: nextTid, AddColumn: &colID}}}
	out, err := c.CheckAll(context.Background(), steps)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, Safe, out[0].Severity)
}

// TestCheckAlterEnumRemovalWarning covers spec.md S3: removing an enum
// value with no surviving reference classifies as Warning with the
// literal message format the spec documents.
func TestCheckAlterEnumRemovalWarning(t *testing.T) {
	prev := ir.New("postgres")
	ns := prev.AddNamespace("public")
	enumID := prev.AddEnum(ir.Enum{NamespaceID: ns, Name: "Mood", Values: []ir.EnumValue{{Name: "HAPPY"}, {Name: "HUNGRY"}}})

	next := ir.New("postgres")
	next.AddNamespace("public")

	rows := newStubRowCounter(nil)
	c := New(prev, next, rows)
	out, err := c.CheckAll(context.Background(), []step.Step{step.AlterEnum{EnumID: enumID, RemovedValues: []string{"HAPPY"}}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, Warning, out[0].Severity)
	assert.Equal(t, `The values [HAPPY] on the enum "Mood" will be removed`, out[0].Explanation)
}

// TestCheckAlterEnumRemovalUnexecutableWhenDefaultReferencesValue covers
// spec.md S3's second branch: a column default still carrying the
// removed value makes the step Unexecutable.
func TestCheckAlterEnumRemovalUnexecutableWhenDefaultReferencesValue(t *testing.T) {
	prev := ir.New("postgres")
	ns := prev.AddNamespace("public")
	enumID := prev.AddEnum(ir.Enum{NamespaceID: ns, Name: "Mood", Values: []ir.EnumValue{{Name: "HAPPY"}, {Name: "HUNGRY"}}})
	tid := prev.AddTable(ir.Table{NamespaceID: ns, Name: "User"})
	prev.AddColumn(ir.Column{
		TableID: tid,
		Name:    "mood",
		Family:  ir.FamilyEnum,
		Native:  ir.NativeType{Name: "Mood", EnumID: enumID},
		Default: ir.DefaultValue{Kind: ir.DefaultLiteral, Literal: "HAPPY"},
	})

	next := ir.New("postgres")
	next.AddNamespace("public")

	rows := newStubRowCounter(nil)
	c := New(prev, next, rows)
	out, err := c.CheckAll(context.Background(), []step.Step{step.AlterEnum{EnumID: enumID, RemovedValues: []string{"HAPPY"}}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, Unexecutable, out[0].Severity)
	assert.Contains(t, out[0].Explanation, "HAPPY")
	assert.True(t, HasUnexecutable(out))
}

func TestCheckAlterEnumAddOnlyIsSafe(t *testing.T) {
	prev := ir.New("postgres")
	ns := prev.AddNamespace("public")
	enumID := prev.AddEnum(ir.Enum{NamespaceID: ns, Name: "Mood", Values: []ir.EnumValue{{Name: "HAPPY"}}})
	next := ir.New("postgres")
	next.AddNamespace("public")

	rows := newStubRowCounter(nil)
	c := New(prev, next, rows)
	out, err := c.CheckAll(context.Background(), []step.Step{step.AlterEnum{EnumID: enumID, AddedValues: []string{"HUNGRY"}}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, Safe, out[0].Severity)
	assert.False(t, HasUnexecutable(out))
}

func TestCheckRowCountIsCachedWithinOnePass(t *testing.T) {
	prev := ir.New("postgres")
	ns := prev.AddNamespace("public")
	tid1 := prev.AddTable(ir.Table{NamespaceID: ns, Name: "Post"})
	tid2 := prev.AddTable(ir.Table{NamespaceID: ns, Name: "Post"}) // same name, so both DropTable steps below share one row-count lookup
	next := ir.New("postgres")
	next.AddNamespace("public")

	rows := newStubRowCounter(map[string]int64{"Post": 3})
	c := New(prev, next, rows)
	_, err := c.CheckAll(context.Background(), []step.Step{
		step.DropTable{TableID: tid1, TableName: "Post"},
		step.DropTable{TableID: tid2, TableName: "Post"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, rows.calls["Post"], "expected the row count to be cached across steps touching the same table name")
}
