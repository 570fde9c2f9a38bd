package differ

import (
	"github.com/sqldef/schemacore/internal/dialect"
	"github.com/sqldef/schemacore/internal/ir"
	"github.com/sqldef/schemacore/internal/step"
)

// columnChanges computes the §4.4 step-4 bitset for one paired column.
// The dialect's flavour can widen this (e.g. SQLite folds any type change
// into a redefine trigger elsewhere) but the bitset itself is uniform.
func columnChanges(prev, next ir.Column) step.ColumnChange {
	var c step.ColumnChange
	if prev.Native.Name != next.Native.Name || !sameArgs(prev.Native.Args, next.Native.Args) {
		c |= step.ChangeType
	}
	if prev.Arity != next.Arity {
		c |= step.ChangeArity
	}
	if !sameDefault(prev.Default, next.Default) {
		c |= step.ChangeDefault
	}
	if prev.AutoIncrement != next.AutoIncrement {
		c |= step.ChangeAutoIncrement
	}
	if prev.Description != next.Description {
		c |= step.ChangeComment
	}
	return c
}

func sameArgs(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sameDefault(a, b ir.DefaultValue) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case ir.DefaultNone:
		return true
	case ir.DefaultLiteral:
		return a.Literal == b.Literal
	case ir.DefaultSequence:
		return a.SequenceID == b.SequenceID
	case ir.DefaultFunctionCall:
		return a.FunctionName == b.FunctionName
	case ir.DefaultExpression:
		return a.Expression == b.Expression
	default:
		return false
	}
}

// redefineReason is purely documentary (surfaced in diagnostics); it
// doesn't affect step emission.
type redefineReason string

const (
	reasonPrimaryKeyChange  redefineReason = "primary key changed"
	reasonColumnTypeChange  redefineReason = "column type changed"
	reasonColumnToRequired  redefineReason = "column changed nullable to required"
	reasonAutoIncrementFlip redefineReason = "auto_increment added or removed"
	reasonClusteredChange   redefineReason = "clustered index changed"
)

// tablesToRedefine applies the dialect-conditional triggers of §4.4's
// "Tables-to-redefine" paragraph and returns the set of paired-table
// indexes (into p.Tables) that must go through RedefineTables instead of
// in-place ALTER TABLE.
func tablesToRedefine(dial dialect.SqlDialect, p *DatabasePairing) map[int]redefineReason {
	redefine := make(map[int]redefineReason)
	caps := dial.Capabilities()

	for i, t := range p.Tables {
		if !t.HasPrev || !t.HasNext {
			continue
		}

		if dial.Name() == "sqlite" {
			// SQLite has no ALTER COLUMN TYPE and no ALTER TABLE
			// DROP/ADD PRIMARY KEY. Any of these forces a rebuild.
			if prevPK, nextPK := p.Prev.PrimaryKey(t.PrevID), p.Next.PrimaryKey(t.NextID); !samePrimaryKey(prevPK, nextPK) {
				redefine[i] = reasonPrimaryKeyChange
				continue
			}
			for _, cp := range t.Columns {
				if !cp.HasPrev || !cp.HasNext {
					continue
				}
				prevCol, _ := p.Prev.Column(cp.PrevID)
				nextCol, _ := p.Next.Column(cp.NextID)
				ch := columnChanges(prevCol, nextCol)
				if ch.Has(step.ChangeType) {
					redefine[i] = reasonColumnTypeChange
					break
				}
				if ch.Has(step.ChangeArity) && prevCol.Arity != ir.ArityRequired && nextCol.Arity == ir.ArityRequired {
					redefine[i] = reasonColumnToRequired
					break
				}
				if ch.Has(step.ChangeAutoIncrement) {
					redefine[i] = reasonAutoIncrementFlip
					break
				}
			}
			continue
		}

		if caps.Has(dialect.ClusteringSetting) && dial.Name() == "sqlserver" {
			if clusteredFlagChanged(p.Prev, t.PrevID, p.Next, t.NextID) {
				redefine[i] = reasonClusteredChange
			}
		}
	}
	return redefine
}

func samePrimaryKey(prev, next *ir.Index) bool {
	if (prev == nil) != (next == nil) {
		return false
	}
	if prev == nil {
		return true
	}
	return indexColumnsEqual(prev.Columns, next.Columns)
}

func clusteredFlagChanged(prevSchema *ir.SqlSchema, prevID ir.TableID, nextSchema *ir.SqlSchema, nextID ir.TableID) bool {
	prevPK := prevSchema.PrimaryKey(prevID)
	nextPK := nextSchema.PrimaryKey(nextID)
	var prevClustered, nextClustered bool
	if prevPK != nil && prevPK.Clustered != nil {
		prevClustered = *prevPK.Clustered
	}
	if nextPK != nil && nextPK.Clustered != nil {
		nextClustered = *nextPK.Clustered
	}
	return prevClustered != nextClustered
}
