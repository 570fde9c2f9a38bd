package differ

import (
	"strings"

	"github.com/sqldef/schemacore/internal/dialect"
	"github.com/sqldef/schemacore/internal/ir"
)

// canon canonicalizes a name for pairing purposes only; the original
// name is always what gets rendered (spec §4.2's lowercasing rule is
// applied the same way here, for the same reason).
func canon(dial dialect.SqlDialect, name string) string {
	if dial.LowercasesTableNames() {
		return strings.ToLower(name)
	}
	return name
}

// namePair is a generic (prev, next) id pair keyed by canonical name,
// produced by pairByName for namespaces/enums/tables/columns/views.
type namePair struct {
	Name        string
	PrevID      ir.ID
	NextID      ir.ID
	HasPrev     bool
	HasNext     bool
}

// pairByName pairs two id->name maps on canonicalized name, returning one
// namePair per distinct canonical name seen on either side.
func pairByName(dial dialect.SqlDialect, prev, next map[ir.ID]string) []namePair {
	byCanon := make(map[string]*namePair)
	order := make([]string, 0, len(prev)+len(next))

	for id, name := range prev {
		c := canon(dial, name)
		p, ok := byCanon[c]
		if !ok {
			p = &namePair{Name: name}
			byCanon[c] = p
			order = append(order, c)
		}
		p.PrevID, p.HasPrev = id, true
	}
	for id, name := range next {
		c := canon(dial, name)
		p, ok := byCanon[c]
		if !ok {
			p = &namePair{Name: name}
			byCanon[c] = p
			order = append(order, c)
		}
		p.NextID, p.HasNext = id, true
		if !p.HasPrev {
			p.Name = name
		}
	}

	out := make([]namePair, 0, len(order))
	for _, c := range order {
		out = append(out, *byCanon[c])
	}
	return out
}

// DatabasePairing is the result of step 1-5 pairing in §4.4: every
// namespace/table/column/enum/foreign-key/index pairing needed by the
// phase emission logic, computed once up front.
type DatabasePairing struct {
	Dialect dialect.SqlDialect
	Prev    *ir.SqlSchema
	Next    *ir.SqlSchema

	Namespaces []namePair
	Tables     []tablePairing
	Enums      []namePair
}

type tablePairing struct {
	namePair
	Columns     []namePair
	ForeignKeys []fkPairing
	Indexes     []indexPairing
}

type fkPairing struct {
	PrevID  ir.ForeignKeyID
	NextID  ir.ForeignKeyID
	HasPrev bool
	HasNext bool
	// StructureChanged is true when both sides exist but the referential
	// action, columns, or target table differ enough that the pairing is
	// treated as drop+create rather than in-place.
	StructureChanged bool
}

type indexPairing struct {
	PrevID      ir.IndexID
	NextID      ir.IndexID
	HasPrev     bool
	HasNext     bool
	NameChanged bool
	OldName     string
	NewName     string
}

// isInternalTable filters the migrations table and dialect-internal
// tables out of pairing entirely (§4.2), so they never appear in any
// step.
func isInternalTable(name string) bool {
	switch name {
	case "_prisma_migrations", "schema_migrations":
		return true
	}
	return false
}

func BuildPairing(dial dialect.SqlDialect, prev, next *ir.SqlSchema) *DatabasePairing {
	p := &DatabasePairing{Dialect: dial, Prev: prev, Next: next}

	prevNS := idNameMap(prev.Namespaces, func(n ir.Namespace) (ir.ID, string) { return n.ID, n.Name })
	nextNS := idNameMap(next.Namespaces, func(n ir.Namespace) (ir.ID, string) { return n.ID, n.Name })
	p.Namespaces = pairByName(dial, prevNS, nextNS)

	prevEnums := idNameMap(prev.Enums, func(e ir.Enum) (ir.ID, string) { return e.ID, e.Name })
	nextEnums := idNameMap(next.Enums, func(e ir.Enum) (ir.ID, string) { return e.ID, e.Name })
	p.Enums = pairByName(dial, prevEnums, nextEnums)

	prevTables := make(map[ir.ID]string)
	for _, t := range prev.Tables {
		if !isInternalTable(t.Name) {
			prevTables[t.ID] = t.Name
		}
	}
	nextTables := make(map[ir.ID]string)
	for _, t := range next.Tables {
		if !isInternalTable(t.Name) {
			nextTables[t.ID] = t.Name
		}
	}
	tablePairs := pairByName(dial, prevTables, nextTables)

	p.Tables = make([]tablePairing, len(tablePairs))
	for i, tp := range tablePairs {
		p.Tables[i] = buildTablePairing(dial, prev, next, tp)
	}
	return p
}

func idNameMap[T any](items []T, get func(T) (ir.ID, string)) map[ir.ID]string {
	out := make(map[ir.ID]string, len(items))
	for _, it := range items {
		id, name := get(it)
		out[id] = name
	}
	return out
}

func buildTablePairing(dial dialect.SqlDialect, prev, next *ir.SqlSchema, tp namePair) tablePairing {
	tpr := tablePairing{namePair: tp}
	if !tp.HasPrev || !tp.HasNext {
		return tpr // only paired tables need column/index/fk pairing
	}

	prevCols := idNameMap(prev.TableColumns(tp.PrevID), func(c ir.Column) (ir.ID, string) { return c.ID, c.Name })
	nextCols := idNameMap(next.TableColumns(tp.NextID), func(c ir.Column) (ir.ID, string) { return c.ID, c.Name })
	tpr.Columns = pairByName(dial, prevCols, nextCols)

	tpr.ForeignKeys = pairForeignKeys(prev.TableForeignKeys(tp.PrevID), next.TableForeignKeys(tp.NextID))
	tpr.Indexes = pairIndexes(prev.TableIndexes(tp.PrevID), next.TableIndexes(tp.NextID))
	return tpr
}

// pairForeignKeys pairs structurally: same constrained-column set and
// referenced table pairs up regardless of name; if a name matches but the
// structure differs, the pairing is flagged StructureChanged so the
// caller treats it as drop+create rather than in-place (§4.4 step 5).
func pairForeignKeys(prevFKs, nextFKs []ir.ForeignKey) []fkPairing {
	usedNext := make(map[int]bool)
	var out []fkPairing

	for _, pf := range prevFKs {
		matched := -1
		for j, nf := range nextFKs {
			if usedNext[j] {
				continue
			}
			if fkStructureEqual(pf, nf) {
				matched = j
				break
			}
		}
		if matched >= 0 {
			usedNext[matched] = true
			out = append(out, fkPairing{PrevID: pf.ID, NextID: nextFKs[matched].ID, HasPrev: true, HasNext: true})
			continue
		}
		// No structural match: if a same-named FK exists on the next
		// side, it's a structure change (drop+create); otherwise it's a
		// pure drop, resolved below once all prev FKs are scanned.
		for j, nf := range nextFKs {
			if usedNext[j] {
				continue
			}
			if nf.Name == pf.Name {
				usedNext[j] = true
				out = append(out, fkPairing{PrevID: pf.ID, NextID: nf.ID, HasPrev: true, HasNext: true, StructureChanged: true})
				matched = j
				break
			}
		}
		if matched < 0 {
			out = append(out, fkPairing{PrevID: pf.ID, HasPrev: true})
		}
	}
	for j, nf := range nextFKs {
		if !usedNext[j] {
			out = append(out, fkPairing{NextID: nf.ID, HasNext: true})
		}
	}
	return out
}

func fkStructureEqual(a, b ir.ForeignKey) bool {
	if a.ReferencedTableID != b.ReferencedTableID {
		return false
	}
	if a.OnDelete != b.OnDelete || a.OnUpdate != b.OnUpdate {
		return false
	}
	if len(a.Columns) != len(b.Columns) {
		return false
	}
	for i := range a.Columns {
		if a.Columns[i] != b.Columns[i] {
			return false
		}
	}
	return true
}

// pairIndexes pairs by constraint name, with the documented back-compat
// rule: a previous index with no name match pairs with a next index of the
// same logical (column-set, kind) shape.
func pairIndexes(prevIdx, nextIdx []ir.Index) []indexPairing {
	usedNext := make(map[int]bool)
	var out []indexPairing

	for _, pi := range prevIdx {
		matched := -1
		for j, ni := range nextIdx {
			if usedNext[j] {
				continue
			}
			if pi.Name == ni.Name {
				matched = j
				break
			}
		}
		if matched < 0 {
			// back-compat: same column set and kind, pair and treat the
			// name difference as a rename rather than drop+create.
			for j, ni := range nextIdx {
				if usedNext[j] {
					continue
				}
				if pi.Kind == ni.Kind && indexColumnsEqual(pi.Columns, ni.Columns) {
					matched = j
					break
				}
			}
		}
		if matched >= 0 {
			usedNext[matched] = true
			ni := nextIdx[matched]
			out = append(out, indexPairing{
				PrevID: pi.ID, NextID: ni.ID, HasPrev: true, HasNext: true,
				NameChanged: pi.Name != ni.Name, OldName: pi.Name, NewName: ni.Name,
			})
			continue
		}
		out = append(out, indexPairing{PrevID: pi.ID, HasPrev: true, OldName: pi.Name})
	}
	for j, ni := range nextIdx {
		if !usedNext[j] {
			out = append(out, indexPairing{NextID: ni.ID, HasNext: true, NewName: ni.Name})
		}
	}
	return out
}

func indexColumnsEqual(a, b []ir.IndexColumn) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ColumnID != b[i].ColumnID {
			return false
		}
	}
	return true
}
