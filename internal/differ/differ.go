// Package differ implements the core diffing algorithm of spec §4.4: two
// bound-to-the-same-dialect IRs go in, an ordered vector of typed
// migration steps comes out. It is grounded on the teacher's
// schema/generator.go (the single giant `generateDDLs` walk) and
// schema/ddl_ordering.go (topological table/view ordering), factored into
// the fixed phase list the specification requires instead of the
// teacher's single interleaved pass.
package differ

import (
	"regexp"
	"sort"
	"strings"

	"github.com/sqldef/schemacore/internal/dialect"
	"github.com/sqldef/schemacore/internal/ir"
	"github.com/sqldef/schemacore/internal/step"
	"github.com/sqldef/schemacore/pkg/diag"
)

// Result is the differ's output: the ordered step vector plus any
// diagnostics raised along the way (e.g. a flagged enum-value removal).
type Result struct {
	Steps       []step.Step
	Diagnostics diag.Diagnostics
}

// Diff computes the migration from prev to next. Both schemas must be
// bound to the same dialect; the caller (internal/connector) is
// responsible for that invariant.
func Diff(dial dialect.SqlDialect, prev, next *ir.SqlSchema) (Result, error) {
	p := BuildPairing(dial, prev, next)
	redefine := tablesToRedefine(dial, p)

	d := &differ{dial: dial, prev: prev, next: next, pairing: p, redefine: redefine}
	d.emit()
	return Result{Steps: d.steps, Diagnostics: d.diags}, nil
}

type differ struct {
	dial     dialect.SqlDialect
	prev     *ir.SqlSchema
	next     *ir.SqlSchema
	pairing  *DatabasePairing
	redefine map[int]redefineReason

	steps []step.Step
	diags diag.Diagnostics
}

func (d *differ) emit() {
	d.phase1DropViews()
	d.phase2DropForeignKeys()
	d.phase3DropNonPrimaryIndexes()
	d.phase4DropTablesAndEnums()
	d.phase5CreateNamespacesEnumsSequencesExtensions()
	d.phase6CreateTables()
	d.phase7AlterPairedTables()
	d.phase8RedefineTables()
	d.phase9AlterEnums()
	d.phase10CreateForeignKeysAndIndexes()
	d.phase11CreateViews()
}

// --- phase 1: drop views ---

func (d *differ) phase1DropViews() {
	prevViews := idNameMap(d.prev.Views, func(v ir.View) (ir.ID, string) { return v.ID, v.Name })
	nextViews := idNameMap(d.next.Views, func(v ir.View) (ir.ID, string) { return v.ID, v.Name })
	pairs := pairByName(d.dial, prevViews, nextViews)
	sortByName(pairs)

	dropping := make(map[ir.ID]bool)
	for _, vp := range pairs {
		if vp.HasPrev && !vp.HasNext {
			dropping[vp.PrevID] = true
		}
	}
	// Dropped in reverse dependency order: a view that selects from
	// another view must go before the view it depends on.
	ordered := viewDependencyOrder(d.prev.Views, dropping)
	for i := len(ordered) - 1; i >= 0; i-- {
		v := ordered[i]
		d.steps = append(d.steps, step.DropView{ViewID: v.ID, ViewName: v.Name})
	}
}

// --- phase 2: drop foreign keys on changing/dropping/redefined tables ---

func (d *differ) phase2DropForeignKeys() {
	type dropFK struct {
		order string
		st    step.DropForeignKey
	}
	var drops []dropFK

	for i, t := range d.pairing.Tables {
		tableChanging := d.redefine[i] != "" || !t.HasNext // dropped entirely, or redefined
		for _, fp := range t.ForeignKeys {
			if !fp.HasPrev {
				continue
			}
			fk, ok := d.prev.ForeignKey(fp.PrevID)
			if !ok {
				continue
			}
			survivesUnchanged := fp.HasNext && !fp.StructureChanged
			refDropping := d.referencedTableDropping(fk.ReferencedTableID)
			if survivesUnchanged && !tableChanging && !refDropping {
				continue
			}
			drops = append(drops, dropFK{order: t.Name, st: step.DropForeignKey{ForeignKeyID: fp.PrevID, TableID: fk.ConstrainedTableID, ConstraintName: fk.Name}})
		}
	}
	sort.Slice(drops, func(i, j int) bool { return drops[i].order < drops[j].order })
	for _, dp := range drops {
		d.steps = append(d.steps, dp.st)
	}
}

func (d *differ) referencedTableDropping(refTableID ir.TableID) bool {
	for _, t := range d.pairing.Tables {
		if t.PrevID == refTableID && t.HasPrev {
			return !t.HasNext
		}
	}
	return false
}

// --- phase 3: drop non-primary indexes on dropped or redefined tables ---

func (d *differ) phase3DropNonPrimaryIndexes() {
	type dropIdx struct {
		order string
		st    step.DropIndex
	}
	var drops []dropIdx
	for i, t := range d.pairing.Tables {
		tableGone := !t.HasNext
		tableRedefined := d.redefine[i] != ""
		if !tableGone && !tableRedefined {
			continue
		}
		for _, ip := range t.Indexes {
			if !ip.HasPrev {
				continue
			}
			idx, ok := d.prev.Index(ip.PrevID)
			if !ok || idx.IsPrimary() {
				continue
			}
			drops = append(drops, dropIdx{order: t.Name, st: step.DropIndex{IndexID: ip.PrevID, TableID: idx.TableID, IndexName: idx.Name}})
		}
	}
	sort.Slice(drops, func(i, j int) bool { return drops[i].order < drops[j].order })
	for _, di := range drops {
		d.steps = append(d.steps, di.st)
	}
}

// --- phase 4: drop tables that disappear, drop enums that disappear ---

func (d *differ) phase4DropTablesAndEnums() {
	var tablePairs []namePair
	for _, t := range d.pairing.Tables {
		tablePairs = append(tablePairs, t.namePair)
	}
	sortByName(tablePairs)
	for _, t := range tablePairs {
		if t.HasPrev && !t.HasNext {
			d.steps = append(d.steps, step.DropTable{TableID: t.PrevID, TableName: t.Name})
		}
	}

	enumPairs := append([]namePair(nil), d.pairing.Enums...)
	sortByName(enumPairs)
	for _, e := range enumPairs {
		if e.HasPrev && !e.HasNext {
			d.steps = append(d.steps, step.DropEnum{EnumID: e.PrevID, EnumName: e.Name})
		}
	}
}

// --- phase 5: create namespaces, enums, sequences, extensions ---

func (d *differ) phase5CreateNamespacesEnumsSequencesExtensions() {
	nsPairs := append([]namePair(nil), d.pairing.Namespaces...)
	sortByName(nsPairs)
	for _, n := range nsPairs {
		if !n.HasPrev && n.HasNext {
			d.steps = append(d.steps, step.CreateNamespace{Name: n.Name})
		}
	}

	enumPairs := append([]namePair(nil), d.pairing.Enums...)
	sortByName(enumPairs)
	for _, e := range enumPairs {
		if !e.HasPrev && e.HasNext {
			d.steps = append(d.steps, step.CreateEnum{EnumID: e.NextID})
		}
	}

	d.diffExtensions()
}

func (d *differ) diffExtensions() {
	prevByName := make(map[string]ir.PostgresExtension)
	for _, e := range d.prev.Ext.PostgresExtensions {
		prevByName[e.Name] = e
	}
	nextByName := make(map[string]ir.PostgresExtension)
	for _, e := range d.next.Ext.PostgresExtensions {
		nextByName[e.Name] = e
	}
	names := make([]string, 0, len(prevByName)+len(nextByName))
	seen := make(map[string]bool)
	for n := range prevByName {
		if !seen[n] {
			names = append(names, n)
			seen[n] = true
		}
	}
	for n := range nextByName {
		if !seen[n] {
			names = append(names, n)
			seen[n] = true
		}
	}
	sort.Strings(names)
	for _, n := range names {
		pe, hasPrev := prevByName[n]
		ne, hasNext := nextByName[n]
		switch {
		case !hasPrev && hasNext:
			d.steps = append(d.steps, step.CreateExtension{NamespaceID: ne.NamespaceID, Name: ne.Name, Version: ne.Version})
		case hasPrev && !hasNext:
			d.steps = append(d.steps, step.DropExtension{Name: pe.Name})
		case hasPrev && hasNext && pe.Version != ne.Version:
			d.steps = append(d.steps, step.AlterExtension{Name: n, OldVersion: pe.Version, NewVersion: ne.Version})
		}
	}
}

// --- phase 6: create new tables ---

func (d *differ) phase6CreateTables() {
	var pairs []namePair
	for _, t := range d.pairing.Tables {
		pairs = append(pairs, t.namePair)
	}
	sortByName(pairs)
	for _, t := range pairs {
		if !t.HasPrev && t.HasNext {
			d.steps = append(d.steps, step.CreateTable{TableID: t.NextID})
		}
	}
}

// --- phase 7: non-redefined paired tables: columns, PK, indexes ---

func (d *differ) phase7AlterPairedTables() {
	idx := append([]int(nil), indexRange(len(d.pairing.Tables))...)
	sort.Slice(idx, func(i, j int) bool { return d.pairing.Tables[idx[i]].Name < d.pairing.Tables[idx[j]].Name })

	for _, i := range idx {
		t := d.pairing.Tables[i]
		if !t.HasPrev || !t.HasNext || d.redefine[i] != "" {
			continue
		}
		d.emitColumnChanges(t)
		d.emitPrimaryKeyChange(t)
		d.emitIndexChanges(t, false)
	}
}

func (d *differ) emitColumnChanges(t tablePairing) {
	cols := append([]namePair(nil), t.Columns...)
	sort.Slice(cols, func(i, j int) bool { return d.columnPosition(t, cols[i]) < d.columnPosition(t, cols[j]) })

	for _, cp := range cols {
		switch {
		case cp.HasPrev && !cp.HasNext:
			id := cp.PrevID
			d.steps = append(d.steps, step.AlterTable{Change: step.AlterTableChange{TableID: t.NextID, DropColumn: &id}})
		case !cp.HasPrev && cp.HasNext:
			id := cp.NextID
			d.steps = append(d.steps, step.AlterTable{Change: step.AlterTableChange{TableID: t.NextID, AddColumn: &id}})
		case cp.HasPrev && cp.HasNext:
			prevCol, _ := d.prev.Column(cp.PrevID)
			nextCol, _ := d.next.Column(cp.NextID)
			if ch := columnChanges(prevCol, nextCol); ch != 0 {
				d.steps = append(d.steps, step.AlterTable{Change: step.AlterTableChange{
					TableID:     t.NextID,
					AlterColumn: &step.ColumnAlteration{ColumnID: cp.NextID, Changes: ch},
				}})
			}
		}
	}
}

func (d *differ) columnPosition(t tablePairing, cp namePair) int {
	if cp.HasNext {
		if c, ok := d.next.Column(cp.NextID); ok {
			return c.Position
		}
	}
	if cp.HasPrev {
		if c, ok := d.prev.Column(cp.PrevID); ok {
			return c.Position
		}
	}
	return 0
}

func (d *differ) emitPrimaryKeyChange(t tablePairing) {
	prevPK := d.prev.PrimaryKey(t.PrevID)
	nextPK := d.next.PrimaryKey(t.NextID)
	if samePrimaryKey(prevPK, nextPK) {
		return
	}
	if prevPK != nil {
		id := prevPK.ID
		d.steps = append(d.steps, step.AlterTable{Change: step.AlterTableChange{TableID: t.NextID, DropPrimaryKey: &id}})
	}
	if nextPK != nil {
		id := nextPK.ID
		d.steps = append(d.steps, step.AlterTable{Change: step.AlterTableChange{TableID: t.NextID, AddPrimaryKey: &id}})
	}
}

// emitIndexChanges handles drop/create/rename for one table's non-primary
// indexes. When forRedefine is true, dropped indexes are skipped (phase 3
// already dropped every index on a redefined table).
func (d *differ) emitIndexChanges(t tablePairing, forRedefine bool) {
	idxs := append([]indexPairing(nil), t.Indexes...)
	sort.Slice(idxs, func(i, j int) bool { return indexSortKey(idxs[i]) < indexSortKey(idxs[j]) })

	for _, ip := range idxs {
		switch {
		case ip.HasPrev && !ip.HasNext:
			if forRedefine {
				continue
			}
			idx, ok := d.prev.Index(ip.PrevID)
			if ok && !idx.IsPrimary() {
				d.steps = append(d.steps, step.DropIndex{IndexID: ip.PrevID, TableID: idx.TableID, IndexName: idx.Name})
			}
		case !ip.HasPrev && ip.HasNext:
			idx, ok := d.next.Index(ip.NextID)
			if ok && !idx.IsPrimary() {
				d.steps = append(d.steps, step.CreateIndex{IndexID: ip.NextID})
			}
		case ip.HasPrev && ip.HasNext && ip.NameChanged:
			idx, ok := d.next.Index(ip.NextID)
			if !ok || idx.IsPrimary() {
				continue
			}
			if d.dial.Name() == "postgres" || d.dial.Name() == "mysql" {
				d.steps = append(d.steps, step.RenameIndex{IndexID: ip.NextID, OldName: ip.OldName, NewName: ip.NewName})
			} else {
				d.steps = append(d.steps, step.DropIndex{IndexID: ip.PrevID, TableID: idx.TableID, IndexName: ip.OldName})
				d.steps = append(d.steps, step.CreateIndex{IndexID: ip.NextID})
			}
		}
	}
}

func indexSortKey(ip indexPairing) string {
	if ip.NewName != "" {
		return ip.NewName
	}
	return ip.OldName
}

// --- phase 8: redefine tables ---

func (d *differ) phase8RedefineTables() {
	if len(d.redefine) == 0 {
		return
	}
	idx := indexRange(len(d.pairing.Tables))
	sort.Slice(idx, func(i, j int) bool { return d.pairing.Tables[idx[i]].Name < d.pairing.Tables[idx[j]].Name })

	var tableIDs, prevTableIDs []ir.TableID
	for _, i := range idx {
		if _, ok := d.redefine[i]; !ok {
			continue
		}
		t := d.pairing.Tables[i]
		tableIDs = append(tableIDs, t.NextID)
		prevTableIDs = append(prevTableIDs, t.PrevID)
		// index create/rename (but not drop: phase 3 handled drops) still
		// needs to run against the rebuilt table's new shape.
		d.emitIndexChanges(t, true)
	}
	d.steps = append(d.steps, step.RedefineTables{TableIDs: tableIDs, PrevTableIDs: prevTableIDs})
}

// --- phase 9: alter enums, add values then remove values ---

func (d *differ) phase9AlterEnums() {
	enumPairs := append([]namePair(nil), d.pairing.Enums...)
	sortByName(enumPairs)
	for _, e := range enumPairs {
		if !e.HasPrev || !e.HasNext {
			continue
		}
		prevEnum, _ := d.prev.Enum(e.PrevID)
		nextEnum, _ := d.next.Enum(e.NextID)
		added, removed := diffEnumValues(prevEnum, nextEnum)
		if len(added) == 0 && len(removed) == 0 {
			continue
		}
		d.steps = append(d.steps, step.AlterEnum{EnumID: e.NextID, AddedValues: added, RemovedValues: removed})
		if len(removed) > 0 {
			d.diags.Warn("ENUM_VALUE_REMOVED", nextEnum.Name, "enum %s dropped value(s) that may still be referenced by defaults", nextEnum.Name)
		}
	}
}

func diffEnumValues(prev, next ir.Enum) (added, removed []string) {
	prevSet := make(map[string]bool, len(prev.Values))
	for _, v := range prev.Values {
		prevSet[v.Name] = true
	}
	nextSet := make(map[string]bool, len(next.Values))
	for _, v := range next.Values {
		nextSet[v.Name] = true
		if !prevSet[v.Name] {
			added = append(added, v.Name)
		}
	}
	for _, v := range prev.Values {
		if !nextSet[v.Name] {
			removed = append(removed, v.Name)
		}
	}
	return added, removed
}

// --- phase 10: create foreign keys, create non-primary indexes for new/redefined tables ---

func (d *differ) phase10CreateForeignKeysAndIndexes() {
	idx := indexRange(len(d.pairing.Tables))
	sort.Slice(idx, func(i, j int) bool { return d.pairing.Tables[idx[i]].Name < d.pairing.Tables[idx[j]].Name })

	for _, i := range idx {
		t := d.pairing.Tables[i]
		if !t.HasNext {
			continue
		}
		isNewOrRedefined := !t.HasPrev || d.redefine[i] != ""
		if isNewOrRedefined {
			for _, ip := range t.Indexes {
				if ip.HasNext {
					if idxVal, ok := d.next.Index(ip.NextID); ok && !idxVal.IsPrimary() {
						d.steps = append(d.steps, step.CreateIndex{IndexID: ip.NextID})
					}
				}
			}
		}
		for _, fp := range t.ForeignKeys {
			if !fp.HasNext {
				continue
			}
			if fp.HasPrev && !fp.StructureChanged && !isNewOrRedefined {
				continue // survived unchanged, never dropped
			}
			d.steps = append(d.steps, step.CreateForeignKey{ForeignKeyID: fp.NextID})
		}
	}
}

// --- phase 11: create views ---

func (d *differ) phase11CreateViews() {
	prevViews := idNameMap(d.prev.Views, func(v ir.View) (ir.ID, string) { return v.ID, v.Name })
	nextViews := idNameMap(d.next.Views, func(v ir.View) (ir.ID, string) { return v.ID, v.Name })
	pairs := pairByName(d.dial, prevViews, nextViews)
	sortByName(pairs)

	creating := make(map[ir.ID]bool)
	for _, vp := range pairs {
		if !vp.HasPrev && vp.HasNext {
			creating[vp.NextID] = true
		}
	}
	// Created in dependency order: a view that selects from another view
	// being created in the same batch comes after its dependency (teacher:
	// schema/ddl_ordering.go extractViewDependencies/topologicalSort).
	ordered := viewDependencyOrder(d.next.Views, creating)
	for _, v := range ordered {
		d.steps = append(d.steps, step.CreateView{ViewID: v.ID})
	}
}

// viewIdentifierRe matches bare identifiers in a view's Definition text,
// used to spot references to other views by name (teacher's
// extractViewDependencies does the same opaque-text scan rather than a
// real SQL parse, since the definition is stored as opaque text per
// §4.2's describer note).
var viewIdentifierRe = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// viewDependencyOrder returns the views in ids (a subset of all), ordered
// so that any view referencing another view from ids in its Definition
// text comes after that dependency. Ties (no dependency relationship) are
// broken alphabetically for determinism; a reference cycle is broken at
// an arbitrary point rather than looping forever.
func viewDependencyOrder(all []ir.View, ids map[ir.ID]bool) []ir.View {
	byID := make(map[ir.ID]ir.View, len(ids))
	byName := make(map[string]ir.ID, len(all))
	for _, v := range all {
		byName[strings.ToLower(v.Name)] = v.ID
	}
	for _, v := range all {
		if ids[v.ID] {
			byID[v.ID] = v
		}
	}

	subset := make([]ir.View, 0, len(byID))
	for _, v := range byID {
		subset = append(subset, v)
	}
	sort.Slice(subset, func(i, j int) bool { return subset[i].Name < subset[j].Name })

	deps := make(map[ir.ID][]ir.ID, len(subset))
	for _, v := range subset {
		seen := make(map[ir.ID]bool)
		for _, word := range viewIdentifierRe.FindAllString(v.Definition, -1) {
			depID, ok := byName[strings.ToLower(word)]
			if !ok || depID == v.ID || !ids[depID] || seen[depID] {
				continue
			}
			seen[depID] = true
			deps[v.ID] = append(deps[v.ID], depID)
		}
	}

	order := make([]ir.View, 0, len(subset))
	state := make(map[ir.ID]int, len(subset)) // 0 unvisited, 1 in-progress, 2 done
	var visit func(id ir.ID)
	visit = func(id ir.ID) {
		if state[id] != 0 {
			return // done, or a cycle we break here rather than recursing forever
		}
		state[id] = 1
		for _, dep := range deps[id] {
			visit(dep)
		}
		state[id] = 2
		order = append(order, byID[id])
	}
	for _, v := range subset {
		visit(v.ID)
	}
	return order
}

func sortByName(pairs []namePair) {
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Name < pairs[j].Name })
}

func indexRange(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
