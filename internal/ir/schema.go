package ir

import "fmt"

// SqlSchema owns every arena for one dialect-bound schema snapshot. IDs
// are only valid within the SqlSchema that allocated them (spec §3,
// "Lifecycle"). The zero value is a ready-to-populate empty schema.
type SqlSchema struct {
	Dialect string // dialect name, e.g. "postgres" — informational, capabilities live in internal/dialect

	Namespaces  []Namespace
	Tables      []Table
	Columns     []Column
	Indexes     []Index
	ForeignKeys []ForeignKey
	Enums       []Enum
	Views       []View
	Sequences   []Sequence

	Ext Extensions

	nextID ID
}

func New(dialect string) *SqlSchema {
	return &SqlSchema{Dialect: dialect}
}

func (s *SqlSchema) allocID() ID {
	id := s.nextID
	s.nextID++
	return id
}

func (s *SqlSchema) AddNamespace(name string) NamespaceID {
	id := s.allocID()
	s.Namespaces = append(s.Namespaces, Namespace{ID: id, Name: name})
	return id
}

func (s *SqlSchema) AddTable(t Table) TableID {
	t.ID = s.allocID()
	s.Tables = append(s.Tables, t)
	return t.ID
}

func (s *SqlSchema) AddColumn(c Column) ColumnID {
	c.ID = s.allocID()
	s.Columns = append(s.Columns, c)
	return c.ID
}

func (s *SqlSchema) AddIndex(idx Index) IndexID {
	idx.ID = s.allocID()
	s.Indexes = append(s.Indexes, idx)
	return idx.ID
}

func (s *SqlSchema) AddForeignKey(fk ForeignKey) ForeignKeyID {
	fk.ID = s.allocID()
	s.ForeignKeys = append(s.ForeignKeys, fk)
	return fk.ID
}

func (s *SqlSchema) AddEnum(e Enum) EnumID {
	e.ID = s.allocID()
	s.Enums = append(s.Enums, e)
	return e.ID
}

func (s *SqlSchema) AddView(v View) ViewID {
	v.ID = s.allocID()
	s.Views = append(s.Views, v)
	return v.ID
}

func (s *SqlSchema) AddSequence(sq Sequence) SequenceID {
	sq.ID = s.allocID()
	s.Sequences = append(s.Sequences, sq)
	return sq.ID
}

// --- Lookups ---
//
// These are intentionally linear scans: schemas in this domain top out at
// a few thousand entities, arenas are append-only during construction,
// and a map-based index would have to be invalidated on every mutation
// pass the describer runs. The differ builds its own pairing once per pass
// (see internal/differ.DatabasePairing); other callers use these scans
// directly.

func (s *SqlSchema) Namespace(id NamespaceID) (Namespace, bool) {
	for _, n := range s.Namespaces {
		if n.ID == id {
			return n, true
		}
	}
	return Namespace{}, false
}

func (s *SqlSchema) Table(id TableID) (Table, bool) {
	for _, t := range s.Tables {
		if t.ID == id {
			return t, true
		}
	}
	return Table{}, false
}

func (s *SqlSchema) TableColumns(tableID TableID) []Column {
	var out []Column
	for _, c := range s.Columns {
		if c.TableID == tableID {
			out = append(out, c)
		}
	}
	return out
}

func (s *SqlSchema) Column(id ColumnID) (Column, bool) {
	for _, c := range s.Columns {
		if c.ID == id {
			return c, true
		}
	}
	return Column{}, false
}

func (s *SqlSchema) TableIndexes(tableID TableID) []Index {
	var out []Index
	for _, idx := range s.Indexes {
		if idx.TableID == tableID {
			out = append(out, idx)
		}
	}
	return out
}

// PrimaryKey returns the table's primary-key index, if any (spec §3
// invariant 2: at most one per table).
func (s *SqlSchema) PrimaryKey(tableID TableID) *Index {
	for i := range s.Indexes {
		if s.Indexes[i].TableID == tableID && s.Indexes[i].IsPrimary() {
			idx := s.Indexes[i]
			return &idx
		}
	}
	return nil
}

func (s *SqlSchema) TableForeignKeys(tableID TableID) []ForeignKey {
	var out []ForeignKey
	for _, fk := range s.ForeignKeys {
		if fk.ConstrainedTableID == tableID {
			out = append(out, fk)
		}
	}
	return out
}

func (s *SqlSchema) ForeignKeysReferencing(tableID TableID) []ForeignKey {
	var out []ForeignKey
	for _, fk := range s.ForeignKeys {
		if fk.ReferencedTableID == tableID {
			out = append(out, fk)
		}
	}
	return out
}

func (s *SqlSchema) Enum(id EnumID) (Enum, bool) {
	for _, e := range s.Enums {
		if e.ID == id {
			return e, true
		}
	}
	return Enum{}, false
}

func (s *SqlSchema) Index(id IndexID) (Index, bool) {
	for _, idx := range s.Indexes {
		if idx.ID == id {
			return idx, true
		}
	}
	return Index{}, false
}

func (s *SqlSchema) ForeignKey(id ForeignKeyID) (ForeignKey, bool) {
	for _, fk := range s.ForeignKeys {
		if fk.ID == id {
			return fk, true
		}
	}
	return ForeignKey{}, false
}

func (s *SqlSchema) View(id ViewID) (View, bool) {
	for _, v := range s.Views {
		if v.ID == id {
			return v, true
		}
	}
	return View{}, false
}

// Validate checks the invariants of spec §3 that are cheap to check
// structurally (1-3); invariants 4-5 are type/semantic and are enforced
// at construction time by the calculator and describer instead.
func (s *SqlSchema) Validate() error {
	tableByID := make(map[TableID]Table, len(s.Tables))
	for _, t := range s.Tables {
		tableByID[t.ID] = t
	}

	for _, c := range s.Columns {
		if _, ok := tableByID[c.TableID]; !ok {
			return fmt.Errorf("column %q references missing table id %d", c.Name, c.TableID)
		}
	}

	pkCount := map[TableID]int{}
	for _, idx := range s.Indexes {
		t, ok := tableByID[idx.TableID]
		if !ok {
			return fmt.Errorf("index %q references missing table id %d", idx.Name, idx.TableID)
		}
		cols := s.TableColumns(t.ID)
		colSet := make(map[ColumnID]bool, len(cols))
		for _, c := range cols {
			colSet[c.ID] = true
		}
		for _, ic := range idx.Columns {
			if !colSet[ic.ColumnID] {
				return fmt.Errorf("index %q references column id %d not on table %q", idx.Name, ic.ColumnID, t.Name)
			}
		}
		if idx.IsPrimary() {
			pkCount[idx.TableID]++
		}
	}
	for tid, n := range pkCount {
		if n > 1 {
			return fmt.Errorf("table id %d has %d primary-key indexes, at most one is allowed", tid, n)
		}
	}

	for _, fk := range s.ForeignKeys {
		constrained, ok := tableByID[fk.ConstrainedTableID]
		if !ok {
			return fmt.Errorf("foreign key %q references missing constrained table id %d", fk.Name, fk.ConstrainedTableID)
		}
		referenced, ok := tableByID[fk.ReferencedTableID]
		if !ok {
			return fmt.Errorf("foreign key %q references missing referenced table id %d", fk.Name, fk.ReferencedTableID)
		}
		fromCols := columnSet(s.TableColumns(constrained.ID))
		toCols := columnSet(s.TableColumns(referenced.ID))
		for _, pair := range fk.Columns {
			if !fromCols[pair.FromColumnID] {
				return fmt.Errorf("foreign key %q: from-column id %d not on table %q", fk.Name, pair.FromColumnID, constrained.Name)
			}
			if !toCols[pair.ToColumnID] {
				return fmt.Errorf("foreign key %q: to-column id %d not on table %q", fk.Name, pair.ToColumnID, referenced.Name)
			}
		}
	}

	for _, e := range s.Enums {
		seen := make(map[string]bool, len(e.Values))
		for _, v := range e.Values {
			if seen[v.Name] {
				return fmt.Errorf("enum %q has duplicate value %q", e.Name, v.Name)
			}
			seen[v.Name] = true
		}
	}

	return nil
}

func columnSet(cols []Column) map[ColumnID]bool {
	out := make(map[ColumnID]bool, len(cols))
	for _, c := range cols {
		out[c.ID] = true
	}
	return out
}

// Clone deep-copies the schema. Differ inputs are treated as immutable
// snapshots (spec §5); callers that need to simulate a redefine or a
// step-by-step replay should clone first rather than mutate a shared
// schema.
func (s *SqlSchema) Clone() *SqlSchema {
	clone := &SqlSchema{
		Dialect:     s.Dialect,
		Namespaces:  append([]Namespace(nil), s.Namespaces...),
		Tables:      append([]Table(nil), s.Tables...),
		Columns:     append([]Column(nil), s.Columns...),
		Indexes:     make([]Index, len(s.Indexes)),
		ForeignKeys: make([]ForeignKey, len(s.ForeignKeys)),
		Enums:       make([]Enum, len(s.Enums)),
		Views:       append([]View(nil), s.Views...),
		Sequences:   append([]Sequence(nil), s.Sequences...),
		nextID:      s.nextID,
	}
	for i, idx := range s.Indexes {
		idx.Columns = append([]IndexColumn(nil), idx.Columns...)
		clone.Indexes[i] = idx
	}
	for i, fk := range s.ForeignKeys {
		fk.Columns = append([]ForeignKeyColumn(nil), fk.Columns...)
		clone.ForeignKeys[i] = fk
	}
	for i, e := range s.Enums {
		e.Values = append([]EnumValue(nil), e.Values...)
		clone.Enums[i] = e
	}
	clone.Ext = Extensions{
		PostgresExpressionIndexes: append([]PostgresExpressionIndex(nil), s.Ext.PostgresExpressionIndexes...),
		PostgresIndexIncludes:     append([]PostgresIndexInclude(nil), s.Ext.PostgresIndexIncludes...),
		PostgresExtensions:        append([]PostgresExtension(nil), s.Ext.PostgresExtensions...),
		PostgresExclusions:        append([]PostgresExclusionConstraint(nil), s.Ext.PostgresExclusions...),
		MySQLTableEngines:         append([]MySQLTableEngine(nil), s.Ext.MySQLTableEngines...),
		MSSQLClusteredPKs:         append([]MSSQLClusteredPrimaryKey(nil), s.Ext.MSSQLClusteredPKs...),
	}
	return clone
}
