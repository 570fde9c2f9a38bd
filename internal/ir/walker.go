package ir

// TableWalker and ColumnWalker are the "thin (id, &schema) pairs created
// on demand" called for in spec §9 to replace pointer-graph walking: they
// resolve relationships by lookup against the owning schema instead of
// following embedded pointers, so the arenas underneath stay flat and
// cheaply cloneable.

type TableWalker struct {
	Schema *SqlSchema
	ID     TableID
}

func (s *SqlSchema) Walk(id TableID) TableWalker { return TableWalker{Schema: s, ID: id} }

func (w TableWalker) Get() Table {
	t, _ := w.Schema.Table(w.ID)
	return t
}

func (w TableWalker) Namespace() Namespace {
	t := w.Get()
	n, _ := w.Schema.Namespace(t.NamespaceID)
	return n
}

func (w TableWalker) Columns() []ColumnWalker {
	cols := w.Schema.TableColumns(w.ID)
	out := make([]ColumnWalker, len(cols))
	for i, c := range cols {
		out[i] = ColumnWalker{Schema: w.Schema, ID: c.ID}
	}
	return out
}

func (w TableWalker) Indexes() []Index         { return w.Schema.TableIndexes(w.ID) }
func (w TableWalker) PrimaryKey() *Index       { return w.Schema.PrimaryKey(w.ID) }
func (w TableWalker) ForeignKeys() []ForeignKey { return w.Schema.TableForeignKeys(w.ID) }

type ColumnWalker struct {
	Schema *SqlSchema
	ID     ColumnID
}

func (w ColumnWalker) Get() Column {
	c, _ := w.Schema.Column(w.ID)
	return c
}

func (w ColumnWalker) Table() Table {
	c := w.Get()
	t, _ := w.Schema.Table(c.TableID)
	return t
}
