// Package ir implements the abstract SQL schema model of spec §3: a flat
// set of arenas keyed by stable integer ids rather than a pointer graph,
// so the structure is cheaply cloneable and equality/hashing stay cheap.
// Entities are created by the describer (C3) or the calculator (C7),
// mutated only by the describer's post-processing passes, and are
// read-only from the moment they're handed to the differ or renderer.
package ir

// ID is a stable, schema-local identifier. IDs are only meaningful within
// the SqlSchema that allocated them — never compare IDs from two
// different schemas.
type ID int

// NoID marks an unset/optional reference (e.g. a table id with no
// counterpart in the other schema).
const NoID ID = -1

type NamespaceID = ID
type TableID = ID
type ColumnID = ID
type IndexID = ID
type ForeignKeyID = ID
type EnumID = ID
type ViewID = ID
type SequenceID = ID
