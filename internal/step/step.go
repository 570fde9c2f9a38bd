// Package step defines the typed SqlMigrationStep union emitted by the
// differ (spec §4.4) and consumed by the renderer (C4) and destructive
// checker (C6). It is its own package, rather than living inside
// internal/differ, so that internal/render and internal/check can depend
// on the step shapes without depending on the differ's pairing internals.
package step

import "github.com/sqldef/schemacore/internal/ir"

// Step is the common interface every concrete step variant satisfies.
// Kind exists for callers that want a cheap type tag without a Go type
// switch (e.g. the destructive checker's classification table).
type Step interface {
	Kind() Kind
}

type Kind int

const (
	KindCreateTable Kind = iota
	KindDropTable
	KindAlterTable
	KindCreateIndex
	KindDropIndex
	KindRenameIndex
	KindCreateForeignKey
	KindDropForeignKey
	KindCreateEnum
	KindAlterEnum
	KindDropEnum
	KindRedefineTables
	KindCreateView
	KindDropView
	KindCreateExtension
	KindAlterExtension
	KindDropExtension
	KindCreateNamespace
)

func (k Kind) String() string {
	names := [...]string{
		"CreateTable", "DropTable", "AlterTable", "CreateIndex", "DropIndex",
		"RenameIndex", "CreateForeignKey", "DropForeignKey", "CreateEnum",
		"AlterEnum", "DropEnum", "RedefineTables", "CreateView", "DropView",
		"CreateExtension", "AlterExtension", "DropExtension", "CreateNamespace",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "Unknown"
}

type CreateTable struct {
	TableID ir.TableID
}

func (CreateTable) Kind() Kind { return KindCreateTable }

type DropTable struct {
	TableID   ir.TableID
	TableName string // retained for rendering after the table leaves the schema being walked
}

func (DropTable) Kind() Kind { return KindDropTable }

// ColumnChange is the bitset of spec §4.4 step 4: {type, arity, default,
// auto_increment, sequence, comment}.
type ColumnChange uint8

const (
	ChangeType ColumnChange = 1 << iota
	ChangeArity
	ChangeDefault
	ChangeAutoIncrement
	ChangeSequence
	ChangeComment
)

func (c ColumnChange) Has(bit ColumnChange) bool { return c&bit != 0 }

// AlterTableChange is one of the sub-operations emitted for a
// non-redefined paired table in phase 7 of §4.4: column drop/add/alter,
// primary-key alteration, or index create/drop/rename (indexes get their
// own step kinds; this covers columns and the table's PK specifically).
type AlterTableChange struct {
	TableID ir.TableID

	DropColumn   *ir.ColumnID
	AddColumn    *ir.ColumnID
	AlterColumn  *ColumnAlteration
	AlterComment *string // new table comment, nil = unchanged

	DropPrimaryKey *ir.IndexID
	AddPrimaryKey  *ir.IndexID
}

type ColumnAlteration struct {
	ColumnID ir.ColumnID
	Changes  ColumnChange
}

type AlterTable struct {
	Change AlterTableChange
}

func (AlterTable) Kind() Kind { return KindAlterTable }

type CreateIndex struct {
	IndexID ir.IndexID
}

func (CreateIndex) Kind() Kind { return KindCreateIndex }

type DropIndex struct {
	IndexID   ir.IndexID
	TableID   ir.TableID
	IndexName string
}

func (DropIndex) Kind() Kind { return KindDropIndex }

type RenameIndex struct {
	IndexID ir.IndexID
	OldName string
	NewName string
}

func (RenameIndex) Kind() Kind { return KindRenameIndex }

type CreateForeignKey struct {
	ForeignKeyID ir.ForeignKeyID
}

func (CreateForeignKey) Kind() Kind { return KindCreateForeignKey }

type DropForeignKey struct {
	ForeignKeyID   ir.ForeignKeyID
	TableID        ir.TableID
	ConstraintName string
}

func (DropForeignKey) Kind() Kind { return KindDropForeignKey }

type CreateEnum struct {
	EnumID ir.EnumID
}

func (CreateEnum) Kind() Kind { return KindCreateEnum }

type AlterEnum struct {
	EnumID       ir.EnumID
	AddedValues  []string
	RemovedValues []string
}

func (AlterEnum) Kind() Kind { return KindAlterEnum }

type DropEnum struct {
	EnumID   ir.EnumID
	EnumName string
}

func (DropEnum) Kind() Kind { return KindDropEnum }

// RedefineTables is the "create shadow table -> copy rows -> drop old ->
// rename" sequence of spec §4.4. IDs reference the *next* schema's
// tables; PrevTableIDs holds the matching ids from the *previous* schema
// so the renderer can compute the shared-column copy list.
type RedefineTables struct {
	TableIDs     []ir.TableID
	PrevTableIDs []ir.TableID
}

func (RedefineTables) Kind() Kind { return KindRedefineTables }

type CreateView struct {
	ViewID ir.ViewID
}

func (CreateView) Kind() Kind { return KindCreateView }

type DropView struct {
	ViewID   ir.ViewID
	ViewName string
}

func (DropView) Kind() Kind { return KindDropView }

type CreateExtension struct {
	NamespaceID ir.NamespaceID
	Name        string
	Version     string
}

func (CreateExtension) Kind() Kind { return KindCreateExtension }

type AlterExtension struct {
	Name       string
	OldVersion string
	NewVersion string
}

func (AlterExtension) Kind() Kind { return KindAlterExtension }

type DropExtension struct {
	Name string
}

func (DropExtension) Kind() Kind { return KindDropExtension }

type CreateNamespace struct {
	Name string
}

func (CreateNamespace) Kind() Kind { return KindCreateNamespace }
