package calculate

import (
	"testing"

	"github.com/sqldef/schemacore/internal/dialect"
	"github.com/sqldef/schemacore/internal/dml"
	"github.com/sqldef/schemacore/internal/ir"
	"github.com/sqldef/schemacore/pkg/diag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateSimpleTable(t *testing.T) {
	doc := &dml.Document{
		Models: []dml.Model{
			{
				Name: "User",
				Fields: []dml.Field{
					{Name: "id", NativeType: "Int", ID: true, Default: &dml.DefaultExpr{IsAutoincrement: true}},
					{Name: "email", NativeType: "VarChar(255)", Unique: true},
					{Name: "name", NativeType: "VarChar(255)", Optional: true},
				},
			},
		},
	}

	s, diags, err := Calculate(doc, dialect.Postgres)
	require.NoError(t, err)
	assert.Empty(t, diags.Filter(diag.SeverityError)) // no SeverityError entries

	require.Len(t, s.Tables, 1)
	assert.Equal(t, "User", s.Tables[0].Name)

	cols := s.TableColumns(s.Tables[0].ID)
	require.Len(t, cols, 3)
	assert.Equal(t, "id", cols[0].Name)
	assert.True(t, cols[0].AutoIncrement)
	assert.True(t, cols[0].Default.IsAutoincrement())
	assert.Equal(t, ir.ArityNullable, cols[2].Arity)

	pk := s.PrimaryKey(s.Tables[0].ID)
	require.NotNil(t, pk)
	assert.Equal(t, []ir.ColumnID{cols[0].ID}, []ir.ColumnID{pk.Columns[0].ColumnID})

	idxs := s.TableIndexes(s.Tables[0].ID)
	var foundUnique bool
	for _, idx := range idxs {
		if idx.Kind == ir.IndexUnique {
			foundUnique = true
		}
	}
	assert.True(t, foundUnique, "expected a unique index for email")
}

func TestCalculateCompositeID(t *testing.T) {
	doc := &dml.Document{
		Models: []dml.Model{
			{
				Name: "Membership",
				ID:   &dml.CompoundIndex{Fields: []string{"userId", "teamId"}},
				Fields: []dml.Field{
					{Name: "userId", NativeType: "Int"},
					{Name: "teamId", NativeType: "Int"},
				},
			},
		},
	}

	s, _, err := Calculate(doc, dialect.Postgres)
	require.NoError(t, err)

	pk := s.PrimaryKey(s.Tables[0].ID)
	require.NotNil(t, pk)
	assert.Len(t, pk.Columns, 2)
}

func TestCalculateRelationForeignKey(t *testing.T) {
	doc := &dml.Document{
		Models: []dml.Model{
			{
				Name: "User",
				Fields: []dml.Field{
					{Name: "id", NativeType: "Int", ID: true},
				},
			},
			{
				Name: "Post",
				Fields: []dml.Field{
					{Name: "id", NativeType: "Int", ID: true},
					{Name: "authorId", NativeType: "Int"},
					{
						Name: "author", IsRelation: true, RelationTarget: "User",
						RelationFields: []string{"authorId"}, RelationRefs: []string{"id"},
					},
				},
			},
		},
	}

	s, diags, err := Calculate(doc, dialect.Postgres)
	require.NoError(t, err)
	assert.Empty(t, diags.Filter(diag.SeverityError))

	require.Len(t, s.ForeignKeys, 1)
	fk := s.ForeignKeys[0]
	assert.Equal(t, "Post_authorId_fkey", fk.Name)
	require.Len(t, fk.Columns, 1)
}

func TestCalculateImplicitManyToMany(t *testing.T) {
	doc := &dml.Document{
		Models: []dml.Model{
			{
				Name: "Post",
				Fields: []dml.Field{
					{Name: "id", NativeType: "Int", ID: true},
					{Name: "categories", IsRelation: true, List: true, RelationTarget: "Category"},
				},
			},
			{
				Name: "Category",
				Fields: []dml.Field{
					{Name: "id", NativeType: "Int", ID: true},
					{Name: "posts", IsRelation: true, List: true, RelationTarget: "Post"},
				},
			},
		},
	}

	s, _, err := Calculate(doc, dialect.Postgres)
	require.NoError(t, err)

	var join *ir.Table
	for i := range s.Tables {
		if s.Tables[i].Name == "_CategoryToPost" {
			join = &s.Tables[i]
		}
	}
	require.NotNil(t, join, "expected a synthesized _CategoryToPost join table")

	cols := s.TableColumns(join.ID)
	require.Len(t, cols, 2)
	assert.Equal(t, "A", cols[0].Name)
	assert.Equal(t, "B", cols[1].Name)

	fks := s.TableForeignKeys(join.ID)
	require.Len(t, fks, 2)
	for _, fk := range fks {
		assert.Equal(t, ir.ActionCascade, fk.OnDelete)
	}
}

func TestNativeTypeNameAndArgs(t *testing.T) {
	assert.Equal(t, "VarChar", nativeTypeName("VarChar(255)"))
	assert.Equal(t, []int{255}, nativeTypeArgs("VarChar(255)"))
	assert.Equal(t, "Int", nativeTypeName("Int"))
	assert.Nil(t, nativeTypeArgs("Int"))
	assert.Equal(t, []int{10, 2}, nativeTypeArgs("Decimal(10,2)"))
}
