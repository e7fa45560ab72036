package schema_test

import (
	"testing"

	"db-forge/internal/errs"
	"db-forge/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTree(t *testing.T) (*schema.Datasource, *schema.Table, *schema.Table) {
	t.Helper()
	ds := schema.NewDatasource("app")
	ns := schema.NewNamespace("main")
	require.NoError(t, ds.Add(ns))

	users := schema.NewTable("users")
	require.NoError(t, users.Add(
		schema.NewColumn("id", schema.Integer),
		schema.NewColumn("email", schema.String|schema.Null),
		schema.NewPrimaryKey("", "id"),
	))
	orders := schema.NewTable("orders")
	require.NoError(t, orders.Add(
		schema.NewColumn("id", schema.Integer),
		schema.NewColumn("user_id", schema.Integer),
		schema.NewForeignKey("fk_orders_user", []string{"user_id"}, schema.Identifier{"users"}, []string{"id"}),
	))
	require.NoError(t, ns.Add(users, orders))
	return ds, users, orders
}

func TestAttach_NamesAreUniqueCaseInsensitive(t *testing.T) {
	table := schema.NewTable("users")
	require.NoError(t, table.Add(schema.NewColumn("Email", schema.String)))

	err := table.Add(schema.NewColumn("EMAIL", schema.String))
	require.Error(t, err)
	assert.True(t, errs.IsInvalidInput(err))

	assert.NotNil(t, table.Column("email"))
}

func TestAttach_AnonymousChildrenMayRepeat(t *testing.T) {
	table := schema.NewTable("t")
	require.NoError(t, table.Add(schema.NewCheck("", "a > 0"), schema.NewCheck("", "b > 0")))
	assert.Len(t, table.Checks(), 2)
}

func TestAttach_RejectsSecondParentAndWrongKind(t *testing.T) {
	col := schema.NewColumn("id", schema.Integer)
	require.NoError(t, schema.NewTable("a").Add(col))
	assert.Error(t, schema.NewTable("b").Add(col))

	assert.Error(t, schema.NewNamespace("main").Add(schema.NewColumn("x", schema.String)))
}

func TestDetachAndRename(t *testing.T) {
	table := schema.NewTable("t")
	a, b := schema.NewColumn("a", schema.String), schema.NewColumn("b", schema.String)
	require.NoError(t, table.Add(a, b))

	assert.Error(t, schema.Rename(a, "B"), "rename onto a sibling name")
	require.NoError(t, schema.Rename(a, "c"))
	assert.Nil(t, table.Column("a"))
	assert.Same(t, a, table.Column("C"))

	assert.True(t, schema.Detach(b))
	assert.Nil(t, b.Parent())
	assert.Nil(t, table.Column("b"))
	assert.False(t, schema.Detach(b))
}

func TestResolveAndReferences(t *testing.T) {
	ds, users, orders := sampleTree(t)

	fk := orders.ForeignKeys()[0]
	assert.Same(t, users, fk.Target())
	assert.Same(t, users, schema.Resolve(ds, schema.ParseIdentifier("main.users"), schema.KindTable))
	assert.Nil(t, schema.Resolve(ds, schema.ParseIdentifier("main.nope")))

	refs := schema.References(ds, users)
	require.Len(t, refs, 1)
	assert.Same(t, fk, refs[0])
	assert.Empty(t, schema.References(ds, orders))
}

func TestClone_IsDeepAndDetached(t *testing.T) {
	ds, _, _ := sampleTree(t)
	ds.Live = true

	cp := schema.Clone(ds).(*schema.Datasource)
	assert.True(t, cp.Live)
	require.Len(t, cp.Tables(), 2)

	cpUsers := cp.Namespace("main").Table("users")
	cpUsers.Column("email").Length = 99
	assert.Equal(t, 0, ds.Namespace("main").Table("users").Column("email").Length)

	cpOrders := cp.Namespace("main").Table("orders")
	assert.Same(t, cpUsers, cpOrders.ForeignKeys()[0].Target(), "references resolve inside the clone")
}

func TestColumnProperties(t *testing.T) {
	_, users, _ := sampleTree(t)
	id := users.Column("id")
	assert.True(t, id.InPrimaryKey())
	assert.False(t, users.Column("email").InPrimaryKey())

	require.NoError(t, id.SetProperty(schema.PropLength, 11))
	v, err := id.Property(schema.PropLength)
	require.NoError(t, err)
	assert.Equal(t, 11, v)

	_, err = id.Property("collation")
	assert.True(t, errs.IsType(err))
	assert.True(t, errs.IsType(id.SetProperty(schema.PropLength, "eleven")))
}

func TestDataType(t *testing.T) {
	assert.Equal(t, "STRING|NULL", (schema.String | schema.Null).String())
	assert.Equal(t, "NUMBER", schema.Number.String())
	assert.True(t, schema.Number.Contains(schema.Integer))
	assert.False(t, schema.Integer.Contains(schema.Number))
	assert.True(t, schema.Number.Overlaps(schema.Float))
	assert.False(t, (schema.String | schema.Integer).Valid())

	d, err := schema.ParseDataType("integer, null")
	require.NoError(t, err)
	assert.Equal(t, schema.Integer|schema.Null, d)

	_, err = schema.ParseDataType("STRING|BINARY")
	assert.True(t, errs.IsType(err))
}

func TestDescribeAndHasData(t *testing.T) {
	ds, users, _ := sampleTree(t)
	assert.Equal(t, "TABLE main.users", schema.Describe(users))
	assert.Equal(t, "PRIMARY KEY main.users.<anonymous>", schema.Describe(users.PrimaryKey()))
	assert.True(t, schema.HasData(users))
	assert.True(t, schema.HasData(ds))
	assert.False(t, schema.HasData(users.PrimaryKey()))
}
