package resolver_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"db-forge/internal/errs"
	"db-forge/internal/resolver"
	"db-forge/internal/schema"
)

func shop(t *testing.T) *schema.Datasource {
	t.Helper()
	ds := schema.NewDatasource("shop")
	ns := schema.NewNamespace("main")
	users := schema.NewTable("users")
	require.NoError(t, users.Add(
		schema.NewColumn("id", schema.Integer),
		schema.NewColumn("name", schema.String),
	))
	orders := schema.NewTable("orders")
	require.NoError(t, orders.Add(
		schema.NewColumn("id", schema.Integer),
		schema.NewColumn("user_id", schema.Integer),
		schema.NewColumn("amount", schema.Number|schema.Null),
	))
	require.NoError(t, ns.Add(users, orders, schema.NewView("big_orders", "SELECT * FROM orders")))
	require.NoError(t, ds.Add(ns))
	return ds
}

func TestStructuralFindTable(t *testing.T) {
	ds := shop(t)
	r := resolver.NewStructural(ds.Namespace("main"))

	m, err := r.FindTable(schema.ParseIdentifier("USERS"))
	require.NoError(t, err)
	assert.Equal(t, "users", m.Table.Name())
	assert.Len(t, m.Columns, 2)

	m, err = r.FindTable(schema.ParseIdentifier("main.orders"))
	require.NoError(t, err)
	assert.Equal(t, "orders", m.Table.Name())

	m, err = r.FindTable(schema.ParseIdentifier("big_orders"))
	require.NoError(t, err)
	assert.True(t, m.Open)

	_, err = r.FindTable(schema.ParseIdentifier("missing"))
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))
	assert.Equal(t, "missing", errs.KeyOf(err))

	_, err = resolver.NewStructural(nil).FindTable(schema.ParseIdentifier("users"))
	assert.True(t, errs.IsBuild(err))
}

func TestStructuralFindColumn(t *testing.T) {
	ds := shop(t)
	r := resolver.NewStructural(ds.Namespace("main"))
	r.PushScope()

	u, err := r.FindTable(schema.ParseIdentifier("users"))
	require.NoError(t, err)
	o, err := r.FindTable(schema.ParseIdentifier("orders"))
	require.NoError(t, err)
	require.NoError(t, r.DeclareTable("u", u))
	require.NoError(t, r.DeclareTable("", o))

	c, err := r.FindColumn(nil, "amount")
	require.NoError(t, err)
	assert.Equal(t, "orders", c.Source)
	assert.Equal(t, schema.Number|schema.Null, c.Type)
	require.NotNil(t, c.Column)

	c, err = r.FindColumn(schema.Identifier{"u"}, "NAME")
	require.NoError(t, err)
	assert.Equal(t, "name", c.Name)
	assert.Equal(t, schema.String, c.Type)

	_, err = r.FindColumn(nil, "id")
	assert.True(t, errs.IsBuild(err), "id is in both tables")

	_, err = r.FindColumn(schema.Identifier{"u"}, "amount")
	assert.True(t, errs.IsNotFound(err))
	assert.Equal(t, "amount", errs.KeyOf(err))

	_, err = r.FindColumn(schema.Identifier{"x"}, "id")
	assert.True(t, errs.IsNotFound(err))

	assert.True(t, errs.IsBuild(r.DeclareTable("U", o)))
}

func TestScopes(t *testing.T) {
	ds := shop(t)
	r := resolver.NewStructural(ds.Namespace("main"))
	u, err := r.FindTable(schema.ParseIdentifier("users"))
	require.NoError(t, err)

	r.PushScope()
	require.NoError(t, r.DeclareTable("", u))
	require.NoError(t, r.DeclareAlias("total", schema.Number))

	r.PushScope()
	// outer tables stay visible for correlated subqueries
	c, err := r.FindColumn(nil, "name")
	require.NoError(t, err)
	assert.Equal(t, "users", c.Source)
	// result aliases do not
	_, ok := r.FindAlias("total")
	assert.False(t, ok)
	r.PopScope()

	a, ok := r.FindAlias("TOTAL")
	require.True(t, ok)
	assert.Equal(t, schema.Number, a.Type)
	assert.True(t, errs.IsBuild(r.DeclareAlias("total", schema.String)))

	r.PopScope()
	_, err = r.FindColumn(nil, "name")
	assert.True(t, errs.IsNotFound(err))
}

func TestVirtual(t *testing.T) {
	r := resolver.NewVirtual()
	assert.Nil(t, r.Pivot())

	m, err := r.FindTable(schema.ParseIdentifier("anything.at_all"))
	require.NoError(t, err)
	assert.True(t, m.Open)

	c, err := r.FindColumn(schema.Identifier{"t"}, "whatever")
	require.NoError(t, err)
	assert.Equal(t, schema.Undefined, c.Type)
	assert.Equal(t, "t", c.Source)

	r.PushScope()
	require.NoError(t, r.DeclareTable("d", resolver.TableMatch{
		Columns: []resolver.ResultColumn{{Name: "n", Type: schema.Integer}},
	}))
	c, err = r.FindColumn(schema.Identifier{"d"}, "n")
	require.NoError(t, err)
	assert.Equal(t, schema.Integer, c.Type)
}
