package builder_test

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"db-forge/internal/builder"
	"db-forge/internal/dialect"
	"db-forge/internal/errs"
	"db-forge/internal/query"
	"db-forge/internal/schema"
)

func shop(t *testing.T) *schema.Namespace {
	t.Helper()
	ds := schema.NewDatasource("shop")
	ns := schema.NewNamespace("main")
	users := schema.NewTable("users")
	id := schema.NewColumn("id", schema.Integer)
	id.Flags = schema.AutoIncrement
	require.NoError(t, users.Add(
		id,
		schema.NewColumn("name", schema.String),
		schema.NewPrimaryKey("", "id"),
	))
	orders := schema.NewTable("orders")
	require.NoError(t, orders.Add(
		schema.NewColumn("id", schema.Integer),
		schema.NewColumn("user_id", schema.Integer),
		schema.NewColumn("amount", schema.Number|schema.Null),
	))
	require.NoError(t, ns.Add(users, orders))
	require.NoError(t, ds.Add(ns))
	return ns
}

func get(t *testing.T, name string) dialect.Dialect {
	t.Helper()
	d, err := dialect.Get(name)
	require.NoError(t, err)
	return d
}

func report() *query.Select {
	return &query.Select{
		Columns: []query.Node{
			query.Col("u.name"),
			query.As(query.Fn("sum", query.Col("o.amount")), "total"),
		},
		From: []query.TableExpr{&query.Join{
			Left:  query.Table("users").As("u"),
			Right: query.Table("orders").As("o"),
			Flags: dialect.JoinInner,
			On:    query.Eq(query.Col("o.user_id"), query.Col("u.id")),
		}},
		Where:   query.Cmp(">", query.Col("o.amount"), query.P("amount", schema.Number)),
		GroupBy: []query.Node{query.Col("u.name")},
		Having:  query.Cmp(">", query.Fn("sum", query.Col("o.amount")), query.P("amount", schema.Number)),
		OrderBy: []query.Order{{Expr: query.Col("total"), Desc: true}},
		Limit:   10,
	}
}

func TestSelectPerDialect(t *testing.T) {
	ns := shop(t)

	c, err := builder.New(get(t, "postgres")).Build(report(), ns)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "u"."name", SUM("o"."amount") AS "total" FROM "users" "u" INNER JOIN "orders" "o" ON "o"."user_id" = "u"."id" WHERE "o"."amount" > $1 GROUP BY "u"."name" HAVING SUM("o"."amount") > $1 ORDER BY "total" DESC LIMIT 10`, c.SQL)
	assert.Equal(t, query.StatementSelect, c.Type)
	require.Len(t, c.Columns, 2)
	assert.Equal(t, "name", c.Columns[0].Name)
	assert.Equal(t, schema.String, c.Columns[0].Type)
	assert.Equal(t, "total", c.Columns[1].Name)

	c, err = builder.New(get(t, "mysql")).Build(report(), ns)
	require.NoError(t, err)
	assert.Equal(t, "SELECT `u`.`name`, SUM(`o`.`amount`) AS `total` FROM `users` `u` INNER JOIN `orders` `o` ON `o`.`user_id` = `u`.`id` WHERE `o`.`amount` > ? GROUP BY `u`.`name` HAVING SUM(`o`.`amount`) > ? ORDER BY `total` DESC LIMIT 10", c.SQL)

	c, err = builder.New(get(t, "mssql")).Build(report(), ns)
	require.NoError(t, err)
	assert.Equal(t, "SELECT TOP 10 [u].[name], SUM([o].[amount]) AS [total] FROM [users] [u] INNER JOIN [orders] [o] ON [o].[user_id] = [u].[id] WHERE [o].[amount] > @p1 GROUP BY [u].[name] HAVING SUM([o].[amount]) > @p1 ORDER BY [total] DESC", c.SQL)
}

func TestBuildIsDeterministic(t *testing.T) {
	ns := shop(t)
	b := builder.New(get(t, "sqlite"))
	first, err := b.Build(report(), ns)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := b.Build(report(), ns)
		require.NoError(t, err)
		assert.Equal(t, first.SQL, again.SQL)
	}
}

func TestRepeatedParameter(t *testing.T) {
	ns := shop(t)
	values := map[string]any{"amount": 100}

	for _, tc := range []struct {
		dialect string
		args    []any
	}{
		{"mysql", []any{100, 100}},
		{"postgres", []any{100}},
		{"sqlite", []any{100}},
		{"mssql", []any{sql.Named("p1", 100)}},
		{"oracle", []any{sql.Named("p1", 100)}},
	} {
		t.Run(tc.dialect, func(t *testing.T) {
			c, err := builder.New(get(t, tc.dialect)).Build(report(), ns)
			require.NoError(t, err)
			require.Equal(t, 1, c.Params.Len())
			p, err := c.Params.Get("amount")
			require.NoError(t, err)
			assert.Equal(t, "p1", p.Name)
			assert.Equal(t, []int{0, 1}, p.Positions)

			args, err := c.Args(values)
			require.NoError(t, err)
			assert.Equal(t, tc.args, args)
		})
	}
}

func TestMissingParameterValue(t *testing.T) {
	c, err := builder.New(get(t, "postgres")).Build(report(), shop(t))
	require.NoError(t, err)
	_, err = c.Args(nil)
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))
	assert.Equal(t, "amount", errs.KeyOf(err))

	_, err = c.Params.Get("other")
	assert.True(t, errs.IsNotFound(err))
}

func TestLiteralOrParameter(t *testing.T) {
	ns := shop(t)
	q := &query.Select{
		Columns: []query.Node{query.Col("name")},
		From:    []query.TableExpr{query.Table("users")},
		Where:   query.Eq(query.Col("id"), query.Lit(42)),
	}

	c, err := builder.New(get(t, "postgres")).Build(q, ns)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "name" FROM "users" WHERE "id" = 42`, c.SQL)
	assert.Zero(t, c.Params.Len())

	c, err = builder.New(get(t, "postgres"), builder.WithLiteralParams()).Build(q, ns)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "name" FROM "users" WHERE "id" = $1`, c.SQL)
	args, err := c.Args(nil)
	require.NoError(t, err)
	assert.Equal(t, []any{42}, args)
}

func TestLiterals(t *testing.T) {
	q := &query.Select{Columns: []query.Node{
		query.Lit(nil), query.Lit(true), query.Lit(1.5), query.Lit("it's"), query.Lit([]byte{0xAB}),
	}}
	c, err := builder.New(get(t, "sqlite")).Build(q, nil)
	require.NoError(t, err)
	assert.Equal(t, `SELECT NULL, 1, 1.5, 'it''s', X'AB'`, c.SQL)

	c, err = builder.New(get(t, "postgres")).Build(q, nil)
	require.NoError(t, err)
	assert.Equal(t, `SELECT NULL, TRUE, 1.5, 'it''s', '\xab'::bytea`, c.SQL)

	_, err = builder.New(get(t, "sqlite")).Build(&query.Select{Columns: []query.Node{query.Lit(struct{}{})}}, nil)
	assert.True(t, errs.IsBuild(err))
}

func TestUnknownNames(t *testing.T) {
	ns := shop(t)
	b := builder.New(get(t, "sqlite"))

	_, err := b.Build(&query.Select{From: []query.TableExpr{query.Table("missing")}}, ns)
	assert.True(t, errs.IsNotFound(err))

	_, err = b.Build(&query.Select{
		Columns: []query.Node{query.Col("nope")},
		From:    []query.TableExpr{query.Table("users")},
	}, ns)
	assert.True(t, errs.IsNotFound(err))

	// without a pivot anything goes
	c, err := b.Build(&query.Select{
		Columns: []query.Node{query.Col("x.nope")},
		From:    []query.TableExpr{query.Table("missing").As("x")},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "x"."nope" FROM "missing" "x"`, c.SQL)
}

func TestAliasVisibility(t *testing.T) {
	ns := shop(t)
	q := func() *query.Select {
		return &query.Select{
			Columns: []query.Node{query.As(query.Col("amount"), "a")},
			From:    []query.TableExpr{query.Table("orders")},
			Where:   query.Cmp(">", query.Col("a"), query.Lit(1)),
		}
	}

	c, err := builder.New(get(t, "sqlite")).Build(q(), ns)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "amount" AS "a" FROM "orders" WHERE "a" > 1`, c.SQL)

	_, err = builder.New(get(t, "postgres")).Build(q(), ns)
	assert.True(t, errs.IsNotFound(err), "postgres cannot use result aliases in WHERE")
}

func TestLimitOffset(t *testing.T) {
	ns := shop(t)
	page := func(limit, offset int, order bool) *query.Select {
		q := &query.Select{From: []query.TableExpr{query.Table("users")}, Limit: limit, Offset: offset}
		if order {
			q.OrderBy = []query.Order{{Expr: query.Col("id")}}
		}
		return q
	}

	c, err := builder.New(get(t, "mssql")).Build(page(5, 10, false), ns)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM [users] ORDER BY (SELECT NULL) OFFSET 10 ROWS FETCH NEXT 5 ROWS ONLY", c.SQL)

	c, err = builder.New(get(t, "oracle")).Build(page(5, 10, true), ns)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "users" ORDER BY "id" OFFSET 10 ROWS FETCH NEXT 5 ROWS ONLY`, c.SQL)

	c, err = builder.New(get(t, "postgres")).Build(page(0, 10, false), ns)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "users" OFFSET 10`, c.SQL)

	_, err = builder.New(get(t, "sqlite")).Build(page(0, 10, false), ns)
	assert.True(t, errs.IsBuild(err))

	c, err = builder.New(get(t, "sqlite")).Build(page(5, 10, false), ns)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "users" LIMIT 5 OFFSET 10`, c.SQL)
}

func TestOperatorAllowlist(t *testing.T) {
	q := &query.Select{Where: query.Cmp("; DROP", query.Lit(1), query.Lit(1))}
	_, err := builder.New(get(t, "sqlite")).Build(q, nil)
	assert.True(t, errs.IsBuild(err))

	q = &query.Select{Columns: []query.Node{
		query.Cmp("*", query.Cmp("+", query.Lit(1), query.Lit(2)), query.Lit(3)),
	}, Where: query.And(query.Not(query.Eq(query.Lit(1), query.Lit(2))), query.Or(query.IsNull(query.Lit(nil)), query.Cmp("!=", query.Lit(1), query.Lit(2))))}
	c, err := builder.New(get(t, "sqlite")).Build(q, nil)
	require.NoError(t, err)
	assert.Equal(t, `SELECT (1 + 2) * 3 WHERE NOT (1 = 2) AND (NULL IS NULL OR 1 <> 2)`, c.SQL)
}

func TestConcatAndFormatTime(t *testing.T) {
	q := func() *query.Select {
		return &query.Select{Columns: []query.Node{
			&query.Concat{Parts: []query.Node{query.Col("a"), query.Lit("-")}},
			&query.FormatTime{Value: query.Col("t"), Layout: "Y-m-d"},
		}}
	}
	c, err := builder.New(get(t, "sqlite")).Build(q(), nil)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "a" || '-', strftime('%Y-%m-%d', "t")`, c.SQL)

	c, err = builder.New(get(t, "mysql")).Build(q(), nil)
	require.NoError(t, err)
	assert.Equal(t, "SELECT CONCAT(`a`, '-'), DATE_FORMAT(`t`, '%Y-%m-%d')", c.SQL)
}

func TestSubqueries(t *testing.T) {
	ns := shop(t)
	q := &query.Select{
		Columns: []query.Node{query.Col("big.user_id")},
		From: []query.TableExpr{&query.DerivedTable{
			Alias: "big",
			Query: &query.Select{
				Columns: []query.Node{query.Col("user_id")},
				From:    []query.TableExpr{query.Table("orders")},
				Where:   query.Cmp(">", query.Col("amount"), query.Lit(100)),
			},
		}},
		Where: &query.In{Expr: query.Col("big.user_id"), Query: &query.Select{
			Columns: []query.Node{query.Col("id")},
			From:    []query.TableExpr{query.Table("users")},
		}},
	}
	c, err := builder.New(get(t, "postgres")).Build(q, ns)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "big"."user_id" FROM (SELECT "user_id" FROM "orders" WHERE "amount" > 100) "big" WHERE "big"."user_id" IN (SELECT "id" FROM "users")`, c.SQL)
	require.Len(t, c.Columns, 1)
	assert.Equal(t, schema.Integer, c.Columns[0].Type)
}

func TestDML(t *testing.T) {
	ns := shop(t)
	b := builder.New(get(t, "postgres"))

	c, err := b.Build(&query.Insert{
		Table:   schema.ParseIdentifier("users"),
		Columns: []string{"name"},
		Rows:    [][]query.Node{{query.P("name", schema.String)}, {query.Lit("bob")}},
	}, ns)
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "users" ("name") VALUES ($1), ('bob')`, c.SQL)
	assert.Equal(t, query.StatementInsert, c.Type)
	assert.Nil(t, c.Columns)

	c, err = b.Build(&query.Update{
		Table: schema.ParseIdentifier("orders"),
		Set:   []query.Assignment{{Column: "amount", Value: query.Lit(0)}},
		Where: query.IsNull(query.Col("amount")),
	}, ns)
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "orders" SET "amount" = 0 WHERE "amount" IS NULL`, c.SQL)
	assert.Equal(t, query.StatementUpdate, c.Type)

	c, err = b.Build(&query.Delete{Table: schema.ParseIdentifier("main.orders")}, ns)
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "main"."orders"`, c.SQL)

	_, err = b.Build(&query.Update{Table: schema.ParseIdentifier("orders")}, ns)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "statement has no column values")

	_, err = b.Build(&query.Insert{
		Table:   schema.ParseIdentifier("users"),
		Columns: []string{"id", "name"},
		Rows:    [][]query.Node{{query.Lit(1)}},
	}, ns)
	assert.True(t, errs.IsBuild(err))

	_, err = b.Build(&query.Insert{
		Table:   schema.ParseIdentifier("users"),
		Columns: []string{"email"},
		Rows:    [][]query.Node{{query.Lit("x")}},
	}, ns)
	assert.True(t, errs.IsNotFound(err))
}

func TestInsertSelectKeepsInsertType(t *testing.T) {
	ns := shop(t)
	c, err := builder.New(get(t, "sqlite")).Build(&query.Insert{
		Table:   schema.ParseIdentifier("orders"),
		Columns: []string{"user_id"},
		Query: &query.Select{
			Columns: []query.Node{query.Col("id")},
			From:    []query.TableExpr{query.Table("users")},
		},
	}, ns)
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "orders" ("user_id") SELECT "id" FROM "users"`, c.SQL)
	assert.Equal(t, query.StatementInsert, c.Type)
	assert.Nil(t, c.Columns)
}
