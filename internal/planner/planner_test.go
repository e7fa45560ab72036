package planner_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"db-forge/internal/compare"
	"db-forge/internal/dialect"
	"db-forge/internal/planner"
	"db-forge/internal/schema"
)

func newPlanner(t *testing.T, name string, opts ...planner.Option) *planner.Planner {
	t.Helper()
	d, err := dialect.Get(name)
	require.NoError(t, err)
	opts = append([]planner.Option{planner.WithBackupName(func(n string) string { return n + "_backup_test" })}, opts...)
	return planner.New(d, opts...)
}

func emptyDB(t *testing.T) *schema.Datasource {
	t.Helper()
	ds := schema.NewDatasource("db")
	require.NoError(t, ds.Add(schema.NewNamespace("main")))
	return ds
}

func ns(ds *schema.Datasource) *schema.Namespace { return ds.Namespace("main") }

func products(t *testing.T, priceLength int) *schema.Datasource {
	t.Helper()
	ds := emptyDB(t)
	tbl := schema.NewTable("products")
	price := schema.NewColumn("price", schema.Number)
	price.Length, price.Scale = priceLength, 2
	require.NoError(t, tbl.Add(
		schema.NewColumn("id", schema.Integer),
		price,
		schema.NewPrimaryKey("", "id"),
	))
	require.NoError(t, ns(ds).Add(tbl))
	return ds
}

func shop(t *testing.T) *schema.Datasource {
	t.Helper()
	ds := emptyDB(t)
	users := schema.NewTable("users")
	require.NoError(t, users.Add(
		schema.NewColumn("id", schema.Integer),
		schema.NewColumn("name", schema.String),
		schema.NewPrimaryKey("", "id"),
	))
	orders := schema.NewTable("orders")
	require.NoError(t, orders.Add(
		schema.NewColumn("id", schema.Integer),
		schema.NewColumn("user_id", schema.Integer),
		schema.NewPrimaryKey("", "id"),
		schema.NewForeignKey("fk_user", []string{"user_id"}, schema.Identifier{"users"}, []string{"id"}),
	))
	require.NoError(t, ns(ds).Add(orders, users))
	return ds
}

func descriptions(p *planner.Plan) []string {
	out := make([]string, len(p.Operations))
	for i, op := range p.Operations {
		out[i] = op.String()
	}
	return out
}

func indexOf(t *testing.T, list []string, s string) int {
	t.Helper()
	for i, v := range list {
		if v == s {
			return i
		}
	}
	t.Fatalf("%q not in %v", s, list)
	return -1
}

func TestCreateOrderFollowsForeignKeys(t *testing.T) {
	for _, name := range []string{"sqlite", "postgres", "mysql", "mssql", "oracle"} {
		t.Run(name, func(t *testing.T) {
			p := newPlanner(t, name)
			plan, err := p.Plan(context.Background(), emptyDB(t), shop(t))
			require.NoError(t, err)
			desc := descriptions(plan)
			require.Len(t, desc, 2)
			assert.Less(t, indexOf(t, desc, "CREATE TABLE main.users"), indexOf(t, desc, "CREATE TABLE main.orders"))
			assert.Empty(t, plan.Cyclic)

			_, err = p.Script(plan)
			require.NoError(t, err)
		})
	}
}

func TestAlterWithoutNativeStatementBacksUp(t *testing.T) {
	p := newPlanner(t, "sqlite")
	plan, err := p.Plan(context.Background(), products(t, 10), products(t, 8))
	require.NoError(t, err)
	require.Equal(t, []planner.OpType{planner.OpBackup, planner.OpDrop, planner.OpRestore}, plan.Types())

	backup, drop, restore := plan.Operations[0], plan.Operations[1], plan.Operations[2]
	assert.Same(t, backup, drop.Original)
	assert.Same(t, drop, restore.Original)
	assert.Equal(t, "products_backup_test", backup.Target.Name())
	assert.Equal(t, []planner.ColumnMapping{{From: "id", To: "id"}, {From: "price", To: "price"}}, restore.Columns)

	script, err := p.Script(plan)
	require.NoError(t, err)
	var sqls []string
	for _, c := range script {
		sqls = append(sqls, c.SQL)
	}
	require.Len(t, sqls, 6)
	assert.True(t, strings.HasPrefix(sqls[0], `CREATE TABLE "products_backup_test" (`))
	assert.Equal(t, `INSERT INTO "products_backup_test" ("id", "price") SELECT "id", "price" FROM "products"`, sqls[1])
	assert.Equal(t, `DROP TABLE "products"`, sqls[2])
	assert.True(t, strings.HasPrefix(sqls[3], `CREATE TABLE "products" (`))
	assert.Equal(t, `INSERT INTO "products" ("id", "price") SELECT "id", "price" FROM "products_backup_test"`, sqls[4])
	assert.Equal(t, `DROP TABLE "products_backup_test"`, sqls[5])
}

func TestAlterWithNativeStatement(t *testing.T) {
	for _, name := range []string{"postgres", "mysql", "mssql", "oracle"} {
		t.Run(name, func(t *testing.T) {
			p := newPlanner(t, name)
			plan, err := p.Plan(context.Background(), products(t, 10), products(t, 8))
			require.NoError(t, err)
			assert.Equal(t, []planner.OpType{planner.OpAlter}, plan.Types())
			_, err = p.Script(plan)
			require.NoError(t, err)
		})
	}
}

func TestPlanLeavesInputsUntouched(t *testing.T) {
	ref, tgt := products(t, 10), products(t, 8)
	_, err := newPlanner(t, "sqlite").Plan(context.Background(), ref, tgt)
	require.NoError(t, err)
	assert.Len(t, ns(ref).Tables(), 1)
	assert.Len(t, ns(tgt).Tables(), 1)
}

type rows map[string]bool

func (r rows) HasRows(_ context.Context, t *schema.Table) (bool, error) { return r[t.Name()], nil }

func TestEmptyTableIsRecreated(t *testing.T) {
	p := newPlanner(t, "sqlite", planner.WithProbe(planner.LiveProbe{Rows: rows{}}))
	plan, err := p.Plan(context.Background(), products(t, 10), products(t, 8))
	require.NoError(t, err)
	assert.Equal(t, []planner.OpType{planner.OpDrop, planner.OpCreate}, plan.Types())
}

func TestRebuildFoldsDependents(t *testing.T) {
	ref, tgt := shop(t), shop(t)
	ns(tgt).Table("users").Column("name").Length = 40

	plan, err := newPlanner(t, "sqlite").Plan(context.Background(), ref, tgt)
	require.NoError(t, err)
	desc := descriptions(plan)
	require.Len(t, desc, 6, "%v", desc)
	assert.Equal(t, planner.OpBackup, plan.Operations[0].Type)
	assert.Equal(t, planner.OpBackup, plan.Operations[1].Type)
	assert.Less(t, indexOf(t, desc, "DROP TABLE main.orders"), indexOf(t, desc, "DROP TABLE main.users"))
	assert.Less(t, indexOf(t, desc, "RESTORE TABLE main.users_backup_test -> users"),
		indexOf(t, desc, "RESTORE TABLE main.orders_backup_test -> orders"))
}

func TestRebuildRecreatesForeignKeysNatively(t *testing.T) {
	ref, tgt := shop(t), shop(t)
	require.NoError(t, schema.Rename(ns(tgt).Table("users").PrimaryKey(), "users_pk"))

	p := newPlanner(t, "postgres",
		planner.WithCompareMode(compare.Strict),
		planner.WithProbe(planner.LiveProbe{Rows: rows{"users": true}}))
	plan, err := p.Plan(context.Background(), ref, tgt)
	require.NoError(t, err)
	desc := descriptions(plan)
	require.Len(t, desc, 5, "%v", desc)
	assert.Equal(t, "BACKUP TABLE main.users -> users_backup_test", desc[0])
	assert.Less(t, indexOf(t, desc, "DROP FOREIGN KEY main.orders.fk_user"), indexOf(t, desc, "DROP TABLE main.users"))
	assert.Less(t, indexOf(t, desc, "RESTORE TABLE main.users_backup_test -> users"), indexOf(t, desc, "CREATE FOREIGN KEY main.orders.fk_user"))

	_, err = p.Script(plan)
	require.NoError(t, err)
}

func TestColumnRenameIsNative(t *testing.T) {
	ref, tgt := shop(t), shop(t)
	require.NoError(t, schema.Rename(ns(tgt).Table("users").Column("name"), "full_name"))

	p := newPlanner(t, "postgres")
	plan, err := p.Plan(context.Background(), ref, tgt)
	require.NoError(t, err)
	assert.Equal(t, []string{"RENAME COLUMN main.users.name -> full_name"}, descriptions(plan))

	script, err := p.Script(plan)
	require.NoError(t, err)
	require.Len(t, script, 1)
	assert.Equal(t, `ALTER TABLE "main"."users" RENAME COLUMN "name" TO "full_name"`, script[0].SQL)
}

func TestCommentChangesAreIgnored(t *testing.T) {
	ref, tgt := shop(t), shop(t)
	ns(tgt).Table("users").Column("name").Comment = "display name"

	plan, err := newPlanner(t, "postgres").Plan(context.Background(), ref, tgt)
	require.NoError(t, err)
	assert.True(t, plan.Empty())
}

func TestNewColumnPrecedesItsConstraints(t *testing.T) {
	tgt := products(t, 10)
	tbl := ns(tgt).Table("products")
	require.NoError(t, tbl.Add(
		schema.NewColumn("qty", schema.Integer),
		schema.NewCheck("chk_qty", "qty > 0"),
		schema.NewIndex("ix_qty", false, "qty"),
	))

	p := newPlanner(t, "postgres")
	plan, err := p.Plan(context.Background(), products(t, 10), tgt)
	require.NoError(t, err)
	desc := descriptions(plan)
	require.Len(t, desc, 3)
	col := indexOf(t, desc, "CREATE COLUMN main.products.qty")
	assert.Less(t, col, indexOf(t, desc, "CREATE CHECK main.products.chk_qty"))
	assert.Less(t, col, indexOf(t, desc, "CREATE INDEX main.products.ix_qty"))
	assert.Empty(t, plan.Cyclic)

	script, err := p.Script(plan)
	require.NoError(t, err)
	require.NotEmpty(t, script)
	assert.Contains(t, script[0].SQL, `ADD COLUMN "qty"`)
}

func TestForeignKeyFollowsReferencedKey(t *testing.T) {
	tgt := shop(t)
	require.NoError(t, ns(tgt).Table("users").Add(
		schema.NewColumn("code", schema.String),
		schema.NewUnique("uq_code", "code"),
	))
	require.NoError(t, ns(tgt).Table("orders").Add(
		schema.NewColumn("ucode", schema.String),
		schema.NewForeignKey("fk_code", []string{"ucode"}, schema.Identifier{"users"}, []string{"code"}),
	))

	for _, name := range []string{"mysql", "postgres"} {
		t.Run(name, func(t *testing.T) {
			plan, err := newPlanner(t, name).Plan(context.Background(), shop(t), tgt)
			require.NoError(t, err)
			desc := descriptions(plan)
			require.Len(t, desc, 4)
			fk := indexOf(t, desc, "CREATE FOREIGN KEY main.orders.fk_code")
			assert.Less(t, indexOf(t, desc, "CREATE COLUMN main.users.code"), fk)
			assert.Less(t, indexOf(t, desc, "CREATE UNIQUE main.users.uq_code"), fk)
			assert.Less(t, indexOf(t, desc, "CREATE COLUMN main.orders.ucode"), fk)
			assert.Less(t, indexOf(t, desc, "CREATE COLUMN main.users.code"), indexOf(t, desc, "CREATE UNIQUE main.users.uq_code"))
			assert.Empty(t, plan.Cyclic)
		})
	}
}

func TestDropOrder(t *testing.T) {
	plan, err := newPlanner(t, "postgres").Plan(context.Background(), shop(t), emptyDB(t))
	require.NoError(t, err)
	desc := descriptions(plan)
	assert.Less(t, indexOf(t, desc, "DROP TABLE main.orders"), indexOf(t, desc, "DROP TABLE main.users"))
}

func TestCycleIsBroken(t *testing.T) {
	tgt := emptyDB(t)
	a, b := schema.NewTable("a"), schema.NewTable("b")
	require.NoError(t, a.Add(schema.NewColumn("b_id", schema.Integer),
		schema.NewForeignKey("fk_b", []string{"b_id"}, schema.Identifier{"b"}, []string{"b_id"})))
	require.NoError(t, b.Add(schema.NewColumn("b_id", schema.Integer),
		schema.NewForeignKey("fk_a", []string{"b_id"}, schema.Identifier{"a"}, []string{"b_id"})))
	require.NoError(t, ns(tgt).Add(a, b))

	plan, err := newPlanner(t, "postgres").Plan(context.Background(), emptyDB(t), tgt)
	require.NoError(t, err)
	assert.Len(t, plan.Operations, 2)
	assert.Len(t, plan.Cyclic, 1)
	assert.Equal(t, "CREATE TABLE main.a", plan.Operations[0].String())
}
