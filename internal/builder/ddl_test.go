package builder_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"db-forge/internal/builder"
	"db-forge/internal/errs"
	"db-forge/internal/query"
	"db-forge/internal/schema"
)

type appSchema struct {
	ns     *schema.Namespace
	users  *schema.Table
	orders *schema.Table
	index  *schema.Index
	fk     *schema.ForeignKey
	check  *schema.Check
}

func app(t *testing.T) appSchema {
	t.Helper()
	ds := schema.NewDatasource("app")
	ns := schema.NewNamespace("app")

	users := schema.NewTable("users")
	id := schema.NewColumn("id", schema.Integer)
	id.Flags = schema.AutoIncrement
	idx := schema.NewIndex("", true, "name")
	require.NoError(t, users.Add(id, schema.NewColumn("name", schema.String), schema.NewPrimaryKey("", "id"), idx))

	orders := schema.NewTable("orders")
	amount := schema.NewColumn("amount", schema.Number|schema.Null)
	amount.Length, amount.Scale = 10, 2
	amount.Default = &schema.Default{Value: "0"}
	status := schema.NewColumn("status", schema.String)
	status.Length = 20
	status.Default = &schema.Default{Value: "new"}
	check := schema.NewCheck("ck_amount", "amount >= 0")
	fk := schema.NewForeignKey("fk_user", []string{"user_id"}, schema.Identifier{"users"}, []string{"id"})
	fk.OnDelete, fk.OnUpdate = schema.Cascade, schema.Cascade
	require.NoError(t, orders.Add(
		schema.NewColumn("id", schema.Integer),
		schema.NewColumn("user_id", schema.Integer),
		amount, status, check, fk,
	))

	require.NoError(t, ns.Add(users, orders))
	require.NoError(t, ds.Add(ns))
	return appSchema{ns: ns, users: users, orders: orders, index: idx, fk: fk, check: check}
}

func sqlFor(t *testing.T, dialectName string, stmt query.Statement) string {
	t.Helper()
	c, err := builder.New(get(t, dialectName)).Build(stmt, nil)
	require.NoError(t, err)
	assert.Equal(t, query.StatementDDL, c.Type)
	return c.SQL
}

func buildErr(t *testing.T, dialectName string, stmt query.Statement) error {
	t.Helper()
	_, err := builder.New(get(t, dialectName)).Build(stmt, nil)
	require.Error(t, err)
	return err
}

func TestCreateTableAutoIncrement(t *testing.T) {
	s := app(t)
	create := &query.CreateTable{Table: s.users}

	assert.Equal(t, `CREATE TABLE "users" ("id" INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL, "name" TEXT NOT NULL)`,
		sqlFor(t, "sqlite", create))
	assert.Equal(t, "CREATE TABLE `app`.`users` (`id` INT AUTO_INCREMENT NOT NULL, `name` TEXT NOT NULL, PRIMARY KEY (`id`))",
		sqlFor(t, "mysql", create))
	assert.Equal(t, `CREATE TABLE "app"."users" ("id" INTEGER GENERATED BY DEFAULT AS IDENTITY NOT NULL, "name" TEXT NOT NULL, PRIMARY KEY ("id"))`,
		sqlFor(t, "postgres", create))
}

func TestCreateTableConstraints(t *testing.T) {
	s := app(t)
	create := &query.CreateTable{Table: s.orders, IfNotExists: true}

	assert.Equal(t, `CREATE TABLE IF NOT EXISTS "app"."orders" ("id" INTEGER NOT NULL, "user_id" INTEGER NOT NULL, `+
		`"amount" NUMERIC(10,2) DEFAULT 0, "status" VARCHAR(20) NOT NULL DEFAULT 'new', `+
		`CONSTRAINT "ck_amount" CHECK (amount >= 0), `+
		`CONSTRAINT "fk_user" FOREIGN KEY ("user_id") REFERENCES "app"."users" ("id") ON DELETE CASCADE ON UPDATE CASCADE)`,
		sqlFor(t, "postgres", create))

	oracle := sqlFor(t, "oracle", create)
	assert.Contains(t, oracle, `CREATE TABLE "orders" (`)
	assert.Contains(t, oracle, `"amount" NUMBER(10,2) DEFAULT 0`)
	assert.Contains(t, oracle, `REFERENCES "users" ("id") ON DELETE CASCADE)`)
	assert.NotContains(t, oracle, "ON UPDATE")

	assert.Contains(t, sqlFor(t, "mssql", create), `CREATE TABLE [app].[orders] (`)
}

func TestCreateTableWithoutColumns(t *testing.T) {
	assert.True(t, errs.IsBuild(buildErr(t, "sqlite", &query.CreateTable{Table: schema.NewTable("empty")})))
}

func TestDropTable(t *testing.T) {
	s := app(t)
	drop := &query.DropTable{Table: s.users, IfExists: true}
	assert.Equal(t, `DROP TABLE IF EXISTS "users"`, sqlFor(t, "sqlite", drop))
	assert.Equal(t, `DROP TABLE "users"`, sqlFor(t, "oracle", drop))
}

func TestRenameStyles(t *testing.T) {
	s := app(t)
	table := &query.RenameTable{Table: s.users, Name: "members"}
	assert.Equal(t, `ALTER TABLE "users" RENAME TO "members"`, sqlFor(t, "sqlite", table))
	assert.Equal(t, "RENAME TABLE `app`.`users` TO `app`.`members`", sqlFor(t, "mysql", table))
	assert.Equal(t, `EXEC sp_rename N'app.users', N'members'`, sqlFor(t, "mssql", table))
	assert.Equal(t, `ALTER TABLE "app"."users" RENAME TO "members"`, sqlFor(t, "postgres", table))

	column := &query.AlterTable{Table: s.users, Action: &query.RenameColumn{Name: "name", To: "full_name"}}
	assert.Equal(t, `EXEC sp_rename N'app.users.name', N'full_name', N'COLUMN'`, sqlFor(t, "mssql", column))
	assert.Equal(t, `ALTER TABLE "app"."users" RENAME COLUMN "name" TO "full_name"`, sqlFor(t, "postgres", column))
}

func TestIndexes(t *testing.T) {
	s := app(t)
	assert.Equal(t, `CREATE UNIQUE INDEX "idx_users_name" ON "app"."users" ("name")`,
		sqlFor(t, "postgres", &query.CreateIndex{Index: s.index}))
	assert.Equal(t, `CREATE UNIQUE INDEX IF NOT EXISTS "idx_users_name" ON "users" ("name")`,
		sqlFor(t, "sqlite", &query.CreateIndex{Index: s.index, IfNotExists: true}))

	assert.Equal(t, `DROP INDEX "app"."idx_users_name"`, sqlFor(t, "postgres", &query.DropIndex{Index: s.index}))
	assert.Equal(t, "DROP INDEX `idx_users_name` ON `app`.`users`", sqlFor(t, "mysql", &query.DropIndex{Index: s.index}))

	rename := &query.RenameIndex{Index: s.index, Name: "ix_name"}
	assert.Equal(t, "ALTER TABLE `app`.`users` RENAME INDEX `idx_users_name` TO `ix_name`", sqlFor(t, "mysql", rename))
	assert.Equal(t, `ALTER INDEX "app"."idx_users_name" RENAME TO "ix_name"`, sqlFor(t, "postgres", rename))
	assert.Equal(t, `EXEC sp_rename N'app.users.idx_users_name', N'ix_name', N'INDEX'`, sqlFor(t, "mssql", rename))
	assert.True(t, errs.IsBuild(buildErr(t, "sqlite", rename)))
}

func TestAlterColumn(t *testing.T) {
	s := app(t)
	amount := schema.NewColumn("amount", schema.Number)
	amount.Length, amount.Scale = 12, 2
	alter := &query.AlterTable{Table: s.orders, Action: &query.AlterColumn{Column: amount}}

	assert.Equal(t, "ALTER TABLE `app`.`orders` MODIFY COLUMN `amount` DECIMAL(12,2) NOT NULL", sqlFor(t, "mysql", alter))
	assert.Equal(t, `ALTER TABLE "app"."orders" ALTER COLUMN "amount" TYPE NUMERIC(12,2), `+
		`ALTER COLUMN "amount" SET NOT NULL, ALTER COLUMN "amount" DROP DEFAULT`, sqlFor(t, "postgres", alter))
	assert.Equal(t, `ALTER TABLE [app].[orders] ALTER COLUMN [amount] DECIMAL(12,2) NOT NULL`, sqlFor(t, "mssql", alter))
	assert.Equal(t, `ALTER TABLE "orders" MODIFY ("amount" NUMBER(12,2) NOT NULL)`, sqlFor(t, "oracle", alter))
	assert.True(t, errs.IsBuild(buildErr(t, "sqlite", alter)))

	amount.Default = &schema.Default{Value: "1"}
	assert.Contains(t, sqlFor(t, "postgres", alter), `ALTER COLUMN "amount" SET DEFAULT 1`)
}

func TestAddAndDropColumn(t *testing.T) {
	s := app(t)
	note := schema.NewColumn("note", schema.String|schema.Null)
	add := &query.AlterTable{Table: s.orders, Action: &query.AddColumn{Column: note}}
	assert.Equal(t, `ALTER TABLE "orders" ADD COLUMN "note" TEXT`, sqlFor(t, "sqlite", add))
	assert.Equal(t, `ALTER TABLE [app].[orders] ADD [note] NVARCHAR(MAX)`, sqlFor(t, "mssql", add))
	assert.Equal(t, `ALTER TABLE "orders" ADD ("note" CLOB)`, sqlFor(t, "oracle", add))

	drop := &query.AlterTable{Table: s.orders, Action: &query.DropColumn{Name: "note"}}
	assert.Equal(t, `ALTER TABLE "app"."orders" DROP COLUMN "note"`, sqlFor(t, "postgres", drop))
	assert.True(t, errs.IsBuild(buildErr(t, "sqlite", drop)))
}

func TestConstraints(t *testing.T) {
	s := app(t)
	assert.Equal(t, `ALTER TABLE "app"."orders" ADD CONSTRAINT "ck_amount" CHECK (amount >= 0)`,
		sqlFor(t, "postgres", &query.AlterTable{Table: s.orders, Action: &query.AddConstraint{Constraint: s.check}}))

	dropFK := &query.AlterTable{Table: s.orders, Action: &query.DropConstraint{Constraint: s.fk}}
	assert.Equal(t, "ALTER TABLE `app`.`orders` DROP FOREIGN KEY `fk_user`", sqlFor(t, "mysql", dropFK))
	assert.Equal(t, `ALTER TABLE "app"."orders" DROP CONSTRAINT "fk_user"`, sqlFor(t, "postgres", dropFK))

	dropPK := &query.AlterTable{Table: s.users, Action: &query.DropConstraint{Constraint: s.users.PrimaryKey()}}
	assert.Equal(t, "ALTER TABLE `app`.`users` DROP PRIMARY KEY", sqlFor(t, "mysql", dropPK))
	assert.True(t, errs.IsBuild(buildErr(t, "postgres", dropPK)), "anonymous constraints have no name to drop")
	assert.True(t, errs.IsBuild(buildErr(t, "sqlite", dropFK)))
}

func TestNamespacesAndViews(t *testing.T) {
	s := app(t)
	assert.Equal(t, `CREATE SCHEMA "app"`, sqlFor(t, "postgres", &query.CreateNamespace{Namespace: s.ns}))
	assert.Equal(t, `ALTER SCHEMA "app" RENAME TO "shop"`, sqlFor(t, "postgres", &query.RenameNamespace{Namespace: s.ns, Name: "shop"}))
	assert.True(t, errs.IsBuild(buildErr(t, "sqlite", &query.CreateNamespace{Namespace: s.ns})))
	assert.True(t, errs.IsBuild(buildErr(t, "mysql", &query.RenameNamespace{Namespace: s.ns, Name: "shop"})))

	v := schema.NewView("big", " SELECT * FROM orders WHERE amount > 100 ")
	require.NoError(t, s.ns.Add(v))
	assert.Equal(t, `CREATE VIEW "app"."big" AS SELECT * FROM orders WHERE amount > 100`, sqlFor(t, "postgres", &query.CreateView{View: v}))
	assert.Equal(t, `DROP VIEW [app].[big]`, sqlFor(t, "mssql", &query.DropView{View: v}))
	assert.Equal(t, "RENAME TABLE `app`.`big` TO `app`.`huge`", sqlFor(t, "mysql", &query.RenameView{View: v, Name: "huge"}))
	assert.True(t, errs.IsBuild(buildErr(t, "oracle", &query.RenameView{View: v, Name: "huge"})))
}
