package connection_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"db-forge/internal/connection"
	"db-forge/internal/errs"
	"db-forge/internal/query"
	"db-forge/internal/schema"
)

func openSQLite(t *testing.T) *connection.DB {
	t.Helper()
	conn, err := connection.Open(context.Background(), connection.Config{
		Name:   "local",
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "shop.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func exec(t *testing.T, conn *connection.DB, text string) {
	t.Helper()
	st, err := conn.Prepare(context.Background(), text)
	require.NoError(t, err)
	defer st.Close()
	_, err = st.Exec()
	require.NoError(t, err)
}

func setupShop(t *testing.T, conn *connection.DB) {
	t.Helper()
	for _, stmt := range []string{
		`CREATE TABLE users (id INTEGER PRIMARY KEY AUTOINCREMENT, email VARCHAR(120) NOT NULL UNIQUE, name TEXT, score NUMERIC(8,2) DEFAULT 0)`,
		`CREATE TABLE orders (id INTEGER PRIMARY KEY, user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE, note TEXT DEFAULT 'none')`,
		`CREATE INDEX idx_orders_user ON orders (user_id)`,
		`CREATE VIEW big_orders AS SELECT id FROM orders`,
	} {
		exec(t, conn, stmt)
	}
}

func TestExploreSQLite(t *testing.T) {
	conn := openSQLite(t)
	setupShop(t, conn)

	ds, err := conn.Explorer().Explore(context.Background())
	require.NoError(t, err)
	assert.True(t, ds.Live)
	assert.Equal(t, "local", ds.Name())

	ns := ds.Namespace("main")
	require.NotNil(t, ns)
	require.Len(t, ns.Tables(), 2)

	users := ns.Table("users")
	require.NotNil(t, users)
	id := users.Column("id")
	require.NotNil(t, id)
	assert.Equal(t, schema.Integer, id.Type)
	assert.True(t, id.Flags.Has(schema.AutoIncrement))

	email := users.Column("email")
	assert.Equal(t, schema.String, email.Type)
	assert.Equal(t, 120, email.Length)

	assert.Equal(t, schema.String|schema.Null, users.Column("name").Type)

	score := users.Column("score")
	assert.Equal(t, schema.Number|schema.Null, score.Type)
	assert.Equal(t, 8, score.Length)
	assert.Equal(t, 2, score.Scale)
	require.NotNil(t, score.Default)
	assert.Equal(t, "0", score.Default.Value)

	require.NotNil(t, users.PrimaryKey())
	assert.Equal(t, []string{"id"}, users.PrimaryKey().Columns)
	require.Len(t, users.Uniques(), 1)
	assert.Equal(t, []string{"email"}, users.Uniques()[0].Columns)

	orders := ns.Table("orders")
	require.NotNil(t, orders)
	require.Len(t, orders.ForeignKeys(), 1)
	fk := orders.ForeignKeys()[0]
	assert.Empty(t, fk.Name())
	assert.Equal(t, []string{"user_id"}, fk.Columns)
	assert.Equal(t, []string{"id"}, fk.RefColumns)
	assert.Equal(t, schema.Cascade, fk.OnDelete)
	assert.Same(t, users, fk.Target())

	note := orders.Column("note")
	require.NotNil(t, note.Default)
	assert.Equal(t, schema.DefaultLiteral, note.Default.Kind)
	assert.Equal(t, "none", note.Default.Value)

	require.Len(t, orders.Indexes(), 1)
	assert.Equal(t, "idx_orders_user", orders.Indexes()[0].Name())
	assert.False(t, orders.Indexes()[0].Unique)

	require.Len(t, ns.Views(), 1)
	assert.Equal(t, "SELECT id FROM orders", ns.Views()[0].Definition)
}

func TestExploreIsCached(t *testing.T) {
	conn := openSQLite(t)
	setupShop(t, conn)
	ctx := context.Background()

	first, err := conn.Explorer().Explore(ctx)
	require.NoError(t, err)
	exec(t, conn, `CREATE TABLE audit (id INTEGER)`)

	cached, err := conn.Explorer().Explore(ctx)
	require.NoError(t, err)
	assert.Len(t, cached.Namespace("main").Tables(), 2)
	assert.NotSame(t, first, cached)

	conn.Explorer().Invalidate()
	fresh, err := conn.Explorer().Explore(ctx)
	require.NoError(t, err)
	assert.Len(t, fresh.Namespace("main").Tables(), 3)
}

func TestHasRowsSQLite(t *testing.T) {
	conn := openSQLite(t)
	setupShop(t, conn)
	ctx := context.Background()

	ds, err := conn.Explorer().Explore(ctx)
	require.NoError(t, err)
	users := ds.Namespace("main").Table("users")

	ok, err := conn.HasRows(ctx, users)
	require.NoError(t, err)
	assert.False(t, ok)

	exec(t, conn, `INSERT INTO users (email) VALUES ('ada@example.com')`)
	ok, err = conn.HasRows(ctx, users)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSQLiteErrorsAreMapped(t *testing.T) {
	conn := openSQLite(t)
	stmt := compile(t, conn.Dialect(), &query.Delete{Table: schema.Identifier{"nowhere"}})
	_, err := conn.Execute(context.Background(), stmt, nil)
	require.Error(t, err)
	assert.True(t, errs.IsQueryFailed(err))
	assert.Contains(t, err.Error(), "local: statement failed")
	assert.Contains(t, err.Error(), "no such table")
}
