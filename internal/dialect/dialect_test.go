package dialect_test

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"db-forge/internal/dialect"
	"db-forge/internal/errs"
	"db-forge/internal/logger"
	"db-forge/internal/schema"
)

func mustGet(t *testing.T, name string, opts ...dialect.Option) dialect.Dialect {
	t.Helper()
	d, err := dialect.Get(name, opts...)
	require.NoError(t, err)
	return d
}

func TestGet(t *testing.T) {
	for _, name := range dialect.Names() {
		assert.Equal(t, name, mustGet(t, name).Name())
	}
	assert.Equal(t, "postgres", mustGet(t, "pgx").Name())
	assert.Equal(t, "mssql", mustGet(t, "sqlserver").Name())

	_, err := dialect.Get("db2")
	assert.True(t, errs.IsInvalidInput(err))
}

func TestQuoting(t *testing.T) {
	tests := []struct {
		dialect string
		ident   string
		want    string
	}{
		{"sqlite", `a"b`, `"a""b"`},
		{"mysql", "id", "`id`"},
		{"mysql", "a`b", "`a``b`"},
		{"mssql", "a]b", "[a]]b]"},
		{"postgres", "id", `"id"`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, mustGet(t, tt.dialect).QuoteIdentifier(tt.ident), tt.dialect)
	}

	assert.Equal(t, "'it''s'", mustGet(t, "sqlite").QuoteString("it's"))
	assert.Equal(t, `'a\\b'`, mustGet(t, "mysql").QuoteString(`a\b`))
	assert.Equal(t, "N'x'", mustGet(t, "mssql").QuoteString("x"))

	bin := []byte{0x0a, 0xff}
	assert.Equal(t, "X'0AFF'", mustGet(t, "sqlite").QuoteBinary(bin))
	assert.Equal(t, `'\x0aff'::bytea`, mustGet(t, "postgres").QuoteBinary(bin))
	assert.Equal(t, "0x0AFF", mustGet(t, "mssql").QuoteBinary(bin))
	assert.Equal(t, "HEXTORAW('0AFF')", mustGet(t, "oracle").QuoteBinary(bin))
}

func TestKeywords(t *testing.T) {
	auto := map[string]string{
		"sqlite":   "AUTOINCREMENT",
		"mysql":    "AUTO_INCREMENT",
		"postgres": "GENERATED BY DEFAULT AS IDENTITY",
		"mssql":    "IDENTITY(1,1)",
	}
	for name, want := range auto {
		got, err := mustGet(t, name).Keyword(dialect.KeywordAutoIncrement)
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}

	tr, err := mustGet(t, "mssql").Keyword(dialect.KeywordTrue)
	require.NoError(t, err)
	assert.Equal(t, "1", tr)

	null, err := mustGet(t, "oracle").Keyword(dialect.KeywordNull)
	require.NoError(t, err)
	assert.Equal(t, "NULL", null)

	_, err = mustGet(t, "sqlite").Keyword(dialect.Keyword(999))
	assert.True(t, errs.IsBuild(err))
}

func TestJoinOperator(t *testing.T) {
	sqlite := mustGet(t, "sqlite")
	tests := []struct {
		flags dialect.JoinFlag
		want  string
	}{
		{0, "JOIN"},
		{dialect.JoinInner, "INNER JOIN"},
		{dialect.JoinOuter | dialect.JoinLeft, "LEFT OUTER JOIN"},
		{dialect.JoinInner | dialect.JoinNatural, "NATURAL INNER JOIN"},
		{dialect.JoinCross, "CROSS JOIN"},
	}
	for _, tt := range tests {
		got, err := sqlite.JoinOperator(tt.flags)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	for _, bad := range []dialect.JoinFlag{
		dialect.JoinLeft | dialect.JoinRight,
		dialect.JoinOuter,
		dialect.JoinOuter | dialect.JoinInner,
		dialect.JoinNatural | dialect.JoinCross,
	} {
		_, err := sqlite.JoinOperator(bad)
		assert.True(t, errs.IsBuild(err), "flags %b", bad)
	}

	_, err := mustGet(t, "mssql").JoinOperator(dialect.JoinNatural)
	assert.True(t, errs.IsBuild(err))
}

func TestFeatureCascade(t *testing.T) {
	sqlite := mustGet(t, "sqlite")
	assert.False(t, sqlite.Supports(dialect.FeatureAlterColumn))
	assert.True(t, sqlite.Supports(dialect.FeatureAlterColumnAdd))
	// unset leaves fall back to the closest set ancestor
	assert.True(t, sqlite.Supports("alter.column.add.first"))
	assert.False(t, sqlite.Supports("alter.column.type"))
	assert.True(t, sqlite.Supports("create.view"))
	assert.True(t, sqlite.Supports(dialect.FeatureCreateTableIfNotExists))
	assert.Nil(t, sqlite.Feature("no.such.path"))

	mssql := mustGet(t, "mssql")
	assert.False(t, mssql.Supports(dialect.FeatureCreateTableIfNotExists))
	assert.True(t, mssql.Supports(dialect.FeatureDropTableIfExists))
	assert.Equal(t, "offset_fetch", mssql.Style(dialect.FeatureLimitStyle))
	assert.Equal(t, "limit", sqlite.Style(dialect.FeatureLimitStyle))

	mysql := mustGet(t, "mysql")
	assert.Equal(t, "modify", mysql.Style(dialect.FeatureAlterColumnStyle))
	assert.True(t, mysql.Supports(dialect.FeatureAliasGroup))
	assert.False(t, mysql.Supports(dialect.FeatureAliasWhere))
	assert.True(t, mysql.Supports("compare.ignore.comment"))
	assert.False(t, mysql.Supports("compare.ignore.length"))

	assert.False(t, mustGet(t, "oracle").Supports(dialect.FeatureNamespace))
}

func TestFunction(t *testing.T) {
	sqlite := mustGet(t, "sqlite")
	got, err := sqlite.Function("substring")
	require.NoError(t, err)
	assert.Equal(t, "SUBSTR", got)

	got, err = sqlite.Function("lower")
	require.NoError(t, err)
	assert.Equal(t, "LOWER", got)

	got, err = mustGet(t, "mssql").Function("length")
	require.NoError(t, err)
	assert.Equal(t, "LEN", got)

	_, err = sqlite.Function("drop table x;")
	assert.True(t, errs.IsBuild(err))
}

func TestFormatTime(t *testing.T) {
	f := mustGet(t, "sqlite").FormatTime("Y-m-d H:i:s")
	assert.Equal(t, dialect.TimeFunc{Name: "strftime", Format: "%Y-%m-%d %H:%M:%S", FormatFirst: true}, f)

	f = mustGet(t, "mysql").FormatTime("Y-m-d")
	assert.Equal(t, "DATE_FORMAT", f.Name)
	assert.Equal(t, "%Y-%m-%d", f.Format)
	assert.False(t, f.FormatFirst)

	f = mustGet(t, "postgres").FormatTime("Y-m-d H:i")
	assert.Equal(t, "TO_CHAR", f.Name)
	assert.Equal(t, `YYYY"-"MM"-"DD" "HH24":"MI`, f.Format)

	f = mustGet(t, "mssql").FormatTime("d/m/Y")
	assert.Equal(t, "FORMAT", f.Name)
	assert.Equal(t, "dd/MM/yyyy", f.Format)

	assert.Equal(t, "Y", mustGet(t, "sqlite").FormatTime(`\Y`).Format)
	assert.Equal(t, "100%%", mustGet(t, "sqlite").FormatTime("100%").Format)
}

func TestFormatTimeWarnings(t *testing.T) {
	buf := &bytes.Buffer{}
	log := logger.New(&logger.Config{Level: "warn", Format: "json", Output: buf})
	sqlite := mustGet(t, "sqlite", dialect.WithLogger(log))

	f := sqlite.FormatTime("D")
	assert.Equal(t, "", f.Format)
	assert.Contains(t, buf.String(), "no equivalent")

	buf.Reset()
	f = sqlite.FormatTime("z")
	assert.Equal(t, "%j", f.Format)
	assert.Contains(t, buf.String(), "approximately")

	buf.Reset()
	sqlite.FormatTime("Y")
	assert.Empty(t, buf.String())
}

func TestPlaceholders(t *testing.T) {
	tests := []struct {
		dialect string
		want    string
		binding dialect.Binding
	}{
		{"sqlite", "?2", dialect.BindNumbered},
		{"mysql", "?", dialect.BindPositional},
		{"postgres", "$2", dialect.BindNumbered},
		{"mssql", "@p2", dialect.BindNamed},
		{"oracle", ":p2", dialect.BindNamed},
	}
	for _, tt := range tests {
		d := mustGet(t, tt.dialect)
		assert.Equal(t, tt.want, d.Placeholder(2), tt.dialect)
		assert.Equal(t, tt.binding, d.Binding(), tt.dialect)
	}
	assert.Equal(t, "p3", dialect.ParamName(3))
}

func col(name string, t schema.DataType, length int) *schema.Column {
	c := schema.NewColumn(name, t)
	c.Length = length
	return c
}

func TestTypeMatch(t *testing.T) {
	mysql := mustGet(t, "mysql").Types()

	tests := []struct {
		name   string
		column func() *schema.Column
		want   string
	}{
		{"integer", func() *schema.Column { return col("id", schema.Integer, 0) }, "INT"},
		{"sized string", func() *schema.Column { return col("name", schema.String, 100) }, "VARCHAR(100)"},
		{"unsized string prefers unbounded", func() *schema.Column { return col("bio", schema.String|schema.Null, 0) }, "TEXT"},
		{"long string", func() *schema.Column { return col("doc", schema.String, 70000) }, "TEXT"},
		{"string with default", func() *schema.Column {
			c := col("status", schema.String, 0)
			c.Default = &schema.Default{Kind: schema.DefaultLiteral, Value: "new"}
			return c
		}, "VARCHAR(255)"},
		{"decimal", func() *schema.Column {
			c := col("price", schema.Number, 10)
			c.Scale = 2
			return c
		}, "DECIMAL(10,2)"},
		{"json", func() *schema.Column {
			c := col("meta", schema.String, 0)
			c.MediaType = "application/json"
			return c
		}, "JSON"},
		{"padded", func() *schema.Column {
			c := col("code", schema.String, 3)
			c.Padding = schema.Padding{Direction: schema.PadRight, Glyph: " "}
			return c
		}, "CHAR(3)"},
		{"boolean", func() *schema.Column { return col("active", schema.Boolean, 0) }, "BOOLEAN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.column()
			def, err := mysql.Match(c)
			require.NoError(t, err)
			assert.Equal(t, tt.want, def.Render(c))
		})
	}

	sqlite := mustGet(t, "sqlite").Types()
	def, err := sqlite.Match(col("id", schema.Integer, 0))
	require.NoError(t, err)
	assert.Equal(t, "INTEGER", def.Name)

	_, err = sqlite.Match(col("x", schema.Undefined, 0))
	assert.True(t, errs.IsType(err))
}

func TestTypeRank(t *testing.T) {
	reg := mustGet(t, "mysql").Types()
	ranked := reg.Rank(col("name", schema.String, 100))
	require.Len(t, ranked, len(reg.Defs()))
	assert.Equal(t, "VARCHAR", ranked[0].Def.Name)
	assert.Equal(t, "TEXT", ranked[1].Def.Name)

	last := ranked[len(ranked)-1]
	assert.Equal(t, dialect.Disqualified, last.Score)
	assert.NotEmpty(t, last.Reason)
}

func TestTypeLookup(t *testing.T) {
	mysql := mustGet(t, "mysql").Types()
	assert.Equal(t, "BOOLEAN", mysql.Lookup("tinyint(1)").Name)
	assert.Equal(t, "TINYINT", mysql.Lookup("tinyint(4)").Name)
	assert.Equal(t, "VARCHAR", mysql.Lookup("varchar(20)").Name)
	assert.Nil(t, mysql.Lookup("geometry"))

	mssql := mustGet(t, "mssql").Types()
	assert.Equal(t, "NVARCHAR(MAX)", mssql.Lookup("nvarchar(max)").Name)
	assert.Equal(t, "NVARCHAR", mssql.Lookup("nvarchar(40)").Name)

	pg := mustGet(t, "postgres").Types()
	assert.Equal(t, "INTEGER", pg.Lookup("int4").Name)
	assert.Equal(t, "TIMESTAMP", pg.Lookup("timestamp without time zone").Name)
}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestMysqlConstraintHooks(t *testing.T) {
	db, mock := newMock(t)
	ctx := context.Background()
	d := mustGet(t, "mysql")

	mock.ExpectExec("SET FOREIGN_KEY_CHECKS = 0").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SET FOREIGN_KEY_CHECKS = 1").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, d.DisableConstraints(ctx, db))
	require.NoError(t, d.EnableConstraints(ctx, db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresConstraintFallback(t *testing.T) {
	db, mock := newMock(t)
	ctx := context.Background()
	d := mustGet(t, "postgres")

	mock.ExpectExec("SET session_replication_role = 'replica'").WillReturnError(errors.New("permission denied"))
	mock.ExpectExec("SET CONSTRAINTS ALL DEFERRED").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SET session_replication_role = 'origin'").WillReturnError(errors.New("permission denied"))
	mock.ExpectExec("SET CONSTRAINTS ALL IMMEDIATE").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, d.DisableConstraints(ctx, db))
	require.NoError(t, d.EnableConstraints(ctx, db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMSSQLConstraintHooks(t *testing.T) {
	db, mock := newMock(t)
	ctx := context.Background()
	d := mustGet(t, "mssql")
	const tables = `SELECT QUOTENAME(TABLE_SCHEMA) + '.' + QUOTENAME(TABLE_NAME) FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_TYPE = 'BASE TABLE'`

	mock.ExpectQuery(tables).WillReturnRows(sqlmock.NewRows([]string{"t"}).AddRow("[dbo].[a]").AddRow("[dbo].[b]"))
	mock.ExpectExec("ALTER TABLE [dbo].[a] NOCHECK CONSTRAINT all").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("ALTER TABLE [dbo].[b] NOCHECK CONSTRAINT all").WillReturnError(errors.New("locked"))

	err := d.DisableConstraints(ctx, db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[dbo].[b]")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionStatements(t *testing.T) {
	q, err := mustGet(t, "mysql").TimeoutStatement(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "SET SESSION max_execution_time = 2000", q)

	q, err = mustGet(t, "sqlite").TimeoutStatement(500 * time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "PRAGMA busy_timeout = 500", q)

	q, err = mustGet(t, "postgres").TimezoneStatement("UTC")
	require.NoError(t, err)
	assert.Equal(t, "SET TIME ZONE 'UTC'", q)

	_, err = mustGet(t, "sqlite").TimezoneStatement("UTC")
	assert.True(t, errs.IsInvalidInput(err))
	_, err = mustGet(t, "oracle").TimeoutStatement(time.Second)
	assert.True(t, errs.IsInvalidInput(err))
}
