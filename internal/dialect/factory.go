package dialect

import "db-forge/internal/errs"

// Get returns a new Dialect for a dialect or driver name.
func Get(name string, opts ...Option) (Dialect, error) {
	switch name {
	case "sqlite", "sqlite3":
		return NewSQLite(opts...), nil
	case "mysql":
		return NewMysql(opts...), nil
	case "postgres", "postgresql", "pgx":
		return NewPostgres(opts...), nil
	case "sqlserver", "mssql":
		return NewMSSQL(opts...), nil
	case "oracle":
		return NewOracle(opts...), nil
	}
	return nil, errs.Newf(errs.KindInvalidInput, "unknown dialect %q", name)
}

// Names lists the dialects Get knows.
func Names() []string {
	return []string{"mysql", "postgres", "mssql", "oracle", "sqlite"}
}

var (
	_ Dialect = (*SQLiteDialect)(nil)
	_ Dialect = (*MysqlDialect)(nil)
	_ Dialect = (*PostgresDialect)(nil)
	_ Dialect = (*MSSQLDialect)(nil)
	_ Dialect = (*OracleDialect)(nil)
)
