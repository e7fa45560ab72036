package connection

import (
	"sort"
	"strings"

	"db-forge/internal/errs"

	_ "github.com/go-sql-driver/mysql"  // register "mysql" driver
	_ "github.com/jackc/pgx/v5/stdlib"  // register "pgx" driver
	_ "github.com/lib/pq"               // register "postgres" driver
	_ "github.com/microsoft/go-mssqldb" // register "sqlserver" driver
	_ "github.com/sijms/go-ora/v2"      // register "oracle" driver
	_ "modernc.org/sqlite"              // register "sqlite" driver
)

// driverDialects maps database/sql driver names to dialect names.
var driverDialects = map[string]string{
	"mysql":     "mysql",
	"postgres":  "postgres",
	"pgx":       "postgres",
	"sqlserver": "mssql",
	"mssql":     "mssql",
	"oracle":    "oracle",
	"sqlite":    "sqlite",
}

// DialectFor returns the dialect name used for a driver.
func DialectFor(driver string) (string, error) {
	if d, ok := driverDialects[strings.ToLower(driver)]; ok {
		return d, nil
	}
	return "", errs.Newf(errs.KindInvalidInput, "unsupported driver %q (supported: %s)", driver, strings.Join(Drivers(), ", "))
}

// Drivers lists the supported driver names.
func Drivers() []string {
	out := make([]string, 0, len(driverDialects))
	for name := range driverDialects {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
