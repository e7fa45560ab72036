package connection

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	mssql "github.com/microsoft/go-mssqldb"
	"github.com/sijms/go-ora/v2/network"
	"modernc.org/sqlite"

	"db-forge/internal/errs"
)

// mapError converts a driver error into an *errs.Error naming the
// connection. fallback is used when the driver gives nothing to go on.
func mapError(name string, err error, fallback errs.Kind, msg string) error {
	if err == nil {
		return nil
	}
	var e *errs.Error
	if errors.As(err, &e) {
		return err
	}
	msg = name + ": " + msg

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return errs.Wrap(errs.KindTimeout, msg+": deadline exceeded", err)
	case errors.Is(err, sql.ErrNoRows):
		return errs.Wrap(errs.KindNotFound, msg+": no rows", err)
	case errors.Is(err, sql.ErrConnDone), errors.Is(err, driver.ErrBadConn):
		return errs.Wrap(errs.KindConnection, msg+": connection lost", err)
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return errs.Wrap(classifyMySQL(myErr.Number), fmt.Sprintf("%s: %s", msg, myErr.Message), err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return errs.Wrap(classifyPostgres(pgErr.Code), fmt.Sprintf("%s: %s", msg, pgErr.Message), err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return errs.Wrap(classifyPostgres(string(pqErr.Code)), fmt.Sprintf("%s: %s", msg, pqErr.Message), err)
	}
	var msErr mssql.Error
	if errors.As(err, &msErr) {
		return errs.Wrap(classifyMSSQL(msErr.Number), fmt.Sprintf("%s: %s", msg, msErr.Message), err)
	}
	var oraErr *network.OracleError
	if errors.As(err, &oraErr) {
		return errs.Wrap(classifyOracle(oraErr.ErrCode), fmt.Sprintf("%s: %s", msg, oraErr.ErrMsg), err)
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return errs.Wrap(classifySQLite(liteErr.Code()), fmt.Sprintf("%s: %s", msg, liteErr.Error()), err)
	}
	return errs.Wrap(fallback, msg, err)
}

// classifyMySQL maps MySQL server error numbers.
// https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
func classifyMySQL(code uint16) errs.Kind {
	switch code {
	case 1044, // ER_DBACCESS_DENIED_ERROR
		1045, // ER_ACCESS_DENIED_ERROR
		1142, // ER_TABLEACCESS_DENIED_ERROR
		1143: // ER_COLUMNACCESS_DENIED_ERROR
		return errs.KindPermissionDenied
	case 1040, // ER_CON_COUNT_ERROR
		1049, // ER_BAD_DB_ERROR
		1203, // ER_TOO_MANY_USER_CONNECTIONS
		2002, 2003, 2006, 2013:
		return errs.KindConnection
	case 1205, // ER_LOCK_WAIT_TIMEOUT
		3024: // ER_QUERY_TIMEOUT
		return errs.KindTimeout
	default:
		return errs.KindQueryFailed
	}
}

// classifyPostgres maps SQLSTATE codes shared by pq and pgx.
func classifyPostgres(code string) errs.Kind {
	switch {
	case code == "42501": // insufficient_privilege
		return errs.KindPermissionDenied
	case code == "57014", // query_canceled
		code == "55P03": // lock_not_available
		return errs.KindTimeout
	case strings.HasPrefix(code, "08"), // connection exception
		code == "3D000", // invalid_catalog_name
		code == "57P01": // admin_shutdown
		return errs.KindConnection
	case strings.HasPrefix(code, "28"): // invalid authorization
		return errs.KindPermissionDenied
	default:
		return errs.KindQueryFailed
	}
}

func classifyMSSQL(number int32) errs.Kind {
	switch number {
	case 229, 230, 262, 297, 18456:
		return errs.KindPermissionDenied
	case 4060, 233, 10054:
		return errs.KindConnection
	case 1222: // lock request time out
		return errs.KindTimeout
	default:
		return errs.KindQueryFailed
	}
}

func classifyOracle(code int) errs.Kind {
	switch code {
	case 1031, // insufficient privileges
		1017: // invalid username/password
		return errs.KindPermissionDenied
	case 3113, 3114, 12154, 12514, 12541:
		return errs.KindConnection
	case 1013, // user requested cancel
		12170: // connect timeout
		return errs.KindTimeout
	default:
		return errs.KindQueryFailed
	}
}

// classifySQLite looks at the primary result code only.
func classifySQLite(code int) errs.Kind {
	switch code & 0xff {
	case 3, // SQLITE_PERM
		8,  // SQLITE_READONLY
		23: // SQLITE_AUTH
		return errs.KindPermissionDenied
	case 5, // SQLITE_BUSY
		6: // SQLITE_LOCKED
		return errs.KindTimeout
	case 14, // SQLITE_CANTOPEN
		26: // SQLITE_NOTADB
		return errs.KindConnection
	default:
		return errs.KindQueryFailed
	}
}
