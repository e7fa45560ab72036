package dialect

import (
	"context"
	"database/sql"
	"time"
)

// Dialect abstracts the syntax, type mapping and feature support of one DBMS.
type Dialect interface {
	Name() string

	// Quoting and spelling
	QuoteIdentifier(name string) string
	QuoteString(s string) string
	QuoteBinary(b []byte) string
	Keyword(k Keyword) (string, error)
	JoinOperator(flags JoinFlag) (string, error)
	Function(name string) (string, error)
	FormatTime(layout string) TimeFunc

	// Dotted-path capability lookups
	Feature(path string) any
	Supports(path string) bool
	Style(path string) string

	// Parameters
	Placeholder(ordinal int) string // ?, ?1, $1, @p1, :p1
	Binding() Binding

	Types() *TypeRegistry
	DefaultNamespace() string

	// Session hooks run on the pinned connection of a migration
	DisableConstraints(ctx context.Context, s Session) error
	EnableConstraints(ctx context.Context, s Session) error
	TimeoutStatement(d time.Duration) (string, error)
	TimezoneStatement(tz string) (string, error)

	// Introspection queries, each taking the namespace name as its only argument
	Introspection() Queries
}

// Session is what the hooks need from a connection; *sql.Conn, *sql.Tx and
// *sql.DB all satisfy it.
type Session interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Binding is how driver arguments are matched to placeholders.
type Binding int

const (
	// BindPositional passes one argument per placeholder occurrence.
	BindPositional Binding = iota
	// BindNumbered passes one argument per distinct parameter, by ordinal.
	BindNumbered
	// BindNamed passes one sql.NamedArg per distinct parameter.
	BindNamed
)

// ParamName is the name given to the parameter with the given 1-based ordinal.
func ParamName(ordinal int) string {
	return "p" + itoa(ordinal)
}

// Queries are the live introspection statements of a dialect.
//
//	Tables:      table_name
//	Columns:     table, column, data_type, length, scale, is_nullable, native_type, extra, default, comment
//	PrimaryKeys: table, column
//	ForeignKeys: table, constraint, column, ref_table, ref_column, update_rule, delete_rule
//	Indexes:     table, index, column, non_unique, origin ('u' for unique constraints)
//	Views:       view, definition
//
// Current, when set, names the namespace the session is using; it takes no
// argument and is only run when no namespace is configured.
type Queries struct {
	Current     string
	Tables      string
	Columns     string
	PrimaryKeys string
	ForeignKeys string
	Indexes     string
	Views       string
}
