// Package connection is the boundary between the toolkit and a live database.
//
// A Connection executes compiled statements, reads the live structure through
// its Explorer and adjusts the session through its Configurator. The DB type
// implements it on top of database/sql; the toolkit itself never interprets
// SQL.
package connection

import (
	"context"
	"database/sql"
	"time"

	"db-forge/internal/builder"
	"db-forge/internal/dialect"
	"db-forge/internal/errs"
	"db-forge/internal/logger"
	"db-forge/internal/query"
	"db-forge/internal/schema"
)

// Connection is what the planner and the executor need from a database.
type Connection interface {
	Name() string
	Dialect() dialect.Dialect
	Prepare(ctx context.Context, sql string) (*sql.Stmt, error)
	Execute(ctx context.Context, stmt *builder.Compiled, values map[string]any) (*Result, error)
	Explorer() Explorer
	Configurator() Configurator
	// Pin returns a Connection bound to a single session. Closing it hands
	// the session back to the pool.
	Pin(ctx context.Context) (Connection, error)
	Close() error
}

// Result is the outcome of Execute. Queries fill Columns and Rows, other
// statements fill RowsAffected and, where the driver reports it, LastInsertID.
type Result struct {
	Columns      []string
	Rows         [][]any
	RowsAffected int64
	LastInsertID int64
}

// Config describes one database to connect to.
type Config struct {
	Name   string
	Driver string
	DSN    string
	// Dialect overrides the dialect derived from Driver.
	Dialect string
}

type Option func(*DB)

// WithNamespace sets the namespace the Explorer reads. The dialect default
// is used otherwise.
func WithNamespace(ns string) Option {
	return func(c *DB) { c.namespace = ns }
}

func WithLogger(l *logger.Logger) Option {
	return func(c *DB) { c.log = logger.OrNop(l) }
}

// WithPool tunes the connection pool of a DB created by Open.
func WithPool(maxOpen, maxIdle int, lifetime time.Duration) Option {
	return func(c *DB) {
		c.pool = func(db *sql.DB) {
			db.SetMaxOpenConns(maxOpen)
			db.SetMaxIdleConns(maxIdle)
			db.SetConnMaxLifetime(lifetime)
		}
	}
}

// WithConnectTimeout bounds the ping made by Open.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *DB) { c.connectTimeout = d }
}

// session is satisfied by *sql.DB and *sql.Conn.
type session interface {
	dialect.Session
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// DB is a Connection backed by database/sql. It is safe for concurrent use
// unless pinned.
type DB struct {
	name      string
	db        *sql.DB
	run       session
	dialect   dialect.Dialect
	namespace string
	log       *logger.Logger
	explorer  *explorer
	builder   *builder.Builder

	pool           func(*sql.DB)
	connectTimeout time.Duration
	close          func() error
}

// Open connects to cfg and pings the server before returning.
func Open(ctx context.Context, cfg Config, opts ...Option) (*DB, error) {
	name := cfg.Dialect
	if name == "" {
		var err error
		if name, err = DialectFor(cfg.Driver); err != nil {
			return nil, err
		}
	}
	d, err := dialect.Get(name)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, mapError(cfg.Name, err, errs.KindConnection, "invalid DSN")
	}
	c := New(db, d, cfg.Name, opts...)
	if c.pool != nil {
		c.pool(db)
	}

	pingCtx := ctx
	if c.connectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, c.connectTimeout)
		defer cancel()
	}
	if err := c.Ping(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	c.log.With().Str("driver", cfg.Driver).Str("dialect", d.Name()).Logger().Debug("connected")
	return c, nil
}

// New wraps an open pool. Closing the returned DB closes db.
func New(db *sql.DB, d dialect.Dialect, name string, opts ...Option) *DB {
	c := &DB{
		name:    name,
		db:      db,
		run:     db,
		dialect: d,
		log:     logger.Nop(),
		close:   db.Close,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With().Str("connection", name).Logger()
	c.builder = builder.New(d, builder.WithLogger(c.log))
	c.explorer = &explorer{conn: c}
	return c
}

func (c *DB) Name() string { return c.name }

func (c *DB) Dialect() dialect.Dialect { return c.dialect }

func (c *DB) Explorer() Explorer { return c.explorer }

func (c *DB) Configurator() Configurator { return configurator{conn: c} }

func (c *DB) Ping(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return mapError(c.name, err, errs.KindConnection, "ping failed")
	}
	return nil
}

func (c *DB) Close() error {
	if c.close == nil {
		return nil
	}
	return c.close()
}

// Pin reserves one session of the pool. A pinned DB shares the Explorer
// cache of the DB it came from; pinning it again returns a view of the same
// session whose Close does nothing.
func (c *DB) Pin(ctx context.Context) (Connection, error) {
	p := *c
	if _, ok := c.run.(*sql.Conn); ok {
		p.close = nil
		return &p, nil
	}
	conn, err := c.db.Conn(ctx)
	if err != nil {
		return nil, mapError(c.name, err, errs.KindConnection, "cannot reserve a session")
	}
	p.run = conn
	p.close = conn.Close
	return &p, nil
}

func (c *DB) Prepare(ctx context.Context, text string) (*sql.Stmt, error) {
	st, err := c.run.PrepareContext(ctx, text)
	if err != nil {
		return nil, mapError(c.name, err, errs.KindQueryFailed, "prepare failed")
	}
	return st, nil
}

// Execute binds values to stmt and runs it. SELECT statements are read into
// memory.
func (c *DB) Execute(ctx context.Context, stmt *builder.Compiled, values map[string]any) (*Result, error) {
	args, err := stmt.Args(values)
	if err != nil {
		return nil, err
	}
	c.log.With().Str("sql", stmt.SQL).Int("args", len(args)).Logger().Debug("execute")

	if stmt.Type == query.StatementSelect {
		rows, err := c.run.QueryContext(ctx, stmt.SQL, args...)
		if err != nil {
			return nil, mapError(c.name, err, errs.KindQueryFailed, "query failed")
		}
		defer rows.Close()
		return c.collect(rows)
	}

	res, err := c.run.ExecContext(ctx, stmt.SQL, args...)
	if err != nil {
		return nil, mapError(c.name, err, errs.KindQueryFailed, "statement failed")
	}
	out := &Result{}
	// drivers that cannot report these return an error, which is not a failure
	if n, err := res.RowsAffected(); err == nil {
		out.RowsAffected = n
	}
	if id, err := res.LastInsertId(); err == nil {
		out.LastInsertID = id
	}
	return out, nil
}

func (c *DB) collect(rows *sql.Rows) (*Result, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, mapError(c.name, err, errs.KindQueryFailed, "cannot read columns")
	}
	out := &Result{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, mapError(c.name, err, errs.KindQueryFailed, "scan failed")
		}
		for i, v := range vals {
			// the driver may reuse the buffer on the next row
			if b, ok := v.([]byte); ok {
				vals[i] = append([]byte(nil), b...)
			}
		}
		out.Rows = append(out.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(c.name, err, errs.KindQueryFailed, "error iterating rows")
	}
	return out, nil
}

// HasRows reports whether t holds at least one row.
func (c *DB) HasRows(ctx context.Context, t *schema.Table) (bool, error) {
	stmt, err := c.builder.Build(&query.Select{
		Columns: []query.Node{query.Lit(1)},
		From:    []query.TableExpr{&query.TableRef{Name: query.TableName(c.dialect, t)}},
		Limit:   1,
	}, nil)
	if err != nil {
		return false, err
	}
	res, err := c.Execute(ctx, stmt, nil)
	if err != nil {
		return false, err
	}
	return len(res.Rows) > 0, nil
}
