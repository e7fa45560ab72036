package engine

import (
	"context"

	"db-forge/internal/builder"
	"db-forge/internal/connection"
	"db-forge/internal/logger"
	"db-forge/internal/query"
	"db-forge/internal/schema"
)

// CleanResult reports the rows deleted from one table.
type CleanResult struct {
	Table   string
	Deleted int64
	Err     error
}

// Cleaner empties tables.
type Cleaner struct {
	conn    connection.Connection
	builder *builder.Builder
	log     *logger.Logger
}

func NewCleaner(conn connection.Connection, l *logger.Logger) *Cleaner {
	l = logger.OrNop(l)
	return &Cleaner{conn: conn, builder: builder.New(conn.Dialect(), builder.WithLogger(l)), log: l}
}

// Clean deletes every row of tables, children first, on one session with
// constraint enforcement disabled. A table that cannot be emptied is
// reported and the others are still cleaned.
func (c *Cleaner) Clean(ctx context.Context, tables []*schema.Table) (results []CleanResult, err error) {
	sorted, _ := schema.SortTablesByFKCount(tables)

	session, err := c.conn.Pin(ctx)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	cfg := session.Configurator()
	if err := cfg.DisableConstraints(ctx); err != nil {
		return nil, err
	}
	defer func() {
		if rerr := cfg.EnableConstraints(context.WithoutCancel(ctx)); rerr != nil && err == nil {
			err = rerr
		}
	}()

	for i := len(sorted) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		t := sorted[i]
		res := CleanResult{Table: t.Name()}
		stmt, berr := c.builder.Build(&query.Delete{Table: query.TableName(c.conn.Dialect(), t)}, nil)
		if berr == nil {
			var out *connection.Result
			if out, berr = session.Execute(ctx, stmt, nil); berr == nil {
				res.Deleted = out.RowsAffected
			}
		}
		if berr != nil {
			res.Err = berr
			c.log.With().Str("table", t.Name()).Err(berr).Logger().Warn("cannot clean table, continuing")
		}
		results = append(results, res)
		if done := len(results); done%5 == 0 || done == len(sorted) {
			c.log.Infof("cleaned %d/%d tables", done, len(sorted))
		}
	}
	return results, nil
}
