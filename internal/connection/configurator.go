package connection

import (
	"context"
	"time"

	"db-forge/internal/errs"
)

// Configurator changes settings of the session it runs on. Settings are
// session scoped, so use it on a pinned connection.
type Configurator interface {
	DisableConstraints(ctx context.Context) error
	EnableConstraints(ctx context.Context) error
	SetTimeout(ctx context.Context, d time.Duration) error
	SetTimezone(ctx context.Context, tz string) error
}

type configurator struct {
	conn *DB
}

func (c configurator) DisableConstraints(ctx context.Context) error {
	if err := c.conn.dialect.DisableConstraints(ctx, c.conn.run); err != nil {
		return mapError(c.conn.name, err, errs.KindQueryFailed, "cannot disable constraints")
	}
	c.conn.log.Debug("constraints disabled")
	return nil
}

func (c configurator) EnableConstraints(ctx context.Context) error {
	if err := c.conn.dialect.EnableConstraints(ctx, c.conn.run); err != nil {
		return mapError(c.conn.name, err, errs.KindQueryFailed, "cannot enable constraints")
	}
	c.conn.log.Debug("constraints enabled")
	return nil
}

func (c configurator) SetTimeout(ctx context.Context, d time.Duration) error {
	stmt, err := c.conn.dialect.TimeoutStatement(d)
	if err != nil {
		return err
	}
	return c.exec(ctx, stmt, "cannot set timeout")
}

func (c configurator) SetTimezone(ctx context.Context, tz string) error {
	stmt, err := c.conn.dialect.TimezoneStatement(tz)
	if err != nil {
		return err
	}
	return c.exec(ctx, stmt, "cannot set timezone")
}

func (c configurator) exec(ctx context.Context, stmt, msg string) error {
	if _, err := c.conn.run.ExecContext(ctx, stmt); err != nil {
		return mapError(c.conn.name, err, errs.KindQueryFailed, msg)
	}
	return nil
}
