// Package engine runs work against a live connection: migration plans, fake
// data and table cleanup.
package engine

import (
	"context"
	"errors"
	"fmt"

	"db-forge/internal/builder"
	"db-forge/internal/connection"
	"db-forge/internal/logger"
	"db-forge/internal/planner"
)

// ErrorPolicy decides whether execution goes on after op failed.
type ErrorPolicy func(op *planner.Operation, err error) bool

// Progress is called after each executed statement. done counts statements,
// failed ones included.
type Progress func(op *planner.Operation, stmt *builder.Compiled, done, total int)

type ExecutorOption func(*Executor)

// WithErrorPolicy replaces the default policy, which aborts on the first error.
func WithErrorPolicy(p ErrorPolicy) ExecutorOption {
	return func(e *Executor) { e.onError = p }
}

// ContinueOnError keeps executing after a failed operation. The remaining
// statements of the failed operation are skipped.
func ContinueOnError() ExecutorOption {
	return WithErrorPolicy(func(*planner.Operation, error) bool { return true })
}

func WithProgress(p Progress) ExecutorOption {
	return func(e *Executor) { e.progress = p }
}

func WithLogger(l *logger.Logger) ExecutorOption {
	return func(e *Executor) { e.log = l }
}

// Failure is an operation that did not complete.
type Failure struct {
	Op  *planner.Operation
	Err error
}

// Report summarizes an execution.
type Report struct {
	// Executed counts statements that succeeded.
	Executed int
	Failed   []Failure
}

// Err joins the errors of all failures, or returns nil.
func (r *Report) Err() error {
	out := make([]error, len(r.Failed))
	for i, f := range r.Failed {
		out[i] = f.Err
	}
	return errors.Join(out...)
}

// Executor applies a plan to a connection.
type Executor struct {
	planner  *planner.Planner
	log      *logger.Logger
	onError  ErrorPolicy
	progress Progress
}

func NewExecutor(p *planner.Planner, opts ...ExecutorOption) *Executor {
	e := &Executor{planner: p}
	for _, o := range opts {
		o(e)
	}
	e.log = logger.OrNop(e.log)
	return e
}

type step struct {
	op   *planner.Operation
	stmt *builder.Compiled
}

// Execute runs every statement of plan, in order, on one session of conn with
// constraint enforcement disabled. Enforcement is restored before returning,
// also when execution fails. The returned error is the first failure that
// stopped execution; failures let through by the error policy are only in
// the Report.
func (e *Executor) Execute(ctx context.Context, conn connection.Connection, plan *planner.Plan) (report *Report, err error) {
	report = &Report{}
	var steps []step
	for _, op := range plan.Operations {
		stmts, err := e.planner.Compile(op)
		if err != nil {
			return report, fmt.Errorf("%s: %w", op, err)
		}
		for _, s := range stmts {
			steps = append(steps, step{op: op, stmt: s})
		}
	}
	if len(steps) == 0 {
		return report, nil
	}

	session, err := conn.Pin(ctx)
	if err != nil {
		return report, err
	}
	defer session.Close()
	// the cached structure no longer matches once anything ran
	defer session.Explorer().Invalidate()

	cfg := session.Configurator()
	if err := cfg.DisableConstraints(ctx); err != nil {
		return report, err
	}
	defer func() {
		if rerr := cfg.EnableConstraints(context.WithoutCancel(ctx)); rerr != nil {
			e.log.ErrorWith("cannot restore constraint enforcement", rerr, nil)
			if err == nil {
				err = rerr
			}
		}
	}()

	log := e.log.With().Str("connection", conn.Name()).Int("statements", len(steps)).Logger()
	log.Info("executing plan")

	var skip *planner.Operation
	for i, s := range steps {
		if s.op == skip {
			continue
		}
		_, xerr := session.Execute(ctx, s.stmt, nil)
		if e.progress != nil {
			e.progress(s.op, s.stmt, i+1, len(steps))
		}
		if xerr == nil {
			report.Executed++
			continue
		}

		xerr = fmt.Errorf("%s: %w", s.op, xerr)
		report.Failed = append(report.Failed, Failure{Op: s.op, Err: xerr})
		if e.onError == nil || !e.onError(s.op, xerr) {
			log.With().Str("sql", s.stmt.SQL).Err(xerr).Logger().Error("plan aborted")
			return report, xerr
		}
		log.With().Str("sql", s.stmt.SQL).Err(xerr).Logger().Warn("operation failed, continuing")
		skip = s.op
	}
	log.With().Int("executed", report.Executed).Int("failed", len(report.Failed)).Logger().Info("plan executed")
	return report, nil
}
