package engine_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"db-forge/internal/builder"
	"db-forge/internal/connection"
	"db-forge/internal/dialect"
	"db-forge/internal/engine"
	"db-forge/internal/errs"
	"db-forge/internal/planner"
	"db-forge/internal/schema"
)

func mockConn(t *testing.T) (*connection.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mk, err := sqlmock.New()
	require.NoError(t, err)
	d, err := dialect.Get("sqlite")
	require.NoError(t, err)
	conn := connection.New(db, d, "test")
	t.Cleanup(func() { _ = conn.Close() })
	return conn, mk
}

func structure(t *testing.T, tables ...*schema.Table) *schema.Datasource {
	t.Helper()
	ds := schema.NewDatasource("db")
	ns := schema.NewNamespace("main")
	for _, tbl := range tables {
		require.NoError(t, ns.Add(tbl))
	}
	require.NoError(t, ds.Add(ns))
	return ds
}

func simpleTable(t *testing.T, name string) *schema.Table {
	t.Helper()
	tbl := schema.NewTable(name)
	require.NoError(t, tbl.Add(
		schema.NewColumn("id", schema.Integer),
		schema.NewColumn("label", schema.String|schema.Null),
		schema.NewPrimaryKey("", "id"),
	))
	return tbl
}

// twoTables plans the creation of two unrelated tables, one statement each.
func twoTables(t *testing.T) (*planner.Planner, *planner.Plan, []*builder.Compiled) {
	t.Helper()
	d, err := dialect.Get("sqlite")
	require.NoError(t, err)
	p := planner.New(d)
	plan, err := p.Plan(context.Background(), structure(t), structure(t, simpleTable(t, "alpha"), simpleTable(t, "beta")))
	require.NoError(t, err)
	script, err := p.Script(plan)
	require.NoError(t, err)
	require.Len(t, script, 2)
	return p, plan, script
}

func TestExecuteRunsPlanInOrder(t *testing.T) {
	p, plan, script := twoTables(t)
	conn, mk := mockConn(t)

	mk.ExpectExec("PRAGMA foreign_keys = OFF").WillReturnResult(sqlmock.NewResult(0, 0))
	for _, s := range script {
		mk.ExpectExec(regexp.QuoteMeta(s.SQL)).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mk.ExpectExec("PRAGMA foreign_keys = ON").WillReturnResult(sqlmock.NewResult(0, 0))

	var done []int
	exec := engine.NewExecutor(p, engine.WithProgress(func(_ *planner.Operation, _ *builder.Compiled, n, total int) {
		assert.Equal(t, 2, total)
		done = append(done, n)
	}))
	report, err := exec.Execute(context.Background(), conn, plan)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Executed)
	assert.Empty(t, report.Failed)
	assert.NoError(t, report.Err())
	assert.Equal(t, []int{1, 2}, done)
	require.NoError(t, mk.ExpectationsWereMet())
}

func TestExecuteAbortsAndRestoresConstraints(t *testing.T) {
	p, plan, script := twoTables(t)
	conn, mk := mockConn(t)

	mk.ExpectExec("PRAGMA foreign_keys = OFF").WillReturnResult(sqlmock.NewResult(0, 0))
	mk.ExpectExec(regexp.QuoteMeta(script[0].SQL)).WillReturnError(errors.New("disk full"))
	mk.ExpectExec("PRAGMA foreign_keys = ON").WillReturnResult(sqlmock.NewResult(0, 0))

	report, err := engine.NewExecutor(p).Execute(context.Background(), conn, plan)
	require.Error(t, err)
	assert.True(t, errs.IsQueryFailed(err))
	assert.Contains(t, err.Error(), "CREATE TABLE")
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 0, report.Executed)
	require.Len(t, report.Failed, 1)
	assert.Same(t, plan.Operations[0], report.Failed[0].Op)
	require.NoError(t, mk.ExpectationsWereMet())
}

func TestExecuteContinuesOnError(t *testing.T) {
	p, plan, script := twoTables(t)
	conn, mk := mockConn(t)

	mk.ExpectExec("PRAGMA foreign_keys = OFF").WillReturnResult(sqlmock.NewResult(0, 0))
	mk.ExpectExec(regexp.QuoteMeta(script[0].SQL)).WillReturnError(errors.New("exists"))
	mk.ExpectExec(regexp.QuoteMeta(script[1].SQL)).WillReturnResult(sqlmock.NewResult(0, 0))
	mk.ExpectExec("PRAGMA foreign_keys = ON").WillReturnResult(sqlmock.NewResult(0, 0))

	report, err := engine.NewExecutor(p, engine.ContinueOnError()).Execute(context.Background(), conn, plan)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Executed)
	require.Len(t, report.Failed, 1)
	assert.ErrorContains(t, report.Err(), "exists")
	require.NoError(t, mk.ExpectationsWereMet())
}

func TestExecutePolicySeesOperation(t *testing.T) {
	p, plan, script := twoTables(t)
	conn, mk := mockConn(t)

	mk.ExpectExec("PRAGMA foreign_keys = OFF").WillReturnResult(sqlmock.NewResult(0, 0))
	mk.ExpectExec(regexp.QuoteMeta(script[0].SQL)).WillReturnError(errors.New("exists"))
	mk.ExpectExec("PRAGMA foreign_keys = ON").WillReturnResult(sqlmock.NewResult(0, 0))

	var asked []*planner.Operation
	policy := func(op *planner.Operation, err error) bool {
		asked = append(asked, op)
		return false
	}
	_, err := engine.NewExecutor(p, engine.WithErrorPolicy(policy)).Execute(context.Background(), conn, plan)
	require.Error(t, err)
	assert.Equal(t, []*planner.Operation{plan.Operations[0]}, asked)
	require.NoError(t, mk.ExpectationsWereMet())
}

func TestExecuteEmptyPlanTouchesNothing(t *testing.T) {
	d, err := dialect.Get("sqlite")
	require.NoError(t, err)
	conn, mk := mockConn(t)

	report, err := engine.NewExecutor(planner.New(d)).Execute(context.Background(), conn, &planner.Plan{})
	require.NoError(t, err)
	assert.Zero(t, report.Executed)
	require.NoError(t, mk.ExpectationsWereMet())
}
