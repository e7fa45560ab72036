package planner

import (
	"fmt"

	"db-forge/internal/builder"
	"db-forge/internal/dialect"
	"db-forge/internal/errs"
	"db-forge/internal/query"
	"db-forge/internal/schema"
)

type dispatchKey struct {
	op   OpType
	kind schema.Kind
}

type statementFunc func(d dialect.Dialect, op *Operation) ([]query.Statement, error)

// dispatch maps an operation on a kind of element to its statements.
var dispatch = map[dispatchKey]statementFunc{
	{OpCreate, schema.KindNamespace}: func(_ dialect.Dialect, op *Operation) ([]query.Statement, error) {
		return one(&query.CreateNamespace{Namespace: op.Element.(*schema.Namespace)})
	},
	{OpDrop, schema.KindNamespace}: func(_ dialect.Dialect, op *Operation) ([]query.Statement, error) {
		return one(&query.DropNamespace{Namespace: op.Element.(*schema.Namespace)})
	},
	{OpRename, schema.KindNamespace}: func(_ dialect.Dialect, op *Operation) ([]query.Statement, error) {
		return one(&query.RenameNamespace{Namespace: op.Element.(*schema.Namespace), Name: op.Target.Name()})
	},

	{OpCreate, schema.KindTable}: func(_ dialect.Dialect, op *Operation) ([]query.Statement, error) {
		return createTable(op.Element.(*schema.Table)), nil
	},
	{OpDrop, schema.KindTable}: func(_ dialect.Dialect, op *Operation) ([]query.Statement, error) {
		return one(&query.DropTable{Table: op.Element.(*schema.Table)})
	},
	{OpRename, schema.KindTable}: func(_ dialect.Dialect, op *Operation) ([]query.Statement, error) {
		return one(&query.RenameTable{Table: op.Element.(*schema.Table), Name: op.Target.Name()})
	},
	{OpBackup, schema.KindTable}:  backupTable,
	{OpRestore, schema.KindTable}: restoreTable,

	{OpCreate, schema.KindView}: func(_ dialect.Dialect, op *Operation) ([]query.Statement, error) {
		return one(&query.CreateView{View: op.Element.(*schema.View)})
	},
	{OpDrop, schema.KindView}: func(_ dialect.Dialect, op *Operation) ([]query.Statement, error) {
		return one(&query.DropView{View: op.Element.(*schema.View)})
	},
	{OpRename, schema.KindView}: func(_ dialect.Dialect, op *Operation) ([]query.Statement, error) {
		return one(&query.RenameView{View: op.Element.(*schema.View), Name: op.Target.Name()})
	},

	{OpCreate, schema.KindColumn}: func(_ dialect.Dialect, op *Operation) ([]query.Statement, error) {
		col := op.Element.(*schema.Column)
		return alterTable(col, &query.AddColumn{Column: col})
	},
	{OpDrop, schema.KindColumn}: func(_ dialect.Dialect, op *Operation) ([]query.Statement, error) {
		return alterTable(op.Element, &query.DropColumn{Name: op.Element.Name()})
	},
	{OpRename, schema.KindColumn}: func(_ dialect.Dialect, op *Operation) ([]query.Statement, error) {
		return alterTable(op.Element, &query.RenameColumn{Name: op.Element.Name(), To: op.Target.Name()})
	},
	{OpAlter, schema.KindColumn}: func(_ dialect.Dialect, op *Operation) ([]query.Statement, error) {
		return alterTable(op.Element, &query.AlterColumn{Column: op.Target.(*schema.Column)})
	},

	{OpCreate, schema.KindIndex}: func(_ dialect.Dialect, op *Operation) ([]query.Statement, error) {
		return one(&query.CreateIndex{Index: op.Element.(*schema.Index)})
	},
	{OpDrop, schema.KindIndex}: func(_ dialect.Dialect, op *Operation) ([]query.Statement, error) {
		return one(&query.DropIndex{Index: op.Element.(*schema.Index)})
	},
	{OpRename, schema.KindIndex}: func(_ dialect.Dialect, op *Operation) ([]query.Statement, error) {
		return one(&query.RenameIndex{Index: op.Element.(*schema.Index), Name: op.Target.Name()})
	},

	{OpCreate, schema.KindPrimaryKey}: addConstraint,
	{OpDrop, schema.KindPrimaryKey}:   dropConstraint,
	{OpCreate, schema.KindUnique}:     addConstraint,
	{OpDrop, schema.KindUnique}:       dropConstraint,
	{OpCreate, schema.KindCheck}:      addConstraint,
	{OpDrop, schema.KindCheck}:        dropConstraint,
	{OpCreate, schema.KindForeignKey}: addConstraint,
	{OpDrop, schema.KindForeignKey}:   dropConstraint,
}

func addConstraint(_ dialect.Dialect, op *Operation) ([]query.Statement, error) {
	return alterTable(op.Element, &query.AddConstraint{Constraint: op.Element})
}

func dropConstraint(_ dialect.Dialect, op *Operation) ([]query.Statement, error) {
	return alterTable(op.Element, &query.DropConstraint{Constraint: op.Element})
}

func one(s query.Statement) ([]query.Statement, error) { return []query.Statement{s}, nil }

func alterTable(child schema.Element, action query.AlterAction) ([]query.Statement, error) {
	t, ok := child.Parent().(*schema.Table)
	if !ok {
		return nil, errs.Build("%s does not belong to a table", schema.Describe(child))
	}
	return one(&query.AlterTable{Table: t, Action: action})
}

// createTable creates t and its indexes, which CREATE TABLE cannot declare.
func createTable(t *schema.Table) []query.Statement {
	out := []query.Statement{&query.CreateTable{Table: t}}
	for _, idx := range t.Indexes() {
		out = append(out, &query.CreateIndex{Index: idx})
	}
	return out
}

// copyRows selects columns from one table into another.
func copyRows(d dialect.Dialect, from, to *schema.Table, mapping []ColumnMapping) *query.Insert {
	cols := make([]query.Node, len(mapping))
	names := make([]string, len(mapping))
	for i, m := range mapping {
		cols[i] = query.Col(m.From)
		names[i] = m.To
	}
	return &query.Insert{
		Table:   query.TableName(d, to),
		Columns: names,
		Query: &query.Select{
			Columns: cols,
			From:    []query.TableExpr{&query.TableRef{Name: query.TableName(d, from)}},
		},
	}
}

func backupTable(d dialect.Dialect, op *Operation) ([]query.Statement, error) {
	src, backup := op.Element.(*schema.Table), op.Target.(*schema.Table)
	mapping := make([]ColumnMapping, 0, len(backup.Columns()))
	for _, c := range backup.Columns() {
		mapping = append(mapping, ColumnMapping{From: c.Name(), To: c.Name()})
	}
	return []query.Statement{
		&query.CreateTable{Table: backup},
		copyRows(d, src, backup, mapping),
	}, nil
}

func restoreTable(d dialect.Dialect, op *Operation) ([]query.Statement, error) {
	backup, tgt := op.Element.(*schema.Table), op.Target.(*schema.Table)
	out := createTable(tgt)
	if len(op.Columns) > 0 {
		out = append(out, copyRows(d, backup, tgt, op.Columns))
	}
	return append(out, &query.DropTable{Table: backup}), nil
}

// Statements returns the statements that carry out op.
func (p *Planner) Statements(op *Operation) ([]query.Statement, error) {
	fn, ok := dispatch[dispatchKey{op.Type, op.Element.Kind()}]
	if !ok {
		return nil, errs.Build("no statement for %s on %s", op.Type, op.Element.Kind())
	}
	return fn(p.dialect, op)
}

// Compile builds the statements of op.
func (p *Planner) Compile(op *Operation) ([]*builder.Compiled, error) {
	stmts, err := p.Statements(op)
	if err != nil {
		return nil, err
	}
	out := make([]*builder.Compiled, 0, len(stmts))
	for _, st := range stmts {
		c, err := p.builder.Build(st, nil)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// Script compiles a whole plan without executing it, so type and build
// errors surface before anything touches a database.
func (p *Planner) Script(plan *Plan) ([]*builder.Compiled, error) {
	var out []*builder.Compiled
	for _, op := range plan.Operations {
		c, err := p.Compile(op)
		if err != nil {
			return nil, err
		}
		out = append(out, c...)
	}
	return out, nil
}
