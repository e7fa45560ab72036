package query

import (
	"db-forge/internal/dialect"
	"db-forge/internal/errs"
	"db-forge/internal/schema"
	"db-forge/internal/token"
)

var errNoValues = errs.Build("statement has no column values")

// TableName is how DML statements address t: qualified by its namespace when
// the dialect has namespaces.
func TableName(d dialect.Dialect, t *schema.Table) schema.Identifier {
	if ns := namespaceOf(t); ns != nil && d.Supports(dialect.FeatureNamespace) {
		return schema.Identifier{ns.Name(), t.Name()}
	}
	return schema.Identifier{t.Name()}
}

// Assignment is one column = value pair of an UPDATE.
type Assignment struct {
	Column string
	Value  Node
}

// target resolves and declares the table a DML statement writes to.
func target(s *token.Stream, ctx *Context, name schema.Identifier) error {
	m, err := ctx.Resolver.FindTable(name)
	if err != nil {
		return err
	}
	if err := ctx.Resolver.DeclareTable("", m); err != nil {
		return err
	}
	qualifiedIdent(s, ctx, name)
	return nil
}

func checkColumn(ctx *Context, name string) (string, error) {
	m, err := ctx.Resolver.FindColumn(nil, name)
	if err != nil {
		return "", err
	}
	if m.Name != "" {
		return m.Name, nil
	}
	return name, nil
}

// Insert writes rows of values, or the result of a query.
type Insert struct {
	Table   schema.Identifier
	Columns []string
	Rows    [][]Node
	Query   *Select
}

func (i *Insert) statement() {}

func (i *Insert) DataType() schema.DataType { return schema.Undefined }

func (i *Insert) Tokenize(s *token.Stream, ctx *Context) error {
	ctx.SetType(StatementInsert)
	if len(i.Columns) == 0 || (i.Query == nil && len(i.Rows) == 0) {
		return errNoValues
	}
	ctx.Resolver.PushScope()
	defer ctx.Resolver.PopScope()

	s.Keyword("INSERT INTO").Space()
	if err := target(s, ctx, i.Table); err != nil {
		return err
	}
	s.Space().Text("(")
	for n, c := range i.Columns {
		name, err := checkColumn(ctx, c)
		if err != nil {
			return err
		}
		if n > 0 {
			s.Text(",").Space()
		}
		s.Ident(ctx.quote(name))
	}
	s.Text(")").Space()

	if i.Query != nil {
		_, err := i.Query.tokenize(s, ctx)
		return err
	}
	s.Keyword("VALUES").Space()
	for n, row := range i.Rows {
		if len(row) != len(i.Columns) {
			return errs.Build("row %d has %d values for %d columns", n+1, len(row), len(i.Columns))
		}
		if n > 0 {
			s.Text(",").Space()
		}
		s.Text("(")
		if err := list(s, ctx, row); err != nil {
			return err
		}
		s.Text(")")
	}
	return nil
}

func (i *Insert) Traverse(v Visitor) {
	if !v(i) {
		return
	}
	for _, row := range i.Rows {
		traverseAll(v, row...)
	}
	if i.Query != nil {
		i.Query.Traverse(v)
	}
}

type Update struct {
	Table schema.Identifier
	Set   []Assignment
	Where Node
}

func (u *Update) statement() {}

func (u *Update) DataType() schema.DataType { return schema.Undefined }

func (u *Update) Tokenize(s *token.Stream, ctx *Context) error {
	ctx.SetType(StatementUpdate)
	if len(u.Set) == 0 {
		return errNoValues
	}
	ctx.Resolver.PushScope()
	defer ctx.Resolver.PopScope()

	s.Keyword("UPDATE").Space()
	if err := target(s, ctx, u.Table); err != nil {
		return err
	}
	s.Space().Keyword("SET").Space()
	for n, a := range u.Set {
		name, err := checkColumn(ctx, a.Column)
		if err != nil {
			return err
		}
		if n > 0 {
			s.Text(",").Space()
		}
		s.Ident(ctx.quote(name)).Space().Text("=").Space()
		if err := a.Value.Tokenize(s, ctx); err != nil {
			return err
		}
	}
	if u.Where != nil {
		s.Space().Keyword("WHERE").Space()
		return u.Where.Tokenize(s, ctx)
	}
	return nil
}

func (u *Update) Traverse(v Visitor) {
	if !v(u) {
		return
	}
	for _, a := range u.Set {
		traverseAll(v, a.Value)
	}
	traverseAll(v, u.Where)
}

type Delete struct {
	Table schema.Identifier
	Where Node
}

func (d *Delete) statement() {}

func (d *Delete) DataType() schema.DataType { return schema.Undefined }

func (d *Delete) Tokenize(s *token.Stream, ctx *Context) error {
	ctx.SetType(StatementDelete)
	ctx.Resolver.PushScope()
	defer ctx.Resolver.PopScope()

	s.Keyword("DELETE FROM").Space()
	if err := target(s, ctx, d.Table); err != nil {
		return err
	}
	if d.Where != nil {
		s.Space().Keyword("WHERE").Space()
		return d.Where.Tokenize(s, ctx)
	}
	return nil
}

func (d *Delete) Traverse(v Visitor) {
	if v(d) {
		traverseAll(v, d.Where)
	}
}
