package query

import (
	"strconv"

	"db-forge/internal/dialect"
	"db-forge/internal/errs"
	"db-forge/internal/resolver"
	"db-forge/internal/schema"
	"db-forge/internal/token"
)

// TableExpr is a row source in a FROM clause.
type TableExpr interface {
	Node
	tableExpr()
}

// TableRef names a table or view, optionally under an alias.
type TableRef struct {
	Name  schema.Identifier
	Alias string
}

func Table(name string) *TableRef { return &TableRef{Name: schema.ParseIdentifier(name)} }

func (t *TableRef) As(alias string) *TableRef {
	t.Alias = alias
	return t
}

func (t *TableRef) tableExpr() {}

func (t *TableRef) DataType() schema.DataType { return schema.Undefined }

// Tokenize writes the alias without AS, which every dialect accepts for
// tables.
func (t *TableRef) Tokenize(s *token.Stream, ctx *Context) error {
	m, err := ctx.Resolver.FindTable(t.Name)
	if err != nil {
		return err
	}
	if err := ctx.Resolver.DeclareTable(t.Alias, m); err != nil {
		return err
	}
	qualifiedIdent(s, ctx, t.Name)
	if t.Alias != "" {
		s.Space().Ident(ctx.quote(t.Alias))
	}
	return nil
}

func (t *TableRef) Traverse(v Visitor) { v(t) }

func qualifiedIdent(s *token.Stream, ctx *Context, id schema.Identifier) {
	for i, part := range id {
		if i > 0 {
			s.Text(".")
		}
		s.Ident(ctx.quote(part))
	}
}

// Join combines two row sources.
type Join struct {
	Left, Right TableExpr
	Flags       dialect.JoinFlag
	On          Node
	Using       []string
}

func (j *Join) tableExpr() {}

func (j *Join) DataType() schema.DataType { return schema.Undefined }

func (j *Join) Tokenize(s *token.Stream, ctx *Context) error {
	if j.Flags&(dialect.JoinNatural|dialect.JoinCross) != 0 && (j.On != nil || len(j.Using) > 0) {
		return errs.Build("NATURAL and CROSS joins take no join condition")
	}
	if j.On != nil && len(j.Using) > 0 {
		return errs.Build("join has both ON and USING")
	}
	op, err := ctx.Dialect.JoinOperator(j.Flags)
	if err != nil {
		return err
	}
	if err := j.Left.Tokenize(s, ctx); err != nil {
		return err
	}
	s.Space().Keyword(op).Space()
	if err := j.Right.Tokenize(s, ctx); err != nil {
		return err
	}
	switch {
	case j.On != nil:
		s.Space().Keyword("ON").Space()
		return j.On.Tokenize(s, ctx)
	case len(j.Using) > 0:
		s.Space().Keyword("USING").Space().Text("(").Text(identList(ctx, j.Using)).Text(")")
	}
	return nil
}

func (j *Join) Traverse(v Visitor) {
	if v(j) {
		traverseAll(v, j.Left, j.Right, j.On)
	}
}

// DerivedTable is a subquery in FROM. Its result columns become the columns
// of the alias.
type DerivedTable struct {
	Query *Select
	Alias string
}

func (d *DerivedTable) tableExpr() {}

func (d *DerivedTable) DataType() schema.DataType { return schema.Undefined }

func (d *DerivedTable) Tokenize(s *token.Stream, ctx *Context) error {
	if d.Alias == "" {
		return errs.Build("derived table needs an alias")
	}
	s.Text("(")
	cols, err := d.Query.tokenize(s, ctx)
	if err != nil {
		return err
	}
	s.Text(")").Space().Ident(ctx.quote(d.Alias))
	return ctx.Resolver.DeclareTable(d.Alias, resolver.TableMatch{
		Name:    schema.Identifier{d.Alias},
		Columns: cols,
	})
}

func (d *DerivedTable) Traverse(v Visitor) {
	if v(d) {
		d.Query.Traverse(v)
	}
}

type Order struct {
	Expr Node
	Desc bool
}

// Select is a query. Limit and Offset of zero mean none.
type Select struct {
	Distinct bool
	Columns  []Node
	From     []TableExpr
	Where    Node
	GroupBy  []Node
	Having   Node
	OrderBy  []Order
	Limit    int
	Offset   int
}

func (q *Select) statement() {}

func (q *Select) DataType() schema.DataType { return schema.Undefined }

func (q *Select) Tokenize(s *token.Stream, ctx *Context) error {
	_, err := q.tokenize(s, ctx)
	return err
}

func (q *Select) Traverse(v Visitor) {
	if !v(q) {
		return
	}
	traverseAll(v, q.Columns...)
	for _, f := range q.From {
		f.Traverse(v)
	}
	traverseAll(v, q.Where)
	traverseAll(v, q.GroupBy...)
	traverseAll(v, q.Having)
	for _, o := range q.OrderBy {
		traverseAll(v, o.Expr)
	}
}

const (
	stageWhere = iota
	stageGroup
	stageHaving
	stageOrder
)

// aliasStage is the first clause that may refer to result aliases.
func aliasStage(d dialect.Dialect) int {
	switch {
	case d.Supports(dialect.FeatureAliasWhere):
		return stageWhere
	case d.Supports(dialect.FeatureAliasGroup):
		return stageGroup
	case d.Supports(dialect.FeatureAliasHaving):
		return stageHaving
	}
	return stageOrder
}

func resultName(n Node, i int) string {
	switch v := n.(type) {
	case *Aliased:
		return v.Alias
	case *ColumnRef:
		return v.Name
	}
	return "column_" + strconv.Itoa(i+1)
}

// tokenize writes the query and returns its result columns. The FROM clause
// is tokenized first so its tables are declared before any column resolves.
func (q *Select) tokenize(s *token.Stream, ctx *Context) ([]resolver.ResultColumn, error) {
	ctx.SetType(StatementSelect)
	r := ctx.Resolver
	r.PushScope()
	defer r.PopScope()
	ctx.depth++
	defer func() { ctx.depth-- }()

	from := &token.Stream{}
	for i, t := range q.From {
		if i > 0 {
			from.Text(",").Space()
		}
		if err := t.Tokenize(from, ctx); err != nil {
			return nil, err
		}
	}

	d := ctx.Dialect
	style := d.Style(dialect.FeatureLimitStyle)
	top := style == "offset_fetch" && d.Supports(dialect.FeatureLimitTop) && q.Limit > 0 && q.Offset == 0

	s.Keyword("SELECT")
	if q.Distinct {
		s.Space().Keyword("DISTINCT")
	}
	if top {
		s.Space().Keyword("TOP").Space().Literal(strconv.Itoa(q.Limit))
	}
	s.Space()

	var cols []resolver.ResultColumn
	if len(q.Columns) == 0 {
		s.Text("*")
	}
	for i, c := range q.Columns {
		if i > 0 {
			s.Text(",").Space()
		}
		if err := c.Tokenize(s, ctx); err != nil {
			return nil, err
		}
		if _, ok := c.(*Star); !ok {
			cols = append(cols, resolver.ResultColumn{Name: resultName(c, i), Type: typeOf(ctx, c)})
		}
	}

	if len(q.From) > 0 {
		s.Space().Keyword("FROM").Space().Append(from)
	}

	stage := aliasStage(d)
	declare := func(at int) error {
		if at != stage {
			return nil
		}
		for _, c := range q.Columns {
			if a, ok := c.(*Aliased); ok {
				if err := r.DeclareAlias(a.Alias, typeOf(ctx, a.Expr)); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := declare(stageWhere); err != nil {
		return nil, err
	}
	if q.Where != nil {
		s.Space().Keyword("WHERE").Space()
		if err := q.Where.Tokenize(s, ctx); err != nil {
			return nil, err
		}
	}
	if err := declare(stageGroup); err != nil {
		return nil, err
	}
	if len(q.GroupBy) > 0 {
		s.Space().Keyword("GROUP BY").Space()
		if err := list(s, ctx, q.GroupBy); err != nil {
			return nil, err
		}
	}
	if err := declare(stageHaving); err != nil {
		return nil, err
	}
	if q.Having != nil {
		s.Space().Keyword("HAVING").Space()
		if err := q.Having.Tokenize(s, ctx); err != nil {
			return nil, err
		}
	}
	if err := declare(stageOrder); err != nil {
		return nil, err
	}
	if len(q.OrderBy) > 0 {
		s.Space().Keyword("ORDER BY").Space()
		for i, o := range q.OrderBy {
			if i > 0 {
				s.Text(",").Space()
			}
			if err := o.Expr.Tokenize(s, ctx); err != nil {
				return nil, err
			}
			if o.Desc {
				s.Space().Keyword("DESC")
			}
		}
	}
	if err := q.limit(s, d, style, top); err != nil {
		return nil, err
	}

	if ctx.depth == 1 && ctx.Type() == StatementSelect {
		ctx.columns = cols
	}
	return cols, nil
}

func (q *Select) limit(s *token.Stream, d dialect.Dialect, style string, top bool) error {
	if q.Limit < 0 || q.Offset < 0 {
		return errs.Build("negative LIMIT or OFFSET")
	}
	if style == "offset_fetch" {
		if top || (q.Limit == 0 && q.Offset == 0) {
			return nil
		}
		if len(q.OrderBy) == 0 && d.Supports(dialect.FeatureOffsetNeedsOrder) {
			s.Space().Keyword("ORDER BY").Space().Text("(").Keyword("SELECT").Space().KeywordID(dialect.KeywordNull).Text(")")
		}
		s.Space().Keyword("OFFSET").Space().Literal(strconv.Itoa(q.Offset)).Space().Keyword("ROWS")
		if q.Limit > 0 {
			s.Space().Keyword("FETCH NEXT").Space().Literal(strconv.Itoa(q.Limit)).Space().Keyword("ROWS ONLY")
		}
		return nil
	}
	if q.Limit > 0 {
		s.Space().Keyword("LIMIT").Space().Literal(strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		if q.Limit == 0 && !d.Supports(dialect.FeatureOffsetOnly) {
			return errs.Build("OFFSET without LIMIT is not supported by %s", d.Name())
		}
		s.Space().Keyword("OFFSET").Space().Literal(strconv.Itoa(q.Offset))
	}
	return nil
}
