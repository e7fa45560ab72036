package query

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"db-forge/internal/dialect"
	"db-forge/internal/errs"
	"db-forge/internal/schema"
	"db-forge/internal/token"
)

const literalTimeLayout = "2006-01-02 15:04:05"

// Literal is a constant value. With LiteralParams set it is bound as a
// parameter instead of being written into the SQL.
type Literal struct {
	Value any
}

func Lit(v any) *Literal { return &Literal{Value: v} }

func (l *Literal) DataType() schema.DataType {
	switch l.Value.(type) {
	case nil:
		return schema.Null
	case bool:
		return schema.Boolean
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return schema.Integer
	case float32, float64:
		return schema.Float
	case decimal.Decimal:
		return schema.Number
	case string:
		return schema.String
	case []byte:
		return schema.Binary
	case time.Time:
		return schema.Timestamp
	}
	return schema.Undefined
}

func (l *Literal) Tokenize(s *token.Stream, ctx *Context) error {
	if l.Value != nil && ctx.Options.LiteralParams {
		if l.DataType() == schema.Undefined {
			return errs.Build("unsupported literal type %T", l.Value)
		}
		s.Param(ctx.bind(l.Value), l.DataType())
		return nil
	}
	switch v := l.Value.(type) {
	case nil:
		s.KeywordID(dialect.KeywordNull)
	case bool:
		if v {
			s.KeywordID(dialect.KeywordTrue)
		} else {
			s.KeywordID(dialect.KeywordFalse)
		}
	case int:
		s.Literal(strconv.Itoa(v))
	case int8:
		s.Literal(strconv.FormatInt(int64(v), 10))
	case int16:
		s.Literal(strconv.FormatInt(int64(v), 10))
	case int32:
		s.Literal(strconv.FormatInt(int64(v), 10))
	case int64:
		s.Literal(strconv.FormatInt(v, 10))
	case uint:
		s.Literal(strconv.FormatUint(uint64(v), 10))
	case uint8:
		s.Literal(strconv.FormatUint(uint64(v), 10))
	case uint16:
		s.Literal(strconv.FormatUint(uint64(v), 10))
	case uint32:
		s.Literal(strconv.FormatUint(uint64(v), 10))
	case uint64:
		s.Literal(strconv.FormatUint(v, 10))
	case float32:
		s.Literal(strconv.FormatFloat(float64(v), 'g', -1, 32))
	case float64:
		s.Literal(strconv.FormatFloat(v, 'g', -1, 64))
	case decimal.Decimal:
		s.Literal(v.String())
	case string:
		s.Literal(ctx.Dialect.QuoteString(v))
	case []byte:
		s.Literal(ctx.Dialect.QuoteBinary(v))
	case time.Time:
		s.Literal(ctx.Dialect.QuoteString(v.Format(literalTimeLayout)))
	default:
		return errs.Build("unsupported literal type %T", l.Value)
	}
	return nil
}

func (l *Literal) Traverse(v Visitor) { v(l) }

// Param is a named placeholder. The same key used twice is one parameter.
type Param struct {
	Key  string
	Type schema.DataType
}

func P(key string, t schema.DataType) *Param { return &Param{Key: key, Type: t} }

func (p *Param) DataType() schema.DataType { return p.Type }

func (p *Param) Tokenize(s *token.Stream, ctx *Context) error {
	if p.Key == "" {
		return errs.Build("parameter without a name")
	}
	s.Param(p.Key, p.Type)
	return nil
}

func (p *Param) Traverse(v Visitor) { v(p) }

// ColumnRef names a column, optionally through a table qualifier. An
// unqualified name may also be a result alias of the enclosing SELECT.
type ColumnRef struct {
	Table schema.Identifier
	Name  string
}

// Col parses a dotted reference such as "u.name".
func Col(ref string) *ColumnRef {
	id := schema.ParseIdentifier(ref)
	return &ColumnRef{Table: id.Qualifier(), Name: id.Last()}
}

func (c *ColumnRef) DataType() schema.DataType { return schema.Undefined }

func (c *ColumnRef) Tokenize(s *token.Stream, ctx *Context) error {
	if len(c.Table) == 0 {
		if _, ok := ctx.Resolver.FindAlias(c.Name); ok {
			s.Ident(ctx.quote(c.Name))
			return nil
		}
	}
	m, err := ctx.Resolver.FindColumn(c.Table, c.Name)
	if err != nil {
		return err
	}
	for _, part := range c.Table {
		s.Ident(ctx.quote(part)).Text(".")
	}
	name := m.Name
	if name == "" {
		name = c.Name
	}
	s.Ident(ctx.quote(name))
	return nil
}

func (c *ColumnRef) Traverse(v Visitor) { v(c) }

// Star is * or t.*.
type Star struct {
	Table schema.Identifier
}

func (st *Star) DataType() schema.DataType { return schema.Undefined }

func (st *Star) Tokenize(s *token.Stream, ctx *Context) error {
	for _, part := range st.Table {
		s.Ident(ctx.quote(part)).Text(".")
	}
	s.Text("*")
	return nil
}

func (st *Star) Traverse(v Visitor) { v(st) }

var binaryOps = map[string]schema.DataType{
	"=":        schema.Boolean,
	"<>":       schema.Boolean,
	"<":        schema.Boolean,
	"<=":       schema.Boolean,
	">":        schema.Boolean,
	">=":       schema.Boolean,
	"LIKE":     schema.Boolean,
	"NOT LIKE": schema.Boolean,
	"+":        schema.Number,
	"-":        schema.Number,
	"*":        schema.Number,
	"/":        schema.Number,
	"%":        schema.Number,
}

func normalizeOp(op string) string {
	op = strings.ToUpper(strings.Join(strings.Fields(op), " "))
	if op == "!=" {
		return "<>"
	}
	return op
}

// Binary is a comparison or arithmetic expression.
type Binary struct {
	Op          string
	Left, Right Node
}

func Cmp(op string, left, right Node) *Binary { return &Binary{Op: op, Left: left, Right: right} }

func Eq(left, right Node) *Binary { return Cmp("=", left, right) }

func (b *Binary) DataType() schema.DataType {
	t, ok := binaryOps[normalizeOp(b.Op)]
	if !ok || b.Left == nil || b.Right == nil {
		return schema.Undefined
	}
	if t == schema.Number {
		l, r := b.Left.DataType().Primary(), b.Right.DataType().Primary()
		if l == schema.Integer && r == schema.Integer && normalizeOp(b.Op) != "/" {
			return schema.Integer
		}
	}
	return t
}

func (b *Binary) Tokenize(s *token.Stream, ctx *Context) error {
	op := normalizeOp(b.Op)
	if _, ok := binaryOps[op]; !ok {
		return errs.Build("operator %q is not allowed", b.Op)
	}
	if b.Left == nil || b.Right == nil {
		return errs.Build("operator %s is missing an operand", op)
	}
	if err := operand(s, ctx, b.Left); err != nil {
		return err
	}
	s.Space().Keyword(op).Space()
	return operand(s, ctx, b.Right)
}

func (b *Binary) Traverse(v Visitor) {
	if v(b) {
		traverseAll(v, b.Left, b.Right)
	}
}

// Unary is NOT, negation or a NULL test.
type Unary struct {
	Op   string
	Expr Node
}

func Not(n Node) *Unary       { return &Unary{Op: "NOT", Expr: n} }
func Neg(n Node) *Unary       { return &Unary{Op: "-", Expr: n} }
func IsNull(n Node) *Unary    { return &Unary{Op: "IS NULL", Expr: n} }
func IsNotNull(n Node) *Unary { return &Unary{Op: "IS NOT NULL", Expr: n} }

func (u *Unary) DataType() schema.DataType {
	if normalizeOp(u.Op) == "-" {
		return u.Expr.DataType()
	}
	return schema.Boolean
}

func (u *Unary) Tokenize(s *token.Stream, ctx *Context) error {
	if u.Expr == nil {
		return errs.Build("operator %s is missing an operand", u.Op)
	}
	switch op := normalizeOp(u.Op); op {
	case "NOT":
		s.Keyword("NOT").Space()
		return operand(s, ctx, u.Expr)
	case "-":
		s.Text("-")
		return operand(s, ctx, u.Expr)
	case "IS NULL", "IS NOT NULL":
		if err := operand(s, ctx, u.Expr); err != nil {
			return err
		}
		s.Space().Keyword(op)
		return nil
	}
	return errs.Build("operator %q is not allowed", u.Op)
}

func (u *Unary) Traverse(v Visitor) {
	if v(u) {
		traverseAll(v, u.Expr)
	}
}

// Logic joins terms with AND or OR.
type Logic struct {
	Op    string
	Terms []Node
}

func And(terms ...Node) *Logic { return &Logic{Op: "AND", Terms: terms} }
func Or(terms ...Node) *Logic  { return &Logic{Op: "OR", Terms: terms} }

func (l *Logic) DataType() schema.DataType { return schema.Boolean }

func (l *Logic) Tokenize(s *token.Stream, ctx *Context) error {
	op := normalizeOp(l.Op)
	if op != "AND" && op != "OR" {
		return errs.Build("operator %q is not allowed", l.Op)
	}
	if len(l.Terms) == 0 {
		return errs.Build("%s without terms", op)
	}
	for i, t := range l.Terms {
		if i > 0 {
			s.Space().Keyword(op).Space()
		}
		if _, nested := t.(*Logic); nested && len(l.Terms) > 1 {
			s.Text("(")
			if err := t.Tokenize(s, ctx); err != nil {
				return err
			}
			s.Text(")")
			continue
		}
		if err := t.Tokenize(s, ctx); err != nil {
			return err
		}
	}
	return nil
}

func (l *Logic) Traverse(v Visitor) {
	if v(l) {
		traverseAll(v, l.Terms...)
	}
}

// Func calls a function by its portable name.
type Func struct {
	Name string
	Args []Node
	// Type is the result type; Undefined when unknown.
	Type schema.DataType
}

func Fn(name string, args ...Node) *Func { return &Func{Name: name, Args: args} }

func (f *Func) DataType() schema.DataType { return f.Type }

func (f *Func) Tokenize(s *token.Stream, ctx *Context) error {
	name, err := ctx.Dialect.Function(f.Name)
	if err != nil {
		return err
	}
	s.Text(name + "(")
	if err := list(s, ctx, f.Args); err != nil {
		return err
	}
	s.Text(")")
	return nil
}

func (f *Func) Traverse(v Visitor) {
	if v(f) {
		traverseAll(v, f.Args...)
	}
}

// FormatTime formats a timestamp with a date()-style layout.
type FormatTime struct {
	Value  Node
	Layout string
}

func (f *FormatTime) DataType() schema.DataType { return schema.String }

func (f *FormatTime) Tokenize(s *token.Stream, ctx *Context) error {
	tf := ctx.Dialect.FormatTime(f.Layout)
	format := ctx.Dialect.QuoteString(tf.Format)
	s.Text(tf.Name + "(")
	if tf.FormatFirst {
		s.Literal(format).Text(",").Space()
	}
	if err := f.Value.Tokenize(s, ctx); err != nil {
		return err
	}
	if !tf.FormatFirst {
		s.Text(",").Space().Literal(format)
	}
	s.Text(")")
	return nil
}

func (f *FormatTime) Traverse(v Visitor) {
	if v(f) {
		traverseAll(v, f.Value)
	}
}

// Concat joins strings with the dialect's operator, or its function when
// the dialect spells concatenation as a word.
type Concat struct {
	Parts []Node
}

func (c *Concat) DataType() schema.DataType { return schema.String }

func (c *Concat) Tokenize(s *token.Stream, ctx *Context) error {
	if len(c.Parts) == 0 {
		return errs.Build("nothing to concatenate")
	}
	spelled, err := ctx.Dialect.Keyword(dialect.KeywordConcat)
	if err != nil {
		return err
	}
	if r := []rune(spelled); len(r) > 0 && unicode.IsLetter(r[0]) {
		s.Text(spelled + "(")
		if err := list(s, ctx, c.Parts); err != nil {
			return err
		}
		s.Text(")")
		return nil
	}
	for i, p := range c.Parts {
		if i > 0 {
			s.Space().KeywordID(dialect.KeywordConcat).Space()
		}
		if err := operand(s, ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (c *Concat) Traverse(v Visitor) {
	if v(c) {
		traverseAll(v, c.Parts...)
	}
}

// In tests membership in a list or a subquery.
type In struct {
	Expr  Node
	List  []Node
	Query *Select
	Not   bool
}

func (in *In) DataType() schema.DataType { return schema.Boolean }

func (in *In) Tokenize(s *token.Stream, ctx *Context) error {
	if in.Query == nil && len(in.List) == 0 {
		return errs.Build("IN with an empty list")
	}
	if err := operand(s, ctx, in.Expr); err != nil {
		return err
	}
	if in.Not {
		s.Space().Keyword("NOT")
	}
	s.Space().Keyword("IN").Space().Text("(")
	if in.Query != nil {
		if _, err := in.Query.tokenize(s, ctx); err != nil {
			return err
		}
	} else if err := list(s, ctx, in.List); err != nil {
		return err
	}
	s.Text(")")
	return nil
}

func (in *In) Traverse(v Visitor) {
	if v(in) {
		traverseAll(v, in.Expr)
		traverseAll(v, in.List...)
		if in.Query != nil {
			in.Query.Traverse(v)
		}
	}
}

type Between struct {
	Expr, Low, High Node
	Not             bool
}

func (b *Between) DataType() schema.DataType { return schema.Boolean }

func (b *Between) Tokenize(s *token.Stream, ctx *Context) error {
	if err := operand(s, ctx, b.Expr); err != nil {
		return err
	}
	if b.Not {
		s.Space().Keyword("NOT")
	}
	s.Space().Keyword("BETWEEN").Space()
	if err := operand(s, ctx, b.Low); err != nil {
		return err
	}
	s.Space().Keyword("AND").Space()
	return operand(s, ctx, b.High)
}

func (b *Between) Traverse(v Visitor) {
	if v(b) {
		traverseAll(v, b.Expr, b.Low, b.High)
	}
}

type Exists struct {
	Query *Select
	Not   bool
}

func (e *Exists) DataType() schema.DataType { return schema.Boolean }

func (e *Exists) Tokenize(s *token.Stream, ctx *Context) error {
	if e.Not {
		s.Keyword("NOT").Space()
	}
	s.Keyword("EXISTS").Space().Text("(")
	if _, err := e.Query.tokenize(s, ctx); err != nil {
		return err
	}
	s.Text(")")
	return nil
}

func (e *Exists) Traverse(v Visitor) {
	if v(e) {
		e.Query.Traverse(v)
	}
}

// Subquery is a parenthesized SELECT used as a value.
type Subquery struct {
	Query *Select
}

func (q *Subquery) DataType() schema.DataType { return schema.Undefined }

func (q *Subquery) Tokenize(s *token.Stream, ctx *Context) error {
	s.Text("(")
	if _, err := q.Query.tokenize(s, ctx); err != nil {
		return err
	}
	s.Text(")")
	return nil
}

func (q *Subquery) Traverse(v Visitor) {
	if v(q) {
		q.Query.Traverse(v)
	}
}

// Aliased names a result column.
type Aliased struct {
	Expr  Node
	Alias string
}

func As(n Node, alias string) *Aliased { return &Aliased{Expr: n, Alias: alias} }

func (a *Aliased) DataType() schema.DataType { return a.Expr.DataType() }

func (a *Aliased) Tokenize(s *token.Stream, ctx *Context) error {
	if a.Alias == "" {
		return errs.Build("empty alias")
	}
	if err := operand(s, ctx, a.Expr); err != nil {
		return err
	}
	s.Space().Keyword("AS").Space().Ident(ctx.quote(a.Alias))
	return nil
}

func (a *Aliased) Traverse(v Visitor) {
	if v(a) {
		traverseAll(v, a.Expr)
	}
}

// Raw is SQL written as is, such as a stored check expression.
type Raw struct {
	SQL  string
	Type schema.DataType
}

func (r *Raw) DataType() schema.DataType { return r.Type }

func (r *Raw) Tokenize(s *token.Stream, ctx *Context) error {
	s.Text(r.SQL)
	return nil
}

func (r *Raw) Traverse(v Visitor) { v(r) }
