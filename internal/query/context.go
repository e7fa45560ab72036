// Package query is the statement tree. Nodes tokenize themselves against a
// dialect and a name resolver; the builder package turns the tokens into SQL.
package query

import (
	"strconv"

	"db-forge/internal/dialect"
	"db-forge/internal/resolver"
	"db-forge/internal/schema"
	"db-forge/internal/token"
)

// StatementType is the kind of statement a build produced.
type StatementType int

const (
	StatementUnknown StatementType = iota
	StatementSelect
	StatementInsert
	StatementUpdate
	StatementDelete
	StatementDDL
)

func (t StatementType) String() string {
	switch t {
	case StatementSelect:
		return "SELECT"
	case StatementInsert:
		return "INSERT"
	case StatementUpdate:
		return "UPDATE"
	case StatementDelete:
		return "DELETE"
	case StatementDDL:
		return "DDL"
	}
	return "UNKNOWN"
}

// Visitor is called for every node of a tree; returning false skips the
// node's children.
type Visitor func(Node) bool

// Node is an element of a statement tree.
type Node interface {
	DataType() schema.DataType
	Tokenize(s *token.Stream, ctx *Context) error
	Traverse(v Visitor)
}

// Statement is a node that can be built on its own.
type Statement interface {
	Node
	statement()
}

type Options struct {
	// LiteralParams turns every non-NULL literal into a bound parameter.
	LiteralParams bool
}

// Context carries the state of one build.
type Context struct {
	Dialect  dialect.Dialect
	Resolver resolver.Resolver
	Options  Options

	typ     StatementType
	values  map[string]any
	columns []resolver.ResultColumn
	depth   int
}

func NewContext(d dialect.Dialect, r resolver.Resolver, opts Options) *Context {
	return &Context{Dialect: d, Resolver: r, Options: opts, values: map[string]any{}}
}

// Type is the statement type recorded by the outermost statement.
func (c *Context) Type() StatementType { return c.typ }

// SetType records t unless a type is already set.
func (c *Context) SetType(t StatementType) {
	if c.typ == StatementUnknown {
		c.typ = t
	}
}

// Values are the literal values turned into parameters, by key.
func (c *Context) Values() map[string]any { return c.values }

// Columns are the result columns of the outermost SELECT.
func (c *Context) Columns() []resolver.ResultColumn { return c.columns }

func (c *Context) quote(name string) string { return c.Dialect.QuoteIdentifier(name) }

// bind records v under a fresh key. Keys start with '#' so they never clash
// with parameter names written by callers.
func (c *Context) bind(v any) string {
	key := "#" + strconv.Itoa(len(c.values)+1)
	c.values[key] = v
	return key
}

func traverseAll(v Visitor, nodes ...Node) {
	for _, n := range nodes {
		if n != nil {
			n.Traverse(v)
		}
	}
}

// list tokenizes nodes separated by ", ".
func list(s *token.Stream, ctx *Context, nodes []Node) error {
	for i, n := range nodes {
		if i > 0 {
			s.Text(",").Space()
		}
		if err := n.Tokenize(s, ctx); err != nil {
			return err
		}
	}
	return nil
}

// compound reports whether n needs parentheses when used as an operand.
func compound(n Node) bool {
	switch n.(type) {
	case *Binary, *Logic, *Unary, *Between, *In:
		return true
	}
	return false
}

func operand(s *token.Stream, ctx *Context, n Node) error {
	if !compound(n) {
		return n.Tokenize(s, ctx)
	}
	s.Text("(")
	if err := n.Tokenize(s, ctx); err != nil {
		return err
	}
	s.Text(")")
	return nil
}

// typeOf resolves the type of n in the current scope. Column references take
// their type from the resolver, everything else from the node.
func typeOf(ctx *Context, n Node) schema.DataType {
	switch v := n.(type) {
	case *Aliased:
		return typeOf(ctx, v.Expr)
	case *ColumnRef:
		if len(v.Table) == 0 {
			if a, ok := ctx.Resolver.FindAlias(v.Name); ok {
				return a.Type
			}
		}
		if m, err := ctx.Resolver.FindColumn(v.Table, v.Name); err == nil {
			return m.Type
		}
	}
	return n.DataType()
}
