// Package builder compiles statement trees into SQL text and driver
// arguments for one dialect.
package builder

import (
	"database/sql"
	"sort"
	"strings"

	"db-forge/internal/dialect"
	"db-forge/internal/errs"
	"db-forge/internal/logger"
	"db-forge/internal/query"
	"db-forge/internal/resolver"
	"db-forge/internal/schema"
	"db-forge/internal/token"
)

// Param is one distinct logical parameter of a compiled statement.
type Param struct {
	Key string
	// Name is the generated driver name, p1, p2, ...
	Name string
	// Marker is the placeholder text written into the SQL.
	Marker  string
	Ordinal int
	Type    schema.DataType
	// Positions are the occurrence indexes of the parameter in the SQL.
	Positions []int
}

// Params keeps parameters in first-occurrence order.
type Params struct {
	list  []*Param
	byKey map[string]*Param
}

func newParams() *Params { return &Params{byKey: map[string]*Param{}} }

// Register returns the parameter for key, creating it on first use.
func (p *Params) Register(key string, t schema.DataType, d dialect.Dialect) *Param {
	if prm, ok := p.byKey[key]; ok {
		if prm.Type == schema.Undefined {
			prm.Type = t
		}
		return prm
	}
	ord := len(p.list) + 1
	prm := &Param{
		Key:     key,
		Name:    dialect.ParamName(ord),
		Marker:  d.Placeholder(ord),
		Ordinal: ord,
		Type:    t,
	}
	p.list = append(p.list, prm)
	p.byKey[key] = prm
	return prm
}

func (p *Params) Get(key string) (*Param, error) {
	prm, ok := p.byKey[key]
	if !ok {
		return nil, errs.NotFound(key, "unknown parameter %s", key)
	}
	return prm, nil
}

func (p *Params) List() []*Param { return p.list }

func (p *Params) Len() int { return len(p.list) }

// Compiled is the result of a build.
type Compiled struct {
	SQL     string
	Type    query.StatementType
	Params  *Params
	Columns []resolver.ResultColumn
	// Values hold literals bound as parameters, by key.
	Values  map[string]any
	binding dialect.Binding
}

// Args arranges values for the driver. Keys missing from values fall back to
// the bound literals; a parameter without any value is an error.
func (c *Compiled) Args(values map[string]any) ([]any, error) {
	lookup := func(key string) (any, error) {
		if v, ok := values[key]; ok {
			return v, nil
		}
		if v, ok := c.Values[key]; ok {
			return v, nil
		}
		return nil, errs.NotFound(key, "no value for parameter %s", key)
	}

	params := c.Params.List()
	switch c.binding {
	case dialect.BindPositional:
		type slot struct {
			pos int
			v   any
		}
		var slots []slot
		for _, p := range params {
			v, err := lookup(p.Key)
			if err != nil {
				return nil, err
			}
			for _, pos := range p.Positions {
				slots = append(slots, slot{pos, v})
			}
		}
		sort.Slice(slots, func(i, j int) bool { return slots[i].pos < slots[j].pos })
		out := make([]any, len(slots))
		for i, s := range slots {
			out[i] = s.v
		}
		return out, nil
	case dialect.BindNamed:
		out := make([]any, len(params))
		for i, p := range params {
			v, err := lookup(p.Key)
			if err != nil {
				return nil, err
			}
			out[i] = sql.Named(p.Name, v)
		}
		return out, nil
	default:
		out := make([]any, len(params))
		for i, p := range params {
			v, err := lookup(p.Key)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
}

type Option func(*Builder)

// WithLiteralParams binds literals as parameters instead of inlining them.
func WithLiteralParams() Option {
	return func(b *Builder) { b.opts.LiteralParams = true }
}

func WithLogger(l *logger.Logger) Option {
	return func(b *Builder) { b.log = l }
}

// Builder compiles statements for one dialect. It holds no per-build state
// and may be shared.
type Builder struct {
	dialect dialect.Dialect
	opts    query.Options
	log     *logger.Logger
}

func New(d dialect.Dialect, opts ...Option) *Builder {
	b := &Builder{dialect: d}
	for _, o := range opts {
		o(b)
	}
	b.log = logger.OrNop(b.log)
	return b
}

func (b *Builder) Dialect() dialect.Dialect { return b.dialect }

// Build compiles stmt, resolving names against pivot. A nil pivot accepts
// any name.
func (b *Builder) Build(stmt query.Statement, pivot schema.Element) (*Compiled, error) {
	var r resolver.Resolver
	if pivot == nil {
		r = resolver.NewVirtual()
	} else {
		r = resolver.NewStructural(pivot)
	}
	return b.BuildWith(stmt, r)
}

func (b *Builder) BuildWith(stmt query.Statement, r resolver.Resolver) (*Compiled, error) {
	if stmt == nil {
		return nil, errs.Build("nothing to build")
	}
	ctx := query.NewContext(b.dialect, r, b.opts)
	s := &token.Stream{}
	if err := stmt.Tokenize(s, ctx); err != nil {
		return nil, err
	}
	c, err := b.replay(s)
	if err != nil {
		return nil, err
	}
	c.Type = ctx.Type()
	c.Columns = ctx.Columns()
	c.Values = ctx.Values()
	b.log.With().Str("sql", c.SQL).Int("params", c.Params.Len()).Logger().Debug("statement built")
	return c, nil
}

// replay spells a token stream. Spaces collapse, comments are dropped.
func (b *Builder) replay(s *token.Stream) (*Compiled, error) {
	var out strings.Builder
	params := newParams()
	occurrence := 0
	space := false

	write := func(text string) {
		if text == "" {
			return
		}
		if space && out.Len() > 0 {
			out.WriteByte(' ')
		}
		space = false
		out.WriteString(text)
	}

	for _, t := range s.Tokens() {
		switch t.Kind {
		case token.Space:
			space = true
		case token.Comment:
		case token.Keyword:
			text := t.Text
			if text == "" {
				k, err := b.dialect.Keyword(t.ID)
				if err != nil {
					return nil, err
				}
				text = k
			}
			write(text)
		case token.Parameter:
			p := params.Register(t.Text, t.Type, b.dialect)
			p.Positions = append(p.Positions, occurrence)
			occurrence++
			write(p.Marker)
		default:
			write(t.Text)
		}
	}
	return &Compiled{
		SQL:     out.String(),
		Params:  params,
		binding: b.dialect.Binding(),
	}, nil
}
