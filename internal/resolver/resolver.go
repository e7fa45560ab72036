// Package resolver maps the names a statement uses onto structure elements
// while the statement is tokenized.
package resolver

import (
	"db-forge/internal/errs"
	"db-forge/internal/schema"
)

// ResultColumn is one named, typed column of a row source.
type ResultColumn struct {
	Name string
	Type schema.DataType
}

// TableMatch is a resolved row source: a table, a view or a derived table.
type TableMatch struct {
	// Name is the identifier the source was resolved from.
	Name    schema.Identifier
	Table   *schema.Table
	Columns []ResultColumn
	// Open sources accept any column name, e.g. views and virtual tables.
	Open bool
}

func (m TableMatch) column(name string) (ResultColumn, bool) {
	f := schema.Fold(name)
	for _, c := range m.Columns {
		if schema.Fold(c.Name) == f {
			return c, true
		}
	}
	return ResultColumn{}, false
}

// ColumnMatch is a resolved column reference.
type ColumnMatch struct {
	// Source is the alias or table name the column was found through.
	Source string
	Name   string
	Type   schema.DataType
	Column *schema.Column
}

// Resolver finds tables, columns and aliases for the statement being built.
// Scopes nest: lookups search the innermost scope first.
type Resolver interface {
	Pivot() schema.Element
	PushScope()
	PopScope()
	DeclareTable(alias string, m TableMatch) error
	DeclareAlias(name string, t schema.DataType) error
	FindTable(id schema.Identifier) (TableMatch, error)
	FindColumn(qualifier schema.Identifier, name string) (ColumnMatch, error)
	FindAlias(name string) (ResultColumn, bool)
}

type source struct {
	alias string
	match TableMatch
}

type scope struct {
	sources []source
	aliases []ResultColumn
}

// scopes is the stack shared by both resolver flavors.
type scopes struct {
	stack []*scope
}

func (s *scopes) PushScope() { s.stack = append(s.stack, &scope{}) }

func (s *scopes) PopScope() {
	if len(s.stack) > 0 {
		s.stack = s.stack[:len(s.stack)-1]
	}
}

func (s *scopes) top() *scope {
	if len(s.stack) == 0 {
		s.PushScope()
	}
	return s.stack[len(s.stack)-1]
}

func (s *scopes) DeclareTable(alias string, m TableMatch) error {
	if alias == "" {
		alias = m.Name.Last()
	}
	top := s.top()
	f := schema.Fold(alias)
	for _, src := range top.sources {
		if schema.Fold(src.alias) == f {
			return errs.Build("table name %q is declared twice", alias)
		}
	}
	top.sources = append(top.sources, source{alias: alias, match: m})
	return nil
}

func (s *scopes) DeclareAlias(name string, t schema.DataType) error {
	top := s.top()
	f := schema.Fold(name)
	for _, a := range top.aliases {
		if schema.Fold(a.Name) == f {
			return errs.Build("result alias %q is declared twice", name)
		}
	}
	top.aliases = append(top.aliases, ResultColumn{Name: name, Type: t})
	return nil
}

// FindAlias only sees the innermost scope; result aliases never leak into
// subqueries.
func (s *scopes) FindAlias(name string) (ResultColumn, bool) {
	if len(s.stack) == 0 {
		return ResultColumn{}, false
	}
	f := schema.Fold(name)
	for _, a := range s.stack[len(s.stack)-1].aliases {
		if schema.Fold(a.Name) == f {
			return a, true
		}
	}
	return ResultColumn{}, false
}

// findSource returns the declared source a qualifier names, innermost first.
func (s *scopes) findSource(q schema.Identifier) (source, bool) {
	for i := len(s.stack) - 1; i >= 0; i-- {
		for _, src := range s.stack[i].sources {
			if len(q) == 1 && schema.Fold(src.alias) == schema.Fold(q[0]) {
				return src, true
			}
			if len(q) > 1 && src.match.Name.Equal(q) {
				return src, true
			}
		}
	}
	return source{}, false
}

func (s *scopes) findColumn(qualifier schema.Identifier, name string) (ColumnMatch, error) {
	if len(qualifier) > 0 {
		src, ok := s.findSource(qualifier)
		if !ok {
			return ColumnMatch{}, errs.NotFound(qualifier.String(), "unknown table %s", qualifier)
		}
		return src.lookup(name)
	}
	for i := len(s.stack) - 1; i >= 0; i-- {
		var found []ColumnMatch
		var open *source
		for j, src := range s.stack[i].sources {
			if c, ok := src.match.column(name); ok {
				found = append(found, src.result(c))
			} else if src.match.Open && open == nil {
				open = &s.stack[i].sources[j]
			}
		}
		switch {
		case len(found) > 1:
			return ColumnMatch{}, errs.Build("column %q is ambiguous between %s and %s", name, found[0].Source, found[1].Source)
		case len(found) == 1:
			return found[0], nil
		case open != nil:
			return ColumnMatch{Name: name}, nil
		}
	}
	return ColumnMatch{}, errs.NotFound(name, "unknown column %s", name)
}

func (src source) lookup(name string) (ColumnMatch, error) {
	if c, ok := src.match.column(name); ok {
		return src.result(c), nil
	}
	if src.match.Open {
		return ColumnMatch{Source: src.alias, Name: name}, nil
	}
	return ColumnMatch{}, errs.NotFound(name, "unknown column %s.%s", src.alias, name)
}

func (src source) result(c ResultColumn) ColumnMatch {
	m := ColumnMatch{Source: src.alias, Name: c.Name, Type: c.Type}
	if src.match.Table != nil {
		m.Column = src.match.Table.Column(c.Name)
	}
	return m
}

// Columns lists the columns of a table as result columns.
func Columns(t *schema.Table) []ResultColumn {
	cols := t.Columns()
	out := make([]ResultColumn, len(cols))
	for i, c := range cols {
		out[i] = ResultColumn{Name: c.Name(), Type: c.Type}
	}
	return out
}
