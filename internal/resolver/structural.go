package resolver

import (
	"db-forge/internal/errs"
	"db-forge/internal/schema"
)

// Structural resolves names against a real structure subtree.
type Structural struct {
	scopes
	pivot schema.Element
}

// NewStructural anchors a resolver at pivot, usually a datasource or namespace.
func NewStructural(pivot schema.Element) *Structural {
	return &Structural{pivot: pivot}
}

func (r *Structural) Pivot() schema.Element { return r.pivot }

// FindTable resolves id relative to the pivot, then its ancestors.
func (r *Structural) FindTable(id schema.Identifier) (TableMatch, error) {
	if r.pivot == nil {
		return TableMatch{}, errs.Build("no pivot structure to resolve %s", id)
	}
	switch e := schema.Resolve(r.pivot, id, schema.KindTable, schema.KindView).(type) {
	case *schema.Table:
		return TableMatch{Name: id, Table: e, Columns: Columns(e)}, nil
	case *schema.View:
		return TableMatch{Name: id, Open: true}, nil
	}
	return TableMatch{}, errs.NotFound(id.String(), "unknown table %s", id)
}

func (r *Structural) FindColumn(qualifier schema.Identifier, name string) (ColumnMatch, error) {
	return r.findColumn(qualifier, name)
}

var _ Resolver = (*Structural)(nil)
