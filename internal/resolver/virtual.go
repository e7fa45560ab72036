package resolver

import "db-forge/internal/schema"

// Virtual accepts every table and column name. It is used when no structure
// is available; all types it reports are Undefined.
type Virtual struct {
	scopes
}

func NewVirtual() *Virtual { return &Virtual{} }

func (r *Virtual) Pivot() schema.Element { return nil }

func (r *Virtual) FindTable(id schema.Identifier) (TableMatch, error) {
	return TableMatch{Name: id, Open: true}, nil
}

// FindColumn still honors declared derived tables, so their column types
// survive; anything else is accepted as is.
func (r *Virtual) FindColumn(qualifier schema.Identifier, name string) (ColumnMatch, error) {
	if m, err := r.findColumn(qualifier, name); err == nil {
		return m, nil
	}
	return ColumnMatch{Source: qualifier.Last(), Name: name}, nil
}

var _ Resolver = (*Virtual)(nil)
