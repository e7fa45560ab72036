package schema

import (
	"strings"

	"db-forge/internal/errs"
)

// Action is a referential action for ON UPDATE / ON DELETE.
type Action int

const (
	NoAction Action = iota
	Cascade
	Restrict
	SetNull
	SetDefault
)

func (a Action) String() string {
	switch a {
	case Cascade:
		return "CASCADE"
	case Restrict:
		return "RESTRICT"
	case SetNull:
		return "SET NULL"
	case SetDefault:
		return "SET DEFAULT"
	default:
		return "NO ACTION"
	}
}

// ParseAction accepts the SQL spelling ("SET NULL") or a dashed form ("set-null").
func ParseAction(s string) (Action, error) {
	norm := strings.ToUpper(strings.NewReplacer("-", " ", "_", " ").Replace(strings.TrimSpace(s)))
	switch norm {
	case "", "NO ACTION":
		return NoAction, nil
	case "CASCADE":
		return Cascade, nil
	case "RESTRICT":
		return Restrict, nil
	case "SET NULL":
		return SetNull, nil
	case "SET DEFAULT":
		return SetDefault, nil
	}
	return NoAction, errs.Newf(errs.KindInvalidInput, "unknown referential action %q", s)
}

type PrimaryKey struct {
	base
	Columns []string
}

func NewPrimaryKey(name string, columns ...string) *PrimaryKey {
	return &PrimaryKey{base: base{name: name}, Columns: columns}
}

func (p *PrimaryKey) Kind() Kind { return KindPrimaryKey }

type Unique struct {
	base
	Columns []string
}

func NewUnique(name string, columns ...string) *Unique {
	return &Unique{base: base{name: name}, Columns: columns}
}

func (u *Unique) Kind() Kind { return KindUnique }

type Check struct {
	base
	Expression string
}

func NewCheck(name, expression string) *Check {
	return &Check{base: base{name: name}, Expression: expression}
}

func (c *Check) Kind() Kind { return KindCheck }

type ForeignKey struct {
	base
	Columns    []string
	RefTable   Identifier
	RefColumns []string
	OnUpdate   Action
	OnDelete   Action
}

func NewForeignKey(name string, columns []string, refTable Identifier, refColumns []string) *ForeignKey {
	return &ForeignKey{base: base{name: name}, Columns: columns, RefTable: refTable, RefColumns: refColumns}
}

func (f *ForeignKey) Kind() Kind { return KindForeignKey }

// Table returns the table holding the foreign key.
func (f *ForeignKey) Table() *Table {
	t, _ := f.parent.(*Table)
	return t
}

// Target resolves the referenced table relative to the owning table.
func (f *ForeignKey) Target() *Table {
	t := f.Table()
	if t == nil {
		return nil
	}
	ref, _ := Resolve(t, f.RefTable, KindTable).(*Table)
	return ref
}

type Index struct {
	base
	Columns []string
	Unique  bool
}

func NewIndex(name string, unique bool, columns ...string) *Index {
	return &Index{base: base{name: name}, Columns: columns, Unique: unique}
}

func (i *Index) Kind() Kind { return KindIndex }

// Table returns the indexed table.
func (i *Index) Table() *Table {
	t, _ := i.parent.(*Table)
	return t
}
