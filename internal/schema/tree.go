package schema

import (
	"fmt"
	"slices"
	"strings"
)

// Walk visits e and its descendants depth-first. Returning false from fn
// skips the children of the visited element.
func Walk(e Element, fn func(Element) bool) {
	if !fn(e) {
		return
	}
	for _, c := range e.node().children {
		Walk(c, fn)
	}
}

// Root returns the top of the tree holding e.
func Root(e Element) Element {
	for e.Parent() != nil {
		e = e.Parent()
	}
	return e
}

// Clone returns a detached deep copy of e.
func Clone(e Element) Element {
	var out Element
	switch v := e.(type) {
	case *Datasource:
		out = &Datasource{base: base{name: v.name}, Live: v.Live}
	case *Namespace:
		out = &Namespace{base: base{name: v.name}}
	case *Table:
		out = &Table{base: base{name: v.name}}
	case *View:
		out = &View{base: base{name: v.name}, Definition: v.Definition}
	case *Column:
		c := *v
		c.base = base{name: v.name}
		c.Enum = slices.Clone(v.Enum)
		if v.Default != nil {
			d := *v.Default
			c.Default = &d
		}
		out = &c
	case *PrimaryKey:
		out = &PrimaryKey{base: base{name: v.name}, Columns: slices.Clone(v.Columns)}
	case *Unique:
		out = &Unique{base: base{name: v.name}, Columns: slices.Clone(v.Columns)}
	case *Check:
		out = &Check{base: base{name: v.name}, Expression: v.Expression}
	case *ForeignKey:
		out = &ForeignKey{
			base:       base{name: v.name},
			Columns:    slices.Clone(v.Columns),
			RefTable:   slices.Clone(v.RefTable),
			RefColumns: slices.Clone(v.RefColumns),
			OnUpdate:   v.OnUpdate,
			OnDelete:   v.OnDelete,
		}
	case *Index:
		out = &Index{base: base{name: v.name}, Columns: slices.Clone(v.Columns), Unique: v.Unique}
	default:
		panic(fmt.Sprintf("schema: cannot clone %T", e))
	}
	for _, c := range e.node().children {
		// names are unique in the source, so attaching a clone cannot fail
		_ = Attach(out, Clone(c))
	}
	return out
}

// HasData reports whether e stores rows by itself. Constraints, indexes and
// views can be recreated without losing anything.
func HasData(e Element) bool {
	switch e.Kind() {
	case KindTable, KindColumn:
		return true
	case KindNamespace, KindDatasource:
		for _, c := range e.node().children {
			if HasData(c) {
				return true
			}
		}
	}
	return false
}

// References returns the foreign keys anywhere under root that point at table.
func References(root Element, table *Table) []*ForeignKey {
	var out []*ForeignKey
	Walk(root, func(e Element) bool {
		if fk, ok := e.(*ForeignKey); ok && fk.Target() == table {
			out = append(out, fk)
		}
		return true
	})
	return out
}

// Describe renders e as "TABLE main.users" for logs and plan output.
func Describe(e Element) string {
	if e == nil {
		return "<nil>"
	}
	name := PathOf(e).String()
	if e.Name() == "" {
		if name == "" {
			name = "<anonymous>"
		} else {
			name += ".<anonymous>"
		}
	}
	return strings.ToUpper(e.Kind().String()) + " " + name
}

// Field is one comparable property of an element.
type Field struct {
	Name  string
	Value any
}

// Fields lists the comparable properties of e. The name is never included;
// containers have no fields of their own.
func Fields(e Element) []Field {
	switch v := e.(type) {
	case *Column:
		fields := make([]Field, 0, len(ColumnProperties))
		for _, p := range ColumnProperties {
			val, _ := v.Property(p)
			fields = append(fields, Field{Name: string(p), Value: val})
		}
		return fields
	case *PrimaryKey:
		return []Field{{"columns", v.Columns}}
	case *Unique:
		return []Field{{"columns", v.Columns}}
	case *Check:
		return []Field{{"expression", v.Expression}}
	case *Index:
		return []Field{{"columns", v.Columns}, {"unique", v.Unique}}
	case *ForeignKey:
		return []Field{
			{"columns", v.Columns},
			{"ref_table", v.RefTable},
			{"ref_columns", v.RefColumns},
			{"on_update", v.OnUpdate},
			{"on_delete", v.OnDelete},
		}
	case *View:
		return []Field{{"definition", v.Definition}}
	}
	return nil
}
