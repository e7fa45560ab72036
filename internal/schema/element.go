package schema

import (
	"fmt"
	"slices"

	"golang.org/x/text/cases"

	"db-forge/internal/errs"
)

// Element is one node of the structure tree.
type Element interface {
	Kind() Kind
	Name() string
	Parent() Element
	Children() []Element
	node() *base
}

// base holds the name, the parent link and the ordered children of an element.
// Children are unique per kind by case-folded name; anonymous children may repeat.
type base struct {
	name     string
	parent   Element
	children []Element
	index    map[string]Element
}

func (b *base) Name() string    { return b.name }
func (b *base) Parent() Element { return b.parent }
func (b *base) node() *base     { return b }

// Children returns the children in insertion order.
func (b *base) Children() []Element {
	return slices.Clone(b.children)
}

// Fold returns the case-insensitive comparison form of a name.
func Fold(name string) string {
	return cases.Fold().String(name)
}

func childKey(k Kind, name string) string {
	return fmt.Sprintf("%d:%s", k, Fold(name))
}

// Attach adds child to parent. A child that already has a parent, a kind the
// parent cannot hold and a duplicate name are all rejected.
func Attach(parent, child Element) error {
	cb := child.node()
	if cb.parent != nil {
		return errs.Newf(errs.KindInvalidInput, "%s %q already belongs to %s %q",
			child.Kind(), child.Name(), cb.parent.Kind(), cb.parent.Name())
	}
	if !allows(parent.Kind(), child.Kind()) {
		return errs.Newf(errs.KindInvalidInput, "%s cannot contain %s", parent.Kind(), child.Kind())
	}
	pb := parent.node()
	if child.Name() != "" {
		key := childKey(child.Kind(), child.Name())
		if _, dup := pb.index[key]; dup {
			return errs.Newf(errs.KindInvalidInput, "%s %q already has a %s named %q",
				parent.Kind(), parent.Name(), child.Kind(), child.Name())
		}
		if pb.index == nil {
			pb.index = make(map[string]Element)
		}
		pb.index[key] = child
	}
	pb.children = append(pb.children, child)
	cb.parent = parent
	return nil
}

// Detach removes child from its parent. It reports whether child was attached.
func Detach(child Element) bool {
	cb := child.node()
	if cb.parent == nil {
		return false
	}
	pb := cb.parent.node()
	i := slices.Index(pb.children, child)
	if i < 0 {
		return false
	}
	pb.children = slices.Delete(pb.children, i, i+1)
	if child.Name() != "" {
		delete(pb.index, childKey(child.Kind(), child.Name()))
	}
	cb.parent = nil
	return true
}

// Rename changes the name of e, keeping the parent's index consistent.
func Rename(e Element, name string) error {
	b := e.node()
	if b.parent == nil {
		b.name = name
		return nil
	}
	pb := b.parent.node()
	if name != "" {
		if other, dup := pb.index[childKey(e.Kind(), name)]; dup && other != e {
			return errs.Newf(errs.KindInvalidInput, "%s %q already has a %s named %q",
				b.parent.Kind(), b.parent.Name(), e.Kind(), name)
		}
	}
	if b.name != "" {
		delete(pb.index, childKey(e.Kind(), b.name))
	}
	b.name = name
	if name != "" {
		if pb.index == nil {
			pb.index = make(map[string]Element)
		}
		pb.index[childKey(e.Kind(), name)] = e
	}
	return nil
}

// Child looks up a named child of the given kind.
func Child(parent Element, kind Kind, name string) Element {
	if name == "" {
		return nil
	}
	return parent.node().index[childKey(kind, name)]
}

// ChildrenOf returns the children of parent that have the given kind.
func ChildrenOf(parent Element, kind Kind) []Element {
	var out []Element
	for _, c := range parent.node().children {
		if c.Kind() == kind {
			out = append(out, c)
		}
	}
	return out
}

func childrenAs[T Element](parent Element, kind Kind) []T {
	var out []T
	for _, c := range parent.node().children {
		if c.Kind() == kind {
			out = append(out, c.(T))
		}
	}
	return out
}

func attachAll(parent Element, children []Element) error {
	for _, c := range children {
		if err := Attach(parent, c); err != nil {
			return err
		}
	}
	return nil
}
