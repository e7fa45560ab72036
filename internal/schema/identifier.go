package schema

import "strings"

// Identifier is an ordered sequence of name parts, outermost first.
type Identifier []string

// ParseIdentifier splits a dotted name. Empty parts are dropped.
func ParseIdentifier(s string) Identifier {
	var id Identifier
	for _, p := range strings.Split(s, ".") {
		if p = strings.TrimSpace(p); p != "" {
			id = append(id, p)
		}
	}
	return id
}

func (id Identifier) String() string { return strings.Join(id, ".") }

// Last returns the innermost part.
func (id Identifier) Last() string {
	if len(id) == 0 {
		return ""
	}
	return id[len(id)-1]
}

// Qualifier returns every part but the last.
func (id Identifier) Qualifier() Identifier {
	if len(id) <= 1 {
		return nil
	}
	return id[:len(id)-1]
}

// Equal compares case-insensitively.
func (id Identifier) Equal(o Identifier) bool {
	if len(id) != len(o) {
		return false
	}
	for i := range id {
		if Fold(id[i]) != Fold(o[i]) {
			return false
		}
	}
	return true
}

// PathOf returns the qualified name of e, without the datasource and
// without anonymous ancestors.
func PathOf(e Element) Identifier {
	var id Identifier
	for cur := e; cur != nil; cur = cur.Parent() {
		if cur.Kind() == KindDatasource || cur.Name() == "" {
			continue
		}
		id = append(Identifier{cur.Name()}, id...)
	}
	return id
}

// Resolve finds the element named by id. It tries from as the root of id,
// then each ancestor of from in turn, so a relative name resolves in the
// closest scope and a fully qualified name resolves from the datasource.
// When kinds is empty the last part may name any kind.
func Resolve(from Element, id Identifier, kinds ...Kind) Element {
	if len(id) == 0 {
		return nil
	}
	for c := from; c != nil; c = c.Parent() {
		if e := descend(c, id, kinds); e != nil {
			return e
		}
	}
	return nil
}

var containerKinds = []Kind{KindNamespace, KindTable, KindView}

func descend(c Element, id Identifier, kinds []Kind) Element {
	cur := c
	for i, part := range id {
		want := containerKinds
		if i == len(id)-1 {
			want = kinds
			if len(want) == 0 {
				want = Kinds
			}
		}
		var next Element
		for _, k := range want {
			if next = Child(cur, k, part); next != nil {
				break
			}
		}
		if next == nil {
			return nil
		}
		cur = next
	}
	return cur
}
