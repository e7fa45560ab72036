package planner

import (
	"sort"
	"strings"
	"unicode"

	"db-forge/internal/schema"
)

// order sorts operations topologically over their dependencies. Among
// operations that are ready at the same time, lower type rank wins, then the
// description. A cycle is broken the way tables are sorted by foreign keys:
// the operation with the fewest unplaced dependencies goes first, and one
// sitting on a two-operation cycle gets a boost.
func (p *Planner) order(ops []*Operation) *Plan {
	deps := make(map[*Operation][]*Operation, len(ops))
	for _, a := range ops {
		for _, b := range ops {
			if a != b && before(a, b) {
				deps[b] = append(deps[b], a)
			}
		}
	}

	sorted := make([]*Operation, len(ops))
	copy(sorted, ops)
	sort.SliceStable(sorted, func(i, j int) bool { return less(sorted[i], sorted[j]) })

	plan := &Plan{}
	placed := make(map[*Operation]bool, len(ops))
	for len(plan.Operations) < len(ops) {
		var next *Operation
		for _, op := range sorted {
			if placed[op] {
				continue
			}
			ready := true
			for _, d := range deps[op] {
				if !placed[d] {
					ready = false
					break
				}
			}
			if ready {
				next = op
				break
			}
		}

		if next == nil {
			bestScore := 0
			for _, op := range sorted {
				if placed[op] {
					continue
				}
				score := 0
				for _, d := range deps[op] {
					if placed[d] {
						continue
					}
					score -= 100
					for _, back := range deps[d] {
						if back == op {
							score += 500
							break
						}
					}
				}
				if next == nil || score > bestScore {
					next, bestScore = op, score
				}
			}
			plan.Cyclic = append(plan.Cyclic, next)
			p.log.With().Str("operation", next.String()).Logger().Warn("dependency cycle broken")
		}
		placed[next] = true
		plan.Operations = append(plan.Operations, next)
	}
	return plan
}

func less(a, b *Operation) bool {
	if a.Type.rank() != b.Type.rank() {
		return a.Type.rank() < b.Type.rank()
	}
	return a.String() < b.String()
}

// before reports whether a must run before b.
func before(a, b *Operation) bool {
	switch {
	case a.Type == OpBackup && b.Type != OpBackup:
		return true
	case chained(a, b):
		return true
	case createsReferenced(a, b):
		return true
	case columnFirst(a, b):
		return true
	case keyFirst(a, b):
		return true
	case dropsFirst(a, b):
		return true
	case freesName(a, b):
		return true
	case containerFirst(a, b):
		return true
	}
	return false
}

// chained reports whether b follows a through Original links.
func chained(a, b *Operation) bool {
	for cur := b.Original; cur != nil; cur = cur.Original {
		if cur == a {
			return true
		}
	}
	return false
}

// createdTable is the table an operation brings into existence.
func createdTable(op *Operation) *schema.Table {
	switch op.Type {
	case OpCreate:
		t, _ := op.Element.(*schema.Table)
		return t
	case OpRestore:
		t, _ := op.Target.(*schema.Table)
		return t
	}
	return nil
}

// references lists the tables the element created by op points at.
func references(op *Operation) []*schema.Table {
	if op.Type != OpCreate && op.Type != OpRestore {
		return nil
	}
	var out []*schema.Table
	if fk, ok := op.Element.(*schema.ForeignKey); ok {
		if t := fk.Target(); t != nil {
			out = append(out, t)
		}
	}
	if t := createdTable(op); t != nil {
		for _, fk := range t.ForeignKeys() {
			if ref := fk.Target(); ref != nil && ref != t {
				out = append(out, ref)
			}
		}
	}
	return out
}

func createsReferenced(a, b *Operation) bool {
	t := createdTable(a)
	if t == nil {
		return false
	}
	for _, ref := range references(b) {
		if ref == t {
			return true
		}
	}
	return false
}

// createdColumn is the column an operation brings into existence.
func createdColumn(op *Operation) *schema.Column {
	switch op.Type {
	case OpCreate:
		c, _ := op.Element.(*schema.Column)
		return c
	case OpRestore:
		c, _ := op.Target.(*schema.Column)
		return c
	}
	return nil
}

// columnFirst orders a new column before the keys, checks and indexes of its
// table that name it.
func columnFirst(a, b *Operation) bool {
	col := createdColumn(a)
	if col == nil || b.Type != OpCreate || b.Element.Parent() != col.Parent() {
		return false
	}
	if c, ok := b.Element.(*schema.Check); ok {
		return mentions(c.Expression, col.Name())
	}
	return contains(columnsOf(b.Element), col.Name())
}

// keyFirst orders whatever a foreign key needs on its referenced table, the
// referenced columns and a key or index over them, before the foreign key.
func keyFirst(a, b *Operation) bool {
	var e schema.Element
	switch a.Type {
	case OpCreate:
		e = a.Element
	case OpRestore:
		e = a.Target
	default:
		return false
	}
	if e == nil {
		return false
	}
	for _, fk := range foreignKeys(b) {
		ref := fk.Target()
		if ref == nil || e.Parent() != ref {
			continue
		}
		if c, ok := e.(*schema.Column); ok {
			if contains(fk.RefColumns, c.Name()) {
				return true
			}
			continue
		}
		if _, ok := e.(*schema.ForeignKey); ok {
			continue
		}
		if cols := columnsOf(e); len(cols) > 0 && covers(cols, fk.RefColumns) {
			return true
		}
	}
	return false
}

// foreignKeys lists the foreign keys an operation creates, directly or as
// part of a table.
func foreignKeys(op *Operation) []*schema.ForeignKey {
	if op.Type == OpCreate {
		if fk, ok := op.Element.(*schema.ForeignKey); ok {
			return []*schema.ForeignKey{fk}
		}
	}
	if t := createdTable(op); t != nil {
		return t.ForeignKeys()
	}
	return nil
}

func columnsOf(e schema.Element) []string {
	switch v := e.(type) {
	case *schema.PrimaryKey:
		return v.Columns
	case *schema.Unique:
		return v.Columns
	case *schema.Index:
		return v.Columns
	case *schema.ForeignKey:
		return v.Columns
	}
	return nil
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if schema.Fold(n) == schema.Fold(name) {
			return true
		}
	}
	return false
}

// covers reports whether every wanted column is among cols.
func covers(cols, wanted []string) bool {
	for _, w := range wanted {
		if !contains(cols, w) {
			return false
		}
	}
	return len(wanted) > 0
}

// mentions reports whether name appears as an identifier in expr, quoted or not.
func mentions(expr, name string) bool {
	words := strings.FieldsFunc(expr, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '$'
	})
	return contains(words, name)
}

// dropsFirst orders drops: elements without data before data, and a
// referrer before the table it references.
func dropsFirst(a, b *Operation) bool {
	if a.Type != OpDrop || b.Type != OpDrop {
		return false
	}
	if !schema.HasData(a.Element) && schema.HasData(b.Element) {
		return true
	}
	target, ok := b.Element.(*schema.Table)
	if !ok {
		return false
	}
	var fks []*schema.ForeignKey
	switch v := a.Element.(type) {
	case *schema.ForeignKey:
		fks = []*schema.ForeignKey{v}
	case *schema.Table:
		fks = v.ForeignKeys()
	}
	for _, fk := range fks {
		if fk.Table() != target && fk.Target() == target {
			return true
		}
	}
	return false
}

// freesName reports whether a releases a name b takes in the same container.
func freesName(a, b *Operation) bool {
	var freed schema.Element
	switch a.Type {
	case OpDrop, OpRename:
		freed = a.Element
	default:
		return false
	}
	var taken schema.Element
	switch b.Type {
	case OpCreate:
		taken = b.Element
	case OpRename, OpRestore:
		taken = b.Target
	default:
		return false
	}
	if freed == nil || taken == nil || freed.Kind() != taken.Kind() || freed.Name() == "" {
		return false
	}
	if schema.Fold(freed.Name()) != schema.Fold(taken.Name()) {
		return false
	}
	return parentPath(freed).Equal(parentPath(taken))
}

func parentPath(e schema.Element) schema.Identifier {
	if e.Parent() == nil {
		return nil
	}
	return schema.PathOf(e.Parent())
}

// sides returns the reference and target elements an operation touches.
func sides(op *Operation) (ref, tgt schema.Element) {
	switch op.Type {
	case OpCreate:
		return nil, op.Element
	case OpRestore:
		return op.Element, op.Target
	case OpBackup:
		return op.Element, nil
	}
	return op.Element, op.Target
}

// containerFirst orders operations around their containers: a created
// container comes before its content, a dropped one after it, and a renamed
// one after everything that still addresses it by the old name and before
// everything that uses the new one.
func containerFirst(a, b *Operation) bool {
	aRef, _ := sides(a)
	_, bTgt := sides(b)
	switch a.Type {
	case OpCreate:
		return bTgt != nil && bTgt != a.Element && within(bTgt, a.Element)
	case OpRename:
		return bTgt != nil && bTgt != a.Target && within(bTgt, a.Target) && b.Type != OpBackup
	}
	if aRef == nil || aRef == b.Element {
		return false
	}
	switch b.Type {
	case OpDrop:
		return within(aRef, b.Element)
	case OpRename:
		return a.Type != OpRestore && within(aRef, b.Element)
	}
	return false
}
