package compare

import (
	"reflect"
	"strconv"
	"strings"

	"db-forge/internal/schema"
)

// fieldFunc reports whether two values of one field are equal.
type fieldFunc func(s *session, ref, tgt schema.Element, a, b any) bool

// comparators replace plain equality for the fields they name.
var comparators = map[string]fieldFunc{
	string(schema.PropType):      compareType,
	string(schema.PropDefault):   compareDefault,
	string(schema.PropLength):    compareSize,
	string(schema.PropScale):     compareSize,
	string(schema.PropFlags):     compareFlags,
	string(schema.PropMediaType): compareFold,
	"columns":                    compareColumns,
	"ref_table":                  compareRefTable,
	"ref_columns":                compareRefColumns,
	"on_update":                  compareAction,
	"on_delete":                  compareAction,
	"expression":                 compareSQL,
	"definition":                 compareSQL,
}

func (s *session) fields(ref, tgt schema.Element) []Extra {
	a, b := schema.Fields(ref), schema.Fields(tgt)
	var out []Extra
	for i := range a {
		name := a[i].Name
		if s.ignore[name] {
			continue
		}
		eq := comparators[name]
		if eq == nil {
			eq = func(_ *session, _, _ schema.Element, x, y any) bool { return reflect.DeepEqual(x, y) }
		}
		if !eq(s, ref, tgt, a[i].Value, b[i].Value) {
			out = append(out, Extra{Field: name, Old: a[i].Value, New: b[i].Value})
		}
	}
	return out
}

func inPrimaryKey(e schema.Element) bool {
	c, ok := e.(*schema.Column)
	return ok && c.InPrimaryKey()
}

// compareType compares affinities. A primary key column is NOT NULL
// whether or not it says so.
func compareType(s *session, ref, tgt schema.Element, a, b any) bool {
	x, y := a.(schema.DataType), b.(schema.DataType)
	if inPrimaryKey(ref) || inPrimaryKey(tgt) {
		x, y = x.Primary(), y.Primary()
	}
	if x.Nullable() != y.Nullable() {
		return false
	}
	if x.Primary() == y.Primary() {
		return true
	}
	return s.mode == Loose && (x.Contains(y) || y.Contains(x))
}

// compareDefault treats a missing default and DEFAULT NULL as the same.
func compareDefault(s *session, _, _ schema.Element, a, b any) bool {
	x, y := a.(*schema.Default), b.(*schema.Default)
	if x.IsNull() || y.IsNull() {
		return x.IsNull() && y.IsNull()
	}
	if x.Kind != y.Kind {
		return false
	}
	if x.Value == y.Value {
		return true
	}
	if s.mode != Loose {
		return false
	}
	xv, yv := unwrapDefault(x.Value), unwrapDefault(y.Value)
	if strings.EqualFold(xv, yv) {
		return true
	}
	xf, errX := strconv.ParseFloat(xv, 64)
	yf, errY := strconv.ParseFloat(yv, 64)
	return errX == nil && errY == nil && xf == yf
}

// unwrapDefault strips the parentheses and quotes DBMSs add to stored defaults.
func unwrapDefault(v string) string {
	v = strings.TrimSpace(v)
	for len(v) >= 2 && v[0] == '(' && v[len(v)-1] == ')' {
		v = strings.TrimSpace(v[1 : len(v)-1])
	}
	if len(v) >= 2 && v[0] == '\'' && v[len(v)-1] == '\'' {
		v = v[1 : len(v)-1]
	}
	return v
}

// compareSize treats an unset length or scale as the DBMS default in loose mode.
func compareSize(s *session, _, _ schema.Element, a, b any) bool {
	x, y := a.(int), b.(int)
	return x == y || (s.mode == Loose && (x == 0 || y == 0))
}

func compareFlags(s *session, _, _ schema.Element, a, b any) bool {
	x, y := a.(schema.Flags), b.(schema.Flags)
	if s.mode == Loose {
		x &^= schema.Unsigned | schema.Zerofill
		y &^= schema.Unsigned | schema.Zerofill
	}
	return x == y
}

func compareFold(_ *session, _, _ schema.Element, a, b any) bool {
	return strings.EqualFold(a.(string), b.(string))
}

func compareAction(s *session, _, _ schema.Element, a, b any) bool {
	x, y := a.(schema.Action), b.(schema.Action)
	if s.mode == Loose {
		if x == schema.Restrict {
			x = schema.NoAction
		}
		if y == schema.Restrict {
			y = schema.NoAction
		}
	}
	return x == y
}

func compareSQL(s *session, _, _ schema.Element, a, b any) bool {
	x, y := normalizeSQL(a.(string)), normalizeSQL(b.(string))
	if s.mode == Loose {
		return strings.EqualFold(stripQuoting(x), stripQuoting(y))
	}
	return x == y
}

func normalizeSQL(v string) string {
	return strings.TrimSuffix(strings.Join(strings.Fields(v), " "), ";")
}

func stripQuoting(v string) string {
	return strings.NewReplacer("(", "", ")", "", `"`, "", "`", "", "[", "", "]", "", " ", "").Replace(v)
}

// renamedColumns maps names of table's columns through the recorded renames.
func (s *session) renamedColumns(table *schema.Table, names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = n
		if table == nil {
			continue
		}
		if col := table.Column(n); col != nil {
			if to, ok := s.renames[col]; ok {
				out[i] = to
			}
		}
	}
	return out
}

func equalFold(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if schema.Fold(a[i]) != schema.Fold(b[i]) {
			return false
		}
	}
	return true
}

func owner(e schema.Element) *schema.Table {
	t, _ := e.Parent().(*schema.Table)
	return t
}

func compareColumns(s *session, ref, _ schema.Element, a, b any) bool {
	return equalFold(s.renamedColumns(owner(ref), a.([]string)), b.([]string))
}

// renamedPath is the path of e with recorded renames applied.
func (s *session) renamedPath(e schema.Element) schema.Identifier {
	var id schema.Identifier
	for cur := e; cur != nil; cur = cur.Parent() {
		if cur.Kind() == schema.KindDatasource {
			continue
		}
		name := cur.Name()
		if to, ok := s.renames[cur]; ok {
			name = to
		}
		id = append(schema.Identifier{name}, id...)
	}
	return id
}

func compareRefTable(s *session, ref, tgt schema.Element, a, b any) bool {
	rt, tt := ref.(*schema.ForeignKey).Target(), tgt.(*schema.ForeignKey).Target()
	if rt != nil && tt != nil {
		return s.renamedPath(rt).Equal(schema.PathOf(tt))
	}
	x, y := a.(schema.Identifier), b.(schema.Identifier)
	return schema.Fold(x.Last()) == schema.Fold(y.Last())
}

func compareRefColumns(s *session, ref, _ schema.Element, a, b any) bool {
	return equalFold(s.renamedColumns(ref.(*schema.ForeignKey).Target(), a.([]string)), b.([]string))
}
