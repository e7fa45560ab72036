package schema

import (
	"strings"

	"db-forge/internal/errs"
)

// DataType is a bitmask of orthogonal affinities. A valid value combines
// Null with at most one primary affinity, where Number counts as one.
type DataType uint16

// Undefined is the type of nodes whose type must be inferred.
const Undefined DataType = 0

const (
	Null DataType = 1 << iota
	String
	Integer
	Float
	Timestamp
	Boolean
	Binary
)

// Number is the union of the numeric affinities.
const Number = Integer | Float

var affinityNames = []struct {
	t    DataType
	name string
}{
	{Number, "NUMBER"},
	{String, "STRING"},
	{Integer, "INTEGER"},
	{Float, "FLOAT"},
	{Timestamp, "TIMESTAMP"},
	{Boolean, "BOOLEAN"},
	{Binary, "BINARY"},
	{Null, "NULL"},
}

// Has reports whether every bit of t is set in d.
func (d DataType) Has(t DataType) bool {
	return t != 0 && d&t == t
}

// Nullable reports whether the NULL affinity is set.
func (d DataType) Nullable() bool {
	return d&Null != 0
}

// Primary strips the NULL affinity.
func (d DataType) Primary() DataType {
	return d &^ Null
}

// Valid reports whether d combines NULL with at most one primary affinity.
func (d DataType) Valid() bool {
	switch d.Primary() {
	case Undefined, String, Integer, Float, Number, Timestamp, Boolean, Binary:
		return true
	}
	return false
}

// Overlaps reports whether the primary affinities of d and o intersect.
func (d DataType) Overlaps(o DataType) bool {
	return d.Primary()&o.Primary() != 0
}

// Contains reports whether d's primary affinities include all of o's.
func (d DataType) Contains(o DataType) bool {
	p := o.Primary()
	return p != 0 && d.Primary()&p == p
}

func (d DataType) String() string {
	if d == Undefined {
		return "UNDEFINED"
	}
	var parts []string
	rest := d
	for _, a := range affinityNames {
		if rest&a.t == a.t {
			parts = append(parts, a.name)
			rest &^= a.t
		}
	}
	return strings.Join(parts, "|")
}

// ParseDataType reads the String form. Parts may be separated by '|' or ','.
func ParseDataType(s string) (DataType, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "UNDEFINED") {
		return Undefined, nil
	}
	var d DataType
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == ',' }) {
		part = strings.ToUpper(strings.TrimSpace(part))
		found := false
		for _, a := range affinityNames {
			if a.name == part {
				d |= a.t
				found = true
				break
			}
		}
		if !found {
			return Undefined, errs.Newf(errs.KindType, "unknown data type affinity %q", part)
		}
	}
	if !d.Valid() {
		return Undefined, errs.Newf(errs.KindType, "data type %s combines more than one primary affinity", d)
	}
	return d, nil
}
