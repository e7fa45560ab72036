package schema

import (
	"db-forge/internal/errs"
)

// DefaultKind tells how a column default is spelled.
type DefaultKind int

const (
	DefaultLiteral DefaultKind = iota
	DefaultNull
	DefaultCurrentTimestamp
	DefaultExpression
)

func (k DefaultKind) String() string {
	switch k {
	case DefaultNull:
		return "null"
	case DefaultCurrentTimestamp:
		return "current_timestamp"
	case DefaultExpression:
		return "expression"
	default:
		return "literal"
	}
}

// ParseDefaultKind is the inverse of DefaultKind.String. Empty means literal.
func ParseDefaultKind(s string) (DefaultKind, error) {
	switch s {
	case "", "literal":
		return DefaultLiteral, nil
	case "null":
		return DefaultNull, nil
	case "current_timestamp":
		return DefaultCurrentTimestamp, nil
	case "expression":
		return DefaultExpression, nil
	}
	return DefaultLiteral, errs.Newf(errs.KindInvalidInput, "unknown default kind %q", s)
}

type Default struct {
	Kind  DefaultKind
	Value string
}

// IsNull reports whether d is absent or an explicit NULL.
func (d *Default) IsNull() bool {
	return d == nil || d.Kind == DefaultNull
}

type Flags uint8

const (
	AutoIncrement Flags = 1 << iota
	Unsigned
	Zerofill
)

func (f Flags) Has(flag Flags) bool { return f&flag != 0 }

type PadDirection int

const (
	PadNone PadDirection = iota
	PadLeft
	PadRight
)

// Padding describes fixed-width storage such as CHAR(n).
type Padding struct {
	Direction PadDirection
	Glyph     string
}

// Property names the fixed vocabulary of column properties.
type Property string

const (
	PropType      Property = "type"
	PropLength    Property = "length"
	PropScale     Property = "scale"
	PropEnum      Property = "enum"
	PropDefault   Property = "default"
	PropFlags     Property = "flags"
	PropMediaType Property = "media_type"
	PropPadding   Property = "padding"
	PropComment   Property = "comment"
)

// ColumnProperties lists the vocabulary in comparison order.
var ColumnProperties = []Property{
	PropType, PropLength, PropScale, PropEnum, PropDefault,
	PropFlags, PropMediaType, PropPadding, PropComment,
}

type Column struct {
	base
	// Type carries the NULL affinity when the column is nullable.
	Type      DataType
	Length    int
	Scale     int
	Enum      []string
	Default   *Default
	Flags     Flags
	MediaType string
	Padding   Padding
	Comment   string
}

func NewColumn(name string, t DataType) *Column {
	return &Column{base: base{name: name}, Type: t}
}

func (c *Column) Kind() Kind { return KindColumn }

func (c *Column) Nullable() bool { return c.Type.Nullable() }

// Table returns the owning table, or nil for a detached column.
func (c *Column) Table() *Table {
	t, _ := c.parent.(*Table)
	return t
}

// InPrimaryKey reports whether the column is named by its table's primary key.
func (c *Column) InPrimaryKey() bool {
	t := c.Table()
	if t == nil {
		return false
	}
	pk := t.PrimaryKey()
	return pk != nil && containsFold(pk.Columns, c.name)
}

// Property returns the value of one property of the vocabulary.
func (c *Column) Property(p Property) (any, error) {
	switch p {
	case PropType:
		return c.Type, nil
	case PropLength:
		return c.Length, nil
	case PropScale:
		return c.Scale, nil
	case PropEnum:
		return c.Enum, nil
	case PropDefault:
		return c.Default, nil
	case PropFlags:
		return c.Flags, nil
	case PropMediaType:
		return c.MediaType, nil
	case PropPadding:
		return c.Padding, nil
	case PropComment:
		return c.Comment, nil
	}
	return nil, errs.Newf(errs.KindType, "unknown column property %q", p)
}

// SetProperty assigns one property, checking the value type.
func (c *Column) SetProperty(p Property, v any) error {
	ok := true
	switch p {
	case PropType:
		c.Type, ok = v.(DataType)
	case PropLength:
		c.Length, ok = v.(int)
	case PropScale:
		c.Scale, ok = v.(int)
	case PropEnum:
		c.Enum, ok = v.([]string)
	case PropDefault:
		c.Default, ok = v.(*Default)
	case PropFlags:
		c.Flags, ok = v.(Flags)
	case PropMediaType:
		c.MediaType, ok = v.(string)
	case PropPadding:
		c.Padding, ok = v.(Padding)
	case PropComment:
		c.Comment, ok = v.(string)
	default:
		return errs.Newf(errs.KindType, "unknown column property %q", p)
	}
	if !ok {
		return errs.Newf(errs.KindType, "invalid value %T for column property %q", v, p)
	}
	return nil
}

func containsFold(names []string, name string) bool {
	f := Fold(name)
	for _, n := range names {
		if Fold(n) == f {
			return true
		}
	}
	return false
}
