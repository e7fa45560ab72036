package dialect

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"db-forge/internal/errs"
	"db-forge/internal/schema"
)

// Unbounded marks a type that stores values of any length.
const Unbounded = -1

// TypeDef describes one native type.
type TypeDef struct {
	Name string
	// Type holds the affinities the type can store, without NULL.
	Type schema.DataType
	// Length is the capacity: 0 when length does not apply, Unbounded, or a maximum.
	Length int
	// Sized types render a length argument, e.g. VARCHAR(255).
	Sized bool
	// DefaultLength is rendered for sized types when the column has none.
	DefaultLength int
	Scaled        bool
	NoDefault     bool
	NoNull        bool
	Padding       schema.Padding
	MediaType     string
	// Aliases are other native spellings read back by introspection.
	Aliases []string
}

// Render spells the type for a column.
func (t *TypeDef) Render(c *schema.Column) string {
	if !t.Sized {
		return t.Name
	}
	length := c.Length
	if length <= 0 {
		length = t.DefaultLength
	}
	if length <= 0 {
		return t.Name
	}
	if t.Scaled && c.Scale > 0 {
		return fmt.Sprintf("%s(%d,%d)", t.Name, length, c.Scale)
	}
	return fmt.Sprintf("%s(%d)", t.Name, length)
}

// capacity orders lengths so that Unbounded sorts last.
func (t *TypeDef) capacity() int {
	switch t.Length {
	case Unbounded:
		return math.MaxInt
	case 0:
		return math.MaxInt - 1
	}
	return t.Length
}

// Disqualified is the score of a candidate that cannot hold the column.
const Disqualified = -1 << 20

// Candidate is one scored entry of a ranking.
type Candidate struct {
	Def    *TypeDef
	Score  int
	Reason string
}

// TypeRegistry holds the native types of one dialect in preference order.
type TypeRegistry struct {
	defs []*TypeDef
}

func NewTypeRegistry(defs ...*TypeDef) *TypeRegistry {
	return &TypeRegistry{defs: defs}
}

func (r *TypeRegistry) Defs() []*TypeDef { return r.defs }

// Lookup finds a type by native name or alias, ignoring case. The full
// spelling is tried first, so TINYINT(1) or NVARCHAR(MAX) can name their own
// type; otherwise the arguments are dropped.
func (r *TypeRegistry) Lookup(native string) *TypeDef {
	name := strings.ToUpper(strings.TrimSpace(native))
	if d := r.find(name); d != nil {
		return d
	}
	if i := strings.IndexByte(name, '('); i >= 0 {
		return r.find(strings.TrimSpace(name[:i]))
	}
	return nil
}

func (r *TypeRegistry) find(name string) *TypeDef {
	for _, d := range r.defs {
		if d.Name == name {
			return d
		}
		for _, a := range d.Aliases {
			if a == name {
				return d
			}
		}
	}
	return nil
}

// score rates def for column c.
func score(def *TypeDef, c *schema.Column) (int, string) {
	want := c.Type.Primary()
	have := def.Type.Primary()
	s := 0
	switch {
	case want == have:
		s += 1000
	case have.Contains(want):
		s += 500
	case have.Overlaps(want):
		s += 100
	default:
		return Disqualified, "no affinity overlap"
	}

	if c.Default != nil && !c.Default.IsNull() && def.NoDefault {
		return Disqualified, "no default values"
	}
	if c.Nullable() && def.NoNull {
		return Disqualified, "no NULL"
	}
	if c.Length > 0 && def.Length > 0 && def.Length < c.Length {
		return Disqualified, fmt.Sprintf("length %d exceeds %d", c.Length, def.Length)
	}
	if c.Scale > 0 && !def.Scaled {
		return Disqualified, "no scale"
	}

	if def.Padding == c.Padding {
		s += 10
	} else {
		return Disqualified, "padding mismatch"
	}
	if strings.EqualFold(def.MediaType, c.MediaType) {
		s += 10
	} else {
		return Disqualified, "media type mismatch"
	}
	return s, ""
}

// Rank scores every registered type for c, best first. Ties prefer the
// smallest sufficient length, or the unbounded type when c has no length,
// then registry order.
func (r *TypeRegistry) Rank(c *schema.Column) []Candidate {
	out := make([]Candidate, len(r.defs))
	for i, d := range r.defs {
		s, why := score(d, c)
		out[i] = Candidate{Def: d, Score: s, Reason: why}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if c.Length > 0 {
			return a.Def.capacity() < b.Def.capacity()
		}
		return a.Def.Length == Unbounded && b.Def.Length != Unbounded
	})
	return out
}

// Match returns the best surviving type for c.
func (r *TypeRegistry) Match(c *schema.Column) (*TypeDef, error) {
	ranked := r.Rank(c)
	if len(ranked) == 0 || ranked[0].Score == Disqualified {
		return nil, errs.Newf(errs.KindType, "no native type stores column %q of type %s (length %d)",
			c.Name(), c.Type, c.Length)
	}
	return ranked[0].Def, nil
}
