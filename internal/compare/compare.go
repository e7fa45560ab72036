// Package compare diffs two structure trees into a tree of comparisons.
package compare

import (
	"fmt"
	"strings"

	"db-forge/internal/errs"
	"db-forge/internal/logger"
	"db-forge/internal/schema"
)

// Type classifies one comparison.
type Type int

const (
	Identical Type = iota
	Renamed
	Created
	Dropped
	Altered
)

func (t Type) String() string {
	switch t {
	case Renamed:
		return "RENAMED"
	case Created:
		return "CREATED"
	case Dropped:
		return "DROPPED"
	case Altered:
		return "ALTERED"
	}
	return "IDENTICAL"
}

// Extra records one changed field of an ALTERED comparison.
type Extra struct {
	Field string
	Old   any
	New   any
}

func (e Extra) String() string { return fmt.Sprintf("%s: %v -> %v", e.Field, e.Old, e.New) }

// Comparison pairs a reference element (the current side) with a target
// element (the wanted side). Reference is nil for CREATED, Target for DROPPED.
type Comparison struct {
	Type      Type
	Reference schema.Element
	Target    schema.Element
	Extras    []Extra
	Children  []*Comparison
}

// Element returns the target side, or the reference side when dropped.
func (c *Comparison) Element() schema.Element {
	if c.Target != nil {
		return c.Target
	}
	return c.Reference
}

func (c *Comparison) Kind() schema.Kind { return c.Element().Kind() }

// Changed reports whether c or any descendant is not IDENTICAL.
func (c *Comparison) Changed() bool {
	if c.Type != Identical {
		return true
	}
	for _, ch := range c.Children {
		if ch.Changed() {
			return true
		}
	}
	return false
}

// Extra returns the change recorded for field, if any.
func (c *Comparison) Extra(field string) (Extra, bool) {
	for _, e := range c.Extras {
		if e.Field == field {
			return e, true
		}
	}
	return Extra{}, false
}

func (c *Comparison) String() string {
	switch c.Type {
	case Renamed:
		return fmt.Sprintf("%s %s -> %s", c.Type, schema.Describe(c.Reference), c.Target.Name())
	case Altered:
		parts := make([]string, len(c.Extras))
		for i, e := range c.Extras {
			parts[i] = e.String()
		}
		return fmt.Sprintf("%s %s (%s)", c.Type, schema.Describe(c.Element()), strings.Join(parts, ", "))
	}
	return fmt.Sprintf("%s %s", c.Type, schema.Describe(c.Element()))
}

// Walk visits c and its children depth-first; returning false skips the
// children of the visited comparison.
func Walk(c *Comparison, fn func(*Comparison) bool) {
	if c == nil || !fn(c) {
		return
	}
	for _, ch := range c.Children {
		Walk(ch, fn)
	}
}

// Flatten lists every comparison that is not IDENTICAL, parents first.
func Flatten(c *Comparison) []*Comparison {
	var out []*Comparison
	Walk(c, func(x *Comparison) bool {
		if x.Type != Identical {
			out = append(out, x)
		}
		return true
	})
	return out
}

// Mode selects how tolerant field comparison is.
type Mode int

const (
	// Auto picks Loose when either root was read from a live connection.
	Auto Mode = iota
	Strict
	// Loose tolerates round-trip artifacts of a DBMS, such as implied
	// lengths, added UNSIGNED flags or generated constraint names.
	Loose
)

type Option func(*Comparer)

// IncludeIdentical keeps unchanged children in the result tree.
func IncludeIdentical() Option { return func(c *Comparer) { c.identical = true } }

func WithMode(m Mode) Option { return func(c *Comparer) { c.mode = m } }

// WithIgnore skips the named fields entirely.
func WithIgnore(fields ...string) Option {
	return func(c *Comparer) {
		for _, f := range fields {
			c.ignore[f] = true
		}
	}
}

func WithLogger(l *logger.Logger) Option { return func(c *Comparer) { c.log = l } }

// Comparer diffs structure trees. It never modifies its inputs.
type Comparer struct {
	mode      Mode
	identical bool
	ignore    map[string]bool
	log       *logger.Logger
}

func New(opts ...Option) *Comparer {
	c := &Comparer{ignore: map[string]bool{}}
	for _, o := range opts {
		o(c)
	}
	c.log = logger.OrNop(c.log)
	return c
}

// Compare diffs reference against target with default options.
func Compare(reference, target schema.Element) (*Comparison, error) {
	return New().Compare(reference, target)
}

func (c *Comparer) Compare(reference, target schema.Element) (*Comparison, error) {
	if reference == nil || target == nil {
		return nil, errs.New(errs.KindComparison, "cannot compare a missing element")
	}
	if reference.Kind() != target.Kind() {
		return nil, errs.Newf(errs.KindComparison, "cannot compare %s with %s", reference.Kind(), target.Kind())
	}
	mode := c.mode
	if mode == Auto {
		mode = Strict
		if live(reference) || live(target) {
			mode = Loose
		}
	}

	// The first pass only discovers renames; the second compares lists of
	// column names and foreign key targets through them.
	s := &session{Comparer: c, mode: mode, renames: map[schema.Element]string{}}
	s.compare(reference, target)
	root := s.compare(reference, target)
	if !c.identical {
		prune(root)
	}
	c.log.With().Int("changes", len(Flatten(root))).Str("mode", mode.String()).Logger().Debug("structures compared")
	return root, nil
}

func (m Mode) String() string {
	switch m {
	case Strict:
		return "strict"
	case Loose:
		return "loose"
	}
	return "auto"
}

func live(e schema.Element) bool {
	ds, ok := schema.Root(e).(*schema.Datasource)
	return ok && ds.Live
}

// prune drops unchanged children.
func prune(c *Comparison) {
	kept := c.Children[:0]
	for _, ch := range c.Children {
		if ch.Changed() {
			prune(ch)
			kept = append(kept, ch)
		}
	}
	c.Children = kept
}

type session struct {
	*Comparer
	mode Mode
	// renames maps reference elements onto their target names.
	renames map[schema.Element]string
	// probing is set while a comparison only tests equivalence.
	probing int
}

// equivalent reports whether the full diff of a and b is empty.
func (s *session) equivalent(a, b schema.Element) bool {
	s.probing++
	defer func() { s.probing-- }()
	return !s.compare(a, b).Changed()
}

func (s *session) compare(ref, tgt schema.Element) *Comparison {
	c := &Comparison{Type: Identical, Reference: ref, Target: tgt}
	c.Extras = s.fields(ref, tgt)
	if len(c.Extras) > 0 {
		c.Type = Altered
	}
	c.Children = s.children(ref, tgt)
	return c
}

// children pairs the children of two containers kind by kind.
func (s *session) children(ref, tgt schema.Element) []*Comparison {
	var out []*Comparison
	for _, k := range schema.Kinds {
		refs := schema.ChildrenOf(ref, k)
		tgts := schema.ChildrenOf(tgt, k)
		if len(refs) == 0 && len(tgts) == 0 {
			continue
		}
		out = append(out, s.pair(refs, tgts)...)
	}
	return out
}

func (s *session) pair(refs, tgts []schema.Element) []*Comparison {
	var out []*Comparison
	used := make([]bool, len(tgts))
	var dropped []schema.Element

	for _, r := range refs {
		matched := -1
		for i, t := range tgts {
			if used[i] {
				continue
			}
			if r.Name() != "" && schema.Fold(r.Name()) == schema.Fold(t.Name()) {
				matched = i
				break
			}
			// anonymous elements pair with an anonymous equivalent
			if r.Name() == "" && t.Name() == "" && s.equivalent(r, t) {
				matched = i
				break
			}
		}
		if matched < 0 {
			dropped = append(dropped, r)
			continue
		}
		used[matched] = true
		out = append(out, s.compare(r, tgts[matched]))
	}

	var created []schema.Element
	for i, t := range tgts {
		if !used[i] {
			created = append(created, t)
		}
	}

	// An unmatched pair whose full diff is empty is a rename.
	taken := make([]bool, len(created))
	for _, d := range dropped {
		found := -1
		for i, cr := range created {
			if !taken[i] && s.equivalent(d, cr) {
				found = i
				break
			}
		}
		if found < 0 {
			out = append(out, &Comparison{Type: Dropped, Reference: d})
			continue
		}
		taken[found] = true
		c := s.compare(d, created[found])
		if d.Name() == "" || created[found].Name() == "" {
			// a generated name on one side only
			if s.mode != Loose {
				c.Type = Renamed
			}
		} else {
			c.Type = Renamed
			if s.probing == 0 {
				s.renames[d] = created[found].Name()
			}
		}
		out = append(out, c)
	}
	for i, cr := range created {
		if !taken[i] {
			out = append(out, &Comparison{Type: Created, Target: cr})
		}
	}
	return out
}
