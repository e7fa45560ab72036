package planner

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"db-forge/internal/builder"
	"db-forge/internal/compare"
	"db-forge/internal/dialect"
	"db-forge/internal/errs"
	"db-forge/internal/logger"
	"db-forge/internal/schema"
)

type Option func(*Planner)

// WithProbe replaces the static data probe.
func WithProbe(p DataProbe) Option { return func(pl *Planner) { pl.probe = p } }

func WithLogger(l *logger.Logger) Option { return func(pl *Planner) { pl.log = l } }

func WithCompareMode(m compare.Mode) Option { return func(pl *Planner) { pl.mode = m } }

// WithBuilder sets the builder statements are compiled with.
func WithBuilder(b *builder.Builder) Option { return func(pl *Planner) { pl.builder = b } }

// WithBackupName overrides how backup tables are named.
func WithBackupName(fn func(table string) string) Option {
	return func(pl *Planner) { pl.backupName = fn }
}

func defaultBackupName(table string) string {
	return fmt.Sprintf("%s_backup_%s", table, uuid.NewString()[:8])
}

// Planner plans migrations for one dialect. It keeps no state between calls.
type Planner struct {
	dialect    dialect.Dialect
	builder    *builder.Builder
	probe      DataProbe
	mode       compare.Mode
	backupName func(string) string
	log        *logger.Logger
}

func New(d dialect.Dialect, opts ...Option) *Planner {
	p := &Planner{dialect: d, probe: StaticProbe{}, backupName: defaultBackupName}
	for _, o := range opts {
		o(p)
	}
	p.log = logger.OrNop(p.log)
	if p.builder == nil {
		p.builder = builder.New(d, builder.WithLogger(p.log))
	}
	return p
}

func (p *Planner) Dialect() dialect.Dialect { return p.dialect }

// Plan computes the operations that turn reference into target. Neither tree
// is modified; backups are added to a private copy of reference.
func (p *Planner) Plan(ctx context.Context, reference, target *schema.Datasource) (*Plan, error) {
	if reference == nil || target == nil {
		return nil, errs.New(errs.KindInvalidInput, "both structures are required to plan")
	}
	work := schema.Clone(reference).(*schema.Datasource)
	cmp := compare.New(compare.IncludeIdentical(), compare.WithMode(p.mode), compare.WithLogger(p.log))
	root, err := cmp.Compare(work, target)
	if err != nil {
		return nil, err
	}

	s := &state{
		ctx:      ctx,
		p:        p,
		work:     work,
		toTarget: map[schema.Element]schema.Element{},
		toRef:    map[schema.Element]schema.Element{},
		done:     map[schema.Element]bool{},
		rebuilt:  map[*schema.Table]bool{},
		dropped:  map[*schema.Table]bool{},
	}
	compare.Walk(root, func(c *compare.Comparison) bool {
		if c.Reference != nil && c.Target != nil {
			s.toTarget[c.Reference] = c.Target
			s.toRef[c.Target] = c.Reference
		}
		return true
	})
	if err := s.visit(root); err != nil {
		return nil, err
	}

	plan := p.order(s.ops)
	p.log.With().Int("operations", len(plan.Operations)).Str("dialect", p.dialect.Name()).Logger().Info("migration planned")
	return plan, nil
}

// ignorable reports whether the dialect absorbs a changed field without a statement.
func (p *Planner) ignorable(e compare.Extra) bool {
	if p.dialect.Supports(dialect.FeatureCompareIgnore + "." + e.Field) {
		return true
	}
	if e.Field == string(schema.PropFlags) && !p.dialect.Supports(dialect.FeatureUnsigned) {
		x, _ := e.Old.(schema.Flags)
		y, _ := e.New.(schema.Flags)
		mask := schema.Unsigned | schema.Zerofill
		return x&^mask == y&^mask
	}
	return false
}

// native reports whether the dialect has a statement for op on e.
func (p *Planner) native(op OpType, e schema.Element) bool {
	d := p.dialect
	switch e.Kind() {
	case schema.KindNamespace:
		if op == OpRename {
			return d.Supports(dialect.FeatureRenameNamespace)
		}
		return (op == OpCreate || op == OpDrop) && d.Supports(dialect.FeatureNamespace)
	case schema.KindTable:
		switch op {
		case OpCreate, OpDrop:
			return true
		case OpRename:
			return d.Supports(dialect.FeatureRenameTable)
		}
	case schema.KindView:
		switch op {
		case OpCreate, OpDrop:
			return true
		case OpRename:
			return d.Supports(dialect.FeatureRenameView)
		}
	case schema.KindColumn:
		switch op {
		case OpCreate:
			return d.Supports(dialect.FeatureAlterColumnAdd)
		case OpDrop:
			return d.Supports(dialect.FeatureAlterColumnDrop)
		case OpRename:
			return d.Supports(dialect.FeatureRenameColumn)
		case OpAlter:
			return d.Supports(dialect.FeatureAlterColumn)
		}
	case schema.KindIndex:
		switch op {
		case OpCreate, OpDrop:
			return true
		case OpRename:
			return e.Name() != "" && d.Supports(dialect.FeatureRenameIndex)
		}
	case schema.KindPrimaryKey, schema.KindUnique, schema.KindCheck, schema.KindForeignKey:
		if !d.Supports(dialect.FeatureAlterConstraint) {
			return false
		}
		switch op {
		case OpCreate:
			return true
		case OpDrop:
			if e.Name() == "" {
				return e.Kind() == schema.KindPrimaryKey && d.Style(dialect.FeatureDropConstraintStyle) == "typed"
			}
			return true
		}
	}
	return false
}

// state is the bookkeeping of one Plan call.
type state struct {
	ctx  context.Context
	p    *Planner
	work *schema.Datasource
	ops  []*Operation

	toTarget map[schema.Element]schema.Element
	toRef    map[schema.Element]schema.Element
	// done holds elements an operation already takes care of, on either side.
	done    map[schema.Element]bool
	rebuilt map[*schema.Table]bool
	dropped map[*schema.Table]bool
}

func (s *state) add(op *Operation) *Operation {
	s.ops = append(s.ops, op)
	s.done[op.Element] = true
	if op.Target != nil {
		s.done[op.Target] = true
	}
	return op
}

func (s *state) covered(e schema.Element) bool {
	for cur := e; cur != nil; cur = cur.Parent() {
		if s.done[cur] {
			return true
		}
	}
	return false
}

func within(e, container schema.Element) bool {
	for cur := e; cur != nil; cur = cur.Parent() {
		if cur == container {
			return true
		}
	}
	return false
}

func (s *state) visit(c *compare.Comparison) error {
	if (c.Reference != nil && s.covered(c.Reference)) || (c.Target != nil && s.covered(c.Target)) {
		return nil
	}
	switch c.Type {
	case compare.Created:
		return s.create(c.Target)
	case compare.Dropped:
		return s.drop(c.Reference)
	case compare.Renamed:
		return s.rename(c.Reference, c.Target)
	case compare.Altered:
		for _, e := range c.Extras {
			if !s.p.ignorable(e) {
				if err := s.alter(c.Reference, c.Target); err != nil {
					return err
				}
				break
			}
		}
	}
	for _, ch := range c.Children {
		if err := s.visit(ch); err != nil {
			return err
		}
	}
	return nil
}

func (s *state) create(tgt schema.Element) error {
	if s.p.native(OpCreate, tgt) {
		s.add(&Operation{Type: OpCreate, Element: tgt})
		return nil
	}
	if tgt.Kind() == schema.KindNamespace {
		for _, ch := range tgt.Children() {
			if err := s.create(ch); err != nil {
				return err
			}
		}
		return nil
	}
	return s.rebuildOwner(tgt)
}

func (s *state) drop(ref schema.Element) error {
	if s.p.native(OpDrop, ref) {
		s.add(&Operation{Type: OpDrop, Element: ref})
		var tables []*schema.Table
		switch v := ref.(type) {
		case *schema.Table:
			tables = []*schema.Table{v}
		case *schema.Namespace:
			tables = v.Tables()
		}
		for _, t := range tables {
			s.dropped[t] = true
		}
		for _, t := range tables {
			if err := s.dependents(t); err != nil {
				return err
			}
		}
		return nil
	}
	if ref.Kind() == schema.KindNamespace {
		for _, ch := range ref.Children() {
			if err := s.drop(ch); err != nil {
				return err
			}
		}
		return nil
	}
	return s.rebuildOwner(ref)
}

func (s *state) rename(ref, tgt schema.Element) error {
	if ref.Name() != "" && tgt.Name() != "" && s.p.native(OpRename, ref) {
		s.add(&Operation{Type: OpRename, Element: ref, Target: tgt})
		return nil
	}
	return s.replace(ref, tgt)
}

func (s *state) alter(ref, tgt schema.Element) error {
	if s.p.native(OpAlter, ref) {
		s.add(&Operation{Type: OpAlter, Element: ref, Target: tgt})
		return nil
	}
	return s.replace(ref, tgt)
}

// replace recreates an element the dialect cannot change in place.
func (s *state) replace(ref, tgt schema.Element) error {
	switch ref.Kind() {
	case schema.KindNamespace:
		for _, ch := range ref.Children() {
			if to := s.toTarget[ch]; to != nil {
				if err := s.replace(ch, to); err != nil {
					return err
				}
			}
		}
		return nil
	case schema.KindTable:
		return s.rebuild(ref.(*schema.Table))
	}
	has, err := s.p.probe.HasData(s.ctx, ref)
	if err != nil {
		return err
	}
	if !has && s.p.native(OpDrop, ref) && s.p.native(OpCreate, tgt) {
		d := s.add(&Operation{Type: OpDrop, Element: ref})
		s.add(&Operation{Type: OpCreate, Element: tgt, Original: d})
		return nil
	}
	return s.rebuildOwner(ref)
}

// rebuildOwner rebuilds the reference table holding e, which may sit on
// either side.
func (s *state) rebuildOwner(e schema.Element) error {
	var t schema.Element
	for cur := e.Parent(); cur != nil; cur = cur.Parent() {
		if cur.Kind() == schema.KindTable {
			t = cur
			break
		}
	}
	if t == nil {
		return errs.Newf(errs.KindInvalidInput, "no statement can change %s", schema.Describe(e))
	}
	if schema.Root(t) != schema.Element(s.work) {
		t = s.toRef[t]
	}
	ref, ok := t.(*schema.Table)
	if !ok {
		return errs.Newf(errs.KindInvalidInput, "no statement can change %s", schema.Describe(e))
	}
	return s.rebuild(ref)
}

// rebuild recreates a table in its target shape: drop and create when it is
// empty, backup, drop and restore otherwise.
func (s *state) rebuild(ref *schema.Table) error {
	if s.rebuilt[ref] || s.dropped[ref] {
		return nil
	}
	tgt, _ := s.toTarget[ref].(*schema.Table)
	if tgt == nil {
		return s.drop(ref)
	}
	s.rebuilt[ref] = true
	s.discardWithin(ref, tgt)

	has, err := s.p.probe.HasData(s.ctx, ref)
	if err != nil {
		return err
	}
	if !has {
		d := s.add(&Operation{Type: OpDrop, Element: ref})
		s.add(&Operation{Type: OpCreate, Element: tgt, Original: d})
		return s.dependents(ref)
	}

	backup, err := s.backupOf(ref)
	if err != nil {
		return err
	}
	b := s.add(&Operation{Type: OpBackup, Element: ref, Target: backup})
	d := s.add(&Operation{Type: OpDrop, Element: ref, Original: b})
	r := s.add(&Operation{Type: OpRestore, Element: backup, Target: tgt, Original: d})
	for _, col := range tgt.Columns() {
		if from, ok := s.toRef[col].(*schema.Column); ok {
			r.Columns = append(r.Columns, ColumnMapping{From: from.Name(), To: col.Name()})
		}
	}
	s.p.log.With().Str("table", schema.PathOf(ref).String()).Str("backup", backup.Name()).Logger().Debug("table rebuilt through a backup")
	return s.dependents(ref)
}

// discardWithin drops planned operations on children of a rebuilt table.
func (s *state) discardWithin(ref, tgt *schema.Table) {
	kept := s.ops[:0]
	for _, op := range s.ops {
		inside := func(e schema.Element) bool {
			return e != nil && e != schema.Element(ref) && e != schema.Element(tgt) &&
				(within(e, ref) || within(e, tgt))
		}
		if inside(op.Element) || inside(op.Target) {
			continue
		}
		kept = append(kept, op)
	}
	s.ops = kept
	s.done[ref] = true
	s.done[tgt] = true
}

// backupOf adds a column-only copy of ref to its namespace.
func (s *state) backupOf(ref *schema.Table) (*schema.Table, error) {
	backup := schema.NewTable(s.p.backupName(ref.Name()))
	for _, c := range ref.Columns() {
		col := schema.Clone(c).(*schema.Column)
		col.Flags &^= schema.AutoIncrement
		if err := backup.Add(col); err != nil {
			return nil, err
		}
	}
	if err := schema.Attach(ref.Parent(), backup); err != nil {
		return nil, fmt.Errorf("add backup of %s: %w", ref.Name(), err)
	}
	return backup, nil
}

// dependents recreates the foreign keys of other tables that point at a
// table being dropped.
func (s *state) dependents(t *schema.Table) error {
	for _, fk := range schema.References(s.work, t) {
		owner := fk.Table()
		if owner == t || s.dropped[owner] || s.rebuilt[owner] || s.done[fk] {
			continue
		}
		to, _ := s.toTarget[fk].(*schema.ForeignKey)
		if to == nil {
			continue
		}
		if s.p.native(OpDrop, fk) && s.p.native(OpCreate, to) {
			d := s.add(&Operation{Type: OpDrop, Element: fk})
			s.add(&Operation{Type: OpCreate, Element: to, Original: d})
			continue
		}
		if err := s.rebuild(owner); err != nil {
			return err
		}
	}
	return nil
}
