package query

import (
	"db-forge/internal/dialect"
	"db-forge/internal/errs"
	"db-forge/internal/schema"
	"db-forge/internal/token"
)

// AlterAction is one change applied by an AlterTable. Actions write the
// whole statement because some dialects spell them as procedure calls.
type AlterAction interface {
	alter(s *token.Stream, ctx *Context, t *schema.Table) error
}

// AlterTable applies a single action to Table.
type AlterTable struct {
	ddl
	Table  *schema.Table
	Action AlterAction
}

func (a *AlterTable) Tokenize(s *token.Stream, ctx *Context) error {
	ctx.SetType(StatementDDL)
	if a.Action == nil {
		return errs.Build("ALTER TABLE %s without an action", a.Table.Name())
	}
	return a.Action.alter(s, ctx, a.Table)
}

func (a *AlterTable) Traverse(v Visitor) { v(a) }

func alterPrefix(s *token.Stream, ctx *Context, t *schema.Table) *token.Stream {
	return s.Keyword("ALTER TABLE").Space().Ident(qualify(ctx, t, t.Name())).Space()
}

type AddColumn struct {
	Column *schema.Column
}

func (a *AddColumn) alter(s *token.Stream, ctx *Context, t *schema.Table) error {
	if err := requireFeature(ctx, dialect.FeatureAlterColumnAdd, "adding columns"); err != nil {
		return err
	}
	alterPrefix(s, ctx, t)
	switch ctx.Dialect.Style(dialect.FeatureAlterColumnStyle) {
	case "alter_column":
		s.Keyword("ADD").Space()
		return columnDef(s, ctx, a.Column, false)
	case "modify_group":
		s.Keyword("ADD").Space().Text("(")
		if err := columnDef(s, ctx, a.Column, false); err != nil {
			return err
		}
		s.Text(")")
		return nil
	}
	s.Keyword("ADD COLUMN").Space()
	return columnDef(s, ctx, a.Column, false)
}

type DropColumn struct {
	Name string
}

func (d *DropColumn) alter(s *token.Stream, ctx *Context, t *schema.Table) error {
	if err := requireFeature(ctx, dialect.FeatureAlterColumnDrop, "dropping columns"); err != nil {
		return err
	}
	alterPrefix(s, ctx, t).Keyword("DROP COLUMN").Space().Ident(ctx.quote(d.Name))
	return nil
}

type RenameColumn struct {
	Name, To string
}

func (r *RenameColumn) alter(s *token.Stream, ctx *Context, t *schema.Table) error {
	if err := requireFeature(ctx, dialect.FeatureRenameColumn, "renaming columns"); err != nil {
		return err
	}
	if ctx.Dialect.Style(dialect.FeatureRenameStyle) == "sp_rename" {
		s.Keyword("EXEC sp_rename").Space().Literal(ctx.Dialect.QuoteString(dotted(ctx, t, t.Name(), r.Name))).
			Text(",").Space().Literal(ctx.Dialect.QuoteString(r.To)).
			Text(",").Space().Literal(ctx.Dialect.QuoteString("COLUMN"))
		return nil
	}
	alterPrefix(s, ctx, t).Keyword("RENAME COLUMN").Space().Ident(ctx.quote(r.Name)).Space().
		Keyword("TO").Space().Ident(ctx.quote(r.To))
	return nil
}

// AlterColumn changes a column in place to the shape of Column.
type AlterColumn struct {
	Column *schema.Column
}

func (a *AlterColumn) alter(s *token.Stream, ctx *Context, t *schema.Table) error {
	if err := requireFeature(ctx, dialect.FeatureAlterColumn, "altering columns"); err != nil {
		return err
	}
	c := a.Column
	alterPrefix(s, ctx, t)
	switch ctx.Dialect.Style(dialect.FeatureAlterColumnStyle) {
	case "modify":
		s.Keyword("MODIFY COLUMN").Space()
		return columnDef(s, ctx, c, false)
	case "modify_group":
		s.Keyword("MODIFY").Space().Text("(")
		if err := columnDef(s, ctx, c, false); err != nil {
			return err
		}
		s.Text(")")
		return nil
	case "alter_column":
		def, err := ctx.Dialect.Types().Match(c)
		if err != nil {
			return err
		}
		s.Keyword("ALTER COLUMN").Space().Ident(ctx.quote(c.Name())).Space().Text(def.Render(c)).Space()
		if c.Nullable() {
			s.KeywordID(dialect.KeywordNull)
		} else {
			s.KeywordID(dialect.KeywordNotNull)
		}
		return nil
	}

	def, err := ctx.Dialect.Types().Match(c)
	if err != nil {
		return err
	}
	col := ctx.quote(c.Name())
	s.Keyword("ALTER COLUMN").Space().Ident(col).Space().Keyword("TYPE").Space().Text(def.Render(c))
	s.Text(",").Space().Keyword("ALTER COLUMN").Space().Ident(col).Space()
	if c.Nullable() {
		s.Keyword("DROP NOT NULL")
	} else {
		s.Keyword("SET NOT NULL")
	}
	s.Text(",").Space().Keyword("ALTER COLUMN").Space().Ident(col).Space()
	if c.Default == nil {
		s.Keyword("DROP DEFAULT")
		return nil
	}
	s.Keyword("SET")
	defaultDef(s, ctx, c)
	return nil
}

type AddConstraint struct {
	Constraint schema.Element
}

func (a *AddConstraint) alter(s *token.Stream, ctx *Context, t *schema.Table) error {
	if err := requireFeature(ctx, dialect.FeatureAlterConstraint, "altering constraints"); err != nil {
		return err
	}
	alterPrefix(s, ctx, t).Keyword("ADD").Space()
	return constraintDef(s, ctx, a.Constraint)
}

type DropConstraint struct {
	Constraint schema.Element
}

func (d *DropConstraint) alter(s *token.Stream, ctx *Context, t *schema.Table) error {
	if err := requireFeature(ctx, dialect.FeatureAlterConstraint, "altering constraints"); err != nil {
		return err
	}
	c := d.Constraint
	typed := ctx.Dialect.Style(dialect.FeatureDropConstraintStyle) == "typed"
	if typed && c.Kind() == schema.KindPrimaryKey {
		alterPrefix(s, ctx, t).Keyword("DROP PRIMARY KEY")
		return nil
	}
	if c.Name() == "" {
		return errs.Build("cannot drop the anonymous %s of %s", c.Kind(), t.Name())
	}
	alterPrefix(s, ctx, t)
	if !typed {
		s.Keyword("DROP CONSTRAINT")
	} else {
		switch c.Kind() {
		case schema.KindForeignKey:
			s.Keyword("DROP FOREIGN KEY")
		case schema.KindUnique:
			s.Keyword("DROP INDEX")
		default:
			s.Keyword("DROP CHECK")
		}
	}
	s.Space().Ident(ctx.quote(c.Name()))
	return nil
}
