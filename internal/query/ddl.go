package query

import (
	"strconv"
	"strings"

	"db-forge/internal/dialect"
	"db-forge/internal/errs"
	"db-forge/internal/schema"
	"db-forge/internal/token"
)

// ddl is embedded by structure statements.
type ddl struct{}

func (ddl) statement() {}

func (ddl) DataType() schema.DataType { return schema.Undefined }

func namespaceOf(e schema.Element) *schema.Namespace {
	for p := e.Parent(); p != nil; p = p.Parent() {
		if ns, ok := p.(*schema.Namespace); ok {
			return ns
		}
	}
	return nil
}

// qualify quotes name, prefixed by the namespace of e when the dialect has
// namespaces.
func qualify(ctx *Context, e schema.Element, name string) string {
	q := ctx.quote(name)
	if ns := namespaceOf(e); ns != nil && ctx.Dialect.Supports(dialect.FeatureNamespace) {
		return ctx.quote(ns.Name()) + "." + q
	}
	return q
}

// dotted is the unquoted namespace.table path used by sp_rename.
func dotted(ctx *Context, e schema.Element, names ...string) string {
	parts := names
	if ns := namespaceOf(e); ns != nil && ctx.Dialect.Supports(dialect.FeatureNamespace) {
		parts = append([]string{ns.Name()}, names...)
	}
	return strings.Join(parts, ".")
}

func identList(ctx *Context, names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = ctx.quote(n)
	}
	return strings.Join(quoted, ", ")
}

func requireFeature(ctx *Context, path, what string) error {
	if !ctx.Dialect.Supports(path) {
		return errs.Build("%s is not supported by %s", what, ctx.Dialect.Name())
	}
	return nil
}

// columnDef writes name, type and attributes of c. inlinePK puts the primary
// key on the column itself, for dialects that only allow AUTOINCREMENT there.
func columnDef(s *token.Stream, ctx *Context, c *schema.Column, inlinePK bool) error {
	def, err := ctx.Dialect.Types().Match(c)
	if err != nil {
		return err
	}
	s.Ident(ctx.quote(c.Name())).Space().Text(def.Render(c))
	if c.Flags.Has(schema.Unsigned) && ctx.Dialect.Supports(dialect.FeatureUnsigned) {
		s.Space().KeywordID(dialect.KeywordUnsigned)
	}
	if c.Flags.Has(schema.AutoIncrement) {
		switch {
		case !ctx.Dialect.Supports(dialect.FeatureInlineAutoIncrementPK):
			s.Space().KeywordID(dialect.KeywordAutoIncrement)
		case inlinePK:
			s.Space().Keyword("PRIMARY KEY").Space().KeywordID(dialect.KeywordAutoIncrement)
		}
	}
	if !c.Nullable() {
		s.Space().KeywordID(dialect.KeywordNotNull)
	}
	defaultDef(s, ctx, c)
	return nil
}

func defaultDef(s *token.Stream, ctx *Context, c *schema.Column) {
	d := c.Default
	if d == nil {
		return
	}
	s.Space().KeywordID(dialect.KeywordDefault).Space()
	switch d.Kind {
	case schema.DefaultNull:
		s.KeywordID(dialect.KeywordNull)
	case schema.DefaultCurrentTimestamp:
		s.KeywordID(dialect.KeywordCurrentTimestamp)
	case schema.DefaultExpression:
		s.Text("(" + d.Value + ")")
	default:
		literalDefault(s, ctx, c.Type.Primary(), d.Value)
	}
}

func literalDefault(s *token.Stream, ctx *Context, t schema.DataType, v string) {
	switch {
	case t == schema.Boolean:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil && b {
			s.KeywordID(dialect.KeywordTrue)
		} else {
			s.KeywordID(dialect.KeywordFalse)
		}
	case schema.Number.Contains(t) && isNumeric(v):
		s.Literal(strings.TrimSpace(v))
	default:
		s.Literal(ctx.Dialect.QuoteString(v))
	}
}

func isNumeric(v string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return err == nil
}

// constraintDef writes a table constraint with its optional CONSTRAINT name.
func constraintDef(s *token.Stream, ctx *Context, e schema.Element) error {
	if e.Name() != "" {
		s.Keyword("CONSTRAINT").Space().Ident(ctx.quote(e.Name())).Space()
	}
	switch c := e.(type) {
	case *schema.PrimaryKey:
		s.Keyword("PRIMARY KEY").Space().Text("(" + identList(ctx, c.Columns) + ")")
	case *schema.Unique:
		s.Keyword("UNIQUE").Space().Text("(" + identList(ctx, c.Columns) + ")")
	case *schema.Check:
		s.Keyword("CHECK").Space().Text("(" + c.Expression + ")")
	case *schema.ForeignKey:
		s.Keyword("FOREIGN KEY").Space().Text("(" + identList(ctx, c.Columns) + ")").Space()
		s.Keyword("REFERENCES").Space()
		if t := c.Target(); t != nil {
			s.Ident(qualify(ctx, t, t.Name()))
		} else {
			qualifiedIdent(s, ctx, c.RefTable)
		}
		s.Space().Text("(" + identList(ctx, c.RefColumns) + ")")
		if c.OnDelete != schema.NoAction {
			s.Space().Keyword("ON DELETE").Space().Keyword(c.OnDelete.String())
		}
		if c.OnUpdate != schema.NoAction && ctx.Dialect.Supports(dialect.FeatureForeignKeyOnUpdate) {
			s.Space().Keyword("ON UPDATE").Space().Keyword(c.OnUpdate.String())
		}
	default:
		return errs.Build("%s is not a table constraint", e.Kind())
	}
	return nil
}

type CreateTable struct {
	ddl
	Table       *schema.Table
	IfNotExists bool
}

func (c *CreateTable) Tokenize(s *token.Stream, ctx *Context) error {
	ctx.SetType(StatementDDL)
	t := c.Table
	cols := t.Columns()
	if len(cols) == 0 {
		return errs.Build("table %s has no columns", t.Name())
	}
	s.Keyword("CREATE TABLE").Space()
	if c.IfNotExists && ctx.Dialect.Supports(dialect.FeatureCreateTableIfNotExists) {
		s.KeywordID(dialect.KeywordIfNotExists).Space()
	}
	s.Ident(qualify(ctx, t, t.Name())).Space().Text("(")

	pk := t.PrimaryKey()
	inline := ""
	if pk != nil && len(pk.Columns) == 1 && ctx.Dialect.Supports(dialect.FeatureInlineAutoIncrementPK) {
		if col := t.Column(pk.Columns[0]); col != nil && col.Flags.Has(schema.AutoIncrement) {
			inline = col.Name()
		}
	}
	for i, col := range cols {
		if i > 0 {
			s.Text(",").Space()
		}
		if err := columnDef(s, ctx, col, col.Name() == inline); err != nil {
			return err
		}
	}
	for _, e := range t.Constraints() {
		if e.Kind() == schema.KindIndex || (inline != "" && e.Kind() == schema.KindPrimaryKey) {
			continue
		}
		s.Text(",").Space()
		if err := constraintDef(s, ctx, e); err != nil {
			return err
		}
	}
	s.Text(")")
	return nil
}

func (c *CreateTable) Traverse(v Visitor) { v(c) }

type DropTable struct {
	ddl
	Table    *schema.Table
	IfExists bool
}

func (d *DropTable) Tokenize(s *token.Stream, ctx *Context) error {
	ctx.SetType(StatementDDL)
	s.Keyword("DROP TABLE").Space()
	if d.IfExists && ctx.Dialect.Supports(dialect.FeatureDropTableIfExists) {
		s.KeywordID(dialect.KeywordIfExists).Space()
	}
	s.Ident(qualify(ctx, d.Table, d.Table.Name()))
	return nil
}

func (d *DropTable) Traverse(v Visitor) { v(d) }

// rename writes the dialect's statement for renaming a table or view.
func rename(s *token.Stream, ctx *Context, e schema.Element, keyword, to string) {
	switch ctx.Dialect.Style(dialect.FeatureRenameStyle) {
	case "rename_table":
		s.Keyword("RENAME TABLE").Space().Ident(qualify(ctx, e, e.Name())).Space().
			Keyword("TO").Space().Ident(qualify(ctx, e, to))
	case "sp_rename":
		s.Keyword("EXEC sp_rename").Space().Literal(ctx.Dialect.QuoteString(dotted(ctx, e, e.Name()))).
			Text(",").Space().Literal(ctx.Dialect.QuoteString(to))
	default:
		s.Keyword("ALTER "+keyword).Space().Ident(qualify(ctx, e, e.Name())).Space().
			Keyword("RENAME TO").Space().Ident(ctx.quote(to))
	}
}

// RenameTable renames Table to Name within its namespace.
type RenameTable struct {
	ddl
	Table *schema.Table
	Name  string
}

func (r *RenameTable) Tokenize(s *token.Stream, ctx *Context) error {
	ctx.SetType(StatementDDL)
	if err := requireFeature(ctx, dialect.FeatureRenameTable, "renaming tables"); err != nil {
		return err
	}
	rename(s, ctx, r.Table, "TABLE", r.Name)
	return nil
}

func (r *RenameTable) Traverse(v Visitor) { v(r) }

type CreateNamespace struct {
	ddl
	Namespace *schema.Namespace
}

func (c *CreateNamespace) Tokenize(s *token.Stream, ctx *Context) error {
	ctx.SetType(StatementDDL)
	if err := requireFeature(ctx, dialect.FeatureNamespace, "namespaces"); err != nil {
		return err
	}
	s.Keyword("CREATE SCHEMA").Space().Ident(ctx.quote(c.Namespace.Name()))
	return nil
}

func (c *CreateNamespace) Traverse(v Visitor) { v(c) }

type DropNamespace struct {
	ddl
	Namespace *schema.Namespace
}

func (d *DropNamespace) Tokenize(s *token.Stream, ctx *Context) error {
	ctx.SetType(StatementDDL)
	if err := requireFeature(ctx, dialect.FeatureNamespace, "namespaces"); err != nil {
		return err
	}
	s.Keyword("DROP SCHEMA").Space().Ident(ctx.quote(d.Namespace.Name()))
	return nil
}

func (d *DropNamespace) Traverse(v Visitor) { v(d) }

type RenameNamespace struct {
	ddl
	Namespace *schema.Namespace
	Name      string
}

func (r *RenameNamespace) Tokenize(s *token.Stream, ctx *Context) error {
	ctx.SetType(StatementDDL)
	if err := requireFeature(ctx, dialect.FeatureRenameNamespace, "renaming namespaces"); err != nil {
		return err
	}
	s.Keyword("ALTER SCHEMA").Space().Ident(ctx.quote(r.Namespace.Name())).Space().
		Keyword("RENAME TO").Space().Ident(ctx.quote(r.Name))
	return nil
}

func (r *RenameNamespace) Traverse(v Visitor) { v(r) }

// IndexName is the name of idx, generated from table and columns for an
// anonymous index.
func IndexName(idx *schema.Index) string {
	if idx.Name() != "" {
		return idx.Name()
	}
	table := ""
	if t := idx.Table(); t != nil {
		table = t.Name()
	}
	return "idx_" + table + "_" + strings.Join(idx.Columns, "_")
}

func indexTable(idx *schema.Index) (*schema.Table, error) {
	t := idx.Table()
	if t == nil {
		return nil, errs.Build("index %s belongs to no table", IndexName(idx))
	}
	return t, nil
}

type CreateIndex struct {
	ddl
	Index       *schema.Index
	IfNotExists bool
}

func (c *CreateIndex) Tokenize(s *token.Stream, ctx *Context) error {
	ctx.SetType(StatementDDL)
	t, err := indexTable(c.Index)
	if err != nil {
		return err
	}
	s.Keyword("CREATE")
	if c.Index.Unique {
		s.Space().Keyword("UNIQUE")
	}
	s.Space().Keyword("INDEX").Space()
	if c.IfNotExists && ctx.Dialect.Supports(dialect.FeatureCreateIndexIfNotExists) {
		s.KeywordID(dialect.KeywordIfNotExists).Space()
	}
	s.Ident(ctx.quote(IndexName(c.Index))).Space().Keyword("ON").Space().
		Ident(qualify(ctx, t, t.Name())).Space().Text("(" + identList(ctx, c.Index.Columns) + ")")
	return nil
}

func (c *CreateIndex) Traverse(v Visitor) { v(c) }

type DropIndex struct {
	ddl
	Index *schema.Index
}

func (d *DropIndex) Tokenize(s *token.Stream, ctx *Context) error {
	ctx.SetType(StatementDDL)
	t, err := indexTable(d.Index)
	if err != nil {
		return err
	}
	name := IndexName(d.Index)
	s.Keyword("DROP INDEX").Space()
	if ctx.Dialect.Supports(dialect.FeatureDropIndexOnTable) {
		s.Ident(ctx.quote(name)).Space().Keyword("ON").Space().Ident(qualify(ctx, t, t.Name()))
		return nil
	}
	s.Ident(qualify(ctx, t, name))
	return nil
}

func (d *DropIndex) Traverse(v Visitor) { v(d) }

type RenameIndex struct {
	ddl
	Index *schema.Index
	Name  string
}

func (r *RenameIndex) Tokenize(s *token.Stream, ctx *Context) error {
	ctx.SetType(StatementDDL)
	if err := requireFeature(ctx, dialect.FeatureRenameIndex, "renaming indexes"); err != nil {
		return err
	}
	t, err := indexTable(r.Index)
	if err != nil {
		return err
	}
	old := IndexName(r.Index)
	switch ctx.Dialect.Style(dialect.FeatureRenameStyle) {
	case "rename_table":
		s.Keyword("ALTER TABLE").Space().Ident(qualify(ctx, t, t.Name())).Space().
			Keyword("RENAME INDEX").Space().Ident(ctx.quote(old)).Space().Keyword("TO").Space().Ident(ctx.quote(r.Name))
	case "sp_rename":
		s.Keyword("EXEC sp_rename").Space().Literal(ctx.Dialect.QuoteString(dotted(ctx, t, t.Name(), old))).
			Text(",").Space().Literal(ctx.Dialect.QuoteString(r.Name)).
			Text(",").Space().Literal(ctx.Dialect.QuoteString("INDEX"))
	default:
		s.Keyword("ALTER INDEX").Space().Ident(qualify(ctx, t, old)).Space().
			Keyword("RENAME TO").Space().Ident(ctx.quote(r.Name))
	}
	return nil
}

func (r *RenameIndex) Traverse(v Visitor) { v(r) }

type CreateView struct {
	ddl
	View *schema.View
}

func (c *CreateView) Tokenize(s *token.Stream, ctx *Context) error {
	ctx.SetType(StatementDDL)
	if strings.TrimSpace(c.View.Definition) == "" {
		return errs.Build("view %s has no definition", c.View.Name())
	}
	s.Keyword("CREATE VIEW").Space().Ident(qualify(ctx, c.View, c.View.Name())).Space().
		Keyword("AS").Space().Text(strings.TrimSpace(c.View.Definition))
	return nil
}

func (c *CreateView) Traverse(v Visitor) { v(c) }

type DropView struct {
	ddl
	View *schema.View
}

func (d *DropView) Tokenize(s *token.Stream, ctx *Context) error {
	ctx.SetType(StatementDDL)
	s.Keyword("DROP VIEW").Space().Ident(qualify(ctx, d.View, d.View.Name()))
	return nil
}

func (d *DropView) Traverse(v Visitor) { v(d) }

type RenameView struct {
	ddl
	View *schema.View
	Name string
}

func (r *RenameView) Tokenize(s *token.Stream, ctx *Context) error {
	ctx.SetType(StatementDDL)
	if err := requireFeature(ctx, dialect.FeatureRenameView, "renaming views"); err != nil {
		return err
	}
	rename(s, ctx, r.View, "VIEW", r.Name)
	return nil
}

func (r *RenameView) Traverse(v Visitor) { v(r) }
