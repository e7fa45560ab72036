package connection

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"sync"

	"db-forge/internal/dialect"
	"db-forge/internal/errs"
	"db-forge/internal/schema"
)

// Explorer reads the live structure of a connection.
type Explorer interface {
	// Explore returns a copy of the structure, reading it on first use.
	Explore(ctx context.Context) (*schema.Datasource, error)
	// Invalidate drops the cached structure so the next Explore reads again.
	Invalidate()
}

type explorer struct {
	conn   *DB
	mu     sync.Mutex
	cached *schema.Datasource
}

func (e *explorer) Explore(ctx context.Context) (*schema.Datasource, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cached == nil {
		ds, err := e.read(ctx)
		if err != nil {
			return nil, err
		}
		e.cached = ds
	}
	return schema.Clone(e.cached).(*schema.Datasource), nil
}

func (e *explorer) Invalidate() {
	e.mu.Lock()
	e.cached = nil
	e.mu.Unlock()
}

// reader holds the state of one introspection pass. Tables are looked up by
// folded name since some dialects report names in a different case.
type reader struct {
	conn   *DB
	arg    any
	space  *schema.Namespace
	tables map[string]*schema.Table
}

func (e *explorer) read(ctx context.Context) (*schema.Datasource, error) {
	c := e.conn
	q := c.dialect.Introspection()

	ns := c.namespace
	if ns == "" {
		ns = c.dialect.DefaultNamespace()
	}
	name := ns
	if name == "" && q.Current != "" {
		var cur sql.NullString
		if err := c.run.QueryRowContext(ctx, q.Current).Scan(&cur); err != nil {
			return nil, mapError(c.name, err, errs.KindQueryFailed, "failed to read current namespace")
		}
		name = cur.String
	}
	if name == "" {
		name = c.name
	}

	r := &reader{
		conn:   c,
		arg:    ns,
		space:  schema.NewNamespace(name),
		tables: make(map[string]*schema.Table),
	}
	if c.dialect.Binding() == dialect.BindNamed {
		r.arg = sql.Named(dialect.ParamName(1), ns)
	}

	if err := r.each(ctx, "tables", q.Tables, 1, r.table); err != nil {
		return nil, err
	}
	if err := r.each(ctx, "columns", q.Columns, 10, r.column); err != nil {
		return nil, err
	}

	pks := newGroups()
	if err := r.each(ctx, "primary keys", q.PrimaryKeys, 2, func(v []sql.NullString) error {
		pks.add(v[0].String, "", v)
		return nil
	}); err != nil {
		return nil, err
	}
	for _, g := range pks.list {
		if t := r.lookup(g.table); t != nil {
			if err := t.Add(schema.NewPrimaryKey("", g.column(1)...)); err != nil {
				return nil, err
			}
		}
	}

	fks := newGroups()
	if err := r.each(ctx, "foreign keys", q.ForeignKeys, 7, func(v []sql.NullString) error {
		fks.add(v[0].String, v[1].String, v)
		return nil
	}); err != nil {
		return nil, err
	}
	for _, g := range fks.list {
		if err := r.foreignKey(g); err != nil {
			return nil, err
		}
	}

	idx := newGroups()
	if err := r.each(ctx, "indexes", q.Indexes, 5, func(v []sql.NullString) error {
		idx.add(v[0].String, v[1].String, v)
		return nil
	}); err != nil {
		return nil, err
	}
	for _, g := range idx.list {
		if err := r.index(g); err != nil {
			return nil, err
		}
	}

	if q.Views != "" {
		if err := r.each(ctx, "views", q.Views, 2, r.view); err != nil {
			return nil, err
		}
	}

	ds := schema.NewDatasource(c.name)
	ds.Live = true
	if err := ds.Add(r.space); err != nil {
		return nil, err
	}
	c.log.With().Str("namespace", name).Int("tables", len(r.space.Tables())).Logger().Info("structure explored")
	return ds, nil
}

// each runs one introspection query and hands every row to fn.
func (r *reader) each(ctx context.Context, what, text string, width int, fn func([]sql.NullString) error) error {
	rows, err := r.conn.run.QueryContext(ctx, text, r.arg)
	if err != nil {
		return mapError(r.conn.name, err, errs.KindQueryFailed, "failed to query "+what)
	}
	defer rows.Close()

	vals := make([]sql.NullString, width)
	ptrs := make([]any, width)
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return mapError(r.conn.name, err, errs.KindQueryFailed, "failed to scan "+what)
		}
		if err := fn(vals); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return mapError(r.conn.name, err, errs.KindQueryFailed, "error iterating "+what)
	}
	return nil
}

func (r *reader) lookup(name string) *schema.Table {
	return r.tables[schema.Fold(name)]
}

func (r *reader) table(v []sql.NullString) error {
	if !v[0].Valid {
		return nil
	}
	t := schema.NewTable(v[0].String)
	if err := r.space.Add(t); err != nil {
		return err
	}
	r.tables[schema.Fold(t.Name())] = t
	return nil
}

// column reads: table, column, data_type, length, scale, is_nullable,
// native_type, extra, default, comment.
func (r *reader) column(v []sql.NullString) error {
	t := r.lookup(v[0].String)
	if t == nil || !v[1].Valid {
		return nil
	}
	col := schema.NewColumn(v[1].String, schema.Undefined)
	native := v[6].String
	if native == "" {
		native = v[2].String
	}
	r.describeType(col, v[2].String, native, v[3], v[4])

	switch strings.ToUpper(strings.TrimSpace(v[5].String)) {
	case "YES", "Y":
		col.Type |= schema.Null
	}

	extra := strings.ToLower(v[7].String)
	if strings.Contains(extra, "auto_increment") || strings.Contains(extra, "identity") {
		col.Flags |= schema.AutoIncrement
	}
	if v[8].Valid && !col.Flags.Has(schema.AutoIncrement) {
		col.Default = parseDefault(v[8].String, strings.Contains(extra, "default_generated"))
	}
	col.Comment = v[9].String
	return t.Add(col)
}

// describeType fills the type, size and storage properties of col from the
// dialect's type registry.
func (r *reader) describeType(col *schema.Column, dataType, native string, length, scale sql.NullString) {
	lower := strings.ToLower(native)
	if strings.Contains(lower, "unsigned") {
		col.Flags |= schema.Unsigned
	}
	if strings.Contains(lower, "zerofill") {
		col.Flags |= schema.Zerofill
	}
	base := strings.TrimSpace(strings.NewReplacer("unsigned", "", "zerofill", "").Replace(lower))

	n, sized := parseInt(length)
	m, _ := parseInt(scale)
	if !sized {
		n, m, sized = parseSize(base)
	}

	types := r.conn.dialect.Types()
	var def *dialect.TypeDef
	if sized && n < 0 {
		// MSSQL reports (MAX) as -1
		def = types.Lookup(base + "(MAX)")
		n = 0
	}
	if def == nil {
		def = types.Lookup(base)
	}
	if def == nil && dataType != "" {
		def = types.Lookup(dataType)
	}

	if def == nil {
		col.Type = guessType(base)
		col.Length, col.Scale = n, m
		r.conn.log.With().Str("column", schema.Describe(col)).Str("type", native).Logger().Warn("unknown native type")
		return
	}
	col.Type = def.Type
	if def.Sized {
		col.Length = n
	}
	if def.Scaled {
		col.Scale = m
	}
	col.Padding = def.Padding
	col.MediaType = def.MediaType
}

func (r *reader) foreignKey(g *group) error {
	t := r.lookup(g.table)
	if t == nil {
		return nil
	}
	first := g.rows[0]
	refName := first[3].String
	ref := r.lookup(refName)
	if ref != nil {
		refName = ref.Name()
	}

	refCols := g.column(4)
	for i, rc := range refCols {
		// SQLite leaves the column out when the key points at the primary key
		if rc == "" && ref != nil && ref.PrimaryKey() != nil && i < len(ref.PrimaryKey().Columns) {
			refCols[i] = ref.PrimaryKey().Columns[i]
		}
	}

	name := g.name
	if strings.HasPrefix(name, "#") {
		name = ""
	}
	fk := schema.NewForeignKey(name, g.column(2), schema.Identifier{refName}, refCols)
	fk.OnUpdate = r.action(first[5].String)
	fk.OnDelete = r.action(first[6].String)
	return t.Add(fk)
}

func (r *reader) action(s string) schema.Action {
	a, err := schema.ParseAction(s)
	if err != nil {
		r.conn.log.With().Str("action", s).Logger().Warn("unknown referential action, using NO ACTION")
	}
	return a
}

func (r *reader) index(g *group) error {
	t := r.lookup(g.table)
	if t == nil {
		return nil
	}
	first := g.rows[0]
	name := g.name
	auto := strings.HasPrefix(strings.ToLower(name), "sqlite_autoindex_")
	if auto {
		name = ""
	}
	if first[4].String == "u" || auto {
		return t.Add(schema.NewUnique(name, g.column(2)...))
	}
	return t.Add(schema.NewIndex(name, strings.TrimSpace(first[3].String) == "0", g.column(2)...))
}

func (r *reader) view(v []sql.NullString) error {
	if !v[0].Valid {
		return nil
	}
	return r.space.Add(schema.NewView(v[0].String, viewBody(v[1].String)))
}

// viewBody strips a leading CREATE VIEW ... AS from a stored definition.
func viewBody(def string) string {
	def = strings.TrimSpace(def)
	up := strings.ToUpper(def)
	if strings.HasPrefix(up, "CREATE") {
		if i := strings.Index(up, " AS "); i >= 0 {
			def = strings.TrimSpace(def[i+4:])
		} else if i := strings.Index(up, "\nAS"); i >= 0 {
			def = strings.TrimSpace(def[i+3:])
		}
	}
	return strings.TrimSpace(strings.TrimSuffix(def, ";"))
}

// group collects the rows of one multi-row object such as a key or index.
type group struct {
	table string
	name  string
	rows  [][]sql.NullString
}

// column returns the i-th value of every row.
func (g *group) column(i int) []string {
	out := make([]string, len(g.rows))
	for j, row := range g.rows {
		out[j] = row[i].String
	}
	return out
}

type groups struct {
	list  []*group
	byKey map[string]*group
}

func newGroups() *groups { return &groups{byKey: make(map[string]*group)} }

func (gs *groups) add(table, name string, v []sql.NullString) {
	key := schema.Fold(table) + "\x00" + name
	g, ok := gs.byKey[key]
	if !ok {
		g = &group{table: table, name: name}
		gs.byKey[key] = g
		gs.list = append(gs.list, g)
	}
	g.rows = append(g.rows, append([]sql.NullString(nil), v...))
}

func parseInt(v sql.NullString) (int, bool) {
	if !v.Valid || strings.TrimSpace(v.String) == "" {
		return 0, false
	}
	s := strings.TrimSpace(v.String)
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f), true
	}
	return 0, false
}

// parseSize reads "(n)" or "(n,m)" from a native type spelling.
func parseSize(native string) (n, m int, ok bool) {
	open := strings.IndexByte(native, '(')
	end := strings.LastIndexByte(native, ')')
	if open < 0 || end < open {
		return 0, 0, false
	}
	parts := strings.Split(native[open+1:end], ",")
	n, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		if strings.EqualFold(strings.TrimSpace(parts[0]), "max") {
			return -1, 0, true
		}
		return 0, 0, false
	}
	if len(parts) > 1 {
		m, _ = strconv.Atoi(strings.TrimSpace(parts[1]))
	}
	return n, m, true
}

// guessType maps a native type the registry does not know to an affinity.
func guessType(native string) schema.DataType {
	switch {
	case strings.Contains(native, "int"):
		return schema.Integer
	case strings.Contains(native, "char"), strings.Contains(native, "text"), strings.Contains(native, "clob"):
		return schema.String
	case strings.Contains(native, "dec"), strings.Contains(native, "num"), strings.Contains(native, "money"):
		return schema.Number
	case strings.Contains(native, "float"), strings.Contains(native, "real"), strings.Contains(native, "double"):
		return schema.Float
	case strings.Contains(native, "date"), strings.Contains(native, "time"):
		return schema.Timestamp
	case strings.Contains(native, "bool"), native == "bit":
		return schema.Boolean
	case strings.Contains(native, "blob"), strings.Contains(native, "binary"), strings.Contains(native, "bytea"), native == "raw":
		return schema.Binary
	}
	return schema.String
}

var currentTimestamps = map[string]bool{
	"CURRENT_TIMESTAMP":   true,
	"CURRENT_TIMESTAMP()": true,
	"NOW()":               true,
	"GETDATE()":           true,
	"SYSDATE":             true,
	"SYSTIMESTAMP":        true,
	"LOCALTIMESTAMP":      true,
	"DATETIME('NOW')":     true,
}

// parseDefault classifies a default as reported by the catalog. generated
// marks MySQL expression defaults, which are reported without quotes.
func parseDefault(raw string, generated bool) *schema.Default {
	s := stripParens(strings.TrimSpace(raw))
	up := strings.ToUpper(s)
	switch {
	case s == "":
		return nil
	case up == "NULL" || strings.HasPrefix(up, "NULL::"):
		return &schema.Default{Kind: schema.DefaultNull}
	case currentTimestamps[up] || strings.HasPrefix(up, "CURRENT_TIMESTAMP("):
		return &schema.Default{Kind: schema.DefaultCurrentTimestamp}
	}

	quoted := strings.TrimPrefix(s, "N")
	if strings.HasPrefix(quoted, "'") {
		if end := strings.LastIndexByte(quoted, '\''); end > 0 {
			rest := quoted[end+1:]
			if rest == "" || strings.HasPrefix(rest, "::") {
				return &schema.Default{Value: strings.ReplaceAll(quoted[1:end], "''", "'")}
			}
		}
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return &schema.Default{Value: s}
	}
	if generated || strings.ContainsAny(s, "()") || strings.Contains(s, "::") {
		return &schema.Default{Kind: schema.DefaultExpression, Value: s}
	}
	return &schema.Default{Value: s}
}

// stripParens removes parentheses that wrap the whole of s, as MSSQL
// reports ((0)).
func stripParens(s string) string {
	for len(s) >= 2 && s[0] == '(' && s[len(s)-1] == ')' {
		depth := 0
		wraps := true
		for i := 0; i < len(s)-1; i++ {
			switch s[i] {
			case '(':
				depth++
			case ')':
				depth--
			}
			if depth == 0 {
				wraps = false
				break
			}
		}
		if !wraps {
			return s
		}
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}
