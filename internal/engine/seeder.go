package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"db-forge/internal/builder"
	"db-forge/internal/connection"
	"db-forge/internal/logger"
	"db-forge/internal/query"
	"db-forge/internal/schema"
)

// FillStatus is the outcome of filling one table.
type FillStatus string

const (
	StatusOK      FillStatus = "OK"
	StatusMissing FillStatus = "MISSING DATA"
	StatusPartial FillStatus = "PARTIAL"
	StatusFailed  FillStatus = "FAILED"
)

// FillResult reports the rows written to one table.
type FillResult struct {
	Table     string
	Requested int
	// Target is Requested lowered to what the identity columns can number.
	Target  int
	Actual  int
	Status  FillStatus
	Message string
}

type SeederOption func(*Seeder)

func WithGenerator(g *Generator) SeederOption {
	return func(s *Seeder) { s.gen = g }
}

func WithSeedLogger(l *logger.Logger) SeederOption {
	return func(s *Seeder) { s.log = l }
}

// WithFillProgress is called after each inserted row.
func WithFillProgress(fn func(t *schema.Table, inserted, target int)) SeederOption {
	return func(s *Seeder) { s.progress = fn }
}

// WithRetryFactor bounds the insert attempts of a table to factor times the
// target.
func WithRetryFactor(factor int) SeederOption {
	return func(s *Seeder) { s.retries = factor }
}

// Seeder fills tables with generated rows. Foreign key columns take values
// that exist in the referenced table; tables are filled parents first.
type Seeder struct {
	conn     connection.Connection
	builder  *builder.Builder
	gen      *Generator
	log      *logger.Logger
	progress func(*schema.Table, int, int)
	retries  int
}

func NewSeeder(conn connection.Connection, opts ...SeederOption) *Seeder {
	s := &Seeder{conn: conn, retries: 10}
	for _, o := range opts {
		o(s)
	}
	s.log = logger.OrNop(s.log)
	if s.gen == nil {
		s.gen = NewGenerator()
	}
	s.builder = builder.New(conn.Dialect(), builder.WithLogger(s.log))
	return s
}

// poolLimit caps the referenced keys read for one foreign key.
const poolLimit = 10000

type poolKey struct {
	table   *schema.Table
	columns string
}

// Fill inserts count rows into every table. Tables caught in a reference
// cycle are filled in the order that breaks the cycle, their unsatisfied
// references get NULL where allowed.
func (s *Seeder) Fill(ctx context.Context, tables []*schema.Table, count int) ([]FillResult, error) {
	sorted, broken := schema.SortTablesByFKCount(tables)
	for _, t := range broken {
		s.log.With().Str("table", t.Name()).Logger().Warn("reference cycle, filling before its parents")
	}

	pools := map[poolKey][][]any{}
	results := make([]FillResult, 0, len(sorted))
	for _, t := range sorted {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := s.fillTable(ctx, t, count, pools)
		results = append(results, res)
		// children read the keys again
		for k := range pools {
			if k.table == t {
				delete(pools, k)
			}
		}
	}
	return results, nil
}

// Verify recounts the tables of results against their targets.
func (s *Seeder) Verify(ctx context.Context, tables []*schema.Table, results []FillResult) []FillResult {
	byName := make(map[string]*schema.Table, len(tables))
	for _, t := range tables {
		byName[t.Name()] = t
	}
	out := make([]FillResult, len(results))
	for i, r := range results {
		out[i] = r
		t := byName[r.Table]
		if t == nil {
			continue
		}
		n, err := s.Count(ctx, t)
		if err != nil {
			out[i].Status = StatusFailed
			out[i].Message = err.Error()
			continue
		}
		out[i].Actual = n
		if n < r.Target {
			out[i].Status = StatusPartial
			out[i].Message = fmt.Sprintf("%d/%d rows", n, r.Target)
		}
	}
	return out
}

// Count returns the number of rows in t.
func (s *Seeder) Count(ctx context.Context, t *schema.Table) (int, error) {
	stmt, err := s.builder.Build(&query.Select{
		Columns: []query.Node{query.Fn("COUNT", &query.Star{})},
		From:    []query.TableExpr{&query.TableRef{Name: query.TableName(s.conn.Dialect(), t)}},
	}, nil)
	if err != nil {
		return 0, err
	}
	res, err := s.conn.Execute(ctx, stmt, nil)
	if err != nil {
		return 0, err
	}
	if len(res.Rows) == 0 || len(res.Rows[0]) == 0 {
		return 0, nil
	}
	return toInt(res.Rows[0][0])
}

// fillPlan is what fillTable needs to know about a table.
type fillPlan struct {
	columns []*schema.Column
	index   map[string]int
	// keys are column sets whose combined values may not repeat.
	keys [][]int
	// refs are foreign keys whose columns are all written.
	refs []*schema.ForeignKey
}

func newFillPlan(t *schema.Table) *fillPlan {
	p := &fillPlan{index: map[string]int{}}
	for _, c := range t.Columns() {
		if c.Flags.Has(schema.AutoIncrement) {
			continue
		}
		p.index[strings.ToLower(c.Name())] = len(p.columns)
		p.columns = append(p.columns, c)
	}

	addKey := func(cols []string) {
		var key []int
		for _, name := range cols {
			i, ok := p.index[strings.ToLower(name)]
			if !ok {
				// an identity column keeps the set unique
				return
			}
			key = append(key, i)
		}
		if len(key) > 0 {
			p.keys = append(p.keys, key)
		}
	}
	if pk := t.PrimaryKey(); pk != nil {
		addKey(pk.Columns)
	}
	for _, u := range t.Uniques() {
		addKey(u.Columns)
	}
	for _, ix := range t.Indexes() {
		if ix.Unique {
			addKey(ix.Columns)
		}
	}

	for _, fk := range t.ForeignKeys() {
		all := len(fk.Columns) > 0 && len(fk.Columns) == len(fk.RefColumns)
		for _, name := range fk.Columns {
			if _, ok := p.index[strings.ToLower(name)]; !ok {
				all = false
			}
		}
		if all {
			p.refs = append(p.refs, fk)
		}
	}
	return p
}

func (p *fillPlan) unique(c *schema.Column) bool {
	i := p.index[strings.ToLower(c.Name())]
	for _, key := range p.keys {
		if len(key) == 1 && key[0] == i {
			return true
		}
	}
	return false
}

func (s *Seeder) fillTable(ctx context.Context, t *schema.Table, count int, pools map[poolKey][][]any) FillResult {
	res := FillResult{Table: t.Name(), Requested: count, Target: identityLimit(t, count, s.log)}
	log := s.log.With().Str("table", t.Name()).Logger()
	fail := func(msg string, err error) FillResult {
		res.Status = StatusFailed
		res.Message = fmt.Sprintf("%s: %v", msg, err)
		log.With().Err(err).Logger().Error(msg)
		return res
	}

	before, err := s.Count(ctx, t)
	if err != nil {
		return fail("cannot count rows", err)
	}

	p := newFillPlan(t)
	if len(p.columns) == 0 {
		res.Status = StatusMissing
		res.Message = "no writable columns"
		return res
	}
	stmt, err := s.insert(t, p)
	if err != nil {
		return fail("cannot build insert", err)
	}

	refRows := make([][][]any, len(p.refs))
	for i, fk := range p.refs {
		if refRows[i], err = s.pool(ctx, fk, pools); err != nil {
			log.With().Err(err).Logger().Warn("cannot read referenced keys")
		}
	}

	seen := make([]map[string]bool, len(p.keys))
	for i := range seen {
		seen[i] = map[string]bool{}
	}

	inserted, attempts, failures := 0, 0, 0
	for inserted < res.Target && attempts < res.Target*s.retries {
		if err := ctx.Err(); err != nil {
			return fail("interrupted", err)
		}
		attempts++
		row := s.row(p, refRows, attempts)
		if duplicate(p.keys, seen, row) {
			continue
		}

		values := make(map[string]any, len(row))
		for i, c := range p.columns {
			values[c.Name()] = row[i]
		}
		if _, err := s.conn.Execute(ctx, stmt, values); err != nil {
			failures++
			if failures <= 3 {
				log.With().Int("attempt", attempts).Err(err).Logger().Debug("insert failed")
			}
			continue
		}
		inserted++
		if s.progress != nil {
			s.progress(t, inserted, res.Target)
		}
	}

	after, err := s.Count(ctx, t)
	if err != nil {
		return fail("cannot verify rows", err)
	}
	res.Actual = after - before
	res.Status = StatusOK
	if res.Actual < res.Target {
		res.Status = StatusMissing
		if inserted == 0 {
			res.Message = fmt.Sprintf("no row inserted in %d attempts", attempts)
		} else {
			res.Message = fmt.Sprintf("only %d of %d rows inserted", res.Actual, res.Target)
		}
	}
	log.With().Int("inserted", inserted).Int("attempts", attempts).Logger().Info("table filled")
	return res
}

func (s *Seeder) insert(t *schema.Table, p *fillPlan) (*builder.Compiled, error) {
	names := make([]string, len(p.columns))
	row := make([]query.Node, len(p.columns))
	for i, c := range p.columns {
		names[i] = c.Name()
		row[i] = query.P(c.Name(), c.Type)
	}
	return s.builder.Build(&query.Insert{
		Table:   query.TableName(s.conn.Dialect(), t),
		Columns: names,
		Rows:    [][]query.Node{row},
	}, nil)
}

// row generates the values of one attempt. Foreign keys walk through the
// referenced keys so that combinations of several references do not repeat
// before all of them were used.
func (s *Seeder) row(p *fillPlan, refRows [][][]any, attempt int) []any {
	row := make([]any, len(p.columns))
	filled := make([]bool, len(p.columns))
	stride := 1
	for n, fk := range p.refs {
		keys := refRows[n]
		for k, name := range fk.Columns {
			i := p.index[strings.ToLower(name)]
			filled[i] = true
			if len(keys) == 0 {
				row[i] = orphanValue(p.columns[i], attempt, p.unique(p.columns[i]))
				continue
			}
			row[i] = keys[((attempt-1)/stride)%len(keys)][k]
		}
		if len(keys) > 0 {
			stride *= len(keys)
		}
	}
	for i, c := range p.columns {
		if !filled[i] {
			row[i] = s.gen.Value(c, attempt, p.unique(c))
		}
	}
	return row
}

// orphanValue fills a reference whose target has no rows yet: NULL when
// allowed, otherwise a key the target is likely to get.
func orphanValue(c *schema.Column, attempt int, unique bool) any {
	if c.Nullable() {
		return nil
	}
	if unique {
		return attempt
	}
	return 1
}

func (s *Seeder) pool(ctx context.Context, fk *schema.ForeignKey, pools map[poolKey][][]any) ([][]any, error) {
	target := fk.Target()
	if target == nil {
		return nil, nil
	}
	key := poolKey{table: target, columns: strings.Join(fk.RefColumns, ",")}
	if rows, ok := pools[key]; ok {
		return rows, nil
	}
	cols := make([]query.Node, len(fk.RefColumns))
	for i, c := range fk.RefColumns {
		cols[i] = query.Col(c)
	}
	stmt, err := s.builder.Build(&query.Select{
		Columns: cols,
		From:    []query.TableExpr{&query.TableRef{Name: query.TableName(s.conn.Dialect(), target)}},
		Limit:   poolLimit,
	}, nil)
	if err != nil {
		return nil, err
	}
	res, err := s.conn.Execute(ctx, stmt, nil)
	if err != nil {
		return nil, err
	}
	pools[key] = res.Rows
	return res.Rows, nil
}

// duplicate reports whether row repeats a key already used, and marks its
// keys as used otherwise.
func duplicate(keys [][]int, seen []map[string]bool, row []any) bool {
	combos := make([]string, len(keys))
	for n, key := range keys {
		parts := make([]string, len(key))
		null := false
		for j, i := range key {
			if row[i] == nil {
				null = true
			}
			parts[j] = fmt.Sprint(row[i])
		}
		if null {
			// NULLs never collide
			combos[n] = ""
			continue
		}
		combos[n] = strings.Join(parts, "|")
		if seen[n][combos[n]] {
			return true
		}
	}
	for n, c := range combos {
		if c != "" {
			seen[n][c] = true
		}
	}
	return false
}

// identityLimit lowers count to what an identity column of limited
// precision can number.
func identityLimit(t *schema.Table, count int, log *logger.Logger) int {
	limit := count
	for _, c := range t.Columns() {
		if !c.Flags.Has(schema.AutoIncrement) || c.Length <= 0 || c.Length >= 10 {
			continue
		}
		if upper := pow10(c.Length) - 1; upper < limit {
			limit = upper
			log.With().Str("table", t.Name()).Str("column", c.Name()).Int("max", upper).Logger().Warn("identity column limits the row count")
		}
	}
	return limit
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int64:
		return int(n), nil
	case int32:
		return int(n), nil
	case int:
		return n, nil
	case float64:
		return int(n), nil
	case []byte:
		return strconv.Atoi(string(n))
	case string:
		return strconv.Atoi(n)
	}
	return 0, fmt.Errorf("unexpected count value %T", v)
}
