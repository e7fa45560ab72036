package dialect

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"db-forge/internal/errs"
	"db-forge/internal/logger"
)

// Option configures a dialect.
type Option func(*base)

// WithLogger routes translation warnings to log.
func WithLogger(log *logger.Logger) Option {
	return func(b *base) { b.log = log }
}

// base carries the behavior every dialect shares. Dialects embed it and
// override what differs.
type base struct {
	name      string
	open      string
	close     string
	keywords  map[Keyword]string
	features  cascade
	funcs     map[string]string
	layout    timeLayout
	types     *TypeRegistry
	namespace string
	log       *logger.Logger
}

func newBase(name, open, close string, features map[string]any, keywords map[Keyword]string, opts []Option) base {
	b := base{
		name:     name,
		open:     open,
		close:    close,
		keywords: keywords,
		features: cascade{defaults: NewFeatures(defaultFeatures), overrides: NewFeatures(features)},
		funcs:    map[string]string{},
		layout:   strftimeLayout,
		log:      logger.Nop(),
	}
	for _, o := range opts {
		o(&b)
	}
	return b
}

func (b *base) Name() string { return b.name }

func (b *base) QuoteIdentifier(name string) string {
	return b.open + strings.ReplaceAll(name, b.close, b.close+b.close) + b.close
}

func (b *base) QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (b *base) QuoteBinary(v []byte) string {
	return "X'" + strings.ToUpper(hex.EncodeToString(v)) + "'"
}

func (b *base) Keyword(k Keyword) (string, error) {
	if s, ok := b.keywords[k]; ok {
		return s, nil
	}
	if s, ok := defaultKeywords[k]; ok {
		return s, nil
	}
	return "", errs.Build("unknown keyword id %d", k)
}

func (b *base) JoinOperator(flags JoinFlag) (string, error) { return spellJoin(flags, b.features) }

func (b *base) Function(name string) (string, error) { return translateFunc(name, b.funcs) }

func (b *base) FormatTime(layout string) TimeFunc { return b.layout.translate(layout, b.log) }

func (b *base) Feature(path string) any { return b.features.Feature(path) }

func (b *base) Supports(path string) bool { return b.features.Supports(path) }

func (b *base) Style(path string) string { return b.features.Style(path) }

func (b *base) Types() *TypeRegistry { return b.types }

func (b *base) DefaultNamespace() string { return b.namespace }

func (b *base) Binding() Binding { return BindNumbered }

func (b *base) TimeoutStatement(d time.Duration) (string, error) {
	return "", errs.Newf(errs.KindInvalidInput, "%s has no session timeout", b.name)
}

func (b *base) TimezoneStatement(tz string) (string, error) {
	return "", errs.Newf(errs.KindInvalidInput, "%s has no session timezone", b.name)
}

// execAll runs statements in order and stops at the first failure.
func execAll(ctx context.Context, s Session, stmts ...string) error {
	for _, q := range stmts {
		if _, err := s.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("%s: %w", q, err)
		}
	}
	return nil
}

// queryStrings collects the first column of every row.
func queryStrings(ctx context.Context, s Session, q string, args ...any) ([]string, error) {
	rows, err := s.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func itoa(i int) string { return strconv.Itoa(i) }

func millis(d time.Duration) string { return strconv.FormatInt(d.Milliseconds(), 10) }
