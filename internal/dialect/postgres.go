package dialect

import (
	"context"
	"encoding/hex"
	"time"

	"db-forge/internal/schema"
)

type PostgresDialect struct {
	base
}

func NewPostgres(opts ...Option) *PostgresDialect {
	d := &PostgresDialect{base: newBase("postgres", `"`, `"`, map[string]any{
		FeatureCreateIndexIfNotExists: true,
		FeatureAliasGroup:             true,
		FeatureOffsetOnly:             true,
		FeatureJoinNatural:            true,
		FeatureJoinRight:              true,
	}, map[Keyword]string{
		KeywordAutoIncrement: "GENERATED BY DEFAULT AS IDENTITY",
	}, opts)}
	d.funcs = map[string]string{"SUBSTR": "SUBSTRING", "CEILING": "CEIL"}
	d.layout = toCharLayout
	d.namespace = "public"
	d.types = NewTypeRegistry(
		&TypeDef{Name: "INTEGER", Type: schema.Integer, Aliases: []string{"INT", "INT4", "SERIAL"}},
		&TypeDef{Name: "BIGINT", Type: schema.Integer, Aliases: []string{"INT8", "BIGSERIAL"}},
		&TypeDef{Name: "SMALLINT", Type: schema.Integer, Aliases: []string{"INT2"}},
		&TypeDef{Name: "NUMERIC", Type: schema.Number, Length: 1000, Sized: true, Scaled: true, Aliases: []string{"DECIMAL"}},
		&TypeDef{Name: "DOUBLE PRECISION", Type: schema.Float, Aliases: []string{"FLOAT8", "FLOAT"}},
		&TypeDef{Name: "REAL", Type: schema.Float, Aliases: []string{"FLOAT4"}},
		&TypeDef{Name: "BOOLEAN", Type: schema.Boolean, Aliases: []string{"BOOL"}},
		&TypeDef{Name: "TEXT", Type: schema.String, Length: Unbounded},
		&TypeDef{Name: "VARCHAR", Type: schema.String, Length: 10485760, Sized: true, Aliases: []string{"CHARACTER VARYING"}},
		&TypeDef{Name: "CHAR", Type: schema.String, Length: 10485760, Sized: true, DefaultLength: 1, Padding: schema.Padding{Direction: schema.PadRight, Glyph: " "}, Aliases: []string{"BPCHAR", "CHARACTER"}},
		&TypeDef{Name: "JSONB", Type: schema.String, Length: Unbounded, MediaType: "application/json", Aliases: []string{"JSON"}},
		&TypeDef{Name: "TIMESTAMP", Type: schema.Timestamp, Aliases: []string{"TIMESTAMPTZ", "TIMESTAMP WITHOUT TIME ZONE", "TIMESTAMP WITH TIME ZONE", "DATE"}},
		&TypeDef{Name: "BYTEA", Type: schema.Binary, Length: Unbounded},
	)
	return d
}

func (d *PostgresDialect) QuoteBinary(v []byte) string {
	return `'\x` + hex.EncodeToString(v) + `'::bytea`
}

func (d *PostgresDialect) Placeholder(ordinal int) string { return "$" + itoa(ordinal) }

// DisableConstraints prefers session_replication_role, which needs superuser.
// Without it deferrable keys are deferred instead.
func (d *PostgresDialect) DisableConstraints(ctx context.Context, s Session) error {
	if err := execAll(ctx, s, "SET session_replication_role = 'replica'"); err != nil {
		if err2 := execAll(ctx, s, "SET CONSTRAINTS ALL DEFERRED"); err2 != nil {
			return err2
		}
		d.log.Warnf("postgres: %v; falling back to deferred constraints", err)
	}
	return nil
}

func (d *PostgresDialect) EnableConstraints(ctx context.Context, s Session) error {
	// Fails harmlessly when the role was never switched.
	_ = execAll(ctx, s, "SET session_replication_role = 'origin'")
	return execAll(ctx, s, "SET CONSTRAINTS ALL IMMEDIATE")
}

func (d *PostgresDialect) TimeoutStatement(t time.Duration) (string, error) {
	return "SET statement_timeout = " + millis(t), nil
}

func (d *PostgresDialect) TimezoneStatement(tz string) (string, error) {
	return "SET TIME ZONE " + d.QuoteString(tz), nil
}

func (d *PostgresDialect) Introspection() Queries {
	return Queries{
		Tables: `SELECT table_name FROM information_schema.tables WHERE table_schema = $1 AND table_type = 'BASE TABLE' ORDER BY table_name`,
		Columns: `SELECT
    c.table_name,
    c.column_name,
    c.data_type,
    COALESCE(c.character_maximum_length, CASE WHEN c.data_type = 'numeric' THEN c.numeric_precision END),
    CASE WHEN c.data_type = 'numeric' THEN c.numeric_scale END,
    c.is_nullable,
    c.udt_name,
    CASE WHEN c.is_identity = 'YES' OR c.column_default LIKE 'nextval(%' THEN 'auto_increment' ELSE '' END,
    CASE WHEN c.is_identity = 'YES' OR c.column_default LIKE 'nextval(%' THEN NULL ELSE c.column_default END,
    col_description((quote_ident(c.table_schema) || '.' || quote_ident(c.table_name))::regclass, c.ordinal_position)
FROM information_schema.columns c
WHERE c.table_schema = $1
ORDER BY c.table_name, c.ordinal_position`,
		PrimaryKeys: `SELECT kcu.table_name, kcu.column_name
FROM information_schema.key_column_usage kcu
JOIN information_schema.table_constraints tc
    ON kcu.constraint_name = tc.constraint_name AND kcu.table_schema = tc.table_schema
WHERE kcu.table_schema = $1 AND tc.constraint_type = 'PRIMARY KEY'
ORDER BY kcu.table_name, kcu.ordinal_position`,
		ForeignKeys: `SELECT kcu.table_name, kcu.constraint_name, kcu.column_name, ccu.table_name, ccu.column_name,
    rc.update_rule, rc.delete_rule
FROM information_schema.key_column_usage kcu
JOIN information_schema.referential_constraints rc
    ON rc.constraint_name = kcu.constraint_name AND rc.constraint_schema = kcu.table_schema
JOIN information_schema.key_column_usage ccu
    ON ccu.constraint_name = rc.unique_constraint_name AND ccu.table_schema = rc.unique_constraint_schema
    AND ccu.ordinal_position = kcu.position_in_unique_constraint
WHERE kcu.table_schema = $1
ORDER BY kcu.table_name, kcu.constraint_name, kcu.ordinal_position`,
		Indexes: `SELECT t.relname, i.relname, a.attname, CASE WHEN ix.indisunique THEN 0 ELSE 1 END,
    CASE WHEN c.contype = 'u' THEN 'u' ELSE 'c' END
FROM pg_index ix
JOIN pg_class t ON t.oid = ix.indrelid
JOIN pg_class i ON i.oid = ix.indexrelid
JOIN pg_namespace n ON n.oid = t.relnamespace
JOIN LATERAL unnest(ix.indkey) WITH ORDINALITY AS k(attnum, ord) ON true
JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
LEFT JOIN pg_constraint c ON c.conindid = ix.indexrelid AND c.contype = 'u'
WHERE n.nspname = $1 AND NOT ix.indisprimary
ORDER BY t.relname, i.relname, k.ord`,
		Views: `SELECT table_name, view_definition FROM information_schema.views WHERE table_schema = $1 ORDER BY table_name`,
	}
}
