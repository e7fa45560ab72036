package dialect

import (
	"context"
	"time"

	"db-forge/internal/schema"
)

type SQLiteDialect struct {
	base
}

func NewSQLite(opts ...Option) *SQLiteDialect {
	d := &SQLiteDialect{base: newBase("sqlite", `"`, `"`, map[string]any{
		FeatureNamespace:              false,
		FeatureAlterColumn:            false,
		FeatureAlterColumnAdd:         true,
		FeatureAlterColumnDrop:        false,
		FeatureAlterConstraint:        false,
		FeatureRenameIndex:            false,
		FeatureRenameView:             false,
		FeatureRenameNamespace:        false,
		FeatureCreateIndexIfNotExists: true,
		FeatureAliasWhere:             true,
		FeatureAliasGroup:             true,
		FeatureAliasHaving:            true,
		FeatureInlineAutoIncrementPK:  true,
		FeatureJoinNatural:            true,
		FeatureJoinRight:              true,
		"compare.ignore.media_type":   true,
	}, map[Keyword]string{
		KeywordTrue:  "1",
		KeywordFalse: "0",
	}, opts)}
	d.funcs = map[string]string{"SUBSTRING": "SUBSTR", "CEILING": "CEIL"}
	d.layout = strftimeLayout
	d.namespace = "main"
	d.types = NewTypeRegistry(
		&TypeDef{Name: "INTEGER", Type: schema.Integer, Aliases: []string{"INT", "BIGINT", "SMALLINT", "TINYINT"}},
		&TypeDef{Name: "REAL", Type: schema.Float, Aliases: []string{"DOUBLE", "FLOAT"}},
		&TypeDef{Name: "NUMERIC", Type: schema.Number, Length: 1000, Sized: true, Scaled: true, Aliases: []string{"DECIMAL"}},
		&TypeDef{Name: "BOOLEAN", Type: schema.Boolean},
		&TypeDef{Name: "TEXT", Type: schema.String, Length: Unbounded, Aliases: []string{"CLOB"}},
		&TypeDef{Name: "VARCHAR", Type: schema.String, Length: 1000000000, Sized: true, Aliases: []string{"NVARCHAR", "CHARACTER VARYING"}},
		&TypeDef{Name: "CHAR", Type: schema.String, Length: 1000000000, Sized: true, Padding: schema.Padding{Direction: schema.PadRight, Glyph: " "}, Aliases: []string{"NCHAR", "CHARACTER"}},
		&TypeDef{Name: "DATETIME", Type: schema.Timestamp, Aliases: []string{"TIMESTAMP", "DATE"}},
		&TypeDef{Name: "BLOB", Type: schema.Binary, Length: Unbounded},
	)
	return d
}

// Placeholder uses the ?NNN form so repeated keys bind one argument.
func (d *SQLiteDialect) Placeholder(ordinal int) string { return "?" + itoa(ordinal) }

func (d *SQLiteDialect) DisableConstraints(ctx context.Context, s Session) error {
	return execAll(ctx, s, "PRAGMA foreign_keys = OFF")
}

func (d *SQLiteDialect) EnableConstraints(ctx context.Context, s Session) error {
	return execAll(ctx, s, "PRAGMA foreign_keys = ON")
}

func (d *SQLiteDialect) TimeoutStatement(t time.Duration) (string, error) {
	return "PRAGMA busy_timeout = " + millis(t), nil
}

func (d *SQLiteDialect) Introspection() Queries {
	return Queries{
		Tables: `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' AND ?1 IS NOT NULL ORDER BY name`,
		Columns: `SELECT m.name, p.name, p.type, NULL, NULL,
    CASE WHEN p."notnull" = 0 AND p.pk = 0 THEN 'YES' ELSE 'NO' END,
    p.type,
    CASE WHEN p.pk = 1 AND lower(m.sql) LIKE '%autoincrement%' THEN 'auto_increment' ELSE '' END,
    p.dflt_value, NULL
FROM sqlite_master m JOIN pragma_table_info(m.name) p
WHERE m.type = 'table' AND m.name NOT LIKE 'sqlite_%' AND ?1 IS NOT NULL
ORDER BY m.name, p.cid`,
		PrimaryKeys: `SELECT m.name, p.name FROM sqlite_master m JOIN pragma_table_info(m.name) p
WHERE m.type = 'table' AND p.pk > 0 AND ?1 IS NOT NULL ORDER BY m.name, p.pk`,
		// SQLite does not keep foreign key names; the id groups the columns of one key.
		ForeignKeys: `SELECT m.name, '#' || f.id, f."from", f."table", f."to", f.on_update, f.on_delete
FROM sqlite_master m JOIN pragma_foreign_key_list(m.name) f
WHERE m.type = 'table' AND ?1 IS NOT NULL ORDER BY m.name, f.id, f.seq`,
		Indexes: `SELECT m.tbl_name, m.name, ii.name, CASE WHEN il."unique" = 1 THEN 0 ELSE 1 END, il.origin
FROM sqlite_master m
JOIN pragma_index_list(m.tbl_name) il ON il.name = m.name
JOIN pragma_index_info(m.name) ii
WHERE m.type = 'index' AND il.origin <> 'pk' AND ?1 IS NOT NULL
ORDER BY m.tbl_name, m.name, ii.seqno`,
		Views: `SELECT name, sql FROM sqlite_master WHERE type = 'view' AND ?1 IS NOT NULL ORDER BY name`,
	}
}
