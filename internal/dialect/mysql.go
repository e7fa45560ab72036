package dialect

import (
	"context"
	"strings"
	"time"

	"db-forge/internal/schema"
)

type MysqlDialect struct {
	base
}

func NewMysql(opts ...Option) *MysqlDialect {
	d := &MysqlDialect{base: newBase("mysql", "`", "`", map[string]any{
		FeatureDropIndexOnTable:    true,
		FeatureRenameNamespace:     false,
		FeatureAlterColumnStyle:    "modify",
		FeatureRenameStyle:         "rename_table",
		FeatureDropConstraintStyle: "typed",
		FeatureAliasGroup:          true,
		FeatureAliasHaving:         true,
		FeatureUnsigned:            true,
		FeatureJoinNatural:         true,
		FeatureJoinRight:           true,
	}, map[Keyword]string{
		KeywordAutoIncrement: "AUTO_INCREMENT",
		KeywordConcat:        "CONCAT",
	}, opts)}
	d.funcs = map[string]string{"LENGTH": "CHAR_LENGTH", "SUBSTR": "SUBSTRING", "CEIL": "CEILING"}
	d.layout = dateFormatLayout
	d.types = NewTypeRegistry(
		&TypeDef{Name: "INT", Type: schema.Integer, Aliases: []string{"INTEGER", "MEDIUMINT"}},
		&TypeDef{Name: "BIGINT", Type: schema.Integer},
		&TypeDef{Name: "SMALLINT", Type: schema.Integer},
		&TypeDef{Name: "TINYINT", Type: schema.Integer},
		&TypeDef{Name: "DECIMAL", Type: schema.Number, Length: 65, Sized: true, DefaultLength: 10, Scaled: true, Aliases: []string{"NUMERIC"}},
		&TypeDef{Name: "DOUBLE", Type: schema.Float, Aliases: []string{"FLOAT", "REAL"}},
		&TypeDef{Name: "BOOLEAN", Type: schema.Boolean, Aliases: []string{"TINYINT(1)", "BOOL"}},
		&TypeDef{Name: "VARCHAR", Type: schema.String, Length: 65535, Sized: true, DefaultLength: 255},
		&TypeDef{Name: "CHAR", Type: schema.String, Length: 255, Sized: true, DefaultLength: 1, Padding: schema.Padding{Direction: schema.PadRight, Glyph: " "}},
		&TypeDef{Name: "TEXT", Type: schema.String, Length: Unbounded, NoDefault: true, Aliases: []string{"LONGTEXT", "MEDIUMTEXT", "TINYTEXT"}},
		&TypeDef{Name: "JSON", Type: schema.String, Length: Unbounded, NoDefault: true, MediaType: "application/json"},
		&TypeDef{Name: "DATETIME", Type: schema.Timestamp, Aliases: []string{"TIMESTAMP", "DATE"}},
		&TypeDef{Name: "VARBINARY", Type: schema.Binary, Length: 65535, Sized: true, DefaultLength: 255, Aliases: []string{"BINARY"}},
		&TypeDef{Name: "BLOB", Type: schema.Binary, Length: Unbounded, NoDefault: true, Aliases: []string{"LONGBLOB", "MEDIUMBLOB", "TINYBLOB"}},
	)
	return d
}

// QuoteString also escapes backslashes, which MySQL treats as escapes by default.
func (d *MysqlDialect) QuoteString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (d *MysqlDialect) Placeholder(int) string { return "?" }

func (d *MysqlDialect) Binding() Binding { return BindPositional }

func (d *MysqlDialect) DisableConstraints(ctx context.Context, s Session) error {
	return execAll(ctx, s, "SET FOREIGN_KEY_CHECKS = 0")
}

func (d *MysqlDialect) EnableConstraints(ctx context.Context, s Session) error {
	return execAll(ctx, s, "SET FOREIGN_KEY_CHECKS = 1")
}

func (d *MysqlDialect) TimeoutStatement(t time.Duration) (string, error) {
	return "SET SESSION max_execution_time = " + millis(t), nil
}

func (d *MysqlDialect) TimezoneStatement(tz string) (string, error) {
	return "SET time_zone = " + d.QuoteString(tz), nil
}

// Introspection reads the named database, or the connection's current one
// when the name is empty.
func (d *MysqlDialect) Introspection() Queries {
	return Queries{
		Current: `SELECT DATABASE()`,
		Tables:  `SELECT TABLE_NAME FROM information_schema.TABLES WHERE TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE()) AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME`,
		Columns: `SELECT TABLE_NAME, COLUMN_NAME, DATA_TYPE,
    CASE WHEN DATA_TYPE IN ('decimal', 'numeric') THEN NUMERIC_PRECISION ELSE CHARACTER_MAXIMUM_LENGTH END,
    CASE WHEN DATA_TYPE IN ('decimal', 'numeric') THEN NUMERIC_SCALE END,
    IS_NULLABLE, COLUMN_TYPE, EXTRA, COLUMN_DEFAULT, COLUMN_COMMENT
FROM information_schema.COLUMNS WHERE TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE()) ORDER BY TABLE_NAME, ORDINAL_POSITION`,
		PrimaryKeys: `SELECT TABLE_NAME, COLUMN_NAME FROM information_schema.KEY_COLUMN_USAGE
WHERE TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE()) AND CONSTRAINT_NAME = 'PRIMARY' ORDER BY TABLE_NAME, ORDINAL_POSITION`,
		ForeignKeys: `SELECT k.TABLE_NAME, k.CONSTRAINT_NAME, k.COLUMN_NAME, k.REFERENCED_TABLE_NAME, k.REFERENCED_COLUMN_NAME,
    r.UPDATE_RULE, r.DELETE_RULE
FROM information_schema.KEY_COLUMN_USAGE k
JOIN information_schema.REFERENTIAL_CONSTRAINTS r
    ON r.CONSTRAINT_SCHEMA = k.CONSTRAINT_SCHEMA AND r.CONSTRAINT_NAME = k.CONSTRAINT_NAME
WHERE k.TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE()) AND k.REFERENCED_TABLE_NAME IS NOT NULL
ORDER BY k.TABLE_NAME, k.CONSTRAINT_NAME, k.ORDINAL_POSITION`,
		// Indexes MySQL creates for foreign keys carry the key's name and are skipped.
		Indexes: `SELECT s.TABLE_NAME, s.INDEX_NAME, s.COLUMN_NAME, s.NON_UNIQUE,
    CASE WHEN s.NON_UNIQUE = 0 THEN 'u' ELSE 'c' END
FROM information_schema.STATISTICS s
WHERE s.TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE()) AND s.INDEX_NAME <> 'PRIMARY'
    AND s.INDEX_NAME NOT IN (SELECT c.CONSTRAINT_NAME FROM information_schema.TABLE_CONSTRAINTS c
        WHERE c.CONSTRAINT_TYPE = 'FOREIGN KEY' AND c.TABLE_SCHEMA = s.TABLE_SCHEMA AND c.TABLE_NAME = s.TABLE_NAME)
ORDER BY s.TABLE_NAME, s.INDEX_NAME, s.SEQ_IN_INDEX`,
		Views: `SELECT TABLE_NAME, VIEW_DEFINITION FROM information_schema.VIEWS WHERE TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE()) ORDER BY TABLE_NAME`,
	}
}
