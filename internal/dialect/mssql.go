package dialect

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"db-forge/internal/schema"
)

type MSSQLDialect struct {
	base
}

func NewMSSQL(opts ...Option) *MSSQLDialect {
	d := &MSSQLDialect{base: newBase("mssql", "[", "]", map[string]any{
		FeatureCreateTableIfNotExists: false,
		FeatureDropIndexOnTable:       true,
		FeatureRenameNamespace:        false,
		FeatureAlterColumnStyle:       "alter_column",
		FeatureLimitStyle:             "offset_fetch",
		FeatureLimitTop:               true,
		FeatureOffsetNeedsOrder:       true,
		FeatureRenameStyle:            "sp_rename",
		FeatureJoinNatural:            false,
		FeatureJoinRight:              true,
	}, map[Keyword]string{
		KeywordTrue:          "1",
		KeywordFalse:         "0",
		KeywordAutoIncrement: "IDENTITY(1,1)",
		KeywordConcat:        "+",
	}, opts)}
	d.funcs = map[string]string{"LENGTH": "LEN", "SUBSTR": "SUBSTRING", "CEIL": "CEILING", "NOW": "GETDATE"}
	d.layout = dotnetLayout
	d.namespace = "dbo"
	d.types = NewTypeRegistry(
		&TypeDef{Name: "INT", Type: schema.Integer, Aliases: []string{"INTEGER"}},
		&TypeDef{Name: "BIGINT", Type: schema.Integer},
		&TypeDef{Name: "SMALLINT", Type: schema.Integer},
		&TypeDef{Name: "TINYINT", Type: schema.Integer},
		&TypeDef{Name: "DECIMAL", Type: schema.Number, Length: 38, Sized: true, DefaultLength: 18, Scaled: true, Aliases: []string{"NUMERIC", "MONEY", "SMALLMONEY"}},
		&TypeDef{Name: "FLOAT", Type: schema.Float, Aliases: []string{"REAL"}},
		&TypeDef{Name: "BIT", Type: schema.Boolean},
		&TypeDef{Name: "NVARCHAR", Type: schema.String, Length: 4000, Sized: true, DefaultLength: 255, Aliases: []string{"VARCHAR"}},
		&TypeDef{Name: "NVARCHAR(MAX)", Type: schema.String, Length: Unbounded, Aliases: []string{"VARCHAR(MAX)", "NTEXT", "TEXT"}},
		&TypeDef{Name: "NCHAR", Type: schema.String, Length: 4000, Sized: true, DefaultLength: 1, Padding: schema.Padding{Direction: schema.PadRight, Glyph: " "}, Aliases: []string{"CHAR"}},
		&TypeDef{Name: "DATETIME2", Type: schema.Timestamp, Aliases: []string{"DATETIME", "SMALLDATETIME", "DATE", "DATETIMEOFFSET"}},
		&TypeDef{Name: "VARBINARY", Type: schema.Binary, Length: 8000, Sized: true, DefaultLength: 255, Aliases: []string{"BINARY"}},
		&TypeDef{Name: "VARBINARY(MAX)", Type: schema.Binary, Length: Unbounded, Aliases: []string{"IMAGE"}},
	)
	return d
}

func (d *MSSQLDialect) QuoteString(s string) string {
	return "N'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (d *MSSQLDialect) QuoteBinary(v []byte) string {
	return "0x" + strings.ToUpper(hex.EncodeToString(v))
}

// Placeholder spells @p1, @p2, ... which go-mssqldb binds by name.
func (d *MSSQLDialect) Placeholder(ordinal int) string { return "@" + ParamName(ordinal) }

func (d *MSSQLDialect) Binding() Binding { return BindNamed }

const mssqlTablesQuery = `SELECT QUOTENAME(TABLE_SCHEMA) + '.' + QUOTENAME(TABLE_NAME) FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_TYPE = 'BASE TABLE'`

// DisableConstraints turns off checking on every table; sp_msforeachtable is
// undocumented, so the tables are listed first.
func (d *MSSQLDialect) DisableConstraints(ctx context.Context, s Session) error {
	tables, err := queryStrings(ctx, s, mssqlTablesQuery)
	if err != nil {
		return err
	}
	for _, t := range tables {
		if err := execAll(ctx, s, fmt.Sprintf("ALTER TABLE %s NOCHECK CONSTRAINT all", t)); err != nil {
			return fmt.Errorf("failed to disable constraints on %s: %w", t, err)
		}
	}
	return nil
}

// EnableConstraints re-enables checking and validates existing rows.
func (d *MSSQLDialect) EnableConstraints(ctx context.Context, s Session) error {
	tables, err := queryStrings(ctx, s, mssqlTablesQuery)
	if err != nil {
		return err
	}
	for _, t := range tables {
		if err := execAll(ctx, s, fmt.Sprintf("ALTER TABLE %s WITH CHECK CHECK CONSTRAINT all", t)); err != nil {
			return fmt.Errorf("failed to enable constraints on %s: %w", t, err)
		}
	}
	return nil
}

func (d *MSSQLDialect) TimeoutStatement(t time.Duration) (string, error) {
	return "SET LOCK_TIMEOUT " + millis(t), nil
}

func (d *MSSQLDialect) Introspection() Queries {
	return Queries{
		Tables: `SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = @p1 AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME`,
		Columns: `SELECT
    c.TABLE_NAME,
    c.COLUMN_NAME,
    c.DATA_TYPE,
    CASE WHEN c.DATA_TYPE IN ('decimal', 'numeric') THEN c.NUMERIC_PRECISION ELSE c.CHARACTER_MAXIMUM_LENGTH END,
    CASE WHEN c.DATA_TYPE IN ('decimal', 'numeric') THEN c.NUMERIC_SCALE END,
    c.IS_NULLABLE,
    c.DATA_TYPE,
    CASE WHEN COLUMNPROPERTY(OBJECT_ID(c.TABLE_SCHEMA + '.' + c.TABLE_NAME), c.COLUMN_NAME, 'IsIdentity') = 1
        THEN 'auto_increment' ELSE '' END,
    c.COLUMN_DEFAULT,
    CAST(ep.value AS NVARCHAR(MAX))
FROM INFORMATION_SCHEMA.COLUMNS c
LEFT JOIN sys.extended_properties ep
    ON ep.major_id = OBJECT_ID(c.TABLE_SCHEMA + '.' + c.TABLE_NAME)
    AND ep.minor_id = COLUMNPROPERTY(OBJECT_ID(c.TABLE_SCHEMA + '.' + c.TABLE_NAME), c.COLUMN_NAME, 'ColumnId')
    AND ep.name = 'MS_Description'
WHERE c.TABLE_SCHEMA = @p1
ORDER BY c.TABLE_NAME, c.ORDINAL_POSITION`,
		PrimaryKeys: `SELECT kcu.TABLE_NAME, kcu.COLUMN_NAME
FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
    ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME AND tc.TABLE_SCHEMA = kcu.TABLE_SCHEMA
WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY' AND tc.TABLE_SCHEMA = @p1
ORDER BY kcu.TABLE_NAME, kcu.ORDINAL_POSITION`,
		ForeignKeys: `SELECT kcu1.TABLE_NAME, kcu1.CONSTRAINT_NAME, kcu1.COLUMN_NAME, kcu2.TABLE_NAME, kcu2.COLUMN_NAME,
    rc.UPDATE_RULE, rc.DELETE_RULE
FROM INFORMATION_SCHEMA.REFERENTIAL_CONSTRAINTS rc
JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu1
    ON rc.CONSTRAINT_NAME = kcu1.CONSTRAINT_NAME AND rc.CONSTRAINT_SCHEMA = kcu1.TABLE_SCHEMA
JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu2
    ON rc.UNIQUE_CONSTRAINT_NAME = kcu2.CONSTRAINT_NAME AND kcu2.ORDINAL_POSITION = kcu1.ORDINAL_POSITION
WHERE kcu1.TABLE_SCHEMA = @p1
ORDER BY kcu1.TABLE_NAME, kcu1.CONSTRAINT_NAME, kcu1.ORDINAL_POSITION`,
		Indexes: `SELECT t.name, idx.name, col.name, CASE WHEN idx.is_unique = 1 THEN 0 ELSE 1 END,
    CASE WHEN idx.is_unique_constraint = 1 THEN 'u' ELSE 'c' END
FROM sys.indexes idx
JOIN sys.index_columns ic ON idx.object_id = ic.object_id AND idx.index_id = ic.index_id
JOIN sys.columns col ON ic.object_id = col.object_id AND ic.column_id = col.column_id
JOIN sys.tables t ON idx.object_id = t.object_id
JOIN sys.schemas s ON t.schema_id = s.schema_id
WHERE idx.is_primary_key = 0 AND idx.type > 0 AND s.name = @p1
ORDER BY t.name, idx.name, ic.key_ordinal`,
		Views: `SELECT TABLE_NAME, VIEW_DEFINITION FROM INFORMATION_SCHEMA.VIEWS WHERE TABLE_SCHEMA = @p1 ORDER BY TABLE_NAME`,
	}
}
