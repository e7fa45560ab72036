package dialect

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"db-forge/internal/schema"
)

type OracleDialect struct {
	base
}

func NewOracle(opts ...Option) *OracleDialect {
	d := &OracleDialect{base: newBase("oracle", `"`, `"`, map[string]any{
		FeatureNamespace:              false,
		FeatureCreateTableIfNotExists: false,
		FeatureDropTableIfExists:      false,
		FeatureAlterColumnStyle:       "modify_group",
		FeatureRenameView:             false,
		FeatureRenameNamespace:        false,
		FeatureLimitStyle:             "offset_fetch",
		FeatureForeignKeyOnUpdate:     false,
		FeatureJoinNatural:            true,
		FeatureJoinRight:              true,
	}, map[Keyword]string{
		KeywordTrue:          "1",
		KeywordFalse:         "0",
		KeywordAutoIncrement: "GENERATED BY DEFAULT AS IDENTITY",
	}, opts)}
	d.funcs = map[string]string{"SUBSTRING": "SUBSTR", "CEILING": "CEIL", "NOW": "SYSTIMESTAMP"}
	d.layout = toCharLayout
	d.types = NewTypeRegistry(
		&TypeDef{Name: "NUMBER", Type: schema.Number, Length: 38, Sized: true, Scaled: true, Aliases: []string{"INTEGER", "INT", "DECIMAL", "NUMERIC"}},
		&TypeDef{Name: "BINARY_DOUBLE", Type: schema.Float, Aliases: []string{"BINARY_FLOAT", "FLOAT"}},
		&TypeDef{Name: "NUMBER(1)", Type: schema.Boolean, Aliases: []string{"BOOLEAN"}},
		&TypeDef{Name: "VARCHAR2", Type: schema.String, Length: 4000, Sized: true, DefaultLength: 255, Aliases: []string{"VARCHAR", "NVARCHAR2"}},
		&TypeDef{Name: "CHAR", Type: schema.String, Length: 2000, Sized: true, DefaultLength: 1, Padding: schema.Padding{Direction: schema.PadRight, Glyph: " "}, Aliases: []string{"NCHAR"}},
		&TypeDef{Name: "CLOB", Type: schema.String, Length: Unbounded, Aliases: []string{"NCLOB"}},
		&TypeDef{Name: "TIMESTAMP", Type: schema.Timestamp, Aliases: []string{"DATE", "TIMESTAMP(6)"}},
		&TypeDef{Name: "RAW", Type: schema.Binary, Length: 2000, Sized: true, DefaultLength: 255},
		&TypeDef{Name: "BLOB", Type: schema.Binary, Length: Unbounded},
	)
	return d
}

func (d *OracleDialect) QuoteBinary(v []byte) string {
	return "HEXTORAW('" + strings.ToUpper(hex.EncodeToString(v)) + "')"
}

// Placeholder spells :p1, :p2, ... bound by name through go-ora.
func (d *OracleDialect) Placeholder(ordinal int) string { return ":" + ParamName(ordinal) }

func (d *OracleDialect) Binding() Binding { return BindNamed }

type oracleConstraint struct {
	table string
	name  string
}

func (d *OracleDialect) foreignKeys(ctx context.Context, s Session, status string) ([]oracleConstraint, error) {
	rows, err := s.QueryContext(ctx, "SELECT TABLE_NAME, CONSTRAINT_NAME FROM USER_CONSTRAINTS WHERE CONSTRAINT_TYPE = 'R' AND STATUS = :1", status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []oracleConstraint
	for rows.Next() {
		var c oracleConstraint
		if err := rows.Scan(&c.table, &c.name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DisableConstraints also fixes the session date formats so timestamp
// literals parse. DDL here commits implicitly.
func (d *OracleDialect) DisableConstraints(ctx context.Context, s Session) error {
	if err := execAll(ctx, s,
		"ALTER SESSION SET NLS_DATE_FORMAT = 'YYYY-MM-DD HH24:MI:SS'",
		"ALTER SESSION SET NLS_TIMESTAMP_FORMAT = 'YYYY-MM-DD HH24:MI:SS'",
	); err != nil {
		return err
	}
	fks, err := d.foreignKeys(ctx, s, "ENABLED")
	if err != nil {
		return err
	}
	for _, c := range fks {
		q := fmt.Sprintf("ALTER TABLE %s DISABLE CONSTRAINT %s", d.QuoteIdentifier(c.table), d.QuoteIdentifier(c.name))
		if err := execAll(ctx, s, q); err != nil {
			return fmt.Errorf("failed to disable constraint %s on %s: %w", c.name, c.table, err)
		}
	}
	return nil
}

func (d *OracleDialect) EnableConstraints(ctx context.Context, s Session) error {
	fks, err := d.foreignKeys(ctx, s, "DISABLED")
	if err != nil {
		return err
	}
	for _, c := range fks {
		q := fmt.Sprintf("ALTER TABLE %s ENABLE CONSTRAINT %s", d.QuoteIdentifier(c.table), d.QuoteIdentifier(c.name))
		if err := execAll(ctx, s, q); err != nil {
			return fmt.Errorf("failed to enable constraint %s on %s: %w", c.name, c.table, err)
		}
	}
	return nil
}

func (d *OracleDialect) TimezoneStatement(tz string) (string, error) {
	return "ALTER SESSION SET TIME_ZONE = " + d.QuoteString(tz), nil
}

// Introspection reads the current user's objects. The namespace argument is
// consumed but not used; Oracle treats the empty string as NULL.
func (d *OracleDialect) Introspection() Queries {
	return Queries{
		Tables: `SELECT TABLE_NAME FROM USER_TABLES WHERE COALESCE(:p1, 'USER') IS NOT NULL ORDER BY TABLE_NAME`,
		Columns: `SELECT
    t.TABLE_NAME,
    t.COLUMN_NAME,
    t.DATA_TYPE,
    CASE WHEN t.DATA_TYPE = 'NUMBER' THEN t.DATA_PRECISION
        WHEN t.DATA_TYPE LIKE '%CHAR%' THEN t.CHAR_LENGTH
        WHEN t.DATA_TYPE = 'RAW' THEN t.DATA_LENGTH END,
    CASE WHEN t.DATA_TYPE = 'NUMBER' THEN t.DATA_SCALE END,
    t.NULLABLE,
    t.DATA_TYPE || CASE WHEN t.DATA_TYPE = 'NUMBER' AND t.DATA_PRECISION = 1 AND COALESCE(t.DATA_SCALE, 0) = 0 THEN '(1)' END,
    CASE WHEN t.IDENTITY_COLUMN = 'YES' THEN 'auto_increment' ELSE '' END,
    t.DATA_DEFAULT,
    c.COMMENTS
FROM USER_TAB_COLUMNS t
LEFT JOIN USER_COL_COMMENTS c ON t.TABLE_NAME = c.TABLE_NAME AND t.COLUMN_NAME = c.COLUMN_NAME
JOIN USER_TABLES ut ON ut.TABLE_NAME = t.TABLE_NAME
WHERE COALESCE(:p1, 'USER') IS NOT NULL
ORDER BY t.TABLE_NAME, t.COLUMN_ID`,
		PrimaryKeys: `SELECT cc.TABLE_NAME, cc.COLUMN_NAME
FROM USER_CONS_COLUMNS cc
JOIN USER_CONSTRAINTS uc ON cc.CONSTRAINT_NAME = uc.CONSTRAINT_NAME
WHERE uc.CONSTRAINT_TYPE = 'P' AND COALESCE(:p1, 'USER') IS NOT NULL
ORDER BY cc.TABLE_NAME, cc.POSITION`,
		ForeignKeys: `SELECT c.TABLE_NAME, c.CONSTRAINT_NAME, cc.COLUMN_NAME, r.TABLE_NAME, rcc.COLUMN_NAME,
    'NO ACTION', c.DELETE_RULE
FROM USER_CONSTRAINTS c
JOIN USER_CONS_COLUMNS cc ON c.CONSTRAINT_NAME = cc.CONSTRAINT_NAME AND c.OWNER = cc.OWNER
JOIN USER_CONSTRAINTS r ON c.R_CONSTRAINT_NAME = r.CONSTRAINT_NAME AND c.R_OWNER = r.OWNER
JOIN USER_CONS_COLUMNS rcc ON r.CONSTRAINT_NAME = rcc.CONSTRAINT_NAME AND r.OWNER = rcc.OWNER AND cc.POSITION = rcc.POSITION
WHERE c.CONSTRAINT_TYPE = 'R' AND COALESCE(:p1, 'USER') IS NOT NULL
ORDER BY c.TABLE_NAME, c.CONSTRAINT_NAME, cc.POSITION`,
		Indexes: `SELECT i.TABLE_NAME, i.INDEX_NAME, ic.COLUMN_NAME, CASE WHEN i.UNIQUENESS = 'UNIQUE' THEN 0 ELSE 1 END,
    CASE WHEN uc.CONSTRAINT_TYPE = 'U' THEN 'u' ELSE 'c' END
FROM USER_INDEXES i
JOIN USER_IND_COLUMNS ic ON ic.INDEX_NAME = i.INDEX_NAME
LEFT JOIN USER_CONSTRAINTS uc ON uc.INDEX_NAME = i.INDEX_NAME AND uc.CONSTRAINT_TYPE IN ('P', 'U')
WHERE (uc.CONSTRAINT_TYPE IS NULL OR uc.CONSTRAINT_TYPE = 'U') AND COALESCE(:p1, 'USER') IS NOT NULL
ORDER BY i.TABLE_NAME, i.INDEX_NAME, ic.COLUMN_POSITION`,
		Views: `SELECT VIEW_NAME, TEXT FROM USER_VIEWS WHERE COALESCE(:p1, 'USER') IS NOT NULL ORDER BY VIEW_NAME`,
	}
}
