package dialect

import "strings"

// Feature paths used across the module. Each is a dotted path into the
// feature tree; lookups fall back to the closest set ancestor.
const (
	FeatureCreateTableIfNotExists = "create.table.exists_condition"
	FeatureCreateIndexIfNotExists = "create.index.exists_condition"
	FeatureDropTableIfExists      = "drop.table.exists_condition"
	FeatureDropIndexOnTable       = "drop.index.on_table"
	FeatureNamespace              = "namespace"
	FeatureAlterColumn            = "alter.column"
	FeatureAlterColumnAdd         = "alter.column.add"
	FeatureAlterColumnDrop        = "alter.column.drop"
	FeatureAlterColumnStyle       = "alter.column.style"
	FeatureAlterConstraint        = "alter.constraint"
	FeatureDropConstraintStyle    = "alter.constraint.drop_style"
	FeatureForeignKeyOnUpdate     = "foreign_key.on_update"
	FeatureRenameTable            = "rename.table"
	FeatureRenameColumn           = "rename.column"
	FeatureRenameIndex            = "rename.index"
	FeatureRenameView             = "rename.view"
	FeatureRenameNamespace        = "rename.namespace"
	FeatureAliasWhere             = "select.alias.where"
	FeatureAliasGroup             = "select.alias.group"
	FeatureAliasHaving            = "select.alias.having"
	FeatureLimitStyle             = "select.limit"
	FeatureLimitTop               = "select.limit.top"
	FeatureOffsetOnly             = "select.limit.offset_only"
	FeatureOffsetNeedsOrder       = "select.limit.offset_order"
	FeatureRenameStyle            = "rename.style"
	FeatureUnsigned               = "column.unsigned"
	FeatureInlineAutoIncrementPK  = "column.autoincrement.inline_primary_key"
	FeatureJoinNatural            = "join.natural"
	FeatureJoinRight              = "join.right"
	FeatureCompareIgnore          = "compare.ignore"
)

// Features is a tree of capability values. Each node may carry a value;
// a lookup returns the value of the deepest set node along the path.
type Features struct {
	value    any
	set      bool
	children map[string]*Features
}

// NewFeatures builds a tree from dotted paths.
func NewFeatures(values map[string]any) *Features {
	f := &Features{}
	for path, v := range values {
		f.Set(path, v)
	}
	return f
}

func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// Set stores v at path.
func (f *Features) Set(path string, v any) {
	cur := f
	for _, part := range splitPath(path) {
		if cur.children == nil {
			cur.children = make(map[string]*Features)
		}
		next, ok := cur.children[part]
		if !ok {
			next = &Features{}
			cur.children[part] = next
		}
		cur = next
	}
	cur.value, cur.set = v, true
}

// lookup returns the deepest set value along path and its depth, or depth -1.
func (f *Features) lookup(parts []string) (any, int) {
	var value any
	depth := -1
	cur := f
	if cur.set {
		value, depth = cur.value, 0
	}
	for i, part := range parts {
		next, ok := cur.children[part]
		if !ok {
			break
		}
		cur = next
		if cur.set {
			value, depth = cur.value, i+1
		}
	}
	return value, depth
}

// cascade resolves a path against an override tree laid over defaults.
// The deeper match wins; at equal depth the override wins.
type cascade struct {
	defaults  *Features
	overrides *Features
}

func (c cascade) Feature(path string) any {
	parts := splitPath(path)
	dv, dd := c.defaults.lookup(parts)
	ov, od := c.overrides.lookup(parts)
	if od >= dd && od >= 0 {
		return ov
	}
	if dd >= 0 {
		return dv
	}
	return nil
}

func (c cascade) Supports(path string) bool {
	b, _ := c.Feature(path).(bool)
	return b
}

func (c cascade) Style(path string) string {
	s, _ := c.Feature(path).(string)
	return s
}

// defaultFeatures are shared by every dialect; dialects only list differences.
var defaultFeatures = map[string]any{
	"create":                      true,
	FeatureCreateTableIfNotExists: true,
	FeatureCreateIndexIfNotExists: false,
	"drop":                        true,
	FeatureDropTableIfExists:      true,
	FeatureDropIndexOnTable:       false,
	FeatureNamespace:              true,
	"alter":                       true,
	FeatureDropConstraintStyle:    "constraint",
	FeatureForeignKeyOnUpdate:     true,
	FeatureAlterColumnStyle:       "alter_type",
	"rename":                      true,
	FeatureRenameStyle:            "alter",
	FeatureAliasWhere:             false,
	FeatureAliasGroup:             false,
	FeatureAliasHaving:            false,
	FeatureLimitStyle:             "limit",
	FeatureUnsigned:               false,
	FeatureInlineAutoIncrementPK:  false,
	"join":                        true,
	FeatureCompareIgnore:          false,
	"compare.ignore.comment":      true,
}
