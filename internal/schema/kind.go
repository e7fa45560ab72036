package schema

// Kind is the closed set of structure element variants.
// The declaration order is the order in which the comparer and the planner
// visit children of one container: columns before the constraints and
// indexes that name them.
type Kind int

const (
	KindDatasource Kind = iota
	KindNamespace
	KindTable
	KindView
	KindColumn
	KindPrimaryKey
	KindUnique
	KindCheck
	KindIndex
	KindForeignKey
)

// Kinds lists every kind in visiting order.
var Kinds = []Kind{
	KindDatasource, KindNamespace, KindTable, KindView, KindColumn,
	KindPrimaryKey, KindUnique, KindCheck, KindIndex, KindForeignKey,
}

func (k Kind) String() string {
	switch k {
	case KindDatasource:
		return "datasource"
	case KindNamespace:
		return "namespace"
	case KindTable:
		return "table"
	case KindView:
		return "view"
	case KindColumn:
		return "column"
	case KindPrimaryKey:
		return "primary key"
	case KindUnique:
		return "unique"
	case KindCheck:
		return "check"
	case KindIndex:
		return "index"
	case KindForeignKey:
		return "foreign key"
	default:
		return "unknown"
	}
}

// IsConstraint reports whether k is one of the table constraint kinds.
func (k Kind) IsConstraint() bool {
	switch k {
	case KindPrimaryKey, KindUnique, KindCheck, KindForeignKey:
		return true
	}
	return false
}

// allows reports whether a container of kind parent may hold a child of kind child.
func allows(parent, child Kind) bool {
	switch parent {
	case KindDatasource:
		return child == KindNamespace || child == KindTable || child == KindView
	case KindNamespace:
		return child == KindTable || child == KindView
	case KindTable:
		return child == KindColumn || child == KindIndex || child.IsConstraint()
	}
	return false
}
