package schema

// Datasource is the root of a structure tree.
type Datasource struct {
	base
	// Live is set when the tree was read from a connection rather than a file.
	Live bool
}

func NewDatasource(name string) *Datasource {
	return &Datasource{base: base{name: name}}
}

func (d *Datasource) Kind() Kind { return KindDatasource }

// Add attaches namespaces, tables or views.
func (d *Datasource) Add(children ...Element) error { return attachAll(d, children) }

func (d *Datasource) Namespaces() []*Namespace { return childrenAs[*Namespace](d, KindNamespace) }

func (d *Datasource) Namespace(name string) *Namespace {
	n, _ := Child(d, KindNamespace, name).(*Namespace)
	return n
}

// Tables returns every table in the tree, namespace by namespace.
func (d *Datasource) Tables() []*Table {
	var out []*Table
	Walk(d, func(e Element) bool {
		if t, ok := e.(*Table); ok {
			out = append(out, t)
			return false
		}
		return true
	})
	return out
}

// Namespace groups tables and views (a database or schema).
type Namespace struct {
	base
}

func NewNamespace(name string) *Namespace {
	return &Namespace{base: base{name: name}}
}

func (n *Namespace) Kind() Kind { return KindNamespace }

func (n *Namespace) Add(children ...Element) error { return attachAll(n, children) }

func (n *Namespace) Tables() []*Table { return childrenAs[*Table](n, KindTable) }

func (n *Namespace) Views() []*View { return childrenAs[*View](n, KindView) }

func (n *Namespace) Table(name string) *Table {
	t, _ := Child(n, KindTable, name).(*Table)
	return t
}

type Table struct {
	base
}

func NewTable(name string) *Table {
	return &Table{base: base{name: name}}
}

func (t *Table) Kind() Kind { return KindTable }

// Add attaches columns, constraints and indexes.
func (t *Table) Add(children ...Element) error { return attachAll(t, children) }

func (t *Table) Columns() []*Column { return childrenAs[*Column](t, KindColumn) }

func (t *Table) Column(name string) *Column {
	c, _ := Child(t, KindColumn, name).(*Column)
	return c
}

// PrimaryKey returns the first primary key constraint, or nil.
func (t *Table) PrimaryKey() *PrimaryKey {
	pks := childrenAs[*PrimaryKey](t, KindPrimaryKey)
	if len(pks) == 0 {
		return nil
	}
	return pks[0]
}

func (t *Table) Uniques() []*Unique { return childrenAs[*Unique](t, KindUnique) }

func (t *Table) Checks() []*Check { return childrenAs[*Check](t, KindCheck) }

func (t *Table) ForeignKeys() []*ForeignKey { return childrenAs[*ForeignKey](t, KindForeignKey) }

func (t *Table) Indexes() []*Index { return childrenAs[*Index](t, KindIndex) }

// Constraints returns primary key, unique, check and foreign key children in order.
func (t *Table) Constraints() []Element {
	var out []Element
	for _, c := range t.children {
		if c.Kind().IsConstraint() {
			out = append(out, c)
		}
	}
	return out
}

// View is a named stored query. Definition holds the SELECT text.
type View struct {
	base
	Definition string
}

func NewView(name, definition string) *View {
	return &View{base: base{name: name}, Definition: definition}
}

func (v *View) Kind() Kind { return KindView }
