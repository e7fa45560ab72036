// Package schemafile reads and writes structure files, the XML form of a
// schema.Datasource that is kept under version control and edited by hand.
//
//	<datasource xmlns="urn:db-forge:structure:1" name="shop">
//	  <database name="main">
//	    <table name="users">
//	      <column name="id" type="INTEGER" auto-increment="true"/>
//	      <column name="email" type="STRING" length="120"/>
//	      <column name="score" type="NUMBER" length="8" scale="2" nullable="true">
//	        <default>0</default>
//	      </column>
//	      <primarykey><column name="id"/></primarykey>
//	      <unique name="uq_users_email"><column name="email"/></unique>
//	    </table>
//	    <view name="active_users">SELECT id FROM users</view>
//	  </database>
//	</datasource>
package schemafile

import (
	"encoding/xml"
	"io"
	"os"
	"strings"

	"db-forge/internal/errs"
	"db-forge/internal/schema"
)

// Namespace identifies structure files.
const Namespace = "urn:db-forge:structure:1"

type xmlDatasource struct {
	XMLName   xml.Name      `xml:"urn:db-forge:structure:1 datasource"`
	Name      string        `xml:"name,attr,omitempty"`
	Databases []xmlDatabase `xml:"database"`
}

type xmlDatabase struct {
	Name   string     `xml:"name,attr"`
	Tables []xmlTable `xml:"table"`
	Views  []xmlView  `xml:"view"`
}

type xmlTable struct {
	Name        string          `xml:"name,attr"`
	Columns     []xmlColumn     `xml:"column"`
	PrimaryKey  *xmlKey         `xml:"primarykey"`
	Uniques     []xmlKey        `xml:"unique"`
	Checks      []xmlCheck      `xml:"check"`
	ForeignKeys []xmlForeignKey `xml:"foreignkey"`
	Indexes     []xmlIndex      `xml:"index"`
}

type xmlColumn struct {
	Name          string      `xml:"name,attr"`
	Type          string      `xml:"type,attr"`
	Nullable      bool        `xml:"nullable,attr,omitempty"`
	Length        int         `xml:"length,attr,omitempty"`
	Scale         int         `xml:"scale,attr,omitempty"`
	AutoIncrement bool        `xml:"auto-increment,attr,omitempty"`
	Unsigned      bool        `xml:"unsigned,attr,omitempty"`
	Zerofill      bool        `xml:"zerofill,attr,omitempty"`
	MediaType     string      `xml:"media-type,attr,omitempty"`
	Padding       string      `xml:"padding,attr,omitempty"`
	PadGlyph      string      `xml:"pad-glyph,attr,omitempty"`
	Enum          []string    `xml:"enum"`
	Default       *xmlDefault `xml:"default"`
	Comment       string      `xml:"comment,omitempty"`
}

type xmlDefault struct {
	Kind  string `xml:"kind,attr,omitempty"`
	Value string `xml:",chardata"`
}

type xmlRef struct {
	Name       string `xml:"name,attr"`
	References string `xml:"references,attr,omitempty"`
}

type xmlKey struct {
	Name    string   `xml:"name,attr,omitempty"`
	Columns []xmlRef `xml:"column"`
}

type xmlCheck struct {
	Name       string `xml:"name,attr,omitempty"`
	Expression string `xml:",chardata"`
}

type xmlForeignKey struct {
	Name       string   `xml:"name,attr,omitempty"`
	References string   `xml:"references,attr"`
	OnUpdate   string   `xml:"on-update,attr,omitempty"`
	OnDelete   string   `xml:"on-delete,attr,omitempty"`
	Columns    []xmlRef `xml:"column"`
}

type xmlIndex struct {
	Name    string   `xml:"name,attr,omitempty"`
	Unique  bool     `xml:"unique,attr,omitempty"`
	Columns []xmlRef `xml:"column"`
}

type xmlView struct {
	Name       string `xml:"name,attr"`
	Definition string `xml:",chardata"`
}

// Load reads the structure file at path.
func Load(path string) (*schema.Datasource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.KindNotFound, "cannot open structure file "+path, err)
	}
	defer f.Close()
	return Read(f)
}

// Read decodes a structure file.
func Read(r io.Reader) (*schema.Datasource, error) {
	var doc xmlDatasource
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errs.Wrap(errs.KindInvalidInput, "malformed structure file", err)
	}
	return doc.structure()
}

// Save writes ds to path, replacing the file.
func Save(path string, ds *schema.Datasource) error {
	f, err := os.Create(path)
	if err != nil {
		return errs.Wrap(errs.KindInvalidInput, "cannot create structure file "+path, err)
	}
	if err := Write(f, ds); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Write encodes ds, indented.
func Write(w io.Writer, ds *schema.Datasource) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(document(ds)); err != nil {
		return errs.Wrap(errs.KindInvalidInput, "cannot encode structure", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func (doc *xmlDatasource) structure() (*schema.Datasource, error) {
	ds := schema.NewDatasource(doc.Name)
	for _, db := range doc.Databases {
		ns := schema.NewNamespace(db.Name)
		for _, xt := range db.Tables {
			t, err := xt.table()
			if err != nil {
				return nil, err
			}
			if err := ns.Add(t); err != nil {
				return nil, err
			}
		}
		for _, v := range db.Views {
			if err := ns.Add(schema.NewView(v.Name, strings.TrimSpace(v.Definition))); err != nil {
				return nil, err
			}
		}
		if err := ds.Add(ns); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

func (xt *xmlTable) table() (*schema.Table, error) {
	t := schema.NewTable(xt.Name)
	var children []schema.Element
	for _, xc := range xt.Columns {
		c, err := xc.column()
		if err != nil {
			return nil, errs.Wrap(errs.KindInvalidInput, "table "+xt.Name, err)
		}
		children = append(children, c)
	}
	if pk := xt.PrimaryKey; pk != nil {
		children = append(children, schema.NewPrimaryKey(pk.Name, names(pk.Columns)...))
	}
	for _, u := range xt.Uniques {
		children = append(children, schema.NewUnique(u.Name, names(u.Columns)...))
	}
	for _, ck := range xt.Checks {
		children = append(children, schema.NewCheck(ck.Name, strings.TrimSpace(ck.Expression)))
	}
	for _, xf := range xt.ForeignKeys {
		fk, err := xf.foreignKey()
		if err != nil {
			return nil, errs.Wrap(errs.KindInvalidInput, "table "+xt.Name, err)
		}
		children = append(children, fk)
	}
	for _, ix := range xt.Indexes {
		children = append(children, schema.NewIndex(ix.Name, ix.Unique, names(ix.Columns)...))
	}
	if err := t.Add(children...); err != nil {
		return nil, err
	}
	return t, nil
}

var paddings = map[string]schema.PadDirection{"left": schema.PadLeft, "right": schema.PadRight}

func (xc *xmlColumn) column() (*schema.Column, error) {
	typ, err := schema.ParseDataType(xc.Type)
	if err != nil {
		return nil, err
	}
	if !typ.Valid() {
		return nil, errs.Newf(errs.KindInvalidInput, "column %s: %s mixes affinities", xc.Name, typ)
	}
	if xc.Nullable {
		typ |= schema.Null
	}
	c := schema.NewColumn(xc.Name, typ)
	c.Length, c.Scale = xc.Length, xc.Scale
	c.Enum = xc.Enum
	c.MediaType = xc.MediaType
	c.Comment = xc.Comment
	if xc.AutoIncrement {
		c.Flags |= schema.AutoIncrement
	}
	if xc.Unsigned {
		c.Flags |= schema.Unsigned
	}
	if xc.Zerofill {
		c.Flags |= schema.Zerofill
	}
	if xc.Padding != "" {
		dir, ok := paddings[strings.ToLower(xc.Padding)]
		if !ok {
			return nil, errs.Newf(errs.KindInvalidInput, "column %s: unknown padding %q", xc.Name, xc.Padding)
		}
		glyph := xc.PadGlyph
		if glyph == "" {
			glyph = " "
		}
		c.Padding = schema.Padding{Direction: dir, Glyph: glyph}
	}
	if xc.Default != nil {
		kind, err := schema.ParseDefaultKind(xc.Default.Kind)
		if err != nil {
			return nil, err
		}
		c.Default = &schema.Default{Kind: kind, Value: xc.Default.Value}
	}
	return c, nil
}

func (xf *xmlForeignKey) foreignKey() (*schema.ForeignKey, error) {
	if xf.References == "" {
		return nil, errs.Newf(errs.KindInvalidInput, "foreign key %s names no referenced table", xf.Name)
	}
	cols := make([]string, len(xf.Columns))
	refs := make([]string, len(xf.Columns))
	for i, c := range xf.Columns {
		cols[i] = c.Name
		refs[i] = c.References
		if refs[i] == "" {
			refs[i] = c.Name
		}
	}
	fk := schema.NewForeignKey(xf.Name, cols, schema.ParseIdentifier(xf.References), refs)
	var err error
	if fk.OnUpdate, err = schema.ParseAction(xf.OnUpdate); err != nil {
		return nil, err
	}
	if fk.OnDelete, err = schema.ParseAction(xf.OnDelete); err != nil {
		return nil, err
	}
	return fk, nil
}

func names(refs []xmlRef) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.Name
	}
	return out
}

func refs(names []string) []xmlRef {
	out := make([]xmlRef, len(names))
	for i, n := range names {
		out[i] = xmlRef{Name: n}
	}
	return out
}

func document(ds *schema.Datasource) *xmlDatasource {
	doc := &xmlDatasource{Name: ds.Name()}
	for _, ns := range ds.Namespaces() {
		db := xmlDatabase{Name: ns.Name()}
		for _, t := range ns.Tables() {
			db.Tables = append(db.Tables, tableDoc(t))
		}
		for _, v := range ns.Views() {
			db.Views = append(db.Views, xmlView{Name: v.Name(), Definition: v.Definition})
		}
		doc.Databases = append(doc.Databases, db)
	}
	return doc
}

func tableDoc(t *schema.Table) xmlTable {
	xt := xmlTable{Name: t.Name()}
	for _, c := range t.Columns() {
		xt.Columns = append(xt.Columns, columnDoc(c))
	}
	if pk := t.PrimaryKey(); pk != nil {
		xt.PrimaryKey = &xmlKey{Name: pk.Name(), Columns: refs(pk.Columns)}
	}
	for _, u := range t.Uniques() {
		xt.Uniques = append(xt.Uniques, xmlKey{Name: u.Name(), Columns: refs(u.Columns)})
	}
	for _, ck := range t.Checks() {
		xt.Checks = append(xt.Checks, xmlCheck{Name: ck.Name(), Expression: ck.Expression})
	}
	for _, fk := range t.ForeignKeys() {
		xf := xmlForeignKey{Name: fk.Name(), References: fk.RefTable.String()}
		if fk.OnUpdate != schema.NoAction {
			xf.OnUpdate = fk.OnUpdate.String()
		}
		if fk.OnDelete != schema.NoAction {
			xf.OnDelete = fk.OnDelete.String()
		}
		for i, c := range fk.Columns {
			ref := xmlRef{Name: c}
			if i < len(fk.RefColumns) && fk.RefColumns[i] != c {
				ref.References = fk.RefColumns[i]
			}
			xf.Columns = append(xf.Columns, ref)
		}
		xt.ForeignKeys = append(xt.ForeignKeys, xf)
	}
	for _, ix := range t.Indexes() {
		xt.Indexes = append(xt.Indexes, xmlIndex{Name: ix.Name(), Unique: ix.Unique, Columns: refs(ix.Columns)})
	}
	return xt
}

func columnDoc(c *schema.Column) xmlColumn {
	xc := xmlColumn{
		Name:          c.Name(),
		Type:          c.Type.Primary().String(),
		Nullable:      c.Nullable(),
		Length:        c.Length,
		Scale:         c.Scale,
		AutoIncrement: c.Flags.Has(schema.AutoIncrement),
		Unsigned:      c.Flags.Has(schema.Unsigned),
		Zerofill:      c.Flags.Has(schema.Zerofill),
		MediaType:     c.MediaType,
		Enum:          c.Enum,
		Comment:       c.Comment,
	}
	switch c.Padding.Direction {
	case schema.PadLeft:
		xc.Padding = "left"
	case schema.PadRight:
		xc.Padding = "right"
	}
	if xc.Padding != "" && c.Padding.Glyph != " " {
		xc.PadGlyph = c.Padding.Glyph
	}
	if d := c.Default; d != nil {
		xd := &xmlDefault{Value: d.Value}
		if d.Kind != schema.DefaultLiteral {
			xd.Kind = d.Kind.String()
		}
		xc.Default = xd
	}
	return xc
}
