// Package planner turns the differences between two structure trees into an
// ordered list of operations and the statements that carry them out.
package planner

import (
	"fmt"
	"strings"

	"db-forge/internal/schema"
)

type OpType int

const (
	OpCreate OpType = iota
	OpDrop
	OpRename
	OpAlter
	OpBackup
	OpRestore
)

func (t OpType) String() string {
	switch t {
	case OpDrop:
		return "DROP"
	case OpRename:
		return "RENAME"
	case OpAlter:
		return "ALTER"
	case OpBackup:
		return "BACKUP"
	case OpRestore:
		return "RESTORE"
	}
	return "CREATE"
}

// rank orders operations that have no dependency between them.
func (t OpType) rank() int {
	switch t {
	case OpBackup:
		return 0
	case OpDrop:
		return 1
	case OpRename:
		return 2
	case OpAlter:
		return 3
	case OpCreate:
		return 4
	}
	return 5
}

// ColumnMapping copies one column of a backup into the restored table.
type ColumnMapping struct {
	From string
	To   string
}

// Operation is one unit of migration work.
//
//	CREATE   Element is the target element
//	DROP     Element is the reference element
//	RENAME   Element is the reference element, Target carries the new name
//	ALTER    Element is the reference element, Target the wanted definition
//	BACKUP   Element is the reference table, Target its backup copy
//	RESTORE  Element is the backup, Target the rebuilt table
type Operation struct {
	Type     OpType
	Element  schema.Element
	Target   schema.Element
	Original *Operation
	Columns  []ColumnMapping
}

func (o *Operation) String() string {
	desc := fmt.Sprintf("%s %s", o.Type, schema.Describe(o.Element))
	switch o.Type {
	case OpRename, OpBackup, OpRestore:
		if o.Target != nil {
			desc += " -> " + o.Target.Name()
		}
	}
	return desc
}

// Plan is the ordered result of planning.
type Plan struct {
	Operations []*Operation
	// Cyclic lists the operations placed to break a dependency cycle.
	Cyclic []*Operation
}

func (p *Plan) Empty() bool { return len(p.Operations) == 0 }

func (p *Plan) String() string {
	var b strings.Builder
	for i, op := range p.Operations {
		fmt.Fprintf(&b, "%3d. %s\n", i+1, op)
	}
	return b.String()
}

// Types lists the operation types in plan order.
func (p *Plan) Types() []OpType {
	out := make([]OpType, len(p.Operations))
	for i, op := range p.Operations {
		out[i] = op.Type
	}
	return out
}
