package planner

import (
	"context"

	"db-forge/internal/schema"
)

// DataProbe decides whether dropping an element loses rows.
type DataProbe interface {
	HasData(ctx context.Context, e schema.Element) (bool, error)
}

// StaticProbe assumes every table and column holds data.
type StaticProbe struct{}

func (StaticProbe) HasData(_ context.Context, e schema.Element) (bool, error) {
	return schema.HasData(e), nil
}

// RowCounter is the part of a connection a LiveProbe needs.
type RowCounter interface {
	HasRows(ctx context.Context, table *schema.Table) (bool, error)
}

// LiveProbe asks the database whether the table behind an element has rows.
type LiveProbe struct {
	Rows RowCounter
}

func (p LiveProbe) HasData(ctx context.Context, e schema.Element) (bool, error) {
	var t *schema.Table
	switch v := e.(type) {
	case *schema.Table:
		t = v
	case *schema.Column:
		t = v.Table()
	}
	if t == nil {
		return schema.HasData(e), nil
	}
	return p.Rows.HasRows(ctx, t)
}
