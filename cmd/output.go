package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"db-forge/internal/builder"
	"db-forge/internal/compare"
	"db-forge/internal/planner"
	"db-forge/internal/schema"
)

var (
	green  = color.New(color.FgGreen, color.Bold)
	red    = color.New(color.FgRed, color.Bold)
	yellow = color.New(color.FgYellow, color.Bold)
	cyan   = color.New(color.FgCyan, color.Bold)
	faint  = color.New(color.Faint)
)

func comparisonColor(t compare.Type) *color.Color {
	switch t {
	case compare.Created:
		return green
	case compare.Dropped:
		return red
	case compare.Renamed:
		return cyan
	case compare.Altered:
		return yellow
	}
	return faint
}

func operationColor(t planner.OpType) *color.Color {
	switch t {
	case planner.OpCreate, planner.OpRestore:
		return green
	case planner.OpDrop:
		return red
	case planner.OpRename, planner.OpBackup:
		return cyan
	}
	return yellow
}

// change is the serialized form of one comparison.
type change struct {
	Type    string        `json:"type" yaml:"type"`
	Kind    string        `json:"kind" yaml:"kind"`
	Path    string        `json:"path" yaml:"path"`
	NewName string        `json:"new_name,omitempty" yaml:"new_name,omitempty"`
	Fields  []fieldChange `json:"fields,omitempty" yaml:"fields,omitempty"`
}

type fieldChange struct {
	Field string `json:"field" yaml:"field"`
	Old   string `json:"old" yaml:"old"`
	New   string `json:"new" yaml:"new"`
}

func changes(root *compare.Comparison) []change {
	out := []change{}
	for _, c := range compare.Flatten(root) {
		ch := change{
			Type: c.Type.String(),
			Kind: c.Kind().String(),
		}
		if c.Reference != nil {
			ch.Path = schema.PathOf(c.Reference).String()
		} else {
			ch.Path = schema.PathOf(c.Target).String()
		}
		if c.Type == compare.Renamed {
			ch.NewName = c.Target.Name()
		}
		for _, e := range c.Extras {
			ch.Fields = append(ch.Fields, fieldChange{Field: e.Field, Old: fmt.Sprint(e.Old), New: fmt.Sprint(e.New)})
		}
		out = append(out, ch)
	}
	return out
}

// writeDiff renders root as text, json or yaml.
func writeDiff(w io.Writer, root *compare.Comparison, format string) error {
	switch strings.ToLower(format) {
	case "", "text":
		if !root.Changed() {
			green.Fprintln(w, "No differences found")
			return nil
		}
		writeTree(w, root, 0)
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(changes(root))
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(changes(root)); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown format %q (text, json or yaml)", format)
}

func writeTree(w io.Writer, c *compare.Comparison, depth int) {
	if !c.Changed() {
		return
	}
	// The root pairs two datasources whose names never matter.
	if c.Kind() != schema.KindDatasource {
		fmt.Fprint(w, strings.Repeat("  ", depth))
		if c.Type == compare.Identical {
			// Unchanged parents only give context to the changes below.
			faint.Fprintln(w, schema.Describe(c.Element()))
		} else {
			comparisonColor(c.Type).Fprintln(w, c.String())
		}
		depth++
	}
	for _, ch := range c.Children {
		writeTree(w, ch, depth)
	}
}

// writeScript prints each operation as a comment followed by its statements.
func writeScript(w io.Writer, p *planner.Planner, plan *planner.Plan) error {
	if plan.Empty() {
		green.Fprintln(w, "-- nothing to do")
		return nil
	}
	var sql strings.Builder
	for _, op := range plan.Operations {
		stmts, err := p.Compile(op)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		fmt.Fprintf(&sql, "-- %s\n", op)
		for _, s := range stmts {
			sql.WriteString(statementText(s))
		}
		sql.WriteString("\n")
	}
	return highlight(w, sql.String())
}

func statementText(s *builder.Compiled) string {
	text := s.SQL
	if s.Params != nil && s.Params.Len() > 0 {
		names := make([]string, 0, s.Params.Len())
		for _, prm := range s.Params.List() {
			names = append(names, prm.Key)
		}
		text += fmt.Sprintf(" /* params: %s */", strings.Join(names, ", "))
	}
	return text + ";\n"
}

// highlight writes SQL through chroma when colors are on.
func highlight(w io.Writer, sql string) error {
	if color.NoColor {
		_, err := io.WriteString(w, sql)
		return err
	}
	lexer := lexers.Get("SQL")
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)
	iter, err := lexer.Tokenise(nil, sql)
	if err != nil {
		_, err = io.WriteString(w, sql)
		return err
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}
	style := styles.Get("monokai")
	if style == nil {
		style = styles.Fallback
	}
	return formatter.Format(w, style, iter)
}
