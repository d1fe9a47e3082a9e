package dot

import (
	"fmt"
	"io"
	"strings"

	"github.com/p4analysis/p4deps/internal/depgraph"
	"github.com/p4analysis/p4deps/internal/hlir"
)

// Options control what the dependency-graph writer emits. The zero value
// draws every event and edge with no labels beyond the event names.
type Options struct {
	// ShowFields annotates field-dependency edges with the responsible
	// field references.
	ShowFields bool
	// ShowConditions includes the conditional expression source text in
	// conditional node labels.
	ShowConditions bool
	// NoControlFlow suppresses control-flow-only edges between distinct
	// control nodes. Internal match-to-action edges always stay.
	NoControlFlow bool
	// CriticalOnly draws only zero-slack events and the reported critical
	// edges. Requires a fine-granularity schedule result.
	CriticalOnly bool
	// Debug adds the computed stage or slot and key/write bit widths to
	// node labels.
	Debug bool
}

// printer accumulates the first write error so the emit code stays linear.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

// WriteDependencyGraph emits g as DOT. res supplies stage annotations and
// critical-path marks; it may be nil when neither Debug nor CriticalOnly is
// set. Field-dependency edges are solid, control-flow-only edges dashed;
// edges on the critical path are drawn with double pen width.
func WriteDependencyGraph(w io.Writer, g *depgraph.Graph, res *depgraph.Result, opts Options) error {
	if opts.CriticalOnly && (res == nil || res.Mode != depgraph.Fine) {
		return fmt.Errorf("critical-only output requires a fine-granularity schedule")
	}
	if opts.Debug && res == nil {
		return fmt.Errorf("debug output requires a schedule result")
	}

	p := &printer{w: w}
	p.printf("digraph %q {\n", g.Pipeline()+"_deps")
	p.printf("  labelloc=t;\n")
	p.printf("  label=%q;\n", fmt.Sprintf("%s/%s dependencies (%s)", g.Program().Name, g.Pipeline(), g.Mode()))
	p.printf("  rankdir=LR;\n")
	p.printf("  node [shape=box];\n")

	drawn := make([]bool, g.NumEvents())
	for _, ev := range g.Events() {
		if opts.CriticalOnly && !res.Critical[ev.ID] {
			continue
		}
		drawn[ev.ID] = true
		p.printf("  %q%s;\n", ev.Name, nodeAttrs(g, res, ev, opts))
	}

	critical := map[*depgraph.Edge]bool{}
	if res != nil {
		for _, e := range res.CriticalEdges {
			critical[e] = true
		}
	}
	for _, e := range g.Edges() {
		if !drawn[e.Src] || !drawn[e.Dst] {
			continue
		}
		intra := g.IntraTable(e)
		if opts.CriticalOnly && !critical[e] && !intra {
			continue
		}
		if opts.NoControlFlow && e.Kind == depgraph.ControlFlowOnly && !intra {
			continue
		}
		p.printf("  %q -> %q%s;\n",
			g.Event(e.Src).Name, g.Event(e.Dst).Name, edgeAttrs(g, e, critical[e], opts))
	}

	p.printf("}\n")
	return p.err
}

func nodeAttrs(g *depgraph.Graph, res *depgraph.Result, ev *depgraph.Event, opts Options) string {
	label := ev.Name
	if opts.ShowConditions && ev.Kind == depgraph.KindCond && ev.Cond().Expression != "" {
		label += "\n" + ev.Cond().Expression
	}
	if opts.Debug {
		label += "\n" + debugLabel(g, res, ev)
	}

	var attrs []string
	if ev.Kind == depgraph.KindCond {
		attrs = append(attrs, "shape=diamond")
	}
	if label != ev.Name {
		attrs = append(attrs, fmt.Sprintf("label=%q", label))
	}
	if len(attrs) == 0 {
		return ""
	}
	return " [" + strings.Join(attrs, ", ") + "]"
}

// debugLabel renders the computed placement plus the bit widths relevant to
// the event's phase: match-side events show the key width, action-side
// events the total written width, whole tables both.
func debugLabel(g *depgraph.Graph, res *depgraph.Result, ev *depgraph.Event) string {
	unit := "stage"
	if res.Mode == depgraph.Fine {
		unit = "slot"
	}
	parts := []string{fmt.Sprintf("%s %d", unit, res.Earliest[ev.ID])}
	if t := ev.Table(); t != nil {
		switch ev.Kind {
		case depgraph.KindMatch:
			parts = append(parts, fmt.Sprintf("key %db", t.KeyWidthBits()))
		case depgraph.KindAction:
			parts = append(parts, fmt.Sprintf("writes %db", writeWidthBits(g.Program(), t)))
		default:
			parts = append(parts,
				fmt.Sprintf("key %db", t.KeyWidthBits()),
				fmt.Sprintf("writes %db", writeWidthBits(g.Program(), t)))
		}
	}
	return strings.Join(parts, ", ")
}

func writeWidthBits(prog *hlir.Program, t *hlir.Table) int {
	w := 0
	for _, id := range t.Writes().Members() {
		w += prog.Field(hlir.FieldID(id)).Width
	}
	return w
}

func edgeAttrs(g *depgraph.Graph, e *depgraph.Edge, critical bool, opts Options) string {
	style := "solid"
	if e.Kind == depgraph.ControlFlowOnly {
		style = "dashed"
	}
	attrs := []string{"style=" + style}
	if opts.ShowFields && !e.Fields.Empty() {
		attrs = append(attrs, fmt.Sprintf("label=%q", g.Program().FieldNames(e.Fields)))
	}
	if critical {
		attrs = append(attrs, "penwidth=2")
	}
	return " [" + strings.Join(attrs, ", ") + "]"
}

// WriteTableGraph emits the plain control-flow graph of one pipeline:
// tables and conditionals as written, edges labeled with the outcome that
// takes them. Unlike the dependency builder it tolerates cyclic control
// flow, so it stays usable for diagnosing programs the analysis rejects.
func WriteTableGraph(w io.Writer, prog *hlir.Program, pipeline *hlir.Pipeline) error {
	p := &printer{w: w}
	p.printf("digraph %q {\n", pipeline.Name+"_tables")
	p.printf("  labelloc=t;\n")
	p.printf("  label=%q;\n", fmt.Sprintf("%s/%s control flow", prog.Name, pipeline.Name))
	p.printf("  node [shape=box];\n")

	var names []string
	visited := map[string]bool{}
	var visit func(name string)
	visit = func(name string) {
		if name == "" || visited[name] {
			return
		}
		node, ok := prog.ControlNode(name)
		if !ok {
			return
		}
		visited[name] = true
		names = append(names, name)
		for _, succ := range node.SuccessorNames() {
			visit(succ)
		}
	}
	visit(pipeline.Entry)

	if pipeline.Entry != "" {
		p.printf("  \"__start__\" [shape=point];\n")
	}
	for _, name := range names {
		node, _ := prog.ControlNode(name)
		if c, ok := node.(*hlir.Conditional); ok && c.Expression != "" {
			p.printf("  %q [shape=diamond, label=%q];\n", name, c.Expression)
		} else if ok {
			p.printf("  %q [shape=diamond];\n", name)
		} else {
			p.printf("  %q;\n", name)
		}
	}

	if pipeline.Entry != "" {
		p.printf("  \"__start__\" -> %q;\n", pipeline.Entry)
	}
	for _, name := range names {
		node, _ := prog.ControlNode(name)
		switch v := node.(type) {
		case *hlir.Table:
			for i := 0; i < v.Next.Len(); i++ {
				label, target := v.Next.At(i)
				if target == "" {
					continue
				}
				p.printf("  %q -> %q [label=%q];\n", name, target, label)
			}
		case *hlir.Conditional:
			if v.TrueNext != "" {
				p.printf("  %q -> %q [label=\"true\"];\n", name, v.TrueNext)
			}
			if v.FalseNext != "" {
				p.printf("  %q -> %q [label=\"false\"];\n", name, v.FalseNext)
			}
		}
	}

	p.printf("}\n")
	return p.err
}

// WriteParseGraph emits the parser state machine: states in declaration
// order, transitions labeled with their select values. Transition targets
// that are not parse states are pipeline entries and drawn as boxes.
func WriteParseGraph(w io.Writer, prog *hlir.Program) error {
	p := &printer{w: w}
	p.printf("digraph %q {\n", prog.Name+"_parser")
	p.printf("  labelloc=t;\n")
	p.printf("  label=%q;\n", prog.Name+" parser")
	p.printf("  node [shape=ellipse];\n")

	for _, name := range prog.ParseStates.Keys() {
		state, _ := prog.ParseStates.Get(name)
		if len(state.Extracts) == 0 {
			p.printf("  %q;\n", name)
			continue
		}
		extracts := make([]string, len(state.Extracts))
		for i, in := range state.Extracts {
			extracts[i] = in.Name
		}
		p.printf("  %q [label=%q];\n", name, name+"\nextract "+strings.Join(extracts, ", "))
	}

	seenExit := map[string]bool{}
	for _, name := range prog.ParseStates.Keys() {
		state, _ := prog.ParseStates.Get(name)
		for _, tr := range state.Transitions {
			if tr.Next == "" || prog.ParseStates.Has(tr.Next) || seenExit[tr.Next] {
				continue
			}
			seenExit[tr.Next] = true
			p.printf("  %q [shape=box];\n", tr.Next)
		}
	}

	for _, name := range prog.ParseStates.Keys() {
		state, _ := prog.ParseStates.Get(name)
		for _, tr := range state.Transitions {
			if tr.Next == "" {
				continue
			}
			p.printf("  %q -> %q [label=%q];\n", name, tr.Next, tr.Value)
		}
	}

	p.printf("}\n")
	return p.err
}
