package depgraph

import (
	"github.com/p4analysis/p4deps/internal/bitset"
	"github.com/p4analysis/p4deps/internal/hlir"
)

// EdgeKind classifies a dependency edge by its cause. Both kinds are
// ordering constraints of equal strength; the distinction drives labeling
// and per-flag filtering only.
type EdgeKind int

// Edge kinds.
const (
	// ControlFlowOnly keeps program order between events with no field
	// interaction.
	ControlFlowOnly EdgeKind = iota
	// FieldDependency records that the target may observe a field value
	// written by the source.
	FieldDependency
)

// String returns the kind name used in output and fingerprints.
func (k EdgeKind) String() string {
	if k == FieldDependency {
		return "field"
	}
	return "control"
}

// Edge is a must-happen-no-earlier-than constraint between two events.
// Fields is non-empty only on field-dependency edges and names the fields
// responsible; it labels the edge and never changes its ordering strength.
type Edge struct {
	Src    EventID
	Dst    EventID
	Kind   EdgeKind
	Fields hlir.FieldSet
}

type edgeKey struct {
	src, dst EventID
	kind     EdgeKind
}

// phasePair locates the two scheduling phases of a control node. Incoming
// edges attach to recv (the match phase), outgoing edges leave from send
// (the action phase). In coarse mode, and for conditionals in either mode,
// both are the same event.
type phasePair struct {
	recv, send EventID
}

// Graph is the table dependency graph of one pipeline: an event arena plus
// deduplicated dependency edges in insertion order. It is built once per
// analysis run, optionally reduced, scheduled, then discarded; nothing
// mutates it concurrently.
type Graph struct {
	mode     Mode
	pipeline string
	prog     *hlir.Program

	events []*Event
	edges  []*Edge
	out    [][]*Edge
	in     [][]*Edge
	index  map[edgeKey]*Edge
	phases map[string]phasePair
}

func newGraph(prog *hlir.Program, pipeline string, mode Mode) *Graph {
	return &Graph{
		mode:     mode,
		pipeline: pipeline,
		prog:     prog,
		index:    make(map[edgeKey]*Edge),
		phases:   make(map[string]phasePair),
	}
}

// Mode returns the granularity the graph was built with.
func (g *Graph) Mode() Mode { return g.mode }

// Pipeline returns the name of the pipeline the graph describes.
func (g *Graph) Pipeline() string { return g.pipeline }

// Program returns the IR snapshot the graph was built from.
func (g *Graph) Program() *hlir.Program { return g.prog }

// NumEvents returns the size of the event arena.
func (g *Graph) NumEvents() int { return len(g.events) }

// Event returns the arena entry for id.
func (g *Graph) Event(id EventID) *Event { return g.events[id] }

// Events returns the arena in creation order. Callers must not modify it.
func (g *Graph) Events() []*Event { return g.events }

// NumEdges returns the number of distinct edges.
func (g *Graph) NumEdges() int { return len(g.edges) }

// Edges returns the edges in insertion order. Callers must not modify it.
func (g *Graph) Edges() []*Edge { return g.edges }

// Out returns the edges leaving id.
func (g *Graph) Out(id EventID) []*Edge { return g.out[id] }

// In returns the edges entering id.
func (g *Graph) In(id EventID) []*Edge { return g.in[id] }

func (g *Graph) addEvent(kind EventKind, name string, node hlir.ControlNode) *Event {
	ev := &Event{
		ID:   EventID(len(g.events)),
		Kind: kind,
		Name: name,
		Node: node,
	}
	g.events = append(g.events, ev)
	g.out = append(g.out, nil)
	g.in = append(g.in, nil)
	return ev
}

// addNode creates the events for one control node and records its phase
// pair. Split tables put the match event first so arena order follows
// schedule order.
func (g *Graph) addNode(node hlir.ControlNode) {
	name := node.NodeName()
	if _, ok := node.(*hlir.Conditional); ok {
		ev := g.addEvent(KindCond, name, node)
		g.phases[name] = phasePair{recv: ev.ID, send: ev.ID}
		return
	}
	if g.mode == Fine {
		m := g.addEvent(KindMatch, name+"__match", node)
		a := g.addEvent(KindAction, name+"__action", node)
		g.phases[name] = phasePair{recv: m.ID, send: a.ID}
		return
	}
	ev := g.addEvent(KindTable, name, node)
	g.phases[name] = phasePair{recv: ev.ID, send: ev.ID}
}

// AddEdge inserts a dependency edge, merging with an existing edge of the
// same (src, dst, kind) by unioning the field sets. Edges with identical
// endpoints are a builder defect and rejected.
func (g *Graph) AddEdge(src, dst EventID, kind EdgeKind, fields hlir.FieldSet) (*Edge, error) {
	if src == dst {
		return nil, &StructuralError{
			Pipeline: g.pipeline,
			Message:  "edge endpoints must be distinct: " + g.events[src].Name,
		}
	}
	key := edgeKey{src: src, dst: dst, kind: kind}
	if e, ok := g.index[key]; ok {
		if !fields.Empty() {
			if e.Fields.Empty() {
				e.Fields = fields.Clone()
			} else {
				e.Fields.Union(fields)
			}
		}
		return e, nil
	}
	e := &Edge{Src: src, Dst: dst, Kind: kind, Fields: fields}
	g.edges = append(g.edges, e)
	g.out[src] = append(g.out[src], e)
	g.in[dst] = append(g.in[dst], e)
	g.index[key] = e
	return e, nil
}

// IntraTable reports whether e is the internal match-to-action edge of a
// split table.
func (g *Graph) IntraTable(e *Edge) bool {
	src, dst := g.events[e.Src], g.events[e.Dst]
	return src.Kind == KindMatch && dst.Kind == KindAction && src.Node == dst.Node
}

// TopoOrder returns a deterministic topological order over the events.
// The order is stable for a fixed graph: ties resolve by arena order.
func (g *Graph) TopoOrder() ([]EventID, error) {
	indeg := make([]int, len(g.events))
	for _, e := range g.edges {
		indeg[e.Dst]++
	}

	queue := make([]EventID, 0, len(g.events))
	for i := range g.events {
		if indeg[i] == 0 {
			queue = append(queue, EventID(i))
		}
	}

	order := make([]EventID, 0, len(g.events))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, e := range g.out[id] {
			indeg[e.Dst]--
			if indeg[e.Dst] == 0 {
				queue = append(queue, e.Dst)
			}
		}
	}

	if len(order) != len(g.events) {
		var stuck []string
		for i, d := range indeg {
			if d > 0 {
				stuck = append(stuck, g.events[i].Name)
			}
		}
		return nil, &CycleError{Pipeline: g.pipeline, Stuck: stuck}
	}
	return order, nil
}

// closure returns, per event, the set of events strictly reachable from it.
// Computed in reverse topological order, one bitset union per edge.
func (g *Graph) closure() ([]bitset.Set, error) {
	order, err := g.TopoOrder()
	if err != nil {
		return nil, err
	}
	reach := make([]bitset.Set, len(g.events))
	for i := range reach {
		reach[i] = bitset.New(len(g.events))
	}
	for i := len(order) - 1; i >= 0; i-- {
		u := order[i]
		for _, e := range g.out[u] {
			reach[u].Add(int(e.Dst))
			reach[u].Union(reach[e.Dst])
		}
	}
	return reach, nil
}
