package depgraph

import (
	"fmt"

	"github.com/p4analysis/p4deps/internal/bitset"
	"github.com/p4analysis/p4deps/internal/hlir"
)

// Build walks one pipeline's control flow and produces its dependency
// graph at the requested granularity.
//
// For every ordered pair of control nodes (A, B) with B reachable from A,
// exactly one decision is made: a field-dependency edge when a field
// written by A's actions overlaps a field B reads, otherwise a
// control-flow-only edge keeping program order. In fine mode the read side
// is split: key overlaps target B's match event, action-body overlaps
// target B's action event, and every split table gets an internal
// match-to-action edge. Conditionals stay whole: they receive edges like a
// match phase and emit like an action phase.
//
// A cyclic control-flow region is unsupported and fails with a
// StructuralError; no partial graph is returned.
func Build(prog *hlir.Program, pipeline *hlir.Pipeline, mode Mode) (*Graph, error) {
	g := newGraph(prog, pipeline.Name, mode)

	nodes, err := collectNodes(prog, pipeline)
	if err != nil {
		return nil, err
	}
	for _, node := range nodes {
		g.addNode(node)
	}
	for _, node := range nodes {
		if pair := g.phases[node.NodeName()]; pair.recv != pair.send {
			if _, err := g.AddEdge(pair.recv, pair.send, ControlFlowOnly, hlir.FieldSet{}); err != nil {
				return nil, err
			}
		}
	}

	reach, err := nodeClosure(nodes)
	if err != nil {
		return nil, &StructuralError{Pipeline: pipeline.Name, Message: err.Error()}
	}
	for i, a := range nodes {
		for _, j := range reach[i].Members() {
			if err := emitPair(g, a, nodes[j]); err != nil {
				return nil, err
			}
		}
	}

	if err := g.checkInvariants(); err != nil {
		return nil, err
	}
	return g, nil
}

// collectNodes returns the control nodes reachable from the pipeline entry
// in first-visit order, following successors in declaration order. A region
// that loops back into an open path is a cyclic control flow and fails.
func collectNodes(prog *hlir.Program, pipeline *hlir.Pipeline) ([]hlir.ControlNode, error) {
	if pipeline.Entry == "" {
		return nil, nil
	}

	const (
		unvisited = iota
		open
		done
	)
	state := map[string]int{}
	var order []hlir.ControlNode

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case open:
			return &StructuralError{
				Pipeline: pipeline.Name,
				Message:  fmt.Sprintf("cyclic control flow through %q", name),
			}
		case done:
			return nil
		}
		node, ok := prog.ControlNode(name)
		if !ok {
			return &StructuralError{
				Pipeline: pipeline.Name,
				Message:  fmt.Sprintf("control flow references unknown node %q", name),
			}
		}
		state[name] = open
		order = append(order, node)
		for _, succ := range node.SuccessorNames() {
			if err := visit(succ); err != nil {
				return err
			}
		}
		state[name] = done
		return nil
	}

	if err := visit(pipeline.Entry); err != nil {
		return nil, err
	}
	return order, nil
}

// nodeClosure computes, per node, the set of nodes strictly reachable along
// control flow. Memoized over the acyclic successor relation.
func nodeClosure(nodes []hlir.ControlNode) ([]bitset.Set, error) {
	idx := make(map[string]int, len(nodes))
	for i, n := range nodes {
		idx[n.NodeName()] = i
	}

	reach := make([]bitset.Set, len(nodes))
	var compute func(i int)
	compute = func(i int) {
		if reach[i] != nil {
			return
		}
		reach[i] = bitset.New(len(nodes))
		for _, succ := range nodes[i].SuccessorNames() {
			j := idx[succ]
			compute(j)
			reach[i].Add(j)
			reach[i].Union(reach[j])
		}
	}
	for i := range nodes {
		compute(i)
	}

	for i := range nodes {
		if reach[i].Has(i) {
			return nil, fmt.Errorf("cyclic control flow through %q", nodes[i].NodeName())
		}
	}
	return reach, nil
}

// emitPair decides the edge between one reachable pair of control nodes.
func emitPair(g *Graph, a, b hlir.ControlNode) error {
	writes := nodeWrites(a)
	keyReads, actionReads := nodeReads(b)
	src := g.phases[a.NodeName()].send
	pairB := g.phases[b.NodeName()]

	if g.mode == Coarse {
		overlap := writes.Intersect(keyReads)
		if !overlap.Empty() {
			_, err := g.AddEdge(src, pairB.recv, FieldDependency, overlap)
			return err
		}
		_, err := g.AddEdge(src, pairB.recv, ControlFlowOnly, hlir.FieldSet{})
		return err
	}

	matchOverlap := writes.Intersect(keyReads)
	actionOverlap := writes.Intersect(actionReads)
	emitted := false
	if !matchOverlap.Empty() {
		if _, err := g.AddEdge(src, pairB.recv, FieldDependency, matchOverlap); err != nil {
			return err
		}
		emitted = true
	}
	if !actionOverlap.Empty() {
		if _, err := g.AddEdge(src, pairB.send, FieldDependency, actionOverlap); err != nil {
			return err
		}
		emitted = true
	}
	if !emitted {
		if _, err := g.AddEdge(src, pairB.recv, ControlFlowOnly, hlir.FieldSet{}); err != nil {
			return err
		}
	}
	return nil
}

// nodeWrites returns the fields a node's actions may write. Conditionals
// write nothing.
func nodeWrites(n hlir.ControlNode) hlir.FieldSet {
	if t, ok := n.(*hlir.Table); ok {
		return t.Writes()
	}
	return hlir.FieldSet{}
}

// nodeReads returns a node's key-phase and action-phase read sets. A
// conditional's expression fields gate its decision, so they count as
// key-phase reads.
func nodeReads(n hlir.ControlNode) (key, action hlir.FieldSet) {
	switch v := n.(type) {
	case *hlir.Table:
		return v.KeyReads(), v.ActionReads()
	case *hlir.Conditional:
		return v.Reads(), hlir.FieldSet{}
	}
	return hlir.FieldSet{}, hlir.FieldSet{}
}

// checkInvariants asserts the structural properties every built graph must
// satisfy: acyclicity, and in fine mode that match events only receive from
// action-phase events.
func (g *Graph) checkInvariants() error {
	if _, err := g.TopoOrder(); err != nil {
		return &StructuralError{Pipeline: g.pipeline, Message: "dependency graph is cyclic"}
	}
	if g.mode != Fine {
		return nil
	}
	for _, e := range g.edges {
		src, dst := g.events[e.Src], g.events[e.Dst]
		if dst.Kind == KindMatch && src.Kind == KindMatch {
			return &StructuralError{
				Pipeline: g.pipeline,
				Message:  fmt.Sprintf("match event %s receives from match event %s", dst.Name, src.Name),
			}
		}
	}
	return nil
}
