package depgraph

import "github.com/p4analysis/p4deps/internal/bitset"

// Reduce returns a new graph with the minimum edge set inducing the same
// reachability relation. Redundancy is tested against the closure of the
// input graph, which for a DAG yields the unique transitive reduction in
// one pass over the edges.
//
// Reduction is only meaningful at coarse granularity. A fine graph keeps
// every edge because the critical-path scheduler reports which dependency
// is binding; dropping a transitively implied edge would silently drop it
// from that report.
func (g *Graph) Reduce() (*Graph, error) {
	if g.mode != Coarse {
		return nil, &StructuralError{
			Pipeline: g.pipeline,
			Message:  "transitive reduction requires coarse granularity",
		}
	}
	reach, err := g.closure()
	if err != nil {
		return nil, err
	}

	out := newGraph(g.prog, g.pipeline, g.mode)
	for _, ev := range g.events {
		out.addEvent(ev.Kind, ev.Name, ev.Node)
	}
	for name, pair := range g.phases {
		out.phases[name] = pair
	}

	for _, e := range g.edges {
		if transitivelyImplied(g, reach, e) {
			continue
		}
		if _, err := out.AddEdge(e.Src, e.Dst, e.Kind, e.Fields.Clone()); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// transitivelyImplied reports whether some alternate path of length at
// least two connects e's endpoints: a sibling edge to v with e.Dst still
// reachable from v.
func transitivelyImplied(g *Graph, reach []bitset.Set, e *Edge) bool {
	for _, sib := range g.out[e.Src] {
		if sib.Dst == e.Dst {
			continue
		}
		if reach[sib.Dst].Has(int(e.Dst)) {
			return true
		}
	}
	return false
}
