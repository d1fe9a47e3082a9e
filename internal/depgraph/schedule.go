package depgraph

// ScheduleOptions adjusts stage accounting.
type ScheduleOptions struct {
	// CountConditionals makes conditional events occupy a stage slot of
	// their own. When false a conditional is zero-cost pass-through: it
	// still orders its neighbors but adds nothing to any count.
	CountConditionals bool
}

// Result is the schedule annotation for one graph. It is derived data: the
// graph itself is never mutated. MinStages is filled in both modes. The
// remaining fields describe the fine-mode critical path and are nil at
// coarse granularity.
type Result struct {
	Mode      Mode
	MinStages int

	// Earliest holds, per event, the earliest stage (coarse) or phase slot
	// (fine) the event can execute in.
	Earliest []int

	// SlotLength is the longest path in phase slots. A stage holds one
	// match slot and one action slot, so MinStages = ceil(SlotLength/2).
	SlotLength int
	// Latest holds the latest slot per event with SlotLength unchanged.
	Latest []int
	// Critical flags the zero-slack events.
	Critical []bool
	// CriticalEdges holds every tight edge between distinct control nodes:
	// each lies on some longest path. Internal match-to-action edges are
	// implicit once both phases are flagged and are not repeated here.
	CriticalEdges []*Edge
}

// Schedule computes the stage annotation for g. Coarse graphs get the
// minimum stage count under the all-tables-atomic model; fine graphs get
// the full critical-path set. The topological order is re-checked here so a
// builder defect surfaces as a CycleError instead of a wrong answer.
func Schedule(g *Graph, opts ScheduleOptions) (*Result, error) {
	order, err := g.TopoOrder()
	if err != nil {
		return nil, err
	}

	n := g.NumEvents()
	weight := make([]int, n)
	for i, ev := range g.events {
		weight[i] = eventWeight(ev, opts)
	}

	earliest := make([]int, n)
	for _, id := range order {
		for _, e := range g.in[id] {
			if c := earliest[e.Src] + weight[e.Src]; c > earliest[id] {
				earliest[id] = c
			}
		}
	}
	length := 0
	for i := 0; i < n; i++ {
		if c := earliest[i] + weight[i]; c > length {
			length = c
		}
	}

	if g.mode == Coarse {
		return &Result{Mode: Coarse, MinStages: length, Earliest: earliest}, nil
	}

	latest := make([]int, n)
	for i := 0; i < n; i++ {
		latest[i] = length - weight[i]
	}
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		for _, e := range g.out[id] {
			if l := latest[e.Dst] - weight[id]; l < latest[id] {
				latest[id] = l
			}
		}
	}

	critical := make([]bool, n)
	for i := 0; i < n; i++ {
		critical[i] = earliest[i] == latest[i]
	}
	var criticalEdges []*Edge
	for _, e := range g.edges {
		if !critical[e.Src] || !critical[e.Dst] {
			continue
		}
		if earliest[e.Src]+weight[e.Src] != earliest[e.Dst] {
			continue
		}
		if g.IntraTable(e) {
			continue
		}
		criticalEdges = append(criticalEdges, e)
	}

	return &Result{
		Mode:          Fine,
		MinStages:     (length + 1) / 2,
		Earliest:      earliest,
		SlotLength:    length,
		Latest:        latest,
		Critical:      critical,
		CriticalEdges: criticalEdges,
	}, nil
}

// eventWeight returns the stage (coarse) or slot (fine) cost of an event.
func eventWeight(ev *Event, opts ScheduleOptions) int {
	if ev.Kind == KindCond && !opts.CountConditionals {
		return 0
	}
	return 1
}
