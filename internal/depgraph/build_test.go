package depgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p4analysis/p4deps/internal/hlir"
	"github.com/p4analysis/p4deps/internal/testutil"
)

// chainProgram is three tables applied in sequence: t1 writes m.f1, t2
// matches on m.f1, t3 matches on a field nobody writes.
func chainProgram(t *testing.T) *hlir.Program {
	return testutil.NewProgram("chain").
		Header("m_t",
			testutil.FieldDef{Name: "f1", Width: 8},
			testutil.FieldDef{Name: "f2", Width: 8},
			testutil.FieldDef{Name: "f3", Width: 8}).
		Metadata("m", "m_t").
		Action("w_f1", testutil.CallDef{Primitive: "modify_field", Args: []string{"m.f1", "0"}}).
		Action("nop", testutil.CallDef{Primitive: "no_op"}).
		Table(testutil.TableDef{
			Name:    "t1",
			Actions: []string{"w_f1"},
			Next:    []testutil.NextDef{{On: "default", Next: "t2"}},
		}).
		Table(testutil.TableDef{
			Name:    "t2",
			Key:     []testutil.KeyDef{{Field: "m.f1", Match: "exact"}},
			Actions: []string{"nop"},
			Next:    []testutil.NextDef{{On: "default", Next: "t3"}},
		}).
		Table(testutil.TableDef{
			Name:    "t3",
			Key:     []testutil.KeyDef{{Field: "m.f3", Match: "exact"}},
			Actions: []string{"nop"},
		}).
		Pipeline("ingress", "t1").
		Build(t)
}

// branchProgram gates two tables behind a conditional that reads the field
// t1 writes.
func branchProgram(t *testing.T) *hlir.Program {
	return testutil.NewProgram("branch").
		Header("m_t",
			testutil.FieldDef{Name: "f1", Width: 8},
			testutil.FieldDef{Name: "f2", Width: 8},
			testutil.FieldDef{Name: "f3", Width: 8}).
		Metadata("m", "m_t").
		Action("w_f1", testutil.CallDef{Primitive: "modify_field", Args: []string{"m.f1", "0"}}).
		Action("nop", testutil.CallDef{Primitive: "no_op"}).
		Table(testutil.TableDef{
			Name:    "t1",
			Actions: []string{"w_f1"},
			Next:    []testutil.NextDef{{On: "default", Next: "c0"}},
		}).
		Table(testutil.TableDef{
			Name:    "t2",
			Key:     []testutil.KeyDef{{Field: "m.f2", Match: "exact"}},
			Actions: []string{"nop"},
		}).
		Table(testutil.TableDef{
			Name:    "t3",
			Key:     []testutil.KeyDef{{Field: "m.f3", Match: "exact"}},
			Actions: []string{"nop"},
		}).
		Cond(testutil.CondDef{
			Name:       "c0",
			Expression: "m.f1 == 1",
			Fields:     []string{"m.f1"},
			TrueNext:   "t2",
			FalseNext:  "t3",
		}).
		Pipeline("ingress", "t1").
		Build(t)
}

// actionReadProgram has no key dependency: t2's action body reads the field
// t1 writes.
func actionReadProgram(t *testing.T) *hlir.Program {
	return testutil.NewProgram("action_read").
		Header("m_t",
			testutil.FieldDef{Name: "f1", Width: 8},
			testutil.FieldDef{Name: "f2", Width: 8}).
		Metadata("m", "m_t").
		Action("w_f1", testutil.CallDef{Primitive: "modify_field", Args: []string{"m.f1", "0"}}).
		Action("copy_f1", testutil.CallDef{Primitive: "modify_field", Args: []string{"m.f2", "m.f1"}}).
		Table(testutil.TableDef{
			Name:    "t1",
			Actions: []string{"w_f1"},
			Next:    []testutil.NextDef{{On: "default", Next: "t2"}},
		}).
		Table(testutil.TableDef{
			Name:    "t2",
			Actions: []string{"copy_f1"},
		}).
		Pipeline("ingress", "t1").
		Build(t)
}

func buildPipeline(t *testing.T, prog *hlir.Program, mode Mode) *Graph {
	t.Helper()
	require.NotEmpty(t, prog.Pipelines)
	g, err := Build(prog, prog.Pipelines[0], mode)
	require.NoError(t, err)
	return g
}

type edgeSig struct {
	src, dst, kind, fields string
}

func sigs(g *Graph) []edgeSig {
	out := make([]edgeSig, 0, g.NumEdges())
	for _, e := range g.Edges() {
		out = append(out, edgeSig{
			src:    g.Event(e.Src).Name,
			dst:    g.Event(e.Dst).Name,
			kind:   e.Kind.String(),
			fields: g.Program().FieldNames(e.Fields),
		})
	}
	return out
}

func TestBuildCoarseChain(t *testing.T) {
	g := buildPipeline(t, chainProgram(t), Coarse)

	names := make([]string, 0, g.NumEvents())
	for _, ev := range g.Events() {
		names = append(names, ev.Name)
	}
	assert.Equal(t, []string{"t1", "t2", "t3"}, names)

	assert.Equal(t, []edgeSig{
		{"t1", "t2", "field", "m.f1"},
		{"t1", "t3", "control", ""},
		{"t2", "t3", "control", ""},
	}, sigs(g))
}

func TestBuildFineChain(t *testing.T) {
	g := buildPipeline(t, chainProgram(t), Fine)

	assert.Equal(t, 6, g.NumEvents())
	assert.Equal(t, []edgeSig{
		{"t1__match", "t1__action", "control", ""},
		{"t2__match", "t2__action", "control", ""},
		{"t3__match", "t3__action", "control", ""},
		{"t1__action", "t2__match", "field", "m.f1"},
		{"t1__action", "t3__match", "control", ""},
		{"t2__action", "t3__match", "control", ""},
	}, sigs(g))
}

func TestBuildActionReadDependency(t *testing.T) {
	prog := actionReadProgram(t)

	// Coarse granularity only inspects match keys: no key overlap, so
	// program order alone links the pair.
	coarse := buildPipeline(t, prog, Coarse)
	assert.Equal(t, []edgeSig{
		{"t1", "t2", "control", ""},
	}, sigs(coarse))

	// Fine granularity sees the action body read and binds action to
	// action.
	fine := buildPipeline(t, prog, Fine)
	assert.Equal(t, []edgeSig{
		{"t1__match", "t1__action", "control", ""},
		{"t2__match", "t2__action", "control", ""},
		{"t1__action", "t2__action", "field", "m.f1"},
	}, sigs(fine))
}

func TestBuildConditionalEdges(t *testing.T) {
	g := buildPipeline(t, branchProgram(t), Coarse)

	assert.Equal(t, []edgeSig{
		{"t1", "c0", "field", "m.f1"},
		{"t1", "t2", "control", ""},
		{"t1", "t3", "control", ""},
		{"c0", "t2", "control", ""},
		{"c0", "t3", "control", ""},
	}, sigs(g))
}

func TestBuildFineConditionalStaysWhole(t *testing.T) {
	g := buildPipeline(t, branchProgram(t), Fine)

	// 2 events per table, 1 for the conditional.
	assert.Equal(t, 7, g.NumEvents())

	var condEvents []*Event
	for _, ev := range g.Events() {
		if ev.Kind == KindCond {
			condEvents = append(condEvents, ev)
		}
	}
	require.Len(t, condEvents, 1)
	assert.Equal(t, "c0", condEvents[0].Name)

	// The conditional receives from t1's action and emits into match
	// events.
	got := sigs(g)
	assert.Contains(t, got, edgeSig{"t1__action", "c0", "field", "m.f1"})
	assert.Contains(t, got, edgeSig{"c0", "t2__match", "control", ""})
	assert.Contains(t, got, edgeSig{"c0", "t3__match", "control", ""})
}

func TestBuildCyclicControlFlowFails(t *testing.T) {
	prog := testutil.NewProgram("loop").
		Action("nop", testutil.CallDef{Primitive: "no_op"}).
		Table(testutil.TableDef{
			Name:    "t1",
			Actions: []string{"nop"},
			Next:    []testutil.NextDef{{On: "default", Next: "t2"}},
		}).
		Table(testutil.TableDef{
			Name:    "t2",
			Actions: []string{"nop"},
			Next:    []testutil.NextDef{{On: "default", Next: "t1"}},
		}).
		Pipeline("ingress", "t1").
		Build(t)

	_, err := Build(prog, prog.Pipelines[0], Coarse)
	require.Error(t, err)
	assert.True(t, IsStructuralError(err))
	assert.Contains(t, err.Error(), "cyclic")
}

func TestBuildUnknownEntryFails(t *testing.T) {
	prog := chainProgram(t)
	_, err := Build(prog, &hlir.Pipeline{Name: "egress", Entry: "ghost"}, Coarse)
	require.Error(t, err)
	assert.True(t, IsStructuralError(err))
}

func TestBuildEmptyPipeline(t *testing.T) {
	prog := chainProgram(t)
	g, err := Build(prog, &hlir.Pipeline{Name: "egress"}, Coarse)
	require.NoError(t, err)
	assert.Equal(t, 0, g.NumEvents())
	assert.Equal(t, 0, g.NumEdges())

	res, err := Schedule(g, ScheduleOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.MinStages)
}

func TestBuildDiamondJoin(t *testing.T) {
	prog := testutil.NewProgram("diamond").
		Header("m_t", testutil.FieldDef{Name: "f1", Width: 8}).
		Metadata("m", "m_t").
		Action("nop", testutil.CallDef{Primitive: "no_op"}).
		Table(testutil.TableDef{
			Name:    "left",
			Actions: []string{"nop"},
			Next:    []testutil.NextDef{{On: "default", Next: "join"}},
		}).
		Table(testutil.TableDef{
			Name:    "right",
			Actions: []string{"nop"},
			Next:    []testutil.NextDef{{On: "default", Next: "join"}},
		}).
		Table(testutil.TableDef{Name: "join", Actions: []string{"nop"}}).
		Cond(testutil.CondDef{
			Name:      "fork",
			Fields:    []string{"m.f1"},
			TrueNext:  "left",
			FalseNext: "right",
		}).
		Pipeline("ingress", "fork").
		Build(t)

	g := buildPipeline(t, prog, Coarse)

	// join is visited once despite two incoming paths, and left/right are
	// unordered relative to each other.
	got := sigs(g)
	assert.Len(t, got, 5)
	assert.NotContains(t, got, edgeSig{"left", "right", "control", ""})
	assert.NotContains(t, got, edgeSig{"right", "left", "control", ""})
	assert.Contains(t, got, edgeSig{"left", "join", "control", ""})
	assert.Contains(t, got, edgeSig{"right", "join", "control", ""})
}

func TestBuildInvariants(t *testing.T) {
	progs := map[string]*hlir.Program{
		"chain":   chainProgram(t),
		"branch":  branchProgram(t),
		"routing": testutil.RoutingProgram(t),
	}
	for name, prog := range progs {
		for _, mode := range []Mode{Coarse, Fine} {
			g := buildPipeline(t, prog, mode)

			_, err := g.TopoOrder()
			require.NoError(t, err, "%s/%s must be acyclic", name, mode)

			seen := map[edgeKey]bool{}
			for _, e := range g.Edges() {
				assert.NotEqual(t, e.Src, e.Dst, "%s/%s self edge", name, mode)
				key := edgeKey{src: e.Src, dst: e.Dst, kind: e.Kind}
				assert.False(t, seen[key], "%s/%s duplicate edge", name, mode)
				seen[key] = true
			}

			if mode != Fine {
				continue
			}
			for _, e := range g.Edges() {
				if g.Event(e.Dst).Kind != KindMatch {
					continue
				}
				srcKind := g.Event(e.Src).Kind
				if g.IntraTable(e) {
					continue
				}
				assert.Contains(t, []EventKind{KindAction, KindCond}, srcKind,
					"%s match event fed by %s", name, srcKind)
			}
		}
	}
}

func TestBuildDeterministic(t *testing.T) {
	for _, mode := range []Mode{Coarse, Fine} {
		g1 := buildPipeline(t, chainProgram(t), mode)
		g2 := buildPipeline(t, chainProgram(t), mode)

		assert.Equal(t, sigs(g1), sigs(g2))
		assert.Equal(t, Fingerprint(g1), Fingerprint(g2))
	}
}
