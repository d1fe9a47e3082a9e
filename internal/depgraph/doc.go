// Package depgraph builds and schedules table dependency graphs.
//
// A graph is built per pipeline from an immutable hlir.Program: events are
// the schedulable units (whole tables at coarse granularity, split
// match/action phases at fine granularity, conditionals always whole), and
// edges are must-happen-no-earlier-than constraints labeled with their
// cause. Construction, reduction and scheduling are pure single-threaded
// passes; every iteration order is pinned to the arena so repeated runs
// over the same snapshot produce byte-identical results.
//
// The mode chosen at Build time commits the whole pairing: coarse graphs
// are reduced and counted with the minimum-stage model, fine graphs skip
// reduction and get a full critical-path analysis.
package depgraph
