// Package dot renders analysis results as Graphviz DOT text: the
// dependency graph of a pipeline, the plain table control-flow graph, and
// the parse graph. Writers are deterministic (nodes in arena or declaration
// order, edges in insertion order), so output is directly comparable across
// runs.
//
// Rendering DOT text to an image is delegated to the external layout tool
// and is strictly best-effort: a missing tool or failing format never
// invalidates the computed analysis.
package dot
