package depgraph

import "github.com/p4analysis/p4deps/internal/hlir"

// Mode selects the scheduling granularity. It is chosen once per Build and
// commits the builder and the scheduler to the same pairing: a coarse graph
// is counted with CountMinStages, a fine graph with CriticalPath.
type Mode int

// Scheduling granularities.
const (
	// Coarse treats every table and conditional as one atomic event.
	Coarse Mode = iota
	// Fine splits every table into a match event and an action event.
	Fine
)

// String returns the mode name used in output and fingerprints.
func (m Mode) String() string {
	if m == Fine {
		return "fine"
	}
	return "coarse"
}

// EventID is a dense index into a Graph's event arena.
type EventID int

// EventKind classifies an event.
type EventKind int

// Event kinds. KindTable appears only in coarse graphs; KindMatch and
// KindAction only in fine graphs. KindCond appears in both: a conditional
// is never split.
const (
	KindTable EventKind = iota
	KindMatch
	KindAction
	KindCond
)

// String returns the kind name used in output and fingerprints.
func (k EventKind) String() string {
	switch k {
	case KindTable:
		return "table"
	case KindMatch:
		return "match"
	case KindAction:
		return "action"
	default:
		return "cond"
	}
}

// Event is one schedulable unit: a whole table, one phase of a table, or a
// conditional. Name is unique within the graph; NodeName is the underlying
// control node shared by both phases of a split table.
type Event struct {
	ID   EventID
	Kind EventKind
	Name string
	Node hlir.ControlNode
}

// NodeName returns the name of the table or conditional behind the event.
func (e *Event) NodeName() string {
	return e.Node.NodeName()
}

// Table returns the underlying table, or nil for a conditional event.
func (e *Event) Table() *hlir.Table {
	t, _ := e.Node.(*hlir.Table)
	return t
}

// Cond returns the underlying conditional, or nil for a table event.
func (e *Event) Cond() *hlir.Conditional {
	c, _ := e.Node.(*hlir.Conditional)
	return c
}
