package depgraph

import (
	"errors"
	"fmt"
)

// Error codes for graph construction and scheduling. E3xx errors are fatal:
// no partial graph or schedule is ever surfaced alongside one.
const (
	ErrCodeStructural = "E301" // malformed or cyclic control-flow region
	ErrCodeCycle      = "E302" // topological sort failed at scheduling time
)

// StructuralError reports an IR shape the builder cannot analyze, such as a
// cyclic control-flow region or an edge with identical endpoints.
type StructuralError struct {
	Pipeline string
	Message  string
}

// Error implements the error interface.
func (e *StructuralError) Error() string {
	if e.Pipeline != "" {
		return fmt.Sprintf("%s: pipeline %s: %s", ErrCodeStructural, e.Pipeline, e.Message)
	}
	return fmt.Sprintf("%s: %s", ErrCodeStructural, e.Message)
}

// CycleError reports that no topological order exists over a graph that was
// supposed to be acyclic by construction. It indicates a builder defect, not
// a property of the input program.
type CycleError struct {
	Pipeline string
	Stuck    []string // events left with unsatisfied predecessors
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	msg := fmt.Sprintf("%s: pipeline %s: no topological order", ErrCodeCycle, e.Pipeline)
	if len(e.Stuck) > 0 {
		msg += fmt.Sprintf(" (stuck: %v)", e.Stuck)
	}
	return msg
}

// IsStructuralError reports whether err is (or wraps) a StructuralError.
func IsStructuralError(err error) bool {
	var se *StructuralError
	return errors.As(err, &se)
}

// IsCycleError reports whether err is (or wraps) a CycleError.
func IsCycleError(err error) bool {
	var ce *CycleError
	return errors.As(err, &ce)
}
